package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

// SweepType is the job type for the daily behavior sweep.
const SweepType = "behavior.daily_sweep"

// Sweeper raises the alert types the inline scoring triggers never produce:
// inactive (no snapshot for the swept day), checklist_missed, and
// video_avoidance. It runs as a background job and reschedules itself for the
// next UTC midnight after each successful pass.
type Sweeper struct {
	users     repository.UserRepo
	snapshots repository.SnapshotRepo
	issuer    *scoring.Issuer
	logger    *slog.Logger
	pool      *WorkerPool
}

func NewSweeper(ur repository.UserRepo, sr repository.SnapshotRepo, issuer *scoring.Issuer, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{users: ur, snapshots: sr, issuer: issuer, logger: logger}
}

// Bind gives the sweeper the pool it reschedules itself on. Called once after
// the pool is constructed (the pool needs the handler map first).
func (s *Sweeper) Bind(pool *WorkerPool) { s.pool = pool }

type sweepPayload struct {
	// Date is the date key to sweep; defaults to yesterday (UTC).
	Date string `json:"date,omitempty"`
}

// Handle runs one sweep over all employees.
func (s *Sweeper) Handle(ctx context.Context, j *Job) error {
	var p sweepPayload
	if len(j.Payload) > 0 {
		if err := json.Unmarshal(j.Payload, &p); err != nil {
			return fmt.Errorf("decode sweep payload: %w", err)
		}
	}
	date := p.Date
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	}

	employees, err := s.users.ListByRole(ctx, models.RoleEmployee)
	if err != nil {
		return fmt.Errorf("list employees: %w", err)
	}

	flagged := 0
	for _, u := range employees {
		n, err := s.sweepUser(ctx, u.ID, date)
		if err != nil {
			// keep sweeping the rest; one bad user must not poison the run
			s.logger.Warn("sweep user failed", "user_id", u.ID, "date", date, "err", err)
			continue
		}
		flagged += n
	}
	s.logger.Info("behavior sweep done", "date", date, "employees", len(employees), "alerts", flagged)

	s.reschedule(ctx)
	return nil
}

func (s *Sweeper) sweepUser(ctx context.Context, userID int64, date string) (int, error) {
	snap, err := s.snapshots.GetSnapshot(ctx, userID, date)
	if err != nil {
		return 0, err
	}

	if snap == nil {
		msg := fmt.Sprintf("No safety activity recorded on %s.", date)
		if _, err := s.issuer.EnsureAlert(ctx, userID, date, models.AlertInactive, models.SeverityMedium, msg, nil); err != nil {
			return 0, err
		}
		return 1, nil
	}

	n := 0
	m := snap.Metrics
	if m.ChecklistsCompleted == 0 && m.ChecklistItemsCompleted == 0 {
		msg := fmt.Sprintf("No checklist activity on %s.", date)
		if _, err := s.issuer.EnsureAlert(ctx, userID, date, models.AlertChecklistMissed, models.SeverityMedium, msg, nil); err != nil {
			return n, err
		}
		n++
	}
	if m.VideosStarted == 0 && m.VideosCompleted == 0 {
		msg := fmt.Sprintf("No training video activity on %s.", date)
		if _, err := s.issuer.EnsureAlert(ctx, userID, date, models.AlertVideoAvoidance, models.SeverityLow, msg, nil); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Sweeper) reschedule(ctx context.Context) {
	if s.pool == nil {
		return
	}
	next := time.Now().UTC().Truncate(24 * time.Hour).Add(24*time.Hour + 5*time.Minute)
	if _, err := s.pool.EnqueueAt(ctx, SweepType, sweepPayload{}, 100, 3, next); err != nil {
		s.logger.Error("reschedule sweep", "err", err)
	}
}
