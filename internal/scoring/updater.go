package scoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

// Updater is the daily snapshot state machine. For each ingested event it
// loads (or lazily creates) the snapshot for the event's UTC day, folds the
// event into the metrics aggregate, recomputes score, risk level, and streak,
// persists the snapshot, and evaluates alert triggers.
//
// The read-modify-write on the snapshot row is serialized with a per-user
// mutex, so two concurrent events for the same user cannot drop each other's
// contribution within one process.
type Updater struct {
	snapshots repository.SnapshotRepo
	issuer    *Issuer
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewUpdater(sr repository.SnapshotRepo, issuer *Issuer, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default()
	}
	return &Updater{
		snapshots: sr,
		issuer:    issuer,
		logger:    logger,
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (u *Updater) userLock(userID int64) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	return l
}

// ApplyEvent folds one event into the user's snapshot for the event's day.
//
// Non-employee users are a documented no-op: the raw event stays in the log
// but no snapshot is created, and (nil, nil) is returned so callers can tell
// "nothing to score" from "failed to score".
func (u *Updater) ApplyEvent(ctx context.Context, user *models.User, e *models.EngagementEvent) (*models.DailySnapshot, error) {
	if user == nil || e == nil {
		return nil, fmt.Errorf("user and event are required")
	}
	if !models.IsEmployee(user.Role) {
		return nil, nil
	}

	dateKey := models.DateKey(e.OccurredAt)

	lock := u.userLock(user.ID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := u.snapshots.GetSnapshot(ctx, user.ID, dateKey)
	if err != nil {
		return nil, fmt.Errorf("load snapshot %d/%s: %w", user.ID, dateKey, err)
	}

	now := time.Now().UTC().UnixMilli()
	if snap == nil {
		snap = &models.DailySnapshot{
			UserID:       user.ID,
			SnapshotDate: dateKey,
			RiskLevel:    models.RiskHigh,
			Created:      now,
		}
	}

	snap.Metrics = Apply(snap.Metrics, e.Type, e.Metadata)
	snap.ComplianceScore = ComputeScore(snap.Metrics)
	snap.RiskLevel = RiskLevelFor(snap.ComplianceScore)
	u.applyStreak(ctx, snap)

	snap.LastEventType = e.Type
	snap.LastEventMetadata = e.Metadata
	snap.LastEventAt = e.OccurredAt
	snap.Updated = now

	id, err := u.snapshots.UpsertSnapshot(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("upsert snapshot %d/%s: %w", user.ID, dateKey, err)
	}
	snap.ID = id

	// alert issuance is a best-effort side effect; failures never abort the
	// snapshot write that triggered them
	u.evaluateTriggers(ctx, snap, e)

	return snap, nil
}

// applyStreak maintains the consecutive-high-score day counter. streakSeeded
// guards against double-incrementing within the same day; a dip below the
// threshold resets the chain immediately, so a later recovery the same day
// restarts at 1 rather than resuming.
func (u *Updater) applyStreak(ctx context.Context, snap *models.DailySnapshot) {
	if snap.ComplianceScore < StreakThreshold {
		snap.StreakCount = 0
		snap.StreakSeeded = false
		return
	}
	if snap.StreakSeeded {
		return
	}

	snap.StreakCount = 1
	prevKey := models.PreviousDateKey(snap.SnapshotDate)
	if prevKey != "" {
		prev, err := u.snapshots.GetSnapshot(ctx, snap.UserID, prevKey)
		if err != nil {
			u.logger.Warn("streak lookup failed", "user_id", snap.UserID, "date", prevKey, "err", err)
		} else if prev != nil && prev.ComplianceScore >= StreakThreshold {
			snap.StreakCount = prev.StreakCount + 1
		}
	}
	snap.StreakSeeded = true
}

func (u *Updater) evaluateTriggers(ctx context.Context, snap *models.DailySnapshot, e *models.EngagementEvent) {
	if u.issuer == nil {
		return
	}

	if snap.RiskLevel == models.RiskHigh {
		msg := fmt.Sprintf("Compliance score dropped to %d; immediate attention required.", snap.ComplianceScore)
		if _, err := u.issuer.EnsureAlert(ctx, snap.UserID, snap.SnapshotDate, models.AlertLowCompliance, models.SeverityHigh, msg, nil); err != nil {
			u.logger.Warn("issue low_compliance alert failed", "user_id", snap.UserID, "err", err)
		}
	}

	if e.Type == models.EventPPESkipped {
		msg := "PPE check skipped; personal protective equipment must be confirmed before entering the site."
		meta := models.Metadata{"ppeChecksFailed": snap.Metrics.PPEChecksFailed}
		if _, err := u.issuer.EnsureAlert(ctx, snap.UserID, snap.SnapshotDate, models.AlertPPENonCompliance, models.SeverityMedium, msg, meta); err != nil {
			u.logger.Warn("issue ppe_non_compliance alert failed", "user_id", snap.UserID, "err", err)
		}
	}
}
