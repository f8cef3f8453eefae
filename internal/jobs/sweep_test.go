package jobs_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/coalops/minesafe/internal/jobs"
	"github.com/coalops/minesafe/internal/scoring"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository/mock"
)

func sweepJob(t *testing.T, date string) *jobs.Job {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"date": date})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &jobs.Job{Type: jobs.SweepType, Payload: payload}
}

func alertTypes(t *testing.T, store *mock.Store, userID int64) map[string]bool {
	t.Helper()
	alerts, err := store.ListAlerts(context.Background(), models.AlertOpen, userID, 0)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	out := make(map[string]bool, len(alerts))
	for _, a := range alerts {
		out[a.Type] = true
	}
	return out
}

func TestSweepFlagsInactiveUser(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "Idle", Email: "i@x", Role: models.RoleEmployee})

	s := jobs.NewSweeper(store, store, scoring.NewIssuer(store), nil)
	if err := s.Handle(ctx, sweepJob(t, "2026-08-31")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	types := alertTypes(t, store, 1)
	if !types[models.AlertInactive] {
		t.Fatalf("no inactive alert for a user without a snapshot: %v", types)
	}
	// an inactive day is not additionally flagged for checklists or videos
	if types[models.AlertChecklistMissed] || types[models.AlertVideoAvoidance] {
		t.Fatalf("inactive user over-flagged: %v", types)
	}
}

func TestSweepFlagsMissedDuties(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "A", Email: "a@x", Role: models.RoleEmployee})

	// active day, but neither checklist nor video work
	store.SeedSnapshot(&models.DailySnapshot{
		UserID: 1, SnapshotDate: "2026-08-31",
		Metrics: models.Metrics{LoginCount: 2, HazardsReported: 1},
	})

	s := jobs.NewSweeper(store, store, scoring.NewIssuer(store), nil)
	if err := s.Handle(ctx, sweepJob(t, "2026-08-31")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	types := alertTypes(t, store, 1)
	if !types[models.AlertChecklistMissed] || !types[models.AlertVideoAvoidance] {
		t.Fatalf("missing duty alerts: %v", types)
	}
	if types[models.AlertInactive] {
		t.Fatalf("active user flagged inactive")
	}
}

func TestSweepSkipsCompliantUser(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "A", Email: "a@x", Role: models.RoleEmployee})

	store.SeedSnapshot(&models.DailySnapshot{
		UserID: 1, SnapshotDate: "2026-08-31",
		Metrics: models.Metrics{ChecklistsCompleted: 1, ChecklistItemsCompleted: 10, VideosCompleted: 1},
	})

	s := jobs.NewSweeper(store, store, scoring.NewIssuer(store), nil)
	if err := s.Handle(ctx, sweepJob(t, "2026-08-31")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if types := alertTypes(t, store, 1); len(types) != 0 {
		t.Fatalf("compliant user flagged: %v", types)
	}
}

func TestSweepIsIdempotent(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "Idle", Email: "i@x", Role: models.RoleEmployee})

	s := jobs.NewSweeper(store, store, scoring.NewIssuer(store), nil)
	for i := 0; i < 2; i++ {
		if err := s.Handle(ctx, sweepJob(t, "2026-08-31")); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}

	alerts, err := store.ListAlerts(ctx, models.AlertOpen, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("alerts = %d after two sweeps, want 1", len(alerts))
	}
}

func TestSweepIgnoresSupervisors(t *testing.T) {
	store := mock.NewStore()
	ctx := context.Background()
	store.CreateUser(ctx, &models.User{Name: "Sup", Email: "s@x", Role: models.RoleSupervisor})

	s := jobs.NewSweeper(store, store, scoring.NewIssuer(store), nil)
	if err := s.Handle(ctx, sweepJob(t, "2026-08-31")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(store.Alerts) != 0 {
		t.Fatalf("supervisor swept: %v", store.Alerts)
	}
}
