package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	dbfs "github.com/coalops/minesafe/db"
	dbpkg "github.com/coalops/minesafe/internal/db"
	sqlite "github.com/coalops/minesafe/internal/repository/sqlite"
	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, func()) {
	t.Helper()
	ctx := context.Background()

	// one named in-memory database per test so rows do not leak between tests
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	d, err := dbpkg.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		d.Close()
		t.Fatalf("failed to migrate: %v", err)
	}

	repo := sqlite.New(d, nil)
	return repo, func() { d.Close() }
}

func TestUserCRUD(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	if _, err := repo.CreateUser(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil user")
	}

	got, err := repo.GetByID(ctx, 9999)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing ID, got %#v", got)
	}

	got, err = repo.GetByEmail(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing email, got %#v", got)
	}

	u := &models.User{Name: "Ravi", Email: "ravi@example.com", Role: models.RoleEmployee, PasswordHash: "hash"}
	id, err := repo.CreateUser(ctx, u)
	if err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	if id == 0 {
		t.Fatalf("expected non-zero id")
	}

	got, err = repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if got == nil || got.Email != "ravi@example.com" || got.Role != models.RoleEmployee {
		t.Fatalf("unexpected user: %#v", got)
	}
}

func TestListByRoleIncludesWorkerAlias(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	users := []models.User{
		{Name: "A", Email: "a@x", Role: models.RoleEmployee},
		{Name: "B", Email: "b@x", Role: models.RoleWorker},
		{Name: "C", Email: "c@x", Role: models.RoleSupervisor},
	}
	for i := range users {
		if _, err := repo.CreateUser(ctx, &users[i]); err != nil {
			t.Fatalf("create %s: %v", users[i].Email, err)
		}
	}

	employees, err := repo.ListByRole(ctx, models.RoleEmployee)
	if err != nil {
		t.Fatalf("ListByRole: %v", err)
	}
	if len(employees) != 2 {
		t.Fatalf("employees = %d, want 2 (legacy worker rows included)", len(employees))
	}

	sups, err := repo.ListByRole(ctx, models.RoleSupervisor)
	if err != nil {
		t.Fatalf("ListByRole supervisor: %v", err)
	}
	if len(sups) != 1 {
		t.Fatalf("supervisors = %d, want 1", len(sups))
	}
}

func TestEventLog(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := &models.EngagementEvent{
			UserID:     1,
			Type:       models.EventAppLogin,
			Metadata:   models.Metadata{"n": float64(i)},
			OccurredAt: int64(1000 + i),
		}
		if _, err := repo.CreateEvent(ctx, e); err != nil {
			t.Fatalf("CreateEvent %d: %v", i, err)
		}
	}
	e := &models.EngagementEvent{UserID: 1, Type: models.EventHazardReported, Metadata: models.Metadata{"zone": "shaft-3"}, OccurredAt: 2000}
	if _, err := repo.CreateEvent(ctx, e); err != nil {
		t.Fatalf("CreateEvent hazard: %v", err)
	}

	events, err := repo.ListByUser(ctx, 1, 2, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("page size = %d, want 2", len(events))
	}
	if events[0].OccurredAt != 2000 {
		t.Fatalf("expected newest first, got occurred_at %d", events[0].OccurredAt)
	}

	total, err := repo.CountByUser(ctx, 1)
	if err != nil {
		t.Fatalf("CountByUser: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}

	recent, err := repo.ListByTypesSince(ctx, []string{models.EventHazardReported, models.EventPPESkipped}, 1500)
	if err != nil {
		t.Fatalf("ListByTypesSince: %v", err)
	}
	if len(recent) != 1 || recent[0].Type != models.EventHazardReported {
		t.Fatalf("unexpected recent events: %#v", recent)
	}
	if zone, _ := recent[0].Metadata.String("zone"); zone != "shaft-3" {
		t.Fatalf("metadata round-trip lost zone: %#v", recent[0].Metadata)
	}
}

func TestSnapshotUpsert(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	s := &models.DailySnapshot{
		UserID:       1,
		SnapshotDate: "2026-09-01",
		Metrics:      models.Metrics{LoginCount: 1},
		RiskLevel:    models.RiskHigh,
		Created:      100,
		Updated:      100,
	}
	id1, err := repo.UpsertSnapshot(ctx, s)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	s.Metrics.LoginCount = 2
	s.ComplianceScore = 10
	s.StreakSeeded = true
	s.Updated = 200
	id2, err := repo.UpsertSnapshot(ctx, s)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("upsert changed the row id: %d -> %d", id1, id2)
	}

	got, err := repo.GetSnapshot(ctx, 1, "2026-09-01")
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got == nil || got.Metrics.LoginCount != 2 || !got.StreakSeeded {
		t.Fatalf("unexpected snapshot after update: %#v", got)
	}

	// second day for the same user
	s2 := &models.DailySnapshot{UserID: 1, SnapshotDate: "2026-09-02", Metrics: models.Metrics{}, RiskLevel: models.RiskHigh}
	if _, err := repo.UpsertSnapshot(ctx, s2); err != nil {
		t.Fatalf("upsert day 2: %v", err)
	}

	latest, err := repo.GetLatestSnapshot(ctx, 1)
	if err != nil {
		t.Fatalf("GetLatestSnapshot: %v", err)
	}
	if latest == nil || latest.SnapshotDate != "2026-09-02" {
		t.Fatalf("latest = %#v, want 2026-09-02", latest)
	}

	prev, err := repo.GetSnapshotBefore(ctx, 1, "2026-09-02")
	if err != nil {
		t.Fatalf("GetSnapshotBefore: %v", err)
	}
	if prev == nil || prev.SnapshotDate != "2026-09-01" {
		t.Fatalf("before = %#v, want 2026-09-01", prev)
	}

	list, err := repo.ListUserSnapshots(ctx, 1, "2026-09-01", "2026-09-02")
	if err != nil {
		t.Fatalf("ListUserSnapshots: %v", err)
	}
	if len(list) != 2 || list[0].SnapshotDate != "2026-09-01" {
		t.Fatalf("unexpected range: %#v", list)
	}
}

func TestEnsureOpenAlertIdempotent(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	a := &models.BehaviorAlert{
		UserID:       1,
		SnapshotDate: "2026-09-01",
		Type:         models.AlertPPENonCompliance,
		Severity:     models.SeverityMedium,
		Status:       models.AlertOpen,
		Message:      "first",
		Metadata:     models.Metadata{"ppeChecksFailed": float64(1)},
	}
	first, err := repo.EnsureOpenAlert(ctx, a)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}

	// same trigger again while still open: same row, message unchanged
	dup := *a
	dup.Message = "second"
	second, err := repo.EnsureOpenAlert(ctx, &dup)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate trigger created a new alert: %d vs %d", second.ID, first.ID)
	}
	if second.Message != "first" {
		t.Fatalf("existing alert was overwritten: %q", second.Message)
	}

	open, err := repo.ListAlerts(ctx, models.AlertOpen, 1, 0)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open alerts = %d, want 1", len(open))
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	a := &models.BehaviorAlert{UserID: 1, SnapshotDate: "2026-09-01", Type: models.AlertLowCompliance, Severity: models.SeverityHigh, Status: models.AlertOpen}
	created, err := repo.EnsureOpenAlert(ctx, a)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	acked, err := repo.AcknowledgeAlert(ctx, created.ID, 12345)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != models.AlertAcknowledged {
		t.Fatalf("status = %s, want acknowledged", acked.Status)
	}
	if acked.AcknowledgedAt == nil || *acked.AcknowledgedAt != 12345 {
		t.Fatalf("acknowledged_at = %v, want 12345", acked.AcknowledgedAt)
	}

	// acknowledging again is a no-op returning the same row
	again, err := repo.AcknowledgeAlert(ctx, created.ID, 99999)
	if err != nil {
		t.Fatalf("acknowledge twice: %v", err)
	}
	if *again.AcknowledgedAt != 12345 {
		t.Fatalf("second acknowledge changed the stamp: %d", *again.AcknowledgedAt)
	}

	// missing alert
	if _, err := repo.AcknowledgeAlert(ctx, 424242, 1); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// once acknowledged, the same trigger may open a fresh alert
	fresh, err := repo.EnsureOpenAlert(ctx, a)
	if err != nil {
		t.Fatalf("ensure after ack: %v", err)
	}
	if fresh.ID == created.ID {
		t.Fatalf("expected a new open alert after acknowledgement")
	}
}

func TestEventSchemas(t *testing.T) {
	repo, cleanup := setupRepo(t)
	defer cleanup()
	ctx := context.Background()

	// the migration seeds the '*' envelope schema
	rows, err := repo.ListEventSchemas(ctx)
	if err != nil {
		t.Fatalf("ListEventSchemas: %v", err)
	}
	if len(rows) != 1 || rows[0].EventType != "*" {
		t.Fatalf("seeded schemas = %#v, want the '*' envelope", rows)
	}

	if _, err := repo.UpsertEventSchema(ctx, models.EventQuizCompleted, "v1", `{"type":"object"}`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertEventSchema(ctx, models.EventQuizCompleted, "v2", `{"type":"object","required":["metadata"]}`); err != nil {
		t.Fatalf("upsert v2: %v", err)
	}

	rows, err = repo.ListEventSchemas(ctx)
	if err != nil {
		t.Fatalf("ListEventSchemas: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("schemas = %d, want 2 (upsert replaces)", len(rows))
	}
	for _, r := range rows {
		if r.EventType == models.EventQuizCompleted && r.Version != "v2" {
			t.Fatalf("version = %s, want v2", r.Version)
		}
	}
}
