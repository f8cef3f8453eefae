package repository

import (
	"context"
	"errors"

	"github.com/coalops/minesafe/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
//
// Lookup methods return (nil, nil) when no row matches; ErrNotFound is reserved
// for operations that target a specific row by identity.

// ErrNotFound is returned when an operation targets a row that does not exist.
var ErrNotFound = errors.New("not found")

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// ListByRole lists users whose normalized role equals role. The
	// implementation must apply models.NormalizeRole semantics so legacy
	// "worker" rows are included when asking for employees.
	ListByRole(ctx context.Context, role string) ([]models.User, error)
}

type EventRepo interface {
	CreateEvent(ctx context.Context, e *models.EngagementEvent) (int64, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.EngagementEvent, error)
	CountByUser(ctx context.Context, userID int64) (int64, error)
	// ListByTypesSince returns events of the given types with occurred_at >=
	// since (unix millis), newest first. Used by the incident heatmap.
	ListByTypesSince(ctx context.Context, types []string, since int64) ([]models.EngagementEvent, error)
}

type SnapshotRepo interface {
	// Upsert inserts or replaces the snapshot for (user_id, snapshot_date)
	// and returns its row id.
	UpsertSnapshot(ctx context.Context, s *models.DailySnapshot) (int64, error)
	GetSnapshot(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error)
	// GetLatestSnapshot returns the user's most recent snapshot by date.
	GetLatestSnapshot(ctx context.Context, userID int64) (*models.DailySnapshot, error)
	// GetSnapshotBefore returns the most recent snapshot with date < dateKey.
	GetSnapshotBefore(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error)
	// ListUserSnapshots returns snapshots for a user with fromDate <= date <=
	// toDate, ordered by date ascending.
	ListUserSnapshots(ctx context.Context, userID int64, fromDate, toDate string) ([]models.DailySnapshot, error)
	// ListSnapshotsByDate returns every user's snapshot for one date key.
	ListSnapshotsByDate(ctx context.Context, dateKey string) ([]models.DailySnapshot, error)
	// ListSnapshotsRange returns all snapshots with fromDate <= date <= toDate
	// across users, ordered by date ascending.
	ListSnapshotsRange(ctx context.Context, fromDate, toDate string) ([]models.DailySnapshot, error)
}

type AlertRepo interface {
	// EnsureOpenAlert atomically finds or creates the open alert for
	// (user_id, snapshot_date, type). The returned alert is the existing one
	// when present; new metadata is not merged into an existing alert.
	EnsureOpenAlert(ctx context.Context, a *models.BehaviorAlert) (*models.BehaviorAlert, error)
	GetAlertByID(ctx context.Context, id int64) (*models.BehaviorAlert, error)
	// ListAlerts filters by status and/or user; zero values mean no filter.
	// limit <= 0 falls back to a server-side default.
	ListAlerts(ctx context.Context, status string, userID int64, limit int) ([]models.BehaviorAlert, error)
	// AcknowledgeAlert transitions an open alert to acknowledged, stamping
	// acknowledged_at. Returns ErrNotFound when the alert does not exist.
	AcknowledgeAlert(ctx context.Context, id int64, ackAt int64) (*models.BehaviorAlert, error)
}

type SchemaRepo interface {
	UpsertEventSchema(ctx context.Context, eventType, version, schemaJSON string) (int64, error)
	ListEventSchemas(ctx context.Context) ([]models.EventSchema, error)
}
