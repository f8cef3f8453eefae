package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/coalops/minesafe/pkg/models"
)

const snapshotCols = `id, user_id, snapshot_date, metrics, compliance_score, risk_level, streak_count, streak_seeded, last_event_type, last_event_metadata, last_event_at, created, updated`

// UpsertSnapshot inserts or replaces the row for (user_id, snapshot_date).
// The whole aggregate is written each time; the snapshot is the unit of
// durability, no batching.
func (r *SQLiteRepo) UpsertSnapshot(ctx context.Context, s *models.DailySnapshot) (int64, error) {
	if s == nil {
		return 0, fmt.Errorf("snapshot is nil")
	}

	metrics, err := json.Marshal(s.Metrics)
	if err != nil {
		return 0, fmt.Errorf("encode metrics: %w", err)
	}
	lastMeta, err := encodeMeta(s.LastEventMetadata)
	if err != nil {
		return 0, fmt.Errorf("encode last event metadata: %w", err)
	}

	seeded := 0
	if s.StreakSeeded {
		seeded = 1
	}

	row := r.conn.QueryRow(ctx, `INSERT INTO daily_snapshots
		(user_id, snapshot_date, metrics, compliance_score, risk_level, streak_count, streak_seeded, last_event_type, last_event_metadata, last_event_at, created, updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, snapshot_date) DO UPDATE SET
			metrics = excluded.metrics,
			compliance_score = excluded.compliance_score,
			risk_level = excluded.risk_level,
			streak_count = excluded.streak_count,
			streak_seeded = excluded.streak_seeded,
			last_event_type = excluded.last_event_type,
			last_event_metadata = excluded.last_event_metadata,
			last_event_at = excluded.last_event_at,
			updated = excluded.updated
		RETURNING id`,
		s.UserID, s.SnapshotDate, string(metrics), s.ComplianceScore, s.RiskLevel, s.StreakCount, seeded,
		s.LastEventType, lastMeta, s.LastEventAt, s.Created, s.Updated)

	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert snapshot: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepo) GetSnapshot(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE user_id = ? AND snapshot_date = ?`, userID, dateKey)
	return scanSnapshotRow(row)
}

func (r *SQLiteRepo) GetLatestSnapshot(ctx context.Context, userID int64) (*models.DailySnapshot, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE user_id = ? ORDER BY snapshot_date DESC LIMIT 1`, userID)
	return scanSnapshotRow(row)
}

func (r *SQLiteRepo) GetSnapshotBefore(ctx context.Context, userID int64, dateKey string) (*models.DailySnapshot, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE user_id = ? AND snapshot_date < ? ORDER BY snapshot_date DESC LIMIT 1`, userID, dateKey)
	return scanSnapshotRow(row)
}

func (r *SQLiteRepo) ListUserSnapshots(ctx context.Context, userID int64, fromDate, toDate string) ([]models.DailySnapshot, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE user_id = ? AND snapshot_date >= ? AND snapshot_date <= ? ORDER BY snapshot_date`, userID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (r *SQLiteRepo) ListSnapshotsByDate(ctx context.Context, dateKey string) ([]models.DailySnapshot, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE snapshot_date = ? ORDER BY user_id`, dateKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (r *SQLiteRepo) ListSnapshotsRange(ctx context.Context, fromDate, toDate string) ([]models.DailySnapshot, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+snapshotCols+` FROM daily_snapshots WHERE snapshot_date >= ? AND snapshot_date <= ? ORDER BY snapshot_date, user_id`, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (*models.DailySnapshot, error) {
	var s models.DailySnapshot
	var metrics string
	var seeded int
	var lastType, lastMeta sql.NullString
	var lastAt sql.NullInt64

	if err := sc.Scan(&s.ID, &s.UserID, &s.SnapshotDate, &metrics, &s.ComplianceScore, &s.RiskLevel,
		&s.StreakCount, &seeded, &lastType, &lastMeta, &lastAt, &s.Created, &s.Updated); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metrics), &s.Metrics); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	s.StreakSeeded = seeded != 0
	s.LastEventType = lastType.String
	s.LastEventMetadata = decodeMeta(lastMeta)
	s.LastEventAt = lastAt.Int64

	return &s, nil
}

func scanSnapshotRow(row *sql.Row) (*models.DailySnapshot, error) {
	s, err := scanSnapshot(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSnapshots(rows *sql.Rows) ([]models.DailySnapshot, error) {
	var out []models.DailySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
