package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coalops/minesafe/pkg/models"
	"github.com/coalops/minesafe/pkg/repository"
)

const alertCols = `id, user_id, snapshot_date, type, severity, status, message, metadata, acknowledged_at, created`

// EnsureOpenAlert atomically finds or creates the open alert for
// (user_id, snapshot_date, type). The partial unique index makes the insert a
// no-op when an open alert already exists, so concurrent identical triggers
// cannot create duplicates.
func (r *SQLiteRepo) EnsureOpenAlert(ctx context.Context, a *models.BehaviorAlert) (*models.BehaviorAlert, error) {
	if a == nil {
		return nil, fmt.Errorf("alert is nil")
	}

	meta, err := encodeMeta(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode alert metadata: %w", err)
	}

	created := a.Created
	if created == 0 {
		created = now()
	}

	if _, err := r.conn.Exec(ctx, `INSERT INTO behavior_alerts (user_id, snapshot_date, type, severity, status, message, metadata, created)
		VALUES (?, ?, ?, ?, 'open', ?, ?, ?)
		ON CONFLICT(user_id, snapshot_date, type) WHERE status = 'open' DO NOTHING`,
		a.UserID, a.SnapshotDate, a.Type, a.Severity, a.Message, meta, created); err != nil {
		return nil, fmt.Errorf("insert alert: %w", err)
	}

	row := r.conn.QueryRow(ctx, `SELECT `+alertCols+` FROM behavior_alerts WHERE user_id = ? AND snapshot_date = ? AND type = ? AND status = 'open'`,
		a.UserID, a.SnapshotDate, a.Type)
	out, err := scanAlertRow(row)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("open alert missing after upsert")
	}
	return out, nil
}

func (r *SQLiteRepo) GetAlertByID(ctx context.Context, id int64) (*models.BehaviorAlert, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+alertCols+` FROM behavior_alerts WHERE id = ?`, id)
	return scanAlertRow(row)
}

func (r *SQLiteRepo) ListAlerts(ctx context.Context, status string, userID int64, limit int) ([]models.BehaviorAlert, error) {
	if limit <= 0 {
		limit = 20
	}

	q := `SELECT ` + alertCols + ` FROM behavior_alerts`
	var args []any
	var where []string
	if status != "" {
		where = append(where, `status = ?`)
		args = append(args, status)
	}
	if userID > 0 {
		where = append(where, `user_id = ?`)
		args = append(args, userID)
	}
	for i, w := range where {
		if i == 0 {
			q += ` WHERE ` + w
		} else {
			q += ` AND ` + w
		}
	}
	q += ` ORDER BY created DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.BehaviorAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert transitions open -> acknowledged. Acknowledging an already
// acknowledged alert is a no-op returning the current row; a missing alert is
// repository.ErrNotFound.
func (r *SQLiteRepo) AcknowledgeAlert(ctx context.Context, id int64, ackAt int64) (*models.BehaviorAlert, error) {
	if _, err := r.conn.Exec(ctx, `UPDATE behavior_alerts SET status = 'acknowledged', acknowledged_at = ? WHERE id = ? AND status = 'open'`, ackAt, id); err != nil {
		return nil, fmt.Errorf("acknowledge alert %d: %w", id, err)
	}

	a, err := r.GetAlertByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, repository.ErrNotFound
	}
	return a, nil
}

func scanAlert(sc scanner) (*models.BehaviorAlert, error) {
	var a models.BehaviorAlert
	var meta sql.NullString
	var ackAt sql.NullInt64

	if err := sc.Scan(&a.ID, &a.UserID, &a.SnapshotDate, &a.Type, &a.Severity, &a.Status, &a.Message, &meta, &ackAt, &a.Created); err != nil {
		return nil, err
	}

	a.Metadata = decodeMeta(meta)
	if ackAt.Valid {
		a.AcknowledgedAt = &ackAt.Int64
	}
	return &a, nil
}

func scanAlertRow(row *sql.Row) (*models.BehaviorAlert, error) {
	a, err := scanAlert(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
