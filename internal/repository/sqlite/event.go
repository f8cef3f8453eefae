package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/coalops/minesafe/pkg/models"
)

func (r *SQLiteRepo) CreateEvent(ctx context.Context, e *models.EngagementEvent) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("event is nil")
	}

	meta, err := encodeMeta(e.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode event metadata: %w", err)
	}

	res, err := r.conn.Exec(ctx, `INSERT INTO engagement_events (user_id, type, metadata, occurred_at, created) VALUES (?, ?, ?, ?, ?)`,
		e.UserID, e.Type, meta, e.OccurredAt, now())
	if err != nil {
		return 0, err
	}

	return res.LastInsertId()
}

func (r *SQLiteRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]models.EngagementEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.QueryRows(ctx, `SELECT id, user_id, type, metadata, occurred_at, created FROM engagement_events WHERE user_id = ? ORDER BY occurred_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func (r *SQLiteRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	row := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM engagement_events WHERE user_id = ?`, userID)
	var cnt int64
	if err := row.Scan(&cnt); err != nil {
		return 0, err
	}
	return cnt, nil
}

func (r *SQLiteRepo) ListByTypesSince(ctx context.Context, types []string, since int64) ([]models.EngagementEvent, error) {
	if len(types) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(types))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(types)+1)
	for _, t := range types {
		args = append(args, t)
	}
	args = append(args, since)

	q := fmt.Sprintf(`SELECT id, user_id, type, metadata, occurred_at, created FROM engagement_events WHERE type IN (%s) AND occurred_at >= ? ORDER BY occurred_at DESC`, placeholders)
	rows, err := r.conn.QueryRows(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]models.EngagementEvent, error) {
	var out []models.EngagementEvent
	for rows.Next() {
		var e models.EngagementEvent
		var meta sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Type, &meta, &e.OccurredAt, &e.Created); err != nil {
			return nil, err
		}
		e.Metadata = decodeMeta(meta)
		out = append(out, e)
	}
	return out, rows.Err()
}
