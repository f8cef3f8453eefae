package sqlite

import (
	"context"

	"github.com/coalops/minesafe/pkg/models"
)

// UpsertEventSchema inserts or updates a payload schema by event type.
func (r *SQLiteRepo) UpsertEventSchema(ctx context.Context, eventType, version, schemaJSON string) (int64, error) {
	res, err := r.conn.Exec(ctx, `INSERT INTO event_schemas (event_type, version, schema_json, created, updated) VALUES (?, ?, ?, strftime('%s','now'), strftime('%s','now')) ON CONFLICT(event_type) DO UPDATE SET version=excluded.version, schema_json=excluded.schema_json, updated=strftime('%s','now')`,
		eventType, version, schemaJSON)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *SQLiteRepo) ListEventSchemas(ctx context.Context) ([]models.EventSchema, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT id, event_type, version, schema_json, created, updated FROM event_schemas ORDER BY event_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.EventSchema
	for rows.Next() {
		var s models.EventSchema
		if err := rows.Scan(&s.ID, &s.EventType, &s.Version, &s.SchemaJSON, &s.Created, &s.Updated); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
