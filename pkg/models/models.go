package models

import (
	"encoding/json"
	"time"
)

// Domain models matching the database schema in db/migrations/0001_init.sql

type User struct {
	ID           int64  `json:"id" db:"id"`
	Name         string `json:"name" db:"name" validate:"required"`
	Email        string `json:"email" db:"email" validate:"required,email"`
	Role         string `json:"role" db:"role"`
	Updated      int64  `json:"updated" db:"updated"`
	PasswordHash string `json:"password_hash,omitempty" db:"password_hash"`
}

// Metadata is the free-form payload attached to events and alerts, stored as JSON.
type Metadata map[string]any

// Float reads a numeric metadata value. JSON numbers decode as float64 but
// callers building events in process may also hand us ints.
func (m Metadata) Float(key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Bool reads a boolean metadata value.
func (m Metadata) Bool(key string) (bool, bool) {
	if m == nil {
		return false, false
	}
	v, ok := m[key].(bool)
	return v, ok
}

// String reads a string metadata value.
func (m Metadata) String(key string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[key].(string)
	return v, ok
}

// EngagementEvent is an immutable activity fact. Rows are append-only and never
// mutated or deleted; daily snapshots are derived state.
type EngagementEvent struct {
	ID         int64    `json:"id" db:"id"`
	UserID     int64    `json:"user_id" db:"user_id"`
	Type       string   `json:"type" db:"type"`
	Metadata   Metadata `json:"metadata,omitempty" db:"metadata"`
	OccurredAt int64    `json:"occurred_at" db:"occurred_at"`
	Created    int64    `json:"created" db:"created"`
}

// Metrics is the fixed-shape numeric aggregate carried by a daily snapshot.
// Counters only accumulate; checklistCompletionRate is re-derived from the
// checklist counters after every event.
type Metrics struct {
	LoginCount              int     `json:"loginCount"`
	ChecklistsCompleted     int     `json:"checklistsCompleted"`
	ChecklistItemsCompleted int     `json:"checklistItemsCompleted"`
	TotalChecklistItems     int     `json:"totalChecklistItems"`
	ChecklistCompletionRate int     `json:"checklistCompletionRate"`
	PPEChecksPassed         int     `json:"ppeChecksPassed"`
	PPEChecksFailed         int     `json:"ppeChecksFailed"`
	VideosStarted           int     `json:"videosStarted"`
	VideosCompleted         int     `json:"videosCompleted"`
	VideoMilestones         int     `json:"videoMilestones"`
	VideoWatchSeconds       float64 `json:"videoWatchSeconds"`
	EngagementMinutes       float64 `json:"engagementMinutes"`
	HazardsReported         int     `json:"hazardsReported"`
	Acknowledgements        int     `json:"acknowledgements"`
	QuizAttempts            int     `json:"quizAttempts"`
	QuizAverageScore        float64 `json:"quizAverageScore"`
	NudgesAcknowledged      int     `json:"nudgesAcknowledged"`
}

// DailySnapshot is the mutable per-user-per-day aggregate. Exactly zero or one
// row exists per (user_id, snapshot_date); snapshot_date is the UTC date key
// of the event's occurrence time.
type DailySnapshot struct {
	ID                int64    `json:"id" db:"id"`
	UserID            int64    `json:"user_id" db:"user_id"`
	SnapshotDate      string   `json:"snapshot_date" db:"snapshot_date"`
	Metrics           Metrics  `json:"metrics" db:"metrics"`
	ComplianceScore   int      `json:"compliance_score" db:"compliance_score"`
	RiskLevel         string   `json:"risk_level" db:"risk_level"`
	StreakCount       int      `json:"streak_count" db:"streak_count"`
	StreakSeeded      bool     `json:"streak_seeded" db:"streak_seeded"`
	LastEventType     string   `json:"last_event_type,omitempty" db:"last_event_type"`
	LastEventMetadata Metadata `json:"last_event_metadata,omitempty" db:"last_event_metadata"`
	LastEventAt       int64    `json:"last_event_at,omitempty" db:"last_event_at"`
	Created           int64    `json:"created" db:"created"`
	Updated           int64    `json:"updated" db:"updated"`
}

// BehaviorAlert is a derived notification. At most one open alert exists per
// (user_id, snapshot_date, type); a partial unique index in the schema enforces
// that, so creation must go through the AlertRepo upsert rather than a plain
// insert.
type BehaviorAlert struct {
	ID             int64    `json:"id" db:"id"`
	UserID         int64    `json:"user_id" db:"user_id"`
	SnapshotDate   string   `json:"snapshot_date" db:"snapshot_date"`
	Type           string   `json:"type" db:"type"`
	Severity       string   `json:"severity" db:"severity"`
	Status         string   `json:"status" db:"status"`
	Message        string   `json:"message" db:"message"`
	Metadata       Metadata `json:"metadata,omitempty" db:"metadata"`
	AcknowledgedAt *int64   `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	Created        int64    `json:"created" db:"created"`
}

// EventSchema stores a JSON Schema used to validate event payloads at ingestion.
type EventSchema struct {
	ID         int64  `json:"id" db:"id"`
	EventType  string `json:"event_type" db:"event_type"`
	Version    string `json:"version" db:"version"`
	SchemaJSON string `json:"schema_json" db:"schema_json"`
	Created    int64  `json:"created" db:"created"`
	Updated    int64  `json:"updated" db:"updated"`
}

// DateKey returns the UTC calendar-day key (YYYY-MM-DD) for a unix-millisecond
// timestamp. Snapshots and alerts are keyed on this value.
func DateKey(unixMilli int64) string {
	return time.UnixMilli(unixMilli).UTC().Format(time.DateOnly)
}

// PreviousDateKey returns the date key one calendar day before key, or an empty
// string when key does not parse.
func PreviousDateKey(key string) string {
	t, err := time.Parse(time.DateOnly, key)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(time.DateOnly)
}
