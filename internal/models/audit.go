package models

import (
	"encoding/json"
	"time"
)

// Audit entry types.
const (
	AuditTypeInfo  = "info"
	AuditTypeError = "error"
)

// AuditEntry is an append-only record of a lifecycle outcome or failure.
type AuditEntry struct {
	ID         string          `db:"id" json:"id"`
	Type       string          `db:"type" json:"type"`
	Message    string          `db:"message" json:"message"`
	SessionID  string          `db:"session_id" json:"sessionId"`
	Origin     string          `db:"origin" json:"origin"`
	Method     string          `db:"method" json:"method"`
	Endpoint   string          `db:"endpoint" json:"endpoint"`
	URL        string          `db:"url" json:"url"`
	Requestor  json.RawMessage `db:"requestor" json:"requestor,omitempty"`
	DurationMS int64           `db:"duration_ms" json:"duration"`
	Data       json.RawMessage `db:"data" json:"data,omitempty"`
	StartedAt  time.Time       `db:"started_at" json:"startTimeStamp"`
	EndedAt    time.Time       `db:"ended_at" json:"endTimeStamp"`
}

// AuditFilter narrows audit log queries to a start-time range.
type AuditFilter struct {
	From *time.Time
	To   *time.Time
}
