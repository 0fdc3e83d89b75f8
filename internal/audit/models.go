package audit

import (
	"time"

	"voicedesk/internal/calls"
)

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Ownership scope is required for tenancy isolation.
// - Capture is best-effort; do not block call processing on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID    string      `json:"id" db:"id"`
	Scope calls.Scope `json:"-"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	// Webhook-driven events have no actor.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Target identifiers (optional, depending on the event type).
	CallID  string `json:"call_id,omitempty" db:"call_id"`
	AgentID string `json:"agent_id,omitempty" db:"agent_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallCreated       EventType = "call_created"
	EventTypeCallStatusChanged EventType = "call_status_changed"
	EventTypeCallCompleted     EventType = "call_completed"
	EventTypeCallDeleted       EventType = "call_deleted"
	EventTypeAnalysisFallback  EventType = "analysis_fallback"
)
