package ledger

import (
	"time"

	"voicedesk/internal/calls"
)

// Entry is an immutable, append-only usage charge posted when a call
// completes with a nonzero cost.
//
// Invariants:
// - Entries are never updated or deleted.
// - Ownership scope is required on every row and every query.
// - IdempotencyKey makes at-least-once completion processing safe: replays
//   return the original entry instead of double-charging.
type Entry struct {
	ID    string      `json:"id" db:"id"`
	Scope calls.Scope `json:"-"`

	AgentID string `json:"agent_id" db:"agent_id"`
	CallID  string `json:"call_id" db:"call_id"`

	// AmountMinor is the usage charge in minor units. Always positive.
	AmountMinor int64  `json:"amount_minor" db:"amount_minor"`
	Currency    string `json:"currency" db:"currency"`

	// IdempotencyKey is the provider call id when available, else the
	// internal call id.
	IdempotencyKey string `json:"idempotency_key" db:"idempotency_key"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
