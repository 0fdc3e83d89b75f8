package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voicedesk/internal/calls"
)

var (
	ErrInvalidArgument = errors.New("ledger: invalid argument")
)

// Repository persists ledger entries.
//
// Record must be idempotent on (scope, idempotency key): a replay returns
// the original entry and created=false without writing a second row.
type Repository interface {
	Record(ctx context.Context, e Entry) (Entry, bool, error)
	AgentTotalMinor(ctx context.Context, scope calls.Scope, agentID string) (int64, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// RecordCallUsage posts a usage charge for a completed call. Replaying the
// same idempotency key returns the entry recorded the first time.
func (s *Service) RecordCallUsage(ctx context.Context, scope calls.Scope, agentID, callID string, amountMinor int64, currency, idempotencyKey string) (Entry, error) {
	if !scope.Valid() {
		return Entry{}, fmt.Errorf("%w: missing scope", ErrInvalidArgument)
	}
	if agentID == "" || callID == "" {
		return Entry{}, fmt.Errorf("%w: agent id and call id are required", ErrInvalidArgument)
	}
	if amountMinor <= 0 {
		return Entry{}, fmt.Errorf("%w: amount must be positive", ErrInvalidArgument)
	}
	if currency == "" {
		return Entry{}, fmt.Errorf("%w: currency is required", ErrInvalidArgument)
	}
	if idempotencyKey == "" {
		idempotencyKey = callID
	}

	e := Entry{
		ID:             uuid.NewString(),
		Scope:          scope,
		AgentID:        agentID,
		CallID:         callID,
		AmountMinor:    amountMinor,
		Currency:       currency,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      s.clock().UTC(),
	}

	recorded, _, err := s.repo.Record(ctx, e)
	if err != nil {
		return Entry{}, fmt.Errorf("record usage: %w", err)
	}
	return recorded, nil
}

// AgentUsageMinor sums all charges posted for an agent within a scope.
func (s *Service) AgentUsageMinor(ctx context.Context, scope calls.Scope, agentID string) (int64, error) {
	if !scope.Valid() || agentID == "" {
		return 0, fmt.Errorf("%w: missing scope or agent id", ErrInvalidArgument)
	}
	return s.repo.AgentTotalMinor(ctx, scope, agentID)
}
