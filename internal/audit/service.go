package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"voicedesk/internal/calls"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if !e.Scope.Valid() {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCallEvent records a call lifecycle event.
func (s *Service) LogCallEvent(ctx context.Context, scope calls.Scope, typ EventType, callID, message string) error {
	return s.Append(ctx, Event{
		Scope:   scope,
		Type:    typ,
		CallID:  callID,
		Message: message,
	})
}

// LogAnalysisFallback records that transcript analysis fell back to
// placeholder results for a call.
func (s *Service) LogAnalysisFallback(ctx context.Context, scope calls.Scope, callID, reason string) error {
	return s.Append(ctx, Event{
		Scope:   scope,
		Type:    EventTypeAnalysisFallback,
		CallID:  callID,
		Message: reason,
	})
}
