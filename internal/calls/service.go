package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("call not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleEvent        = errors.New("stale call event")
)

// Repository is the persistence contract for call records.
//
// Every method is scope-filtered: a record owned by a different
// (user_id, org_id) pair must be indistinguishable from a missing one
// (ErrNotFound).
type Repository interface {
	Create(ctx context.Context, rec CallRecord) error
	Get(ctx context.Context, scope Scope, id string) (CallRecord, error)
	GetByProviderCallID(ctx context.Context, scope Scope, providerCallID string) (CallRecord, error)

	// Mutate loads the record under a write lock, applies fn and persists the
	// result. An error from fn aborts the mutation and is returned unchanged.
	Mutate(ctx context.Context, scope Scope, id string, fn func(rec *CallRecord) error) (CallRecord, error)

	Delete(ctx context.Context, scope Scope, id string) error
}

// Auditor receives best-effort lifecycle audit events. Failures are logged by
// the adapter, never surfaced here; audit must not block the call pipeline.
type Auditor interface {
	CallEvent(ctx context.Context, scope Scope, eventType, callID, message string)
}

// Service manages the call lifecycle.
//
// Status and completion are separate operations because the telephony
// provider emits them as independent webhook deliveries: an initial ringing
// event (record creation), an optional answered event (status transition),
// and a terminal event carrying recording/transcript (completion update).
// Each must be safe under at-least-once, out-of-order delivery, which is why
// every mutation carries an event time checked against LastEventAt.
type Service struct {
	repo    Repository
	auditor Auditor
	clock   func() time.Time
}

func NewService(repo Repository, auditor Auditor) *Service {
	return &Service{repo: repo, auditor: auditor, clock: time.Now}
}

// CreateCallInput starts a call record. Status defaults to ringing and
// StartedAt to the current time when unset.
type CreateCallInput struct {
	AgentID        string     `json:"agent_id"`
	Direction      Direction  `json:"direction"`
	ProviderCallID string     `json:"provider_call_id,omitempty"`
	FromNumber     string     `json:"from_number,omitempty"`
	CallerName     string     `json:"caller_name,omitempty"`
	Status         CallStatus `json:"status,omitempty"`
	StartedAt      time.Time  `json:"started_at,omitempty"`
}

func (s *Service) CreateCall(ctx context.Context, scope Scope, in CreateCallInput) (CallRecord, error) {
	if !scope.Valid() {
		return CallRecord{}, fmt.Errorf("%w: user id required", ErrInvalidArgument)
	}
	if in.AgentID == "" {
		return CallRecord{}, fmt.Errorf("%w: agent id required", ErrInvalidArgument)
	}
	if !ValidDirection(in.Direction) {
		return CallRecord{}, fmt.Errorf("%w: direction must be inbound or outbound", ErrInvalidArgument)
	}
	status := in.Status
	if status == "" {
		status = StatusRinging
	}
	if !ValidStatus(status) {
		return CallRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, in.Status)
	}

	now := s.clock().UTC()
	startedAt := in.StartedAt
	if startedAt.IsZero() {
		startedAt = now
	}

	rec := CallRecord{
		ID:             uuid.NewString(),
		Scope:          scope,
		AgentID:        in.AgentID,
		ProviderCallID: in.ProviderCallID,
		Direction:      in.Direction,
		FromNumber:     in.FromNumber,
		CallerName:     in.CallerName,
		Status:         status,
		StartedAt:      startedAt,
		LastEventAt:    startedAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// Created directly terminal (e.g. provider reported an answer failure in
	// the very first event): the terminal invariant still holds.
	if status.Terminal() {
		endedAt := now
		rec.EndedAt = &endedAt
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		return CallRecord{}, err
	}
	s.audit(ctx, scope, "call_created", rec.ID, string(rec.Status))
	return rec, nil
}

// UpdateCallStatus applies a status-only transition.
//
// The transition table is enforced: disallowed changes return
// ErrInvalidTransition rather than being silently applied. occurredAt is the
// provider event time; pass the zero value for API-driven changes (the
// current time is used).
func (s *Service) UpdateCallStatus(ctx context.Context, scope Scope, callID string, status CallStatus, occurredAt time.Time) (CallRecord, error) {
	if !scope.Valid() || callID == "" {
		return CallRecord{}, fmt.Errorf("%w: scope and call id required", ErrInvalidArgument)
	}
	if !ValidStatus(status) {
		return CallRecord{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, status)
	}

	now := s.clock().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}

	out, err := s.repo.Mutate(ctx, scope, callID, func(rec *CallRecord) error {
		if !occurredAt.After(rec.LastEventAt) {
			return ErrStaleEvent
		}
		if !CanTransition(rec.Status, status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, rec.Status, status)
		}
		rec.Status = status
		// Terminal statuses stamp EndedAt once; it never moves backward.
		if status.Terminal() && rec.EndedAt == nil {
			endedAt := now
			rec.EndedAt = &endedAt
		}
		rec.LastEventAt = occurredAt
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	s.audit(ctx, scope, "call_status_changed", callID, string(status))
	return out, nil
}

// CompletionUpdate carries the artifacts of a finished call. Nil fields are
// left untouched.
type CompletionUpdate struct {
	DurationSeconds *int               `json:"duration,omitempty"`
	RecordingURL    *string            `json:"recording_url,omitempty"`
	Transcript      *string            `json:"transcript,omitempty"`
	Sentiment       *Sentiment         `json:"sentiment,omitempty"`
	Topics          []string           `json:"topics,omitempty"`
	Summary         *string            `json:"summary,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	CollectedData   map[string]string  `json:"collected_data,omitempty"`
	CostMinor       *int64             `json:"cost_minor,omitempty"`
}

// ApplyAnalysis merges an AnalysisResult into the update. The proposed
// terminal status in the result is advisory and deliberately not copied to
// the record's own status.
func (u *CompletionUpdate) ApplyAnalysis(res AnalysisResult) {
	sentiment := res.Sentiment
	summary := res.Summary
	notes := res.Notes
	u.Sentiment = &sentiment
	u.Summary = &summary
	u.Notes = &notes
	u.Topics = res.Topics
}

// CompleteCall is the terminal lifecycle operation: it always forces
// status=completed and stamps EndedAt, whatever the prior status. Applying it
// twice yields the same final state except EndedAt advances. It bypasses the
// transition table on purpose; the only guard is event staleness.
func (s *Service) CompleteCall(ctx context.Context, scope Scope, callID string, upd CompletionUpdate, occurredAt time.Time) (CallRecord, error) {
	if !scope.Valid() || callID == "" {
		return CallRecord{}, fmt.Errorf("%w: scope and call id required", ErrInvalidArgument)
	}
	if upd.Sentiment != nil && !ValidSentiment(*upd.Sentiment) {
		return CallRecord{}, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidArgument, *upd.Sentiment)
	}
	if upd.DurationSeconds != nil && *upd.DurationSeconds < 0 {
		return CallRecord{}, fmt.Errorf("%w: duration must be >= 0", ErrInvalidArgument)
	}
	if upd.CostMinor != nil && *upd.CostMinor < 0 {
		return CallRecord{}, fmt.Errorf("%w: cost must be >= 0", ErrInvalidArgument)
	}

	now := s.clock().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}

	out, err := s.repo.Mutate(ctx, scope, callID, func(rec *CallRecord) error {
		if !occurredAt.After(rec.LastEventAt) {
			return ErrStaleEvent
		}
		if upd.DurationSeconds != nil {
			rec.DurationSeconds = *upd.DurationSeconds
		}
		if upd.RecordingURL != nil {
			rec.RecordingURL = *upd.RecordingURL
		}
		if upd.Transcript != nil {
			rec.Transcript = *upd.Transcript
		}
		if upd.Sentiment != nil {
			rec.Sentiment = *upd.Sentiment
		}
		if upd.Topics != nil {
			topics := upd.Topics
			if len(topics) > MaxTopics {
				topics = topics[:MaxTopics]
			}
			rec.Topics = topics
		}
		if upd.Summary != nil {
			rec.Summary = *upd.Summary
		}
		if upd.Notes != nil {
			rec.Notes = *upd.Notes
		}
		if upd.CollectedData != nil {
			rec.CollectedData = upd.CollectedData
		}
		if upd.CostMinor != nil {
			rec.CostMinor = *upd.CostMinor
		}
		rec.Status = StatusCompleted
		endedAt := now
		rec.EndedAt = &endedAt
		rec.LastEventAt = occurredAt
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	s.audit(ctx, scope, "call_completed", callID, "completion update applied")
	return out, nil
}

func (s *Service) GetCall(ctx context.Context, scope Scope, callID string) (CallRecord, error) {
	if !scope.Valid() || callID == "" {
		return CallRecord{}, fmt.Errorf("%w: scope and call id required", ErrInvalidArgument)
	}
	return s.repo.Get(ctx, scope, callID)
}

// FindByProviderCallID correlates an asynchronous provider webhook with the
// record created at call start. Provider call ids are unique among non-empty
// values, so at most one record matches.
func (s *Service) FindByProviderCallID(ctx context.Context, scope Scope, providerCallID string) (CallRecord, error) {
	if !scope.Valid() || providerCallID == "" {
		return CallRecord{}, fmt.Errorf("%w: scope and provider call id required", ErrInvalidArgument)
	}
	return s.repo.GetByProviderCallID(ctx, scope, providerCallID)
}

func (s *Service) DeleteCall(ctx context.Context, scope Scope, callID string) error {
	if !scope.Valid() || callID == "" {
		return fmt.Errorf("%w: scope and call id required", ErrInvalidArgument)
	}
	if err := s.repo.Delete(ctx, scope, callID); err != nil {
		return err
	}
	s.audit(ctx, scope, "call_deleted", callID, "")
	return nil
}

func (s *Service) audit(ctx context.Context, scope Scope, eventType, callID, message string) {
	if s.auditor == nil {
		return
	}
	s.auditor.CallEvent(ctx, scope, eventType, callID, message)
}
