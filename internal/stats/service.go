package stats

import (
	"context"
	"errors"
	"fmt"

	"voicedesk/internal/calls"
)

var ErrInvalidRequest = errors.New("stats: invalid request")

// Totals is the raw single-pass aggregate the repository computes; the
// service derives the average so both repo implementations stay dumb.
type Totals struct {
	TotalCalls           int
	CompletedCalls       int
	MissedCalls          int
	TotalDurationSeconds int
	TotalCostMinor       int64
}

// Repository abstracts call-record reads for aggregation.
// Implementations must enforce ownership scoping on every query.
type Repository interface {
	AgentTotals(ctx context.Context, scope calls.Scope, agentID string) (Totals, error)
	AgentCalls(ctx context.Context, scope calls.Scope, agentID string, f HistoryFilter) ([]calls.CallRecord, int, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

// AgentStats computes the per-agent rollup over all of the agent's calls.
func (s *Service) AgentStats(ctx context.Context, scope calls.Scope, agentID string) (AgentStats, error) {
	if !scope.Valid() || agentID == "" {
		return AgentStats{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return AgentStats{}, errors.New("stats: repository not configured")
	}

	totals, err := s.repo.AgentTotals(ctx, scope, agentID)
	if err != nil {
		return AgentStats{}, err
	}

	out := AgentStats{
		AgentID:              agentID,
		TotalCalls:           totals.TotalCalls,
		CompletedCalls:       totals.CompletedCalls,
		MissedCalls:          totals.MissedCalls,
		TotalDurationSeconds: totals.TotalDurationSeconds,
		TotalCostMinor:       totals.TotalCostMinor,
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

// AgentCallHistory returns one page of the agent's calls ordered by start
// time descending, plus the filter-matching total.
func (s *Service) AgentCallHistory(ctx context.Context, scope calls.Scope, agentID string, f HistoryFilter) (CallHistory, error) {
	if !scope.Valid() || agentID == "" {
		return CallHistory{}, ErrInvalidRequest
	}
	if f.Status != "" && !calls.ValidStatus(f.Status) {
		return CallHistory{}, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, f.Status)
	}
	if f.Direction != "" && !calls.ValidDirection(f.Direction) {
		return CallHistory{}, fmt.Errorf("%w: unknown direction %q", ErrInvalidRequest, f.Direction)
	}
	if f.Skip < 0 {
		return CallHistory{}, fmt.Errorf("%w: skip must be >= 0", ErrInvalidRequest)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if s.repo == nil {
		return CallHistory{}, errors.New("stats: repository not configured")
	}

	rows, total, err := s.repo.AgentCalls(ctx, scope, agentID, f)
	if err != nil {
		return CallHistory{}, err
	}
	if rows == nil {
		rows = []calls.CallRecord{}
	}
	return CallHistory{Calls: rows, Total: total}, nil
}
