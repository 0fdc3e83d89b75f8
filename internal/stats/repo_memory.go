package stats

import (
	"context"
	"sort"
	"sync"

	"voicedesk/internal/calls"
)

// MemoryRepo aggregates over an in-memory slice of call records. Used by
// tests; mirrors the scoping and ordering of the Postgres repo.
type MemoryRepo struct {
	mu    sync.Mutex
	Calls []calls.CallRecord
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) AgentTotals(ctx context.Context, scope calls.Scope, agentID string) (Totals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var t Totals
	for _, c := range r.Calls {
		if c.Scope != scope || c.AgentID != agentID {
			continue
		}
		t.TotalCalls++
		t.TotalDurationSeconds += c.DurationSeconds
		t.TotalCostMinor += c.CostMinor
		switch c.Status {
		case calls.StatusCompleted:
			t.CompletedCalls++
		case calls.StatusMissed:
			t.MissedCalls++
		}
	}
	return t, nil
}

func (r *MemoryRepo) AgentCalls(ctx context.Context, scope calls.Scope, agentID string, f HistoryFilter) ([]calls.CallRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matched := make([]calls.CallRecord, 0)
	for _, c := range r.Calls {
		if c.Scope != scope || c.AgentID != agentID {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Direction != "" && c.Direction != f.Direction {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	if f.Skip >= total {
		return []calls.CallRecord{}, total, nil
	}
	end := f.Skip + f.Limit
	if end > total {
		end = total
	}
	page := make([]calls.CallRecord, end-f.Skip)
	copy(page, matched[f.Skip:end])
	return page, total, nil
}
