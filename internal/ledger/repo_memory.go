package ledger

import (
	"context"
	"sync"

	"voicedesk/internal/calls"
)

// MemoryRepo is an in-memory Repository used in tests.
type MemoryRepo struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) Record(ctx context.Context, e Entry) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.Scope == e.Scope && existing.IdempotencyKey == e.IdempotencyKey {
			return existing, false, nil
		}
	}
	m.entries = append(m.entries, e)
	return e, true, nil
}

func (m *MemoryRepo) AgentTotalMinor(ctx context.Context, scope calls.Scope, agentID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, e := range m.entries {
		if e.Scope == scope && e.AgentID == agentID {
			total += e.AmountMinor
		}
	}
	return total, nil
}

// Len reports how many entries have been recorded.
func (m *MemoryRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
