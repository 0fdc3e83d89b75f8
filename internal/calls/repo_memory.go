package calls

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory call record repository for tests and early
// development. It enforces the same ownership scoping as the Postgres repo.
type MemoryRepo struct {
	mu      sync.Mutex
	records map[string]CallRecord
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{records: map[string]CallRecord{}}
}

func (r *MemoryRepo) Create(ctx context.Context, rec CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, scope Scope, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Scope != scope {
		return CallRecord{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, scope Scope, providerCallID string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Scope == scope && rec.ProviderCallID != "" && rec.ProviderCallID == providerCallID {
			return cloneRecord(rec), nil
		}
	}
	return CallRecord{}, ErrNotFound
}

func (r *MemoryRepo) Mutate(ctx context.Context, scope Scope, id string, fn func(rec *CallRecord) error) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Scope != scope {
		return CallRecord{}, ErrNotFound
	}
	work := cloneRecord(rec)
	if err := fn(&work); err != nil {
		return CallRecord{}, err
	}
	r.records[id] = cloneRecord(work)
	return work, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, scope Scope, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Scope != scope {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

// All returns a snapshot of every stored record, unscoped. Test helper.
func (r *MemoryRepo) All() []CallRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, cloneRecord(rec))
	}
	return out
}

func cloneRecord(rec CallRecord) CallRecord {
	out := rec
	if rec.Topics != nil {
		out.Topics = append([]string(nil), rec.Topics...)
	}
	if rec.CollectedData != nil {
		out.CollectedData = make(map[string]string, len(rec.CollectedData))
		for k, v := range rec.CollectedData {
			out.CollectedData[k] = v
		}
	}
	if rec.EndedAt != nil {
		t := *rec.EndedAt
		out.EndedAt = &t
	}
	return out
}
