package transaction

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory transaction repository for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	byRef map[string]Transaction
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byRef: map[string]Transaction{}}
}

func (r *MemoryRepo) Create(ctx context.Context, t Transaction) (Transaction, error) {
	if t.Reference == "" || t.ChatID == 0 {
		return Transaction{}, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byRef[t.Reference]; ok {
		return existing, nil
	}
	t.UpdatedAt = t.CreatedAt
	r.byRef[t.Reference] = t
	return t, nil
}

func (r *MemoryRepo) FindByReference(ctx context.Context, reference string) (Transaction, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	return t, ok, nil
}

func (r *MemoryRepo) Settle(ctx context.Context, reference string, status Status, details string, now time.Time) (bool, error) {
	if status != StatusSuccess && status != StatusFailed {
		return false, ErrInvalidRecord
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[reference]
	if !ok || t.Status != StatusPending {
		return false, nil
	}
	t.Status = status
	if details != "" {
		t.Details = details
	}
	t.UpdatedAt = now
	r.byRef[reference] = t
	return true, nil
}

func (r *MemoryRepo) ListByChat(ctx context.Context, chatID int64, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Transaction
	for _, t := range r.byRef {
		if t.ChatID == chatID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
