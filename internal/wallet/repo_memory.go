package wallet

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory wallet repository for tests and early development.
// A single mutex serializes Apply calls, which matches the per-wallet
// exclusion the Postgres repo gets from row locks.
type MemoryRepo struct {
	mu      sync.Mutex
	wallets map[int64]Wallet
	ledger  []Entry
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{wallets: map[int64]Wallet{}}
}

func (r *MemoryRepo) Ensure(ctx context.Context, chatID int64, now time.Time) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wallets[chatID]; ok {
		return w, nil
	}
	w := Wallet{ChatID: chatID, BalanceKobo: 0, CreatedAt: now, UpdatedAt: now}
	r.wallets[chatID] = w
	return w, nil
}

func (r *MemoryRepo) Get(ctx context.Context, chatID int64) (Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[chatID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (r *MemoryRepo) Apply(ctx context.Context, e Entry) (Entry, Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.wallets[e.ChatID]
	if !ok {
		return Entry{}, Wallet{}, ErrNotFound
	}

	for _, existing := range r.ledger {
		if existing.ChatID == e.ChatID && existing.IdempotencyKey == e.IdempotencyKey {
			return existing, w, nil
		}
	}

	if w.BalanceKobo+e.AmountKobo < 0 {
		return Entry{}, Wallet{}, ErrInsufficientFunds
	}

	r.ledger = append(r.ledger, e)
	w.BalanceKobo += e.AmountKobo
	w.UpdatedAt = e.CreatedAt
	r.wallets[e.ChatID] = w
	return e, w, nil
}

// Entries returns a copy of the ledger for assertions in tests.
func (r *MemoryRepo) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.ledger))
	copy(out, r.ledger)
	return out
}
