package user

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory user repository for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[int64]User
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: map[int64]User{}}
}

func (r *MemoryRepo) Find(ctx context.Context, chatID int64) (User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[chatID]
	return u, ok, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.users[u.ChatID]; ok {
		u.CreatedAt = existing.CreatedAt
	}
	r.users[u.ChatID] = u
	return u, nil
}
