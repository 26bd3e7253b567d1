package session

import (
	"context"
	"sync"
	"time"
)

// IdleTimeout is how long a session may sit untouched before the sweeper
// destroys it.
const IdleTimeout = 30 * time.Minute

// Store abstracts session persistence so the machine can run against a
// process-local map or a distributed store without changing.
//
// The sweep never destroys a session mid-execute: execute deletes the session
// itself before any suspension point, so a swept session is always idle.
type Store interface {
	Get(ctx context.Context, chatID int64) (Session, bool, error)
	Put(ctx context.Context, s Session) error
	Delete(ctx context.Context, chatID int64) error
	Sweep(ctx context.Context, olderThan time.Duration, now time.Time) (int, error)
}

// MemoryStore is the default process-local store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: map[int64]Session{}}
}

func (m *MemoryStore) Get(ctx context.Context, chatID int64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	return s, ok, nil
}

func (m *MemoryStore) Put(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ChatID] = s
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

func (m *MemoryStore) Sweep(ctx context.Context, olderThan time.Duration, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActive) > olderThan {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// RunSweeper deletes idle sessions on a fixed period until ctx is done.
func RunSweeper(ctx context.Context, store Store, period time.Duration) {
	if period <= 0 {
		period = 5 * time.Minute
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			_, _ = store.Sweep(ctx, IdleTimeout, now)
		}
	}
}
