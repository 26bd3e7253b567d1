package session

import (
	"context"
	"sync"
)

// Locker serializes event handling per chat. Handlers can suspend on network
// calls mid-flow, so two events for the same chat arriving close together
// could otherwise interleave and fire two execute steps from one confirmation.
type Locker interface {
	// Acquire blocks until the chat's lock is held and returns the release func.
	Acquire(ctx context.Context, chatID int64) (release func(), err error)
}

// MemoryLocker is a keyed mutex. Entries are reference-counted so the map
// does not grow with every chat ever seen.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[int64]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: map[int64]*chatLock{}}
}

func (l *MemoryLocker) Acquire(ctx context.Context, chatID int64) (func(), error) {
	l.mu.Lock()
	cl, ok := l.locks[chatID]
	if !ok {
		cl = &chatLock{}
		l.locks[chatID] = cl
	}
	cl.refs++
	l.mu.Unlock()

	cl.mu.Lock()

	release := func() {
		cl.mu.Unlock()
		l.mu.Lock()
		cl.refs--
		if cl.refs == 0 {
			delete(l.locks, chatID)
		}
		l.mu.Unlock()
	}
	return release, nil
}
