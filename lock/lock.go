// Package lock provides the per-user run lock. A user may only have one flow run at a
// time; with several bot replicas the lock must be shared, which the Redis locker does.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned by TryLock when another holder owns the key.
var ErrLocked = errors.New("lock is held")

// UnlockFunc releases a lock. Releasing a lock that expired and was taken by another
// holder is a no-op.
type UnlockFunc func(ctx context.Context) error

// Locker acquires named locks with a TTL.
type Locker interface {
	// Lock blocks until the key is acquired or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
	// TryLock acquires the key or returns ErrLocked immediately.
	TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

type memEntry struct {
	expires  time.Time // Zero means no expiry
	released chan struct{}
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Memory is a process-local Locker.
type Memory struct {
	mu   sync.Mutex
	held map[string]*memEntry
}

var _ Locker = (*Memory)(nil)

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]*memEntry)}
}

// TryLock implements Locker.
func (m *Memory) TryLock(_ context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	unlock, _, err := m.try(key, ttl)
	return unlock, err
}

// Lock implements Locker.
func (m *Memory) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	for {
		unlock, holder, err := m.try(key, ttl)
		if err == nil {
			return unlock, nil
		}

		if err := holder.wait(ctx); err != nil {
			return nil, err
		}
	}
}

// wait blocks until the entry is released or expires.
func (e *memEntry) wait(ctx context.Context) error {
	var expire <-chan time.Time
	if !e.expires.IsZero() {
		timer := time.NewTimer(time.Until(e.expires))
		defer timer.Stop()
		expire = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.released:
	case <-expire:
	}
	return nil
}

func (m *Memory) try(key string, ttl time.Duration) (UnlockFunc, *memEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if e, ok := m.held[key]; ok && !e.expired(now) {
		return nil, e, ErrLocked
	}

	e := &memEntry{released: make(chan struct{})}
	if ttl > 0 {
		e.expires = now.Add(ttl)
	}
	m.held[key] = e

	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.held[key] == e {
			delete(m.held, key)
			close(e.released)
		}
		return nil
	}, e, nil
}
