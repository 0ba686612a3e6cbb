package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xVanfer/tg-flow/lock"
)

func newRedis(t *testing.T) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return lock.NewRedis(client, "tgflow:").WithPollInterval(5 * time.Millisecond), mr
}

func lockers(t *testing.T) map[string]lock.Locker {
	r, _ := newRedis(t)
	return map[string]lock.Locker{
		"memory": lock.NewMemory(),
		"redis":  r,
	}
}

func TestLocker_TryLock(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			unlock, err := l.TryLock(ctx, "user:1", time.Minute)
			require.NoError(t, err)

			_, err = l.TryLock(ctx, "user:1", time.Minute)
			assert.ErrorIs(t, err, lock.ErrLocked)

			other, err := l.TryLock(ctx, "user:2", time.Minute)
			require.NoError(t, err)
			require.NoError(t, other(ctx))

			require.NoError(t, unlock(ctx))
			again, err := l.TryLock(ctx, "user:1", time.Minute)
			require.NoError(t, err)
			assert.NoError(t, again(ctx))
		})
	}
}

func TestLocker_LockWaitsForRelease(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			unlock, err := l.TryLock(ctx, "user:1", time.Minute)
			require.NoError(t, err)

			go func() {
				time.Sleep(20 * time.Millisecond)
				_ = unlock(ctx)
			}()

			waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			next, err := l.Lock(waitCtx, "user:1", time.Minute)
			require.NoError(t, err)
			assert.NoError(t, next(ctx))
		})
	}
}

func TestLocker_LockCancelled(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := l.TryLock(ctx, "user:1", time.Minute)
			require.NoError(t, err)

			waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
			defer cancel()
			_, err = l.Lock(waitCtx, "user:1", time.Minute)
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestMemory_Expiry(t *testing.T) {
	l := lock.NewMemory()
	ctx := context.Background()

	stale, err := l.TryLock(ctx, "user:1", 10*time.Millisecond)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	fresh, err := l.Lock(waitCtx, "user:1", time.Minute)
	require.NoError(t, err, "an expired lock can be taken over")

	require.NoError(t, stale(ctx))
	_, err = l.TryLock(ctx, "user:1", time.Minute)
	assert.ErrorIs(t, err, lock.ErrLocked, "the stale holder cannot release the new lock")
	assert.NoError(t, fresh(ctx))
}

func TestRedis_Keys(t *testing.T) {
	l, mr := newRedis(t)
	ctx := context.Background()

	unlock, err := l.TryLock(ctx, "user:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("tgflow:lock:user:1"))
	assert.Equal(t, time.Minute, mr.TTL("tgflow:lock:user:1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("tgflow:lock:user:1"))
}

func TestRedis_StaleUnlockKeepsNewHolder(t *testing.T) {
	l, mr := newRedis(t)
	ctx := context.Background()

	stale, err := l.TryLock(ctx, "user:1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.TryLock(ctx, "user:1", time.Minute)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("tgflow:lock:user:1"))

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("tgflow:lock:user:1"))
}
