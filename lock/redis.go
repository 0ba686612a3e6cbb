package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPollInterval is how often Redis.Lock retries a held key.
const DefaultPollInterval = 100 * time.Millisecond

// unlockScript deletes the key only while it still holds our token.
var unlockScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Redis is a Locker shared by every process using the same Redis.
// Keys are stored as prefix + "lock:" + key with SET NX PX.
type Redis struct {
	client backend.UniversalClient
	prefix string
	poll   time.Duration
}

var _ Locker = (*Redis)(nil)

// NewRedis creates a Redis locker.
func NewRedis(client backend.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, poll: DefaultPollInterval}
}

// WithPollInterval changes how often Lock retries.
func (l *Redis) WithPollInterval(d time.Duration) *Redis {
	if d > 0 {
		l.poll = d
	}
	return l
}

func (l *Redis) key(key string) string {
	return l.prefix + "lock:" + key
}

// TryLock implements Locker.
func (l *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.key(key)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error acquiring lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		return unlockScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}, nil
}

// Lock implements Locker by polling TryLock.
func (l *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		unlock, err := l.TryLock(ctx, key, ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
