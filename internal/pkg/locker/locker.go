// Package locker serializes workflow cascades on the same post across
// processes.
package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockAcquire is returned when the lock cannot be acquired before the context ends
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// UnlockFunc releases a held lock
type UnlockFunc func(ctx context.Context) error

// Locker acquires named, expiring locks
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// Noop grants every lock immediately. It is used when a single process owns
// the store and the database row lock is sufficient.
type Noop struct{}

// Lock implements Locker
func (Noop) Lock(context.Context, string, time.Duration) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}

// release deletes the key only while it still holds our token
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

// Redis implements Locker with SET NX PX and a token-checked release
type Redis struct {
	client   redis.UniversalClient
	prefix   string
	interval time.Duration
}

// NewRedis creates a Redis locker whose keys are namespaced by prefix
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, interval: 50 * time.Millisecond}
}

// Lock polls until the key is free, ctx is done or Redis fails
func (l *Redis) Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error) {
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrLockAcquire, ctx.Err())
			}
			return nil, fmt.Errorf("redis error acquiring lock: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				return release.Run(ctx, l.client, []string{lockKey}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrLockAcquire, ctx.Err())
		case <-ticker.C:
		}
	}
}
