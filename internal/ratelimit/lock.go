package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
)

var ErrLockBusy = errors.New("lock_busy")

type Locker struct {
	client *redislock.Client
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: redislock.New(client)}
}

// Lock obtains key for ttl, retrying for up to wait. The returned release
// function is safe to call after the lock expired.
func (l *Locker) Lock(ctx context.Context, key string, ttl, wait time.Duration) (func(context.Context) error, error) {
	if l == nil || l.client == nil {
		return nil, errors.New("lock client not configured")
	}
	if key == "" {
		return nil, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}

	opts := &redislock.Options{}
	if wait > 0 {
		backoff := 50 * time.Millisecond
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(backoff), int(wait/backoff))
	}

	lock, err := l.client.Obtain(ctx, key, ttl, opts)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLockBusy
		}
		return nil, err
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return err
		}
		return nil
	}, nil
}
