// Package lock serialises settlement attempts on one transaction across
// service instances. The database's pending-only update remains the
// authority; the lock only keeps concurrent approvers from queueing on row
// locks inside Postgres.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotHeld = errors.New("lock was not held or already expired")

type Options struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		Expiry:     15 * time.Second,
		Tries:      32,
		RetryDelay: 100 * time.Millisecond,
	}
}

// expiryMargin is how long a lock outlives the longest work it guards.
const expiryMargin = 5 * time.Second

// OptionsFor returns DefaultOptions with the expiry raised so that a lock
// cannot lapse before work bounded by timeout has finished.
func OptionsFor(timeout time.Duration) Options {
	opts := DefaultOptions()
	if minExpiry := timeout + expiryMargin; opts.Expiry < minExpiry {
		opts.Expiry = minExpiry
	}
	return opts
}

type RedisLocker struct {
	redsync *redsync.Redsync
	opts    Options
	logger  *slog.Logger
}

func NewRedisLocker(client *redis.Client, opts Options, logger *slog.Logger) *RedisLocker {
	return &RedisLocker{
		redsync: redsync.New(goredis.NewPool(client)),
		opts:    opts,
		logger:  logger,
	}
}

// WithLock runs fn while holding the lock named key. The lock is released
// when fn returns, even if it panics.
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := l.redsync.NewMutex(key,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelay(l.opts.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	defer func() {
		// Release with a fresh context so a cancelled request still unlocks.
		unlockCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		ok, err := mutex.UnlockContext(unlockCtx)
		if err != nil {
			l.logger.Error("failed to release lock", "key", key, "error", err.Error())
			return
		}
		if !ok {
			l.logger.Warn("lock was not held at release", "key", key, "error", ErrLockNotHeld.Error())
		}
	}()

	return fn(ctx)
}

// NoopLocker runs fn directly. Used when Redis is not configured.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
