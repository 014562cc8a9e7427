// Package cache holds read-through caches in front of the account store.
// A cache failure is logged and treated as a miss; it never fails a request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riteshkumar/peer-transfers/internal/models"
)

const (
	accountKeyPrefix    = "account:"
	generationKeyPrefix = "account-gen:"
)

// RedisAccountCache pairs every cached account with a generation counter
// that Invalidate bumps. A Set carries the generation observed before the
// database read and is dropped if an invalidation happened since, so a slow
// reader cannot put a pre-settlement balance back into the cache.
type RedisAccountCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisAccountCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisAccountCache {
	return &RedisAccountCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func accountKey(id string) string {
	return accountKeyPrefix + id
}

func generationKey(id string) string {
	return generationKeyPrefix + id
}

func (c *RedisAccountCache) Get(ctx context.Context, id string) (*models.Account, bool) {
	data, err := c.client.Get(ctx, accountKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Error("redis GET failed", "account_id", id, "error", err.Error())
		}
		return nil, false
	}

	account := &models.Account{}
	if err := json.Unmarshal(data, account); err != nil {
		c.logger.Warn("failed to unmarshal cached account", "account_id", id, "error", err.Error())
		return nil, false
	}
	return account, true
}

// Generation returns the current generation of id. ok is false when Redis
// cannot be reached, in which case the caller must not Set.
func (c *RedisAccountCache) Generation(ctx context.Context, id string) (int64, bool) {
	gen, err := c.client.Get(ctx, generationKey(id)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Error("redis GET generation failed", "account_id", id, "error", err.Error())
		return 0, false
	}
	return gen, true
}

// Set stores account if its generation is still generation.
func (c *RedisAccountCache) Set(ctx context.Context, account *models.Account, generation int64) {
	data, err := json.Marshal(account)
	if err != nil {
		c.logger.Error("failed to marshal account for caching", "account_id", account.ID, "error", err.Error())
		return
	}

	genKey := generationKey(account.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return redis.TxFailedErr
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accountKey(account.ID), data, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr):
		c.logger.Debug("skipped caching stale account", "account_id", account.ID)
	default:
		c.logger.Error("redis SET failed", "account_id", account.ID, "error", err.Error())
	}
}

func (c *RedisAccountCache) Invalidate(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(ctx, generationKey(id))
			pipe.Del(ctx, accountKey(id))
		}
		return nil
	})
	if err != nil {
		c.logger.Error("redis invalidate failed", "account_ids", ids, "error", err.Error())
	}
}

// NoopAccountCache is used when Redis is not configured.
type NoopAccountCache struct{}

func (NoopAccountCache) Get(context.Context, string) (*models.Account, bool) { return nil, false }
func (NoopAccountCache) Generation(context.Context, string) (int64, bool)    { return 0, false }
func (NoopAccountCache) Set(context.Context, *models.Account, int64)         {}
func (NoopAccountCache) Invalidate(context.Context, ...string)               {}
