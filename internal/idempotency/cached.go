package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "idempotency:"

// CachedLedger answers Has from Redis when it can. Only positive answers are
// cached; a recorded key never disappears, so a cached hit cannot go stale.
// Record always goes to the underlying ledger.
type CachedLedger struct {
	next   Ledger
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedLedger(next Ledger, rdb redis.Cmdable, ttl time.Duration, logger *zap.Logger) *CachedLedger {
	return &CachedLedger{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *CachedLedger) Has(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, cacheKeyPrefix+key).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	if err != nil {
		c.logger.Warn("Idempotency cache lookup failed, using database",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}

	has, err := c.next.Has(ctx, key)
	if err != nil || !has {
		return has, err
	}
	c.remember(ctx, key)
	return true, nil
}

func (c *CachedLedger) Record(ctx context.Context, key string) error {
	err := c.next.Record(ctx, key)
	if err == nil || err == ErrAlreadyExists {
		c.remember(ctx, key)
	}
	return err
}

func (c *CachedLedger) remember(ctx context.Context, key string) {
	if err := c.rdb.Set(ctx, cacheKeyPrefix+key, "1", c.ttl).Err(); err != nil {
		c.logger.Debug("Failed to cache idempotency key",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
	}
}
