package util

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper grants a scope+key pair once per TTL via Redis SETNX.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce reports whether this is the first time scope/key was seen
// within the TTL. A Redis failure allows the work to proceed; the database
// dedup key is the second line.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	redisKey := dedupKey(scope, key)

	ok, err := d.rdb.SetNX(ctx, redisKey, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicate",
			zap.String("scope", scope),
			zap.String("dedup_key", redisKey),
		)
	}
	return ok
}

// Release forgets scope/key so the next AcquireOnce succeeds. Callers use it
// when the work they acquired the key for did not happen.
func (d *Deduper) Release(ctx context.Context, scope, key string) {
	if err := d.rdb.Del(ctx, dedupKey(scope, key)).Err(); err != nil {
		d.logger.Error("Failed to release dedup key",
			zap.String("scope", scope),
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func dedupKey(scope, key string) string {
	return "dedup:" + scope + ":" + key
}
