package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const summaryGenerationKey = "taskweaver:summary:gen"

// SummaryCache 汇总结果缓存。所有写操作递增代数，旧代的 key 随 TTL 过期。
// rdb 为 nil 时所有操作都是空操作。
type SummaryCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewSummaryCache 创建汇总缓存
func NewSummaryCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *SummaryCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &SummaryCache{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *SummaryCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// Key resolves name to a key in the current generation. The same key must be used for the
// Load and Store of one computation, so a write that lands in between leaves the result in a
// generation nobody reads. ok is false when the cache is disabled or redis is unreachable.
func (c *SummaryCache) Key(ctx context.Context, name string) (key string, ok bool) {
	if !c.enabled() {
		return "", false
	}
	gen, err := c.rdb.Get(ctx, summaryGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Warn("summary cache unavailable", zap.Error(err))
		return "", false
	}
	return fmt.Sprintf("taskweaver:summary:%d:%s", gen, name), true
}

// Load decodes the value cached under key into dst and reports whether it was found.
func (c *SummaryCache) Load(ctx context.Context, key string, dst interface{}) bool {
	if !c.enabled() || key == "" {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("summary cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warn("summary cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Store caches value under key for the configured TTL.
func (c *SummaryCache) Store(ctx context.Context, key string, value interface{}) {
	if !c.enabled() || key == "" {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("summary cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("summary cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops every cached summary by moving to a new generation.
func (c *SummaryCache) Invalidate(ctx context.Context) {
	if !c.enabled() {
		return
	}
	if err := c.rdb.Incr(ctx, summaryGenerationKey).Err(); err != nil {
		c.logger.Warn("summary cache invalidate failed", zap.Error(err))
	}
}

// cached returns the cached value for name, computing and storing it on a miss.
func cached[T any](ctx context.Context, c *SummaryCache, name string, compute func() (T, error)) (T, error) {
	var v T
	key, ok := c.Key(ctx, name)
	if ok && c.Load(ctx, key, &v) {
		return v, nil
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if ok {
		c.Store(ctx, key, v)
	}
	return v, nil
}
