package provider

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"onthecheap/internal/logging"
	"onthecheap/internal/metrics"
)

// RedisCache shares provider responses between service instances. Redis
// errors are logged and treated as misses.
type RedisCache struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisCache stores entries under prefix with the given TTL.
func NewRedisCache(client redis.Cmdable, prefix string, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if prefix == "" {
		prefix = "onthecheap:provider"
	}
	return &RedisCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logging.WithComponent("provider_cache"),
	}
}

func (c *RedisCache) key(k string) string {
	return c.prefix + ":" + k
}

// Get reads key from Redis.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("redis cache read failed")
		}
		metrics.CacheLookupsTotal.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("redis", "hit").Inc()
	return value, true
}

// Set writes key to Redis with the cache TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis cache write failed")
	}
}

// Tiered consults a fast local cache before a shared one and back-fills the
// local tier on shared hits.
type Tiered struct {
	Local  Cache
	Shared Cache
}

// Get implements Cache.
func (t Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, ok := t.Local.Get(ctx, key); ok {
		return value, true
	}
	if t.Shared == nil {
		return nil, false
	}
	value, ok := t.Shared.Get(ctx, key)
	if ok {
		t.Local.Set(ctx, key, value)
	}
	return value, ok
}

// Set implements Cache.
func (t Tiered) Set(ctx context.Context, key string, value []byte) {
	t.Local.Set(ctx, key, value)
	if t.Shared != nil {
		t.Shared.Set(ctx, key, value)
	}
}
