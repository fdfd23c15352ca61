package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/url"
	"sync"
	"time"

	"onthecheap/internal/metrics"
)

const (
	// DefaultCacheTTL bounds how long a provider response is reused.
	DefaultCacheTTL = time.Hour
	// DefaultCacheEntries bounds the in-process cache size.
	DefaultCacheEntries = 1024
)

// Cache stores raw provider response bodies. Stored slices must not be
// modified by callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
}

// CacheKey fingerprints a request by endpoint and its normalized parameters.
// url.Values.Encode sorts keys, so parameter order does not matter.
func CacheKey(endpoint string, params url.Values) string {
	sum := sha1.Sum([]byte(endpoint + "?" + params.Encode()))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	value   []byte
	stored  time.Time
	expires time.Time
}

// TTLCache is a bounded in-memory Cache. Entries expire lazily when they are
// next read; when the cache is full expired entries are swept and, if that
// frees nothing, the oldest entry is evicted.
type TTLCache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	now        func() time.Time
}

// NewTTLCache builds a TTLCache; non-positive arguments fall back to the
// defaults.
func NewTTLCache(ttl time.Duration, maxEntries int) *TTLCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	return &TTLCache{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]cacheEntry),
		now:        time.Now,
	}
}

// Get returns a live entry for key.
func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		metrics.CacheLookupsTotal.WithLabelValues("memory", "expired").Inc()
		return nil, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (c *TTLCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.makeRoomLocked(now)
	}
	c.entries[key] = cacheEntry{value: value, stored: now, expires: now.Add(c.ttl)}
}

// Len reports the number of stored entries, including expired ones not yet
// read.
func (c *TTLCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache) makeRoomLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
		first     = true
	)
	for key, entry := range c.entries {
		if first || entry.stored.Before(oldest) {
			oldestKey, oldest, first = key, entry.stored, false
		}
	}
	delete(c.entries, oldestKey)
}
