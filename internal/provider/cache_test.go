package provider

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(ttl time.Duration, max int) (*TTLCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)}
	cache := NewTTLCache(ttl, max)
	cache.now = clock.Now
	return cache, clock
}

func TestCacheKeyIgnoresParamOrder(t *testing.T) {
	a := url.Values{}
	a.Set("ll", "37.7749,-122.4194")
	a.Set("radius", "8047")

	b := url.Values{}
	b.Set("radius", "8047")
	b.Set("ll", "37.7749,-122.4194")

	assert.Equal(t, CacheKey("places/search", a), CacheKey("places/search", b))
	assert.NotEqual(t, CacheKey("places/search", a), CacheKey("places/other", a))

	b.Set("radius", "100")
	assert.NotEqual(t, CacheKey("places/search", a), CacheKey("places/search", b))
}

func TestTTLCacheExpiresLazily(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache(time.Hour, 10)

	cache.Set(ctx, "k", []byte("v"))
	got, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	clock.Advance(59 * time.Minute)
	_, ok = cache.Get(ctx, "k")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	assert.Equal(t, 1, cache.Len(), "expired entries stay until read")
	_, ok = cache.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestTTLCacheBounded(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache(time.Hour, 3)

	for i := 0; i < 3; i++ {
		cache.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
		clock.Advance(time.Second)
	}
	cache.Set(ctx, "k3", []byte("v"))

	assert.Equal(t, 3, cache.Len())
	_, ok := cache.Get(ctx, "k0")
	assert.False(t, ok, "oldest entry evicted")
	_, ok = cache.Get(ctx, "k3")
	assert.True(t, ok)

	// overwriting an existing key never evicts
	cache.Set(ctx, "k3", []byte("v2"))
	assert.Equal(t, 3, cache.Len())
}

func TestTTLCacheSweepsExpiredBeforeEvicting(t *testing.T) {
	ctx := context.Background()
	cache, clock := newTestCache(time.Minute, 2)

	cache.Set(ctx, "old", []byte("v"))
	clock.Advance(30 * time.Second)
	cache.Set(ctx, "young", []byte("v"))
	clock.Advance(45 * time.Second)

	cache.Set(ctx, "new", []byte("v"))

	_, ok := cache.Get(ctx, "young")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "new")
	assert.True(t, ok)
}

func TestTTLCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	cache := NewTTLCache(time.Hour, 64)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%100)
				cache.Set(ctx, key, []byte(key))
				if v, ok := cache.Get(ctx, key); ok {
					assert.Equal(t, key, string(v))
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, cache.Len(), 64)
}

func TestTieredBackfillsLocal(t *testing.T) {
	ctx := context.Background()
	local := NewTTLCache(time.Hour, 10)
	shared := NewTTLCache(time.Hour, 10)
	tiered := Tiered{Local: local, Shared: shared}

	shared.Set(ctx, "k", []byte("from-shared"))

	got, ok := tiered.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "from-shared", string(got))

	got, ok = local.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "from-shared", string(got))

	tiered.Set(ctx, "other", []byte("x"))
	_, ok = shared.Get(ctx, "other")
	assert.True(t, ok)

	_, ok = Tiered{Local: NewTTLCache(time.Hour, 1)}.Get(ctx, "missing")
	assert.False(t, ok)
}
