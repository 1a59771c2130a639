package settings

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	defaultCacheSize = 128
	defaultCacheTTL  = 5 * time.Minute
)

type cacheEntry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a bounded LRU whose entries expire after a TTL. Loads for the
// same key are serialised so a cold key hits the store once.
type Cache[V any] struct {
	mu  sync.Mutex
	lru *lru.Cache[string, cacheEntry[V]]
	ttl time.Duration
	now func() time.Time
}

// NewCache builds a cache. Zero values fall back to 128 entries and 5 minutes.
func NewCache[V any](size int, ttl time.Duration) (*Cache[V], error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	inner, err := lru.New[string, cacheEntry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("new lru: %w", err)
	}
	return &Cache[V]{lru: inner, ttl: ttl, now: time.Now}, nil
}

// TTL returns the default entry lifetime.
func (c *Cache[V]) TTL() time.Duration {
	return c.ttl
}

// GetOrRefresh returns the cached value for key while it is younger than ttl,
// otherwise calls load and stores its result. A failed load leaves the cache
// untouched. ttl <= 0 uses the cache default.
func (c *Cache[V]) GetOrRefresh(ctx context.Context, key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.lru.Get(key); ok && c.now().Sub(entry.storedAt) < ttl {
		return entry.value, nil
	}

	value, err := load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	c.lru.Add(key, cacheEntry[V]{value: value, storedAt: c.now()})
	return value, nil
}

// Invalidate drops key so the next read reloads it. It waits for a load in
// flight, so that load cannot store a value older than the write that
// triggered the invalidation.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// Purge drops every entry.
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
