package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gobwas/glob"
)

// MemoryCache is an in-process Cache used when Redis is disabled and in tests
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && c.now().After(item.expiresAt) {
		return nil, ErrCacheMiss
	}

	return item.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
	return nil
}

// DeleteByPattern matches keys like Redis SCAN MATCH: * and ? span any
// character including '/', and a backslash escapes the next one.
func (c *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid key pattern %q: %w", pattern, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.items {
		if matcher.Match(key) {
			delete(c.items, key)
		}
	}
	return nil
}

func (c *MemoryCache) Ping(_ context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]memoryItem)
	return nil
}
