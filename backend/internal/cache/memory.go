package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

type MemoryCache struct {
	mu        sync.RWMutex
	items     map[string]memoryItem
	stop      chan struct{}
	closeOnce sync.Once
}

type memoryItem struct {
	data       []byte
	expiration time.Time
}

func (i memoryItem) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryCache starts a janitor that evicts expired items every interval
// until Close is called.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &MemoryCache{
		items: make(map[string]memoryItem),
		stop:  make(chan struct{}),
	}

	go c.cleanup(cleanupInterval)

	return c
}

// Set stores a JSON snapshot of value, so later mutations by the caller do
// not leak into the cache. A zero ttl never expires.
func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}

	item := memoryItem{data: data}
	if ttl > 0 {
		item.expiration = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return ErrCacheMiss
	}
	if item.expired(time.Now()) {
		c.evictExpired(key, time.Now())
		return ErrCacheMiss
	}

	if err := json.Unmarshal(item.data, dest); err != nil {
		return fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return nil
}

// evictExpired re-reads key under the write lock, since a Set may have
// replaced the item after the caller saw it expire.
func (c *MemoryCache) evictExpired(key string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok && item.expired(now) {
		delete(c.items, key)
	}
}

func (c *MemoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	return ok && !item.expired(time.Now()), nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) DeletePattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.items {
		if matchPattern(key, pattern) {
			delete(c.items, key)
		}
	}
	return nil
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
}

func (c *MemoryCache) Stats() map[string]interface{} {
	c.mu.RLock()
	count := len(c.items)
	c.mu.RUnlock()

	return map[string]interface{}{
		"items": count,
		"type":  "memory",
	}
}

func (c *MemoryCache) Health(context.Context) error {
	return nil
}

func (c *MemoryCache) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryCache) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if item.expired(now) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// matchPattern supports the subset of redis glob syntax the services use:
// "*" alone or as a trailing wildcard.
func matchPattern(text, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(text, prefix)
	}
	return text == pattern
}
