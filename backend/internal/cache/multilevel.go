package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MultiLevelCache reads through an in-process L1 to an optional redis L2.
// L2 failures are counted and swallowed so a redis outage degrades to
// L1-only caching instead of failing requests.
//
// A key (or pattern) whose L2 delete failed is tombstoned: reads skip L2 for
// it until an L2 write for the key succeeds or the tombstone TTL passes, so a
// stale redis copy is never served back after an invalidation.
type MultiLevelCache struct {
	l1             *MemoryCache
	l2             *RedisCache
	l1TTL          time.Duration
	metrics        *CacheMetrics
	circuitBreaker *CircuitBreaker

	tombstoneTTL time.Duration
	mu           sync.Mutex
	tombstones   map[string]time.Time
}

type MultiLevelOption func(*MultiLevelCache)

func WithL1TTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) { c.l1TTL = ttl }
}

func WithRecorder(r Recorder) MultiLevelOption {
	return func(c *MultiLevelCache) { c.metrics = NewCacheMetrics(r) }
}

func WithCircuitBreaker(config CircuitBreakerConfig) MultiLevelOption {
	return func(c *MultiLevelCache) { c.circuitBreaker = NewCircuitBreaker(config) }
}

// WithTombstoneTTL should be at least the longest TTL written to L2.
func WithTombstoneTTL(ttl time.Duration) MultiLevelOption {
	return func(c *MultiLevelCache) {
		if ttl > 0 {
			c.tombstoneTTL = ttl
		}
	}
}

// NewMultiLevelCache takes ownership of l1 and l2; l2 may be nil.
func NewMultiLevelCache(l1 *MemoryCache, l2 *RedisCache, opts ...MultiLevelOption) *MultiLevelCache {
	c := &MultiLevelCache{
		l1:             l1,
		l2:             l2,
		l1TTL:          time.Minute,
		metrics:        NewCacheMetrics(nil),
		circuitBreaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		tombstoneTTL:   5 * time.Minute,
		tombstones:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MultiLevelCache) l1Duration(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < c.l1TTL {
		return ttl
	}
	return c.l1TTL
}

func (c *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, c.l1Duration(ttl)); err != nil {
		c.metrics.RecordError("set")
		return err
	}
	c.metrics.RecordSet()

	if c.l2 != nil {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.Set(ctx, key, value, ttl)
		})
		if err != nil {
			c.metrics.RecordError("set")
		} else {
			c.clearTombstone(key)
		}
	}

	return nil
}

func (c *MultiLevelCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := c.l1.Get(ctx, key, dest)
	if err == nil {
		c.metrics.RecordHit()
		return nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		c.metrics.RecordError("get")
		return err
	}

	if c.l2 != nil && !c.tombstoned(key) {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.Get(ctx, key, dest)
		})
		switch {
		case err == nil:
			_ = c.l1.Set(ctx, key, dest, c.l1TTL)
			c.metrics.RecordHit()
			return nil
		case !errors.Is(err, ErrCacheMiss):
			c.metrics.RecordError("get")
		}
	}

	c.metrics.RecordMiss()
	return ErrCacheMiss
}

func (c *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = c.l1.Delete(ctx, key)
	c.metrics.RecordDelete()

	if c.l2 != nil {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.Delete(ctx, key)
		})
		if err != nil {
			c.metrics.RecordError("delete")
			c.tombstone(key)
			return err
		}
		c.clearTombstone(key)
	}

	return nil
}

func (c *MultiLevelCache) DeletePattern(ctx context.Context, pattern string) error {
	_ = c.l1.DeletePattern(ctx, pattern)
	c.metrics.RecordDelete()

	if c.l2 != nil {
		err := c.circuitBreaker.Execute(func() error {
			return c.l2.DeletePattern(ctx, pattern)
		})
		if err != nil {
			c.metrics.RecordError("delete")
			c.tombstone(pattern)
			return err
		}
		c.clearTombstone(pattern)
	}

	return nil
}

func (c *MultiLevelCache) Exists(ctx context.Context, key string) (bool, error) {
	if ok, _ := c.l1.Exists(ctx, key); ok {
		return true, nil
	}

	if c.l2 != nil && !c.tombstoned(key) {
		var found bool
		err := c.circuitBreaker.Execute(func() error {
			var err error
			found, err = c.l2.Exists(ctx, key)
			return err
		})
		return found, err
	}

	return false, nil
}

func (c *MultiLevelCache) Stats() map[string]interface{} {
	stats := map[string]interface{}{
		"l1":               c.l1.Stats(),
		"metrics":          c.metrics.GetStats(),
		"hit_rate_percent": c.metrics.HitRate(),
		"circuit_breaker":  c.circuitBreaker.GetStats(),
		"tombstones":       c.tombstoneCount(),
	}
	if c.l2 != nil {
		stats["l2"] = c.l2.Stats()
	}
	return stats
}

func (c *MultiLevelCache) Health(ctx context.Context) error {
	if c.l2 != nil {
		return c.l2.Health(ctx)
	}
	return nil
}

func (c *MultiLevelCache) Close() error {
	_ = c.l1.Close()
	if c.l2 != nil {
		return c.l2.Close()
	}
	return nil
}

func (c *MultiLevelCache) GetMetrics() *CacheMetrics {
	return c.metrics
}

func (c *MultiLevelCache) GetCircuitBreaker() *CircuitBreaker {
	return c.circuitBreaker
}

func (c *MultiLevelCache) tombstone(keyOrPattern string) {
	c.mu.Lock()
	c.tombstones[keyOrPattern] = time.Now().Add(c.tombstoneTTL)
	c.mu.Unlock()
}

func (c *MultiLevelCache) clearTombstone(key string) {
	c.mu.Lock()
	delete(c.tombstones, key)
	c.mu.Unlock()
}

// tombstoned reports whether key or a pattern covering it is tombstoned,
// dropping expired tombstones on the way.
func (c *MultiLevelCache) tombstoned(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tombstones) == 0 {
		return false
	}

	now := time.Now()
	found := false
	for k, until := range c.tombstones {
		if now.After(until) {
			delete(c.tombstones, k)
			continue
		}
		if k == key || (strings.Contains(k, "*") && matchPattern(key, k)) {
			found = true
		}
	}
	return found
}

func (c *MultiLevelCache) tombstoneCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tombstones)
}
