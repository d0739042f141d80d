package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedTask struct {
	ID          int64   `json:"id"`
	Name        string  `json:"task_name"`
	Description *string `json:"task_descrip"`
	Status      *string `json:"task_status"`
}

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func newTestMultiLevel(t *testing.T, opts ...MultiLevelOption) (*MultiLevelCache, *miniredis.Miniredis) {
	t.Helper()
	client, mr := setupTestRedis(t)
	l1 := NewMemoryCache(time.Minute)
	c := NewMultiLevelCache(l1, NewRedisCache(client, "test:"), opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	status := "Created"
	require.NoError(t, c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "Buy milk", Status: &status}, time.Minute))

	var got cachedTask
	require.NoError(t, c.Get(ctx, "task:1", &got))
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "Buy milk", got.Name)
	assert.Nil(t, got.Description)
	assert.Equal(t, "Created", *got.Status)

	assert.ErrorIs(t, c.Get(ctx, "task:2", &got), ErrCacheMiss)
}

func TestMemoryCache_StoresSnapshot(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	tags := []string{"a", "b"}
	require.NoError(t, c.Set(ctx, "tags", tags, 0))
	tags[0] = "modified"

	var got []string
	require.NoError(t, c.Get(ctx, "tags", &got))
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", "v", 10*time.Millisecond))
	ok, _ := c.Exists(ctx, "short")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	var v string
	assert.ErrorIs(t, c.Get(ctx, "short", &v), ErrCacheMiss)
	ok, _ = c.Exists(ctx, "short")
	assert.False(t, ok)
}

func TestMemoryCache_EvictKeepsReplacedItem(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "task:1", "stale", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	// a concurrent Set lands between the expired read and the eviction
	require.NoError(t, c.Set(ctx, "task:1", "fresh", time.Minute))
	c.evictExpired("task:1", time.Now())

	var v string
	require.NoError(t, c.Get(ctx, "task:1", &v))
	assert.Equal(t, "fresh", v)

	require.NoError(t, c.Set(ctx, "task:2", "old", time.Millisecond))
	c.evictExpired("task:2", time.Now().Add(time.Second))
	assert.Equal(t, 1, c.Stats()["items"])
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	defer c.Close()
	ctx := context.Background()

	for _, k := range []string{"task:1", "task:2", "tasks:all"} {
		require.NoError(t, c.Set(ctx, k, k, time.Minute))
	}

	require.NoError(t, c.DeletePattern(ctx, "task:*"))
	assert.Equal(t, 1, c.Stats()["items"])

	require.NoError(t, c.DeletePattern(ctx, "*"))
	assert.Equal(t, 0, c.Stats()["items"])
}

func TestMatchPattern(t *testing.T) {
	tests := []struct {
		text, pattern string
		want          bool
	}{
		{"task:1", "*", true},
		{"task:1", "task:*", true},
		{"tasks:all", "task:*", false},
		{"tasks:all", "tasks:all", true},
		{"tasks:all", "tasks", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchPattern(tt.text, tt.pattern), "%s ~ %s", tt.text, tt.pattern)
	}
}

func TestMultiLevelCache_ReadThroughL2(t *testing.T) {
	c, mr := newTestMultiLevel(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "task:7", cachedTask{ID: 7, Name: "seven"}, time.Minute))
	assert.True(t, mr.Exists("test:task:7"))

	// drop L1 so the read must come from redis
	c.l1.Clear()

	var got cachedTask
	require.NoError(t, c.Get(ctx, "task:7", &got))
	assert.Equal(t, "seven", got.Name)

	ok, _ := c.l1.Exists(ctx, "task:7")
	assert.True(t, ok, "L2 hit should backfill L1")

	stats := c.GetMetrics().GetStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
}

func TestMultiLevelCache_Miss(t *testing.T) {
	c, _ := newTestMultiLevel(t)

	var got cachedTask
	err := c.Get(context.Background(), "task:404", &got)
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, int64(1), c.GetMetrics().GetStats().Misses)
}

func TestMultiLevelCache_DeletePattern(t *testing.T) {
	c, mr := newTestMultiLevel(t)
	ctx := context.Background()

	for _, k := range []string{"task:1", "task:2", "tasks:all"} {
		require.NoError(t, c.Set(ctx, k, k, time.Minute))
	}
	mr.Set("other:key", "untouched")

	require.NoError(t, c.DeletePattern(ctx, "task:*"))

	assert.False(t, mr.Exists("test:task:1"))
	assert.False(t, mr.Exists("test:task:2"))
	assert.True(t, mr.Exists("test:tasks:all"))
	assert.True(t, mr.Exists("other:key"))

	ok, err := c.Exists(ctx, "tasks:all")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMultiLevelCache_RedisDownDegradesToL1(t *testing.T) {
	c, mr := newTestMultiLevel(t, WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute}))
	ctx := context.Background()

	mr.Close()

	require.NoError(t, c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "local"}, time.Minute))
	assert.Equal(t, "open", c.GetCircuitBreaker().State())

	var got cachedTask
	require.NoError(t, c.Get(ctx, "task:1", &got))
	assert.Equal(t, "local", got.Name)

	// with the circuit open, L2 is skipped and a miss is a plain miss
	err := c.Get(ctx, "task:2", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	assert.Error(t, c.Health(ctx))
	assert.Positive(t, c.GetMetrics().GetStats().Errors)
}

func TestMultiLevelCache_FailedL2DeleteHidesStaleCopy(t *testing.T) {
	c, mr := newTestMultiLevel(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "old"}, time.Minute))
	require.NoError(t, c.Set(ctx, "task:2", cachedTask{ID: 2, Name: "old"}, time.Minute))

	mr.Close()
	assert.Error(t, c.Delete(ctx, "task:1"))
	assert.Error(t, c.DeletePattern(ctx, "task:*"))
	require.NoError(t, mr.Restart())
	require.True(t, mr.Exists("test:task:1"))
	require.True(t, mr.Exists("test:task:2"))

	var got cachedTask
	assert.ErrorIs(t, c.Get(ctx, "task:1", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "task:2", &got), ErrCacheMiss)
	exists, err := c.Exists(ctx, "task:1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 2, c.Stats()["tombstones"])

	require.NoError(t, c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "new"}, time.Minute))
	require.NoError(t, c.Get(ctx, "task:1", &got))
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, 1, c.Stats()["tombstones"])

	require.NoError(t, c.Delete(ctx, "task:1"))
	assert.False(t, mr.Exists("test:task:1"))
}

func TestMultiLevelCache_TombstoneExpires(t *testing.T) {
	c, mr := newTestMultiLevel(t, WithTombstoneTTL(20*time.Millisecond))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "old"}, time.Minute))

	mr.Close()
	assert.Error(t, c.Delete(ctx, "task:1"))
	require.NoError(t, mr.Restart())

	var got cachedTask
	assert.ErrorIs(t, c.Get(ctx, "task:1", &got), ErrCacheMiss)

	time.Sleep(40 * time.Millisecond)
	require.NoError(t, c.Get(ctx, "task:1", &got))
	assert.Equal(t, "old", got.Name)
	assert.Equal(t, 0, c.Stats()["tombstones"])
}

func TestMultiLevelCache_WithoutL2(t *testing.T) {
	rec := &fakeRecorder{}
	c := NewMultiLevelCache(NewMemoryCache(time.Minute), nil, WithRecorder(rec), WithL1TTL(time.Second))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", 42, 0))
	var v int
	require.NoError(t, c.Get(ctx, "k", &v))
	assert.Equal(t, 42, v)
	assert.NoError(t, c.Health(ctx))

	stats := c.Stats()
	assert.NotContains(t, stats, "l2")
	assert.NotEmpty(t, rec.ops)
}

func BenchmarkMultiLevelCache_L1Hit(b *testing.B) {
	c := NewMultiLevelCache(NewMemoryCache(time.Minute), nil)
	defer c.Close()
	ctx := context.Background()
	_ = c.Set(ctx, "task:1", cachedTask{ID: 1, Name: "bench"}, time.Minute)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var got cachedTask
		_ = c.Get(ctx, "task:1", &got)
	}
}
