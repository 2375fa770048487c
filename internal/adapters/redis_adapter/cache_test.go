// internal/adapters/redis_adapter/cache_test.go
package redis_a_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/inventory-bot/internal/adapters/redis_adapter"
	"github.com/ammerola/inventory-bot/test/helpers"
)

func newCache(t *testing.T) (*redis_a.Cache, *helpers.TestRedis) {
	t.Helper()
	tr := helpers.SetupTestRedis(t)
	return redis_a.NewCache(tr.Client, 5*time.Minute, helpers.TestLogger()), tr
}

func TestCache_SetAndGet(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	type pending struct {
		TaskID      string `json:"task_id"`
		RequestedBy int64  `json:"requested_by"`
	}

	t.Run("stores_and_retrieves_string", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test:string", "test value"))
		var got string
		require.NoError(t, cache.Get(ctx, "test:string", &got))
		assert.Equal(t, "test value", got)
	})

	t.Run("stores_and_retrieves_struct", func(t *testing.T) {
		want := pending{TaskID: "abc", RequestedBy: 7}
		require.NoError(t, cache.Set(ctx, "test:struct", want))
		var got pending
		require.NoError(t, cache.Get(ctx, "test:struct", &got))
		assert.Equal(t, want, got)
	})

	t.Run("missing_key_is_a_miss", func(t *testing.T) {
		var got string
		assert.ErrorIs(t, cache.Get(ctx, "test:absent", &got), redis_a.ErrCacheMiss)
	})
}

func TestCache_SetWithTTL(t *testing.T) {
	ctx := context.Background()
	cache, tr := newCache(t)

	require.NoError(t, cache.SetWithTTL(ctx, "ttl:test", "value", 10*time.Second))

	ttl, err := cache.TTL(ctx, "ttl:test")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, ttl)

	tr.Server.FastForward(11 * time.Second)

	var result string
	assert.ErrorIs(t, cache.Get(ctx, "ttl:test", &result), redis_a.ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	keys := []string{"del:1", "del:2", "del:3"}
	for _, key := range keys {
		require.NoError(t, cache.Set(ctx, key, "value"))
	}

	require.NoError(t, cache.Delete(ctx, keys...))
	require.NoError(t, cache.Delete(ctx))

	for _, key := range keys {
		var result string
		assert.ErrorIs(t, cache.Get(ctx, key, &result), redis_a.ErrCacheMiss)
	}
}

func TestCache_IncrementAndExpire(t *testing.T) {
	ctx := context.Background()
	cache, tr := newCache(t)

	val, err := cache.Increment(ctx, "counter:test")
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = cache.Increment(ctx, "counter:test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	require.NoError(t, cache.Expire(ctx, "counter:test", time.Second))
	tr.Server.FastForward(2 * time.Second)
	assert.False(t, tr.Server.Exists("counter:test"))
}

func TestCache_SetNX(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)

	ok, err := cache.SetNX(ctx, "setnx:test", "first", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "setnx:test", "second", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	var result string
	require.NoError(t, cache.Get(ctx, "setnx:test", &result))
	assert.Equal(t, "first", result)
}

func TestCache_PingFailsWhenServerIsDown(t *testing.T) {
	ctx := context.Background()
	cache, tr := newCache(t)

	require.NoError(t, cache.Ping(ctx))
	tr.Server.Close()
	assert.Error(t, cache.Ping(ctx))
}

func TestCache_BuildKey(t *testing.T) {
	tests := []struct {
		name     string
		prefix   redis_a.CacheKeyPrefix
		parts    []string
		expected string
	}{
		{
			name:     "delivery_key",
			prefix:   redis_a.PrefixDelivery,
			parts:    []string{"evt-1"},
			expected: "event:evt-1",
		},
		{
			name:     "throttle_key",
			prefix:   redis_a.PrefixThrottle,
			parts:    []string{"42"},
			expected: "rate:42",
		},
		{
			name:     "export_key",
			prefix:   redis_a.PrefixExport,
			parts:    []string{"report", "42"},
			expected: "export:report:42",
		},
		{
			name:     "no_parts",
			prefix:   redis_a.PrefixThrottle,
			parts:    []string{},
			expected: "rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redis_a.BuildKey(tt.prefix, tt.parts...))
		})
	}
}
