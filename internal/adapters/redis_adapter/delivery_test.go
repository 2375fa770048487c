// internal/adapters/redis_adapter/delivery_test.go
package redis_a_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redis_a "github.com/ammerola/inventory-bot/internal/adapters/redis_adapter"
	"github.com/ammerola/inventory-bot/test/helpers"
)

func TestDeliveryGuard_FirstDelivery(t *testing.T) {
	ctx := context.Background()
	cache, tr := newCache(t)
	guard := redis_a.NewDeliveryGuard(cache, time.Hour, helpers.TestLogger())

	first, err := guard.FirstDelivery(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := guard.FirstDelivery(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := guard.FirstDelivery(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)

	t.Run("empty_id_is_never_tracked", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			first, err := guard.FirstDelivery(ctx, "")
			require.NoError(t, err)
			assert.True(t, first)
		}
	})

	t.Run("ids_are_forgotten_after_ttl", func(t *testing.T) {
		tr.Server.FastForward(2 * time.Hour)
		first, err := guard.FirstDelivery(ctx, "evt-1")
		require.NoError(t, err)
		assert.True(t, first)
	})
}

func TestDeliveryGuard_Release(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	guard := redis_a.NewDeliveryGuard(cache, time.Hour, helpers.TestLogger())

	first, err := guard.FirstDelivery(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, first)

	require.NoError(t, guard.Release(ctx, "evt-1"))

	again, err := guard.FirstDelivery(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)

	t.Run("unknown_and_empty_ids", func(t *testing.T) {
		assert.NoError(t, guard.Release(ctx, "never-seen"))
		assert.NoError(t, guard.Release(ctx, ""))
	})
}

func TestDeliveryGuard_ConcurrentRedelivery(t *testing.T) {
	ctx := context.Background()
	cache, _ := newCache(t)
	guard := redis_a.NewDeliveryGuard(cache, time.Hour, helpers.TestLogger())

	var firsts atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := guard.FirstDelivery(ctx, "evt-race")
			assert.NoError(t, err)
			if first {
				firsts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), firsts.Load())
}

func TestDeliveryGuard_RedisDown(t *testing.T) {
	cache, tr := newCache(t)
	guard := redis_a.NewDeliveryGuard(cache, time.Hour, helpers.TestLogger())
	tr.Server.Close()

	_, err := guard.FirstDelivery(context.Background(), "evt-1")
	assert.Error(t, err)
}
