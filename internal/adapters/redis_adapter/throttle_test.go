// internal/adapters/redis_adapter/throttle_test.go
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

func TestThrottle_Allow(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		events  int
		allowed int
	}{
		{name: "under_limit", limit: 5, events: 3, allowed: 3},
		{name: "at_limit", limit: 3, events: 3, allowed: 3},
		{name: "over_limit", limit: 2, events: 5, allowed: 2},
		{name: "zero_limit_disables", limit: 0, events: 10, allowed: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, _ := newCache(t)
			throttle := redis_a.NewThrottle(cache, tt.limit, time.Minute, helpers.TestLogger())

			allowed := 0
			for i := 0; i < tt.events; i++ {
				ok, err := throttle.Allow(context.Background(), 42)
				require.NoError(t, err)
				if ok {
					allowed++
				}
			}
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestThrottle_WindowResets(t *testing.T) {
	ctx := context.Background()
	cache, tr := newCache(t)
	throttle := redis_a.NewThrottle(cache, 1, time.Minute, helpers.TestLogger())

	ok, err := throttle.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = throttle.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = throttle.Allow(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok, "requesters are counted separately")

	tr.Server.FastForward(61 * time.Second)

	ok, err = throttle.Allow(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}
