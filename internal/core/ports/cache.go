// internal/core/ports/cache.go
package ports

import (
	"context"
	"time"
)

// CacheRepository defines the key-value operations the bot needs from Redis
type CacheRepository interface {
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}

// DeliveryGuard reports whether an inbound event id was already processed.
// Release forgets a claimed id so a redelivery is processed again.
type DeliveryGuard interface {
	FirstDelivery(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Throttle limits how many events one requester may send per window
type Throttle interface {
	Allow(ctx context.Context, requesterID int64) (bool, error)
}
