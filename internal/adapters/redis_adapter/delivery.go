// internal/adapters/redis_adapter/delivery.go
package redis_a

import (
	"context"
	"log/slog"
	"time"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// DeliveryGuard remembers processed event ids so a redelivered event is applied once
type DeliveryGuard struct {
	cache  ports.CacheRepository
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.DeliveryGuard = (*DeliveryGuard)(nil)

// NewDeliveryGuard creates a delivery guard that remembers ids for ttl
func NewDeliveryGuard(cache ports.CacheRepository, ttl time.Duration, logger *slog.Logger) *DeliveryGuard {
	return &DeliveryGuard{
		cache:  cache,
		ttl:    ttl,
		logger: logger.With(slog.String("component", "delivery_guard")),
	}
}

// FirstDelivery reports whether eventID is seen for the first time.
// An empty id cannot be tracked and always counts as first.
func (g *DeliveryGuard) FirstDelivery(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	first, err := g.cache.SetNX(ctx, BuildKey(PrefixDelivery, eventID), time.Now().Unix(), g.ttl)
	if err != nil {
		return false, err
	}
	if !first {
		g.logger.InfoContext(ctx, "duplicate delivery dropped", slog.String("event_id", eventID))
	}
	return first, nil
}

// Release forgets eventID, used when processing it failed and a redelivery
// should get another chance
func (g *DeliveryGuard) Release(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return g.cache.Delete(ctx, BuildKey(PrefixDelivery, eventID))
}
