// internal/adapters/redis_adapter/throttle.go
package redis_a

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// Throttle is a fixed-window counter per requester
type Throttle struct {
	cache  ports.CacheRepository
	limit  int64
	window time.Duration
	logger *slog.Logger
}

var _ ports.Throttle = (*Throttle)(nil)

// NewThrottle allows limit events per requester in every window
func NewThrottle(cache ports.CacheRepository, limit int, window time.Duration, logger *slog.Logger) *Throttle {
	return &Throttle{
		cache:  cache,
		limit:  int64(limit),
		window: window,
		logger: logger.With(slog.String("component", "throttle")),
	}
}

// Allow counts one event and reports whether it is within the limit
func (t *Throttle) Allow(ctx context.Context, requesterID int64) (bool, error) {
	if t.limit <= 0 {
		return true, nil
	}

	key := BuildKey(PrefixThrottle, strconv.FormatInt(requesterID, 10))
	n, err := t.cache.Increment(ctx, key)
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := t.cache.Expire(ctx, key, t.window); err != nil {
			return false, err
		}
	}

	if n > t.limit {
		t.logger.WarnContext(ctx, "requester throttled",
			slog.Int64("requester_id", requesterID),
			slog.Int64("count", n))
		return false, nil
	}
	return true, nil
}
