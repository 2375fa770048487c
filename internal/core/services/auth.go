// internal/core/services/auth.go
package services

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// AdminGate answers admin checks against the live registry. Nothing is cached:
// the registry is re-read on every call.
type AdminGate struct {
	store  ports.InventoryStore
	logger *slog.Logger
}

var _ ports.AuthorizationGate = (*AdminGate)(nil)

// NewAdminGate creates a new admin gate
func NewAdminGate(store ports.InventoryStore, logger *slog.Logger) *AdminGate {
	return &AdminGate{
		store:  store,
		logger: logger.With(slog.String("service", "auth")),
	}
}

// IsAdmin reports whether requesterID is in the admin registry
func (g *AdminGate) IsAdmin(ctx context.Context, requesterID int64) (bool, error) {
	admins, err := g.store.ListAdmins(ctx)
	if err != nil {
		return false, err
	}
	ok := slices.Contains(admins, requesterID)
	if !ok {
		g.logger.DebugContext(ctx, "requester is not an admin", slog.Int64("requester_id", requesterID))
	}
	return ok, nil
}
