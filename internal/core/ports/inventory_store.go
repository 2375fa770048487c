// internal/core/ports/inventory_store.go
package ports

import (
	"context"

	"github.com/ammerola/inventory-bot/internal/core/domain"
)

// InventoryStore owns all reads and writes of authoritative inventory state.
// This interface is implemented by the inventory application service.
type InventoryStore interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	AddProduct(ctx context.Context, p domain.Product) error
	AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	EditField(ctx context.Context, id string, field domain.ProductField, value string) (*domain.Product, error)

	Threshold(ctx context.Context) (int, error)
	SetThreshold(ctx context.Context, v int) error

	ListAdmins(ctx context.Context) ([]int64, error)
	AddAdmin(ctx context.Context, id int64) (bool, error)
	RemoveAdmin(ctx context.Context, id int64) error

	Snapshot(ctx context.Context) (*domain.Document, error)
}

// AuthorizationGate decides whether a requester holds admin rights
type AuthorizationGate interface {
	IsAdmin(ctx context.Context, requesterID int64) (bool, error)
}
