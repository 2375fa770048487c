// internal/core/services/inventory.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/ports"
)

// maxSaveAttempts bounds the load-mutate-save retries on a stale document
const maxSaveAttempts = 3

// InventoryService is the inventory store. Every operation loads the whole
// document, and every mutation rewrites it as one unit. Mutations are
// serialized by mu; versioned repositories additionally reject stale writers.
type InventoryService struct {
	repo   ports.DocumentRepository
	mu     sync.Mutex
	logger *slog.Logger
}

// Statically assert that *InventoryService implements the InventoryStore interface.
var _ ports.InventoryStore = (*InventoryService)(nil)

// NewInventoryService creates a new inventory service
func NewInventoryService(repo ports.DocumentRepository, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		repo:   repo,
		logger: logger.With(slog.String("service", "inventory")),
	}
}

// GetProduct returns a copy of the product with the given id
func (s *InventoryService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	i := doc.FindProduct(id)
	if i < 0 {
		return nil, fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
	}
	p := doc.Products[i]
	return &p, nil
}

// ListProducts returns every product in document order
func (s *InventoryService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Products, nil
}

// AddProduct creates a product, rejecting an id that is already taken
func (s *InventoryService) AddProduct(ctx context.Context, p domain.Product) error {
	p.ProductID = strings.TrimSpace(p.ProductID)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	err := s.mutate(ctx, "add_product", func(doc *domain.Document) error {
		if doc.FindProduct(p.ProductID) >= 0 {
			return fmt.Errorf("product %q: %w", p.ProductID, domain.ErrConflict)
		}
		doc.Products = append(doc.Products, p)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product added",
		slog.String("product_id", p.ProductID),
		slog.Int("quantity", p.Quantity))
	return nil
}

// AdjustQuantity adds delta to the product quantity, clamping the result at
// zero. An increase past math.MaxInt is rejected as a validation error.
func (s *InventoryService) AdjustQuantity(ctx context.Context, id string, delta int) (*domain.Product, error) {
	var updated domain.Product
	err := s.mutate(ctx, "adjust_quantity", func(doc *domain.Document) error {
		i := doc.FindProduct(id)
		if i < 0 {
			return fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
		}
		if delta > 0 && doc.Products[i].Quantity > math.MaxInt-delta {
			return domain.NewValidationError("amount", "would overflow the quantity")
		}
		q := doc.Products[i].Quantity + delta
		if q < 0 {
			q = 0
		}
		doc.Products[i].Quantity = q
		updated = doc.Products[i]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "quantity adjusted",
		slog.String("product_id", id),
		slog.Int("delta", delta),
		slog.Int("quantity", updated.Quantity))
	return &updated, nil
}

// DeleteProduct removes a product
func (s *InventoryService) DeleteProduct(ctx context.Context, id string) error {
	err := s.mutate(ctx, "delete_product", func(doc *domain.Document) error {
		i := doc.FindProduct(id)
		if i < 0 {
			return fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
		}
		doc.Products = append(doc.Products[:i], doc.Products[i+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// EditField changes one editable attribute of a product
func (s *InventoryService) EditField(ctx context.Context, id string, field domain.ProductField, value string) (*domain.Product, error) {
	if _, ok := domain.ParseProductField(string(field)); !ok {
		return nil, domain.NewValidationError("field", "is not editable")
	}

	var updated domain.Product
	err := s.mutate(ctx, "edit_product", func(doc *domain.Document) error {
		i := doc.FindProduct(id)
		if i < 0 {
			return fmt.Errorf("product %q: %w", id, domain.ErrNotFound)
		}
		if err := doc.Products[i].Apply(field, value); err != nil {
			return err
		}
		updated = doc.Products[i]
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product edited",
		slog.String("product_id", id),
		slog.String("field", string(field)))
	return &updated, nil
}

// Threshold returns the low stock threshold
func (s *InventoryService) Threshold(ctx context.Context) (int, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return doc.Settings.LowStockThreshold, nil
}

// SetThreshold changes the low stock threshold
func (s *InventoryService) SetThreshold(ctx context.Context, v int) error {
	if v < 0 {
		return domain.NewValidationError("threshold", "cannot be negative")
	}
	err := s.mutate(ctx, "set_threshold", func(doc *domain.Document) error {
		doc.Settings.LowStockThreshold = v
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "low stock threshold changed", slog.Int("threshold", v))
	return nil
}

// ListAdmins returns the admin registry in insertion order
func (s *InventoryService) ListAdmins(ctx context.Context) ([]int64, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Admins, nil
}

// AddAdmin appends id to the registry; added is false when it was already present
func (s *InventoryService) AddAdmin(ctx context.Context, id int64) (bool, error) {
	added := false
	err := s.mutate(ctx, "add_admin", func(doc *domain.Document) error {
		if doc.HasAdmin(id) {
			return errNoChange
		}
		doc.Admins = append(doc.Admins, id)
		added = true
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return false, err
	}

	if added {
		s.logger.InfoContext(ctx, "admin added", slog.Int64("admin_id", id))
	}
	return added, nil
}

// RemoveAdmin removes id from the registry. Removing an absent id or the last
// remaining admin is a guard violation and leaves the registry unchanged.
func (s *InventoryService) RemoveAdmin(ctx context.Context, id int64) error {
	err := s.mutate(ctx, "remove_admin", func(doc *domain.Document) error {
		idx := -1
		for i, a := range doc.Admins {
			if a == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("admin %d: %w: %w", id, domain.ErrGuardViolation, domain.ErrNotFound)
		}
		if len(doc.Admins) <= 1 {
			return fmt.Errorf("admin %d is the last admin: %w", id, domain.ErrGuardViolation)
		}
		doc.Admins = append(doc.Admins[:idx], doc.Admins[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "admin removed", slog.Int64("admin_id", id))
	return nil
}

// EnsureAdmins seeds the registry when it is empty. It returns how many
// admins were added.
func (s *InventoryService) EnsureAdmins(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	added := 0
	err := s.mutate(ctx, "ensure_admins", func(doc *domain.Document) error {
		if len(doc.Admins) > 0 {
			return errNoChange
		}
		for _, id := range ids {
			if !doc.HasAdmin(id) {
				doc.Admins = append(doc.Admins, id)
				added++
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoChange) {
		return 0, err
	}

	if added > 0 {
		s.logger.InfoContext(ctx, "bootstrap admins seeded", slog.Int("count", added))
	}
	return added, nil
}

// Snapshot returns a deep copy of the current document
func (s *InventoryService) Snapshot(ctx context.Context) (*domain.Document, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// errNoChange aborts a mutation without saving
var errNoChange = errors.New("no change")

func (s *InventoryService) read(ctx context.Context) (*domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.repo.Load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load document", slog.String("error", err.Error()))
		return nil, &domain.StorageError{Op: "load", Err: err}
	}
	return doc, nil
}

func (s *InventoryService) mutate(ctx context.Context, op string, fn func(doc *domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		doc, err := s.repo.Load(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to load document",
				slog.String("op", op),
				slog.String("error", err.Error()))
			return &domain.StorageError{Op: "load", Err: err}
		}

		if err := fn(doc); err != nil {
			return err
		}

		err = s.repo.Save(ctx, doc)
		if err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrStaleDocument) && attempt < maxSaveAttempts {
			s.logger.WarnContext(ctx, "document changed during update, retrying",
				slog.String("op", op),
				slog.Int("attempt", attempt))
			continue
		}

		s.logger.ErrorContext(ctx, "failed to save document",
			slog.String("op", op),
			slog.String("error", err.Error()))
		return &domain.StorageError{Op: op, Err: err}
	}
}
