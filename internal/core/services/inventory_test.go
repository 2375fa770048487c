// internal/core/services/inventory_test.go
package services_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/test/helpers"
	"github.com/ammerola/inventory-bot/test/mocks"
)

func newInventory(t *testing.T, doc *domain.Document) (*services.InventoryService, *helpers.MemoryRepository) {
	t.Helper()
	repo := helpers.NewMemoryRepository(doc)
	return services.NewInventoryService(repo, helpers.TestLogger()), repo
}

func TestInventoryService_AddProduct(t *testing.T) {
	tests := []struct {
		name        string
		existing    []domain.Product
		product     domain.Product
		wantErr     error
		wantInvalid bool
		wantCount   int
	}{
		{
			name:      "adds_new_product",
			product:   helpers.CreateTestProduct(),
			wantCount: 1,
		},
		{
			name:      "rejects_duplicate_id",
			existing:  []domain.Product{helpers.CreateTestProduct()},
			product:   helpers.CreateTestProduct(func(p *domain.Product) { p.CompanyName = "Other" }),
			wantErr:   domain.ErrConflict,
			wantCount: 1,
		},
		{
			name:        "rejects_negative_quantity",
			product:     helpers.CreateTestProduct(func(p *domain.Product) { p.Quantity = -1 }),
			wantInvalid: true,
		},
		{
			name:        "rejects_empty_id",
			product:     helpers.CreateTestProduct(func(p *domain.Product) { p.ProductID = "  " }),
			wantInvalid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := helpers.NewTestDocument(1)
			doc.Products = tt.existing
			svc, repo := newInventory(t, doc)

			err := svc.AddProduct(context.Background(), tt.product)

			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantInvalid:
				assert.True(t, domain.IsValidation(err))
			default:
				require.NoError(t, err)
			}
			assert.Len(t, repo.Document().Products, tt.wantCount)
		})
	}
}

func TestInventoryService_AdjustQuantityNeverNegative(t *testing.T) {
	tests := []struct {
		name  string
		delta int
		want  int
	}{
		{name: "add", delta: 5, want: 15},
		{name: "subtract", delta: -4, want: 6},
		{name: "subtract_to_zero", delta: -10, want: 0},
		{name: "oversubtract_is_clamped", delta: -1000, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := helpers.NewTestDocument(1)
			doc.Products = []domain.Product{helpers.CreateTestProduct()}
			svc, repo := newInventory(t, doc)

			p, err := svc.AdjustQuantity(context.Background(), "P100", tt.delta)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Quantity)
			assert.Equal(t, tt.want, repo.Document().Products[0].Quantity)
		})
	}

	t.Run("increase_past_max_int_rejected", func(t *testing.T) {
		doc := helpers.NewTestDocument(1)
		p := helpers.CreateTestProduct()
		p.Quantity = math.MaxInt - 1
		doc.Products = []domain.Product{p}
		svc, repo := newInventory(t, doc)

		_, err := svc.AdjustQuantity(context.Background(), "P100", 5)
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Equal(t, math.MaxInt-1, repo.Document().Products[0].Quantity)
		assert.Equal(t, 0, repo.Saves())
	})

	t.Run("unknown_product", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument(1))
		_, err := svc.AdjustQuantity(context.Background(), "nope", 1)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, 0, repo.Saves())
	})
}

func TestInventoryService_DeleteAndGet(t *testing.T) {
	doc := helpers.NewTestDocument(1)
	doc.Products = helpers.CreateTestProducts(3)
	svc, _ := newInventory(t, doc)
	ctx := context.Background()

	require.NoError(t, svc.DeleteProduct(ctx, "P002"))

	_, err := svc.GetProduct(ctx, "P002")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "P001", products[0].ProductID)
	assert.Equal(t, "P003", products[1].ProductID)

	assert.ErrorIs(t, svc.DeleteProduct(ctx, "P002"), domain.ErrNotFound)
}

func TestInventoryService_EditField(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		field     domain.ProductField
		value     string
		wantErr   error
		wantValid bool
		check     func(*testing.T, *domain.Product)
	}{
		{
			name:  "edit_price",
			id:    "P100",
			field: domain.FieldPrice,
			value: "7.25",
			check: func(t *testing.T, p *domain.Product) { assert.InDelta(t, 7.25, p.Price, 1e-9) },
		},
		{
			name:  "edit_category",
			id:    "P100",
			field: domain.FieldCategory,
			value: "walls",
			check: func(t *testing.T, p *domain.Product) { assert.Equal(t, "walls", p.Category) },
		},
		{
			name:      "invalid_price",
			id:        "P100",
			field:     domain.FieldPrice,
			value:     "abc",
			wantValid: true,
		},
		{
			name:      "quantity_not_editable",
			id:        "P100",
			field:     domain.ProductField("quantity"),
			value:     "1",
			wantValid: true,
		},
		{
			name:    "unknown_product",
			id:      "X",
			field:   domain.FieldCategory,
			value:   "walls",
			wantErr: domain.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := helpers.NewTestDocument(1)
			doc.Products = []domain.Product{helpers.CreateTestProduct()}
			svc, repo := newInventory(t, doc)

			p, err := svc.EditField(context.Background(), tt.id, tt.field, tt.value)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.wantValid:
				assert.True(t, domain.IsValidation(err))
				assert.Equal(t, 0, repo.Saves())
			default:
				require.NoError(t, err)
				tt.check(t, p)
			}
		})
	}
}

func TestInventoryService_Threshold(t *testing.T) {
	svc, _ := newInventory(t, helpers.NewTestDocument(1))
	ctx := context.Background()

	v, err := svc.Threshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLowStockThreshold, v)

	require.NoError(t, svc.SetThreshold(ctx, 3))
	v, err = svc.Threshold(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	assert.True(t, domain.IsValidation(svc.SetThreshold(ctx, -1)))
}

func TestInventoryService_Admins(t *testing.T) {
	ctx := context.Background()

	t.Run("add_is_idempotent", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument(1))

		added, err := svc.AddAdmin(ctx, 2)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = svc.AddAdmin(ctx, 2)
		require.NoError(t, err)
		assert.False(t, added)

		assert.Equal(t, []int64{1, 2}, repo.Document().Admins)
		assert.Equal(t, 1, repo.Saves())
	})

	t.Run("remove_last_admin_is_guarded", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument(1))

		err := svc.RemoveAdmin(ctx, 1)
		assert.ErrorIs(t, err, domain.ErrGuardViolation)
		assert.Equal(t, []int64{1}, repo.Document().Admins)
	})

	t.Run("remove_absent_admin", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument(1, 2))

		err := svc.RemoveAdmin(ctx, 9)
		assert.ErrorIs(t, err, domain.ErrGuardViolation)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, []int64{1, 2}, repo.Document().Admins)
	})

	t.Run("remove_keeps_order", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument(1, 2, 3))

		require.NoError(t, svc.RemoveAdmin(ctx, 2))
		assert.Equal(t, []int64{1, 3}, repo.Document().Admins)
	})

	t.Run("ensure_admins_only_seeds_empty_registry", func(t *testing.T) {
		svc, repo := newInventory(t, helpers.NewTestDocument())

		n, err := svc.EnsureAdmins(ctx, []int64{5, 6, 5})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = svc.EnsureAdmins(ctx, []int64{7})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, []int64{5, 6}, repo.Document().Admins)
	})
}

func TestInventoryService_ConcurrentDuplicateAdd(t *testing.T) {
	svc, repo := newInventory(t, helpers.NewTestDocument(1))
	ctx := context.Background()

	const writers = 8
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.AddProduct(ctx, helpers.CreateTestProduct())
		}(i)
	}
	wg.Wait()

	succeeded, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)
	assert.Len(t, repo.Document().Products, 1)
}

func TestInventoryService_ConcurrentAdjustmentsAreNotLost(t *testing.T) {
	doc := helpers.NewTestDocument(1)
	doc.Products = []domain.Product{helpers.CreateTestProduct(func(p *domain.Product) { p.Quantity = 0 })}
	svc, repo := newInventory(t, doc)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AdjustQuantity(ctx, "P100", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, repo.Document().Products[0].Quantity)
}

func TestInventoryService_StaleSaveIsRetried(t *testing.T) {
	svc, repo := newInventory(t, helpers.NewTestDocument(1))
	repo.SaveHook = func(attempt int) error {
		if attempt == 1 {
			return domain.ErrStaleDocument
		}
		return nil
	}

	require.NoError(t, svc.AddProduct(context.Background(), helpers.CreateTestProduct()))
	assert.Equal(t, 2, repo.Saves())
	assert.Len(t, repo.Document().Products, 1)
}

func TestInventoryService_StorageErrors(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*mocks.MockDocumentRepository)
		call       func(*services.InventoryService) error
		wantOp     string
	}{
		{
			name: "load_failure",
			setupMocks: func(m *mocks.MockDocumentRepository) {
				m.EXPECT().Load(gomock.Any()).Return(nil, errors.New("disk unavailable"))
			},
			call: func(s *services.InventoryService) error {
				_, err := s.GetProduct(context.Background(), "P100")
				return err
			},
			wantOp: "load",
		},
		{
			name: "save_failure",
			setupMocks: func(m *mocks.MockDocumentRepository) {
				m.EXPECT().Load(gomock.Any()).Return(helpers.NewTestDocument(1), nil)
				m.EXPECT().Save(gomock.Any(), gomock.Any()).Return(errors.New("read-only file system"))
			},
			call: func(s *services.InventoryService) error {
				return s.SetThreshold(context.Background(), 4)
			},
			wantOp: "set_threshold",
		},
		{
			name: "stale_after_all_attempts",
			setupMocks: func(m *mocks.MockDocumentRepository) {
				m.EXPECT().Load(gomock.Any()).
					DoAndReturn(func(context.Context) (*domain.Document, error) {
						return helpers.NewTestDocument(1), nil
					}).
					Times(3)
				m.EXPECT().Save(gomock.Any(), gomock.Any()).Return(domain.ErrStaleDocument).Times(3)
			},
			call: func(s *services.InventoryService) error {
				_, err := s.AddAdmin(context.Background(), 2)
				return err
			},
			wantOp: "add_admin",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := mocks.NewMockDocumentRepository(ctrl)
			tt.setupMocks(repo)

			svc := services.NewInventoryService(repo, helpers.TestLogger())
			err := tt.call(svc)

			var se *domain.StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantOp, se.Op)
		})
	}
}

func TestInventoryService_SnapshotIsACopy(t *testing.T) {
	doc := helpers.NewTestDocument(1)
	doc.Products = []domain.Product{helpers.CreateTestProduct()}
	svc, repo := newInventory(t, doc)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	snap.Products[0].Quantity = 999

	assert.Equal(t, 10, repo.Document().Products[0].Quantity)
}
