// internal/core/services/auth_test.go
package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/inventory-bot/internal/core/domain"
	"github.com/ammerola/inventory-bot/internal/core/services"
	"github.com/ammerola/inventory-bot/test/helpers"
)

func TestAdminGate_IsAdmin(t *testing.T) {
	svc, _ := newInventory(t, helpers.NewTestDocument(1, 2))
	gate := services.NewAdminGate(svc, helpers.TestLogger())
	ctx := context.Background()

	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "first_admin", id: 1, want: true},
		{name: "second_admin", id: 2, want: true},
		{name: "stranger", id: 3, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := gate.IsAdmin(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdminGate_SeesRegistryChanges(t *testing.T) {
	svc, _ := newInventory(t, helpers.NewTestDocument(1, 2))
	gate := services.NewAdminGate(svc, helpers.TestLogger())
	ctx := context.Background()

	ok, err := gate.IsAdmin(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RemoveAdmin(ctx, 2))

	ok, err = gate.IsAdmin(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAdminGate_StorageFailure(t *testing.T) {
	repo := helpers.NewMemoryRepository(helpers.NewTestDocument(1))
	repo.LoadErr = errors.New("io error")
	gate := services.NewAdminGate(services.NewInventoryService(repo, helpers.TestLogger()), helpers.TestLogger())

	ok, err := gate.IsAdmin(context.Background(), 1)
	assert.False(t, ok)
	assert.True(t, domain.IsStorage(err))
}
