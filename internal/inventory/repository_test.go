package inventory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/KalilovM/topshopes-backend/internal/inventory"
	"github.com/KalilovM/topshopes-backend/pkg/db/dbtest"
	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	"github.com/KalilovM/topshopes-backend/pkg/enums"
)

func TestDecrementStockGuardsAgainstOversell(t *testing.T) {
	client := dbtest.Open(t)
	repo := inventory.NewRepository(client.DB())
	ctx := context.Background()

	unit := &models.InventoryUnit{ShopID: uuid.New(), SKU: "tee-m", PriceCents: 1000, Stock: 5}
	require.NoError(t, repo.Create(ctx, unit))

	ok, err := repo.DecrementStock(ctx, unit.ID, 3)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.DecrementStock(ctx, unit.ID, 3)
	require.NoError(t, err)
	require.False(t, ok, "guard must reject a decrement larger than stock")

	ok, err = repo.DecrementStock(ctx, unit.ID, 2)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.FindByID(ctx, unit.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.Stock)
	require.Equal(t, enums.InventoryStatusUnavailable, stored.Status)
}

func TestDecrementKeepsStatusWhileStockRemains(t *testing.T) {
	client := dbtest.Open(t)
	repo := inventory.NewRepository(client.DB())
	ctx := context.Background()

	unit := &models.InventoryUnit{ShopID: uuid.New(), SKU: "cap", PriceCents: 700, Stock: 4}
	require.NoError(t, repo.Create(ctx, unit))

	ok, err := repo.DecrementStock(ctx, unit.ID, 1)
	require.NoError(t, err)
	require.True(t, ok)

	stored, err := repo.FindByID(ctx, unit.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.Stock)
	require.Equal(t, enums.InventoryStatusAvailable, stored.Status)
}

func TestFindByIDMissing(t *testing.T) {
	client := dbtest.Open(t)
	repo := inventory.NewRepository(client.DB())

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.True(t, errors.Is(err, inventory.ErrNotFound))
}

func TestEmptyUnitIsAlwaysUnavailable(t *testing.T) {
	client := dbtest.Open(t)
	repo := inventory.NewRepository(client.DB())
	ctx := context.Background()

	unit := &models.InventoryUnit{ShopID: uuid.New(), SKU: "preorder", PriceCents: 900, Status: enums.InventoryStatusComingSoon}
	require.NoError(t, repo.Create(ctx, unit))
	stored, err := repo.FindByID(ctx, unit.ID)
	require.NoError(t, err)
	require.Equal(t, enums.InventoryStatusUnavailable, stored.Status)

	// the table rejects an empty unit in any other status
	raw := &models.InventoryUnit{ShopID: uuid.New(), SKU: "raw", PriceCents: 900, Status: enums.InventoryStatusComingSoon}
	require.Error(t, client.DB().Create(raw).Error)
}
