package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/events"
)

func TestInventoryUpdateStockRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	product := seedProduct(t, store, "Lamp", "30.00", 4)
	pub := &recordingPublisher{}
	inventory := NewInventoryService(InventoryDeps{Store: store, Events: pub})

	inv, err := inventory.UpdateStock(ctx, product.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Quantity)
	assert.Equal(t, []string{events.StockLow}, pub.names())

	_, err = inventory.UpdateStock(ctx, product.ID, -2)
	require.ErrorIs(t, err, ErrInsufficientStock)

	inv, err = inventory.GetByProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Quantity)

	_, err = inventory.UpdateStock(ctx, 9999, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInventoryLowStockThreshold(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	lamp := seedProduct(t, store, "Lamp", "30.00", 10)
	desk := seedProduct(t, store, "Desk", "120.00", 1)
	inventory := NewInventoryService(InventoryDeps{Store: store, DefaultThreshold: 2})

	low, err := inventory.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, desk.ID, low[0].ProductID)

	isLow, err := inventory.IsLowStock(ctx, lamp.ID)
	require.NoError(t, err)
	assert.False(t, isLow)

	_, err = inventory.UpdateThreshold(ctx, lamp.ID, 10)
	require.NoError(t, err)
	isLow, err = inventory.IsLowStock(ctx, lamp.ID)
	require.NoError(t, err)
	assert.True(t, isLow, "quantity equal to threshold counts as low")

	_, err = inventory.UpdateThreshold(ctx, lamp.ID, -1)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestInventorySetQuantityAndLocation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	product := seedProduct(t, store, "Chair", "45.00", 0)
	inventory := NewInventoryService(InventoryDeps{Store: store})

	_, err := inventory.SetQuantity(ctx, product.ID, -5)
	require.ErrorIs(t, err, ErrInvalidArgument)

	inv, err := inventory.SetQuantity(ctx, product.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, inv.Quantity)

	inv, err = inventory.UpdateLocation(ctx, product.ID, " Aisle 4 ")
	require.NoError(t, err)
	assert.Equal(t, "Aisle 4", inv.Location)
}

func TestInventoryCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	product := seedProduct(t, store, "Shelf", "15.00", 3)
	inventory := NewInventoryService(InventoryDeps{Store: store})

	_, err := inventory.Create(ctx, InventoryInput{ProductID: product.ID, Quantity: 1})
	require.ErrorIs(t, err, ErrConflict)

	_, err = inventory.Create(ctx, InventoryInput{ProductID: 9999, Quantity: 1})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = inventory.Create(ctx, InventoryInput{ProductID: product.ID, Quantity: -1})
	require.ErrorIs(t, err, ErrInvalidArgument)

	inv, err := inventory.GetByProduct(ctx, product.ID)
	require.NoError(t, err)
	require.NoError(t, inventory.Delete(ctx, inv.ID))

	threshold := 9
	created, err := inventory.Create(ctx, InventoryInput{ProductID: product.ID, Quantity: 4, LowStockThreshold: &threshold, Location: "B2"})
	require.NoError(t, err)
	assert.Equal(t, 9, created.LowStockThreshold)
	assert.Equal(t, "Shelf", created.ProductName)
}
