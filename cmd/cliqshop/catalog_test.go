package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/bootstrap"
	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/repository/sqlite"
	"github.com/cliqshop/shop/internal/service"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := bootstrap.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrations.Up(context.Background(), db)
	require.NoError(t, err)
	return sqlite.NewStore(db)
}

const seedYAML = `
categories:
  - name: Electronics
    description: Gadgets
  - name: Books
products:
  - name: Headphones
    price: "59.90"
    category: electronics
    stock: 12
  - name: Go in Practice
    price: "35"
    category: Books
    stock: 3
  - name: Gift Card
    price: "10.00"
`

func TestImportCatalogCreatesCategoriesProductsAndStock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	categories := service.NewCategoryService(store, nil)
	products := service.NewProductService(service.ProductDeps{Store: store, LowThreshold: 5})

	res, err := importCatalog(ctx, strings.NewReader(seedYAML), store, categories, products)
	require.NoError(t, err)
	assert.Equal(t, importResult{CategoriesCreated: 2, ProductsCreated: 3}, res)

	list, err := store.Products().List(ctx, repository.ProductFilter{Name: "headphones"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "59.90", list[0].Price.StringFixed(2))
	assert.Equal(t, "Electronics", list[0].CategoryName)

	inv, err := store.Inventory().FindByProduct(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 12, inv.Quantity)

	// Re-running reuses categories by name.
	res, err = importCatalog(ctx, strings.NewReader(seedYAML), store, categories, products)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CategoriesReused)
	assert.Equal(t, 0, res.CategoriesCreated)
}

func TestImportCatalogRejectsBadInputBeforeWritingProducts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	categories := service.NewCategoryService(store, nil)
	products := service.NewProductService(service.ProductDeps{Store: store})

	_, err := importCatalog(ctx, strings.NewReader(`
products:
  - name: Lamp
    price: "12.00"
  - name: Chair
    price: twelve
`), store, categories, products)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid price")

	_, err = importCatalog(ctx, strings.NewReader(`
products:
  - name: Lamp
    price: "12.00"
    category: Furniture
`), store, categories, products)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown category")

	count, err := store.Products().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportCatalogEmptyFile(t *testing.T) {
	store := newTestStore(t)
	res, err := importCatalog(context.Background(), strings.NewReader(""), store,
		service.NewCategoryService(store, nil), service.NewProductService(service.ProductDeps{Store: store}))
	require.NoError(t, err)
	assert.Equal(t, importResult{}, res)
}
