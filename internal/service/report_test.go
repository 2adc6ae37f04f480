package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/repository"
)

func TestSalesReportAveragesPaidOrdersOnly(t *testing.T) {
	ctx := context.Background()
	f := newOrderFixture(t)
	cheap := seedProduct(t, f.store, "Sticker", "5.01", 50)

	place := func(productID int64, qty int) *repository.Order {
		order, err := f.orders.PlaceOrder(ctx, PlaceOrderInput{
			UserID:            f.user.ID,
			Items:             []OrderItemInput{{ProductID: productID, Quantity: qty}},
			ShippingAddressID: int64Ptr(f.address.ID),
		})
		require.NoError(t, err)
		return order
	}
	a := place(f.mug.ID, 1) // 10.00
	b := place(f.mug.ID, 2) // 20.00
	c := place(cheap.ID, 1) // 5.01
	place(f.tee.ID, 7)      // 35.00, never paid
	for _, o := range []*repository.Order{a, b, c} {
		_, err := f.orders.MarkOrderAsPaid(ctx, o.ID, "", "")
		require.NoError(t, err)
	}
	_, err := f.orders.UpdateOrderStatus(ctx, c.ID, repository.OrderShipped)
	require.NoError(t, err)

	report, err := NewReportService(f.store).Sales(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 4, report.TotalOrders)
	assert.EqualValues(t, 3, report.PaidOrders)
	requireMoney(t, "35.01", report.TotalRevenue)
	requireMoney(t, "11.67", report.AvgOrderValue)
	assert.EqualValues(t, 2, report.StatusDistribution[repository.OrderProcessing])
	assert.EqualValues(t, 1, report.StatusDistribution[repository.OrderShipped])
	assert.EqualValues(t, 1, report.StatusDistribution[repository.OrderPending])
}

func TestSalesReportWithoutPaidOrders(t *testing.T) {
	report, err := NewReportService(newTestStore(t)).Sales(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.TotalOrders)
	requireMoney(t, "0", report.AvgOrderValue)
	requireMoney(t, "0", report.TotalRevenue)
}

func TestInventoryReportAndDashboard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedUser(t, store, "lena")
	seedProduct(t, store, "Pen", "1.50", 10) // 15.00
	seedProduct(t, store, "Pad", "3.25", 2)  // 6.50, low
	seedProduct(t, store, "Ink", "12.00", 0) // 0.00, low
	_, err := NewCategoryService(store, nil).Create(ctx, CategoryInput{Name: "Office"})
	require.NoError(t, err)
	reports := NewReportService(store)

	inv, err := reports.Inventory(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, inv.TotalProducts)
	assert.EqualValues(t, 12, inv.TotalUnits)
	requireMoney(t, "21.50", inv.TotalValue)
	assert.EqualValues(t, 2, inv.LowStockItems)

	dash, err := reports.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, DashboardStats{
		TotalProducts:   3,
		TotalUsers:      1,
		TotalCategories: 1,
		TotalOrders:     0,
		LowStockItems:   2,
	}, *dash)
}

func TestRecentProductsDefaultsToFive(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		seedProduct(t, store, name, "1.00", 1)
	}
	reports := NewReportService(store)

	recent, err := reports.RecentProducts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, 5)

	recent, err = reports.RecentProducts(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	cats, err := reports.RecentCategories(ctx, -1)
	require.NoError(t, err)
	assert.Empty(t, cats)
}
