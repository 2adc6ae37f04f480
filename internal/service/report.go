package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/repository"
)

const defaultRecentCount = 5

// SalesReport summarizes orders. Revenue and average cover PAID orders only.
type SalesReport struct {
	TotalOrders        int64
	PaidOrders         int64
	TotalRevenue       decimal.Decimal
	AvgOrderValue      decimal.Decimal
	StatusDistribution map[repository.OrderStatus]int64
}

// InventoryReport values stock at current prices.
type InventoryReport struct {
	TotalProducts int64
	TotalUnits    int64
	TotalValue    decimal.Decimal
	LowStockItems int64
}

// DashboardStats are the admin landing page counters.
type DashboardStats struct {
	TotalProducts   int64
	TotalUsers      int64
	TotalCategories int64
	TotalOrders     int64
	LowStockItems   int64
}

// ReportService 提供管理端报表与仪表盘数据。
type ReportService interface {
	Sales(ctx context.Context) (*SalesReport, error)
	Inventory(ctx context.Context) (*InventoryReport, error)
	Dashboard(ctx context.Context) (*DashboardStats, error)
	// RecentProducts and RecentCategories default to five entries when count <= 0.
	RecentProducts(ctx context.Context, count int) ([]*repository.Product, error)
	RecentCategories(ctx context.Context, count int) ([]*repository.Category, error)
}

func NewReportService(store repository.Store) ReportService {
	return &reportService{store: store}
}

type reportService struct {
	store repository.Store
}

func (s *reportService) Sales(ctx context.Context) (*SalesReport, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("report %w", errIncomplete)
	}
	summary, err := s.store.Reports().Sales(ctx)
	if err != nil {
		return nil, err
	}
	report := &SalesReport{
		TotalOrders:        summary.TotalOrders,
		PaidOrders:         summary.PaidOrders,
		TotalRevenue:       roundMoney(summary.TotalRevenue),
		AvgOrderValue:      decimal.Zero,
		StatusDistribution: summary.ByStatus,
	}
	if summary.PaidOrders > 0 {
		report.AvgOrderValue = roundMoney(summary.TotalRevenue.Div(decimal.NewFromInt(summary.PaidOrders)))
	}
	return report, nil
}

func (s *reportService) Inventory(ctx context.Context) (*InventoryReport, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("report %w", errIncomplete)
	}
	valuation, err := s.store.Reports().InventoryValuation(ctx)
	if err != nil {
		return nil, err
	}
	low, err := s.store.Inventory().CountLowStock(ctx)
	if err != nil {
		return nil, err
	}
	return &InventoryReport{
		TotalProducts: valuation.TotalProducts,
		TotalUnits:    valuation.TotalUnits,
		TotalValue:    roundMoney(valuation.TotalValue),
		LowStockItems: low,
	}, nil
}

func (s *reportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("report %w", errIncomplete)
	}
	var (
		stats DashboardStats
		err   error
	)
	if stats.TotalProducts, err = s.store.Products().Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = s.store.Users().Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalCategories, err = s.store.Categories().Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalOrders, err = s.store.Orders().Count(ctx, repository.OrderFilter{}); err != nil {
		return nil, err
	}
	if stats.LowStockItems, err = s.store.Inventory().CountLowStock(ctx); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *reportService) RecentProducts(ctx context.Context, count int) ([]*repository.Product, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("report %w", errIncomplete)
	}
	if count <= 0 {
		count = defaultRecentCount
	}
	return s.store.Products().Recent(ctx, count)
}

func (s *reportService) RecentCategories(ctx context.Context, count int) ([]*repository.Category, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("report %w", errIncomplete)
	}
	if count <= 0 {
		count = defaultRecentCount
	}
	return s.store.Categories().Recent(ctx, count)
}
