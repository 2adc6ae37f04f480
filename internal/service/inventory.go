// 文件路径: internal/service/inventory.go
// 模块说明: 库存数量、预警阈值与存放位置维护。
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cliqshop/shop/internal/events"
	"github.com/cliqshop/shop/internal/repository"
)

// InventoryInput 描述新建库存记录。
type InventoryInput struct {
	ProductID         int64
	Quantity          int
	LowStockThreshold *int
	Location          string
}

// InventoryService 管理商品库存。
type InventoryService interface {
	Create(ctx context.Context, input InventoryInput) (*repository.Inventory, error)
	Get(ctx context.Context, id int64) (*repository.Inventory, error)
	GetByProduct(ctx context.Context, productID int64) (*repository.Inventory, error)
	List(ctx context.Context) ([]*repository.Inventory, error)
	LowStock(ctx context.Context) ([]*repository.Inventory, error)
	// UpdateStock applies delta and rejects a negative result.
	UpdateStock(ctx context.Context, productID int64, delta int) (*repository.Inventory, error)
	SetQuantity(ctx context.Context, productID int64, quantity int) (*repository.Inventory, error)
	UpdateThreshold(ctx context.Context, productID int64, threshold int) (*repository.Inventory, error)
	UpdateLocation(ctx context.Context, productID int64, location string) (*repository.Inventory, error)
	Delete(ctx context.Context, id int64) error
	IsLowStock(ctx context.Context, productID int64) (bool, error)
}

// InventoryDeps 聚合库存服务依赖。
type InventoryDeps struct {
	Store            repository.Store
	Events           EventPublisher
	DefaultThreshold int
	Logger           *slog.Logger
}

// NewInventoryService 组装库存服务。
func NewInventoryService(deps InventoryDeps) InventoryService {
	threshold := deps.DefaultThreshold
	if threshold < 0 {
		threshold = 0
	}
	return &inventoryService{
		store:     deps.Store,
		events:    deps.Events,
		threshold: threshold,
		logger:    orDiscard(deps.Logger),
	}
}

type inventoryService struct {
	store     repository.Store
	events    EventPublisher
	threshold int
	logger    *slog.Logger
}

func (s *inventoryService) Create(ctx context.Context, input InventoryInput) (*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	if input.Quantity < 0 {
		return nil, invalidf("quantity cannot be negative / 库存数量不能为负数")
	}
	threshold := s.threshold
	if input.LowStockThreshold != nil {
		if *input.LowStockThreshold < 0 {
			return nil, invalidf("threshold cannot be negative / 预警阈值不能为负数")
		}
		threshold = *input.LowStockThreshold
	}
	if _, err := s.store.Products().FindByID(ctx, input.ProductID); err != nil {
		return nil, mapRepoErr(err)
	}
	if _, err := s.store.Inventory().FindByProduct(ctx, input.ProductID); err == nil {
		return nil, fmt.Errorf("%w: inventory for product %d already exists / 该商品库存记录已存在", ErrConflict, input.ProductID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	inv, err := s.store.Inventory().Create(ctx, &repository.Inventory{
		ProductID:         input.ProductID,
		Quantity:          input.Quantity,
		LowStockThreshold: threshold,
		Location:          strings.TrimSpace(input.Location),
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return s.GetByProduct(ctx, inv.ProductID)
}

func (s *inventoryService) Get(ctx context.Context, id int64) (*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	inv, err := s.store.Inventory().FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return inv, nil
}

func (s *inventoryService) GetByProduct(ctx context.Context, productID int64) (*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	inv, err := s.store.Inventory().FindByProduct(ctx, productID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return inv, nil
}

func (s *inventoryService) List(ctx context.Context) ([]*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	return s.store.Inventory().List(ctx)
}

func (s *inventoryService) LowStock(ctx context.Context) ([]*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	return s.store.Inventory().LowStock(ctx)
}

func (s *inventoryService) UpdateStock(ctx context.Context, productID int64, delta int) (*repository.Inventory, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("inventory %w", errIncomplete)
	}
	inv, err := s.store.Inventory().AdjustQuantity(ctx, productID, delta)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: product %d cannot go below zero", ErrInsufficientStock, productID)
		}
		return nil, mapRepoErr(err)
	}
	if delta < 0 {
		s.notifyLow(ctx, inv)
	}
	return inv, nil
}

func (s *inventoryService) SetQuantity(ctx context.Context, productID int64, quantity int) (*repository.Inventory, error) {
	if quantity < 0 {
		return nil, invalidf("quantity cannot be negative / 库存数量不能为负数")
	}
	inv, err := s.mutate(ctx, productID, func(inv *repository.Inventory) { inv.Quantity = quantity })
	if err != nil {
		return nil, err
	}
	s.notifyLow(ctx, inv)
	return inv, nil
}

func (s *inventoryService) UpdateThreshold(ctx context.Context, productID int64, threshold int) (*repository.Inventory, error) {
	if threshold < 0 {
		return nil, invalidf("threshold cannot be negative / 预警阈值不能为负数")
	}
	return s.mutate(ctx, productID, func(inv *repository.Inventory) { inv.LowStockThreshold = threshold })
}

func (s *inventoryService) UpdateLocation(ctx context.Context, productID int64, location string) (*repository.Inventory, error) {
	location = strings.TrimSpace(location)
	return s.mutate(ctx, productID, func(inv *repository.Inventory) { inv.Location = location })
}

func (s *inventoryService) Delete(ctx context.Context, id int64) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("inventory %w", errIncomplete)
	}
	return mapRepoErr(s.store.Inventory().Delete(ctx, id))
}

func (s *inventoryService) IsLowStock(ctx context.Context, productID int64) (bool, error) {
	inv, err := s.GetByProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return inv.IsLowStock(), nil
}

func (s *inventoryService) mutate(ctx context.Context, productID int64, apply func(*repository.Inventory)) (*repository.Inventory, error) {
	inv, err := s.GetByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	apply(inv)
	if err := s.store.Inventory().Update(ctx, inv); err != nil {
		return nil, mapRepoErr(err)
	}
	return inv, nil
}

func (s *inventoryService) notifyLow(ctx context.Context, inv *repository.Inventory) {
	if !inv.IsLowStock() {
		return
	}
	publish(ctx, s.events, s.logger, events.StockLow, fmt.Sprintf("product-%d", inv.ProductID), events.StockPayload{
		ProductID: inv.ProductID,
		Quantity:  inv.Quantity,
		Threshold: inv.LowStockThreshold,
	})
}
