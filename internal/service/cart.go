package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/repository"
)

// CartSummary is a cart with its total computed from current product prices.
type CartSummary struct {
	Cart      *repository.Cart
	Total     decimal.Decimal
	ItemCount int
}

// CartService manages the per-user shopping cart.
type CartService interface {
	Get(ctx context.Context, userID int64) (*CartSummary, error)
	// AddItem increments the quantity when the product is already in the cart.
	AddItem(ctx context.Context, userID, productID int64, quantity int) (*CartSummary, error)
	// UpdateItem sets the quantity; zero or less removes the line.
	UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*CartSummary, error)
	RemoveItem(ctx context.Context, userID, productID int64) (*CartSummary, error)
	Clear(ctx context.Context, userID int64) (*CartSummary, error)
}

func NewCartService(store repository.Store) CartService {
	return &cartService{store: store}
}

type cartService struct {
	store repository.Store
}

func (s *cartService) Get(ctx context.Context, userID int64) (*CartSummary, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("cart %w", errIncomplete)
	}
	cart, err := s.cartFor(ctx, s.store, userID)
	if err != nil {
		return nil, err
	}
	return summarize(cart), nil
}

func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int) (*CartSummary, error) {
	if quantity < 1 {
		return nil, invalidf("quantity must be at least 1 / 数量至少为 1")
	}
	return s.mutate(ctx, userID, func(tx repository.Store, cart *repository.Cart) error {
		if _, err := tx.Products().FindByID(ctx, productID); err != nil {
			return err
		}
		item, err := tx.Carts().FindItem(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			_, err = tx.Carts().AddItem(ctx, &repository.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity})
			return err
		case err != nil:
			return err
		default:
			return tx.Carts().SetItemQuantity(ctx, item.ID, item.Quantity+quantity)
		}
	})
}

func (s *cartService) UpdateItem(ctx context.Context, userID, productID int64, quantity int) (*CartSummary, error) {
	if quantity <= 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	return s.mutate(ctx, userID, func(tx repository.Store, cart *repository.Cart) error {
		item, err := tx.Carts().FindItem(ctx, cart.ID, productID)
		if err != nil {
			return err
		}
		return tx.Carts().SetItemQuantity(ctx, item.ID, quantity)
	})
}

func (s *cartService) RemoveItem(ctx context.Context, userID, productID int64) (*CartSummary, error) {
	return s.mutate(ctx, userID, func(tx repository.Store, cart *repository.Cart) error {
		return tx.Carts().RemoveItem(ctx, cart.ID, productID)
	})
}

func (s *cartService) Clear(ctx context.Context, userID int64) (*CartSummary, error) {
	return s.mutate(ctx, userID, func(tx repository.Store, cart *repository.Cart) error {
		return tx.Carts().Clear(ctx, cart.ID)
	})
}

func (s *cartService) mutate(ctx context.Context, userID int64, fn func(tx repository.Store, cart *repository.Cart) error) (*CartSummary, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("cart %w", errIncomplete)
	}
	var result *repository.Cart
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		cart, err := s.cartFor(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := fn(tx, cart); err != nil {
			return err
		}
		if err := tx.Carts().Touch(ctx, cart.ID, time.Now().Unix()); err != nil {
			return err
		}
		result, err = tx.Carts().FindByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return summarize(result), nil
}

// cartFor loads the user's cart, creating an empty one on first use.
func (s *cartService) cartFor(ctx context.Context, store repository.Store, userID int64) (*repository.Cart, error) {
	cart, err := store.Carts().FindByUser(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := store.Users().FindByID(ctx, userID); err != nil {
		return nil, mapRepoErr(err)
	}
	cart, err = store.Carts().Create(ctx, userID)
	if errors.Is(err, repository.ErrConflict) {
		// Lost a race with a concurrent first request.
		return store.Carts().FindByUser(ctx, userID)
	}
	return cart, err
}

func summarize(cart *repository.Cart) *CartSummary {
	summary := &CartSummary{Cart: cart, Total: decimal.Zero}
	for _, item := range cart.Items {
		summary.Total = summary.Total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		summary.ItemCount += item.Quantity
	}
	summary.Total = roundMoney(summary.Total)
	return summary
}
