package handler

import (
	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
)

// Response shapes. Money is rendered as a fixed two-decimal string, timestamps as unix seconds.

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

type userView struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Role        string `json:"role"`
	Enabled     bool   `json:"enabled"`
	LastLoginAt int64  `json:"lastLoginAt,omitempty"`
	CreatedAt   int64  `json:"createdAt"`
}

func toUserView(u *repository.User) userView {
	return userView{
		ID:          u.ID,
		Username:    u.Username,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Role:        u.Role,
		Enabled:     u.Enabled,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func toUserViews(users []*repository.User) []userView {
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, toUserView(u))
	}
	return out
}

type loginView struct {
	Token            string `json:"token"`
	TokenType        string `json:"tokenType"`
	ExpiresAt        int64  `json:"expiresAt"`
	RefreshToken     string `json:"refreshToken"`
	RefreshExpiresAt int64  `json:"refreshExpiresAt"`
	UserID           int64  `json:"userId"`
	Username         string `json:"username"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Role             string `json:"role"`
}

func toLoginView(res *service.LoginResult) loginView {
	return loginView{
		Token:            res.Token,
		TokenType:        res.TokenType,
		ExpiresAt:        res.ExpiresAt.Unix(),
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt.Unix(),
		UserID:           res.UserID,
		Username:         res.Username,
		Name:             res.Name,
		Email:            res.Email,
		Role:             res.Role,
	}
}

type categoryView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   int64  `json:"createdAt"`
	UpdatedAt   int64  `json:"updatedAt"`
}

func toCategoryViews(categories []*repository.Category) []categoryView {
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, toCategoryView(c))
	}
	return out
}

func toCategoryView(c *repository.Category) categoryView {
	return categoryView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type productView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	Price        string `json:"price"`
	ImageURL     string `json:"imageUrl,omitempty"`
	CategoryID   *int64 `json:"categoryId,omitempty"`
	CategoryName string `json:"categoryName,omitempty"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    int64  `json:"updatedAt"`
}

func toProductView(p *repository.Product) productView {
	return productView{
		ID:           p.ID,
		Name:         p.Name,
		Description:  p.Description,
		Price:        money(p.Price),
		ImageURL:     p.ImageURL,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toProductViews(products []*repository.Product) []productView {
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, toProductView(p))
	}
	return out
}

type inventoryView struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"productId"`
	ProductName       string `json:"productName,omitempty"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold int    `json:"lowStockThreshold"`
	Location          string `json:"location,omitempty"`
	LowStock          bool   `json:"lowStock"`
	UpdatedAt         int64  `json:"updatedAt"`
}

func toInventoryView(inv *repository.Inventory) inventoryView {
	return inventoryView{
		ID:                inv.ID,
		ProductID:         inv.ProductID,
		ProductName:       inv.ProductName,
		Quantity:          inv.Quantity,
		LowStockThreshold: inv.LowStockThreshold,
		Location:          inv.Location,
		LowStock:          inv.Quantity <= inv.LowStockThreshold,
		UpdatedAt:         inv.UpdatedAt,
	}
}

func toInventoryViews(items []*repository.Inventory) []inventoryView {
	out := make([]inventoryView, 0, len(items))
	for _, inv := range items {
		out = append(out, toInventoryView(inv))
	}
	return out
}

type addressView struct {
	ID         int64  `json:"id"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Type       string `json:"type"`
	IsDefault  bool   `json:"isDefault"`
}

func toAddressView(a *repository.Address) addressView {
	return addressView{
		ID:         a.ID,
		Street:     a.Street,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Type:       string(a.Type),
		IsDefault:  a.IsDefault,
	}
}

func toAddressViews(addresses []*repository.Address) []addressView {
	out := make([]addressView, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, toAddressView(a))
	}
	return out
}

type cartItemView struct {
	CartItemID      int64  `json:"cartItemId"`
	ProductID       int64  `json:"productId"`
	ProductName     string `json:"productName"`
	ProductPrice    string `json:"productPrice"`
	ProductImageURL string `json:"productImageUrl,omitempty"`
	Quantity        int    `json:"quantity"`
	SubTotal        string `json:"subTotal"`
}

type cartView struct {
	ID        int64          `json:"id"`
	Items     []cartItemView `json:"items"`
	Total     string         `json:"total"`
	ItemCount int            `json:"itemCount"`
	UpdatedAt int64          `json:"updatedAt"`
}

func toCartView(summary *service.CartSummary) cartView {
	view := cartView{
		Items:     make([]cartItemView, 0),
		Total:     money(summary.Total),
		ItemCount: summary.ItemCount,
	}
	if summary.Cart == nil {
		return view
	}
	view.ID = summary.Cart.ID
	view.UpdatedAt = summary.Cart.UpdatedAt
	for _, item := range summary.Cart.Items {
		view.Items = append(view.Items, cartItemView{
			CartItemID:      item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			ProductPrice:    money(item.UnitPrice),
			ProductImageURL: item.ImageURL,
			Quantity:        item.Quantity,
			SubTotal:        money(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}
	return view
}

type orderItemView struct {
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
}

type orderView struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"userId"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"paymentStatus"`
	TotalAmount       string          `json:"totalAmount"`
	Items             []orderItemView `json:"items"`
	ShippingAddressID *int64          `json:"shippingAddressId,omitempty"`
	BillingAddressID  *int64          `json:"billingAddressId,omitempty"`
	PaymentIntentID   string          `json:"paymentIntentId,omitempty"`
	ReceiptURL        string          `json:"receiptUrl,omitempty"`
	PaymentDate       *int64          `json:"paymentDate,omitempty"`
	CreatedAt         int64           `json:"createdAt"`
	UpdatedAt         int64           `json:"updatedAt"`
}

func toOrderView(o *repository.Order) orderView {
	view := orderView{
		ID:                o.ID,
		UserID:            o.UserID,
		Status:            string(o.Status),
		PaymentStatus:     string(o.PaymentStatus),
		TotalAmount:       money(o.TotalAmount),
		Items:             make([]orderItemView, 0, len(o.Items)),
		ShippingAddressID: o.ShippingAddressID,
		BillingAddressID:  o.BillingAddressID,
		PaymentIntentID:   o.PaymentIntentID,
		ReceiptURL:        o.ReceiptURL,
		PaymentDate:       o.PaymentDate,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
	for _, item := range o.Items {
		view.Items = append(view.Items, orderItemView{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			Subtotal:    money(item.Subtotal),
		})
	}
	return view
}

func toOrderViews(orders []*repository.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o))
	}
	return out
}

type intentView struct {
	PaymentIntentID string `json:"paymentIntentId"`
	ClientSecret    string `json:"clientSecret,omitempty"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	OrderID         int64  `json:"orderId,omitempty"`
}

func toIntentView(intent *payment.Intent) intentView {
	return intentView{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Status:          intent.Status,
		Amount:          money(intent.Amount),
		Currency:        intent.Currency,
		OrderID:         intent.OrderID,
	}
}
