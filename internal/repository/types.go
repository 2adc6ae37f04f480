// 文件路径: internal/repository/types.go
// 模块说明: 商城领域实体，时间字段统一为 Unix 秒，金额使用 decimal。
package repository

import "github.com/shopspring/decimal"

// Role values stored on users.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User mirrors the users table.
type User struct {
	ID          int64
	Username    string
	Name        string
	Email       string
	Phone       string
	Password    string
	Role        string
	Enabled     bool
	LastLoginAt int64
	CreatedAt   int64
	UpdatedAt   int64
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Category mirrors the categories table.
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   int64
	UpdatedAt   int64
}

// Product mirrors the products table. CategoryName is filled by joins.
type Product struct {
	ID           int64
	Name         string
	Description  string
	Price        decimal.Decimal
	ImageURL     string
	CategoryID   *int64
	CategoryName string
	CreatedAt    int64
	UpdatedAt    int64
}

// Inventory 记录单个商品的库存。
type Inventory struct {
	ID                int64
	ProductID         int64
	ProductName       string
	Quantity          int
	LowStockThreshold int
	Location          string
	CreatedAt         int64
	UpdatedAt         int64
}

// IsLowStock reports quantity <= threshold.
func (i *Inventory) IsLowStock() bool {
	return i != nil && i.Quantity <= i.LowStockThreshold
}

// AddressType distinguishes shipping and billing addresses.
type AddressType string

const (
	AddressShipping AddressType = "SHIPPING"
	AddressBilling  AddressType = "BILLING"
)

// Valid 校验地址类型。
func (t AddressType) Valid() bool {
	return t == AddressShipping || t == AddressBilling
}

// Address mirrors the addresses table.
type Address struct {
	ID         int64
	UserID     int64
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Type       AddressType
	IsDefault  bool
	CreatedAt  int64
	UpdatedAt  int64
}

// Cart 为每个用户的购物车，Items 按加入顺序排列。
type Cart struct {
	ID        int64
	UserID    int64
	Items     []CartItem
	CreatedAt int64
	UpdatedAt int64
}

// CartItem joins the current product name and price for display and totals.
type CartItem struct {
	ID          int64
	CartID      int64
	ProductID   int64
	ProductName string
	ImageURL    string
	UnitPrice   decimal.Decimal
	Quantity    int
	AddedAt     int64
}

// OrderStatus 订单状态。
type OrderStatus string

const (
	OrderPending       OrderStatus = "PENDING"
	OrderProcessing    OrderStatus = "PROCESSING"
	OrderShipped       OrderStatus = "SHIPPED"
	OrderDelivered     OrderStatus = "DELIVERED"
	OrderCancelled     OrderStatus = "CANCELLED"
	OrderPaymentFailed OrderStatus = "PAYMENT_FAILED"
	OrderRefunded      OrderStatus = "REFUNDED"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderPending, OrderProcessing, OrderShipped, OrderDelivered,
	OrderCancelled, OrderPaymentFailed, OrderRefunded,
}

// PaymentStatus 订单支付状态。
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// Order mirrors the orders table with its items loaded separately.
type Order struct {
	ID                int64
	UserID            int64
	Status            OrderStatus
	PaymentStatus     PaymentStatus
	TotalAmount       decimal.Decimal
	Items             []OrderItem
	ShippingAddressID *int64
	BillingAddressID  *int64
	PaymentIntentID   string
	ReceiptURL        string
	PaymentDate       *int64
	CreatedAt         int64
	UpdatedAt         int64
}

// OrderItem freezes product name and price at placement time.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
}

// PaymentMethod 支付方式。
type PaymentMethod string

const (
	MethodCreditCard     PaymentMethod = "CREDIT_CARD"
	MethodDebitCard      PaymentMethod = "DEBIT_CARD"
	MethodPayPal         PaymentMethod = "PAYPAL"
	MethodStripe         PaymentMethod = "STRIPE"
	MethodUPI            PaymentMethod = "UPI"
	MethodBankTransfer   PaymentMethod = "BANK_TRANSFER"
	MethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

// TransactionStatus is the status of one gateway transaction, distinct from PaymentStatus on the order.
type TransactionStatus string

const (
	TxPending           TransactionStatus = "PENDING"
	TxCompleted         TransactionStatus = "COMPLETED"
	TxFailed            TransactionStatus = "FAILED"
	TxRefunded          TransactionStatus = "REFUNDED"
	TxPartiallyRefunded TransactionStatus = "PARTIALLY_REFUNDED"
	TxCancelled         TransactionStatus = "CANCELLED"
)

// PaymentDetails 记录一次网关交易。
type PaymentDetails struct {
	ID            int64
	OrderID       int64
	Method        PaymentMethod
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Status        TransactionStatus
	PaymentDate   *int64
	LastFour      string
	Gateway       string
	ErrorMessage  string
	CreatedAt     int64
	UpdatedAt     int64
}

// RefreshToken mirrors the refresh_tokens table.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	UserAgent string
	IP        string
	ExpiresAt int64
	Revoked   bool
	CreatedAt int64
}

// LoginLog captures authentication attempts.
type LoginLog struct {
	ID         int64
	UserID     *int64
	Identifier string
	IP         string
	UserAgent  string
	Success    bool
	Reason     string
	CreatedAt  int64
}

// Setting is one key/value pair of runtime settings.
type Setting struct {
	Key       string
	Value     string
	Category  string
	UpdatedAt int64
}

// SalesSummary aggregates order totals.
type SalesSummary struct {
	TotalOrders  int64
	PaidOrders   int64
	TotalRevenue decimal.Decimal
	ByStatus     map[OrderStatus]int64
}

// InventoryValuation aggregates stock value.
type InventoryValuation struct {
	TotalProducts int64
	TotalUnits    int64
	TotalValue    decimal.Decimal
}
