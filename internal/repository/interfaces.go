// 文件路径: internal/repository/interfaces.go
// 模块说明: 仓储接口定义，服务层只依赖这些接口。
package repository

import "context"

// Store 暴露每个聚合根对应的仓储接口。
type Store interface {
	Users() UserRepository
	Settings() SettingRepository
	LoginLogs() LoginLogRepository
	Tokens() TokenRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Inventory() InventoryRepository
	Addresses() AddressRepository
	Carts() CartRepository
	Orders() OrderRepository
	Payments() PaymentDetailsRepository
	Reports() ReportRepository

	// InTx runs fn against a Store bound to one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(Store) error) error
}

// UserRepository 定义用户相关数据访问方法。
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByPhone(ctx context.Context, phone string) (*User, error)
	Create(ctx context.Context, user *User) (*User, error)
	Save(ctx context.Context, user *User) error
	TouchLogin(ctx context.Context, id int64, at int64) error
	Search(ctx context.Context, filter UserSearchFilter) ([]*User, error)
	CountFiltered(ctx context.Context, filter UserSearchFilter) (int64, error)
	Count(ctx context.Context) (int64, error)
	HasAdmin(ctx context.Context) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// SettingRepository 处理系统配置的存取。
type SettingRepository interface {
	Get(ctx context.Context, key string) (*Setting, error)
	Upsert(ctx context.Context, setting *Setting) error
}

// LoginLogRepository 记录登录行为。
type LoginLogRepository interface {
	Create(ctx context.Context, log *LoginLog) error
	DeleteBefore(ctx context.Context, before int64) (int64, error)
}

// TokenRepository 管理刷新令牌。
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) (*RefreshToken, error)
	FindByToken(ctx context.Context, token string) (*RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeByUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now int64) (int64, error)
}

// CategoryRepository 管理商品分类。
type CategoryRepository interface {
	FindByID(ctx context.Context, id int64) (*Category, error)
	FindByName(ctx context.Context, name string) (*Category, error)
	List(ctx context.Context) ([]*Category, error)
	Recent(ctx context.Context, limit int) ([]*Category, error)
	Create(ctx context.Context, category *Category) (*Category, error)
	Update(ctx context.Context, category *Category) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

// ProductRepository 管理商品。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*Product, error)
	Recent(ctx context.Context, limit int) ([]*Product, error)
	Create(ctx context.Context, product *Product) (*Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
	// DetachCategory clears category_id on products of a deleted category.
	DetachCategory(ctx context.Context, categoryID int64) (int64, error)
	// IDsByCategory lists the ids of every product in the category.
	IDsByCategory(ctx context.Context, categoryID int64) ([]int64, error)
}

// InventoryRepository 管理商品库存。
type InventoryRepository interface {
	FindByID(ctx context.Context, id int64) (*Inventory, error)
	FindByProduct(ctx context.Context, productID int64) (*Inventory, error)
	List(ctx context.Context) ([]*Inventory, error)
	LowStock(ctx context.Context) ([]*Inventory, error)
	Create(ctx context.Context, inv *Inventory) (*Inventory, error)
	Update(ctx context.Context, inv *Inventory) error
	// AdjustQuantity applies delta atomically and refuses results below zero.
	// It returns ErrNotFound when no row exists and ErrConflict when the result would be negative.
	AdjustQuantity(ctx context.Context, productID int64, delta int) (*Inventory, error)
	Delete(ctx context.Context, id int64) error
	DeleteByProduct(ctx context.Context, productID int64) error
	CountLowStock(ctx context.Context) (int64, error)
}

// AddressRepository 管理用户地址。
type AddressRepository interface {
	FindByID(ctx context.Context, id int64) (*Address, error)
	ListByUser(ctx context.Context, userID int64) ([]*Address, error)
	FindDefault(ctx context.Context, userID int64, addrType AddressType) (*Address, error)
	CountByUserAndType(ctx context.Context, userID int64, addrType AddressType) (int64, error)
	Create(ctx context.Context, addr *Address) (*Address, error)
	Update(ctx context.Context, addr *Address) error
	ClearDefault(ctx context.Context, userID int64, addrType AddressType) error
	SetDefault(ctx context.Context, id int64, isDefault bool) error
	Delete(ctx context.Context, id int64) error
}

// CartRepository 管理购物车与购物车条目。
type CartRepository interface {
	FindByUser(ctx context.Context, userID int64) (*Cart, error)
	Create(ctx context.Context, userID int64) (*Cart, error)
	FindItem(ctx context.Context, cartID, productID int64) (*CartItem, error)
	AddItem(ctx context.Context, item *CartItem) (*CartItem, error)
	SetItemQuantity(ctx context.Context, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, cartID, productID int64) error
	Clear(ctx context.Context, cartID int64) error
	Touch(ctx context.Context, cartID int64, at int64) error
	DeleteItemsByProduct(ctx context.Context, productID int64) error
}

// OrderRepository 管理订单与订单明细。
type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)
	Count(ctx context.Context, filter OrderFilter) (int64, error)
	// Create inserts the order row and its items.
	Create(ctx context.Context, order *Order) (*Order, error)
	// Update persists status, payment fields and address references. Items are immutable.
	Update(ctx context.Context, order *Order) error
}

// PaymentDetailsRepository 记录网关交易明细。
type PaymentDetailsRepository interface {
	FindByTransaction(ctx context.Context, transactionID string) (*PaymentDetails, error)
	ListByOrder(ctx context.Context, orderID int64) ([]*PaymentDetails, error)
	// Upsert inserts or updates by transaction id.
	Upsert(ctx context.Context, details *PaymentDetails) error
}

// ReportRepository 提供报表聚合查询。
type ReportRepository interface {
	Sales(ctx context.Context) (*SalesSummary, error)
	InventoryValuation(ctx context.Context) (*InventoryValuation, error)
}
