// 文件路径: internal/repository/sqlite/store.go
// 模块说明: SQLite 仓储集合，支持把多个仓储绑定到同一事务。
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cliqshop/shop/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store wires SQLite-backed repository implementations.
type Store struct {
	db         *sql.DB
	q          querier
	categories repository.CategoryRepository
	users      repository.UserRepository
	settings   repository.SettingRepository
	loginLogs  repository.LoginLogRepository
	tokens     repository.TokenRepository
	products   repository.ProductRepository
	inventory  repository.InventoryRepository
	addresses  repository.AddressRepository
	carts      repository.CartRepository
	orders     repository.OrderRepository
	payments   repository.PaymentDetailsRepository
	reports    repository.ReportRepository
}

// NewStore constructs a SQLite-backed repository store.
func NewStore(db *sql.DB) *Store {
	return newStore(db, db)
}

func newStore(db *sql.DB, q querier) *Store {
	return &Store{
		db:         db,
		q:          q,
		users:      &userRepo{db: q},
		settings:   &settingRepo{db: q},
		loginLogs:  &loginLogRepo{db: q},
		tokens:     &tokenRepo{db: q},
		categories: &categoryRepo{db: q},
		products:   &productRepo{db: q},
		inventory:  &inventoryRepo{db: q},
		addresses:  &addressRepo{db: q},
		carts:      &cartRepo{db: q},
		orders:     &orderRepo{db: q},
		payments:   &paymentDetailsRepo{db: q},
		reports:    &reportRepo{db: q},
	}
}

// DB exposes the underlying handle for health checks and maintenance commands.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) InTx(ctx context.Context, fn func(repository.Store) error) error {
	if _, nested := s.q.(*sql.Tx); nested {
		return fn(s)
	}
	return withTx(ctx, s.q, func(tx querier) error {
		return fn(newStore(s.db, tx))
	})
}

// withTx begins a transaction when q is a *sql.DB and reuses q when it already is one.
func withTx(ctx context.Context, q querier, fn func(querier) error) error {
	db, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Users() repository.UserRepository              { return s.users }
func (s *Store) Settings() repository.SettingRepository        { return s.settings }
func (s *Store) LoginLogs() repository.LoginLogRepository      { return s.loginLogs }
func (s *Store) Tokens() repository.TokenRepository            { return s.tokens }
func (s *Store) Categories() repository.CategoryRepository     { return s.categories }
func (s *Store) Products() repository.ProductRepository        { return s.products }
func (s *Store) Inventory() repository.InventoryRepository     { return s.inventory }
func (s *Store) Addresses() repository.AddressRepository       { return s.addresses }
func (s *Store) Carts() repository.CartRepository              { return s.carts }
func (s *Store) Orders() repository.OrderRepository            { return s.orders }
func (s *Store) Payments() repository.PaymentDetailsRepository { return s.payments }
func (s *Store) Reports() repository.ReportRepository          { return s.reports }
