package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/bootstrap"
	"github.com/cliqshop/shop/internal/migrations"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/repository/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	db, err := bootstrap.OpenSQLite(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = migrations.Up(context.Background(), db)
	require.NoError(t, err)
	return sqlite.NewStore(db)
}

func seedUser(t *testing.T, store repository.Store, username string) *repository.User {
	t.Helper()
	user, err := store.Users().Create(context.Background(), &repository.User{
		Username: username,
		Name:     username,
		Email:    username + "@example.com",
		Password: "x",
		Role:     repository.RoleUser,
		Enabled:  true,
	})
	require.NoError(t, err)
	return user
}

func seedProduct(t *testing.T, store repository.Store, name, price string, stock int) *repository.Product {
	t.Helper()
	svc := NewProductService(ProductDeps{Store: store, LowThreshold: 2})
	product, err := svc.Create(context.Background(), ProductInput{
		Name:         name,
		Price:        decimal.RequireFromString(price),
		InitialStock: stock,
	})
	require.NoError(t, err)
	return product
}

func seedAddress(t *testing.T, store repository.Store, userID int64, kind repository.AddressType) *repository.Address {
	t.Helper()
	addr, err := NewAddressService(store).Create(context.Background(), userID, AddressInput{
		Street:     "1 Main St",
		City:       "Springfield",
		PostalCode: "12345",
		Country:    "US",
		Type:       kind,
	})
	require.NoError(t, err)
	return addr
}

type publishedEvent struct {
	name string
	key  string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, name, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: name, key: key})
	return nil
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.name)
	}
	return out
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.EmailRequest
	err  error
}

func (n *recordingNotifier) SendEmail(_ context.Context, req notifier.EmailRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, req)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, money(want).Equal(got), fmt.Sprintf("want %s, got %s", want, got.String()))
}
