package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/events"
	"github.com/cliqshop/shop/internal/notifier"
	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
)

type orderFixture struct {
	store    repository.Store
	orders   OrderService
	events   *recordingPublisher
	mail     *recordingNotifier
	refunds  *recordingRefunder
	user     *repository.User
	address  *repository.Address
	mug      *repository.Product
	tee      *repository.Product
	clockNow time.Time
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()
	store := newTestStore(t)
	f := &orderFixture{
		store:    store,
		events:   &recordingPublisher{},
		mail:     &recordingNotifier{},
		refunds:  &recordingRefunder{},
		clockNow: time.Unix(1_700_000_000, 0),
	}
	f.orders = NewOrderService(OrderDeps{
		Store:    store,
		Events:   f.events,
		Notifier: f.mail,
		Refunds:  f.refunds,
		Now:      func() time.Time { return f.clockNow },
	})
	f.user = seedUser(t, store, "alice")
	f.address = seedAddress(t, store, f.user.ID, repository.AddressShipping)
	f.mug = seedProduct(t, store, "Mug", "10.00", 20)
	f.tee = seedProduct(t, store, "Tee", "5.00", 20)
	return f
}

type recordingRefunder struct {
	requests []payment.RefundRequest
	err      error
}

func (r *recordingRefunder) Refund(_ context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.requests = append(r.requests, req)
	return &payment.Refund{ID: "re_" + req.PaymentIntentID, Status: "succeeded", Amount: req.Amount}, nil
}

func (f *orderFixture) place(t *testing.T) *repository.Order {
	t.Helper()
	order, err := f.orders.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID: f.user.ID,
		Items: []OrderItemInput{
			{ProductID: f.mug.ID, Quantity: 2},
			{ProductID: f.tee.ID, Quantity: 1},
		},
		ShippingAddressID: int64Ptr(f.address.ID),
	})
	require.NoError(t, err)
	return order
}

func TestPlaceOrderComputesTotalAndStartsPending(t *testing.T) {
	f := newOrderFixture(t)

	order := f.place(t)

	requireMoney(t, "25.00", order.TotalAmount)
	assert.Equal(t, repository.OrderPending, order.Status)
	assert.Equal(t, repository.PaymentPending, order.PaymentStatus)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "Mug", order.Items[0].ProductName)
	requireMoney(t, "20.00", order.Items[0].Subtotal)
	assert.Nil(t, order.PaymentDate)

	assert.Equal(t, []string{events.OrderPlaced}, f.events.names())
	require.Len(t, f.mail.sent, 1)
	assert.Equal(t, notifier.TemplateOrderConfirmation, f.mail.sent[0].Template)
	assert.Equal(t, "alice@example.com", f.mail.sent[0].To)

	stored, err := f.orders.GetForUser(context.Background(), order.ID, f.user.ID)
	require.NoError(t, err)
	requireMoney(t, "25.00", stored.TotalAmount)
	require.Len(t, stored.Items, 2)
}

func TestPlaceOrderSnapshotsPrices(t *testing.T) {
	f := newOrderFixture(t)
	order := f.place(t)

	products := NewProductService(ProductDeps{Store: f.store})
	_, err := products.Update(context.Background(), f.mug.ID, ProductInput{Name: "Mug", Price: money("99.00")})
	require.NoError(t, err)

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	requireMoney(t, "25.00", stored.TotalAmount)
	requireMoney(t, "10.00", stored.Items[0].UnitPrice)
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	other := seedUser(t, f.store, "mallory")
	foreign := seedAddress(t, f.store, other.ID, repository.AddressShipping)

	cases := []struct {
		name  string
		input PlaceOrderInput
		want  error
	}{
		{
			name:  "no items",
			input: PlaceOrderInput{UserID: f.user.ID, ShippingAddressID: int64Ptr(f.address.ID)},
			want:  ErrInvalidArgument,
		},
		{
			name: "zero quantity",
			input: PlaceOrderInput{
				UserID:            f.user.ID,
				Items:             []OrderItemInput{{ProductID: f.mug.ID, Quantity: 0}},
				ShippingAddressID: int64Ptr(f.address.ID),
			},
			want: ErrInvalidArgument,
		},
		{
			name: "no address",
			input: PlaceOrderInput{
				UserID: f.user.ID,
				Items:  []OrderItemInput{{ProductID: f.mug.ID, Quantity: 1}},
			},
			want: ErrInvalidArgument,
		},
		{
			name: "someone else's address",
			input: PlaceOrderInput{
				UserID:            f.user.ID,
				Items:             []OrderItemInput{{ProductID: f.mug.ID, Quantity: 1}},
				ShippingAddressID: int64Ptr(foreign.ID),
			},
			want: ErrForbidden,
		},
		{
			name: "unknown product",
			input: PlaceOrderInput{
				UserID:            f.user.ID,
				Items:             []OrderItemInput{{ProductID: 9999, Quantity: 1}},
				ShippingAddressID: int64Ptr(f.address.ID),
			},
			want: ErrNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(ctx, tc.input)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, total, err := f.orders.List(ctx, OrderListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestPlaceOrderFallsBackToBillingAddress(t *testing.T) {
	f := newOrderFixture(t)
	billing := seedAddress(t, f.store, f.user.ID, repository.AddressBilling)

	order, err := f.orders.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:           f.user.ID,
		Items:            []OrderItemInput{{ProductID: f.tee.ID, Quantity: 3}},
		BillingAddressID: int64Ptr(billing.ID),
	})
	require.NoError(t, err)
	require.NotNil(t, order.ShippingAddressID)
	assert.Equal(t, billing.ID, *order.ShippingAddressID)
	requireMoney(t, "15.00", order.TotalAmount)
}

func TestMarkOrderAsPaidMovesToProcessing(t *testing.T) {
	f := newOrderFixture(t)
	order := f.place(t)

	paid, err := f.orders.MarkOrderAsPaid(context.Background(), order.ID, "pi_123", "https://receipt.example/1")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderProcessing, paid.Status)
	assert.Equal(t, repository.PaymentPaid, paid.PaymentStatus)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, f.clockNow.Unix(), *paid.PaymentDate)
	assert.Equal(t, "pi_123", paid.PaymentIntentID)
	assert.Equal(t, "https://receipt.example/1", paid.ReceiptURL)
	assert.Contains(t, f.events.names(), events.PaymentSucceeded)
}

func TestCancelOrderRules(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	t.Run("owner cancels pending order", func(t *testing.T) {
		order := f.place(t)
		ok, err := f.orders.CancelOrder(ctx, order.ID, int64Ptr(f.user.ID))
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderCancelled, stored.Status)

		again, err := f.orders.CancelOrder(ctx, order.ID, int64Ptr(f.user.ID))
		require.NoError(t, err)
		assert.False(t, again)
	})

	t.Run("other user is forbidden", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.CancelOrder(ctx, order.ID, int64Ptr(f.user.ID+100))
		require.ErrorIs(t, err, ErrForbidden)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderPending, stored.Status)
	})

	t.Run("paid order is refunded on cancel", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_9", "")
		require.NoError(t, err)

		ok, err := f.orders.CancelOrder(ctx, order.ID, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderCancelled, stored.Status)
		assert.Equal(t, repository.PaymentRefunded, stored.PaymentStatus)

		require.NotEmpty(t, f.refunds.requests)
		last := f.refunds.requests[len(f.refunds.requests)-1]
		assert.Equal(t, "pi_9", last.PaymentIntentID)
		assert.Equal(t, order.ID, last.OrderID)
		requireMoney(t, "25.00", last.Amount)
	})

	t.Run("failed gateway refund keeps the order paid", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_11", "")
		require.NoError(t, err)

		f.refunds.err = errors.New("card network down")
		defer func() { f.refunds.err = nil }()
		_, err = f.orders.CancelOrder(ctx, order.ID, nil)
		require.ErrorIs(t, err, ErrGateway)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderProcessing, stored.Status)
		assert.Equal(t, repository.PaymentPaid, stored.PaymentStatus)
	})

	t.Run("shipped order cannot be cancelled", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_10", "")
		require.NoError(t, err)
		_, err = f.orders.UpdateOrderStatus(ctx, order.ID, repository.OrderShipped)
		require.NoError(t, err)

		ok, err := f.orders.CancelOrder(ctx, order.ID, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := f.orders.CancelOrder(ctx, 424242, nil)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUpdateOrderStatusKeepsPaidOrdersConsistent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t)
	_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_1", "")
	require.NoError(t, err)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, repository.OrderPending)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.orders.UpdateOrderStatus(ctx, order.ID, "bogus")
	require.ErrorIs(t, err, ErrInvalidArgument)

	shipped, err := f.orders.UpdateOrderStatus(ctx, order.ID, "shipped")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderShipped, shipped.Status)
	assert.Equal(t, repository.PaymentPaid, shipped.PaymentStatus)

	refunded, err := f.orders.UpdateOrderStatus(ctx, order.ID, repository.OrderRefunded)
	require.NoError(t, err)
	assert.Equal(t, repository.PaymentRefunded, refunded.PaymentStatus)
	require.Len(t, f.refunds.requests, 1)
	assert.Equal(t, "pi_1", f.refunds.requests[0].PaymentIntentID)
}

func TestRefundOrderRequiresPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	t.Run("unpaid order is rejected on every path", func(t *testing.T) {
		order := f.place(t)

		_, err := f.orders.RefundOrder(ctx, order.ID)
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = f.orders.MarkAsRefunded(ctx, order.ID)
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = f.orders.UpdatePaymentStatus(ctx, order.ID, repository.PaymentRefunded)
		require.ErrorIs(t, err, ErrInvalidArgument)
		_, err = f.orders.UpdateOrderStatus(ctx, order.ID, repository.OrderRefunded)
		require.ErrorIs(t, err, ErrInvalidArgument)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderPending, stored.Status)
		assert.Equal(t, repository.PaymentPending, stored.PaymentStatus)
		assert.Empty(t, f.refunds.requests)
	})

	t.Run("paid order is refunded at the gateway once", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_42", "")
		require.NoError(t, err)

		refunded, err := f.orders.RefundOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderRefunded, refunded.Status)
		assert.Equal(t, repository.PaymentRefunded, refunded.PaymentStatus)
		assert.Contains(t, f.events.names(), events.PaymentRefunded)

		again, err := f.orders.RefundOrder(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.PaymentRefunded, again.PaymentStatus)
		require.Len(t, f.refunds.requests, 1)
		assert.Equal(t, "pi_42", f.refunds.requests[0].PaymentIntentID)
	})

	t.Run("gateway refunds need a configured gateway", func(t *testing.T) {
		orders := NewOrderService(OrderDeps{Store: f.store, Events: f.events})
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_43", "")
		require.NoError(t, err)

		_, err = orders.RefundOrder(ctx, order.ID)
		require.ErrorIs(t, err, ErrNotConfigured)

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.PaymentPaid, stored.PaymentStatus)
	})
}

func TestPaymentFailureAndSessionReset(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	order := f.place(t)

	failed, err := f.orders.MarkOrderPaymentFailed(ctx, order.ID, "pi_declined")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderPaymentFailed, failed.Status)
	assert.Equal(t, repository.PaymentFailed, failed.PaymentStatus)
	assert.Equal(t, "pi_declined", failed.PaymentIntentID)

	retried, err := f.orders.SavePaymentSession(ctx, order.ID, "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, repository.OrderPending, retried.Status)
	assert.Equal(t, repository.PaymentPending, retried.PaymentStatus)
	assert.Equal(t, "cs_test_1", retried.PaymentIntentID)

	_, err = f.orders.MarkOrderAsPaid(ctx, order.ID, "", "")
	require.NoError(t, err)
	_, err = f.orders.SavePaymentSession(ctx, order.ID, "cs_test_2")
	require.ErrorIs(t, err, ErrConflict)

	_, err = f.orders.SavePaymentSession(ctx, order.ID, "")
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListOrdersByUserAndStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()
	first := f.place(t)
	f.place(t)
	_, err := f.orders.MarkOrderAsPaid(ctx, first.ID, "", "")
	require.NoError(t, err)

	mine, total, err := f.orders.ListByUser(ctx, f.user.ID, Page{Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, mine, 2)

	processing, total, err := f.orders.List(ctx, OrderListFilter{Status: "processing", Page: Page{Limit: 10}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, processing, 1)
	assert.Equal(t, first.ID, processing[0].ID)

	_, err = f.orders.GetForUser(ctx, first.ID, f.user.ID+1)
	require.ErrorIs(t, err, ErrForbidden)
}
