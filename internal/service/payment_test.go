package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
)

type fakeGateway struct {
	createIntent   func(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error)
	confirmIntent  func(ctx context.Context, intentID, methodID string) (*payment.Intent, error)
	cancelIntent   func(ctx context.Context, intentID string) (*payment.Intent, error)
	getIntent      func(ctx context.Context, intentID string) (*payment.Intent, error)
	createCheckout func(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	parseWebhook   func(payload []byte, signature string) (*payment.Event, error)
	refund         func(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error)
}

func (g *fakeGateway) CreatePaymentIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	return g.createIntent(ctx, req)
}

func (g *fakeGateway) ConfirmPaymentIntent(ctx context.Context, intentID, methodID string) (*payment.Intent, error) {
	return g.confirmIntent(ctx, intentID, methodID)
}

func (g *fakeGateway) CancelPaymentIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	return g.cancelIntent(ctx, intentID)
}

func (g *fakeGateway) GetPaymentIntent(ctx context.Context, intentID string) (*payment.Intent, error) {
	return g.getIntent(ctx, intentID)
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	return g.createCheckout(ctx, req)
}

func (g *fakeGateway) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	return g.parseWebhook(payload, signature)
}

func (g *fakeGateway) Refund(ctx context.Context, req payment.RefundRequest) (*payment.Refund, error) {
	return g.refund(ctx, req)
}

func (g *fakeGateway) PublishableKey() string { return "pk_test_123" }

func newPaymentFixture(t *testing.T, gw *fakeGateway) (*orderFixture, PaymentService) {
	t.Helper()
	f := newOrderFixture(t)
	svc := NewPaymentService(PaymentDeps{
		Gateway:    gw,
		Orders:     f.orders,
		Store:      f.store,
		Currency:   "USD",
		SuccessURL: "https://shop.example/success",
		CancelURL:  "https://shop.example/cancel",
	})
	return f, svc
}

func TestCreatePaymentIntentChargesOrderTotal(t *testing.T) {
	var got payment.IntentRequest
	gw := &fakeGateway{
		createIntent: func(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
			got = req
			return &payment.Intent{ID: "pi_1", ClientSecret: "secret", Status: "requires_payment_method", Amount: req.Amount, Currency: req.Currency}, nil
		},
	}
	f, payments := newPaymentFixture(t, gw)
	ctx := context.Background()
	order := f.place(t)

	intent, err := payments.CreatePaymentIntent(ctx, f.user.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
	requireMoney(t, "25.00", got.Amount)
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, "alice@example.com", got.ReceiptEmail)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1", stored.PaymentIntentID)

	details, err := f.store.Payments().ListByOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, repository.TxPending, details[0].Status)

	_, err = payments.CreatePaymentIntent(ctx, f.user.ID+1, order.ID)
	require.ErrorIs(t, err, ErrForbidden)
}

func TestCreatePaymentIntentRejectsSettledOrders(t *testing.T) {
	gw := &fakeGateway{
		createIntent: func(context.Context, payment.IntentRequest) (*payment.Intent, error) {
			t.Fatal("gateway must not be called")
			return nil, nil
		},
	}
	f, payments := newPaymentFixture(t, gw)
	ctx := context.Background()

	paid := f.place(t)
	_, err := f.orders.MarkOrderAsPaid(ctx, paid.ID, "", "")
	require.NoError(t, err)
	_, err = payments.CreatePaymentIntent(ctx, f.user.ID, paid.ID)
	require.ErrorIs(t, err, ErrConflict)

	cancelled := f.place(t)
	_, err = f.orders.CancelOrder(ctx, cancelled.ID, nil)
	require.NoError(t, err)
	_, err = payments.CreatePaymentIntent(ctx, f.user.ID, cancelled.ID)
	require.ErrorIs(t, err, ErrConflict)
}

func TestGatewayErrorsAreWrapped(t *testing.T) {
	gw := &fakeGateway{
		createIntent: func(context.Context, payment.IntentRequest) (*payment.Intent, error) {
			return nil, errors.New("card network down")
		},
	}
	f, payments := newPaymentFixture(t, gw)
	order := f.place(t)

	_, err := payments.CreatePaymentIntent(context.Background(), f.user.ID, order.ID)
	require.ErrorIs(t, err, ErrGateway)
}

func TestCheckoutSessionUsesConfiguredURLs(t *testing.T) {
	var got payment.CheckoutRequest
	gw := &fakeGateway{
		createCheckout: func(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
			got = req
			return &payment.CheckoutSession{ID: "cs_1", URL: "https://checkout.example/cs_1"}, nil
		},
	}
	f, payments := newPaymentFixture(t, gw)
	ctx := context.Background()
	order := f.place(t)

	session, err := payments.CreateCheckoutSession(ctx, f.user.ID, CheckoutInput{OrderID: order.ID, CancelURL: "https://app.example/back"})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, "https://shop.example/success", got.SuccessURL)
	assert.Equal(t, "https://app.example/back", got.CancelURL)
	requireMoney(t, "25.00", got.Amount)

	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", stored.PaymentIntentID)
}

func TestIntentOperationsCheckOwnership(t *testing.T) {
	gw := &fakeGateway{
		createIntent: func(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
			return &payment.Intent{ID: "pi_own", Amount: req.Amount}, nil
		},
		getIntent: func(_ context.Context, id string) (*payment.Intent, error) {
			return &payment.Intent{ID: id, Status: "processing"}, nil
		},
		cancelIntent: func(_ context.Context, id string) (*payment.Intent, error) {
			return &payment.Intent{ID: id, Status: "canceled"}, nil
		},
		confirmIntent: func(_ context.Context, id, method string) (*payment.Intent, error) {
			assert.Equal(t, "pm_card_visa", method)
			return &payment.Intent{ID: id, Status: "succeeded", LastFour: "4242"}, nil
		},
	}
	f, payments := newPaymentFixture(t, gw)
	ctx := context.Background()
	order := f.place(t)
	_, err := payments.CreatePaymentIntent(ctx, f.user.ID, order.ID)
	require.NoError(t, err)

	_, err = payments.GetPaymentIntent(ctx, f.user.ID+1, "pi_own")
	require.ErrorIs(t, err, ErrForbidden)
	_, err = payments.GetPaymentIntent(ctx, f.user.ID, "pi_missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = payments.CancelPaymentIntent(ctx, f.user.ID, " ")
	require.ErrorIs(t, err, ErrInvalidArgument)

	confirmed, err := payments.ConfirmPaymentIntent(ctx, f.user.ID, "pi_own", " pm_card_visa ")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", confirmed.Status)

	// Confirmation only records gateway details; the webhook settles the order.
	stored, err := f.orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, repository.PaymentPending, stored.PaymentStatus)
	details, err := f.store.Payments().FindByTransaction(ctx, "pi_own")
	require.NoError(t, err)
	assert.Equal(t, repository.TxCompleted, details.Status)
	assert.Equal(t, "4242", details.LastFour)

	cancelled, err := payments.CancelPaymentIntent(ctx, f.user.ID, "pi_own")
	require.NoError(t, err)
	assert.Equal(t, "canceled", cancelled.Status)
}

func TestWebhookSettlesOrders(t *testing.T) {
	var next *payment.Event
	gw := &fakeGateway{
		parseWebhook: func(_ []byte, signature string) (*payment.Event, error) {
			if signature != "good" {
				return nil, payment.ErrInvalidSignature
			}
			return next, nil
		},
	}
	f, payments := newPaymentFixture(t, gw)
	ctx := context.Background()

	t.Run("bad signature", func(t *testing.T) {
		err := payments.HandleWebhook(ctx, []byte(`{}`), "bad")
		require.ErrorIs(t, err, payment.ErrInvalidSignature)
	})

	t.Run("checkout completed by metadata", func(t *testing.T) {
		order := f.place(t)
		next = &payment.Event{
			ID:              "evt_1",
			Type:            payment.EventCheckoutCompleted,
			ObjectID:        "cs_42",
			OrderID:         order.ID,
			PaymentIntentID: "pi_42",
			Amount:          money("25.00"),
			Currency:        "usd",
			ReceiptURL:      "https://receipt.example/42",
		}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.PaymentPaid, stored.PaymentStatus)
		assert.Equal(t, repository.OrderProcessing, stored.Status)
		assert.Equal(t, "pi_42", stored.PaymentIntentID)

		details, err := f.store.Payments().FindByTransaction(ctx, "pi_42")
		require.NoError(t, err)
		assert.Equal(t, repository.TxCompleted, details.Status)
		require.NotNil(t, details.PaymentDate)
	})

	t.Run("failure resolved through stored intent", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.SavePaymentSession(ctx, order.ID, "pi_77")
		require.NoError(t, err)
		next = &payment.Event{
			ID:              "evt_2",
			Type:            payment.EventIntentFailed,
			ObjectID:        "pi_77",
			PaymentIntentID: "pi_77",
			FailureMessage:  "card declined",
		}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderPaymentFailed, stored.Status)
		assert.Equal(t, repository.PaymentFailed, stored.PaymentStatus)
		assert.Equal(t, "pi_77", stored.PaymentIntentID)
	})

	t.Run("failure keeps the declined intent", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.SavePaymentSession(ctx, order.ID, "cs_78")
		require.NoError(t, err)
		next = &payment.Event{
			ID:              "evt_2b",
			Type:            payment.EventIntentFailed,
			ObjectID:        "pi_78",
			OrderID:         order.ID,
			PaymentIntentID: "pi_78",
		}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.PaymentFailed, stored.PaymentStatus)
		assert.Equal(t, "pi_78", stored.PaymentIntentID)
	})

	t.Run("refund", func(t *testing.T) {
		order := f.place(t)
		_, err := f.orders.MarkOrderAsPaid(ctx, order.ID, "pi_88", "")
		require.NoError(t, err)
		next = &payment.Event{ID: "evt_3", Type: payment.EventChargeRefunded, ObjectID: "ch_1", PaymentIntentID: "pi_88"}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))

		stored, err := f.orders.Get(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, repository.OrderRefunded, stored.Status)
		assert.Equal(t, repository.PaymentRefunded, stored.PaymentStatus)
	})

	t.Run("unknown order is acknowledged", func(t *testing.T) {
		next = &payment.Event{ID: "evt_4", Type: payment.EventIntentSucceeded, PaymentIntentID: "pi_nobody"}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))
	})

	t.Run("ignored type", func(t *testing.T) {
		next = &payment.Event{ID: "evt_5", Type: "customer.created"}
		require.NoError(t, payments.HandleWebhook(ctx, []byte(`{}`), "good"))
	})
}

func TestPaymentServiceWithoutGateway(t *testing.T) {
	payments := NewPaymentService(PaymentDeps{})
	assert.Empty(t, payments.PublishableKey())
	_, err := payments.CreatePaymentIntent(context.Background(), 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.ErrorIs(t, payments.HandleWebhook(context.Background(), nil, ""), ErrNotConfigured)
}
