package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

func newI18n(t *testing.T) *i18n.Manager {
	t.Helper()
	mgr, err := i18n.NewManager()
	require.NoError(t, err)
	return mgr
}

func asUser(r *http.Request, id int64) *http.Request {
	ctx := requestctx.WithUserClaims(r.Context(), requestctx.UserClaims{ID: id, Username: "buyer", Role: repository.RoleUser})
	return r.WithContext(ctx)
}

func withLang(r *http.Request, lang string) *http.Request {
	return r.WithContext(requestctx.WithLanguage(r.Context(), lang))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err        error
		wantStatus int
		wantKey    string
		wantDetail bool
	}{
		{service.ErrNotFound, http.StatusNotFound, "error.not_found", false},
		{fmt.Errorf("%w: quantity must be positive", service.ErrInvalidArgument), http.StatusBadRequest, "error.invalid_argument", true},
		{fmt.Errorf("%w: mug", service.ErrInsufficientStock), http.StatusBadRequest, "error.insufficient_stock", true},
		{fmt.Errorf("%w: bad header", payment.ErrInvalidSignature), http.StatusBadRequest, "error.invalid_signature", false},
		{service.ErrForbidden, http.StatusForbidden, "error.forbidden", false},
		{service.ErrInvalidCredentials, http.StatusUnauthorized, "error.invalid_credentials", false},
		{service.ErrEmailExists, http.StatusConflict, "error.email_exists", false},
		{fmt.Errorf("%w: already paid", service.ErrConflict), http.StatusConflict, "error.conflict", true},
		{service.ErrRateLimited, http.StatusTooManyRequests, "error.rate_limited", false},
		{fmt.Errorf("%w: card declined", service.ErrGateway), http.StatusBadGateway, "error.payment_gateway", true},
		{service.ErrNotConfigured, http.StatusServiceUnavailable, "error.not_configured", false},
		{errors.New("disk full"), http.StatusInternalServerError, "error.internal", false},
	}
	for _, tc := range cases {
		t.Run(tc.wantKey, func(t *testing.T) {
			status, key, detail := statusForError(tc.err)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantDetail, detail)
		})
	}
}

func TestRespondServiceErrorHidesInternalText(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(context.Background(), rec, errors.New("sql: connection refused"), newI18n(t))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Internal server error", body["error"])
	assert.NotContains(t, body, "detail")
}

func TestRespondServiceErrorTranslates(t *testing.T) {
	mgr := newI18n(t)
	rec := httptest.NewRecorder()
	ctx := requestctx.WithLanguage(context.Background(), "zh-CN")
	respondServiceError(ctx, rec, fmt.Errorf("order 9: %w", service.ErrNotFound), mgr)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "资源不存在", decodeBody(t, rec)["error"])
}

type fakeOrders struct {
	service.OrderService
	place  func(ctx context.Context, input service.PlaceOrderInput) (*repository.Order, error)
	cancel func(ctx context.Context, orderID int64, userID *int64) (bool, error)
	list   func(ctx context.Context, filter service.OrderListFilter) ([]*repository.Order, int64, error)
	refund func(ctx context.Context, orderID int64) (*repository.Order, error)
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, input service.PlaceOrderInput) (*repository.Order, error) {
	return f.place(ctx, input)
}

func (f *fakeOrders) CancelOrder(ctx context.Context, orderID int64, userID *int64) (bool, error) {
	return f.cancel(ctx, orderID, userID)
}

func (f *fakeOrders) RefundOrder(ctx context.Context, orderID int64) (*repository.Order, error) {
	return f.refund(ctx, orderID)
}

func (f *fakeOrders) List(ctx context.Context, filter service.OrderListFilter) ([]*repository.Order, int64, error) {
	return f.list(ctx, filter)
}

func TestPlaceOrderReturnsCreatedView(t *testing.T) {
	var got service.PlaceOrderInput
	orders := &fakeOrders{place: func(_ context.Context, input service.PlaceOrderInput) (*repository.Order, error) {
		got = input
		return &repository.Order{
			ID:            7,
			UserID:        input.UserID,
			Status:        repository.OrderPending,
			PaymentStatus: repository.PaymentPending,
			TotalAmount:   decimal.RequireFromString("25"),
			Items: []repository.OrderItem{{
				ProductID:   1,
				ProductName: "Mug",
				Quantity:    2,
				UnitPrice:   decimal.RequireFromString("12.5"),
				Subtotal:    decimal.RequireFromString("25"),
			}},
		}, nil
	}}
	h := NewOrderHandler(orders, newI18n(t))

	body := `{"items":[{"productId":1,"quantity":2}],"shippingAddressId":3}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(body)), 42)
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 42, got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	require.NotNil(t, got.ShippingAddressID)
	assert.EqualValues(t, 3, *got.ShippingAddressID)

	view := decodeBody(t, rec)
	assert.Equal(t, "25.00", view["totalAmount"])
	assert.Equal(t, "PENDING", view["status"])
	items := view["items"].([]any)
	assert.Equal(t, "12.50", items[0].(map[string]any)["unitPrice"])
}

func TestPlaceOrderRequiresCaller(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, newI18n(t))
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", decodeBody(t, rec)["error"])
}

func TestPlaceOrderRejectsMalformedJSON(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, newI18n(t))
	req := asUser(httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString(`{"items":`)), 1)
	req = withLang(req, "zh-CN")
	rec := httptest.NewRecorder()
	h.PlaceOrder(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "请求参数无效", body["error"])
	assert.NotEmpty(t, body["detail"])
}

func TestCancelMine(t *testing.T) {
	t.Run("cancelled", func(t *testing.T) {
		var gotUser *int64
		orders := &fakeOrders{cancel: func(_ context.Context, orderID int64, userID *int64) (bool, error) {
			assert.EqualValues(t, 5, orderID)
			gotUser = userID
			return true, nil
		}}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/orders/5/cancel", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.CancelMine(rec, asUser(req, 9))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Order cancelled", decodeBody(t, rec)["message"])
		require.NotNil(t, gotUser)
		assert.EqualValues(t, 9, *gotUser)
	})

	t.Run("not cancellable", func(t *testing.T) {
		orders := &fakeOrders{cancel: func(context.Context, int64, *int64) (bool, error) { return false, nil }}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/orders/5/cancel", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.CancelMine(rec, asUser(req, 9))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Order can no longer be cancelled", decodeBody(t, rec)["error"])
	})

	t.Run("someone else's order", func(t *testing.T) {
		orders := &fakeOrders{cancel: func(context.Context, int64, *int64) (bool, error) { return false, service.ErrForbidden }}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/orders/5/cancel", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.CancelMine(rec, asUser(req, 9))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		h := NewOrderHandler(&fakeOrders{}, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPut, "/api/orders/x/cancel", nil), "id", "x")
		rec := httptest.NewRecorder()
		h.CancelMine(rec, asUser(req, 9))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminRefundGoesThroughGateway(t *testing.T) {
	t.Run("refunded", func(t *testing.T) {
		orders := &fakeOrders{refund: func(_ context.Context, orderID int64) (*repository.Order, error) {
			assert.EqualValues(t, 5, orderID)
			return &repository.Order{ID: 5, Status: repository.OrderRefunded, PaymentStatus: repository.PaymentRefunded}, nil
		}}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/admin/orders/5/refund", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, string(repository.PaymentRefunded), decodeBody(t, rec)["paymentStatus"])
	})

	t.Run("never paid", func(t *testing.T) {
		orders := &fakeOrders{refund: func(context.Context, int64) (*repository.Order, error) {
			return nil, fmt.Errorf("%w: order 5 was never paid", service.ErrInvalidArgument)
		}}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/admin/orders/5/refund", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("gateway down", func(t *testing.T) {
		orders := &fakeOrders{refund: func(context.Context, int64) (*repository.Order, error) {
			return nil, fmt.Errorf("%w: refund order 5", service.ErrGateway)
		}}
		h := NewOrderHandler(orders, newI18n(t))
		req := withURLParam(httptest.NewRequest(http.MethodPost, "/api/admin/orders/5/refund", nil), "id", "5")
		rec := httptest.NewRecorder()
		h.Refund(rec, req)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestAdminListFiltersAndPages(t *testing.T) {
	var got service.OrderListFilter
	orders := &fakeOrders{list: func(_ context.Context, filter service.OrderListFilter) ([]*repository.Order, int64, error) {
		got = filter
		return []*repository.Order{{ID: 1, Status: repository.OrderShipped, TotalAmount: decimal.NewFromInt(3)}}, 41, nil
	}}
	h := NewOrderHandler(orders, newI18n(t))
	rec := httptest.NewRecorder()
	h.AdminList(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=shipped&page=3&size=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, repository.OrderShipped, got.Status)
	assert.Equal(t, 10, got.Page.Limit)
	assert.Equal(t, 20, got.Page.Offset)

	body := decodeBody(t, rec)
	assert.EqualValues(t, 41, body["total"])
	assert.EqualValues(t, 3, body["page"])
	assert.EqualValues(t, 10, body["pageSize"])
	assert.Len(t, body["data"], 1)

	rec = httptest.NewRecorder()
	h.AdminList(rec, httptest.NewRequest(http.MethodGet, "/api/admin/orders?status=lost", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakePayments struct {
	service.PaymentService
	webhook func(ctx context.Context, payload []byte, signature string) error
}

func (f *fakePayments) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	return f.webhook(ctx, payload, signature)
}

func (f *fakePayments) PublishableKey() string { return "pk_test_abc" }

func TestStripeWebhook(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		var gotSig string
		var gotPayload []byte
		payments := &fakePayments{webhook: func(_ context.Context, payload []byte, signature string) error {
			gotPayload, gotSig = payload, signature
			return nil
		}}
		h := NewPaymentHandler(payments, newI18n(t), nil)
		req := httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewBufferString(`{"type":"ping"}`))
		req.Header.Set("Stripe-Signature", " t=1,v1=abc ")
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, true, decodeBody(t, rec)["received"])
		assert.Equal(t, "t=1,v1=abc", gotSig)
		assert.JSONEq(t, `{"type":"ping"}`, string(gotPayload))
	})

	t.Run("bad signature", func(t *testing.T) {
		payments := &fakePayments{webhook: func(context.Context, []byte, string) error {
			return fmt.Errorf("%w: no v1", payment.ErrInvalidSignature)
		}}
		h := NewPaymentHandler(payments, newI18n(t), nil)
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewBufferString(`{}`)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid webhook signature", decodeBody(t, rec)["error"])
	})

	t.Run("oversized body", func(t *testing.T) {
		payments := &fakePayments{webhook: func(context.Context, []byte, string) error {
			t.Fatal("webhook should not be invoked")
			return nil
		}}
		h := NewPaymentHandler(payments, newI18n(t), nil)
		big := bytes.Repeat([]byte("a"), maxWebhookBytes+1)
		rec := httptest.NewRecorder()
		h.StripeWebhook(rec, httptest.NewRequest(http.MethodPost, "/api/webhook/stripe", bytes.NewReader(big)))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestPaymentConfig(t *testing.T) {
	h := NewPaymentHandler(&fakePayments{}, newI18n(t), nil)
	rec := httptest.NewRecorder()
	h.Config(rec, httptest.NewRequest(http.MethodGet, "/api/payments/config", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pk_test_abc", decodeBody(t, rec)["publishableKey"])
}
