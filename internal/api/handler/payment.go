// 文件路径: internal/api/handler/payment.go
// 模块说明: 支付接口与 Stripe Webhook。用户接口都会校验订单归属，Webhook 依赖签名校验。
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

const maxWebhookBytes = 65536

// PaymentHandler serves /api/payments and /api/webhook/stripe.
type PaymentHandler struct {
	payments service.PaymentService
	i18n     *i18n.Manager
	logger   *slog.Logger
}

func NewPaymentHandler(payments service.PaymentService, i18nMgr *i18n.Manager, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandler{payments: payments, i18n: i18nMgr, logger: logger}
}

type createIntentRequest struct {
	OrderID int64 `json:"orderId"`
}

type checkoutRequest struct {
	OrderID    int64  `json:"orderId"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type confirmIntentRequest struct {
	PaymentMethodID string `json:"paymentMethodId"`
}

// Config exposes the publishable key to the storefront.
func (h *PaymentHandler) Config(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"publishableKey": h.payments.PublishableKey(),
	})
}

func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req createIntentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	intent, err := h.payments.CreatePaymentIntent(r.Context(), userID, req.OrderID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toIntentView(intent))
}

func (h *PaymentHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	session, err := h.payments.CreateCheckoutSession(r.Context(), userID, service.CheckoutInput{
		OrderID:    req.OrderID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// ConfirmPaymentIntent takes the payment method from the body or ?paymentMethodId=.
func (h *PaymentHandler) ConfirmPaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	methodID := r.URL.Query().Get("paymentMethodId")
	if methodID == "" && r.ContentLength != 0 {
		var req confirmIntentRequest
		if err := decodeJSON(r, &req); err != nil {
			respondServiceError(r.Context(), w, err, h.i18n)
			return
		}
		methodID = req.PaymentMethodID
	}
	intent, err := h.payments.ConfirmPaymentIntent(r.Context(), userID, chi.URLParam(r, "id"), methodID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toIntentView(intent))
}

func (h *PaymentHandler) CancelPaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	intent, err := h.payments.CancelPaymentIntent(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toIntentView(intent))
}

func (h *PaymentHandler) GetPaymentIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	intent, err := h.payments.GetPaymentIntent(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	view := toIntentView(intent)
	view.ClientSecret = ""
	respondJSON(w, http.StatusOK, view)
}

// StripeWebhook verifies the Stripe-Signature header. Only signature failures are reported
// back; processing errors are logged by the service and still acknowledged.
func (h *PaymentHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.invalid_argument", h.i18n)
		return
	}
	signature := strings.TrimSpace(r.Header.Get("Stripe-Signature"))
	if err := h.payments.HandleWebhook(r.Context(), payload, signature); err != nil {
		h.logger.WarnContext(r.Context(), "stripe webhook rejected", "error", err)
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"received": true})
}
