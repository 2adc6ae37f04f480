// 文件路径: internal/api/handler/order.go
// 模块说明: 用户下单、查看、取消订单，以及管理端的订单状态维护。
package handler

import (
	"net/http"
	"strings"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// OrderHandler serves /api/orders and /api/admin/orders.
type OrderHandler struct {
	orders service.OrderService
	i18n   *i18n.Manager
}

func NewOrderHandler(orders service.OrderService, i18nMgr *i18n.Manager) *OrderHandler {
	return &OrderHandler{orders: orders, i18n: i18nMgr}
}

type placeOrderRequest struct {
	Items []struct {
		ProductID int64 `json:"productId"`
		Quantity  int   `json:"quantity"`
	} `json:"items"`
	ShippingAddressID *int64 `json:"shippingAddressId"`
	BillingAddressID  *int64 `json:"billingAddressId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

// PlaceOrder creates a PENDING order for the caller.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	input := service.PlaceOrderInput{
		UserID:            userID,
		Items:             make([]service.OrderItemInput, 0, len(req.Items)),
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, service.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	order, err := h.orders.PlaceOrder(r.Context(), input)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toOrderView(order))
}

// ListMine lists the caller's orders, newest first.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	page, pageNo, size := pageFromQuery(r)
	orders, total, err := h.orders.ListByUser(r.Context(), userID, page)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, pagedPayload(toOrderViews(orders), total, pageNo, size))
}

// GetMine returns 403 for an order owned by another user.
func (h *OrderHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	order, err := h.orders.GetForUser(r.Context(), orderID, userID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toOrderView(order))
}

// CancelMine cancels the caller's order.
func (h *OrderHandler) CancelMine(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	h.cancel(w, r, &userID)
}

// AdminCancel cancels any order regardless of owner.
func (h *OrderHandler) AdminCancel(w http.ResponseWriter, r *http.Request) {
	h.cancel(w, r, nil)
}

func (h *OrderHandler) cancel(w http.ResponseWriter, r *http.Request, userID *int64) {
	orderID, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	ok, err := h.orders.CancelOrder(r.Context(), orderID, userID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if !ok {
		RespondErrorI18n(r.Context(), w, http.StatusBadRequest, "error.order_not_cancellable", h.i18n)
		return
	}
	RespondSuccessI18n(r.Context(), w, "success.order_cancelled", h.i18n, nil)
}

// AdminList lists all orders, optionally filtered by ?status=.
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	page, pageNo, size := pageFromQuery(r)
	filter := service.OrderListFilter{Page: page}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := service.ParseOrderStatus(raw)
		if err != nil {
			respondServiceError(r.Context(), w, err, h.i18n)
			return
		}
		filter.Status = status
	}
	orders, total, err := h.orders.List(r.Context(), filter)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, pagedPayload(toOrderViews(orders), total, pageNo, size))
}

func (h *OrderHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	order, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toOrderView(order))
}

// UpdateStatus accepts the status in the JSON body or as ?status=.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, raw, ok := h.statusParams(w, r)
	if !ok {
		return
	}
	status, err := service.ParseOrderStatus(raw)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	order, err := h.orders.UpdateOrderStatus(r.Context(), orderID, status)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toOrderView(order))
}

func (h *OrderHandler) UpdatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderID, raw, ok := h.statusParams(w, r)
	if !ok {
		return
	}
	status, err := service.ParsePaymentStatus(raw)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	order, err := h.orders.UpdatePaymentStatus(r.Context(), orderID, status)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toOrderView(order))
}

func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	orderID, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	order, err := h.orders.RefundOrder(r.Context(), orderID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toOrderView(order))
}

func (h *OrderHandler) statusParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	orderID, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return 0, "", false
	}
	raw := r.URL.Query().Get("status")
	if raw == "" {
		var req statusRequest
		if err := decodeJSON(r, &req); err != nil {
			respondServiceError(r.Context(), w, err, h.i18n)
			return 0, "", false
		}
		raw = req.Status
	}
	return orderID, raw, true
}

// Statuses lists the order statuses for admin filter menus.
func (h *OrderHandler) Statuses(w http.ResponseWriter, _ *http.Request) {
	out := make([]string, 0, len(repository.OrderStatuses))
	for _, s := range repository.OrderStatuses {
		out = append(out, string(s))
	}
	respondJSON(w, http.StatusOK, out)
}
