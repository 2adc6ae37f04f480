package handler

import (
	"net/http"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// CartHandler serves the caller's cart under /api/cart.
type CartHandler struct {
	carts service.CartService
	i18n  *i18n.Manager
}

func NewCartHandler(carts service.CartService, i18nMgr *i18n.Manager) *CartHandler {
	return &CartHandler{carts: carts, i18n: i18nMgr}
}

type cartItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	h.respond(w, r, func() (*service.CartSummary, error) {
		return h.carts.Get(r.Context(), userID)
	})
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	h.respond(w, r, func() (*service.CartSummary, error) {
		return h.carts.AddItem(r.Context(), userID, req.ProductID, req.Quantity)
	})
}

func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	h.respond(w, r, func() (*service.CartSummary, error) {
		return h.carts.UpdateItem(r.Context(), userID, productID, req.Quantity)
	})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	h.respond(w, r, func() (*service.CartSummary, error) {
		return h.carts.RemoveItem(r.Context(), userID, productID)
	})
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	h.respond(w, r, func() (*service.CartSummary, error) {
		return h.carts.Clear(r.Context(), userID)
	})
}

func (h *CartHandler) respond(w http.ResponseWriter, r *http.Request, fn func() (*service.CartSummary, error)) {
	summary, err := fn()
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toCartView(summary))
}
