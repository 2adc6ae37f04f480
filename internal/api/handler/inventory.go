package handler

import (
	"net/http"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// InventoryHandler serves stock lookups for users and stock management for admins.
type InventoryHandler struct {
	inventory service.InventoryService
	i18n      *i18n.Manager
}

func NewInventoryHandler(inventory service.InventoryService, i18nMgr *i18n.Manager) *InventoryHandler {
	return &InventoryHandler{inventory: inventory, i18n: i18nMgr}
}

type inventoryRequest struct {
	ProductID         int64  `json:"productId"`
	Quantity          int    `json:"quantity"`
	LowStockThreshold *int   `json:"lowStockThreshold"`
	Location          string `json:"location"`
}

type stockRequest struct {
	// Delta is added to the current quantity and may be negative.
	Delta int `json:"delta"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type thresholdRequest struct {
	Threshold int `json:"threshold"`
}

type locationRequest struct {
	Location string `json:"location"`
}

func (h *InventoryHandler) GetByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	inv, err := h.inventory.GetByProduct(r.Context(), productID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryView(inv))
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.List(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryViews(items))
}

func (h *InventoryHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStock(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryViews(items))
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	inv, err := h.inventory.Create(r.Context(), service.InventoryInput{
		ProductID:         req.ProductID,
		Quantity:          req.Quantity,
		LowStockThreshold: req.LowStockThreshold,
		Location:          req.Location,
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toInventoryView(inv))
}

// UpdateStock applies a signed delta. A result below zero is rejected with 400.
func (h *InventoryHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	h.update(w, r, &req, func(productID int64) (*repository.Inventory, error) {
		return h.inventory.UpdateStock(r.Context(), productID, req.Delta)
	})
}

func (h *InventoryHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	h.update(w, r, &req, func(productID int64) (*repository.Inventory, error) {
		return h.inventory.SetQuantity(r.Context(), productID, req.Quantity)
	})
}

func (h *InventoryHandler) UpdateThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdRequest
	h.update(w, r, &req, func(productID int64) (*repository.Inventory, error) {
		return h.inventory.UpdateThreshold(r.Context(), productID, req.Threshold)
	})
}

func (h *InventoryHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	h.update(w, r, &req, func(productID int64) (*repository.Inventory, error) {
		return h.inventory.UpdateLocation(r.Context(), productID, req.Location)
	})
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if err := h.inventory.Delete(r.Context(), id); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondNoContent(w)
}

func (h *InventoryHandler) update(w http.ResponseWriter, r *http.Request, req any, apply func(productID int64) (*repository.Inventory, error)) {
	productID, err := pathID(r, "productId")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if err := decodeJSON(r, req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	inv, err := apply(productID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryView(inv))
}
