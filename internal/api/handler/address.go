// 文件路径: internal/api/handler/address.go
// 模块说明: 用户收货/账单地址接口，所有操作都限定在当前登录用户名下。
package handler

import (
	"net/http"
	"strings"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// AddressHandler serves /api/addresses.
type AddressHandler struct {
	addresses service.AddressService
	i18n      *i18n.Manager
}

func NewAddressHandler(addresses service.AddressService, i18nMgr *i18n.Manager) *AddressHandler {
	return &AddressHandler{addresses: addresses, i18n: i18nMgr}
}

type addressRequest struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Type       string `json:"type"`
	IsDefault  bool   `json:"isDefault"`
}

func (req addressRequest) input() service.AddressInput {
	return service.AddressInput{
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
		Type:       repository.AddressType(strings.ToUpper(strings.TrimSpace(req.Type))),
		IsDefault:  req.IsDefault,
	}
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	addresses, err := h.addresses.ListByUser(r.Context(), userID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toAddressViews(addresses))
}

func (h *AddressHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	address, err := h.addresses.Get(r.Context(), userID, id)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toAddressView(address))
}

func (h *AddressHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	address, err := h.addresses.Create(r.Context(), userID, req.input())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toAddressView(address))
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	address, err := h.addresses.Update(r.Context(), userID, id, req.input())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toAddressView(address))
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	if err := h.addresses.Delete(r.Context(), userID, id); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondNoContent(w)
}

// Default returns the default address of ?type= (SHIPPING when omitted).
func (h *AddressHandler) Default(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	addrType := repository.AddressType(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("type"))))
	if addrType == "" {
		addrType = repository.AddressShipping
	}
	address, err := h.addresses.Default(r.Context(), userID, addrType)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toAddressView(address))
}

func (h *AddressHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.ids(w, r)
	if !ok {
		return
	}
	address, err := h.addresses.SetDefault(r.Context(), userID, id)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toAddressView(address))
}

func (h *AddressHandler) ids(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return 0, 0, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return 0, 0, false
	}
	return userID, id, true
}
