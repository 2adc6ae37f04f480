// 文件路径: internal/api/handler/catalog.go
// 模块说明: 商品与分类的公开查询接口，以及管理端的增删改。
package handler

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// CatalogHandler serves products and categories.
type CatalogHandler struct {
	products   service.ProductService
	categories service.CategoryService
	i18n       *i18n.Manager
}

func NewCatalogHandler(products service.ProductService, categories service.CategoryService, i18nMgr *i18n.Manager) *CatalogHandler {
	return &CatalogHandler{products: products, categories: categories, i18n: i18nMgr}
}

type productRequest struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	ImageURL     string          `json:"imageUrl"`
	CategoryID   *int64          `json:"categoryId"`
	InitialStock int             `json:"initialStock"`
}

func (req productRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:         req.Name,
		Description:  req.Description,
		Price:        req.Price,
		ImageURL:     req.ImageURL,
		CategoryID:   req.CategoryID,
		InitialStock: req.InitialStock,
	}
}

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, _, _ := pageFromQuery(r)
	products, err := h.products.List(r.Context(), page)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductViews(products))
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductView(product))
}

func (h *CatalogHandler) ProductsByCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, err := pathID(r, "categoryId")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	page, _, _ := pageFromQuery(r)
	products, err := h.products.ListByCategory(r.Context(), categoryID, page)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductViews(products))
}

func (h *CatalogHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	page, _, _ := pageFromQuery(r)
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	products, err := h.products.Search(r.Context(), name, page)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductViews(products))
}

func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	product, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toProductView(product))
}

func (h *CatalogHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	product, err := h.products.Update(r.Context(), id, req.input())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductView(product))
}

func (h *CatalogHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondNoContent(w)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryViews(categories))
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryView(category))
}

func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	category, err := h.categories.Create(r.Context(), service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toCategoryView(category))
}

func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	category, err := h.categories.Update(r.Context(), id, service.CategoryInput{Name: req.Name, Description: req.Description})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryView(category))
}

func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondNoContent(w)
}
