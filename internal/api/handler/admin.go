// 文件路径: internal/api/handler/admin.go
// 模块说明: 管理端仪表盘与报表接口。
package handler

import (
	"net/http"

	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// AdminHandler serves dashboard counters and sales/inventory reports.
type AdminHandler struct {
	reports   service.ReportService
	inventory service.InventoryService
	i18n      *i18n.Manager
}

func NewAdminHandler(reports service.ReportService, inventory service.InventoryService, i18nMgr *i18n.Manager) *AdminHandler {
	return &AdminHandler{reports: reports, inventory: inventory, i18n: i18nMgr}
}

type salesReportView struct {
	TotalOrders        int64            `json:"totalOrders"`
	PaidOrders         int64            `json:"paidOrders"`
	TotalRevenue       string           `json:"totalRevenue"`
	AvgOrderValue      string           `json:"avgOrderValue"`
	StatusDistribution map[string]int64 `json:"statusDistribution"`
}

type inventoryReportView struct {
	TotalProducts int64  `json:"totalProducts"`
	TotalUnits    int64  `json:"totalUnits"`
	TotalValue    string `json:"totalValue"`
	LowStockItems int64  `json:"lowStockItems"`
}

type dashboardView struct {
	TotalProducts   int64 `json:"totalProducts"`
	TotalUsers      int64 `json:"totalUsers"`
	TotalCategories int64 `json:"totalCategories"`
	TotalOrders     int64 `json:"totalOrders"`
	LowStockItems   int64 `json:"lowStockItems"`
}

func toSalesReportView(report *service.SalesReport) salesReportView {
	dist := make(map[string]int64, len(repository.OrderStatuses))
	for _, status := range repository.OrderStatuses {
		dist[string(status)] = report.StatusDistribution[status]
	}
	return salesReportView{
		TotalOrders:        report.TotalOrders,
		PaidOrders:         report.PaidOrders,
		TotalRevenue:       money(report.TotalRevenue),
		AvgOrderValue:      money(report.AvgOrderValue),
		StatusDistribution: dist,
	}
}

func toInventoryReportView(report *service.InventoryReport) inventoryReportView {
	return inventoryReportView{
		TotalProducts: report.TotalProducts,
		TotalUnits:    report.TotalUnits,
		TotalValue:    money(report.TotalValue),
		LowStockItems: report.LowStockItems,
	}
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Dashboard(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, dashboardView{
		TotalProducts:   stats.TotalProducts,
		TotalUsers:      stats.TotalUsers,
		TotalCategories: stats.TotalCategories,
		TotalOrders:     stats.TotalOrders,
		LowStockItems:   stats.LowStockItems,
	})
}

// RecentProducts honours ?count=, defaulting to five.
func (h *AdminHandler) RecentProducts(w http.ResponseWriter, r *http.Request) {
	count := clampQueryInt(r.URL.Query().Get("count"), 0, maxPageSize)
	products, err := h.reports.RecentProducts(r.Context(), count)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toProductViews(products))
}

func (h *AdminHandler) RecentCategories(w http.ResponseWriter, r *http.Request) {
	count := clampQueryInt(r.URL.Query().Get("count"), 0, maxPageSize)
	categories, err := h.reports.RecentCategories(r.Context(), count)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toCategoryViews(categories))
}

func (h *AdminHandler) LowStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.inventory.LowStock(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryViews(items))
}

// Reports returns the sales and inventory reports together.
func (h *AdminHandler) Reports(w http.ResponseWriter, r *http.Request) {
	sales, err := h.reports.Sales(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	inventory, err := h.reports.Inventory(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"sales":     toSalesReportView(sales),
		"inventory": toInventoryReportView(inventory),
	})
}

func (h *AdminHandler) SalesReport(w http.ResponseWriter, r *http.Request) {
	sales, err := h.reports.Sales(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toSalesReportView(sales))
}

func (h *AdminHandler) InventoryReport(w http.ResponseWriter, r *http.Request) {
	inventory, err := h.reports.Inventory(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toInventoryReportView(inventory))
}
