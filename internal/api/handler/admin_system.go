// 文件路径: internal/api/handler/admin_system.go
// 模块说明: 管理端系统状态接口，返回进程、主机资源与通知队列积压情况。
package handler

import (
	"net/http"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// AdminSystemHandler 提供系统仪表盘接口。
type AdminSystemHandler struct {
	system service.AdminSystemService
	i18n   *i18n.Manager
}

// NewAdminSystemHandler 绑定 service 实例。
func NewAdminSystemHandler(system service.AdminSystemService, i18nMgr *i18n.Manager) *AdminSystemHandler {
	return &AdminSystemHandler{system: system, i18n: i18nMgr}
}

// Status 返回系统状态。
func (h *AdminSystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.system.SystemStatus(r.Context())
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

// Languages lists the locales the API can answer in.
func (h *AdminSystemHandler) Languages(w http.ResponseWriter, _ *http.Request) {
	var langs []string
	if h.i18n != nil {
		langs = h.i18n.SupportedLanguages()
	}
	respondJSON(w, http.StatusOK, map[string]any{"languages": langs})
}
