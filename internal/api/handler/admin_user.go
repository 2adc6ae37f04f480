// 文件路径: internal/api/handler/admin_user.go
// 模块说明: 管理端用户管理接口，包括列表筛选、创建、修改、启停、删除与 CSV 导出。
package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/repository"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// AdminUserHandler exposes admin user endpoints.
type AdminUserHandler struct {
	users service.AdminUserService
	i18n  *i18n.Manager
}

// NewAdminUserHandler wires admin user service into HTTP surface.
func NewAdminUserHandler(users service.AdminUserService, i18nMgr *i18n.Manager) *AdminUserHandler {
	return &AdminUserHandler{users: users, i18n: i18nMgr}
}

type adminUserCreateRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Enabled  *bool  `json:"enabled"`
}

type adminUserUpdateRequest struct {
	Username *string `json:"username"`
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Role     *string `json:"role"`
	Enabled  *bool   `json:"enabled"`
	Password *string `json:"password"`
}

// List supports ?keyword=, ?role=, ?enabled= and paging.
func (h *AdminUserHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, page, size := userFilterFromQuery(r)
	users, total, err := h.users.List(r.Context(), filter)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, pagedPayload(toUserViews(users), total, page, size))
}

func (h *AdminUserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

func (h *AdminUserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req adminUserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.users.Create(r.Context(), service.AdminUserCreateInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Role:     req.Role,
		Enabled:  req.Enabled,
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, toUserView(user))
}

func (h *AdminUserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req adminUserUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.users.Update(r.Context(), id, service.AdminUserUpdateInput{
		Username: req.Username,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Role:     req.Role,
		Enabled:  req.Enabled,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

// ToggleStatus flips enabled; admins cannot disable themselves.
func (h *AdminUserHandler) ToggleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	actor := requestctx.UserFromContext(r.Context())
	user, err := h.users.ToggleStatus(r.Context(), id, actor.ID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

func (h *AdminUserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	actor := requestctx.UserFromContext(r.Context())
	if err := h.users.Delete(r.Context(), id, actor.ID); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondNoContent(w)
}

// Export streams the filtered user list as CSV.
func (h *AdminUserHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, _, _ := userFilterFromQuery(r)
	csvData, err := h.users.Export(r.Context(), filter)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=users_export.csv")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(csvData)
}

func userFilterFromQuery(r *http.Request) (repository.UserSearchFilter, int, int) {
	page, pageNo, size := pageFromQuery(r)
	q := r.URL.Query()
	filter := repository.UserSearchFilter{
		Keyword: strings.TrimSpace(q.Get("keyword")),
		Role:    strings.ToUpper(strings.TrimSpace(q.Get("role"))),
		Limit:   page.Limit,
		Offset:  page.Offset,
	}
	if raw := q.Get("enabled"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			filter.Enabled = &enabled
		}
	}
	return filter, pageNo, size
}
