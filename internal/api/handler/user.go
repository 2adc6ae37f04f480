// 文件路径: internal/api/handler/user.go
// 模块说明: 用户自助接口，查看与修改资料、修改密码。
package handler

import (
	"net/http"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// UserHandler 处理 /api/users。
type UserHandler struct {
	users service.UserService
	i18n  *i18n.Manager
}

func NewUserHandler(users service.UserService, i18nMgr *i18n.Manager) *UserHandler {
	return &UserHandler{users: users, i18n: i18nMgr}
}

type profileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.users.UpdateProfile(r.Context(), userID, service.ProfileInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toUserView(user))
}

func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	err = h.users.ChangePassword(r.Context(), userID, service.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	RespondSuccessI18n(r.Context(), w, "success.password_changed", h.i18n, nil)
}
