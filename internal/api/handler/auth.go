// 文件路径: internal/api/handler/auth.go
// 模块说明: 注册、登录、刷新、登出以及第三方登录回调接口。
package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// AuthHandler exposes /api/auth.
type AuthHandler struct {
	auth             service.AuthService
	oauth            service.OAuthService
	i18n             *i18n.Manager
	frontendRedirect string
}

// NewAuthHandler wires the auth services. frontendRedirect, when set, receives OAuth results
// in the URL fragment instead of a JSON body.
func NewAuthHandler(auth service.AuthService, oauth service.OAuthService, i18nMgr *i18n.Manager, frontendRedirect string) *AuthHandler {
	return &AuthHandler{auth: auth, oauth: oauth, i18n: i18nMgr, frontendRedirect: frontendRedirect}
}

type registerRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type loginRequest struct {
	// Identifier accepts either email or username; Email and Username are accepted as aliases.
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register creates a USER account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	user, err := h.auth.Register(r.Context(), service.RegisterInput{
		Username:   req.Username,
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		ClientMeta: clientMeta(r),
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message": translate(r.Context(), h.i18n, "success.registered"),
		"data":    toUserView(user),
	})
}

// Login issues an access and refresh token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	identifier := firstNonEmpty(req.Identifier, req.Email, req.Username)
	result, err := h.auth.Login(r.Context(), service.LoginInput{
		Identifier: identifier,
		Password:   req.Password,
		ClientMeta: clientMeta(r),
	})
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toLoginView(result))
}

// Refresh rotates the refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	result, err := h.auth.Refresh(r.Context(), req.RefreshToken, clientMeta(r))
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	respondJSON(w, http.StatusOK, toLoginView(result))
}

// Logout revokes the supplied refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	RespondSuccessI18n(r.Context(), w, "success.logged_out", h.i18n, nil)
}

// OAuthStart redirects the browser to the provider consent page.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondServiceError(r.Context(), w, service.ErrNotConfigured, h.i18n)
		return
	}
	target, err := h.oauth.AuthURL(r.Context(), chi.URLParam(r, "provider"))
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// OAuthCallback finishes the code exchange and signs the user in.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		respondServiceError(r.Context(), w, service.ErrNotConfigured, h.i18n)
		return
	}
	q := r.URL.Query()
	if reason := q.Get("error"); reason != "" {
		RespondErrorI18n(r.Context(), w, http.StatusUnauthorized, "error.oauth_denied", h.i18n, reason)
		return
	}
	result, err := h.oauth.Callback(r.Context(), chi.URLParam(r, "provider"), q.Get("state"), q.Get("code"), clientMeta(r))
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	if h.frontendRedirect == "" {
		respondJSON(w, http.StatusOK, toLoginView(result))
		return
	}
	target, err := url.Parse(h.frontendRedirect)
	if err != nil {
		respondServiceError(r.Context(), w, err, h.i18n)
		return
	}
	fragment := url.Values{}
	fragment.Set("token", result.Token)
	fragment.Set("refreshToken", result.RefreshToken)
	fragment.Set("expiresAt", strconv.FormatInt(result.ExpiresAt.Unix(), 10))
	target.Fragment, target.RawFragment = "", ""
	http.Redirect(w, r, target.String()+"#"+fragment.Encode(), http.StatusFound)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
