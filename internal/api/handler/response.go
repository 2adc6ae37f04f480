package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/payment"
	"github.com/cliqshop/shop/internal/service"
	"github.com/cliqshop/shop/internal/support/i18n"
)

// Helper to respond with JSON
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response JSON", "error", err)
	}
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func translate(ctx context.Context, i18nMgr *i18n.Manager, key string, args ...any) string {
	if i18nMgr == nil {
		return key
	}
	return i18nMgr.Translate(requestctx.GetLanguage(ctx), key, args...)
}

// RespondErrorI18n writes {"error": <translated key>}.
func RespondErrorI18n(ctx context.Context, w http.ResponseWriter, status int, key string, i18nMgr *i18n.Manager, args ...any) {
	respondJSON(w, status, map[string]any{
		"error": translate(ctx, i18nMgr, key, args...),
	})
}

// RespondSuccessI18n writes {"message": <translated key>, "data": data} with 200.
func RespondSuccessI18n(ctx context.Context, w http.ResponseWriter, key string, i18nMgr *i18n.Manager, data any) {
	resp := map[string]any{
		"message": translate(ctx, i18nMgr, key),
	}
	if data != nil {
		resp["data"] = data
	}
	respondJSON(w, http.StatusOK, resp)
}

type errorMapping struct {
	target error
	status int
	key    string
	// detail exposes err.Error() so callers see the validation or gateway reason.
	detail bool
}

// 顺序有意义：更具体的哨兵放在前面。
var serviceErrorMappings = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, "error.not_found", false},
	{service.ErrInvalidPassword, http.StatusBadRequest, "error.invalid_password", true},
	{service.ErrInsufficientStock, http.StatusBadRequest, "error.insufficient_stock", true},
	{service.ErrInvalidArgument, http.StatusBadRequest, "error.invalid_argument", true},
	{payment.ErrInvalidSignature, http.StatusBadRequest, "error.invalid_signature", false},
	{service.ErrForbidden, http.StatusForbidden, "error.forbidden", false},
	{service.ErrAccountDisabled, http.StatusForbidden, "error.account_disabled", false},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "error.invalid_credentials", false},
	{service.ErrInvalidRefreshToken, http.StatusUnauthorized, "error.invalid_refresh_token", false},
	{service.ErrUnauthorized, http.StatusUnauthorized, "error.unauthorized", false},
	{service.ErrEmailExists, http.StatusConflict, "error.email_exists", false},
	{service.ErrUsernameExists, http.StatusConflict, "error.username_exists", false},
	{service.ErrPhoneExists, http.StatusConflict, "error.phone_exists", false},
	{service.ErrConflict, http.StatusConflict, "error.conflict", true},
	{service.ErrRateLimited, http.StatusTooManyRequests, "error.rate_limited", false},
	{service.ErrGateway, http.StatusBadGateway, "error.payment_gateway", true},
	{service.ErrNotConfigured, http.StatusServiceUnavailable, "error.not_configured", false},
}

// statusForError resolves the HTTP status and message key for a service error.
func statusForError(err error) (int, string, bool) {
	for _, m := range serviceErrorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.key, m.detail
		}
	}
	return http.StatusInternalServerError, "error.internal", false
}

// respondServiceError maps service sentinels to a status code. Unknown errors are logged and
// reported as 500 without leaking their text.
func respondServiceError(ctx context.Context, w http.ResponseWriter, err error, i18nMgr *i18n.Manager) {
	status, key, detail := statusForError(err)
	resp := map[string]any{
		"error": translate(ctx, i18nMgr, key),
	}
	if detail {
		resp["detail"] = err.Error()
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "unhandled service error", "error", err)
	}
	respondJSON(w, status, resp)
}
