// 文件路径: internal/api/middleware/auth.go
// 模块说明: Bearer 令牌鉴权中间件，区分普通用户与管理员。
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cliqshop/shop/internal/api/requestctx"
	"github.com/cliqshop/shop/internal/service"
)

// UserGuard ensures requests are authenticated end users.
func UserGuard(auth service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, auth)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithUserClaims(r.Context(), claims)))
		})
	}
}

// AdminGuard ensures requests originate from authenticated admins.
func AdminGuard(auth service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := authenticate(w, r, auth)
			if !ok {
				return
			}
			if !claims.IsAdmin() {
				writeForbidden(w, "admin privileges required")
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithUserClaims(r.Context(), claims)))
		})
	}
}

func authenticate(w http.ResponseWriter, r *http.Request, auth service.AuthService) (requestctx.UserClaims, bool) {
	if auth == nil {
		writeUnauthorized(w, "auth service unavailable")
		return requestctx.UserClaims{}, false
	}
	token := extractBearer(r.Header.Get("Authorization"))
	if token == "" {
		writeUnauthorized(w, "missing authorization header")
		return requestctx.UserClaims{}, false
	}
	claims, err := auth.Verify(r.Context(), token)
	if err != nil || claims == nil {
		writeUnauthorized(w, "invalid or expired token")
		return requestctx.UserClaims{}, false
	}
	return requestctx.UserClaims{
		ID:       claims.UserID,
		Username: claims.Username,
		Email:    claims.Email,
		Role:     claims.Role,
	}, true
}

func extractBearer(header string) string {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, message)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
