// 文件路径: internal/api/requestctx/user.go
// 模块说明: 请求级上下文，保存鉴权中间件解析出的用户身份与协商出的语言。
package requestctx

import "context"

// UserClaims is the authenticated caller placed on the context by the auth guards.
type UserClaims struct {
	ID       int64
	Username string
	Email    string
	Role     string
}

// IsAdmin reports whether the caller carries the ADMIN role.
func (c UserClaims) IsAdmin() bool {
	return c.Role == "ADMIN"
}

type contextKey string

const userContextKey contextKey = "cliqshop-user"

const defaultLanguage = "en-US"

// I18nKey 用于在 context 中存储语言标识的 key 类型。
type I18nKey struct{}

// WithLanguage 将语言标识附加到 context 中供下游使用。
func WithLanguage(ctx context.Context, lang string) context.Context {
	return context.WithValue(ctx, I18nKey{}, lang)
}

// GetLanguage 从 context 中获取语言标识，若未设置则返回默认值 "en-US"。
func GetLanguage(ctx context.Context) string {
	if ctx == nil {
		return defaultLanguage
	}
	if lang, ok := ctx.Value(I18nKey{}).(string); ok && lang != "" {
		return lang
	}
	return defaultLanguage
}

// WithUserClaims attaches user data to the context for downstream handlers.
func WithUserClaims(ctx context.Context, claims UserClaims) context.Context {
	return context.WithValue(ctx, userContextKey, claims)
}

// UserFromContext fetches user claims, returning zero value if missing.
func UserFromContext(ctx context.Context) UserClaims {
	if ctx == nil {
		return UserClaims{}
	}
	claims, _ := ctx.Value(userContextKey).(UserClaims)
	return claims
}

// UserIDFromContext returns the caller id and whether one is present.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	claims := UserFromContext(ctx)
	return claims.ID, claims.ID > 0
}
