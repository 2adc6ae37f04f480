// 文件路径: internal/api/middleware/logging.go
// 模块说明: 访问日志中间件，每个请求一条结构化记录，带请求 ID、路由模板与 trace_id
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// LoggingConfig 访问日志配置
type LoggingConfig struct {
	Logger        *slog.Logger
	SlowThreshold time.Duration // 超过该耗时的成功请求记为 WARN
	SkipPaths     []string      // 探针与抓取路径不记录
}

// DefaultLoggingConfig 默认配置
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Logger:        slog.Default(),
		SlowThreshold: 500 * time.Millisecond,
		SkipPaths:     []string{"/health", "/healthz", "/_internal/ready", "/metrics"},
	}
}

// StructuredLogger 记录每个请求的结果。响应头回写 X-Request-ID，方便客服按单号排查。
func StructuredLogger(cfg LoggingConfig) func(http.Handler) http.Handler {
	defaults := DefaultLoggingConfig()
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = defaults.SlowThreshold
	}
	skip := pathSet(cfg.SkipPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = "unknown"
			}
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			level, msg := accessLevel(status, elapsed, cfg.SlowThreshold)

			attrs := []slog.Attr{
				slog.String("request_id", requestID),
				slog.String("method", r.Method),
				slog.String("route", routePattern(r)),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", elapsed),
				slog.String("client_ip", getClientIP(r)),
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.HasTraceID() {
				attrs = append(attrs, slog.String("trace_id", sc.TraceID().String()))
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			if ua := r.UserAgent(); ua != "" && status >= http.StatusBadRequest {
				attrs = append(attrs, slog.String("user_agent", ua))
			}
			cfg.Logger.LogAttrs(r.Context(), level, msg, attrs...)
		})
	}
}

func accessLevel(status int, elapsed, slow time.Duration) (slog.Level, string) {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError, "request failed"
	case status >= http.StatusBadRequest:
		return slog.LevelWarn, "request rejected"
	case elapsed > slow:
		return slog.LevelWarn, "slow request"
	default:
		return slog.LevelInfo, "request completed"
	}
}

// routePattern returns the matched chi pattern such as /api/orders/{id}, or "" before routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
