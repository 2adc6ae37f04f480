// 文件路径: internal/api/middleware/limits.go
// 模块说明: 按客户端 IP 限流与请求体大小限制
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cliqshop/shop/internal/security"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Limiter   *security.RateLimiter      // 为空时不限流
	Limit     int                        // 每个窗口允许的请求数
	Window    time.Duration              // 窗口长度
	KeyFunc   func(*http.Request) string // 默认按客户端 IP
	SkipPaths []string                   // 探针与 Stripe 回调不计数
}

// DefaultRateLimitConfig 默认配置
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Limit:     120,
		Window:    time.Minute,
		KeyFunc:   getClientIP,
		SkipPaths: []string{"/health", "/healthz", "/_internal/ready", "/metrics", "/api/webhook/stripe"},
	}
}

// RateLimit 限流中间件。计数放在共享缓存里，redis 驱动下多实例共用同一额度。
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	defaults := DefaultRateLimitConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = defaults.Limit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaults.Window
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = defaults.KeyFunc
	}
	skip := pathSet(cfg.SkipPaths)
	limit := strconv.Itoa(cfg.Limit)

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skip[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			res, err := cfg.Limiter.Allow(r.Context(), "http:"+cfg.KeyFunc(r), cfg.Limit, cfg.Window)
			if err != nil {
				// 缓存故障时不阻断下单
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(res.ResetAt)))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

func retryAfterSeconds(resetAt time.Time) int {
	secs := int(time.Until(resetAt).Round(time.Second) / time.Second)
	return max(secs, 1)
}

// BodyLimitConfig 请求体大小限制
type BodyLimitConfig struct {
	MaxBytes int64            // 默认上限，0 表示 1MB
	Prefixes map[string]int64 // 按路径前缀覆盖上限，负数表示不限
}

// DefaultBodyLimitConfig JSON 接口 1MB；webhook 由处理器自行截断。
func DefaultBodyLimitConfig() BodyLimitConfig {
	return BodyLimitConfig{
		MaxBytes: 1 << 20,
		Prefixes: map[string]int64{"/api/webhook/": -1},
	}
}

// BodyLimit 用 http.MaxBytesReader 包装请求体，超限读取返回 *http.MaxBytesError。
func BodyLimit(cfg BodyLimitConfig) func(http.Handler) http.Handler {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1 << 20
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n := cfg.limitFor(r.URL.Path); n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c BodyLimitConfig) limitFor(path string) int64 {
	best, limit := -1, c.MaxBytes
	for prefix, n := range c.Prefixes {
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			best, limit = len(prefix), n
		}
	}
	return limit
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}
