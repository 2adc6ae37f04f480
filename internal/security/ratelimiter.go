// 文件路径: internal/security/ratelimiter.go
// 模块说明: 基于缓存计数的固定窗口限流，用于登录与注册等接口。
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/cliqshop/shop/internal/cache"
)

// RateLimiter 控制重复行为（如登录尝试）。
type RateLimiter struct {
	store cache.Store
	now   func() time.Time
}

// RateResult 描述 Allow 调用的结果。
type RateResult struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// NewRateLimiter 使用缓存存储构建限流器。
func NewRateLimiter(store cache.Store) (*RateLimiter, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limiter requires cache store / 限流器需要缓存存储")
	}
	return &RateLimiter{store: store.Namespace("rate"), now: time.Now}, nil
}

// Allow counts one hit for key in the current window and reports whether it is within limit.
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (RateResult, error) {
	if l == nil {
		return RateResult{}, fmt.Errorf("rate limiter not initialized / 限流器未初始化")
	}
	if limit <= 0 {
		return RateResult{}, fmt.Errorf("limit must be positive / limit 必须为正数")
	}
	if window <= 0 {
		window = time.Minute
	}

	start := l.now().UTC().Truncate(window)
	resetAt := start.Add(window)
	current, err := l.store.Increment(ctx, bucketKey(key, start), 1, window)
	if err != nil {
		return RateResult{}, fmt.Errorf("increment rate limit counter / 限流计数自增失败: %w", err)
	}

	return RateResult{
		Allowed:   current <= int64(limit),
		Remaining: max(limit-int(current), 0),
		ResetAt:   resetAt,
	}, nil
}

func bucketKey(key string, start time.Time) string {
	return fmt.Sprintf("%s:%d", key, start.Unix())
}
