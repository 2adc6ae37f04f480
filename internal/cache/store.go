// 文件路径: internal/cache/store.go
// 模块说明: 缓存抽象，供登录限流、OAuth state 与商品读缓存共用，可选内存或 Redis 实现。
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMiss is returned by Get* when the key is absent or expired.
var ErrMiss = errors.New("cache miss / 缓存未命中")

// Store 定义缓存接口。值以字符串或 JSON 形式存储，便于跨进程后端复用。
type Store interface {
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
	GetString(ctx context.Context, key string) (string, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, keys ...string) error
	// Increment adds delta to the stored integer, returning the updated value. The TTL is
	// set when the counter is created.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Namespace(prefix string) Store
}

// Options 配置缓存行为。
type Options struct {
	Driver          string
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	Prefix          string
	Redis           RedisOptions
}

// New builds the store selected by opts.Driver ("memory" when empty).
func New(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "memory":
		return NewMemoryStore(opts), nil
	case "redis":
		return NewRedisStore(ctx, opts)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q / 不支持的缓存驱动", opts.Driver)
	}
}

func normalizePrefix(prefix string) string {
	return strings.Trim(prefix, ": ")
}

func joinPrefixes(parts ...string) string {
	var normalized []string
	for _, part := range parts {
		if trimmed := normalizePrefix(part); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return strings.Join(normalized, ":")
}

func prefixed(prefix, key string) string {
	key = strings.TrimSpace(key)
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}
