package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions 配置 Redis 连接。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

type redisStore struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
	prefix     string
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts Options) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Redis.Addr,
		Password: opts.Redis.Password,
		DB:       opts.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Redis.Addr, err)
	}
	return NewRedisStoreWithClient(client, opts), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client redis.UniversalClient, opts Options) Store {
	defaultTTL := opts.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &redisStore{client: client, defaultTTL: defaultTTL, prefix: normalizePrefix(opts.Prefix)}
}

func (s *redisStore) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, prefixed(s.prefix, key), value, s.ttl(ttl)).Err()
}

func (s *redisStore) GetString(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, prefixed(s.prefix, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return val, err
}

func (s *redisStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.client.Set(ctx, prefixed(s.prefix, key), data, s.ttl(ttl)).Err()
}

func (s *redisStore) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, prefixed(s.prefix, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}

func (s *redisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, key := range keys {
		full = append(full, prefixed(s.prefix, key))
	}
	return s.client.Del(ctx, full...).Err()
}

func (s *redisStore) Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	full := prefixed(s.prefix, key)
	pipe := s.client.TxPipeline()
	incr := pipe.IncrBy(ctx, full, delta)
	// NX keeps the window anchored to the first hit.
	pipe.ExpireNX(ctx, full, s.ttl(ttl))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache increment failed: %w", err)
	}
	return incr.Val(), nil
}

func (s *redisStore) Namespace(prefix string) Store {
	return &redisStore{client: s.client, defaultTTL: s.defaultTTL, prefix: joinPrefixes(s.prefix, prefix)}
}

func (s *redisStore) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}
