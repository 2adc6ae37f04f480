package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryStore struct {
	backend    *gocache.Cache
	defaultTTL time.Duration
	prefix     string
	// go-cache increments are not atomic with the create-if-missing step.
	incrMu *sync.Mutex
}

// NewMemoryStore 创建基于 go-cache 的进程内缓存。
func NewMemoryStore(opts Options) Store {
	defaultTTL := opts.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	cleanup := opts.CleanupInterval
	if cleanup <= 0 {
		cleanup = defaultTTL
	}
	return &memoryStore{
		backend:    gocache.New(defaultTTL, cleanup),
		defaultTTL: defaultTTL,
		prefix:     normalizePrefix(opts.Prefix),
		incrMu:     &sync.Mutex{},
	}
}

func (s *memoryStore) SetString(_ context.Context, key, value string, ttl time.Duration) error {
	s.backend.Set(prefixed(s.prefix, key), value, s.ttl(ttl))
	return nil
}

func (s *memoryStore) GetString(_ context.Context, key string) (string, error) {
	raw, ok := s.backend.Get(prefixed(s.prefix, key))
	if !ok {
		return "", ErrMiss
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case int64:
		return fmt.Sprintf("%d", v), nil
	}
	return "", fmt.Errorf("cache value for %s has type %T", key, raw)
}

func (s *memoryStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}
	return s.SetString(ctx, key, string(data), ttl)
}

func (s *memoryStore) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.GetString(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return fmt.Errorf("decode cache value: %w", err)
	}
	return nil
}

func (s *memoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.backend.Delete(prefixed(s.prefix, key))
	}
	return nil
}

func (s *memoryStore) Increment(_ context.Context, key string, delta int64, ttl time.Duration) (int64, error) {
	full := prefixed(s.prefix, key)
	s.incrMu.Lock()
	defer s.incrMu.Unlock()
	if _, ok := s.backend.Get(full); !ok {
		s.backend.Set(full, delta, s.ttl(ttl))
		return delta, nil
	}
	current, err := s.backend.IncrementInt64(full, delta)
	if err != nil {
		return 0, fmt.Errorf("cache increment failed: %w", err)
	}
	return current, nil
}

func (s *memoryStore) Namespace(prefix string) Store {
	return &memoryStore{
		backend:    s.backend,
		defaultTTL: s.defaultTTL,
		prefix:     joinPrefixes(s.prefix, prefix),
		incrMu:     s.incrMu,
	}
}

func (s *memoryStore) ttl(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return s.defaultTTL
	}
	return ttl
}
