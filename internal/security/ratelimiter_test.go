package security

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cliqshop/shop/internal/cache"
)

func TestRateLimiterWindow(t *testing.T) {
	ctx := context.Background()
	limiter, err := NewRateLimiter(cache.NewMemoryStore(cache.Options{}))
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 2-i, res.Remaining)
	}
	res, err := limiter.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 1, 0, 0, time.UTC), res.ResetAt)

	now = now.Add(time.Minute)
	res, err = limiter.Allow(ctx, "login:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiterRejectsBadLimit(t *testing.T) {
	limiter, err := NewRateLimiter(cache.NewMemoryStore(cache.Options{}))
	require.NoError(t, err)
	_, err = limiter.Allow(context.Background(), "k", 0, time.Minute)
	require.Error(t, err)
}
