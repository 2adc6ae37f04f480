package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreStringAndJSON(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{DefaultTTL: time.Minute})

	require.NoError(t, store.SetString(ctx, "greeting", "hello", 0))
	got, err := store.GetString(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	type item struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, store.SetJSON(ctx, "product:1", item{ID: 1, Name: "Mug"}, time.Minute))
	var decoded item
	require.NoError(t, store.GetJSON(ctx, "product:1", &decoded))
	assert.Equal(t, "Mug", decoded.Name)

	require.NoError(t, store.Delete(ctx, "product:1"))
	require.ErrorIs(t, store.GetJSON(ctx, "product:1", &decoded), ErrMiss)
}

func TestMemoryStoreNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	root := NewMemoryStore(Options{})
	a := root.Namespace("a")
	b := root.Namespace("b")

	require.NoError(t, a.SetString(ctx, "k", "1", 0))
	_, err := b.GetString(ctx, "k")
	require.ErrorIs(t, err, ErrMiss)

	nested, err := root.GetString(ctx, "a:k")
	require.NoError(t, err)
	assert.Equal(t, "1", nested)
}

func TestMemoryStoreIncrement(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{})

	v, err := store.Increment(ctx, "hits", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = store.Increment(ctx, "hits", 2, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	s, err := store.GetString(ctx, "hits")
	require.NoError(t, err)
	assert.Equal(t, "3", s)
}
