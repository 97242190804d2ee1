package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	_, err = c.Get(ctx, "missing")
	assert.Error(t, err)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := c.Get(ctx, "k")
	assert.Error(t, err)

	exists, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryCache_SetNX(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	value, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func TestMemoryCache_Increment(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := c.Increment(ctx, "counter")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestMemoryCache_Hash(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	require.NoError(t, c.HSet(ctx, "doc:1", "status", "processed"))
	require.NoError(t, c.HSet(ctx, "doc:1", "type", "portfolio_statement"))

	value, err := c.HGet(ctx, "doc:1", "status")
	require.NoError(t, err)
	assert.Equal(t, "processed", value)

	all, err := c.HGetAll(ctx, "doc:1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
