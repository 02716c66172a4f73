package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository_GetSet(t *testing.T) {
	repo := NewMemoryStateRepository()
	ctx := context.Background()

	val, err := repo.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, repo.Set(ctx, "k", "v", time.Hour))

	val, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	require.NoError(t, repo.Delete(ctx, "k"))

	val, err = repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestMemoryStateRepository_Expiry(t *testing.T) {
	repo := NewMemoryStateRepository()
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	val, err := repo.Get(ctx, "short")
	require.NoError(t, err)
	assert.Empty(t, val)

	// Zero TTL means no expiry.
	require.NoError(t, repo.Set(ctx, "forever", "v", 0))
	val, err = repo.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, "v", val)
}

func TestMemoryStateRepository_CheckRateLimit(t *testing.T) {
	repo := NewMemoryStateRepository()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		allowed, err := repo.CheckRateLimit(ctx, "me@x.com", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, "me@x.com", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "other@x.com", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMemoryStateRepository_RateLimitWindowReset(t *testing.T) {
	repo := NewMemoryStateRepository()
	ctx := context.Background()

	allowed, err := repo.CheckRateLimit(ctx, "me@x.com", 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = repo.CheckRateLimit(ctx, "me@x.com", 1, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, allowed)

	time.Sleep(5 * time.Millisecond)

	allowed, err = repo.CheckRateLimit(ctx, "me@x.com", 1, time.Millisecond)
	require.NoError(t, err)
	assert.True(t, allowed)
}
