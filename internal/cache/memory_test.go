package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheSetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Minute))

	now = now.Add(4 * time.Minute)
	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "stats:client:u1", []byte("1"), 0))
	require.NoError(t, c.Set(ctx, "stats:client:u2", []byte("2"), 0))
	require.NoError(t, c.Set(ctx, "stats:inspector:u1", []byte("3"), 0))

	require.NoError(t, c.DeleteByPattern(ctx, "stats:client:*"))

	_, err := c.Get(ctx, "stats:client:u1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "stats:client:u2")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "stats:inspector:u1")
	assert.NoError(t, err)
}

func TestMemoryCacheDeleteByPatternMatchesLikeRedis(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		key     string
		deleted bool
	}{
		{name: "star spans slash", pattern: "stats:client:*", key: "stats:client:org/team/u1:d1", deleted: true},
		{name: "question mark matches slash", pattern: "stats:client:a?b:*", key: "stats:client:a/b:d1", deleted: true},
		{name: "escaped star is literal", pattern: `stats:client:a\*:*`, key: "stats:client:a*:d1", deleted: true},
		{name: "escaped star rejects other keys", pattern: `stats:client:a\*:*`, key: "stats:client:ab:d1", deleted: false},
		{name: "other role untouched", pattern: "stats:client:*", key: "stats:inspector:u1:d1", deleted: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			c := NewMemoryCache()
			require.NoError(t, c.Set(ctx, tt.key, []byte("v"), 0))

			require.NoError(t, c.DeleteByPattern(ctx, tt.pattern))

			_, err := c.Get(ctx, tt.key)
			if tt.deleted {
				assert.ErrorIs(t, err, ErrCacheMiss)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemoryCacheDeleteByPatternRejectsBadPattern(t *testing.T) {
	c := NewMemoryCache()
	assert.Error(t, c.DeleteByPattern(context.Background(), "stats:[client"))
}
