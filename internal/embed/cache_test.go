package embed

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()
	vec := []float32{0.1, -0.5, 2.25, 0}

	_, ok := c.Get(ctx, "text-embedding-3-small", "batik kelantan")
	assert.False(t, ok, "miss before put")

	require.NoError(t, c.Put(ctx, "text-embedding-3-small", "batik kelantan", vec))

	got, ok := c.Get(ctx, "text-embedding-3-small", "batik kelantan")
	require.True(t, ok)
	assert.Equal(t, vec, got, "float32 round trip is exact")
}

func TestCache_KeyedByModelAndText(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "model-a", "query", []float32{1}))

	_, ok := c.Get(ctx, "model-b", "query")
	assert.False(t, ok, "different model misses")
	_, ok = c.Get(ctx, "model-a", "other query")
	assert.False(t, ok, "different text misses")
}

func TestCache_PutReplaces(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "m", "q", []float32{1, 2}))
	require.NoError(t, c.Put(ctx, "m", "q", []float32{3, 4}))

	got, ok := c.Get(ctx, "m", "q")
	require.True(t, ok)
	assert.Equal(t, []float32{3, 4}, got)
}

func TestCache_Expiry(t *testing.T) {
	c := openTestCache(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "m", "q", []float32{1}))

	// Age the entry past its TTL.
	_, err := c.db.ExecContext(ctx,
		`UPDATE embedding_cache SET expires_at = datetime('now', '-1 hour')`)
	require.NoError(t, err)

	_, ok := c.Get(ctx, "m", "q")
	assert.False(t, ok, "expired entries do not serve")

	n, err := c.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCache_DefaultTTL(t *testing.T) {
	c := openTestCache(t, 0)
	assert.Equal(t, 7*24*time.Hour, c.ttl)
}

func TestEncodeDecodeVector(t *testing.T) {
	vec := []float32{0, 1.5, -3.25, 1e-7}
	got, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err, "truncated blob is rejected")
}

func TestCacheKey_Distinct(t *testing.T) {
	assert.NotEqual(t, cacheKey("m", "ab"), cacheKey("ma", "b"), "model/text boundary is unambiguous")
	assert.Equal(t, cacheKey("m", "q"), cacheKey("m", "q"))
}
