package embedding

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T, ttlDays int) *Cache {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path, ttlDays)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestCache_SetGetRoundTrip(t *testing.T) {
	c := openTestCache(t, 30)
	vec := []float32{0.1, 0.2, 0.3}
	c.Set("hello", "model-a", vec)

	got, ok := c.Get("hello", "model-a")
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestCache_MissOnUnknownKey(t *testing.T) {
	c := openTestCache(t, 30)
	_, ok := c.Get("never stored", "model-a")
	assert.False(t, ok)
}

func TestCache_KeyedByModelToo(t *testing.T) {
	c := openTestCache(t, 30)
	c.Set("hello", "model-a", []float32{1, 2})
	_, ok := c.Get("hello", "model-b")
	assert.False(t, ok, "same text under a different model must miss")
}

func TestCache_ExpiredEntryDeletedOnGet(t *testing.T) {
	c := openTestCache(t, 30)
	c.Set("hello", "model-a", []float32{1, 2, 3})

	// Backdate created_at past the TTL.
	key, _ := cacheKey("hello", "model-a")
	_, err := c.db.Exec(`UPDATE embeddings SET created_at = ? WHERE cache_key = ?`,
		time.Now().Add(-31*24*time.Hour).Unix(), key)
	require.NoError(t, err)

	_, ok := c.Get("hello", "model-a")
	assert.False(t, ok)

	var count int
	require.NoError(t, c.db.QueryRow(`SELECT COUNT(*) FROM embeddings WHERE cache_key = ?`, key).Scan(&count))
	assert.Zero(t, count, "stale entry must be deleted on access")
}

func TestCache_GetOrGenerate_MissInvokesGenerator(t *testing.T) {
	c := openTestCache(t, 30)
	calls := 0
	generate := func(text string) ([]float32, error) {
		calls++
		return []float32{1, 0, 0}, nil
	}

	v, err := c.GetOrGenerate("hello", "model-a", generate)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)
	assert.Equal(t, 1, calls)

	// Second call hits the cache, generator not invoked again.
	v2, err := c.GetOrGenerate("hello", "model-a", generate)
	require.NoError(t, err)
	assert.Equal(t, v, v2)
	assert.Equal(t, 1, calls)
}

func TestCache_GetOrGenerate_PropagatesGeneratorError(t *testing.T) {
	c := openTestCache(t, 30)
	wantErr := errors.New("embedding failed")
	_, err := c.GetOrGenerate("hello", "model-a", func(string) ([]float32, error) {
		return nil, wantErr
	})
	require.ErrorIs(t, err, wantErr)

	_, ok := c.Get("hello", "model-a")
	assert.False(t, ok, "a failed generate must not populate the cache")
}

func TestCache_CleanOld(t *testing.T) {
	c := openTestCache(t, 30)
	c.Set("fresh", "model-a", []float32{1})
	c.Set("stale", "model-a", []float32{2})

	key, _ := cacheKey("stale", "model-a")
	_, err := c.db.Exec(`UPDATE embeddings SET created_at = ? WHERE cache_key = ?`,
		time.Now().Add(-60*24*time.Hour).Unix(), key)
	require.NoError(t, err)

	n := c.CleanOld(0)
	assert.EqualValues(t, 1, n)

	_, ok := c.Get("fresh", "model-a")
	assert.True(t, ok)
}

func TestCache_Clear(t *testing.T) {
	c := openTestCache(t, 30)
	c.Set("a", "model-a", []float32{1})
	c.Set("b", "model-a", []float32{2})
	c.Get("a", "model-a")

	n := c.Clear()
	assert.EqualValues(t, 2, n)

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Zero(t, stats.TotalEntries)
}

func TestCache_Stats(t *testing.T) {
	c := openTestCache(t, 7)
	c.Set("a", "model-a", []float32{1})
	c.Get("a", "model-a")       // hit
	c.Get("missing", "model-a") // miss

	stats := c.Stats()
	assert.True(t, stats.Enabled)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
	assert.EqualValues(t, 1, stats.TotalEntries)
	assert.Equal(t, 7, stats.TTLDays)
}

func TestCache_Disabled_AlwaysMissesAndNoOpSet(t *testing.T) {
	c := Disabled()
	c.Set("a", "model-a", []float32{1})
	_, ok := c.Get("a", "model-a")
	assert.False(t, ok)

	stats := c.Stats()
	assert.False(t, stats.Enabled)

	assert.Zero(t, c.Clear())
	assert.Zero(t, c.CleanOld(0))
}

func TestCache_ZeroTTLNeverExpires(t *testing.T) {
	c := openTestCache(t, 0)
	c.Set("hello", "model-a", []float32{1, 2, 3})

	key, _ := cacheKey("hello", "model-a")
	_, err := c.db.Exec(`UPDATE embeddings SET created_at = ? WHERE cache_key = ?`,
		time.Now().Add(-10*365*24*time.Hour).Unix(), key)
	require.NoError(t, err)

	_, ok := c.Get("hello", "model-a")
	assert.True(t, ok, "ttlDays<=0 disables expiration")
}
