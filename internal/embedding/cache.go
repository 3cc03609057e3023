// Package embedding implements the embedding cache and generator. The
// cache is SQLite-backed rather than an in-memory map so entries survive
// restarts; hit/miss bookkeeping uses atomic counters, and storage errors
// degrade to miss, never propagate.
package embedding

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

// Stats is a point-in-time snapshot of the cache's counters.
type Stats struct {
	Enabled      bool
	Hits         int64
	Misses       int64
	HitRate      float64
	TotalEntries int64
	TTLDays      int
}

// Cache is a SQLite-backed, content-addressed, TTL-bound embedding cache.
// Safe for concurrent use: writes serialize through a single mutex, reads
// use the shared *sql.DB connection pool.
type Cache struct {
	db      *sql.DB
	ttl     time.Duration
	enabled bool

	mu sync.Mutex // serializes writes through the single sqlite writer

	hits   int64
	misses int64
}

// Open creates or opens the cache database at path and ensures its schema
// exists. ttlDays<=0 disables expiration (entries never go stale).
func Open(path string, ttlDays int) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: single writer connection

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS embeddings (
			cache_key TEXT PRIMARY KEY,
			text_hash TEXT NOT NULL,
			model_name TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			accessed_at INTEGER NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 1
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_text_model ON embeddings(text_hash, model_name)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init embedding cache index: %w", err)
	}

	ttl := time.Duration(ttlDays) * 24 * time.Hour
	return &Cache{db: db, ttl: ttl, enabled: true}, nil
}

// Disabled returns a Cache in the disabled state: get always misses, set is
// a no-op. Used when Config.Embedding.CacheEnabled is false.
func Disabled() *Cache {
	return &Cache{enabled: false}
}

func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKey(text, model string) (key, textHash string) {
	h := xxhash.Sum64String(text)
	textHash = fmt.Sprintf("%016x", h)
	return textHash + ":" + model, textHash
}

// Get returns the cached embedding for (text, model), or (nil, false) on
// miss, expiry, or any storage error. Errors degrade to miss, never
// propagate.
func (c *Cache) Get(text, model string) ([]float32, bool) {
	if !c.enabled || c.db == nil {
		return nil, false
	}

	key, _ := cacheKey(text, model)

	var blob []byte
	var createdAt int64
	var accessCount int64
	err := c.db.QueryRow(`SELECT embedding, created_at, access_count FROM embeddings WHERE cache_key = ?`, key).
		Scan(&blob, &createdAt, &accessCount)
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	if c.ttl > 0 && time.Since(time.Unix(createdAt, 0)) > c.ttl {
		c.mu.Lock()
		c.db.Exec(`DELETE FROM embeddings WHERE cache_key = ?`, key)
		c.mu.Unlock()
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(blob, &vec); err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	c.mu.Lock()
	c.db.Exec(`UPDATE embeddings SET accessed_at = ?, access_count = ? WHERE cache_key = ?`,
		time.Now().Unix(), accessCount+1, key)
	c.mu.Unlock()

	atomic.AddInt64(&c.hits, 1)
	return vec, true
}

// Set upserts an embedding, resetting both timestamps to now. Storage
// failures are swallowed.
func (c *Cache) Set(text, model string, vec []float32) {
	if !c.enabled || c.db == nil {
		return
	}
	key, textHash := cacheKey(text, model)
	blob, err := json.Marshal(vec)
	if err != nil {
		return
	}
	now := time.Now().Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.db.Exec(`
		INSERT INTO embeddings (cache_key, text_hash, model_name, embedding, created_at, accessed_at, access_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(cache_key) DO UPDATE SET embedding = excluded.embedding, created_at = excluded.created_at, accessed_at = excluded.accessed_at, access_count = 1
	`, key, textHash, model, blob, now, now)
}

// GetOrGenerate returns the cached embedding or generates and caches one.
// No dedup guarantee under concurrent callers for the same key, only no
// corruption.
func (c *Cache) GetOrGenerate(text, model string, generate func(string) ([]float32, error)) ([]float32, error) {
	if vec, ok := c.Get(text, model); ok {
		return vec, nil
	}
	vec, err := generate(text)
	if err != nil {
		return nil, err
	}
	c.Set(text, model, vec)
	return vec, nil
}

// CleanOld bulk-deletes entries older than days (or the cache's configured
// TTL if days<=0), returning the number removed. With days<=0 on a cache
// opened without expiration it removes nothing.
func (c *Cache) CleanOld(days int) int64 {
	if !c.enabled || c.db == nil {
		return 0
	}
	ttl := c.ttl
	if days > 0 {
		ttl = time.Duration(days) * 24 * time.Hour
	}
	if ttl <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-ttl).Unix()

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.Exec(`DELETE FROM embeddings WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}

// Clear removes every entry and resets hit/miss counters, returning the
// number of entries removed.
func (c *Cache) Clear() int64 {
	if !c.enabled || c.db == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.Exec(`DELETE FROM embeddings`)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
	if err != nil {
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}

// Stats reports hit/miss counters and the live entry count.
func (c *Cache) Stats() Stats {
	if !c.enabled || c.db == nil {
		return Stats{Enabled: false}
	}
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)

	var total int64
	c.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&total)

	var hitRate float64
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses)
	}

	return Stats{
		Enabled:      true,
		Hits:         hits,
		Misses:       misses,
		HitRate:      hitRate,
		TotalEntries: total,
		TTLDays:      int(c.ttl / (24 * time.Hour)),
	}
}
