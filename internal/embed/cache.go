package embed

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is a local SQLite cache of embedding vectors keyed by model and
// text. Retried and popular queries hit the cache instead of the
// embeddings API.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
}

const cacheMigration = `
CREATE TABLE IF NOT EXISTS embedding_cache (
	key        TEXT PRIMARY KEY,
	model      TEXT NOT NULL,
	vector     BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_embedding_cache_expires_at ON embedding_cache(expires_at);
`

// OpenCache opens (or creates) the cache database at dsn with the given
// entry TTL.
func OpenCache(dsn string, ttl time.Duration) (*Cache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "embed: open cache")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "embed: exec %s", pragma)
		}
	}
	if _, err := db.Exec(cacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "embed: migrate cache")
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Close closes the cache database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the cached vector for (model, text) if present and fresh.
func (c *Cache) Get(ctx context.Context, model, text string) ([]float32, bool) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT vector FROM embedding_cache WHERE key = ? AND expires_at > datetime('now')`,
		cacheKey(model, text),
	).Scan(&blob)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			zap.L().Warn("embed: cache read failed", zap.Error(err))
		}
		return nil, false
	}
	vec, err := decodeVector(blob)
	if err != nil {
		zap.L().Warn("embed: corrupt cache entry", zap.Error(err))
		return nil, false
	}
	return vec, true
}

// Put stores a vector for (model, text), replacing any prior entry.
func (c *Cache) Put(ctx context.Context, model, text string, vec []float32) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO embedding_cache (key, model, vector, created_at, expires_at)
		 VALUES (?, ?, ?, datetime('now'), ?)
		 ON CONFLICT(key) DO UPDATE SET vector = excluded.vector, expires_at = excluded.expires_at`,
		cacheKey(model, text), model, encodeVector(vec),
		time.Now().UTC().Add(c.ttl).Format("2006-01-02 15:04:05"),
	)
	return eris.Wrap(err, "embed: cache put")
}

// DeleteExpired removes stale cache entries and returns the count removed.
func (c *Cache) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM embedding_cache WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "embed: delete expired")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, eris.New("embed: vector blob length not a multiple of 4")
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
