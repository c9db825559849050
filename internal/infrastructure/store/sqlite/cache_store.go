package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
`

// CacheStore is a durable generation cache in a single SQLite file.
type CacheStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

var _ repository.CacheStore = (*CacheStore)(nil)

// NewCacheStore opens (and migrates) the database at path. Entries older than
// ttl are treated as absent; a zero ttl keeps entries forever.
func NewCacheStore(path string, ttl time.Duration) (*CacheStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY under concurrent Put
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return &CacheStore{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *CacheStore) Get(ctx context.Context, key entity.CacheKey) (string, bool, error) {
	var (
		value     string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, created_at FROM cache_entries WHERE cache_key = ?`, string(key),
	).Scan(&value, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get cache entry: %w", err)
	}
	if s.expired(createdAt) {
		return "", false, nil
	}
	return value, true, nil
}

func (s *CacheStore) Put(ctx context.Context, key entity.CacheKey, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, value, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at`,
		string(key), value, s.now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries and reports how many were removed.
func (s *CacheStore) Purge(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge cache: %w", err)
	}
	return res.RowsAffected()
}

// PurgeEvery purges once immediately and then every interval until ctx is done.
// Get hides stale rows but only Purge reclaims them.
func (s *CacheStore) PurgeEvery(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := s.Purge(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Warn("cache purge failed", "err", err)
		case n > 0:
			logger.Debug("cache purged", "removed", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *CacheStore) Close(context.Context) error {
	return s.db.Close()
}

func (s *CacheStore) expired(createdAt int64) bool {
	if s.ttl <= 0 {
		return false
	}
	return s.now().Sub(time.Unix(0, createdAt)) > s.ttl
}
