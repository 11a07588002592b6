// Package cache provides a SQLite-backed transform cache keyed by profile,
// relative path and content hash, letting repeated compiles skip files whose
// input and output are already up to date.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a transform cache. Use ":memory:" for an in-memory database, or
// a file path for persistent storage across runs.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the cache database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transforms (
		profile TEXT NOT NULL,
		relpath TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		written_at INTEGER NOT NULL,
		PRIMARY KEY (profile, relpath)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Hit reports whether the cache holds an entry for (profile, relpath) with
// the given content hash.
func (s *Store) Hit(profile, relpath, contentHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored string
	err := s.db.QueryRow(
		"SELECT content_hash FROM transforms WHERE profile = ? AND relpath = ?",
		profile, relpath,
	).Scan(&stored)
	if err != nil {
		return false
	}
	return stored == contentHash
}

// Record stores (or replaces) the cache entry for (profile, relpath).
func (s *Store) Record(profile, relpath, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO transforms (profile, relpath, content_hash, written_at) VALUES (?, ?, ?, ?) "+
			"ON CONFLICT(profile, relpath) DO UPDATE SET content_hash = excluded.content_hash, written_at = excluded.written_at",
		profile, relpath, contentHash, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record transform: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the hex-encoded SHA256 of data, the content key used for
// cache entries.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
