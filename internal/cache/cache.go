// Package cache provides the durable local cache backing tome's stores.
//
// The cache is a SQLite-backed key-value table holding JSON-encoded
// snapshots (session, library page, shelves). It is strictly best-effort
// and non-authoritative: a missing or unreadable entry reads as absent, and
// every entry is superseded by the next successful fetch from the backend.
package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Well-known cache keys.
const (
	KeySession = "session"
	KeyLibrary = "library"
	KeyShelves = "shelves"
)

// Store is a durable key-value store for JSON snapshots.
type Store struct {
	db *sql.DB
}

// Open creates or opens the cache database at path, creating parent
// directories as needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at TEXT NOT NULL
		)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores value under key, JSON-encoded, replacing any previous entry.
func (s *Store) Put(key string, value any) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("cache is closed")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Get loads the entry under key into dest and reports whether one existed.
// Unreadable entries read as absent; the cache never blocks startup.
func (s *Store) Get(key string, dest any) (time.Time, bool) {
	if s == nil || s.db == nil {
		return time.Time{}, false
	}
	var data []byte
	var updatedAt string
	err := s.db.QueryRow("SELECT value, updated_at FROM kv WHERE key = ?", key).Scan(&data, &updatedAt)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			// Treat read failures as a cache miss.
			return time.Time{}, false
		}
		return time.Time{}, false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return time.Time{}, false
	}
	fetched, err := time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		fetched = time.Time{}
	}
	return fetched, true
}

// Delete removes the entry under key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
