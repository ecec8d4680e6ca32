// Package store caches build artifacts in SQLite, keyed by a content
// hash of the source and boundary policy. Rebuilding an unchanged
// source becomes a single lookup.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/object"
)

// Artifact kinds stored in the cache.
const (
	KindAsm    = "asm"
	KindObject = "object"
)

// ErrNotFound indicates no artifact is cached under the requested key.
var ErrNotFound = errors.New("store: artifact not found")

// Store is a SQLite-backed artifact cache.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens the cache database at path, creating it and its schema if
// needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		hash TEXT NOT NULL,
		kind TEXT NOT NULL,
		data BLOB NOT NULL,
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (hash, kind)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: creating table: %w", err)
	}

	return &Store{db: db, dbPath: path}, nil
}

// OpenDefault opens the cache at its default location: $BFC_CACHE_DB if
// set, otherwise ~/.bfc/cache.db. The parent directory is created if
// missing.
func OpenDefault() (*Store, error) {
	path := os.Getenv("BFC_CACHE_DB")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("store: getting home dir: %w", err)
		}
		path = filepath.Join(home, ".bfc", "cache.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: creating cache dir: %w", err)
	}
	return Open(path)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Key derives the cache key for source compiled under settings. The
// boundary policy and the object format version are part of the key:
// the same source generates different artifacts under each policy, and
// stale entries must miss when the format changes.
func Key(source []byte, settings compiler.Settings) [32]byte {
	h := sha256.New()
	h.Write(source)
	if settings.Wrap {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte{object.FormatVersion})
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Put stores an artifact under (hash, kind), replacing any previous one.
func (s *Store) Put(hash [32]byte, kind string, data []byte) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO artifacts (hash, kind, data) VALUES (?, ?, ?)",
		hex.EncodeToString(hash[:]), kind, data,
	)
	if err != nil {
		return fmt.Errorf("store: saving artifact: %w", err)
	}
	return nil
}

// Get retrieves the artifact stored under (hash, kind). Returns
// ErrNotFound when nothing is cached there.
func (s *Store) Get(hash [32]byte, kind string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRow(
		"SELECT data FROM artifacts WHERE hash = ? AND kind = ?",
		hex.EncodeToString(hash[:]), kind,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: querying artifact: %w", err)
	}
	return data, nil
}

// Has reports whether an artifact exists under (hash, kind).
func (s *Store) Has(hash [32]byte, kind string) (bool, error) {
	var one int
	err := s.db.QueryRow(
		"SELECT 1 FROM artifacts WHERE hash = ? AND kind = ?",
		hex.EncodeToString(hash[:]), kind,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: querying artifact: %w", err)
	}
	return true, nil
}
