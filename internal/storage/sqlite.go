package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"codelap/internal/config"
	"codelap/internal/logging"
)

// SQLite implements KV on a single SQLite table.
type SQLite struct {
	db     *sql.DB
	mu     sync.RWMutex
	driver string
	dbPath string
}

var _ KV = (*SQLite)(nil)

// Open opens (or creates) the store at path using the named driver:
// "sqlite3" for github.com/mattn/go-sqlite3, "sqlite" for modernc.org/sqlite.
// Use ":memory:" for a throwaway store.
func Open(driver, path string) (*SQLite, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "storage.Open")
	defer timer.Stop()

	switch driver {
	case config.DriverMattn, config.DriverModernc:
	case "":
		driver = config.DriverMattn
	default:
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}

	logging.Storage("Opening %s store at %s", driver, path)

	onDisk := path != ":memory:"
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logging.StorageError("Failed to create directory for %s: %v", path, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		logging.StorageError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: ":memory:" databases are per-connection and the
	// process is the only writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StorageDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if onDisk {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.StorageDebug("Failed to set sqlite journal_mode=WAL: %v", err)
		}
	}

	s := &SQLite{db: db, driver: driver, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);`)
	if err != nil {
		logging.StorageError("Failed to create kv table: %v", err)
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database path.
func (s *SQLite) Path() string {
	return s.dbPath
}

// Driver returns the database/sql driver name in use.
func (s *SQLite) Driver() string {
	return s.driver
}

// Get returns the value stored under key.
func (s *SQLite) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		logging.StorageError("Failed to write %q: %v", key, err)
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	logging.StorageDebug("set %s (%d bytes)", key, len(value))
	return nil
}

// Delete removes key.
func (s *SQLite) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		logging.StorageError("Failed to delete %q: %v", key, err)
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	logging.StorageDebug("delete %s", key)
	return nil
}

// Keys lists keys starting with prefix.
func (s *SQLite) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		// LIKE is case-insensitive for ASCII in SQLite.
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, rows.Err()
}

// Clear deletes every key starting with prefix and returns how many were removed.
// An empty prefix clears the store.
func (s *SQLite) Clear(prefix string) (int, error) {
	keys, err := s.Keys(prefix)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, k := range keys {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", k); err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to delete %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	logging.Storage("Cleared %d keys with prefix %q", len(keys), prefix)
	return len(keys), nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
