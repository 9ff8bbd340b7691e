// Package store persists the case-event chain in SQLite through sqlx. The
// single-open-tail invariant is enforced by a partial unique index, so a
// duplicate attach fails inside the database even under races.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Config controls the SQLite connection pool.
type Config struct {
	Path            string
	BusyTimeout     time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads the store configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{
		Path:            strings.TrimSpace(os.Getenv("DOCKET_DB_PATH")),
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
	if cfg.Path == "" {
		cfg.Path = filepath.Join("data", "docket.db")
	}
	if raw := strings.TrimSpace(os.Getenv("DOCKET_DB_BUSY_TIMEOUT")); raw != "" {
		dur, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("store: invalid DOCKET_DB_BUSY_TIMEOUT: %w", err)
		}
		cfg.BusyTimeout = dur
	}
	return cfg, nil
}

// Store wraps a pooled sqlx.DB connection to the case database.
type Store struct {
	db *sqlx.DB
}

// Open constructs a Store backed by the SQLite database at the provided
// path. The schema is migrated on first use.
func Open(path string) (*Store, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if trimmed := strings.TrimSpace(path); trimmed != "" {
		cfg.Path = trimmed
	}
	return OpenWithConfig(cfg)
}

// OpenWithConfig constructs a Store using the provided configuration.
func OpenWithConfig(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: sqlite path required")
	}
	dsnPath := cfg.Path
	if cfg.Path != ":memory:" {
		abs, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("store: resolve path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
		dsnPath = abs
	}
	busy := int(cfg.BusyTimeout / time.Millisecond)
	if busy <= 0 {
		busy = 5000
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", dsnPath, busy)
	if cfg.Path == ":memory:" {
		dsn = fmt.Sprintf("file:docket?mode=memory&cache=shared&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", busy)
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingTimeout := cfg.BusyTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping sqlite: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var errNilStore = errors.New("store: not initialised")

func (s *Store) ensureReady() error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	// Journal mode cannot change inside a transaction.
	for _, pragma := range pragmaStatements {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("store: pragma %q: %w", pragma, err)
		}
	}
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("store: begin migration: %w", err)
	}
	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("store: schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit migration: %w", err)
	}
	return nil
}

var pragmaStatements = []string{
	`PRAGMA journal_mode = WAL;`,
	`PRAGMA foreign_keys = ON;`,
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cases (
                id TEXT PRIMARY KEY,
                status TEXT NOT NULL DEFAULT 'draft',
                simulated INTEGER NOT NULL DEFAULT 0,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
	`CREATE TABLE IF NOT EXISTS court_cases (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                case_id TEXT NOT NULL,
                simulated INTEGER NOT NULL DEFAULT 0,
                court TEXT,
                caption TEXT,
                docket TEXT,
                FOREIGN KEY(case_id) REFERENCES cases(id) ON DELETE CASCADE,
                UNIQUE(case_id, simulated)
        );`,
	`CREATE TABLE IF NOT EXISTS case_events (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                case_id TEXT NOT NULL,
                type TEXT NOT NULL,
                source TEXT,
                target TEXT,
                created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
                previous_event_id INTEGER,
                next_event_id INTEGER,
                simulated INTEGER NOT NULL DEFAULT 0,
                content TEXT,
                FOREIGN KEY(case_id) REFERENCES cases(id) ON DELETE CASCADE,
                FOREIGN KEY(previous_event_id) REFERENCES case_events(id),
                FOREIGN KEY(next_event_id) REFERENCES case_events(id) DEFERRABLE INITIALLY DEFERRED
        );`,
	`CREATE TABLE IF NOT EXISTS documents (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                event_id INTEGER NOT NULL,
                type TEXT NOT NULL,
                content TEXT,
                storage_key TEXT NOT NULL DEFAULT '',
                generated INTEGER NOT NULL DEFAULT 0,
                FOREIGN KEY(event_id) REFERENCES case_events(id) ON DELETE CASCADE
        );`,
	`CREATE TABLE IF NOT EXISTS case_event_suggestions (
                id INTEGER PRIMARY KEY AUTOINCREMENT,
                event_id INTEGER NOT NULL,
                name TEXT NOT NULL,
                type TEXT NOT NULL,
                content TEXT,
                score REAL NOT NULL DEFAULT 0,
                storage_key TEXT NOT NULL DEFAULT '',
                FOREIGN KEY(event_id) REFERENCES case_events(id) ON DELETE CASCADE
        );`,
	// One unresolved tail per (case, simulated) chain. Appends flip the
	// predecessor inside the same transaction, so the index holds at
	// every commit point.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_case_events_open_tail
                ON case_events(case_id, simulated) WHERE next_event_id IS NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_case_events_case_type
                ON case_events(case_id, simulated, type);`,
	`CREATE INDEX IF NOT EXISTS idx_documents_event ON documents(event_id);`,
	`CREATE INDEX IF NOT EXISTS idx_suggestions_event ON case_event_suggestions(event_id);`,
}
