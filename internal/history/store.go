// Package history implements the embedded relational history store of
// session/media/transcript/event persistence, legacy-folder
// migration, and corruption recovery, backed by modernc.org/sqlite (pure
// Go, no CGO), a pure-Go embedded store with no platform dependencies.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store owns the embedded history database and its on-disk media layout.
type Store struct {
	db       *sql.DB
	basePath string
}

// Open opens (or creates) the SQLite database at basePath/history.db and
// applies the schema. On open failure against a corrupt file, the corrupt
// file is renamed aside, a fresh schema is created, and degraded is
// invoked once with a one-shot internalError signal instead of aborting,
// so a corrupt database file is quarantined and rebuilt rather than blocking startup.
func Open(basePath string, degraded func(reason string)) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "media"), 0o700); err != nil {
		return nil, fmt.Errorf("create history media dir: %w", err)
	}

	dbPath := filepath.Join(basePath, "history.db")
	store, err := openAt(basePath, dbPath)
	if err == nil {
		return store, nil
	}

	corruptPath := dbPath + "." + time.Now().UTC().Format("20060102T150405") + ".corrupt"
	_ = os.Rename(dbPath, corruptPath)
	if degraded != nil {
		degraded("internalError")
	}

	return openAt(basePath, dbPath)
}

func openAt(basePath, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	store := &Store{db: db, basePath: basePath}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	// Reading sqlite_master confirms the file is actually a valid database,
	// not just that sql.Open's lazy connection succeeded.
	if _, err := db.Exec("SELECT count(*) FROM sqlite_master"); err != nil {
		db.Close()
		return nil, fmt.Errorf("validate schema: %w", err)
	}

	return store, nil
}

// StorageBasePath returns the root directory housing the database and
// media tree.
func (s *Store) StorageBasePath() string { return s.basePath }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id   TEXT PRIMARY KEY,
			started_at   TEXT NOT NULL,
			ended_at     TEXT,
			duration_ms  INTEGER NOT NULL DEFAULT 0,
			provider     TEXT NOT NULL,
			fallback_used INTEGER NOT NULL DEFAULT 0,
			language     TEXT NOT NULL,
			output_mode  TEXT NOT NULL,
			status       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_media (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL REFERENCES sessions(session_id) ON DELETE CASCADE,
			path        TEXT NOT NULL,
			format      TEXT NOT NULL,
			is_primary  INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS session_transcripts (
			session_id TEXT PRIMARY KEY REFERENCES sessions(session_id) ON DELETE CASCADE,
			text       TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_events (
			session_id TEXT REFERENCES sessions(session_id) ON DELETE SET NULL,
			event_seq  INTEGER NOT NULL,
			name       TEXT NOT NULL,
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (session_id, event_seq)
		)`,
		`CREATE TABLE IF NOT EXISTS settings_snapshots (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			created_at TEXT NOT NULL,
			snapshot   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS session_metrics (
			session_id REFERENCES sessions(session_id) ON DELETE SET NULL,
			name       TEXT NOT NULL,
			value      REAL NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS metrics_rollup_1m (
			bucket_start TEXT NOT NULL,
			name         TEXT NOT NULL,
			count        INTEGER NOT NULL,
			sum          REAL NOT NULL,
			PRIMARY KEY (bucket_start, name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ensureContext defaults to context.Background when the caller passes nil;
// kept local rather than accepted to match the Contract signatures of
// the store's own lifecycle, which doesn't thread a context through every call.
func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
