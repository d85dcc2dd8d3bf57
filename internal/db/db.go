package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/memoreal/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Init initializes the SQLite database at baseDir/memoreal.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.memoreal.
func Init(baseDir string) (*sql.DB, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, "memoreal.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Verify WAL mode is active
	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
// Call after Init if you need to tune pool behavior for contention.
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS capsules (
		  id              TEXT PRIMARY KEY,
		  author          TEXT NOT NULL,
		  title           TEXT NOT NULL,
		  recipient       TEXT NOT NULL,
		  capsule_type    INTEGER NOT NULL,
		  unlock_at       INTEGER,
		  has_location    INTEGER NOT NULL,
		  reserved_bytes  INTEGER NOT NULL,
		  record          BLOB NOT NULL,
		  created_at      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_capsules_author_created
		ON capsules(author, created_at DESC);

		CREATE INDEX IF NOT EXISTS idx_capsules_created
		ON capsules(created_at DESC);

		CREATE TRIGGER IF NOT EXISTS trg_capsules_no_update
		BEFORE UPDATE ON capsules
		BEGIN
		  SELECT RAISE(ABORT, 'capsules are append-only');
		END;

		CREATE TRIGGER IF NOT EXISTS trg_capsules_no_delete
		BEFORE DELETE ON capsules
		BEGIN
		  SELECT RAISE(ABORT, 'capsules are append-only');
		END;

		CREATE TABLE IF NOT EXISTS collectibles (
		  capsule_id      TEXT PRIMARY KEY REFERENCES capsules(id),
		  outcome         TEXT NOT NULL,
		  mint            TEXT,
		  token_account   TEXT,
		  metadata        TEXT,
		  mint_sig        TEXT,
		  metadata_sig    TEXT,
		  error           TEXT,
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS mints (
		  address         TEXT PRIMARY KEY,
		  authority       TEXT NOT NULL,
		  decimals        INTEGER NOT NULL,
		  supply          INTEGER NOT NULL DEFAULT 0,
		  created_at      INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS token_accounts (
		  address         TEXT PRIMARY KEY,
		  mint            TEXT NOT NULL REFERENCES mints(address),
		  owner           TEXT NOT NULL,
		  amount          INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_token_accounts_owner
		ON token_accounts(owner);

		CREATE TABLE IF NOT EXISTS metadata_entries (
		  address           TEXT PRIMARY KEY,
		  mint              TEXT NOT NULL UNIQUE REFERENCES mints(address),
		  update_authority  TEXT NOT NULL,
		  name              TEXT NOT NULL,
		  symbol            TEXT NOT NULL,
		  uri               TEXT NOT NULL,
		  creators_json     TEXT NOT NULL,
		  seller_fee_bps    INTEGER NOT NULL,
		  is_mutable        INTEGER NOT NULL,
		  max_supply        INTEGER,
		  created_at        INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
