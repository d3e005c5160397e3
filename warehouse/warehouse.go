// Package warehouse is the local analytical store for courtwatch: raw
// snapshot tables (schema-on-read, one row per ingested file), the
// load_ledger idempotency table, and the ingest_runs run log.
//
// The database is SQLite opened with the production pragmas:
//
//	foreign_keys = ON
//	journal_mode = WAL
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	wh, err := warehouse.Open("db/warehouse.db")
//
// In tests:
//
//	wh := warehouse.OpenMemory(t)
package warehouse

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Warehouse wraps the warehouse database.
type Warehouse struct {
	DB *sql.DB
}

// Open opens (creating parent directories and tables as needed) the
// warehouse database at path. The caller must blank-import a driver
// registering itself as "sqlite" before calling Open.
func Open(path string) (*Warehouse, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("warehouse: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("warehouse: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("warehouse: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: exec schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse: ping: %w", err)
	}

	return &Warehouse{DB: db}, nil
}

// OpenMemory opens an in-memory warehouse for testing. MaxOpenConns is
// pinned to 1 so every query hits the same in-memory database (each
// connection to ":memory:" creates a separate one). Closing is
// registered on t.Cleanup.
func OpenMemory(t testing.TB) *Warehouse {
	t.Helper()
	wh, err := Open(":memory:")
	if err != nil {
		t.Fatalf("warehouse.OpenMemory: %v", err)
	}
	wh.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { wh.DB.Close() })
	return wh
}

// Close closes the underlying database.
func (w *Warehouse) Close() error {
	return w.DB.Close()
}
