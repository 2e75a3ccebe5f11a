// Package storage provides the shared SQLite handle used by the durable
// session, memory and artifact stores. One database file holds all four
// tables; each store creates its own schema on construction so the stores
// stay independently usable against a caller-supplied *sql.DB.
package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Open opens (creating if needed) the SQLite database at path and applies
// the pragmas the stores rely on: WAL journaling, a busy timeout instead of
// immediate SQLITE_BUSY failures, and enforced foreign keys. The pool is
// capped at one connection: busy_timeout and foreign_keys are per-connection
// pragmas, write transactions never race each other, and ":memory:" paths
// keep a single shared database instead of one per pooled connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	return db, nil
}
