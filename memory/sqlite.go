package memory

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/condormesh/core"
)

// SQLiteStore is the durable MemoryStore backed by a SQLite database via
// database/sql. (scope, key) is the primary key; Put is an upsert.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.MemoryStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates the memory table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (scope, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_updated ON memory(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, core.StorageError("memory.migrate", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Put upserts the entry, overwriting value and timestamp on conflict.
func (m *SQLiteStore) Put(scope core.Scope, key, value string) error {
	if key == "" {
		return fmt.Errorf("memory key must not be empty")
	}

	_, err := m.db.Exec(
		`INSERT INTO memory (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		scope.String(), key, value, time.Now().UTC().UnixNano(),
	)
	if err != nil {
		return core.StorageError("memory.put", err)
	}
	return nil
}

// Get returns the entry or core.ErrNotFound.
func (m *SQLiteStore) Get(scope core.Scope, key string) (*core.MemoryEntry, error) {
	var entry core.MemoryEntry
	var scopeStr string
	var updated int64
	err := m.db.QueryRow(
		`SELECT scope, key, value, updated_at FROM memory WHERE scope = ? AND key = ?`,
		scope.String(), key,
	).Scan(&scopeStr, &entry.Key, &entry.Value, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("memory %s/%s: %w", scope, key, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.StorageError("memory.get", err)
	}
	entry.Scope = core.Scope(scopeStr)
	entry.Updated = time.Unix(0, updated).UTC()
	return &entry, nil
}

// Search scans the given scopes for entries whose key or value contains the
// query, case-insensitive. instr() instead of LIKE keeps the query literal
// (no wildcard interpretation). Hits are ordered by the position of their
// scope in the argument list, then most recently updated first.
func (m *SQLiteStore) Search(query string, scopes ...core.Scope) ([]core.MemoryEntry, error) {
	if len(scopes) == 0 {
		return nil, nil
	}

	needle := strings.ToLower(query)

	var sb strings.Builder
	args := make([]any, 0, 2*len(scopes)+2)

	sb.WriteString(`SELECT scope, key, value, updated_at FROM memory WHERE scope IN (`)
	for i, scope := range scopes {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, scope.String())
	}
	sb.WriteString(`) AND (instr(lower(key), ?) > 0 OR instr(lower(value), ?) > 0) ORDER BY CASE scope`)
	args = append(args, needle, needle)
	for i, scope := range scopes {
		sb.WriteString(fmt.Sprintf(" WHEN ? THEN %d", i))
		args = append(args, scope.String())
	}
	sb.WriteString(` END, updated_at DESC, key`)

	rows, err := m.db.Query(sb.String(), args...)
	if err != nil {
		return nil, core.StorageError("memory.search", err)
	}
	defer rows.Close()

	var res []core.MemoryEntry
	for rows.Next() {
		var entry core.MemoryEntry
		var scopeStr string
		var updated int64
		if err := rows.Scan(&scopeStr, &entry.Key, &entry.Value, &updated); err != nil {
			return nil, core.StorageError("memory.search", err)
		}
		entry.Scope = core.Scope(scopeStr)
		entry.Updated = time.Unix(0, updated).UTC()
		res = append(res, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("memory.search", err)
	}
	return res, nil
}
