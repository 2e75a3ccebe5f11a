package artifact

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/condormesh/core"
)

// SQLiteStore is the durable ArtifactStore backed by a SQLite database via
// database/sql. (scope, name) is the primary key; Save is an upsert that
// keeps the row's stable ID across overwrites.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.ArtifactStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates the artifacts table if needed and returns the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmt := `CREATE TABLE IF NOT EXISTS artifacts (
		scope TEXT NOT NULL,
		name TEXT NOT NULL,
		id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (scope, name)
	)`
	if _, err := db.Exec(stmt); err != nil {
		return nil, core.StorageError("artifact.migrate", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save upserts the artifact and returns its stable ID: a fresh UUID on
// first save, the existing ID on overwrite.
func (a *SQLiteStore) Save(scope core.Scope, name string, payload []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("artifact name must not be empty")
	}

	var id string
	err := a.db.QueryRow(
		`INSERT INTO artifacts (scope, name, id, payload, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(scope, name) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
		 RETURNING id`,
		scope.String(), name, uuid.NewString(), payload, time.Now().UTC().UnixNano(),
	).Scan(&id)
	if err != nil {
		return "", core.StorageError("artifact.save", err)
	}
	return id, nil
}

// Load returns the artifact or core.ErrNotFound.
func (a *SQLiteStore) Load(scope core.Scope, name string) (*core.Artifact, error) {
	var art core.Artifact
	var scopeStr string
	var created int64
	err := a.db.QueryRow(
		`SELECT scope, name, id, payload, created_at FROM artifacts WHERE scope = ? AND name = ?`,
		scope.String(), name,
	).Scan(&scopeStr, &art.Name, &art.ID, &art.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact %s/%s: %w", scope, name, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.StorageError("artifact.load", err)
	}
	art.Scope = core.Scope(scopeStr)
	art.Created = time.Unix(0, created).UTC()
	return &art, nil
}

// List returns the artifacts stored in the scope, most recent first.
func (a *SQLiteStore) List(scope core.Scope) ([]core.ArtifactInfo, error) {
	rows, err := a.db.Query(
		`SELECT name, created_at FROM artifacts WHERE scope = ? ORDER BY created_at DESC, name`,
		scope.String(),
	)
	if err != nil {
		return nil, core.StorageError("artifact.list", err)
	}
	defer rows.Close()

	var infos []core.ArtifactInfo
	for rows.Next() {
		var info core.ArtifactInfo
		var created int64
		if err := rows.Scan(&info.Name, &created); err != nil {
			return nil, core.StorageError("artifact.list", err)
		}
		info.Created = time.Unix(0, created).UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("artifact.list", err)
	}
	return infos, nil
}
