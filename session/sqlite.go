package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/condormesh/core"
)

// appendRetries bounds the retry loop on turn sequence collisions. SQLite
// serializes writers, so a collision requires two deferred transactions
// racing the same MAX(seq) read; a handful of retries absorbs that.
const appendRetries = 5

// SQLiteStore is the durable SessionStore backed by a SQLite database via
// database/sql. It shares its *sql.DB with the other stores; the schema for
// its own tables is created on construction. Every read goes to the
// database, so the store stays consistent if the file is later shared.
type SQLiteStore struct {
	db *sql.DB
}

var _ core.SessionStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates the sessions/turns tables if needed and returns
// the store.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			last_active_at INTEGER NOT NULL,
			state TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS turns (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			seq INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner ON sessions(owner_id, last_active_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, core.StorageError("session.migrate", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Create allocates and persists a new session for the owner.
func (s *SQLiteStore) Create(ownerID string) (*core.Session, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id must not be empty")
	}

	sess := core.NewSession(ownerID)
	state, err := json.Marshal(sess.State)
	if err != nil {
		return nil, core.StorageError("session.create", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, owner_id, created_at, last_active_at, state) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.OwnerID, sess.Created.UnixNano(), sess.LastActive.UnixNano(), string(state),
	)
	if err != nil {
		return nil, core.StorageError("session.create", err)
	}
	return sess, nil
}

// Get returns the session or core.ErrNotFound.
func (s *SQLiteStore) Get(sessionID string) (*core.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, created_at, last_active_at, state FROM sessions WHERE id = ?`,
		sessionID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.StorageError("session.get", err)
	}
	return sess, nil
}

// List returns the owner's sessions, most recently active first.
func (s *SQLiteStore) List(ownerID string) ([]*core.Session, error) {
	rows, err := s.db.Query(
		`SELECT id, owner_id, created_at, last_active_at, state
		 FROM sessions WHERE owner_id = ?
		 ORDER BY last_active_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, core.StorageError("session.list", err)
	}
	defer rows.Close()

	var res []*core.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, core.StorageError("session.list", err)
		}
		res = append(res, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("session.list", err)
	}
	return res, nil
}

// GetLast returns the owner's most recently active session.
func (s *SQLiteStore) GetLast(ownerID string) (*core.Session, error) {
	row := s.db.QueryRow(
		`SELECT id, owner_id, created_at, last_active_at, state
		 FROM sessions WHERE owner_id = ?
		 ORDER BY last_active_at DESC, id LIMIT 1`,
		ownerID,
	)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("owner %s has no sessions: %w", ownerID, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.StorageError("session.get_last", err)
	}
	return sess, nil
}

// AppendTurn allocates the next sequence number transactionally: the MAX(seq)
// read, the insert and the last_active bump commit together, and the
// (session_id, seq) primary key catches the rare race between two deferred
// transactions, which is retried. Exhausting retries reports core.ErrConflict,
// an invariant violation rather than a recoverable condition.
func (s *SQLiteStore) AppendTurn(sessionID, role string, content json.RawMessage) (*core.Turn, error) {
	var lastErr error
	for attempt := 0; attempt < appendRetries; attempt++ {
		turn, err := s.appendTurnOnce(sessionID, role, content)
		if err == nil {
			return turn, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("append turn to %s: %w: %v", sessionID, core.ErrConflict, lastErr)
}

func (s *SQLiteStore) appendTurnOnce(sessionID, role string, content json.RawMessage) (*core.Turn, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, core.StorageError("session.append_turn", err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRow(`SELECT id FROM sessions WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return nil, core.StorageError("session.append_turn", err)
	}

	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM turns WHERE session_id = ?`, sessionID).Scan(&next); err != nil {
		return nil, core.StorageError("session.append_turn", err)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(
		`INSERT INTO turns (session_id, seq, role, content, ts) VALUES (?, ?, ?, ?, ?)`,
		sessionID, next, role, string(content), now.UnixNano(),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, core.StorageError("session.append_turn", err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET last_active_at = ? WHERE id = ?`, now.UnixNano(), sessionID); err != nil {
		return nil, core.StorageError("session.append_turn", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, core.StorageError("session.append_turn", err)
	}

	return &core.Turn{
		SessionID: sessionID,
		Seq:       next,
		Role:      role,
		Content:   append(json.RawMessage(nil), content...),
		Timestamp: now,
	}, nil
}

// History returns turns in ascending sequence order. A positive limit selects
// the most recent N: the query reads them newest-first and the slice is
// reversed afterwards.
func (s *SQLiteStore) History(sessionID string, limit int) ([]core.Turn, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}

	query := `SELECT session_id, seq, role, content, ts FROM turns WHERE session_id = ? ORDER BY seq DESC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, core.StorageError("session.history", err)
	}
	defer rows.Close()

	var turns []core.Turn
	for rows.Next() {
		var t core.Turn
		var content string
		var ts int64
		if err := rows.Scan(&t.SessionID, &t.Seq, &t.Role, &content, &ts); err != nil {
			return nil, core.StorageError("session.history", err)
		}
		t.Content = json.RawMessage(content)
		t.Timestamp = time.Unix(0, ts).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("session.history", err)
	}

	// back to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Summarize derives turn count, first/last timestamps and the distinct
// roles from the stored history.
func (s *SQLiteStore) Summarize(sessionID string) (*core.Summary, error) {
	if _, err := s.Get(sessionID); err != nil {
		return nil, err
	}

	sum := &core.Summary{}
	var first, last sql.NullInt64
	err := s.db.QueryRow(
		`SELECT COUNT(*), MIN(ts), MAX(ts) FROM turns WHERE session_id = ?`,
		sessionID,
	).Scan(&sum.TurnCount, &first, &last)
	if err != nil {
		return nil, core.StorageError("session.summarize", err)
	}
	if first.Valid {
		sum.FirstTurnAt = time.Unix(0, first.Int64).UTC()
	}
	if last.Valid {
		sum.LastTurnAt = time.Unix(0, last.Int64).UTC()
	}

	rows, err := s.db.Query(`SELECT DISTINCT role FROM turns WHERE session_id = ? ORDER BY role`, sessionID)
	if err != nil {
		return nil, core.StorageError("session.summarize", err)
	}
	defer rows.Close()
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, core.StorageError("session.summarize", err)
		}
		sum.DistinctRoles = append(sum.DistinctRoles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageError("session.summarize", err)
	}
	return sum, nil
}

// ApplyStateDelta merges the delta into the session's state blob inside a
// transaction so concurrent deltas do not lose keys.
func (s *SQLiteStore) ApplyStateDelta(sessionID string, delta map[string]any) error {
	tx, err := s.db.Begin()
	if err != nil {
		return core.StorageError("session.apply_state", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRow(`SELECT state FROM sessions WHERE id = ?`, sessionID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	if err != nil {
		return core.StorageError("session.apply_state", err)
	}

	state := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return core.StorageError("session.apply_state", err)
		}
	}
	for k, v := range delta {
		state[k] = v
	}
	merged, err := json.Marshal(state)
	if err != nil {
		return core.StorageError("session.apply_state", err)
	}

	if _, err := tx.Exec(`UPDATE sessions SET state = ? WHERE id = ?`, string(merged), sessionID); err != nil {
		return core.StorageError("session.apply_state", err)
	}
	if err := tx.Commit(); err != nil {
		return core.StorageError("session.apply_state", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (*core.Session, error) {
	var sess core.Session
	var created, lastActive int64
	var state string
	if err := sc.Scan(&sess.ID, &sess.OwnerID, &created, &lastActive, &state); err != nil {
		return nil, err
	}
	sess.Created = time.Unix(0, created).UTC()
	sess.LastActive = time.Unix(0, lastActive).UTC()
	sess.State = map[string]any{}
	if state != "" {
		if err := json.Unmarshal([]byte(state), &sess.State); err != nil {
			return nil, fmt.Errorf("decode session state: %w", err)
		}
	}
	return &sess, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
