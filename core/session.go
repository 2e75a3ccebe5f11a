package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Turn roles. A turn records either a caller message, an agent reply or a
// tool action.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleTool  = "tool"
)

// Session represents one continuous interaction thread owned by a caller.
// Many sessions may exist per owner; the most recently active one is the
// owner's "current" session. State is an opaque structured blob (current
// filters, last-viewed job references) mutated only through the Context
// facade. Sessions are never physically deleted by this module; retention is
// an external policy decision.
type Session struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Created    time.Time      `json:"created"`
	LastActive time.Time      `json:"last_active"`
	State      map[string]any `json:"state"`
}

// NewSession allocates a session for the given owner with a fresh UUID.
func NewSession(ownerID string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Created:    now,
		LastActive: now,
		State:      map[string]any{},
	}
}

// IdleSince reports whether the session has seen no activity within the
// caller-supplied threshold. Active/Idle is derived; there is no persisted
// state transition.
func (s *Session) IdleSince(now time.Time, threshold time.Duration) bool {
	return now.Sub(s.LastActive) > threshold
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	clone := *s
	clone.State = make(map[string]any, len(s.State))
	for k, v := range s.State {
		clone.State[k] = v
	}
	return &clone
}

// Turn is one exchange within a session's append-only history. Seq is
// strictly increasing per session and gap-free from 1. Turns are immutable
// once written.
type Turn struct {
	SessionID string          `json:"session_id"`
	Seq       int             `json:"seq"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
}

// Summary is derived on demand from a session's turn history; it is never
// stored.
type Summary struct {
	TurnCount     int       `json:"turn_count"`
	FirstTurnAt   time.Time `json:"first_turn_at"`
	LastTurnAt    time.Time `json:"last_turn_at"`
	DistinctRoles []string  `json:"distinct_roles"`
}

// SessionStore persists sessions and their ordered turn histories.
//
// Contract:
//   - AppendTurn allocates the next sequence number under a per-session
//     serialization point so concurrent appends to one session yield
//     exactly {1..M} with no duplicates or gaps, and bumps LastActive.
//   - History returns turns in ascending sequence order; a positive limit
//     selects the most recent N (still ascending).
//   - Get/GetLast/AppendTurn return ErrNotFound for missing sessions.
//   - Every read goes to the backend; implementations must not cache rows
//     beyond a single call.
type SessionStore interface {
	Create(ownerID string) (*Session, error)
	Get(sessionID string) (*Session, error)
	List(ownerID string) ([]*Session, error)
	GetLast(ownerID string) (*Session, error)
	AppendTurn(sessionID, role string, content json.RawMessage) (*Turn, error)
	History(sessionID string, limit int) ([]Turn, error)
	Summarize(sessionID string) (*Summary, error)
	ApplyStateDelta(sessionID string, delta map[string]any) error
}
