package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/condormesh/core"
)

// InMemoryStore is a volatile SessionStore implementation storing sessions
// and their turn histories in process-local maps. It is safe for concurrent
// access and best suited for tests or ephemeral demo runs. Returned sessions
// are cloned to prevent external mutation of internal state.
//
// Turn sequence allocation is serialized by the store-wide mutex, which
// keeps sequence numbers gap-free from 1 under concurrent appends.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	turns    map[string][]core.Turn
}

var _ core.SessionStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*core.Session),
		turns:    make(map[string][]core.Turn),
	}
}

// Create allocates a new session for the owner.
func (s *InMemoryStore) Create(ownerID string) (*core.Session, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("owner id must not be empty")
	}

	sess := core.NewSession(ownerID)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	return sess.Clone(), nil
}

// Get returns a clone of the session or core.ErrNotFound.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	return sess.Clone(), nil
}

// List returns the owner's sessions, most recently active first.
func (s *InMemoryStore) List(ownerID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var res []*core.Session
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			res = append(res, sess.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].LastActive.Equal(res[j].LastActive) {
			return res[i].LastActive.After(res[j].LastActive)
		}
		return res[i].ID < res[j].ID // stable order for equal timestamps
	})
	return res, nil
}

// GetLast returns the owner's most recently active session.
func (s *InMemoryStore) GetLast(ownerID string) (*core.Session, error) {
	sessions, err := s.List(ownerID)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, fmt.Errorf("owner %s has no sessions: %w", ownerID, core.ErrNotFound)
	}
	return sessions[0], nil
}

// AppendTurn allocates the next sequence number, appends the turn and bumps
// the session's LastActive timestamp.
func (s *InMemoryStore) AppendTurn(sessionID, role string, content json.RawMessage) (*core.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}

	turn := core.Turn{
		SessionID: sessionID,
		Seq:       len(s.turns[sessionID]) + 1,
		Role:      role,
		Content:   append(json.RawMessage(nil), content...),
		Timestamp: time.Now().UTC(),
	}
	s.turns[sessionID] = append(s.turns[sessionID], turn)
	sess.LastActive = turn.Timestamp

	return &turn, nil
}

// History returns turns in ascending sequence order; a positive limit
// selects the most recent N.
func (s *InMemoryStore) History(sessionID string, limit int) ([]core.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}

	turns := s.turns[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	res := make([]core.Turn, len(turns))
	copy(res, turns)
	return res, nil
}

// Summarize derives the session summary from its full history.
func (s *InMemoryStore) Summarize(sessionID string) (*core.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}

	turns := s.turns[sessionID]
	sum := &core.Summary{TurnCount: len(turns)}
	roles := map[string]bool{}
	for _, t := range turns {
		roles[t.Role] = true
	}
	if len(turns) > 0 {
		sum.FirstTurnAt = turns[0].Timestamp
		sum.LastTurnAt = turns[len(turns)-1].Timestamp
	}
	for r := range roles {
		sum.DistinctRoles = append(sum.DistinctRoles, r)
	}
	sort.Strings(sum.DistinctRoles)
	return sum, nil
}

// ApplyStateDelta merges the provided key/value pairs into the session state.
func (s *InMemoryStore) ApplyStateDelta(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", sessionID, core.ErrNotFound)
	}
	for k, v := range delta {
		sess.State[k] = v
	}
	return nil
}
