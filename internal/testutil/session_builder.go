package testutil

import (
	"encoding/json"
	"testing"

	"github.com/hupe1980/condormesh/core"
)

// SeedSession creates a session for ownerID in the store and appends the
// given turn contents in order, one turn per content, alternating is up to
// the caller. Fails the test on any store error.
func SeedSession(t *testing.T, store core.SessionStore, ownerID string, contents ...string) *core.Session {
	t.Helper()

	sess, err := store.Create(ownerID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	for i, content := range contents {
		role := core.RoleUser
		if i%2 == 1 {
			role = core.RoleAgent
		}
		if _, err := store.AppendTurn(sess.ID, role, JSONContent(t, content)); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}
	return sess
}

// JSONContent marshals a plain string into the JSON turn payload format.
func JSONContent(t *testing.T, text string) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		t.Fatalf("encode content: %v", err)
	}
	return raw
}
