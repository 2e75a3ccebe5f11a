package core

import "time"

// MemoryEntry is a scoped fact. (Scope, Key) is unique; writing an existing
// key overwrites value and timestamp (last-write-wins, no history retained).
type MemoryEntry struct {
	Scope   Scope     `json:"scope"`
	Key     string    `json:"key"`
	Value   string    `json:"value"`
	Updated time.Time `json:"updated"`
}

// MemoryStore defines persistence + recall for scoped key/value facts.
// Search is a case-insensitive substring match over keys and values: memory
// entries are small and low in count per user, so a cheap scan satisfies
// recall without an indexing subsystem.
//
// Search ranking: results from earlier scopes in the argument list rank
// before later ones (callers pass the user scope first, then global), ties
// broken by most recent update first.
type MemoryStore interface {
	Put(scope Scope, key, value string) error
	Get(scope Scope, key string) (*MemoryEntry, error)
	Search(query string, scopes ...Scope) ([]MemoryEntry, error)
}
