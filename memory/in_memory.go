package memory

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/condormesh/core"
)

// InMemoryStore is a process-local MemoryStore. Entries live in a nested
// map guarded by an RWMutex; writes are last-write-wins per (scope, key).
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[core.Scope]map[string]core.MemoryEntry
}

var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[core.Scope]map[string]core.MemoryEntry)}
}

// Put upserts the entry, silently overwriting an existing value.
func (m *InMemoryStore) Put(scope core.Scope, key, value string) error {
	if key == "" {
		return fmt.Errorf("memory key must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[scope]; !ok {
		m.entries[scope] = make(map[string]core.MemoryEntry)
	}
	m.entries[scope][key] = core.MemoryEntry{
		Scope:   scope,
		Key:     key,
		Value:   value,
		Updated: time.Now().UTC(),
	}
	return nil
}

// Get returns the entry or core.ErrNotFound.
func (m *InMemoryStore) Get(scope core.Scope, key string) (*core.MemoryEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[scope][key]
	if !ok {
		return nil, fmt.Errorf("memory %s/%s: %w", scope, key, core.ErrNotFound)
	}
	return &entry, nil
}

// Search scans the given scopes in order for entries whose key or value
// contains the query (case-insensitive). Hits from earlier scopes rank
// before later ones; within a scope, most recently updated first.
func (m *InMemoryStore) Search(query string, scopes ...core.Scope) ([]core.MemoryEntry, error) {
	needle := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var res []core.MemoryEntry
	for _, scope := range scopes {
		var hits []core.MemoryEntry
		for _, entry := range m.entries[scope] {
			if strings.Contains(strings.ToLower(entry.Key), needle) ||
				strings.Contains(strings.ToLower(entry.Value), needle) {
				hits = append(hits, entry)
			}
		}
		sort.Slice(hits, func(i, j int) bool {
			if !hits[i].Updated.Equal(hits[j].Updated) {
				return hits[i].Updated.After(hits[j].Updated)
			}
			return hits[i].Key < hits[j].Key
		})
		res = append(res, hits...)
	}
	return res, nil
}
