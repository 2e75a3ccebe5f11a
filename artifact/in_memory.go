package artifact

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/condormesh/core"
)

// InMemoryStore is a trivial in-process ArtifactStore implementation useful
// for tests, examples and single-process prototypes. It keeps all artifacts
// in a nested map guarded by an RWMutex. Payloads are copied on save and
// load to avoid accidental external mutation of internal buffers.
//
// Layout: scope -> name -> artifact
//
// This implementation is intentionally minimal; it does not enforce
// retention limits, size quotas, or eviction. For durability, use the
// SQLite store.
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[core.Scope]map[string]core.Artifact
}

var _ core.ArtifactStore = (*InMemoryStore)(nil)

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[core.Scope]map[string]core.Artifact)}
}

// Save stores (or overwrites) the artifact for the given scope and name.
// The payload slice is copied before storage. Re-saving keeps the original
// stable ID.
func (a *InMemoryStore) Save(scope core.Scope, name string, payload []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("artifact name must not be empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.artifacts[scope]; !ok {
		a.artifacts[scope] = make(map[string]core.Artifact)
	}

	id := uuid.NewString()
	if existing, ok := a.artifacts[scope][name]; ok {
		id = existing.ID
	}

	cp := make([]byte, len(payload))
	copy(cp, payload)

	a.artifacts[scope][name] = core.Artifact{
		ID:      id,
		Scope:   scope,
		Name:    name,
		Payload: cp,
		Created: time.Now().UTC(),
	}
	return id, nil
}

// Load returns a copy of the stored artifact or core.ErrNotFound.
func (a *InMemoryStore) Load(scope core.Scope, name string) (*core.Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	art, ok := a.artifacts[scope][name]
	if !ok {
		return nil, fmt.Errorf("artifact %s/%s: %w", scope, name, core.ErrNotFound)
	}

	cp := art
	cp.Payload = make([]byte, len(art.Payload))
	copy(cp.Payload, art.Payload)
	return &cp, nil
}

// List returns the artifacts stored in the scope, most recent first.
func (a *InMemoryStore) List(scope core.Scope) ([]core.ArtifactInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	infos := make([]core.ArtifactInfo, 0, len(a.artifacts[scope]))
	for _, art := range a.artifacts[scope] {
		infos = append(infos, core.ArtifactInfo{Name: art.Name, Created: art.Created})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Created.Equal(infos[j].Created) {
			return infos[i].Created.After(infos[j].Created)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos, nil
}
