package core

import "time"

// Artifact is a named stored object. (Scope, Name) is unique; re-saving
// under the same name overwrites the payload while the ID stays stable so
// retrieval logs keep pointing at the same object.
type Artifact struct {
	ID      string    `json:"id"`
	Scope   Scope     `json:"scope"`
	Name    string    `json:"name"`
	Payload []byte    `json:"payload"`
	Created time.Time `json:"created"`
}

// ArtifactInfo is the listing projection of an artifact (no payload).
type ArtifactInfo struct {
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
}

// ArtifactStore defines the interface for artifact persistence.
// Implementations should be thread-safe and must copy payload bytes on save
// and load so callers cannot mutate stored data. Short method names
// (Save/Load/List) mirror the other *Store interfaces for consistency.
type ArtifactStore interface {
	Save(scope Scope, name string, payload []byte) (string, error)
	Load(scope Scope, name string) (*Artifact, error)
	List(scope Scope) ([]ArtifactInfo, error)
}
