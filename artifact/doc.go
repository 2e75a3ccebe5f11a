// Package artifact contains concrete ArtifactStore implementations. The
// store interface and the Artifact type reside in the core package. Import
// github.com/hupe1980/condormesh/core and depend on core.ArtifactStore in
// your code; select an implementation (SQLite for durability, in-memory for
// tests and demos) at wiring time.
package artifact
