// Package memory contains concrete MemoryStore implementations. The store
// interface and the MemoryEntry type reside in the core package. Import
// github.com/hupe1980/condormesh/core and depend on core.MemoryStore in your
// code; select an implementation (SQLite for durability, in-memory for
// tests and demos) at wiring time.
//
// Search is deliberately a case-insensitive substring scan: memory entries
// are small and low in count per user, and the goal is recall of previously
// noted facts, not relevance ranking across large corpora.
package memory
