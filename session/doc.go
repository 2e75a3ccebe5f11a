// Package session contains concrete SessionStore implementations. The store
// interface and the Session/Turn types reside in the core package. Import
// github.com/hupe1980/condormesh/core and depend on core.SessionStore in
// your code; select an implementation (SQLite for durability, in-memory for
// tests and demos) at wiring time.
//
// Rationale: keeps domain contracts centralized while allowing pluggable
// backends to be added without introducing dependency cycles.
package session
