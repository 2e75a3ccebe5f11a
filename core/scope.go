package core

import "strings"

// Scope namespaces memory entries and artifacts. It distinguishes per-user
// data ("user:<owner>"), per-session data ("session:<id>") and globally
// shared data ("global"). Memory and artifacts are owned by their scope, not
// by any session, which is what gives cross-session recall.
type Scope string

// GlobalScope is the shared namespace visible to every caller.
const GlobalScope Scope = "global"

// UserScope returns the scope owning data private to one caller.
func UserScope(ownerID string) Scope { return Scope("user:" + ownerID) }

// SessionScope returns the scope owning data tied to one session.
func SessionScope(sessionID string) Scope { return Scope("session:" + sessionID) }

// IsUser reports whether the scope is a per-user namespace.
func (s Scope) IsUser() bool { return strings.HasPrefix(string(s), "user:") }

// IsGlobal reports whether the scope is the shared namespace.
func (s Scope) IsGlobal() bool { return s == GlobalScope }

func (s Scope) String() string { return string(s) }
