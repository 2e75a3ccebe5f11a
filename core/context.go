package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/hupe1980/condormesh/logging"
)

// defaultPreferences are seeded into a caller's user-scope memory the first
// time a session is created for them, matching what the scheduler tools
// expect to find.
var defaultPreferences = map[string]any{
	"default_job_limit":     10,
	"output_format":         "table",
	"auto_refresh_interval": 30,
}

// jobRefPattern matches 6+ digit numbers, which in practice are HTCondor
// cluster IDs mentioned in conversation.
var jobRefPattern = regexp.MustCompile(`\b\d{6,}\b`)

// ContextConfig carries the backing services a Context delegates to. Any nil
// service renders the corresponding accessor unavailable ("not configured"
// errors), mirroring how partial wiring behaves elsewhere in the module.
type ContextConfig struct {
	Sessions  SessionStore
	Memory    MemoryStore
	Artifacts ArtifactStore
	Dataset   DatasetProvider
	Logger    logging.Logger
}

// ContextOptions tunes per-call session resolution.
type ContextOptions struct {
	// FreshSession forces creation of a new session even when the owner
	// already has one ("start fresh" request).
	FreshSession bool
	// SessionID resumes an explicit session instead of the owner's most
	// recently active one. ErrNotFound if it does not exist.
	SessionID string
	// HistoryLimit bounds the recent-history window used by helpers like
	// JobReferences. Zero means the default of 10.
	HistoryLimit int
}

// Context is the per-call facade handed to every tool invocation. It is
// bound to a caller identity and that caller's resolved session, and exposes
// dataset, memory and artifact views through scoped accessors. Construct one
// per call and discard it afterwards; it carries no hidden global lookups.
//
// A Context never silently swallows a component error: failures from any
// delegated store surface as tagged errors (see errors.go), while Finish
// still attempts to append a turn recording the failure so history remains
// complete even on failure paths.
type Context struct {
	ctx     context.Context
	ownerID string
	session *Session

	sessions  SessionStore
	memory    MemoryStore
	artifacts ArtifactStore
	dataset   DatasetProvider

	historyLimit int

	*loggerAdapter
}

// NewContext resolves the caller's active session (most recently active, or
// a new one when none exists or a fresh start was requested) and returns a
// facade bound to it.
func NewContext(ctx context.Context, ownerID string, cfg ContextConfig, optFns ...func(*ContextOptions)) (*Context, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store not configured")
	}
	if ownerID == "" {
		return nil, fmt.Errorf("owner id must not be empty")
	}

	opts := ContextOptions{HistoryLimit: 10}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}

	c := &Context{
		ctx:           ctx,
		ownerID:       ownerID,
		sessions:      cfg.Sessions,
		memory:        cfg.Memory,
		artifacts:     cfg.Artifacts,
		dataset:       cfg.Dataset,
		historyLimit:  opts.HistoryLimit,
		loggerAdapter: newLoggerAdapter(cfg.Logger),
	}

	sess, err := c.resolveSession(opts)
	if err != nil {
		return nil, err
	}
	c.session = sess

	return c, nil
}

// WithFreshSession forces a new session for this call.
func WithFreshSession() func(*ContextOptions) {
	return func(o *ContextOptions) { o.FreshSession = true }
}

// WithSessionID resumes the given session instead of the owner's latest.
func WithSessionID(id string) func(*ContextOptions) {
	return func(o *ContextOptions) { o.SessionID = id }
}

func (c *Context) resolveSession(opts ContextOptions) (*Session, error) {
	if opts.SessionID != "" {
		sess, err := c.sessions.Get(opts.SessionID)
		if err != nil {
			return nil, err
		}
		if sess.OwnerID != c.ownerID {
			return nil, fmt.Errorf("session %s: %w", opts.SessionID, ErrNotFound)
		}
		return sess, nil
	}

	if !opts.FreshSession {
		sess, err := c.sessions.GetLast(c.ownerID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	sess, err := c.sessions.Create(c.ownerID)
	if err != nil {
		return nil, err
	}

	c.LogInfo("session.created", "session_id", sess.ID, "owner_id", c.ownerID)
	c.seedPreferences()

	return sess, nil
}

// seedPreferences writes default preferences into the caller's user-scope
// memory on first contact. Failures are logged and ignored: missing defaults
// degrade tool output formatting, not correctness.
func (c *Context) seedPreferences() {
	if c.memory == nil {
		return
	}
	scope := UserScope(c.ownerID)
	if _, err := c.memory.Get(scope, "preferences"); err == nil {
		return
	}
	raw, _ := json.Marshal(defaultPreferences)
	if err := c.memory.Put(scope, "preferences", string(raw)); err != nil {
		c.LogWarn("memory.seed_preferences.failed", "owner_id", c.ownerID, "error", err)
	}
}

// Context returns the ambient cancellation context for the call.
func (c *Context) Context() context.Context { return c.ctx }

// OwnerID returns the caller identity the facade is bound to.
func (c *Context) OwnerID() string { return c.ownerID }

// Session returns the resolved session snapshot.
func (c *Context) Session() *Session { return c.session }

// SessionID returns the resolved session's identifier.
func (c *Context) SessionID() string { return c.session.ID }

// Logger returns the logger associated with the call.
func (c *Context) Logger() logging.Logger { return c.loggerAdapter.Logger() }

// Dataset returns the dataset accessor for the call.
func (c *Context) Dataset() DatasetAccessor { return DatasetAccessor{c: c} }

// Memory returns the memory accessor bound to the caller's user scope.
func (c *Context) Memory() MemoryAccessor { return MemoryAccessor{c: c} }

// Artifacts returns the artifact accessor bound to the caller/session scopes.
func (c *Context) Artifacts() ArtifactAccessor { return ArtifactAccessor{c: c} }

// History returns the session's turns in ascending sequence order; a
// positive limit selects the most recent N.
func (c *Context) History(limit int) ([]Turn, error) {
	return c.sessions.History(c.session.ID, limit)
}

// Summarize computes the derived summary of the session's history.
func (c *Context) Summarize() (*Summary, error) {
	return c.sessions.Summarize(c.session.ID)
}

// GetState reads a key from the session's opaque state blob.
func (c *Context) GetState(key string) (any, bool) {
	v, ok := c.session.State[key]
	return v, ok
}

// SetState persists a state mutation through the session store and mirrors
// it on the local snapshot for immediate visibility within the call.
func (c *Context) SetState(key string, value any) error {
	if err := c.sessions.ApplyStateDelta(c.session.ID, map[string]any{key: value}); err != nil {
		return err
	}
	c.session.State[key] = value
	return nil
}

// JobReferences extracts HTCondor cluster IDs mentioned in the session's
// recent history, deduplicated, most recent mention first.
func (c *Context) JobReferences() ([]string, error) {
	turns, err := c.sessions.History(c.session.ID, c.historyLimit)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var refs []string
	for i := len(turns) - 1; i >= 0; i-- {
		for _, m := range jobRefPattern.FindAllString(string(turns[i].Content), -1) {
			if !seen[m] {
				seen[m] = true
				refs = append(refs, m)
			}
		}
	}
	return refs, nil
}

// RecordTurn appends a turn with the given role and JSON-serializable
// content to the session's history.
func (c *Context) RecordTurn(role string, content any) (*Turn, error) {
	raw, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode turn content: %w", err)
	}
	turn, err := c.sessions.AppendTurn(c.session.ID, role, raw)
	if err != nil {
		return nil, err
	}
	c.session.LastActive = turn.Timestamp
	return turn, nil
}

// callRecord is the structured turn payload written by Finish. Having the
// operation and logical parameters in history is what makes "what did I look
// at recently" answerable without re-deriving it from cache state.
type callRecord struct {
	Op     string         `json:"op"`
	Params map[string]any `json:"params,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Finish records the completed call (including failures) as a tool turn and
// returns the error the caller should propagate: the original call error
// when there is one, otherwise any error from appending the turn. When both
// fail the append error is logged so history gaps are at least visible.
func (c *Context) Finish(op string, params map[string]any, callErr error) error {
	rec := callRecord{Op: op, Params: params}
	if callErr != nil {
		rec.Error = callErr.Error()
	}

	if _, err := c.RecordTurn(RoleTool, rec); err != nil {
		if callErr != nil {
			c.LogError("context.finish.append_failed", "op", op, "session_id", c.session.ID, "error", err)
			return callErr
		}
		return err
	}

	return callErr
}

// DatasetAccessor exposes the shared dataset snapshot to one call.
type DatasetAccessor struct{ c *Context }

// Rows returns the current snapshot, refreshing it first when older than
// maxStaleness (provider TTL when <= 0).
func (d DatasetAccessor) Rows(maxStaleness time.Duration) ([]Row, time.Time, error) {
	if d.c.dataset == nil {
		return nil, time.Time{}, fmt.Errorf("dataset provider not configured")
	}
	return d.c.dataset.Get(d.c.ctx, maxStaleness)
}

// Refresh forces an unconditional refresh (still single-flight).
func (d DatasetAccessor) Refresh() ([]Row, time.Time, error) {
	if d.c.dataset == nil {
		return nil, time.Time{}, fmt.Errorf("dataset provider not configured")
	}
	return d.c.dataset.Refresh(d.c.ctx)
}

// Invalidate marks the snapshot stale without clearing it.
func (d DatasetAccessor) Invalidate() {
	if d.c.dataset != nil {
		d.c.dataset.Invalidate()
	}
}

// MemoryAccessor exposes scoped memory to one call. Writes target the
// caller's user scope unless global is requested; Search spans the user
// scope ranked before global.
type MemoryAccessor struct{ c *Context }

func (m MemoryAccessor) store() (MemoryStore, error) {
	if m.c.memory == nil {
		return nil, fmt.Errorf("memory store not configured")
	}
	return m.c.memory, nil
}

// Remember upserts a fact under the caller's user scope (or the global
// scope when global is true).
func (m MemoryAccessor) Remember(key, value string, global bool) error {
	store, err := m.store()
	if err != nil {
		return err
	}
	scope := UserScope(m.c.ownerID)
	if global {
		scope = GlobalScope
	}
	return store.Put(scope, key, value)
}

// Recall fetches a fact by key from the caller's user scope (or global).
func (m MemoryAccessor) Recall(key string, global bool) (*MemoryEntry, error) {
	store, err := m.store()
	if err != nil {
		return nil, err
	}
	scope := UserScope(m.c.ownerID)
	if global {
		scope = GlobalScope
	}
	return store.Get(scope, key)
}

// Search scans the caller's user scope and the global scope for entries
// containing the query, user-scope hits ranked first.
func (m MemoryAccessor) Search(query string) ([]MemoryEntry, error) {
	store, err := m.store()
	if err != nil {
		return nil, err
	}
	return store.Search(query, UserScope(m.c.ownerID), GlobalScope)
}

// ArtifactAccessor exposes named-blob storage to one call. The caller
// chooses user or session granularity per operation.
type ArtifactAccessor struct{ c *Context }

func (a ArtifactAccessor) store() (ArtifactStore, error) {
	if a.c.artifacts == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}
	return a.c.artifacts, nil
}

func (a ArtifactAccessor) scope(sessionScoped bool) Scope {
	if sessionScoped {
		return SessionScope(a.c.session.ID)
	}
	return UserScope(a.c.ownerID)
}

// Save upserts a named artifact; sessionScoped ties it to the current
// session instead of the caller. Returns the artifact's stable ID.
func (a ArtifactAccessor) Save(name string, payload []byte, sessionScoped bool) (string, error) {
	store, err := a.store()
	if err != nil {
		return "", err
	}
	return store.Save(a.scope(sessionScoped), name, payload)
}

// Load retrieves a named artifact from the chosen scope.
func (a ArtifactAccessor) Load(name string, sessionScoped bool) (*Artifact, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	return store.Load(a.scope(sessionScoped), name)
}

// List enumerates artifacts in the chosen scope, most recent first.
func (a ArtifactAccessor) List(sessionScoped bool) ([]ArtifactInfo, error) {
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	return store.List(a.scope(sessionScoped))
}
