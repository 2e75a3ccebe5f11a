package tool

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/observability"
)

// Registry routes named tool invocations to registered tools and records
// every execution in the calling session's history. It is the seam between
// the transport layer (MCP server, CLI, tests) and the Context facade: the
// transport resolves a Context per call and hands it to Execute.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	metrics *observability.Metrics
}

// NewRegistry constructs an empty registry. Metrics may be nil.
func NewRegistry(metrics *observability.Metrics) *Registry {
	return &Registry{tools: make(map[string]Tool), metrics: metrics}
}

// Register adds a tool, replacing any previous tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs the named tool against the per-call Context and records the
// call (including failures) as a tool turn via Context.Finish, so "what did
// I look at recently" stays answerable from stored history alone. The
// returned error is the tool error when there is one, otherwise any error
// from recording the turn.
func (r *Registry) Execute(c *core.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		err := fmt.Errorf("tool %q: %w", name, core.ErrNotFound)
		r.metrics.CountToolCall(name, "unknown")
		return nil, c.Finish(name, args, err)
	}

	start := time.Now()
	result, callErr := t.Call(c, args)

	status := "ok"
	if callErr != nil {
		status = "error"
	}
	r.metrics.CountToolCall(name, status)
	r.metrics.CountTurn()

	if ml, ok := c.Logger().(interface {
		LogToolCall(string, time.Duration, bool, error)
	}); ok {
		ml.LogToolCall(name, time.Since(start), callErr == nil, callErr)
	}

	if err := c.Finish(name, args, callErr); err != nil {
		return nil, err
	}
	return result, nil
}
