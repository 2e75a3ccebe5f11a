// Package condormesh provides a high-level façade over the core context and
// service abstractions (sessions, memory, artifacts, the shared job dataset
// and logging) enabling rapid construction of HTCondor tool-serving agents.
// Most applications interact with this package by:
//  1. Creating a Service via New() (optionally overriding default in-memory stores)
//  2. Registering additional tools on Tools() beyond the built-in scheduler set
//  3. Executing tool calls per caller via Execute, or obtaining a bound
//     context via NewContext for direct store access
//
// The façade delegates session resolution and scoping to core.Context while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply the SQLite
// store implementations, a live scheduler fetcher and a structured logger.
package condormesh

import (
	"context"

	"github.com/hupe1980/condormesh/artifact"
	"github.com/hupe1980/condormesh/condor"
	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/dataset"
	"github.com/hupe1980/condormesh/logging"
	"github.com/hupe1980/condormesh/memory"
	"github.com/hupe1980/condormesh/observability"
	"github.com/hupe1980/condormesh/session"
	"github.com/hupe1980/condormesh/tool"
)

// Options configures the Service instance.
type Options struct {
	// Stores (default to in-memory implementations if not provided)
	SessionStore  core.SessionStore
	MemoryStore   core.MemoryStore
	ArtifactStore core.ArtifactStore

	// Dataset supplies the shared job snapshot. When nil, a cache is built
	// around Fetch (or a local condor_q/condor_history runner when Fetch is
	// also nil).
	Dataset core.DatasetProvider

	// Fetch overrides the dataset fetch function used when Dataset is nil.
	Fetch dataset.FetchFunc

	// DatasetConfig tunes the cache built around Fetch (TTL, fetch timeout).
	DatasetConfig []func(*dataset.Config)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger

	// Metrics, when set, instruments refreshes, turn appends and tool calls.
	Metrics *observability.Metrics

	// HistoryLimit bounds the recent-history window used by context helpers.
	HistoryLimit int
}

// Service is the high-level façade aggregating the stores, the dataset cache
// and the tool registry.
type Service struct {
	opts     Options
	registry *tool.Registry
}

// New creates a new Service with optional overrides. Any unset store is
// initialized with an in-memory implementation, and the built-in scheduler,
// memory, artifact and session tools are registered.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		SessionStore:  session.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dataset == nil {
		fetch := opts.Fetch
		if fetch == nil {
			fetch = condor.NewSchedd(func(o *condor.Options) {
				o.Logger = opts.Logger
			}).Fetch
		}
		cfgFns := append([]func(*dataset.Config){func(c *dataset.Config) {
			c.Logger = opts.Logger
			c.Metrics = opts.Metrics
		}}, opts.DatasetConfig...)
		opts.Dataset = dataset.NewCache(fetch, cfgFns...)
	}

	registry := tool.NewRegistry(opts.Metrics)
	tool.RegisterCondorTools(registry)

	return &Service{opts: opts, registry: registry}
}

// Tools returns the tool registry for registering additional tools or
// inspecting the built-in set.
func (s *Service) Tools() *tool.Registry { return s.registry }

// Dataset returns the shared dataset provider.
func (s *Service) Dataset() core.DatasetProvider { return s.opts.Dataset }

// NewContext resolves the caller's session and returns a context facade
// bound to it. Pass core.WithFreshSession or core.WithSessionID to steer
// session resolution.
func (s *Service) NewContext(ctx context.Context, ownerID string, optFns ...func(*core.ContextOptions)) (*core.Context, error) {
	if s.opts.HistoryLimit > 0 {
		optFns = append([]func(*core.ContextOptions){func(o *core.ContextOptions) {
			o.HistoryLimit = s.opts.HistoryLimit
		}}, optFns...)
	}
	return core.NewContext(ctx, ownerID, core.ContextConfig{
		Sessions:  s.opts.SessionStore,
		Memory:    s.opts.MemoryStore,
		Artifacts: s.opts.ArtifactStore,
		Dataset:   s.opts.Dataset,
		Logger:    s.opts.Logger,
	}, optFns...)
}

// Execute resolves the caller's session, runs the named tool and records the
// call as a turn in the session's history. It is the one-shot path most
// agent frontends use.
func (s *Service) Execute(ctx context.Context, ownerID, toolName string, args map[string]any, optFns ...func(*core.ContextOptions)) (any, error) {
	c, err := s.NewContext(ctx, ownerID, optFns...)
	if err != nil {
		return nil, err
	}
	return s.registry.Execute(c, toolName, args)
}
