// Package logging provides a minimal logging interface and adapters for CondorMesh.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the stores, cache and tool layer use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - CondorMeshLogger with contextual helpers (session, owner, component)
//     and domain helpers for tool calls and dataset fetches
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	svc := condormesh.New(func(o *condormesh.Options) { o.Logger = logger })
//
// The design intentionally keeps the interface minimal to avoid vendor lock-in
// while supporting structured logging where available.
package logging
