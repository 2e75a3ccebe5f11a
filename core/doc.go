// Package core provides the foundational domain types, interfaces and the
// per-call execution context used by CondorMesh. It defines the core
// abstractions for:
//
//   - Sessions (persistent conversational containers with an append-only
//     turn history)
//   - Scoped memory (per-user / global key-value facts with substring recall)
//   - Artifacts (named blobs scoped to a user or session)
//   - Dataset snapshots (cached rows sourced from the HTCondor scheduler)
//   - Context (the scoped facade handed to every tool invocation)
//
// The package intentionally keeps implementation concerns (persistence, the
// cache refresh machinery, the condor_q adapter) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
