// Package dataset implements the shared snapshot cache over the HTCondor
// job records. The cache shields the slow, rate-limited scheduler queries
// from concurrent tool invocations: a refresh-on-demand policy plus
// single-flight collapsing bounds load to one fetch per TTL window
// regardless of traffic. Construct a Cache explicitly with an injected
// fetch function and clock; it is never a hidden module-level singleton,
// which keeps it testable with fake clocks and fake fetchers.
package dataset
