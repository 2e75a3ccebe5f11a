package core

import (
	"context"
	"time"
)

// Row is one opaque record from the external scheduler. The attribute schema
// is owned by the collaborator (lowercase HTCondor ClassAd names in
// practice); this module never interprets it beyond pass-through filtering.
type Row map[string]any

// DatasetProvider serves the latest feasible snapshot of externally sourced
// records. Implementations guarantee single-flight refresh: N concurrent
// callers requesting a refresh at the same moment result in exactly one
// fetch, and all N receive that fetch's result.
//
// Staleness: a snapshot older than maxStaleness (or the provider's own TTL
// when maxStaleness <= 0) triggers a refresh. Stale data is still served
// when a refresh fails and a prior snapshot exists, rather than blocking
// indefinitely or returning empty.
//
// Cancellation: if ctx expires while blocked on another caller's in-flight
// refresh, the caller receives ErrTimeout; the refresh itself continues and
// still updates the snapshot for future callers.
type DatasetProvider interface {
	Get(ctx context.Context, maxStaleness time.Duration) ([]Row, time.Time, error)
	Refresh(ctx context.Context) ([]Row, time.Time, error)
	Invalidate()
}
