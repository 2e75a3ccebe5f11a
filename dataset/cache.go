package dataset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/logging"
	"github.com/hupe1980/condormesh/observability"
)

// refreshKey is the single singleflight key: the cache holds exactly one
// dataset, so every refresh collapses onto it.
const refreshKey = "refresh"

// FetchFunc retrieves the current external records. It must be idempotent
// and safely retryable; it is invoked at most once per refresh regardless of
// caller concurrency.
type FetchFunc func(ctx context.Context) ([]core.Row, error)

// Config tunes a Cache. Zero values fall back to defaults.
type Config struct {
	// TTL is the validity window of a snapshot. Default 5 minutes,
	// matching the scheduler poll interval the tools were built around.
	TTL time.Duration
	// FetchTimeout bounds a single fetch. A fetch that never returns is
	// treated as a fatal refresh failure once the timeout elapses,
	// releasing all blocked callers with an error. Default 2 minutes.
	FetchTimeout time.Duration
	// Now overrides the clock for tests. Default time.Now.
	Now func() time.Time
	// Logger receives stale-serve warnings and refresh outcomes.
	Logger logging.Logger
	// Metrics, when set, counts refreshes and serve freshness.
	Metrics *observability.Metrics
}

// snapshot pairs rows with the time of the fetch that produced them.
type snapshot struct {
	rows      []core.Row
	fetchedAt time.Time
}

// Cache holds the latest snapshot of external records in memory and
// refreshes it on demand through a supplied fetch function. It implements
// core.DatasetProvider.
//
// Contract:
//   - at most one refresh executes at a time (singleflight)
//   - a failed refresh keeps the last good snapshot; Get serves it stale
//     with a logged warning instead of erroring, and only an empty cache
//     propagates the fetch failure
//   - the fetch runs on a detached context bounded by FetchTimeout, so a
//     caller abandoning its wait never cancels the refresh for others
type Cache struct {
	fetch        FetchFunc
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time
	metrics      *observability.Metrics
	group        singleflight.Group

	mu    sync.RWMutex
	snap  *snapshot
	stale bool // set by Invalidate, cleared by a successful refresh

	logger logging.Logger
}

var _ core.DatasetProvider = (*Cache)(nil)

// NewCache constructs a cache around fetch with optional config overrides.
func NewCache(fetch FetchFunc, optFns ...func(c *Config)) *Cache {
	cfg := Config{
		TTL:          5 * time.Minute,
		FetchTimeout: 2 * time.Minute,
		Now:          time.Now,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}

	return &Cache{
		fetch:        fetch,
		ttl:          cfg.TTL,
		fetchTimeout: cfg.FetchTimeout,
		now:          cfg.Now,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
	}
}

// Get returns the current rows and their fetch time. A snapshot older than
// maxStaleness (cache TTL when maxStaleness <= 0) triggers a refresh; a
// refresh already in progress is joined, not duplicated. When ctx expires
// while waiting, Get returns core.ErrTimeout and the refresh continues for
// future callers.
func (c *Cache) Get(ctx context.Context, maxStaleness time.Duration) ([]core.Row, time.Time, error) {
	if snap, ok := c.fresh(maxStaleness); ok {
		c.metrics.CountDatasetServe("fresh")
		return snap.rows, snap.fetchedAt, nil
	}

	snap, err := c.await(ctx, "dataset.get")
	if err == nil {
		c.metrics.CountDatasetServe("refreshed")
		return snap.rows, snap.fetchedAt, nil
	}

	// Deadline errors always surface; degrading to stale data there would
	// mask the caller's own deadline being exhausted.
	if ctx.Err() != nil {
		return nil, time.Time{}, err
	}

	// Fetch failed: serve the last good snapshot if one exists.
	if prev := c.current(); prev != nil {
		c.logger.Warn("dataset.refresh.failed, serving stale snapshot", "fetched_at", prev.fetchedAt, "error", err)
		c.metrics.CountDatasetServe("stale")
		return prev.rows, prev.fetchedAt, nil
	}

	return nil, time.Time{}, err
}

// Refresh forces an unconditional refresh with the same single-flight
// guarantee. Unlike Get it propagates fetch failures to its caller even
// when a prior snapshot exists.
func (c *Cache) Refresh(ctx context.Context) ([]core.Row, time.Time, error) {
	snap, err := c.await(ctx, "dataset.refresh")
	if err != nil {
		return nil, time.Time{}, err
	}
	return snap.rows, snap.fetchedAt, nil
}

// Invalidate marks the snapshot stale without clearing it: the next Get
// triggers a refresh, while a concurrent reader joining an in-flight
// refresh still receives data rather than an empty result.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// FetchedAt returns the time of the last successful fetch (zero when the
// cache was never populated).
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return time.Time{}
	}
	return c.snap.fetchedAt
}

// fresh returns the snapshot when it exists, was not invalidated and is
// younger than the effective staleness bound.
func (c *Cache) fresh(maxStaleness time.Duration) (*snapshot, bool) {
	if maxStaleness <= 0 {
		maxStaleness = c.ttl
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.snap == nil || c.stale {
		return nil, false
	}
	if c.now().Sub(c.snap.fetchedAt) > maxStaleness {
		return nil, false
	}
	return c.snap, true
}

func (c *Cache) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// await joins (or starts) the single in-flight refresh and waits for it or
// for the caller's deadline, whichever comes first.
func (c *Cache) await(ctx context.Context, op string) (*snapshot, error) {
	ch := c.group.DoChan(refreshKey, c.doFetch)

	select {
	case <-ctx.Done():
		return nil, core.TimeoutError(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot), nil
	}
}

// doFetch runs one fetch on a context detached from any caller, bounded by
// the configured fetch timeout, and installs the result on success.
func (c *Cache) doFetch() (any, error) {
	ctx := context.Background()
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	if c.fetch == nil {
		return nil, core.SourceError(fmt.Errorf("no fetch function configured"))
	}

	start := time.Now()
	rows, err := c.fetch(ctx)
	c.metrics.ObserveRefreshDuration(time.Since(start))
	if err != nil {
		c.metrics.CountDatasetRefresh("error")
		c.logger.Warn("dataset.fetch.failed", "duration", time.Since(start), "error", err)
		return nil, core.SourceError(err)
	}

	snap := &snapshot{rows: rows, fetchedAt: c.now()}

	c.mu.Lock()
	c.snap = snap
	c.stale = false
	c.mu.Unlock()

	c.metrics.CountDatasetRefresh("ok")
	c.logger.Info("dataset.fetch.completed", "rows", len(rows), "duration", time.Since(start))

	return snap, nil
}
