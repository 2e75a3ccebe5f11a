package testutil

import (
	"sync"
	"time"

	"github.com/hupe1980/condormesh/core"
)

// JobRow builds a queue row the way the scheduler fetcher emits them:
// lowercased ClassAd attribute names plus the data_source annotation.
func JobRow(clusterID int, owner string, status int) core.Row {
	return core.Row{
		"clusterid":   float64(clusterID),
		"procid":      float64(0),
		"owner":       owner,
		"jobstatus":   float64(status),
		"data_source": "current_queue",
	}
}

// HistoryRow builds a historical row with the given completion status.
func HistoryRow(clusterID int, owner string, status int) core.Row {
	row := JobRow(clusterID, owner, status)
	row["data_source"] = "history"
	return row
}

// Clock is a manually advanced clock for cache TTL tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at the given instant.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the current fake instant. Pass as the cache's Now func.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
