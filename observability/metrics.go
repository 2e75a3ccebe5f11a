// Package observability groups the Prometheus instruments exposed by
// CondorMesh. All instruments are optional: a nil *Metrics is safe to call,
// so library users who do not scrape metrics pay nothing for the hooks.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the module.
type Metrics struct {
	DatasetRefreshes *prometheus.CounterVec
	DatasetServes    *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	TurnsAppended    prometheus.Counter
	ToolCalls        *prometheus.CounterVec
}

// NewMetrics registers the instruments on the default registerer under the
// given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		DatasetRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_refreshes_total",
			Help:      "Dataset refresh attempts by result (ok, error).",
		}, []string{"result"}),
		DatasetServes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_serves_total",
			Help:      "Dataset reads by freshness (fresh, refreshed, stale).",
		}, []string{"freshness"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dataset_refresh_seconds",
			Help:      "Duration of external record fetches in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		TurnsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_appended_total",
			Help:      "Conversation turns appended across all sessions.",
		}),
		ToolCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool name and status.",
		}, []string{"tool", "status"}),
	}
}

// CountDatasetRefresh records one refresh attempt outcome.
func (m *Metrics) CountDatasetRefresh(result string) {
	if m == nil {
		return
	}
	m.DatasetRefreshes.WithLabelValues(result).Inc()
}

// CountDatasetServe records one dataset read by freshness.
func (m *Metrics) CountDatasetServe(freshness string) {
	if m == nil {
		return
	}
	m.DatasetServes.WithLabelValues(freshness).Inc()
}

// ObserveRefreshDuration records the duration of one external fetch.
func (m *Metrics) ObserveRefreshDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(d.Seconds())
}

// CountTurn records one appended conversation turn.
func (m *Metrics) CountTurn() {
	if m == nil {
		return
	}
	m.TurnsAppended.Inc()
}

// CountToolCall records one tool invocation outcome.
func (m *Metrics) CountToolCall(tool, status string) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}

// Handler returns an http.Handler serving the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
