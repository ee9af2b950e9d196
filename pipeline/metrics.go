package pipeline

import (
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsListener is a FilterListener that exports per-filter run counts
// and processing durations as prometheus metrics. It carries the same
// signal as ProfilingListener in a form scrape-based monitoring can
// consume.
type MetricsListener struct {
	clk       clock.Clock
	runs      prometheus.Counter
	durations prometheus.Histogram

	mu        sync.Mutex
	lastStart time.Time
}

// NewMetricsListener returns a listener that registers a run counter and a
// duration histogram for the named filter with reg. A nil reg falls back to
// the default prometheus registerer. Registering two listeners for the same
// filter name on one registerer panics, as duplicate prometheus collectors
// always do.
func NewMetricsListener(filterName string, reg prometheus.Registerer) *MetricsListener {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &MetricsListener{
		clk: clock.WallClock,
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name:        "blpl_filter_runs_total",
			Help:        "The total number of completed runs of the filter.",
			ConstLabels: prometheus.Labels{"filter": filterName},
		}),
		durations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        "blpl_filter_process_duration_seconds",
			Help:        "The wall time spent inside the filter's Process call.",
			ConstLabels: prometheus.Labels{"filter": filterName},
		}),
	}
}

// PreProcess implements FilterListener.
func (l *MetricsListener) PreProcess(any) {
	l.mu.Lock()
	l.lastStart = l.clk.Now()
	l.mu.Unlock()
}

// PostProcess implements FilterListener.
func (l *MetricsListener) PostProcess(any) {
	l.mu.Lock()
	elapsed := l.clk.Now().Sub(l.lastStart)
	l.mu.Unlock()

	l.runs.Inc()
	l.durations.Observe(elapsed.Seconds())
}
