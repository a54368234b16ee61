// Package obs holds the Prometheus instrumentation for build and query
// operations.
//
// Grounded on internal/obs/metrics.go in xDarkicex-libravdb, generalized
// from vector-insert/search counters to the forest's own build/query
// operations.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter and histogram annoydb exports.
type Metrics struct {
	ItemsAdded     prometheus.Counter
	ItemsDeleted   prometheus.Counter
	BuildsStarted  prometheus.Counter
	BuildErrors    prometheus.Counter
	BuildDuration  prometheus.Histogram
	SearchQueries  prometheus.Counter
	SearchErrors   prometheus.Counter
	SearchDuration prometheus.Histogram
	NodesVisited   prometheus.Histogram
}

// NewMetrics registers a fresh set of collectors against reg. Passing a
// dedicated *prometheus.Registry (rather than the global one) keeps
// multiple Index instances in the same process from colliding on metric
// names.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ItemsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_items_added_total",
			Help: "Number of items added to the index.",
		}),
		ItemsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_items_deleted_total",
			Help: "Number of items deleted from the index.",
		}),
		BuildsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_builds_total",
			Help: "Number of forest builds started.",
		}),
		BuildErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_build_errors_total",
			Help: "Number of forest builds that failed.",
		}),
		BuildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "annoydb_build_duration_seconds",
			Help:    "Time spent growing the forest in a build call.",
			Buckets: prometheus.DefBuckets,
		}),
		SearchQueries: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_search_queries_total",
			Help: "Number of nearest-neighbor queries served.",
		}),
		SearchErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "annoydb_search_errors_total",
			Help: "Number of nearest-neighbor queries that failed.",
		}),
		SearchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "annoydb_search_duration_seconds",
			Help:    "Time spent answering a nearest-neighbor query.",
			Buckets: prometheus.DefBuckets,
		}),
		NodesVisited: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "annoydb_search_nodes_visited",
			Help:    "Number of tree nodes visited per query.",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000},
		}),
	}
}
