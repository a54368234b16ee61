package annoydb

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xDarkicex/annoydb/internal/distance"
)

// config holds every Open-time setting, built up by applying a caller's
// Options over sane defaults.
//
// Grounded on the functional-options pattern in
// xDarkicex-libravdb/libravdb/options.go (Option func(*Config) error).
type config struct {
	path           string
	indexID        uint16
	metric         distance.Metric
	maxDescendants int
	nTrees         int
	searchK        int
	seed           int64
	registerer     prometheus.Registerer
}

func defaultConfig() *config {
	return &config{
		metric:         distance.Angular{},
		maxDescendants: 0, // 0 means "derive from dimensions once known"
		nTrees:         0, // 0 means "auto-size to roughly 2x the item count"
		searchK:        -1,
		seed:           42,
	}
}

// Option configures an Index at Open time.
type Option func(*config) error

// WithStoragePath sets the bbolt file the index's data lives in. Required.
func WithStoragePath(path string) Option {
	return func(c *config) error {
		if path == "" {
			return fmt.Errorf("annoydb: WithStoragePath: empty path")
		}
		c.path = path
		return nil
	}
}

// WithIndexID selects which bucket within the storage file this Index
// reads and writes, letting one file back several independent indexes.
func WithIndexID(id uint16) Option {
	return func(c *config) error {
		c.indexID = id
		return nil
	}
}

// WithMetric selects the distance metric by its stable name: "angular",
// "dot_product", "euclidean", "manhattan", or
// "binary_quantized_euclidean".
func WithMetric(name string) Option {
	return func(c *config) error {
		m, err := distance.Lookup(name)
		if err != nil {
			return fmt.Errorf("annoydb: WithMetric: %w", err)
		}
		c.metric = m
		return nil
	}
}

// WithMaxDescendants overrides the per-node item cap a subtree may hold
// before it splits further. Leave unset (or pass <= 0) to derive it from
// the index's dimensionality (dimensions + 2) once Prepare runs, the
// common Annoy-family default.
func WithMaxDescendants(n int) Option {
	return func(c *config) error {
		c.maxDescendants = n
		return nil
	}
}

// WithNTrees pins the number of trees Build grows. n <= 0 (the default)
// auto-sizes the forest to roughly twice the item count.
func WithNTrees(n int) Option {
	return func(c *config) error {
		c.nTrees = n
		return nil
	}
}

// WithSearchK overrides the default traversal budget nns_by_vector and
// nns_by_item use when the caller does not pass an explicit search_k.
// n < 0 restores the default (k * trees * 2).
func WithSearchK(n int) Option {
	return func(c *config) error {
		c.searchK = n
		return nil
	}
}

// WithSeed fixes the PRNG seed driving split construction, making builds
// of the same item set reproducible byte-for-byte.
func WithSeed(seed int64) Option {
	return func(c *config) error {
		c.seed = seed
		return nil
	}
}

// WithMetrics registers Prometheus collectors for this Index against reg.
// Metrics are left disabled (nil) by default.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) error {
		c.registerer = reg
		return nil
	}
}
