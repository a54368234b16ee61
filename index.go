// Package annoydb is an on-disk approximate-nearest-neighbor index: a
// forest of random-projection binary trees persisted inside a
// transactional embedded key/value store, queried by a best-first
// priority-queue traversal. It is a Go-native rework of the on-disk
// layout and build algorithm in ptondereau/arroy, generalized behind a
// pluggable Distance metric and an ordered key/value store contract any
// embedded engine with cursor-based iteration could satisfy.
//
// Grounded on the Writer/Reader façade in original_source/src/writer.rs
// and the Database/Collection split in
// xDarkicex-libravdb/libravdb/database.go.
package annoydb

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/xDarkicex/annoydb/internal/builder"
	"github.com/xDarkicex/annoydb/internal/distance"
	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/obs"
	"github.com/xDarkicex/annoydb/internal/search"
	"github.com/xDarkicex/annoydb/internal/store"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// SearchResult is one ranked neighbor returned by a query.
type SearchResult struct {
	ItemID   uint32
	Distance float32
}

// Index is the top-level façade: prepare a dimensionality, add and
// remove items, build the forest, then query it. One Index owns one
// bucket of one storage file and serializes writers against readers with
// an in-process mutex; the store itself additionally serializes writers
// at the file level (bbolt allows only one writer transaction at a
// time), so Index.mu chiefly protects the in-memory roots/dimensions
// cache from torn reads during Prepare/Build/Clear.
type Index struct {
	mu sync.RWMutex

	store   *store.Store
	indexID uint16
	metric  distance.Metric

	maxDescendants int
	nTrees         int
	searchK        int
	seed           int64

	metrics *obs.Metrics

	dimensions uint32
	roots      []uint32
	ready      bool
}

// Open opens (creating if necessary) the storage file named by
// WithStoragePath and binds an Index to the bucket named by
// WithIndexID. If that bucket already holds a built forest, Open loads
// its dimensions and roots immediately; Prepare/Build are only needed to
// start or redo a build.
func Open(opts ...Option) (*Index, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.path == "" {
		return nil, fmt.Errorf("annoydb: Open: %w: WithStoragePath is required", ErrStorage)
	}

	st, err := store.Open(cfg.path)
	if err != nil {
		return nil, fmt.Errorf("annoydb: Open: %w: %v", ErrStorage, err)
	}

	idx := &Index{
		store:          st,
		indexID:        cfg.indexID,
		metric:         cfg.metric,
		maxDescendants: cfg.maxDescendants,
		nTrees:         cfg.nTrees,
		searchK:        cfg.searchK,
		seed:           cfg.seed,
	}
	if cfg.registerer != nil {
		idx.metrics = obs.NewMetrics(cfg.registerer)
	}

	var meta *node.Metadata
	err = st.View(cfg.indexID, func(tx *store.ReadTx) error {
		val, ok := tx.Get(store.MetadataKey)
		if !ok {
			return nil
		}
		m, err := node.DecodeMetadata(val)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("annoydb: Open: %w", err)
	}
	if meta != nil {
		idx.dimensions = meta.Dimensions
		idx.roots = meta.Roots
		idx.ready = true
	}
	return idx, nil
}

// Close releases the underlying storage file.
func (idx *Index) Close() error {
	return idx.store.Close()
}

func (idx *Index) rng() *rand.Rand {
	return rand.New(rand.NewSource(idx.seed))
}

func (idx *Index) effectiveMaxDescendants() int {
	if idx.maxDescendants > 0 {
		return idx.maxDescendants
	}
	return int(idx.dimensions) + 2
}

// Prepare purges any previously built forest from this index's bucket
// and fixes the vector dimensionality every subsequent AddItem must
// match, per spec invariant 6: a fresh build cycle starts from a tree-
// node-free bucket even if items from a prior cycle remain.
//
// Grounded on Writer::prepare in original_source/src/writer.rs.
func (idx *Index) Prepare(dimensions uint32) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	b := builder.New(idx.metric, 0, idx.rng())
	if err := idx.store.Update(idx.indexID, func(tx *store.WriteTx) error {
		return b.ClearTreeNodes(tx)
	}); err != nil {
		return fmt.Errorf("annoydb: Prepare: %w", err)
	}

	idx.dimensions = dimensions
	idx.roots = nil
	idx.ready = false
	return nil
}

// AddItem stores (or overwrites) the vector for itemID. vector's length
// must equal the dimensionality fixed by Prepare.
//
// Grounded on Writer::add_item in original_source/src/writer.rs.
func (idx *Index) AddItem(itemID uint32, vector []float32) error {
	idx.mu.RLock()
	dims := idx.dimensions
	idx.mu.RUnlock()

	if uint32(len(vector)) != dims {
		return fmt.Errorf("annoydb: AddItem: %w: want %d dimensions, got %d", ErrDimensionMismatch, dims, len(vector))
	}

	raw := vecview.FromFloat32(vector)
	stored := idx.metric.Preprocess(raw)
	header := idx.metric.NewHeader(raw)
	payload, err := node.Encode(&node.Node{Kind: node.KindLeaf, Leaf: &node.Leaf{Header: header, Vector: stored}})
	if err != nil {
		return fmt.Errorf("annoydb: AddItem: %w", err)
	}

	if err := idx.store.Update(idx.indexID, func(tx *store.WriteTx) error {
		return tx.Put(itemID, payload)
	}); err != nil {
		return fmt.Errorf("annoydb: AddItem: %w: %v", ErrStorage, err)
	}

	if idx.metrics != nil {
		idx.metrics.ItemsAdded.Inc()
	}
	return nil
}

// DelItem removes itemID. It reports ErrItemNotFound if the item was not
// present.
func (idx *Index) DelItem(itemID uint32) error {
	var existed bool
	err := idx.store.Update(idx.indexID, func(tx *store.WriteTx) error {
		var err error
		existed, err = tx.Delete(itemID)
		return err
	})
	if err != nil {
		return fmt.Errorf("annoydb: DelItem: %w: %v", ErrStorage, err)
	}
	if !existed {
		return fmt.Errorf("annoydb: DelItem: %w: item %d", ErrItemNotFound, itemID)
	}
	if idx.metrics != nil {
		idx.metrics.ItemsDeleted.Inc()
	}
	return nil
}

// Clear empties the index's entire bucket — items and forest alike — and
// resets it to the unprepared state.
func (idx *Index) Clear() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.store.Update(idx.indexID, func(tx *store.WriteTx) error {
		return tx.Clear()
	}); err != nil {
		return fmt.Errorf("annoydb: Clear: %w: %v", ErrStorage, err)
	}
	idx.dimensions = 0
	idx.roots = nil
	idx.ready = false
	return nil
}

// Build grows the forest over every item currently stored and commits
// its Metadata record. Build may only run once per Prepare cycle; a
// second call without an intervening Prepare returns
// ErrMetadataAlreadyPresent.
//
// Grounded on Writer::build in original_source/src/writer.rs.
func (idx *Index) Build() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dimensions == 0 {
		return fmt.Errorf("annoydb: Build: %w", ErrMetadataMissing)
	}

	if idx.metrics != nil {
		idx.metrics.BuildsStarted.Inc()
	}
	start := time.Now()

	b := builder.New(idx.metric, idx.effectiveMaxDescendants(), idx.rng())
	var roots []uint32
	err := idx.store.Update(idx.indexID, func(tx *store.WriteTx) error {
		r, err := b.Build(tx, idx.dimensions, idx.nTrees)
		if err != nil {
			return err
		}
		roots = r
		return nil
	})

	if idx.metrics != nil {
		idx.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if idx.metrics != nil {
			idx.metrics.BuildErrors.Inc()
		}
		return fmt.Errorf("annoydb: Build: %w", err)
	}

	idx.roots = roots
	idx.ready = true
	return nil
}

// ItemVector returns the best-effort float32 reconstruction of the
// vector stored for itemID.
func (idx *Index) ItemVector(itemID uint32) ([]float32, error) {
	var out []float32
	err := idx.store.View(idx.indexID, func(tx *store.ReadTx) error {
		val, ok := tx.Get(itemID)
		if !ok {
			return nil
		}
		n, err := node.Decode(val, idx.metric.HeaderLen())
		if err != nil {
			return err
		}
		leaf, ok := n.AsLeaf()
		if !ok {
			return fmt.Errorf("annoydb: ItemVector: %w: item %d", ErrDecode, itemID)
		}
		reconstructed := idx.metric.Reconstruct(leaf.Vector)
		if uint32(len(reconstructed)) > idx.dimensions {
			reconstructed = reconstructed[:idx.dimensions]
		}
		out = reconstructed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("annoydb: ItemVector: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("annoydb: ItemVector: %w: item %d", ErrItemNotFound, itemID)
	}
	return out, nil
}

// NnsByVector returns the k nearest items to query. searchK, when >= 0,
// overrides the index's configured traversal budget for this call only;
// pass a negative value to use the configured default.
//
// Grounded on Reader::nns_by_vector (original_source) and the
// getAllNns traversal in
// other_examples/9c938035_AlisaLC-annoy-go__annoy.go.go.
func (idx *Index) NnsByVector(query []float32, k int, searchK int) ([]SearchResult, error) {
	idx.mu.RLock()
	dims, roots, ready := idx.dimensions, idx.roots, idx.ready
	idx.mu.RUnlock()

	if !ready {
		return nil, fmt.Errorf("annoydb: NnsByVector: %w", ErrMetadataMissing)
	}
	if uint32(len(query)) != dims {
		return nil, fmt.Errorf("annoydb: NnsByVector: %w: want %d dimensions, got %d", ErrDimensionMismatch, dims, len(query))
	}

	budget := searchK
	if budget < 0 {
		budget = idx.searchK
	}

	qv := vecview.FromFloat32(query)
	var results []SearchResult
	start := time.Now()
	err := idx.store.View(idx.indexID, func(tx *store.ReadTx) error {
		hits, visited, err := search.Query(tx, idx.metric, roots, qv, k, budget, idx.rng())
		if err != nil {
			return err
		}
		if idx.metrics != nil {
			idx.metrics.NodesVisited.Observe(float64(visited))
		}
		results = make([]SearchResult, len(hits))
		for i, h := range hits {
			results[i] = SearchResult{ItemID: h.ItemID, Distance: h.Distance}
		}
		return nil
	})
	if idx.metrics != nil {
		idx.metrics.SearchDuration.Observe(time.Since(start).Seconds())
		idx.metrics.SearchQueries.Inc()
	}
	if err != nil {
		if idx.metrics != nil {
			idx.metrics.SearchErrors.Inc()
		}
		return nil, fmt.Errorf("annoydb: NnsByVector: %w", err)
	}
	return results, nil
}

// NnsByItem is NnsByVector seeded from an item already in the index
// instead of a caller-supplied vector.
func (idx *Index) NnsByItem(itemID uint32, k int, searchK int) ([]SearchResult, error) {
	vec, err := idx.ItemVector(itemID)
	if err != nil {
		return nil, fmt.Errorf("annoydb: NnsByItem: %w", err)
	}
	return idx.NnsByVector(vec, k, searchK)
}
