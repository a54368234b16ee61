// Package builder constructs the random-projection forest: a sequence of
// independent binary trees over the same item set, each built by
// recursively splitting its subset of items with a metric-supplied
// hyperplane until a subtree is small enough to store as a flat
// Descendants bucket.
//
// Grounded on Writer::build and the recursive make_tree in
// original_source/src/writer.rs.
package builder

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/distance"
	"github.com/xDarkicex/annoydb/internal/itemview"
	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/store"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Split attempts before accepting whatever imbalance resulted. This
// mirrors remaining_attempts starting at 3 in writer.rs::make_tree,
// i.e. up to 4 total tries.
const maxSplitAttempts = 3

// acceptImbalance is the threshold under which a split is accepted
// immediately; forceRandomImbalance is the threshold above which the
// builder gives up on a plane entirely and assigns random sides instead.
// Both values, and the gap between them, are carried over verbatim from
// writer.rs rather than re-derived (spec.md §9 leaves the gap unexplained
// and asks implementations to preserve the original constants).
const (
	acceptImbalance      = 0.95
	forceRandomImbalance = 0.99
)

// ErrNoItems is returned when Build is asked to construct a forest over
// an empty item set.
var ErrNoItems = errors.New("builder: no items to build a tree over")

// ErrMetadataAlreadyPresent is returned when the reserved metadata key is
// already occupied; build must run at most once per prepare/clear cycle.
var ErrMetadataAlreadyPresent = errors.New("builder: metadata already present")

// Builder owns everything needed to grow a forest: which metric shapes
// each split, how many items a Descendants node may hold before it must
// split further, and the PRNG driving every random choice (two-means
// seeding, forced-random splits, tie-breaking).
type Builder struct {
	Metric         distance.Metric
	MaxDescendants int
	Rng            *rand.Rand
}

// New returns a Builder ready to grow trees under metric.
func New(metric distance.Metric, maxDescendants int, rng *rand.Rand) *Builder {
	return &Builder{Metric: metric, MaxDescendants: maxDescendants, Rng: rng}
}

// ClearTreeNodes deletes the metadata record and every internal
// (non-leaf) node from tx's bucket, walking backward from the highest
// key until it reaches a leaf. Node ids are allocated in increasing
// order above the highest item id, so every internal node sorts above
// every leaf; the first leaf the reverse walk meets means the purge is
// done.
//
// Grounded on clear_tree_nodes in original_source/src/writer.rs.
func (b *Builder) ClearTreeNodes(tx *store.WriteTx) error {
	if _, err := tx.Delete(store.MetadataKey); err != nil {
		return fmt.Errorf("builder: clear metadata: %w", err)
	}
	headerLen := b.Metric.HeaderLen()
	return tx.ForEachReverse(func(key uint32, val []byte) (bool, error) {
		n, err := node.Decode(val, headerLen)
		if err != nil {
			return false, fmt.Errorf("builder: clear tree nodes: decode %d: %w", key, err)
		}
		if n.Kind == node.KindLeaf {
			return false, nil
		}
		if err := tx.DeleteAt(key); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Build grows nTrees independent trees over every item currently in tx
// and writes the resulting Metadata record. nTrees <= 0 means "grow trees
// until the forest holds at least twice as many nodes as there are
// items", the auto-sizing heuristic writer.rs falls back to when the
// caller did not pin a tree count. Build expects tx's bucket to already
// hold nothing but item leaves; callers run ClearTreeNodes during
// prepare, not here, so that add_item/del_item calls between prepare and
// build are not silently undone.
func (b *Builder) Build(tx *store.WriteTx, dimensions uint32, nTrees int) ([]uint32, error) {
	if _, exists := tx.Get(store.MetadataKey); exists {
		return nil, ErrMetadataAlreadyPresent
	}
	view, err := itemview.Build(tx, b.Metric.HeaderLen())
	if err != nil {
		return nil, err
	}
	if view.Len() == 0 {
		return nil, ErrNoItems
	}

	lastItemID, _ := tx.LastKey()
	nextID := lastItemID + 1

	maxNodes := 2 * view.Len()
	var roots []uint32
	nodesWritten := 0
	for nTrees <= 0 || len(roots) < nTrees {
		rootID, count, err := b.makeTree(tx, &nextID, view.FullSubset(), view.Len(), true)
		if err != nil {
			return nil, err
		}
		roots = append(roots, rootID)
		nodesWritten += count
		if nTrees <= 0 && nodesWritten >= maxNodes {
			break
		}
	}

	meta := &node.Metadata{Dimensions: dimensions, Roots: roots}
	if err := tx.Put(store.MetadataKey, node.EncodeMetadata(meta)); err != nil {
		return nil, fmt.Errorf("builder: write metadata: %w", err)
	}
	return roots, nil
}

// makeTree recursively grows one subtree over subset and returns the id
// of the node it allocated for it (or, for a singleton non-root subset,
// the item id itself standing in for its own leaf) plus the number of
// internal nodes it wrote.
func (b *Builder) makeTree(tx *store.WriteTx, nextID *uint32, subset *itemview.Subset, totalItems int, isRoot bool) (uint32, int, error) {
	if subset.Len() == 1 && !isRoot {
		return subset.Ids()[0], 0, nil
	}

	if subset.Len() <= b.MaxDescendants && (!isRoot || totalItems <= b.MaxDescendants || subset.Len() == 1) {
		id := *nextID
		*nextID++
		payload, err := node.Encode(&node.Node{
			Kind:        node.KindDescendants,
			Descendants: &node.Descendants{Items: subset.Ids()},
		})
		if err != nil {
			return 0, 0, err
		}
		if err := tx.Put(id, payload); err != nil {
			return 0, 0, err
		}
		return id, 1, nil
	}

	children := subset.Leaves()

	var normal vecview.View
	var left, right *itemview.Subset
	attempts := 0
	for {
		var err error
		normal, err = b.Metric.CreateSplit(children, b.Rng)
		if err != nil {
			return 0, 0, fmt.Errorf("builder: create split: %w", err)
		}
		left, right = subset.Partition(func(itemID uint32) bool {
			leaf, _ := subset.Get(itemID)
			return b.Metric.Side(normal, leaf.Vector, b.Rng) == distance.Left
		})
		imbalance := distance.SplitImbalance(left.Len(), right.Len())
		if imbalance < acceptImbalance || attempts >= maxSplitAttempts {
			break
		}
		attempts++
	}

	for {
		imbalance := distance.SplitImbalance(left.Len(), right.Len())
		if imbalance <= forceRandomImbalance {
			break
		}
		normal = vecview.FromFloat32(make([]float32, normal.Len()))
		left, right = subset.Partition(func(uint32) bool {
			return b.Rng.Intn(2) == 0
		})
	}

	leftID, leftCount, err := b.makeTree(tx, nextID, left, totalItems, false)
	if err != nil {
		return 0, 0, err
	}
	rightID, rightCount, err := b.makeTree(tx, nextID, right, totalItems, false)
	if err != nil {
		return 0, 0, err
	}

	id := *nextID
	*nextID++
	payload, err := node.Encode(&node.Node{
		Kind: node.KindSplitPlaneNormal,
		Split: &node.SplitPlaneNormal{
			Normal: normal,
			Left:   leftID,
			Right:  rightID,
		},
	})
	if err != nil {
		return 0, 0, err
	}
	if err := tx.Put(id, payload); err != nil {
		return 0, 0, err
	}
	return id, 1 + leftCount + rightCount, nil
}
