// Package itemview provides read-only, random-access views over a
// snapshot of item leaves, indexed by a compressed bitmap of the item ids
// present. The tree builder takes one View at the start of a build (while
// the index's bucket holds nothing but item leaves) and recurses through
// Subsets of it; a View must never be retained past the transaction it
// was built from, since its leaves are copied out of that transaction's
// pages once and never refreshed.
//
// Grounded on ImmutableLeafs / ImmutableSubsetLeafs in
// original_source/src/parallel.rs, which hold the same leaves behind a
// roaring::RoaringBitmap and raw pointers into a memory-mapped read
// transaction; this port copies leaf bytes out instead of borrowing raw
// pointers; see DESIGN.md for why the copy is the Go-appropriate
// alternative to arroy's unsafe, transaction-scoped pointer aliasing.
package itemview

import (
	"fmt"
	"math/rand"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// txReader is the slice of store.WriteTx / store.ReadTx that Build needs:
// an ordered full-bucket walk.
type txReader interface {
	ForEach(fn func(key uint32, val []byte) (more bool, err error)) error
}

type ownedLeaf struct {
	header []byte
	vector []byte
}

// View is a snapshot of every item leaf present in an index's bucket at
// the moment Build ran, ranked by item id for O(1) lookup via the bitmap.
type View struct {
	ids    *roaring.Bitmap
	leaves []ownedLeaf
}

// Build walks tx in full and copies out every leaf record it finds. It
// must be called before any internal (split/descendants) nodes exist in
// the bucket, since it has no way to tell a leaf from another node kind
// other than by trying to decode one.
func Build(tx txReader, headerLen int) (*View, error) {
	ids := roaring.New()
	var leaves []ownedLeaf

	err := tx.ForEach(func(key uint32, val []byte) (bool, error) {
		n, err := node.Decode(val, headerLen)
		if err != nil {
			return false, fmt.Errorf("itemview: decode item %d: %w", key, err)
		}
		leaf, ok := n.AsLeaf()
		if !ok {
			return false, fmt.Errorf("itemview: key %d is not a leaf", key)
		}
		ids.Add(key)
		leaves = append(leaves, ownedLeaf{
			header: append([]byte(nil), leaf.Header...),
			vector: append([]byte(nil), leaf.Vector.Bytes()...),
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &View{ids: ids, leaves: leaves}, nil
}

// Len reports how many items the view holds.
func (v *View) Len() int {
	return len(v.leaves)
}

// Ids returns the bitmap of every item id in the view. Callers must treat
// it as read-only.
func (v *View) Ids() *roaring.Bitmap {
	return v.ids
}

// Get returns the leaf stored for itemID, or ok=false if it is not part
// of this view.
func (v *View) Get(itemID uint32) (node.Leaf, bool) {
	if !v.ids.Contains(itemID) {
		return node.Leaf{}, false
	}
	rank := v.ids.Rank(itemID)
	l := v.leaves[rank-1]
	vec, err := vecview.FromBytes(l.vector)
	if err != nil {
		return node.Leaf{}, false
	}
	return node.Leaf{Header: l.header, Vector: vec}, true
}

// FullSubset returns a Subset over every item id in the view, the
// starting point for building the first level of a tree.
func (v *View) FullSubset() *Subset {
	return &Subset{view: v, ids: v.ids.Clone()}
}

// Subset builds a Subset over exactly the given ids, which must already
// be members of v.
func (v *View) Subset(ids *roaring.Bitmap) *Subset {
	return &Subset{view: v, ids: ids}
}

// Subset is a restriction of a View to some of its item ids: the set of
// items that landed on one side of a split, passed down through
// recursive tree construction.
type Subset struct {
	view *View
	ids  *roaring.Bitmap
}

// Len reports the number of items in the subset.
func (s *Subset) Len() int {
	return int(s.ids.GetCardinality())
}

// Ids returns every item id in the subset, in ascending order.
func (s *Subset) Ids() []uint32 {
	return s.ids.ToArray()
}

// Leaves gathers every leaf in the subset, in item-id order.
func (s *Subset) Leaves() []node.Leaf {
	out := make([]node.Leaf, 0, s.Len())
	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		leaf, ok := s.view.Get(id)
		if !ok {
			continue
		}
		out = append(out, leaf)
	}
	return out
}

// Get looks up one item's leaf within the subset's backing view.
func (s *Subset) Get(itemID uint32) (node.Leaf, bool) {
	return s.view.Get(itemID)
}

// ChooseTwo draws two distinct item ids uniformly at random from the
// subset, the seed step of two-means clustering.
//
// Grounded on ImmutableSubsetLeafs::choose_two in
// original_source/src/parallel.rs.
func (s *Subset) ChooseTwo(rng *rand.Rand) (idA, idB uint32) {
	ids := s.ids.ToArray()
	i := rng.Intn(len(ids))
	j := rng.Intn(len(ids) - 1)
	if j >= i {
		j++
	}
	return ids[i], ids[j]
}

// Choose draws one item id uniformly at random from the subset.
func (s *Subset) Choose(rng *rand.Rand) uint32 {
	ids := s.ids.ToArray()
	return ids[rng.Intn(len(ids))]
}

// Partition splits the subset's ids into two new Subsets according to
// side, which classifies each item id as belonging to the left or right
// half of a plane. Used by the tree builder after it computes a split.
func (s *Subset) Partition(side func(itemID uint32) bool) (left, right *Subset) {
	leftIDs := roaring.New()
	rightIDs := roaring.New()
	it := s.ids.Iterator()
	for it.HasNext() {
		id := it.Next()
		if side(id) {
			leftIDs.Add(id)
		} else {
			rightIDs.Add(id)
		}
	}
	return &Subset{view: s.view, ids: leftIDs}, &Subset{view: s.view, ids: rightIDs}
}
