// Package search implements the best-first nearest-neighbor query engine:
// a priority queue seeded with every tree root, expanded node by node in
// order of an optimistic distance bound until enough candidate items have
// been gathered, then re-ranked by the metric's exact distance.
//
// Grounded on the traversal loop in the Annoy port
// (other_examples/9c938035_AlisaLC-annoy-go__annoy.go.go, function
// getAllNns) and the heap-of-candidates style of the teacher's
// internal/util/heap.go (MinHeap over container/heap).
package search

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/xDarkicex/annoydb/internal/distance"
	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/store"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Result is one ranked neighbor.
type Result struct {
	ItemID   uint32
	Distance float32
}

// pqEntry is a pending node in the traversal, ordered so that the
// smallest priority (most promising optimistic bound) pops first.
type pqEntry struct {
	nodeID   uint32
	priority float32
}

type priorityQueue []pqEntry

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].priority < q[j].priority }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(pqEntry)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// DefaultSearchK picks the traversal budget writer.rs's reader leaves to
// caller judgement for: k results per requested root, times the number
// of trees, times a small safety factor so that a handful of unlucky
// trees don't starve the candidate set.
func DefaultSearchK(k, nTrees int) int {
	return k * nTrees * 2
}

// Query performs a best-first traversal of the forest rooted at roots,
// gathering candidate items until searchK distinct candidates have been
// collected (or the queue drains), then re-ranks every candidate by the
// metric's exact distance and returns the closest k. The int it returns
// is the number of nodes visited.
//
// searchK < 0 requests DefaultSearchK's heuristic; searchK == 0 is a
// legitimate (if useless) request that visits no nodes and so returns no
// results — both edge cases are load-bearing, not implementation slop
// (see original_source/src/tests/reader.rs's search_k=Some(0) case).
func Query(tx *store.ReadTx, metric distance.Metric, roots []uint32, query vecview.View, k int, searchK int, rng *rand.Rand) ([]Result, int, error) {
	if searchK < 0 {
		searchK = DefaultSearchK(k, len(roots))
	}

	headerLen := metric.HeaderLen()
	preprocessed := metric.Preprocess(query)
	pq := &priorityQueue{}
	heap.Init(pq)
	for _, root := range roots {
		heap.Push(pq, pqEntry{nodeID: root, priority: float32(math.Inf(-1))})
	}

	candidates := make(map[uint32]struct{})
	nodesChecked := 0
	for pq.Len() > 0 && len(candidates) < searchK {
		top := heap.Pop(pq).(pqEntry)

		val, ok := tx.Get(top.nodeID)
		if !ok {
			continue
		}
		n, err := node.Decode(val, headerLen)
		if err != nil {
			return nil, nodesChecked, fmt.Errorf("search: decode node %d: %w", top.nodeID, err)
		}

		switch n.Kind {
		case node.KindLeaf:
			candidates[top.nodeID] = struct{}{}
			nodesChecked++
		case node.KindDescendants:
			for _, id := range n.Descendants.Items {
				candidates[id] = struct{}{}
			}
			nodesChecked++
		case node.KindSplitPlaneNormal:
			margin := metric.Margin(n.Split.Normal, preprocessed)
			heap.Push(pq, pqEntry{
				nodeID:   n.Split.Left,
				priority: maxF(top.priority, metric.PQDistance(margin, distance.Left)),
			})
			heap.Push(pq, pqEntry{
				nodeID:   n.Split.Right,
				priority: maxF(top.priority, metric.PQDistance(margin, distance.Right)),
			})
			nodesChecked++
		}
	}

	results := make([]Result, 0, len(candidates))
	for id := range candidates {
		val, ok := tx.Get(id)
		if !ok {
			continue
		}
		n, err := node.Decode(val, headerLen)
		if err != nil {
			return nil, nodesChecked, fmt.Errorf("search: decode candidate %d: %w", id, err)
		}
		leaf, ok := n.AsLeaf()
		if !ok {
			continue
		}
		d := metric.NonBuiltDistance(preprocessed, leaf.Vector)
		results = append(results, Result{
			ItemID:   id,
			Distance: metric.NormalizedDistance(d, leaf.Header),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results, nodesChecked, nil
}
