package distance

import (
	"math"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// twoMeansIterations mirrors ITERATION_STEPS in
// original_source/src/distance/mod.rs.
const twoMeansIterations = 200

// twoMeans runs a lightweight, single-pass-per-step k-means(k=2) over
// children's vectors and returns two weighted centroids. When cosine is
// true each centroid is kept unit-norm between iterations (used by
// Angular); DotProduct, Euclidean, Manhattan and Binary-Quantized
// Euclidean pass cosine=false and work with plain running sums.
//
// Grounded on the free function two_means<D, R> in
// original_source/src/distance/mod.rs, including its skip-on-degenerate-
// norm guard: a candidate vector whose norm is NaN or non-positive is
// dropped from consideration for that iteration rather than corrupting a
// centroid.
func twoMeans(metric Metric, rng *rand.Rand, children []node.Leaf, cosine bool) (p, q vecview.View, err error) {
	n := len(children)
	i, j := chooseTwo(rng, n)

	pv := children[i].Vector.ToFloat32()
	qv := children[j].Vector.ToFloat32()
	var icount, jcount float32 = 1, 1

	if cosine {
		normalizeInPlace(pv)
		normalizeInPlace(qv)
	}

	for step := 0; step < twoMeansIterations; step++ {
		k := children[rng.Intn(n)].Vector

		norm := metric.Norm(k)
		if math.IsNaN(float64(norm)) || norm <= 0 {
			continue
		}

		di := metric.NonBuiltDistance(vecview.FromFloat32(pv), k)
		dj := metric.NonBuiltDistance(vecview.FromFloat32(qv), k)

		if di < dj {
			updateMean(pv, k.ToFloat32(), icount)
			icount++
			if cosine {
				normalizeInPlace(pv)
			}
		} else {
			updateMean(qv, k.ToFloat32(), jcount)
			jcount++
			if cosine {
				normalizeInPlace(qv)
			}
		}
	}

	return vecview.FromFloat32(pv), vecview.FromFloat32(qv), nil
}

// chooseTwo picks two distinct indices in [0, n).
func chooseTwo(rng *rand.Rand, n int) (int, int) {
	i := rng.Intn(n)
	j := rng.Intn(n - 1)
	if j >= i {
		j++
	}
	return i, j
}

// updateMean folds x into running mean in place, weighted by how many
// points mean already represents.
func updateMean(mean []float32, x []float32, weight float32) {
	newWeight := weight + 1
	for i := range mean {
		mean[i] = (mean[i]*weight + x[i]) / newWeight
	}
}

func normalizeInPlace(v []float32) {
	var sumSq float32
	for _, x := range v {
		sumSq += x * x
	}
	norm := float32(math.Sqrt(float64(sumSq)))
	if norm <= 0 {
		return
	}
	for i := range v {
		v[i] /= norm
	}
}

// SplitImbalance reports how lopsided a split is: 0.5 is perfectly
// balanced, 1.0 is maximally skewed to one side.
//
// Grounded on split_imbalance in original_source/src/writer.rs.
func SplitImbalance(leftLen, rightLen int) float64 {
	ls := float64(leftLen)
	rs := float64(rightLen)
	f := ls / (ls + rs + 1e-9)
	return math.Max(f, 1-f)
}
