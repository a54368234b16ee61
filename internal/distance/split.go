package distance

import (
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// normalizeUnit divides v by its own norm under metric, leaving it
// unchanged when the norm is zero (the all-zero forced-random sentinel).
func normalizeUnit(metric Metric, v vecview.View) vecview.View {
	norm := metric.Norm(v)
	if norm <= 0 {
		return v
	}
	return vecview.Map(v, nil, func(x, _ float32) float32 { return x / norm })
}

// midpointBias computes the bias term that places a hyperplane through the
// midpoint of the two two-means centroids rather than through the origin:
// bias = -normal·(p+q)/2, so that margin(n, x) = n·x + bias is zero exactly
// halfway between p and q along normal.
func midpointBias(normal, p, q vecview.View) float32 {
	var bias float32
	for i := 0; i < normal.Len(); i++ {
		bias += -normal.At(i) * (p.At(i) + q.At(i)) / 2
	}
	return bias
}

// createSplitPlane runs two_means to find two centroids among children,
// unit-normalizes their difference, and returns it as the hyperplane
// normal with no bias term. Used only by Angular, whose cosine-similarity
// split is correctly a hyperplane through the origin.
func createSplitPlane(metric Metric, children []node.Leaf, rng *rand.Rand, cosine bool) (vecview.View, error) {
	p, q, err := twoMeans(metric, rng, children, cosine)
	if err != nil {
		return vecview.View{}, err
	}
	return normalizeUnit(metric, sub(p, q)), nil
}

// createSplitPlaneWithBias is createSplitPlane plus a trailing bias
// element so the hyperplane sits at the midpoint between the two centroids
// instead of through the origin, per the shared create_split construction
// in original_source/src/distance/mod.rs: "the normal is p-q; it is
// normalized" and then a bias is folded in from the (now unit) normal and
// the two centroids. Used by Euclidean, Manhattan, Dot Product and
// Binary-Quantized Euclidean, whose splits are not scale-invariant the way
// a cosine-similarity split is.
func createSplitPlaneWithBias(metric Metric, children []node.Leaf, rng *rand.Rand, cosine bool) (vecview.View, error) {
	p, q, err := twoMeans(metric, rng, children, cosine)
	if err != nil {
		return vecview.View{}, err
	}
	normal := normalizeUnit(metric, sub(p, q))
	bias := midpointBias(normal, p, q)
	vals := append(normal.ToFloat32(), bias)
	return vecview.FromFloat32(vals), nil
}

// trimBias strips the trailing bias element a biased normal carries,
// leaving just its coefficients — used to test for the all-zero
// forced-random sentinel, which must ignore the bias.
func trimBias(normal vecview.View) vecview.View {
	n := normal.Len() - 1
	vals := make([]float32, n)
	for i := 0; i < n; i++ {
		vals[i] = normal.At(i)
	}
	return vecview.FromFloat32(vals)
}

// marginWithBias evaluates margin(n, x) = n·x + bias for a normal whose
// trailing element is the bias folded in by createSplitPlaneWithBias.
func marginWithBias(normal, vec vecview.View) float32 {
	n := normal.Len() - 1
	var sum float32
	for i := 0; i < n; i++ {
		sum += normal.At(i) * vec.At(i)
	}
	return sum + normal.At(n)
}

// marginSide resolves the side of a plane described by normal (with no
// trailing bias) for vec, falling back to a random coin flip when normal
// is the all-zero forced-random sentinel.
func marginSide(metric Metric, normal, vec vecview.View, rng *rand.Rand) Side {
	if isZero(normal) {
		return randomSide(rng)
	}
	if metric.Margin(normal, vec) < 0 {
		return Left
	}
	return Right
}

// marginSideWithBias is marginSide for a normal carrying a trailing bias
// element: the all-zero check only applies to the coefficients.
func marginSideWithBias(metric Metric, normal, vec vecview.View, rng *rand.Rand) Side {
	if isZero(trimBias(normal)) {
		return randomSide(rng)
	}
	if metric.Margin(normal, vec) < 0 {
		return Left
	}
	return Right
}
