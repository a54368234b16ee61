package distance

import (
	"math"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// DotProduct ranks by raw inner product; smaller BuiltDistance values mean
// a higher (more similar) dot product, so the sign is flipped to fit the
// "smaller is closer" convention every other metric follows.
//
// Grounded on NodeHeaderDotProduct in original_source/src/distance/mod.rs.
type DotProduct struct{}

func (DotProduct) Name() string   { return "dot_product" }
func (DotProduct) HeaderLen() int { return 0 }

func (DotProduct) NewHeader(vec vecview.View) []byte { return nil }

func (DotProduct) Preprocess(vec vecview.View) vecview.View { return vec }

func (DotProduct) Reconstruct(vec vecview.View) []float32 { return vec.ToFloat32() }

func (DotProduct) BuiltDistance(pHeader []byte, pVec vecview.View, qHeader []byte, qVec vecview.View) float32 {
	return -dot(pVec, qVec)
}

func (DotProduct) NonBuiltDistance(p, q vecview.View) float32 {
	return -dot(p, q)
}

func (DotProduct) NormalizedDistance(distance float32, header []byte) float32 {
	return distance
}

func (DotProduct) Norm(v vecview.View) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// CreateSplit runs two-means without cosine pre-normalization (dot product,
// unlike angular, is not scale-invariant — per spec the candidates here are
// not normalized first) and folds a midpoint bias into the normal so the
// split plane sits between the two centroids rather than through the
// origin.
func (d DotProduct) CreateSplit(children []node.Leaf, rng *rand.Rand) (vecview.View, error) {
	return createSplitPlaneWithBias(d, children, rng, false)
}

func (DotProduct) Margin(normal vecview.View, vec vecview.View) float32 {
	return marginWithBias(normal, vec)
}

func (d DotProduct) Side(normal vecview.View, vec vecview.View, rng *rand.Rand) Side {
	return marginSideWithBias(d, normal, vec, rng)
}

func (DotProduct) PQDistance(margin float32, side Side) float32 {
	if side == Left {
		return float32(math.Max(float64(margin), 0))
	}
	return float32(math.Max(float64(-margin), 0))
}
