package distance

import (
	"math"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Euclidean is plain squared-distance-then-square-root L2. Leaves need no
// precomputed header since the comparison is symmetric in both vectors.
//
// Grounded on NodeHeaderEuclidean in original_source/src/distance/mod.rs.
type Euclidean struct{}

func (Euclidean) Name() string                         { return "euclidean" }
func (Euclidean) HeaderLen() int                       { return 0 }
func (Euclidean) NewHeader(vec vecview.View) []byte    { return nil }
func (Euclidean) Preprocess(vec vecview.View) vecview.View { return vec }

func (Euclidean) Reconstruct(vec vecview.View) []float32 { return vec.ToFloat32() }

func sqDist(p, q vecview.View) float32 {
	var sum float32
	n := p.Len()
	for i := 0; i < n; i++ {
		d := p.At(i) - q.At(i)
		sum += d * d
	}
	return sum
}

func (Euclidean) BuiltDistance(pHeader []byte, pVec vecview.View, qHeader []byte, qVec vecview.View) float32 {
	return sqDist(pVec, qVec)
}

func (Euclidean) NonBuiltDistance(p, q vecview.View) float32 {
	return sqDist(p, q)
}

func (Euclidean) NormalizedDistance(distance float32, header []byte) float32 {
	if distance < 0 {
		distance = 0
	}
	return float32(math.Sqrt(float64(distance)))
}

func (Euclidean) Norm(v vecview.View) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// CreateSplit folds a midpoint bias into the normal so margin(n,x) =
// n·x + bias is zero halfway between the two two-means centroids, per
// spec: "Split plane has a bias = -n·(p+q)/2".
func (e Euclidean) CreateSplit(children []node.Leaf, rng *rand.Rand) (vecview.View, error) {
	return createSplitPlaneWithBias(e, children, rng, false)
}

func (Euclidean) Margin(normal vecview.View, vec vecview.View) float32 {
	return marginWithBias(normal, vec)
}

func (e Euclidean) Side(normal vecview.View, vec vecview.View, rng *rand.Rand) Side {
	return marginSideWithBias(e, normal, vec, rng)
}

func (Euclidean) PQDistance(margin float32, side Side) float32 {
	d := margin
	if side == Left {
		if d < 0 {
			d = 0
		}
	} else {
		if d > 0 {
			d = 0
		}
	}
	return d * d
}
