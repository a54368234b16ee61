package distance

import (
	"math"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Manhattan is sum-of-absolute-differences (L1) distance.
//
// Grounded on NodeHeaderManhattan in original_source/src/distance/mod.rs.
type Manhattan struct{}

func (Manhattan) Name() string                          { return "manhattan" }
func (Manhattan) HeaderLen() int                        { return 0 }
func (Manhattan) NewHeader(vec vecview.View) []byte     { return nil }
func (Manhattan) Preprocess(vec vecview.View) vecview.View { return vec }

func (Manhattan) Reconstruct(vec vecview.View) []float32 { return vec.ToFloat32() }

func (Manhattan) BuiltDistance(pHeader []byte, pVec vecview.View, qHeader []byte, qVec vecview.View) float32 {
	var sum float32
	n := pVec.Len()
	for i := 0; i < n; i++ {
		d := pVec.At(i) - qVec.At(i)
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func (m Manhattan) NonBuiltDistance(p, q vecview.View) float32 {
	return m.BuiltDistance(nil, p, nil, q)
}

func (Manhattan) NormalizedDistance(distance float32, header []byte) float32 {
	return distance
}

func (Manhattan) Norm(v vecview.View) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

// CreateSplit uses the same biased construction as Euclidean: per spec,
// "Manhattan ... uses the Euclidean bias construction".
func (m Manhattan) CreateSplit(children []node.Leaf, rng *rand.Rand) (vecview.View, error) {
	return createSplitPlaneWithBias(m, children, rng, false)
}

func (Manhattan) Margin(normal vecview.View, vec vecview.View) float32 {
	return marginWithBias(normal, vec)
}

func (m Manhattan) Side(normal vecview.View, vec vecview.View, rng *rand.Rand) Side {
	return marginSideWithBias(m, normal, vec, rng)
}

func (Manhattan) PQDistance(margin float32, side Side) float32 {
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
	if d < 0 {
		d = -d
	}
	return d
}
