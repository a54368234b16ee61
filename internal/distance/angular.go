package distance

import (
	"math"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Angular is the cosine-similarity metric: leaves carry their precomputed
// norm so BuiltDistance can skip recomputing it.
//
// Grounded on NodeHeaderAngular in original_source/src/distance/mod.rs.
type Angular struct{}

func (Angular) Name() string     { return "angular" }
func (Angular) HeaderLen() int   { return 4 }
func (Angular) Norm(v vecview.View) float32 {
	return float32(math.Sqrt(float64(dot(v, v))))
}

func (a Angular) NewHeader(vec vecview.View) []byte {
	return vecview.FromFloat32([]float32{a.Norm(vec)}).Bytes()
}

func (Angular) Preprocess(vec vecview.View) vecview.View { return vec }

func (Angular) Reconstruct(vec vecview.View) []float32 { return vec.ToFloat32() }

func headerNorm(header []byte) float32 {
	v, _ := vecview.FromBytes(header)
	return v.At(0)
}

func (a Angular) BuiltDistance(pHeader []byte, pVec vecview.View, qHeader []byte, qVec vecview.View) float32 {
	pn, qn := headerNorm(pHeader), headerNorm(qHeader)
	pq := dot(pVec, qVec)
	denom := pn * qn
	if denom <= 0 {
		return 0
	}
	cos := pq / denom
	// clamp for float error before converting to an angular distance.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 2 * (1 - cos)
}

func (a Angular) NonBuiltDistance(p, q vecview.View) float32 {
	pn, qn := a.Norm(p), a.Norm(q)
	denom := pn * qn
	if denom <= 0 {
		return 0
	}
	cos := dot(p, q) / denom
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return 2 * (1 - cos)
}

func (Angular) NormalizedDistance(distance float32, header []byte) float32 {
	if distance < 0 {
		distance = 0
	}
	return float32(math.Sqrt(float64(distance)))
}

func (a Angular) CreateSplit(children []node.Leaf, rng *rand.Rand) (vecview.View, error) {
	return createSplitPlane(a, children, rng, true)
}

func (Angular) Margin(normal vecview.View, vec vecview.View) float32 {
	return dot(normal, vec)
}

func (a Angular) Side(normal vecview.View, vec vecview.View, rng *rand.Rand) Side {
	return marginSide(a, normal, vec, rng)
}

func (Angular) PQDistance(margin float32, side Side) float32 {
	if side == Left {
		return float32(math.Max(float64(margin), 0))
	}
	return float32(math.Max(float64(-margin), 0))
}
