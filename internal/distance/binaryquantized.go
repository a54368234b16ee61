package distance

import (
	"math"
	"math/bits"
	"math/rand"

	"github.com/xDarkicex/annoydb/internal/node"
	"github.com/xDarkicex/annoydb/internal/vecview"
)

// BinaryQuantizedEuclidean stores each vector as one sign bit per
// dimension, packed 32 bits to a word, and compares leaves by Hamming
// distance over the packed bytes. The hyperplane used to split a subtree
// is still built and evaluated in the original float space: create_split
// reconstructs each child's bits back to 0/1 floats, runs the same
// two-means routine every other metric uses, and folds the resulting
// bias into the last element of the returned normal.
//
// Grounded on NodeHeaderBinaryQuantizedEuclidean in
// original_source/src/distance/binary_quantized_euclidean.rs.
type BinaryQuantizedEuclidean struct{}

func (BinaryQuantizedEuclidean) Name() string   { return "binary_quantized_euclidean" }
func (BinaryQuantizedEuclidean) HeaderLen() int { return 4 }

func (BinaryQuantizedEuclidean) NewHeader(vec vecview.View) []byte {
	return vecview.FromFloat32([]float32{0}).Bytes()
}

func (BinaryQuantizedEuclidean) Preprocess(vec vecview.View) vecview.View {
	return packBits(vec)
}

// Reconstruct un-packs bits back to 0/1 floats. Any padding bits added to
// round the packed length up to a whole 32-bit word are returned as
// trailing zeros along with the real dimensions; callers that know the
// index's true dimensionality should truncate to it.
func (BinaryQuantizedEuclidean) Reconstruct(vec vecview.View) []float32 {
	return unpackBits(vec)
}

func packBits(vec vecview.View) vecview.View {
	dims := vec.Len()
	words := (dims + 31) / 32
	buf := make([]byte, words*4)
	for i := 0; i < dims; i++ {
		if vec.At(i) > 0 {
			buf[i/8] |= 1 << uint(i%8)
		}
	}
	v, _ := vecview.FromBytes(buf)
	return v
}

func unpackBits(v vecview.View) []float32 {
	raw := v.Bytes()
	n := len(raw) * 8
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		if raw[i/8]&(1<<uint(i%8)) != 0 {
			out[i] = 1
		}
	}
	return out
}

func popcountXOR(a, b []byte) uint32 {
	var total uint32
	for i := range a {
		total += uint32(bits.OnesCount8(a[i] ^ b[i]))
	}
	return total
}

func (BinaryQuantizedEuclidean) BuiltDistance(pHeader []byte, pVec vecview.View, qHeader []byte, qVec vecview.View) float32 {
	return float32(popcountXOR(pVec.Bytes(), qVec.Bytes()))
}

func (b BinaryQuantizedEuclidean) NonBuiltDistance(p, q vecview.View) float32 {
	return b.BuiltDistance(nil, p, nil, q)
}

func (BinaryQuantizedEuclidean) NormalizedDistance(distance float32, header []byte) float32 {
	if distance < 0 {
		distance = 0
	}
	return float32(math.Sqrt(float64(distance)))
}

func (BinaryQuantizedEuclidean) Norm(v vecview.View) float32 {
	var set int
	for _, b := range v.Bytes() {
		set += bits.OnesCount8(b)
	}
	return float32(math.Sqrt(float64(set)))
}

// CreateSplit reconstructs each child's packed bits as a plain float
// vector and runs the shared biased-split construction (two-means, unit
// normal, midpoint bias) in that space under plain Euclidean distance.
func (b BinaryQuantizedEuclidean) CreateSplit(children []node.Leaf, rng *rand.Rand) (vecview.View, error) {
	floatLeaves := make([]node.Leaf, len(children))
	for i, c := range children {
		floatLeaves[i] = node.Leaf{Vector: vecview.FromFloat32(unpackBits(c.Vector))}
	}
	return createSplitPlaneWithBias(Euclidean{}, floatLeaves, rng, false)
}

func (BinaryQuantizedEuclidean) Margin(normal vecview.View, vec vecview.View) float32 {
	n := normal.Len() - 1
	bitvals := unpackBits(vec)
	var sum float32
	for i := 0; i < n && i < len(bitvals); i++ {
		sum += normal.At(i) * bitvals[i]
	}
	return sum + normal.At(n)
}

func (b BinaryQuantizedEuclidean) Side(normal vecview.View, vec vecview.View, rng *rand.Rand) Side {
	if isZero(trimBias(normal)) {
		return randomSide(rng)
	}
	if b.Margin(normal, vec) < 0 {
		return Left
	}
	return Right
}

func (BinaryQuantizedEuclidean) PQDistance(margin float32, side Side) float32 {
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
