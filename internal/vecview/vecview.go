// Package vecview provides an unaligned view over packed float32 vectors.
//
// On-disk nodes store vectors at byte offsets dictated by a metric-specific
// header, so code that reads them cannot assume 4-byte alignment. A View
// either borrows bytes from the store (read-only, zero-copy) or owns a
// freshly computed slice (as produced by normalization or split
// construction); both converge on the same iteration and byte-access
// surface.
package vecview

import (
	"encoding/binary"
	"fmt"
	"math"
)

// View is an unaligned sequence of float32 values backed by a byte buffer.
type View struct {
	bytes []byte
}

// FromBytes borrows b as a View. b must have a length that is a multiple of
// 4; otherwise a size-mismatch error is returned.
func FromBytes(b []byte) (View, error) {
	if len(b)%4 != 0 {
		return View{}, fmt.Errorf("vecview: %w: byte length %d is not a multiple of 4", ErrSizeMismatch, len(b))
	}
	return View{bytes: b}, nil
}

// FromFloat32 copies vs into a freshly allocated, packed byte buffer.
func FromFloat32(vs []float32) View {
	b := make([]byte, len(vs)*4)
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return View{bytes: b}
}

// ErrSizeMismatch is returned when a byte slice cannot be interpreted as a
// packed float32 sequence.
var ErrSizeMismatch = fmt.Errorf("raw byte length is not a multiple of 4")

// Len returns the number of float32 elements in the view.
func (v View) Len() int {
	return len(v.bytes) / 4
}

// At returns the i-th element.
func (v View) At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(v.bytes[i*4:]))
}

// Bytes returns the raw packed byte representation, used by metrics (such
// as the binary-quantized one) that operate bitwise on the vector.
func (v View) Bytes() []byte {
	return v.bytes
}

// ToFloat32 materializes the view as an owned []float32 slice.
func (v View) ToFloat32() []float32 {
	out := make([]float32, v.Len())
	for i := range out {
		out[i] = v.At(i)
	}
	return out
}

// ForEach calls fn with every element in order.
func (v View) ForEach(fn func(i int, x float32)) {
	for i := 0; i < v.Len(); i++ {
		fn(i, v.At(i))
	}
}

// Map returns a new owned View obtained by applying fn element-wise to v
// and (when other is non-nil) the corresponding element of other.
func Map(v View, other *View, fn func(a, b float32) float32) View {
	n := v.Len()
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var b float32
		if other != nil {
			b = other.At(i)
		}
		out[i] = fn(v.At(i), b)
	}
	return FromFloat32(out)
}
