package node

import (
	"math"
	"testing"

	"github.com/xDarkicex/annoydb/internal/vecview"
)

// TestLeafEncodeDecodeRoundTrip exercises the exact scenario spec.md §8
// scenario S1 describes: item [0, 1, 2] under Angular, whose header is a
// single float32 norm equal to sqrt(5).
func TestLeafEncodeDecodeRoundTrip(t *testing.T) {
	norm := float32(math.Sqrt(5))
	header := vecview.FromFloat32([]float32{norm}).Bytes()
	vec := vecview.FromFloat32([]float32{0, 1, 2})

	n := &Node{Kind: KindLeaf, Leaf: &Leaf{Header: header, Vector: vec}}
	b, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if Kind(b[0]) != KindLeaf {
		t.Fatalf("tag byte = %d, want KindLeaf", b[0])
	}

	got, err := Decode(b, len(header))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	leaf, ok := got.AsLeaf()
	if !ok {
		t.Fatal("decoded node is not a leaf")
	}
	if leaf.Vector.Len() != 3 {
		t.Fatalf("vector length = %d, want 3", leaf.Vector.Len())
	}
	for i, want := range []float32{0, 1, 2} {
		if got := leaf.Vector.At(i); got != want {
			t.Errorf("vector[%d] = %v, want %v", i, got, want)
		}
	}
	gotNorm := vecview.View{}
	gotNorm, _ = vecview.FromBytes(leaf.Header)
	if gotNorm.At(0) != norm {
		t.Errorf("header norm = %v, want %v", gotNorm.At(0), norm)
	}
}

func TestDescendantsEncodeDecodeRoundTrip(t *testing.T) {
	n := &Node{Kind: KindDescendants, Descendants: &Descendants{Items: []uint32{0}}}
	b, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindDescendants {
		t.Fatalf("Kind = %v, want Descendants", got.Kind)
	}
	if len(got.Descendants.Items) != 1 || got.Descendants.Items[0] != 0 {
		t.Errorf("Items = %v, want [0]", got.Descendants.Items)
	}
}

func TestSplitPlaneNormalEncodeDecodeRoundTrip(t *testing.T) {
	c := float32(1.0 / math.Sqrt(3))
	normal := vecview.FromFloat32([]float32{c, c, c})
	n := &Node{Kind: KindSplitPlaneNormal, Split: &SplitPlaneNormal{Normal: normal, Left: 0, Right: 4}}
	b, err := Encode(n)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Split.Left != 0 || got.Split.Right != 4 {
		t.Errorf("Left/Right = %d/%d, want 0/4", got.Split.Left, got.Split.Right)
	}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(got.Split.Normal.At(i)-c)) > 1e-6 {
			t.Errorf("normal[%d] = %v, want %v", i, got.Split.Normal.At(i), c)
		}
	}
}

func TestDecodeRejectsEmptyRecord(t *testing.T) {
	if _, err := Decode(nil, 0); err == nil {
		t.Fatal("expected error decoding empty record")
	}
}

func TestMetadataEncodeDecodeRoundTrip(t *testing.T) {
	m := &Metadata{Dimensions: 3, Roots: []uint32{1}}
	b := EncodeMetadata(m)
	got, err := DecodeMetadata(b)
	if err != nil {
		t.Fatalf("DecodeMetadata: %v", err)
	}
	if got.Dimensions != 3 {
		t.Errorf("Dimensions = %d, want 3", got.Dimensions)
	}
	if len(got.Roots) != 1 || got.Roots[0] != 1 {
		t.Errorf("Roots = %v, want [1]", got.Roots)
	}
}

func TestDecodeMetadataRejectsTruncatedRecord(t *testing.T) {
	m := &Metadata{Dimensions: 3, Roots: []uint32{1, 2}}
	b := EncodeMetadata(m)
	if _, err := DecodeMetadata(b[:len(b)-1]); err == nil {
		t.Fatal("expected error decoding truncated metadata record")
	}
}
