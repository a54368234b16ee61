// Package node defines the on-disk tagged node variants — Leaf,
// SplitPlaneNormal, and Descendants — and their bit-exact byte encoding.
//
// A node's bytes are read either borrowed straight out of a store
// transaction or owned after being freshly computed (normalization, split
// construction); both converge on the same Node value. Decode does not
// copy: the Node it returns aliases the input bytes, so a caller that keeps
// it past the transaction those bytes came from must copy them first (as
// internal/itemview does).
package node

import (
	"encoding/binary"
	"fmt"

	"github.com/xDarkicex/annoydb/internal/vecview"
)

// Kind tags which variant a Node holds.
type Kind byte

const (
	// KindLeaf stores one user vector plus its metric-specific header.
	KindLeaf Kind = 1
	// KindSplitPlaneNormal stores a hyperplane normal and two child ids.
	KindSplitPlaneNormal Kind = 2
	// KindDescendants stores a terminal bucket of item ids.
	KindDescendants Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "Leaf"
	case KindSplitPlaneNormal:
		return "SplitPlaneNormal"
	case KindDescendants:
		return "Descendants"
	default:
		return fmt.Sprintf("Kind(%d)", byte(k))
	}
}

// Leaf carries one user vector and the fixed-size header the index's
// distance metric attaches to every leaf (precomputed norm, plane bias...).
type Leaf struct {
	Header []byte
	Vector vecview.View
}

// SplitPlaneNormal is an internal node: a hyperplane normal plus the node
// ids of its left and right children. An all-zero Normal is the sentinel
// for "random side" (spec.md §4.3 step 3c / §9).
type SplitPlaneNormal struct {
	Normal vecview.View
	Left   uint32
	Right  uint32
}

// Descendants is a terminal internal node listing item ids directly; used
// when a subtree fits under the per-leaf cap.
type Descendants struct {
	Items []uint32
}

// Node is the tagged union of the three on-disk node variants. Exactly one
// of Leaf, Split, Descendants is non-nil, selected by Kind.
type Node struct {
	Kind        Kind
	Leaf        *Leaf
	Split       *SplitPlaneNormal
	Descendants *Descendants
}

// AsLeaf reports whether n is a Leaf and returns it.
func (n *Node) AsLeaf() (*Leaf, bool) {
	if n.Kind == KindLeaf {
		return n.Leaf, true
	}
	return nil, false
}

// ErrDecode wraps malformed node bytes; it is always fatal (spec.md §7):
// an invariant violation that the store cannot repair.
var ErrDecode = fmt.Errorf("node: corrupt record")

// Encode renders n to its bit-exact on-disk representation:
// 1-byte tag, then variant-specific payload.
func Encode(n *Node) ([]byte, error) {
	switch n.Kind {
	case KindLeaf:
		l := n.Leaf
		out := make([]byte, 1+len(l.Header)+len(l.Vector.Bytes()))
		out[0] = byte(KindLeaf)
		copy(out[1:], l.Header)
		copy(out[1+len(l.Header):], l.Vector.Bytes())
		return out, nil
	case KindSplitPlaneNormal:
		s := n.Split
		nb := s.Normal.Bytes()
		out := make([]byte, 1+4+4+len(nb))
		out[0] = byte(KindSplitPlaneNormal)
		binary.LittleEndian.PutUint32(out[1:], s.Left)
		binary.LittleEndian.PutUint32(out[5:], s.Right)
		copy(out[9:], nb)
		return out, nil
	case KindDescendants:
		d := n.Descendants
		out := make([]byte, 1+4*len(d.Items))
		out[0] = byte(KindDescendants)
		for i, id := range d.Items {
			binary.LittleEndian.PutUint32(out[1+4*i:], id)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("node: encode: %w: unknown kind %d", ErrDecode, n.Kind)
	}
}

// Decode parses raw bytes into a Node. headerLen is the fixed header size
// of the index's distance metric; it is only consulted for the Leaf case,
// since Split and Descendants carry no metric-specific header.
func Decode(b []byte, headerLen int) (*Node, error) {
	if len(b) < 1 {
		return nil, fmt.Errorf("node: decode: %w: empty record", ErrDecode)
	}
	switch Kind(b[0]) {
	case KindLeaf:
		rest := b[1:]
		if len(rest) < headerLen {
			return nil, fmt.Errorf("node: decode leaf: %w: want at least %d header bytes, got %d", ErrDecode, headerLen, len(rest))
		}
		header := rest[:headerLen]
		vec, err := vecview.FromBytes(rest[headerLen:])
		if err != nil {
			return nil, fmt.Errorf("node: decode leaf vector: %w", err)
		}
		return &Node{Kind: KindLeaf, Leaf: &Leaf{Header: header, Vector: vec}}, nil
	case KindSplitPlaneNormal:
		rest := b[1:]
		if len(rest) < 8 {
			return nil, fmt.Errorf("node: decode split: %w: record too short", ErrDecode)
		}
		left := binary.LittleEndian.Uint32(rest[0:])
		right := binary.LittleEndian.Uint32(rest[4:])
		vec, err := vecview.FromBytes(rest[8:])
		if err != nil {
			return nil, fmt.Errorf("node: decode split normal: %w", err)
		}
		return &Node{Kind: KindSplitPlaneNormal, Split: &SplitPlaneNormal{Normal: vec, Left: left, Right: right}}, nil
	case KindDescendants:
		rest := b[1:]
		if len(rest)%4 != 0 {
			return nil, fmt.Errorf("node: decode descendants: %w: byte length %d is not a multiple of 4", ErrDecode, len(rest))
		}
		items := make([]uint32, len(rest)/4)
		for i := range items {
			items[i] = binary.LittleEndian.Uint32(rest[4*i:])
		}
		return &Node{Kind: KindDescendants, Descendants: &Descendants{Items: items}}, nil
	default:
		return nil, fmt.Errorf("node: decode: %w: unknown tag %d", ErrDecode, b[0])
	}
}
