package node

import (
	"encoding/binary"
	"fmt"
)

// MetadataVersion is the current on-disk metadata format version.
const MetadataVersion = uint8(1)

// Metadata is the single per-index record written at the reserved key
// (2^32 - 1): the vector dimensionality and the forest's root node ids.
type Metadata struct {
	Dimensions uint32
	Roots      []uint32
}

// EncodeMetadata renders m using its own fixed layout: version u8,
// dimensions u32 LE, roots_len u32 LE, roots[] u32 LE.
func EncodeMetadata(m *Metadata) []byte {
	out := make([]byte, 1+4+4+4*len(m.Roots))
	out[0] = MetadataVersion
	binary.LittleEndian.PutUint32(out[1:], m.Dimensions)
	binary.LittleEndian.PutUint32(out[5:], uint32(len(m.Roots)))
	for i, r := range m.Roots {
		binary.LittleEndian.PutUint32(out[9+4*i:], r)
	}
	return out
}

// DecodeMetadata parses the reserved-key record.
func DecodeMetadata(b []byte) (*Metadata, error) {
	if len(b) < 9 {
		return nil, fmt.Errorf("node: decode metadata: %w: record too short", ErrDecode)
	}
	version := b[0]
	if version != MetadataVersion {
		return nil, fmt.Errorf("node: decode metadata: %w: unsupported version %d", ErrDecode, version)
	}
	dims := binary.LittleEndian.Uint32(b[1:])
	rootsLen := binary.LittleEndian.Uint32(b[5:])
	want := 9 + 4*int(rootsLen)
	if len(b) != want {
		return nil, fmt.Errorf("node: decode metadata: %w: expected %d bytes, got %d", ErrDecode, want, len(b))
	}
	roots := make([]uint32, rootsLen)
	for i := range roots {
		roots[i] = binary.LittleEndian.Uint32(b[9+4*i:])
	}
	return &Metadata{Dimensions: dims, Roots: roots}, nil
}
