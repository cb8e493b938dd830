package btree

import (
	stdbinary "encoding/binary"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

// ChunkEntry locates one stored chunk.
type ChunkEntry struct {
	// Offset is the element coordinate of the chunk's first element.
	Offset     []uint64
	FilterMask uint32
	// Size is the stored (possibly filtered) size in bytes.
	Size    uint32
	Address uint64
}

// ReadChunkIndex lists the chunks indexed by the B-tree at addr for a dataset
// of rank ndims. Chunk keys carry one extra coordinate for the element size,
// which is dropped.
func ReadChunkIndex(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	keySize := 8 + 8*(ndims+1)
	var entries []ChunkEntry
	err := walkLeaves(r, addr, nodeChunk, keySize, 0, func(key []byte, child uint64) error {
		size := stdbinary.LittleEndian.Uint32(key)
		if size == 0 || r.IsUndefinedOffset(child) {
			return nil
		}
		e := ChunkEntry{
			Offset:     make([]uint64, ndims),
			FilterMask: stdbinary.LittleEndian.Uint32(key[4:]),
			Size:       size,
			Address:    child,
		}
		for d := range e.Offset {
			e.Offset[d] = stdbinary.LittleEndian.Uint64(key[8+8*d:])
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
