package btree

import (
	"bytes"
	stdbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/heap"
)

var cfg = binary.Config{ByteOrder: stdbinary.LittleEndian, OffsetSize: 8, LengthSize: 8}

// image is a sparse in-memory file.
type image []byte

func (m *image) put(addr int, b []byte) {
	if need := addr + len(b); need > len(*m) {
		*m = append(*m, make([]byte, need-len(*m))...)
	}
	copy((*m)[addr:], b)
}

func (m image) reader() *binary.Reader {
	return binary.NewReader(bytes.NewReader(m), cfg)
}

var le = stdbinary.LittleEndian

// treeNode encodes a TREE node. keys must hold one more entry than children.
func treeNode(typ, level uint8, keys [][]byte, children []uint64) []byte {
	b := append([]byte("TREE"), typ, level)
	b = le.AppendUint16(b, uint16(len(children)))
	b = le.AppendUint64(b, ^uint64(0))
	b = le.AppendUint64(b, ^uint64(0))
	for i, k := range keys {
		b = append(b, k...)
		if i < len(children) {
			b = le.AppendUint64(b, children[i])
		}
	}
	return b
}

func chunkKey(size uint32, mask uint32, offs ...uint64) []byte {
	b := le.AppendUint32(nil, size)
	b = le.AppendUint32(b, mask)
	for _, o := range offs {
		b = le.AppendUint64(b, o)
	}
	return b
}

func TestReadChunkIndexTwoLevels(t *testing.T) {
	var m image
	m.put(0, treeNode(nodeChunk, 1,
		[][]byte{chunkKey(0, 0, 0, 0, 0), chunkKey(0, 0, 0, 20, 0), chunkKey(0, 0, 0, 40, 0)},
		[]uint64{200, 400}))
	m.put(200, treeNode(nodeChunk, 0,
		[][]byte{chunkKey(80, 0, 0, 0, 0), chunkKey(64, 2, 0, 10, 0), chunkKey(0, 0, 0, 20, 0)},
		[]uint64{1000, 1100}))
	m.put(400, treeNode(nodeChunk, 0,
		[][]byte{chunkKey(80, 0, 0, 20, 0), chunkKey(0, 0, 0, 30, 0), chunkKey(0, 0, 0, 40, 0)},
		[]uint64{1200, ^uint64(0)}))

	entries, err := ReadChunkIndex(m.reader(), 0, 2)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ChunkEntry{Offset: []uint64{0, 0}, Size: 80, Address: 1000}, entries[0])
	assert.Equal(t, ChunkEntry{Offset: []uint64{0, 10}, FilterMask: 2, Size: 64, Address: 1100}, entries[1])
	assert.Equal(t, []uint64{0, 20}, entries[2].Offset)
}

func TestReadNodeErrors(t *testing.T) {
	var wrongType image
	wrongType.put(0, treeNode(nodeGroup, 0, [][]byte{make([]byte, 8)}, nil))

	var cycle image
	cycle.put(0, treeNode(nodeChunk, 1, [][]byte{chunkKey(0, 0, 0, 0), chunkKey(0, 0, 0, 0)}, []uint64{0}))

	tests := []struct {
		name string
		file image
	}{
		{"signature", image("XXXX\x01\x00\x00\x00" + string(make([]byte, 16)))},
		{"node type", wrongType},
		{"cycle", cycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadChunkIndex(tt.file.reader(), 0, 1)
			assert.ErrorIs(t, err, ErrInvalidNode)
		})
	}
}

// localHeap encodes a HEAP header at addr with its data segment right after.
func localHeap(addr int, data []byte) []byte {
	b := append([]byte("HEAP"), 0, 0, 0, 0)
	b = le.AppendUint64(b, uint64(len(data)))
	b = le.AppendUint64(b, ^uint64(0))
	b = le.AppendUint64(b, uint64(addr+32))
	return append(b, data...)
}

func symbolEntry(name, obj uint64, cache uint32, scratch uint32) []byte {
	b := le.AppendUint64(nil, name)
	b = le.AppendUint64(b, obj)
	b = le.AppendUint32(b, cache)
	b = le.AppendUint32(b, 0)
	b = le.AppendUint32(b, scratch)
	return append(b, make([]byte, 12)...)
}

func TestReadGroupEntries(t *testing.T) {
	// Heap: "" at 0, "X" at 1, "obs" at 3, "alias" at 7, "/X" at 13.
	names := []byte("\x00X\x00obs\x00alias\x00/X\x00")

	var m image
	m.put(0, treeNode(nodeGroup, 0, [][]byte{make([]byte, 8), make([]byte, 8)}, []uint64{300}))
	snod := append([]byte("SNOD"), 1, 0)
	snod = le.AppendUint16(snod, 4)
	snod = append(snod, symbolEntry(1, 800, 1, 0)...)
	snod = append(snod, symbolEntry(3, 900, 0, 0)...)
	snod = append(snod, symbolEntry(7, 0, cacheSoftLink, 13)...)
	snod = append(snod, symbolEntry(0, 0, 0, 0)...)
	m.put(300, snod)
	m.put(600, localHeap(600, names))

	r := m.reader()
	lh, err := heap.ReadLocalHeap(r, 600)
	require.NoError(t, err)

	entries, err := ReadGroupEntries(r, 0, lh)
	require.NoError(t, err)
	assert.Equal(t, []GroupEntry{
		{Name: "X", ObjectAddress: 800},
		{Name: "obs", ObjectAddress: 900},
		{Name: "alias", Soft: true, SoftLinkValue: "/X"},
	}, entries)
}

func TestReadGroupEntriesBadSymbolNode(t *testing.T) {
	var m image
	m.put(0, treeNode(nodeGroup, 0, [][]byte{make([]byte, 8), make([]byte, 8)}, []uint64{300}))
	m.put(300, []byte("SNOD\x02\x00\x00\x00"))
	m.put(600, localHeap(600, []byte{0}))

	r := m.reader()
	lh, err := heap.ReadLocalHeap(r, 600)
	require.NoError(t, err)
	_, err = ReadGroupEntries(r, 0, lh)
	assert.ErrorIs(t, err, ErrInvalidNode)
}
