package heap

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

// memFile is a growable in-memory file usable as both io.ReaderAt and io.WriterAt.
type memFile struct {
	buf []byte
}

func (m *memFile) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.buf) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

func (m *memFile) ReadAt(p []byte, off int64) (int, error) {
	if int(off) >= len(m.buf) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func newTestWriter(t *testing.T) (*StringWriter, *memFile, *binpkg.Reader) {
	t.Helper()
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
	mf := &memFile{}
	next := uint64(64) // leave room so no collection lands at address 0
	alloc := func(size int64) uint64 {
		addr := next
		next += uint64(size)
		return addr
	}
	return NewStringWriter(binpkg.NewWriter(mf, cfg), alloc), mf, binpkg.NewReader(mf, cfg)
}

// decodeRefs resolves packed references the way a dataset reader does.
func decodeRefs(t *testing.T, r *binpkg.Reader, refs []byte, n int) []string {
	t.Helper()
	out := make([]string, n)
	for i := 0; i < n; i++ {
		ref := refs[i*16 : (i+1)*16]
		length := binary.LittleEndian.Uint32(ref[0:4])
		id, err := ParseGlobalHeapID(ref[4:], 8)
		require.NoError(t, err)
		if id.CollectionAddress == 0 {
			assert.Zero(t, length)
			continue
		}
		gh, err := ReadGlobalHeap(r, id.CollectionAddress)
		require.NoError(t, err)
		s, err := gh.GetString(uint16(id.ObjectIndex))
		require.NoError(t, err)
		assert.Len(t, s, int(length))
		out[i] = s
	}
	return out
}

func TestStringWriterRoundtrip(t *testing.T) {
	sw, _, r := newTestWriter(t)
	in := []string{"AAACCTG-1", "", "cluster_colors", "Ångström", "AAACCTG-1"}

	refs, err := sw.Encode(in)
	require.NoError(t, err)
	require.Len(t, refs, len(in)*sw.ReferenceSize())

	assert.Equal(t, in, decodeRefs(t, r, refs, len(in)))
}

func TestStringWriterDeduplicatesAcrossCalls(t *testing.T) {
	sw, mf, _ := newTestWriter(t)

	first, err := sw.Encode([]string{"RNA", "spatial"})
	require.NoError(t, err)
	size := len(mf.buf)

	second, err := sw.Encode([]string{"spatial", "RNA"})
	require.NoError(t, err)

	assert.Equal(t, size, len(mf.buf), "no new collection for known strings")
	assert.Equal(t, first[16:32], second[0:16])
	assert.Equal(t, first[0:16], second[16:32])
}

func TestStringWriterCollectionLayout(t *testing.T) {
	sw, mf, r := newTestWriter(t)

	_, err := sw.Encode([]string{"x"})
	require.NoError(t, err)

	coll := mf.buf[64:]
	require.GreaterOrEqual(t, len(coll), minCollectionSize)
	assert.Equal(t, "GCOL", string(coll[0:4]))
	assert.Equal(t, uint64(minCollectionSize), binary.LittleEndian.Uint64(coll[8:16]))

	// object 1 ("x", padded to 8) then the free-space object covering the rest
	free := coll[16+16+8:]
	assert.Equal(t, uint16(0), binary.LittleEndian.Uint16(free[0:2]))
	assert.Equal(t, uint64(minCollectionSize-16-16-8), binary.LittleEndian.Uint64(free[8:16]))

	gh, err := ReadGlobalHeap(r, 64)
	require.NoError(t, err)
	s, err := gh.GetString(1)
	require.NoError(t, err)
	assert.Equal(t, "x", s)
}

func TestStringWriterSplitsLargeInput(t *testing.T) {
	sw, _, r := newTestWriter(t)
	big := strings.Repeat("g", maxCollectionBytes/2)
	in := []string{big + "1", big + "2", big + "3"}

	refs, err := sw.Encode(in)
	require.NoError(t, err)

	addrs := map[uint64]bool{}
	for i := range in {
		id, err := ParseGlobalHeapID(refs[i*16+4:], 8)
		require.NoError(t, err)
		addrs[id.CollectionAddress] = true
	}
	assert.Greater(t, len(addrs), 1)
	assert.Equal(t, in, decodeRefs(t, r, refs, len(in)))
}

func TestCollectionFill(t *testing.T) {
	assert.Equal(t, 1, collectionFill([]string{strings.Repeat("a", maxCollectionBytes+1)}, 8))
	assert.Equal(t, 3, collectionFill([]string{"a", "b", "c"}, 8))
}

func TestLocalHeapGetString(t *testing.T) {
	heap := &LocalHeap{data: []byte("hello\x00world\x00test\x00\x00\x00")}

	tests := []struct {
		offset uint64
		want   string
	}{
		{0, "hello"},
		{6, "world"},
		{12, "test"},
		{17, ""},
		{100, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, heap.GetString(tt.offset), "offset %d", tt.offset)
	}
}

func TestReadGlobalHeapErrors(t *testing.T) {
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}

	empty := binpkg.NewReader(bytes.NewReader(nil), cfg)
	_, err := ReadGlobalHeap(empty, 0)
	assert.Error(t, err)
	_, err = ReadGlobalHeap(empty, 0xFFFFFFFFFFFFFFFF)
	assert.Error(t, err)

	badSig := binpkg.NewReader(bytes.NewReader([]byte("_XXXX\x01\x00\x00\x00")), cfg)
	_, err = ReadGlobalHeap(badSig, 1)
	assert.ErrorIs(t, err, ErrInvalidHeap)

	badVersion := binpkg.NewReader(bytes.NewReader([]byte("_GCOL\x02\x00\x00\x00")), cfg)
	_, err = ReadGlobalHeap(badVersion, 1)
	assert.ErrorIs(t, err, ErrInvalidHeap)

	// object 1 claims more bytes than the collection holds
	coll := appendUint([]byte("GCOL\x01\x00\x00\x00"), 48, 8)
	coll = appendObjectHeader(coll, 1, 1, 100, 8)
	coll = append(coll, make([]byte, 16)...)
	overrun := binpkg.NewReader(bytes.NewReader(append([]byte{0}, coll...)), cfg)
	_, err = ReadGlobalHeap(overrun, 1)
	assert.ErrorIs(t, err, ErrInvalidHeap)
}

func TestReadLocalHeap(t *testing.T) {
	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
	names := []byte("\x00X\x00obs\x00var\x00\x00\x00\x00\x00\x00")
	block := []byte("HEAP\x00\x00\x00\x00")
	block = appendUint(block, uint64(len(names)), 8)
	block = appendUint(block, 8, 8)
	block = appendUint(block, 64, 8)
	mf := &memFile{}
	_, _ = mf.WriteAt(block, 16)
	_, _ = mf.WriteAt(names, 64)

	heap, err := ReadLocalHeap(binpkg.NewReader(mf, cfg), 16)
	require.NoError(t, err)
	assert.EqualValues(t, 64, heap.DataAddress)
	assert.EqualValues(t, 8, heap.FreeOffset)
	assert.Equal(t, "X", heap.GetString(1))
	assert.Equal(t, "obs", heap.GetString(3))
	assert.Equal(t, "var", heap.GetString(7))

	_, err = ReadLocalHeap(binpkg.NewReader(mf, cfg), 64)
	assert.ErrorIs(t, err, ErrInvalidHeap)
}

func TestParseGlobalHeapID(t *testing.T) {
	data := []byte{0x34, 0x12, 0, 0, 0, 0, 0, 0, 7, 0, 0, 0}
	id, err := ParseGlobalHeapID(data, 8)
	require.NoError(t, err)
	assert.Equal(t, GlobalHeapID{CollectionAddress: 0x1234, ObjectIndex: 7}, id)

	_, err = ParseGlobalHeapID(data[:6], 8)
	assert.Error(t, err)
}
