package layout

import (
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

// ChunkEntry locates one stored chunk and its on-disk (possibly filtered) size.
type ChunkEntry struct {
	Address uint64
	Size    uint64
}

// ChunkWriter writes chunked dataset data and its fixed array index.
type ChunkWriter struct {
	w           *binary.Writer
	chunkDims   []uint32
	elementSize uint32
	encode      func([]byte) ([]byte, error)
	allocator   func(size int64) uint64
}

// NewChunkWriter creates a new chunk writer. When encode is non-nil every
// chunk is passed through it before being written and the index records
// filtered chunk sizes.
func NewChunkWriter(w *binary.Writer, chunkDims []uint32, elementSize uint32, encode func([]byte) ([]byte, error), allocator func(size int64) uint64) *ChunkWriter {
	return &ChunkWriter{
		w:           w,
		chunkDims:   chunkDims,
		elementSize: elementSize,
		encode:      encode,
		allocator:   allocator,
	}
}

// Filtered reports whether chunks go through a filter pipeline.
func (cw *ChunkWriter) Filtered() bool {
	return cw.encode != nil
}

// ChunkSize returns the unfiltered size in bytes of one chunk.
func (cw *ChunkWriter) ChunkSize() uint64 {
	size := uint64(cw.elementSize)
	for _, dim := range cw.chunkDims {
		size *= uint64(dim)
	}
	return size
}

// WriteChunks encodes and writes chunks, returning where each one landed.
func (cw *ChunkWriter) WriteChunks(chunks [][]byte) ([]ChunkEntry, error) {
	entries := make([]ChunkEntry, len(chunks))
	for i, chunk := range chunks {
		if cw.encode != nil {
			enc, err := cw.encode(chunk)
			if err != nil {
				return nil, fmt.Errorf("encoding chunk %d: %w", i, err)
			}
			chunk = enc
		}
		addr := cw.allocator(int64(len(chunk)))
		if err := cw.w.At(int64(addr)).WriteBytes(chunk); err != nil {
			return nil, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		entries[i] = ChunkEntry{Address: addr, Size: uint64(len(chunk))}
	}
	return entries, nil
}

// FixedArrayPageBits returns the page bits for a fixed array of n entries.
// The data block is never paged: the page holds every entry.
func FixedArrayPageBits(n int) uint8 {
	pageBits := uint8(10)
	for (1 << pageBits) < n {
		pageBits++
	}
	return pageBits
}

// chunkSizeWidth is the width of the filtered-size field in a fixed array
// entry, as computed by the HDF5 library for a given unfiltered chunk size.
func chunkSizeWidth(chunkBytes uint64) int {
	if chunkBytes == 0 {
		return 1
	}
	width := 1 + (bits.Len64(chunkBytes)-1+8)/8
	if width > 8 {
		width = 8
	}
	return width
}

// WriteFixedArrayIndex writes a fixed array chunk index (FAHD + FADB) and
// returns the header address. Entries must be in row-major chunk order.
func (cw *ChunkWriter) WriteFixedArrayIndex(entries []ChunkEntry) (uint64, error) {
	numChunks := len(entries)
	if numChunks == 0 {
		return 0, fmt.Errorf("fixed array index needs at least one chunk")
	}

	offsetSize := cw.w.OffsetSize()
	lengthSize := cw.w.LengthSize()

	clientID := uint8(0)
	entrySize := offsetSize
	sizeWidth := 0
	if cw.Filtered() {
		clientID = 1
		sizeWidth = chunkSizeWidth(cw.ChunkSize())
		entrySize = offsetSize + sizeWidth + 4
	}

	headerSize := 4 + 1 + 1 + 1 + 1 + lengthSize + offsetSize + 4
	headerAddr := cw.allocator(int64(headerSize))

	dataBlockSize := 4 + 1 + 1 + offsetSize + numChunks*entrySize + 4
	dataBlockAddr := cw.allocator(int64(dataBlockSize))

	fadb := make([]byte, dataBlockSize)
	idx := copy(fadb, "FADB")
	fadb[idx] = 0 // version
	fadb[idx+1] = clientID
	idx += 2
	putUintLE(fadb[idx:], headerAddr, offsetSize)
	idx += offsetSize
	for _, e := range entries {
		putUintLE(fadb[idx:], e.Address, offsetSize)
		idx += offsetSize
		if sizeWidth > 0 {
			putUintLE(fadb[idx:], e.Size, sizeWidth)
			idx += sizeWidth
			putUintLE(fadb[idx:], 0, 4) // filter mask: all filters applied
			idx += 4
		}
	}
	putUintLE(fadb[idx:], uint64(binary.Lookup3Checksum(fadb[:idx])), 4)
	if err := cw.w.At(int64(dataBlockAddr)).WriteBytes(fadb); err != nil {
		return 0, fmt.Errorf("writing fixed array data block: %w", err)
	}

	fahd := make([]byte, headerSize)
	idx = copy(fahd, "FAHD")
	fahd[idx] = 0 // version
	fahd[idx+1] = clientID
	fahd[idx+2] = uint8(entrySize)
	fahd[idx+3] = FixedArrayPageBits(numChunks)
	idx += 4
	putUintLE(fahd[idx:], uint64(numChunks), lengthSize)
	idx += lengthSize
	putUintLE(fahd[idx:], dataBlockAddr, offsetSize)
	idx += offsetSize
	putUintLE(fahd[idx:], uint64(binary.Lookup3Checksum(fahd[:idx])), 4)
	if err := cw.w.At(int64(headerAddr)).WriteBytes(fahd); err != nil {
		return 0, fmt.Errorf("writing fixed array header: %w", err)
	}

	return headerAddr, nil
}

func putUintLE(b []byte, v uint64, size int) {
	for i := 0; i < size; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

// SplitIntoChunks splits row-major data into chunks in row-major chunk order.
// Edge chunks are zero-padded to the full chunk shape, which is how HDF5
// stores them on disk.
func SplitIntoChunks(data []byte, dims []uint64, chunkDims []uint32, elementSize uint32) [][]byte {
	ndims := len(dims)
	if ndims == 0 {
		return [][]byte{data}
	}

	grid := make([]uint64, ndims)
	total := uint64(1)
	for d := range dims {
		grid[d] = (dims[d] + uint64(chunkDims[d]) - 1) / uint64(chunkDims[d])
		total *= grid[d]
	}

	es := uint64(elementSize)
	dataStrides := make([]uint64, ndims)
	chunkStrides := make([]uint64, ndims)
	dataStrides[ndims-1] = es
	chunkStrides[ndims-1] = es
	for d := ndims - 2; d >= 0; d-- {
		dataStrides[d] = dataStrides[d+1] * dims[d+1]
		chunkStrides[d] = chunkStrides[d+1] * uint64(chunkDims[d+1])
	}
	chunkBytes := chunkStrides[0] * uint64(chunkDims[0])

	chunks := make([][]byte, 0, total)
	origin := make([]uint64, ndims)
	extent := make([]uint64, ndims)
	for c := uint64(0); c < total; c++ {
		rem := c
		for d := ndims - 1; d >= 0; d-- {
			origin[d] = (rem % grid[d]) * uint64(chunkDims[d])
			rem /= grid[d]
			extent[d] = uint64(chunkDims[d])
			if origin[d]+extent[d] > dims[d] {
				extent[d] = dims[d] - origin[d]
			}
		}
		chunk := make([]byte, chunkBytes)
		fillChunk(chunk, data, origin, extent, dataStrides, chunkStrides, 0, 0, 0)
		chunks = append(chunks, chunk)
	}
	return chunks
}

func fillChunk(chunk, data []byte, origin, extent, dataStrides, chunkStrides []uint64, dim int, dataOff, chunkOff uint64) {
	last := len(origin) - 1
	if dim == last {
		start := dataOff + origin[dim]*dataStrides[dim]
		n := extent[dim] * dataStrides[dim]
		copy(chunk[chunkOff:chunkOff+n], data[start:start+n])
		return
	}
	for i := uint64(0); i < extent[dim]; i++ {
		fillChunk(chunk, data, origin, extent, dataStrides, chunkStrides, dim+1,
			dataOff+(origin[dim]+i)*dataStrides[dim],
			chunkOff+i*chunkStrides[dim])
	}
}
