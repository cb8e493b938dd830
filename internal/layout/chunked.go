package layout

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/btree"
	"github.com/robert-malhotra/go-scdior/internal/filter"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// ErrUnsupportedChunkIndex is returned for chunk indexes this package does
// not decode (extensible arrays and v2 B-trees, which only appear in files
// written with the latest format and unlimited dimensions).
var ErrUnsupportedChunkIndex = errors.New("unsupported chunk index")

// Chunked reads datasets stored as indexed chunks.
type Chunked struct {
	layout    *message.DataLayout
	dataspace *message.Dataspace
	datatype  *message.Datatype
	pipeline  *filter.Pipeline
	reader    *binary.Reader
}

// NewChunked creates a new chunked layout handler.
func NewChunked(
	layout *message.DataLayout,
	dataspace *message.Dataspace,
	datatype *message.Datatype,
	filterPipeline *message.FilterPipeline,
	reader *binary.Reader,
) (*Chunked, error) {
	var pipeline *filter.Pipeline
	if filterPipeline != nil {
		var err error
		if pipeline, err = filter.NewPipeline(filterPipeline); err != nil {
			return nil, fmt.Errorf("creating filter pipeline: %w", err)
		}
	}
	return &Chunked{
		layout:    layout,
		dataspace: dataspace,
		datatype:  datatype,
		pipeline:  pipeline,
		reader:    reader,
	}, nil
}

func (c *Chunked) Class() message.LayoutClass {
	return message.LayoutChunked
}

// chunkShape is the dataset shape and the chunk shape without the trailing
// element-size entry.
func (c *Chunked) chunkShape() ([]uint64, []uint32, error) {
	dims := c.dataspace.Dimensions
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	chunkDims := c.layout.ChunkDims
	if len(chunkDims) < len(dims) {
		return nil, nil, fmt.Errorf("chunk rank %d below dataset rank %d", len(chunkDims), len(dims))
	}
	chunkDims = chunkDims[:len(dims)]
	for d, n := range chunkDims {
		if n == 0 {
			return nil, nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	return dims, chunkDims, nil
}

// Read assembles every stored chunk into a row-major buffer. Chunks that were
// never written read as zeros.
func (c *Chunked) Read() ([]byte, error) {
	dims, chunkDims, err := c.chunkShape()
	if err != nil {
		return nil, err
	}
	total := dataSize(c.dataspace, c.datatype)
	if total == 0 {
		return nil, nil
	}
	out := make([]byte, total)
	if c.reader.IsUndefinedOffset(c.layout.ChunkIndexAddr) {
		return out, nil
	}

	elemSize := uint64(c.datatype.Size)
	chunkBytes := elemSize
	for _, n := range chunkDims {
		chunkBytes *= uint64(n)
	}

	entries, err := c.entries(dims, chunkDims, chunkBytes)
	if err != nil {
		return nil, err
	}

	dstStrides := rowMajorStrides(dims, elemSize)
	extents := make([]uint64, len(chunkDims))
	for d, n := range chunkDims {
		extents[d] = uint64(n)
	}
	srcStrides := rowMajorStrides(extents, elemSize)

	for _, e := range entries {
		if e.Address == 0 || c.reader.IsUndefinedOffset(e.Address) {
			continue
		}
		size := uint64(e.Size)
		if size == 0 {
			size = chunkBytes
		}
		data, err := c.reader.At(int64(e.Address)).ReadBytes(int(size))
		if err != nil {
			return nil, fmt.Errorf("reading chunk %v: %w", e.Offset, err)
		}
		if c.pipeline != nil {
			if data, err = c.pipeline.Decode(data, e.FilterMask); err != nil {
				return nil, fmt.Errorf("decoding chunk %v: %w", e.Offset, err)
			}
		}
		scatterChunk(out, data, e.Offset, dims, extents, dstStrides, srcStrides)
	}
	return out, nil
}

// entries lists the stored chunks according to the layout's index type.
func (c *Chunked) entries(dims []uint64, chunkDims []uint32, chunkBytes uint64) ([]btree.ChunkEntry, error) {
	addr := c.layout.ChunkIndexAddr
	if c.layout.Version < 4 {
		entries, err := btree.ReadChunkIndex(c.reader, addr, len(dims))
		if err != nil {
			return nil, fmt.Errorf("reading chunk B-tree: %w", err)
		}
		return entries, nil
	}

	switch c.layout.ChunkIndexType {
	case message.ChunkIndexSingleChunk:
		e := btree.ChunkEntry{Offset: make([]uint64, len(dims)), Address: addr, Size: uint32(chunkBytes)}
		if c.layout.ChunkFlags&message.LayoutFlagSingleIndexWithFilter != 0 {
			e.Size = uint32(c.layout.FilteredChunkSize)
			e.FilterMask = c.layout.SingleFilterMask
		}
		return []btree.ChunkEntry{e}, nil

	case message.ChunkIndexImplicit:
		grid := chunkGrid(dims, chunkDims)
		n := uint64(1)
		for _, g := range grid {
			n *= g
		}
		entries := make([]btree.ChunkEntry, n)
		for i := range entries {
			entries[i] = btree.ChunkEntry{
				Offset:  chunkOrigin(uint64(i), grid, chunkDims),
				Address: addr + uint64(i)*chunkBytes,
				Size:    uint32(chunkBytes),
			}
		}
		return entries, nil

	case message.ChunkIndexFixedArray:
		entries, err := readFixedArray(c.reader, addr, dims, chunkDims)
		if err != nil {
			return nil, fmt.Errorf("reading fixed array index: %w", err)
		}
		return entries, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChunkIndex, c.layout.ChunkIndexType)
	}
}

// scatterChunk copies a decoded chunk whose first element sits at origin into
// the dataset buffer, clipping the parts that overhang the dataset edge.
func scatterChunk(dst, chunk []byte, origin, dims, extents, dstStrides, srcStrides []uint64) {
	span := make([]uint64, len(dims))
	for d := range dims {
		if origin[d] >= dims[d] {
			return
		}
		span[d] = min(extents[d], dims[d]-origin[d])
	}

	var walk func(d int, dstOff, srcOff uint64)
	walk = func(d int, dstOff, srcOff uint64) {
		if d == len(dims)-1 {
			start := dstOff + origin[d]*dstStrides[d]
			n := span[d] * dstStrides[d]
			if srcOff+n <= uint64(len(chunk)) && start+n <= uint64(len(dst)) {
				copy(dst[start:start+n], chunk[srcOff:srcOff+n])
			}
			return
		}
		for i := uint64(0); i < span[d]; i++ {
			walk(d+1, dstOff+(origin[d]+i)*dstStrides[d], srcOff+i*srcStrides[d])
		}
	}
	walk(0, 0, 0)
}
