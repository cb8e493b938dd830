package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Layout reads the raw bytes of a dataset.
type Layout interface {
	// Read returns the whole dataset in row-major order.
	Read() ([]byte, error)

	Class() message.LayoutClass
}

// New returns the reader for the storage lm describes. The pipeline is
// only consulted for chunked data.
func New(lm *message.DataLayout, space *message.Dataspace, dt *message.Datatype, pipeline *message.FilterPipeline, r *binary.Reader) (Layout, error) {
	if lm == nil {
		return nil, fmt.Errorf("nil layout message")
	}
	switch lm.Class {
	case message.LayoutCompact:
		return Compact(lm.CompactData), nil
	case message.LayoutContiguous:
		return NewContiguous(lm, space, dt, r), nil
	case message.LayoutChunked:
		return NewChunked(lm, space, dt, pipeline, r)
	}
	return nil, fmt.Errorf("unsupported layout class: %s", lm.Class)
}

// Compact is data stored inside the object header.
type Compact []byte

func (Compact) Class() message.LayoutClass { return message.LayoutCompact }

// Read returns a copy of the inline bytes.
func (c Compact) Read() ([]byte, error) { return append([]byte{}, c...), nil }

// Contiguous is data stored as one block of the file.
type Contiguous struct {
	Address uint64
	Size    uint64
	reader  *binary.Reader
}

// NewContiguous reads the block lm points at. Old layout messages omit the
// size, which then follows from the dataspace and datatype.
func NewContiguous(lm *message.DataLayout, space *message.Dataspace, dt *message.Datatype, r *binary.Reader) *Contiguous {
	c := &Contiguous{Address: lm.Address, Size: lm.Size, reader: r}
	if c.Size == 0 {
		c.Size = dataSize(space, dt)
	}
	return c
}

func (*Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

// Read returns the block. Storage that was never allocated reads as zeros.
func (c *Contiguous) Read() ([]byte, error) {
	if c.reader.IsUndefinedOffset(c.Address) {
		return make([]byte, c.Size), nil
	}
	if c.Size == 0 {
		return []byte{}, nil
	}
	data, err := c.reader.At(int64(c.Address)).ReadBytes(int(c.Size))
	if err != nil {
		return nil, fmt.Errorf("reading contiguous data at %d: %w", c.Address, err)
	}
	return data, nil
}

func dataSize(space *message.Dataspace, dt *message.Datatype) uint64 {
	if space == nil || dt == nil {
		return 0
	}
	return space.NumElements() * uint64(dt.Size)
}

// rowMajorStrides returns the byte stride of each dimension of a row-major
// array with the given extents.
func rowMajorStrides(extents []uint64, elementSize uint64) []uint64 {
	strides := make([]uint64, len(extents))
	if len(extents) == 0 {
		return strides
	}
	strides[len(extents)-1] = elementSize
	for d := len(extents) - 2; d >= 0; d-- {
		strides[d] = strides[d+1] * extents[d+1]
	}
	return strides
}

// chunkGrid is the number of chunks along each dimension.
func chunkGrid(dims []uint64, chunkDims []uint32) []uint64 {
	grid := make([]uint64, len(dims))
	for d := range dims {
		grid[d] = (dims[d] + uint64(chunkDims[d]) - 1) / uint64(chunkDims[d])
	}
	return grid
}

// chunkOrigin converts a linear row-major chunk number into the element
// coordinates of the chunk's first element.
func chunkOrigin(n uint64, grid []uint64, chunkDims []uint32) []uint64 {
	origin := make([]uint64, len(grid))
	for d := len(grid) - 1; d >= 0; d-- {
		origin[d] = (n % grid[d]) * uint64(chunkDims[d])
		n /= grid[d]
	}
	return origin
}
