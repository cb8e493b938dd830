package message

import "fmt"

// LayoutClass represents the storage layout class.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType is the chunk indexing scheme of a version 4 chunked layout.
// Layout versions 1 to 3 always index chunks with a version 1 B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingleChunk     ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

func (t ChunkIndexType) String() string {
	switch t {
	case ChunkIndexBTreeV1:
		return "btree-v1"
	case ChunkIndexSingleChunk:
		return "single-chunk"
	case ChunkIndexImplicit:
		return "implicit"
	case ChunkIndexFixedArray:
		return "fixed-array"
	case ChunkIndexExtensibleArray:
		return "extensible-array"
	case ChunkIndexBTreeV2:
		return "btree-v2"
	default:
		return fmt.Sprintf("chunk-index(%d)", uint8(t))
	}
}

// Chunked layout flags (version 4).
const (
	LayoutFlagDontFilterPartialChunks = 0x01
	LayoutFlagSingleIndexWithFilter   = 0x02
)

// DataLayout represents a data layout message (type 0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	// Contiguous storage. Size is zero for version 1 and 2 messages, which
	// do not record it.
	Address uint64
	Size    uint64

	// ChunkDims holds the chunk shape followed by the element size in bytes.
	ChunkDims          []uint32
	ChunkIndexAddr     uint64
	ChunkIndexType     ChunkIndexType
	ChunkFlags         uint8
	DimensionSizeBytes uint8

	// Filtered single-chunk index (version 4).
	FilteredChunkSize uint64
	SingleFilterMask  uint32

	// PageBits is the fixed array page size exponent.
	PageBits uint8

	// Extensible array and v2 B-tree index parameters are kept verbatim so
	// the message round-trips.
	IndexParams []byte
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

// IsCompact returns true if data is stored in the object header.
func (m *DataLayout) IsCompact() bool { return m.Class == LayoutCompact }

// IsContiguous returns true if data is stored contiguously.
func (m *DataLayout) IsContiguous() bool { return m.Class == LayoutContiguous }

// IsChunked returns true if data is stored in chunks.
func (m *DataLayout) IsChunked() bool { return m.Class == LayoutChunked }

// Versions 1 and 2 store a dimensionality, the class, five reserved bytes,
// an address unless compact, the dimension sizes and, for compact storage,
// the inline data. Version 3 and 4 bodies depend on the class.
func parseDataLayout(c *cursor) *DataLayout {
	m := &DataLayout{Version: c.u8()}
	switch m.Version {
	case 1, 2:
		parseLayoutV1(c, m)
	case 3, 4:
		parseLayoutV3(c, m)
	default:
		c.fail("unsupported data layout version %d", m.Version)
	}
	return m
}

func parseLayoutV1(c *cursor, m *DataLayout) {
	ndims := int(c.u8())
	m.Class = LayoutClass(c.u8())
	c.skip(5)
	if m.Class != LayoutCompact {
		m.Address = c.offset()
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		dims[i] = c.u32()
	}
	switch m.Class {
	case LayoutChunked:
		m.ChunkDims = dims
		m.ChunkIndexAddr = m.Address
		m.Address = 0
	case LayoutCompact:
		m.CompactData = append([]byte(nil), c.take(int(c.u32()))...)
	}
}

func parseLayoutV3(c *cursor, m *DataLayout) {
	m.Class = LayoutClass(c.u8())
	switch m.Class {
	case LayoutCompact:
		m.CompactData = append([]byte(nil), c.take(int(c.u16()))...)
	case LayoutContiguous:
		m.Address = c.offset()
		m.Size = c.length()
	case LayoutChunked:
		if m.Version == 3 {
			ndims := int(c.u8())
			m.ChunkIndexAddr = c.offset()
			m.ChunkDims = make([]uint32, ndims)
			for i := range m.ChunkDims {
				m.ChunkDims[i] = c.u32()
			}
			m.DimensionSizeBytes = 4
			return
		}
		parseChunkedV4(c, m)
	case LayoutVirtual:
		c.fail("virtual datasets are not supported")
	default:
		c.fail("unknown layout class %d", m.Class)
	}
}

func parseChunkedV4(c *cursor, m *DataLayout) {
	m.ChunkFlags = c.u8()
	ndims := int(c.u8())
	m.DimensionSizeBytes = c.u8()
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		m.ChunkDims[i] = uint32(c.uint(int(m.DimensionSizeBytes)))
	}
	m.ChunkIndexType = ChunkIndexType(c.u8())

	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&LayoutFlagSingleIndexWithFilter != 0 {
			m.FilteredChunkSize = c.length()
			m.SingleFilterMask = c.u32()
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		m.PageBits = c.u8()
	case ChunkIndexExtensibleArray:
		m.IndexParams = append([]byte(nil), c.take(5)...)
	case ChunkIndexBTreeV2:
		m.IndexParams = append([]byte(nil), c.take(6)...)
	default:
		c.fail("unknown chunk index type %d", m.ChunkIndexType)
		return
	}
	m.ChunkIndexAddr = c.offset()
}

func (c LayoutClass) String() string {
	switch c {
	case LayoutCompact:
		return "compact"
	case LayoutContiguous:
		return "contiguous"
	case LayoutChunked:
		return "chunked"
	case LayoutVirtual:
		return "virtual"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}
