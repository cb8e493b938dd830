package message

import "fmt"

// encode writes version 4 for chunked storage unless version 3 was asked
// for, and version 3 otherwise.
func (m *DataLayout) encode(e *encoder) error {
	v4 := m.Class == LayoutChunked && m.Version != 3
	if v4 {
		e.u8(4, uint8(m.Class))
	} else {
		e.u8(3, uint8(m.Class))
	}

	switch m.Class {
	case LayoutCompact:
		if len(m.CompactData) > 0xFFFF {
			return fmt.Errorf("compact data of %d bytes", len(m.CompactData))
		}
		e.u16(uint16(len(m.CompactData)))
		e.bytes(m.CompactData)

	case LayoutContiguous:
		e.offset(m.Address)
		e.length(m.Size)

	case LayoutChunked:
		if !v4 {
			e.u8(uint8(len(m.ChunkDims)))
			e.offset(m.ChunkIndexAddr)
			for _, d := range m.ChunkDims {
				e.u32(d)
			}
			return nil
		}
		return m.encodeChunkedV4(e)

	default:
		return fmt.Errorf("cannot encode %s layout", m.Class)
	}
	return nil
}

func (m *DataLayout) encodeChunkedV4(e *encoder) error {
	width := int(m.DimensionSizeBytes)
	if width == 0 {
		width = 4
	}
	e.u8(m.ChunkFlags, uint8(len(m.ChunkDims)), uint8(width))
	for _, d := range m.ChunkDims {
		e.uint(uint64(d), width)
	}
	e.u8(uint8(m.ChunkIndexType))

	switch m.ChunkIndexType {
	case ChunkIndexSingleChunk:
		if m.ChunkFlags&LayoutFlagSingleIndexWithFilter != 0 {
			e.length(m.FilteredChunkSize)
			e.u32(m.SingleFilterMask)
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		pageBits := m.PageBits
		if pageBits == 0 {
			pageBits = 10
		}
		e.u8(pageBits)
	case ChunkIndexExtensibleArray, ChunkIndexBTreeV2:
		params := make([]byte, 5)
		if m.ChunkIndexType == ChunkIndexBTreeV2 {
			params = make([]byte, 6)
		}
		copy(params, m.IndexParams)
		e.bytes(params)
	default:
		return fmt.Errorf("unknown chunk index type %d", m.ChunkIndexType)
	}
	e.offset(m.ChunkIndexAddr)
	return nil
}

// NewCompactLayout stores data inline in the object header.
func NewCompactLayout(data []byte) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutCompact, CompactData: data}
}

// NewContiguousLayout stores size bytes at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{Version: 3, Class: LayoutContiguous, Address: address, Size: size}
}

// NewChunkedLayout returns a version 4 chunked layout. chunkDims is the chunk
// shape; the element size is appended as the trailing dimension. The caller
// sets ChunkIndexAddr once the index is written.
func NewChunkedLayout(chunkDims []uint32, elementSize uint32, indexType ChunkIndexType) *DataLayout {
	dims := append(append([]uint32(nil), chunkDims...), elementSize)
	var largest uint64
	for _, d := range dims {
		largest = max(largest, uint64(d))
	}
	return &DataLayout{
		Version:            4,
		Class:              LayoutChunked,
		ChunkDims:          dims,
		ChunkIndexType:     indexType,
		DimensionSizeBytes: uint8(widthOf(largest)),
	}
}
