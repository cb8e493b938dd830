package layout

import (
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/btree"
)

// fixedArrayHeader is the FAHD block of a fixed array chunk index.
type fixedArrayHeader struct {
	clientID      uint8
	entrySize     int
	pageBits      uint8
	numEntries    uint64
	dataBlockAddr uint64
}

func readFixedArrayHeader(r *binary.Reader, addr uint64) (*fixedArrayHeader, error) {
	nr := r.At(int64(addr))
	prefix, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(prefix[:4]) != "FAHD" {
		return nil, fmt.Errorf("bad header signature %q", prefix[:4])
	}
	if prefix[4] != 0 {
		return nil, fmt.Errorf("unsupported header version %d", prefix[4])
	}
	h := &fixedArrayHeader{clientID: prefix[5], entrySize: int(prefix[6]), pageBits: prefix[7]}
	if h.numEntries, err = nr.ReadLength(); err != nil {
		return nil, err
	}
	if h.dataBlockAddr, err = nr.ReadOffset(); err != nil {
		return nil, err
	}
	return h, nil
}

// readFixedArray reads the chunk entries of a fixed array index. Entry i
// belongs to chunk i of the row-major chunk grid. Filtered arrays (client 1)
// carry the stored size and filter mask of each chunk.
func readFixedArray(r *binary.Reader, addr uint64, dims []uint64, chunkDims []uint32) ([]btree.ChunkEntry, error) {
	h, err := readFixedArrayHeader(r, addr)
	if err != nil {
		return nil, err
	}

	sizeWidth := 0
	if h.clientID == 1 {
		sizeWidth = h.entrySize - r.OffsetSize() - 4
		if sizeWidth <= 0 || sizeWidth > 8 {
			return nil, fmt.Errorf("bad filtered entry size %d", h.entrySize)
		}
	}

	nr := r.At(int64(h.dataBlockAddr))
	prefix, err := nr.ReadBytes(6)
	if err != nil {
		return nil, err
	}
	if string(prefix[:4]) != "FADB" {
		return nil, fmt.Errorf("bad data block signature %q", prefix[:4])
	}
	if _, err := nr.ReadOffset(); err != nil {
		return nil, err
	}

	pageSize := uint64(1) << h.pageBits
	paged := h.numEntries > pageSize
	var bitmap []byte
	if paged {
		pages := (h.numEntries + pageSize - 1) / pageSize
		if bitmap, err = nr.ReadBytes(int((pages + 7) / 8)); err != nil {
			return nil, err
		}
		nr.Skip(4) // checksum of the block prefix
	}

	grid := chunkGrid(dims, chunkDims)
	entries := make([]btree.ChunkEntry, 0, h.numEntries)
	for i := uint64(0); i < h.numEntries; i++ {
		if paged && i%pageSize == 0 {
			if i > 0 {
				nr.Skip(4) // checksum of the previous page
			}
			page := i / pageSize
			if bitmap[page/8]&(0x80>>(page%8)) == 0 {
				n := min(pageSize, h.numEntries-i)
				nr.Skip(int64(n) * int64(h.entrySize))
				i += n - 1
				continue
			}
		}

		e := btree.ChunkEntry{Offset: chunkOrigin(i, grid, chunkDims)}
		if e.Address, err = nr.ReadOffset(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if sizeWidth > 0 {
			size, err := nr.ReadUintN(sizeWidth)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			e.Size = uint32(size)
			if e.FilterMask, err = nr.ReadUint32(); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
