package heap

import (
	"bytes"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

// LocalHeap is the name store of an old-style group. Symbol table entries
// refer to names by their offset into the data segment.
type LocalHeap struct {
	DataAddress uint64
	FreeOffset  uint64
	data        []byte
}

// ReadLocalHeap reads the version 0 local heap at address and its data
// segment.
func ReadLocalHeap(r *binary.Reader, address uint64) (*LocalHeap, error) {
	hr := r.At(int64(address))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, err)
	}
	if string(head[:4]) != "HEAP" {
		return nil, fmt.Errorf("%w: signature %q at %d", ErrInvalidHeap, head[:4], address)
	}
	if head[4] != 0 {
		return nil, fmt.Errorf("%w: local heap version %d", ErrInvalidHeap, head[4])
	}

	var firstErr error
	field := func(read func() (uint64, error)) uint64 {
		v, err := read()
		if firstErr == nil {
			firstErr = err
		}
		return v
	}
	size := field(hr.ReadLength)
	free := field(hr.ReadLength)
	dataAddr := field(hr.ReadOffset)
	if firstErr != nil {
		return nil, fmt.Errorf("local heap at %d: %w", address, firstErr)
	}

	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &LocalHeap{DataAddress: dataAddr, FreeOffset: free, data: data}, nil
}

// GetString returns the NUL-terminated string at offset, or "" when offset
// is outside the data segment.
func (h *LocalHeap) GetString(offset uint64) string {
	if offset >= uint64(len(h.data)) {
		return ""
	}
	s, _, _ := bytes.Cut(h.data[offset:], []byte{0})
	return string(s)
}
