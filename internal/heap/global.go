package heap

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

const (
	collectionSignature = "GCOL"
	collectionVersion   = 1
)

// collectionHeaderSize covers the signature, version, three reserved bytes
// and the collection size.
func collectionHeaderSize(lengthSize int) int { return 8 + lengthSize }

// objectHeaderSize covers the index, reference count, four reserved bytes
// and the object size.
func objectHeaderSize(lengthSize int) int { return 8 + lengthSize }

// GlobalHeap is one decoded global heap collection.
type GlobalHeap struct {
	Size    uint64
	objects map[uint16][]byte
}

// GlobalHeapID locates one object in a collection.
type GlobalHeapID struct {
	CollectionAddress uint64
	ObjectIndex       uint32
}

// ReadGlobalHeap reads the collection at address. Objects follow the header
// until the free-space object (index 0) or the end of the collection.
func ReadGlobalHeap(r *binary.Reader, address uint64) (*GlobalHeap, error) {
	if address == 0 || r.IsUndefinedOffset(address) {
		return nil, fmt.Errorf("%w: no collection at address %#x", ErrInvalidHeap, address)
	}
	hr := r.At(int64(address))
	head, err := hr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("collection at %d: %w", address, err)
	}
	if string(head[:4]) != collectionSignature {
		return nil, fmt.Errorf("%w: signature %q at %d", ErrInvalidHeap, head[:4], address)
	}
	if head[4] != collectionVersion {
		return nil, fmt.Errorf("%w: collection version %d", ErrInvalidHeap, head[4])
	}
	size, err := hr.ReadLength()
	if err != nil {
		return nil, fmt.Errorf("collection at %d: %w", address, err)
	}

	lengthSize := r.LengthSize()
	if size < uint64(collectionHeaderSize(lengthSize)) {
		return nil, fmt.Errorf("%w: collection of %d bytes", ErrInvalidHeap, size)
	}
	body, err := hr.ReadBytes(int(size) - collectionHeaderSize(lengthSize))
	if err != nil {
		return nil, fmt.Errorf("collection at %d: %w", address, err)
	}

	h := &GlobalHeap{Size: size, objects: make(map[uint16][]byte)}
	for pos := 0; pos+objectHeaderSize(lengthSize) <= len(body); {
		index := stdbinary.LittleEndian.Uint16(body[pos:])
		if index == 0 {
			break
		}
		n := uintLE(body[pos+8 : pos+objectHeaderSize(lengthSize)])
		start := pos + objectHeaderSize(lengthSize)
		if n > uint64(len(body)-start) {
			return nil, fmt.Errorf("%w: object %d overruns collection at %d", ErrInvalidHeap, index, address)
		}
		h.objects[index] = body[start : start+int(n)]
		pos = start + int(n) + pad8(int(n))
	}
	return h, nil
}

// GetObject returns a copy of the object at index.
func (h *GlobalHeap) GetObject(index uint16) ([]byte, error) {
	if h == nil {
		return nil, fmt.Errorf("nil global heap")
	}
	data, ok := h.objects[index]
	if !ok {
		return nil, fmt.Errorf("object %d not in collection", index)
	}
	return bytes.Clone(data), nil
}

// GetString returns the object at index up to its first NUL.
func (h *GlobalHeap) GetString(index uint16) (string, error) {
	data, err := h.GetObject(index)
	if err != nil {
		return "", err
	}
	s, _, _ := bytes.Cut(data, []byte{0})
	return string(s), nil
}

// ParseGlobalHeapID decodes a collection address of offsetSize bytes and a
// 32-bit object index.
func ParseGlobalHeapID(data []byte, offsetSize int) (GlobalHeapID, error) {
	if offsetSize < 1 || offsetSize > 8 {
		return GlobalHeapID{}, fmt.Errorf("unsupported offset size %d", offsetSize)
	}
	if len(data) < offsetSize+4 {
		return GlobalHeapID{}, fmt.Errorf("global heap ID needs %d bytes, have %d", offsetSize+4, len(data))
	}
	return GlobalHeapID{
		CollectionAddress: uintLE(data[:offsetSize]),
		ObjectIndex:       stdbinary.LittleEndian.Uint32(data[offsetSize:]),
	}, nil
}
