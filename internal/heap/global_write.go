package heap

import (
	stdbinary "encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

const (
	// minCollectionSize is the smallest collection the HDF5 library creates.
	minCollectionSize = 4096
	// maxCollectionBytes caps the object data of one collection.
	maxCollectionBytes = 4 << 20
	// maxObjectsPerCollection is bounded by the 16-bit object index.
	maxObjectsPerCollection = 0xFFFF
)

// StringWriter stores variable-length strings in global heap collections
// and packs the references datasets and attributes hold. Each distinct
// string is written once per file; known strings are found by their xxhash
// digest.
type StringWriter struct {
	w     *binary.Writer
	alloc func(size int64) uint64
	seen  map[uint64][]storedString
}

type storedString struct {
	s  string
	id GlobalHeapID
}

// NewStringWriter returns a writer placing collections at addresses handed
// out by alloc.
func NewStringWriter(w *binary.Writer, alloc func(size int64) uint64) *StringWriter {
	return &StringWriter{w: w, alloc: alloc, seen: make(map[uint64][]storedString)}
}

// ReferenceSize is the size of one packed reference: a 32-bit length, the
// collection address and a 32-bit object index.
func (sw *StringWriter) ReferenceSize() int { return 8 + sw.w.OffsetSize() }

// Encode writes the strings of strs not yet in the file and returns their
// references in order. Empty strings get a null reference.
func (sw *StringWriter) Encode(strs []string) ([]byte, error) {
	ids := make([]GlobalHeapID, len(strs))
	waiting := make(map[string][]int)
	var fresh []string
	for i, s := range strs {
		if s == "" {
			continue
		}
		if id, ok := sw.lookup(s); ok {
			ids[i] = id
			continue
		}
		if _, ok := waiting[s]; !ok {
			fresh = append(fresh, s)
		}
		waiting[s] = append(waiting[s], i)
	}

	for len(fresh) > 0 {
		n := collectionFill(fresh, sw.w.LengthSize())
		addr, err := sw.writeCollection(fresh[:n])
		if err != nil {
			return nil, err
		}
		for j, s := range fresh[:n] {
			id := GlobalHeapID{CollectionAddress: addr, ObjectIndex: uint32(j + 1)}
			h := xxhash.Sum64String(s)
			sw.seen[h] = append(sw.seen[h], storedString{s: s, id: id})
			for _, i := range waiting[s] {
				ids[i] = id
			}
		}
		fresh = fresh[n:]
	}

	out := make([]byte, 0, len(strs)*sw.ReferenceSize())
	for i, s := range strs {
		out = stdbinary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = appendUint(out, ids[i].CollectionAddress, sw.w.OffsetSize())
		out = stdbinary.LittleEndian.AppendUint32(out, ids[i].ObjectIndex)
	}
	return out, nil
}

func (sw *StringWriter) lookup(s string) (GlobalHeapID, bool) {
	for _, st := range sw.seen[xxhash.Sum64String(s)] {
		if st.s == s {
			return st.id, true
		}
	}
	return GlobalHeapID{}, false
}

// objectSize is the stored size of an object holding n bytes.
func objectSize(n, lengthSize int) int {
	return objectHeaderSize(lengthSize) + n + pad8(n)
}

// collectionFill returns how many leading strings go into one collection.
// The first string is always taken, however large.
func collectionFill(strs []string, lengthSize int) int {
	total := 0
	for i, s := range strs {
		total += objectSize(len(s), lengthSize)
		if i > 0 && (total > maxCollectionBytes || i >= maxObjectsPerCollection) {
			return i
		}
	}
	return len(strs)
}

// writeCollection writes objs at indices 1..n. Space left at the end goes to
// a free-space object (index 0) when it can hold the object header.
func (sw *StringWriter) writeCollection(objs []string) (uint64, error) {
	lengthSize := sw.w.LengthSize()
	used := collectionHeaderSize(lengthSize)
	for _, s := range objs {
		used += objectSize(len(s), lengthSize)
	}
	size := max(used, minCollectionSize)
	size += pad8(size)

	buf := make([]byte, 0, size)
	buf = append(buf, collectionSignature...)
	buf = append(buf, collectionVersion, 0, 0, 0)
	buf = appendUint(buf, uint64(size), lengthSize)
	for i, s := range objs {
		buf = appendObjectHeader(buf, uint16(i+1), 1, len(s), lengthSize)
		buf = append(buf, s...)
		buf = append(buf, make([]byte, pad8(len(s)))...)
	}
	if free := size - used; free >= objectHeaderSize(lengthSize) {
		buf = appendObjectHeader(buf, 0, 0, free, lengthSize)
	}
	buf = buf[:size]

	addr := sw.alloc(int64(size))
	if err := sw.w.At(int64(addr)).WriteBytes(buf); err != nil {
		return 0, fmt.Errorf("writing global heap collection: %w", err)
	}
	return addr, nil
}

func appendObjectHeader(b []byte, index, refCount uint16, size, lengthSize int) []byte {
	b = stdbinary.LittleEndian.AppendUint16(b, index)
	b = stdbinary.LittleEndian.AppendUint16(b, refCount)
	b = append(b, 0, 0, 0, 0)
	return appendUint(b, uint64(size), lengthSize)
}
