// Package heap reads and writes the two HDF5 heaps this module meets: the
// local heap ("HEAP") that holds member names of old-style groups, and the
// global heap collections ("GCOL") that hold variable-length strings.
//
// A variable-length element points at its bytes through a [GlobalHeapID],
// the collection address followed by a 32-bit object index. [StringWriter]
// stores each distinct string once per file and packs those references.
package heap

import "errors"

// ErrInvalidHeap is wrapped by errors about malformed heap blocks.
var ErrInvalidHeap = errors.New("invalid heap")

// uintLE decodes a little-endian unsigned integer of len(b) bytes.
func uintLE(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// appendUint appends the low n bytes of v, little-endian.
func appendUint(b []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}

func pad8(n int) int { return (8 - n%8) % 8 }
