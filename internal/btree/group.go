package btree

import (
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/heap"
)

// GroupEntry is one member of a symbol-table group.
type GroupEntry struct {
	Name          string
	ObjectAddress uint64
	// Soft entries name their target path in SoftLinkValue and carry no
	// object address.
	Soft          bool
	SoftLinkValue string
}

// cacheSoftLink is the symbol table entry cache type of a soft link.
const cacheSoftLink = 2

// ReadGroupEntries lists the members of the group whose B-tree is at addr,
// resolving names through names.
func ReadGroupEntries(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	var entries []GroupEntry
	err := walkLeaves(r, addr, nodeGroup, r.LengthSize(), 0, func(_ []byte, snod uint64) error {
		got, err := readSymbolNode(r, snod, names)
		if err != nil {
			return fmt.Errorf("symbol table node at %d: %w", snod, err)
		}
		entries = append(entries, got...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func readSymbolNode(r *binary.Reader, addr uint64, names *heap.LocalHeap) ([]GroupEntry, error) {
	nr := r.At(int64(addr))
	prefix, err := nr.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	if string(prefix[:4]) != "SNOD" {
		return nil, fmt.Errorf("%w: signature %q", ErrInvalidNode, prefix[:4])
	}
	if prefix[4] != 1 {
		return nil, fmt.Errorf("%w: symbol node version %d", ErrInvalidNode, prefix[4])
	}
	count := int(stdbinary.LittleEndian.Uint16(prefix[6:]))

	o := r.OffsetSize()
	entrySize := 2*o + 8 + 16
	raw, err := nr.ReadBytes(count * entrySize)
	if err != nil {
		return nil, err
	}

	entries := make([]GroupEntry, 0, count)
	for i := 0; i < count; i++ {
		b := raw[i*entrySize:]
		e := GroupEntry{
			Name:          names.GetString(uintN(b, o)),
			ObjectAddress: uintN(b[o:], o),
		}
		if e.Name == "" {
			continue
		}
		if stdbinary.LittleEndian.Uint32(b[2*o:]) == cacheSoftLink {
			e.Soft = true
			e.SoftLinkValue = names.GetString(uint64(stdbinary.LittleEndian.Uint32(b[2*o+8:])))
			e.ObjectAddress = 0
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func uintN(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
