package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// maxSize bounds the largest superblock (version 1 with 8-byte offsets and
// the root symbol table entry).
const maxSize = 128

// Superblock holds the file-level metadata needed to read the rest of a file.
type Superblock struct {
	Version    uint8
	OffsetSize uint8
	LengthSize uint8

	// FileConsistencyFlags is only stored by version 2 and later.
	FileConsistencyFlags uint8

	BaseAddress                uint64
	SuperblockExtensionAddress uint64
	EOFAddress                 uint64
	RootGroupAddress           uint64

	// B-tree ranks, versions 0 and 1 only.
	GroupLeafNodeK     uint16
	GroupInternalNodeK uint16
	IndexedStorageK    uint16

	// Cached root group symbol table, versions 0 and 1 only. Zero when the
	// root entry carries no cache.
	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	ByteOrder binary.ByteOrder

	// FileOffset is where the signature was found.
	FileOffset int64
}

// ReaderConfig returns the reader configuration the file's metadata needs.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  sb.ByteOrder,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

// Read locates and decodes the superblock of r.
func Read(r io.ReaderAt) (*Superblock, error) {
	for _, off := range searchOffsets {
		buf := make([]byte, maxSize)
		n, err := r.ReadAt(buf, off)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = buf[:n]
		if len(buf) <= len(Signature) || !bytes.Equal(buf[:len(Signature)], Signature) {
			continue
		}

		sb, err := decode(buf)
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// cursor walks the little-endian fields of a superblock buffer.
type cursor struct {
	buf []byte
	pos int
	ok  bool
}

func (c *cursor) skip(n int) {
	if c.pos+n > len(c.buf) {
		c.ok = false
	}
	c.pos += n
}

func (c *cursor) uint(n int) uint64 {
	if !c.ok || c.pos+n > len(c.buf) {
		c.ok = false
		return 0
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(c.buf[c.pos+i])
	}
	c.pos += n
	return v
}

func (c *cursor) u8() uint8 { return uint8(c.uint(1)) }

func (c *cursor) u16() uint16 { return uint16(c.uint(2)) }

func decode(buf []byte) (*Superblock, error) {
	c := &cursor{buf: buf, pos: len(Signature), ok: true}
	sb := &Superblock{Version: c.u8(), ByteOrder: binary.LittleEndian}

	switch sb.Version {
	case 0, 1:
		decodeV0(c, sb)
	case 2, 3:
		if err := decodeV2(c, sb); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, sb.Version)
	}
	if !c.ok {
		return nil, fmt.Errorf("%w: truncated version %d superblock", ErrInvalidSuperblock, sb.Version)
	}
	return sb, nil
}

// decodeV0 reads versions 0 and 1. Version 1 adds the indexed storage rank
// and two reserved bytes after the consistency flags.
func decodeV0(c *cursor, sb *Superblock) {
	c.skip(4) // free-space, root entry and shared header versions, reserved
	sb.OffsetSize = c.u8()
	sb.LengthSize = c.u8()
	c.skip(1)
	sb.GroupLeafNodeK = c.u16()
	sb.GroupInternalNodeK = c.u16()
	c.skip(4)
	if sb.Version == 1 {
		sb.IndexedStorageK = c.u16()
		c.skip(2)
	}
	if !validWidth(sb.OffsetSize) || !validWidth(sb.LengthSize) {
		c.ok = false
		return
	}

	o := int(sb.OffsetSize)
	sb.BaseAddress = c.uint(o)
	c.skip(o) // free-space info
	sb.EOFAddress = c.uint(o)
	c.skip(o) // driver info

	// Root group symbol table entry.
	c.skip(o) // link name offset
	sb.RootGroupAddress = c.uint(o)
	cacheType := c.uint(4)
	c.skip(4)
	if cacheType == 1 {
		sb.RootGroupBTreeAddress = c.uint(o)
		sb.RootGroupLocalHeapAddress = c.uint(o)
	}
}

func decodeV2(c *cursor, sb *Superblock) error {
	sb.OffsetSize = c.u8()
	sb.LengthSize = c.u8()
	sb.FileConsistencyFlags = c.u8()
	if !validWidth(sb.OffsetSize) || !validWidth(sb.LengthSize) {
		return fmt.Errorf("%w: field widths %d/%d", ErrInvalidSuperblock, sb.OffsetSize, sb.LengthSize)
	}

	o := int(sb.OffsetSize)
	sb.BaseAddress = c.uint(o)
	sb.SuperblockExtensionAddress = c.uint(o)
	sb.EOFAddress = c.uint(o)
	sb.RootGroupAddress = c.uint(o)
	end := c.pos
	stored := uint32(c.uint(4))
	if !c.ok {
		return nil
	}
	if binpkg.Lookup3Checksum(c.buf[:end]) != stored {
		return fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}
	return nil
}

func validWidth(n uint8) bool {
	return n == 2 || n == 4 || n == 8
}
