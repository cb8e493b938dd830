package superblock

import (
	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

// NewSuperblock returns a version 3 superblock with 8-byte fields.
func NewSuperblock() *Superblock {
	return &Superblock{Version: 3, OffsetSize: 8, LengthSize: 8}
}

// Size is the encoded size of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return len(Signature) + 4 + 4*o + 4
}

// Write encodes the superblock at w's position as version 2 or 3 and
// returns the number of bytes written. A zero extension address is written
// as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	version := max(sb.Version, 2)
	o := w.OffsetSize()

	buf := make([]byte, 0, sb.Size())
	buf = append(buf, Signature...)
	buf = append(buf, version, sb.OffsetSize, sb.LengthSize, sb.FileConsistencyFlags)

	ext := sb.SuperblockExtensionAddress
	if ext == 0 {
		ext = w.UndefinedOffset()
	}
	for _, addr := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		buf = appendUint(buf, addr, o)
	}
	buf = appendUint(buf, uint64(binpkg.Lookup3Checksum(buf)), 4)

	if err := w.WriteBytes(buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

func appendUint(buf []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		buf = append(buf, byte(v>>(8*i)))
	}
	return buf
}
