// Package binary reads and writes the fixed-width fields of HDF5 metadata.
// Addresses ("offsets") and lengths have a per-file width of 2, 4 or 8
// bytes, taken from the superblock; [Config] carries those widths and the
// byte order to every [Reader] and [Writer].
package binary

import "encoding/binary"

// Config is the field layout of one file.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// DefaultConfig is little-endian with 8-byte offsets and lengths, which is
// what this module writes.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// undefined is the all-ones sentinel for an n-byte field.
func undefined(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*n) - 1
}

func (c Config) decode(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(c.ByteOrder.Uint16(b))
	case 4:
		return uint64(c.ByteOrder.Uint32(b))
	case 8:
		return c.ByteOrder.Uint64(b)
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c Config) encode(b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = uint8(v)
	case 2:
		c.ByteOrder.PutUint16(b, uint16(v))
	case 4:
		c.ByteOrder.PutUint32(b, uint32(v))
	case 8:
		c.ByteOrder.PutUint64(b, v)
	default:
		for i := range b {
			b[i] = byte(v >> (8 * i))
		}
	}
}
