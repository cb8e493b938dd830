package message

import (
	"bytes"
	"encoding/binary"
	"fmt"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

// cursor reads consecutive little-endian fields of a message body and keeps
// the first overrun. Later reads return zero values.
type cursor struct {
	buf        []byte
	pos        int
	offsetSize int
	lengthSize int
	err        error
}

func newCursor(data []byte, r *binpkg.Reader) *cursor {
	c := &cursor{buf: data, offsetSize: 8, lengthSize: 8}
	if r != nil {
		c.offsetSize, c.lengthSize = r.OffsetSize(), r.LengthSize()
	}
	return c
}

// sub returns a cursor over the next n bytes and advances past them.
func (c *cursor) sub(n int) *cursor {
	b := c.take(n)
	return &cursor{buf: b, offsetSize: c.offsetSize, lengthSize: c.lengthSize, err: c.err}
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.buf) {
		c.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrTruncated, n, c.pos, len(c.buf))
		return nil
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) skip(n int) { c.take(n) }

// align skips to the next multiple of n from the start of the body.
func (c *cursor) align(n int) {
	if r := c.pos % n; r != 0 {
		c.skip(n - r)
	}
}

func (c *cursor) uint(n int) uint64 {
	b := c.take(n)
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func (c *cursor) u8() uint8   { return uint8(c.uint(1)) }
func (c *cursor) u16() uint16 { return uint16(c.uint(2)) }
func (c *cursor) u32() uint32 { return uint32(c.uint(4)) }

func (c *cursor) offset() uint64 { return c.uint(c.offsetSize) }
func (c *cursor) length() uint64 { return c.uint(c.lengthSize) }

// str reads an n-byte field and cuts it at the first NUL.
func (c *cursor) str(n int) string {
	b := c.take(n)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// cstr reads a NUL-terminated string and its terminator.
func (c *cursor) cstr() string {
	if c.err != nil {
		return ""
	}
	i := bytes.IndexByte(c.buf[c.pos:], 0)
	if i < 0 {
		c.err = fmt.Errorf("%w: unterminated string at offset %d", ErrTruncated, c.pos)
		return ""
	}
	s := string(c.buf[c.pos : c.pos+i])
	c.pos += i + 1
	return s
}

// rest returns a copy of the unread bytes.
func (c *cursor) rest() []byte {
	if c.err != nil || c.pos >= len(c.buf) {
		return nil
	}
	b := append([]byte(nil), c.buf[c.pos:]...)
	c.pos = len(c.buf)
	return b
}

func (c *cursor) remaining() int {
	if c.err != nil {
		return 0
	}
	return len(c.buf) - c.pos
}

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

// encoder appends little-endian message fields.
type encoder struct {
	buf        []byte
	offsetSize int
	lengthSize int
}

func (e *encoder) u8(vs ...uint8) { e.buf = append(e.buf, vs...) }
func (e *encoder) u16(v uint16)   { e.buf = binary.LittleEndian.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32)   { e.buf = binary.LittleEndian.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64)   { e.buf = binary.LittleEndian.AppendUint64(e.buf, v) }

func (e *encoder) uint(v uint64, n int) {
	for i := 0; i < n; i++ {
		e.buf = append(e.buf, byte(v>>(8*i)))
	}
}

func (e *encoder) offset(v uint64) { e.uint(v, e.offsetSize) }
func (e *encoder) length(v uint64) { e.uint(v, e.lengthSize) }
func (e *encoder) bytes(b []byte)  { e.buf = append(e.buf, b...) }

// cstr appends s and a NUL terminator.
func (e *encoder) cstr(s string) {
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// widthOf is the smallest of 1, 2, 4 or 8 bytes that holds v.
func widthOf(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	}
	return 8
}
