package binary

import (
	"encoding/binary"
	"io"
)

// Writer encodes fields into an io.WriterAt at a cursor.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(w io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: w, cfg: cfg}
}

// At returns a writer over the same destination positioned at offset.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: offset}
}

func (w *Writer) Pos() int64 { return w.pos }

// Skip moves the cursor n bytes forward without writing.
func (w *Writer) Skip(n int64) { w.pos += n }

func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteZeros writes n zero bytes.
func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// WriteUintN writes v as an n-byte unsigned integer.
func (w *Writer) WriteUintN(v uint64, n int) error {
	buf := make([]byte, n)
	w.cfg.encode(buf, v)
	return w.WriteBytes(buf)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

// WriteOffset writes a file address.
func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }

// WriteLength writes a length field.
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// UndefinedOffset is the all-ones "no address" value for this file.
func (w *Writer) UndefinedOffset() uint64 { return undefined(w.cfg.OffsetSize) }

func (w *Writer) OffsetSize() int { return w.cfg.OffsetSize }

func (w *Writer) LengthSize() int { return w.cfg.LengthSize }

func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }
