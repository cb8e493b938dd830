package filter

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Deflate is the zlib filter. Its client data holds the level; anything out
// of range means the default level.
type Deflate struct {
	level int
}

func NewDeflate(clientData []uint32) *Deflate {
	d := &Deflate{level: zlib.DefaultCompression}
	if len(clientData) > 0 && clientData[0] <= zlib.BestCompression {
		d.level = int(clientData[0])
	}
	return d
}

func (d *Deflate) ID() uint16 { return message.FilterDeflate }

func (d *Deflate) Decode(in []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	out.Grow(4 * len(in))
	if _, err := io.Copy(&out, zr); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out.Bytes(), nil
}

func (d *Deflate) Encode(in []byte) ([]byte, error) {
	var out bytes.Buffer
	zw, err := zlib.NewWriterLevel(&out, d.level)
	if err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	if _, err := zw.Write(in); err != nil {
		return nil, fmt.Errorf("deflate: %w", errors.Join(err, zw.Close()))
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("deflate: %w", err)
	}
	return out.Bytes(), nil
}
