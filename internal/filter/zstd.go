package filter

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

// zstdDecoder is shared; DecodeAll is safe for concurrent use.
var zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))

// Zstd implements the registered HDF5 Zstandard filter (ID 32015).
// Each chunk is a single zstd frame.
type Zstd struct{}

// NewZstd creates a new Zstandard filter. The client data carries the
// compression level, which does not matter for decoding.
func NewZstd(clientData []uint32) *Zstd {
	return &Zstd{}
}

func (f *Zstd) ID() uint16 { return message.FilterZstd }

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
