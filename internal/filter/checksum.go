package filter

import (
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Fletcher32 appends a little-endian Fletcher-32 checksum to each chunk.
type Fletcher32 struct{}

func NewFletcher32([]uint32) *Fletcher32 { return &Fletcher32{} }

func (*Fletcher32) ID() uint16 { return message.FilterFletcher32 }

func (*Fletcher32) Decode(in []byte) ([]byte, error) {
	if len(in) < 4 {
		return nil, fmt.Errorf("%w: %d bytes cannot hold a checksum", ErrChecksum, len(in))
	}
	body := in[:len(in)-4]
	stored := stdbinary.LittleEndian.Uint32(in[len(body):])
	if sum := binary.Fletcher32(body); sum != stored {
		return nil, fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksum, stored, sum)
	}
	return body, nil
}

func (*Fletcher32) Encode(in []byte) ([]byte, error) {
	out := make([]byte, len(in), len(in)+4)
	copy(out, in)
	return stdbinary.LittleEndian.AppendUint32(out, binary.Fletcher32(in)), nil
}
