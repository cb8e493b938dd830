package filter

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

// LZ4 implements the registered HDF5 LZ4 filter (ID 32004).
//
// Chunk format: 8-byte big-endian original size, 4-byte big-endian block
// size, then for every block a 4-byte big-endian compressed size followed by
// the raw LZ4 block. A block whose compressed size equals its plain size is
// stored uncompressed.
type LZ4 struct {
	blockSize int
}

// NewLZ4 creates a new LZ4 filter. Client data: [0] = block size (optional).
func NewLZ4(clientData []uint32) *LZ4 {
	bs := 1 << 30
	if len(clientData) > 0 && clientData[0] > 0 {
		bs = int(clientData[0])
	}
	return &LZ4{blockSize: bs}
}

func (f *LZ4) ID() uint16 { return message.FilterLZ4 }

func (f *LZ4) Decode(input []byte) ([]byte, error) {
	if len(input) < 12 {
		return nil, fmt.Errorf("lz4: chunk too short (%d bytes)", len(input))
	}
	origSize := binary.BigEndian.Uint64(input[0:8])
	blockSize := uint64(binary.BigEndian.Uint32(input[8:12]))
	if blockSize == 0 {
		return nil, fmt.Errorf("lz4: zero block size")
	}

	output := make([]byte, origSize)
	pos := 12
	for written := uint64(0); written < origSize; {
		plain := blockSize
		if origSize-written < plain {
			plain = origSize - written
		}
		if pos+4 > len(input) {
			return nil, fmt.Errorf("lz4: truncated block header at %d", pos)
		}
		compSize := int(binary.BigEndian.Uint32(input[pos:]))
		pos += 4
		if pos+compSize > len(input) {
			return nil, fmt.Errorf("lz4: truncated block at %d", pos)
		}
		block := input[pos : pos+compSize]
		dst := output[written : written+plain]
		if uint64(compSize) == plain {
			copy(dst, block)
		} else {
			n, err := lz4.UncompressBlock(block, dst)
			if err != nil {
				return nil, fmt.Errorf("lz4: %w", err)
			}
			if uint64(n) != plain {
				return nil, fmt.Errorf("lz4: block decoded to %d bytes, want %d", n, plain)
			}
		}
		pos += compSize
		written += plain
	}
	return output, nil
}
