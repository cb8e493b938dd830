package object

import (
	stdbinary "encoding/binary"
	"fmt"
	"math/bits"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// MinGroupChunkSize is the smallest message area given to a group header,
// the same reserve h5py leaves for links added later.
const MinGroupChunkSize = 120

// maxMessageSize is the largest body a version 2 message prefix can carry.
const maxMessageSize = 0xFFFF

type body struct {
	typ  message.Type
	data []byte
}

// EncodeHeader lays out a version 2 object header holding messages, with the
// message area padded to at least minChunk bytes by a NIL message. The
// result does not depend on where it is written.
func EncodeHeader(w *binary.Writer, messages []message.Message, minChunk int) ([]byte, error) {
	bodies := make([]body, 0, len(messages))
	chunk := 0
	for _, msg := range messages {
		data, err := message.Encode(msg, w)
		if err != nil {
			return nil, err
		}
		if len(data) > maxMessageSize {
			return nil, fmt.Errorf("message type %d is %d bytes, over the %d byte limit", msg.Type(), len(data), maxMessageSize)
		}
		bodies = append(bodies, body{msg.Type(), data})
		chunk += 4 + len(data)
	}
	if chunk < minChunk {
		// the filler needs room for its own prefix
		filler := max(minChunk, chunk+4) - chunk - 4
		bodies = append(bodies, body{message.TypeNIL, make([]byte, filler)})
		chunk += 4 + filler
	}

	width := 8
	switch {
	case chunk <= 0xFF:
		width = 1
	case chunk <= 0xFFFF:
		width = 2
	case chunk <= 0xFFFFFFFF:
		width = 4
	}

	buf := make([]byte, 0, len(SignatureV2)+2+width+chunk+4)
	buf = append(buf, SignatureV2...)
	buf = append(buf, 2, uint8(bits.TrailingZeros(uint(width))))
	for i := 0; i < width; i++ {
		buf = append(buf, byte(chunk>>(8*i)))
	}
	for _, b := range bodies {
		buf = append(buf, uint8(b.typ))
		buf = stdbinary.LittleEndian.AppendUint16(buf, uint16(len(b.data)))
		buf = append(buf, 0)
		buf = append(buf, b.data...)
	}
	return stdbinary.LittleEndian.AppendUint32(buf, binary.Lookup3Checksum(buf)), nil
}

// Write encodes a header and stores it at an address chosen by alloc, which
// is given the encoded size.
func Write(w *binary.Writer, messages []message.Message, minChunk int, alloc func(size int64) uint64) (uint64, error) {
	buf, err := EncodeHeader(w, messages, minChunk)
	if err != nil {
		return 0, err
	}
	addr := alloc(int64(len(buf)))
	if err := w.At(int64(addr)).WriteBytes(buf); err != nil {
		return 0, err
	}
	return addr, nil
}

// NewGroupHeader returns the messages of a new-style group holding links.
func NewGroupHeader(links []*message.Link) []message.Message {
	messages := []message.Message{message.NewLinkInfo(), message.NewGroupInfo()}
	for _, l := range links {
		messages = append(messages, l)
	}
	return messages
}

// NewDatasetHeader returns the messages every dataset header starts with.
func NewDatasetHeader(dataspace *message.Dataspace, datatype *message.Datatype, layout *message.DataLayout) []message.Message {
	return []message.Message{dataspace, datatype, layout}
}
