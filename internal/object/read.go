package object

import (
	"bytes"
	stdbinary "encoding/binary"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// decoder collects the messages of one header across its continuation
// blocks. seen guards against continuation cycles in damaged files.
type decoder struct {
	r    *binary.Reader
	h    *Header
	seen map[uint64]bool
}

// readV1 decodes a version 1 header: a 16-byte prefix followed by
// 8-byte-aligned messages.
func (d *decoder) readV1(addr uint64) error {
	prefix, err := d.r.At(int64(addr)).ReadBytes(16)
	if err != nil {
		return err
	}
	d.h.Version = 1
	d.h.RefCount = stdbinary.LittleEndian.Uint32(prefix[4:8])
	size := stdbinary.LittleEndian.Uint32(prefix[8:12])

	block, err := d.r.At(int64(addr) + 16).ReadBytes(int(size))
	if err != nil {
		return err
	}
	return d.blockV1(block)
}

func (d *decoder) blockV1(block []byte) error {
	for pos := 0; pos+8 <= len(block); {
		typ := message.Type(stdbinary.LittleEndian.Uint16(block[pos:]))
		size := int(stdbinary.LittleEndian.Uint16(block[pos+2:]))
		flags := block[pos+4]
		pos += 8
		if pos+size > len(block) {
			return fmt.Errorf("%w: message %d overruns its block", ErrInvalidHeader, typ)
		}
		if err := d.add(typ, flags, block[pos:pos+size], d.continueV1); err != nil {
			return err
		}
		pos += (size + 7) &^ 7
	}
	return nil
}

func (d *decoder) continueV1(c *message.Continuation) error {
	block, err := d.r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return err
	}
	return d.blockV1(block)
}

// readV2 decodes a checksummed version 2 header.
func (d *decoder) readV2(addr uint64) error {
	hr := d.r.At(int64(addr))
	fixed, err := hr.ReadBytes(6)
	if err != nil {
		return err
	}
	if fixed[4] != 2 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, fixed[4])
	}
	d.h.Version = 2
	d.h.Flags = fixed[5]

	n := 0
	if d.h.Flags&flagTimes != 0 {
		n += 16
	}
	if d.h.Flags&flagPhaseChange != 0 {
		n += 4
	}
	width := 1 << (d.h.Flags & flagChunkSizeWidth)
	rest, err := hr.ReadBytes(n + width)
	if err != nil {
		return err
	}
	if d.h.Flags&flagTimes != 0 {
		d.h.ModTime = stdbinary.LittleEndian.Uint32(rest[4:8])
	}
	var chunkSize uint64
	for i := width - 1; i >= 0; i-- {
		chunkSize = chunkSize<<8 | uint64(rest[n+i])
	}

	body, err := hr.ReadBytes(int(chunkSize) + 4)
	if err != nil {
		return err
	}
	head := make([]byte, 0, 6+len(rest)+len(body))
	head = append(append(append(head, fixed...), rest...), body...)
	if err := verify(head); err != nil {
		return err
	}
	return d.blockV2(body[:chunkSize])
}

func (d *decoder) blockV2(block []byte) error {
	entry := 4
	if d.h.Flags&flagCreationOrder != 0 {
		entry += 2
	}
	// A tail shorter than a message prefix is a gap.
	for pos := 0; pos+entry <= len(block); {
		typ := message.Type(block[pos])
		size := int(stdbinary.LittleEndian.Uint16(block[pos+1:]))
		flags := block[pos+3]
		pos += entry
		if pos+size > len(block) {
			return fmt.Errorf("%w: message %d overruns its block", ErrInvalidHeader, typ)
		}
		if err := d.add(typ, flags, block[pos:pos+size], d.continueV2); err != nil {
			return err
		}
		pos += size
	}
	return nil
}

func (d *decoder) continueV2(c *message.Continuation) error {
	block, err := d.r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return err
	}
	if len(block) < 8 || !bytes.Equal(block[:4], signatureContinuation) {
		return fmt.Errorf("%w: continuation block at %d lacks OCHK", ErrInvalidHeader, c.Offset)
	}
	if err := verify(block); err != nil {
		return err
	}
	return d.blockV2(block[4 : len(block)-4])
}

// add parses one message and appends it, following continuations.
func (d *decoder) add(typ message.Type, flags uint8, data []byte, follow func(*message.Continuation) error) error {
	if typ == message.TypeNIL {
		return nil
	}
	msg, err := message.Parse(typ, data, flags, d.r)
	if err != nil {
		return nil
	}
	c, ok := msg.(*message.Continuation)
	if !ok {
		d.h.Messages = append(d.h.Messages, msg)
		return nil
	}
	if d.seen[c.Offset] {
		return fmt.Errorf("%w: continuation cycle at %d", ErrInvalidHeader, c.Offset)
	}
	d.seen[c.Offset] = true
	return follow(c)
}

// verify checks the trailing lookup3 checksum of a version 2 block.
func verify(block []byte) error {
	end := len(block) - 4
	if binary.Lookup3Checksum(block[:end]) != stdbinary.LittleEndian.Uint32(block[end:]) {
		return ErrChecksumMismatch
	}
	return nil
}
