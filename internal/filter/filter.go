// Package filter runs the HDF5 chunk filter pipeline. A chunk is encoded by
// the pipeline's filters in order and decoded in reverse; bit i of a chunk's
// filter mask marks filter i as skipped for that chunk.
//
// Deflate, shuffle and Fletcher-32 work both ways. Chunks written by the
// registered LZ4 and Zstandard plugins can be decoded.
package filter

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Filter decodes one stage of a chunk.
type Filter interface {
	ID() uint16
	Decode(in []byte) ([]byte, error)
}

// Encoder is a Filter that can also write chunks.
type Encoder interface {
	Filter
	Encode(in []byte) ([]byte, error)
}

var (
	// ErrUnsupported is wrapped when a mandatory filter has no
	// implementation.
	ErrUnsupported = errors.New("unsupported filter")
	// ErrChecksum is wrapped when a chunk fails its Fletcher-32 check.
	ErrChecksum = errors.New("chunk checksum mismatch")
)

var constructors = map[uint16]func(clientData []uint32) Filter{
	message.FilterDeflate:    func(cd []uint32) Filter { return NewDeflate(cd) },
	message.FilterShuffle:    func(cd []uint32) Filter { return NewShuffle(cd) },
	message.FilterFletcher32: func(cd []uint32) Filter { return NewFletcher32(cd) },
	message.FilterLZ4:        func(cd []uint32) Filter { return NewLZ4(cd) },
	message.FilterZstd:       func(cd []uint32) Filter { return NewZstd(cd) },
}

var unsupportedNames = map[uint16]string{
	message.FilterSZIP:        "SZIP",
	message.FilterNBit:        "N-bit",
	message.FilterScaleOffset: "scale-offset",
}

// New returns the filter described by info, or nil for an optional filter
// this package does not implement.
func New(info message.FilterInfo) (Filter, error) {
	if mk, ok := constructors[info.ID]; ok {
		return mk(info.ClientData), nil
	}
	if info.IsOptional() {
		return nil, nil
	}
	if name, ok := unsupportedNames[info.ID]; ok {
		return nil, fmt.Errorf("%w: %s (ID %d)", ErrUnsupported, name, info.ID)
	}
	return nil, fmt.Errorf("%w: ID %d", ErrUnsupported, info.ID)
}

// Pipeline is the filter list of one dataset. Optional filters without an
// implementation keep a nil slot so mask bits stay aligned.
type Pipeline struct {
	stages []Filter
}

// NewPipeline builds the pipeline of fp; a nil fp gives an empty pipeline.
func NewPipeline(fp *message.FilterPipeline) (*Pipeline, error) {
	p := &Pipeline{}
	if fp == nil {
		return p, nil
	}
	for i, info := range fp.Filters {
		f, err := New(info)
		if err != nil {
			return nil, fmt.Errorf("pipeline stage %d: %w", i, err)
		}
		p.stages = append(p.stages, f)
	}
	return p, nil
}

// Decode undoes the pipeline on a stored chunk, skipping the stages set in
// mask.
func (p *Pipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	for i := len(p.stages) - 1; i >= 0; i-- {
		f := p.stages[i]
		if f == nil || mask&(1<<uint(i)) != 0 {
			continue
		}
		out, err := f.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
		data = out
	}
	return data, nil
}

// Encode runs every stage in order. All stages must be Encoders.
func (p *Pipeline) Encode(data []byte) ([]byte, error) {
	for i, f := range p.stages {
		enc, ok := f.(Encoder)
		if !ok {
			return nil, fmt.Errorf("%w: pipeline stage %d cannot encode", ErrUnsupported, i)
		}
		out, err := enc.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %d: %w", f.ID(), err)
		}
		data = out
	}
	return data, nil
}
