package hdf5

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/robert-malhotra/go-scdior/internal/alloc"
	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/heap"
	"github.com/robert-malhotra/go-scdior/internal/superblock"
)

// Create truncates or creates the file at name and opens it for writing.
//
// Datasets are written as soon as they are created. Group headers and the
// superblock stay in memory until Flush or Close.
func Create(name string, opts ...FileOption) (*File, error) {
	fc := newFileConfig(opts)
	osf, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}

	cfg := binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: fc.offsetSize, LengthSize: fc.lengthSize}
	w := binpkg.NewWriter(osf, cfg)

	sb := superblock.NewSuperblock()
	sb.OffsetSize, sb.LengthSize = uint8(fc.offsetSize), uint8(fc.lengthSize)
	reserved := uint64(sb.Size())
	sb.EOFAddress = reserved
	// placeholder until the root group has an address
	if _, err := sb.Write(w); err != nil {
		osf.Close()
		os.Remove(name)
		return nil, fmt.Errorf("writing superblock: %w", err)
	}

	f := &File{
		path:       name,
		file:       osf,
		reader:     binpkg.NewReader(osf, cfg),
		superblock: sb,
		writable:   true,
		writer:     w,
		allocator:  alloc.New(reserved),
	}
	f.strings = heap.NewStringWriter(w, f.allocate)
	f.root = newPendingGroup(f, nil, "/", "/")
	return f, nil
}

// Flush writes every changed group header and the superblock, then syncs
// the file to disk.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	return f.flush()
}

func (f *File) flush() error {
	if !f.writable {
		return nil
	}
	if f.root.dirty {
		if err := f.root.flush(); err != nil {
			return fmt.Errorf("writing groups: %w", err)
		}
	}
	f.superblock.EOFAddress = f.allocator.EOFAddr()
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

func (f *File) allocate(size int64) uint64 { return f.allocator.Alloc(uint64(size)) }

// AllocStats reports how much space the writer has handed out.
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

func (f *File) IsWritable() bool { return f.writable }

func (f *File) checkWritable() error {
	switch {
	case f.closed:
		return ErrClosed
	case !f.writable:
		return ErrReadOnly
	}
	return nil
}
