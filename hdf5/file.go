package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-malhotra/go-scdior/internal/alloc"
	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/heap"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
	"github.com/robert-malhotra/go-scdior/internal/superblock"
)

// File is an HDF5 file opened with Open or Create.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	// linked holds the files reached through external links, by link name.
	linked map[string]*File

	writable  bool
	writer    *binary.Writer
	allocator *alloc.Allocator
	strings   *heap.StringWriter
}

// Open opens an existing file read-only.
func Open(name string) (*File, error) {
	osf, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	sb, err := superblock.Read(osf)
	if err != nil {
		osf.Close()
		if errors.Is(err, superblock.ErrNotHDF5) {
			return nil, fmt.Errorf("%w: %s", ErrNotHDF5, name)
		}
		return nil, fmt.Errorf("reading superblock: %w", err)
	}

	f := &File{path: name, file: osf, reader: binary.NewReader(osf, sb.ReaderConfig()), superblock: sb}
	if f.root, err = f.openGroupAt(sb.RootGroupAddress, "/"); err != nil {
		osf.Close()
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	return f, nil
}

// Close flushes a writable file and releases it, along with every file
// opened through its external links. Closing twice is a no-op.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	for _, ext := range f.linked {
		ext.Close()
	}
	f.linked = nil

	if err := f.flush(); err != nil {
		f.file.Close()
		return err
	}
	return f.file.Close()
}

func (f *File) Root() *Group { return f.root }
func (f *File) Path() string { return f.path }

// Version returns the superblock version.
func (f *File) Version() int { return int(f.superblock.Version) }

// OpenGroup opens a group by absolute path.
func (f *File) OpenGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(p)
}

// OpenDataset opens a dataset by absolute path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(p)
}

// GetAttr looks up an attribute by "object@attribute" path, for example
// "/@encoding-type" or "/obs/cluster@categories".
func (f *File) GetAttr(p string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}
	objPath, name, err := ParseAttrPath(p)
	if err != nil {
		return nil, err
	}
	obj, err := f.root.open(objPath)
	if err != nil {
		return nil, err
	}
	var attr *Attribute
	switch o := obj.(type) {
	case *Group:
		attr = o.Attr(name)
	case *Dataset:
		attr = o.Attr(name)
	}
	if attr == nil {
		return nil, fmt.Errorf("%w: attribute %s", ErrNotFound, p)
	}
	return attr, nil
}

// ReadAttr is GetAttr followed by Attribute.Value.
func (f *File) ReadAttr(p string) (interface{}, error) {
	attr, err := f.GetAttr(p)
	if err != nil {
		return nil, err
	}
	return attr.Value()
}

func (f *File) openGroupAt(addr uint64, p string) (*Group, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", p, err)
	}
	return &Group{file: f, path: p, header: h, addr: addr}, nil
}

func (f *File) openDatasetAt(addr uint64, p string) (*Dataset, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p, err)
	}
	return newDataset(f, p, h)
}

// isDataset reports whether the object at addr has a dataspace.
func (f *File) isDataset(addr uint64) (bool, error) {
	h, err := object.Read(f.reader, addr)
	if err != nil {
		return false, err
	}
	return h.GetMessage(message.TypeDataspace) != nil, nil
}

// lookup resolves an absolute path from the root group. It is the target
// of soft and external links, so seen carries over from the caller.
func (f *File) lookup(p string, seen map[string]bool) (target, error) {
	t := target{file: f, addr: f.superblock.RootGroupAddress}
	g := f.root
	for i, name := range splitPath(p) {
		var err error
		if i > 0 {
			if t.dataset {
				return target{}, fmt.Errorf("%w: %s", ErrNotGroup, p)
			}
			if g, err = t.file.openGroupAt(t.addr, ""); err != nil {
				return target{}, err
			}
		}
		if t, err = g.find(name, seen); err != nil {
			return target{}, fmt.Errorf("resolving %s: %w", p, err)
		}
	}
	return t, nil
}

// external opens the file an external link names, relative to f's
// directory, and keeps it open until f is closed.
func (f *File) external(name string) (*File, error) {
	if ext, ok := f.linked[name]; ok {
		return ext, nil
	}
	ext, err := Open(filepath.Join(filepath.Dir(f.path), name))
	if err != nil {
		return nil, fmt.Errorf("external link target: %w", err)
	}
	if f.linked == nil {
		f.linked = make(map[string]*File)
	}
	f.linked[name] = ext
	return ext, nil
}
