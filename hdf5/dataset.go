package hdf5

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-scdior/internal/dtype"
	"github.com/robert-malhotra/go-scdior/internal/layout"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
)

// Dataset is an n-dimensional array of typed elements.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	storage   layout.Layout
}

func newDataset(f *File, p string, h *object.Header) (*Dataset, error) {
	d := &Dataset{file: f, path: p, header: h, dataspace: h.Dataspace(), datatype: h.Datatype()}
	lm := h.DataLayout()
	switch {
	case d.dataspace == nil:
		return nil, fmt.Errorf("dataset %s: no dataspace message", p)
	case d.datatype == nil:
		return nil, fmt.Errorf("dataset %s: no datatype message", p)
	case lm == nil:
		return nil, fmt.Errorf("dataset %s: no layout message", p)
	}
	storage, err := layout.New(lm, d.dataspace, d.datatype, h.FilterPipeline(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", p, err)
	}
	d.storage = storage
	return d, nil
}

func (d *Dataset) Name() string { return path.Base(d.path) }
func (d *Dataset) Path() string { return d.path }

// Shape returns the dimensions, or nil for a scalar dataset.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return d.dataspace.Dimensions
}

func (d *Dataset) Rank() int                         { return d.dataspace.Rank }
func (d *Dataset) IsScalar() bool                    { return d.dataspace.IsScalar() }
func (d *Dataset) DtypeSize() int                    { return int(d.datatype.Size) }
func (d *Dataset) DtypeClass() message.DatatypeClass { return d.datatype.Class }

// Read decodes every element into dest, a pointer to a slice. Numeric
// elements convert to the slice's element type; variable-length strings
// are fetched from the global heap.
func (d *Dataset) Read(dest interface{}) error {
	raw, err := d.storage.Read()
	if err != nil {
		return fmt.Errorf("reading %s: %w", d.path, err)
	}
	return dtype.ConvertWithReader(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

func (d *Dataset) ReadFloat64() ([]float64, error) { return readSlice[float64](d) }
func (d *Dataset) ReadFloat32() ([]float32, error) { return readSlice[float32](d) }
func (d *Dataset) ReadInt64() ([]int64, error)     { return readSlice[int64](d) }
func (d *Dataset) ReadInt32() ([]int32, error)     { return readSlice[int32](d) }
func (d *Dataset) ReadInt8() ([]int8, error)       { return readSlice[int8](d) }
func (d *Dataset) ReadString() ([]string, error)   { return readSlice[string](d) }

func (d *Dataset) Attrs() []string { return attrNames(attributes(d.header)) }

// Attr returns the named attribute, or nil.
func (d *Dataset) Attr(name string) *Attribute {
	return findAttr(attributes(d.header), name, d.file.reader)
}

func (d *Dataset) HasAttr(name string) bool { return d.Attr(name) != nil }
