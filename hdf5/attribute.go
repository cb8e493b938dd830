package hdf5

import (
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/dtype"
	"github.com/robert-malhotra/go-scdior/internal/message"
	"github.com/robert-malhotra/go-scdior/internal/object"
)

// Attribute is a small named value stored in the header of a group or
// dataset.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader
}

func (a *Attribute) Name() string { return a.msg.Name }

// Shape returns the attribute's dimensions, or nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// DtypeClass returns the class of the stored datatype, or 0 when the
// attribute has none.
func (a *Attribute) DtypeClass() message.DatatypeClass {
	if a.msg.Datatype == nil {
		return 0
	}
	return a.msg.Datatype.Class
}

// Read decodes the value into dest, which must point to a slice or to an
// interface{}.
func (a *Attribute) Read(dest interface{}) error {
	switch {
	case a.msg.Datatype == nil:
		return fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	case a.msg.Data == nil:
		return fmt.Errorf("attribute %q has no data", a.msg.Name)
	}
	return dtype.ConvertWithReader(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

func (a *Attribute) ReadFloat64() ([]float64, error) { return readSlice[float64](a) }
func (a *Attribute) ReadInt64() ([]int64, error)     { return readSlice[int64](a) }
func (a *Attribute) ReadString() ([]string, error)   { return readSlice[string](a) }

// ReadScalarString returns the first string of the attribute.
func (a *Attribute) ReadScalarString() (string, error) {
	vals, err := a.ReadString()
	if err != nil {
		return "", err
	}
	if len(vals) == 0 {
		return "", fmt.Errorf("attribute %q is empty", a.msg.Name)
	}
	return vals[0], nil
}

// Value decodes the attribute into the Go type that best fits its class:
// int64 for signed integers and enums, uint64 for unsigned integers,
// float64, string, map[string]interface{} for compounds and []interface{}
// for arrays and sequences. Scalars come back bare, everything else as a
// slice.
func (a *Attribute) Value() (interface{}, error) {
	dt := a.msg.Datatype
	if dt == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	switch {
	case dt.IsString():
		return scalarOrSlice[string](a)
	case dt.IsFloat():
		return scalarOrSlice[float64](a)
	case dt.IsInteger() && !dt.Signed:
		return scalarOrSlice[uint64](a)
	case dt.IsInteger(), dt.Class == message.ClassEnum:
		return scalarOrSlice[int64](a)
	case dt.IsCompound():
		return scalarOrSlice[map[string]interface{}](a)
	}
	return scalarOrSlice[interface{}](a)
}

func scalarOrSlice[T any](a *Attribute) (interface{}, error) {
	vals, err := readSlice[T](a)
	if err != nil {
		return nil, err
	}
	if a.IsScalar() && len(vals) == 1 {
		return vals[0], nil
	}
	return vals, nil
}

// decoder is implemented by Attribute and Dataset.
type decoder interface {
	Read(dest interface{}) error
}

func readSlice[T any](d decoder) ([]T, error) {
	var out []T
	err := d.Read(&out)
	return out, err
}

// attributes lists the attribute messages in h.
func attributes(h *object.Header) []*message.Attribute {
	var out []*message.Attribute
	for _, m := range h.GetMessages(message.TypeAttribute) {
		out = append(out, m.(*message.Attribute))
	}
	return out
}

func attrNames(list []*message.Attribute) []string {
	names := make([]string, 0, len(list))
	for _, m := range list {
		names = append(names, m.Name)
	}
	return names
}

func findAttr(list []*message.Attribute, name string, r *binary.Reader) *Attribute {
	for _, m := range list {
		if m.Name == name {
			return &Attribute{msg: m, reader: r}
		}
	}
	return nil
}
