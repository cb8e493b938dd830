package message

import "fmt"

// DataspaceType is the kind of a dataspace.
type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the shape of a dataset or attribute (type 0x0001). MaxDims
// is nil when the maximum extents equal Dimensions.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

// NumElements is the product of the dimensions; 1 for scalars, 0 for null
// dataspaces.
func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }
func (m *Dataspace) IsNull() bool   { return m.SpaceType == DataspaceNull }

// Version 1 bodies carry five reserved bytes after the flags and infer the
// kind from the rank; version 2 stores the kind explicitly.
func parseDataspace(c *cursor) *Dataspace {
	m := &Dataspace{Version: c.u8(), Rank: int(c.u8())}
	flags := c.u8()
	switch m.Version {
	case 1:
		c.skip(5)
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
	case 2:
		m.SpaceType = DataspaceType(c.u8())
	default:
		c.fail("unsupported dataspace version %d", m.Version)
		return m
	}
	if m.SpaceType != DataspaceSimple {
		return m
	}
	m.Dimensions = make([]uint64, m.Rank)
	for i := range m.Dimensions {
		m.Dimensions[i] = c.length()
	}
	if flags&0x01 != 0 {
		m.MaxDims = make([]uint64, m.Rank)
		for i := range m.MaxDims {
			m.MaxDims[i] = c.length()
		}
	}
	return m
}

// encode writes version 2.
func (m *Dataspace) encode(e *encoder) error {
	var flags uint8
	if len(m.MaxDims) > 0 {
		if len(m.MaxDims) != len(m.Dimensions) {
			return fmt.Errorf("%d max dims for rank %d", len(m.MaxDims), len(m.Dimensions))
		}
		flags = 0x01
	}
	e.u8(2, uint8(len(m.Dimensions)), flags, uint8(m.SpaceType))
	for _, d := range m.Dimensions {
		e.length(d)
	}
	for _, d := range m.MaxDims {
		e.length(d)
	}
	return nil
}

// NewDataspace returns a simple dataspace. maxDims may be nil.
func NewDataspace(dims []uint64, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}

func NewNullDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceNull}
}
