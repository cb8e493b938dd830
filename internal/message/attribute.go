package message

import "fmt"

// Attribute is a small named value attached to an object (type 0x000C).
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Version 1 pads the name, datatype and dataspace to eight bytes; version 3
// adds the name encoding. Shared datatypes and dataspaces are not resolved.
func parseAttribute(c *cursor) *Attribute {
	m := &Attribute{Version: c.u8()}
	flags := c.u8()
	nameSize, typeSize, spaceSize := int(c.u16()), int(c.u16()), int(c.u16())
	switch m.Version {
	case 1, 2:
	case 3:
		c.skip(1)
	default:
		c.fail("unsupported attribute version %d", m.Version)
		return m
	}
	if flags&0x03 != 0 {
		c.fail("attribute with shared datatype or dataspace")
		return m
	}

	pad := func() {
		if m.Version == 1 {
			c.align(8)
		}
	}
	m.Name = c.str(nameSize)
	pad()
	tc := c.sub(typeSize)
	m.Datatype = parseDatatype(tc)
	pad()
	sc := c.sub(spaceSize)
	m.Dataspace = parseDataspace(sc)
	pad()
	for _, sub := range []*cursor{tc, sc} {
		if sub.err != nil {
			c.fail("attribute %q: %w", m.Name, sub.err)
		}
	}
	m.Data = c.rest()
	return m
}

// encode writes version 3 with a UTF-8 name.
func (m *Attribute) encode(e *encoder) error {
	if m.Datatype == nil || m.Dataspace == nil {
		return fmt.Errorf("attribute %q needs a datatype and a dataspace", m.Name)
	}
	sub := &encoder{offsetSize: e.offsetSize, lengthSize: e.lengthSize}
	if err := m.Datatype.encode(sub); err != nil {
		return fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	typeBytes := sub.buf
	sub = &encoder{offsetSize: e.offsetSize, lengthSize: e.lengthSize}
	if err := m.Dataspace.encode(sub); err != nil {
		return fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	spaceBytes := sub.buf

	e.u8(3, 0)
	e.u16(uint16(len(m.Name) + 1))
	e.u16(uint16(len(typeBytes)))
	e.u16(uint16(len(spaceBytes)))
	e.u8(uint8(CharsetUTF8))
	e.cstr(m.Name)
	e.bytes(typeBytes)
	e.bytes(spaceBytes)
	e.bytes(m.Data)
	return nil
}

// NewAttribute returns an attribute over dataspace.
func NewAttribute(name string, datatype *Datatype, dataspace *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: datatype, Dataspace: dataspace, Data: data}
}

// NewScalarAttribute returns an attribute holding one element.
func NewScalarAttribute(name string, datatype *Datatype, data []byte) *Attribute {
	return NewAttribute(name, datatype, NewScalarDataspace(), data)
}
