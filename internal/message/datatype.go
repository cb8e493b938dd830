package message

import (
	"fmt"
	"math/bits"
)

// DatatypeClass is the class of an HDF5 datatype.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = 0
	ClassFloatPoint DatatypeClass = 1
	ClassTime       DatatypeClass = 2
	ClassString     DatatypeClass = 3
	ClassBitfield   DatatypeClass = 4
	ClassOpaque     DatatypeClass = 5
	ClassCompound   DatatypeClass = 6
	ClassReference  DatatypeClass = 7
	ClassEnum       DatatypeClass = 8
	ClassVarLen     DatatypeClass = 9
	ClassArray      DatatypeClass = 10
)

// ByteOrder is the byte order of numeric elements.
type ByteOrder uint8

const (
	OrderLE ByteOrder = 0
	OrderBE ByteOrder = 1
)

// StringPadding says how unused bytes of a fixed-length string are filled.
type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

// CharacterSet is the encoding of string data.
type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype describes the elements of a dataset or attribute (type 0x0003).
// Only the fields of Class are meaningful.
type Datatype struct {
	Version uint8
	Class   DatatypeClass
	Size    uint32

	// Integers, enums, bitfields and floats.
	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	// Floats.
	ExponentLocation uint8
	ExponentSize     uint8
	MantissaLocation uint8
	MantissaSize     uint8
	ExponentBias     uint32

	// Fixed and variable-length strings.
	StringPadding StringPadding
	CharSet       CharacterSet

	// Compounds.
	Members []CompoundMember

	// Enums map member names to values of BaseType.
	EnumMembers []EnumMember

	// Arrays have dimensions over BaseType; enums are stored as BaseType.
	ArrayDims []uint32
	BaseType  *Datatype

	// Variable-length sequences of VarLenType, or strings.
	VarLenType     *Datatype
	IsVarLenString bool

	// Opaque tag; reference kind is kept in RefType.
	Tag     string
	RefType uint8
}

// CompoundMember is one field of a compound datatype.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Type       *Datatype
}

// EnumMember is one named value of an enum datatype.
type EnumMember struct {
	Name  string
	Value int64
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsInteger() bool  { return m.Class == ClassFixedPoint }
func (m *Datatype) IsFloat() bool    { return m.Class == ClassFloatPoint }
func (m *Datatype) IsCompound() bool { return m.Class == ClassCompound }
func (m *Datatype) IsArray() bool    { return m.Class == ClassArray }

// IsString reports fixed-length and variable-length strings.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || (m.Class == ClassVarLen && m.IsVarLenString)
}

func parseDatatype(c *cursor) *Datatype {
	classVersion := c.u8()
	classBits := uint32(c.uint(3))
	m := &Datatype{
		Version: classVersion >> 4,
		Class:   DatatypeClass(classVersion & 0x0F),
		Size:    c.u32(),
	}
	if c.err != nil {
		return m
	}

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		m.ByteOrder = ByteOrder(classBits & 0x01)
		m.Signed = m.Class == ClassFixedPoint && classBits&0x08 != 0
		m.BitOffset = c.u16()
		m.BitPrecision = c.u16()

	case ClassFloatPoint:
		m.ByteOrder = ByteOrder(classBits & 0x01)
		m.Signed = true
		m.BitOffset = c.u16()
		m.BitPrecision = c.u16()
		m.ExponentLocation = c.u8()
		m.ExponentSize = c.u8()
		m.MantissaLocation = c.u8()
		m.MantissaSize = c.u8()
		m.ExponentBias = c.u32()

	case ClassTime:
		m.ByteOrder = ByteOrder(classBits & 0x01)
		m.BitPrecision = c.u16()

	case ClassString:
		m.StringPadding = StringPadding(classBits & 0x0F)
		m.CharSet = CharacterSet(classBits >> 4 & 0x0F)

	case ClassOpaque:
		m.Tag = c.str(int(classBits & 0xFF))

	case ClassReference:
		m.RefType = uint8(classBits & 0x0F)

	case ClassCompound:
		n := int(classBits & 0xFFFF)
		m.Members = make([]CompoundMember, 0, n)
		for i := 0; i < n && c.err == nil; i++ {
			m.Members = append(m.Members, parseCompoundMember(c, m.Version, m.Size))
		}

	case ClassEnum:
		m.BaseType = parseDatatype(c)
		m.ByteOrder, m.Signed = m.BaseType.ByteOrder, m.BaseType.Signed
		n := int(classBits & 0xFFFF)
		m.EnumMembers = make([]EnumMember, n)
		for i := range m.EnumMembers {
			m.EnumMembers[i].Name = memberName(c, m.Version)
		}
		for i := range m.EnumMembers {
			m.EnumMembers[i].Value = signExtend(c.uint(int(m.BaseType.Size)), int(m.BaseType.Size), m.Signed)
		}

	case ClassVarLen:
		m.IsVarLenString = classBits&0x0F == 1
		m.StringPadding = StringPadding(classBits >> 4 & 0x0F)
		m.CharSet = CharacterSet(classBits >> 8 & 0x0F)
		m.VarLenType = parseDatatype(c)

	case ClassArray:
		ndims := int(c.u8())
		if m.Version < 3 {
			c.skip(3)
		}
		m.ArrayDims = make([]uint32, ndims)
		for i := range m.ArrayDims {
			m.ArrayDims[i] = c.u32()
		}
		if m.Version < 3 {
			c.skip(4 * ndims)
		}
		m.BaseType = parseDatatype(c)

	default:
		c.fail("unknown datatype class %d", m.Class)
	}
	return m
}

// memberName reads a compound or enum member name. Versions 1 and 2 pad the
// name and its terminator to a multiple of eight bytes.
func memberName(c *cursor, version uint8) string {
	name := c.cstr()
	if version < 3 {
		c.skip((len(name)+8)/8*8 - (len(name) + 1))
	}
	return name
}

func parseCompoundMember(c *cursor, version uint8, size uint32) CompoundMember {
	mem := CompoundMember{Name: memberName(c, version)}
	switch version {
	case 1:
		mem.ByteOffset = c.u32()
		// dimensionality, reserved, permutation, reserved, four dimension sizes
		c.skip(1 + 3 + 4 + 4 + 16)
	case 2:
		mem.ByteOffset = c.u32()
	default:
		mem.ByteOffset = uint32(c.uint(memberOffsetWidth(size)))
	}
	mem.Type = parseDatatype(c)
	return mem
}

// memberOffsetWidth is the byte width of version 3 member offsets: the
// fewest bytes that encode the compound size.
func memberOffsetWidth(size uint32) int {
	if size == 0 {
		return 1
	}
	return (bits.Len32(size)-1)/8 + 1
}

func signExtend(v uint64, width int, signed bool) int64 {
	if !signed || width >= 8 || width <= 0 {
		return int64(v)
	}
	shift := 64 - 8*width
	return int64(v<<shift) >> shift
}

// encode writes version 1 bodies, or version 3 for compounds, enums and
// arrays.
func (m *Datatype) encode(e *encoder) error {
	version := uint8(1)
	switch m.Class {
	case ClassCompound, ClassEnum, ClassArray:
		version = 3
	}

	var classBits uint32
	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		classBits = uint32(m.ByteOrder)
		if m.Signed && m.Class == ClassFixedPoint {
			classBits |= 0x08
		}
	case ClassFloatPoint:
		// implied mantissa normalization; the second byte holds the sign bit
		sign := uint32(m.BitPrecision)
		if sign == 0 {
			sign = 8 * m.Size
		}
		classBits = uint32(m.ByteOrder) | 0x20 | (sign-1)<<8
	case ClassTime:
		classBits = uint32(m.ByteOrder)
	case ClassString:
		classBits = uint32(m.StringPadding) | uint32(m.CharSet)<<4
	case ClassOpaque:
		classBits = uint32(opaqueTagLen(m.Tag))
	case ClassReference:
		classBits = uint32(m.RefType)
	case ClassCompound:
		classBits = uint32(len(m.Members))
	case ClassEnum:
		classBits = uint32(len(m.EnumMembers))
	case ClassVarLen:
		if m.IsVarLenString {
			classBits = 1 | uint32(m.StringPadding)<<4 | uint32(m.CharSet)<<8
		}
	case ClassArray:
	default:
		return fmt.Errorf("cannot encode datatype class %d", m.Class)
	}

	e.u8(version<<4 | uint8(m.Class))
	e.uint(uint64(classBits), 3)
	e.u32(m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
	case ClassFloatPoint:
		e.u16(m.BitOffset)
		e.u16(m.BitPrecision)
		e.u8(m.ExponentLocation, m.ExponentSize, m.MantissaLocation, m.MantissaSize)
		e.u32(m.ExponentBias)
	case ClassTime:
		e.u16(m.BitPrecision)
	case ClassOpaque:
		tag := make([]byte, opaqueTagLen(m.Tag))
		copy(tag, m.Tag)
		e.bytes(tag)
	case ClassCompound:
		width := memberOffsetWidth(m.Size)
		for _, mem := range m.Members {
			e.cstr(mem.Name)
			e.uint(uint64(mem.ByteOffset), width)
			if err := mem.Type.encode(e); err != nil {
				return fmt.Errorf("member %q: %w", mem.Name, err)
			}
		}
	case ClassEnum:
		if m.BaseType == nil {
			return fmt.Errorf("enum without base type")
		}
		if err := m.BaseType.encode(e); err != nil {
			return err
		}
		for _, em := range m.EnumMembers {
			e.cstr(em.Name)
		}
		for _, em := range m.EnumMembers {
			e.uint(uint64(em.Value), int(m.BaseType.Size))
		}
	case ClassVarLen:
		if m.VarLenType == nil {
			return fmt.Errorf("variable-length type without base type")
		}
		return m.VarLenType.encode(e)
	case ClassArray:
		if m.BaseType == nil {
			return fmt.Errorf("array without base type")
		}
		e.u8(uint8(len(m.ArrayDims)))
		for _, d := range m.ArrayDims {
			e.u32(d)
		}
		return m.BaseType.encode(e)
	}
	return nil
}

// opaqueTagLen is the stored tag length: the tag and a NUL, padded to eight.
func opaqueTagLen(tag string) int {
	if tag == "" {
		return 0
	}
	return (len(tag) + 8) / 8 * 8
}

// NewFixedPointDatatype returns a full-precision integer type.
func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	return &Datatype{Version: 1, Class: ClassFixedPoint, Size: size, ByteOrder: order, Signed: signed, BitPrecision: uint16(size * 8)}
}

// NewFloatDatatype returns an IEEE 754 single (size 4) or double (size 8)
// precision type.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	m := &Datatype{Version: 1, Class: ClassFloatPoint, Size: size, ByteOrder: order, Signed: true, BitPrecision: uint16(size * 8)}
	if size == 4 {
		m.ExponentLocation, m.ExponentSize, m.MantissaSize, m.ExponentBias = 23, 8, 23, 127
	} else {
		m.ExponentLocation, m.ExponentSize, m.MantissaSize, m.ExponentBias = 52, 11, 52, 1023
	}
	return m
}

// NewStringDatatype returns a fixed-length string type.
func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{Version: 1, Class: ClassString, Size: size, StringPadding: padding, CharSet: charset}
}

// NewVarLenStringDatatype returns the variable-length string type h5py and
// R write: element size 16 over a one-byte string base.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Version:        1,
		Class:          ClassVarLen,
		Size:           16,
		IsVarLenString: true,
		CharSet:        charset,
		VarLenType:     NewStringDatatype(1, PadNullTerm, charset),
	}
}
