package message

import (
	"errors"
	"fmt"

	"github.com/robert-malhotra/go-scdior/internal/binary"
)

// Type is the type of a header message.
type Type uint16

// Message types this package reads or writes. Others parse as *Unknown.
const (
	TypeNIL            Type = 0x00
	TypeDataspace      Type = 0x01
	TypeLinkInfo       Type = 0x02
	TypeDatatype       Type = 0x03
	TypeFillValue      Type = 0x05
	TypeLink           Type = 0x06
	TypeDataLayout     Type = 0x08
	TypeGroupInfo      Type = 0x0A
	TypeFilterPipeline Type = 0x0B
	TypeAttribute      Type = 0x0C
	TypeModTime        Type = 0x0E
	TypeContinuation   Type = 0x10
	TypeSymbolTable    Type = 0x11
)

// Message is a decoded header message.
type Message interface {
	Type() Type
}

// ErrTruncated is wrapped by every parse error caused by a short body.
var ErrTruncated = errors.New("message truncated")

// Parse decodes the body of a header message. Types without a decoder come
// back as *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	c := newCursor(data, r)
	var msg Message
	switch typ {
	case TypeDataspace:
		msg = parseDataspace(c)
	case TypeDatatype:
		msg = parseDatatype(c)
	case TypeDataLayout:
		msg = parseDataLayout(c)
	case TypeFilterPipeline:
		msg = parseFilterPipeline(c)
	case TypeFillValue:
		msg = parseFillValue(c)
	case TypeAttribute:
		msg = parseAttribute(c)
	case TypeLink:
		msg = parseLink(c)
	case TypeLinkInfo:
		msg = parseLinkInfo(c)
	case TypeGroupInfo:
		msg = parseGroupInfo(c)
	case TypeSymbolTable:
		msg = &SymbolTable{BTreeAddress: c.offset(), LocalHeapAddress: c.offset()}
	case TypeContinuation:
		msg = &Continuation{Offset: c.offset(), Length: c.length()}
	default:
		return &Unknown{typ: typ, data: data}, nil
	}
	if c.err != nil {
		return nil, fmt.Errorf("message type %d: %w", typ, c.err)
	}
	return msg, nil
}

// Unknown holds the raw body of a message type without a decoder.
type Unknown struct {
	typ  Type
	data []byte
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }

// Continuation points at the next block of an object header.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeContinuation }

// SymbolTable locates the B-tree and local heap of an old-style group.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

// encodable is implemented by messages this package can write.
type encodable interface {
	Message
	encode(e *encoder) error
}

// Encode returns the body of msg laid out for w's address widths.
func Encode(msg Message, w *binary.Writer) ([]byte, error) {
	s, ok := msg.(encodable)
	if !ok {
		return nil, fmt.Errorf("message type %d cannot be written", msg.Type())
	}
	e := &encoder{offsetSize: w.OffsetSize(), lengthSize: w.LengthSize()}
	if err := s.encode(e); err != nil {
		return nil, fmt.Errorf("message type %d: %w", msg.Type(), err)
	}
	return e.buf, nil
}
