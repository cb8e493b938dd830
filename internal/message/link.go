package message

import (
	"fmt"
	"math/bits"
)

// LinkType is the kind of a link.
type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// Link flag bits.
const (
	linkNameWidthMask  = 0x03
	linkHasCreateOrder = 0x04
	linkHasType        = 0x08
	linkHasCharset     = 0x10
)

const externalLinkVersion = 0

// Link names one member of a new-style group (type 0x0006). Hard links
// carry an object address, soft links a path in the same file and external
// links a file name and a path inside it.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(c *cursor) *Link {
	m := &Link{Version: c.u8()}
	if m.Version != 1 {
		c.fail("unsupported link version %d", m.Version)
		return m
	}
	flags := c.u8()
	if flags&linkHasType != 0 {
		m.LinkType = LinkType(c.u8())
	}
	if flags&linkHasCreateOrder != 0 {
		m.CreationOrder = c.uint(8)
	}
	if flags&linkHasCharset != 0 {
		m.Charset = c.u8()
	}
	m.Name = string(c.take(int(c.uint(1 << (flags & linkNameWidthMask)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = c.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(c.take(int(c.u16())))
	case LinkTypeExternal:
		ext := c.sub(int(c.u16()))
		ext.skip(1)
		m.ExternalFile = ext.cstr()
		m.ExternalPath = ext.cstr()
		if ext.err != nil {
			c.fail("external link %q: %w", m.Name, ext.err)
		}
	default:
		c.fail("unknown link type %d", m.LinkType)
	}
	return m
}

// encode writes version 1 with the smallest name length field.
func (m *Link) encode(e *encoder) error {
	width := widthOf(uint64(len(m.Name)))
	flags := uint8(bits.TrailingZeros(uint(width)))
	if m.LinkType != LinkTypeHard {
		flags |= linkHasType
	}
	if m.Charset != 0 {
		flags |= linkHasCharset
	}
	e.u8(1, flags)
	if m.LinkType != LinkTypeHard {
		e.u8(uint8(m.LinkType))
	}
	if m.Charset != 0 {
		e.u8(m.Charset)
	}
	e.uint(uint64(len(m.Name)), width)
	e.bytes([]byte(m.Name))

	switch m.LinkType {
	case LinkTypeHard:
		e.offset(m.ObjectAddress)
	case LinkTypeSoft:
		e.u16(uint16(len(m.SoftLinkValue)))
		e.bytes([]byte(m.SoftLinkValue))
	case LinkTypeExternal:
		e.u16(uint16(1 + len(m.ExternalFile) + 1 + len(m.ExternalPath) + 1))
		e.u8(externalLinkVersion)
		e.cstr(m.ExternalFile)
		e.cstr(m.ExternalPath)
	default:
		return fmt.Errorf("unknown link type %d", m.LinkType)
	}
	return nil
}

// NewHardLink links name to the object header at address.
func NewHardLink(name string, address uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: address}
}

// NewSoftLink links name to target, a path in the same file.
func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

// UndefinedAddress marks an absent address.
const UndefinedAddress = ^uint64(0)

// LinkInfo describes how a new-style group stores its links (type 0x0002).
// Groups whose links all live in the object header leave the heap and
// index addresses undefined.
type LinkInfo struct {
	Version                uint8
	Flags                  uint8
	MaxCreationIndex       uint64
	FractalHeapAddr        uint64
	NameIndexBTreeAddr     uint64
	CreationOrderBTreeAddr uint64
}

// Link info flag bits.
const (
	linkInfoTracked = 0x01
	linkInfoIndexed = 0x02
)

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// Dense reports links stored in a fractal heap instead of the header.
func (m *LinkInfo) Dense() bool { return m.FractalHeapAddr != UndefinedAddress }

func parseLinkInfo(c *cursor) *LinkInfo {
	m := &LinkInfo{Version: c.u8(), Flags: c.u8(), CreationOrderBTreeAddr: UndefinedAddress}
	if m.Flags&linkInfoTracked != 0 {
		m.MaxCreationIndex = c.uint(8)
	}
	m.FractalHeapAddr = undefinedIfAllOnes(c.offset(), c.offsetSize)
	m.NameIndexBTreeAddr = undefinedIfAllOnes(c.offset(), c.offsetSize)
	if m.Flags&linkInfoIndexed != 0 {
		m.CreationOrderBTreeAddr = undefinedIfAllOnes(c.offset(), c.offsetSize)
	}
	return m
}

func (m *LinkInfo) encode(e *encoder) error {
	e.u8(m.Version, m.Flags)
	if m.Flags&linkInfoTracked != 0 {
		e.u64(m.MaxCreationIndex)
	}
	e.offset(m.FractalHeapAddr)
	e.offset(m.NameIndexBTreeAddr)
	if m.Flags&linkInfoIndexed != 0 {
		e.offset(m.CreationOrderBTreeAddr)
	}
	return nil
}

// NewLinkInfo returns the link info of a group keeping links in its header.
func NewLinkInfo() *LinkInfo {
	return &LinkInfo{
		FractalHeapAddr:        UndefinedAddress,
		NameIndexBTreeAddr:     UndefinedAddress,
		CreationOrderBTreeAddr: UndefinedAddress,
	}
}

// GroupInfo holds the storage hints of a new-style group (type 0x000A).
type GroupInfo struct {
	Version         uint8
	Flags           uint8
	MaxCompactLinks uint16
	MinDenseLinks   uint16
	EstNumEntries   uint16
	EstLinkNameLen  uint16
}

func (m *GroupInfo) Type() Type { return TypeGroupInfo }

func parseGroupInfo(c *cursor) *GroupInfo {
	m := &GroupInfo{Version: c.u8(), Flags: c.u8()}
	if m.Flags&0x01 != 0 {
		m.MaxCompactLinks, m.MinDenseLinks = c.u16(), c.u16()
	}
	if m.Flags&0x02 != 0 {
		m.EstNumEntries, m.EstLinkNameLen = c.u16(), c.u16()
	}
	return m
}

func (m *GroupInfo) encode(e *encoder) error {
	e.u8(m.Version, m.Flags)
	if m.Flags&0x01 != 0 {
		e.u16(m.MaxCompactLinks)
		e.u16(m.MinDenseLinks)
	}
	if m.Flags&0x02 != 0 {
		e.u16(m.EstNumEntries)
		e.u16(m.EstLinkNameLen)
	}
	return nil
}

// NewGroupInfo returns group info with default hints.
func NewGroupInfo() *GroupInfo { return &GroupInfo{} }

// undefinedIfAllOnes widens an all-ones address of any width to
// UndefinedAddress.
func undefinedIfAllOnes(v uint64, width int) uint64 {
	if width < 8 && v == 1<<(8*width)-1 {
		return UndefinedAddress
	}
	return v
}
