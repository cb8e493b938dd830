package message

import "fmt"

// Filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6

	// Registered third-party filters.
	FilterLZ4  uint16 = 32004
	FilterZstd uint16 = 32015
)

// filterOptional marks a filter whose failure leaves the chunk unfiltered.
const filterOptional = 0x0001

// FilterInfo is one stage of a filter pipeline.
type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

func (f *FilterInfo) IsOptional() bool { return f.Flags&filterOptional != 0 }

// FilterPipeline lists the filters applied to each chunk on write, in order
// (type 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

// HasCompression reports whether any stage compresses.
func (m *FilterPipeline) HasCompression() bool {
	for _, f := range m.Filters {
		switch f.ID {
		case FilterDeflate, FilterSZIP, FilterLZ4, FilterZstd:
			return true
		}
	}
	return false
}

// Version 1 has six reserved bytes, always stores a name length and pads
// names and odd client data counts to eight bytes. Version 2 drops the name
// of predefined filters (ID below 256).
func parseFilterPipeline(c *cursor) *FilterPipeline {
	m := &FilterPipeline{Version: c.u8()}
	n := int(c.u8())
	switch m.Version {
	case 1:
		c.skip(6)
	case 2:
	default:
		c.fail("unsupported filter pipeline version %d", m.Version)
		return m
	}
	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		f := &m.Filters[i]
		f.ID = c.u16()
		var nameLen int
		if m.Version == 1 || f.ID >= 256 {
			nameLen = int(c.u16())
		}
		f.Flags = c.u16()
		f.ClientData = make([]uint32, c.u16())
		if nameLen > 0 {
			f.Name = c.str(nameLen)
			if m.Version == 1 && nameLen%8 != 0 {
				c.skip(8 - nameLen%8)
			}
		}
		for j := range f.ClientData {
			f.ClientData[j] = c.u32()
		}
		if m.Version == 1 && len(f.ClientData)%2 != 0 {
			c.skip(4)
		}
	}
	return m
}

// encode writes version 2.
func (m *FilterPipeline) encode(e *encoder) error {
	if len(m.Filters) > 32 {
		return fmt.Errorf("%d filters exceed the pipeline limit of 32", len(m.Filters))
	}
	e.u8(2, uint8(len(m.Filters)))
	for _, f := range m.Filters {
		e.u16(f.ID)
		named := f.ID >= 256 && f.Name != ""
		if f.ID >= 256 {
			if named {
				e.u16(uint16(len(f.Name) + 1))
			} else {
				e.u16(0)
			}
		}
		e.u16(f.Flags)
		e.u16(uint16(len(f.ClientData)))
		if named {
			e.cstr(f.Name)
		}
		for _, v := range f.ClientData {
			e.u32(v)
		}
	}
	return nil
}

// NewFilterPipeline returns a pipeline applying filters in order on write.
func NewFilterPipeline(filters ...FilterInfo) *FilterPipeline {
	return &FilterPipeline{Version: 2, Filters: filters}
}

// NewDeflateFilter returns a zlib stage at level.
func NewDeflateFilter(level int) FilterInfo {
	return FilterInfo{ID: FilterDeflate, ClientData: []uint32{uint32(level)}}
}

// NewShuffleFilter returns a byte shuffle over elements of elementSize bytes.
func NewShuffleFilter(elementSize uint32) FilterInfo {
	return FilterInfo{ID: FilterShuffle, ClientData: []uint32{elementSize}}
}
