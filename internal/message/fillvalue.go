package message

// FillValue is the value of unwritten dataset elements (type 0x0005).
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	IsDefined      bool
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

// Versions 1 and 2 spell out each field; version 3 packs them into a flags
// byte where bit 4 marks an undefined value and bit 5 a stored one.
func parseFillValue(c *cursor) *FillValue {
	m := &FillValue{Version: c.u8()}
	switch m.Version {
	case 1, 2:
		m.SpaceAllocTime = c.u8()
		m.FillWriteTime = c.u8()
		m.IsDefined = c.u8() != 0
		if m.IsDefined && c.remaining() >= 4 {
			m.Value = append([]byte(nil), c.take(int(c.u32()))...)
		}
	case 3:
		flags := c.u8()
		m.SpaceAllocTime = flags & 0x03
		m.FillWriteTime = flags >> 2 & 0x03
		m.IsDefined = flags&0x10 == 0
		if flags&0x20 != 0 {
			m.Value = append([]byte(nil), c.take(int(c.u32()))...)
		}
	default:
		c.fail("unsupported fill value version %d", m.Version)
	}
	return m
}
