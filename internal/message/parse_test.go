package message

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

type (
	u16 uint16
	u32 uint32
	u64 uint64
)

// le lays out little-endian test bodies. Plain ints are single bytes.
func le(parts ...any) []byte {
	var b []byte
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			b = append(b, byte(v))
		case u16:
			b = binary.LittleEndian.AppendUint16(b, uint16(v))
		case u32:
			b = binary.LittleEndian.AppendUint32(b, uint32(v))
		case u64:
			b = binary.LittleEndian.AppendUint64(b, uint64(v))
		case string:
			b = append(b, v...)
		case []byte:
			b = append(b, v...)
		default:
			panic(fmt.Sprintf("le: %T", p))
		}
	}
	return b
}

var (
	int8Type    = le(0x10, 0x08, 0, 0, u32(1), u16(0), u16(8))
	int32Type   = le(0x10, 0x08, 0, 0, u32(4), u16(0), u16(32))
	float64Type = le(0x11, 0x20, 63, 0, u32(8), u16(0), u16(64), 52, 11, 0, 52, u32(1023))
)

func parse[T Message](t *testing.T, typ Type, data []byte) T {
	t.Helper()
	msg, err := Parse(typ, data, 0, nil)
	require.NoError(t, err)
	out, ok := msg.(T)
	require.True(t, ok, "got %T", msg)
	return out
}

func TestParseDataspace(t *testing.T) {
	v1 := parse[*Dataspace](t, TypeDataspace, le(1, 2, 1, 0, 0, 0, 0, 0, u64(10), u64(20), u64(10), u64(0xFFFFFFFFFFFFFFFF)))
	assert.Equal(t, DataspaceSimple, v1.SpaceType)
	assert.Equal(t, []uint64{10, 20}, v1.Dimensions)
	assert.Equal(t, []uint64{10, UndefinedAddress}, v1.MaxDims)
	assert.EqualValues(t, 200, v1.NumElements())

	scalar := parse[*Dataspace](t, TypeDataspace, le(1, 0, 0, 0, 0, 0, 0, 0))
	assert.True(t, scalar.IsScalar())
	assert.EqualValues(t, 1, scalar.NumElements())

	null := parse[*Dataspace](t, TypeDataspace, le(2, 0, 0, 2))
	assert.True(t, null.IsNull())
	assert.Zero(t, null.NumElements())

	_, err := Parse(TypeDataspace, le(3, 0, 0, 0), 0, nil)
	assert.ErrorContains(t, err, "unsupported dataspace version 3")
}

func TestParseDatatypeAtomic(t *testing.T) {
	i32 := parse[*Datatype](t, TypeDatatype, int32Type)
	assert.True(t, i32.IsInteger())
	assert.True(t, i32.Signed)
	assert.EqualValues(t, 4, i32.Size)
	assert.EqualValues(t, 32, i32.BitPrecision)

	be := parse[*Datatype](t, TypeDatatype, le(0x10, 0x01, 0, 0, u32(2), u16(0), u16(16)))
	assert.Equal(t, OrderBE, be.ByteOrder)
	assert.False(t, be.Signed)

	f64 := parse[*Datatype](t, TypeDatatype, float64Type)
	assert.True(t, f64.IsFloat())
	assert.EqualValues(t, 52, f64.ExponentLocation)
	assert.EqualValues(t, 11, f64.ExponentSize)
	assert.EqualValues(t, 52, f64.MantissaSize)
	assert.EqualValues(t, 1023, f64.ExponentBias)

	str := parse[*Datatype](t, TypeDatatype, le(0x13, 0x12, 0, 0, u32(10)))
	assert.True(t, str.IsString())
	assert.Equal(t, PadSpacePad, str.StringPadding)
	assert.Equal(t, CharsetUTF8, str.CharSet)

	opaque := parse[*Datatype](t, TypeDatatype, le(0x15, 8, 0, 0, u32(4), "blob\x00\x00\x00\x00"))
	assert.Equal(t, "blob", opaque.Tag)

	ref := parse[*Datatype](t, TypeDatatype, le(0x17, 0, 0, 0, u32(8)))
	assert.Equal(t, ClassReference, ref.Class)

	_, err := Parse(TypeDatatype, le(0x1C, 0, 0, 0, u32(4)), 0, nil)
	assert.ErrorContains(t, err, "unknown datatype class 12")
}

func TestParseDatatypeVarLen(t *testing.T) {
	vs := parse[*Datatype](t, TypeDatatype, le(0x19, 0x01, 0x01, 0, u32(16), 0x13, 0x10, 0, 0, u32(1)))
	assert.True(t, vs.IsString())
	assert.True(t, vs.IsVarLenString)
	assert.Equal(t, CharsetUTF8, vs.CharSet)
	require.NotNil(t, vs.VarLenType)
	assert.Equal(t, ClassString, vs.VarLenType.Class)

	seq := parse[*Datatype](t, TypeDatatype, le(0x19, 0, 0, 0, u32(16), int32Type))
	assert.False(t, seq.IsString())
	assert.True(t, seq.VarLenType.IsInteger())
}

func TestParseDatatypeCompound(t *testing.T) {
	padding := make([]byte, 28)
	tests := []struct {
		name string
		data []byte
	}{
		{"version 1", le(0x16, 2, 0, 0, u32(12),
			"code\x00\x00\x00\x00", u32(0), padding, int32Type,
			"weight\x00\x00", u32(4), padding, float64Type)},
		{"version 2", le(0x26, 2, 0, 0, u32(12),
			"code\x00\x00\x00\x00", u32(0), int32Type,
			"weight\x00\x00", u32(4), float64Type)},
		{"version 3", le(0x36, 2, 0, 0, u32(12),
			"code\x00", 0, int32Type,
			"weight\x00", 4, float64Type)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := parse[*Datatype](t, TypeDatatype, tt.data)
			require.True(t, dt.IsCompound())
			require.Len(t, dt.Members, 2)
			assert.Equal(t, "code", dt.Members[0].Name)
			assert.EqualValues(t, 0, dt.Members[0].ByteOffset)
			assert.True(t, dt.Members[0].Type.IsInteger())
			assert.Equal(t, "weight", dt.Members[1].Name)
			assert.EqualValues(t, 4, dt.Members[1].ByteOffset)
			assert.True(t, dt.Members[1].Type.IsFloat())
		})
	}
}

func TestMemberOffsetWidth(t *testing.T) {
	assert.Equal(t, 1, memberOffsetWidth(0))
	assert.Equal(t, 1, memberOffsetWidth(255))
	assert.Equal(t, 2, memberOffsetWidth(256))
	assert.Equal(t, 2, memberOffsetWidth(65535))
	assert.Equal(t, 3, memberOffsetWidth(65536))
	assert.Equal(t, 4, memberOffsetWidth(1<<24))
}

func TestParseDatatypeEnum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"version 1", le(0x18, 2, 0, 0, u32(1), int8Type, "FALSE\x00\x00\x00", "TRUE\x00\x00\x00\x00", 0, 1)},
		{"version 3", le(0x38, 2, 0, 0, u32(1), int8Type, "FALSE\x00", "TRUE\x00", 0, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := parse[*Datatype](t, TypeDatatype, tt.data)
			assert.Equal(t, ClassEnum, dt.Class)
			assert.True(t, dt.Signed)
			assert.Equal(t, []EnumMember{{"FALSE", 0}, {"TRUE", 1}}, dt.EnumMembers)
		})
	}

	neg := parse[*Datatype](t, TypeDatatype, le(0x38, 1, 0, 0, u32(1), int8Type, "NA\x00", 0x80))
	assert.EqualValues(t, -128, neg.EnumMembers[0].Value)
}

func TestParseDatatypeArray(t *testing.T) {
	v2 := parse[*Datatype](t, TypeDatatype, le(0x2A, 0, 0, 0, u32(12), 1, 0, 0, 0, u32(3), u32(0), int32Type))
	v3 := parse[*Datatype](t, TypeDatatype, le(0x3A, 0, 0, 0, u32(12), 1, u32(3), int32Type))
	for _, dt := range []*Datatype{v2, v3} {
		assert.True(t, dt.IsArray())
		assert.Equal(t, []uint32{3}, dt.ArrayDims)
		require.NotNil(t, dt.BaseType)
		assert.EqualValues(t, 4, dt.BaseType.Size)
	}
}

func TestParseAttribute(t *testing.T) {
	v1 := parse[*Attribute](t, TypeAttribute, le(1, 0, u16(5), u16(12), u16(8),
		"type\x00", 0, 0, 0,
		int32Type, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0,
		u32(7)))
	assert.Equal(t, "type", v1.Name)
	assert.True(t, v1.Datatype.IsInteger())
	assert.True(t, v1.Dataspace.IsScalar())
	assert.Equal(t, le(u32(7)), v1.Data)

	v3 := parse[*Attribute](t, TypeAttribute, le(3, 0, u16(4), u16(12), u16(12), 1,
		"obs\x00", int32Type, 2, 1, 0, 1, u64(2), u32(1), u32(2)))
	assert.Equal(t, "obs", v3.Name)
	assert.Equal(t, []uint64{2}, v3.Dataspace.Dimensions)
	assert.Len(t, v3.Data, 8)

	_, err := Parse(TypeAttribute, le(3, 0x01, u16(4), u16(12), u16(4), 1), 0, nil)
	assert.ErrorContains(t, err, "shared")
}

func TestParseFillValue(t *testing.T) {
	v2 := parse[*FillValue](t, TypeFillValue, le(2, 2, 2, 1, u32(4), u32(0xFFFFFFFF)))
	assert.True(t, v2.IsDefined)
	assert.EqualValues(t, 2, v2.SpaceAllocTime)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, v2.Value)

	v3 := parse[*FillValue](t, TypeFillValue, le(3, 0x22, u32(8), u64(0)))
	assert.True(t, v3.IsDefined)
	assert.EqualValues(t, 2, v3.SpaceAllocTime)
	assert.Len(t, v3.Value, 8)

	undef := parse[*FillValue](t, TypeFillValue, le(3, 0x10))
	assert.False(t, undef.IsDefined)
	assert.Nil(t, undef.Value)
}

func TestParseFilterPipeline(t *testing.T) {
	v1 := parse[*FilterPipeline](t, TypeFilterPipeline, le(1, 2, 0, 0, 0, 0, 0, 0,
		u16(FilterDeflate), u16(8), u16(0), u16(1), "deflate\x00", u32(6), u32(0),
		u16(FilterShuffle), u16(0), u16(1), u16(1), u32(4), u32(0)))
	require.Len(t, v1.Filters, 2)
	assert.Equal(t, "deflate", v1.Filters[0].Name)
	assert.Equal(t, []uint32{6}, v1.Filters[0].ClientData)
	assert.True(t, v1.Filters[1].IsOptional())
	assert.True(t, v1.HasCompression())
	assert.True(t, v1.HasFilter(FilterShuffle))
	assert.False(t, v1.HasFilter(FilterFletcher32))

	v2 := parse[*FilterPipeline](t, TypeFilterPipeline, le(2, 2,
		u16(FilterFletcher32), u16(0), u16(0),
		u16(FilterZstd), u16(5), u16(0), u16(1), "zstd\x00", u32(3)))
	require.Len(t, v2.Filters, 2)
	assert.Empty(t, v2.Filters[0].Name)
	assert.Equal(t, "zstd", v2.Filters[1].Name)
	assert.True(t, v2.HasCompression())
}

func TestParseDataLayout(t *testing.T) {
	v1Chunked := parse[*DataLayout](t, TypeDataLayout, le(1, 3, 2, 0, 0, 0, 0, 0, u64(0x800), u32(10), u32(20), u32(8)))
	assert.True(t, v1Chunked.IsChunked())
	assert.Equal(t, []uint32{10, 20, 8}, v1Chunked.ChunkDims)
	assert.EqualValues(t, 0x800, v1Chunked.ChunkIndexAddr)
	assert.Zero(t, v1Chunked.Address)

	v1Compact := parse[*DataLayout](t, TypeDataLayout, le(1, 1, 0, 0, 0, 0, 0, 0, u32(4), u32(4), 1, 2, 3, 4))
	assert.True(t, v1Compact.IsCompact())
	assert.Equal(t, []byte{1, 2, 3, 4}, v1Compact.CompactData)

	contiguous := parse[*DataLayout](t, TypeDataLayout, le(3, 1, u64(0x400), u64(96)))
	assert.True(t, contiguous.IsContiguous())
	assert.EqualValues(t, 0x400, contiguous.Address)
	assert.EqualValues(t, 96, contiguous.Size)

	v3Chunked := parse[*DataLayout](t, TypeDataLayout, le(3, 2, 2, u64(0x900), u32(5), u32(8)))
	assert.Equal(t, []uint32{5, 8}, v3Chunked.ChunkDims)
	assert.Equal(t, ChunkIndexBTreeV1, v3Chunked.ChunkIndexType)

	fixed := parse[*DataLayout](t, TypeDataLayout, le(4, 2, 0, 2, 1, 5, 8, 3, 10, u64(0x1000)))
	assert.Equal(t, []uint32{5, 8}, fixed.ChunkDims)
	assert.Equal(t, ChunkIndexFixedArray, fixed.ChunkIndexType)
	assert.EqualValues(t, 10, fixed.PageBits)
	assert.EqualValues(t, 0x1000, fixed.ChunkIndexAddr)

	single := parse[*DataLayout](t, TypeDataLayout, le(4, 2, 2, 1, 2, u16(100), 1, u64(70), u32(0), u64(0x2000)))
	assert.Equal(t, ChunkIndexSingleChunk, single.ChunkIndexType)
	assert.EqualValues(t, 70, single.FilteredChunkSize)
	assert.EqualValues(t, 0x2000, single.ChunkIndexAddr)

	_, err := Parse(TypeDataLayout, le(4, 3), 0, nil)
	assert.ErrorContains(t, err, "virtual")
}

func TestParseLink(t *testing.T) {
	hard := parse[*Link](t, TypeLink, le(1, 0, 3, "obs", u64(0x300)))
	assert.True(t, hard.IsHard())
	assert.Equal(t, "obs", hard.Name)
	assert.EqualValues(t, 0x300, hard.ObjectAddress)

	ordered := parse[*Link](t, TypeLink, le(1, 0x14, u64(7), 1, 1, "X", u64(0x80)))
	assert.EqualValues(t, 7, ordered.CreationOrder)
	assert.EqualValues(t, 1, ordered.Charset)
	assert.Equal(t, "X", ordered.Name)

	soft := parse[*Link](t, TypeLink, le(1, 0x08, 1, 4, "data", u16(6), "/X/obs"))
	assert.True(t, soft.IsSoft())
	assert.Equal(t, "/X/obs", soft.SoftLinkValue)

	ext := parse[*Link](t, TypeLink, le(1, 0x08, 64, 3, "ext", u16(9), 0, "a.h5\x00", "/x\x00"))
	assert.True(t, ext.IsExternal())
	assert.Equal(t, "a.h5", ext.ExternalFile)
	assert.Equal(t, "/x", ext.ExternalPath)

	_, err := Parse(TypeLink, le(2, 0), 0, nil)
	assert.ErrorContains(t, err, "unsupported link version")
	_, err = Parse(TypeLink, le(1, 0x08, 9, 1, "z"), 0, nil)
	assert.ErrorContains(t, err, "unknown link type 9")
}

func TestParseLinkInfo(t *testing.T) {
	full := parse[*LinkInfo](t, TypeLinkInfo, le(0, 3, u64(9), u64(0x100), u64(0x200), u64(0x300)))
	assert.EqualValues(t, 9, full.MaxCreationIndex)
	assert.True(t, full.Dense())
	assert.EqualValues(t, 0x300, full.CreationOrderBTreeAddr)

	r := binpkg.NewReader(nil, binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4})
	msg, err := Parse(TypeLinkInfo, le(0, 0, u32(0xFFFFFFFF), u32(0xFFFFFFFF)), 0, r)
	require.NoError(t, err)
	compact := msg.(*LinkInfo)
	assert.False(t, compact.Dense())
	assert.Equal(t, UndefinedAddress, compact.NameIndexBTreeAddr)
	assert.Equal(t, UndefinedAddress, compact.CreationOrderBTreeAddr)
}

func TestParseGroupInfo(t *testing.T) {
	gi := parse[*GroupInfo](t, TypeGroupInfo, le(0, 3, u16(8), u16(6), u16(4), u16(12)))
	assert.EqualValues(t, 8, gi.MaxCompactLinks)
	assert.EqualValues(t, 6, gi.MinDenseLinks)
	assert.EqualValues(t, 4, gi.EstNumEntries)
	assert.EqualValues(t, 12, gi.EstLinkNameLen)

	bare := parse[*GroupInfo](t, TypeGroupInfo, le(0, 0))
	assert.Zero(t, bare.MaxCompactLinks)
}

func TestParseAddressMessages(t *testing.T) {
	cont := parse[*Continuation](t, TypeContinuation, le(u64(0x1000), u64(256)))
	assert.EqualValues(t, 0x1000, cont.Offset)
	assert.EqualValues(t, 256, cont.Length)

	st := parse[*SymbolTable](t, TypeSymbolTable, le(u64(136), u64(680)))
	assert.EqualValues(t, 136, st.BTreeAddress)
	assert.EqualValues(t, 680, st.LocalHeapAddress)

	unknown := parse[*Unknown](t, TypeModTime, le(1, 0, 0, 0, u32(1700000000)))
	assert.Equal(t, TypeModTime, unknown.Type())
	assert.Len(t, unknown.Data(), 8)
}

func TestParseTruncated(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		data []byte
	}{
		{"dataspace dims", TypeDataspace, le(2, 1, 0, 1, u32(4))},
		{"datatype header", TypeDatatype, int32Type[:6]},
		{"float properties", TypeDatatype, float64Type[:14]},
		{"enum name", TypeDatatype, le(0x38, 1, 0, 0, u32(1), int8Type, "NA")},
		{"attribute name", TypeAttribute, le(3, 0, u16(40), u16(12), u16(4), 1, "obs\x00")},
		{"fill value", TypeFillValue, le(2, 2, 2, 1, u32(8), u32(0))},
		{"filter client data", TypeFilterPipeline, le(2, 1, u16(FilterDeflate), u16(0), u16(2), u32(6))},
		{"contiguous size", TypeDataLayout, le(3, 1, u64(0x400))},
		{"hard link address", TypeLink, le(1, 0, 3, "obs", u32(0))},
		{"external link", TypeLink, le(1, 0x08, 64, 1, "e", u16(4), 0, "a.h")},
		{"link info", TypeLinkInfo, le(0, 1, u64(0))},
		{"continuation", TypeContinuation, le(u64(0x1000))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.typ, tt.data, 0, nil)
			assert.ErrorIs(t, err, ErrTruncated)
		})
	}
}
