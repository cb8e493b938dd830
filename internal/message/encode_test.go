package message

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
)

func writerWith(offsetSize, lengthSize int) *binpkg.Writer {
	return binpkg.NewWriter(nil, binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: offsetSize, LengthSize: lengthSize})
}

func TestEncodeRoundTrip(t *testing.T) {
	compound := &Datatype{
		Version: 3,
		Class:   ClassCompound,
		Size:    12,
		Members: []CompoundMember{
			{Name: "code", ByteOffset: 0, Type: NewFixedPointDatatype(4, true, OrderLE)},
			{Name: "weight", ByteOffset: 4, Type: NewFloatDatatype(8, OrderLE)},
		},
	}
	enum := &Datatype{
		Version:     3,
		Class:       ClassEnum,
		Size:        1,
		Signed:      true,
		BaseType:    NewFixedPointDatatype(1, true, OrderLE),
		EnumMembers: []EnumMember{{"FALSE", 0}, {"TRUE", 1}, {"NA", -128}},
	}
	array := &Datatype{Version: 3, Class: ClassArray, Size: 12, ArrayDims: []uint32{3}, BaseType: NewFixedPointDatatype(4, true, OrderLE)}

	chunked := NewChunkedLayout([]uint32{100, 50}, 8, ChunkIndexFixedArray)
	chunked.ChunkIndexAddr = 0x1000
	chunked.PageBits = 10

	tests := []struct {
		name string
		msg  Message
	}{
		{"simple dataspace", NewDataspace([]uint64{3, 4}, nil)},
		{"extendible dataspace", NewDataspace([]uint64{3}, []uint64{UndefinedAddress})},
		{"scalar dataspace", NewScalarDataspace()},
		{"null dataspace", NewNullDataspace()},
		{"int32", NewFixedPointDatatype(4, true, OrderLE)},
		{"uint16 big endian", NewFixedPointDatatype(2, false, OrderBE)},
		{"float32", NewFloatDatatype(4, OrderLE)},
		{"float64", NewFloatDatatype(8, OrderLE)},
		{"fixed string", NewStringDatatype(10, PadNullPad, CharsetUTF8)},
		{"varlen string", NewVarLenStringDatatype(CharsetUTF8)},
		{"opaque", &Datatype{Version: 1, Class: ClassOpaque, Size: 4, Tag: "blob"}},
		{"compound", compound},
		{"enum", enum},
		{"array", array},
		{"attribute", NewAttribute("shape", NewFixedPointDatatype(4, true, OrderLE), NewDataspace([]uint64{2}, nil), le(u32(3), u32(5)))},
		{"string attribute", NewScalarAttribute("encoding-type", NewStringDatatype(10, PadNullTerm, CharsetUTF8), []byte("csr_matrix"))},
		{"filters", NewFilterPipeline(NewShuffleFilter(8), NewDeflateFilter(6))},
		{"named filter", NewFilterPipeline(FilterInfo{ID: FilterZstd, Flags: filterOptional, Name: "zstd", ClientData: []uint32{3}})},
		{"compact", NewCompactLayout([]byte{1, 2, 3})},
		{"contiguous", NewContiguousLayout(0x400, 96)},
		{"chunked v4", chunked},
		{"chunked v3", &DataLayout{Version: 3, Class: LayoutChunked, ChunkDims: []uint32{4, 8}, ChunkIndexAddr: 0x200, DimensionSizeBytes: 4}},
		{"hard link", NewHardLink("obs", 0x300)},
		{"soft link", NewSoftLink("data", "/X/obs")},
		{"external link", &Link{Version: 1, LinkType: LinkTypeExternal, Name: "ext", Charset: 1, ExternalFile: "a.h5", ExternalPath: "/x"}},
		{"long link name", NewHardLink(strings.Repeat("n", 300), 0x40)},
		{"link info", NewLinkInfo()},
		{"tracked link info", &LinkInfo{Flags: 3, MaxCreationIndex: 4, FractalHeapAddr: 0x10, NameIndexBTreeAddr: 0x20, CreationOrderBTreeAddr: 0x30}},
		{"group info", NewGroupInfo()},
		{"group info hints", &GroupInfo{Flags: 3, MaxCompactLinks: 8, MinDenseLinks: 6, EstNumEntries: 4, EstLinkNameLen: 12}},
	}
	w := writerWith(8, 8)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg, w)
			require.NoError(t, err)
			got, err := Parse(tt.msg.Type(), data, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, got)
		})
	}
}

func TestEncodeFloat64Bytes(t *testing.T) {
	data, err := Encode(NewFloatDatatype(8, OrderLE), writerWith(8, 8))
	require.NoError(t, err)
	assert.Equal(t, float64Type, data)

	data, err = Encode(NewFixedPointDatatype(4, true, OrderLE), writerWith(8, 8))
	require.NoError(t, err)
	assert.Equal(t, int32Type, data)
}

func TestEncodeAddressWidths(t *testing.T) {
	w := writerWith(4, 4)
	r := binpkg.NewReader(nil, binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 4, LengthSize: 4})

	data, err := Encode(NewContiguousLayout(0x400, 96), w)
	require.NoError(t, err)
	assert.Len(t, data, 2+4+4)

	msg, err := Parse(TypeDataLayout, data, 0, r)
	require.NoError(t, err)
	assert.EqualValues(t, 0x400, msg.(*DataLayout).Address)

	data, err = Encode(NewLinkInfo(), w)
	require.NoError(t, err)
	msg, err = Parse(TypeLinkInfo, data, 0, r)
	require.NoError(t, err)
	assert.False(t, msg.(*LinkInfo).Dense())
}

func TestEncodeChunkDimensionWidth(t *testing.T) {
	l := NewChunkedLayout([]uint32{1000, 20}, 4, ChunkIndexFixedArray)
	assert.EqualValues(t, 2, l.DimensionSizeBytes)
	assert.Equal(t, []uint32{1000, 20, 4}, l.ChunkDims)

	single := NewChunkedLayout([]uint32{10}, 8, ChunkIndexSingleChunk)
	single.ChunkFlags = LayoutFlagSingleIndexWithFilter
	single.FilteredChunkSize = 33
	data, err := Encode(single, writerWith(8, 8))
	require.NoError(t, err)
	got, err := Parse(TypeDataLayout, data, 0, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 33, got.(*DataLayout).FilteredChunkSize)
}

func TestEncodeErrors(t *testing.T) {
	many := make([]FilterInfo, 33)
	for i := range many {
		many[i] = NewShuffleFilter(4)
	}
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"continuation", &Continuation{Offset: 1, Length: 2}, "cannot be written"},
		{"too many filters", NewFilterPipeline(many...), "limit of 32"},
		{"large compact", NewCompactLayout(make([]byte, 0x10000)), "compact data"},
		{"virtual layout", &DataLayout{Class: LayoutVirtual}, "cannot encode virtual layout"},
		{"unknown class", &Datatype{Class: 12}, "datatype class 12"},
		{"enum without base", &Datatype{Class: ClassEnum, Size: 1}, "enum without base type"},
		{"max dims rank", NewDataspace([]uint64{1, 2}, []uint64{1}), "max dims"},
		{"attribute without type", &Attribute{Name: "x", Dataspace: NewScalarDataspace()}, "needs a datatype"},
		{"bad link type", &Link{Version: 1, LinkType: 7, Name: "x"}, "unknown link type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.msg, writerWith(8, 8))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
