package dtype

import (
	"encoding/binary"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

func fixed(size uint32, signed bool, order message.ByteOrder) *message.Datatype {
	return &message.Datatype{Class: message.ClassFixedPoint, Size: size, Signed: signed, ByteOrder: order}
}

func float(size uint32) *message.Datatype {
	return &message.Datatype{Class: message.ClassFloatPoint, Size: size}
}

func TestConvertNumeric(t *testing.T) {
	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-2))

	tests := []struct {
		name string
		dt   *message.Datatype
		data []byte
		dest interface{}
		want interface{}
	}{
		{"int32 native", fixed(4, true, message.OrderLE), []byte{1, 0, 0, 0, 0xfe, 0xff, 0xff, 0xff}, &[]int32{}, []int32{1, -2}},
		{"int8 widened", fixed(1, true, message.OrderLE), []byte{0x80, 0x7f}, &[]int64{}, []int64{-128, 127}},
		{"uint8 to float", fixed(1, false, message.OrderLE), []byte{0, 200}, &[]float64{}, []float64{0, 200}},
		{"int16 big endian", fixed(2, true, message.OrderBE), []byte{0xff, 0xfe, 0x01, 0x00}, &[]int16{}, []int16{-2, 256}},
		{"float32 widened", float(4), f32, &[]float64{}, []float64{1.5, -2}},
		{"float32 native", float(4), f32, &[]float32{}, []float32{1.5, -2}},
		{"enum to bool", &message.Datatype{Class: message.ClassEnum, Size: 1, Signed: true}, []byte{1, 0}, &[]bool{}, []bool{true, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Convert(tt.dt, tt.data, 2, tt.dest))
			assert.Equal(t, tt.want, reflect.ValueOf(tt.dest).Elem().Interface())
		})
	}
}

func TestConvertFixedStrings(t *testing.T) {
	nullTerm := &message.Datatype{Class: message.ClassString, Size: 6, StringPadding: message.PadNullTerm}
	var got []string
	require.NoError(t, Convert(nullTerm, []byte("cell\x00\x00gene_1"), 2, &got))
	assert.Equal(t, []string{"cell", "gene_1"}, got)

	spacePad := &message.Datatype{Class: message.ClassString, Size: 6, StringPadding: message.PadSpacePad}
	var one string
	require.NoError(t, Convert(spacePad, []byte("CD4   "), 1, &one))
	assert.Equal(t, "CD4", one)
}

func TestConvertCompound(t *testing.T) {
	dt := &message.Datatype{
		Class: message.ClassCompound,
		Size:  12,
		Members: []message.CompoundMember{
			{Name: "code", ByteOffset: 0, Type: fixed(4, true, message.OrderLE)},
			{Name: "weight", ByteOffset: 4, Type: float(8)},
		},
	}
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data, 7)
	binary.LittleEndian.PutUint64(data[4:], math.Float64bits(0.25))

	var got []interface{}
	require.NoError(t, Convert(dt, data, 1, &got))
	require.Len(t, got, 1)
	assert.Equal(t, map[string]interface{}{"code": int64(7), "weight": 0.25}, got[0])
}

func TestConvertArray(t *testing.T) {
	dt := &message.Datatype{
		Class:     message.ClassArray,
		Size:      6,
		ArrayDims: []uint32{3},
		BaseType:  fixed(2, false, message.OrderLE),
	}
	data := []byte{1, 0, 2, 0, 3, 0, 4, 0, 5, 0, 6, 0}

	var rows [][]uint16
	require.NoError(t, Convert(dt, data, 2, &rows))
	assert.Equal(t, [][]uint16{{1, 2, 3}, {4, 5, 6}}, rows)

	var generic interface{}
	require.NoError(t, Convert(dt, data[:6], 1, &generic))
	assert.Equal(t, []interface{}{uint64(1), uint64(2), uint64(3)}, generic)
}

func TestConvertScalarDestinations(t *testing.T) {
	dt := fixed(8, true, message.OrderLE)
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(42))

	var n int
	require.NoError(t, Convert(dt, data, 1, &n))
	assert.Equal(t, 42, n)

	var arr [1]float32
	require.NoError(t, Convert(dt, data, 1, &arr))
	assert.Equal(t, [1]float32{42}, arr)

	var v interface{}
	require.NoError(t, Convert(dt, data, 1, &v))
	assert.Equal(t, int64(42), v)
}

func TestConvertVarLenString(t *testing.T) {
	dt := &message.Datatype{Class: message.ClassVarLen, IsVarLenString: true}

	var got []string
	require.NoError(t, Convert(dt, make([]byte, 16), 1, &got))
	assert.Equal(t, []string{""}, got)

	ref := make([]byte, 16)
	binary.LittleEndian.PutUint32(ref, 3)
	binary.LittleEndian.PutUint64(ref[4:], 0x400)
	binary.LittleEndian.PutUint32(ref[12:], 1)
	assert.ErrorContains(t, Convert(dt, ref, 1, &got), "needs a file reader")
}

func TestConvertErrors(t *testing.T) {
	dt := fixed(4, true, message.OrderLE)
	var out []int32

	assert.Error(t, Convert(nil, nil, 0, &out))
	assert.ErrorContains(t, Convert(dt, []byte{1, 2, 3, 4}, 1, out), "non-nil pointer")
	assert.ErrorContains(t, Convert(dt, []byte{1, 2, 3}, 1, &out), "need 4")

	var s []string
	assert.ErrorContains(t, Convert(dt, []byte{1, 0, 0, 0}, 1, &s), "cannot store")
}

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		dt   *message.Datatype
		src  interface{}
		dest interface{}
	}{
		{"float64", float(8), []float64{0.5, -1, math.MaxFloat64}, &[]float64{}},
		{"float32", float(4), []float32{1, 2.5}, &[]float32{}},
		{"int64", fixed(8, true, message.OrderLE), []int64{math.MinInt64, 0, 9}, &[]int64{}},
		{"int as int64", fixed(8, true, message.OrderLE), []int{-3, 4}, &[]int{}},
		{"uint16 big endian", fixed(2, false, message.OrderBE), []uint16{1, 0xabcd}, &[]uint16{}},
		{"int8", fixed(1, true, message.OrderLE), []int8{-1, 1}, &[]int8{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.dt, tt.src)
			require.NoError(t, err)
			n := reflect.ValueOf(tt.src).Len()
			require.Len(t, raw, n*int(tt.dt.Size))
			require.NoError(t, Convert(tt.dt, raw, uint64(n), tt.dest))
			assert.Equal(t, tt.src, reflect.ValueOf(tt.dest).Elem().Interface())
		})
	}
}

func TestEncodeScalarAndStrings(t *testing.T) {
	raw, err := Encode(fixed(4, true, message.OrderLE), int32(-1))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, raw)

	raw, err = Encode(float(8), []int32{2})
	require.NoError(t, err)
	assert.Equal(t, math.Float64bits(2), binary.LittleEndian.Uint64(raw))

	padded := &message.Datatype{Class: message.ClassString, Size: 5, StringPadding: message.PadSpacePad}
	raw, err = Encode(padded, []string{"ab", "abcdefg"})
	require.NoError(t, err)
	assert.Equal(t, "ab   abcde", string(raw))
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(fixed(4, true, message.OrderLE), []string{"x"})
	assert.ErrorContains(t, err, "as an integer")

	_, err = Encode(fixed(3, true, message.OrderLE), []int32{1})
	assert.ErrorContains(t, err, "integer size 3")

	_, err = Encode(&message.Datatype{Class: message.ClassCompound, Size: 4}, []int32{1})
	assert.Error(t, err)

	_, err = Encode(nil, []int32{1})
	assert.Error(t, err)
}

func TestOf(t *testing.T) {
	tests := []struct {
		in     interface{}
		class  message.DatatypeClass
		size   uint32
		signed bool
	}{
		{int8(0), message.ClassFixedPoint, 1, true},
		{[]int32{}, message.ClassFixedPoint, 4, true},
		{[][]int{}, message.ClassFixedPoint, 8, true},
		{uint16(0), message.ClassFixedPoint, 2, false},
		{[3]float32{}, message.ClassFloatPoint, 4, true},
		{new(float64), message.ClassFloatPoint, 8, true},
	}
	for _, tt := range tests {
		dt, err := Of(reflect.TypeOf(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.class, dt.Class, "%T", tt.in)
		assert.Equal(t, tt.size, dt.Size, "%T", tt.in)
		assert.Equal(t, tt.signed, dt.Signed, "%T", tt.in)
	}

	dt, err := Of(reflect.TypeOf([]string{}))
	require.NoError(t, err)
	assert.True(t, dt.IsVarLenString)

	_, err = Of(reflect.TypeOf(struct{}{}))
	assert.Error(t, err)
}
