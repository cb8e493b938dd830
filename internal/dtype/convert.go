package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"unsafe"

	binpkg "github.com/robert-malhotra/go-scdior/internal/binary"
	"github.com/robert-malhotra/go-scdior/internal/heap"
	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Convert decodes numElements elements of raw data into dest.
func Convert(dt *message.Datatype, data []byte, numElements uint64, dest interface{}) error {
	return ConvertWithReader(dt, data, numElements, dest, nil)
}

// ConvertWithReader decodes numElements elements of raw data into dest, which
// must be a pointer to a slice, an array, an interface or a scalar. The
// reader resolves variable-length data in the global heap; without one, any
// non-empty variable-length element is an error.
//
// Integers, floats and enums convert to any numeric destination. Slices of
// interface receive the natural value of each element: int64, uint64,
// float64, string, []byte, []interface{} or map[string]interface{}.
func ConvertWithReader(dt *message.Datatype, data []byte, numElements uint64, dest interface{}, reader *binpkg.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	ptr := reflect.ValueOf(dest)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("dest must be a non-nil pointer, got %T", dest)
	}

	d := &decoder{reader: reader}
	size := d.elementSize(dt)
	if size == 0 {
		return fmt.Errorf("datatype class %d has zero size", dt.Class)
	}
	if need := numElements * uint64(size); uint64(len(data)) < need {
		return fmt.Errorf("data holds %d bytes, %d elements need %d", len(data), numElements, need)
	}
	n := int(numElements)
	elem := func(i int) []byte { return data[i*size : (i+1)*size] }

	out := ptr.Elem()
	switch out.Kind() {
	case reflect.Slice:
		if copyNative(dt, data[:n*size], n, out) {
			return nil
		}
		s := reflect.MakeSlice(out.Type(), n, n)
		for i := 0; i < n; i++ {
			if err := d.decodeInto(dt, elem(i), s.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
		out.Set(s)
	case reflect.Array:
		for i := 0; i < n && i < out.Len(); i++ {
			if err := d.decodeInto(dt, elem(i), out.Index(i)); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	case reflect.Interface:
		vals := make([]interface{}, n)
		for i := range vals {
			v, err := d.value(dt, elem(i))
			if err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
			vals[i] = v
		}
		if n == 1 {
			out.Set(reflect.ValueOf(vals[0]))
		} else {
			out.Set(reflect.ValueOf(vals))
		}
	default:
		if n == 0 {
			return fmt.Errorf("no elements to decode into %s", out.Type())
		}
		return d.decodeInto(dt, elem(0), out)
	}
	return nil
}

// decoder caches global heap collections across the elements of one call.
type decoder struct {
	reader *binpkg.Reader
	heaps  map[uint64]*heap.GlobalHeap
}

// elementSize is the stored size of one element. Variable-length elements
// are heap references whose size depends on the file's offset width.
func (d *decoder) elementSize(dt *message.Datatype) int {
	if dt.Class == message.ClassVarLen {
		offsetSize := 8
		if d.reader != nil {
			offsetSize = d.reader.OffsetSize()
		}
		return 4 + offsetSize + 4
	}
	return int(dt.Size)
}

func (d *decoder) decodeInto(dt *message.Datatype, b []byte, dst reflect.Value) error {
	v, err := d.value(dt, b)
	if err != nil {
		return err
	}
	return assign(dst, v)
}

// value decodes one element into its natural Go value.
func (d *decoder) value(dt *message.Datatype, b []byte) (interface{}, error) {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield:
		return integer(dt, b)

	case message.ClassFloatPoint:
		order := byteOrder(dt)
		switch len(b) {
		case 4:
			return float64(math.Float32frombits(order.Uint32(b))), nil
		case 8:
			return math.Float64frombits(order.Uint64(b)), nil
		}
		return nil, fmt.Errorf("unsupported float size %d", len(b))

	case message.ClassString:
		return fixedString(dt, b), nil

	case message.ClassVarLen:
		raw, err := d.heapObject(b)
		if err != nil {
			return nil, err
		}
		if dt.IsVarLenString {
			if count := int(binary.LittleEndian.Uint32(b)); count < len(raw) {
				raw = raw[:count]
			}
			if i := bytes.IndexByte(raw, 0); i >= 0 {
				raw = raw[:i]
			}
			return string(raw), nil
		}
		return d.sequence(dt.VarLenType, raw)

	case message.ClassCompound:
		m := make(map[string]interface{}, len(dt.Members))
		for _, mem := range dt.Members {
			end := int(mem.ByteOffset) + d.elementSize(mem.Type)
			if end > len(b) {
				return nil, fmt.Errorf("member %q overruns element", mem.Name)
			}
			v, err := d.value(mem.Type, b[mem.ByteOffset:end])
			if err != nil {
				return nil, fmt.Errorf("member %q: %w", mem.Name, err)
			}
			m[mem.Name] = v
		}
		return m, nil

	case message.ClassArray:
		if dt.BaseType == nil {
			return nil, fmt.Errorf("array type has no base type")
		}
		return d.sequence(dt.BaseType, b)

	case message.ClassOpaque, message.ClassReference:
		return append([]byte(nil), b...), nil
	}
	return nil, fmt.Errorf("unsupported datatype class %d", dt.Class)
}

// sequence decodes back-to-back elements of base.
func (d *decoder) sequence(base *message.Datatype, b []byte) ([]interface{}, error) {
	if base == nil {
		return nil, fmt.Errorf("sequence has no base type")
	}
	size := d.elementSize(base)
	if size == 0 {
		return nil, nil
	}
	out := make([]interface{}, 0, len(b)/size)
	for off := 0; off+size <= len(b); off += size {
		v, err := d.value(base, b[off:off+size])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// heapObject resolves a variable-length reference: a 4-byte length, the
// collection address and a 4-byte object index. A null address is empty.
func (d *decoder) heapObject(b []byte) ([]byte, error) {
	offsetSize := len(b) - 8
	id, err := heap.ParseGlobalHeapID(b[4:], offsetSize)
	if err != nil {
		return nil, err
	}
	if id.CollectionAddress == 0 {
		return nil, nil
	}
	if d.reader == nil {
		return nil, fmt.Errorf("variable-length data at 0x%x needs a file reader", id.CollectionAddress)
	}
	gh, ok := d.heaps[id.CollectionAddress]
	if !ok {
		if gh, err = heap.ReadGlobalHeap(d.reader, id.CollectionAddress); err != nil {
			return nil, fmt.Errorf("reading global heap at 0x%x: %w", id.CollectionAddress, err)
		}
		if d.heaps == nil {
			d.heaps = make(map[uint64]*heap.GlobalHeap)
		}
		d.heaps[id.CollectionAddress] = gh
	}
	obj, err := gh.GetObject(uint16(id.ObjectIndex))
	if err != nil {
		return nil, fmt.Errorf("heap object %d: %w", id.ObjectIndex, err)
	}
	return obj, nil
}

func integer(dt *message.Datatype, b []byte) (interface{}, error) {
	var u uint64
	order := byteOrder(dt)
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(order.Uint16(b))
	case 4:
		u = uint64(order.Uint32(b))
	case 8:
		u = order.Uint64(b)
	default:
		return nil, fmt.Errorf("unsupported integer size %d", len(b))
	}
	if !dt.Signed || dt.Class == message.ClassBitfield {
		return u, nil
	}
	shift := 64 - 8*len(b)
	return int64(u<<shift) >> shift, nil
}

func fixedString(dt *message.Datatype, b []byte) string {
	end := len(b)
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
	}
	if dt.StringPadding == message.PadSpacePad {
		for end > 0 && b[end-1] == ' ' {
			end--
		}
	}
	return string(b[:end])
}

// assign stores a decoded value in dst, converting between numeric kinds.
func assign(dst reflect.Value, v interface{}) error {
	src := reflect.ValueOf(v)
	if !src.IsValid() {
		dst.SetZero()
		return nil
	}
	switch dst.Kind() {
	case reflect.Interface:
		dst.Set(src)
		return nil
	case reflect.Bool:
		switch x := v.(type) {
		case int64:
			dst.SetBool(x != 0)
			return nil
		case uint64:
			dst.SetBool(x != 0)
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if src.CanConvert(dst.Type()) && src.Kind() != reflect.String && src.Kind() != reflect.Slice {
			dst.Set(src.Convert(dst.Type()))
			return nil
		}
	case reflect.String:
		if s, ok := v.(string); ok {
			dst.SetString(s)
			return nil
		}
	case reflect.Slice:
		if b, ok := v.([]byte); ok && dst.Type().Elem().Kind() == reflect.Uint8 {
			dst.SetBytes(b)
			return nil
		}
		if items, ok := v.([]interface{}); ok {
			s := reflect.MakeSlice(dst.Type(), len(items), len(items))
			for i, item := range items {
				if err := assign(s.Index(i), item); err != nil {
					return err
				}
			}
			dst.Set(s)
			return nil
		}
	case reflect.Array:
		if items, ok := v.([]interface{}); ok {
			for i := 0; i < len(items) && i < dst.Len(); i++ {
				if err := assign(dst.Index(i), items[i]); err != nil {
					return err
				}
			}
			return nil
		}
	case reflect.Map:
		if src.Type().AssignableTo(dst.Type()) {
			dst.Set(src)
			return nil
		}
	}
	return fmt.Errorf("cannot store %T in %s", v, dst.Type())
}

// copyNative fills a numeric slice straight from little-endian data when the
// element layout already matches the destination.
func copyNative(dt *message.Datatype, data []byte, n int, out reflect.Value) bool {
	if dt.ByteOrder == message.OrderBE || !nativeLittleEndian() || !nativeMatch(dt, out.Type().Elem()) {
		return false
	}
	s := reflect.MakeSlice(out.Type(), n, n)
	if n > 0 {
		copy(unsafe.Slice((*byte)(s.UnsafePointer()), len(data)), data)
	}
	out.Set(s)
	return true
}

// nativeMatch reports whether elements of dt share the memory layout of elem.
func nativeMatch(dt *message.Datatype, elem reflect.Type) bool {
	if uintptr(dt.Size) != elem.Size() {
		return false
	}
	switch elem.Kind() {
	case reflect.Float32, reflect.Float64:
		return dt.Class == message.ClassFloatPoint
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return dt.Class == message.ClassFixedPoint && dt.Signed
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return dt.Class == message.ClassFixedPoint && !dt.Signed
	}
	return false
}

func nativeLittleEndian() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 1
}
