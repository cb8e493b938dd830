package dtype

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

// Encode converts a Go scalar, slice or array into raw element bytes of dt.
// Variable-length strings are not handled here; they go through the global
// heap writer.
func Encode(dt *message.Datatype, src interface{}) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	v := reflect.ValueOf(src)
	for v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("nil value")
	}
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		one := reflect.New(reflect.ArrayOf(1, v.Type())).Elem()
		one.Index(0).Set(v)
		v = one
	}

	size := int(dt.Size)
	out := make([]byte, v.Len()*size)
	if v.Kind() == reflect.Slice && copyNativeOut(dt, v, out) {
		return out, nil
	}

	put, err := putter(dt)
	if err != nil {
		return nil, err
	}
	for i := 0; i < v.Len(); i++ {
		if err := put(out[i*size:(i+1)*size], v.Index(i)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

// putter returns the per-element encoder for dt.
func putter(dt *message.Datatype) (func([]byte, reflect.Value) error, error) {
	order := byteOrder(dt)
	putUint := func(b []byte, u uint64) {
		switch len(b) {
		case 1:
			b[0] = byte(u)
		case 2:
			order.PutUint16(b, uint16(u))
		case 4:
			order.PutUint32(b, uint32(u))
		case 8:
			order.PutUint64(b, u)
		}
	}

	switch dt.Class {
	case message.ClassFixedPoint:
		if dt.Size != 1 && dt.Size != 2 && dt.Size != 4 && dt.Size != 8 {
			return nil, fmt.Errorf("unsupported integer size %d", dt.Size)
		}
		return func(b []byte, v reflect.Value) error {
			switch {
			case v.CanInt():
				putUint(b, uint64(v.Int()))
			case v.CanUint():
				putUint(b, v.Uint())
			case v.Kind() == reflect.Bool:
				if v.Bool() {
					putUint(b, 1)
				}
			default:
				return fmt.Errorf("cannot encode %s as an integer", v.Type())
			}
			return nil
		}, nil

	case message.ClassFloatPoint:
		if dt.Size != 4 && dt.Size != 8 {
			return nil, fmt.Errorf("unsupported float size %d", dt.Size)
		}
		return func(b []byte, v reflect.Value) error {
			var f float64
			switch {
			case v.CanFloat():
				f = v.Float()
			case v.CanInt():
				f = float64(v.Int())
			case v.CanUint():
				f = float64(v.Uint())
			default:
				return fmt.Errorf("cannot encode %s as a float", v.Type())
			}
			if len(b) == 4 {
				putUint(b, uint64(math.Float32bits(float32(f))))
			} else {
				putUint(b, math.Float64bits(f))
			}
			return nil
		}, nil

	case message.ClassString:
		return func(b []byte, v reflect.Value) error {
			if v.Kind() != reflect.String {
				return fmt.Errorf("cannot encode %s as a string", v.Type())
			}
			n := copy(b, v.String())
			if dt.StringPadding == message.PadSpacePad {
				for i := n; i < len(b); i++ {
					b[i] = ' '
				}
			}
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported datatype class for encoding: %d", dt.Class)
}

// copyNativeOut is the encoding counterpart of copyNative.
func copyNativeOut(dt *message.Datatype, v reflect.Value, out []byte) bool {
	if v.Len() == 0 || dt.ByteOrder == message.OrderBE || !nativeLittleEndian() {
		return false
	}
	if !nativeMatch(dt, v.Type().Elem()) {
		return false
	}
	copy(out, unsafe.Slice((*byte)(v.UnsafePointer()), len(out)))
	return true
}
