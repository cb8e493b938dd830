package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-scdior/internal/message"
)

func byteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Of returns the datatype written for values of t. Containers are
// unwrapped to their element type. Numbers keep their width and are stored
// little-endian; strings become variable-length UTF-8.
func Of(t reflect.Type) (*message.Datatype, error) {
	for k := t.Kind(); k == reflect.Pointer || k == reflect.Slice || k == reflect.Array; k = t.Kind() {
		t = t.Elem()
	}
	size := uint32(t.Size())
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return message.NewFixedPointDatatype(size, true, message.OrderLE), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return message.NewFixedPointDatatype(size, false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(size, message.OrderLE), nil
	case reflect.String:
		return message.NewVarLenStringDatatype(message.CharsetUTF8), nil
	}
	return nil, fmt.Errorf("no HDF5 datatype for Go type %v", t)
}
