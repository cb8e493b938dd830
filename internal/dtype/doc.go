// Package dtype moves element data between HDF5 datatypes and Go values.
//
// Decoding ([Convert], [ConvertWithReader]) accepts any numeric destination
// for integer, float and enum data, fixed and variable-length strings, and
// generic values for compound, array and sequence types:
//
//	Fixed-point, enum    int64 or uint64
//	Floating-point       float64
//	String               string
//	Compound             map[string]interface{}
//	Array, sequence      []interface{}
//	Opaque, reference    []byte
//
// Little-endian numeric data whose layout matches the destination slice is
// copied without per-element conversion.
//
// Encoding ([Encode]) writes integers, floats and fixed-length strings;
// [Of] picks the datatype written for a Go element type.
package dtype
