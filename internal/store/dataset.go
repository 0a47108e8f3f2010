// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/binary"
	"fmt"
	"reflect"
	"slices"
)

// DType identifies how the bytes of a [Dataset] are laid out.
type DType string

const (
	DTypeBool       DType = "bool"
	DTypeInt8       DType = "int8"
	DTypeInt16      DType = "int16"
	DTypeInt32      DType = "int32"
	DTypeInt64      DType = "int64"
	DTypeUint8      DType = "uint8"
	DTypeUint16     DType = "uint16"
	DTypeUint32     DType = "uint32"
	DTypeUint64     DType = "uint64"
	DTypeFloat32    DType = "float32"
	DTypeFloat64    DType = "float64"
	DTypeComplex64  DType = "complex64"
	DTypeComplex128 DType = "complex128"

	// DTypeString is a single UTF-8 string.
	DTypeString DType = "string"

	// DTypeBytes is a single opaque byte string.
	DTypeBytes DType = "bytes"

	// DTypeByteStrings is an array of byte strings, each element prefixed
	// with its length as an unsigned varint.
	DTypeByteStrings DType = "bytes[]"
)

var numericTypes = map[DType]reflect.Type{
	DTypeBool:       reflect.TypeFor[bool](),
	DTypeInt8:       reflect.TypeFor[int8](),
	DTypeInt16:      reflect.TypeFor[int16](),
	DTypeInt32:      reflect.TypeFor[int32](),
	DTypeInt64:      reflect.TypeFor[int64](),
	DTypeUint8:      reflect.TypeFor[uint8](),
	DTypeUint16:     reflect.TypeFor[uint16](),
	DTypeUint32:     reflect.TypeFor[uint32](),
	DTypeUint64:     reflect.TypeFor[uint64](),
	DTypeFloat32:    reflect.TypeFor[float32](),
	DTypeFloat64:    reflect.TypeFor[float64](),
	DTypeComplex64:  reflect.TypeFor[complex64](),
	DTypeComplex128: reflect.TypeFor[complex128](),
}

// int and uint have a platform-dependent width, so they are always stored
// as their 64-bit counterparts.
var kindDTypes = map[reflect.Kind]DType{
	reflect.Bool:       DTypeBool,
	reflect.Int:        DTypeInt64,
	reflect.Int8:       DTypeInt8,
	reflect.Int16:      DTypeInt16,
	reflect.Int32:      DTypeInt32,
	reflect.Int64:      DTypeInt64,
	reflect.Uint:       DTypeUint64,
	reflect.Uint8:      DTypeUint8,
	reflect.Uint16:     DTypeUint16,
	reflect.Uint32:     DTypeUint32,
	reflect.Uint64:     DTypeUint64,
	reflect.Float32:    DTypeFloat32,
	reflect.Float64:    DTypeFloat64,
	reflect.Complex64:  DTypeComplex64,
	reflect.Complex128: DTypeComplex128,
}

// IsNumeric returns true for the fixed-width dtypes.
func (dt DType) IsNumeric() bool {
	_, ok := numericTypes[dt]
	return ok
}

// Valid returns true if dt is one of the dtypes this package understands.
func (dt DType) Valid() bool {
	switch dt {
	case DTypeString, DTypeBytes, DTypeByteStrings:
		return true
	default:
		return dt.IsNumeric()
	}
}

// Dataset is the payload of a leaf or of an attribute: a typed, shaped,
// flat byte sequence. Numbers are little-endian.
//
// A nil or empty Shape describes a scalar.
type Dataset struct {
	DType DType
	Shape []int
	Data  []byte
}

// Info describes a dataset without its data.
type Info struct {
	DType DType
	Shape []int
}

// Len returns the number of elements in the dataset.
func (ds *Dataset) Len() int {
	return shapeLen(ds.Shape)
}

// IsScalar returns true if the dataset has no dimensions.
func (ds *Dataset) IsScalar() bool {
	return len(ds.Shape) == 0
}

// Info returns the dtype and shape of the dataset.
func (ds *Dataset) Info() Info {
	return Info{DType: ds.DType, Shape: slices.Clone(ds.Shape)}
}

// NewNumeric builds a numeric dataset from a boolean or numeric scalar, or
// from a slice or array of them.
//
// A nil shape means a scalar for scalar input and a one-dimensional array for
// slice input. Otherwise the shape must describe exactly as many elements as
// the input has.
func NewNumeric(data any, shape []int) (*Dataset, error) {
	rv := reflect.ValueOf(data)
	if !rv.IsValid() {
		return nil, fmt.Errorf("cannot build a numeric dataset from nil")
	}

	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		dt, ok := kindDTypes[rv.Type().Elem().Kind()]
		if !ok {
			return nil, fmt.Errorf("unsupported element type %s", rv.Type().Elem())
		}
		n := rv.Len()
		if shape == nil {
			shape = []int{n}
		}
		if shapeLen(shape) != n {
			return nil, fmt.Errorf("shape %v needs %d elements, but data has %d", shape, shapeLen(shape), n)
		}
		buf, err := binary.Append(nil, binary.LittleEndian, canonicalSlice(rv, dt))
		if err != nil {
			return nil, fmt.Errorf("encoding %s array: %w", dt, err)
		}
		return &Dataset{DType: dt, Shape: slices.Clone(shape), Data: buf}, nil

	default:
		dt, ok := kindDTypes[rv.Kind()]
		if !ok {
			return nil, fmt.Errorf("unsupported numeric type %T", data)
		}
		if len(shape) != 0 {
			return nil, fmt.Errorf("scalar value cannot have shape %v", shape)
		}
		buf, err := binary.Append(nil, binary.LittleEndian, rv.Convert(numericTypes[dt]).Interface())
		if err != nil {
			return nil, fmt.Errorf("encoding %s scalar: %w", dt, err)
		}
		return &Dataset{DType: dt, Data: buf}, nil
	}
}

// canonicalSlice returns the elements of rv as a slice of the Go type
// that corresponds to dt, converting element by element only when needed.
func canonicalSlice(rv reflect.Value, dt DType) any {
	et := numericTypes[dt]
	target := reflect.SliceOf(et)
	if rv.Kind() == reflect.Slice && rv.Type() == target {
		return rv.Interface()
	}
	out := reflect.MakeSlice(target, rv.Len(), rv.Len())
	for i := range rv.Len() {
		out.Index(i).Set(rv.Index(i).Convert(et))
	}
	return out.Interface()
}

// Numeric decodes a numeric dataset into a flat typed slice, such as
// []float64 for DTypeFloat64. Scalars decode to a slice of length one.
func (ds *Dataset) Numeric() (any, error) {
	et, ok := numericTypes[ds.DType]
	if !ok {
		return nil, fmt.Errorf("dataset of type %s is not numeric", ds.DType)
	}
	if err := checkShape(ds.Shape); err != nil {
		return nil, err
	}
	n := ds.Len()
	size := int(et.Size())
	if len(ds.Data)%size != 0 || len(ds.Data)/size != n {
		return nil, fmt.Errorf("%s dataset of shape %v needs %d elements, but has %d bytes", ds.DType, ds.Shape, n, len(ds.Data))
	}
	out := reflect.MakeSlice(reflect.SliceOf(et), n, n).Interface()
	if n == 0 {
		return out, nil
	}
	if _, err := binary.Decode(ds.Data, binary.LittleEndian, out); err != nil {
		return nil, fmt.Errorf("decoding %s dataset: %w", ds.DType, err)
	}
	return out, nil
}

// NewString builds a scalar UTF-8 string dataset.
func NewString(s string) *Dataset {
	return &Dataset{DType: DTypeString, Data: []byte(s)}
}

// NewBytes builds a scalar opaque byte string dataset.
func NewBytes(b []byte) *Dataset {
	return &Dataset{DType: DTypeBytes, Data: slices.Clone(b)}
}

// NewByteStrings builds an array of byte strings. A nil shape means a
// one-dimensional array.
func NewByteStrings(elems [][]byte, shape []int) (*Dataset, error) {
	if shape == nil {
		shape = []int{len(elems)}
	}
	if shapeLen(shape) != len(elems) {
		return nil, fmt.Errorf("shape %v needs %d elements, but data has %d", shape, shapeLen(shape), len(elems))
	}
	var buf []byte
	for _, elem := range elems {
		buf = binary.AppendUvarint(buf, uint64(len(elem)))
		buf = append(buf, elem...)
	}
	return &Dataset{DType: DTypeByteStrings, Shape: slices.Clone(shape), Data: buf}, nil
}

// ByteStrings decodes a DTypeByteStrings dataset into its elements.
func (ds *Dataset) ByteStrings() ([][]byte, error) {
	if ds.DType != DTypeByteStrings {
		return nil, fmt.Errorf("dataset of type %s is not a byte string array", ds.DType)
	}
	if err := checkShape(ds.Shape); err != nil {
		return nil, err
	}
	n := ds.Len()
	// every element takes at least one byte for its length
	if n > len(ds.Data) {
		return nil, fmt.Errorf("byte string array of shape %v has only %d bytes", ds.Shape, len(ds.Data))
	}
	ret := make([][]byte, 0, n)
	remain := ds.Data
	for len(ret) < n {
		size, used := binary.Uvarint(remain)
		if used <= 0 || uint64(len(remain)-used) < size {
			return nil, fmt.Errorf("byte string array is truncated at element %d", len(ret))
		}
		remain = remain[used:]
		ret = append(ret, remain[:size:size])
		remain = remain[size:]
	}
	if len(remain) != 0 {
		return nil, fmt.Errorf("byte string array has %d trailing bytes", len(remain))
	}
	return ret, nil
}

func shapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
