// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package value contains the vocabulary of dynamic values that lazytree knows
// how to persist beyond the plain Go kinds.
//
// Most values are written exactly as Go already represents them: numbers,
// booleans, strings, byte slices, time.Time, typed numeric slices, []string,
// []time.Time and maps. The types in this package fill the gaps where Go has
// no natural representation that survives a round-trip:
//
//   - [Tuple] is an ordered, possibly heterogeneous, fixed sequence.
//   - [List] is an ordered sequence that decodes back to a list rather than a
//     tuple. A List whose elements are all numbers is stored as an array.
//   - [Array] is an N-dimensional array of numbers or strings.
//   - [Frame] is a tabular value made of named, equally-long columns.
package value

import (
	"fmt"
	"reflect"
	"time"
)

// Tuple is an ordered sequence whose element order and element types are
// preserved exactly.
type Tuple []any

// List is an ordered sequence. Unlike [Tuple], a List made only of numbers is
// stored as a numeric array and so decodes as a typed slice.
type List []any

// Array is an N-dimensional array stored in row-major order.
//
// Data is always a flat typed slice, such as []float64, []int32 or []string,
// whose length is the product of Shape.
type Array struct {
	Shape []int
	Data  any
}

// NewArray wraps the given flat slice as an array of the given shape. If no
// shape is given the array is one-dimensional.
func NewArray(data any, shape ...int) (*Array, error) {
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("array data must be a slice, not %T", data)
	}
	if !IsNumericKind(rv.Type().Elem().Kind()) && rv.Type().Elem().Kind() != reflect.String {
		return nil, fmt.Errorf("unsupported array element type %s", rv.Type().Elem())
	}
	if len(shape) == 0 {
		shape = []int{rv.Len()}
	}
	if n := ShapeLen(shape); n != rv.Len() {
		return nil, fmt.Errorf("shape %v needs %d elements, but data has %d", shape, n, rv.Len())
	}
	return &Array{Shape: shape, Data: data}, nil
}

// Len returns the total number of elements in the array.
func (a *Array) Len() int {
	if a == nil || a.Data == nil {
		return 0
	}
	return reflect.ValueOf(a.Data).Len()
}

// NDim returns the number of dimensions of the array.
func (a *Array) NDim() int {
	return len(a.Shape)
}

// IsStrings returns true if the array holds strings rather than numbers.
func (a *Array) IsStrings() bool {
	_, ok := a.Data.([]string)
	return ok
}

// ShapeLen returns the number of elements described by a shape. The empty
// shape describes a scalar, which has one element.
func ShapeLen(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// IsNumericKind returns true for the reflect kinds that are stored as
// fixed-width numbers, including bool.
func IsNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return true
	default:
		return false
	}
}

// IsNumber returns true if v is a number. Booleans are not numbers here,
// because a list mixing booleans and numbers is heterogeneous.
func IsNumber(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k != reflect.Bool && IsNumericKind(k)
}

// IsTime returns true if v is a time.Time.
func IsTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}
