// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package value

import (
	"fmt"
	"reflect"
	"time"
)

// Frame is a tabular value: an ordered set of named columns that all have
// the same number of rows.
//
// Each column is a flat typed slice of numbers, strings or times.
type Frame struct {
	Columns []string
	Data    map[string]any
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{Data: map[string]any{}}
}

// AddColumn appends a column to the frame.
func (f *Frame) AddColumn(name string, data any) error {
	if _, exists := f.Data[name]; exists {
		return fmt.Errorf("duplicate column %q", name)
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice {
		return fmt.Errorf("column %q must be a slice, not %T", name, data)
	}
	switch data.(type) {
	case []string, []time.Time:
	default:
		if !IsNumericKind(rv.Type().Elem().Kind()) {
			return fmt.Errorf("column %q has unsupported element type %s", name, rv.Type().Elem())
		}
	}
	if len(f.Columns) > 0 && rv.Len() != f.Rows() {
		return fmt.Errorf("column %q has %d rows, but the frame has %d", name, rv.Len(), f.Rows())
	}
	if f.Data == nil {
		f.Data = map[string]any{}
	}
	f.Columns = append(f.Columns, name)
	f.Data[name] = data
	return nil
}

// Column returns the data of the named column.
func (f *Frame) Column(name string) (any, bool) {
	v, ok := f.Data[name]
	return v, ok
}

// Rows returns the number of rows in the frame.
func (f *Frame) Rows() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return reflect.ValueOf(f.Data[f.Columns[0]]).Len()
}
