// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

// EncodeAttributes stores each entry of the mapping m as an attribute of n.
// Attributes can hold strings, byte slices, string slices, and numeric
// scalars or slices.
func EncodeAttributes(n store.Node, m any) error {
	entries, err := Entries(m)
	if err != nil {
		return &EncodingError{Path: n.Path(), Type: fmt.Sprintf("%T", m), Err: err}
	}
	for _, entry := range entries {
		if entry.Key == TypeAttr {
			return attrError(n, entry, fmt.Errorf("%s is reserved", TypeAttr))
		}
		ds, err := attrDataset(entry.Value)
		if err != nil {
			return attrError(n, entry, err)
		}
		if err := n.Attrs().Set(entry.Key, ds); err != nil {
			return err
		}
	}
	return nil
}

func attrError(n store.Node, entry Entry, err error) error {
	return &EncodingError{
		Path: fmt.Sprintf("%s (attribute %q)", n.Path(), entry.Key),
		Type: fmt.Sprintf("%T", entry.Value),
		Err:  err,
	}
}

func attrDataset(v any) (*store.Dataset, error) {
	switch v := v.(type) {
	case string:
		return store.NewString(v), nil
	case []byte:
		return store.NewBytes(v), nil
	case []string:
		elems := make([][]byte, len(v))
		for i, s := range v {
			elems[i] = []byte(s)
		}
		return store.NewByteStrings(elems, nil)
	case nil:
		return nil, errors.New("attributes can't be nil")
	}
	rv := reflect.ValueOf(v)
	switch {
	case value.IsNumericKind(rv.Kind()):
		return store.NewNumeric(v, nil)
	case (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && value.IsNumericKind(rv.Type().Elem().Kind()):
		return store.NewNumeric(v, nil)
	default:
		return nil, errors.New("attributes must be strings, byte slices or numbers")
	}
}

// DecodeAttributes returns the attributes of n as a mapping, leaving out the
// reserved type tag.
func (d *Decoder) DecodeAttributes(n store.Node) (map[string]any, error) {
	attrs := n.Attrs()
	ret := make(map[string]any, attrs.Len())
	for _, name := range attrs.Keys() {
		if name == TypeAttr {
			continue
		}
		ds, _ := attrs.Get(name)
		path := fmt.Sprintf("%s (attribute %q)", n.Path(), name)
		var v any
		var err error
		if ds.DType == store.DTypeByteStrings {
			v, err = d.decodeStrings(path, ds)
		} else {
			v, err = decodeRaw(path, ds)
		}
		if err != nil {
			return nil, err
		}
		ret[name] = v
	}
	return ret, nil
}
