// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

const (
	formatVersion = "1"

	kindGroup = "group"
	kindLeaf  = "leaf"
)

// Key prefixes. Node paths always start with "/", and attribute keys
// separate the node path from the attribute name with a NUL byte, which
// [ValidName] rejects in node names.
const (
	prefixMeta  = 'm'
	prefixNode  = 'n'
	prefixData  = 'd'
	prefixAttr  = 'a'
	attrNameSep = 0
)

var (
	keyFormat  = []byte{prefixMeta, 'f'}
	keyLineage = []byte{prefixMeta, 'l'}
)

func nodeKey(p string) []byte {
	return append([]byte{prefixNode}, p...)
}

func dataKey(p string) []byte {
	return append([]byte{prefixData}, p...)
}

func attrKey(p, name string) []byte {
	key := append([]byte{prefixAttr}, p...)
	key = append(key, attrNameSep)
	return append(key, name...)
}

// nodeRecordV1 is stored under the node key of every group and leaf.
type nodeRecordV1 struct {
	Kind string `json:"kind"`

	// The remaining fields are used only for leaves.
	DType  DType  `json:"dtype,omitempty"`
	Shape  []int  `json:"shape,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// attrRecordV1 is stored under the attribute key of every attribute. Order
// preserves the order attributes were first set in, which the key order
// doesn't.
type attrRecordV1 struct {
	Order int    `json:"order"`
	DType DType  `json:"dtype"`
	Shape []int  `json:"shape,omitempty"`
	Data  []byte `json:"data"`
}

func encodeNodeRecord(n Node) ([]byte, error) {
	rec := nodeRecordV1{Kind: kindGroup}
	if l, ok := n.(*Leaf); ok {
		rec = nodeRecordV1{
			Kind:   kindLeaf,
			DType:  l.info.DType,
			Shape:  l.info.Shape,
			Filter: l.filter,
		}
	}
	return json.Marshal(rec)
}

func decodeNodeRecord(src []byte) (nodeRecordV1, error) {
	var rec nodeRecordV1
	if err := json.Unmarshal(src, &rec); err != nil {
		return rec, err
	}
	switch rec.Kind {
	case kindGroup:
		return rec, nil
	case kindLeaf:
	default:
		return rec, fmt.Errorf("unsupported kind %q", rec.Kind)
	}
	if !rec.DType.Valid() {
		return rec, fmt.Errorf("unsupported dtype %q", rec.DType)
	}
	if err := checkShape(rec.Shape); err != nil {
		return rec, err
	}
	switch rec.Filter {
	case "", filterGzip:
	default:
		return rec, fmt.Errorf("unsupported filter %q", rec.Filter)
	}
	return rec, nil
}

func encodeAttrRecord(order int, ds *Dataset) ([]byte, error) {
	return json.Marshal(attrRecordV1{
		Order: order,
		DType: ds.DType,
		Shape: ds.Shape,
		Data:  ds.Data,
	})
}

func decodeAttrRecord(src []byte) (attrRecordV1, error) {
	var rec attrRecordV1
	if err := json.Unmarshal(src, &rec); err != nil {
		return rec, err
	}
	if !rec.DType.Valid() {
		return rec, fmt.Errorf("unsupported dtype %q", rec.DType)
	}
	if err := checkShape(rec.Shape); err != nil {
		return rec, err
	}
	return rec, nil
}

// checkShape returns an error if shape has a negative dimension, or
// describes more elements than an int can count.
func checkShape(shape []int) error {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return fmt.Errorf("shape %v has a negative dimension", shape)
		}
		if d != 0 && n > math.MaxInt/d {
			return fmt.Errorf("shape %v has too many elements", shape)
		}
		n *= d
	}
	return nil
}

// splitAttrKey splits the key of an attribute, without its prefix, into
// the node path and the attribute name.
func splitAttrKey(key []byte) (string, string, error) {
	for i, b := range key {
		if b == attrNameSep {
			return string(key[:i]), string(key[i+1:]), nil
		}
	}
	return "", "", errors.New("attribute key has no name")
}
