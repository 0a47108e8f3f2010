// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package frame stores tabular [value.Frame] values as groups of column
// leaves.
package frame

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

const (
	// MarkerAttr is set on every frame group.
	MarkerAttr = "frame_type"

	// ColumnsAttr holds the column names of a frame group, in order.
	ColumnsAttr = "columns"

	markerValue = "frame"
)

// Serializer is the default [codec.FrameCodec]. A frame becomes a group
// with one leaf per column, named by the column's zero-padded position so
// that column names aren't restricted to valid node names.
type Serializer struct{}

var _ codec.FrameCodec = Serializer{}

// EncodeFrame implements codec.FrameCodec. If a column fails to encode,
// the partly written frame is deleted again.
func (Serializer) EncodeFrame(e *codec.Encoder, g *store.Group, key string, f *value.Frame) (_ store.Node, err error) {
	grp, err := g.CreateGroup(key)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, g.Delete(key))
		}
	}()

	if err := grp.Attrs().SetString(MarkerAttr, markerValue); err != nil {
		return nil, err
	}
	names := make([][]byte, len(f.Columns))
	for i, name := range f.Columns {
		names[i] = []byte(name)
	}
	ds, err := store.NewByteStrings(names, nil)
	if err != nil {
		return nil, err
	}
	if err := grp.Attrs().Set(ColumnsAttr, ds); err != nil {
		return nil, err
	}

	width := len(strconv.Itoa(len(f.Columns)))
	for i, name := range f.Columns {
		data, ok := f.Column(name)
		if !ok {
			return nil, &codec.EncodingError{
				Path: store.JoinPath(grp.Path(), columnName(width, i)),
				Type: "nil",
				Err:  fmt.Errorf("frame has no data for column %q", name),
			}
		}
		if _, err := e.EncodeColumn(grp, columnName(width, i), data); err != nil {
			return nil, err
		}
	}
	return grp, nil
}

// IsFrame implements codec.FrameCodec.
func (Serializer) IsFrame(n store.Node) bool {
	if _, ok := n.(*store.Group); !ok {
		return false
	}
	marker, ok := n.Attrs().String(MarkerAttr)
	return ok && marker == markerValue
}

// DecodeFrame implements codec.FrameCodec.
func (Serializer) DecodeFrame(d *codec.Decoder, g *store.Group) (*value.Frame, error) {
	ds, ok := g.Attrs().Get(ColumnsAttr)
	if !ok {
		return nil, &codec.CorruptStoreError{Path: g.Path(), Reason: "frame has no column list"}
	}
	names, err := ds.ByteStrings()
	if err != nil {
		return nil, &codec.CorruptStoreError{Path: g.Path(), Reason: fmt.Sprintf("invalid column list: %s", err)}
	}

	f := value.NewFrame()
	width := len(strconv.Itoa(len(names)))
	for i, name := range names {
		child, err := g.Child(columnName(width, i))
		if err != nil {
			return nil, &codec.CorruptStoreError{Path: g.Path(), Reason: fmt.Sprintf("missing column %q", name)}
		}
		data, err := d.Decode(child)
		if err != nil {
			return nil, err
		}
		if err := f.AddColumn(string(name), data); err != nil {
			return nil, &codec.CorruptStoreError{Path: g.Path(), Reason: err.Error()}
		}
	}
	return f, nil
}

func columnName(width, i int) string {
	return fmt.Sprintf("c_%0*d", width, i)
}
