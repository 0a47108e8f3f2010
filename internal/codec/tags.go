// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package codec maps dynamic Go values onto the groups and leaves of a tree
// file and back, marking each node whose Go shape can't be recovered from
// its dtype alone with a type tag attribute.
//
// The encoder tries representations in a fixed order: numeric arrays, then
// string arrays, then datetimes, then tuples, then lists, then mappings, and
// finally the structured-text fallback. The decoder dispatches only on the
// stored tag (and, for untagged nodes, on whether the node is a group or a
// leaf).
package codec

import (
	"fmt"

	"github.com/opentofu/lazytree/internal/store"
)

// TypeAttr is the reserved attribute that carries a node's type tag.
const TypeAttr = "_TYPE_"

// Tag marks how a node must be decoded.
type Tag string

const (
	// TagNone is the absence of a tag. Untagged leaves decode to their raw
	// dataset and untagged groups decode to mappings.
	TagNone Tag = ""

	// TagDatetime marks a leaf of epoch seconds.
	TagDatetime Tag = "datetime"

	// TagStructuredText marks a leaf holding the structured-text fallback
	// encoding of a value that has no other representation.
	TagStructuredText Tag = "yaml"

	// TagTuple marks a group whose children are the elements of a tuple.
	TagTuple Tag = "tuple"

	// TagList marks a group whose children are the elements of a list.
	TagList Tag = "list"

	// TagStringList marks a leaf holding an array of strings.
	TagStringList Tag = "strlist"

	// tagStringArray was written by older versions for string arrays, as
	// structured text. It is still decoded but never written.
	tagStringArray Tag = "strArray"
)

// TagOf returns the type tag of the given node.
func TagOf(n store.Node) (Tag, error) {
	ds, ok := n.Attrs().Get(TypeAttr)
	if !ok {
		return TagNone, nil
	}
	if ds.DType != store.DTypeString {
		return TagNone, &CorruptStoreError{
			Path:   n.Path(),
			Reason: fmt.Sprintf("type tag attribute has dtype %s", ds.DType),
		}
	}
	return Tag(ds.Data), nil
}

func setTag(n store.Node, tag Tag) error {
	return n.Attrs().SetString(TypeAttr, string(tag))
}

// IsComposite returns true for nodes that are always decoded as a whole:
// tuple and list groups.
func IsComposite(n store.Node) bool {
	if _, ok := n.(*store.Group); !ok {
		return false
	}
	tag, err := TagOf(n)
	if err != nil {
		return false
	}
	return tag == TagTuple || tag == TagList
}
