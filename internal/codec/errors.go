// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"fmt"
)

// EncodingError is returned when a value can't be represented in a tree
// file, not even through the structured-text fallback. No node is created
// for such a value.
type EncodingError struct {
	// Path is the path of the node that would have held the value.
	Path string

	// Type is the Go type of the value, as formatted by %T.
	Type string

	Err error
}

func (err *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode %s value for %s: %s", err.Type, err.Path, err.Err)
}

func (err *EncodingError) Unwrap() error {
	return err.Err
}

// CorruptStoreError is returned when a node can't be decoded because it
// carries an unknown type tag or because its layout doesn't match its tag.
type CorruptStoreError struct {
	Path string
	Tag  Tag

	// Reason describes a layout problem. It is empty when the problem is an
	// unknown tag.
	Reason string
}

func (err *CorruptStoreError) Error() string {
	if err.Reason != "" {
		return fmt.Sprintf("corrupt node %s: %s", err.Path, err.Reason)
	}
	return fmt.Sprintf("node %s has unknown type tag %q", err.Path, string(err.Tag))
}
