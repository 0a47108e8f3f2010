// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a file that has already been closed.
var ErrClosed = errors.New("tree file is closed")

// ErrReadOnly is returned when attempting to modify a file opened with
// [ModeRead].
var ErrReadOnly = errors.New("tree file is open read-only")

// ErrNotFound is returned when a requested node does not exist.
var ErrNotFound = errors.New("no such node")

// ConflictError is returned when a write targets a name that already exists
// in the parent group.
type ConflictError struct {
	Path string
}

func (err *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", err.Path)
}

// FormatError describes a file that is not a valid tree file, or whose
// header or index is damaged.
type FormatError struct {
	Path string
	Err  error
}

func (err *FormatError) Error() string {
	return fmt.Sprintf("invalid tree file %s: %s", err.Path, err.Err)
}

func (err *FormatError) Unwrap() error {
	return err.Err
}

type errInvalidName string

func (err errInvalidName) Error() string {
	return fmt.Sprintf("invalid node name %q: names must be non-empty and must not contain '/' or NUL bytes", string(err))
}
