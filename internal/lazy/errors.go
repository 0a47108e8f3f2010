// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package lazy

import (
	"fmt"
)

// ClosedResourceError is returned when reading a key that was never loaded
// from a container whose file has been closed, when reopening the file is
// not allowed.
type ClosedResourceError struct {
	// Path is the canonical path of the file.
	Path string

	// Key is the path of the requested node within the file.
	Key string
}

func (err *ClosedResourceError) Error() string {
	return fmt.Sprintf("cannot read %s: %s is closed and fallback reopen is disabled", err.Key, err.Path)
}
