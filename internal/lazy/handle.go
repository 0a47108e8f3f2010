// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package lazy

import (
	"errors"
	"log"
	"sync"

	"github.com/opentofu/lazytree/internal/store"
)

// Handle is the shared reference to one open tree file. A root container and
// all of the child containers reached through it read through the same
// Handle, so releasing it closes them all at once.
//
// A Handle is either live or closed, and only ever moves from live to
// closed.
type Handle struct {
	mu     sync.Mutex
	file   *store.File
	path   string
	closed bool
}

// NewHandle wraps an open file.
func NewHandle(f *store.File) *Handle {
	return &Handle{file: f, path: f.Path()}
}

// Path returns the canonical path of the file.
func (h *Handle) Path() string {
	return h.path
}

// IsLive returns true until the handle is released.
func (h *Handle) IsLive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isLive()
}

func (h *Handle) isLive() bool {
	return !h.closed && !h.file.IsClosed()
}

// Release closes the underlying file. Only the first call can return an
// error; releasing an already-released handle does nothing.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.file.Close()
	if errors.Is(err, store.ErrClosed) {
		// closed directly through the file rather than through us
		return nil
	}
	if err == nil {
		log.Printf("[TRACE] lazy.Handle: released %s", h.path)
	}
	return err
}

// with calls fn with the open file, holding the handle's lock for the
// duration of the call. It returns false without calling fn if the handle
// isn't live.
func (h *Handle) with(fn func(f *store.File) error) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.isLive() {
		return false, nil
	}
	return true, fn(h.file)
}
