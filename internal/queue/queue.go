// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package queue keeps a bounded set of open tree files, keyed by canonical
// path, so that loading the same file twice reuses the container that is
// already open instead of opening a second independent handle.
package queue

import (
	"errors"
	"fmt"
	"slices"
	"weak"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/opentofu/lazytree/internal/lazy"
	"github.com/opentofu/lazytree/internal/store"
)

// DefaultCapacity is the number of files kept open when no other capacity
// is configured.
const DefaultCapacity = 12

// Registry is the set of operations shared by [*Queue] and [*Locked].
type Registry interface {
	lazy.Registry

	Lookup(path string) (*lazy.Container, bool)
	Insert(path string, c *lazy.Container) error
	LookupOrInsert(path string, open func() (*lazy.Container, error)) (*lazy.Container, error)
	Drain() error
	Len() int
	Paths() []string
	IsOpen(path string) bool
}

// entry refers to its container only weakly, so that an abandoned container
// can still be collected and have its file closed by its cleanup. The
// handle is held strongly so that eviction can always close the file.
type entry struct {
	ref    weak.Pointer[lazy.Container]
	handle *lazy.Handle
}

// Queue is a least-recently-used registry of root containers. Both
// [Queue.Lookup] and [Queue.Insert] count as a use. When an insert would
// exceed the capacity, the least recently used entry is removed and its file
// closed.
//
// Queue is not safe for concurrent use. Embeddings that load or close from
// multiple goroutines should use [Locked].
type Queue struct {
	lru      *simplelru.LRU[string, *entry]
	capacity int
	logger   hclog.Logger
}

var _ Registry = (*Queue)(nil)

// New returns an empty queue holding at most capacity open files.
func New(capacity int, logger hclog.Logger) (*Queue, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	q := &Queue{
		capacity: capacity,
		logger:   logger,
	}
	lru, err := simplelru.NewLRU[string, *entry](capacity, q.onEvict)
	if err != nil {
		return nil, fmt.Errorf("invalid queue capacity %d: %w", capacity, err)
	}
	q.lru = lru
	return q, nil
}

// onEvict runs whenever an entry leaves the queue, for whatever reason. The
// file is closed and any error is logged rather than returned, so removal
// can never fail.
func (q *Queue) onEvict(path string, e *entry) {
	if err := e.handle.Release(); err != nil {
		q.logger.Warn("failed to close file", "path", path, "error", err)
		return
	}
	q.logger.Trace("closed file", "path", path)
}

// Lookup returns the open root container for path, if there is one.
func (q *Queue) Lookup(path string) (*lazy.Container, bool) {
	path = store.CanonicalPath(path)
	e, ok := q.lru.Get(path)
	if !ok {
		return nil, false
	}
	c := e.ref.Value()
	if c == nil || !e.handle.IsLive() {
		q.lru.Remove(path)
		return nil, false
	}
	q.logger.Trace("reusing open file", "path", path)
	return c, true
}

// Insert registers c as the open root container for path, making it the
// most recently used entry. Registering a different container for a path
// that already has one closes the previous container.
func (q *Queue) Insert(path string, c *lazy.Container) error {
	if !c.IsRoot() {
		return errors.New("only root containers can be registered")
	}
	path = store.CanonicalPath(path)
	q.prune()

	if e, ok := q.lru.Peek(path); ok {
		if e.ref.Value() == c {
			q.lru.Get(path)
			return nil
		}
		q.lru.Remove(path)
	}
	if evicted := q.lru.Add(path, &entry{ref: weak.Make(c), handle: c.Handle()}); evicted {
		q.logger.Debug("evicted least recently used file", "capacity", q.capacity)
	}
	q.logger.Trace("registered open file", "path", path, "open", q.lru.Len())
	return nil
}

// LookupOrInsert returns the open root container for path if there is one.
// Otherwise it calls open and registers the container it returns. open must
// not use the queue.
func (q *Queue) LookupOrInsert(path string, open func() (*lazy.Container, error)) (*lazy.Container, error) {
	if c, ok := q.Lookup(path); ok {
		return c, nil
	}
	c, err := open()
	if err != nil {
		return nil, err
	}
	if err := q.Insert(path, c); err != nil {
		// Releasing the handle directly leaves the queue alone, which
		// Close would not.
		return nil, errors.Join(err, c.Handle().Release())
	}
	return c, nil
}

// prune removes entries whose container has been collected or closed
// outside of the queue.
func (q *Queue) prune() {
	for _, path := range q.lru.Keys() {
		e, ok := q.lru.Peek(path)
		if ok && (e.ref.Value() == nil || !e.handle.IsLive()) {
			q.lru.Remove(path)
		}
	}
}

// Remove removes the entry for path and closes its file. It returns false if
// there was no such entry.
func (q *Queue) Remove(path string) bool {
	return q.lru.Remove(store.CanonicalPath(path))
}

// Drain closes every file in the queue and empties it.
func (q *Queue) Drain() error {
	var errs *multierror.Error
	for _, path := range q.lru.Keys() {
		e, ok := q.lru.Peek(path)
		if !ok {
			continue
		}
		if err := e.handle.Release(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing %s: %w", path, err))
		}
	}
	q.lru.Purge()
	return errs.ErrorOrNil()
}

// Len returns the number of entries.
func (q *Queue) Len() int {
	return q.lru.Len()
}

// Capacity returns the maximum number of entries.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Resize changes the capacity, closing the least recently used files if
// there are now too many.
func (q *Queue) Resize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("invalid queue capacity %d", capacity)
	}
	q.lru.Resize(capacity)
	q.capacity = capacity
	return nil
}

// Paths returns the paths of the open files, most recently used first.
func (q *Queue) Paths() []string {
	paths := q.lru.Keys()
	slices.Reverse(paths)
	return paths
}

// IsOpen returns true if there's an entry for path whose file is open. It
// doesn't count as a use.
func (q *Queue) IsOpen(path string) bool {
	e, ok := q.lru.Peek(store.CanonicalPath(path))
	return ok && e.handle.IsLive()
}
