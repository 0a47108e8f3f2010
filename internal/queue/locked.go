// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package queue

import (
	"sync"

	"github.com/opentofu/lazytree/internal/lazy"
)

// Locked serializes access to a [Queue].
//
// Only the queue is protected. The containers it hands out are shared by
// every caller that loads the same path, and are themselves not safe for
// concurrent use.
type Locked struct {
	mu sync.Mutex
	q  *Queue
}

var _ Registry = (*Locked)(nil)

// NewLocked wraps q. The caller must not use q directly afterwards.
func NewLocked(q *Queue) *Locked {
	return &Locked{q: q}
}

func (l *Locked) Lookup(path string) (*lazy.Container, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Lookup(path)
}

func (l *Locked) Insert(path string, c *lazy.Container) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Insert(path, c)
}

// LookupOrInsert holds the lock while open runs, so that concurrent loads
// of the same path all receive the same container.
func (l *Locked) LookupOrInsert(path string, open func() (*lazy.Container, error)) (*lazy.Container, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.LookupOrInsert(path, open)
}

func (l *Locked) Remove(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Remove(path)
}

func (l *Locked) Drain() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Drain()
}

func (l *Locked) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Len()
}

func (l *Locked) Paths() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Paths()
}

func (l *Locked) IsOpen(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.IsOpen(path)
}

func (l *Locked) Resize(capacity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.Resize(capacity)
}
