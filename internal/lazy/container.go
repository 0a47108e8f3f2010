// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package lazy provides a mapping view over a tree file that decodes each
// key only when it is first read.
package lazy

import (
	"fmt"
	"log"
	"runtime"
	"slices"

	"github.com/mitchellh/copystructure"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/store"
)

// AttrsKey is the key under which a root container exposes the attributes
// of its file. It is only present when the file has attributes.
const AttrsKey = "attrs"

// Registry is told when a root container is closed explicitly, so that it
// can drop and release its own reference to the container.
type Registry interface {
	Remove(path string) bool
}

// Options control how a container reads its file.
type Options struct {
	// Decoder decodes each key. If nil, a default decoder is used.
	Decoder *codec.Decoder

	// AllowFallback permits reading a key that was never loaded after the
	// file has been closed, by reopening the file just for that read.
	AllowFallback bool

	// Opener reopens a closed file for a fallback read.
	Opener func(path string) (*store.File, error)

	// Registry, if set, is told when the root container is closed.
	Registry Registry
}

// Container is a read-only mapping over one group of a tree file.
//
// Tuples, lists and frames are decoded as a whole on first access. Other
// groups are returned as child containers that share this container's
// file, and leaves are decoded individually. Everything read while the file
// is open is remembered, so it remains available after the file is closed.
//
// A Container is not safe for concurrent use.
type Container struct {
	handle *Handle

	// root is the container that owns handle, or nil if this is that
	// container. Holding it keeps the handle from being released by the
	// root's cleanup while child containers are still in use.
	root *Container

	path    string
	keys    []string
	overlay map[string]any
	opts    *Options
}

// Open returns the root container for an open file. The container takes
// ownership of f.
//
// If the container becomes unreachable without having been closed, the file
// is eventually closed by the garbage collector. That is not a substitute
// for calling [Container.Close].
func Open(f *store.File, opts Options) (*Container, error) {
	if opts.Decoder == nil {
		opts.Decoder = &codec.Decoder{}
	}
	c := &Container{
		handle:  NewHandle(f),
		path:    store.RootPath,
		keys:    f.Root().Children(),
		overlay: map[string]any{},
		opts:    &opts,
	}

	attrs, err := opts.Decoder.DecodeAttributes(f.Root())
	if err != nil {
		_ = c.handle.Release()
		return nil, err
	}
	if len(attrs) != 0 {
		c.overlay[AttrsKey] = attrs
		if !slices.Contains(c.keys, AttrsKey) {
			c.keys = append(c.keys, AttrsKey)
		}
	}

	runtime.AddCleanup(c, func(h *Handle) {
		_ = h.Release()
	}, c.handle)
	log.Printf("[TRACE] lazy.Open: opened container for %s with %d keys", f.Path(), len(c.keys))
	return c, nil
}

// Get returns the value of the given key.
func (c *Container) Get(key string) (any, error) {
	if v, ok := c.overlay[key]; ok {
		return v, nil
	}
	if !slices.Contains(c.keys, key) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, store.JoinPath(c.path, key))
	}

	var ret any
	live, err := c.handle.with(func(f *store.File) error {
		var err error
		ret, err = c.load(f, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	if live {
		c.overlay[key] = ret
		return ret, nil
	}

	if !c.opts.AllowFallback || c.opts.Opener == nil {
		return nil, &ClosedResourceError{Path: c.handle.Path(), Key: store.JoinPath(c.path, key)}
	}
	return c.fallback(key)
}

func (c *Container) load(f *store.File, key string) (any, error) {
	node, err := f.Lookup(store.JoinPath(c.path, key))
	if err != nil {
		return nil, err
	}
	if g, ok := node.(*store.Group); ok && !c.opts.Decoder.IsEager(g) {
		if tag, err := codec.TagOf(g); err == nil && tag == codec.TagNone {
			return &Container{
				handle:  c.handle,
				root:    c.rootContainer(),
				path:    g.Path(),
				keys:    g.Children(),
				overlay: map[string]any{},
				opts:    c.opts,
			}, nil
		}
	}
	return c.opts.Decoder.Decode(node)
}

// fallback reads a single key from a transient reopen of the file. The
// result isn't remembered, because the file is closed again right away.
func (c *Container) fallback(key string) (any, error) {
	path := c.handle.Path()
	f, err := c.opts.Opener(path)
	if err != nil {
		return nil, fmt.Errorf("reopening %s: %w", path, err)
	}
	defer f.Close()

	node, err := f.Lookup(store.JoinPath(c.path, key))
	if err != nil {
		return nil, err
	}
	log.Printf("[DEBUG] lazy.Container: reading %s from a transient reopen of %s", node.Path(), path)
	return c.opts.Decoder.Decode(node)
}

func (c *Container) rootContainer() *Container {
	if c.root != nil {
		return c.root
	}
	return c
}

// Keys returns the keys of the container in order. Keys remain available
// after the file is closed.
func (c *Container) Keys() []string {
	return slices.Clone(c.keys)
}

// Len returns the number of keys.
func (c *Container) Len() int {
	return len(c.keys)
}

// Has returns true if the container has the given key.
func (c *Container) Has(key string) bool {
	return slices.Contains(c.keys, key)
}

// IsOpen returns true while the container's file is open.
func (c *Container) IsOpen() bool {
	return c.handle.IsLive()
}

// IsRoot returns true for the container of the root group of the file.
func (c *Container) IsRoot() bool {
	return c.root == nil
}

// Path returns the path of the container's group within the file.
func (c *Container) Path() string {
	return c.path
}

// FilePath returns the canonical path of the container's file.
func (c *Container) FilePath() string {
	return c.handle.Path()
}

// Group returns the container's group. It fails once the file is closed.
func (c *Container) Group() (*store.Group, error) {
	var ret *store.Group
	live, err := c.handle.with(func(f *store.File) error {
		node, err := f.Lookup(c.path)
		if err != nil {
			return err
		}
		g, ok := node.(*store.Group)
		if !ok {
			return fmt.Errorf("%s is not a group", c.path)
		}
		ret = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !live {
		return nil, store.ErrClosed
	}
	return ret, nil
}

// Attrs returns the attributes of the container's file, or nil if the file
// has none.
func (c *Container) Attrs() map[string]any {
	attrs, _ := c.rootContainer().overlay[AttrsKey].(map[string]any)
	return attrs
}

// Unlazy decodes every key, recursively, and then closes the container.
// Child containers in the result are replaced by plain maps, so the result
// is independent of the file.
func (c *Container) Unlazy() (map[string]any, error) {
	ret := make(map[string]any, len(c.keys))
	for _, key := range c.keys {
		v, err := c.Get(key)
		if err != nil {
			return nil, err
		}
		if child, ok := v.(*Container); ok {
			v, err = child.Unlazy()
			if err != nil {
				return nil, err
			}
		}
		ret[key] = v
	}
	for key, v := range ret {
		c.overlay[key] = v
	}
	return ret, c.Close()
}

// Snapshot returns a deep copy of everything read from the container so far.
// Keys that were never read are absent.
func (c *Container) Snapshot() (map[string]any, error) {
	ret := make(map[string]any, len(c.overlay))
	for key, v := range c.overlay {
		if child, ok := v.(*Container); ok {
			snap, err := child.Snapshot()
			if err != nil {
				return nil, err
			}
			ret[key] = snap
			continue
		}
		if v == nil {
			ret[key] = nil
			continue
		}
		cp, err := copystructure.Copy(v)
		if err != nil {
			return nil, fmt.Errorf("copying %s: %w", store.JoinPath(c.path, key), err)
		}
		ret[key] = cp
	}
	return ret, nil
}

// Close closes the container's file, if this is a root container whose file
// is still open. Closing any other container does nothing, as does closing
// a container more than once.
func (c *Container) Close() error {
	if c.root != nil || !c.handle.IsLive() {
		return nil
	}
	if c.opts.Registry != nil {
		c.opts.Registry.Remove(c.handle.Path())
	}
	return c.handle.Release()
}

// Handle returns the handle the container reads through.
func (c *Container) Handle() *Handle {
	return c.handle
}

var _ codec.Mapping = (*Container)(nil)
