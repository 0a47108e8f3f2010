// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
)

// Node is either a [*Group] or a [*Leaf].
type Node interface {
	// Name is the name of the node within its parent group. The root group
	// has an empty name.
	Name() string

	// Path is the absolute path of the node within its file, such as "/a/b".
	Path() string

	// Attrs returns the node's attributes.
	Attrs() *Attributes

	// File returns the file the node belongs to.
	File() *File

	isNode()
}

// Group is a node holding uniquely-named child nodes.
type Group struct {
	file     *File
	name     string
	path     string
	attrs    *Attributes
	children map[string]Node
}

var _ Node = (*Group)(nil)

func newGroup(file *File, name, path string) *Group {
	return &Group{
		file:     file,
		name:     name,
		path:     path,
		attrs:    newAttributes(file, path),
		children: map[string]Node{},
	}
}

func (g *Group) Name() string       { return g.name }
func (g *Group) Path() string       { return g.path }
func (g *Group) Attrs() *Attributes { return g.attrs }
func (g *Group) File() *File        { return g.file }
func (g *Group) isNode()            {}

// Children returns the names of the group's children in lexical order, which
// is the native ordering of the container regardless of creation order.
func (g *Group) Children() []string {
	return slices.Sorted(maps.Keys(g.children))
}

// Len returns the number of children.
func (g *Group) Len() int {
	return len(g.children)
}

// Has returns true if the group has a child with the given name.
func (g *Group) Has(name string) bool {
	_, ok := g.children[name]
	return ok
}

// Child returns the named child.
func (g *Group) Child(name string) (Node, error) {
	child, ok := g.children[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, JoinPath(g.path, name))
	}
	return child, nil
}

// CreateGroup adds a new, empty child group.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNewChild(name); err != nil {
		return nil, err
	}
	child := newGroup(g.file, name, JoinPath(g.path, name))
	rec, err := encodeNodeRecord(child)
	if err != nil {
		return nil, err
	}
	if err := g.file.db.Put(nodeKey(child.path), rec, nil); err != nil {
		return nil, fmt.Errorf("writing %s: %w", child.path, err)
	}
	g.children[name] = child
	log.Printf("[TRACE] store.Group: created group %s", child.path)
	return child, nil
}

// CreateLeaf adds a new leaf holding the given dataset. The dataset payload
// is written to the file immediately, compressed if requested.
func (g *Group) CreateLeaf(name string, ds *Dataset, c Compression) (*Leaf, error) {
	if err := g.checkNewChild(name); err != nil {
		return nil, err
	}
	p := JoinPath(g.path, name)
	if !ds.DType.Valid() {
		return nil, fmt.Errorf("creating %s: unsupported dtype %q", p, ds.DType)
	}
	if err := checkShape(ds.Shape); err != nil {
		return nil, fmt.Errorf("creating %s: %w", p, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("creating %s: %w", p, err)
	}

	leaf := &Leaf{
		file:  g.file,
		name:  name,
		path:  p,
		attrs: newAttributes(g.file, p),
		info:  ds.Info(),
	}
	payload := ds.Data
	if c.Enabled {
		var err error
		payload, err = compress(payload, c.Level)
		if err != nil {
			return nil, fmt.Errorf("compressing %s: %w", leaf.path, err)
		}
		leaf.filter = filterGzip
	}
	rec, err := encodeNodeRecord(leaf)
	if err != nil {
		return nil, err
	}
	b := new(leveldb.Batch)
	b.Put(nodeKey(p), rec)
	b.Put(dataKey(p), payload)
	if err := g.file.write(b); err != nil {
		return nil, fmt.Errorf("writing %s: %w", leaf.path, err)
	}

	g.children[name] = leaf
	log.Printf("[TRACE] store.Group: created leaf %s (%s %v, %d bytes)", leaf.path, leaf.info.DType, leaf.info.Shape, len(payload))
	return leaf, nil
}

// Delete removes the named child, with everything below it. Deleting a
// child that doesn't exist returns an error wrapping [ErrNotFound].
func (g *Group) Delete(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	child, err := g.Child(name)
	if err != nil {
		return err
	}
	b := new(leveldb.Batch)
	deleteNode(b, child)
	if err := g.file.write(b); err != nil {
		return fmt.Errorf("deleting %s: %w", child.Path(), err)
	}
	delete(g.children, name)
	log.Printf("[TRACE] store.Group: deleted %s", child.Path())
	return nil
}

func deleteNode(b *leveldb.Batch, n Node) {
	b.Delete(nodeKey(n.Path()))
	n.Attrs().deleteAll(b)
	switch n := n.(type) {
	case *Group:
		for _, child := range n.children {
			deleteNode(b, child)
		}
	case *Leaf:
		b.Delete(dataKey(n.path))
	}
}

func (g *Group) checkNewChild(name string) error {
	if err := g.file.checkWritable(); err != nil {
		return err
	}
	if !ValidName(name) {
		return errInvalidName(name)
	}
	if _, exists := g.children[name]; exists {
		return &ConflictError{Path: JoinPath(g.path, name)}
	}
	return nil
}

// Leaf is a node holding a single dataset.
type Leaf struct {
	file   *File
	name   string
	path   string
	attrs  *Attributes
	info   Info
	filter string
}

var _ Node = (*Leaf)(nil)

func (l *Leaf) Name() string       { return l.name }
func (l *Leaf) Path() string       { return l.path }
func (l *Leaf) Attrs() *Attributes { return l.attrs }
func (l *Leaf) File() *File        { return l.file }
func (l *Leaf) isNode()            {}

// Info returns the dtype and shape of the leaf's dataset without reading it.
func (l *Leaf) Info() Info {
	return Info{DType: l.info.DType, Shape: slices.Clone(l.info.Shape)}
}

// Compressed returns true if the leaf payload is stored compressed.
func (l *Leaf) Compressed() bool {
	return l.filter != ""
}

// Dataset reads the leaf's payload from the file.
func (l *Leaf) Dataset() (*Dataset, error) {
	if l.file.closed {
		return nil, ErrClosed
	}
	payload, err := l.file.db.Get(dataKey(l.path), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, &FormatError{Path: l.file.path, Err: fmt.Errorf("leaf %s has no payload", l.path)}
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", l.path, err)
	}
	if l.filter == filterGzip {
		payload, err = decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("decompressing %s: %w", l.path, err)
		}
	}
	return &Dataset{DType: l.info.DType, Shape: slices.Clone(l.info.Shape), Data: payload}, nil
}
