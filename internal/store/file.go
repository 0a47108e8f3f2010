// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/spf13/afero"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// openFilesCache bounds the table files leveldb keeps open per tree file.
// Many tree files can be open at once, and they are usually small.
const openFilesCache = 16

// Mode selects how [Open] treats the file at the given path.
type Mode int

const (
	// ModeRead opens an existing file for reading only.
	ModeRead Mode = iota

	// ModeAppend opens a file for reading and writing, creating it if it
	// doesn't exist. Existing nodes are kept, and attempting to create a
	// node whose name is already taken returns a [*ConflictError].
	ModeAppend

	// ModeTruncate creates a new, empty file, discarding any existing
	// content at the same path.
	ModeTruncate
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeAppend:
		return "append"
	case ModeTruncate:
		return "truncate"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Writable returns true for the modes that allow creating nodes.
func (m Mode) Writable() bool {
	return m == ModeAppend || m == ModeTruncate
}

// File is an open tree file.
//
// The structure of the tree and all attributes are held in memory. Leaf
// payloads are read from the database each time [Leaf.Dataset] is called,
// so a File must remain open for as long as its leaves are being read.
//
// File is not safe for concurrent use.
type File struct {
	path string
	mode Mode
	stor *fsStorage
	db   *leveldb.DB

	root    *Group
	lineage string

	// attrOrder is the order given to the next new attribute.
	attrOrder int

	closed bool
}

// Open opens the tree file at path in the given mode.
//
// If the file doesn't exist and mode is [ModeRead] then the returned error
// wraps [os.ErrNotExist].
func Open(fs afero.Fs, path string, mode Mode) (*File, error) {
	path = CanonicalPath(path)
	o := &opt.Options{
		OpenFilesCacheCapacity: openFilesCache,
	}
	switch mode {
	case ModeRead:
		info, err := fs.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, &FormatError{Path: path, Err: errors.New("not a tree file")}
		}
		o.ReadOnly = true
		o.ErrorIfMissing = true
		// readers remember what they decode, so a block cache would only
		// hold second copies
		o.BlockCacheCapacity = -1
	case ModeAppend:
		if err := fs.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	case ModeTruncate:
		if err := fs.RemoveAll(path); err != nil {
			return nil, err
		}
		if err := fs.MkdirAll(path, 0o755); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid open mode %s", mode)
	}

	stor := newFSStorage(fs, path, mode == ModeRead)
	db, err := leveldb.Open(stor, o)
	if err != nil {
		return nil, errors.Join(&FormatError{Path: path, Err: err}, stor.Close())
	}
	f := &File{
		path: path,
		mode: mode,
		stor: stor,
		db:   db,
	}
	created, err := f.load()
	if err != nil {
		return nil, errors.Join(&FormatError{Path: path, Err: err}, f.release())
	}
	if created {
		log.Printf("[TRACE] store.Open: created new file %s with lineage %s", path, f.lineage)
	} else {
		log.Printf("[TRACE] store.Open: opened %s in %s mode", path, mode)
	}
	return f, nil
}

// load reads the structure and attributes of the file, or initializes a new
// one. It returns true if the file was initialized.
func (f *File) load() (bool, error) {
	version, err := f.db.Get(keyFormat, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		if !f.mode.Writable() {
			return false, errors.New("missing format version")
		}
		return true, f.init()
	case err != nil:
		return false, err
	}
	if string(version) != formatVersion {
		return false, fmt.Errorf("unsupported format version %q", version)
	}
	lineage, err := f.db.Get(keyLineage, nil)
	if err != nil {
		return false, fmt.Errorf("reading lineage: %w", err)
	}
	f.lineage = string(lineage)
	if err := f.loadNodes(); err != nil {
		return false, err
	}
	return false, f.loadAttrs()
}

func (f *File) init() error {
	f.root = newGroup(f, "", RootPath)
	f.lineage = NewLineage()
	rec, err := encodeNodeRecord(f.root)
	if err != nil {
		return err
	}
	b := new(leveldb.Batch)
	b.Put(keyFormat, []byte(formatVersion))
	b.Put(keyLineage, []byte(f.lineage))
	b.Put(nodeKey(RootPath), rec)
	return f.db.Write(b, nil)
}

// loadNodes builds the tree from the node records. Keys are sorted, so a
// group's record always comes before the records of its children.
func (f *File) loadNodes() error {
	iter := f.db.NewIterator(util.BytesPrefix([]byte{prefixNode}), nil)
	defer iter.Release()

	groups := map[string]*Group{}
	for iter.Next() {
		p := string(iter.Key()[1:])
		rec, err := decodeNodeRecord(iter.Value())
		if err != nil {
			return fmt.Errorf("node %s: %w", p, err)
		}
		if p == RootPath {
			if rec.Kind != kindGroup {
				return errors.New("root node is not a group")
			}
			f.root = newGroup(f, "", RootPath)
			groups[p] = f.root
			continue
		}

		parentPath, name := splitParent(p)
		parent, ok := groups[parentPath]
		if !ok || !ValidName(name) {
			return fmt.Errorf("node %s has no parent group", p)
		}
		switch rec.Kind {
		case kindGroup:
			g := newGroup(f, name, p)
			parent.children[name] = g
			groups[p] = g
		case kindLeaf:
			parent.children[name] = &Leaf{
				file:   f,
				name:   name,
				path:   p,
				attrs:  newAttributes(f, p),
				info:   Info{DType: rec.DType, Shape: rec.Shape},
				filter: rec.Filter,
			}
		}
	}
	if err := iter.Error(); err != nil {
		return err
	}
	if f.root == nil {
		return errors.New("missing root group")
	}
	return nil
}

func (f *File) loadAttrs() error {
	iter := f.db.NewIterator(util.BytesPrefix([]byte{prefixAttr}), nil)
	defer iter.Release()

	type loaded struct {
		attrs *Attributes
		name  string
		rec   attrRecordV1
	}
	var all []loaded
	for iter.Next() {
		p, name, err := splitAttrKey(iter.Key()[1:])
		if err != nil {
			return err
		}
		rec, err := decodeAttrRecord(iter.Value())
		if err != nil {
			return fmt.Errorf("attribute %q of %s: %w", name, p, err)
		}
		node, err := f.lookup(p)
		if err != nil {
			return fmt.Errorf("attribute %q of missing node %s", name, p)
		}
		all = append(all, loaded{attrs: node.Attrs(), name: name, rec: rec})
		f.attrOrder = max(f.attrOrder, rec.Order+1)
	}
	if err := iter.Error(); err != nil {
		return err
	}

	slices.SortStableFunc(all, func(a, b loaded) int { return a.rec.Order - b.rec.Order })
	for _, a := range all {
		a.attrs.load(a.name, a.rec.Order, &Dataset{DType: a.rec.DType, Shape: a.rec.Shape, Data: a.rec.Data})
	}
	return nil
}

// Root returns the root group of the file.
func (f *File) Root() *Group {
	return f.root
}

// Path returns the canonical path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Mode returns the mode the file was opened with.
func (f *File) Mode() Mode {
	return f.mode
}

// Lineage returns the unique identifier assigned to the file when it was
// first created. It survives appends but not truncation.
func (f *File) Lineage() string {
	return f.lineage
}

// IsClosed returns true once [File.Close] has been called.
func (f *File) IsClosed() bool {
	return f.closed
}

// Lookup returns the node at the given absolute path within the file.
func (f *File) Lookup(p string) (Node, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.lookup(p)
}

func (f *File) lookup(p string) (Node, error) {
	var node Node = f.root
	for _, name := range SplitPath(p) {
		g, ok := node.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a group", ErrNotFound, node.Path())
		}
		child, err := g.Child(name)
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// Flush makes everything written so far durable. Writes are visible to
// later readers as soon as they return, but without a flush they may be
// lost if the process crashes. It does nothing for a read-only file.
func (f *File) Flush() error {
	if f.closed {
		return ErrClosed
	}
	if !f.mode.Writable() {
		return nil
	}
	if err := f.db.Put(keyLineage, []byte(f.lineage), &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("persisting %s: %w", f.path, err)
	}
	log.Printf("[TRACE] store.File: flushed %s", f.path)
	return nil
}

// Close flushes any pending changes and releases the underlying database.
// Calling Close more than once returns [ErrClosed].
func (f *File) Close() error {
	if f.closed {
		return ErrClosed
	}
	err := f.Flush()
	f.closed = true
	return errors.Join(err, f.release())
}

func (f *File) release() error {
	return errors.Join(f.db.Close(), f.stor.Close())
}

func (f *File) checkWritable() error {
	if f.closed {
		return ErrClosed
	}
	if !f.mode.Writable() {
		return ErrReadOnly
	}
	return nil
}

func (f *File) write(b *leveldb.Batch) error {
	return f.db.Write(b, nil)
}
