// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"fmt"
	"slices"

	"github.com/syndtr/goleveldb/leveldb"
)

// Attributes is the ordered set of string-keyed datasets attached to a node.
//
// Attribute values are held in memory for as long as the file is open, so
// reading them never touches the database.
type Attributes struct {
	file   *File
	path   string
	names  []string
	order  map[string]int
	values map[string]*Dataset
}

func newAttributes(file *File, path string) *Attributes {
	return &Attributes{
		file:   file,
		path:   path,
		order:  map[string]int{},
		values: map[string]*Dataset{},
	}
}

// Get returns the named attribute.
func (a *Attributes) Get(name string) (*Dataset, bool) {
	ds, ok := a.values[name]
	return ds, ok
}

// Has returns true if the named attribute exists.
func (a *Attributes) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// String returns the named attribute if it exists and is a string.
func (a *Attributes) String(name string) (string, bool) {
	ds, ok := a.values[name]
	if !ok || ds.DType != DTypeString {
		return "", false
	}
	return string(ds.Data), true
}

// Keys returns the attribute names in the order they were first set.
func (a *Attributes) Keys() []string {
	return slices.Clone(a.names)
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	return len(a.names)
}

// Set creates or replaces the named attribute.
func (a *Attributes) Set(name string, ds *Dataset) error {
	if err := a.file.checkWritable(); err != nil {
		return err
	}
	if name == "" {
		return errInvalidName(name)
	}
	if err := checkShape(ds.Shape); err != nil {
		return fmt.Errorf("setting attribute %q of %s: %w", name, a.path, err)
	}
	order, exists := a.order[name]
	if !exists {
		order = a.file.attrOrder
	}
	rec, err := encodeAttrRecord(order, ds)
	if err != nil {
		return fmt.Errorf("encoding attribute %q of %s: %w", name, a.path, err)
	}
	if err := a.file.db.Put(attrKey(a.path, name), rec, nil); err != nil {
		return fmt.Errorf("writing attribute %q of %s: %w", name, a.path, err)
	}
	if !exists {
		a.file.attrOrder++
	}
	a.load(name, order, ds)
	return nil
}

// SetString is a shorthand for setting a string attribute.
func (a *Attributes) SetString(name, value string) error {
	return a.Set(name, NewString(value))
}

// Delete removes the named attribute, if present.
func (a *Attributes) Delete(name string) error {
	if err := a.file.checkWritable(); err != nil {
		return err
	}
	if _, exists := a.values[name]; !exists {
		return nil
	}
	if err := a.file.db.Delete(attrKey(a.path, name), nil); err != nil {
		return fmt.Errorf("deleting attribute %q of %s: %w", name, a.path, err)
	}
	a.forget(name)
	return nil
}

// deleteAll adds the deletion of every attribute to b.
func (a *Attributes) deleteAll(b *leveldb.Batch) {
	for _, name := range a.names {
		b.Delete(attrKey(a.path, name))
	}
}

// load records an attribute that is already stored.
func (a *Attributes) load(name string, order int, ds *Dataset) {
	if _, exists := a.values[name]; !exists {
		a.names = append(a.names, name)
	}
	a.order[name] = order
	a.values[name] = ds
}

func (a *Attributes) forget(name string) {
	delete(a.values, name)
	delete(a.order, name)
	a.names = slices.DeleteFunc(a.names, func(n string) bool { return n == name })
}
