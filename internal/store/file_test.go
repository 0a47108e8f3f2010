// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/syndtr/goleveldb/leveldb"
)

func mustNumeric(t *testing.T, data any, shape []int) *Dataset {
	t.Helper()
	ds, err := NewNumeric(data, shape)
	if err != nil {
		t.Fatal(err)
	}
	return ds
}

func TestFileRoundtrip(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "/data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	lineage := f.Lineage()
	if lineage == "" {
		t.Fatal("new file has no lineage")
	}
	if err := f.Root().Attrs().SetString("author", "me"); err != nil {
		t.Fatal(err)
	}
	sub, err := f.Root().CreateGroup("sub")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.CreateLeaf("plain", mustNumeric(t, []float64{1.5, 2.5, 3.5}, nil), NoCompression); err != nil {
		t.Fatal(err)
	}
	packed, err := sub.CreateLeaf("packed", mustNumeric(t, []int32{1, 2, 3, 4, 5, 6}, []int{2, 3}), Compression{Enabled: true, Level: 5})
	if err != nil {
		t.Fatal(err)
	}
	if err := packed.Attrs().SetString("_TYPE_", "thing"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Root().CreateLeaf("name", NewString("hello"), NoCompression); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "/data.hdf", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if got := f.Lineage(); got != lineage {
		t.Errorf("wrong lineage %q; want %q", got, lineage)
	}
	if got, _ := f.Root().Attrs().String("author"); got != "me" {
		t.Errorf("wrong author attribute %q", got)
	}
	if diff := cmp.Diff([]string{"name", "sub"}, f.Root().Children()); diff != "" {
		t.Errorf("wrong root children:\n%s", diff)
	}

	node, err := f.Lookup("/sub/packed")
	if err != nil {
		t.Fatal(err)
	}
	leaf := node.(*Leaf)
	if !leaf.Compressed() {
		t.Error("packed leaf is not compressed")
	}
	if got, _ := leaf.Attrs().String("_TYPE_"); got != "thing" {
		t.Errorf("wrong leaf attribute %q", got)
	}
	ds, err := leaf.Dataset()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ds.Numeric()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{1, 2, 3, 4, 5, 6}, got); diff != "" {
		t.Errorf("wrong packed data:\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, ds.Shape); diff != "" {
		t.Errorf("wrong packed shape:\n%s", diff)
	}

	node, err = f.Lookup("/sub/plain")
	if err != nil {
		t.Fatal(err)
	}
	ds, err = node.(*Leaf).Dataset()
	if err != nil {
		t.Fatal(err)
	}
	got, err = ds.Numeric()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float64{1.5, 2.5, 3.5}, got); diff != "" {
		t.Errorf("wrong plain data:\n%s", diff)
	}

	node, err = f.Lookup("name")
	if err != nil {
		t.Fatal(err)
	}
	ds, err = node.(*Leaf).Dataset()
	if err != nil {
		t.Fatal(err)
	}
	if got := string(ds.Data); got != "hello" {
		t.Errorf("wrong string %q", got)
	}
}

func TestFileAppend(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data.hdf", ModeAppend)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Root().CreateLeaf("a", NewString("first"), NoCompression); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeAppend)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.Root().CreateLeaf("a", NewString("again"), NoCompression)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("wrong error %v; want a ConflictError", err)
	}
	if conflict.Path != "/a" {
		t.Errorf("wrong conflict path %q", conflict.Path)
	}
	if _, err := f.Root().CreateLeaf("b", NewString("second"), NoCompression); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for name, want := range map[string]string{"a": "first", "b": "second"} {
		node, err := f.Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		ds, err := node.(*Leaf).Dataset()
		if err != nil {
			t.Fatal(err)
		}
		if got := string(ds.Data); got != want {
			t.Errorf("wrong value for %s: got %q, want %q", name, got, want)
		}
	}
}

func TestFileTruncate(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	first := f.Lineage()
	if _, err := f.Root().CreateLeaf("a", NewString("first"), NoCompression); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	if f.Lineage() == first {
		t.Error("truncated file kept its lineage")
	}
	if f.Root().Len() != 0 {
		t.Errorf("truncated file still has children %v", f.Root().Children())
	}
	if _, err := f.Root().CreateLeaf("a", NewString("second"), NoCompression); err != nil {
		t.Fatalf("unexpected error recreating a: %s", err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestFileReadOnly(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Open(fs, "missing.hdf", ModeRead)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("wrong error for missing file: %v", err)
	}

	f, err := Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.Root().CreateGroup("g"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("wrong error creating a group: %v", err)
	}
	if err := f.Root().Attrs().SetString("k", "v"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("wrong error setting an attribute: %v", err)
	}
}

func TestFileClose(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := f.Root().CreateLeaf("a", NewString("x"), NoCompression)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.IsClosed() {
		t.Error("file doesn't report being closed")
	}
	if err := f.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("wrong error from second close: %v", err)
	}
	if _, err := leaf.Dataset(); !errors.Is(err, ErrClosed) {
		t.Errorf("wrong error reading from closed file: %v", err)
	}
	if _, err := f.Lookup("a"); !errors.Is(err, ErrClosed) {
		t.Errorf("wrong error looking up in closed file: %v", err)
	}
}

// rawDB opens the database behind the tree file at path directly, to damage
// it in ways the store itself never would.
func rawDB(t *testing.T, fs afero.Fs, path string) *leveldb.DB {
	t.Helper()
	db, err := leveldb.Open(newFSStorage(fs, path, false), nil)
	if err != nil {
		t.Fatal(err)
	}
	return db
}

func TestFileCorrupt(t *testing.T) {
	tests := map[string]func(db *leveldb.DB) error{
		"no format version": func(db *leveldb.DB) error {
			return db.Delete(keyFormat, nil)
		},
		"future format version": func(db *leveldb.DB) error {
			return db.Put(keyFormat, []byte("9"), nil)
		},
		"no root": func(db *leveldb.DB) error {
			return db.Delete(nodeKey(RootPath), nil)
		},
		"bad node record": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte("nope"), nil)
		},
		"unknown kind": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte(`{"kind":"link"}`), nil)
		},
		"orphan node": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/missing/x"), []byte(`{"kind":"group"}`), nil)
		},
		"unknown dtype": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte(`{"kind":"leaf","dtype":"float128"}`), nil)
		},
		"unknown filter": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte(`{"kind":"leaf","dtype":"int64","filter":"lzf"}`), nil)
		},
		"negative shape": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte(`{"kind":"leaf","dtype":"int64","shape":[-1]}`), nil)
		},
		"shape overflow": func(db *leveldb.DB) error {
			return db.Put(nodeKey("/x"), []byte(`{"kind":"leaf","dtype":"int64","shape":[9223372036854775807,4]}`), nil)
		},
		"negative attribute shape": func(db *leveldb.DB) error {
			return db.Put(attrKey(RootPath, "k"), []byte(`{"order":0,"dtype":"bytes[]","shape":[-3],"data":""}`), nil)
		},
		"attribute of missing node": func(db *leveldb.DB) error {
			return db.Put(attrKey("/missing", "k"), []byte(`{"order":0,"dtype":"string","data":""}`), nil)
		},
	}
	for name, damage := range tests {
		t.Run(name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			f, err := Open(fs, "bad.hdf", ModeTruncate)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.Close(); err != nil {
				t.Fatal(err)
			}
			db := rawDB(t, fs, "bad.hdf")
			if err := damage(db); err != nil {
				t.Fatal(err)
			}
			if err := db.Close(); err != nil {
				t.Fatal(err)
			}

			_, err = Open(fs, "bad.hdf", ModeRead)
			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("wrong error %v; want a FormatError", err)
			}
		})
	}
}

func TestFileNotATree(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "plain.hdf", []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := fs.MkdirAll("empty.hdf", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, path := range []string{"plain.hdf", "empty.hdf"} {
		_, err := Open(fs, path, ModeRead)
		var formatErr *FormatError
		if !errors.As(err, &formatErr) {
			t.Errorf("wrong error for %s: %v; want a FormatError", path, err)
		}
	}
}

func TestGroupDelete(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := f.Root().CreateGroup("sub")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := sub.CreateLeaf("x", NewString("gone"), NoCompression)
	if err != nil {
		t.Fatal(err)
	}
	if err := leaf.Attrs().SetString("k", "v"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Root().CreateLeaf("keep", NewString("kept"), NoCompression); err != nil {
		t.Fatal(err)
	}
	if err := f.Root().Delete("sub"); err != nil {
		t.Fatal(err)
	}
	if err := f.Root().Delete("sub"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong error deleting a missing child: %v", err)
	}
	// the name is free again
	if _, err := f.Root().CreateGroup("sub"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if diff := cmp.Diff([]string{"keep", "sub"}, f.Root().Children()); diff != "" {
		t.Errorf("wrong root children:\n%s", diff)
	}
	if _, err := f.Lookup("/sub/x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted leaf is still present: %v", err)
	}
	if err := f.Root().Delete("keep"); !errors.Is(err, ErrReadOnly) {
		t.Errorf("wrong error deleting from a read-only file: %v", err)
	}
}

func TestAttributesOrder(t *testing.T) {
	fs := afero.NewMemMapFs()

	f, err := Open(fs, "data.hdf", ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	attrs := f.Root().Attrs()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := attrs.SetString(name, name); err != nil {
			t.Fatal(err)
		}
	}
	if err := attrs.SetString("zeta", "replaced"); err != nil {
		t.Fatal(err)
	}
	if err := attrs.Delete("mid"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeAppend)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Root().Attrs().SetString("last", "x"); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, "data.hdf", ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if diff := cmp.Diff([]string{"zeta", "alpha", "last"}, f.Root().Attrs().Keys()); diff != "" {
		t.Errorf("wrong attribute order:\n%s", diff)
	}
	if got, _ := f.Root().Attrs().String("zeta"); got != "replaced" {
		t.Errorf("wrong replaced value %q", got)
	}
}

func TestFileOnDisk(t *testing.T) {
	fs := afero.NewOsFs()
	path := filepath.Join(t.TempDir(), "data.hdf")

	f, err := Open(fs, path, ModeAppend)
	if err != nil {
		t.Fatal(err)
	}
	data := make([]float64, 1000)
	for i := range data {
		data[i] = float64(i) / 4
	}
	if _, err := f.Root().CreateLeaf("big", mustNumeric(t, data, nil), Compression{Enabled: true, Level: 9}); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	f, err = Open(fs, path, ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	node, err := f.Lookup("/big")
	if err != nil {
		t.Fatal(err)
	}
	ds, err := node.(*Leaf).Dataset()
	if err != nil {
		t.Fatal(err)
	}
	got, err := ds.Numeric()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(data, got); diff != "" {
		t.Errorf("wrong data:\n%s", diff)
	}
}
