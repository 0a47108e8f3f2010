// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package lazy

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

const testPath = "test.hdf"

// testFS returns a filesystem holding a tree file at testPath.
func testFS(t *testing.T, attrs map[string]any) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	f, err := store.Open(fs, testPath, store.ModeTruncate)
	if err != nil {
		t.Fatal(err)
	}
	input := map[string]any{
		"a":   1,
		"b":   "two",
		"tup": value.Tuple{1, "x"},
		"sub": map[string]any{
			"x": "y",
			"deep": map[string]any{
				"z": 2.5,
			},
		},
	}
	if err := (&codec.Encoder{}).EncodeMapping(f.Root(), input); err != nil {
		t.Fatal(err)
	}
	if attrs != nil {
		if err := codec.EncodeAttributes(f.Root(), attrs); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return fs
}

type opener struct {
	fs    afero.Fs
	calls int
}

func (o *opener) open(path string) (*store.File, error) {
	o.calls++
	return store.Open(o.fs, path, store.ModeRead)
}

func openContainer(t *testing.T, fs afero.Fs, opts Options) *Container {
	t.Helper()
	f, err := store.Open(fs, testPath, store.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	c, err := Open(f, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestContainerGet(t *testing.T) {
	c := openContainer(t, testFS(t, nil), Options{})

	if diff := cmp.Diff([]string{"a", "b", "sub", "tup"}, c.Keys()); diff != "" {
		t.Errorf("wrong keys:\n%s", diff)
	}
	if !c.IsRoot() || !c.IsOpen() {
		t.Error("new container should be an open root")
	}
	if got := c.Attrs(); got != nil {
		t.Errorf("unexpected attributes %#v", got)
	}

	got, err := c.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(1) {
		t.Errorf("wrong value for a: %#v", got)
	}

	got, err = c.Get("tup")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(value.Tuple{int64(1), "x"}, got); diff != "" {
		t.Errorf("wrong value for tup:\n%s", diff)
	}

	got, err = c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	sub, ok := got.(*Container)
	if !ok {
		t.Fatalf("sub is %T, not a container", got)
	}
	if sub.IsRoot() {
		t.Error("child container claims to be a root")
	}
	if sub.Path() != "/sub" {
		t.Errorf("wrong child path %q", sub.Path())
	}
	if sub.Handle() != c.Handle() {
		t.Error("child container doesn't share the root's handle")
	}
	got, err = sub.Get("x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "y" {
		t.Errorf("wrong value for sub/x: %#v", got)
	}
	again, err := c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	if again != sub {
		t.Error("second read of sub returned a different container")
	}

	if _, err := c.Get("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("wrong error for missing key: %v", err)
	}
}

func TestContainerAttrs(t *testing.T) {
	c := openContainer(t, testFS(t, map[string]any{"author": "me"}), Options{})

	if !c.Has(AttrsKey) {
		t.Fatalf("no %s key in %v", AttrsKey, c.Keys())
	}
	got, err := c.Get(AttrsKey)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"author": "me"}, got); diff != "" {
		t.Errorf("wrong attributes:\n%s", diff)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]any{"author": "me"}, c.Attrs()); diff != "" {
		t.Errorf("wrong attributes after close:\n%s", diff)
	}
}

func TestContainerMemoized(t *testing.T) {
	fs := testFS(t, nil)
	c := openContainer(t, fs, Options{})

	if _, err := c.Get("a"); err != nil {
		t.Fatal(err)
	}
	sub, err := c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.(*Container).Get("x"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// After close, memoized values remain readable without reopening.
	got, err := c.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if got != int64(1) {
		t.Errorf("wrong value for a: %#v", got)
	}
	got, err = sub.(*Container).Get("x")
	if err != nil {
		t.Fatal(err)
	}
	if got != "y" {
		t.Errorf("wrong value for sub/x: %#v", got)
	}
	if sub.(*Container).IsOpen() {
		t.Error("child container still open after its root was closed")
	}
}

func TestContainerFallback(t *testing.T) {
	fs := testFS(t, nil)

	t.Run("enabled", func(t *testing.T) {
		o := &opener{fs: fs}
		c := openContainer(t, fs, Options{AllowFallback: true, Opener: o.open})
		sub, err := c.Get("sub")
		if err != nil {
			t.Fatal(err)
		}
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}

		for range 2 {
			got, err := c.Get("b")
			if err != nil {
				t.Fatal(err)
			}
			if got != "two" {
				t.Errorf("wrong value for b: %#v", got)
			}
		}
		if o.calls != 2 {
			t.Errorf("file was reopened %d times; want 2", o.calls)
		}

		got, err := sub.(*Container).Get("deep")
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(map[string]any{"z": 2.5}, got); diff != "" {
			t.Errorf("wrong value for sub/deep:\n%s", diff)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		c := openContainer(t, fs, Options{})
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
		_, err := c.Get("b")
		var closedErr *ClosedResourceError
		if !errors.As(err, &closedErr) {
			t.Fatalf("wrong error %v; want a ClosedResourceError", err)
		}
		if closedErr.Key != "/b" || closedErr.Path != testPath {
			t.Errorf("wrong error details %#v", closedErr)
		}
	})
}

type fakeRegistry struct {
	removed []string
}

func (r *fakeRegistry) Remove(path string) bool {
	r.removed = append(r.removed, path)
	return true
}

func TestContainerClose(t *testing.T) {
	reg := &fakeRegistry{}
	c := openContainer(t, testFS(t, nil), Options{Registry: reg})

	sub, err := c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	if err := sub.(*Container).Close(); err != nil {
		t.Fatal(err)
	}
	if !c.IsOpen() {
		t.Fatal("closing a child container closed the root")
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close failed: %s", err)
	}
	if c.IsOpen() {
		t.Error("container is still open")
	}
	if diff := cmp.Diff([]string{testPath}, reg.removed); diff != "" {
		t.Errorf("wrong registry removals:\n%s", diff)
	}
	if _, err := c.Group(); !errors.Is(err, store.ErrClosed) {
		t.Errorf("wrong error from Group after close: %v", err)
	}
}

func TestContainerCloseOnDiscard(t *testing.T) {
	fs := testFS(t, nil)
	h := func() *Handle {
		f, err := store.Open(fs, testPath, store.ModeRead)
		if err != nil {
			t.Fatal(err)
		}
		c, err := Open(f, Options{})
		if err != nil {
			t.Fatal(err)
		}
		return c.Handle()
	}()

	for i := 0; i < 50 && h.IsLive(); i++ {
		runtime.GC()
		time.Sleep(10 * time.Millisecond)
	}
	if h.IsLive() {
		t.Error("file of a discarded container is still open")
	}
}

func TestContainerUnlazy(t *testing.T) {
	c := openContainer(t, testFS(t, map[string]any{"n": 3}), Options{})

	got, err := c.Unlazy()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"a":   int64(1),
		"b":   "two",
		"tup": value.Tuple{int64(1), "x"},
		"sub": map[string]any{
			"x": "y",
			"deep": map[string]any{
				"z": 2.5,
			},
		},
		"attrs": map[string]any{"n": int64(3)},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong result:\n%s", diff)
	}
	if c.IsOpen() {
		t.Error("container still open after Unlazy")
	}

	// Everything is now available without the file.
	sub, err := c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want["sub"], sub); diff != "" {
		t.Errorf("wrong value for sub after Unlazy:\n%s", diff)
	}
}

func TestContainerSnapshot(t *testing.T) {
	c := openContainer(t, testFS(t, nil), Options{})
	if _, err := c.Get("a"); err != nil {
		t.Fatal(err)
	}
	sub, err := c.Get("sub")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sub.(*Container).Get("x"); err != nil {
		t.Fatal(err)
	}

	got, err := c.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"a":   int64(1),
		"sub": map[string]any{"x": "y"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong snapshot:\n%s", diff)
	}
}

func TestHandleRelease(t *testing.T) {
	fs := testFS(t, nil)
	f, err := store.Open(fs, testPath, store.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHandle(f)
	if !h.IsLive() {
		t.Fatal("new handle is not live")
	}
	if err := h.Release(); err != nil {
		t.Fatal(err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second release failed: %s", err)
	}
	if h.IsLive() {
		t.Error("released handle is still live")
	}
}
