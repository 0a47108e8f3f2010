// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package flags

import (
	"flag"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestRawFlagsSettings(t *testing.T) {
	set := NewRawFlags("-set")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Var(set, "set", "")
	if err := fs.Parse([]string{"-set", "use_lazy=false", "-set", "max_open_files=3", "-set", "use_lazy=true"}); err != nil {
		t.Fatal(err)
	}
	if !IsSet(fs, "set") {
		t.Error("-set is not reported as set")
	}

	got, err := set.Settings()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"use_lazy":       "true",
		"max_open_files": "3",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("wrong result:\n%s", diff)
	}
}

func TestRawFlagsSettingsInvalid(t *testing.T) {
	for _, value := range []string{"use_lazy", "=true"} {
		set := NewRawFlags("-set")
		if err := set.Set(value); err != nil {
			t.Fatal(err)
		}
		if _, err := set.Settings(); err == nil {
			t.Errorf("%q was accepted", value)
		}
	}
}

func TestRawFlagsEmpty(t *testing.T) {
	var zero RawFlags
	if !zero.Empty() || zero.AllItems() != nil {
		t.Error("zero value isn't empty")
	}
	got, err := zero.Settings()
	if err != nil || len(got) != 0 {
		t.Errorf("zero value has settings %v, %v", got, err)
	}
}

func TestIsSet(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("config", "", "")
	fs.String("other", "x", "")
	if err := fs.Parse([]string{"-config="}); err != nil {
		t.Fatal(err)
	}
	if !IsSet(fs, "config") {
		t.Error("-config set to its default is not reported as set")
	}
	if IsSet(fs, "other") {
		t.Error("-other is reported as set")
	}
	if IsSet(fs, "missing") {
		t.Error("undefined flag is reported as set")
	}
}
