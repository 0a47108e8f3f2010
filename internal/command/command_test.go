// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"strings"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/opentofu/lazytree"
	"github.com/opentofu/lazytree/internal/config"
	"github.com/opentofu/lazytree/internal/store"
	"github.com/opentofu/lazytree/value"
)

// testFixture returns a filesystem holding data.hdf.
func testFixture(t *testing.T) afero.Fs {
	t.Helper()
	t.Setenv(config.EnvConfigFile, "")
	fs := afero.NewMemMapFs()
	m, err := lazytree.NewManager(config.Default(), lazytree.WithFS(fs))
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Save("data", map[string]any{
		"arr": []float64{1, 2, 3},
		"sub": map[string]any{
			"x": "y",
		},
		"tup": value.Tuple{int64(1), "a"},
		"attrs": map[string]any{
			"author": "me",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return fs
}

func TestTree(t *testing.T) {
	ui := cli.NewMockUi()
	c := &TreeCommand{Meta: Meta{Ui: ui, FS: testFixture(t)}}

	if code := c.Run([]string{"data"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	output := ui.OutputWriter.String()
	for _, want := range []string{"data.hdf", "arr float64[3] gzip", "sub/", "x string", "[tuple]", "tup/", "1 file attributes"} {
		if !strings.Contains(output, want) {
			t.Errorf("output doesn't contain %q:\n%s", want, output)
		}
	}
}

func TestTreeLineage(t *testing.T) {
	fs := testFixture(t)
	f, err := store.Open(fs, "data.hdf", store.ModeRead)
	if err != nil {
		t.Fatal(err)
	}
	lineage := f.Lineage()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	ui := cli.NewMockUi()
	c := &TreeCommand{Meta: Meta{Ui: ui, FS: fs}}
	if code := c.Run([]string{"data"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	first, _, _ := strings.Cut(ui.OutputWriter.String(), "\n")
	if want := "data.hdf (lineage " + lineage + ")"; first != want {
		t.Errorf("wrong root line %q; want %q", first, want)
	}
}

func TestTreeMatch(t *testing.T) {
	ui := cli.NewMockUi()
	c := &TreeCommand{Meta: Meta{Ui: ui, FS: testFixture(t)}}

	if code := c.Run([]string{"-match", "sub/**", "data.hdf"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	output := ui.OutputWriter.String()
	if !strings.Contains(output, "x string") {
		t.Errorf("matching leaf is missing:\n%s", output)
	}
	if strings.Contains(output, "arr") || strings.Contains(output, "tup") {
		t.Errorf("output has nodes that don't match:\n%s", output)
	}
}

func TestDump(t *testing.T) {
	tests := map[string]struct {
		args    []string
		want    []string
		notWant []string
	}{
		"everything": {
			args: []string{"data"},
			want: []string{"arr:", "author: me", "x: y"},
		},
		"match": {
			args:    []string{"-match", "sub/*", "data"},
			want:    []string{"x: y"},
			notWant: []string{"arr", "author"},
		},
		"lazy match": {
			args:    []string{"-lazy", "-match", "sub/x", "data"},
			want:    []string{"x: y"},
			notWant: []string{"arr", "author"},
		},
		"lazy group match": {
			args:    []string{"-lazy", "-match", "sub", "data"},
			want:    []string{"x: y"},
			notWant: []string{"arr"},
		},
		"attrs only": {
			args:    []string{"-match", "attrs/**", "data"},
			want:    []string{"author: me"},
			notWant: []string{"arr"},
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ui := cli.NewMockUi()
			c := &DumpCommand{Meta: Meta{Ui: ui, FS: testFixture(t)}}
			if code := c.Run(test.args); code != 0 {
				t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
			}
			output := ui.OutputWriter.String()
			for _, want := range test.want {
				if !strings.Contains(output, want) {
					t.Errorf("output doesn't contain %q:\n%s", want, output)
				}
			}
			for _, notWant := range test.notWant {
				if strings.Contains(output, notWant) {
					t.Errorf("output contains %q:\n%s", notWant, output)
				}
			}
		})
	}
}

func TestDumpSettings(t *testing.T) {
	fs := testFixture(t)
	if err := afero.WriteFile(fs, "lazytree.hcl", []byte(`squeeze_single = false`), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := lazytree.NewManager(config.Default(), lazytree.WithFS(fs))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Save("single", map[string]any{"only": "value"}); err != nil {
		t.Fatal(err)
	}

	ui := cli.NewMockUi()
	c := &DumpCommand{Meta: Meta{Ui: ui, FS: fs}}
	if code := c.Run([]string{"single"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	if got := strings.TrimSpace(ui.OutputWriter.String()); got != "value" {
		t.Errorf("squeezed output is %q; want value", got)
	}

	ui = cli.NewMockUi()
	c = &DumpCommand{Meta: Meta{Ui: ui, FS: fs}}
	if code := c.Run([]string{"-config", "lazytree.hcl", "single"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	if got := strings.TrimSpace(ui.OutputWriter.String()); got != "only: value" {
		t.Errorf("unsqueezed output is %q; want only: value", got)
	}
}

func TestAttrs(t *testing.T) {
	ui := cli.NewMockUi()
	c := &AttrsCommand{Meta: Meta{Ui: ui, FS: testFixture(t)}}
	if code := c.Run([]string{"data"}); code != 0 {
		t.Fatalf("bad: %d\n%s", code, ui.ErrorWriter.String())
	}
	if got := strings.TrimSpace(ui.OutputWriter.String()); got != "author: me" {
		t.Errorf("wrong output %q", got)
	}
}

func TestCommandErrors(t *testing.T) {
	tests := map[string]struct {
		args []string
		code int
	}{
		"no file":       {nil, cli.RunResultHelp},
		"two files":     {[]string{"a", "b"}, cli.RunResultHelp},
		"unknown flag":  {[]string{"-nope", "data"}, cli.RunResultHelp},
		"missing file":  {[]string{"absent"}, 1},
		"bad setting":   {[]string{"-set", "max_open_files=0", "data"}, 1},
		"bad set value": {[]string{"-set", "max_open_files", "data"}, 1},
		"bad config":    {[]string{"-config", "absent.hcl", "data"}, 1},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			fs := testFixture(t)
			commands := map[string]cli.Command{
				"tree":  &TreeCommand{Meta: Meta{Ui: cli.NewMockUi(), FS: fs}},
				"dump":  &DumpCommand{Meta: Meta{Ui: cli.NewMockUi(), FS: fs}},
				"attrs": &AttrsCommand{Meta: Meta{Ui: cli.NewMockUi(), FS: fs}},
			}
			for cmdName, c := range commands {
				if code := c.Run(test.args); code != test.code {
					t.Errorf("%s returned %d; want %d", cmdName, code, test.code)
				}
			}
		})
	}
}

func TestMatchInvalidPattern(t *testing.T) {
	ui := cli.NewMockUi()
	c := &TreeCommand{Meta: Meta{Ui: ui, FS: testFixture(t)}}
	if code := c.Run([]string{"-match", "[", "data"}); code != 1 {
		t.Errorf("wrong exit code %d; want 1", code)
	}
}

func TestVersion(t *testing.T) {
	ui := cli.NewMockUi()
	c := &VersionCommand{Meta: Meta{Ui: ui}, Version: "1.0.0"}
	if code := c.Run(nil); code != 0 {
		t.Fatalf("bad: %d", code)
	}
	if !strings.HasPrefix(ui.OutputWriter.String(), "lazytree v1.0.0") {
		t.Errorf("wrong output %q", ui.OutputWriter.String())
	}
}
