// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package command implements the subcommands of the lazytree CLI.
package command

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
	"github.com/spf13/afero"

	"github.com/opentofu/lazytree"
	"github.com/opentofu/lazytree/internal/command/flags"
	"github.com/opentofu/lazytree/internal/config"
	"github.com/opentofu/lazytree/internal/store"
)

// Meta holds what every command needs: where to write output, which
// filesystem to read, and the settings given on the command line.
type Meta struct {
	Ui cli.Ui

	// FS is the filesystem that tree files and configuration files are read
	// from. If nil, the operating system's filesystem is used.
	FS afero.Fs

	// Logger is handed to the manager. If nil, nothing is logged.
	Logger hclog.Logger

	configPath string
	settings   flags.RawFlags
}

func (m *Meta) fs() afero.Fs {
	if m.FS == nil {
		m.FS = afero.NewOsFs()
	}
	return m.FS
}

// defaultFlagSet returns a flag set with the options shared by every
// command already registered.
func (m *Meta) defaultFlagSet(name string) *flag.FlagSet {
	f := flag.NewFlagSet(name, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = func() {}

	m.settings = flags.NewRawFlags("-set")
	f.StringVar(&m.configPath, "config", "", "configuration file")
	f.Var(m.settings, "set", "setting override")
	return f
}

// config returns the settings selected by -config, or by the environment,
// with every -set override applied.
func (m *Meta) config(f *flag.FlagSet) (config.Config, error) {
	var cfg config.Config
	var err error
	if flags.IsSet(f, "config") {
		cfg, err = config.LoadFile(m.fs(), m.configPath)
	} else {
		cfg, err = config.FromEnv(m.fs())
	}
	if err != nil {
		return config.Config{}, err
	}
	if m.settings.Empty() {
		return cfg, nil
	}
	raw, err := m.settings.Settings()
	if err != nil {
		return config.Config{}, err
	}
	return config.Decode(cfg, raw)
}

// manager returns a manager for the parsed command line.
func (m *Meta) manager(f *flag.FlagSet) (*lazytree.Manager, error) {
	cfg, err := m.config(f)
	if err != nil {
		return nil, err
	}
	logger := m.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return lazytree.NewManager(cfg, lazytree.WithFS(m.fs()), lazytree.WithLogger(logger))
}

// openFile opens the tree file named on the command line for reading. The
// default suffix is tried if the name as given doesn't exist.
func (m *Meta) openFile(mgr *lazytree.Manager, name string) (*store.File, error) {
	path, err := mgr.Resolve(name)
	if err != nil {
		return nil, err
	}
	return store.Open(m.fs(), path, store.ModeRead)
}

// errorf reports a problem and returns the exit status for a failure.
func (m *Meta) errorf(format string, args ...any) int {
	m.Ui.Error(fmt.Sprintf(format, args...))
	return 1
}

// matcher returns a function reporting whether a slash-separated key path,
// without a leading slash, matches pattern. An empty pattern matches
// everything.
func matcher(pattern string) (func(path string) bool, error) {
	if pattern == "" {
		return func(string) bool { return true }, nil
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid -match pattern %q", pattern)
	}
	return func(path string) bool {
		ok, _ := doublestar.Match(pattern, strings.TrimPrefix(path, "/"))
		return ok
	}, nil
}

// singleArg returns the only positional argument.
func singleArg(f *flag.FlagSet) (string, error) {
	args := f.Args()
	if len(args) != 1 {
		return "", fmt.Errorf("expected exactly one file argument, got %d", len(args))
	}
	return args[0], nil
}
