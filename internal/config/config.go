// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package config holds the process-wide settings for saving and loading
// tree files, and knows how to read them from an HCL file and from
// key/value overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/opentofu/lazytree/internal/store"
)

// EnvConfigFile names a configuration file to load instead of the defaults.
const EnvConfigFile = "LAZYTREE_CONFIG_FILE"

// Config is the full set of recognized settings.
type Config struct {
	// DefaultSuffix is appended to file names that don't already end with
	// it.
	DefaultSuffix string `mapstructure:"default_suffix"`

	// UseLazy selects whether loads return lazy containers by default.
	UseLazy bool `mapstructure:"use_lazy"`

	Compression Compression `mapstructure:"default_compression"`

	// AllowFallbackOpen permits lazy containers to reopen a closed file to
	// read a key that wasn't loaded before the file was closed.
	AllowFallbackOpen bool `mapstructure:"allow_fallback_open"`

	// AllowOverwrite makes saves replace existing files. Otherwise saves
	// add to existing files and fail on names that already exist.
	AllowOverwrite bool `mapstructure:"allow_overwrite"`

	// MaxOpenFiles is the capacity of the queue of open files.
	MaxOpenFiles int `mapstructure:"max_open_files"`

	// SqueezeSingle makes an eager load of a file holding a single key
	// return that key's value instead of a mapping. It is on by default.
	SqueezeSingle bool `mapstructure:"squeeze_single"`
}

// Compression configures compression of array leaves.
type Compression struct {
	Enabled bool `mapstructure:"enabled"`
	Level   int  `mapstructure:"level"`
}

// Store returns the equivalent store setting.
func (c Compression) Store() store.Compression {
	return store.Compression{Enabled: c.Enabled, Level: c.Level}
}

// Default returns the settings used when nothing else is configured.
func Default() Config {
	return Config{
		DefaultSuffix: ".hdf",
		UseLazy:       true,
		Compression: Compression{
			Enabled: true,
			Level:   5,
		},
		AllowFallbackOpen: true,
		AllowOverwrite:    false,
		MaxOpenFiles:      12,
		SqueezeSingle:     true,
	}
}

// ValidationError lists every problem found by [Config.Validate].
type ValidationError struct {
	Err *multierror.Error
}

func (err *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", err.Err)
}

func (err *ValidationError) Unwrap() error {
	return err.Err
}

// Validate returns a [*ValidationError] if any setting is out of range.
func (c Config) Validate() error {
	var errs *multierror.Error
	if c.DefaultSuffix != "" && !strings.HasPrefix(c.DefaultSuffix, ".") {
		errs = multierror.Append(errs, fmt.Errorf("default_suffix %q must start with a dot", c.DefaultSuffix))
	}
	if strings.ContainsAny(c.DefaultSuffix, `/\`) {
		errs = multierror.Append(errs, fmt.Errorf("default_suffix %q must not contain path separators", c.DefaultSuffix))
	}
	if err := c.Compression.Store().Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("default_compression: %w", err))
	}
	if c.MaxOpenFiles < 1 {
		errs = multierror.Append(errs, fmt.Errorf("max_open_files must be at least 1, not %d", c.MaxOpenFiles))
	}
	if errs == nil {
		return nil
	}
	return &ValidationError{Err: errs}
}

// WithSuffix returns path with the default suffix appended, unless it
// already ends with it.
func (c Config) WithSuffix(path string) string {
	if c.DefaultSuffix == "" || strings.HasSuffix(path, c.DefaultSuffix) {
		return path
	}
	return path + c.DefaultSuffix
}
