// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/spf13/afero"
)

// fileConfig is the HCL shape of a configuration file. Every setting is
// optional, and settings that are absent keep their default.
type fileConfig struct {
	DefaultSuffix     *string           `hcl:"default_suffix,optional"`
	UseLazy           *bool             `hcl:"use_lazy,optional"`
	Compression       *compressionBlock `hcl:"default_compression,block"`
	AllowFallbackOpen *bool             `hcl:"allow_fallback_open,optional"`
	AllowOverwrite    *bool             `hcl:"allow_overwrite,optional"`
	MaxOpenFiles      *int              `hcl:"max_open_files,optional"`
	SqueezeSingle     *bool             `hcl:"squeeze_single,optional"`
}

type compressionBlock struct {
	Enabled *bool `hcl:"enabled,optional"`
	Level   *int  `hcl:"level,optional"`
}

// LoadFile reads an HCL configuration file, applying its settings on top of
// [Default], and validates the result. The file name must end in ".hcl", or
// in ".json" for the JSON variant of the syntax.
func LoadFile(fs afero.Fs, path string) (Config, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	var raw fileConfig
	if err := hclsimple.Decode(path, src, nil, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg := Default()
	setIf(&cfg.DefaultSuffix, raw.DefaultSuffix)
	setIf(&cfg.UseLazy, raw.UseLazy)
	if raw.Compression != nil {
		setIf(&cfg.Compression.Enabled, raw.Compression.Enabled)
		setIf(&cfg.Compression.Level, raw.Compression.Level)
	}
	setIf(&cfg.AllowFallbackOpen, raw.AllowFallbackOpen)
	setIf(&cfg.AllowOverwrite, raw.AllowOverwrite)
	setIf(&cfg.MaxOpenFiles, raw.MaxOpenFiles)
	setIf(&cfg.SqueezeSingle, raw.SqueezeSingle)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// FromEnv loads the file named by [EnvConfigFile], or returns [Default] if
// the variable is unset.
func FromEnv(fs afero.Fs) (Config, error) {
	path := os.Getenv(EnvConfigFile)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(fs, path)
}

// Decode applies the given overrides on top of base. Keys are setting
// names, with a dot separating a block from its setting, such as
// "default_compression.level". Values may be strings, which are converted
// to the setting's type.
func Decode(base Config, raw map[string]any) (Config, error) {
	nested := map[string]any{}
	for key, v := range raw {
		block, setting, ok := strings.Cut(key, ".")
		if !ok {
			nested[key] = v
			continue
		}
		m, ok := nested[block].(map[string]any)
		if !ok {
			m = map[string]any{}
			nested[block] = m
		}
		m[setting] = v
	}

	cfg := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		// Unknown settings are mistakes, not extensions.
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(nested); err != nil {
		return Config{}, fmt.Errorf("decoding settings: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
