// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package flags has flag.Value implementations shared by the commands.
package flags

import (
	"flag"
	"fmt"
	"strings"
)

// IsSet returns true if the flag named name was given on the command line,
// even if it was given its default value.
func IsSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		set = set || f.Name == name
	})
	return set
}

// RawFlags is a flag.Value that collects every occurrence of a repeatable
// flag, in order.
type RawFlags struct {
	FlagName string
	Items    *[]RawFlag
}

func NewRawFlags(flagName string) RawFlags {
	var items []RawFlag
	return RawFlags{
		FlagName: flagName,
		Items:    &items,
	}
}

func (f RawFlags) Empty() bool {
	return f.Items == nil || len(*f.Items) == 0
}

func (f RawFlags) AllItems() []RawFlag {
	if f.Items == nil {
		return nil
	}
	return *f.Items
}

func (f RawFlags) String() string {
	return ""
}

func (f RawFlags) Set(str string) error {
	*f.Items = append(*f.Items, RawFlag{
		Name:  f.FlagName,
		Value: str,
	})
	return nil
}

// Settings parses every item as a "key=value" pair. Later items override
// earlier ones with the same key.
func (f RawFlags) Settings() (map[string]any, error) {
	ret := make(map[string]any, len(f.AllItems()))
	for _, item := range f.AllItems() {
		key, value, err := item.KeyValue()
		if err != nil {
			return nil, err
		}
		ret[key] = value
	}
	return ret, nil
}

type RawFlag struct {
	Name  string
	Value string
}

// KeyValue splits the value of a "-name key=value" flag.
func (f RawFlag) KeyValue() (string, string, error) {
	key, value, ok := strings.Cut(f.Value, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("invalid %s option %q: must be key=value", f.Name, f.Value)
	}
	return key, value, nil
}

func (f RawFlag) String() string {
	return fmt.Sprintf("%s=%q", f.Name, f.Value)
}
