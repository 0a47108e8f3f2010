// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/mitchellh/cli"

	"github.com/opentofu/lazytree/internal/command"
	"github.com/opentofu/lazytree/version"
)

// commands is the mapping of all the available lazytree commands. Tests may
// set it before calling realMain.
var commands map[string]cli.CommandFactory

func initCommands(meta command.Meta) {
	commands = map[string]cli.CommandFactory{
		"attrs": func() (cli.Command, error) {
			return &command.AttrsCommand{Meta: meta}, nil
		},
		"dump": func() (cli.Command, error) {
			return &command.DumpCommand{Meta: meta}, nil
		},
		"tree": func() (cli.Command, error) {
			return &command.TreeCommand{Meta: meta}, nil
		},
		"version": func() (cli.Command, error) {
			return &command.VersionCommand{Meta: meta, Version: version.String()}, nil
		},
	}
}
