// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/mitchellh/cli"
)

// VersionCommand prints the version.
type VersionCommand struct {
	Meta

	Version string
}

func (c *VersionCommand) Help() string {
	return strings.TrimSpace(`
Usage: lazytree version

  Displays the version of lazytree.
`)
}

func (c *VersionCommand) Run(args []string) int {
	if len(args) != 0 {
		c.Ui.Error("The version command expects no arguments.")
		return cli.RunResultHelp
	}
	c.Ui.Output(fmt.Sprintf("lazytree v%s\non %s_%s", c.Version, runtime.GOOS, runtime.GOARCH))
	return 0
}

func (c *VersionCommand) Synopsis() string {
	return "Show the current lazytree version"
}
