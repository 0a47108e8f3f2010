// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"

	"github.com/opentofu/lazytree/internal/codec"
)

// AttrsCommand prints the file-level attributes of a tree file.
type AttrsCommand struct {
	Meta
}

func (c *AttrsCommand) Help() string {
	return strings.TrimSpace(`
Usage: lazytree attrs [options] FILE

  Prints the attributes stored on the root of a tree file as YAML.

Options:

  -config=FILE   Read settings from FILE.

  -set KEY=VAL   Override a setting. Can be repeated.
`)
}

func (c *AttrsCommand) Synopsis() string {
	return "Print the attributes of a tree file"
}

func (c *AttrsCommand) Run(args []string) int {
	cmdFlags := c.Meta.defaultFlagSet("attrs")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err))
		return cli.RunResultHelp
	}
	name, err := singleArg(cmdFlags)
	if err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}

	mgr, err := c.Meta.manager(cmdFlags)
	if err != nil {
		return c.errorf("Invalid settings: %s", err)
	}
	f, err := c.Meta.openFile(mgr, name)
	if err != nil {
		return c.errorf("Failed to open %s: %s", name, err)
	}
	defer f.Close()

	attrs, err := (&codec.Decoder{}).DecodeAttributes(f.Root())
	if err != nil {
		return c.errorf("Failed to read %s: %s", name, err)
	}
	if len(attrs) == 0 {
		c.Ui.Output(fmt.Sprintf("%s has no attributes.", f.Path()))
		return 0
	}
	out, err := yaml.Marshal(attrs)
	if err != nil {
		return c.errorf("Failed to format %s: %s", name, err)
	}
	c.Ui.Output(strings.TrimSuffix(string(out), "\n"))
	return 0
}
