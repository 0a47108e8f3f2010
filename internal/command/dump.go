// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"gopkg.in/yaml.v3"

	"github.com/opentofu/lazytree/internal/lazy"
	"github.com/opentofu/lazytree/internal/store"
)

// DumpCommand prints the decoded content of a tree file as YAML.
type DumpCommand struct {
	Meta
}

func (c *DumpCommand) Help() string {
	return strings.TrimSpace(`
Usage: lazytree dump [options] FILE

  Decodes a tree file and prints its content as YAML.

Options:

  -match=GLOB    Only print keys whose slash-separated path matches GLOB.

  -lazy          Open the file lazily, so that only the leaves selected
                 by -match are decoded.

  -config=FILE   Read settings from FILE.

  -set KEY=VAL   Override a setting. Can be repeated.
`)
}

func (c *DumpCommand) Synopsis() string {
	return "Print the content of a tree file"
}

func (c *DumpCommand) Run(args []string) int {
	cmdFlags := c.Meta.defaultFlagSet("dump")
	var pattern string
	var lazyLoad bool
	cmdFlags.StringVar(&pattern, "match", "", "key glob")
	cmdFlags.BoolVar(&lazyLoad, "lazy", false, "decode lazily")
	if err := cmdFlags.Parse(args); err != nil {
		c.Ui.Error(fmt.Sprintf("Error parsing command-line flags: %s\n", err))
		return cli.RunResultHelp
	}
	name, err := singleArg(cmdFlags)
	if err != nil {
		c.Ui.Error(err.Error())
		return cli.RunResultHelp
	}
	match, err := matcher(pattern)
	if err != nil {
		return c.errorf("%s", err)
	}

	mgr, err := c.Meta.manager(cmdFlags)
	if err != nil {
		return c.errorf("Invalid settings: %s", err)
	}
	defer mgr.Close()

	var selected any
	if lazyLoad {
		root, err := mgr.LoadLazy(name)
		if err != nil {
			return c.errorf("Failed to open %s: %s", name, err)
		}
		if selected, err = selectLazy(root, store.RootPath, match); err != nil {
			return c.errorf("Failed to read %s: %s", name, err)
		}
	} else {
		data, err := mgr.LoadEager(name)
		if err != nil {
			return c.errorf("Failed to read %s: %s", name, err)
		}
		selected = data
		// With squeeze_single the only value comes back on its own.
		if m, ok := data.(map[string]any); ok {
			selected = selectEager(m, store.RootPath, match)
		}
	}

	out, err := yaml.Marshal(selected)
	if err != nil {
		return c.errorf("Failed to format %s: %s", name, err)
	}
	c.Ui.Output(strings.TrimSuffix(string(out), "\n"))
	return 0
}

// selectEager returns the entries of m whose path matches, keeping the
// mappings that contain matching entries.
func selectEager(m map[string]any, prefix string, match func(string) bool) map[string]any {
	ret := map[string]any{}
	for key, v := range m {
		path := store.JoinPath(prefix, key)
		if sub, ok := v.(map[string]any); ok && !match(path) {
			if sel := selectEager(sub, path, match); len(sel) != 0 {
				ret[key] = sel
			}
			continue
		}
		if match(path) {
			ret[key] = v
		}
	}
	return ret
}

// selectLazy is like selectEager for a lazy container. Leaves that don't
// match aren't decoded at all.
func selectLazy(c *lazy.Container, prefix string, match func(string) bool) (map[string]any, error) {
	g, err := c.Group()
	if err != nil {
		return nil, err
	}
	ret := map[string]any{}
	for _, key := range c.Keys() {
		path := store.JoinPath(prefix, key)
		isGroup := false
		if n, err := g.Child(key); err == nil {
			_, isGroup = n.(*store.Group)
		}
		if !isGroup && !match(path) {
			continue
		}

		v, err := c.Get(key)
		if err != nil {
			return nil, err
		}
		child, ok := v.(*lazy.Container)
		if !ok {
			if match(path) {
				ret[key] = v
			}
			continue
		}
		childMatch := match
		if match(path) {
			childMatch = func(string) bool { return true }
		}
		sel, err := selectLazy(child, path, childMatch)
		if err != nil {
			return nil, err
		}
		if len(sel) != 0 || match(path) {
			ret[key] = sel
		}
	}
	return ret, nil
}
