// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"fmt"
	"strings"

	"github.com/mitchellh/cli"
	"github.com/xlab/treeprint"

	"github.com/opentofu/lazytree/internal/codec"
	"github.com/opentofu/lazytree/internal/frame"
	"github.com/opentofu/lazytree/internal/store"
)

// TreeCommand prints the layout of a tree file without decoding any values.
type TreeCommand struct {
	Meta
}

func (c *TreeCommand) Help() string {
	return strings.TrimSpace(`
Usage: lazytree tree [options] FILE

  Prints the groups and leaves of a tree file, with the type tag of each
  node and the dtype and shape of each leaf. The root line shows the
  file's lineage, which is assigned when the file is first created and
  kept when entries are appended to it.

Options:

  -match=GLOB    Only show nodes whose key path matches GLOB, and the
                 groups that contain them. Paths are slash-separated,
                 as in "results/**".

  -config=FILE   Read settings from FILE.

  -set KEY=VAL   Override a setting. Can be repeated.
`)
}

func (c *TreeCommand) Synopsis() string {
	return "Show the layout of a tree file"
}

func (c *TreeCommand) Run(args []string) int {
	cmdFlags := c.Meta.defaultFlagSet("tree")
	var pattern string
	cmdFlags.StringVar(&pattern, "match", "", "key glob")
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
	f, err := c.Meta.openFile(mgr, name)
	if err != nil {
		return c.errorf("Failed to open %s: %s", name, err)
	}
	defer f.Close()

	root := treeprint.NewWithRoot(fmt.Sprintf("%s (lineage %s)", f.Path(), f.Lineage()))
	if n := f.Root().Attrs().Len(); n > 0 {
		root.AddMetaNode("attrs", fmt.Sprintf("%d file attributes", n))
	}
	if err := addGroup(root, f.Root(), match); err != nil {
		return c.errorf("Failed to read %s: %s", name, err)
	}
	c.Ui.Output(strings.TrimSuffix(root.String(), "\n"))
	return 0
}

// addGroup adds the children of g that match, or contain something that
// matches, to branch.
func addGroup(branch treeprint.Tree, g *store.Group, match func(string) bool) error {
	for _, name := range g.Children() {
		child, err := g.Child(name)
		if err != nil {
			return err
		}
		ok, err := anyMatch(child, match)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		tag, err := codec.TagOf(child)
		if err != nil {
			return err
		}

		switch child := child.(type) {
		case *store.Group:
			label := name + "/"
			if (frame.Serializer{}).IsFrame(child) {
				label += " (frame)"
			}
			var sub treeprint.Tree
			if tag != codec.TagNone {
				sub = branch.AddMetaBranch(string(tag), label)
			} else {
				sub = branch.AddBranch(label)
			}
			if err := addGroup(sub, child, match); err != nil {
				return err
			}
		case *store.Leaf:
			label := leafLabel(name, child)
			if tag != codec.TagNone {
				branch.AddMetaNode(string(tag), label)
			} else {
				branch.AddNode(label)
			}
		}
	}
	return nil
}

// anyMatch returns true if n or any node below it matches.
func anyMatch(n store.Node, match func(string) bool) (bool, error) {
	if match(n.Path()) {
		return true, nil
	}
	g, ok := n.(*store.Group)
	if !ok {
		return false, nil
	}
	for _, name := range g.Children() {
		child, err := g.Child(name)
		if err != nil {
			return false, err
		}
		if ok, err := anyMatch(child, match); ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

func leafLabel(name string, l *store.Leaf) string {
	info := l.Info()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", name, info.DType)
	if len(info.Shape) > 0 {
		dims := make([]string, len(info.Shape))
		for i, d := range info.Shape {
			dims[i] = fmt.Sprint(d)
		}
		fmt.Fprintf(&b, "[%s]", strings.Join(dims, "x"))
	}
	if l.Compressed() {
		b.WriteString(" gzip")
	}
	return b.String()
}
