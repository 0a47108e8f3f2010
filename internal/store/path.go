// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"path"
	"strings"
)

// RootPath is the path of the root group of every file.
const RootPath = "/"

// CanonicalPath normalizes a filesystem path so that equivalent spellings
// produced on different platforms compare equal: backslash separators are
// rewritten to forward slashes and the result is cleaned.
func CanonicalPath(p string) string {
	if strings.Contains(p, `\`) {
		p = strings.ReplaceAll(p, `\`, "/")
	}
	if p == "" {
		return p
	}
	return path.Clean(p)
}

// JoinPath returns the path of the named child of the node at parent.
func JoinPath(parent, name string) string {
	if parent == RootPath || parent == "" {
		return RootPath + name
	}
	return parent + "/" + name
}

// SplitPath returns the names leading from the root group to the node at p.
// The root itself has no names.
func SplitPath(p string) []string {
	var names []string
	for _, name := range strings.Split(p, "/") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// splitParent returns the path of the parent group of the node at p, and
// the node's name.
func splitParent(p string) (string, string) {
	i := strings.LastIndexByte(p, '/')
	if i <= 0 {
		return RootPath, p[i+1:]
	}
	return p[:i], p[i+1:]
}

// ValidName returns true if name can be used for a child node.
func ValidName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, "/\x00")
}
