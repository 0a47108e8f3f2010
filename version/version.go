// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

// Package version holds the version of the lazytree module and its CLI.
package version

import "fmt"

// Version is the main version number of the current release.
var Version = "0.1.0"

// Prerelease marks the release as a pre-release, such as "dev" or "beta1".
// An empty string means a final release.
var Prerelease = "dev"

// String returns the complete version string, including the pre-release
// marker if there is one.
func String() string {
	if Prerelease != "" {
		return fmt.Sprintf("%s-%s", Version, Prerelease)
	}
	return Version
}
