// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package version

import "runtime/debug"

// interestingDependencies are the modules whose behavior shows up directly
// in the files lazytree writes or in how it reads configuration.
var interestingDependencies = map[string]struct{}{
	"github.com/hashicorp/golang-lru/v2": {},
	"github.com/hashicorp/hcl/v2":        {},
	"github.com/klauspost/compress":      {},
	"github.com/spf13/afero":             {},
	"github.com/syndtr/goleveldb":        {},
	"gopkg.in/yaml.v3":                   {},
}

// InterestingDependencies returns the compiled-in module versions of a few
// dependencies, for the debug log.
func InterestingDependencies() []*debug.Module {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	ret := make([]*debug.Module, 0, len(interestingDependencies))
	for _, mod := range info.Deps {
		if _, ok := interestingDependencies[mod.Path]; !ok {
			continue
		}
		if mod.Replace != nil {
			mod = mod.Replace
		}
		ret = append(ret, mod)
	}
	return ret
}
