// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package logging

import (
	"fmt"
	"os"
	"runtime/debug"
)

const panicOutput = `
!!!!!!!!!!!!!!!!!!!!!!!!!!! LAZYTREE CRASH !!!!!!!!!!!!!!!!!!!!!!!!!!!!

lazytree crashed! This is always indicative of a bug.

When reporting it, please include the stack trace shown below and, if
possible, a file that reproduces the crash.

`

// PanicHandler is deferred at the top of main so that an unexpected panic
// prints a readable report before the process exits.
func PanicHandler() {
	recovered := recover()
	if recovered == nil {
		return
	}

	fmt.Fprint(os.Stderr, panicOutput)
	fmt.Fprint(os.Stderr, recovered, "\n")
	debug.PrintStack()
	os.Exit(11)
}
