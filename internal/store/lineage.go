// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"fmt"

	"github.com/hashicorp/go-uuid"
)

// NewLineage generates a new lineage identifier string. Each file gets one
// when it is first created so that a rewritten file at the same path can be
// told apart from an appended-to one.
func NewLineage() string {
	lineage, err := uuid.GenerateUUID()
	if err != nil {
		panic(fmt.Errorf("failed to generate lineage: %w", err))
	}
	return lineage
}
