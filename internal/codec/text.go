// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// TextCodec is the structured-text fallback used for values that have no
// other representation.
type TextCodec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(src []byte) (any, error)
}

// YAMLText is the default [TextCodec].
type YAMLText struct{}

var _ TextCodec = YAMLText{}

// Marshal implements TextCodec.
func (YAMLText) Marshal(v any) (src []byte, err error) {
	// The YAML encoder panics, rather than failing, for kinds it has no
	// representation for, such as functions and channels.
	defer func() {
		if r := recover(); r != nil {
			src = nil
			err = fmt.Errorf("no structured-text representation: %v", r)
		}
	}()
	return yaml.Marshal(v)
}

// Unmarshal implements TextCodec.
func (YAMLText) Unmarshal(src []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(src, &v); err != nil {
		return nil, err
	}
	return v, nil
}
