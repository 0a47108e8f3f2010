// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package command

import (
	"os"

	"github.com/mitchellh/cli"
	"github.com/mitchellh/colorstring"
)

// ColorizeUi colors errors and warnings written through the wrapped Ui.
// Other output is passed through unchanged so that it can be piped.
type ColorizeUi struct {
	cli.Ui

	Colorize   *colorstring.Colorize
	ErrorColor string
	WarnColor  string
}

func (u *ColorizeUi) Error(message string) {
	u.Ui.Error(u.colorize(message, u.ErrorColor))
}

func (u *ColorizeUi) Warn(message string) {
	u.Ui.Warn(u.colorize(message, u.WarnColor))
}

func (u *ColorizeUi) colorize(message, color string) string {
	if color == "" || u.Colorize == nil {
		return message
	}
	return u.Colorize.Color(color + message + "[reset]")
}

// NewBasicUI returns the Ui used by the lazytree command, writing to the
// process's standard streams. Colors are disabled when color is false or
// when NO_COLOR is set.
func NewBasicUI(color bool) cli.Ui {
	_, noColor := os.LookupEnv("NO_COLOR")
	return &ColorizeUi{
		Ui: &cli.BasicUi{
			Writer:      os.Stdout,
			ErrorWriter: os.Stderr,
			Reader:      os.Stdin,
		},
		Colorize: &colorstring.Colorize{
			Colors:  colorstring.DefaultColors,
			Disable: !color || noColor,
			Reset:   true,
		},
		ErrorColor: "[red]",
		WarnColor:  "[yellow]",
	}
}
