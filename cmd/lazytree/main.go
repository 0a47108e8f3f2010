// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"

	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/cli"

	"github.com/opentofu/lazytree/internal/command"
	"github.com/opentofu/lazytree/internal/logging"
	"github.com/opentofu/lazytree/version"
)

const (
	// EnvCLI is the environment variable name to set additional CLI args.
	EnvCLI = "LAZYTREE_CLI_ARGS"

	binName = "lazytree"
)

// Ui is the output of the running command.
var Ui cli.Ui

func main() {
	os.Exit(realMain())
}

func realMain() int {
	defer logging.PanicHandler()

	logger := logging.HCLogger()
	log.Printf("[INFO] lazytree version: %s", version.String())
	if logging.IsDebugOrHigher() {
		for _, depMod := range version.InterestingDependencies() {
			log.Printf("[DEBUG] using %s %s", depMod.Path, depMod.Version)
		}
	}
	log.Printf("[INFO] Go runtime version: %s", runtime.Version())
	log.Printf("[INFO] CLI args: %#v", os.Args)

	args := os.Args[1:]
	noColor := false
	for _, arg := range args {
		if arg == "-no-color" {
			noColor = true
		}
	}
	args = removeArg(args, "-no-color")
	Ui = command.NewBasicUI(!noColor)

	meta := command.Meta{
		Ui:     Ui,
		Logger: logger.Named("cli"),
	}
	if commands == nil {
		initCommands(meta)
	}

	cliRunner := &cli.CLI{
		Args:     args,
		Commands: commands,
	}
	args, err := mergeEnvArgs(EnvCLI, cliRunner.Subcommand(), args)
	if err != nil {
		Ui.Error(err.Error())
		return 1
	}

	// We shortcut "--version" and "-v" to just show the version
	for _, arg := range args {
		if arg == "-v" || arg == "-version" || arg == "--version" {
			args = append([]string{"version"}, args...)
			break
		}
	}

	log.Printf("[INFO] CLI command args: %#v", args)
	cliRunner = &cli.CLI{
		Name:       binName,
		Args:       args,
		Commands:   commands,
		HelpFunc:   cli.BasicHelpFunc(binName),
		HelpWriter: os.Stdout,
	}
	exitCode, err := cliRunner.Run()
	if err != nil {
		Ui.Error(fmt.Sprintf("Error executing CLI: %s", err.Error()))
		return 1
	}
	return exitCode
}

// mergeEnvArgs inserts the arguments given in the environment variable
// envName right after the subcommand cmd.
func mergeEnvArgs(envName string, cmd string, args []string) ([]string, error) {
	v := os.Getenv(envName)
	if v == "" {
		return args, nil
	}

	log.Printf("[INFO] %s value: %q", envName, v)
	extra, err := shellwords.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("Error parsing extra CLI args from %s: %s", envName, err)
	}

	// The extra arguments go after the first occurrence of the subcommand,
	// or first if there is none.
	idx := 0
	for i, arg := range args {
		if arg == cmd {
			idx = i + 1
			break
		}
	}

	newArgs := make([]string, 0, len(args)+len(extra))
	newArgs = append(newArgs, args[:idx]...)
	newArgs = append(newArgs, extra...)
	newArgs = append(newArgs, args[idx:]...)
	return newArgs, nil
}

func removeArg(args []string, name string) []string {
	ret := args[:0:0]
	for _, arg := range args {
		if !strings.EqualFold(arg, name) {
			ret = append(ret, arg)
		}
	}
	return ret
}
