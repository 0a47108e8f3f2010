// Copyright (c) The OpenTofu Authors
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mitchellh/cli"
)

func TestMain_cliArgsFromEnv(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	commands = make(map[string]cli.CommandFactory)
	defer func() {
		commands = nil
	}()
	testCommandName := "unit-test-cli-args"
	testCommand := &testCommandCLI{}
	commands[testCommandName] = func() (cli.Command, error) {
		return testCommand, nil
	}

	cases := []struct {
		Name     string
		Args     []string
		Value    string
		Expected []string
	}{
		{
			"no env",
			[]string{testCommandName, "foo", "bar"},
			"",
			[]string{"foo", "bar"},
		},
		{
			"both env var and CLI",
			[]string{testCommandName, "foo", "bar"},
			"-foo baz",
			[]string{"-foo", "baz", "foo", "bar"},
		},
		{
			"only env var",
			[]string{testCommandName},
			"-foo bar",
			[]string{"-foo", "bar"},
		},
		{
			"quoted",
			[]string{testCommandName},
			`-set "a=b c"`,
			[]string{"-set", "a=b c"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			t.Setenv(EnvCLI, tc.Value)
			os.Args = append([]string{"lazytree"}, tc.Args...)
			testCommand.Args = nil

			if code := realMain(); code != 0 {
				t.Fatalf("bad exit code %d", code)
			}
			if diff := cmp.Diff(tc.Expected, testCommand.Args); diff != "" {
				t.Errorf("wrong args:\n%s", diff)
			}
		})
	}
}

func TestMergeEnvArgsInvalid(t *testing.T) {
	t.Setenv(EnvCLI, `-set "unterminated`)
	if _, err := mergeEnvArgs(EnvCLI, "tree", []string{"tree"}); err == nil {
		t.Error("unterminated quote was accepted")
	}
}

func TestRemoveArg(t *testing.T) {
	got := removeArg([]string{"tree", "-no-color", "x"}, "-no-color")
	if diff := cmp.Diff([]string{"tree", "x"}, got); diff != "" {
		t.Errorf("wrong args:\n%s", diff)
	}
}

type testCommandCLI struct {
	Args []string
}

func (c *testCommandCLI) Run(args []string) int {
	c.Args = args
	return 0
}

func (c *testCommandCLI) Synopsis() string { return "" }
func (c *testCommandCLI) Help() string     { return "" }
