// Command ralph2 is the CLI entry point: it wires no agent.Agent
// implementations of its own (those are outside this kernel's scope,
// spec §1) and simply dispatches to internal/cli's cobra command tree.
// A project embedding this kernel registers its own concrete planner/
// executor/verifier/specialist adapters into internal/agent's registry
// from its own main package before calling cli.Execute, or from an
// init() in a package it blank-imports here.
package main

import (
	"fmt"
	"os"

	"github.com/ralph2/kernel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
