// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

// Command driftlinectl inspects and repairs the data directory of a stopped
// Driftline daemon. See package internal/cli.
package main

import (
	"fmt"
	"os"

	"github.com/tomtom215/driftline/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
