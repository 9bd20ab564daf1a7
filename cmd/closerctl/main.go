// Command closerctl works with the closer memory store from a terminal.
package main

import (
	"os"

	"github.com/theapemachine/closer/internal/cli"
)

// Build variables set by ldflags
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
