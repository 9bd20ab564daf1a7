// Command server runs the closer MCP server.
package main

import (
	"os"

	"github.com/theapemachine/closer/internal/cli"
)

// Build variables set by ldflags
var version = "dev"

func main() {
	if err := cli.NewServerCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
