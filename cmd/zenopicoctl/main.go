// Command zenopicoctl is a thin smoke-testing CLI over pkg/session: open a
// session, put a value, or subscribe and print samples.
// It is not part of the client library; nothing in pkg/ or internal/
// imports it.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/zenopico/cmd/zenopicoctl/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
