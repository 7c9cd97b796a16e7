// Command rankdesk runs the rankdesk API server, batch audits and data
// repairs.
package main

import (
	"os"

	"github.com/raysh454/rankdesk/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(cli.Execute(version, os.Args[1:]))
}
