// Command rowkit manages table records described by CUE model definitions.
package main

import (
	"os"

	"github.com/roach88/rowkit/internal/cli"
)

func main() {
	// Commands report their own errors through the output formatter.
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.GetExitCode(err))
	}
}
