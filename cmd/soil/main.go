package main

import (
	"fmt"
	"os"

	"github.com/memogarden/soil/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands that return an ExitError already printed their own
		// diagnostics through the formatter.
		if !cli.IsExitError(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
