// Command vchain runs a staged verification chain over a project.
package main

import (
	"os"

	"github.com/NielsdaWheelz/vchain/internal/cli/cobra"
	"github.com/NielsdaWheelz/vchain/internal/errors"
)

func main() {
	err := cobra.Execute(os.Stdout, os.Stderr)
	if err != nil {
		// Use verbose mode if --verbose global flag was set
		opts := errors.PrintOptions{
			Verbose: cobra.GetGlobalOpts().Verbose,
		}
		errors.PrintWithOptions(os.Stderr, err, opts)
		os.Exit(errors.ExitCode(err))
	}
}
