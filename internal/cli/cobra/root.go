// Package cobra provides the Cobra-based CLI command tree for vchain.
package cobra

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/NielsdaWheelz/vchain/internal/commands"
	"github.com/NielsdaWheelz/vchain/internal/errors"
	"github.com/NielsdaWheelz/vchain/internal/tty"
	"github.com/NielsdaWheelz/vchain/internal/version"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Verbose bool
}

// globalOpts stores the parsed global options for access by subcommands.
var globalOpts GlobalOpts

// logger is built once the global flags are parsed.
var logger *zap.Logger

// GetGlobalOpts returns the parsed global options.
func GetGlobalOpts() GlobalOpts {
	return globalOpts
}

// NewRootCmd creates the root cobra command for vchain.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vchain",
		Short: "Staged verification chain for a project",
		Long: `vchain - staged verification chain

vchain detects the verification artifacts of a project (proofs, formal specs,
type checks, contracts and tests), runs each layer's tool in a fixed order and
reports a single verdict with a stable exit code.`,
		Version:       version.FullVersion(),
		SilenceErrors: true, // We handle error printing in main.go
		SilenceUsage:  true, // We handle usage printing manually
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config := zap.NewProductionConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
			if globalOpts.Verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			var err error
			logger, err = config.Build()
			if err != nil {
				return errors.Wrap(errors.EInternal, "failed to initialize logger", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&globalOpts.Verbose, "verbose", false, "show full tool output, debug logs and detailed error context")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(),
		newLayersCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command with the given output writers.
// This is the main entry point from main.go.
func Execute(stdout, stderr io.Writer) error {
	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return usageError(rootCmd.Execute())
}

// usageError reports errors raised by cobra itself (unknown command or flag,
// wrong argument count) as E_USAGE.
func usageError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := errors.AsVChainError(err); !ok {
		return errors.Wrap(errors.EUsage, err.Error(), err)
	}
	return err
}

// newDeps builds the command dependencies for cmd. Styled output is enabled
// only when stdout is a terminal and NO_COLOR is unset.
func newDeps(cmd *cobra.Command) commands.Deps {
	d := commands.Deps{Logger: logger}
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		d.Color = tty.ColorEnabled(f, os.LookupEnv)
	}
	return d
}
