package cobra

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/vchain/internal/commands"
)

func newRunCmd() *cobra.Command {
	var opts commands.RunOpts
	var stopOnFail, allErrors, allowEmpty bool

	cmd := &cobra.Command{
		Use:   "run [path...]",
		Short: "Run the verification chain",
		Long: `Run the verification chain for one or more project roots.
Defaults to the current directory.

Layers run in order (default: proof,spec,type,contract,tests). A layer with
no artifacts is skipped. With --stop-on-fail (the default) the chain halts at
the first failing layer; --all-errors runs every layer.

Configuration precedence: flags > VCHAIN_* environment > vchain.yaml > defaults.

Exit codes:
  0    chain passed
  1-3  contract violation (pre, post, invariant)
  11   no verification artifacts found
  13   a layer failed
  15   configuration error or invalid target`,
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			stderr := cmd.ErrOrStderr()

			flags := cmd.Flags()
			if flags.Changed("stop-on-fail") {
				opts.Overrides.StopOnFail = &stopOnFail
			}
			if flags.Changed("all-errors") {
				opts.Overrides.AllErrors = &allErrors
			}
			if flags.Changed("allow-empty") {
				opts.Overrides.AllowEmpty = &allowEmpty
			}

			opts.Paths = args
			opts.Verbose = GetGlobalOpts().Verbose

			// Cancel on SIGINT/SIGTERM; running tools are killed with their process group.
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return commands.Run(ctx, newDeps(cmd), opts, stdout, stderr)
		},
	}

	cmd.Flags().StringVar(&opts.Overrides.Order, "order", "", "comma-separated layer order (e.g. 'type,tests')")
	cmd.Flags().BoolVar(&stopOnFail, "stop-on-fail", false, "halt at the first failing layer (default)")
	cmd.Flags().BoolVar(&allErrors, "all-errors", false, "run every layer and report all failures")
	cmd.Flags().StringArrayVar(&opts.Overrides.Timeouts, "timeout", nil, "per-layer timeout as layer=duration (e.g. 'tests=5m'); repeatable")
	cmd.Flags().BoolVar(&allowEmpty, "allow-empty", false, "exit 0 when no layer has artifacts")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a vchain.yaml applied to every target")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "write the report as JSON to stdout")
	cmd.Flags().StringVar(&opts.RecordPath, "record", "", "also write the JSON report to this file")
	cmd.Flags().StringVar(&opts.EventsPath, "events", "", "append chain state transitions as JSONL to this file")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-run the chain when files change (single target)")

	return cmd
}
