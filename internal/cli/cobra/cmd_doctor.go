package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/vchain/internal/commands"
)

func newDoctorCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor [path]",
		Short: "Check that each detected layer has a runnable tool",
		Long: `Check that each detected layer has a runnable tool.
Resolves the configuration, detects the technology of every layer with
artifacts and verifies its command is registered and found on PATH.
Defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := commands.DoctorOpts{ConfigPath: configPath}
			if len(args) == 1 {
				opts.Path = args[0]
			}
			return commands.Doctor(newDeps(cmd), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a vchain.yaml")

	return cmd
}
