package cobra

import (
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/vchain/internal/commands"
)

func newLayersCmd() *cobra.Command {
	var opts commands.LayersOpts

	cmd := &cobra.Command{
		Use:   "layers [path]",
		Short: "Show detected artifacts per layer",
		Long: `Show the artifacts detected for each configured layer and the command
vchain run would execute for it. Nothing is executed.
Defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Path = args[0]
			}
			return commands.Layers(newDeps(cmd), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a vchain.yaml")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON")

	return cmd
}
