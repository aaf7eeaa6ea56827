package cobra

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/vchain/internal/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print vchain version",
		Long:  "Print the vchain version string.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "vchain %s\n", version.FullVersion())
		},
	}

	return cmd
}
