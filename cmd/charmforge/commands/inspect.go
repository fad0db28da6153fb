package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/charmforge/charmforge/pkg/inspect"
)

func newInspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <charm-dir>",
		Short: "Show a composed charm's files by originating layer",
		Long: `Inspect renders the charm's file tree, coloring each entry by the layer it
came from and marking files added (+) or changed (*) since the compose, based
on the signature manifest the composer wrote.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect.New(os.Stdout).Inspect(args[0])
		},
	}
	return cmd
}
