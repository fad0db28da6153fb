package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "charmforge",
		Short: "charmforge - layered charm composition",
		Long: `charmforge builds deployable charms by composing a layer directory over a
base charm: files are overlaid, metadata documents are structurally merged,
and lifecycle hooks can be diverted so that both base and layer logic run
in a defined order.

A layer declares its base and rules in a charmforge.yaml manifest.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newComposeCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
