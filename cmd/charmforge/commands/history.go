package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/charmforge/charmforge/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		outputDir string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past compose runs",
		Long:  `History lists recent compose runs recorded in the repository's run database.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := stores.NewSQLiteStore(stores.Config{Path: historyDBPath(outputDir)})
			if err != nil {
				return err
			}
			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("opening run history: %w", err)
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("preparing run history: %w", err)
			}

			runs, err := store.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No compose runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tNAME\tSERIES\tLAYER\tSTATUS\tOUTPUT")
			for _, run := range runs {
				status := string(run.Status)
				if run.Status == stores.RunStatusFailed && run.Error != "" {
					status = fmt.Sprintf("failed: %s", run.Error)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Name,
					run.Series,
					run.LayerPath,
					status,
					run.OutputPath,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "output repository directory the history belongs to")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}
