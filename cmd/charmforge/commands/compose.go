package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/charmforge/charmforge/pkg/compose"
	"github.com/charmforge/charmforge/pkg/stores"
)

// RepositoryEnv names the default output repository directory.
const RepositoryEnv = "CHARMFORGE_REPOSITORY"

func newComposeCommand() *cobra.Command {
	var (
		outputDir string
		series    string
		name      string
		force     bool
		watch     bool
		noHistory bool
	)

	cmd := &cobra.Command{
		Use:   "compose <layer-dir>",
		Short: "Compose a charm from a layer and its base",
		Long: `Compose reads the layer's charmforge.yaml manifest, copies the referenced
base charm into the output repository, merges the metadata documents, applies
hook diversions and file rules, and writes the result to
<output-dir>/<series>/<name>.`,
		Example: `  # Compose tests/trusty/tester into out/trusty/foo
  charmforge compose -o out -n foo tests/trusty/tester

  # Recompose automatically while editing the layer
  charmforge compose -o out -n foo --watch tests/trusty/tester`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layerDir := args[0]
			if name == "" {
				name = filepath.Base(filepath.Clean(layerDir))
			}
			if outputDir == "" {
				if repo := os.Getenv(RepositoryEnv); repo != "" {
					outputDir = repo
				} else {
					outputDir = "."
				}
			}

			opts := compose.Options{
				LayerDir:  layerDir,
				OutputDir: outputDir,
				Series:    series,
				Name:      name,
				Force:     force || watch,
			}
			composer := compose.New(opts, log.Logger)

			ctx := cmd.Context()
			store := openHistoryStore(ctx, outputDir, noHistory)
			if store != nil {
				defer store.Close()
			}

			runOnce := func(ctx context.Context) error {
				started := time.Now()
				result, err := composer.Run(ctx)
				recordRun(ctx, store, opts, result, err, started)
				if err != nil {
					return err
				}
				fmt.Printf("Composed %s\n", result.OutputPath)
				return nil
			}

			if !watch {
				return runOnce(ctx)
			}

			// Watch mode: a failed compose is logged and retried on the
			// next change instead of killing the watcher.
			if err := runOnce(ctx); err != nil {
				log.Error().Err(err).Msg("Initial compose failed")
			}
			watcher := compose.NewWatcher(layerDir, log.Logger)
			err := watcher.Run(ctx, runOnce)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "output repository directory (default $CHARMFORGE_REPOSITORY or .)")
	cmd.Flags().StringVarP(&series, "series", "s", "trusty", "distribution series for the output charm")
	cmd.Flags().StringVarP(&name, "name", "n", "", "output charm name (default: layer directory name)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing output directory")
	cmd.Flags().BoolVar(&watch, "watch", false, "recompose whenever the layer directory changes")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")

	return cmd
}

// historyDBPath returns the run history database location for a repository.
func historyDBPath(outputDir string) string {
	return filepath.Join(outputDir, ".charmforge", "runs.db")
}

// openHistoryStore opens the run history database. History is best effort: a
// store that cannot be opened degrades to a warning, never a failed compose.
func openHistoryStore(ctx context.Context, outputDir string, disabled bool) *stores.SQLiteStore {
	if disabled {
		return nil
	}

	dbPath := historyDBPath(outputDir)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("Run history disabled")
		return nil
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: dbPath})
	if err == nil {
		err = store.Init(ctx)
	}
	if err == nil {
		err = store.Migrate(ctx)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", dbPath).Msg("Run history disabled")
		return nil
	}
	return store
}

// recordRun writes one run record, succeeded or failed.
func recordRun(ctx context.Context, store *stores.SQLiteStore, opts compose.Options, result *compose.Result, runErr error, started time.Time) {
	if store == nil {
		return
	}

	run := &stores.Run{
		ID:         uuid.NewString(),
		Name:       opts.Name,
		Series:     opts.Series,
		LayerPath:  opts.LayerDir,
		Status:     stores.RunStatusSucceeded,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if result != nil {
		run.OutputPath = result.OutputPath
		run.BaseRef = result.Manifest.Base
	}
	if runErr != nil {
		run.Status = stores.RunStatusFailed
		run.Error = runErr.Error()
	}

	if err := store.RecordRun(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to record run history")
	}
}
