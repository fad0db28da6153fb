package compose

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher re-runs a compose whenever the layer directory changes. Changes are
// debounced so a burst of writes (an editor save, a git checkout) triggers a
// single recompose.
type Watcher struct {
	dir      string
	debounce time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a Watcher over the given layer directory.
func NewWatcher(dir string, logger zerolog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: 500 * time.Millisecond,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}
}

// Run blocks watching the layer directory, invoking fn after each settled
// batch of changes, until the context is cancelled. A failed recompose is
// logged, not fatal: the next change gets another chance.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	w.logger.Info().Str("dir", w.dir).Msg("Watching layer for changes")

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	reset := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.debounce)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Layer changed")
			if event.Op&fsnotify.Create != 0 {
				// New subdirectories need watching too.
				_ = addRecursive(watcher, event.Name)
			}
			reset()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watch error")

		case <-timer.C:
			if err := fn(ctx); err != nil {
				w.logger.Error().Err(err).Msg("Recompose failed")
			}
		}
	}
}

// addRecursive watches path and, when it is a directory, every directory
// below it. Non-directories are covered by their parent's watch.
func addRecursive(watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// The entry may have vanished between event and walk.
			return nil
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		return nil
	})
}
