package compose

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatcherTriggersOnChange(t *testing.T) {
	dir := t.TempDir()

	w := NewWatcher(dir, zerolog.New(nil).Level(zerolog.Disabled))
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	triggered := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			select {
			case triggered <- struct{}{}:
			default:
			}
			return nil
		})
	}()

	// Give the watcher a moment to register, then change the layer.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "metadata.yaml"), []byte("name: x\n"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	select {
	case <-triggered:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not trigger on change")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}
