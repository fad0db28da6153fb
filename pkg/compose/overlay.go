package compose

import (
	"fmt"
	"os"
	"path/filepath"
)

// ApplyFiles copies the manifest's file rules from the layer directory onto
// the output tree, in manifest order. Intermediate directories are created as
// needed and existing files overwritten, including files placed earlier by
// the tree copy, the diverter, or a previous rule: later rules win.
func ApplyFiles(outDir, layerDir string, rules []FileRule) error {
	for _, rule := range rules {
		src := filepath.Join(layerDir, filepath.FromSlash(rule.Source))
		info, err := os.Stat(src)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s in layer %s", ErrOverlaySourceMissing, rule.Source, layerDir)
		}

		dst := filepath.Join(outDir, filepath.FromSlash(rule.Dest))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", rule.Dest, err)
		}
		if err := copyFile(src, dst, info.Mode()); err != nil {
			return fmt.Errorf("overlaying %s -> %s: %w", rule.Source, rule.Dest, err)
		}
	}
	return nil
}
