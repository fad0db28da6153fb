// Package inspect renders a composed charm tree, attributing each file to the
// layer it came from and marking drift since the compose.
package inspect

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"

	"github.com/charmforge/charmforge/pkg/compose"
)

// palette assigns a stable color per layer, cycling when there are more
// layers than colors.
var palette = []*color.Color{
	color.New(color.FgGreen),
	color.New(color.FgCyan),
	color.New(color.FgMagenta),
	color.New(color.FgYellow),
	color.New(color.FgRed),
}

// Inspector writes a colorized tree view of a composed charm.
type Inspector struct {
	out io.Writer
}

// New creates an Inspector writing to out.
func New(out io.Writer) *Inspector {
	return &Inspector{out: out}
}

// Inspect renders the charm at dir. Each entry is colored by its originating
// layer (from the signature manifest); files added since the compose are
// suffixed "+" and changed ones "*".
func (i *Inspector) Inspect(dir string) error {
	manifest, err := compose.LoadSignatures(dir)
	if err != nil {
		return err
	}
	added, changed, _, err := compose.DeltaSignatures(dir)
	if err != nil {
		return err
	}

	layers := layerNames(manifest)
	colors := make(map[string]*color.Color, len(layers))
	for idx, layer := range layers {
		colors[layer] = palette[idx%len(palette)]
	}

	fmt.Fprintf(i.out, "Inspect %s\n", dir)
	for _, layer := range layers {
		fmt.Fprintf(i.out, "# %s\n", colors[layer].Sprint(layer))
	}
	fmt.Fprintln(i.out)

	marks := make(map[string]string, len(added)+len(changed))
	for _, rel := range added {
		marks[rel] = "+"
	}
	for _, rel := range changed {
		marks[rel] = "*"
	}

	fmt.Fprintln(i.out, dir)
	return i.renderDir(dir, dir, "", manifest, colors, marks)
}

// renderDir prints one directory level with box-drawing guides and recurses.
func (i *Inspector) renderDir(root, dir, prefix string, manifest *compose.SignatureManifest, colors map[string]*color.Color, marks map[string]string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Name() < entries[b].Name() })

	for idx, entry := range entries {
		rel, err := filepath.Rel(root, filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == compose.SignatureFile {
			continue
		}

		last := idx == len(entries)-1
		guide := " ├─── "
		childPrefix := prefix + " │  "
		if last {
			guide = " └─── "
			childPrefix = prefix + "    "
		}

		name := entry.Name()
		if sig, ok := manifest.Signatures[rel]; ok {
			if c, ok := colors[sig.Layer]; ok {
				name = c.Sprint(name)
			}
		} else if entry.IsDir() {
			name = color.New(color.FgBlue).Sprint(name)
		}
		if mark, ok := marks[rel]; ok {
			name += " " + mark
		}
		fmt.Fprintf(i.out, "%s%s%s\n", prefix, guide, name)

		if entry.IsDir() {
			if err := i.renderDir(root, filepath.Join(dir, entry.Name()), childPrefix, manifest, colors, marks); err != nil {
				return err
			}
		}
	}
	return nil
}

// layerNames collects the distinct layers in the manifest, sorted.
func layerNames(manifest *compose.SignatureManifest) []string {
	seen := make(map[string]bool)
	var layers []string
	for _, sig := range manifest.Signatures {
		if !seen[sig.Layer] {
			seen[sig.Layer] = true
			layers = append(layers, sig.Layer)
		}
	}
	sort.Strings(layers)
	return layers
}
