package compose

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmforge/charmforge/pkg/charm"
)

// SearchPathEnv names a list-separated set of extra directories consulted
// when resolving a manifest's base reference.
const SearchPathEnv = "CHARMFORGE_PATH"

// ResolveBase resolves a manifest's base reference to a charm tree directory.
// Relative references are tried against the layer directory, the working
// directory, and each entry of CHARMFORGE_PATH, in that order. A candidate
// only resolves if it is a directory containing a metadata document.
func ResolveBase(layerDir, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty base reference", ErrBaseUnresolvable)
	}

	var candidates []string
	if filepath.IsAbs(ref) {
		candidates = []string{ref}
	} else {
		search := []string{layerDir, "."}
		if extra := os.Getenv(SearchPathEnv); extra != "" {
			search = append(search, strings.Split(extra, string(os.PathListSeparator))...)
		}
		for _, dir := range search {
			candidates = append(candidates, filepath.Join(dir, ref))
		}
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || !info.IsDir() {
			continue
		}
		if _, err := os.Stat(charm.NewTree(candidate).MetadataPath()); err != nil {
			continue
		}
		return filepath.Clean(candidate), nil
	}
	return "", fmt.Errorf("%w: %q not found on search path", ErrBaseUnresolvable, ref)
}
