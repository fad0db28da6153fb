package charm

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// MetadataFile is the charm metadata document at the tree root.
	MetadataFile = "metadata.yaml"

	// HooksDir is the conventional hooks location inside a charm tree.
	HooksDir = "hooks"
)

// Tree is a charm directory on disk: a metadata document at the root and
// executable lifecycle hook scripts under hooks/.
type Tree struct {
	// Dir is the tree's root directory.
	Dir string
}

// NewTree returns a Tree rooted at dir. The directory is not validated;
// call Metadata to check that the tree is usable as a base.
func NewTree(dir string) *Tree {
	return &Tree{Dir: filepath.Clean(dir)}
}

// Name returns the charm name implied by the directory.
func (t *Tree) Name() string {
	return filepath.Base(t.Dir)
}

// MetadataPath returns the path of the tree's metadata document.
func (t *Tree) MetadataPath() string {
	return filepath.Join(t.Dir, MetadataFile)
}

// HookPath returns the path a hook script with the given name would have.
func (t *Tree) HookPath(name string) string {
	return filepath.Join(t.Dir, HooksDir, name)
}

// HasHook reports whether the tree provides a regular file for the named hook.
func (t *Tree) HasHook(name string) bool {
	info, err := os.Stat(t.HookPath(name))
	return err == nil && info.Mode().IsRegular()
}

// Metadata loads and parses the tree's metadata document. A tree usable as a
// compose base must have one.
func (t *Tree) Metadata() (*Document, error) {
	doc, err := LoadDocument(t.MetadataPath())
	if err != nil {
		return nil, fmt.Errorf("charm %s: %w", t.Dir, err)
	}
	return doc, nil
}
