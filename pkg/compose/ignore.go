package compose

import (
	"fmt"

	"github.com/moby/patternmatcher"
)

// defaultIgnores are always excluded from the base copy. Version control
// droppings and editor backups have no place in a generated charm.
var defaultIgnores = []string{
	".git",
	".bzr",
	"**/.ropeproject",
	"*.pyc",
	"*~",
}

// Ignorer decides which relative paths are excluded from a tree copy.
type Ignorer struct {
	pm *patternmatcher.PatternMatcher
}

// NewIgnorer builds an Ignorer from the default patterns plus any extra
// gitignore-style patterns from the manifest.
func NewIgnorer(extra []string) (*Ignorer, error) {
	patterns := append(append([]string(nil), defaultIgnores...), extra...)
	pm, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, fmt.Errorf("compiling ignore patterns: %w", err)
	}
	return &Ignorer{pm: pm}, nil
}

// Skip reports whether the path (relative to the copy root, slash or native
// separators) should be excluded.
func (ig *Ignorer) Skip(rel string) bool {
	if ig == nil {
		return false
	}
	matched, err := ig.pm.MatchesOrParentMatches(rel)
	if err != nil {
		return false
	}
	return matched
}
