package compose

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the layer's manifest file name.
const ManifestFile = "charmforge.yaml"

// Direction controls the order a diverted hook runs its two halves in.
type Direction string

const (
	// BaseThenLayer runs the base's original hook before the layer's.
	BaseThenLayer Direction = "base-then-layer"

	// LayerThenBase runs the layer's hook before the base's original.
	LayerThenBase Direction = "layer-then-base"
)

// Manifest is the layer's declarative compose configuration, read from
// charmforge.yaml in the layer directory.
type Manifest struct {
	// Base references the charm tree this layer composes on top of.
	// Relative references are resolved against the layer directory, the
	// working directory, and CHARMFORGE_PATH.
	Base string `yaml:"base" validate:"required"`

	// Files are ordered overlay rules; later rules win on collision.
	Files []FileRule `yaml:"files,omitempty" validate:"dive"`

	// Diverts are ordered hook diversion rules.
	Diverts []DivertRule `yaml:"diverts,omitempty" validate:"dive"`

	// Ignore lists additional gitignore-style patterns excluded from the
	// base copy, on top of the built-in defaults.
	Ignore []string `yaml:"ignore,omitempty"`
}

// FileRule copies one file from the layer onto the output tree.
type FileRule struct {
	// Source is the path inside the layer directory.
	Source string `yaml:"source" validate:"required"`

	// Dest is the destination path inside the output tree.
	Dest string `yaml:"dest" validate:"required"`
}

// DivertRule reroutes one lifecycle hook so both base and layer logic run.
type DivertRule struct {
	// Hook is the lifecycle hook name, e.g. "install" or "config-changed".
	Hook string `yaml:"hook" validate:"required"`

	// Direction selects which half runs first.
	Direction Direction `yaml:"direction" validate:"required,oneof=base-then-layer layer-then-base"`
}

var validate = validator.New()

// LoadManifest locates and parses the manifest in layerDir. It has no side
// effects beyond reading.
func LoadManifest(layerDir string) (*Manifest, error) {
	path := filepath.Join(layerDir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: no %s in %s", ErrManifestMissing, ManifestFile, layerDir)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, path, err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrManifestMalformed, path, err)
	}
	return &m, nil
}
