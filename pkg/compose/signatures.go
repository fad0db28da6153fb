package compose

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// SignatureFile records the provenance of every file in a composed charm.
const SignatureFile = ".charmforge.manifest"

// Signature kinds. Static files were copied verbatim from a layer; dynamic
// files were generated by the composer (merged metadata, dispatchers).
const (
	SignatureStatic  = "static"
	SignatureDynamic = "dynamic"
)

// Signature records one output file's origin and content hash.
type Signature struct {
	// Layer names the charm layer the file came from.
	Layer string `json:"layer"`

	// Kind is SignatureStatic or SignatureDynamic.
	Kind string `json:"kind"`

	// SHA256 is the hex digest of the file contents.
	SHA256 string `json:"sha256"`
}

// SignatureManifest is the serialized form of the signature file.
type SignatureManifest struct {
	Signatures map[string]Signature `json:"signatures"`
}

// WriteSignatures hashes every regular file under dir and writes the
// signature manifest at its root. classify maps a slash-separated relative
// path to its originating layer and kind.
func WriteSignatures(dir string, classify func(rel string) (layer, kind string)) error {
	manifest := SignatureManifest{Signatures: make(map[string]Signature)}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == SignatureFile {
			return nil
		}

		sum, err := fileSHA256(path)
		if err != nil {
			return err
		}
		layer, kind := classify(rel)
		manifest.Signatures[rel] = Signature{Layer: layer, Kind: kind, SHA256: sum}
		return nil
	})
	if err != nil {
		return fmt.Errorf("signing output tree: %w", err)
	}

	data, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, SignatureFile), data, 0o644)
}

// LoadSignatures reads the signature manifest from a composed charm.
func LoadSignatures(dir string) (*SignatureManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, SignatureFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s is not a composed charm: %w", dir, err)
		}
		return nil, err
	}
	var manifest SignatureManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SignatureFile, err)
	}
	return &manifest, nil
}

// DeltaSignatures compares the recorded signatures with the tree's current
// contents. Files the composer generated are excluded from change detection
// since regenerating them is the point of a recompose.
func DeltaSignatures(dir string) (added, changed, removed []string, err error) {
	manifest, err := LoadSignatures(dir)
	if err != nil {
		return nil, nil, nil, err
	}

	current := make(map[string]string)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == SignatureFile {
			return nil
		}
		sum, sumErr := fileSHA256(path)
		if sumErr != nil {
			return sumErr
		}
		current[rel] = sum
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	for rel, sum := range current {
		recorded, ok := manifest.Signatures[rel]
		if !ok {
			added = append(added, rel)
			continue
		}
		if recorded.Kind == SignatureDynamic {
			continue
		}
		if recorded.SHA256 != sum {
			changed = append(changed, rel)
		}
	}
	for rel := range manifest.Signatures {
		if _, ok := current[rel]; !ok {
			removed = append(removed, rel)
		}
	}

	sort.Strings(added)
	sort.Strings(changed)
	sort.Strings(removed)
	return added, changed, removed, nil
}

func fileSHA256(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
