package compose

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSignedTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	writeFileMode(t, filepath.Join(dir, "metadata.yaml"), "name: tester\n", 0o644)
	writeFileMode(t, filepath.Join(dir, "hooks", "install"), "#!/bin/bash\n", 0o755)

	classify := func(rel string) (string, string) {
		if rel == "metadata.yaml" {
			return "foo", SignatureDynamic
		}
		return "trusty/tester", SignatureStatic
	}
	if err := WriteSignatures(dir, classify); err != nil {
		t.Fatalf("failed to write signatures: %v", err)
	}
	return dir
}

func TestWriteAndLoadSignatures(t *testing.T) {
	dir := writeSignedTree(t)

	manifest, err := LoadSignatures(dir)
	if err != nil {
		t.Fatalf("failed to load signatures: %v", err)
	}

	if len(manifest.Signatures) != 2 {
		t.Fatalf("expected 2 signatures, got %d", len(manifest.Signatures))
	}
	meta, ok := manifest.Signatures["metadata.yaml"]
	if !ok {
		t.Fatal("expected signature for metadata.yaml")
	}
	if meta.Layer != "foo" || meta.Kind != SignatureDynamic {
		t.Errorf("unexpected metadata signature: %+v", meta)
	}
	hook := manifest.Signatures["hooks/install"]
	if hook.Kind != SignatureStatic || hook.SHA256 == "" {
		t.Errorf("unexpected hook signature: %+v", hook)
	}
}

func TestDeltaSignatures(t *testing.T) {
	dir := writeSignedTree(t)

	// Mutate the tree after signing.
	writeFileMode(t, filepath.Join(dir, "hooks", "install"), "#!/bin/bash\nchanged\n", 0o755)
	writeFileMode(t, filepath.Join(dir, "new-file"), "added\n", 0o644)
	// Generated files are exempt from change detection.
	writeFileMode(t, filepath.Join(dir, "metadata.yaml"), "name: other\n", 0o644)

	added, changed, removed, err := DeltaSignatures(dir)
	if err != nil {
		t.Fatalf("delta failed: %v", err)
	}

	if len(added) != 1 || added[0] != "new-file" {
		t.Errorf("unexpected added set: %v", added)
	}
	if len(changed) != 1 || changed[0] != "hooks/install" {
		t.Errorf("unexpected changed set: %v", changed)
	}
	if len(removed) != 0 {
		t.Errorf("unexpected removed set: %v", removed)
	}

	if err := os.Remove(filepath.Join(dir, "hooks", "install")); err != nil {
		t.Fatalf("failed to remove file: %v", err)
	}
	_, _, removed, err = DeltaSignatures(dir)
	if err != nil {
		t.Fatalf("delta failed: %v", err)
	}
	if len(removed) != 1 || removed[0] != "hooks/install" {
		t.Errorf("unexpected removed set: %v", removed)
	}
}

func TestLoadSignaturesMissing(t *testing.T) {
	if _, err := LoadSignatures(t.TempDir()); err == nil {
		t.Error("expected error for unsigned tree")
	}
}
