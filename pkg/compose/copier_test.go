package compose

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFileMode(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	writeFileMode(t, filepath.Join(src, "metadata.yaml"), "name: tester\n", 0o644)
	writeFileMode(t, filepath.Join(src, "hooks", "install"), "#!/bin/bash\n", 0o755)

	ig, err := NewIgnorer(nil)
	if err != nil {
		t.Fatalf("failed to build ignorer: %v", err)
	}
	if err := CopyTree(src, dst, ig); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dst, "metadata.yaml"))
	if err != nil {
		t.Fatalf("copied file missing: %v", err)
	}
	if string(data) != "name: tester\n" {
		t.Errorf("unexpected content: %q", data)
	}

	info, err := os.Stat(filepath.Join(dst, "hooks", "install"))
	if err != nil {
		t.Fatalf("copied hook missing: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Errorf("executable bit lost: mode %v", info.Mode())
	}
}

func TestCopyTreePreservesSymlinks(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	writeFileMode(t, filepath.Join(src, "hooks", "install"), "#!/bin/bash\n", 0o755)
	if err := os.Symlink("install", filepath.Join(src, "hooks", "start")); err != nil {
		t.Fatalf("failed to create symlink: %v", err)
	}

	ig, _ := NewIgnorer(nil)
	if err := CopyTree(src, dst, ig); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	link, err := os.Readlink(filepath.Join(dst, "hooks", "start"))
	if err != nil {
		t.Fatalf("expected symlink in output: %v", err)
	}
	if link != "install" {
		t.Errorf("expected link target install, got %q", link)
	}
}

func TestCopyTreeAppliesIgnores(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "out")

	writeFileMode(t, filepath.Join(src, "metadata.yaml"), "name: tester\n", 0o644)
	writeFileMode(t, filepath.Join(src, ".git", "HEAD"), "ref\n", 0o644)
	writeFileMode(t, filepath.Join(src, "hooks", "install.pyc"), "junk", 0o644)
	writeFileMode(t, filepath.Join(src, "notes.tmp"), "junk", 0o644)

	ig, err := NewIgnorer([]string{"*.tmp"})
	if err != nil {
		t.Fatalf("failed to build ignorer: %v", err)
	}
	if err := CopyTree(src, dst, ig); err != nil {
		t.Fatalf("copy failed: %v", err)
	}

	for _, rel := range []string{".git", "hooks/install.pyc", "notes.tmp"} {
		if _, err := os.Stat(filepath.Join(dst, rel)); err == nil {
			t.Errorf("expected %s to be ignored", rel)
		}
	}
	if _, err := os.Stat(filepath.Join(dst, "metadata.yaml")); err != nil {
		t.Errorf("expected metadata.yaml to be copied: %v", err)
	}
}

func TestCopyTreeMissingSource(t *testing.T) {
	ig, _ := NewIgnorer(nil)
	err := CopyTree(filepath.Join(t.TempDir(), "gone"), t.TempDir(), ig)
	if !errors.Is(err, ErrCopyFailed) {
		t.Errorf("expected ErrCopyFailed, got %v", err)
	}
}
