package compose

import (
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/charmforge/charmforge/pkg/charm"
)

func newTestDiverter() *Diverter {
	return NewDiverter(zerolog.New(nil).Level(zerolog.Disabled))
}

func setupDivertTrees(t *testing.T, baseHook, layerHook string) (out, layer *charm.Tree) {
	t.Helper()

	outDir := t.TempDir()
	layerDir := t.TempDir()
	if baseHook != "" {
		writeFileMode(t, filepath.Join(outDir, "hooks", "start"), baseHook, 0o755)
	}
	if layerHook != "" {
		writeFileMode(t, filepath.Join(layerDir, "hooks", "start"), layerHook, 0o755)
	}
	return charm.NewTree(outDir), charm.NewTree(layerDir)
}

func TestDivertLayerThenBase(t *testing.T) {
	out, layer := setupDivertTrees(t, "#!/bin/bash\necho base\n", "#!/bin/bash\necho layer\n")

	rules := []DivertRule{{Hook: "start", Direction: LayerThenBase}}
	if err := newTestDiverter().Apply(out, layer, rules); err != nil {
		t.Fatalf("divert failed: %v", err)
	}

	for _, rel := range []string{"hooks/start", "hooks/start.base", "hooks/start.layer"} {
		info, err := os.Stat(filepath.Join(out.Dir, rel))
		if err != nil {
			t.Fatalf("expected %s: %v", rel, err)
		}
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("%s not executable: %v", rel, info.Mode())
		}
	}

	data, err := os.ReadFile(out.HookPath("start"))
	if err != nil {
		t.Fatalf("failed to read dispatcher: %v", err)
	}
	script := string(data)
	if !strings.HasPrefix(script, "#!/bin/bash\nset -e\n") {
		t.Errorf("dispatcher missing fail-fast preamble:\n%s", script)
	}
	layerIdx := strings.Index(script, "hooks/start.layer")
	baseIdx := strings.Index(script, "hooks/start.base")
	if layerIdx < 0 || baseIdx < 0 {
		t.Fatalf("dispatcher missing invocations:\n%s", script)
	}
	if layerIdx > baseIdx {
		t.Errorf("expected layer hook invoked before base hook:\n%s", script)
	}

	moved, err := os.ReadFile(out.HookPath("start") + ".base")
	if err != nil {
		t.Fatalf("moved base hook missing: %v", err)
	}
	if !strings.Contains(string(moved), "echo base") {
		t.Errorf("moved base hook has wrong content: %q", moved)
	}
}

func TestDivertBaseThenLayer(t *testing.T) {
	out, layer := setupDivertTrees(t, "#!/bin/bash\necho base\n", "#!/bin/bash\necho layer\n")

	rules := []DivertRule{{Hook: "start", Direction: BaseThenLayer}}
	if err := newTestDiverter().Apply(out, layer, rules); err != nil {
		t.Fatalf("divert failed: %v", err)
	}

	data, _ := os.ReadFile(out.HookPath("start"))
	script := string(data)
	if strings.Index(script, "hooks/start.base") > strings.Index(script, "hooks/start.layer") {
		t.Errorf("expected base hook invoked before layer hook:\n%s", script)
	}
}

// runDispatcher executes a diverted hook the way the charm runtime would,
// from the charm root.
func runDispatcher(t *testing.T, out *charm.Tree, args ...string) error {
	t.Helper()

	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
	cmd := exec.Command(out.HookPath("start"), args...)
	cmd.Dir = out.Dir
	return cmd.Run()
}

func TestDivertDispatcherExecution(t *testing.T) {
	out, layer := setupDivertTrees(t,
		"#!/bin/bash\necho \"base $1\" >> run.log\n",
		"#!/bin/bash\necho \"layer $1\" >> run.log\n")

	rules := []DivertRule{{Hook: "start", Direction: LayerThenBase}}
	if err := newTestDiverter().Apply(out, layer, rules); err != nil {
		t.Fatalf("divert failed: %v", err)
	}

	if err := runDispatcher(t, out, "started"); err != nil {
		t.Fatalf("dispatcher run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(out.Dir, "run.log"))
	if err != nil {
		t.Fatalf("hooks left no log: %v", err)
	}
	if got := string(data); got != "layer started\nbase started\n" {
		t.Errorf("unexpected hook order or arguments:\n%s", got)
	}
}

func TestDivertDispatcherFailFast(t *testing.T) {
	out, layer := setupDivertTrees(t,
		"#!/bin/bash\necho base >> run.log\n",
		"#!/bin/bash\nexit 7\n")

	rules := []DivertRule{{Hook: "start", Direction: LayerThenBase}}
	if err := newTestDiverter().Apply(out, layer, rules); err != nil {
		t.Fatalf("divert failed: %v", err)
	}

	err := runDispatcher(t, out)
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected dispatcher to fail, got %v", err)
	}
	if code := exitErr.ExitCode(); code != 7 {
		t.Errorf("expected the layer hook's exit status 7, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(out.Dir, "run.log")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("base hook ran after the layer hook failed: %v", err)
	}
}

func TestDivertBaseHookAbsent(t *testing.T) {
	out, layer := setupDivertTrees(t, "", "#!/bin/bash\necho layer\n")

	rules := []DivertRule{{Hook: "start", Direction: BaseThenLayer}}
	if err := newTestDiverter().Apply(out, layer, rules); err != nil {
		t.Fatalf("divert failed: %v", err)
	}

	data, _ := os.ReadFile(out.HookPath("start"))
	script := string(data)
	if strings.Contains(script, "hooks/start.base") {
		t.Errorf("dispatcher references a base hook that does not exist:\n%s", script)
	}
	if !strings.Contains(script, "hooks/start.layer") {
		t.Errorf("dispatcher missing layer invocation:\n%s", script)
	}
	if _, err := os.Stat(out.HookPath("start") + ".base"); err == nil {
		t.Error("unexpected moved-aside base hook")
	}
}

func TestDivertSourceMissing(t *testing.T) {
	out, layer := setupDivertTrees(t, "#!/bin/bash\necho base\n", "")

	original, err := os.ReadFile(out.HookPath("start"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	rules := []DivertRule{{Hook: "start", Direction: BaseThenLayer}}
	err = newTestDiverter().Apply(out, layer, rules)
	if !errors.Is(err, ErrDivertSourceMissing) {
		t.Fatalf("expected ErrDivertSourceMissing, got %v", err)
	}

	// The failing rule must leave the hook path untouched.
	after, err := os.ReadFile(out.HookPath("start"))
	if err != nil {
		t.Fatalf("base hook disturbed by failed divert: %v", err)
	}
	if string(after) != string(original) {
		t.Error("base hook content changed by failed divert")
	}
	if _, err := os.Stat(out.HookPath("start") + ".layer"); err == nil {
		t.Error("partial divert artifact left behind")
	}
}
