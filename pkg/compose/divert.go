package compose

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmforge/charmforge/pkg/charm"
	"github.com/rs/zerolog"
)

// Reserved name suffixes for relocated hook halves. Lifecycle hook names
// never contain a dot, so the dotted forms cannot shadow a real hook.
const (
	baseHookSuffix  = ".base"
	layerHookSuffix = ".layer"
)

// Diverter rewires lifecycle hooks in the output tree so that both the base's
// original implementation and the layer's replacement run at the same event.
type Diverter struct {
	logger zerolog.Logger
}

// NewDiverter creates a Diverter.
func NewDiverter(logger zerolog.Logger) *Diverter {
	return &Diverter{
		logger: logger.With().Str("component", "diverter").Logger(),
	}
}

// Apply processes the divert rules in order against the already-copied output
// tree. For each rule the base's hook (when present) is moved aside, the
// layer's hook installed under a reserved name, and a dispatcher generated at
// the original hook path. The layer hook's existence is checked before any
// mutation, so a failing rule leaves that hook path untouched.
func (d *Diverter) Apply(out, layer *charm.Tree, rules []DivertRule) error {
	for _, rule := range rules {
		layerHook := layer.HookPath(rule.Hook)
		info, err := os.Stat(layerHook)
		if err != nil || !info.Mode().IsRegular() {
			return fmt.Errorf("%w: layer provides no hooks/%s", ErrDivertSourceMissing, rule.Hook)
		}

		if err := os.MkdirAll(filepath.Join(out.Dir, charm.HooksDir), 0o755); err != nil {
			return fmt.Errorf("creating hooks dir: %w", err)
		}

		original := out.HookPath(rule.Hook)
		haveBase := out.HasHook(rule.Hook)
		if haveBase {
			if err := os.Rename(original, original+baseHookSuffix); err != nil {
				return fmt.Errorf("moving aside hooks/%s: %w", rule.Hook, err)
			}
		}

		if err := copyFile(layerHook, original+layerHookSuffix, info.Mode()); err != nil {
			return fmt.Errorf("installing layer hook %s: %w", rule.Hook, err)
		}

		script := dispatcherScript(rule.Hook, rule.Direction, haveBase)
		if err := os.WriteFile(original, []byte(script), 0o755); err != nil {
			return fmt.Errorf("writing dispatcher for %s: %w", rule.Hook, err)
		}
		if err := os.Chmod(original, 0o755); err != nil {
			return fmt.Errorf("marking dispatcher executable: %w", err)
		}

		d.logger.Debug().
			Str("hook", rule.Hook).
			Str("direction", string(rule.Direction)).
			Bool("base_present", haveBase).
			Msg("Hook diverted")
	}
	return nil
}

// dispatcherScript generates the bash dispatcher installed at the original
// hook path. Paths are relative to the charm root, which is the working
// directory the hook runtime executes hooks from. set -e makes the first
// failing half abort the sequence with its own exit status.
func dispatcherScript(hook string, direction Direction, haveBase bool) string {
	rel := path.Join(charm.HooksDir, hook)
	baseLine := fmt.Sprintf("%s%s \"$@\"\n", rel, baseHookSuffix)
	layerLine := fmt.Sprintf("%s%s \"$@\"\n", rel, layerHookSuffix)

	var b strings.Builder
	b.WriteString("#!/bin/bash\nset -e\n")
	if direction == BaseThenLayer {
		if haveBase {
			b.WriteString(baseLine)
		}
		b.WriteString(layerLine)
	} else {
		b.WriteString(layerLine)
		if haveBase {
			b.WriteString(baseLine)
		}
	}
	return b.String()
}
