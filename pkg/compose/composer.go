package compose

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/charmforge/charmforge/pkg/charm"
	"github.com/rs/zerolog"
)

// Options configure a single compose run.
type Options struct {
	// LayerDir is the layer directory containing the manifest.
	LayerDir string

	// OutputDir is the repository root; the charm is written to
	// OutputDir/Series/Name.
	OutputDir string

	// Series is the distribution series subdirectory.
	Series string

	// Name is the output charm name.
	Name string

	// Force removes a preexisting output tree instead of failing.
	Force bool
}

// Result describes a finished compose run.
type Result struct {
	// OutputPath is the directory the composed charm was written to.
	OutputPath string

	// BaseDir is the resolved base charm directory.
	BaseDir string

	// Manifest is the layer manifest the run was driven by.
	Manifest *Manifest
}

// Composer sequences the compose pipeline over one output tree. A Composer
// assumes exclusive ownership of its output path for the duration of a run;
// concurrent runs against the same path are unsupported.
type Composer struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a Composer for the given options.
func New(opts Options, logger zerolog.Logger) *Composer {
	return &Composer{
		opts:   opts,
		logger: logger.With().Str("component", "composer").Logger(),
	}
}

// OutputPath returns the directory the composed charm is written to.
func (c *Composer) OutputPath() string {
	return filepath.Join(c.opts.OutputDir, c.opts.Series, c.opts.Name)
}

// Run executes the pipeline. Any stage failure is terminal: the error is
// returned wrapped with stage and path context and the partially written
// output is left for the caller to clean up.
func (c *Composer) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(c.opts.LayerDir)
	if err != nil {
		return nil, stageError(StageLoadManifest, c.opts.LayerDir, err)
	}

	baseDir, err := ResolveBase(c.opts.LayerDir, manifest.Base)
	if err != nil {
		return nil, stageError(StageResolveBase, c.opts.LayerDir, err)
	}
	base := charm.NewTree(baseDir)
	layer := charm.NewTree(c.opts.LayerDir)
	out := charm.NewTree(c.OutputPath())

	c.logger.Info().
		Str("layer", layer.Dir).
		Str("base", base.Dir).
		Str("output", out.Dir).
		Msg("Composing charm")

	if _, err := os.Stat(out.Dir); err == nil {
		if !c.opts.Force {
			return nil, stageError(StageCopyBase, out.Dir, ErrOutputExists)
		}
		if err := os.RemoveAll(out.Dir); err != nil {
			return nil, stageError(StageCopyBase, out.Dir, err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(out.Dir), 0o755); err != nil {
		return nil, stageError(StageCopyBase, out.Dir, err)
	}

	ignorer, err := NewIgnorer(manifest.Ignore)
	if err != nil {
		return nil, stageError(StageCopyBase, c.opts.LayerDir, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := CopyTree(base.Dir, out.Dir, ignorer); err != nil {
		return nil, stageError(StageCopyBase, out.Dir, err)
	}

	merged, err := c.mergeMetadata(base, layer)
	if err != nil {
		return nil, err
	}

	diverter := NewDiverter(c.logger)
	if err := diverter.Apply(out, layer, manifest.Diverts); err != nil {
		return nil, stageError(StageDivertHooks, out.Dir, err)
	}

	if err := ApplyFiles(out.Dir, layer.Dir, manifest.Files); err != nil {
		return nil, stageError(StageApplyFiles, out.Dir, err)
	}

	if err := charm.SaveDocument(out.MetadataPath(), merged); err != nil {
		return nil, stageError(StageWriteMetadata, out.MetadataPath(), err)
	}

	classify := classifier(base, layer, manifest)
	if err := WriteSignatures(out.Dir, classify); err != nil {
		return nil, stageError(StageWriteSignatures, out.Dir, err)
	}

	c.logger.Info().
		Str("output", out.Dir).
		Int("file_rules", len(manifest.Files)).
		Int("divert_rules", len(manifest.Diverts)).
		Msg("Charm composed")

	return &Result{OutputPath: out.Dir, BaseDir: base.Dir, Manifest: manifest}, nil
}

// mergeMetadata loads both metadata documents and merges them. The base must
// have a valid document; the layer's is optional.
func (c *Composer) mergeMetadata(base, layer *charm.Tree) (*charm.Document, error) {
	baseDoc, err := base.Metadata()
	if err != nil {
		return nil, stageError(StageMergeMetadata, base.MetadataPath(), err)
	}

	layerDoc := charm.NewMapping()
	if _, err := os.Stat(layer.MetadataPath()); err == nil {
		layerDoc, err = layer.Metadata()
		if err != nil {
			return nil, stageError(StageMergeMetadata, layer.MetadataPath(), err)
		}
	}
	return charm.Merge(baseDoc, layerDoc), nil
}

// classifier builds the provenance function for the signature manifest from
// the rules that actually ran. Every entry is attributed to the layer whose
// content produced it: generated files (merged metadata, dispatchers) belong
// to the composing layer, and anything not claimed by a rule came from the
// base copy.
func classifier(base, layer *charm.Tree, manifest *Manifest) func(string) (string, string) {
	origins := map[string]Signature{
		charm.MetadataFile: {Layer: layer.Name(), Kind: SignatureDynamic},
	}
	for _, rule := range manifest.Files {
		origins[path.Clean(rule.Dest)] = Signature{Layer: layer.Name(), Kind: SignatureStatic}
	}
	for _, rule := range manifest.Diverts {
		hook := path.Join(charm.HooksDir, rule.Hook)
		origins[hook] = Signature{Layer: layer.Name(), Kind: SignatureDynamic}
		origins[hook+layerHookSuffix] = Signature{Layer: layer.Name(), Kind: SignatureStatic}
		origins[hook+baseHookSuffix] = Signature{Layer: base.Name(), Kind: SignatureStatic}
	}

	return func(rel string) (string, string) {
		if sig, ok := origins[rel]; ok {
			return sig.Layer, sig.Kind
		}
		return base.Name(), SignatureStatic
	}
}

// Validate checks a layer the way a compose run would, without writing any
// output: manifest parse, base resolution, and the presence of every divert
// and overlay source.
func Validate(layerDir string) error {
	manifest, err := LoadManifest(layerDir)
	if err != nil {
		return stageError(StageLoadManifest, layerDir, err)
	}

	baseDir, err := ResolveBase(layerDir, manifest.Base)
	if err != nil {
		return stageError(StageResolveBase, layerDir, err)
	}
	if _, err := charm.NewTree(baseDir).Metadata(); err != nil {
		return stageError(StageMergeMetadata, baseDir, err)
	}

	layer := charm.NewTree(layerDir)
	for _, rule := range manifest.Diverts {
		if !layer.HasHook(rule.Hook) {
			return stageError(StageDivertHooks, layerDir,
				fmt.Errorf("%w: layer provides no hooks/%s", ErrDivertSourceMissing, rule.Hook))
		}
	}
	for _, rule := range manifest.Files {
		src := filepath.Join(layerDir, filepath.FromSlash(rule.Source))
		if info, err := os.Stat(src); err != nil || !info.Mode().IsRegular() {
			return stageError(StageApplyFiles, layerDir,
				fmt.Errorf("%w: %s", ErrOverlaySourceMissing, rule.Source))
		}
	}
	return nil
}
