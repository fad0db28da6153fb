package compose

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure taxonomy. Every failed run wraps exactly
// one of these (or an underlying I/O error) in a *ComposeError carrying the
// originating stage and path.
var (
	// ErrManifestMissing indicates the layer has no manifest file.
	ErrManifestMissing = errors.New("manifest missing")

	// ErrManifestMalformed indicates the manifest could not be parsed or
	// failed validation.
	ErrManifestMalformed = errors.New("manifest malformed")

	// ErrCopyFailed indicates the base tree copy did not complete. Partial
	// output may exist; the caller decides whether to clean up.
	ErrCopyFailed = errors.New("copy failed")

	// ErrDivertSourceMissing indicates a divert rule names a hook the layer
	// does not provide.
	ErrDivertSourceMissing = errors.New("divert source missing")

	// ErrOverlaySourceMissing indicates a file rule names a layer file that
	// does not exist.
	ErrOverlaySourceMissing = errors.New("overlay source missing")

	// ErrBaseUnresolvable indicates the manifest's base reference did not
	// resolve to a charm tree on the search path.
	ErrBaseUnresolvable = errors.New("base unresolvable")

	// ErrOutputExists indicates the output directory already exists and
	// overwriting was not requested.
	ErrOutputExists = errors.New("output already exists")
)

// Stage identifies the pipeline stage an error originated from.
type Stage string

const (
	StageLoadManifest    Stage = "load-manifest"
	StageResolveBase     Stage = "resolve-base"
	StageCopyBase        Stage = "copy-base"
	StageMergeMetadata   Stage = "merge-metadata"
	StageDivertHooks     Stage = "divert-hooks"
	StageApplyFiles      Stage = "apply-files"
	StageWriteMetadata   Stage = "write-metadata"
	StageWriteSignatures Stage = "write-signatures"
)

// ComposeError wraps a stage failure with enough context to diagnose it.
//
//nolint:revive // ComposeError is intentionally named to distinguish from standard errors
type ComposeError struct {
	// Stage is the pipeline stage that failed.
	Stage Stage

	// Path is the filesystem path involved, if any.
	Path string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ComposeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("compose %s (%s): %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("compose %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As inspection.
func (e *ComposeError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, path string, err error) *ComposeError {
	return &ComposeError{Stage: stage, Path: path, Err: err}
}
