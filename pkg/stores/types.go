package stores

import "time"

// RunStatus represents the outcome of a compose run.
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one compose invocation.
type Run struct {
	// ID is the run's UUID.
	ID string `json:"id"`

	// Name is the output charm name.
	Name string `json:"name"`

	// Series is the distribution series the charm was composed for.
	Series string `json:"series"`

	// LayerPath is the layer directory the run was driven by.
	LayerPath string `json:"layer_path"`

	// BaseRef is the manifest's base reference, as written.
	BaseRef string `json:"base_ref"`

	// OutputPath is where the composed charm was written.
	OutputPath string `json:"output_path"`

	// Status is the run outcome.
	Status RunStatus `json:"status"`

	// Error holds the failure message for failed runs.
	Error string `json:"error,omitempty"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run completed or failed.
	FinishedAt time.Time `json:"finished_at"`
}
