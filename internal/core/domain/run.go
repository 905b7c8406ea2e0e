package domain

import "time"

// RunStatus is the terminal state of a build run.
type RunStatus string

// Run statuses.
const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord is a persisted summary of one build run.
type RunRecord struct {
	// ID is the unique identifier for the run.
	ID string

	// Root is the build root the run was executed against.
	Root string

	// Status is the final state of the run.
	Status RunStatus

	// Error contains the failure message if Status is RunFailed.
	Error string

	// StartedAt is when the run started.
	StartedAt time.Time

	// FinishedAt is when the completion gate fired.
	FinishedAt time.Time

	// Sources counts declared sources emitted.
	Sources int

	// Dependencies counts discovered dependencies emitted.
	Dependencies int

	// Warnings holds the filtered, deduplicated warnings.
	Warnings []Warning
}

// Duration returns how long the run took.
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// BuildStatus is a point-in-time view of a running build.
type BuildStatus struct {
	RunID              string
	Running            bool
	SourcesEmitted     int
	DependenciesLoaded int
	FragmentsPending   int
	Warnings           WarningTally
	LastError          string
}
