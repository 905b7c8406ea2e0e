package driven

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// SourceEnumerator eagerly walks every declared source under a root.
type SourceEnumerator interface {
	// Enumerate streams each declared source exactly once.
	// The file channel closes when the walk ends; the error channel then
	// delivers at most one error and closes.
	Enumerate(ctx context.Context) (<-chan domain.RawFile, <-chan error)
}

// FileReader reads a single file on demand.
type FileReader interface {
	// ReadFile returns the bytes at an absolute filesystem path.
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

// SourceClassifier decides whether an id is one of the declared sources.
type SourceClassifier interface {
	// IsSource reports whether id matches the declared source globs.
	IsSource(id domain.CanonicalID) bool
}

// SourceWatcher reports changes beneath the build root.
type SourceWatcher interface {
	// Watch streams changes until ctx is cancelled.
	Watch(ctx context.Context) (<-chan domain.FileChange, error)
}

// SourceConnector is the full filesystem surface a build needs.
type SourceConnector interface {
	SourceEnumerator
	FileReader
	SourceClassifier
	SourceWatcher

	// Root returns the absolute root the connector walks.
	Root() string

	// Validate checks the root exists and is readable.
	Validate(ctx context.Context) error

	// Close releases resources.
	Close() error
}
