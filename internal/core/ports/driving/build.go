package driving

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// Build is one running dependency analysis.
type Build interface {
	// ID returns the run identifier.
	ID() string

	// Sources streams declared sources in enumeration order. The error
	// channel delivers one value once the run settles, nil on success.
	Sources() (<-chan domain.File, <-chan error)

	// Dependencies streams demand-loaded dependencies. The error channel
	// delivers one value once the run settles, nil on success.
	Dependencies() (<-chan domain.File, <-chan error)

	// Index blocks until the run settles and returns the completed index,
	// or the run's failure.
	Index(ctx context.Context) (*domain.DependencyIndex, error)

	// Load returns the contents of id, demand-loading it if needed.
	Load(ctx context.Context, id domain.CanonicalID) ([]byte, error)

	// AddFile inserts generated content into the run's file store.
	AddFile(ctx context.Context, file domain.File) error

	// Files returns a snapshot of every loaded file, sorted by id.
	Files(ctx context.Context) ([]domain.File, error)

	// Warnings returns the filtered, deduplicated warnings seen so far.
	Warnings(ctx context.Context) ([]domain.Warning, error)

	// Done is closed once the run has fully stopped.
	Done() <-chan struct{}

	// Err returns the run's failure once Done is closed.
	Err() error
}

// BuildService starts and tracks builds.
type BuildService interface {
	// Start begins a build. Returns domain.ErrBuildInProgress if another
	// build is still running.
	Start(ctx context.Context, cfg domain.BuildConfig) (Build, error)

	// Finish waits for b to stop and records its outcome.
	Finish(ctx context.Context, b Build) (*domain.RunRecord, error)

	// Watch runs a build, then reruns it each time a declared source
	// changes, calling handle with every build. It returns when ctx is
	// cancelled or handle fails.
	Watch(ctx context.Context, cfg domain.BuildConfig, handle func(context.Context, Build) error) error

	// Status returns the state of the current or last build.
	Status(ctx context.Context) (*domain.BuildStatus, error)
}
