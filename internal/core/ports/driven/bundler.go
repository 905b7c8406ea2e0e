package driven

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// Bundler merges build output using the dependency index.
type Bundler interface {
	// Bundle returns the grouping it chose and the content of every
	// document it rewrote or created, keyed by id.
	Bundle(ctx context.Context, files []domain.File, idx *domain.DependencyIndex) (*domain.BundleManifest, map[domain.CanonicalID][]byte, error)
}
