package driving

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// IndexService queries recorded dependency indexes.
type IndexService interface {
	// Latest returns the index of the most recent successful run.
	Latest(ctx context.Context) (*domain.DependencyIndex, *domain.RunRecord, error)

	// Fragments lists the fragments of the latest index.
	Fragments(ctx context.Context) ([]domain.CanonicalID, error)

	// Imports returns a fragment's full reference set.
	// Returns domain.ErrNotFound if the fragment is unknown.
	Imports(ctx context.Context, fragment domain.CanonicalID) (*domain.ReferenceSet, error)

	// Dependents returns the documents that import dep.
	Dependents(ctx context.Context, dep domain.CanonicalID) ([]domain.CanonicalID, error)

	// Runs lists recorded runs, most recent first.
	Runs(ctx context.Context, limit int) ([]domain.RunRecord, error)
}
