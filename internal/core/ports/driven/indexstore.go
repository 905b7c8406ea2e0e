package driven

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// IndexStore persists build runs and their dependency indexes.
type IndexStore interface {
	// SaveRun stores a run record and, when idx is non-nil, its index.
	SaveRun(ctx context.Context, run domain.RunRecord, idx *domain.DependencyIndex) error

	// GetRun retrieves a run by ID.
	// Returns domain.ErrNotFound if the run does not exist.
	GetRun(ctx context.Context, id string) (*domain.RunRecord, error)

	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)

	// LatestIndex returns the index of the most recent successful run.
	// Returns domain.ErrNotFound if no run succeeded yet.
	LatestIndex(ctx context.Context) (*domain.DependencyIndex, *domain.RunRecord, error)

	// GetIndex returns the index stored for a run.
	// Returns domain.ErrNotFound if the run has no index.
	GetIndex(ctx context.Context, runID string) (*domain.DependencyIndex, error)
}
