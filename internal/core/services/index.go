package services

import (
	"context"
	"fmt"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexService answers dependency queries against recorded runs.
type IndexService struct {
	store driven.IndexStore
}

// NewIndexService creates a new index service.
func NewIndexService(store driven.IndexStore) *IndexService {
	return &IndexService{store: store}
}

// Latest returns the most recent successful index.
func (s *IndexService) Latest(ctx context.Context) (*domain.DependencyIndex, *domain.RunRecord, error) {
	if s.store == nil {
		return nil, nil, fmt.Errorf("latest index: %w", domain.ErrNotFound)
	}
	idx, run, err := s.store.LatestIndex(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("latest index: %w", err)
	}
	return idx, run, nil
}

// Fragments lists the fragments of the latest index.
func (s *IndexService) Fragments(ctx context.Context) ([]domain.CanonicalID, error) {
	idx, _, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Fragments(), nil
}

// Imports returns the reference set of fragment.
func (s *IndexService) Imports(ctx context.Context, fragment domain.CanonicalID) (*domain.ReferenceSet, error) {
	idx, _, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	refs, ok := idx.FragmentToDeps[fragment]
	if !ok {
		return nil, fmt.Errorf("%w: fragment %s", domain.ErrNotFound, fragment)
	}
	return &refs, nil
}

// Dependents returns the documents recorded as importing dep.
func (s *IndexService) Dependents(ctx context.Context, dep domain.CanonicalID) ([]domain.CanonicalID, error) {
	idx, _, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return append([]domain.CanonicalID{}, idx.DependentsOf(dep)...), nil
}

// Runs lists recorded runs, most recent first.
func (s *IndexService) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	runs, err := s.store.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}
