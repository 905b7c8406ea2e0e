package mcp

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	index *domain.DependencyIndex
	run   *domain.RunRecord
	runs  []domain.RunRecord
	err   error
}

func (m *mockIndexService) Latest(_ context.Context) (*domain.DependencyIndex, *domain.RunRecord, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.index == nil {
		return nil, nil, domain.ErrNotFound
	}
	return m.index, m.run, nil
}

func (m *mockIndexService) Fragments(ctx context.Context) ([]domain.CanonicalID, error) {
	idx, _, err := m.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return idx.Fragments(), nil
}

func (m *mockIndexService) Imports(ctx context.Context, fragment domain.CanonicalID) (*domain.ReferenceSet, error) {
	idx, _, err := m.Latest(ctx)
	if err != nil {
		return nil, err
	}
	refs, ok := idx.FragmentToDeps[fragment]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &refs, nil
}

func (m *mockIndexService) Dependents(ctx context.Context, dep domain.CanonicalID) ([]domain.CanonicalID, error) {
	idx, _, err := m.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return idx.DependentsOf(dep), nil
}

func (m *mockIndexService) Runs(_ context.Context, _ int) ([]domain.RunRecord, error) {
	return m.runs, m.err
}

// newTestIndex returns app.html importing a.html, which imports b.html.
func newTestIndex() *mockIndexService {
	idx := domain.NewDependencyIndex()
	idx.FragmentToDeps["app.html"] = domain.ReferenceSet{
		Imports: []domain.CanonicalID{"a.html"},
		Scripts: []domain.CanonicalID{"app.js"},
	}
	idx.FragmentToImports["app.html"] = []domain.CanonicalID{"a.html"}
	idx.AddDependent("a.html", "app.html")
	idx.AddDependent("b.html", "a.html")
	return &mockIndexService{
		index: idx,
		run:   &domain.RunRecord{ID: "run-1", Status: domain.RunSucceeded},
	}
}
