package memory

import (
	"context"
	"sync"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

// IndexStore is an in-memory implementation of driven.IndexStore.
// Runs are kept newest first.
type IndexStore struct {
	mu      sync.RWMutex
	runs    []domain.RunRecord
	indexes map[string]*domain.DependencyIndex
}

// NewIndexStore creates a new in-memory index store.
func NewIndexStore() *IndexStore {
	return &IndexStore{
		indexes: make(map[string]*domain.DependencyIndex),
	}
}

// SaveRun stores or replaces a run and its index.
func (s *IndexStore) SaveRun(_ context.Context, run domain.RunRecord, idx *domain.DependencyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.Warnings = append([]domain.Warning(nil), run.Warnings...)
	for i, existing := range s.runs {
		if existing.ID == run.ID {
			s.runs = append(s.runs[:i], s.runs[i+1:]...)
			break
		}
	}
	s.runs = append([]domain.RunRecord{run}, s.runs...)

	if idx != nil {
		s.indexes[run.ID] = idx.Clone()
	} else {
		delete(s.indexes, run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *IndexStore) GetRun(_ context.Context, id string) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *IndexStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	return append([]domain.RunRecord(nil), s.runs[:limit]...), nil
}

// LatestIndex returns the index of the newest run that has one.
func (s *IndexStore) LatestIndex(_ context.Context) (*domain.DependencyIndex, *domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if idx, ok := s.indexes[r.ID]; ok && r.Status == domain.RunSucceeded {
			return idx.Clone(), &r, nil
		}
	}
	return nil, nil, domain.ErrNotFound
}

// GetIndex returns the index stored for a run.
func (s *IndexStore) GetIndex(_ context.Context, runID string) (*domain.DependencyIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return idx.Clone(), nil
}
