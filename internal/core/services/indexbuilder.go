package services

import (
	"github.com/Polymer/polymer-build/internal/core/domain"
)

// indexBuilder maintains the dependency index and the pending fragment set.
type indexBuilder struct {
	index   *domain.DependencyIndex
	pending map[domain.CanonicalID]bool
}

func newIndexBuilder(fragments []domain.CanonicalID) *indexBuilder {
	b := &indexBuilder{
		index:   domain.NewDependencyIndex(),
		pending: make(map[domain.CanonicalID]bool, len(fragments)),
	}
	for _, f := range fragments {
		b.pending[f] = true
	}
	return b
}

// update records fragment's references and removes it from the pending set.
func (b *indexBuilder) update(fragment domain.CanonicalID, refs domain.ReferenceSet, edges []importEdge) error {
	if !b.pending[fragment] {
		return &domain.OutOfOrderUpdateError{ID: fragment}
	}

	b.index.FragmentToDeps[fragment] = refs
	b.index.FragmentToImports[fragment] = append([]domain.CanonicalID{}, refs.Imports...)
	for _, dep := range refs.Imports {
		b.index.AddDependent(dep, fragment)
	}
	for _, e := range edges {
		b.index.AddDependent(e.dep, e.document)
	}

	delete(b.pending, fragment)
	return nil
}

// remaining returns how many fragments are still pending.
func (b *indexBuilder) remaining() int {
	return len(b.pending)
}
