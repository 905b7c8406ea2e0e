package domain

import "sort"

// DependencyIndex is the completed dependency graph of a build.
type DependencyIndex struct {
	// FragmentToDeps holds the full reference set of every fragment.
	FragmentToDeps map[CanonicalID]ReferenceSet

	// FragmentToImports holds only the html-import list of every fragment.
	FragmentToImports map[CanonicalID][]CanonicalID

	// DepsToFragments maps an imported file to the documents that import it.
	DepsToFragments map[CanonicalID][]CanonicalID
}

// NewDependencyIndex creates an empty index.
func NewDependencyIndex() *DependencyIndex {
	return &DependencyIndex{
		FragmentToDeps:    make(map[CanonicalID]ReferenceSet),
		FragmentToImports: make(map[CanonicalID][]CanonicalID),
		DepsToFragments:   make(map[CanonicalID][]CanonicalID),
	}
}

// Fragments returns the analyzed fragments in lexical order.
func (idx *DependencyIndex) Fragments() []CanonicalID {
	out := make([]CanonicalID, 0, len(idx.FragmentToDeps))
	for id := range idx.FragmentToDeps {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ImportsOf returns the html-imports recorded for a fragment.
func (idx *DependencyIndex) ImportsOf(fragment CanonicalID) ([]CanonicalID, bool) {
	imports, ok := idx.FragmentToImports[fragment]
	return imports, ok
}

// DependentsOf returns the documents recorded as importing dep.
func (idx *DependencyIndex) DependentsOf(dep CanonicalID) []CanonicalID {
	return idx.DepsToFragments[dep]
}

// AddDependent records that document imports dep, ignoring repeats.
func (idx *DependencyIndex) AddDependent(dep, document CanonicalID) {
	for _, existing := range idx.DepsToFragments[dep] {
		if existing == document {
			return
		}
	}
	idx.DepsToFragments[dep] = append(idx.DepsToFragments[dep], document)
}

// Clone returns a deep copy of the index.
func (idx *DependencyIndex) Clone() *DependencyIndex {
	out := NewDependencyIndex()
	for k, v := range idx.FragmentToDeps {
		out.FragmentToDeps[k] = ReferenceSet{
			Imports: append([]CanonicalID(nil), v.Imports...),
			Scripts: append([]CanonicalID(nil), v.Scripts...),
			Styles:  append([]CanonicalID(nil), v.Styles...),
		}
	}
	for k, v := range idx.FragmentToImports {
		out.FragmentToImports[k] = append([]CanonicalID(nil), v...)
	}
	for k, v := range idx.DepsToFragments {
		out.DepsToFragments[k] = append([]CanonicalID(nil), v...)
	}
	return out
}
