package domain

// Bundle is one output document produced by the bundler.
type Bundle struct {
	// ID is the canonical id the bundle is written to.
	ID CanonicalID

	// Fragments lists the entry documents served by this bundle.
	Fragments []CanonicalID

	// Files lists the inputs whose content was merged into the bundle.
	Files []CanonicalID
}

// BundleManifest describes how inputs were grouped into bundles.
type BundleManifest struct {
	Bundles []Bundle
}

// BundleFor returns the bundle containing file, if any.
func (m *BundleManifest) BundleFor(file CanonicalID) (Bundle, bool) {
	if m == nil {
		return Bundle{}, false
	}
	for _, b := range m.Bundles {
		for _, f := range b.Files {
			if f == file {
				return b, true
			}
		}
	}
	return Bundle{}, false
}

// BundleResult is the outcome of a bundle step.
type BundleResult struct {
	Manifest *BundleManifest

	// Changed holds files whose content differs from the initial snapshot,
	// sorted by id.
	Changed []File

	// Evicted holds ids absorbed into a merged bundle.
	Evicted []CanonicalID
}
