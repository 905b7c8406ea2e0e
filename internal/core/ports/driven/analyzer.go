package driven

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// ContentLoader serves file contents to the analyzer.
// URLs are root-relative; the build core maps them to canonical ids.
// Loads of the same URL must not overlap: a second request while the
// first is outstanding fails with domain.ErrDuplicateRequest.
type ContentLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// Document is the analyzed form of one document and its imports.
type Document interface {
	// URL returns the root-relative URL the document was analyzed at.
	URL() string

	// Warnings returns diagnostics for the document. With imported set,
	// diagnostics of transitively imported documents are included.
	Warnings(imported bool) []domain.Warning

	// Features returns the references matching q, in document order.
	Features(q domain.FeatureQuery) []domain.Feature
}

// Analyzer parses documents and resolves their references.
// It requests every file it needs through its ContentLoader.
type Analyzer interface {
	Analyze(ctx context.Context, url string) (Document, error)
}

// AnalyzerFactory creates an analyzer bound to a run's loader.
type AnalyzerFactory interface {
	NewAnalyzer(loader ContentLoader) Analyzer
}
