package html

import (
	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

var _ driven.Document = (*document)(nil)

// document is the analysis of one entry document. docs holds the entry
// first, then its html imports in breadth-first order.
type document struct {
	url          string
	docs         []*loadedDoc
	loadWarnings []domain.Warning
}

func (d *document) URL() string {
	return d.url
}

func (d *document) Warnings(imported bool) []domain.Warning {
	var out []domain.Warning
	for _, doc := range d.scope(imported) {
		out = append(out, doc.warnings...)
	}
	for _, w := range d.loadWarnings {
		if imported || w.SourceURL == d.url {
			out = append(out, w)
		}
	}
	return out
}

func (d *document) Features(q domain.FeatureQuery) []domain.Feature {
	if q.Kind != "" && q.Kind != "import" {
		return nil
	}
	var out []domain.Feature
	for _, doc := range d.scope(q.Imported) {
		for _, f := range doc.features {
			if !q.ExternalPackages && f.local && isExternalPackage(f.URL) {
				continue
			}
			out = append(out, f.Feature)
		}
	}
	return out
}

func (d *document) scope(imported bool) []*loadedDoc {
	if imported || len(d.docs) == 0 {
		return d.docs
	}
	return d.docs[:1]
}
