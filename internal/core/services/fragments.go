package services

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/logger"
)

// importQuery selects a fragment's own references, including those into
// external package directories.
var importQuery = domain.FeatureQuery{Kind: "import", ExternalPackages: true}

// transitiveQuery additionally selects references of imported documents.
var transitiveQuery = domain.FeatureQuery{Kind: "import", ExternalPackages: true, Imported: true}

// importEdge records that document imports dep.
type importEdge struct {
	dep      domain.CanonicalID
	document domain.CanonicalID
}

// analysisResult is the outcome of analyzing one fragment.
type analysisResult struct {
	fragment domain.CanonicalID
	refs     domain.ReferenceSet
	edges    []importEdge
	warnings []domain.Warning
	err      error
}

// fragmentAnalyzer turns analyzer documents into reference sets.
type fragmentAnalyzer struct {
	analyzer driven.Analyzer
	resolver *CanonicalResolver
	filter   domain.WarningFilter
}

// analyze runs the analyzer on fragment and classifies its references.
func (a *fragmentAnalyzer) analyze(ctx context.Context, fragment domain.CanonicalID) analysisResult {
	res := analysisResult{fragment: fragment}

	doc, err := a.analyzer.Analyze(ctx, fragment.String())
	if err != nil {
		res.err = &domain.AnalysisError{ID: fragment, Message: err.Error(), Err: err}
		return res
	}

	for _, w := range doc.Warnings(true) {
		if a.filter.ShouldIgnore(w) {
			continue
		}
		res.warnings = append(res.warnings, w)
	}

	for _, f := range doc.Features(importQuery) {
		id, err := a.resolver.FromURL(f.URL)
		if err != nil {
			logger.Debug("Fragment %s: dropping reference %s: %v", fragment, f.URL, err)
			continue
		}
		res.refs.Add(f.Kind, id)
	}

	for _, f := range doc.Features(transitiveQuery) {
		if f.Kind != domain.FeatureHTMLImport {
			continue
		}
		dep, err := a.resolver.FromURL(f.URL)
		if err != nil {
			continue
		}
		document, err := a.resolver.FromURL(f.Document)
		if err != nil || document == fragment {
			continue
		}
		res.edges = append(res.edges, importEdge{dep: dep, document: document})
	}

	logger.Debug("Analyzed %s: %d imports, %d scripts, %d styles",
		fragment, len(res.refs.Imports), len(res.refs.Scripts), len(res.refs.Styles))
	return res
}

// warningSet accumulates distinct warnings in arrival order.
type warningSet struct {
	seen map[domain.Warning]bool
	list []domain.Warning
}

func newWarningSet() *warningSet {
	return &warningSet{seen: make(map[domain.Warning]bool)}
}

// add merges ws, returning the ones not seen before.
func (s *warningSet) add(ws []domain.Warning) []domain.Warning {
	var fresh []domain.Warning
	for _, w := range ws {
		if s.seen[w] {
			continue
		}
		s.seen[w] = true
		s.list = append(s.list, w)
		fresh = append(fresh, w)
	}
	return fresh
}

func (s *warningSet) all() []domain.Warning {
	return append([]domain.Warning(nil), s.list...)
}
