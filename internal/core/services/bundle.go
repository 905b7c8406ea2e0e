package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
)

// Ensure BundleService implements the interface.
var _ driving.BundleService = (*BundleService)(nil)

// BundleService runs a bundler over a completed build and reports what
// changed relative to the build's file store.
type BundleService struct {
	bundler driven.Bundler
}

// NewBundleService creates a new bundle service.
func NewBundleService(bundler driven.Bundler) *BundleService {
	return &BundleService{bundler: bundler}
}

// Bundle waits for b's index and bundles its files.
func (s *BundleService) Bundle(ctx context.Context, b driving.Build) (*domain.BundleResult, error) {
	if s.bundler == nil {
		return nil, fmt.Errorf("bundle: bundler not configured")
	}

	idx, err := b.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	files, err := b.Files(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	manifest, merged, err := s.bundler.Bundle(ctx, files, idx)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}
	return diffBundle(files, manifest, merged), nil
}

// diffBundle applies merged content to a copy of the initial snapshot and
// keeps only the entries whose content differs from it.
func diffBundle(initial []domain.File, manifest *domain.BundleManifest, merged map[domain.CanonicalID][]byte) *domain.BundleResult {
	snapshot := make(map[domain.CanonicalID][]byte, len(initial))
	working := make(map[domain.CanonicalID][]byte, len(initial)+len(merged))
	for _, f := range initial {
		snapshot[f.ID] = f.Contents
		working[f.ID] = f.Contents
	}
	for id, contents := range merged {
		working[id] = contents
	}

	res := &domain.BundleResult{Manifest: manifest}
	if manifest != nil {
		evicted := make(map[domain.CanonicalID]bool)
		for _, b := range manifest.Bundles {
			for _, f := range b.Files {
				if f == b.ID || evicted[f] {
					continue
				}
				if _, ok := working[f]; ok {
					delete(working, f)
					evicted[f] = true
					res.Evicted = append(res.Evicted, f)
				}
			}
		}
		sort.Slice(res.Evicted, func(i, j int) bool { return res.Evicted[i] < res.Evicted[j] })
	}

	for id, contents := range working {
		if orig, ok := snapshot[id]; ok && bytes.Equal(orig, contents) {
			continue
		}
		res.Changed = append(res.Changed, domain.File{ID: id, Contents: contents})
	}
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i].ID < res.Changed[j].ID })
	return res
}
