package driving

import (
	"context"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// BundleService runs the bundler over a completed build.
type BundleService interface {
	// Bundle waits for b's index, bundles its files and reports only the
	// files whose content changed.
	Bundle(ctx context.Context, b Build) (*domain.BundleResult, error)
}
