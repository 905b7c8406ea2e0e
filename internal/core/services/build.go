package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
	"github.com/Polymer/polymer-build/internal/logger"
)

// Ensure BuildOrchestrator implements the interface.
var _ driving.BuildService = (*BuildOrchestrator)(nil)

// watchDebounce is how long Watch waits for a burst of changes to settle.
const watchDebounce = 150 * time.Millisecond

// BuildOrchestrator starts build runs and records their outcome.
type BuildOrchestrator struct {
	connectors driven.ConnectorFactory
	analyzers  driven.AnalyzerFactory
	store      driven.IndexStore

	mu      sync.RWMutex
	current *buildRun
}

// NewBuildOrchestrator creates a new build orchestrator.
// store is optional - if nil, runs are not recorded.
func NewBuildOrchestrator(
	connectors driven.ConnectorFactory,
	analyzers driven.AnalyzerFactory,
	store driven.IndexStore,
) *BuildOrchestrator {
	return &BuildOrchestrator{
		connectors: connectors,
		analyzers:  analyzers,
		store:      store,
	}
}

// Start begins a build run.
func (o *BuildOrchestrator) Start(ctx context.Context, cfg domain.BuildConfig) (driving.Build, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current != nil {
		select {
		case <-o.current.Done():
		default:
			return nil, domain.ErrBuildInProgress
		}
	}

	run, err := o.newRun(ctx, cfg)
	if err != nil {
		return nil, err
	}
	o.current = run

	logger.Info("Starting build %s in %s (%d fragments)", run.id, run.resolver.Root(), len(run.fragments))
	run.start()
	return run, nil
}

func (o *BuildOrchestrator) newRun(ctx context.Context, cfg domain.BuildConfig) (*buildRun, error) {
	if o.connectors == nil {
		return nil, fmt.Errorf("create connector: connector factory not configured")
	}
	if o.analyzers == nil {
		return nil, fmt.Errorf("create analyzer: analyzer factory not configured")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	cfg = cfg.WithDefaults()

	resolver, err := NewCanonicalResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	connector, err := o.connectors.Create(resolver.Root(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create connector: %w", err)
	}
	if err := connector.Validate(ctx); err != nil {
		_ = connector.Close()
		return nil, fmt.Errorf("validate connector: %w", err)
	}

	run, err := newBuildRun(ctx, uuid.NewString(), cfg, resolver, connector, o.analyzers)
	if err != nil {
		_ = connector.Close()
		return nil, err
	}
	return run, nil
}

// Finish waits for b to stop and records its outcome.
// The returned error reports only recording problems; the run's own
// failure is in the record.
func (o *BuildOrchestrator) Finish(ctx context.Context, b driving.Build) (*domain.RunRecord, error) {
	run, ok := b.(*buildRun)
	if !ok {
		return nil, fmt.Errorf("%w: build was not started by this orchestrator", domain.ErrInvalidInput)
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	rec := run.record()
	if rec.Status == domain.RunSucceeded {
		logger.Info("Build %s complete: %d sources, %d dependencies, %d warnings",
			rec.ID, rec.Sources, rec.Dependencies, len(rec.Warnings))
	} else {
		logger.Info("Build %s failed: %s", rec.ID, rec.Error)
	}

	if o.store == nil {
		return &rec, nil
	}
	var idx *domain.DependencyIndex
	if run.err == nil {
		idx = run.index
	}
	if err := o.store.SaveRun(ctx, rec, idx); err != nil {
		return &rec, fmt.Errorf("save run: %w", err)
	}
	return &rec, nil
}

// Watch runs a build, then reruns it whenever a declared source changes.
func (o *BuildOrchestrator) Watch(
	ctx context.Context,
	cfg domain.BuildConfig,
	handle func(context.Context, driving.Build) error,
) error {
	if o.connectors == nil {
		return fmt.Errorf("create connector: connector factory not configured")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	cfg = cfg.WithDefaults()
	resolver, err := NewCanonicalResolver(cfg.Root)
	if err != nil {
		return err
	}

	watcher, err := o.connectors.Create(resolver.Root(), cfg)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}

	for {
		b, err := o.Start(ctx, cfg)
		if err != nil {
			return err
		}
		handleErr := handle(ctx, b)
		if _, err := o.Finish(ctx, b); err != nil && ctx.Err() == nil {
			logger.Warn("Record build %s: %v", b.ID(), err)
		}
		if handleErr != nil {
			return handleErr
		}

		if err := waitForChange(ctx, changes, resolver, watcher); err != nil {
			return err
		}
	}
}

// waitForChange blocks until a declared source changes, then lets the
// burst of related events settle.
func waitForChange(
	ctx context.Context,
	changes <-chan domain.FileChange,
	resolver *CanonicalResolver,
	classifier driven.SourceClassifier,
) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return fmt.Errorf("watch: change stream closed")
			}
			id, err := resolver.Resolve(change.Path)
			if err != nil || !classifier.IsSource(id) {
				continue
			}
			logger.Info("Change detected: %s %s", change.Type, id)
			return debounce(ctx, changes)
		}
	}
}

func debounce(ctx context.Context, changes <-chan domain.FileChange) error {
	timer := time.NewTimer(watchDebounce)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			timer.Reset(watchDebounce)
		}
	}
}

// Status returns the state of the current or last build.
func (o *BuildOrchestrator) Status(ctx context.Context) (*domain.BuildStatus, error) {
	o.mu.RLock()
	run := o.current
	o.mu.RUnlock()

	if run == nil {
		return &domain.BuildStatus{}, nil
	}
	s, err := run.query(ctx, false)
	if err != nil {
		return nil, err
	}
	return &s.status, nil
}
