package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/core/ports/driving"
	"github.com/Polymer/polymer-build/internal/logger"
)

// Ensure buildRun implements the interface.
var _ driving.Build = (*buildRun)(nil)

// loadRequest asks the coordinator for the contents of id.
type loadRequest struct {
	id    domain.CanonicalID
	reply chan loadReply
}

// addRequest inserts generated content.
type addRequest struct {
	file  domain.File
	reply chan error
}

// snapshotRequest asks the coordinator for a view of the run.
type snapshotRequest struct {
	files bool
	reply chan runSnapshot
}

type runSnapshot struct {
	status   domain.BuildStatus
	warnings []domain.Warning
	files    []domain.File
}

// buildRun is a single dependency analysis. All mutable state below the
// "owned by loop" marker is touched only by the loop goroutine, or by
// readers after done is closed.
type buildRun struct {
	id        string
	cfg       domain.BuildConfig
	resolver  *CanonicalResolver
	connector driven.SourceConnector
	fragments []domain.CanonicalID
	analyzer  *fragmentAnalyzer
	requestor *dependencyRequestor

	ctx    context.Context
	cancel context.CancelFunc

	loadCh     chan loadRequest
	addCh      chan addRequest
	fetchCh    chan fetchResult
	analysisCh chan analysisResult
	snapshotCh chan snapshotRequest

	sources *fileStream
	deps    *fileStream

	settled chan struct{}
	done    chan struct{}

	// owned by loop
	table          *loadTable
	builder        *indexBuilder
	gate           completionGate
	warnings       *warningSet
	enumDone       bool
	sourcesEmitted int
	depsEmitted    int
	err            error
	index          *domain.DependencyIndex
	startedAt      time.Time
	finishedAt     time.Time
}

// newBuildRun prepares a run. Fragment paths that escape the root fail here.
func newBuildRun(
	ctx context.Context,
	id string,
	cfg domain.BuildConfig,
	resolver *CanonicalResolver,
	connector driven.SourceConnector,
	analyzers driven.AnalyzerFactory,
) (*buildRun, error) {
	fragments := make([]domain.CanonicalID, 0, len(cfg.Fragments))
	seen := make(map[domain.CanonicalID]bool, len(cfg.Fragments))
	for _, f := range cfg.Fragments {
		fid, err := resolver.Resolve(f)
		if err != nil {
			return nil, fmt.Errorf("resolve fragment: %w", err)
		}
		if seen[fid] {
			continue
		}
		seen[fid] = true
		fragments = append(fragments, fid)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &buildRun{
		id:         id,
		cfg:        cfg,
		resolver:   resolver,
		connector:  connector,
		fragments:  fragments,
		requestor:  newDependencyRequestor(connector, cfg.ReadsPerSecond),
		ctx:        runCtx,
		cancel:     cancel,
		loadCh:     make(chan loadRequest),
		addCh:      make(chan addRequest),
		fetchCh:    make(chan fetchResult),
		analysisCh: make(chan analysisResult),
		snapshotCh: make(chan snapshotRequest),
		sources:    newFileStream(),
		deps:       newFileStream(),
		settled:    make(chan struct{}),
		done:       make(chan struct{}),
		table:      newLoadTable(),
		builder:    newIndexBuilder(fragments),
		warnings:   newWarningSet(),
	}
	r.analyzer = &fragmentAnalyzer{
		analyzer: analyzers.NewAnalyzer(&runLoader{run: r}),
		resolver: resolver,
		filter:   cfg.Lint.Filter(),
	}
	return r, nil
}

// start launches the enumerator, the requestor, the fragment workers and
// the coordinator.
func (r *buildRun) start() {
	r.startedAt = time.Now()
	raw, enumErrs := r.connector.Enumerate(r.ctx)
	go r.requestor.run(r.ctx, r.fetchCh)
	go r.dispatchFragments()
	go r.loop(raw, enumErrs)
}

// dispatchFragments analyzes every fragment on a bounded worker group.
func (r *buildRun) dispatchFragments() {
	g, ctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.cfg.Concurrency)
	for _, fragment := range r.fragments {
		g.Go(func() error {
			res := r.analyzer.analyze(ctx, fragment)
			select {
			case r.analysisCh <- res:
			case <-r.done:
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (r *buildRun) loop(raw <-chan domain.RawFile, enumErrs <-chan error) {
	defer r.shutdown()

	logger.Section("Build " + r.id)
	r.checkGate()

	for !r.finished() {
		select {
		case f, ok := <-raw:
			if !ok {
				raw = nil
				if enumErrs == nil {
					r.handleEnumerationEnd()
				}
				continue
			}
			r.handleRaw(f)

		case err, ok := <-enumErrs:
			if !ok {
				enumErrs = nil
				if raw == nil {
					r.handleEnumerationEnd()
				}
				continue
			}
			if err != nil {
				r.fail(fmt.Errorf("enumerate sources: %w", err))
			}

		case req := <-r.loadCh:
			r.handleLoad(req)

		case req := <-r.addCh:
			r.handleAdd(req)

		case res := <-r.fetchCh:
			r.handleFetch(res)

		case res := <-r.analysisCh:
			r.handleAnalysis(res)

		case req := <-r.snapshotCh:
			req.reply <- r.snapshot(req.files, true)

		case <-r.ctx.Done():
			err := r.ctx.Err()
			r.fail(err)
			r.sources.settle(err)
			return
		}
	}
}

// finished reports whether the loop can stop: the run failed, or it
// succeeded and enumeration is over.
func (r *buildRun) finished() bool {
	switch r.gate.state {
	case gateFailed:
		return true
	case gateSucceeded:
		return r.enumDone
	default:
		return false
	}
}

func (r *buildRun) handleRaw(raw domain.RawFile) {
	id, err := r.resolver.Resolve(raw.Path)
	if err != nil {
		r.fail(err)
		return
	}
	file := domain.File{ID: id, Contents: raw.Contents}
	// A declared source already added through AddFile keeps the generated
	// content and is not emitted on the source sequence.
	if !r.table.insert(file) {
		logger.Warn("Skipping source %s: already added as a generated file", id)
		return
	}
	if r.sources.push(file.Clone()) {
		r.sourcesEmitted++
	}
}

func (r *buildRun) handleEnumerationEnd() {
	r.enumDone = true
	r.sources.end()
	logger.Debug("Enumeration finished: %d sources", r.sourcesEmitted)

	var errs []error
	for _, id := range r.table.pending(true) {
		err := &domain.FileNotFoundError{ID: id, Reason: "not among the enumerated sources"}
		r.table.reject(id, err)
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		r.fail(errors.Join(errs...))
		return
	}
	if r.gate.state == gateSucceeded {
		r.sources.settle(nil)
	}
}

func (r *buildRun) handleLoad(req loadRequest) {
	if f, ok := r.table.get(req.id); ok {
		req.reply <- loadReply{contents: f.Contents}
		return
	}

	source := r.connector.IsSource(req.id)
	if err := r.table.register(req.id, req.reply, source); err != nil {
		req.reply <- loadReply{err: err}
		r.fail(err)
		return
	}

	if source {
		if r.enumDone {
			err := &domain.FileNotFoundError{ID: req.id, Reason: "not among the enumerated sources"}
			r.table.reject(req.id, err)
			r.fail(err)
		}
		return
	}

	logger.Debug("Requesting dependency: %s", req.id)
	r.requestor.request(req.id, r.resolver.ToPath(req.id))
}

func (r *buildRun) handleFetch(res fetchResult) {
	if res.err != nil {
		err := &domain.FileNotFoundError{ID: res.id, Reason: res.err.Error()}
		r.table.reject(res.id, err)
		r.fail(err)
		return
	}
	file := domain.File{ID: res.id, Contents: res.contents}
	if !r.table.insert(file) {
		return
	}
	if r.deps.push(file.Clone()) {
		r.depsEmitted++
	}
}

func (r *buildRun) handleAdd(req addRequest) {
	r.table.overwrite(req.file)
	logger.Debug("Added generated file: %s", req.file.ID)
	req.reply <- nil
}

func (r *buildRun) handleAnalysis(res analysisResult) {
	if res.err != nil {
		r.fail(res.err)
		return
	}
	for _, w := range r.warnings.add(res.warnings) {
		logger.Warn("%s", w)
	}
	if err := r.builder.update(res.fragment, res.refs, res.edges); err != nil {
		r.fail(err)
		return
	}
	r.checkGate()
}

// checkGate fires the completion gate once no fragments are pending.
func (r *buildRun) checkGate() {
	fired, err := r.gate.evaluate(r.builder.remaining(), r.warnings.list, r.table.pending(false))
	if fired {
		r.finish(err)
	}
}

// fail ends the run with err. Errors after success are only logged.
func (r *buildRun) fail(err error) {
	if r.gate.state == gateSucceeded {
		logger.Warn("Build %s: %v", r.id, err)
		return
	}
	if r.gate.state == gateFailed {
		return
	}
	r.gate.abort()
	r.finish(err)
}

// finish settles the run. It runs exactly once, when the gate fires or the
// run fails.
func (r *buildRun) finish(err error) {
	r.finishedAt = time.Now()

	if err != nil {
		r.err = err
		logger.Debug("Build %s failed: %v", r.id, err)
		r.sources.settle(err)
		r.deps.settle(err)
		for _, id := range r.table.pending(false) {
			r.table.reject(id, err)
		}
		close(r.settled)
		return
	}

	r.index = r.builder.index
	logger.Debug("Build %s: all %d fragments analyzed", r.id, len(r.fragments))
	r.deps.end()
	r.deps.settle(nil)
	if r.enumDone {
		r.sources.settle(nil)
	}
	close(r.settled)
}

func (r *buildRun) shutdown() {
	r.cancel()
	for _, id := range r.table.pending(false) {
		r.table.reject(id, domain.ErrRunFinished)
	}
	if !r.gate.fired() {
		r.gate.abort()
		r.finish(domain.ErrRunFinished)
	}
	r.sources.settle(domain.ErrRunFinished)
	if err := r.connector.Close(); err != nil {
		logger.Debug("Close connector: %v", err)
	}
	close(r.done)
}

func (r *buildRun) snapshot(withFiles, running bool) runSnapshot {
	s := runSnapshot{
		status: domain.BuildStatus{
			RunID:              r.id,
			Running:            running,
			SourcesEmitted:     r.sourcesEmitted,
			DependenciesLoaded: r.depsEmitted,
			FragmentsPending:   r.builder.remaining(),
			Warnings:           domain.TallyWarnings(r.warnings.list),
		},
		warnings: r.warnings.all(),
	}
	if r.err != nil {
		s.status.LastError = r.err.Error()
	}
	if withFiles {
		s.files = r.table.files()
	}
	return s
}

// query returns a snapshot from the loop, or the final state once the loop
// has stopped.
func (r *buildRun) query(ctx context.Context, withFiles bool) (runSnapshot, error) {
	reply := make(chan runSnapshot, 1)
	select {
	case r.snapshotCh <- snapshotRequest{files: withFiles, reply: reply}:
	case <-r.done:
		return r.snapshot(withFiles, false), nil
	case <-ctx.Done():
		return runSnapshot{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return runSnapshot{}, ctx.Err()
	}
}

// load sends a request to the loop and waits for its reply. The loop
// replies to every request it accepts.
func (r *buildRun) load(ctx context.Context, id domain.CanonicalID) ([]byte, error) {
	reply := make(chan loadReply, 1)
	select {
	case r.loadCh <- loadRequest{id: id, reply: reply}:
	case <-r.done:
		return nil, r.doneErr()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.contents, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *buildRun) doneErr() error {
	if r.err != nil {
		return r.err
	}
	return domain.ErrRunFinished
}

// record summarises a stopped run.
func (r *buildRun) record() domain.RunRecord {
	rec := domain.RunRecord{
		ID:           r.id,
		Root:         r.resolver.Root(),
		Status:       domain.RunSucceeded,
		StartedAt:    r.startedAt,
		FinishedAt:   r.finishedAt,
		Sources:      r.sourcesEmitted,
		Dependencies: r.depsEmitted,
		Warnings:     r.warnings.all(),
	}
	if r.err != nil {
		rec.Status = domain.RunFailed
		rec.Error = r.err.Error()
	}
	return rec
}

// ID returns the run identifier.
func (r *buildRun) ID() string {
	return r.id
}

// Sources streams declared sources.
func (r *buildRun) Sources() (<-chan domain.File, <-chan error) {
	return r.sources.channels()
}

// Dependencies streams demand-loaded dependencies.
func (r *buildRun) Dependencies() (<-chan domain.File, <-chan error) {
	return r.deps.channels()
}

// Index waits for the completion gate.
func (r *buildRun) Index(ctx context.Context) (*domain.DependencyIndex, error) {
	select {
	case <-r.settled:
		if r.err != nil {
			return nil, r.err
		}
		return r.index.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Load returns a copy of id's contents, demand-loading it if needed.
func (r *buildRun) Load(ctx context.Context, id domain.CanonicalID) ([]byte, error) {
	contents, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(contents), nil
}

// AddFile inserts generated content, resolving a pending request for it.
func (r *buildRun) AddFile(ctx context.Context, file domain.File) error {
	if file.ID == "" {
		return fmt.Errorf("%w: file id is required", domain.ErrInvalidInput)
	}
	reply := make(chan error, 1)
	select {
	case r.addCh <- addRequest{file: file.Clone(), reply: reply}:
	case <-r.done:
		return r.doneErr()
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Files returns a snapshot of the file store.
func (r *buildRun) Files(ctx context.Context) ([]domain.File, error) {
	s, err := r.query(ctx, true)
	if err != nil {
		return nil, err
	}
	return s.files, nil
}

// Warnings returns the warnings collected so far.
func (r *buildRun) Warnings(ctx context.Context) ([]domain.Warning, error) {
	s, err := r.query(ctx, false)
	if err != nil {
		return nil, err
	}
	return s.warnings, nil
}

// Done is closed once the run has stopped.
func (r *buildRun) Done() <-chan struct{} {
	return r.done
}

// Err returns the run's failure once Done is closed.
func (r *buildRun) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// runLoader is the analyzer's view of the demand loader.
type runLoader struct {
	run *buildRun
}

// Load canonicalizes url and loads it through the run.
func (l *runLoader) Load(ctx context.Context, url string) ([]byte, error) {
	id, err := l.run.resolver.FromURL(url)
	if err != nil {
		return nil, err
	}
	return l.run.load(ctx, id)
}
