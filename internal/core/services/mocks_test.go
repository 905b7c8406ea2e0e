package services

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

// mockConnector serves an in-memory tree. Sources are enumerated in order;
// deps are only reachable through ReadFile.
type mockConnector struct {
	root string

	order   []string
	sources map[string]string
	deps    map[string]string

	// declared lists source paths that match the globs but are never
	// enumerated.
	declared map[string]bool

	// delay, when set, blocks enumeration before the first file.
	delay chan struct{}

	// hold, when set, keeps enumeration open until closed.
	hold    chan struct{}
	enumErr error

	mu     sync.Mutex
	reads  map[string]int
	closed bool
}

func newMockConnector() *mockConnector {
	return &mockConnector{
		sources:  make(map[string]string),
		deps:     make(map[string]string),
		declared: make(map[string]bool),
		reads:    make(map[string]int),
	}
}

func (c *mockConnector) source(path, contents string) *mockConnector {
	c.order = append(c.order, path)
	c.sources[path] = contents
	return c
}

func (c *mockConnector) dep(path, contents string) *mockConnector {
	c.deps[path] = contents
	return c
}

func (c *mockConnector) Enumerate(ctx context.Context) (<-chan domain.RawFile, <-chan error) {
	files := make(chan domain.RawFile, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(errs)
		defer close(files)
		if c.delay != nil {
			select {
			case <-c.delay:
			case <-ctx.Done():
				return
			}
		}
		for _, p := range c.order {
			raw := domain.RawFile{
				Path:     filepath.Join(c.root, filepath.FromSlash(p)),
				Contents: []byte(c.sources[p]),
			}
			select {
			case files <- raw:
			case <-ctx.Done():
				return
			}
		}
		if c.hold != nil {
			select {
			case <-c.hold:
			case <-ctx.Done():
				return
			}
		}
		if c.enumErr != nil {
			errs <- c.enumErr
		}
	}()
	return files, errs
}

func (c *mockConnector) ReadFile(_ context.Context, path string) ([]byte, error) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return nil, err
	}
	rel = filepath.ToSlash(rel)

	c.mu.Lock()
	c.reads[rel]++
	c.mu.Unlock()

	contents, ok := c.deps[rel]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", rel, fs.ErrNotExist)
	}
	return []byte(contents), nil
}

func (c *mockConnector) readCount(rel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[rel]
}

func (c *mockConnector) IsSource(id domain.CanonicalID) bool {
	_, ok := c.sources[id.Path()]
	return ok || c.declared[id.Path()]
}

func (c *mockConnector) Watch(ctx context.Context) (<-chan domain.FileChange, error) {
	ch := make(chan domain.FileChange)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (c *mockConnector) Root() string { return c.root }
func (c *mockConnector) Validate(_ context.Context) error { return nil }

func (c *mockConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConnector) factory() driven.ConnectorFactory {
	return driven.ConnectorFactoryFunc(func(root string, _ domain.BuildConfig) (driven.SourceConnector, error) {
		c.root = root
		return c, nil
	})
}

// mockDoc describes one document for mockAnalyzer. References are
// root-relative URLs.
type mockDoc struct {
	imports  []string
	scripts  []string
	styles   []string
	warnings []domain.Warning
	err      error

	// wait, when set, blocks analysis of the document's references.
	wait chan struct{}
}

// mockAnalyzerFactory builds analyzers that load every reference through
// the run's loader and follow html imports recursively.
type mockAnalyzerFactory struct {
	docs map[string]mockDoc
}

func (f *mockAnalyzerFactory) NewAnalyzer(loader driven.ContentLoader) driven.Analyzer {
	return &mockAnalyzer{docs: f.docs, loader: loader}
}

type mockAnalyzer struct {
	docs   map[string]mockDoc
	loader driven.ContentLoader
	flight singleflight.Group
}

func (a *mockAnalyzer) load(ctx context.Context, url string) error {
	_, err, _ := a.flight.Do(url, func() (interface{}, error) {
		return a.loader.Load(ctx, url)
	})
	return err
}

func (a *mockAnalyzer) Analyze(ctx context.Context, url string) (driven.Document, error) {
	doc := &mockDocument{url: url}
	if err := a.analyze(ctx, url, doc, false, map[string]bool{}); err != nil {
		return nil, err
	}
	return doc, nil
}

func (a *mockAnalyzer) analyze(ctx context.Context, url string, out *mockDocument, imported bool, seen map[string]bool) error {
	if seen[url] {
		return nil
	}
	seen[url] = true

	if err := a.load(ctx, url); err != nil {
		return err
	}
	d := a.docs[url]
	if d.err != nil {
		return d.err
	}
	if d.wait != nil {
		select {
		case <-d.wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	for _, w := range d.warnings {
		out.warnings = append(out.warnings, mockWarning{w: w, imported: imported})
	}

	add := func(kind domain.FeatureKind, refs []string) error {
		for _, ref := range refs {
			out.features = append(out.features, mockFeature{
				f:        domain.Feature{URL: ref, Kind: kind, Document: url},
				imported: imported,
			})
			if err := a.load(ctx, ref); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(domain.FeatureHTMLImport, d.imports); err != nil {
		return err
	}
	if err := add(domain.FeatureHTMLScript, d.scripts); err != nil {
		return err
	}
	if err := add(domain.FeatureHTMLStyle, d.styles); err != nil {
		return err
	}

	for _, ref := range d.imports {
		if err := a.analyze(ctx, ref, out, true, seen); err != nil {
			return err
		}
	}
	return nil
}

type mockFeature struct {
	f        domain.Feature
	imported bool
}

type mockWarning struct {
	w        domain.Warning
	imported bool
}

type mockDocument struct {
	url      string
	features []mockFeature
	warnings []mockWarning
}

func (d *mockDocument) URL() string { return d.url }

func (d *mockDocument) Warnings(imported bool) []domain.Warning {
	var out []domain.Warning
	for _, w := range d.warnings {
		if w.imported && !imported {
			continue
		}
		out = append(out, w.w)
	}
	return out
}

func (d *mockDocument) Features(q domain.FeatureQuery) []domain.Feature {
	var out []domain.Feature
	for _, f := range d.features {
		if f.imported && !q.Imported {
			continue
		}
		out = append(out, f.f)
	}
	return out
}

// mockIndexStore is an in-memory IndexStore.
type mockIndexStore struct {
	mu      sync.Mutex
	runs    []domain.RunRecord
	indexes map[string]*domain.DependencyIndex
	saveErr error
}

func newMockIndexStore() *mockIndexStore {
	return &mockIndexStore{indexes: make(map[string]*domain.DependencyIndex)}
}

func (s *mockIndexStore) SaveRun(_ context.Context, run domain.RunRecord, idx *domain.DependencyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.runs = append([]domain.RunRecord{run}, s.runs...)
	if idx != nil {
		s.indexes[run.ID] = idx.Clone()
	}
	return nil
}

func (s *mockIndexStore) GetRun(_ context.Context, id string) (*domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *mockIndexStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	return append([]domain.RunRecord(nil), s.runs[:limit]...), nil
}

func (s *mockIndexStore) LatestIndex(_ context.Context) (*domain.DependencyIndex, *domain.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if idx, ok := s.indexes[r.ID]; ok {
			return idx.Clone(), &r, nil
		}
	}
	return nil, nil, domain.ErrNotFound
}

func (s *mockIndexStore) GetIndex(_ context.Context, runID string) (*domain.DependencyIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.indexes[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return idx.Clone(), nil
}

const testTimeout = 5 * time.Second

// drain collects a stream, failing the test if it does not finish.
func drain(t *testing.T, stream func() (<-chan domain.File, <-chan error)) ([]domain.CanonicalID, error) {
	t.Helper()
	files, errs := stream()
	var ids []domain.CanonicalID
	timeout := time.After(testTimeout)
	for files != nil {
		select {
		case f, ok := <-files:
			if !ok {
				files = nil
				continue
			}
			ids = append(ids, f.ID)
		case <-timeout:
			t.Error("timed out draining file stream")
			return ids, context.DeadlineExceeded
		}
	}
	select {
	case err := <-errs:
		return ids, err
	case <-timeout:
		t.Error("timed out waiting for stream result")
	}
	return ids, context.DeadlineExceeded
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}
