// Package html analyzes HTML documents for import, script and stylesheet
// references using tree-sitter.
package html

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
	"github.com/Polymer/polymer-build/internal/logger"
)

// DefaultCacheSize is the number of parsed documents kept across runs.
const DefaultCacheSize = 512

// Warning codes reported by the analyzer.
const (
	CodeParseError     = "parse-error"
	CodeEmptyReference = "empty-reference"
	CodeCouldNotLoad   = "could-not-load"
)

// Ensure the factory and analyzer implement the ports.
var (
	_ driven.AnalyzerFactory = (*Factory)(nil)
	_ driven.Analyzer        = (*Analyzer)(nil)
)

// Factory creates analyzers that share one parse cache.
type Factory struct {
	cache *lru.Cache[[sha256.Size]byte, *parsedHTML]
}

// NewFactory creates a factory whose cache holds up to size parsed documents.
func NewFactory(size int) (*Factory, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[sha256.Size]byte, *parsedHTML](size)
	if err != nil {
		return nil, fmt.Errorf("create parse cache: %w", err)
	}
	return &Factory{cache: cache}, nil
}

// NewAnalyzer returns an analyzer reading through loader.
func (f *Factory) NewAnalyzer(loader driven.ContentLoader) driven.Analyzer {
	return &Analyzer{
		loader: loader,
		cache:  f.cache,
		docs:   make(map[string]*loadedDoc),
	}
}

// CacheLen returns the number of cached parse results.
func (f *Factory) CacheLen() int {
	return f.cache.Len()
}

// loadedDoc is a document loaded once per analyzer.
type loadedDoc struct {
	key      string
	html     bool
	features []feature
	warnings []domain.Warning
	err      error
}

// feature is a reference plus whether it names a file inside the root.
type feature struct {
	domain.Feature
	local bool
}

// Analyzer loads documents through a ContentLoader and follows html imports.
// Each URL is loaded at most once, and never concurrently.
type Analyzer struct {
	loader driven.ContentLoader
	cache  *lru.Cache[[sha256.Size]byte, *parsedHTML]
	group  singleflight.Group

	mu   sync.Mutex
	docs map[string]*loadedDoc
}

// Analyze loads url and every local document, script and stylesheet it
// transitively references.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) (driven.Document, error) {
	key, err := normalize(rawURL)
	if err != nil {
		return nil, err
	}

	root := a.load(ctx, key, true)
	if root.err != nil {
		return nil, fmt.Errorf("load %s: %w", key, root.err)
	}

	doc := &document{url: key}
	visited := map[string]bool{key: true}
	queue := []*loadedDoc{root}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := queue[0]
		queue = queue[1:]
		doc.docs = append(doc.docs, current)

		for _, f := range current.features {
			if !f.local || visited[f.URL] {
				continue
			}
			visited[f.URL] = true

			child := a.load(ctx, f.URL, f.Kind == domain.FeatureHTMLImport)
			if child.err != nil {
				doc.loadWarnings = append(doc.loadWarnings, domain.Warning{
					Severity:  domain.SeverityError,
					Code:      CodeCouldNotLoad,
					Message:   fmt.Sprintf("unable to load %s: %v", f.URL, child.err),
					SourceURL: current.key,
				})
				continue
			}
			if child.html {
				queue = append(queue, child)
			}
		}
	}

	return doc, nil
}

// load returns the memoized document for key, loading and parsing it on
// first use. Concurrent callers for the same key share one load.
func (a *Analyzer) load(ctx context.Context, key string, asHTML bool) *loadedDoc {
	if d := a.lookup(key); d != nil {
		return d
	}

	v, _, _ := a.group.Do(key, func() (any, error) {
		if d := a.lookup(key); d != nil {
			return d, nil
		}
		d := a.read(ctx, key, asHTML)
		a.mu.Lock()
		a.docs[key] = d
		a.mu.Unlock()
		return d, nil
	})
	return v.(*loadedDoc)
}

func (a *Analyzer) lookup(key string) *loadedDoc {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.docs[key]
}

func (a *Analyzer) read(ctx context.Context, key string, asHTML bool) *loadedDoc {
	d := &loadedDoc{key: key, html: asHTML}

	content, err := a.loader.Load(ctx, key)
	if err != nil {
		d.err = err
		return d
	}
	if !asHTML {
		return d
	}

	parsed, err := a.parse(ctx, content)
	if err != nil {
		d.err = err
		return d
	}

	if parsed.syntaxErrs {
		d.warnings = append(d.warnings, domain.Warning{
			Severity:  domain.SeverityWarning,
			Code:      CodeParseError,
			Message:   "document contains syntax errors",
			SourceURL: key,
		})
	}
	for _, line := range parsed.emptyRefs {
		d.warnings = append(d.warnings, domain.Warning{
			Severity:  domain.SeverityWarning,
			Code:      CodeEmptyReference,
			Message:   fmt.Sprintf("line %d: reference has an empty url", line),
			SourceURL: key,
		})
	}

	seen := make(map[domain.FeatureKind]map[string]bool)
	for _, ref := range parsed.refs {
		resolved, local := resolve(key, ref.href)
		if resolved == "" {
			continue
		}
		if seen[ref.kind] == nil {
			seen[ref.kind] = make(map[string]bool)
		}
		if seen[ref.kind][resolved] {
			continue
		}
		seen[ref.kind][resolved] = true
		if !local {
			logger.Debug("%s: external reference %s", key, ref.href)
		}
		d.features = append(d.features, feature{
			Feature: domain.Feature{URL: resolved, Kind: ref.kind, Document: key},
			local:   local,
		})
	}
	return d
}

// parse returns the cached parse of content, parsing it on a miss.
func (a *Analyzer) parse(ctx context.Context, content []byte) (*parsedHTML, error) {
	sum := sha256.Sum256(content)
	if parsed, ok := a.cache.Get(sum); ok {
		return parsed, nil
	}
	parsed, err := parseHTML(ctx, content)
	if err != nil {
		return nil, err
	}
	a.cache.Add(sum, parsed)
	return parsed, nil
}
