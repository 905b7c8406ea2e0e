// Package merge implements a bundler that inlines html imports into the
// fragments that use them. Imports used by more than one fragment are
// merged into a single shared bundle.
package merge

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Polymer/polymer-build/internal/analyzers/html"
	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

// DefaultSharedBundle is the id of the shared bundle document.
const DefaultSharedBundle domain.CanonicalID = "shared-bundle.html"

var _ driven.Bundler = (*Bundler)(nil)

// Bundler merges html imports into their fragments.
type Bundler struct {
	shared domain.CanonicalID
}

// New creates a bundler writing shared imports to shared.
// An empty id selects DefaultSharedBundle.
func New(shared domain.CanonicalID) *Bundler {
	if shared == "" {
		shared = DefaultSharedBundle
	}
	return &Bundler{shared: shared}
}

// Bundle groups every fragment's direct html imports. Imports owned by a
// single fragment are inlined ahead of its content; imports owned by
// several fragments go to the shared bundle. Import tags that point at a
// merged file are redirected to the bundle now holding it.
func (b *Bundler) Bundle(ctx context.Context, files []domain.File, idx *domain.DependencyIndex) (*domain.BundleManifest, map[domain.CanonicalID][]byte, error) {
	if idx == nil {
		return nil, nil, fmt.Errorf("%w: nil index", domain.ErrInvalidInput)
	}

	contents := make(map[domain.CanonicalID][]byte, len(files))
	for _, f := range files {
		contents[f.ID] = f.Contents
	}
	if _, exists := contents[b.shared]; exists {
		return nil, nil, fmt.Errorf("%w: shared bundle %s collides with an input", domain.ErrInvalidInput, b.shared)
	}

	fragments := idx.Fragments()
	owners := make(map[domain.CanonicalID][]domain.CanonicalID)
	var order []domain.CanonicalID
	for _, frag := range fragments {
		imports, _ := idx.ImportsOf(frag)
		for _, dep := range imports {
			if _, ok := contents[dep]; !ok || contains(fragments, dep) {
				continue
			}
			if len(owners[dep]) == 0 {
				order = append(order, dep)
			}
			owners[dep] = append(owners[dep], frag)
		}
	}

	// bundleOf maps every merged file to the document that now holds it.
	bundleOf := make(map[domain.CanonicalID]domain.CanonicalID, len(order))
	shared := domain.Bundle{ID: b.shared}
	for _, dep := range order {
		if len(owners[dep]) > 1 {
			bundleOf[dep] = b.shared
			shared.Files = append(shared.Files, dep)
			for _, frag := range owners[dep] {
				if !contains(shared.Fragments, frag) {
					shared.Fragments = append(shared.Fragments, frag)
				}
			}
		} else {
			bundleOf[dep] = owners[dep][0]
		}
	}

	r := &rewriter{contents: contents, bundleOf: bundleOf}
	manifest := &domain.BundleManifest{}
	merged := make(map[domain.CanonicalID][]byte)

	if len(shared.Files) > 0 {
		out, err := r.render(ctx, b.shared, shared.Files)
		if err != nil {
			return nil, nil, err
		}
		sort.Slice(shared.Fragments, func(i, j int) bool { return shared.Fragments[i] < shared.Fragments[j] })
		merged[b.shared] = out
		manifest.Bundles = append(manifest.Bundles, shared)
	}

	for _, frag := range fragments {
		if _, ok := contents[frag]; !ok {
			continue
		}
		bundle := domain.Bundle{ID: frag, Fragments: []domain.CanonicalID{frag}}
		imports, _ := idx.ImportsOf(frag)
		for _, dep := range imports {
			if bundleOf[dep] == frag {
				bundle.Files = append(bundle.Files, dep)
			}
		}
		bundle.Files = append(bundle.Files, frag)

		out, err := r.render(ctx, frag, bundle.Files)
		if err != nil {
			return nil, nil, err
		}
		if len(bundle.Files) == 1 && bytes.Equal(out, contents[frag]) {
			continue
		}
		merged[frag] = out
		manifest.Bundles = append(manifest.Bundles, bundle)
	}

	return manifest, merged, nil
}

// rewriter renders bundle documents.
type rewriter struct {
	contents map[domain.CanonicalID][]byte
	bundleOf map[domain.CanonicalID]domain.CanonicalID
}

// render concatenates members into the document out. Import tags pointing
// into out are dropped, tags pointing at another bundle's member become one
// import of that bundle, and the remaining tags are rebased onto out.
func (r *rewriter) render(ctx context.Context, out domain.CanonicalID, members []domain.CanonicalID) ([]byte, error) {
	var buf bytes.Buffer
	emitted := make(map[domain.CanonicalID]bool)
	for _, id := range members {
		content := r.contents[id]
		links, err := html.ImportLinks(ctx, id.String(), content)
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", id, err)
		}

		last := 0
		for _, l := range links {
			target := domain.CanonicalID(l.URL)
			if owner, ok := r.bundleOf[target]; ok {
				target = owner
			} else if id == out {
				continue
			}

			buf.Write(content[last:l.Start])
			last = l.End
			if target == out || emitted[target] {
				continue
			}
			emitted[target] = true
			fmt.Fprintf(&buf, "<link rel=\"import\" href=\"%s\">", relativeURL(out, target))
		}
		buf.Write(content[last:])
		if len(members) > 1 && buf.Len() > 0 && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}

// relativeURL returns the href that reaches to from the document from.
func relativeURL(from, to domain.CanonicalID) string {
	var fromDir []string
	if dir := path.Dir(from.String()); dir != "." {
		fromDir = strings.Split(dir, "/")
	}
	target := strings.Split(to.String(), "/")

	common := 0
	for common < len(fromDir) && common < len(target)-1 && fromDir[common] == target[common] {
		common++
	}
	parts := make([]string, 0, len(fromDir)-common+len(target)-common)
	for i := common; i < len(fromDir); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, target[common:]...)
	return strings.Join(parts, "/")
}

func contains(list []domain.CanonicalID, id domain.CanonicalID) bool {
	for _, existing := range list {
		if existing == id {
			return true
		}
	}
	return false
}
