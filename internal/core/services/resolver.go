package services

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// CanonicalResolver maps filesystem paths and reference URLs to canonical ids
// relative to a single build root.
type CanonicalResolver struct {
	root string
}

// NewCanonicalResolver resolves root to an absolute, symlink-free directory.
func NewCanonicalResolver(root string) (*CanonicalResolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: root %s is not a directory", domain.ErrInvalidInput, resolved)
	}
	return &CanonicalResolver{root: resolved}, nil
}

// Root returns the absolute build root.
func (r *CanonicalResolver) Root() string {
	return r.root
}

// Resolve returns the canonical id of a filesystem path.
// Relative paths are taken relative to the root. An absolute path that
// reaches the root through a symlinked directory resolves to the same id
// as the direct spelling.
func (r *CanonicalResolver) Resolve(p string) (domain.CanonicalID, error) {
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(r.root, full)
	}
	full = filepath.Clean(full)

	rel, ok := r.relative(full)
	if !ok && filepath.IsAbs(p) {
		if resolved, err := evalExisting(full); err == nil {
			rel, ok = r.relative(resolved)
		}
	}
	if !ok {
		return "", &domain.PathEscapesRootError{Path: p, Root: r.root}
	}
	return domain.CanonicalIDFromSlashPath(rel), nil
}

// relative returns full as a slash path below the root.
func (r *CanonicalResolver) relative(full string) (string, bool) {
	rel, err := filepath.Rel(r.root, full)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	return rel, !escapes(rel)
}

// evalExisting resolves symlinks in p. When p does not exist its parent
// directory is resolved instead and the final element kept.
func evalExisting(p string) (string, error) {
	resolved, err := filepath.EvalSymlinks(p)
	if err == nil {
		return resolved, nil
	}
	if !os.IsNotExist(err) {
		return "", err
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(p))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(p)), nil
}

// ToPath returns the absolute filesystem path of id.
func (r *CanonicalResolver) ToPath(id domain.CanonicalID) string {
	return filepath.Join(r.root, filepath.FromSlash(id.Path()))
}

// FromURL canonicalizes a reference URL reported by the analyzer.
// A leading "/" is root-relative. URLs with a scheme or host are external.
func (r *CanonicalResolver) FromURL(rawURL string) (domain.CanonicalID, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("%w: %s", domain.ErrExternalReference, rawURL)
	}

	p := path.Clean(strings.TrimPrefix(u.Path, "/"))
	if escapes(p) {
		return "", &domain.PathEscapesRootError{Path: rawURL, Root: r.root}
	}
	return domain.CanonicalIDFromSlashPath(p), nil
}

// escapes reports whether a cleaned relative slash path leaves the root
// or names the root itself.
func escapes(rel string) bool {
	return rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel)
}
