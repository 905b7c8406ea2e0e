package html

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// externalPackageDirs are directories holding third-party packages.
var externalPackageDirs = []string{"bower_components/", "node_modules/"}

// normalize turns a root-relative URL into the analyzer's document key:
// a cleaned, segment-escaped path without a leading slash.
func normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("not a local url: %s", raw)
	}
	p := path.Clean(strings.TrimPrefix(u.Path, "/"))
	if p == "." || p == "" {
		return "", fmt.Errorf("empty url: %q", raw)
	}
	return domain.CanonicalIDFromSlashPath(p).String(), nil
}

// resolve resolves href against the document key base. External URLs are
// returned unchanged with local set to false. References to the document
// itself resolve to "".
func resolve(base, href string) (resolved string, local bool) {
	u, err := url.Parse(href)
	if err != nil || u.Scheme != "" || u.Host != "" || strings.HasPrefix(href, "//") {
		return href, false
	}
	if u.Path == "" {
		return "", false
	}

	var p string
	if strings.HasPrefix(u.Path, "/") {
		p = path.Clean(strings.TrimPrefix(u.Path, "/"))
	} else {
		p = path.Join(path.Dir(domain.CanonicalID(base).Path()), u.Path)
	}
	resolved = domain.CanonicalIDFromSlashPath(p).String()
	return resolved, !escapesRoot(p)
}

func escapesRoot(p string) bool {
	return p == ".." || strings.HasPrefix(p, "../")
}

func isExternalPackage(key string) bool {
	for _, dir := range externalPackageDirs {
		if strings.HasPrefix(key, dir) || strings.Contains(key, "/"+dir) {
			return true
		}
	}
	return false
}
