package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// CanonicalID is a normalised, root-relative, percent-encoded file identifier.
// Segments are separated by "/" and each segment is escaped with url.PathEscape
// plus ":", so two spellings of the same path always produce the same value
// and an id never parses as a URL with a scheme.
type CanonicalID string

// String implements fmt.Stringer.
func (id CanonicalID) String() string {
	return string(id)
}

// Path returns the unescaped, slash-separated root-relative path.
// Segments that fail to unescape are returned as-is.
func (id CanonicalID) Path() string {
	segments := strings.Split(string(id), "/")
	for i, seg := range segments {
		if decoded, err := url.PathUnescape(seg); err == nil {
			segments[i] = decoded
		}
	}
	return strings.Join(segments, "/")
}

// Ext returns the lowercased extension of the final segment, including the dot.
func (id CanonicalID) Ext() string {
	return strings.ToLower(path.Ext(id.Path()))
}

// CanonicalIDFromSlashPath encodes an already-cleaned, root-relative slash path.
func CanonicalIDFromSlashPath(p string) CanonicalID {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = escapeSegment(seg)
	}
	return CanonicalID(strings.Join(segments, "/"))
}

// escapeSegment escapes one path segment. url.PathEscape keeps ":", which
// would let "a:b.html" read back as a URL with scheme "a".
func escapeSegment(seg string) string {
	return strings.ReplaceAll(url.PathEscape(seg), ":", "%3A")
}

// ParseCanonicalID converts a user-supplied root-relative path, such as a
// command-line argument, to a CanonicalID. Leading "/" and "./" are ignored.
func ParseCanonicalID(p string) (CanonicalID, error) {
	cleaned := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if strings.TrimSpace(p) == "" || cleaned == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidInput)
	}
	return CanonicalIDFromSlashPath(cleaned), nil
}
