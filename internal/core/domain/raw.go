package domain

import "bytes"

// RawFile is a filesystem path and its bytes, as read by a connector.
// It is the connector's output before canonicalisation.
type RawFile struct {
	// Path is the filesystem path the bytes were read from.
	Path string

	// Contents is the raw bytes.
	Contents []byte
}

// File is a loaded file keyed by its canonical identity.
// Once inserted into a build's file store the core never mutates it.
type File struct {
	// ID is the canonical identifier of the file.
	ID CanonicalID

	// Contents is the loaded bytes.
	Contents []byte
}

// Clone returns a copy whose Contents can be modified freely.
func (f File) Clone() File {
	return File{ID: f.ID, Contents: bytes.Clone(f.Contents)}
}

// ChangeType represents the type of file change.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed file.
	ChangeDeleted
)

// String returns a lowercase name for the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange represents a change event from a watched source tree.
type FileChange struct {
	// Type is the kind of change.
	Type ChangeType

	// Path is the filesystem path of the affected file.
	Path string
}
