package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent build protocol failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBuildInProgress indicates a build is already running.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrRunFinished indicates a request arrived after the build settled.
	ErrRunFinished = errors.New("build run finished")

	// ErrExternalReference indicates a reference points outside any root,
	// such as an absolute http URL.
	ErrExternalReference = errors.New("external reference")

	// Build Protocol Errors.

	// ErrPathEscapesRoot indicates a path is not contained in the build root.
	ErrPathEscapesRoot = errors.New("path escapes root")

	// ErrDuplicateRequest indicates a second content request for an id that
	// already has an outstanding one.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrFileNotFound indicates a requested file never materialised.
	ErrFileNotFound = errors.New("file not found")

	// ErrAnalysis indicates the document analyzer failed on a fragment.
	ErrAnalysis = errors.New("analysis failed")

	// ErrOutOfOrderUpdate indicates an index update for a fragment that is
	// not pending.
	ErrOutOfOrderUpdate = errors.New("out of order update")

	// ErrSeverity indicates error-level warnings were found.
	ErrSeverity = errors.New("error-level warnings")
)

// PathEscapesRootError reports a path outside the configured root.
type PathEscapesRootError struct {
	Path string
	Root string
}

func (e *PathEscapesRootError) Error() string {
	return fmt.Sprintf("path %q is not contained in root %q", e.Path, e.Root)
}

// Unwrap returns ErrPathEscapesRoot.
func (e *PathEscapesRootError) Unwrap() error { return ErrPathEscapesRoot }

// DuplicateRequestError reports a second outstanding request for one id.
type DuplicateRequestError struct {
	ID CanonicalID
}

func (e *DuplicateRequestError) Error() string {
	return fmt.Sprintf("duplicate request for %s: a request is already pending", e.ID)
}

// Unwrap returns ErrDuplicateRequest.
func (e *DuplicateRequestError) Unwrap() error { return ErrDuplicateRequest }

// FileNotFoundError reports an id that never materialised.
type FileNotFoundError struct {
	ID     CanonicalID
	Reason string
}

func (e *FileNotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("file not found: %s", e.ID)
	}
	return fmt.Sprintf("file not found: %s (%s)", e.ID, e.Reason)
}

// Unwrap returns ErrFileNotFound.
func (e *FileNotFoundError) Unwrap() error { return ErrFileNotFound }

// AnalysisError reports an analyzer failure for a fragment.
type AnalysisError struct {
	ID      CanonicalID
	Message string
	Err     error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("unable to analyze %s: %s", e.ID, e.Message)
}

// Unwrap returns ErrAnalysis and the analyzer's error.
func (e *AnalysisError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrAnalysis}
	}
	return []error{ErrAnalysis, e.Err}
}

// OutOfOrderUpdateError reports an index update for a fragment not pending.
type OutOfOrderUpdateError struct {
	ID CanonicalID
}

func (e *OutOfOrderUpdateError) Error() string {
	return fmt.Sprintf("dependency index update for %s arrived but it is not a pending fragment", e.ID)
}

// Unwrap returns ErrOutOfOrderUpdate.
func (e *OutOfOrderUpdateError) Unwrap() error { return ErrOutOfOrderUpdate }

// WarningCountError reports how many error-level warnings a build produced.
type WarningCountError struct {
	Count int
}

func (e *WarningCountError) Error() string {
	return fmt.Sprintf("%d error(s) occurred during build", e.Count)
}

// Unwrap returns ErrSeverity.
func (e *WarningCountError) Unwrap() error { return ErrSeverity }
