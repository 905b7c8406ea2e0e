package domain

import (
	"fmt"
	"strings"
)

// Severity ranks a warning. Higher values are more severe, so the zero
// value is informational.
type Severity int

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = iota

	// SeverityWarning is reported but never blocks completion.
	SeverityWarning

	// SeverityError fails the build when counted.
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// ParseSeverity converts a configuration value to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "errors":
		return SeverityError, nil
	case "warning", "warnings", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	default:
		return SeverityInfo, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, s)
	}
}

// Warning is a diagnostic produced while analyzing a document.
type Warning struct {
	Severity Severity
	Code     string
	Message  string

	// SourceURL is the document the warning was raised in.
	SourceURL string
}

// String formats the warning for logs.
func (w Warning) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", w.SourceURL, w.Code, w.Severity, w.Message)
}

// WarningFilter drops warnings by code or severity before they are counted.
type WarningFilter struct {
	// IgnoreCodes lists warning codes that are always dropped.
	IgnoreCodes []string

	// MinSeverity is the least severe level still reported.
	MinSeverity Severity
}

// ShouldIgnore reports whether w is filtered out.
func (f WarningFilter) ShouldIgnore(w Warning) bool {
	if w.Severity < f.MinSeverity {
		return true
	}
	for _, code := range f.IgnoreCodes {
		if code == w.Code {
			return true
		}
	}
	return false
}

// WarningTally counts warnings by severity.
type WarningTally struct {
	Errors   int
	Warnings int
	Infos    int
}

// TallyWarnings counts ws by severity.
func TallyWarnings(ws []Warning) WarningTally {
	var t WarningTally
	for _, w := range ws {
		switch w.Severity {
		case SeverityError:
			t.Errors++
		case SeverityWarning:
			t.Warnings++
		default:
			t.Infos++
		}
	}
	return t
}
