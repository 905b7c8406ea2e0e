package domain

import (
	"fmt"
	"strings"
)

// Build defaults.
const (
	DefaultConcurrency   = 4
	DefaultHighWaterMark = 16
	DefaultConfigFile    = "polymer-build.toml"

	// DefaultSourceGlob declares every file under the root a source.
	DefaultSourceGlob = "**/*"
)

// BuildConfig holds the inputs of a single build run.
type BuildConfig struct {
	// Root is the directory all canonical ids are relative to.
	Root string

	// Sources are glob patterns naming the declared sources. A leading "!"
	// negates a pattern.
	Sources []string

	// Fragments are the entry documents, relative to Root.
	Fragments []string

	// Lint controls which analyzer warnings are counted.
	Lint LintConfig

	// Concurrency bounds the number of fragments analysed at once.
	Concurrency int

	// HighWaterMark bounds how far enumeration may run ahead of the
	// coordinator.
	HighWaterMark int

	// ReadsPerSecond throttles dependency reads. Zero means unlimited.
	ReadsPerSecond float64
}

// LintConfig configures warning filtering.
type LintConfig struct {
	// IgnoreWarnings lists warning codes that are never counted.
	IgnoreWarnings []string

	// MinSeverity is the least severe level still counted.
	MinSeverity Severity
}

// DefaultBuildConfig returns a config with sensible defaults for root.
func DefaultBuildConfig(root string) BuildConfig {
	return BuildConfig{
		Root:          root,
		Sources:       []string{DefaultSourceGlob},
		Concurrency:   DefaultConcurrency,
		HighWaterMark: DefaultHighWaterMark,
		Lint:          LintConfig{MinSeverity: SeverityInfo},
	}
}

// WithDefaults fills zero values the way DefaultBuildConfig does and folds
// fragments into the declared sources. It does not repair invalid values;
// call Validate first. The zero MinSeverity is SeverityInfo, which counts
// every warning.
func (c BuildConfig) WithDefaults() BuildConfig {
	out := c
	if out.Root == "" {
		out.Root = "."
	}
	if out.Concurrency <= 0 {
		out.Concurrency = DefaultConcurrency
	}
	if out.HighWaterMark <= 0 {
		out.HighWaterMark = DefaultHighWaterMark
	}

	out.Sources = append([]string(nil), c.Sources...)
	if len(out.Sources) == 0 {
		out.Sources = []string{DefaultSourceGlob}
	}
	seen := make(map[string]bool, len(out.Sources))
	for _, s := range out.Sources {
		seen[s] = true
	}
	for _, f := range c.Fragments {
		if !seen[f] {
			out.Sources = append(out.Sources, f)
			seen[f] = true
		}
	}
	out.Fragments = append([]string(nil), c.Fragments...)
	out.Lint.IgnoreWarnings = append([]string(nil), c.Lint.IgnoreWarnings...)
	return out
}

// Validate checks the config for obviously unusable values.
func (c BuildConfig) Validate() error {
	if strings.TrimSpace(c.Root) == "" {
		return fmt.Errorf("%w: root is required", ErrInvalidInput)
	}
	for _, f := range c.Fragments {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: empty fragment path", ErrInvalidInput)
		}
	}
	for _, s := range c.Sources {
		if strings.TrimPrefix(s, "!") == "" {
			return fmt.Errorf("%w: empty source pattern", ErrInvalidInput)
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must not be negative", ErrInvalidInput)
	}
	if c.HighWaterMark < 0 {
		return fmt.Errorf("%w: high water mark must not be negative", ErrInvalidInput)
	}
	if c.ReadsPerSecond < 0 {
		return fmt.Errorf("%w: reads per second must not be negative", ErrInvalidInput)
	}
	if c.Lint.MinSeverity < SeverityInfo || c.Lint.MinSeverity > SeverityError {
		return fmt.Errorf("%w: unknown severity %d", ErrInvalidInput, c.Lint.MinSeverity)
	}
	return nil
}

// Filter returns the warning filter described by the lint config.
func (l LintConfig) Filter() WarningFilter {
	return WarningFilter{
		IgnoreCodes: append([]string(nil), l.IgnoreWarnings...),
		MinSeverity: l.MinSeverity,
	}
}
