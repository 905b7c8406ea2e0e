package file

import (
	"fmt"
	"path/filepath"

	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

// Configuration keys read by LoadBuildConfig.
const (
	KeyRoot           = "root"
	KeySources        = "sources"
	KeyFragments      = "fragments"
	KeyLintIgnore     = "lint.ignore"
	KeyLintMinLevel   = "lint.min_severity"
	KeyConcurrency    = "build.concurrency"
	KeyHighWaterMark  = "build.high_water_mark"
	KeyReadsPerSecond = "build.reads_per_second"
)

// LoadBuildConfig maps a project configuration onto a build config.
// A relative root is taken relative to the configuration file's directory.
func LoadBuildConfig(store driven.ConfigStore) (domain.BuildConfig, error) {
	base := filepath.Dir(store.Path())

	root := store.GetString(KeyRoot)
	switch {
	case root == "":
		root = base
	case !filepath.IsAbs(root):
		root = filepath.Join(base, root)
	}

	cfg := domain.DefaultBuildConfig(root)
	if sources := store.GetStringSlice(KeySources); len(sources) > 0 {
		cfg.Sources = sources
	}
	cfg.Fragments = store.GetStringSlice(KeyFragments)
	cfg.Lint.IgnoreWarnings = store.GetStringSlice(KeyLintIgnore)

	if level := store.GetString(KeyLintMinLevel); level != "" {
		sev, err := domain.ParseSeverity(level)
		if err != nil {
			return domain.BuildConfig{}, fmt.Errorf("%s: %w", KeyLintMinLevel, err)
		}
		cfg.Lint.MinSeverity = sev
	}
	if n := store.GetInt(KeyConcurrency); n != 0 {
		cfg.Concurrency = n
	}
	if n := store.GetInt(KeyHighWaterMark); n != 0 {
		cfg.HighWaterMark = n
	}
	cfg.ReadsPerSecond = store.GetFloat(KeyReadsPerSecond)

	if err := cfg.Validate(); err != nil {
		return domain.BuildConfig{}, fmt.Errorf("%s: %w", store.Path(), err)
	}
	return cfg, nil
}

type setting struct {
	key   string
	value any
}

// SaveBuildConfig writes cfg to store under the keys LoadBuildConfig reads
// and persists it. A "." root is left unset so the file stays relative to
// its own directory.
func SaveBuildConfig(store driven.ConfigStore, cfg domain.BuildConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	settings := []setting{
		{KeySources, nonNil(cfg.Sources)},
		{KeyFragments, nonNil(cfg.Fragments)},
		{KeyLintIgnore, nonNil(cfg.Lint.IgnoreWarnings)},
		{KeyLintMinLevel, cfg.Lint.MinSeverity.String()},
		{KeyConcurrency, cfg.Concurrency},
		{KeyHighWaterMark, cfg.HighWaterMark},
	}
	if cfg.Root != "." {
		settings = append(settings, setting{KeyRoot, filepath.ToSlash(cfg.Root)})
	}
	if cfg.ReadsPerSecond > 0 {
		settings = append(settings, setting{KeyReadsPerSecond, cfg.ReadsPerSecond})
	}

	for _, s := range settings {
		if err := store.Set(s.key, s.value); err != nil {
			return fmt.Errorf("setting %s: %w", s.key, err)
		}
	}
	return store.Save()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
