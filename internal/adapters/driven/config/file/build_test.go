package file

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polymer/polymer-build/internal/adapters/driven/storage/memory"
	"github.com/Polymer/polymer-build/internal/core/domain"
)

func writeConfig(t *testing.T, content string) *ConfigStore {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, domain.DefaultConfigFile), []byte(content), 0644))
	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	return store
}

func TestLoadBuildConfig(t *testing.T) {
	t.Run("reads every key", func(t *testing.T) {
		store := writeConfig(t, `
root = "app"
sources = ["src/**/*", "!src/test/**"]
fragments = ["src/app.html"]

[lint]
ignore = ["parse-error"]
min_severity = "warning"

[build]
concurrency = 8
high_water_mark = 32
reads_per_second = 50.0
`)

		cfg, err := LoadBuildConfig(store)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(filepath.Dir(store.Path()), "app"), cfg.Root)
		assert.Equal(t, []string{"src/**/*", "!src/test/**"}, cfg.Sources)
		assert.Equal(t, []string{"src/app.html"}, cfg.Fragments)
		assert.Equal(t, []string{"parse-error"}, cfg.Lint.IgnoreWarnings)
		assert.Equal(t, domain.SeverityWarning, cfg.Lint.MinSeverity)
		assert.Equal(t, 8, cfg.Concurrency)
		assert.Equal(t, 32, cfg.HighWaterMark)
		assert.Equal(t, 50.0, cfg.ReadsPerSecond)
	})

	t.Run("applies defaults for a missing file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewConfigStore(dir)
		require.NoError(t, err)

		cfg, err := LoadBuildConfig(store)

		require.NoError(t, err)
		assert.Equal(t, dir, cfg.Root)
		assert.Equal(t, []string{"**/*"}, cfg.Sources)
		assert.Empty(t, cfg.Fragments)
		assert.Equal(t, domain.DefaultConcurrency, cfg.Concurrency)
		assert.Equal(t, domain.DefaultHighWaterMark, cfg.HighWaterMark)
		assert.Equal(t, domain.SeverityInfo, cfg.Lint.MinSeverity)
		assert.Zero(t, cfg.ReadsPerSecond)
	})

	t.Run("keeps an absolute root", func(t *testing.T) {
		abs := t.TempDir()
		store := writeConfig(t, `root = "`+filepath.ToSlash(abs)+`"`)

		cfg, err := LoadBuildConfig(store)

		require.NoError(t, err)
		assert.Equal(t, filepath.ToSlash(abs), filepath.ToSlash(cfg.Root))
	})

	t.Run("rejects unknown severity", func(t *testing.T) {
		store := writeConfig(t, "[lint]\nmin_severity = \"loud\"\n")

		_, err := LoadBuildConfig(store)

		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
		assert.Contains(t, err.Error(), KeyLintMinLevel)
	})

	t.Run("rejects negative values", func(t *testing.T) {
		store := writeConfig(t, "[build]\nconcurrency = -1\n")

		_, err := LoadBuildConfig(store)

		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("accepts any config store", func(t *testing.T) {
		store := memory.NewConfigStore(map[string]any{
			KeyRoot:           "app",
			KeyFragments:      []any{"index.html"},
			KeyConcurrency:    int64(2),
			KeyReadsPerSecond: int64(10),
		})

		cfg, err := LoadBuildConfig(store)

		require.NoError(t, err)
		assert.Equal(t, "app", cfg.Root)
		assert.Equal(t, []string{"index.html"}, cfg.Fragments)
		assert.Equal(t, 2, cfg.Concurrency)
		assert.Equal(t, 10.0, cfg.ReadsPerSecond)
	})
}

func TestSaveBuildConfig(t *testing.T) {
	t.Run("round trips through the file", func(t *testing.T) {
		dir := t.TempDir()
		store, err := NewConfigStore(dir)
		require.NoError(t, err)

		cfg := domain.DefaultBuildConfig(".")
		cfg.Sources = []string{"src/**/*", "!src/test/**"}
		cfg.Fragments = []string{"src/app.html"}
		cfg.Lint.MinSeverity = domain.SeverityWarning
		cfg.Lint.IgnoreWarnings = []string{"parse-error"}
		cfg.ReadsPerSecond = 20

		require.NoError(t, SaveBuildConfig(store, cfg))

		reopened, err := NewConfigStore(dir)
		require.NoError(t, err)
		got, err := LoadBuildConfig(reopened)
		require.NoError(t, err)

		assert.Equal(t, dir, got.Root)
		assert.Equal(t, cfg.Sources, got.Sources)
		assert.Equal(t, cfg.Fragments, got.Fragments)
		assert.Equal(t, domain.SeverityWarning, got.Lint.MinSeverity)
		assert.Equal(t, []string{"parse-error"}, got.Lint.IgnoreWarnings)
		assert.Equal(t, domain.DefaultConcurrency, got.Concurrency)
		assert.Equal(t, 20.0, got.ReadsPerSecond)
	})

	t.Run("writes tables", func(t *testing.T) {
		store, err := NewConfigStore(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, SaveBuildConfig(store, domain.DefaultBuildConfig(".")))

		data, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.Contains(t, string(data), "[build]")
		assert.Contains(t, string(data), "[lint]")
		assert.NotContains(t, string(data), "root")
	})

	t.Run("keeps an explicit root", func(t *testing.T) {
		store := memory.NewConfigStore()

		require.NoError(t, SaveBuildConfig(store, domain.DefaultBuildConfig("web")))

		assert.Equal(t, "web", store.GetString(KeyRoot))
		assert.Equal(t, "info", store.GetString(KeyLintMinLevel))
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		store := memory.NewConfigStore()

		err := SaveBuildConfig(store, domain.BuildConfig{Root: ".", Concurrency: -1})

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		_, ok := store.Get(KeySources)
		assert.False(t, ok)
	})
}
