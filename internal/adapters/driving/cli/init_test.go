package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polymer/polymer-build/internal/adapters/driven/config/file"
	"github.com/Polymer/polymer-build/internal/core/domain"
)

// useFileConfigWriter installs the TOML writer and restores globals after
// the test.
func useFileConfigWriter(t *testing.T) {
	t.Helper()
	old, oldPath := configWriter, configPath
	t.Cleanup(func() {
		configWriter, configPath = old, oldPath
	})
	SetConfigWriter(func(path string, cfg domain.BuildConfig) error {
		store, err := file.Open(path)
		if err != nil {
			return err
		}
		return file.SaveBuildConfig(store, cfg)
	})
}

func TestInitCmd_WritesConfig(t *testing.T) {
	useFileConfigWriter(t)
	path := filepath.Join(t.TempDir(), domain.DefaultConfigFile)

	out, err := executeCommand("init", "--config", path, "--fragment", "src/app.html", "--source", "src/**/*")

	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	store, err := file.Open(path)
	require.NoError(t, err)
	cfg, err := file.LoadBuildConfig(store)
	require.NoError(t, err)
	assert.Equal(t, filepath.Dir(path), cfg.Root)
	assert.Equal(t, []string{"src/app.html"}, cfg.Fragments)
	assert.Equal(t, []string{"src/**/*"}, cfg.Sources)
	assert.Equal(t, domain.SeverityInfo, cfg.Lint.MinSeverity)
}

func TestInitCmd_RefusesToOverwrite(t *testing.T) {
	useFileConfigWriter(t)
	path := filepath.Join(t.TempDir(), domain.DefaultConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("fragments = [\"keep.html\"]\n"), 0644))

	_, err := executeCommand("init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keep.html")

	_, err = executeCommand("init", "--config", path, "--force", "--fragment", "new.html")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "new.html")
	assert.NotContains(t, string(data), "keep.html")
}

func TestInitCmd_WriterNotConfigured(t *testing.T) {
	old := configWriter
	t.Cleanup(func() { configWriter = old })
	configWriter = nil

	_, err := executeCommand("init", "--config", filepath.Join(t.TempDir(), "x.toml"))

	assert.EqualError(t, err, "config writer not configured")
}
