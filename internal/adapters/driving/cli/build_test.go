package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polymer/polymer-build/internal/adapters/driven/storage/memory"
	"github.com/Polymer/polymer-build/internal/analyzers/html"
	"github.com/Polymer/polymer-build/internal/bundlers/merge"
	"github.com/Polymer/polymer-build/internal/connectors/filesystem"
	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/services"
)

// writeProject creates a fragment importing a.html, which imports b.html.
func writeProject(t *testing.T, extra map[string]string) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html": `<link rel="import" href="a.html"><script src="app.js"></script>`,
		"a.html":     `<link rel="import" href="b.html"><div>a</div>`,
		"b.html":     `<div>b</div>`,
		"app.js":     `console.log("app")`,
	}
	for k, v := range extra {
		files[k] = v
	}
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

// setupServices wires real services over root and restores globals after
// the test.
func setupServices(t *testing.T, root string, fragments ...string) *Services {
	t.Helper()
	analyzers, err := html.NewFactory(html.DefaultCacheSize)
	require.NoError(t, err)
	store := memory.NewIndexStore()

	cfg := domain.DefaultBuildConfig(root)
	cfg.Sources = []string{"*.js"}
	cfg.Fragments = fragments

	svc := &Services{
		Build:  services.NewBuildOrchestrator(filesystem.NewFactory(), analyzers, store),
		Bundle: services.NewBundleService(merge.New("")),
		Index:  services.NewIndexService(store),
		Config: cfg,
	}

	oldServices, oldFactory := activeServices, serviceFactory
	activeServices, serviceFactory = svc, nil
	t.Cleanup(func() {
		activeServices, serviceFactory = oldServices, oldFactory
	})
	return svc
}

// executeCommand runs the root command with args and resets flag state.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		buildWatch, buildBundleDir, buildRoot = false, "", ""
		buildFragments, buildSources = nil, nil
		depsJSON = false
		runsLimit = 10
		initFragments, initSources, initForce = nil, nil, false
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestBuildCmd_Use(t *testing.T) {
	assert.Equal(t, "build", buildCmd.Use)
	assert.NotNil(t, buildCmd.Flags().Lookup("watch"))
	assert.NotNil(t, buildCmd.Flags().Lookup("bundle"))
}

func TestBuildCmd_Succeeds(t *testing.T) {
	root := writeProject(t, nil)
	setupServices(t, root, "index.html")

	out, err := executeCommand("build")

	require.NoError(t, err)
	assert.Contains(t, out, "Build succeeded")
	assert.Contains(t, out, "Sources:      2")
	assert.Contains(t, out, "Dependencies: 2")
	assert.Contains(t, out, "Fragments:    1")
	assert.Contains(t, out, "0 errors")
}

func TestBuildCmd_RecordsRunForQueries(t *testing.T) {
	root := writeProject(t, nil)
	setupServices(t, root, "index.html")

	_, err := executeCommand("build")
	require.NoError(t, err)

	t.Run("fragments", func(t *testing.T) {
		out, err := executeCommand("deps", "fragments")
		require.NoError(t, err)
		assert.Equal(t, "index.html\n", out)
	})

	t.Run("imports", func(t *testing.T) {
		out, err := executeCommand("deps", "imports", "./index.html")
		require.NoError(t, err)
		assert.Contains(t, out, "Imports (1)")
		assert.Contains(t, out, "a.html")
		assert.Contains(t, out, "Scripts (1)")
		assert.Contains(t, out, "app.js")
		assert.Contains(t, out, "Styles (0)")
	})

	t.Run("imports as JSON", func(t *testing.T) {
		out, err := executeCommand("deps", "imports", "index.html", "--json")
		require.NoError(t, err)

		var refs map[string][]string
		require.NoError(t, json.Unmarshal([]byte(out), &refs))
		assert.Equal(t, []string{"a.html"}, refs["imports"])
		assert.Equal(t, []string{}, refs["styles"])
	})

	t.Run("dependents of transitive import", func(t *testing.T) {
		out, err := executeCommand("deps", "dependents", "b.html")
		require.NoError(t, err)
		assert.Equal(t, "a.html\n", out)
	})

	t.Run("file with no dependents", func(t *testing.T) {
		out, err := executeCommand("deps", "dependents", "app.js")
		require.NoError(t, err)
		assert.Contains(t, out, "No documents import app.js.")
	})

	t.Run("unknown fragment", func(t *testing.T) {
		_, err := executeCommand("deps", "imports", "missing.html")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("runs", func(t *testing.T) {
		out, err := executeCommand("runs")
		require.NoError(t, err)
		assert.Contains(t, out, "STATUS")
		assert.Contains(t, out, "succeeded")
	})
}

func TestBuildCmd_MissingImportFails(t *testing.T) {
	root := writeProject(t, map[string]string{
		"broken.html": `<link rel="import" href="nowhere.html">`,
	})
	svc := setupServices(t, root, "broken.html")

	out, err := executeCommand("build")

	require.Error(t, err)
	assert.Contains(t, out, "Build failed")

	runs, err := svc.Index.Runs(t.Context(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, domain.RunFailed, runs[0].Status)
}

func TestBuildCmd_FlagsOverrideConfig(t *testing.T) {
	root := writeProject(t, map[string]string{
		"other.html": `<div>other</div>`,
	})
	setupServices(t, root, "index.html")

	out, err := executeCommand("build", "--fragment", "other.html", "--source", "none/*")

	require.NoError(t, err)
	assert.Contains(t, out, "Sources:      1")
	assert.Contains(t, out, "Dependencies: 0")
}

func TestBuildCmd_Bundle(t *testing.T) {
	root := writeProject(t, nil)
	setupServices(t, root, "index.html")
	outDir := filepath.Join(t.TempDir(), "dist")

	out, err := executeCommand("build", "--bundle", outDir)

	require.NoError(t, err)
	assert.Contains(t, out, "bundled files to "+outDir)

	data, err := os.ReadFile(filepath.Join(outDir, ManifestFile))
	require.NoError(t, err)
	var manifest manifestDoc
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Bundles, 1)
	assert.Equal(t, "index.html", manifest.Bundles[0].ID)
	assert.Contains(t, manifest.Bundles[0].Files, "a.html")

	bundled, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(bundled), "<div>a</div>")
}

func TestDepsCmd_NoBuildYet(t *testing.T) {
	setupServices(t, t.TempDir())

	_, err := executeCommand("deps", "fragments")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "run 'polymer-build build' first")
}

func TestRunsCmd_Empty(t *testing.T) {
	setupServices(t, t.TempDir())

	out, err := executeCommand("runs")

	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestGetServices(t *testing.T) {
	oldServices, oldFactory := activeServices, serviceFactory
	t.Cleanup(func() {
		activeServices, serviceFactory = oldServices, oldFactory
	})

	t.Run("not configured", func(t *testing.T) {
		activeServices, serviceFactory = nil, nil

		_, err := executeCommand("runs")

		assert.EqualError(t, err, "services not configured")
	})

	t.Run("factory error", func(t *testing.T) {
		activeServices = nil
		SetServiceFactory(func(string) (*Services, error) {
			return nil, errors.New("bad config")
		})

		_, err := executeCommand("runs")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad config")
	})

	t.Run("factory receives config flag and close runs", func(t *testing.T) {
		activeServices = nil
		var gotPath string
		closed := false
		SetServiceFactory(func(path string) (*Services, error) {
			gotPath = path
			return &Services{
				Index: emptyIndexService(),
				Close: func() error { closed = true; return nil },
			}, nil
		})

		_, err := executeCommand("runs", "--config", "custom.toml")

		require.NoError(t, err)
		assert.Equal(t, "custom.toml", gotPath)
		assert.True(t, closed)
		configPath = ""
	})
}

func emptyIndexService() *services.IndexService {
	return services.NewIndexService(memory.NewIndexStore())
}

func TestWriteBundle_EmptyResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	require.NoError(t, writeBundle(dir, &domain.BundleResult{}))

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"bundles":[],"evicted":[]}`, string(data))
}
