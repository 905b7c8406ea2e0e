package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Polymer/polymer-build/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

func testIndex() *domain.DependencyIndex {
	idx := domain.NewDependencyIndex()
	idx.FragmentToDeps["src/app.html"] = domain.ReferenceSet{
		Imports: []domain.CanonicalID{"src/a.html"},
		Scripts: []domain.CanonicalID{"src/app.js"},
		Styles:  []domain.CanonicalID{"src/app.css"},
	}
	idx.FragmentToImports["src/app.html"] = []domain.CanonicalID{"src/a.html"}
	idx.AddDependent("src/a.html", "src/app.html")
	idx.AddDependent("src/b.html", "src/a.html")
	return idx
}

func TestNewStore(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested")

		store, err := NewStore(dir)
		require.NoError(t, err)
		defer store.Close()

		assert.Equal(t, filepath.Join(dir, "index.db"), store.Path())
		_, err = os.Stat(store.Path())
		assert.NoError(t, err)
	})

	t.Run("reopens existing database", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()

		first, err := NewStore(dir)
		require.NoError(t, err)
		require.NoError(t, first.SaveRun(ctx, domain.RunRecord{ID: "r1", Status: domain.RunSucceeded}, testIndex()))
		require.NoError(t, first.Close())

		second, err := NewStore(dir)
		require.NoError(t, err)
		defer second.Close()

		run, err := second.GetRun(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, domain.RunSucceeded, run.Status)
	})

	t.Run("fails when directory cannot be created", func(t *testing.T) {
		store, err := NewStore("/dev/null/cannot/create")

		assert.Error(t, err)
		assert.Nil(t, store)
	})
}

func TestStore_SaveRun_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := domain.RunRecord{
		ID:           "run-1",
		Root:         "/app",
		Status:       domain.RunSucceeded,
		StartedAt:    started,
		FinishedAt:   started.Add(2 * time.Second),
		Sources:      4,
		Dependencies: 2,
		Warnings: []domain.Warning{
			{Severity: domain.SeverityWarning, Code: "parse-error", Message: "bad tag", SourceURL: "src/app.html"},
		},
	}

	require.NoError(t, store.SaveRun(ctx, run, testIndex()))

	got, err := store.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Root, got.Root)
	assert.Equal(t, run.Status, got.Status)
	assert.Equal(t, 4, got.Sources)
	assert.Equal(t, 2, got.Dependencies)
	assert.Equal(t, run.Warnings, got.Warnings)
	assert.True(t, run.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, 2*time.Second, got.Duration())

	idx, err := store.GetIndex(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(testIndex(), idx); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SaveRun_FailedRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "bad", Status: domain.RunFailed, Error: "file not found: a.html"}, nil))

	run, err := store.GetRun(ctx, "bad")
	require.NoError(t, err)
	assert.Equal(t, "file not found: a.html", run.Error)
	assert.Nil(t, run.Warnings)
	assert.True(t, run.StartedAt.IsZero())

	_, err = store.GetIndex(ctx, "bad")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_SaveRun_Replace(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "a", Status: domain.RunSucceeded}, testIndex()))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "b", Status: domain.RunSucceeded}, nil))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "a", Status: domain.RunSucceeded}, domain.NewDependencyIndex()))

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].ID)

	idx, err := store.GetIndex(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, idx.FragmentToDeps)
}

func TestStore_NotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.GetIndex(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = store.LatestIndex(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_ListRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runs, err := store.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: id, Status: domain.RunSucceeded}, nil))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"limited", 2, []string{"r3", "r2"}},
		{"zero returns all", 0, []string{"r3", "r2", "r1"}},
		{"negative returns all", -5, []string{"r3", "r2", "r1"}},
		{"limit above count", 10, []string{"r3", "r2", "r1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := store.ListRuns(ctx, tt.limit)
			require.NoError(t, err)

			ids := make([]string, 0, len(runs))
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestStore_LatestIndex(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	older := domain.NewDependencyIndex()
	older.FragmentToImports["old.html"] = nil
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "old", Status: domain.RunSucceeded}, older))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "new", Status: domain.RunSucceeded}, testIndex()))
	require.NoError(t, store.SaveRun(ctx, domain.RunRecord{ID: "failed", Status: domain.RunFailed}, nil))

	idx, run, err := store.LatestIndex(ctx)

	require.NoError(t, err)
	assert.Equal(t, "new", run.ID)
	assert.Equal(t, []domain.CanonicalID{"src/app.html"}, idx.Fragments())
	assert.Equal(t, []domain.CanonicalID{"src/a.html"}, idx.DependentsOf("src/b.html"))
}

func TestStore_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.SaveRun(ctx, domain.RunRecord{ID: "r"}, nil)

	assert.Error(t, err)
}
