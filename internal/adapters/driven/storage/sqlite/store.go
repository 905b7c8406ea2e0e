package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Polymer/polymer-build/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/Polymer/polymer-build/internal/core/domain"
	"github.com/Polymer/polymer-build/internal/core/ports/driven"
)

// DefaultDataDir is the data directory used when NewStore is given none.
// It is relative to the working directory.
const DefaultDataDir = ".polymer-build"

// Ensure Store implements the interface.
var _ driven.IndexStore = (*Store)(nil)

// Store is a SQLite-based index store holding build runs and the
// dependency index of each run.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, DefaultDataDir is used.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "index.db")

	// WAL lets `deps` and `mcp serve` read while a watch build writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveRun stores or replaces a run and, when idx is non-nil, its index.
// A saved run becomes the newest.
func (s *Store) SaveRun(ctx context.Context, run domain.RunRecord, idx *domain.DependencyIndex) error {
	warnings := run.Warnings
	if warnings == nil {
		warnings = []domain.Warning{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshalling warnings: %w", err)
	}

	var indexJSON []byte
	if idx != nil {
		if indexJSON, err = json.Marshal(idx); err != nil {
			return fmt.Errorf("marshalling index: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	// Delete and reinsert so the run takes a fresh sequence number.
	if _, err := tx.ExecContext(ctx, "DELETE FROM indexes WHERE run_id = ?", run.ID); err != nil {
		return fmt.Errorf("replacing index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", run.ID); err != nil {
		return fmt.Errorf("replacing run: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, root, status, error, started_at, finished_at, sources, dependencies, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Root, string(run.Status), nullString(run.Error),
		nullTime(run.StartedAt), nullTime(run.FinishedAt),
		run.Sources, run.Dependencies, string(warningsJSON))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if indexJSON != nil {
		_, err = tx.ExecContext(ctx, "INSERT INTO indexes (run_id, data) VALUES (?, ?)", run.ID, string(indexJSON))
		if err != nil {
			return fmt.Errorf("saving index: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

const runColumns = `id, root, status, error, started_at, finished_at, sources, dependencies, warnings`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY seq DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// LatestIndex returns the index of the most recent successful run.
func (s *Store) LatestIndex(ctx context.Context) (*domain.DependencyIndex, *domain.RunRecord, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id FROM runs r JOIN indexes i ON i.run_id = r.id
		WHERE r.status = ?
		ORDER BY r.seq DESC LIMIT 1
	`, string(domain.RunSucceeded)).Scan(&runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("finding latest run: %w", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	idx, err := s.GetIndex(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	return idx, run, nil
}

// GetIndex returns the index stored for a run.
func (s *Store) GetIndex(ctx context.Context, runID string) (*domain.DependencyIndex, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM indexes WHERE run_id = ?", runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning index: %w", err)
	}

	idx := domain.NewDependencyIndex()
	if err := json.Unmarshal([]byte(data), idx); err != nil {
		return nil, fmt.Errorf("unmarshaling index: %w", err)
	}
	return idx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.RunRecord, error) {
	var run domain.RunRecord
	var status, warningsJSON string
	var runErr sql.NullString
	var startedAt, finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &run.Root, &status, &runErr, &startedAt, &finishedAt,
		&run.Sources, &run.Dependencies, &warningsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	run.Status = domain.RunStatus(status)
	run.Error = runErr.String
	if startedAt.Valid {
		run.StartedAt = startedAt.Time
	}
	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	if err := json.Unmarshal([]byte(warningsJSON), &run.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshaling warnings: %w", err)
	}
	if len(run.Warnings) == 0 {
		run.Warnings = nil
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
