// Package state persists everything that survives between runs: the stored
// fingerprint of every tracked path, the append-only run log, and recorded
// conflict resolutions. Backed by SQLite in WAL mode under the project-local
// data directory; the shared template tree is never written.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/fingerprint"
	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// schemaVersion is bumped whenever the table layout changes.
const schemaVersion = 1

// Store is the persistent metadata store. Single writer per run; the run
// lock serializes whole runs, so no internal locking beyond SQLite's own.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the store at path and migrates the schema.
// If path is empty, an in-memory store is created for testing.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
		// WAL mode with a busy timeout handles the rare overlap with a
		// read-only inspection while a run holds the lock.
		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeStateCorrupt, "failed to migrate state schema", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates tables and records the schema version.
func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS fingerprints (
			path        TEXT PRIMARY KEY,
			digest      TEXT NOT NULL,
			updated_run TEXT NOT NULL,
			updated_at  TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			policy      TEXT NOT NULL,
			mode        TEXT NOT NULL,
			started_at  TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_items (
			run_id          TEXT NOT NULL,
			seq             INTEGER NOT NULL,
			action          TEXT NOT NULL,
			source_path     TEXT NOT NULL,
			dest_path       TEXT NOT NULL,
			reason          TEXT NOT NULL,
			requires_backup INTEGER NOT NULL,
			outcome         TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS resolutions (
			path            TEXT PRIMARY KEY,
			local_digest    TEXT NOT NULL,
			upstream_digest TEXT NOT NULL,
			choice          TEXT NOT NULL,
			resolved_at     TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO NOTHING`, fmt.Sprint(schemaVersion))
	return err
}

// SchemaVersion returns the stored schema version.
func (s *Store) SchemaVersion() (int, error) {
	var v int
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Fingerprint returns the stored fingerprint for path, if any.
func (s *Store) Fingerprint(path string) (fingerprint.Fingerprint, bool, error) {
	var digest string
	err := s.db.QueryRow(`SELECT digest FROM fingerprints WHERE path = ?`, path).Scan(&digest)
	if err == sql.ErrNoRows {
		return fingerprint.Absent, false, nil
	}
	if err != nil {
		return fingerprint.Absent, false, fmt.Errorf("failed to read fingerprint for %s: %w", path, err)
	}
	return fingerprint.Fingerprint(digest), true, nil
}

// AllFingerprints returns the full path -> stored fingerprint table.
func (s *Store) AllFingerprints() (map[string]fingerprint.Fingerprint, error) {
	rows, err := s.db.Query(`SELECT path, digest FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("failed to list fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]fingerprint.Fingerprint)
	for rows.Next() {
		var path, digest string
		if err := rows.Scan(&path, &digest); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint row: %w", err)
		}
		out[path] = fingerprint.Fingerprint(digest)
	}
	return out, rows.Err()
}

// SetFingerprint records the stored fingerprint for path. Called only after
// the corresponding plan item is recorded Applied.
func (s *Store) SetFingerprint(path string, fp fingerprint.Fingerprint, runID string) error {
	_, err := s.db.Exec(
		`INSERT INTO fingerprints (path, digest, updated_run, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   digest = excluded.digest,
		   updated_run = excluded.updated_run,
		   updated_at = excluded.updated_at`,
		path, string(fp), runID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set fingerprint for %s: %w", path, err)
	}
	return nil
}

// DeleteFingerprint removes the stored fingerprint for path.
func (s *Store) DeleteFingerprint(path string) error {
	_, err := s.db.Exec(`DELETE FROM fingerprints WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete fingerprint for %s: %w", path, err)
	}
	return nil
}

// CreateRun appends a run and its plan items to the run log. Items start
// with their given outcomes (Pending for fresh plans).
func (s *Store) CreateRun(rec *reconcile.RunRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin run insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO runs (run_id, policy, mode, started_at) VALUES (?, ?, ?, ?)`,
		rec.RunID, string(rec.Policy), string(rec.Mode), rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.RunID, err)
	}

	for i, item := range rec.Items {
		outcome := reconcile.OutcomePending
		if i < len(rec.Outcomes) {
			outcome = rec.Outcomes[i]
		}
		_, err = tx.Exec(
			`INSERT INTO run_items
			 (run_id, seq, action, source_path, dest_path, reason, requires_backup, outcome)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, i, string(item.Action), item.SourcePath, item.DestinationPath,
			item.Reason, boolToInt(item.RequiresBackup), string(outcome))
		if err != nil {
			return fmt.Errorf("failed to insert run item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// SetItemOutcome records the outcome of one plan item.
func (s *Store) SetItemOutcome(runID string, seq int, outcome reconcile.Outcome) error {
	_, err := s.db.Exec(
		`UPDATE run_items SET outcome = ? WHERE run_id = ? AND seq = ?`,
		string(outcome), runID, seq)
	if err != nil {
		return fmt.Errorf("failed to record outcome for %s item %d: %w", runID, seq, err)
	}
	return nil
}

// FinishRun stamps the run's completion time.
func (s *Store) FinishRun(runID string, finishedAt time.Time) error {
	_, err := s.db.Exec(
		`UPDATE runs SET finished_at = ? WHERE run_id = ?`, finishedAt.UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// GetRun loads one run record with its items and outcomes.
func (s *Store) GetRun(runID string) (*reconcile.RunRecord, error) {
	rec := &reconcile.RunRecord{RunID: runID}
	var finished sql.NullTime
	err := s.db.QueryRow(
		`SELECT policy, mode, started_at, finished_at FROM runs WHERE run_id = ?`, runID).
		Scan(&rec.Policy, &rec.Mode, &rec.StartedAt, &finished)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	if finished.Valid {
		rec.FinishedAt = finished.Time
	}

	rows, err := s.db.Query(
		`SELECT action, source_path, dest_path, reason, requires_backup, outcome
		 FROM run_items WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run items for %s: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item reconcile.PlanItem
		var requiresBackup int
		var outcome string
		if err := rows.Scan(&item.Action, &item.SourcePath, &item.DestinationPath,
			&item.Reason, &requiresBackup, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan run item: %w", err)
		}
		item.RequiresBackup = requiresBackup != 0
		rec.Items = append(rec.Items, item)
		rec.Outcomes = append(rec.Outcomes, reconcile.Outcome(outcome))
	}
	return rec, rows.Err()
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*reconcile.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT run_id FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*reconcile.RunRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetRun(id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// SaveResolution records a conflict decision. One resolution per path; a new
// decision for the same path replaces the previous one.
func (s *Store) SaveResolution(res reconcile.Resolution) error {
	_, err := s.db.Exec(
		`INSERT INTO resolutions (path, local_digest, upstream_digest, choice, resolved_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   local_digest = excluded.local_digest,
		   upstream_digest = excluded.upstream_digest,
		   choice = excluded.choice,
		   resolved_at = excluded.resolved_at`,
		res.Path, string(res.Local), string(res.Upstream), string(res.Choice), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save resolution for %s: %w", res.Path, err)
	}
	return nil
}

// Resolutions returns all recorded conflict decisions keyed by path.
func (s *Store) Resolutions() (map[string]reconcile.Resolution, error) {
	rows, err := s.db.Query(`SELECT path, local_digest, upstream_digest, choice FROM resolutions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolutions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]reconcile.Resolution)
	for rows.Next() {
		var res reconcile.Resolution
		var local, upstream, choice string
		if err := rows.Scan(&res.Path, &local, &upstream, &choice); err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		res.Local = fingerprint.Fingerprint(local)
		res.Upstream = fingerprint.Fingerprint(upstream)
		res.Choice = reconcile.ResolutionChoice(choice)
		out[res.Path] = res
	}
	return out, rows.Err()
}

// DeleteResolution removes the recorded decision for path.
func (s *Store) DeleteResolution(path string) error {
	_, err := s.db.Exec(`DELETE FROM resolutions WHERE path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to delete resolution for %s: %w", path, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
