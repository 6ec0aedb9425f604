// Package backup implements the pre-mutation snapshot store.
//
// Before the executor performs the first destructive write of a run, the
// byte content of every path the run will touch is captured under a
// timestamped run directory and durably persisted. Paths that do not exist
// yet are recorded as such, which rollback interprets as "delete on
// rollback". A snapshot is sealed once its run completes or aborts and is
// immutable afterwards.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/fingerprint"
)

const (
	// manifestName is the per-run manifest file.
	manifestName = "manifest.json"
	// contentDir holds the captured file contents within a run directory.
	contentDir = "files"
)

// Entry records the pre-run condition of one touched path.
type Entry struct {
	// Path is the workspace-relative path.
	Path string `json:"path"`

	// Existed is false when the path did not exist before the run.
	// Rollback then removes the path instead of restoring content.
	Existed bool `json:"existed"`

	// ContentFile is the capture file under files/, empty when !Existed.
	ContentFile string `json:"content_file,omitempty"`

	// HadStored/PriorStored preserve the metadata store's fingerprint for
	// the path as it was before the run, so rollback can restore it.
	HadStored   bool   `json:"had_stored"`
	PriorStored string `json:"prior_stored,omitempty"`
}

// Manifest describes one run's snapshot.
type Manifest struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Sealed    bool      `json:"sealed"`
	Entries   []Entry   `json:"entries"`
}

// Entry returns the snapshot entry for path, if present.
func (m *Manifest) Entry(path string) (Entry, bool) {
	for _, e := range m.Entries {
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// Store manages per-run snapshots under a backup directory.
type Store struct {
	dir string
}

// New creates a Store rooted at dir (typically .scaffsync/backups).
func New(dir string) *Store {
	return &Store{dir: dir}
}

// PriorState describes the pre-run condition the engine knows for a path.
type PriorState struct {
	HadStored   bool
	PriorStored fingerprint.Fingerprint
}

// Snapshot captures the current content of every listed workspace path and
// durably persists the manifest. It must complete before the first
// destructive write of the run; the executor verifies per-path entries
// against the returned manifest before every write.
func (s *Store) Snapshot(runID, workspace string, paths []string, prior map[string]PriorState) (*Manifest, error) {
	if existing, err := s.Load(runID); err == nil && existing.Sealed {
		return nil, errors.New(errors.ErrCodeSnapshotSealed,
			fmt.Sprintf("snapshot for run %s is sealed; a completed run cannot be re-captured", runID), nil)
	}

	runDir := filepath.Join(s.dir, runID)
	filesDir := filepath.Join(runDir, contentDir)
	if err := os.MkdirAll(filesDir, 0o755); err != nil {
		return nil, errors.BackupError("failed to create snapshot directory", err)
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	m := &Manifest{
		RunID:     runID,
		CreatedAt: time.Now().UTC(),
	}

	seen := make(map[string]struct{}, len(sorted))
	for i, rel := range sorted {
		if _, dup := seen[rel]; dup {
			continue
		}
		seen[rel] = struct{}{}

		entry := Entry{Path: rel}
		if p, ok := prior[rel]; ok {
			entry.HadStored = p.HadStored
			entry.PriorStored = string(p.PriorStored)
		}

		data, err := os.ReadFile(filepath.Join(workspace, filepath.FromSlash(rel)))
		if os.IsNotExist(err) {
			// Recorded as "did not exist"; rollback deletes the path.
			m.Entries = append(m.Entries, entry)
			continue
		}
		if err != nil {
			return nil, errors.BackupError(fmt.Sprintf("failed to read %s for snapshot", rel), err)
		}

		entry.Existed = true
		entry.ContentFile = fmt.Sprintf("%04d.bak", i)
		if err := writeDurable(filepath.Join(filesDir, entry.ContentFile), data); err != nil {
			return nil, errors.BackupError(fmt.Sprintf("failed to capture %s", rel), err)
		}
		m.Entries = append(m.Entries, entry)
	}

	if err := s.writeManifest(runDir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Seal marks the run's snapshot immutable. Called when the run completes or
// aborts.
func (s *Store) Seal(runID string) error {
	runDir := filepath.Join(s.dir, runID)
	m, err := s.Load(runID)
	if err != nil {
		return err
	}
	if m.Sealed {
		return nil
	}
	m.Sealed = true
	return s.writeManifest(runDir, m)
}

// Load reads the manifest for runID.
func (s *Store) Load(runID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, runID, manifestName))
	if os.IsNotExist(err) {
		return nil, errors.New(errors.ErrCodeSnapshotMissing,
			fmt.Sprintf("no snapshot for run %s", runID), err)
	}
	if err != nil {
		return nil, errors.BackupError("failed to read snapshot manifest", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.BackupError("failed to parse snapshot manifest", err)
	}
	return &m, nil
}

// Content returns the captured pre-run bytes for an entry that existed.
func (s *Store) Content(runID string, entry Entry) ([]byte, error) {
	if !entry.Existed {
		return nil, fmt.Errorf("path %s did not exist before run %s", entry.Path, runID)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, runID, contentDir, entry.ContentFile))
	if err != nil {
		return nil, errors.BackupError(fmt.Sprintf("failed to read captured content for %s", entry.Path), err)
	}
	return data, nil
}

// Prune removes snapshots older than the retention window. The newest
// keepMin snapshots are always retained regardless of age.
func (s *Store) Prune(retention time.Duration, keepMin int) error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list backup directory: %w", err)
	}

	var runIDs []string
	for _, e := range entries {
		if e.IsDir() {
			runIDs = append(runIDs, e.Name())
		}
	}
	// Run ids are timestamp-derived, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(runIDs)))

	cutoff := time.Now().Add(-retention)
	for i, id := range runIDs {
		if i < keepMin {
			continue
		}
		m, err := s.Load(id)
		if err != nil {
			continue // Unreadable manifests are left in place for inspection
		}
		if m.CreatedAt.Before(cutoff) {
			if err := os.RemoveAll(filepath.Join(s.dir, id)); err != nil {
				return fmt.Errorf("failed to prune snapshot %s: %w", id, err)
			}
		}
	}
	return nil
}

// writeManifest persists the manifest atomically and durably.
func (s *Store) writeManifest(runDir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.BackupError("failed to marshal snapshot manifest", err)
	}
	if err := writeDurable(filepath.Join(runDir, manifestName), data); err != nil {
		return errors.BackupError("failed to persist snapshot manifest", err)
	}
	return nil
}

// writeDurable writes data via temp file, fsync, and rename so the content
// is on disk before the caller proceeds.
func writeDurable(path string, data []byte) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", tmp, err)
	}
	return nil
}
