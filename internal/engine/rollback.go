package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/scaffsync/scaffsync/internal/backup"
	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/fingerprint"
)

// RollbackReport states exactly which paths a rollback restored. A halted
// rollback is never reported as success; FailedPath and Remaining name
// what was not restored.
type RollbackReport struct {
	RunID      string   `json:"run_id"`
	Restored   []string `json:"restored"`
	FailedPath string   `json:"failed_path,omitempty"`
	Remaining  []string `json:"remaining,omitempty"`
}

// Complete reports whether every snapshot entry was restored.
func (r *RollbackReport) Complete() bool {
	return r.FailedPath == "" && len(r.Remaining) == 0
}

// Rollback restores every path captured in the run's snapshot to its
// pre-run bytes: captured content is written back, and paths that did not
// exist before the run are removed. It halts on the first failed
// restoration. Metadata entries are restored to their pre-run values only
// after all file content is back.
func (e *Engine) Rollback(ctx context.Context, runID string) (*RollbackReport, error) {
	manifest, err := e.backups.Load(runID)
	if err != nil {
		return nil, err
	}

	lock, err := e.lock()
	if err != nil {
		return nil, err
	}
	defer func() { _ = lock.Release() }()

	report := &RollbackReport{RunID: runID}

	for i, entry := range manifest.Entries {
		if err := ctx.Err(); err != nil {
			report.FailedPath = entry.Path
			for _, rest := range manifest.Entries[i+1:] {
				report.Remaining = append(report.Remaining, rest.Path)
			}
			return report, err
		}

		if err := e.restoreEntry(runID, entry); err != nil {
			report.FailedPath = entry.Path
			for _, rest := range manifest.Entries[i+1:] {
				report.Remaining = append(report.Remaining, rest.Path)
			}
			e.log.Error("rollback halted",
				"run_id", runID, "path", entry.Path, "error", err)
			return report, errors.RollbackError(
				fmt.Sprintf("failed to restore %s; rollback halted", entry.Path), err)
		}
		report.Restored = append(report.Restored, entry.Path)
	}

	// File content is back; now restore the metadata baseline.
	for _, entry := range manifest.Entries {
		if entry.HadStored {
			if err := e.store.SetFingerprint(entry.Path,
				fingerprint.Fingerprint(entry.PriorStored), "rollback-"+runID); err != nil {
				return report, err
			}
			continue
		}
		if err := e.store.DeleteFingerprint(entry.Path); err != nil {
			return report, err
		}
	}

	e.log.Info("rollback complete", "run_id", runID, "restored", len(report.Restored))
	return report, nil
}

// restoreEntry puts one path back to its pre-run condition.
func (e *Engine) restoreEntry(runID string, entry backup.Entry) error {
	abs := e.localPath(entry.Path)

	if !entry.Existed {
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return err
		}
		e.hasher.Invalidate(abs)
		return nil
	}

	data, err := e.backups.Content(runID, entry)
	if err != nil {
		return err
	}
	return e.writeLocal(entry.Path, data)
}
