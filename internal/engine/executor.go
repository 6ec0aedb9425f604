package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scaffsync/scaffsync/internal/backup"
	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// Apply executes a previously planned run under the exclusive run lock.
//
// Before the first destructive write, every path the run will touch is
// snapshotted; each destructive write re-verifies its snapshot entry.
// Execution is fail-fast: the first failed write marks its item Failed,
// every later item SkippedByGate, and returns. Metadata reflects exactly
// the items that were applied. Ask and Skip-Protected items are never
// executed, in any mode.
func (e *Engine) Apply(ctx context.Context, record *reconcile.RunRecord) error {
	lock, err := e.lock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	if len(record.Outcomes) != len(record.Items) {
		record.Outcomes = make([]reconcile.Outcome, len(record.Items))
		for i := range record.Outcomes {
			record.Outcomes[i] = reconcile.OutcomePending
		}
	}

	manifest, err := e.snapshotRun(record)
	if err != nil {
		// Fatal: nothing has been written yet, and nothing will be.
		e.finishRun(record)
		return err
	}

	var haltErr error
	for i, item := range record.Items {
		if haltErr != nil || ctx.Err() != nil {
			e.setOutcome(record, i, reconcile.OutcomeSkippedByGate)
			continue
		}

		switch item.Action {
		case reconcile.ActionAsk, reconcile.ActionSkipProtected:
			e.setOutcome(record, i, reconcile.OutcomeSkippedByGate)
			continue
		}

		if err := e.applyItem(item, manifest); err != nil {
			e.log.Error("item failed, halting run",
				"run_id", record.RunID, "path", item.SourcePath,
				"category", string(errors.GetCategory(err)), "error", err)
			e.setOutcome(record, i, reconcile.OutcomeFailed)
			haltErr = err
			continue
		}

		if err := e.updateMetadata(item, record.RunID); err != nil {
			e.setOutcome(record, i, reconcile.OutcomeFailed)
			haltErr = err
			continue
		}
		e.setOutcome(record, i, reconcile.OutcomeApplied)
	}

	e.finishRun(record)
	if manifest != nil {
		if err := e.backups.Seal(record.RunID); err != nil {
			e.log.Warn("failed to seal snapshot", "run_id", record.RunID, "error", err)
		}
		retention := time.Duration(e.cfg.Backup.RetentionDays) * 24 * time.Hour
		if err := e.backups.Prune(retention, e.cfg.Backup.KeepMin); err != nil {
			e.log.Warn("failed to prune old snapshots", "error", err)
		}
	}

	if haltErr == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return haltErr
}

// snapshotRun captures every path the run will touch. Returns nil when the
// run has no mutating items at all.
func (e *Engine) snapshotRun(record *reconcile.RunRecord) (*backup.Manifest, error) {
	var paths []string
	for _, item := range record.Items {
		switch item.Action {
		case reconcile.ActionAdd, reconcile.ActionUpdate, reconcile.ActionDelete:
			paths = append(paths, item.SourcePath)
		case reconcile.ActionMove:
			paths = append(paths, item.SourcePath, item.DestinationPath)
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	prior := make(map[string]backup.PriorState, len(paths))
	for _, p := range paths {
		fp, ok, err := e.store.Fingerprint(p)
		if err != nil {
			return nil, err
		}
		prior[p] = backup.PriorState{HadStored: ok, PriorStored: fp}
	}

	manifest, err := e.backups.Snapshot(record.RunID, e.root, paths, prior)
	if err != nil {
		return nil, err
	}
	e.log.Info("snapshot captured", "run_id", record.RunID, "paths", len(manifest.Entries))
	return manifest, nil
}

// applyItem performs one mutation, verifying the snapshot invariant first
// for destructive actions.
func (e *Engine) applyItem(item reconcile.PlanItem, manifest *backup.Manifest) error {
	if item.RequiresBackup {
		if manifest == nil {
			return errors.BackupError(
				fmt.Sprintf("no snapshot exists for destructive write to %s", item.SourcePath), nil)
		}
		if _, ok := manifest.Entry(item.SourcePath); !ok {
			return errors.BackupError(
				fmt.Sprintf("snapshot has no entry for %s; refusing to write", item.SourcePath), nil)
		}
		if item.Action == reconcile.ActionMove {
			if _, ok := manifest.Entry(item.DestinationPath); !ok {
				return errors.BackupError(
					fmt.Sprintf("snapshot has no entry for move destination %s; refusing to write", item.DestinationPath), nil)
			}
		}
	}

	switch item.Action {
	case reconcile.ActionAdd, reconcile.ActionUpdate:
		data, err := os.ReadFile(filepath.Join(e.upstream, filepath.FromSlash(item.SourcePath)))
		if err != nil {
			return errors.New(errors.ErrCodeUpstreamRead,
				fmt.Sprintf("failed to read upstream content for %s", item.SourcePath), err)
		}
		if err := e.writeLocal(item.DestinationPath, data); err != nil {
			return err
		}

	case reconcile.ActionDelete:
		if err := os.Remove(e.localPath(item.SourcePath)); err != nil && !os.IsNotExist(err) {
			return errors.WriteError(fmt.Sprintf("failed to delete %s", item.SourcePath), err)
		}

	case reconcile.ActionMove:
		data, err := os.ReadFile(e.localPath(item.SourcePath))
		if err != nil {
			return errors.WriteError(fmt.Sprintf("failed to read %s for move", item.SourcePath), err)
		}
		if err := e.writeLocal(item.DestinationPath, data); err != nil {
			return err
		}
		if err := os.Remove(e.localPath(item.SourcePath)); err != nil {
			return errors.WriteError(fmt.Sprintf("failed to remove %s after move", item.SourcePath), err)
		}

	default:
		return errors.InternalError(fmt.Sprintf("unexpected action %q reached the executor", item.Action), nil)
	}
	return nil
}

// updateMetadata records the post-item stored fingerprint, immediately
// after the item applies. A later halt must not lose earlier items.
func (e *Engine) updateMetadata(item reconcile.PlanItem, runID string) error {
	switch item.Action {
	case reconcile.ActionAdd, reconcile.ActionUpdate:
		fp, err := e.hasher.File(e.localPath(item.DestinationPath))
		if err != nil {
			return err
		}
		return e.store.SetFingerprint(item.DestinationPath, fp, runID)

	case reconcile.ActionDelete:
		return e.store.DeleteFingerprint(item.SourcePath)

	case reconcile.ActionMove:
		// Decluttered files were never tracked; moving one does not
		// adopt it into the baseline.
		return nil
	}
	return nil
}

func (e *Engine) localPath(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// writeLocal writes data to a workspace path atomically via temp+rename.
func (e *Engine) writeLocal(rel string, data []byte) error {
	abs := e.localPath(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.WriteError(fmt.Sprintf("failed to create parent directory for %s", rel), err)
	}

	tmp := abs + ".scaffsync-tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.WriteError(fmt.Sprintf("failed to stage write for %s", rel), err)
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return errors.WriteError(fmt.Sprintf("failed to commit write for %s", rel), err)
	}
	e.hasher.Invalidate(abs)
	return nil
}

func (e *Engine) setOutcome(record *reconcile.RunRecord, i int, outcome reconcile.Outcome) {
	record.Outcomes[i] = outcome
	if err := e.store.SetItemOutcome(record.RunID, i, outcome); err != nil {
		e.log.Warn("failed to persist item outcome",
			"run_id", record.RunID, "seq", i, "error", err)
	}
}

func (e *Engine) finishRun(record *reconcile.RunRecord) {
	record.FinishedAt = time.Now().UTC()
	if err := e.store.FinishRun(record.RunID, record.FinishedAt); err != nil {
		e.log.Warn("failed to mark run finished", "run_id", record.RunID, "error", err)
	}

	counts := make(map[reconcile.Outcome]int)
	for _, o := range record.Outcomes {
		counts[o]++
	}
	e.log.Info("run finished",
		"run_id", record.RunID,
		"applied", counts[reconcile.OutcomeApplied],
		"skipped", counts[reconcile.OutcomeSkippedByGate],
		"failed", counts[reconcile.OutcomeFailed])
}
