// Package engine orchestrates a full reconciliation run: scan both
// populations, fingerprint them, classify, plan, and (behind the
// confirmation gate) execute with snapshot-backed rollback.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/scaffsync/scaffsync/internal/backup"
	"github.com/scaffsync/scaffsync/internal/config"
	"github.com/scaffsync/scaffsync/internal/errors"
	"github.com/scaffsync/scaffsync/internal/fingerprint"
	"github.com/scaffsync/scaffsync/internal/reconcile"
	"github.com/scaffsync/scaffsync/internal/runlock"
	"github.com/scaffsync/scaffsync/internal/scan"
	"github.com/scaffsync/scaffsync/internal/state"
)

// Engine ties the scanner, hasher, classifier, planner, metadata store,
// and backup store together for one project.
type Engine struct {
	root     string
	upstream string
	cfg      *config.Config
	store    *state.Store
	backups  *backup.Store
	hasher   *fingerprint.Hasher
	scanner  *scan.Scanner
	log      *slog.Logger
}

// New creates an Engine for the project rooted at root.
func New(root string, cfg *config.Config, store *state.Store, log *slog.Logger) (*Engine, error) {
	hasher, err := fingerprint.NewHasher()
	if err != nil {
		return nil, err
	}

	denylist := append(append([]string{}, scan.DefaultDenylist...), cfg.Scan.Denylist...)
	return &Engine{
		root:     root,
		upstream: cfg.UpstreamDir(root),
		cfg:      cfg,
		store:    store,
		backups:  backup.New(filepath.Join(config.DataDir(root), "backups")),
		hasher:   hasher,
		scanner: scan.New(root, scan.Options{
			Roots:    cfg.Scan.Roots,
			Denylist: denylist,
		}),
		log: log,
	}, nil
}

// Plan scans both populations, classifies every path, and persists a new
// run record holding the resulting plan. No mutation happens here.
func (e *Engine) Plan(ctx context.Context, policy reconcile.Policy, mode reconcile.Mode) (*reconcile.RunRecord, error) {
	startedAt := time.Now().UTC()

	localPaths, err := e.scanner.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var upstreamPaths []string
	if policy == reconcile.PolicySync {
		upstreamScanner := scan.New(e.upstream, scan.Options{
			Roots:    []string{"."},
			Denylist: append(append([]string{}, scan.DefaultDenylist...), e.cfg.Scan.Denylist...),
		})
		upstreamPaths, err = upstreamScanner.Scan(ctx)
		if err != nil {
			return nil, err
		}
	}

	stored, err := e.store.AllFingerprints()
	if err != nil {
		return nil, err
	}

	// The population is the union of everything any side knows about.
	// Identities never come from similarity; a path either matches or it
	// is a different file.
	union := make(map[string]struct{}, len(localPaths)+len(upstreamPaths)+len(stored))
	for _, p := range localPaths {
		union[p] = struct{}{}
	}
	for _, p := range upstreamPaths {
		union[p] = struct{}{}
	}
	for p := range stored {
		union[p] = struct{}{}
	}
	paths := make([]string, 0, len(union))
	for p := range union {
		paths = append(paths, p)
	}

	localFPs, err := e.hasher.HashAll(ctx, e.root, paths)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeFileUnreadable, err)
	}
	upstreamFPs := map[string]fingerprint.Fingerprint{}
	if policy == reconcile.PolicySync {
		upstreamFPs, err = e.hasher.HashAll(ctx, e.upstream, paths)
		if err != nil {
			return nil, errors.New(errors.ErrCodeUpstreamRead, "failed to fingerprint upstream tree", err)
		}
	}

	files := make([]reconcile.TrackedFile, 0, len(paths))
	for _, p := range paths {
		f := reconcile.TrackedFile{
			Path:     p,
			Stored:   stored[p],
			Local:    localFPs[p],
			Upstream: upstreamFPs[p],
		}
		f.Role = reconcile.DeriveRole(f)
		files = append(files, f)
	}

	var resolutions map[string]reconcile.Resolution
	if e.cfg.Resolutions.Remember {
		resolutions, err = e.store.Resolutions()
		if err != nil {
			return nil, err
		}
	}

	items := reconcile.Plan(reconcile.PlannerInput{
		Files:       files,
		Policy:      policy,
		Resolutions: resolutions,
		Rules: reconcile.CanonicalRules{
			PromptPatterns:    e.cfg.Canonical.PromptPatterns,
			PromptsRoot:       e.cfg.Canonical.PromptsRoot,
			TransientPatterns: e.cfg.Canonical.TransientPatterns,
		},
		Match:  scan.MatchPath,
		Denied: e.scanner.Denied,
	})

	record := &reconcile.RunRecord{
		RunID:     newRunID(startedAt),
		Policy:    policy,
		Mode:      mode,
		Items:     items,
		Outcomes:  make([]reconcile.Outcome, len(items)),
		StartedAt: startedAt,
	}
	for i := range record.Outcomes {
		record.Outcomes[i] = reconcile.OutcomePending
	}

	if err := e.store.CreateRun(record); err != nil {
		return nil, err
	}

	e.log.Info("plan created",
		"run_id", record.RunID,
		"policy", string(policy),
		"mode", string(mode),
		"items", len(items))
	return record, nil
}

// Resolve records a conflict decision for path against its current local
// and upstream fingerprints. The decision is consumed by the next plan.
func (e *Engine) Resolve(ctx context.Context, path string, choice reconcile.ResolutionChoice) error {
	local, err := e.hasher.File(filepath.Join(e.root, filepath.FromSlash(path)))
	if err != nil {
		return err
	}
	upstream, err := e.hasher.File(filepath.Join(e.upstream, filepath.FromSlash(path)))
	if err != nil {
		return err
	}

	if err := e.store.SaveResolution(reconcile.Resolution{
		Path:     path,
		Local:    local,
		Upstream: upstream,
		Choice:   choice,
	}); err != nil {
		return err
	}
	e.log.Info("resolution recorded", "path", path, "choice", string(choice))
	return nil
}

// ClearResolution removes the recorded decision for path, so the next plan
// raises the ask again.
func (e *Engine) ClearResolution(path string) error {
	if err := e.store.DeleteResolution(path); err != nil {
		return err
	}
	e.log.Info("resolution cleared", "path", path)
	return nil
}

// Runs returns the most recent run records, newest first.
func (e *Engine) Runs(limit int) ([]*reconcile.RunRecord, error) {
	return e.store.ListRuns(limit)
}

// Run returns one run record by id.
func (e *Engine) Run(runID string) (*reconcile.RunRecord, error) {
	return e.store.GetRun(runID)
}

// lock acquires the project run lock.
func (e *Engine) lock() (*runlock.Lock, error) {
	l := runlock.New(config.DataDir(e.root))
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return l, nil
}

// newRunID derives a sortable run identifier from the start time.
func newRunID(t time.Time) string {
	return fmt.Sprintf("%s-%06d", t.Format("20060102-150405"), t.Nanosecond()/1000)
}
