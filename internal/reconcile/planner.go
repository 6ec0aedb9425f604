package reconcile

import (
	"fmt"
	"path"
	"sort"
)

// PlannerInput carries everything the planner needs for one run.
// The planner is side-effect-free: it never mutates the filesystem or the
// metadata store.
type PlannerInput struct {
	// Files is the classified population for this run, one entry per path.
	Files []TrackedFile

	// Policy selects the state-to-action mapping.
	Policy Policy

	// Resolutions are previously recorded conflict decisions, keyed by path.
	// A resolution is honored only if its fingerprint pair still matches.
	Resolutions map[string]Resolution

	// Rules drive the declutter policy. Ignored under sync.
	Rules CanonicalRules

	// Match evaluates a path against a canonical-location pattern.
	Match func(path, pattern string) bool

	// Denied is the denylist check. No plan item may ever name a denied
	// path; the scanner filters first and this is the final guarantee.
	Denied func(path string) bool
}

// Plan maps classified files to an ordered list of proposed actions.
// Items are emitted sorted by path for determinism, and Delete/Move items
// targeting the same destination are merged last-wins so no destination is
// written twice.
func Plan(in PlannerInput) []PlanItem {
	var items []PlanItem

	files := make([]TrackedFile, len(in.Files))
	copy(files, in.Files)
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	for _, f := range files {
		if in.Denied != nil && in.Denied(f.Path) {
			continue
		}

		var item *PlanItem
		switch in.Policy {
		case PolicyDeclutter:
			item = planDeclutter(f, in)
		default:
			item = planSync(f, in)
		}
		if item == nil {
			continue
		}
		if in.Denied != nil && item.DestinationPath != "" && in.Denied(item.DestinationPath) {
			continue
		}
		items = append(items, *item)
	}

	return mergeDestinations(items)
}

// planSync maps one sync-policy state to a plan item, or nil for no action.
func planSync(f TrackedFile, in PlannerInput) *PlanItem {
	state, ok := Classify(f)
	if !ok {
		return nil
	}

	switch state {
	case StateUnchanged:
		return nil

	case StateNew:
		return &PlanItem{
			Action:          ActionAdd,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason:          "new upstream file, not present locally",
		}

	case StateUpstreamChanged:
		item := &PlanItem{
			Action:          ActionUpdate,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			RequiresBackup:  true,
			Reason: fmt.Sprintf("upstream changed (stored %s, upstream %s)",
				f.Stored.Short(), f.Upstream.Short()),
		}
		if f.Local == f.Upstream {
			item.Reason = "local already matches new upstream content; baseline refresh only"
		}
		return item

	case StateLocallyCustomized:
		return &PlanItem{
			Action:          ActionSkipProtected,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason: fmt.Sprintf("local customization detected (stored %s, local %s); never overwritten",
				f.Stored.Short(), f.Local.Short()),
		}

	case StateConflict:
		if item := applyResolution(f, in.Resolutions); item != nil {
			return item
		}
		return &PlanItem{
			Action:          ActionAsk,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason: fmt.Sprintf("conflict: local %s and upstream %s both diverged from stored %s",
				f.Local.Short(), f.Upstream.Short(), f.Stored.Short()),
		}

	case StateOrphanedLocal:
		if f.Local.IsAbsent() {
			// Deleted by the user; upstream still offers it.
			return &PlanItem{
				Action:          ActionAdd,
				SourcePath:      f.Path,
				DestinationPath: f.Path,
				Reason:          "tracked file deleted locally; restoring from upstream",
			}
		}
		// Upstream retired the file. Removing local content is never
		// auto-resolved; only a recorded decision settles it.
		if item := applyResolution(f, in.Resolutions); item != nil {
			return item
		}
		return &PlanItem{
			Action:          ActionAsk,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason:          "upstream no longer provides this file; decide whether to keep or remove it",
		}
	}

	return nil
}

// applyResolution converts a still-valid recorded resolution into a plan
// item. It settles both divergence conflicts and upstream retirements;
// returns nil if no resolution applies, leaving the item as Ask.
func applyResolution(f TrackedFile, resolutions map[string]Resolution) *PlanItem {
	res, ok := resolutions[f.Path]
	if !ok {
		return nil
	}
	// A resolution binds to the exact fingerprint pair it resolved; any
	// further edit on either side re-opens the ask.
	if res.Local != f.Local || res.Upstream != f.Upstream {
		return nil
	}

	switch res.Choice {
	case ResolutionTakeUpstream:
		if f.Upstream.IsAbsent() {
			// Taking upstream's side of a retirement removes the local copy.
			return &PlanItem{
				Action:         ActionDelete,
				SourcePath:     f.Path,
				RequiresBackup: true,
				Reason:         "upstream retirement previously accepted: removing the local copy",
			}
		}
		return &PlanItem{
			Action:          ActionUpdate,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			RequiresBackup:  true,
			Reason:          "conflict previously resolved: take upstream",
		}
	case ResolutionKeepLocal:
		reason := "conflict previously resolved: keep local"
		if f.Upstream.IsAbsent() {
			reason = "upstream retirement previously declined: keeping the local copy"
		}
		return &PlanItem{
			Action:          ActionSkipProtected,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason:          reason,
		}
	case ResolutionManual:
		return &PlanItem{
			Action:          ActionSkipProtected,
			SourcePath:      f.Path,
			DestinationPath: f.Path,
			Reason:          "conflict previously resolved manually",
		}
	}
	return nil
}

// planDeclutter maps canonical-location rule matches to Move/Delete items.
func planDeclutter(f TrackedFile, in PlannerInput) *PlanItem {
	kind, ok := ClassifyDeclutter(f, in.Rules, in.Match)
	if !ok {
		return nil
	}

	switch kind {
	case DeclutterDelete:
		return &PlanItem{
			Action:         ActionDelete,
			SourcePath:     f.Path,
			RequiresBackup: true,
			Reason:         "transient file matching a cache pattern",
		}
	case DeclutterMove:
		dest := path.Join(in.Rules.PromptsRoot, path.Base(f.Path))
		return &PlanItem{
			Action:          ActionMove,
			SourcePath:      f.Path,
			DestinationPath: dest,
			RequiresBackup:  true,
			Reason:          fmt.Sprintf("prompt file outside its canonical root; belongs under %s", in.Rules.PromptsRoot),
		}
	}
	return nil
}

// mergeDestinations drops earlier Delete/Move items that share a destination
// with a later one, so a single destination is never written twice in one
// run. Last wins.
func mergeDestinations(items []PlanItem) []PlanItem {
	lastForDest := make(map[string]int)
	for i, item := range items {
		if item.Action != ActionDelete && item.Action != ActionMove {
			continue
		}
		key := item.DestinationPath
		if key == "" {
			key = item.SourcePath
		}
		lastForDest[key] = i
	}

	out := items[:0]
	for i, item := range items {
		if item.Action == ActionDelete || item.Action == ActionMove {
			key := item.DestinationPath
			if key == "" {
				key = item.SourcePath
			}
			if lastForDest[key] != i {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}
