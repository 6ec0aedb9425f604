package reconcile

// Classify derives the reconciliation state of a tracked file under the sync
// policy from its three optional fingerprints. The second return value is
// false when the file is not under consideration for this run.
//
// The precedence below is the central correctness contract of the engine:
// a local edit is never classified into a state that maps to a destructive
// action, and simultaneous upstream-and-local change always classifies as
// Conflict. First match wins.
func Classify(f TrackedFile) (State, bool) {
	stored := f.Stored
	local := f.Local
	upstream := f.Upstream

	switch {
	// Nothing on disk and nothing upstream: not under consideration, even if
	// a stale baseline lingers in the metadata store.
	case upstream.IsAbsent() && local.IsAbsent():
		return 0, false

	// Upstream-only file, never seen before.
	case !upstream.IsAbsent() && local.IsAbsent() && stored.IsAbsent():
		return StateNew, true

	// Baseline exists, user deleted the local copy, upstream still offers it.
	case local.IsAbsent() && !stored.IsAbsent() && !upstream.IsAbsent():
		return StateOrphanedLocal, true

	// Local-only file that was never synced and has no upstream counterpart:
	// project-owned, not the sync policy's business. The declutter policy
	// evaluates these against canonical-location rules instead.
	case !local.IsAbsent() && stored.IsAbsent() && upstream.IsAbsent():
		return 0, false

	// Never synced but present on both sides (file adopted mid-flight).
	case stored.IsAbsent() && !local.IsAbsent() && !upstream.IsAbsent():
		if local == upstream {
			// Content already agrees; only the baseline needs recording.
			return StateUpstreamChanged, true
		}
		// No baseline to arbitrate with: never auto-resolve.
		return StateConflict, true

	// All three agree.
	case local == stored && upstream == stored:
		return StateUnchanged, true

	// Clean local copy, upstream moved ahead.
	case local == stored && !upstream.IsAbsent() && upstream != stored:
		return StateUpstreamChanged, true

	// Clean local copy, upstream retired the file.
	case local == stored && upstream.IsAbsent():
		return StateOrphanedLocal, true

	// Local edit, upstream unchanged (or gone): always protected.
	case local != stored && (upstream == stored || upstream.IsAbsent()):
		return StateLocallyCustomized, true

	// Both sides changed but happen to agree: no write needed, the baseline
	// is simply refreshed to the shared content.
	case local != stored && upstream != stored && local == upstream:
		return StateUpstreamChanged, true

	// Both sides diverged from the baseline and from each other.
	case local != stored && upstream != stored && local != upstream:
		return StateConflict, true
	}

	// The cases above are exhaustive; if a combination ever falls through,
	// treat it as Conflict rather than silently passing it.
	return StateConflict, true
}

// DeriveRole assigns ownership of a tracked file from where it is known.
// A file the upstream tree offers is framework-owned; a file the framework
// once tracked but no longer offers is ambiguous; everything else belongs
// to the project.
func DeriveRole(f TrackedFile) Role {
	switch {
	case !f.Upstream.IsAbsent():
		return RoleFramework
	case !f.Stored.IsAbsent():
		return RoleAmbiguous
	default:
		return RoleProject
	}
}

// CanonicalRules drive the declutter policy's classification of files that
// were never synced and have no upstream counterpart.
type CanonicalRules struct {
	// PromptPatterns match prompt files that belong under PromptsRoot.
	PromptPatterns []string
	// PromptsRoot is the canonical directory for prompt files.
	PromptsRoot string
	// TransientPatterns match cache/transient files that should be deleted
	// rather than moved.
	TransientPatterns []string
}

// DeclutterKind is the outcome of a canonical-location rule match.
type DeclutterKind int

const (
	// DeclutterNone: the file matches no rule; no state is derived.
	DeclutterNone DeclutterKind = iota
	// DeclutterMove: the file belongs under the canonical root.
	DeclutterMove
	// DeclutterDelete: the file is transient and should be removed.
	DeclutterDelete
)

// ClassifyDeclutter evaluates a path against the canonical-location rules.
// Only project-owned files are eligible; anything the framework owns or
// once tracked is the sync policy's concern.
func ClassifyDeclutter(f TrackedFile, rules CanonicalRules, match func(path, pattern string) bool) (DeclutterKind, bool) {
	role := f.Role
	if role == "" {
		role = DeriveRole(f)
	}
	if f.Local.IsAbsent() || role != RoleProject {
		return DeclutterNone, false
	}

	for _, pattern := range rules.TransientPatterns {
		if match(f.Path, pattern) {
			return DeclutterDelete, true
		}
	}

	for _, pattern := range rules.PromptPatterns {
		if match(f.Path, pattern) {
			if insideRoot(f.Path, rules.PromptsRoot) {
				return DeclutterNone, false
			}
			return DeclutterMove, true
		}
	}

	return DeclutterNone, false
}

// insideRoot reports whether path already lives under root.
func insideRoot(path, root string) bool {
	if root == "" {
		return false
	}
	return len(path) > len(root) && path[:len(root)] == root && path[len(root)] == '/'
}
