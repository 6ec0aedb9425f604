// Package reconcile implements the classification and planning core of the
// engine: it derives a reconciliation state for every tracked file from three
// independently-looked-up fingerprints and maps those states to an ordered,
// justified plan of proposed mutations. Nothing in this package touches the
// filesystem or the metadata store.
package reconcile

import (
	"time"

	"github.com/scaffsync/scaffsync/internal/fingerprint"
)

// Policy selects which plan mapping is in effect for a run.
type Policy string

const (
	// PolicySync reconciles the workspace against the upstream template tree.
	PolicySync Policy = "sync"
	// PolicyDeclutter relocates misplaced files to their canonical location.
	PolicyDeclutter Policy = "declutter"
)

// Mode is the confirmation mode of a run.
type Mode string

const (
	// ModeDryRun renders the plan and performs no mutation. The default.
	ModeDryRun Mode = "dry-run"
	// ModeInteractive requires an explicit approval token before executing.
	ModeInteractive Mode = "interactive"
	// ModeForce skips the approval wait but still honors Skip-Protected and
	// Ask items; only unambiguous actions are auto-applied.
	ModeForce Mode = "force"
)

// Role describes who owns a tracked file.
type Role string

const (
	RoleFramework Role = "framework-owned"
	RoleProject   Role = "project-owned"
	RoleAmbiguous Role = "ambiguous"
)

// TrackedFile is the per-run view of one path. Identities are discovered
// fresh every run; only fingerprints survive between runs, in the metadata
// store.
type TrackedFile struct {
	// Path is the identity: a slash-separated path relative to the workspace.
	Path string

	// Role describes ownership of the file.
	Role Role

	// Stored is the fingerprint at the last successful sync (Absent if never
	// synced). Local is the current on-disk fingerprint (Absent if missing).
	// Upstream is the fingerprint in the upstream tree (Absent if the file
	// does not exist upstream).
	Stored   fingerprint.Fingerprint
	Local    fingerprint.Fingerprint
	Upstream fingerprint.Fingerprint
}

// State is the derived classification of a TrackedFile for the current run.
// It is never persisted.
type State int

const (
	// StateNew: the file exists only upstream.
	StateNew State = iota
	// StateUnchanged: local, stored, and upstream all agree.
	StateUnchanged
	// StateUpstreamChanged: local matches stored, upstream differs.
	StateUpstreamChanged
	// StateLocallyCustomized: local differs from stored, upstream does not.
	StateLocallyCustomized
	// StateConflict: local and upstream both diverged from stored, and from
	// each other.
	StateConflict
	// StateOrphanedLocal: the stored baseline exists but one side deleted the
	// file (user deleted locally, or upstream retired it).
	StateOrphanedLocal
	// StateMisplaced: declutter only; the file sits under a non-canonical
	// root matching a classification rule.
	StateMisplaced
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUnchanged:
		return "unchanged"
	case StateUpstreamChanged:
		return "upstream-changed"
	case StateLocallyCustomized:
		return "locally-customized"
	case StateConflict:
		return "conflict"
	case StateOrphanedLocal:
		return "orphaned-local"
	case StateMisplaced:
		return "misplaced"
	default:
		return "unknown"
	}
}

// Action is a proposed mutation type.
type Action string

const (
	ActionAdd           Action = "add"
	ActionUpdate        Action = "update"
	ActionSkipProtected Action = "skip-protected"
	ActionAsk           Action = "ask"
	ActionDelete        Action = "delete"
	ActionMove          Action = "move"
)

// Destructive reports whether the action overwrites or removes existing
// bytes and therefore requires a backup snapshot entry before execution.
func (a Action) Destructive() bool {
	switch a {
	case ActionUpdate, ActionDelete, ActionMove:
		return true
	default:
		return false
	}
}

// PlanItem is one proposed mutation with its justification.
type PlanItem struct {
	Action          Action `json:"action"`
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	Reason          string `json:"reason"`
	RequiresBackup  bool   `json:"requires_backup"`
}

// Outcome records what happened to a plan item during execution.
type Outcome string

const (
	// OutcomePending: the item has not been attempted yet.
	OutcomePending Outcome = "pending"
	// OutcomeApplied: the item was executed successfully.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkippedByGate: the gate (or a halt) prevented execution.
	OutcomeSkippedByGate Outcome = "skipped-by-gate"
	// OutcomeFailed: the item's write failed; processing halted here.
	OutcomeFailed Outcome = "failed"
)

// RunRecord is the persisted record of one run: its plan and, after
// execution, the per-item outcomes.
type RunRecord struct {
	RunID      string     `json:"run_id"`
	Policy     Policy     `json:"policy"`
	Mode       Mode       `json:"mode"`
	Items      []PlanItem `json:"items"`
	Outcomes   []Outcome  `json:"outcomes"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
}

// ResolutionChoice is a recorded decision for a Conflict path.
// Resolutions are data, not control flow: a decision made in a later session
// is just another input to the next plan call.
type ResolutionChoice string

const (
	ResolutionKeepLocal    ResolutionChoice = "keep-local"
	ResolutionTakeUpstream ResolutionChoice = "take-upstream"
	ResolutionManual       ResolutionChoice = "resolved-manually"
)

// Resolution binds a choice to the exact divergent fingerprint pair it
// resolves. A resolution applies only while both sides still carry those
// fingerprints; any further edit re-opens the conflict.
type Resolution struct {
	Path     string
	Local    fingerprint.Fingerprint
	Upstream fingerprint.Fingerprint
	Choice   ResolutionChoice
}
