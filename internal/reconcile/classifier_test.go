package reconcile

import (
	"testing"

	"github.com/scaffsync/scaffsync/internal/fingerprint"
)

var (
	fpA = fingerprint.Bytes([]byte("content a"))
	fpB = fingerprint.Bytes([]byte("content b"))
	fpC = fingerprint.Bytes([]byte("content c"))
	gone = fingerprint.Absent
)

func TestClassifyPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		stored   fingerprint.Fingerprint
		local    fingerprint.Fingerprint
		upstream fingerprint.Fingerprint
		want     State
		tracked  bool
	}{
		{"absent everywhere", gone, gone, gone, 0, false},
		{"stale baseline only", fpA, gone, gone, 0, false},
		{"upstream only", gone, gone, fpA, StateNew, true},
		{"deleted locally, upstream offers", fpA, gone, fpA, StateOrphanedLocal, true},
		{"deleted locally, upstream moved on", fpA, gone, fpB, StateOrphanedLocal, true},
		{"local only, never synced", gone, fpA, gone, 0, false},
		{"adopted, content agrees", gone, fpA, fpA, StateUpstreamChanged, true},
		{"adopted, content differs", gone, fpA, fpB, StateConflict, true},
		{"all agree", fpA, fpA, fpA, StateUnchanged, true},
		{"upstream changed", fpA, fpA, fpB, StateUpstreamChanged, true},
		{"upstream retired, local clean", fpA, fpA, gone, StateOrphanedLocal, true},
		{"local edit, upstream unchanged", fpA, fpB, fpA, StateLocallyCustomized, true},
		{"local edit, upstream retired", fpA, fpB, gone, StateLocallyCustomized, true},
		{"both changed, divergent", fpA, fpB, fpC, StateConflict, true},
		{"both changed, coincide", fpA, fpB, fpB, StateUpstreamChanged, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, ok := Classify(TrackedFile{
				Path:     "prompts/x.prompt.md",
				Stored:   tt.stored,
				Local:    tt.local,
				Upstream: tt.upstream,
			})
			if ok != tt.tracked {
				t.Fatalf("tracked = %v, want %v", ok, tt.tracked)
			}
			if ok && state != tt.want {
				t.Errorf("state = %s, want %s", state, tt.want)
			}
		})
	}
}

// A local edit must never classify into a state that the sync policy maps to
// a destructive action, no matter what upstream does.
func TestLocalEditNeverDestructive(t *testing.T) {
	upstreams := []fingerprint.Fingerprint{gone, fpA, fpC}
	for _, up := range upstreams {
		state, ok := Classify(TrackedFile{Path: "f", Stored: fpA, Local: fpB, Upstream: up})
		if !ok {
			t.Fatalf("upstream=%s: file dropped from consideration", up.Short())
		}
		if state != StateLocallyCustomized && state != StateConflict {
			t.Errorf("upstream=%s: state = %s, want locally-customized or conflict", up.Short(), state)
		}
	}
}

func TestDeriveRole(t *testing.T) {
	tests := []struct {
		name string
		file TrackedFile
		want Role
	}{
		{"upstream offers it", TrackedFile{Local: fpA, Upstream: fpA}, RoleFramework},
		{"upstream only", TrackedFile{Upstream: fpA}, RoleFramework},
		{"once tracked, now retired", TrackedFile{Stored: fpA, Local: fpA}, RoleAmbiguous},
		{"local only", TrackedFile{Local: fpA}, RoleProject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveRole(tt.file); got != tt.want {
				t.Errorf("role = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyDeclutter(t *testing.T) {
	rules := CanonicalRules{
		PromptPatterns:    []string{"**/*.prompt.md"},
		PromptsRoot:       ".scaffsync/prompts",
		TransientPatterns: []string{"**/__pycache__/**", "**/*.tmp"},
	}
	// Pattern matcher stub: the real one lives in internal/scan.
	match := func(path, pattern string) bool {
		switch pattern {
		case "**/*.prompt.md":
			return len(path) > 10 && path[len(path)-10:] == ".prompt.md"
		case "**/__pycache__/**":
			return containsSegment(path, "__pycache__")
		case "**/*.tmp":
			return len(path) > 4 && path[len(path)-4:] == ".tmp"
		}
		return false
	}

	tests := []struct {
		name string
		file TrackedFile
		want DeclutterKind
		ok   bool
	}{
		{"misplaced prompt", TrackedFile{Path: "docs/old.prompt.md", Local: fpA}, DeclutterMove, true},
		{"prompt already canonical", TrackedFile{Path: ".scaffsync/prompts/ok.prompt.md", Local: fpA}, DeclutterNone, false},
		{"transient cache file", TrackedFile{Path: "src/__pycache__/mod.pyc", Local: fpA}, DeclutterDelete, true},
		{"tmp file", TrackedFile{Path: "scratch/notes.tmp", Local: fpA}, DeclutterDelete, true},
		{"unmatched project file", TrackedFile{Path: "src/main.go", Local: fpA}, DeclutterNone, false},
		{"tracked file ignored", TrackedFile{Path: "docs/old.prompt.md", Local: fpA, Stored: fpA}, DeclutterNone, false},
		{"upstream file ignored", TrackedFile{Path: "docs/old.prompt.md", Local: fpA, Upstream: fpB}, DeclutterNone, false},
		{"framework role ignored", TrackedFile{Path: "docs/old.prompt.md", Local: fpA, Role: RoleFramework}, DeclutterNone, false},
		{"missing local ignored", TrackedFile{Path: "docs/old.prompt.md"}, DeclutterNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := ClassifyDeclutter(tt.file, rules, match)
			if ok != tt.ok || kind != tt.want {
				t.Errorf("got (%v, %v), want (%v, %v)", kind, ok, tt.want, tt.ok)
			}
		})
	}
}

func containsSegment(path, seg string) bool {
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if path[start:i] == seg {
				return true
			}
			start = i + 1
		}
	}
	return false
}
