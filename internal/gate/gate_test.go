package gate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scaffsync/scaffsync/internal/reconcile"
)

func testRecord() *reconcile.RunRecord {
	return &reconcile.RunRecord{
		RunID:  "20260829-120000-000001",
		Policy: reconcile.PolicySync,
		Mode:   reconcile.ModeDryRun,
		Items: []reconcile.PlanItem{
			{Action: reconcile.ActionAdd, SourcePath: "a.md", DestinationPath: "a.md", Reason: "new upstream file"},
			{Action: reconcile.ActionUpdate, SourcePath: "b.md", DestinationPath: "b.md", Reason: "upstream changed", RequiresBackup: true},
			{Action: reconcile.ActionMove, SourcePath: "docs/x.prompt.md", DestinationPath: ".scaffsync/prompts/x.prompt.md", RequiresBackup: true},
		},
	}
}

func TestRenderListsItemsAndSummary(t *testing.T) {
	var out bytes.Buffer
	g := New(&out, nil)
	g.Render(testRecord())

	text := out.String()
	assert.Contains(t, text, "a.md")
	assert.Contains(t, text, "new upstream file")
	assert.Contains(t, text, "docs/x.prompt.md -> .scaffsync/prompts/x.prompt.md")
	assert.Contains(t, text, "Summary: 1 add, 1 update, 1 move")
}

func TestRenderEmptyPlan(t *testing.T) {
	var out bytes.Buffer
	g := New(&out, nil)
	g.Render(&reconcile.RunRecord{RunID: "r", Policy: reconcile.PolicySync, Mode: reconcile.ModeDryRun})
	assert.Contains(t, out.String(), "nothing to do")
}

func TestConfirmDryRunNeverProceeds(t *testing.T) {
	var out bytes.Buffer
	g := New(&out, strings.NewReader("yes\n"))

	ok, err := g.Confirm(reconcile.ModeDryRun, testRecord())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "Dry run")
}

func TestConfirmInteractiveRequiresExactToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes proceeds", "yes\n", true},
		{"yes with whitespace proceeds", "  yes  \n", true},
		{"y declines", "y\n", false},
		{"YES declines", "YES\n", false},
		{"empty declines", "\n", false},
		{"eof declines", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			g := New(&out, strings.NewReader(tt.input))
			ok, err := g.Confirm(reconcile.ModeInteractive, testRecord())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestConfirmForceSkipsPrompt(t *testing.T) {
	var out bytes.Buffer
	// No input reader at all: force must not read anything.
	g := New(&out, nil)

	ok, err := g.Confirm(reconcile.ModeForce, testRecord())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, out.String(), "Type 'yes'")
}
