// Package gate implements the confirmation gate between planning and
// execution.
//
// Dry-run is the default and performs no writes. Interactive mode renders
// the plan and requires an explicit "yes" before anything mutates. Force
// mode skips the prompt but is only reachable through a stronger CLI
// signal, and even then protected and ask items are never executed.
package gate

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// Gate renders plans and collects confirmation.
type Gate struct {
	in     io.Reader
	out    io.Writer
	styles Styles
	tty    bool
}

// New creates a Gate writing to out and reading confirmations from in.
// Styling and interactivity follow whether out is a terminal.
func New(out io.Writer, in io.Reader) *Gate {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	styles := NoColorStyles()
	if tty {
		styles = DefaultStyles()
	}
	return &Gate{in: in, out: out, styles: styles, tty: tty}
}

// Render writes a human-readable view of the plan.
func (g *Gate) Render(record *reconcile.RunRecord) {
	s := g.styles
	fmt.Fprintln(g.out, s.Header.Render(fmt.Sprintf("Run %s (%s, %s)", record.RunID, record.Policy, record.Mode)))

	if len(record.Items) == 0 {
		fmt.Fprintln(g.out, s.Dim.Render("  nothing to do"))
		return
	}

	counts := make(map[reconcile.Action]int)
	for _, item := range record.Items {
		counts[item.Action]++
		fmt.Fprintf(g.out, "  %s %s%s\n",
			g.actionStyle(item.Action).Render(fmt.Sprintf("%-15s", item.Action)),
			item.SourcePath,
			g.destinationSuffix(item))
		if item.Reason != "" {
			fmt.Fprintf(g.out, "    %s\n", s.Dim.Render(item.Reason))
		}
	}

	var parts []string
	for _, action := range []reconcile.Action{
		reconcile.ActionAdd, reconcile.ActionUpdate, reconcile.ActionMove,
		reconcile.ActionDelete, reconcile.ActionSkipProtected, reconcile.ActionAsk,
	} {
		if n := counts[action]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, action))
		}
	}
	fmt.Fprintln(g.out, s.Summary.Render("Summary: "+strings.Join(parts, ", ")))
}

func (g *Gate) destinationSuffix(item reconcile.PlanItem) string {
	if item.Action == reconcile.ActionMove && item.DestinationPath != item.SourcePath {
		return " -> " + item.DestinationPath
	}
	return ""
}

func (g *Gate) actionStyle(action reconcile.Action) lipgloss.Style {
	switch action {
	case reconcile.ActionAdd:
		return g.styles.Add
	case reconcile.ActionUpdate, reconcile.ActionMove:
		return g.styles.Change
	case reconcile.ActionDelete:
		return g.styles.Delete
	case reconcile.ActionSkipProtected, reconcile.ActionAsk:
		return g.styles.Skip
	default:
		return g.styles.Dim
	}
}

// Confirm decides whether execution may proceed under the given mode.
// Dry-run never proceeds. Force proceeds without a prompt. Interactive
// renders a prompt and requires the literal token "yes"; anything else,
// including EOF, declines.
func (g *Gate) Confirm(mode reconcile.Mode, record *reconcile.RunRecord) (bool, error) {
	switch mode {
	case reconcile.ModeDryRun:
		fmt.Fprintln(g.out, g.styles.Dim.Render("Dry run: no changes were made. Re-run with --apply to execute."))
		return false, nil

	case reconcile.ModeForce:
		return true, nil

	case reconcile.ModeInteractive:
		if !g.tty && g.in == nil {
			return false, fmt.Errorf("interactive confirmation requires a terminal; use --force --yes for unattended runs")
		}
		fmt.Fprint(g.out, "Apply these changes? Type 'yes' to continue: ")
		reader := bufio.NewReader(g.in)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(g.out, g.styles.Dim.Render("Aborted."))
			return false, nil
		}
		if strings.TrimSpace(line) == "yes" {
			return true, nil
		}
		fmt.Fprintln(g.out, g.styles.Dim.Render("Aborted."))
		return false, nil

	default:
		return false, fmt.Errorf("unknown confirmation mode %q", mode)
	}
}
