package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/gate"
	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// newSyncCmd creates the sync command.
func newSyncCmd() *cobra.Command {
	var apply, force, yes bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the workspace against the upstream template",
		Long: `Sync compares every tracked file's stored, local, and upstream
fingerprints, then proposes additions, updates, skips for locally
customized files, and asks for conflicts.

Without flags this is a dry run. --apply prompts for confirmation;
--force --yes applies without prompting (protected and conflicted files
are still never touched).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPolicy(cmd, reconcile.PolicySync, apply, force, yes)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the plan after interactive confirmation")
	cmd.Flags().BoolVar(&force, "force", false, "Apply without prompting (requires --yes)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm non-interactive apply")

	return cmd
}

// newDeclutterCmd creates the declutter command.
func newDeclutterCmd() *cobra.Command {
	var apply, force, yes bool

	cmd := &cobra.Command{
		Use:   "declutter",
		Short: "Move misplaced framework files to their canonical location",
		Long: `Declutter finds untracked files matching the canonical-location
rules: recognized prompt files outside their home are moved there, and
transient artifacts are deleted. Tracked files are never candidates.

Without flags this is a dry run, like sync.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPolicy(cmd, reconcile.PolicyDeclutter, apply, force, yes)
		},
	}

	cmd.Flags().BoolVar(&apply, "apply", false, "Apply the plan after interactive confirmation")
	cmd.Flags().BoolVar(&force, "force", false, "Apply without prompting (requires --yes)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm non-interactive apply")

	return cmd
}

// runPolicy plans and, gated by the chosen mode, applies one run.
func runPolicy(cmd *cobra.Command, policy reconcile.Policy, apply, force, yes bool) error {
	mode, err := deriveMode(apply, force, yes)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.cleanup()

	record, err := a.engine.Plan(cmd.Context(), policy, mode)
	if err != nil {
		return err
	}

	g := gate.New(cmd.OutOrStdout(), cmd.InOrStdin())
	g.Render(record)

	proceed, err := g.Confirm(mode, record)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	if err := a.engine.Apply(cmd.Context(), record); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s halted: %v\n", record.RunID, err)
		fmt.Fprintf(cmd.OutOrStdout(), "Roll back with: scaffsync rollback %s\n", record.RunID)
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s complete.\n", record.RunID)
	return nil
}

// deriveMode maps the flag combination to a confirmation mode. Force
// needs the extra --yes so a lone --force can never mutate anything.
func deriveMode(apply, force, yes bool) (reconcile.Mode, error) {
	if force {
		if !yes {
			return "", fmt.Errorf("--force requires --yes to confirm non-interactive apply")
		}
		return reconcile.ModeForce, nil
	}
	if apply {
		return reconcile.ModeInteractive, nil
	}
	return reconcile.ModeDryRun, nil
}
