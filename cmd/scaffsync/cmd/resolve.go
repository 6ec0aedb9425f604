package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// newResolveCmd creates the resolve command.
func newResolveCmd() *cobra.Command {
	var keepLocal, takeUpstream, manual, clear bool

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Record a decision for a conflicted file",
		Long: `Resolve records your decision for a path that sync reported as a
conflict. The decision binds to the exact local and upstream
fingerprints at the moment you record it; if either side changes
afterwards, the conflict re-opens.

The next sync consumes the decision: --keep-local plans a protected
skip, --take-upstream plans an update, --manual marks the conflict as
handled by hand. --clear removes a recorded decision so the next sync
asks again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if clear {
				if keepLocal || takeUpstream || manual {
					return fmt.Errorf("--clear cannot be combined with a decision flag")
				}
				a, err := newApp()
				if err != nil {
					return err
				}
				defer a.cleanup()

				if err := a.engine.ClearResolution(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared the recorded decision for %s. The next sync will ask again.\n", args[0])
				return nil
			}

			choice, err := deriveChoice(keepLocal, takeUpstream, manual)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			if err := a.engine.Resolve(cmd.Context(), args[0], choice); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s. The next sync will use it.\n", choice, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepLocal, "keep-local", false, "Keep the local content; never take this upstream version")
	cmd.Flags().BoolVar(&takeUpstream, "take-upstream", false, "Replace local content with this upstream version")
	cmd.Flags().BoolVar(&manual, "manual", false, "Mark the conflict as resolved by hand")
	cmd.Flags().BoolVar(&clear, "clear", false, "Remove the recorded decision for this path")

	return cmd
}

func deriveChoice(keepLocal, takeUpstream, manual bool) (reconcile.ResolutionChoice, error) {
	set := 0
	for _, b := range []bool{keepLocal, takeUpstream, manual} {
		if b {
			set++
		}
	}
	if set != 1 {
		return "", fmt.Errorf("exactly one of --keep-local, --take-upstream, or --manual is required")
	}
	switch {
	case keepLocal:
		return reconcile.ResolutionKeepLocal, nil
	case takeUpstream:
		return reconcile.ResolutionTakeUpstream, nil
	default:
		return reconcile.ResolutionManual, nil
	}
}
