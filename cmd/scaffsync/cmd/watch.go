package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/gate"
	"github.com/scaffsync/scaffsync/internal/reconcile"
	"github.com/scaffsync/scaffsync/internal/watch"
)

// newWatchCmd creates the watch command.
func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-plan whenever the workspace changes",
		Long: `Watch observes the workspace and prints a fresh dry-run sync plan
each time the filesystem settles after a change. Nothing is ever
applied from watch mode; it only shows what a sync would do right now.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			w, err := watch.New(a.root, watch.Options{})
			if err != nil {
				return err
			}
			defer w.Stop()

			if err := w.Start(cmd.Context()); err != nil {
				return err
			}

			g := gate.New(cmd.OutOrStdout(), nil)
			fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes. Ctrl-C to stop.")

			// Initial plan before any change.
			if record, err := a.engine.Plan(cmd.Context(), reconcile.PolicySync, reconcile.ModeDryRun); err == nil {
				g.Render(record)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "plan failed: %v\n", err)
			}

			for {
				select {
				case <-cmd.Context().Done():
					return nil

				case batch, ok := <-w.Batches():
					if !ok {
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "\n%d change(s) detected.\n", len(batch))
					record, err := a.engine.Plan(cmd.Context(), reconcile.PolicySync, reconcile.ModeDryRun)
					if err != nil {
						fmt.Fprintf(cmd.OutOrStdout(), "plan failed: %v\n", err)
						continue
					}
					g.Render(record)

				case err, ok := <-w.Errors():
					if !ok {
						return nil
					}
					a.log.Warn("watch error", "error", err)
				}
			}
		},
	}
	return cmd
}
