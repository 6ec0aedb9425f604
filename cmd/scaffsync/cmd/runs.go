package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/reconcile"
)

// newRunsCmd creates the runs command.
func newRunsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs and their outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			runs, err := a.engine.Runs(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tPOLICY\tMODE\tSTARTED\tITEMS\tAPPLIED\tFAILED")
			for _, run := range runs {
				applied, failed := 0, 0
				for _, o := range run.Outcomes {
					switch o {
					case reconcile.OutcomeApplied:
						applied++
					case reconcile.OutcomeFailed:
						failed++
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
					run.RunID, run.Policy, run.Mode,
					run.StartedAt.Format("2006-01-02 15:04:05"),
					len(run.Items), applied, failed)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list")
	return cmd
}
