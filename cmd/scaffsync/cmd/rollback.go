package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newRollbackCmd creates the rollback command.
func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <run-id>",
		Short: "Restore every file a run touched to its pre-run content",
		Long: `Rollback restores the byte content captured in the run's snapshot:
files the run changed get their old bytes back, and files the run
created are removed. The metadata baseline is restored alongside.

A rollback that cannot restore every path reports exactly which paths
were restored and which were not; it never claims partial success.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.cleanup()

			report, rollbackErr := a.engine.Rollback(cmd.Context(), args[0])
			if report != nil {
				for _, p := range report.Restored {
					fmt.Fprintf(cmd.OutOrStdout(), "restored  %s\n", p)
				}
				if report.FailedPath != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "FAILED    %s\n", report.FailedPath)
				}
				for _, p := range report.Remaining {
					fmt.Fprintf(cmd.OutOrStdout(), "not done  %s\n", p)
				}
			}
			if rollbackErr != nil {
				return rollbackErr
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rollback of %s complete: %d path(s) restored.\n",
				args[0], len(report.Restored))
			return nil
		},
	}
	return cmd
}
