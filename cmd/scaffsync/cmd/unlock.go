package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/config"
	"github.com/scaffsync/scaffsync/internal/runlock"
)

// newUnlockCmd creates the unlock command.
func newUnlockCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Clear a stale run lock left by a crashed run",
		Long: `Unlock removes the exclusive run lock. Locks are never cleared
implicitly; use this only when the run that held the lock is known to
be dead. Clearing the lock of a live run can corrupt state.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := projectDir
			if start == "" {
				start = "."
			}
			root, err := config.FindProjectRoot(start)
			if err != nil {
				return err
			}

			lock := runlock.New(config.DataDir(root))
			if owner, ok := lock.ReadOwner(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Lock held by pid %d on %s since %s.\n",
					owner.PID, owner.Hostname, owner.AcquiredAt.Format(time.RFC3339))
			}

			if !yes {
				return fmt.Errorf("re-run with --yes to confirm clearing the lock")
			}
			if err := lock.ForceClear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Run lock cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm clearing the lock")
	return cmd
}
