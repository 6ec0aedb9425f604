package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scaffsync/scaffsync/internal/scaffold"
)

// newInitCmd creates the init command.
func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up scaffsync in the current project",
		Long: `Init creates the project data directory, a default configuration
file, and seed content. It is idempotent: anything that already exists
is left exactly as it is, whatever its content.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := projectDir
			if root == "" {
				root = "."
			}
			abs, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			result, err := scaffold.Init(abs, discardLogger())
			if err != nil {
				return err
			}

			for _, p := range result.Created {
				fmt.Fprintf(cmd.OutOrStdout(), "created  %s\n", p)
			}
			for _, p := range result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "exists   %s\n", p)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Project ready. Set upstream.dir in .scaffsync.yaml, then run 'scaffsync sync'.")
			return nil
		},
	}
	return cmd
}
