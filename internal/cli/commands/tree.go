package commands

import (
	"github.com/leapstack-labs/leapcomplete/internal/tree"
	"github.com/spf13/cobra"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Browse the tables of a source",
		Long: `Browse the tables of the selected source in the terminal.

Enter expands or collapses a table. Columns are loaded on expansion and at
most expansion.capacity tables stay expanded; the least recently expanded
one is collapsed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			if _, err := cc.RequireSource(); err != nil {
				return err
			}

			stop, err := cc.StartWatcher(cmd.Context())
			if err != nil {
				return err
			}
			defer stop()

			return tree.Run(cmd.Context(), cc.Session, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
