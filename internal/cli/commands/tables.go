package commands

import (
	"context"

	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/spf13/cobra"
)

// TableInfo describes one table of the active source.
type TableInfo struct {
	Name    string `json:"name" yaml:"name"`
	Comment string `json:"comment,omitempty" yaml:"comment,omitempty"`
	State   string `json:"state" yaml:"state"`
	Columns int    `json:"columns,omitempty" yaml:"columns,omitempty"`
}

// TablesOptions holds options for the tables command.
type TablesOptions struct {
	Expand []string
}

// NewTablesCommand creates the tables command.
func NewTablesCommand() *cobra.Command {
	opts := &TablesOptions{}

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List the tables of a source",
		Long: `List the tables of the selected source.

Only the table listing is fetched. Tables named with --expand are admitted
to the expansion set and their columns are loaded before printing.`,
		Example: `  leapcomplete tables --source shop
  leapcomplete tables --expand orders,users -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runTables(cmd.Context(), cc, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Expand, "expand", nil, "Tables whose columns are loaded")
	return cmd
}

func runTables(ctx context.Context, cc *CommandContext, opts *TablesOptions) error {
	if _, err := cc.RequireSource(); err != nil {
		return err
	}
	for _, table := range opts.Expand {
		if _, err := cc.Session.OnExpand(table); err != nil {
			return err
		}
		// Failures show up as the table state below.
		_, _ = cc.Session.Describe(ctx, table)
	}

	snap := cc.Session.Snapshot()
	infos := tableInfos(snap)

	r := cc.Renderer
	return r.Data(infos, func() {
		r.Header(1, string(snap.Source))
		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{info.Name, info.State, info.Comment})
		}
		r.Table([]string{"Table", "State", "Comment"}, rows)
	})
}

func tableInfos(snap schema.Snapshot) []TableInfo {
	infos := make([]TableInfo, 0, len(snap.Tables))
	for _, t := range snap.Tables {
		info := TableInfo{Name: t.Name(), Comment: t.Stub.Comment, State: t.State.String()}
		if t.Detail != nil {
			info.Columns = len(t.Detail.Columns)
		}
		infos = append(infos, info)
	}
	return infos
}
