package commands

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/spf13/cobra"
)

// NewDescribeCommand creates the describe command.
func NewDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table",
		Example: `  leapcomplete describe orders
  leapcomplete describe orders --source shop -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runDescribe(cmd.Context(), cc, args[0])
		},
	}
}

func runDescribe(ctx context.Context, cc *CommandContext, table string) error {
	if _, err := cc.RequireSource(); err != nil {
		return err
	}
	detail, err := cc.Session.Describe(ctx, table)
	if err != nil {
		return err
	}

	r := cc.Renderer
	return r.Data(detail, func() {
		r.Header(1, detail.Name)
		if detail.Comment != "" {
			r.Muted(detail.Comment)
		}
		rows := make([][]string, 0, len(detail.Columns))
		for _, c := range detail.Columns {
			rows = append(rows, []string{c.Name, c.DataType, flags(c), c.Comment})
		}
		r.Table([]string{"Column", "Type", "Flags", "Comment"}, rows)
		r.Muted(fmt.Sprintf("%d columns", len(detail.Columns)))
	})
}

func flags(c core.Column) string {
	switch {
	case c.IsPrimaryKey && c.IsNullable:
		return "PK, NULL"
	case c.IsPrimaryKey:
		return "PK"
	case c.IsNullable:
		return "NULL"
	default:
		return ""
	}
}
