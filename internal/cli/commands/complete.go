package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/spf13/cobra"
)

// CompleteOptions holds options for the complete command.
type CompleteOptions struct {
	Offset int
	Marker string
	Expand []string
}

// CompleteResult is the structured output of the complete command.
type CompleteResult struct {
	Context     string                  `json:"context" yaml:"context"`
	Prefix      string                  `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Qualifier   string                  `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	Suggestions []completion.Suggestion `json:"suggestions" yaml:"suggestions"`
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand() *cobra.Command {
	opts := &CompleteOptions{}

	cmd := &cobra.Command{
		Use:   "complete [sql]",
		Short: "Print completion suggestions for a SQL buffer",
		Long: `Print the suggestions an editor would show for a cursor in a SQL buffer.

The buffer is read from the argument, or from stdin when the argument is
missing or "-". The cursor defaults to the end of the buffer.`,
		Example: `  leapcomplete complete "SELECT * FROM orders WHERE "
  leapcomplete complete --marker '@' "SELECT @ FROM orders" --expand orders
  echo "SELECT o. FROM orders o" | leapcomplete complete --offset 9 --expand orders`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readBuffer(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runComplete(cmd.Context(), cc, text, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Offset, "offset", -1, "Cursor byte offset (default: end of buffer)")
	cmd.Flags().StringVar(&opts.Marker, "marker", "", "Cursor marker inside the buffer, removed before completing")
	cmd.Flags().StringSliceVar(&opts.Expand, "expand", nil, "Tables whose columns are loaded before completing")
	return cmd
}

func readBuffer(in io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("failed to read buffer: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// cursor resolves the buffer and offset from the options.
func cursor(text string, opts *CompleteOptions) (string, int, error) {
	if opts.Marker != "" {
		i := strings.Index(text, opts.Marker)
		if i < 0 {
			return "", 0, fmt.Errorf("cursor marker %q not found in buffer", opts.Marker)
		}
		return text[:i] + text[i+len(opts.Marker):], i, nil
	}
	if opts.Offset < 0 {
		return text, len(text), nil
	}
	return text, opts.Offset, nil
}

func runComplete(ctx context.Context, cc *CommandContext, text string, opts *CompleteOptions) error {
	text, offset, err := cursor(text, opts)
	if err != nil {
		return err
	}
	for _, table := range opts.Expand {
		if _, err := cc.Session.OnExpand(table); err != nil {
			return err
		}
		if _, err := cc.Session.Describe(ctx, table); err != nil {
			cc.Logger.Warn("column load failed", slog.String("table", table), slog.Any("error", err))
		}
	}

	a, suggestions := cc.Session.Complete(text, offset)
	res := CompleteResult{
		Context:     a.Context.String(),
		Prefix:      a.Prefix,
		Qualifier:   a.Qualifier,
		Suggestions: suggestions,
	}

	r := cc.Renderer
	return r.Data(res, func() {
		r.KeyValue("Context", res.Context)
		if res.Qualifier != "" {
			r.KeyValue("Qualifier", res.Qualifier)
		}
		if res.Prefix != "" {
			r.KeyValue("Prefix", res.Prefix)
		}
		rows := make([][]string, 0, len(res.Suggestions))
		for _, s := range res.Suggestions {
			rows = append(rows, []string{s.Label, s.Kind.String(), s.Detail})
		}
		r.Table([]string{"Label", "Kind", "Detail"}, rows)
	})
}
