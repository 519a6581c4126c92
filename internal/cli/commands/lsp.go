package commands

import (
	"log/slog"
	"os"

	"github.com/leapstack-labs/leapcomplete/internal/lsp"
	"github.com/spf13/cobra"
)

// NewLSPCommand creates the lsp command.
func NewLSPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the Language Server Protocol server",
		Long: `Start the LSP server for editor integration.

The server communicates over stdin/stdout using JSON-RPC and offers
completion and hover for SQL buffers. The configured source is selected
on startup; clients can switch with the leapcomplete/selectSource request
or pass initializationOptions.source.`,
		Example: `  # Start LSP server (usually called by an editor)
  leapcomplete lsp

  # Reload the listing when a DuckDB file changes
  leapcomplete lsp --source analytics --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLSP(cmd)
		},
	}

	return cmd
}

func runLSP(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stop, err := cc.StartWatcher(cmd.Context())
	if err != nil {
		return err
	}
	defer stop()

	lsp.Version = cmd.Root().Version
	logger := cc.Logger.With(slog.String("component", "lsp"))
	server := lsp.NewServerWithLogger(os.Stdin, os.Stdout, cc.Session, logger)
	return server.Run(cmd.Context())
}
