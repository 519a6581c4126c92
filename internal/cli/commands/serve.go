package commands

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/leapstack-labs/leapcomplete/internal/api"
	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve completions over HTTP",
		Long: `Start an HTTP server offering completions to browser editors.

Every browser gets its own session, identified by a cookie, with its own
expanded tables. Schema changes are pushed on /api/events as server-sent
events.`,
		Example: `  leapcomplete serve
  leapcomplete serve --addr :8766 --source warehouse`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cc := NewCommandContextWithoutSession(cmd)

	sources, err := catalog.NewSources(cc.Cfg.SourceConfigs(), cc.Logger.With(slog.String("component", "catalog")))
	if err != nil {
		return err
	}
	defer func() { _ = sources.Close() }()

	secret := cc.Cfg.Serve.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
		cc.Logger.Warn("no serve.session_secret configured; browser sessions end when the server stops")
	}

	ids := make([]core.SourceID, 0, len(cc.Cfg.Sources))
	for _, id := range cc.Cfg.SourceIDs() {
		ids = append(ids, core.SourceID(id))
	}

	srv, err := api.NewServer(api.Config{
		Fetcher:       sources,
		Sources:       ids,
		DefaultSource: core.SourceID(cc.Cfg.DefaultSource()),
		Session: session.Config{
			MaxSuggestions:    cc.Cfg.Completion.MaxSuggestions,
			ExpansionCapacity: cc.Cfg.Expansion.Capacity,
		},
		Addr:          cc.Cfg.Serve.Addr,
		SessionSecret: secret,
		Logger:        cc.Logger.With(slog.String("component", "api")),
	})
	if err != nil {
		return err
	}

	cc.Renderer.Success("Serving completions on http://" + cc.Cfg.Serve.Addr)
	return srv.Serve(cmd.Context())
}
