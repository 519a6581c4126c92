package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapcomplete/internal/cli/config"
	"github.com/leapstack-labs/leapcomplete/internal/cli/output"
	"github.com/leapstack-labs/leapcomplete/internal/watch"
	"github.com/leapstack-labs/leapcomplete/pkg/catalog"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
	Sources  *catalog.Sources
	Session  *session.Session
}

// NewCommandContext creates a CommandContext with a completion session
// over the configured sources. The default source, if any, is selected
// before returning. Returns the context and a cleanup function that must
// be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cc := NewCommandContextWithoutSession(cmd)

	sources, err := catalog.NewSources(cc.Cfg.SourceConfigs(), cc.Logger.With(slog.String("component", "catalog")))
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.New(sources, session.Config{
		MaxSuggestions:    cc.Cfg.Completion.MaxSuggestions,
		ExpansionCapacity: cc.Cfg.Expansion.Capacity,
	}, cc.Logger)
	if err != nil {
		_ = sources.Close()
		return nil, nil, err
	}
	cc.Sources = sources
	cc.Session = sess

	cleanup := func() {
		sess.Wait()
		_ = sources.Close()
	}

	if id := cc.Cfg.DefaultSource(); id != "" {
		if err := cc.SelectSource(cmd.Context(), id); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return cc, cleanup, nil
}

// NewCommandContextWithoutSession creates a CommandContext without a session.
// Useful for commands that don't need catalog access.
func NewCommandContextWithoutSession(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.Output))

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// SelectSource switches the session to a configured source and waits for
// its table listing.
func (cc *CommandContext) SelectSource(ctx context.Context, id string) error {
	if _, ok := cc.Cfg.Sources[id]; !ok {
		return fmt.Errorf("%w: %s\nHint: Available sources: %s", core.ErrUnknownSource, id, strings.Join(cc.Cfg.SourceIDs(), ", "))
	}
	if err := cc.Session.OnSourceChange(ctx, core.SourceID(id)); err != nil {
		return fmt.Errorf("failed to load tables of %s: %w", id, err)
	}
	return nil
}

// RequireSource returns the active source or an error naming the flag
// that selects one.
func (cc *CommandContext) RequireSource() (core.SourceID, error) {
	id := cc.Session.Snapshot().Source
	if id == "" {
		return "", fmt.Errorf("no source selected\nHint: Use --source or set source in leapcomplete.yaml")
	}
	return id, nil
}

// StartWatcher refreshes the session when the database file behind a
// file-based source changes. It returns a stop function; without watch
// enabled, or for network sources, nothing is watched.
func (cc *CommandContext) StartWatcher(ctx context.Context) (func(), error) {
	if !cc.Cfg.Watch {
		return func() {}, nil
	}

	w, err := watch.New(cc.Logger.With(slog.String("component", "watch")), func(source core.SourceID) {
		if cc.Session.Snapshot().Source != source {
			return
		}
		if err := cc.Session.OnRefresh(ctx); err != nil {
			cc.Logger.Warn("refresh after file change failed", slog.String("source", string(source)), slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, err
	}
	for _, id := range cc.Cfg.SourceIDs() {
		sc := cc.Cfg.Sources[id]
		if !sc.IsFileBased() {
			continue
		}
		if err := w.Add(core.SourceID(id), sc.Database); err != nil {
			_ = w.Close()
			return nil, err
		}
	}

	go w.Run(ctx)
	return func() { _ = w.Close() }, nil
}

// getConfig returns the current configuration, or the defaults when no
// configuration was loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return &config.Config{
		Completion: config.CompletionConfig{MaxSuggestions: config.DefaultMaxSuggestions},
		Expansion:  config.ExpansionConfig{Capacity: config.DefaultCapacity},
		LogLevel:   config.DefaultLogLevel,
		LogFormat:  config.DefaultLogFormat,
		Output:     config.DefaultOutput,
		Serve:      config.ServeConfig{Addr: config.DefaultAddr},
	}
}
