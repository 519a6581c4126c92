// Package api serves completion sessions over HTTP. Each browser gets its
// own session, keyed by a cookie, over a shared set of catalog sources.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxSessions bounds the number of browser sessions kept in memory.
const DefaultMaxSessions = 64

// Config holds configuration for the API server.
type Config struct {
	Fetcher core.CatalogFetcher
	// Sources are the selectable source ids.
	Sources []core.SourceID
	// DefaultSource is selected for new browser sessions when set.
	DefaultSource core.SourceID
	Session       session.Config
	Addr          string
	SessionSecret string
	MaxSessions   int
	Logger        *slog.Logger
}

// Server is the HTTP completion server.
type Server struct {
	cfg          Config
	sessionStore *sessions.CookieStore
	browsers     *browsers
	logger       *slog.Logger
}

// NewServer creates a new API server instance.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("api: fetcher is required")
	}
	if cfg.SessionSecret == "" {
		return nil, errors.New("api: session secret is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}

	sessionStore := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	sessionStore.MaxAge(86400 * 30) // 30 days
	sessionStore.Options.Path = "/"
	sessionStore.Options.HttpOnly = true
	sessionStore.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:          cfg,
		sessionStore: sessionStore,
		logger:       cfg.Logger,
	}
	b, err := newBrowsers(cfg.MaxSessions, s.newSession)
	if err != nil {
		return nil, err
	}
	s.browsers = b
	return s, nil
}

// Handler returns the HTTP handler with all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/sources", s.handleSources)
		r.Post("/source", s.handleSelectSource)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/tables/{table}", s.handleDescribe)
		r.Post("/tables/{table}/expand", s.handleExpand)
		r.Delete("/tables/{table}/expand", s.handleCollapse)
		r.With(middleware.Compress(5)).Post("/complete", s.handleComplete)
		r.Get("/events", s.handleEvents)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", slog.String("addr", "http://"+ln.Addr().String()))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
			NoColor: true,
		})(s.Handler()),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		err := srv.Shutdown(shutdownCtx)
		s.browsers.wait()
		return err
	})

	return eg.Wait()
}

// newSession creates the completion session of a new browser and selects
// the default source. A failing listing is kept in the session snapshot.
func (s *Server) newSession(ctx context.Context, id string) (*session.Session, error) {
	logger := s.logger.With(slog.String("browser", id))
	sess, err := session.New(s.cfg.Fetcher, s.cfg.Session, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("browser session created")
	if s.cfg.DefaultSource != "" {
		if err := sess.OnSourceChange(ctx, s.cfg.DefaultSource); err != nil {
			logger.Warn("default source failed", slog.Any("error", err))
		}
	}
	return sess, nil
}
