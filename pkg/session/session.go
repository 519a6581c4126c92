// Package session wires the schema cache, the context analyzer, the
// completion synthesizer and the admission controller behind the
// event-driven interface an editor shell talks to.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/leapcomplete/internal/notifier"
	"github.com/leapstack-labs/leapcomplete/pkg/admission"
	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
)

// Config tunes a session. Zero values select the defaults.
type Config struct {
	MaxSuggestions    int
	ExpansionCapacity int
	Statics           *completion.Statics
}

// Session is the completion core for one editor.
type Session struct {
	cache     *schema.Cache
	admission *admission.Controller
	statics   *completion.Statics
	limit     int
	events    *notifier.Notifier
	logger    *slog.Logger

	// expandMu serializes OnExpand so a rolled back admission never
	// removes one made by another call.
	expandMu    sync.Mutex
	beforeAdmit func()
}

// New creates a session reading from fetcher. No source is selected yet.
func New(fetcher core.CatalogFetcher, cfg Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.MaxSuggestions <= 0 {
		cfg.MaxSuggestions = completion.DefaultLimit
	}
	if cfg.ExpansionCapacity <= 0 {
		cfg.ExpansionCapacity = admission.DefaultCapacity
	}
	if cfg.Statics == nil {
		cfg.Statics = completion.DefaultStatics()
	}

	cache := schema.New(fetcher, logger.With(slog.String("component", "schema")))
	ctrl, err := admission.New(cfg.ExpansionCapacity, cache, logger.With(slog.String("component", "admission")))
	if err != nil {
		return nil, err
	}

	s := &Session{
		cache:     cache,
		admission: ctrl,
		statics:   cfg.Statics,
		limit:     cfg.MaxSuggestions,
		events:    notifier.New(),
		logger:    logger,
	}
	cache.SetListener(s.onCacheEvent)
	return s, nil
}

func (s *Session) onCacheEvent(ev schema.Event) {
	if ev.Kind == schema.EventRebuilt {
		s.admission.Clear()
	}
	s.events.Publish(ev)
}

// GetSuggestions returns the suggestions for the cursor at offset.
// It never blocks on the network.
func (s *Session) GetSuggestions(text string, offset int) []completion.Suggestion {
	_, out := s.Complete(text, offset)
	return out
}

// Complete is GetSuggestions that also returns the analysis of the cursor,
// for shells that need to know which span the suggestions replace.
func (s *Session) Complete(text string, offset int) (sqlcontext.Analysis, []completion.Suggestion) {
	a := sqlcontext.Analyze(text, offset)
	return a, completion.Synthesize(completion.RequestFor(a, s.limit), s.cache.Snapshot(), s.statics)
}

// OnExpand expands a table and returns the tables collapsed to make room.
// Only tables of the current listing can be expanded; names match the
// listing case-insensitively. An expansion that races with a rebuild is
// undone and reported as schema.ErrRebuilt.
func (s *Session) OnExpand(table string) ([]string, error) {
	s.expandMu.Lock()
	defer s.expandMu.Unlock()

	gen := s.cache.Generation()
	name, ok := s.cache.Resolve(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownTable, table)
	}
	if s.beforeAdmit != nil {
		s.beforeAdmit()
	}
	evicted, err := s.admission.Expand(name)
	if s.cache.Generation() != gen {
		s.admission.Collapse(name)
		s.logger.Debug("expansion dropped by rebuild", slog.String("table", name))
		return nil, fmt.Errorf("%w: %s", schema.ErrRebuilt, name)
	}
	return evicted, err
}

// OnCollapse collapses a table; its cached detail is kept.
func (s *Session) OnCollapse(table string) bool {
	return s.admission.Collapse(s.resolve(table))
}

// resolve maps a table to its listed name, leaving unknown names as given.
func (s *Session) resolve(table string) string {
	if name, ok := s.cache.Resolve(table); ok {
		return name
	}
	return table
}

// OnSourceChange selects a source. Switching to another source collapses
// every table.
func (s *Session) OnSourceChange(ctx context.Context, source core.SourceID) error {
	return s.cache.Initialize(ctx, source)
}

// OnRefresh collapses every table and reloads the current source.
func (s *Session) OnRefresh(ctx context.Context) error {
	s.admission.Clear()
	return s.cache.Refresh(ctx)
}

// Snapshot returns the current cache contents.
func (s *Session) Snapshot() schema.Snapshot {
	return s.cache.Snapshot()
}

// Expanded returns the expanded tables, least recently expanded first.
func (s *Session) Expanded() []string {
	return s.admission.Expanded()
}

// IsExpanded reports whether a table is expanded.
func (s *Session) IsExpanded(table string) bool {
	return s.admission.IsExpanded(s.resolve(table))
}

// Describe returns the detail of a table, loading it if needed.
func (s *Session) Describe(ctx context.Context, table string) (*core.TableDetail, error) {
	return s.cache.LoadDetail(ctx, table)
}

// RequestDetail starts loading a table without expanding it.
func (s *Session) RequestDetail(table string) error {
	return s.cache.RequestDetail(table)
}

// Statics returns the keyword and function catalogs in use.
func (s *Session) Statics() *completion.Statics {
	return s.statics
}

// Subscribe returns a channel of cache events; see notifier.Notifier.
func (s *Session) Subscribe() chan schema.Event {
	return s.events.Subscribe()
}

// Unsubscribe releases a channel returned by Subscribe.
func (s *Session) Unsubscribe(ch chan schema.Event) {
	s.events.Unsubscribe(ch)
}

// Wait blocks until all fetches started so far have settled.
func (s *Session) Wait() {
	s.cache.Wait()
}
