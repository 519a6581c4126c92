package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// Sources implements core.CatalogFetcher over a set of configured sources.
// Drivers are connected lazily on first use; a failed connect is retried
// on the next call.
type Sources struct {
	conns  map[core.SourceID]*conn
	logger *slog.Logger
}

type conn struct {
	mu     sync.Mutex
	cfg    Config
	filter *Filter
	driver Driver
}

var _ core.CatalogFetcher = (*Sources)(nil)

// NewSources validates configs and returns a fetcher for them.
func NewSources(configs map[core.SourceID]Config, logger *slog.Logger) (*Sources, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Sources{
		conns:  make(map[core.SourceID]*conn, len(configs)),
		logger: logger,
	}
	for id, cfg := range configs {
		if !IsRegistered(cfg.Type) {
			return nil, fmt.Errorf("source %s: %w", id, &UnknownDriverError{Type: cfg.Type, Available: ListDrivers()})
		}
		filter, err := NewFilter(cfg.Include, cfg.Exclude)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", id, err)
		}
		s.conns[id] = &conn{cfg: cfg, filter: filter}
	}
	return s, nil
}

// IDs returns the configured source ids (sorted).
func (s *Sources) IDs() []core.SourceID {
	ids := make([]core.SourceID, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Config returns the configuration of a source.
func (s *Sources) Config(id core.SourceID) (Config, bool) {
	c, ok := s.conns[id]
	if !ok {
		return Config{}, false
	}
	return c.cfg, true
}

// ListTables lists the tables of a source, normalized and filtered.
func (s *Sources) ListTables(ctx context.Context, id core.SourceID) ([]core.TableStub, error) {
	c, d, err := s.driver(ctx, id)
	if err != nil {
		return nil, err
	}

	stubs, err := d.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables of %s: %w", id, err)
	}

	out := NormalizeStubs(stubs, c.filter)
	s.logger.Debug("listed tables", slog.String("source", string(id)), slog.Int("count", len(out)), slog.Int("raw", len(stubs)))
	return out, nil
}

// GetTableDetail describes one table of a source.
func (s *Sources) GetTableDetail(ctx context.Context, id core.SourceID, table string) (*core.TableDetail, error) {
	_, d, err := s.driver(ctx, id)
	if err != nil {
		return nil, err
	}

	detail, err := d.DescribeTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s.%s: %w", id, table, err)
	}

	out, err := NormalizeDetail(table, detail)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("described table", slog.String("source", string(id)), slog.String("table", table), slog.Int("columns", len(out.Columns)))
	return out, nil
}

// Close closes every connected driver.
func (s *Sources) Close() error {
	var errs []error
	for id, c := range s.conns {
		c.mu.Lock()
		if c.driver != nil {
			if err := c.driver.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s: %w", id, err))
			}
			c.driver = nil
		}
		c.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (s *Sources) driver(ctx context.Context, id core.SourceID) (*conn, Driver, error) {
	c, ok := s.conns[id]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", core.ErrUnknownSource, id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.driver != nil {
		return c, c.driver, nil
	}

	d, err := NewDriver(c.cfg, s.logger.With(slog.String("source", string(id))))
	if err != nil {
		return nil, nil, err
	}
	if err := d.Connect(ctx, c.cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s: %w", id, err)
	}
	c.driver = d
	return c, d, nil
}
