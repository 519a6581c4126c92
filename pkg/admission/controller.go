// Package admission bounds the set of tables expanded in the editor.
//
// Expanding a table admits it to a fixed-size recency list and, when its
// detail is missing, asks the schema cache to load it. Eviction only drops
// bookkeeping: detail already cached stays cached, so re-expanding an
// evicted table is instant.
package admission

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
)

// DefaultCapacity is the expansion limit used when none is configured.
const DefaultCapacity = 10

// Requester is the part of the schema cache the controller needs.
type Requester interface {
	State(table string) (schema.LoadState, bool)
	RequestDetail(table string) error
}

var _ Requester = (*schema.Cache)(nil)

// Controller is a capacity-bounded, recency-ordered set of expanded tables.
// It is safe for concurrent use.
type Controller struct {
	requester Requester
	logger    *slog.Logger
	capacity  int

	mu  sync.Mutex
	lru *simplelru.LRU[string, struct{}]
}

// New creates a controller admitting at most capacity tables.
func New(capacity int, requester Requester, logger *slog.Logger) (*Controller, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	lru, err := simplelru.NewLRU[string, struct{}](capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid expansion capacity %d: %w", capacity, err)
	}
	return &Controller{
		requester: requester,
		logger:    logger,
		capacity:  capacity,
		lru:       lru,
	}, nil
}

// Expand admits a table and returns the tables evicted to make room.
// Expanding a table that is already expanded changes nothing, not even
// its recency. Detail is requested only for tables that are not loaded
// and not loading.
func (c *Controller) Expand(table string) ([]string, error) {
	c.mu.Lock()
	if c.lru.Contains(table) {
		c.mu.Unlock()
		return nil, nil
	}
	var evicted []string
	for c.lru.Len() >= c.capacity {
		oldest, _, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
		evicted = append(evicted, oldest)
	}
	c.lru.Add(table, struct{}{})
	c.mu.Unlock()

	if len(evicted) > 0 {
		c.logger.Debug("expansion evicted tables",
			slog.String("table", table),
			slog.Any("evicted", evicted))
	}

	state, ok := c.requester.State(table)
	if !ok || !state.NeedsFetch() {
		return evicted, nil
	}
	if err := c.requester.RequestDetail(table); err != nil {
		return evicted, fmt.Errorf("failed to request detail for %s: %w", table, err)
	}
	return evicted, nil
}

// Collapse removes a table from the expanded set. It reports whether the
// table was expanded.
func (c *Controller) Collapse(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(table)
}

// Clear collapses every table.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Expanded returns the expanded tables, least recently expanded first.
func (c *Controller) Expanded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// IsExpanded reports whether a table is expanded.
func (c *Controller) IsExpanded(table string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(table)
}

// Len returns the number of expanded tables.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Capacity returns the expansion limit.
func (c *Controller) Capacity() int {
	return c.capacity
}
