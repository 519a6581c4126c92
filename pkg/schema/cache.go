package schema

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"golang.org/x/sync/singleflight"
)

// Cache owns the table metadata of the active catalog source.
// It is safe for concurrent use.
type Cache struct {
	fetcher core.CatalogFetcher
	logger  *slog.Logger

	mu         sync.Mutex
	listener   func(Event)
	source     core.SourceID
	hasSource  bool
	listState  ListState
	listErr    error
	generation uint64
	attempt    int
	entries    map[string]*entry
	order      []string
	genCtx     context.Context
	cancel     context.CancelFunc

	lists    singleflight.Group
	inflight sync.WaitGroup
}

type entry struct {
	stub   core.TableStub
	detail *core.TableDetail
	state  LoadState
	err    error
	// done is closed when the current fetch settles.
	done chan struct{}
}

// New creates an empty cache. If logger is nil, a discard logger is used.
func New(fetcher core.CatalogFetcher, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		fetcher: fetcher,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// SetListener registers the function that receives cache events.
// It replaces any previous listener; nil disables delivery.
func (c *Cache) SetListener(fn func(Event)) {
	c.mu.Lock()
	c.listener = fn
	c.mu.Unlock()
}

// Initialize selects a source and loads its table listing.
//
// Selecting a different source (or the first one) rebuilds the cache.
// Selecting the current source retries a failed listing, joins a listing
// in flight, and is a no-op once the listing is loaded.
func (c *Cache) Initialize(ctx context.Context, source core.SourceID) error {
	c.mu.Lock()
	var events []Event
	switch {
	case !c.hasSource || source != c.source:
		events = append(events, c.rebuildLocked(source))
	case c.listState == ListLoaded:
		c.mu.Unlock()
		return nil
	case c.listState == ListFailed:
		c.attempt++
		c.listState = ListLoading
		c.listErr = nil
	}
	key := c.listKeyLocked()
	gen, genCtx := c.generation, c.genCtx
	c.mu.Unlock()

	c.emit(events...)
	return c.loadList(ctx, genCtx, key, source, gen)
}

// Refresh discards every entry and reloads the listing of the current source.
func (c *Cache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.hasSource {
		c.mu.Unlock()
		return ErrNoSource
	}
	source := c.source
	ev := c.rebuildLocked(source)
	key := c.listKeyLocked()
	gen, genCtx := c.generation, c.genCtx
	c.mu.Unlock()

	c.emit(ev)
	return c.loadList(ctx, genCtx, key, source, gen)
}

// RequestDetail starts loading the detail of a table without blocking.
// Tables that are loading or loaded are left alone, so concurrent callers
// share the pending fetch.
func (c *Cache) RequestDetail(table string) error {
	c.mu.Lock()
	e, ok := c.lookupLocked(table)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if !e.state.NeedsFetch() {
		c.mu.Unlock()
		return nil
	}

	e.state = Loading
	e.err = nil
	e.done = make(chan struct{})
	gen, source, genCtx := c.generation, c.source, c.genCtx
	c.inflight.Add(1)
	c.mu.Unlock()

	c.emit(Event{Kind: EventDetailLoading, Source: source, Generation: gen, Table: e.stub.Name})
	go c.fetchDetail(genCtx, source, gen, e)
	return nil
}

// LoadDetail returns the detail of a table, fetching it if needed and
// waiting for a fetch already in flight. A failed table is retried.
func (c *Cache) LoadDetail(ctx context.Context, table string) (*core.TableDetail, error) {
	if err := c.RequestDetail(table); err != nil {
		return nil, err
	}

	c.mu.Lock()
	e, ok := c.lookupLocked(table)
	if !ok {
		c.mu.Unlock()
		return nil, ErrRebuilt
	}
	gen, done := c.generation, e.done
	c.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return nil, ErrRebuilt
		}
		switch e.state {
		case Loaded:
			d := e.detail
			c.mu.Unlock()
			return d, nil
		case Failed:
			err := e.err
			c.mu.Unlock()
			return nil, err
		}
		// Retried by someone else between the fetch settling and the re-lock.
		done = e.done
		c.mu.Unlock()
	}
}

// State returns the load state of a table.
func (c *Cache) State(table string) (LoadState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(table)
	if !ok {
		return NotLoaded, false
	}
	return e.state, true
}

// Resolve returns the listed name of a table. Lookups are case-insensitive,
// so "ORDERS" resolves to "orders" when only the latter is listed.
func (c *Cache) Resolve(table string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lookupLocked(table)
	if !ok {
		return "", false
	}
	return e.stub.Name, true
}

// Snapshot returns an immutable copy of the cache.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Source:     c.source,
		Generation: c.generation,
		ListState:  c.listState,
		ListErr:    c.listErr,
		Tables:     make([]TableEntry, 0, len(c.order)),
	}
	for _, name := range c.order {
		e := c.entries[name]
		snap.Tables = append(snap.Tables, TableEntry{
			Stub:   e.stub,
			Detail: e.detail,
			State:  e.state,
			Err:    e.err,
		})
	}
	return snap
}

// Source returns the active source, or "" before the first Initialize.
func (c *Cache) Source() core.SourceID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.source
}

// Generation returns the current cache epoch.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Wait blocks until every fetch started so far has settled.
func (c *Cache) Wait() {
	c.inflight.Wait()
}

// rebuildLocked discards all state and starts a new generation.
func (c *Cache) rebuildLocked(source core.SourceID) Event {
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	c.attempt = 0
	c.genCtx, c.cancel = context.WithCancel(context.Background())
	c.source = source
	c.hasSource = true
	c.entries = make(map[string]*entry)
	c.order = nil
	c.listState = ListLoading
	c.listErr = nil

	c.logger.Debug("schema cache rebuilt",
		slog.String("source", string(source)),
		slog.Uint64("generation", c.generation))
	return Event{Kind: EventRebuilt, Source: source, Generation: c.generation}
}

// listKeyLocked identifies one listing attempt. A retry after a failure
// must not join the failed call while singleflight still holds it.
func (c *Cache) listKeyLocked() string {
	return strconv.FormatUint(c.generation, 10) + "/" + strconv.Itoa(c.attempt)
}

// loadList runs or joins a listing attempt. The attempt counts as in flight
// from before it starts until its result is delivered, even when ctx gives
// up first.
func (c *Cache) loadList(ctx, genCtx context.Context, key string, source core.SourceID, gen uint64) error {
	c.inflight.Add(1)
	ch := c.lists.DoChan(key, func() (any, error) {
		return nil, c.fetchList(genCtx, source, gen)
	})

	select {
	case <-ctx.Done():
		go func() {
			<-ch
			c.inflight.Done()
		}()
		return ctx.Err()
	case res := <-ch:
		c.inflight.Done()
		return res.Err
	}
}

func (c *Cache) fetchList(ctx context.Context, source core.SourceID, gen uint64) error {
	stubs, fetchErr := c.fetcher.ListTables(ctx, source)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding stale table list",
			slog.String("source", string(source)),
			slog.Uint64("generation", gen))
		return nil
	}

	ev := Event{Source: source, Generation: gen}
	var err error
	if fetchErr != nil {
		err = &ListFetchError{Source: source, Err: fetchErr}
		c.listState = ListFailed
		c.listErr = err
		ev.Kind = EventListFailed
		ev.Err = err
	} else {
		for _, stub := range stubs {
			if _, dup := c.entries[stub.Name]; dup {
				continue
			}
			c.entries[stub.Name] = &entry{stub: stub, state: NotLoaded}
			c.order = append(c.order, stub.Name)
		}
		c.listState = ListLoaded
		ev.Kind = EventListLoaded
	}
	count := len(c.order)
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("table listing failed", slog.String("source", string(source)), slog.Any("error", fetchErr))
	} else {
		c.logger.Debug("table listing loaded", slog.String("source", string(source)), slog.Int("tables", count))
	}
	c.emit(ev)
	return err
}

func (c *Cache) fetchDetail(ctx context.Context, source core.SourceID, gen uint64, e *entry) {
	defer c.inflight.Done()

	name := e.stub.Name
	detail, fetchErr := c.fetcher.GetTableDetail(ctx, source, name)
	if fetchErr == nil && detail == nil {
		fetchErr = fmt.Errorf("%w: %s", core.ErrTableNotFound, name)
	}

	c.mu.Lock()
	done := e.done
	if gen != c.generation {
		c.mu.Unlock()
		close(done)
		c.logger.Debug("discarding stale table detail",
			slog.String("table", name),
			slog.Uint64("generation", gen))
		return
	}

	ev := Event{Source: source, Generation: gen, Table: name}
	if fetchErr != nil {
		e.state = Failed
		e.err = &DetailFetchError{Table: name, Err: fetchErr}
		ev.Kind = EventDetailFailed
		ev.Err = e.err
	} else {
		e.state = Loaded
		e.detail = detail
		ev.Kind = EventDetailLoaded
	}
	c.mu.Unlock()
	close(done)

	if fetchErr != nil {
		c.logger.Warn("table detail failed", slog.String("table", name), slog.Any("error", fetchErr))
	}
	c.emit(ev)
}

// lookupLocked finds an entry by exact name, then case-insensitively.
func (c *Cache) lookupLocked(name string) (*entry, bool) {
	if e, ok := c.entries[name]; ok {
		return e, true
	}
	for _, n := range c.order {
		if strings.EqualFold(n, name) {
			return c.entries[n], true
		}
	}
	return nil, false
}

func (c *Cache) emit(events ...Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.listener
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, ev := range events {
		fn(ev)
	}
}
