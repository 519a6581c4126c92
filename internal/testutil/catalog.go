package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// ShopSource is the source served by NewShopCatalog.
const ShopSource core.SourceID = "shop"

// Catalog is an in-memory core.CatalogFetcher whose calls can be counted,
// failed and held open.
type Catalog struct {
	mu          sync.Mutex
	stubs       map[core.SourceID][]core.TableStub
	details     map[core.SourceID]map[string]*core.TableDetail
	listErrs    map[core.SourceID]error
	detailErrs  map[string]error
	listGates   map[core.SourceID]chan struct{}
	detailGates map[string]chan struct{}
	listCalls   map[core.SourceID]int
	detailCalls map[string]int
	started     chan string
}

var _ core.CatalogFetcher = (*Catalog)(nil)

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		stubs:       make(map[core.SourceID][]core.TableStub),
		details:     make(map[core.SourceID]map[string]*core.TableDetail),
		listErrs:    make(map[core.SourceID]error),
		detailErrs:  make(map[string]error),
		listGates:   make(map[core.SourceID]chan struct{}),
		detailGates: make(map[string]chan struct{}),
		listCalls:   make(map[core.SourceID]int),
		detailCalls: make(map[string]int),
		started:     make(chan string, 128),
	}
}

// NewShopCatalog returns a catalog with source "shop" holding orders
// (3 columns) and users (2 columns).
func NewShopCatalog() *Catalog {
	c := NewCatalog()
	c.AddTable(ShopSource, &core.TableDetail{
		Name:    "orders",
		Comment: "customer orders",
		Columns: []core.Column{
			{Name: "id", DataType: "BIGINT", IsPrimaryKey: true},
			{Name: "customer_id", DataType: "BIGINT", Comment: "buyer"},
			{Name: "total", DataType: "DECIMAL(10,2)", IsNullable: true},
		},
	})
	c.AddTable(ShopSource, &core.TableDetail{
		Name: "users",
		Columns: []core.Column{
			{Name: "id", DataType: "BIGINT", IsPrimaryKey: true},
			{Name: "email", DataType: "VARCHAR", Comment: "login"},
		},
	})
	return c
}

// AddTable registers a table stub and its detail.
func (c *Catalog) AddTable(source core.SourceID, d *core.TableDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stubs[source] = append(c.stubs[source], core.TableStub{Name: d.Name, Comment: d.Comment})
	if c.details[source] == nil {
		c.details[source] = make(map[string]*core.TableDetail)
	}
	c.details[source][d.Name] = d
}

// FailList makes listings of source fail with err; nil clears the failure.
func (c *Catalog) FailList(source core.SourceID, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErrs[source] = err
}

// FailDetail makes detail fetches of table fail with err; nil clears the failure.
func (c *Catalog) FailDetail(table string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detailErrs[table] = err
}

// HoldList blocks listings of source until the returned release is called.
func (c *Catalog) HoldList(source core.SourceID) (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.listGates[source] = gate
	c.mu.Unlock()
	return c.releaser(gate, func() { delete(c.listGates, source) })
}

// HoldDetail blocks detail fetches of table until the returned release is called.
// A held fetch ignores context cancellation so its result always arrives.
func (c *Catalog) HoldDetail(table string) (release func()) {
	gate := make(chan struct{})
	c.mu.Lock()
	c.detailGates[table] = gate
	c.mu.Unlock()
	return c.releaser(gate, func() { delete(c.detailGates, table) })
}

func (c *Catalog) releaser(gate chan struct{}, forget func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			forget()
			c.mu.Unlock()
			close(gate)
		})
	}
}

// Started receives the name of every table (or "list:<source>") as its fetch begins.
func (c *Catalog) Started() <-chan string {
	return c.started
}

// AwaitStarted blocks until the fetch named name has begun, failing the
// test after five seconds.
func (c *Catalog) AwaitStarted(t testing.TB, name string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-c.started:
			if got == name {
				return
			}
		case <-timeout:
			t.Fatalf("fetch %q never started", name)
		}
	}
}

// ListCalls returns how many listings of source were made.
func (c *Catalog) ListCalls(source core.SourceID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls[source]
}

// DetailCalls returns how many detail fetches of table were made.
func (c *Catalog) DetailCalls(table string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detailCalls[table]
}

// ListTables implements core.CatalogFetcher.
func (c *Catalog) ListTables(_ context.Context, source core.SourceID) ([]core.TableStub, error) {
	c.mu.Lock()
	c.listCalls[source]++
	gate := c.listGates[source]
	c.mu.Unlock()

	c.notify("list:" + string(source))
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.listErrs[source]; err != nil {
		return nil, err
	}
	stubs, ok := c.stubs[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownSource, source)
	}
	return append([]core.TableStub(nil), stubs...), nil
}

// GetTableDetail implements core.CatalogFetcher.
func (c *Catalog) GetTableDetail(_ context.Context, source core.SourceID, table string) (*core.TableDetail, error) {
	c.mu.Lock()
	c.detailCalls[table]++
	gate := c.detailGates[table]
	c.mu.Unlock()

	c.notify(table)
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.detailErrs[table]; err != nil {
		return nil, err
	}
	d, ok := c.details[source][table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTableNotFound, table)
	}
	return d, nil
}

func (c *Catalog) notify(name string) {
	select {
	case c.started <- name:
	default:
	}
}
