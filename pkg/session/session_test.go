package session

import (
	"context"
	"testing"
	"time"

	"github.com/leapstack-labs/leapcomplete/internal/testutil"
	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newShopSession(t *testing.T, cfg Config) (*Session, *testutil.Catalog) {
	t.Helper()
	cat := testutil.NewShopCatalog()
	s, err := New(cat, cfg, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Wait)
	return s, cat
}

func TestSession_EndToEnd(t *testing.T) {
	s, cat := newShopSession(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.OnSourceChange(ctx, testutil.ShopSource))
	snap := s.Snapshot()
	require.Len(t, snap.Tables, 2)
	for _, e := range snap.Tables {
		assert.Equal(t, schema.NotLoaded, e.State)
	}

	release := cat.HoldDetail("orders")
	_, err := s.OnExpand("orders")
	require.NoError(t, err)
	entry, _ := s.Snapshot().Table("orders")
	assert.Equal(t, schema.Loading, entry.State)

	release()
	s.Wait()
	entry, _ = s.Snapshot().Table("orders")
	require.Equal(t, schema.Loaded, entry.State)
	assert.Len(t, entry.Detail.Columns, 3)

	text := "SELECT * FROM orders WHERE "
	assert.Equal(t, sqlcontext.WhereClause, sqlcontext.Classify(text, 29))

	items := s.GetSuggestions(text, 29)
	var columns, keywords []string
	for _, it := range items {
		switch it.Kind {
		case completion.KindColumn:
			columns = append(columns, it.Label)
		case completion.KindKeyword:
			keywords = append(keywords, it.Label)
		}
	}
	assert.Equal(t, []string{"orders.id", "orders.customer_id", "orders.total"}, columns)
	assert.Contains(t, keywords, "AND")
	assert.Contains(t, keywords, "LIKE")
	assert.LessOrEqual(t, len(items), completion.DefaultLimit)
}

func TestSession_ExpansionIsBounded(t *testing.T) {
	cat := testutil.NewCatalog()
	for _, name := range []string{"a", "b", "c"} {
		cat.AddTable("s", &core.TableDetail{Name: name, Columns: []core.Column{{Name: "id", DataType: "INT"}}})
	}
	s, err := New(cat, Config{ExpansionCapacity: 2}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(s.Wait)
	require.NoError(t, s.OnSourceChange(context.Background(), "s"))

	for _, name := range []string{"a", "b", "c"} {
		_, err := s.OnExpand(name)
		require.NoError(t, err)
	}
	s.Wait()

	assert.Equal(t, []string{"b", "c"}, s.Expanded())
	a, _ := s.Snapshot().Table("a")
	assert.Equal(t, schema.Loaded, a.State, "eviction keeps detail")
}

func TestSession_CollapseKeepsDetail(t *testing.T) {
	s, cat := newShopSession(t, Config{})
	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))

	_, err := s.OnExpand("users")
	require.NoError(t, err)
	s.Wait()

	assert.True(t, s.OnCollapse("users"))
	assert.False(t, s.IsExpanded("users"))

	_, err = s.OnExpand("users")
	require.NoError(t, err)
	s.Wait()
	assert.Equal(t, 1, cat.DetailCalls("users"))
}

func TestSession_ExpandUnknownTable(t *testing.T) {
	s, cat := newShopSession(t, Config{})

	_, err := s.OnExpand("orders")
	assert.ErrorIs(t, err, schema.ErrUnknownTable, "nothing is listed before a source is selected")

	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))
	_, err = s.OnExpand("ghost")
	assert.ErrorIs(t, err, schema.ErrUnknownTable)
	assert.Empty(t, s.Expanded())
	assert.Zero(t, cat.DetailCalls("ghost"))
}

func TestSession_ExpandIgnoresCase(t *testing.T) {
	s, cat := newShopSession(t, Config{ExpansionCapacity: 2})
	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))

	for _, name := range []string{"orders", "ORDERS", "users"} {
		evicted, err := s.OnExpand(name)
		require.NoError(t, err, name)
		assert.Empty(t, evicted, name)
	}
	s.Wait()

	assert.Equal(t, []string{"orders", "users"}, s.Expanded())
	assert.True(t, s.IsExpanded("Orders"))
	assert.Equal(t, 1, cat.DetailCalls("orders"))

	assert.True(t, s.OnCollapse("Orders"))
	assert.False(t, s.IsExpanded("orders"))
	assert.Equal(t, []string{"users"}, s.Expanded())
}

func TestSession_ExpandRacingRefresh(t *testing.T) {
	s, _ := newShopSession(t, Config{})
	ctx := context.Background()
	require.NoError(t, s.OnSourceChange(ctx, testutil.ShopSource))

	// A refresh lands between the listing check and the admission.
	s.beforeAdmit = func() {
		s.beforeAdmit = nil
		require.NoError(t, s.OnRefresh(ctx))
	}
	_, err := s.OnExpand("orders")
	require.ErrorIs(t, err, schema.ErrRebuilt)
	assert.Empty(t, s.Expanded(), "no table survives a rebuild expanded")

	_, err = s.OnExpand("orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, s.Expanded())
}

func TestSession_RefreshClearsExpansions(t *testing.T) {
	s, _ := newShopSession(t, Config{})
	ctx := context.Background()
	require.NoError(t, s.OnSourceChange(ctx, testutil.ShopSource))
	_, err := s.OnExpand("orders")
	require.NoError(t, err)
	s.Wait()

	require.NoError(t, s.OnRefresh(ctx))
	assert.Empty(t, s.Expanded())

	entry, _ := s.Snapshot().Table("orders")
	assert.Equal(t, schema.NotLoaded, entry.State)
	assert.Equal(t, uint64(2), s.Snapshot().Generation)
}

func TestSession_SourceChangeClearsExpansions(t *testing.T) {
	s, cat := newShopSession(t, Config{})
	cat.AddTable("hr", &core.TableDetail{Name: "employees", Columns: []core.Column{{Name: "id", DataType: "INT"}}})
	ctx := context.Background()

	require.NoError(t, s.OnSourceChange(ctx, testutil.ShopSource))
	_, err := s.OnExpand("orders")
	require.NoError(t, err)
	s.Wait()

	// Same source: nothing is rebuilt.
	require.NoError(t, s.OnSourceChange(ctx, testutil.ShopSource))
	assert.Equal(t, []string{"orders"}, s.Expanded())

	require.NoError(t, s.OnSourceChange(ctx, "hr"))
	assert.Empty(t, s.Expanded())
}

func TestSession_SuggestionsNeverFetch(t *testing.T) {
	s, cat := newShopSession(t, Config{MaxSuggestions: 10})
	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))

	items := s.GetSuggestions("SELECT  FROM users", 7)
	assert.LessOrEqual(t, len(items), 10)
	for _, it := range items {
		assert.NotEqual(t, completion.KindColumn, it.Kind)
	}
	assert.Zero(t, cat.DetailCalls("users"))
	assert.Zero(t, cat.DetailCalls("orders"))
}

func TestSession_Describe(t *testing.T) {
	s, _ := newShopSession(t, Config{})
	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))

	d, err := s.Describe(context.Background(), "users")
	require.NoError(t, err)
	assert.Equal(t, "users", d.Name)
	assert.False(t, s.IsExpanded("users"), "describing does not expand")

	_, err = s.Describe(context.Background(), "ghost")
	assert.ErrorIs(t, err, schema.ErrUnknownTable)
}

func TestSession_Subscribe(t *testing.T) {
	s, _ := newShopSession(t, Config{})
	ch := s.Subscribe()
	defer s.Unsubscribe(ch)

	require.NoError(t, s.OnSourceChange(context.Background(), testutil.ShopSource))

	var kinds []schema.EventKind
	timeout := time.After(time.Second)
	for len(kinds) < 2 {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		case <-timeout:
			t.Fatalf("got %v", kinds)
		}
	}
	assert.Equal(t, []schema.EventKind{schema.EventRebuilt, schema.EventListLoaded}, kinds)
}
