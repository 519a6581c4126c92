package completion

import (
	"fmt"
	"testing"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shopSnapshot has orders loaded (3 columns) and users not loaded.
func shopSnapshot() schema.Snapshot {
	return schema.Snapshot{
		Source:     "shop",
		Generation: 1,
		ListState:  schema.ListLoaded,
		Tables: []schema.TableEntry{
			{
				Stub:  core.TableStub{Name: "orders", Comment: "customer orders"},
				State: schema.Loaded,
				Detail: &core.TableDetail{
					Name: "orders",
					Columns: []core.Column{
						{Name: "id", DataType: "BIGINT", IsPrimaryKey: true},
						{Name: "customer_id", DataType: "BIGINT", Comment: "buyer"},
						{Name: "total", DataType: "DECIMAL(10,2)"},
					},
				},
			},
			{Stub: core.TableStub{Name: "users"}, State: schema.NotLoaded},
		},
	}
}

func byKind(items []Suggestion) map[Kind][]string {
	out := make(map[Kind][]string)
	for _, s := range items {
		out[s.Kind] = append(out[s.Kind], s.Label)
	}
	return out
}

func TestSynthesize_FromClause(t *testing.T) {
	items := Synthesize(Request{Context: sqlcontext.FromClause}, shopSnapshot(), nil)

	kinds := byKind(items)
	assert.Equal(t, []string{"orders", "users"}, kinds[KindTable])
	assert.Empty(t, kinds[KindColumn])
	assert.Empty(t, kinds[KindFunction])
	assert.NotEmpty(t, kinds[KindKeyword])
	assert.LessOrEqual(t, len(items), DefaultLimit)

	assert.Equal(t, "customer orders", items[0].Detail)
	assert.Equal(t, "orders", items[0].InsertText)
}

func TestSynthesize_ColumnContexts(t *testing.T) {
	for _, ctx := range []sqlcontext.Context{sqlcontext.SelectList, sqlcontext.WhereClause, sqlcontext.OnClause} {
		t.Run(ctx.String(), func(t *testing.T) {
			items := Synthesize(Request{Context: ctx}, shopSnapshot(), nil)

			kinds := byKind(items)
			assert.Empty(t, kinds[KindTable])
			assert.Equal(t, []string{"orders.id", "orders.customer_id", "orders.total"}, kinds[KindColumn])
			assert.NotEmpty(t, kinds[KindFunction])
		})
	}
}

func TestSynthesize_Unknown(t *testing.T) {
	items := Synthesize(Request{Context: sqlcontext.Unknown}, shopSnapshot(), nil)

	kinds := byKind(items)
	assert.Len(t, kinds[KindTable], 2)
	assert.Len(t, kinds[KindColumn], 3)
	assert.NotEmpty(t, kinds[KindFunction])
	assert.NotEmpty(t, kinds[KindKeyword])
	assert.Equal(t, KindTable, items[0].Kind)
}

func TestSynthesize_ColumnShape(t *testing.T) {
	items := Synthesize(Request{Context: sqlcontext.SelectList}, shopSnapshot(), nil)
	require.GreaterOrEqual(t, len(items), 3)

	assert.Equal(t, Suggestion{Label: "orders.id", InsertText: "id", Kind: KindColumn, Detail: "BIGINT", SortRank: 0}, items[0])
	assert.Equal(t, "BIGINT - buyer", items[1].Detail)
	assert.Equal(t, "customer_id", items[1].InsertText)
}

func TestSynthesize_KeywordsLastAndDeduplicated(t *testing.T) {
	statics := DefaultStatics()
	items := Synthesize(Request{Context: sqlcontext.WhereClause, Limit: 1000}, shopSnapshot(), statics)

	firstKeyword := -1
	seen := make(map[string]int)
	for i, s := range items {
		if s.Kind == KindKeyword {
			if firstKeyword < 0 {
				firstKeyword = i
			}
			seen[s.Label]++
			assert.Equal(t, s.Label+" ", s.InsertText)
			continue
		}
		assert.Less(t, firstKeyword, 0, "%s after a keyword", s.Label)
	}
	for kw, n := range seen {
		assert.Equal(t, 1, n, kw)
	}

	// Context keywords lead the keyword block.
	ctxKeywords := statics.ContextKeywords[sqlcontext.WhereClause]
	for i, kw := range ctxKeywords {
		assert.Equal(t, kw, items[firstKeyword+i].Label)
	}
	// Every static keyword is present.
	for _, kw := range statics.Keywords {
		assert.Contains(t, seen, kw)
	}
}

func TestSynthesize_Cap(t *testing.T) {
	snap := schema.Snapshot{ListState: schema.ListLoaded}
	for i := range 150 {
		name := fmt.Sprintf("t%03d", i)
		snap.Tables = append(snap.Tables, schema.TableEntry{Stub: core.TableStub{Name: name}})
	}

	items := Synthesize(Request{Context: sqlcontext.FromClause}, snap, nil)
	require.Len(t, items, DefaultLimit)
	assert.Equal(t, "t000", items[0].Label)
	assert.Equal(t, "t099", items[DefaultLimit-1].Label, "truncation keeps the leading block")
	for i, s := range items {
		assert.Equal(t, i, s.SortRank)
		assert.Equal(t, KindTable, s.Kind)
	}

	items = Synthesize(Request{Context: sqlcontext.FromClause, Limit: 5}, snap, nil)
	assert.Len(t, items, 5)
}

func TestSynthesize_Prefix(t *testing.T) {
	items := Synthesize(Request{Context: sqlcontext.FromClause, Prefix: "OR"}, shopSnapshot(), nil)

	labels := byKind(items)
	assert.Equal(t, []string{"orders"}, labels[KindTable])
	assert.Equal(t, []string{"ORDER BY", "OR"}, labels[KindKeyword])

	items = Synthesize(Request{Context: sqlcontext.SelectList, Prefix: "cust"}, shopSnapshot(), nil)
	labels = byKind(items)
	assert.Equal(t, []string{"orders.customer_id"}, labels[KindColumn])

	// The table-qualified label matches too.
	items = Synthesize(Request{Context: sqlcontext.SelectList, Prefix: "orders.t"}, shopSnapshot(), nil)
	assert.Equal(t, []string{"orders.total"}, byKind(items)[KindColumn])
}

func TestSynthesize_Qualifier(t *testing.T) {
	req := Request{
		Context:   sqlcontext.WhereClause,
		Qualifier: "o",
		Aliases:   map[string]string{"o": "orders"},
	}
	items := Synthesize(req, shopSnapshot(), nil)
	assert.Equal(t, map[Kind][]string{KindColumn: {"orders.id", "orders.customer_id", "orders.total"}}, byKind(items),
		"no keywords after a qualifier")

	req.Prefix = "a"
	assert.Empty(t, Synthesize(req, shopSnapshot(), nil), "AND is not offered after o.")

	req.Prefix = "to"
	items = Synthesize(req, shopSnapshot(), nil)
	require.Len(t, items, 1)
	assert.Equal(t, "total", items[0].InsertText)

	// Not loaded, or unknown: nothing rather than a guess.
	assert.Empty(t, Synthesize(Request{Context: sqlcontext.SelectList, Qualifier: "users"}, shopSnapshot(), nil))
	assert.Empty(t, Synthesize(Request{Context: sqlcontext.SelectList, Qualifier: "ghost"}, shopSnapshot(), nil))
}

func TestSynthesize_EmptySnapshot(t *testing.T) {
	items := Synthesize(Request{Context: sqlcontext.SelectList}, schema.Snapshot{}, nil)

	kinds := byKind(items)
	assert.Empty(t, kinds[KindColumn])
	assert.NotEmpty(t, kinds[KindFunction])
}

func TestSynthesize_Functions(t *testing.T) {
	statics := &Statics{Functions: []FunctionInfo{
		{Name: "COUNT", Signature: "COUNT(expr) -> bigint", Snippet: "COUNT($1)"},
		{Name: "PI", Signature: "PI() -> double"},
	}}
	items := Synthesize(Request{Context: sqlcontext.SelectList}, schema.Snapshot{}, statics)

	require.Len(t, items, 2)
	assert.Equal(t, Suggestion{Label: "COUNT", InsertText: "COUNT($1)", Kind: KindFunction, Detail: "COUNT(expr) -> bigint", Snippet: true}, items[0])
	assert.Equal(t, "PI(", items[1].InsertText)
	assert.False(t, items[1].Snippet)
}

func TestSynthesize_Deterministic(t *testing.T) {
	req := Request{Context: sqlcontext.Unknown}
	first := Synthesize(req, shopSnapshot(), nil)
	for range 5 {
		assert.Equal(t, first, Synthesize(req, shopSnapshot(), nil))
	}
}

func TestStatics_Lookup(t *testing.T) {
	statics := DefaultStatics()

	fn, ok := statics.Function("count")
	require.True(t, ok)
	assert.True(t, fn.IsAggregate)

	_, ok = statics.Function("nope")
	assert.False(t, ok)

	names := make([]string, 0)
	for _, f := range statics.SearchFunctions("co") {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"COUNT", "CONCAT", "COALESCE"}, names)
}

func TestKind_Text(t *testing.T) {
	b, err := KindColumn.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "column", string(b))

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("function")))
	assert.Equal(t, KindFunction, k)
	assert.Error(t, k.UnmarshalText([]byte("macro")))
}
