package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/leapstack-labs/leapcomplete/internal/testutil"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRequester records detail requests against fixed states.
type stubRequester struct {
	mu        sync.Mutex
	states    map[string]schema.LoadState
	requested []string
	err       error
}

func (r *stubRequester) State(table string) (schema.LoadState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[table]
	return s, ok
}

func (r *stubRequester) RequestDetail(table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requested = append(r.requested, table)
	if r.err != nil {
		return r.err
	}
	r.states[table] = schema.Loading
	return nil
}

func newStub(states map[string]schema.LoadState) *stubRequester {
	return &stubRequester{states: states}
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(0, newStub(nil), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid expansion capacity 0")
}

func TestExpand_RequestsOnlyMissingDetail(t *testing.T) {
	req := newStub(map[string]schema.LoadState{
		"a": schema.NotLoaded,
		"b": schema.Failed,
		"c": schema.Loading,
		"d": schema.Loaded,
	})
	c, err := New(10, req, testutil.NewTestLogger(t))
	require.NoError(t, err)

	for _, table := range []string{"a", "b", "c", "d", "unknown"} {
		evicted, err := c.Expand(table)
		require.NoError(t, err)
		assert.Empty(t, evicted)
	}

	assert.Equal(t, []string{"a", "b"}, req.requested)
	assert.Equal(t, []string{"a", "b", "c", "d", "unknown"}, c.Expanded())
}

func TestExpand_AlreadyExpandedIsNoop(t *testing.T) {
	req := newStub(map[string]schema.LoadState{"a": schema.NotLoaded, "b": schema.NotLoaded, "c": schema.NotLoaded})
	c, err := New(2, req, nil)
	require.NoError(t, err)

	_, _ = c.Expand("a")
	_, _ = c.Expand("b")
	evicted, err := c.Expand("a")
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Equal(t, []string{"a", "b"}, req.requested, "no second request")

	// Recency was not bumped, so "a" is still the oldest.
	evicted, err = c.Expand("c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, evicted)
	assert.Equal(t, []string{"b", "c"}, c.Expanded())
}

func TestExpand_RequestError(t *testing.T) {
	req := newStub(map[string]schema.LoadState{"a": schema.NotLoaded})
	req.err = errors.New("boom")
	c, err := New(3, req, nil)
	require.NoError(t, err)

	_, err = c.Expand("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to request detail for a")
	assert.True(t, c.IsExpanded("a"), "admission does not depend on the request")
}

func TestCollapseAndClear(t *testing.T) {
	c, err := New(3, newStub(map[string]schema.LoadState{}), nil)
	require.NoError(t, err)

	_, _ = c.Expand("a")
	_, _ = c.Expand("b")

	assert.True(t, c.Collapse("a"))
	assert.False(t, c.Collapse("a"))
	assert.False(t, c.IsExpanded("a"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Expanded())
	assert.Equal(t, 3, c.Capacity())
}

func TestExpand_BoundedWithCache(t *testing.T) {
	const n = 3
	cat := testutil.NewCatalog()
	for i := range n + 1 {
		cat.AddTable("s", &core.TableDetail{
			Name:    fmt.Sprintf("t%d", i),
			Columns: []core.Column{{Name: "id", DataType: "INT"}},
		})
	}
	cache := schema.New(cat, testutil.NewTestLogger(t))
	t.Cleanup(cache.Wait)
	require.NoError(t, cache.Initialize(context.Background(), "s"))

	c, err := New(n, cache, testutil.NewTestLogger(t))
	require.NoError(t, err)

	var evicted []string
	for i := range n + 1 {
		out, err := c.Expand(fmt.Sprintf("t%d", i))
		require.NoError(t, err)
		evicted = append(evicted, out...)
		cache.Wait()
	}

	assert.Equal(t, n, c.Len())
	assert.Equal(t, []string{"t0"}, evicted)
	assert.Equal(t, []string{"t1", "t2", "t3"}, c.Expanded())

	// Eviction kept the loaded detail.
	state, ok := cache.State("t0")
	require.True(t, ok)
	assert.Equal(t, schema.Loaded, state)

	// Re-expanding is served from the cache.
	_, err = c.Expand("t0")
	require.NoError(t, err)
	assert.Equal(t, 1, cat.DetailCalls("t0"))
}

func TestExpand_Concurrent(t *testing.T) {
	req := newStub(map[string]schema.LoadState{})
	c, err := New(5, req, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = c.Expand(fmt.Sprintf("t%d", i%20))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
}
