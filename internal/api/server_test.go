package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/leapcomplete/internal/testutil"
	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, *testutil.Catalog) {
	t.Helper()
	cat := testutil.NewShopCatalog()
	cat.AddTable("billing", &core.TableDetail{
		Name:    "invoices",
		Columns: []core.Column{{Name: "id", DataType: "BIGINT"}},
	})

	srv, err := NewServer(Config{
		Fetcher:       cat,
		Sources:       []core.SourceID{"billing", testutil.ShopSource},
		DefaultSource: testutil.ShopSource,
		Session:       session.Config{ExpansionCapacity: 1},
		SessionSecret: "test-secret",
		Logger:        testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.browsers.wait()
	})
	return srv, ts, cat
}

// browser is an HTTP client with its own cookie jar.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func newBrowser(t *testing.T, ts *httptest.Server) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, base: ts.URL, c: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (b *browser) do(method, path string, body any, out any) int {
	b.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(b.t, err)
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, r)
	require.NoError(b.t, err)
	resp, err := b.c.Do(req)
	require.NoError(b.t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(b.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{SessionSecret: "x"})
	assert.Error(t, err)

	_, err = NewServer(Config{Fetcher: testutil.NewCatalog()})
	assert.Error(t, err)
}

func TestServer_Sources(t *testing.T) {
	_, ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	var out []SourceInfo
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/sources", nil, &out))
	assert.Equal(t, []SourceInfo{{ID: "billing"}, {ID: "shop", Default: true}}, out)
}

func TestServer_SnapshotSelectsDefaultSource(t *testing.T) {
	_, ts, cat := newTestServer(t)
	b := newBrowser(t, ts)

	var snap SnapshotView
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/snapshot", nil, &snap))
	assert.Equal(t, "shop", snap.Source)
	assert.Equal(t, "loaded", snap.ListState)
	require.Len(t, snap.Tables, 2)
	assert.Equal(t, "orders", snap.Tables[0].Name)
	assert.Equal(t, "not_loaded", snap.Tables[0].State)

	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/snapshot", nil, &snap))
	assert.Equal(t, 1, cat.ListCalls(testutil.ShopSource), "the cookie keeps the session")
}

func TestServer_CompleteAfterExpand(t *testing.T) {
	srv, ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	var exp ExpandResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/tables/orders/expand", nil, &exp))
	assert.Equal(t, []string{"orders"}, exp.Expanded)
	assert.Empty(t, exp.Evicted)
	srv.browsers.wait()

	text := "SELECT o.cu FROM orders o"
	offset := strings.Index(text, " FROM")
	var res CompleteResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodPost, "/api/complete", CompleteRequest{Text: text, Offset: &offset}, &res))
	assert.Equal(t, "select_list", res.Context)
	assert.Equal(t, "cu", res.Prefix)
	assert.Equal(t, "o", res.Qualifier)
	assert.Equal(t, 9, res.ReplaceStart)
	assert.Equal(t, 11, res.ReplaceEnd)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "customer_id", res.Suggestions[0].InsertText)
	assert.Equal(t, completion.KindColumn, res.Suggestions[0].Kind)

	var snap SnapshotView
	b.do(http.MethodGet, "/api/snapshot", nil, &snap)
	assert.True(t, snap.Tables[0].Expanded)
	assert.Len(t, snap.Tables[0].Columns, 3)
}

func TestServer_ExpandEvictsAndCollapse(t *testing.T) {
	_, ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	b.do(http.MethodPost, "/api/tables/orders/expand", nil, nil)
	var exp ExpandResponse
	b.do(http.MethodPost, "/api/tables/users/expand", nil, &exp)
	assert.Equal(t, []string{"users"}, exp.Expanded)
	assert.Equal(t, []string{"orders"}, exp.Evicted)

	var col CollapseResponse
	require.Equal(t, http.StatusOK, b.do(http.MethodDelete, "/api/tables/users/expand", nil, &col))
	assert.True(t, col.Collapsed)
	b.do(http.MethodDelete, "/api/tables/users/expand", nil, &col)
	assert.False(t, col.Collapsed)
}

func TestServer_BrowsersAreIsolated(t *testing.T) {
	_, ts, _ := newTestServer(t)
	alice, bob := newBrowser(t, ts), newBrowser(t, ts)

	alice.do(http.MethodPost, "/api/tables/orders/expand", nil, nil)
	var snap SnapshotView
	bob.do(http.MethodGet, "/api/snapshot", nil, &snap)
	assert.False(t, snap.Tables[0].Expanded)

	var sel SnapshotView
	require.Equal(t, http.StatusOK, bob.do(http.MethodPost, "/api/source", SelectSourceRequest{Source: "billing"}, &sel))
	assert.Equal(t, "billing", sel.Source)

	alice.do(http.MethodGet, "/api/snapshot", nil, &snap)
	assert.Equal(t, "shop", snap.Source)
}

func TestServer_Errors(t *testing.T) {
	_, ts, cat := newTestServer(t)
	b := newBrowser(t, ts)

	var e ErrorResponse
	assert.Equal(t, http.StatusNotFound, b.do(http.MethodPost, "/api/tables/nope/expand", nil, &e))
	assert.Contains(t, e.Error, "nope")

	assert.Equal(t, http.StatusNotFound, b.do(http.MethodPost, "/api/source", SelectSourceRequest{Source: "nope"}, &e))
	assert.Equal(t, http.StatusBadRequest, b.do(http.MethodPost, "/api/complete", map[string]any{"sql": 1}, &e))

	cat.FailDetail("users", errors.New("permission denied"))
	assert.Equal(t, http.StatusBadGateway, b.do(http.MethodGet, "/api/tables/users", nil, &e))
	assert.Contains(t, e.Error, "permission denied")

	cat.FailList(testutil.ShopSource, errors.New("connection refused"))
	assert.Equal(t, http.StatusBadGateway, b.do(http.MethodPost, "/api/refresh", nil, &e))

	var snap SnapshotView
	b.do(http.MethodGet, "/api/snapshot", nil, &snap)
	assert.Equal(t, "failed", snap.ListState)
	assert.Contains(t, snap.ListError, "connection refused")
}

func TestServer_Describe(t *testing.T) {
	_, ts, _ := newTestServer(t)
	b := newBrowser(t, ts)

	var detail core.TableDetail
	require.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/tables/users", nil, &detail))
	assert.Equal(t, "users", detail.Name)
	assert.Len(t, detail.Columns, 2)
}

func TestServer_Events(t *testing.T) {
	srv, ts, _ := newTestServer(t)
	b := newBrowser(t, ts)
	b.do(http.MethodGet, "/api/snapshot", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := (&http.Client{Jar: b.c.Jar}).Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	await := func(substr string) {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream ended before %q", substr)
				if strings.Contains(line, substr) {
					return
				}
			case <-timeout:
				t.Fatalf("no event containing %q", substr)
			}
		}
	}

	await(`"orders"`)

	b.do(http.MethodPost, "/api/tables/users/expand", nil, nil)
	srv.browsers.wait()
	await(`"email"`)
}

func TestServer_ServeListener(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	b := &browser{t: t, base: "http://" + ln.Addr().String(), c: &http.Client{Timeout: 5 * time.Second}}
	var out []SourceInfo
	assert.Equal(t, http.StatusOK, b.do(http.MethodGet, "/api/sources", nil, &out))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
