package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"testing"
	"time"

	"github.com/leapstack-labs/leapcomplete/internal/testutil"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURI = "file:///tmp/query.sql"

// testClient speaks framed JSON-RPC to a server running on pipes.
type testClient struct {
	t     *testing.T
	in    *io.PipeWriter
	out   *bufio.Reader
	rawID int
	notes []JSONRPCMessage
	done  chan error
}

func newTestSession(t *testing.T) (*session.Session, *testutil.Catalog) {
	t.Helper()
	cat := testutil.NewShopCatalog()
	sess, err := session.New(cat, session.Config{ExpansionCapacity: 2}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(sess.Wait)
	require.NoError(t, sess.OnSourceChange(context.Background(), testutil.ShopSource))
	return sess, cat
}

func startServer(t *testing.T, sess *session.Session) *testClient {
	t.Helper()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()

	c := &testClient{t: t, in: inW, out: bufio.NewReader(outR), done: make(chan error, 1)}
	srv := NewServerWithLogger(inR, outW, sess, testutil.NewTestLogger(t))
	go func() {
		err := srv.Run(context.Background())
		_ = outW.Close()
		c.done <- err
	}()

	t.Cleanup(func() {
		_ = inW.Close()
		go func() { _, _ = io.Copy(io.Discard, c.out) }()
		select {
		case err := <-c.done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return c
}

func (c *testClient) send(msg JSONRPCMessage) {
	c.t.Helper()
	msg.JSONRPC = "2.0"
	body, err := json.Marshal(msg)
	require.NoError(c.t, err)
	_, err = fmt.Fprintf(c.in, "Content-Length: %d\r\n\r\n%s", len(body), body)
	require.NoError(c.t, err)
}

func (c *testClient) read() JSONRPCMessage {
	c.t.Helper()
	header, err := textproto.NewReader(c.out).ReadMIMEHeader()
	require.NoError(c.t, err)
	n, err := strconv.Atoi(header.Get("Content-Length"))
	require.NoError(c.t, err)

	body := make([]byte, n)
	_, err = io.ReadFull(c.out, body)
	require.NoError(c.t, err)

	var msg JSONRPCMessage
	require.NoError(c.t, json.Unmarshal(body, &msg))
	return msg
}

func (c *testClient) notify(method string, params any) {
	c.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(c.t, err)
	c.send(JSONRPCMessage{Method: method, Params: raw})
}

// call sends a request and returns its response, keeping notifications
// that arrive in between.
func (c *testClient) call(method string, params any) JSONRPCMessage {
	c.t.Helper()
	c.rawID++
	id := json.RawMessage(strconv.Itoa(c.rawID))
	raw, err := json.Marshal(params)
	require.NoError(c.t, err)
	c.send(JSONRPCMessage{ID: &id, Method: method, Params: raw})

	for {
		msg := c.read()
		if msg.ID != nil && string(*msg.ID) == string(id) {
			return msg
		}
		c.notes = append(c.notes, msg)
	}
}

// waitNotification returns the first notification of method accepted by match.
func (c *testClient) waitNotification(method string, match func(json.RawMessage) bool) json.RawMessage {
	c.t.Helper()
	for i, msg := range c.notes {
		if msg.Method == method && match(msg.Params) {
			c.notes = append(c.notes[:i], c.notes[i+1:]...)
			return msg.Params
		}
	}
	for {
		msg := c.read()
		if msg.Method == method && match(msg.Params) {
			return msg.Params
		}
	}
}

func (c *testClient) initialize(snippets bool) InitializeResult {
	c.t.Helper()
	params := map[string]any{
		"processId": 1,
		"rootUri":   "file:///tmp",
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"completion": map[string]any{
					"completionItem": map[string]any{"snippetSupport": snippets},
				},
			},
		},
	}
	resp := c.call("initialize", params)
	require.Nil(c.t, resp.Error)
	c.notify("initialized", struct{}{})
	return result[InitializeResult](c.t, resp)
}

func (c *testClient) open(text string) {
	c.t.Helper()
	c.notify("textDocument/didOpen", DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: testURI, LanguageID: "sql", Version: 1, Text: text},
	})
}

func (c *testClient) complete(line, char uint32) CompletionList {
	c.t.Helper()
	resp := c.call("textDocument/completion", CompletionParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: testURI},
			Position:     Position{Line: line, Character: char},
		},
	})
	require.Nil(c.t, resp.Error)
	return result[CompletionList](c.t, resp)
}

func (c *testClient) hover(char uint32) *Hover {
	c.t.Helper()
	resp := c.call("textDocument/hover", HoverParams{
		TextDocumentPositionParams: TextDocumentPositionParams{
			TextDocument: TextDocumentIdentifier{URI: testURI},
			Position:     Position{Character: char},
		},
	})
	require.Nil(c.t, resp.Error)
	return result[*Hover](c.t, resp)
}

func result[T any](t *testing.T, msg JSONRPCMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(msg.Result, &v))
	return v
}

func labels(items []CompletionItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Label
	}
	return out
}

func find(t *testing.T, items []CompletionItem, label string) CompletionItem {
	t.Helper()
	for _, it := range items {
		if it.Label == label {
			return it
		}
	}
	t.Fatalf("no completion item %q in %v", label, labels(items))
	return CompletionItem{}
}

func TestServer_Initialize(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)

	res := c.initialize(true)
	require.NotNil(t, res.Capabilities.CompletionProvider)
	assert.Equal(t, []string{".", " ", "(", ","}, res.Capabilities.CompletionProvider.TriggerCharacters)
	assert.True(t, res.Capabilities.HoverProvider)
	assert.Equal(t, TextDocumentSyncKindFull, res.Capabilities.TextDocumentSync.Change)
	assert.Equal(t, "leapcomplete", res.ServerInfo.Name)
}

func TestServer_RequiresInitialize(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)

	resp := c.call(MethodSnapshot, struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeNotInitialized, resp.Error.Code)
}

func TestServer_UnknownMethod(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)

	resp := c.call("textDocument/definition", struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestServer_CompletesTables(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)
	c.open("SELECT *\nFROM o")

	list := c.complete(1, 6)
	require.NotEmpty(t, list.Items)
	assert.False(t, list.IsIncomplete)

	first := list.Items[0]
	assert.Equal(t, "orders", first.Label)
	assert.Equal(t, CompletionItemKindClass, first.Kind)
	assert.Equal(t, "0000", first.SortText)
	assert.Equal(t, "customer orders", first.Detail)
	require.NotNil(t, first.TextEdit)
	assert.Equal(t, "orders", first.TextEdit.NewText)
	assert.Equal(t, Range{
		Start: Position{Line: 1, Character: 5},
		End:   Position{Line: 1, Character: 6},
	}, first.TextEdit.Range)
	assert.NotContains(t, labels(list.Items), "users")
}

func TestServer_CompletesColumnsAfterExpand(t *testing.T) {
	sess, cat := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)
	c.open("SELECT o. FROM orders o")

	list := c.complete(0, 9)
	assert.Empty(t, list.Items, "columns are not loaded yet")

	resp := c.call(MethodExpand, TableParams{Table: "orders"})
	require.Nil(t, resp.Error)
	expanded := result[ExpandResult](t, resp)
	assert.Equal(t, []string{"orders"}, expanded.Expanded)
	assert.Empty(t, expanded.Evicted)

	c.waitNotification(MethodSchemaChanged, func(raw json.RawMessage) bool {
		var p SchemaChangedParams
		return json.Unmarshal(raw, &p) == nil && p.Kind == "detail_loaded" && p.Table == "orders"
	})
	assert.Equal(t, 1, cat.DetailCalls("orders"))

	list = c.complete(0, 9)
	assert.Equal(t, []string{"orders.id", "orders.customer_id", "orders.total"}, labels(list.Items))
	item := find(t, list.Items, "orders.customer_id")
	assert.Equal(t, CompletionItemKindField, item.Kind)
	assert.Equal(t, "customer_id", item.TextEdit.NewText)
	assert.Equal(t, "customer_id", item.FilterText)
	assert.Equal(t, Position{Character: 9}, item.TextEdit.Range.Start)
	assert.Equal(t, Position{Character: 9}, item.TextEdit.Range.End)
}

func TestServer_FunctionSnippets(t *testing.T) {
	for _, snippets := range []bool{false, true} {
		t.Run(strconv.FormatBool(snippets), func(t *testing.T) {
			sess, _ := newTestSession(t)
			c := startServer(t, sess)
			c.initialize(snippets)
			c.open("SELECT COU")

			item := find(t, c.complete(0, 10).Items, "COUNT")
			assert.Equal(t, CompletionItemKindFunction, item.Kind)
			assert.Equal(t, Position{Character: 7}, item.TextEdit.Range.Start)
			if snippets {
				assert.Equal(t, InsertTextFormatSnippet, item.InsertTextFormat)
				assert.Equal(t, "COUNT($1)", item.TextEdit.NewText)
			} else {
				assert.Equal(t, InsertTextFormatPlainText, item.InsertTextFormat)
				assert.Equal(t, "COUNT(", item.TextEdit.NewText)
			}
		})
	}
}

func TestServer_CompletionFollowsChanges(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)
	c.open("SELECT 1")

	c.notify("textDocument/didChange", DidChangeTextDocumentParams{
		TextDocument:   VersionedTextDocumentIdentifier{TextDocumentIdentifier: TextDocumentIdentifier{URI: testURI}, Version: 2},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "SELECT * FROM us"}},
	})
	assert.Equal(t, "users", c.complete(0, 16).Items[0].Label)

	c.notify("textDocument/didClose", DidCloseTextDocumentParams{TextDocument: TextDocumentIdentifier{URI: testURI}})
	assert.Empty(t, c.complete(0, 16).Items)
}

func TestServer_HoverLoadsTable(t *testing.T) {
	sess, cat := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)
	c.open("SELECT u.email FROM users u")

	h := c.hover(22)
	require.NotNil(t, h)
	assert.Equal(t, MarkupKindMarkdown, h.Contents.Kind)
	assert.Contains(t, h.Contents.Value, "**users**")
	assert.Contains(t, h.Contents.Value, "Loading columns")
	assert.Equal(t, &Range{Start: Position{Character: 20}, End: Position{Character: 25}}, h.Range)

	sess.Wait()
	assert.Equal(t, 1, cat.DetailCalls("users"))
	assert.False(t, sess.IsExpanded("users"), "hovering does not expand")

	h = c.hover(22)
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "| email | VARCHAR |")

	h = c.hover(10)
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "**users.email** `VARCHAR`")
	assert.Contains(t, h.Contents.Value, "login")
}

func TestServer_HoverFunction(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)
	c.open("SELECT count(*) FROM users")

	h := c.hover(8)
	require.NotNil(t, h)
	assert.Contains(t, h.Contents.Value, "COUNT(expr) -> bigint")

	assert.Nil(t, c.hover(13), "nothing under the cursor")
}

func TestServer_ExpandUnknownTable(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)

	resp := c.call(MethodExpand, TableParams{Table: "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, codeInvalidParams, resp.Error.Code)
}

func TestServer_ExpandEvictsAndCollapse(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)

	for _, table := range []string{"orders", "users"} {
		require.Nil(t, c.call(MethodExpand, TableParams{Table: table}).Error)
	}
	resp := c.call(MethodCollapse, TableParams{Table: "orders"})
	assert.True(t, result[CollapseResult](t, resp).Collapsed)
	resp = c.call(MethodCollapse, TableParams{Table: "orders"})
	assert.False(t, result[CollapseResult](t, resp).Collapsed)

	snap := result[SnapshotResult](t, c.call(MethodSnapshot, struct{}{}))
	assert.Equal(t, "shop", snap.Source)
	assert.Equal(t, "loaded", snap.ListState)
	require.Len(t, snap.Tables, 2)
	assert.False(t, snap.Tables[0].Expanded)
	assert.True(t, snap.Tables[1].Expanded)
}

func TestServer_SelectSourceAndRefresh(t *testing.T) {
	sess, cat := newTestSession(t)
	cat.AddTable("billing", &core.TableDetail{
		Name:    "invoices",
		Columns: []core.Column{{Name: "id", DataType: "BIGINT"}},
	})
	c := startServer(t, sess)
	c.initialize(false)

	resp := c.call(MethodSelectSource, SelectSourceParams{Source: "billing"})
	require.Nil(t, resp.Error)
	snap := result[SnapshotResult](t, resp)
	assert.Equal(t, "billing", snap.Source)
	require.Len(t, snap.Tables, 1)

	cat.FailList("billing", errors.New("connection refused"))
	resp = c.call(MethodRefresh, struct{}{})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "connection refused")

	raw := c.waitNotification("window/showMessage", func(json.RawMessage) bool { return true })
	var msg ShowMessageParams
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MessageTypeWarning, msg.Type)
	assert.Contains(t, msg.Message, "billing")
}

func TestServer_InitialSource(t *testing.T) {
	cat := testutil.NewShopCatalog()
	sess, err := session.New(cat, session.Config{}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(sess.Wait)
	c := startServer(t, sess)

	resp := c.call("initialize", map[string]any{
		"initializationOptions": map[string]any{"source": "shop"},
	})
	require.Nil(t, resp.Error)
	c.notify("initialized", struct{}{})

	c.waitNotification(MethodSchemaChanged, func(raw json.RawMessage) bool {
		var p SchemaChangedParams
		return json.Unmarshal(raw, &p) == nil && p.Kind == "list_loaded"
	})
	assert.Equal(t, 1, cat.ListCalls(testutil.ShopSource))
}

func TestServer_Exit(t *testing.T) {
	sess, _ := newTestSession(t)
	c := startServer(t, sess)
	c.initialize(false)

	resp := c.call("shutdown", nil)
	assert.Nil(t, resp.Error)
	c.notify("exit", nil)

	select {
	case err := <-c.done:
		require.NoError(t, err)
		c.done <- nil
	case <-time.After(5 * time.Second):
		t.Fatal("server did not exit")
	}
}
