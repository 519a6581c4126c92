package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
)

// JSON-RPC error codes.
const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInternalError  = -32603
	codeNotInitialized = -32002
)

// Version is reported in the initialize response.
var Version = "dev"

// Server implements the Language Server Protocol on top of a completion session.
type Server struct {
	documents *DocumentStore
	sess      *session.Session

	// Set by initialize.
	initialized atomic.Bool
	snippets    atomic.Bool
	source      string

	// I/O
	reader  *bufio.Reader
	writer  io.Writer
	writeMu sync.Mutex

	logger *slog.Logger

	// ctx is the context passed to Run; long requests run under it.
	ctx     context.Context
	pending sync.WaitGroup

	shutdown atomic.Bool
	exited   atomic.Bool
}

// NewServer creates a new LSP server instance.
func NewServer(reader io.Reader, writer io.Writer, sess *session.Session) *Server {
	return NewServerWithLogger(reader, writer, sess, nil)
}

// NewServerWithLogger creates a new LSP server instance with a custom logger.
func NewServerWithLogger(reader io.Reader, writer io.Writer, sess *session.Session, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		documents: NewDocumentStore(),
		sess:      sess,
		reader:    bufio.NewReader(reader),
		writer:    writer,
		logger:    logger,
		ctx:       context.Background(),
	}
}

// Run processes JSON-RPC messages until the client sends exit or closes
// the input. Cache events are forwarded to the client while it runs.
// Run returns only after every response has been written.
func (s *Server) Run(ctx context.Context) error {
	s.ctx = ctx
	s.logger.Info("leapcomplete LSP server starting")

	events := s.sess.Subscribe()
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.forwardEvents(events)
	}()
	defer func() {
		s.sess.Unsubscribe(events)
		s.pending.Wait()
	}()

	for !s.exited.Load() {
		msg, err := s.readMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.logger.Info("client disconnected")
				return nil
			}
			var perr *parseError
			if errors.As(err, &perr) {
				s.sendResponse(nil, nil, &JSONRPCError{Code: codeParseError, Message: perr.Error()})
				continue
			}
			return err
		}

		if err := s.handleMessage(msg); err != nil {
			s.logger.Warn("error handling message", slog.String("method", msg.Method), slog.Any("error", err))
		}
	}
	return nil
}

// JSONRPCMessage represents a JSON-RPC 2.0 message.
type JSONRPCMessage struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *JSONRPCError    `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// parseError is a well framed message with a body that is not JSON-RPC.
type parseError struct {
	err error
}

func (e *parseError) Error() string { return "error parsing message: " + e.err.Error() }

// readMessage reads a JSON-RPC message from the input stream.
func (s *Server) readMessage() (*JSONRPCMessage, error) {
	// Read headers
	var contentLength int
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			break // End of headers
		}

		if value, ok := strings.CutPrefix(line, "Content-Length:"); ok {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length: %w", err)
			}
		}
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing Content-Length header")
	}

	// Read body
	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}

	var msg JSONRPCMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, &parseError{err: err}
	}

	return &msg, nil
}

// sendResponse sends a JSON-RPC response.
func (s *Server) sendResponse(id *json.RawMessage, result any, err *JSONRPCError) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		ID:      id,
	}

	if err != nil {
		msg.Error = err
	} else {
		resultBytes, mErr := json.Marshal(result)
		if mErr != nil {
			msg.Error = &JSONRPCError{Code: codeInternalError, Message: mErr.Error()}
		} else {
			msg.Result = resultBytes
		}
	}

	s.writeMessage(&msg)
}

// sendError responds to a request with an error.
func (s *Server) sendError(id *json.RawMessage, code int, err error) {
	s.sendResponse(id, nil, &JSONRPCError{Code: code, Message: err.Error()})
}

// sendNotification sends a JSON-RPC notification (no ID).
func (s *Server) sendNotification(method string, params any) {
	msg := JSONRPCMessage{
		JSONRPC: "2.0",
		Method:  method,
	}

	if params != nil {
		paramsBytes, _ := json.Marshal(params)
		msg.Params = paramsBytes
	}

	s.writeMessage(&msg)
}

// showMessage asks the client to display a message.
func (s *Server) showMessage(typ MessageType, format string, args ...any) {
	s.sendNotification("window/showMessage", &ShowMessageParams{
		Type:    typ,
		Message: fmt.Sprintf(format, args...),
	})
}

// writeMessage writes a JSON-RPC message to the output stream.
func (s *Server) writeMessage(msg *JSONRPCMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	body, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("error marshaling message", slog.Any("error", err))
		return
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(body))
	_, _ = s.writer.Write([]byte(header))
	_, _ = s.writer.Write(body)
}

// async runs a request handler off the read loop. Run waits for it
// before returning.
func (s *Server) async(fn func()) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		fn()
	}()
}

// handleMessage dispatches a message to the appropriate handler.
func (s *Server) handleMessage(msg *JSONRPCMessage) error {
	s.logger.Debug("received", slog.String("method", msg.Method))

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized":
		return s.handleInitialized(msg)
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		return s.handleExit(msg)
	}

	if !s.initialized.Load() {
		if msg.ID != nil {
			s.sendError(msg.ID, codeNotInitialized, errors.New("server not initialized"))
		}
		return nil
	}

	switch msg.Method {
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/completion":
		return s.handleCompletion(msg)
	case "textDocument/hover":
		return s.handleHover(msg)
	case MethodSelectSource:
		return s.handleSelectSource(msg)
	case MethodRefresh:
		return s.handleRefresh(msg)
	case MethodExpand:
		return s.handleExpand(msg)
	case MethodCollapse:
		return s.handleCollapse(msg)
	case MethodSnapshot:
		return s.handleSnapshot(msg)
	default:
		if msg.ID != nil {
			// Unknown method with ID - respond with method not found
			s.sendResponse(msg.ID, nil, &JSONRPCError{
				Code:    codeMethodNotFound,
				Message: "Method not found: " + msg.Method,
			})
		}
		return nil
	}
}

// decode unmarshals params, answering the request with an error when
// they are malformed.
func (s *Server) decode(msg *JSONRPCMessage, v any) error {
	if err := json.Unmarshal(msg.Params, v); err != nil {
		if msg.ID != nil {
			s.sendError(msg.ID, codeInvalidParams, err)
		}
		return err
	}
	return nil
}

// --- Lifecycle handlers ---

func (s *Server) handleInitialize(msg *JSONRPCMessage) error {
	var params InitializeParams
	if len(msg.Params) > 0 {
		if err := s.decode(msg, &params); err != nil {
			return err
		}
	}

	s.snippets.Store(params.Capabilities.TextDocument.Completion.CompletionItem.SnippetSupport)
	s.source = params.InitializationOptions.Source
	s.initialized.Store(true)

	result := InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync: &TextDocumentSyncOptions{
				OpenClose: true,
				Change:    TextDocumentSyncKindFull,
			},
			CompletionProvider: &CompletionOptions{
				TriggerCharacters: []string{".", " ", "(", ","},
			},
			HoverProvider: true,
		},
		ServerInfo: &ServerInfo{Name: "leapcomplete", Version: Version},
	}

	s.sendResponse(msg.ID, result, nil)
	return nil
}

func (s *Server) handleInitialized(_ *JSONRPCMessage) error {
	s.logger.Info("server initialized", slog.Bool("snippets", s.snippets.Load()))

	if s.source == "" {
		if s.sess.Snapshot().Source == "" {
			s.showMessage(MessageTypeInfo, "No catalog source selected. Send leapcomplete/selectSource to pick one.")
		}
		return nil
	}

	source := core.SourceID(s.source)
	s.async(func() {
		if err := s.sess.OnSourceChange(s.ctx, source); err != nil {
			s.logger.Warn("initial source failed", slog.String("source", string(source)), slog.Any("error", err))
		}
	})
	return nil
}

func (s *Server) handleShutdown(msg *JSONRPCMessage) error {
	s.shutdown.Store(true)
	s.sendResponse(msg.ID, nil, nil)
	s.logger.Info("server shutdown")
	return nil
}

func (s *Server) handleExit(_ *JSONRPCMessage) error {
	s.logger.Info("server exit", slog.Bool("clean", s.shutdown.Load()))
	s.exited.Store(true)
	return nil
}

// --- Document handlers ---

func (s *Server) handleDidOpen(msg *JSONRPCMessage) error {
	var params DidOpenTextDocumentParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	s.documents.Open(params.TextDocument.URI, params.TextDocument.Text, params.TextDocument.Version)
	s.logger.Debug("opened", slog.String("uri", params.TextDocument.URI))
	return nil
}

func (s *Server) handleDidClose(msg *JSONRPCMessage) error {
	var params DidCloseTextDocumentParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	s.documents.Close(params.TextDocument.URI)
	s.logger.Debug("closed", slog.String("uri", params.TextDocument.URI))
	return nil
}

func (s *Server) handleDidChange(msg *JSONRPCMessage) error {
	var params DidChangeTextDocumentParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	// We use full sync, so take the last change
	if len(params.ContentChanges) > 0 {
		lastChange := params.ContentChanges[len(params.ContentChanges)-1]
		s.documents.Update(params.TextDocument.URI, lastChange.Text, params.TextDocument.Version)
	}
	return nil
}

// --- Events ---

// forwardEvents turns cache events into notifications until events is closed.
func (s *Server) forwardEvents(events chan schema.Event) {
	for ev := range events {
		params := &SchemaChangedParams{
			Kind:       ev.Kind.String(),
			Source:     string(ev.Source),
			Generation: ev.Generation,
			Table:      ev.Table,
		}
		if ev.Err != nil {
			params.Error = ev.Err.Error()
		}
		s.sendNotification(MethodSchemaChanged, params)

		if ev.Kind == schema.EventListFailed {
			s.showMessage(MessageTypeWarning, "Could not list tables of %s: %v", ev.Source, ev.Err)
		}
	}
}
