package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/session"
	"github.com/starfederation/datastar-go/datastar"
)

// maxBody bounds request bodies; SQL buffers are small.
const maxBody = 1 << 20

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	out := make([]SourceInfo, 0, len(s.cfg.Sources))
	for _, id := range s.cfg.Sources {
		out = append(out, SourceInfo{ID: string(id), Default: id == s.cfg.DefaultSource})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSelectSource(w http.ResponseWriter, r *http.Request) {
	var req SelectSourceRequest
	if !decode(w, r, &req) {
		return
	}
	id := core.SourceID(req.Source)
	if !slices.Contains(s.cfg.Sources, id) {
		s.writeError(w, fmt.Errorf("%w: %s", core.ErrUnknownSource, req.Source))
		return
	}

	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.OnSourceChange(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(sess))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.OnRefresh(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(sess))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotView(sess))
}

// handleDescribe waits for the columns of a table without expanding it.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	detail, err := sess.Describe(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	evicted, err := sess.OnExpand(chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if evicted == nil {
		evicted = []string{}
	}
	writeJSON(w, http.StatusOK, ExpandResponse{Expanded: sess.Expanded(), Evicted: evicted})
}

func (s *Server) handleCollapse(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CollapseResponse{Collapsed: sess.OnCollapse(chi.URLParam(r, "table"))})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	var req CompleteRequest
	if !decode(w, r, &req) {
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	offset := len(req.Text)
	if req.Offset != nil {
		offset = *req.Offset
	}
	a, suggestions := sess.Complete(req.Text, offset)
	writeJSON(w, http.StatusOK, CompleteResponse{
		Context:      a.Context.String(),
		Prefix:       a.Prefix,
		Qualifier:    a.Qualifier,
		ReplaceStart: a.ReplaceStart(),
		ReplaceEnd:   a.Offset,
		Suggestions:  suggestions,
	})
}

// handleEvents is the long-lived SSE endpoint. It patches the "schema"
// signal with a fresh snapshot on connect and after every cache event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	events := sess.Subscribe()
	defer sess.Unsubscribe(events)

	sse := datastar.NewSSE(w, r)
	send := func() {
		if err := sse.MarshalAndPatchSignals(map[string]any{"schema": snapshotView(sess)}); err != nil {
			_ = sse.ConsoleError(err)
		}
	}
	send()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			send()
		}
	}
}

// session resolves the browser session, answering the request on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessionFor(w, r)
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func snapshotView(sess *session.Session) SnapshotView {
	snap := sess.Snapshot()
	view := SnapshotView{
		Source:     string(snap.Source),
		Generation: snap.Generation,
		ListState:  snap.ListState.String(),
		Tables:     make([]TableView, 0, len(snap.Tables)),
	}
	if snap.ListErr != nil {
		view.ListError = snap.ListErr.Error()
	}
	for _, t := range snap.Tables {
		tv := TableView{
			Name:     t.Name(),
			Comment:  t.Stub.Comment,
			State:    t.State.String(),
			Expanded: sess.IsExpanded(t.Name()),
		}
		if tv.Expanded && t.Detail != nil {
			tv.Columns = t.Detail.Columns
		}
		if t.Err != nil {
			tv.Error = t.Err.Error()
		}
		view.Tables = append(view.Tables, tv)
	}
	return view
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps session errors to HTTP status codes.
func statusOf(err error) int {
	var listErr *schema.ListFetchError
	var detailErr *schema.DetailFetchError
	switch {
	case errors.Is(err, schema.ErrUnknownTable),
		errors.Is(err, core.ErrUnknownSource),
		errors.Is(err, core.ErrTableNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrNoSource), errors.Is(err, schema.ErrRebuilt):
		return http.StatusConflict
	case errors.As(err, &listErr), errors.As(err, &detailErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
