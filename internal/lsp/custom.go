package lsp

import (
	"errors"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
)

// Methods beyond LSP that let a client drive the catalog.
const (
	MethodSelectSource  = "leapcomplete/selectSource"
	MethodRefresh       = "leapcomplete/refresh"
	MethodExpand        = "leapcomplete/expand"
	MethodCollapse      = "leapcomplete/collapse"
	MethodSnapshot      = "leapcomplete/snapshot"
	MethodSchemaChanged = "leapcomplete/schemaChanged"
)

// handleSelectSource answers once the table listing of the source has
// settled; progress arrives as schemaChanged notifications meanwhile.
func (s *Server) handleSelectSource(msg *JSONRPCMessage) error {
	var params SelectSourceParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}
	if params.Source == "" {
		s.sendError(msg.ID, codeInvalidParams, errors.New("source is required"))
		return nil
	}

	s.async(func() {
		if err := s.sess.OnSourceChange(s.ctx, core.SourceID(params.Source)); err != nil {
			s.sendError(msg.ID, codeInternalError, err)
			return
		}
		s.sendResponse(msg.ID, s.snapshot(), nil)
	})
	return nil
}

func (s *Server) handleRefresh(msg *JSONRPCMessage) error {
	s.async(func() {
		if err := s.sess.OnRefresh(s.ctx); err != nil {
			s.sendError(msg.ID, codeInternalError, err)
			return
		}
		s.sendResponse(msg.ID, s.snapshot(), nil)
	})
	return nil
}

func (s *Server) handleExpand(msg *JSONRPCMessage) error {
	var params TableParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	evicted, err := s.sess.OnExpand(params.Table)
	if err != nil {
		code := codeInternalError
		if errors.Is(err, schema.ErrUnknownTable) {
			code = codeInvalidParams
		}
		s.sendError(msg.ID, code, err)
		return nil
	}
	if evicted == nil {
		evicted = []string{}
	}
	s.sendResponse(msg.ID, &ExpandResult{Expanded: s.sess.Expanded(), Evicted: evicted}, nil)
	return nil
}

func (s *Server) handleCollapse(msg *JSONRPCMessage) error {
	var params TableParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, &CollapseResult{Collapsed: s.sess.OnCollapse(params.Table)}, nil)
	return nil
}

func (s *Server) handleSnapshot(msg *JSONRPCMessage) error {
	s.sendResponse(msg.ID, s.snapshot(), nil)
	return nil
}

func (s *Server) snapshot() *SnapshotResult {
	snap := s.sess.Snapshot()
	res := &SnapshotResult{
		Source:     string(snap.Source),
		Generation: snap.Generation,
		ListState:  snap.ListState.String(),
		Tables:     make([]TableState, 0, len(snap.Tables)),
	}
	if snap.ListErr != nil {
		res.ListError = snap.ListErr.Error()
	}
	for _, t := range snap.Tables {
		ts := TableState{
			Name:     t.Name(),
			Comment:  t.Stub.Comment,
			State:    t.State.String(),
			Expanded: s.sess.IsExpanded(t.Name()),
		}
		if t.Detail != nil {
			ts.Columns = len(t.Detail.Columns)
		}
		if t.Err != nil {
			ts.Error = t.Err.Error()
		}
		res.Tables = append(res.Tables, ts)
	}
	return res
}
