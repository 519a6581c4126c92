package api

import (
	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
)

// SourceInfo is one selectable source.
type SourceInfo struct {
	ID      string `json:"id"`
	Default bool   `json:"default"`
}

// SelectSourceRequest is the body of POST /api/source.
type SelectSourceRequest struct {
	Source string `json:"source"`
}

// CompleteRequest is the body of POST /api/complete.
type CompleteRequest struct {
	Text string `json:"text"`
	// Offset is the cursor byte offset; the end of Text when omitted.
	Offset *int `json:"offset,omitempty"`
}

// CompleteResponse carries the suggestions and the span they replace.
type CompleteResponse struct {
	Context      string                  `json:"context"`
	Prefix       string                  `json:"prefix"`
	Qualifier    string                  `json:"qualifier,omitempty"`
	ReplaceStart int                     `json:"replaceStart"`
	ReplaceEnd   int                     `json:"replaceEnd"`
	Suggestions  []completion.Suggestion `json:"suggestions"`
}

// TableView is one table of a snapshot. Columns are included for
// expanded tables whose detail is loaded.
type TableView struct {
	Name     string        `json:"name"`
	Comment  string        `json:"comment,omitempty"`
	State    string        `json:"state"`
	Expanded bool          `json:"expanded"`
	Columns  []core.Column `json:"columns,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// SnapshotView is the JSON form of a session's schema snapshot.
type SnapshotView struct {
	Source     string      `json:"source"`
	Generation uint64      `json:"generation"`
	ListState  string      `json:"listState"`
	ListError  string      `json:"listError,omitempty"`
	Tables     []TableView `json:"tables"`
}

// ExpandResponse is the result of expanding a table.
type ExpandResponse struct {
	Expanded []string `json:"expanded"`
	Evicted  []string `json:"evicted"`
}

// CollapseResponse is the result of collapsing a table.
type CollapseResponse struct {
	Collapsed bool `json:"collapsed"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
