// Package completion turns a cursor context and a schema snapshot into a
// ranked list of suggestions.
//
// Synthesize is pure: it reads the snapshot it is given and never asks the
// cache for more. Tables whose detail is not loaded contribute no columns.
package completion

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
)

// DefaultLimit caps a suggestion list when Request.Limit is not set.
const DefaultLimit = 100

// Kind is the kind of a suggestion.
type Kind int

// Suggestion kinds.
const (
	KindTable Kind = iota
	KindColumn
	KindKeyword
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindColumn:
		return "column"
	case KindKeyword:
		return "keyword"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name written by MarshalText.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindTable, KindColumn, KindKeyword, KindFunction} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown suggestion kind %q", b)
}

// Suggestion is one completion item.
type Suggestion struct {
	Label      string `json:"label" yaml:"label"`
	InsertText string `json:"insertText" yaml:"insert_text"`
	Kind       Kind   `json:"kind" yaml:"kind"`
	Detail     string `json:"detail,omitempty" yaml:"detail,omitempty"`
	SortRank   int    `json:"sortRank" yaml:"sort_rank"`
	// Snippet reports that InsertText carries $n placeholders.
	Snippet bool `json:"snippet,omitempty" yaml:"snippet,omitempty"`
}

// Request describes what is being completed.
type Request struct {
	Context sqlcontext.Context
	// Prefix filters labels and insert texts case-insensitively.
	Prefix string
	// Qualifier restricts the result to the columns of one table.
	Qualifier string
	// Aliases resolves Qualifier; see sqlcontext.Aliases.
	Aliases map[string]string
	// Limit caps the result; zero means DefaultLimit.
	Limit int
}

// RequestFor builds a request from an analysis of the buffer.
func RequestFor(a sqlcontext.Analysis, limit int) Request {
	return Request{
		Context:   a.Context,
		Prefix:    a.Prefix,
		Qualifier: a.Qualifier,
		Aliases:   a.Aliases,
		Limit:     limit,
	}
}

// Synthesize returns the suggestions for req, ordered and capped.
//
// FromClause yields tables; SelectList, WhereClause and OnClause yield the
// columns of loaded tables and functions; Unknown yields all three. Keywords
// follow, context keywords first.
//
// A qualified request is the exception: only a column can follow "o.", so
// it yields the columns of the qualified table and no keywords at all. An
// unknown or unloaded qualifier yields nothing.
func Synthesize(req Request, snap schema.Snapshot, statics *Statics) []Suggestion {
	if statics == nil {
		statics = DefaultStatics()
	}
	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	b := &builder{prefix: strings.ToLower(req.Prefix), limit: limit}

	if req.Qualifier != "" && req.Context != sqlcontext.FromClause {
		if entry, ok := snap.Table(resolve(req.Qualifier, req.Aliases)); ok {
			b.columns(entry)
		}
		return b.out
	}

	switch req.Context {
	case sqlcontext.FromClause:
		b.tables(snap)
	case sqlcontext.SelectList, sqlcontext.WhereClause, sqlcontext.OnClause:
		for _, entry := range snap.Loaded() {
			b.columns(entry)
		}
		b.functions(statics.Functions)
	default:
		b.tables(snap)
		for _, entry := range snap.Loaded() {
			b.columns(entry)
		}
		b.functions(statics.Functions)
	}

	b.keywords(statics.ContextKeywords[req.Context])
	b.keywords(statics.Keywords)
	return b.out
}

func resolve(qualifier string, aliases map[string]string) string {
	if t, ok := aliases[strings.ToLower(qualifier)]; ok {
		return t
	}
	return qualifier
}

// builder appends suggestions in order until the limit is reached.
type builder struct {
	prefix string
	limit  int
	out    []Suggestion
	seen   map[string]bool
}

func (b *builder) full() bool {
	return len(b.out) >= b.limit
}

func (b *builder) add(s Suggestion, match ...string) {
	if b.full() || !b.matches(match...) {
		return
	}
	s.SortRank = len(b.out)
	b.out = append(b.out, s)
}

func (b *builder) matches(candidates ...string) bool {
	if b.prefix == "" {
		return true
	}
	for _, c := range candidates {
		if strings.HasPrefix(strings.ToLower(c), b.prefix) {
			return true
		}
	}
	return false
}

func (b *builder) tables(snap schema.Snapshot) {
	for _, t := range snap.Tables {
		b.add(Suggestion{
			Label:      t.Stub.Name,
			InsertText: t.Stub.Name,
			Kind:       KindTable,
			Detail:     t.Stub.Comment,
		}, t.Stub.Name)
	}
}

func (b *builder) columns(entry schema.TableEntry) {
	if entry.State != schema.Loaded || entry.Detail == nil {
		return
	}
	table := entry.Stub.Name
	for _, c := range entry.Detail.Columns {
		label := table + "." + c.Name
		b.add(Suggestion{
			Label:      label,
			InsertText: c.Name,
			Kind:       KindColumn,
			Detail:     columnDetail(c),
		}, c.Name, label)
	}
}

func columnDetail(c core.Column) string {
	if c.Comment == "" {
		return c.DataType
	}
	return c.DataType + " - " + c.Comment
}

func (b *builder) functions(fns []FunctionInfo) {
	for _, fn := range fns {
		s := Suggestion{
			Label:      fn.Name,
			InsertText: fn.Name + "(",
			Kind:       KindFunction,
			Detail:     fn.Signature,
		}
		if fn.Snippet != "" {
			s.InsertText = fn.Snippet
			s.Snippet = true
		}
		b.add(s, fn.Name)
	}
}

func (b *builder) keywords(words []string) {
	if b.seen == nil {
		b.seen = make(map[string]bool)
	}
	for _, kw := range words {
		if b.seen[kw] {
			continue
		}
		b.seen[kw] = true
		b.add(Suggestion{
			Label:      kw,
			InsertText: kw + " ",
			Kind:       KindKeyword,
			Detail:     "SQL keyword",
		}, kw)
	}
}
