package lsp

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
)

func (s *Server) handleHover(msg *JSONRPCMessage) error {
	var params HoverParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	hover := s.getHover(params)
	s.sendResponse(msg.ID, hover, nil)
	return nil
}

// getHover describes the table, column or function under the cursor.
// Hovering a table whose columns are not cached starts loading them.
func (s *Server) getHover(params HoverParams) *Hover {
	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return nil
	}

	word, rng := doc.GetWordAtPosition(params.Position)
	if word == "" {
		return nil
	}

	snap := s.sess.Snapshot()
	aliases := sqlcontext.Aliases(doc.Content)

	var text string
	if qualifier, column, ok := strings.Cut(word, "."); ok && !strings.Contains(column, ".") {
		text = s.qualifiedHover(snap, resolveAlias(aliases, qualifier), column)
	} else {
		text = s.wordHover(snap, resolveAlias(aliases, word), word)
	}
	if text == "" {
		return nil
	}

	return &Hover{
		Contents: MarkupContent{Kind: MarkupKindMarkdown, Value: text},
		Range:    &rng,
	}
}

func resolveAlias(aliases map[string]string, name string) string {
	if t, ok := aliases[strings.ToLower(name)]; ok {
		return t
	}
	return name
}

// qualifiedHover handles "alias.column" and "schema.table".
func (s *Server) qualifiedHover(snap schema.Snapshot, table, column string) string {
	if entry, ok := snap.Table(table); ok && entry.Detail != nil {
		if c, ok := entry.Detail.Column(column); ok {
			return columnHover(entry.Name(), c)
		}
	}
	if entry, ok := snap.Table(table + "." + column); ok {
		return s.tableHover(entry)
	}
	return ""
}

func (s *Server) wordHover(snap schema.Snapshot, table, word string) string {
	if entry, ok := snap.Table(table); ok {
		return s.tableHover(entry)
	}
	if fn, ok := s.sess.Statics().Function(word); ok {
		return fmt.Sprintf("```sql\n%s\n```\n%s", fn.Signature, fn.Description)
	}
	for _, entry := range snap.Loaded() {
		if c, ok := entry.Detail.Column(word); ok {
			return columnHover(entry.Name(), c)
		}
	}
	return ""
}

func (s *Server) tableHover(entry schema.TableEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", entry.Name())
	if entry.Stub.Comment != "" {
		fmt.Fprintf(&b, " %s", entry.Stub.Comment)
	}
	b.WriteString("\n\n")

	switch {
	case entry.Detail != nil:
		b.WriteString("| Column | Type | |\n|---|---|---|\n")
		for _, c := range entry.Detail.Columns {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Name, c.DataType, columnFlags(c))
		}
	case entry.State == schema.Failed:
		s.requestDetail(entry.Name())
		fmt.Fprintf(&b, "Columns failed to load: %v. Retrying…", entry.Err)
	default:
		s.requestDetail(entry.Name())
		b.WriteString("_Loading columns…_")
	}
	return b.String()
}

func (s *Server) requestDetail(table string) {
	if err := s.sess.RequestDetail(table); err != nil && !errors.Is(err, schema.ErrUnknownTable) {
		s.logger.Debug("hover detail request failed", slog.String("table", table), slog.Any("error", err))
	}
}

func columnHover(table string, c core.Column) string {
	text := fmt.Sprintf("**%s.%s** `%s`", table, c.Name, c.DataType)
	if flags := columnFlags(c); flags != "" {
		text += " " + flags
	}
	if c.Comment != "" {
		text += "\n\n" + c.Comment
	}
	return text
}

func columnFlags(c core.Column) string {
	var flags []string
	if c.IsPrimaryKey {
		flags = append(flags, "PK")
	}
	if c.IsNullable {
		flags = append(flags, "NULL")
	}
	return strings.Join(flags, " ")
}
