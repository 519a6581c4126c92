package lsp

import (
	"fmt"

	"github.com/leapstack-labs/leapcomplete/pkg/completion"
	"github.com/leapstack-labs/leapcomplete/pkg/schema"
)

func (s *Server) handleCompletion(msg *JSONRPCMessage) error {
	var params CompletionParams
	if err := s.decode(msg, &params); err != nil {
		return err
	}

	s.sendResponse(msg.ID, s.getCompletions(params), nil)
	return nil
}

// getCompletions answers from the cached schema only. The list is marked
// incomplete while tables are still loading so the client asks again.
func (s *Server) getCompletions(params CompletionParams) *CompletionList {
	list := &CompletionList{Items: []CompletionItem{}}

	doc := s.documents.Get(params.TextDocument.URI)
	if doc == nil {
		return list
	}

	a, suggestions := s.sess.Complete(doc.Content, doc.PositionToOffset(params.Position))
	edit := Range{
		Start: doc.OffsetToPosition(a.ReplaceStart()),
		End:   doc.OffsetToPosition(a.Offset),
	}

	snippets := s.snippets.Load()
	for i, sg := range suggestions {
		list.Items = append(list.Items, completionItem(sg, i, edit, snippets))
	}
	list.IsIncomplete = loading(s.sess.Snapshot())
	return list
}

func completionItem(sg completion.Suggestion, rank int, edit Range, snippets bool) CompletionItem {
	item := CompletionItem{
		Label:            sg.Label,
		Kind:             itemKind(sg.Kind),
		Detail:           sg.Detail,
		SortText:         fmt.Sprintf("%04d", rank),
		FilterText:       sg.InsertText,
		InsertTextFormat: InsertTextFormatPlainText,
		TextEdit:         &TextEdit{Range: edit, NewText: sg.InsertText},
	}
	if sg.Snippet {
		if snippets {
			item.InsertTextFormat = InsertTextFormatSnippet
		} else {
			item.TextEdit.NewText = sg.Label + "("
		}
	}
	return item
}

func itemKind(k completion.Kind) CompletionItemKind {
	switch k {
	case completion.KindTable:
		return CompletionItemKindClass
	case completion.KindColumn:
		return CompletionItemKindField
	case completion.KindFunction:
		return CompletionItemKindFunction
	default:
		return CompletionItemKindKeyword
	}
}

func loading(snap schema.Snapshot) bool {
	if snap.ListState == schema.ListLoading {
		return true
	}
	for _, t := range snap.Tables {
		if t.State == schema.Loading {
			return true
		}
	}
	return false
}
