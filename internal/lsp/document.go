package lsp

import (
	"strings"
	"sync"
	"unicode/utf16"
	"unicode/utf8"
)

// Document represents an open text document in the editor.
// A document is never modified after it is stored; updates replace it.
type Document struct {
	URI     string // Document URI (file:///path/to/file.sql)
	Content string // Full document content
	Version int    // Version number, incremented on each change
	Lines   []int  // Byte offsets of line starts for fast position lookups
}

// NewDocument creates a document and indexes its lines.
func NewDocument(uri, content string, version int) *Document {
	return &Document{
		URI:     uri,
		Content: content,
		Version: version,
		Lines:   computeLineOffsets(content),
	}
}

// DocumentStore manages open documents in memory.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]*Document
}

// NewDocumentStore creates a new document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]*Document),
	}
}

// Open adds or replaces a document in the store.
func (s *DocumentStore) Open(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[uri] = NewDocument(uri, content, version)
}

// Close removes a document from the store.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, uri)
}

// Get retrieves a document by URI.
func (s *DocumentStore) Get(uri string) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents[uri]
}

// Update replaces the content of an open document. Unknown documents
// and stale versions are ignored.
func (s *DocumentStore) Update(uri string, content string, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc, ok := s.documents[uri]; ok && version >= doc.Version {
		s.documents[uri] = NewDocument(uri, content, version)
	}
}

// List returns all open document URIs.
func (s *DocumentStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uris := make([]string, 0, len(s.documents))
	for uri := range s.documents {
		uris = append(uris, uri)
	}
	return uris
}

// computeLineOffsets calculates byte offsets for each line start.
func computeLineOffsets(content string) []int {
	offsets := []int{0} // First line starts at offset 0

	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}

	return offsets
}

// line returns the byte range of a line without its line break.
func (d *Document) line(n int) (int, int) {
	start := d.Lines[n]
	end := len(d.Content)
	if n+1 < len(d.Lines) {
		end = d.Lines[n+1] - 1
	}
	if end > start && d.Content[end-1] == '\r' {
		end--
	}
	return start, max(end, start)
}

// PositionToOffset converts a Position to a byte offset in the document.
// Characters are counted in UTF-16 code units; positions past the end of
// a line clamp to the line end.
func (d *Document) PositionToOffset(pos Position) int {
	if d == nil || len(d.Lines) == 0 {
		return 0
	}

	n := int(pos.Line)
	if n >= len(d.Lines) {
		return len(d.Content)
	}

	start, end := d.line(n)
	units := int(pos.Character)
	offset := start
	for offset < end && units > 0 {
		r, size := utf8.DecodeRuneInString(d.Content[offset:end])
		units -= utf16.RuneLen(r)
		if units < 0 {
			break // inside a surrogate pair
		}
		offset += size
	}
	return offset
}

// OffsetToPosition converts a byte offset to a Position.
func (d *Document) OffsetToPosition(offset int) Position {
	if d == nil || len(d.Lines) == 0 {
		return Position{}
	}

	if offset < 0 {
		offset = 0
	}
	if offset > len(d.Content) {
		offset = len(d.Content)
	}

	line := 0
	for i, lineOffset := range d.Lines {
		if lineOffset > offset {
			break
		}
		line = i
	}

	units := 0
	for _, r := range d.Content[d.Lines[line]:offset] {
		units += utf16.RuneLen(r)
	}
	return Position{
		Line:      uint32(line),
		Character: uint32(units),
	}
}

// GetLine returns the content of a specific line.
func (d *Document) GetLine(line int) string {
	if d == nil || line < 0 || line >= len(d.Lines) {
		return ""
	}
	start, end := d.line(line)
	return d.Content[start:end]
}

// GetWordAtPosition returns the possibly dotted identifier under the
// cursor, such as "o.total", and its range.
func (d *Document) GetWordAtPosition(pos Position) (string, Range) {
	offset := d.PositionToOffset(pos)

	start := offset
	for start > 0 && isWordChar(d.Content[start-1]) {
		start--
	}
	end := offset
	for end < len(d.Content) && isWordChar(d.Content[end]) {
		end++
	}

	word := strings.Trim(d.Content[start:end], ".")
	if word == "" {
		return "", Range{Start: pos, End: pos}
	}
	start += strings.Index(d.Content[start:end], word)
	end = start + len(word)

	return word, Range{
		Start: d.OffsetToPosition(start),
		End:   d.OffsetToPosition(end),
	}
}

// isWordChar returns true if the character is part of a dotted identifier.
func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_' || c == '.'
}

// URIToPath converts a file:// URI to a file system path.
func URIToPath(uri string) string {
	const prefix = "file://"
	if strings.HasPrefix(uri, prefix) {
		return uri[len(prefix):]
	}
	return uri
}
