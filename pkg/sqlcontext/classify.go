// Package sqlcontext classifies the cursor position inside raw SQL text.
//
// The classifier is lexical: it looks at the clause keywords that precede
// the cursor and does not parse the statement. Keywords inside string
// literals or comments are not recognized as such and can misclassify.
package sqlcontext

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Context is the grammatical region the cursor is in.
type Context int

// Cursor contexts.
const (
	Unknown Context = iota
	SelectList
	FromClause
	WhereClause
	OnClause
)

func (c Context) String() string {
	switch c {
	case SelectList:
		return "select_list"
	case FromClause:
		return "from_clause"
	case WhereClause:
		return "where_clause"
	case OnClause:
		return "on_clause"
	default:
		return "unknown"
	}
}

// clauseKeyword matches the keywords that open a clause.
var clauseKeyword = regexp.MustCompile(`(?i)\b(select|from|where|join|on)\b`)

// joinFamily are words after which a table name is expected.
var joinFamily = map[string]bool{
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true,
	"FULL": true, "OUTER": true, "CROSS": true, "NATURAL": true,
}

// Classify returns the context at byte offset in text.
func Classify(text string, offset int) Context {
	head, _, _ := split(text, clamp(text, offset))
	return classifyHead(head)
}

func classifyHead(head string) Context {
	prev := strings.ToUpper(lastWord(head))
	if prev == "SELECT" || prev == "DISTINCT" {
		return SelectList
	}
	if joinFamily[prev] {
		return FromClause
	}

	matches := clauseKeyword.FindAllStringSubmatch(head, -1)
	if len(matches) == 0 {
		return Unknown
	}
	switch strings.ToUpper(matches[len(matches)-1][1]) {
	case "SELECT":
		return SelectList
	case "FROM", "JOIN":
		return FromClause
	case "WHERE":
		return WhereClause
	case "ON":
		return OnClause
	}
	return Unknown
}

// clamp bounds offset to [0, len(text)] and moves it back to a rune boundary.
func clamp(text string, offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(text) {
		return len(text)
	}
	for offset > 0 && offset < len(text) && !utf8.RuneStart(text[offset]) {
		offset--
	}
	return offset
}

// split separates the text before offset into the part scanned for keywords,
// the optional qualifier before a dot and the identifier being typed.
func split(text string, offset int) (head, qualifier, prefix string) {
	before := text[:offset]

	start := identStart(before)
	prefix = before[start:]
	head = before[:start]

	if strings.HasSuffix(head, ".") {
		dot := len(head) - 1
		qstart := identStart(head[:dot])
		if qstart < dot {
			qualifier = head[qstart:dot]
			head = head[:qstart]
		}
	}
	return head, qualifier, prefix
}

// identStart returns the index where the identifier ending s begins.
func identStart(s string) int {
	i := len(s)
	for i > 0 {
		r, size := utf8.DecodeLastRuneInString(s[:i])
		if !isIdentRune(r) {
			break
		}
		i -= size
	}
	return i
}

// lastWord returns the identifier that ends s, ignoring trailing whitespace.
func lastWord(s string) string {
	s = strings.TrimRightFunc(s, unicode.IsSpace)
	return s[identStart(s):]
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
