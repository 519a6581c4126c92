package sqlcontext

import (
	"regexp"
	"strings"
)

// Analysis is the classification plus what is being typed at the cursor.
type Analysis struct {
	Context Context
	// Prefix is the partial identifier immediately before the cursor.
	Prefix string
	// Qualifier is the identifier before a dot, as in "o." of "o.tot".
	Qualifier string
	// Aliases maps lowercased aliases found in FROM and JOIN clauses to
	// the table they name.
	Aliases map[string]string
	// Offset is the clamped cursor offset.
	Offset int
}

// ReplaceStart is the byte offset where the identifier being typed begins.
func (a Analysis) ReplaceStart() int {
	return a.Offset - len(a.Prefix)
}

// Table resolves a qualifier to a table name through the aliases. An
// unknown qualifier is returned unchanged since it may be the table itself.
func (a Analysis) Table(qualifier string) string {
	if t, ok := a.Aliases[strings.ToLower(qualifier)]; ok {
		return t
	}
	return qualifier
}

// tableRef matches the table named after FROM or JOIN.
var tableRef = regexp.MustCompile(`(?i)\b(?:from|join)\s+([\w.]+)`)

// aliasAfter matches an optional "AS alias" or bare alias following a table.
var aliasAfter = regexp.MustCompile(`(?i)^\s+(?:as\s+)?(\w+)`)

// notAlias are words that can follow a table reference without being an alias.
var notAlias = map[string]bool{
	"WHERE": true, "ON": true, "USING": true, "JOIN": true, "INNER": true,
	"LEFT": true, "RIGHT": true, "FULL": true, "OUTER": true, "CROSS": true,
	"NATURAL": true, "GROUP": true, "ORDER": true, "HAVING": true, "LIMIT": true,
	"OFFSET": true, "UNION": true, "EXCEPT": true, "INTERSECT": true, "WINDOW": true,
	"SET": true, "AS": true, "SELECT": true, "FROM": true,
}

// Analyze classifies the cursor and extracts the identifier being typed.
func Analyze(text string, offset int) Analysis {
	offset = clamp(text, offset)
	head, qualifier, prefix := split(text, offset)
	return Analysis{
		Context:   classifyHead(head),
		Prefix:    prefix,
		Qualifier: qualifier,
		Aliases:   Aliases(text),
		Offset:    offset,
	}
}

// Aliases returns the alias to table mapping of every FROM and JOIN
// reference in text. Tables are also reachable by their own name and,
// when schema-qualified, by their last segment.
func Aliases(text string) map[string]string {
	out := make(map[string]string)
	for _, loc := range tableRef.FindAllStringSubmatchIndex(text, -1) {
		table := text[loc[2]:loc[3]]
		if notAlias[strings.ToUpper(table)] {
			continue
		}
		out[strings.ToLower(table)] = table
		if i := strings.LastIndex(table, "."); i >= 0 {
			out[strings.ToLower(table[i+1:])] = table
		}
		if m := aliasAfter.FindStringSubmatch(text[loc[1]:]); m != nil && !notAlias[strings.ToUpper(m[1])] {
			out[strings.ToLower(m[1])] = table
		}
	}
	return out
}
