package completion

import (
	"strings"

	"github.com/leapstack-labs/leapcomplete/pkg/sqlcontext"
)

// Statics are the catalogs that do not come from the database.
type Statics struct {
	// Keywords is the full keyword list, appended after the context subset.
	Keywords []string
	// ContextKeywords are offered first for a cursor context.
	ContextKeywords map[sqlcontext.Context][]string
	// Functions are offered in column contexts.
	Functions []FunctionInfo
}

// Function looks up a function by name, case-insensitively.
func (s *Statics) Function(name string) (FunctionInfo, bool) {
	for _, fn := range s.Functions {
		if strings.EqualFold(fn.Name, name) {
			return fn, true
		}
	}
	return FunctionInfo{}, false
}

// SearchFunctions returns the functions whose name starts with prefix.
func (s *Statics) SearchFunctions(prefix string) []FunctionInfo {
	prefix = strings.ToUpper(prefix)
	var out []FunctionInfo
	for _, fn := range s.Functions {
		if strings.HasPrefix(fn.Name, prefix) {
			out = append(out, fn)
		}
	}
	return out
}

var defaultStatics = &Statics{
	Keywords:        sqlKeywords,
	ContextKeywords: contextKeywords,
	Functions:       sqlFunctions,
}

// DefaultStatics returns the built-in keyword and function catalogs.
// The returned value is shared and must not be modified.
func DefaultStatics() *Statics {
	return defaultStatics
}

var sqlKeywords = []string{
	// Query
	"SELECT", "FROM", "WHERE", "ORDER BY", "GROUP BY", "HAVING", "LIMIT", "OFFSET",
	// Joins
	"JOIN", "INNER JOIN", "LEFT JOIN", "RIGHT JOIN", "FULL JOIN", "CROSS JOIN", "ON",
	// DML
	"INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE",
	// DDL
	"CREATE", "TABLE", "DROP", "ALTER", "INDEX", "VIEW",
	// Predicates
	"AND", "OR", "NOT", "IN", "EXISTS", "BETWEEN", "LIKE", "IS", "NULL",
	// Expressions
	"DISTINCT", "ALL", "AS", "CASE", "WHEN", "THEN", "ELSE", "END",
	// Types
	"VARCHAR", "INT", "INTEGER", "DECIMAL", "DATE", "DATETIME", "TIMESTAMP", "TEXT", "BOOLEAN",
	// Constraints
	"PRIMARY KEY", "FOREIGN KEY", "UNIQUE", "NOT NULL", "DEFAULT", "CHECK",
}

var contextKeywords = map[sqlcontext.Context][]string{
	sqlcontext.SelectList: {
		"DISTINCT", "AS", "CASE", "WHEN", "THEN", "ELSE", "END", "FROM",
	},
	sqlcontext.FromClause: {
		"AS", "JOIN", "INNER JOIN", "LEFT JOIN", "RIGHT JOIN", "FULL JOIN", "CROSS JOIN",
		"ON", "WHERE", "GROUP BY", "ORDER BY", "LIMIT",
	},
	sqlcontext.WhereClause: {
		"AND", "OR", "NOT", "IN", "EXISTS", "BETWEEN", "LIKE", "IS NULL", "IS NOT NULL",
		"GROUP BY", "ORDER BY", "HAVING", "LIMIT",
	},
	sqlcontext.OnClause: {
		"AND", "OR", "NOT", "IS NULL", "IS NOT NULL",
		"WHERE", "JOIN", "LEFT JOIN", "INNER JOIN",
	},
	sqlcontext.Unknown: {
		"SELECT", "WITH", "INSERT", "UPDATE", "DELETE", "CREATE",
	},
}
