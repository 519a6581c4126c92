package completion

// FunctionCategory classifies SQL functions by their purpose.
type FunctionCategory string

// Function categories.
const (
	CategoryAggregate   FunctionCategory = "aggregate"
	CategoryWindow      FunctionCategory = "window"
	CategoryNumeric     FunctionCategory = "numeric"
	CategoryString      FunctionCategory = "string"
	CategoryDate        FunctionCategory = "date"
	CategoryConversion  FunctionCategory = "conversion"
	CategoryConditional FunctionCategory = "conditional"
)

// FunctionInfo describes a SQL function offered as a completion.
type FunctionInfo struct {
	Name        string           // e.g. "COUNT"
	Signature   string           // e.g. "COUNT(expr) -> bigint"
	Description string           // one line
	Category    FunctionCategory // purpose
	IsAggregate bool
	Snippet     string // insertion with placeholders, e.g. "COUNT($1)"
}

// sqlFunctions are portable across the supported catalogs.
var sqlFunctions = []FunctionInfo{
	{Name: "COUNT", Signature: "COUNT(expr) -> bigint", Description: "Count non-null values", Category: CategoryAggregate, IsAggregate: true, Snippet: "COUNT($1)"},
	{Name: "SUM", Signature: "SUM(expr) -> numeric", Description: "Sum of all values", Category: CategoryAggregate, IsAggregate: true, Snippet: "SUM($1)"},
	{Name: "AVG", Signature: "AVG(expr) -> double", Description: "Average of all values", Category: CategoryAggregate, IsAggregate: true, Snippet: "AVG($1)"},
	{Name: "MIN", Signature: "MIN(expr) -> same", Description: "Smallest value", Category: CategoryAggregate, IsAggregate: true, Snippet: "MIN($1)"},
	{Name: "MAX", Signature: "MAX(expr) -> same", Description: "Largest value", Category: CategoryAggregate, IsAggregate: true, Snippet: "MAX($1)"},
	{Name: "STRING_AGG", Signature: "STRING_AGG(expr, sep) -> varchar", Description: "Concatenate values with a separator", Category: CategoryAggregate, IsAggregate: true, Snippet: "STRING_AGG($1, $2)"},
	{Name: "STDDEV", Signature: "STDDEV(expr) -> double", Description: "Sample standard deviation", Category: CategoryAggregate, IsAggregate: true, Snippet: "STDDEV($1)"},

	{Name: "ROW_NUMBER", Signature: "ROW_NUMBER() OVER(...) -> bigint", Description: "Sequential row number", Category: CategoryWindow, Snippet: "ROW_NUMBER() OVER($1)"},
	{Name: "RANK", Signature: "RANK() OVER(...) -> bigint", Description: "Rank with gaps", Category: CategoryWindow, Snippet: "RANK() OVER($1)"},
	{Name: "DENSE_RANK", Signature: "DENSE_RANK() OVER(...) -> bigint", Description: "Rank without gaps", Category: CategoryWindow, Snippet: "DENSE_RANK() OVER($1)"},
	{Name: "LAG", Signature: "LAG(expr, offset) OVER(...) -> same", Description: "Value from a previous row", Category: CategoryWindow, Snippet: "LAG($1, $2) OVER($3)"},
	{Name: "LEAD", Signature: "LEAD(expr, offset) OVER(...) -> same", Description: "Value from a following row", Category: CategoryWindow, Snippet: "LEAD($1, $2) OVER($3)"},

	{Name: "ABS", Signature: "ABS(x) -> same", Description: "Absolute value", Category: CategoryNumeric, Snippet: "ABS($1)"},
	{Name: "CEIL", Signature: "CEIL(x) -> same", Description: "Round up", Category: CategoryNumeric, Snippet: "CEIL($1)"},
	{Name: "FLOOR", Signature: "FLOOR(x) -> same", Description: "Round down", Category: CategoryNumeric, Snippet: "FLOOR($1)"},
	{Name: "ROUND", Signature: "ROUND(x, s) -> numeric", Description: "Round to s decimal places", Category: CategoryNumeric, Snippet: "ROUND($1, $2)"},
	{Name: "MOD", Signature: "MOD(x, y) -> same", Description: "Remainder of x / y", Category: CategoryNumeric, Snippet: "MOD($1, $2)"},
	{Name: "POWER", Signature: "POWER(x, y) -> double", Description: "x raised to power y", Category: CategoryNumeric, Snippet: "POWER($1, $2)"},

	{Name: "CONCAT", Signature: "CONCAT(s, ...) -> varchar", Description: "Concatenate strings", Category: CategoryString, Snippet: "CONCAT($1)"},
	{Name: "LENGTH", Signature: "LENGTH(s) -> bigint", Description: "Number of characters", Category: CategoryString, Snippet: "LENGTH($1)"},
	{Name: "LOWER", Signature: "LOWER(s) -> varchar", Description: "Lowercase", Category: CategoryString, Snippet: "LOWER($1)"},
	{Name: "UPPER", Signature: "UPPER(s) -> varchar", Description: "Uppercase", Category: CategoryString, Snippet: "UPPER($1)"},
	{Name: "TRIM", Signature: "TRIM(s) -> varchar", Description: "Strip surrounding whitespace", Category: CategoryString, Snippet: "TRIM($1)"},
	{Name: "SUBSTRING", Signature: "SUBSTRING(s, start, len) -> varchar", Description: "Extract part of a string", Category: CategoryString, Snippet: "SUBSTRING($1, $2, $3)"},
	{Name: "REPLACE", Signature: "REPLACE(s, from, to) -> varchar", Description: "Replace occurrences", Category: CategoryString, Snippet: "REPLACE($1, $2, $3)"},

	{Name: "NOW", Signature: "NOW() -> timestamp", Description: "Current timestamp", Category: CategoryDate, Snippet: "NOW()"},
	{Name: "CURRENT_DATE", Signature: "CURRENT_DATE -> date", Description: "Current date", Category: CategoryDate, Snippet: "CURRENT_DATE"},
	{Name: "DATE_TRUNC", Signature: "DATE_TRUNC(part, ts) -> timestamp", Description: "Truncate to a date part", Category: CategoryDate, Snippet: "DATE_TRUNC('$1', $2)"},
	{Name: "EXTRACT", Signature: "EXTRACT(part FROM ts) -> numeric", Description: "Get a date part", Category: CategoryDate, Snippet: "EXTRACT($1 FROM $2)"},

	{Name: "CAST", Signature: "CAST(expr AS type) -> type", Description: "Convert to a type", Category: CategoryConversion, Snippet: "CAST($1 AS $2)"},

	{Name: "COALESCE", Signature: "COALESCE(a, b, ...) -> same", Description: "First non-null argument", Category: CategoryConditional, Snippet: "COALESCE($1, $2)"},
	{Name: "NULLIF", Signature: "NULLIF(a, b) -> same", Description: "NULL if a equals b", Category: CategoryConditional, Snippet: "NULLIF($1, $2)"},
}
