// Package dialect declares the capability/rewrite surface the SQL backend
// (package sqlgen) consults for every construct that varies by database
// (§4.6 "Dialect layer"). Each concrete Dialect is a small value type, not a
// connection: it never touches a network or a driver.
package dialect

import "fmt"

// SetOp enumerates the relational set operators a dialect may spell
// differently (UNION ALL is universal; EXCEPT/INTERSECT vary).
type SetOp int

const (
	SetUnionAll SetOp = iota
	SetUnion
	SetExcept
	SetIntersect
)

// Capabilities are the boolean feature flags each Dialect declares. sqlgen
// reads only RecursiveCTE, reporting a diagnostic for a `loop` when it is
// false; the other flags are not consulted during generation.
type Capabilities struct {
	ExcludeColumns bool // `SELECT * EXCLUDE (a, b)` / `EXCEPT (a, b)`
	DistinctOn     bool // `SELECT DISTINCT ON (...)`
	NamedWindows   bool // `WINDOW w AS (...)` + `OVER w`
	RecursiveCTE   bool // `WITH RECURSIVE` needed for `loop`
}

// Dialect is the per-database rewrite surface consulted by sqlgen. Every
// method must be total: given any RQ construct in its domain, it returns a
// usable (if possibly suboptimal) rendering rather than panicking. Backend
// code reports a diagnostic itself when a capability is truly absent.
type Dialect interface {
	// Name is the bare dialect name as it appears after "sql." in a
	// `target:` header value, e.g. "postgres".
	Name() string

	Capabilities() Capabilities

	QuoteIdent(name string) string
	QuoteString(s string) string

	// RegexMatch renders `left ~= right` (or `left !~= right` when negate is
	// true) given already-rendered operand expressions.
	RegexMatch(left, right string, negate bool) string

	// IntDiv renders truncating integer division `left // right`.
	IntDiv(left, right string) string

	// DateToText renders `date | date.to_text format` for an already
	// rendered date-valued expression and a PRQL-style strftime template.
	DateToText(expr, format string) string

	// LimitOffset renders the row-limiting clause(s) for a SELECT; MSSQL
	// instead reports a TOP prefix via TopClause.
	LimitOffset(limit, offset *int) string

	// TopClause renders a `TOP n` prefix inserted right after SELECT, used
	// only by dialects without LIMIT (MSSQL). Returns "" otherwise.
	TopClause(limit *int) string

	SetOperator(op SetOp) string

	// AliasKeyword returns the keyword used to introduce a column/table
	// alias ("AS" everywhere PRQL targets; kept as a hook for completeness).
	AliasKeyword() string
}

// generic is the ANSI baseline every other Dialect embeds and partially
// overrides (§4.6).
type generic struct{}

func (generic) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: false, DistinctOn: false, NamedWindows: true, RecursiveCTE: true}
}

// QuoteIdent leaves a plain lowercase identifier bare and double-quotes
// anything else.
func (generic) QuoteIdent(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return `"` + escapeQuote(name, '"') + `"`
}

func isPlainIdent(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (i > 0 && c >= '0' && c <= '9')) {
			return false
		}
	}
	return name != ""
}
func (generic) QuoteString(s string) string { return "'" + escapeQuote(s, '\'') + "'" }

func escapeQuote(s string, q byte) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == q {
			out = append(out, q)
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (generic) RegexMatch(left, right string, negate bool) string {
	op := "~"
	if negate {
		op = "!~"
	}
	return fmt.Sprintf("%s %s %s", left, op, right)
}

func (generic) IntDiv(left, right string) string {
	return fmt.Sprintf("(%s / %s)", left, right)
}

func (generic) DateToText(expr, format string) string {
	return fmt.Sprintf("TO_CHAR(%s, %s)", expr, sqlStringLit(format))
}

func (generic) LimitOffset(limit, offset *int) string {
	out := ""
	if limit != nil {
		out += fmt.Sprintf(" LIMIT %d", *limit)
	}
	if offset != nil {
		out += fmt.Sprintf(" OFFSET %d", *offset)
	}
	return out
}

func (generic) TopClause(*int) string { return "" }

func (generic) SetOperator(op SetOp) string {
	switch op {
	case SetUnion:
		return "UNION"
	case SetExcept:
		return "EXCEPT"
	case SetIntersect:
		return "INTERSECT"
	default:
		return "UNION ALL"
	}
}

func (generic) AliasKeyword() string { return "AS" }

func sqlStringLit(s string) string { return "'" + escapeQuote(s, '\'') + "'" }

// Generic is the default "sql.any"/ANSI dialect, also the fallback embedded
// by every other concrete Dialect below.
type Generic struct{ generic }

func (Generic) Name() string { return "generic" }

// NewGeneric constructs the ANSI baseline dialect.
func NewGeneric() Dialect { return Generic{} }

// registry maps a bare dialect name (as it appears after "sql." in a
// `target:` header) to its Dialect value.
var registry = map[string]Dialect{
	"generic":   Generic{},
	"any":       Generic{},
	"postgres":  Postgres{},
	"mysql":     MySQL{},
	"sqlite":    SQLite{},
	"mssql":     MSSQL{},
	"duckdb":    DuckDB{},
	"clickhouse": ClickHouse{},
	"bigquery":  BigQuery{},
	"snowflake": Snowflake{},
	"glaredb":   GlareDB{},
}

// Lookup resolves a bare dialect name to its Dialect. The caller strips the
// "sql." prefix (§6.3's `target:sql.<dialect>` header syntax).
func Lookup(name string) (Dialect, bool) {
	d, ok := registry[name]
	return d, ok
}
