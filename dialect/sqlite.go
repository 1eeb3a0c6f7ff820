package dialect

import "fmt"

// SQLite has no native regex operator or function (REGEXP is only wired up
// if the host registers one), no WINDOW clause naming before 3.25 and no
// EXCLUDE/DISTINCT ON; `strftime` replaces TO_CHAR for date formatting.
type SQLite struct{ generic }

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: false, DistinctOn: false, NamedWindows: false, RecursiveCTE: true}
}

func (SQLite) RegexMatch(left, right string, negate bool) string {
	if negate {
		return fmt.Sprintf("NOT (%s REGEXP %s)", left, right)
	}
	return fmt.Sprintf("%s REGEXP %s", left, right)
}

func (SQLite) IntDiv(left, right string) string {
	return fmt.Sprintf("CAST(%s AS INTEGER) / CAST(%s AS INTEGER)", left, right)
}

func (SQLite) DateToText(expr, format string) string {
	return fmt.Sprintf("strftime(%s, %s)", sqlStringLit(format), expr)
}
