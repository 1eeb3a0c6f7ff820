package dialect

import "fmt"

// MSSQL spells row-limiting as a `TOP n` prefix instead of `LIMIT`/`OFFSET`
// (E2), has no POSIX regex operator or function (best-effort via
// PATINDEX), and formats dates with FORMAT(...).
type MSSQL struct{ generic }

func (MSSQL) Name() string { return "mssql" }

func (MSSQL) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: false, DistinctOn: false, NamedWindows: true, RecursiveCTE: true}
}

func (MSSQL) QuoteIdent(name string) string {
	if isPlainIdent(name) {
		return name
	}
	return "[" + name + "]"
}

func (MSSQL) RegexMatch(left, right string, negate bool) string {
	if negate {
		return fmt.Sprintf("PATINDEX('%%' + %s + '%%', %s) = 0", right, left)
	}
	return fmt.Sprintf("PATINDEX('%%' + %s + '%%', %s) > 0", right, left)
}

func (MSSQL) DateToText(expr, format string) string {
	return fmt.Sprintf("FORMAT(%s, %s)", expr, sqlStringLit(format))
}

func (MSSQL) LimitOffset(limit, offset *int) string {
	if offset == nil {
		return ""
	}
	out := fmt.Sprintf(" OFFSET %d ROWS", *offset)
	if limit != nil {
		out += fmt.Sprintf(" FETCH NEXT %d ROWS ONLY", *limit)
	}
	return out
}

func (MSSQL) TopClause(limit *int) string {
	if limit == nil {
		return ""
	}
	return fmt.Sprintf("TOP %d ", *limit)
}
