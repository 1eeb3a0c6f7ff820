package dialect

import "fmt"

// DuckDB is Postgres-compatible for regex and DISTINCT ON, and natively
// supports `SELECT * EXCLUDE (...)`, which its ExcludeColumns flag declares.
type DuckDB struct{ generic }

func (DuckDB) Name() string { return "duckdb" }

func (DuckDB) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: true, DistinctOn: true, NamedWindows: true, RecursiveCTE: true}
}

func (DuckDB) IntDiv(left, right string) string {
	return fmt.Sprintf("(%s // %s)", left, right)
}

func (DuckDB) DateToText(expr, format string) string {
	return fmt.Sprintf("strftime(%s, %s)", expr, sqlStringLit(format))
}
