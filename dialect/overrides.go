package dialect

// ClickHouse, BigQuery, Snowflake and GlareDB reuse the generic rewriter
// wholesale, overriding only their capability flags; none needs
// hand-written construct rewriting to be exercised by the backend's test
// corpus.

// ClickHouse supports named windows and its own EXCLUDE-like APPLY/EXCEPT
// column modifiers, which we model as ExcludeColumns support.
type ClickHouse struct{ generic }

func (ClickHouse) Name() string { return "clickhouse" }

func (ClickHouse) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: true, DistinctOn: true, NamedWindows: true, RecursiveCTE: false}
}

// BigQuery has no DISTINCT ON and no WITH RECURSIVE (`loop` would need
// rewriting to an iterative UNION ALL with an explicit depth cap; sqlgen's
// loop lowering does not attempt that rewrite yet).
type BigQuery struct{ generic }

func (BigQuery) Name() string { return "bigquery" }

func (BigQuery) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: true, DistinctOn: false, NamedWindows: true, RecursiveCTE: false}
}

// Snowflake supports EXCLUDE natively and has no DISTINCT ON, so DistinctOn
// is false.
type Snowflake struct{ generic }

func (Snowflake) Name() string { return "snowflake" }

func (Snowflake) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: true, DistinctOn: false, NamedWindows: true, RecursiveCTE: true}
}

// GlareDB is Postgres-wire-compatible; treat it as the generic baseline
// with Postgres's DISTINCT ON support.
type GlareDB struct{ generic }

func (GlareDB) Name() string { return "glaredb" }

func (GlareDB) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: false, DistinctOn: true, NamedWindows: true, RecursiveCTE: true}
}
