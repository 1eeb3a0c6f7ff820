package dialect

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupKnownDialects(t *testing.T) {
	for _, name := range []string{"generic", "any", "postgres", "mysql", "sqlite", "mssql", "duckdb", "clickhouse", "bigquery", "snowflake", "glaredb"} {
		d, ok := Lookup(name)
		require.True(t, ok, name)
		require.NotEmpty(t, d.Name())
	}
}

func TestLookupUnknownDialect(t *testing.T) {
	_, ok := Lookup("oracle")
	require.False(t, ok)
}

func TestPostgresRegexMatch(t *testing.T) {
	d := Postgres{}
	require.Equal(t, "name ~ 'Love'", d.RegexMatch("name", "'Love'", false))
}

func TestMySQLRegexMatch(t *testing.T) {
	d := MySQL{}
	require.Equal(t, "REGEXP_LIKE(name, 'Love')", d.RegexMatch("name", "'Love'", false))
}

func TestMSSQLTopClause(t *testing.T) {
	d := MSSQL{}
	n := 10
	require.Equal(t, "TOP 10 ", d.TopClause(&n))
	require.Equal(t, "", d.LimitOffset(&n, nil))
}

func TestGenericLimitOffset(t *testing.T) {
	d := Generic{}
	n, o := 10, 5
	require.Equal(t, " LIMIT 10 OFFSET 5", d.LimitOffset(&n, &o))
}

func TestDuckDBSupportsExclude(t *testing.T) {
	require.True(t, DuckDB{}.Capabilities().ExcludeColumns)
	require.False(t, Postgres{}.Capabilities().ExcludeColumns)
}
