package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/dialect"
	"github.com/prqlc/prqlc-go/lower"
	"github.com/prqlc/prqlc-go/parser"
	"github.com/prqlc/prqlc-go/resolver"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/stdlib"
)

func compileSQL(t *testing.T, src string, d dialect.Dialect) (string, *diagnostic.Bag) {
	t.Helper()
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	f, _ := parser.Parse(sm, "test.prql", src, diags)
	root := stdlib.Prelude()
	prog := resolver.New(root, diags).Resolve(f)
	q := lower.New(prog, diags).Lower()
	sql := Generate(q, d, Options{Format: false, SignatureComment: false}, diags)
	return sql, diags
}

func TestGenerateFromSelect(t *testing.T) {
	sql, diags := compileSQL(t, "from employees\nselect {first_name}", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "SELECT")
	require.Contains(t, sql, "first_name")
	require.Contains(t, sql, "employees")
}

func TestGenerateFilterTakeSort(t *testing.T) {
	sql, diags := compileSQL(t, "from employees\nfilter age > 25\ntake 10\nsort age", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "WHERE")
	require.Contains(t, sql, "LIMIT")
}

func TestGenerateJoin(t *testing.T) {
	sql, diags := compileSQL(t, "from a\njoin b (this.id == that.id)", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "JOIN")
}

func TestGenerateAggregate(t *testing.T) {
	sql, diags := compileSQL(t, "from employees\naggregate {ct = count this}", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "COUNT(*)")
	require.Contains(t, sql, `AS ct`)
}

func TestGenerateDeriveNamedColumn(t *testing.T) {
	sql, diags := compileSQL(t, "from employees\nderive {gross = salary + bonus}", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, `AS gross`)
}

func TestGenerateUnion(t *testing.T) {
	sql, diags := compileSQL(t, "from a\nunion b", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "UNION")
	require.NotContains(t, sql, "UNION ALL")
}

func TestGenerateExcept(t *testing.T) {
	sql, diags := compileSQL(t, "from a\nexcept b", dialect.Generic{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "EXCEPT")
}

func TestGenerateMySQLRegex(t *testing.T) {
	sql, diags := compileSQL(t, "from tracks\nfilter (name ~= \"Love\")", dialect.MySQL{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "REGEXP_LIKE")
}

func TestGenerateMSSQLTake(t *testing.T) {
	sql, diags := compileSQL(t, "from employees\ntake 10", dialect.MSSQL{})
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "TOP 10")
}
