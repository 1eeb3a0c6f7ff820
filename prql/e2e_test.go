package prql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestE2EScenarios exercises the concrete end-to-end scenarios named in the
// compiler's testable-properties list (E1-E6): one query per scenario,
// checked against the SQL fragments the scenario specifies rather than a
// full golden string, since exact whitespace/CTE-naming is an
// implementation detail the scenarios don't pin down.

func TestE1SimpleSelect(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	opts.SignatureComment = false
	res := Compile("from employees\nselect first_name", opts)
	require.Empty(t, res.Messages)
	require.Equal(t, "SELECT first_name FROM employees", res.Output)
}

func TestE2FilterSortTakeGeneric(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	res := Compile("from employees\nfilter age > 25\ntake 10\nsort {-name}", opts)
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "WHERE age > 25")
	require.Contains(t, res.Output, "ORDER BY name DESC")
	require.Contains(t, res.Output, "LIMIT 10")
}

func TestE2FilterSortTakeMSSQLUsesTop(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	opts.Target = "sql.mssql"
	res := Compile("from employees\nfilter age > 25\ntake 10\nsort {-name}", opts)
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "TOP 10")
	require.Contains(t, res.Output, "ORDER BY name DESC")
}

func TestE3TextPipelineCTE(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	res := Compile(`from albums
select { title, low = (title | text.lower), len = (title | text.length) }
sort {title}
filter (title | text.starts_with "Black")`, opts)
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "LOWER(title)")
	require.Contains(t, res.Output, "CHAR_LENGTH(title)")
	require.Contains(t, res.Output, "title LIKE CONCAT('Black', '%')")
	require.Contains(t, res.Output, "ORDER BY title")
}

func TestE4GroupAggregate(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	res := Compile("from employees\ngroup {title, country} (aggregate {avg_salary = average salary, ct = count this})", opts)
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "AVG(salary) AS avg_salary")
	require.Contains(t, res.Output, "COUNT(*) AS ct")
	require.Contains(t, res.Output, "GROUP BY title, country")
}

func TestE5RegexDialectSwitch(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false

	opts.Target = "sql.postgres"
	pg := Compile(`from tracks
filter (name ~= "Love")`, opts)
	require.Empty(t, pg.Messages)
	require.Contains(t, pg.Output, "name ~ 'Love'")

	opts.Target = "sql.mysql"
	mysql := Compile(`from tracks
filter (name ~= "Love")`, opts)
	require.Empty(t, mysql.Messages)
	require.Contains(t, mysql.Output, "REGEXP_LIKE(name, 'Love')")
}

func TestE6LetBindingProducesCTE(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	res := Compile(`let t = (from x | take 3)
from t
select a`, opts)
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "WITH")
	require.Contains(t, res.Output, "SELECT a")
}

// TestJSONPipelineMatchesNativePipeline runs the same source through the
// JSON-in/JSON-out entry points (§6.1, §6.4) and checks the result matches
// what the native-struct pipeline produces for the same source.
func TestJSONPipelineMatchesNativePipeline(t *testing.T) {
	opts := DefaultOptions()
	opts.Format = false
	opts.SignatureComment = false
	const src = "from employees\nfilter age > 18\nselect {first_name}"

	plJSON, diags := PrqlToPLJSON(src)
	require.Empty(t, diags.Messages())
	require.NotEmpty(t, plJSON)

	rqJSON, diags := PLJSONToRQJSON(plJSON)
	require.Empty(t, diags.Messages())
	require.NotEmpty(t, rqJSON)

	sql, diags := RQJSONToSQL(rqJSON, opts)
	require.Empty(t, diags.Messages())

	want := Compile(src, opts)
	require.Empty(t, want.Messages)
	require.Equal(t, want.Output, sql)
}
