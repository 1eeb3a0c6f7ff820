package prql

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/diagnostic"
)

func TestCompileSimplePipeline(t *testing.T) {
	res := Compile("from employees\nselect {first_name}", DefaultOptions())
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "SELECT")
	require.Contains(t, res.Output, "first_name")
	require.Contains(t, res.Output, "employees")
}

func TestCompileFilterSortTake(t *testing.T) {
	res := Compile("from employees\nfilter age > 25\nsort age\ntake 10", DefaultOptions())
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "WHERE")
	require.Contains(t, res.Output, "LIMIT")
}

func TestCompileUnresolvedNameProducesNoOutput(t *testing.T) {
	res := Compile("let y = totally_undefined_name + 1", DefaultOptions())
	require.NotEmpty(t, res.Messages)
	require.Empty(t, res.Output)
}

func TestCompileTargetFromHeader(t *testing.T) {
	res := Compile("prql target:sql.mssql\nfrom employees\ntake 10", DefaultOptions())
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "TOP 10")
}

func TestCompileRejectsNewerVersion(t *testing.T) {
	res := Compile(`prql version:"99.0.0"
from employees`, DefaultOptions())
	require.NotEmpty(t, res.Messages)
	found := false
	for _, m := range res.Messages {
		if m.Code == diagnostic.KindUnsupportedVersion.Code {
			found = true
		}
	}
	require.True(t, found)
}

func TestCompileAcceptsOlderOrEqualVersion(t *testing.T) {
	res := Compile(`prql version:"0.13.0"
from employees
select {first_name}`, DefaultOptions())
	require.Empty(t, res.Messages)
	require.Contains(t, res.Output, "SELECT")
}

func TestPrqlToPLStandalone(t *testing.T) {
	prog, diags := PrqlToPL("from employees\nfilter age > 20")
	require.Empty(t, diags.Messages())
	root := prog.Get(prog.Root)
	require.NotNil(t, root)
}

func TestPipelineStageByStage(t *testing.T) {
	prog, diags := PrqlToPL("from employees\nselect {first_name}")
	require.Empty(t, diags.Messages())

	q, diags := PlToRQ(prog)
	require.Empty(t, diags.Messages())

	sql, diags := RQToSQL(q, DefaultOptions())
	require.Empty(t, diags.Messages())
	require.Contains(t, sql, "SELECT")
}

func TestDialectForUnknownTargetFallsBackToGeneric(t *testing.T) {
	d := dialectFor("sql.not-a-real-dialect")
	require.NotNil(t, d)
}

func TestDialectForEmptyTarget(t *testing.T) {
	d := dialectFor("")
	require.NotNil(t, d)
}

func TestResultDestroyIsNoop(t *testing.T) {
	res := Compile("from employees", DefaultOptions())
	ResultDestroy(&res)
}
