package lower

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/parser"
	"github.com/prqlc/prqlc-go/resolver"
	"github.com/prqlc/prqlc-go/rq"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/stdlib"
)

func lowerSrc(t *testing.T, src string) (*rq.Query, *diagnostic.Bag) {
	t.Helper()
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	f, _ := parser.Parse(sm, "test.prql", src, diags)
	root := stdlib.Prelude()
	prog := resolver.New(root, diags).Resolve(f)
	q := New(prog, diags).Lower()
	return q, diags
}

func TestLowerFromSelect(t *testing.T) {
	q, diags := lowerSrc(t, "from employees\nselect {first_name}")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.RkTransform, result.Kind)
	require.Len(t, result.Transforms, 1)
	require.Equal(t, rq.TkSelect, result.Transforms[0].Kind)
	base := q.Get(result.From)
	require.Equal(t, rq.RkTable, base.Kind)
	require.Equal(t, "employees", base.Name)
}

func TestLowerFilterSort(t *testing.T) {
	q, diags := lowerSrc(t, "from x\nfilter age > 18\nsort age")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkSort, result.Transforms[0].Kind)
	filterRel := q.Get(result.From)
	require.Equal(t, rq.TkFilter, filterRel.Transforms[0].Kind)
}

func TestLowerJoin(t *testing.T) {
	q, diags := lowerSrc(t, "from a\njoin b (this.id == that.id)")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkJoin, result.Transforms[0].Kind)
	require.Equal(t, rq.JoinInner, result.Transforms[0].JoinKind)
}

func TestLowerAggregateNamedColumn(t *testing.T) {
	q, diags := lowerSrc(t, "from employees\naggregate {ct = count this}")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkAggregate, result.Transforms[0].Kind)
	cols := result.Transforms[0].Columns
	require.Len(t, cols, 1)
	require.Equal(t, "ct", cols[0].Alias)
	require.Equal(t, rq.EkFuncCall, cols[0].Expr.Kind)
}

// TestLowerSelectMultipleColumnAliases diffs the full alias list with
// go-cmp rather than testify's require.Equal: a mismatch here is an
// off-by-one or reordering across several columns, and cmp.Diff's output
// points straight at which element differs instead of dumping two whole
// slices side by side.
func TestLowerSelectMultipleColumnAliases(t *testing.T) {
	q, diags := lowerSrc(t, "from employees\nselect {first_name, last_name, age}")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	cols := result.Transforms[0].Columns
	got := make([]string, len(cols))
	for i, c := range cols {
		got[i] = c.Alias
	}
	want := []string{"first_name", "last_name", "age"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("column aliases mismatch (-want +got):\n%s", diff)
	}
}

func TestLowerTake(t *testing.T) {
	q, diags := lowerSrc(t, "from x\ntake 10")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkTake, result.Transforms[0].Kind)
	require.NotNil(t, result.Transforms[0].Frame.End)
	require.Equal(t, 10, *result.Transforms[0].Frame.End)
}

func TestLowerGroupAggregateCarriesComputedColumns(t *testing.T) {
	q, diags := lowerSrc(t, "from employees\ngroup {title} (aggregate {ct = count this})")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkAggregate, result.Transforms[0].Kind)
	cols := result.Transforms[0].Columns
	require.Len(t, cols, 2)
	require.Equal(t, "title", cols[0].Alias)
	require.Equal(t, "ct", cols[1].Alias)
	require.Equal(t, rq.EkFuncCall, cols[1].Expr.Kind)
	require.Equal(t, "count", cols[1].Expr.FuncName)
}

func TestLowerLetBindingProducesRef(t *testing.T) {
	q, diags := lowerSrc(t, "let t = (from x | take 3)\nfrom t\nselect a")
	require.Empty(t, diags.Messages())
	result := q.Get(q.Result)
	require.Equal(t, rq.TkSelect, result.Transforms[0].Kind)
	base := q.Get(result.From)
	require.Equal(t, rq.RkRef, base.Kind)
	ref := q.Get(base.Ref)
	require.Equal(t, rq.TkTake, ref.Transforms[0].Kind)
}
