package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/span"
)

func parse(t *testing.T, src string) (*ast.File, *diagnostic.Bag) {
	t.Helper()
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	f, _ := Parse(sm, "test.prql", src, diags)
	return f, diags
}

func TestParseBasicPipeline(t *testing.T) {
	f, diags := parse(t, "from employees\nselect first_name")
	require.Empty(t, diags.Messages())
	require.Len(t, f.Stmts, 1)
	require.Equal(t, ast.SkExprStatement, f.Stmts[0].Kind)
	pipe := f.Stmts[0].Expr
	require.Equal(t, ast.EkPipeline, pipe.Kind)
	require.Len(t, pipe.Pipeline.Stages, 2)
}

func TestParseHeader(t *testing.T) {
	f, diags := parse(t, "prql target:sql.postgres version:\"0.9\"\nfrom x")
	require.Empty(t, diags.Messages())
	require.NotNil(t, f.Header)
	require.Equal(t, "sql.postgres", f.Header.Target)
	require.Equal(t, "0.9", f.Header.Version)
}

func TestParseLetStmt(t *testing.T) {
	f, diags := parse(t, "let x = 5")
	require.Empty(t, diags.Messages())
	require.Equal(t, ast.SkLet, f.Stmts[0].Kind)
	require.Equal(t, "x", f.Stmts[0].Let.Name)
	require.Equal(t, ast.EkLiteral, f.Stmts[0].Let.Value.Kind)
	require.Equal(t, int64(5), f.Stmts[0].Let.Value.Literal.Int)
}

func TestParseFuncDef(t *testing.T) {
	f, diags := parse(t, "let add = a b -> a + b")
	require.Empty(t, diags.Messages())
	fn := f.Stmts[0].Let.Value
	require.Equal(t, ast.EkFuncDef, fn.Kind)
	require.Len(t, fn.FuncDef.Params, 2)
	require.Equal(t, "a", fn.FuncDef.Params[0].Name)
	require.Equal(t, ast.EkBinary, fn.FuncDef.Body.Kind)
}

func TestParseFuncDefWithDefault(t *testing.T) {
	f, diags := parse(t, "let inc = a step:1 -> a + step")
	require.Empty(t, diags.Messages())
	fn := f.Stmts[0].Let.Value
	require.Len(t, fn.FuncDef.Params, 2)
	require.Nil(t, fn.FuncDef.Params[0].Default)
	require.NotNil(t, fn.FuncDef.Params[1].Default)
}

func TestParseIntoStmt(t *testing.T) {
	f, diags := parse(t, "from x into y")
	require.Empty(t, diags.Messages())
	require.Equal(t, ast.SkInto, f.Stmts[0].Kind)
	require.Equal(t, "y", f.Stmts[0].Into.Name)
}

func TestParseModuleStmt(t *testing.T) {
	f, diags := parse(t, "module foo {\nlet x = 1\n}")
	require.Empty(t, diags.Messages())
	require.Equal(t, ast.SkModule, f.Stmts[0].Kind)
	require.Equal(t, "foo", f.Stmts[0].Module.Name)
	require.Len(t, f.Stmts[0].Module.Body, 1)
}

func TestParseCallWithNamedArgs(t *testing.T) {
	f, diags := parse(t, "from x\nderive {y = add a b:2}")
	require.Empty(t, diags.Messages())
	derive := f.Stmts[0].Expr.Pipeline.Stages[1]
	require.Equal(t, ast.EkCall, derive.Kind)
	require.Equal(t, "derive", derive.Call.Func.Ident.Path[0])
	tuple := derive.Call.Args[0]
	require.Equal(t, ast.EkTuple, tuple.Kind)
	require.Equal(t, "y", tuple.Tuple.Items[0].Name)
	inner := tuple.Tuple.Items[0].Value
	require.Equal(t, ast.EkCall, inner.Kind)
	require.Len(t, inner.Call.NamedArgs, 1)
	require.Equal(t, "b", inner.Call.NamedArgs[0].Name)
}

func TestParseCall(t *testing.T) {
	f, diags := parse(t, "from x\nfilter (age > 20)")
	require.Empty(t, diags.Messages())
	stage := f.Stmts[0].Expr.Pipeline.Stages[1]
	require.Equal(t, ast.EkCall, stage.Kind)
	require.Equal(t, "filter", stage.Call.Func.Ident.Path[0])
}

func TestParseTupleAndArray(t *testing.T) {
	f, diags := parse(t, "let t = {a = 1, b = 2}\nlet arr = [1, 2, 3]")
	require.Empty(t, diags.Messages())
	tuple := f.Stmts[0].Let.Value
	require.Equal(t, ast.EkTuple, tuple.Kind)
	require.Len(t, tuple.Tuple.Items, 2)
	require.Equal(t, "a", tuple.Tuple.Items[0].Name)

	arr := f.Stmts[1].Let.Value
	require.Equal(t, ast.EkArray, arr.Kind)
	require.Len(t, arr.Array.Items, 3)
}

func TestParseRange(t *testing.T) {
	f, diags := parse(t, "from x\ntake 1..10")
	require.Empty(t, diags.Messages())
	call := f.Stmts[0].Expr.Pipeline.Stages[1]
	rng := call.Call.Args[0]
	require.Equal(t, ast.EkRange, rng.Kind)
	require.NotNil(t, rng.Range.Start)
	require.NotNil(t, rng.Range.End)
}

func TestParseOpenRange(t *testing.T) {
	f, diags := parse(t, "from x\ntake ..10")
	require.Empty(t, diags.Messages())
	call := f.Stmts[0].Expr.Pipeline.Stages[1]
	rng := call.Call.Args[0]
	require.Equal(t, ast.EkRange, rng.Kind)
	require.Nil(t, rng.Range.Start)
	require.NotNil(t, rng.Range.End)
}

func TestParseBinaryPrecedence(t *testing.T) {
	f, diags := parse(t, "let x = 1 + 2 * 3")
	require.Empty(t, diags.Messages())
	top := f.Stmts[0].Let.Value
	require.Equal(t, ast.EkBinary, top.Kind)
	require.Equal(t, ast.BinAdd, top.Binary.Op)
	require.Equal(t, ast.EkBinary, top.Binary.Right.Kind)
	require.Equal(t, ast.BinMul, top.Binary.Right.Op)
}

func TestParsePowerIsRightAssociative(t *testing.T) {
	f, diags := parse(t, "let x = 2 ** 3 ** 2")
	require.Empty(t, diags.Messages())
	top := f.Stmts[0].Let.Value
	require.Equal(t, ast.BinPow, top.Binary.Op)
	require.Equal(t, ast.EkBinary, top.Binary.Right.Kind)
}

func TestParseUnaryAndCoalesce(t *testing.T) {
	f, diags := parse(t, "let x = -a ?? 0")
	require.Empty(t, diags.Messages())
	top := f.Stmts[0].Let.Value
	require.Equal(t, ast.BinCoalesce, top.Binary.Op)
	require.Equal(t, ast.EkUnary, top.Binary.Left.Kind)
	require.Equal(t, ast.UnaryNeg, top.Binary.Left.Unary.Op)
}

func TestParseIndirection(t *testing.T) {
	f, diags := parse(t, "from x\nselect (a | b).field")
	require.Empty(t, diags.Messages())
	call := f.Stmts[0].Expr.Pipeline.Stages[1]
	arg := call.Call.Args[0]
	require.Equal(t, ast.EkIndirection, arg.Kind)
	require.Equal(t, "field", arg.Indirection.Field)
}

func TestParseCase(t *testing.T) {
	f, diags := parse(t, "let x = case [a > 0 => 1, true => 0]")
	require.Empty(t, diags.Messages())
	c := f.Stmts[0].Let.Value
	require.Equal(t, ast.EkCase, c.Kind)
	require.Len(t, c.Case.Arms, 2)
}

func TestParseAnnotation(t *testing.T) {
	f, diags := parse(t, "@{binding_strength=1}\nlet x = 1")
	require.Empty(t, diags.Messages())
	require.NotNil(t, f.Stmts[0].Annotation)
	require.Len(t, f.Stmts[0].Annotation.Meta.Items, 1)
}

func TestParseFString(t *testing.T) {
	f, diags := parse(t, `let x = f"hello {name}!"`)
	require.Empty(t, diags.Messages())
	is := f.Stmts[0].Let.Value
	require.Equal(t, ast.EkInterpString, is.Kind)
	require.Len(t, is.InterpString.Parts, 3)
	require.False(t, is.InterpString.Parts[1].Literal)
	require.Equal(t, ast.EkIdent, is.InterpString.Parts[1].Expr.Kind)
}

func TestParseThisThat(t *testing.T) {
	f, diags := parse(t, "from x\njoin y (this.id == that.id)")
	require.Empty(t, diags.Messages())
	call := f.Stmts[0].Expr.Pipeline.Stages[1]
	require.Equal(t, "join", call.Call.Func.Ident.Path[0])
	cond := call.Call.Args[1]
	require.Equal(t, ast.EkBinary, cond.Kind)
	require.Equal(t, ast.EkIndirection, cond.Binary.Left.Kind)
	require.Equal(t, ast.EkThis, cond.Binary.Left.Indirection.Base.Kind)
}

func TestParseLineWrapDoesNotBreakPipeline(t *testing.T) {
	f, diags := parse(t, "from x\n\\ | select y")
	require.Empty(t, diags.Messages())
	require.Equal(t, ast.EkPipeline, f.Stmts[0].Expr.Kind)
	require.Len(t, f.Stmts[0].Expr.Pipeline.Stages, 2)
}

func TestParseUnexpectedTokenRecovers(t *testing.T) {
	f, diags := parse(t, "let x = )\nlet y = 2")
	require.True(t, diags.HasErrors())
	require.Len(t, f.Stmts, 2)
	require.Equal(t, "y", f.Stmts[1].Let.Name)
}

func TestParseUnmatchedBraceRecovers(t *testing.T) {
	_, diags := parse(t, "let x = {a = 1")
	require.True(t, diags.HasErrors())
	found := false
	for _, m := range diags.Messages() {
		if m.Code == diagnostic.KindUnmatchedDelim.Code {
			found = true
		}
	}
	require.True(t, found)
}
