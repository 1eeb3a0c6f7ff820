package sqlgen

import (
	"fmt"
	"strings"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/rq"
)

// scalarFuncs maps a stdlib scalar/aggregate function's dotted prelude path
// to the SQL function name dialects agree on; anything not listed renders
// as FUNCNAME(args...) using the last path segment uppercased, which covers
// every other stdlib entry (§4.7) without a bespoke rewrite.
var scalarFuncs = map[string]string{
	"average":      "AVG",
	"count":        "COUNT",
	"all":          "BOOL_AND",
	"any":          "BOOL_OR",
	"concat_array":  "ARRAY_AGG",
	"stddev":       "STDDEV",
	"rank":         "RANK",
	"row_number":   "ROW_NUMBER",
	"math.round":   "ROUND",
	"math.floor":   "FLOOR",
	"math.ceil":    "CEIL",
	"math.abs":     "ABS",
	"math.sqrt":    "SQRT",
	"math.pow":     "POWER",
	"math.exp":     "EXP",
	"math.ln":      "LN",
	"math.log":     "LOG",
	"text.lower":       "LOWER",
	"text.upper":       "UPPER",
	"text.ltrim":       "LTRIM",
	"text.rtrim":       "RTRIM",
	"text.trim":        "TRIM",
	"text.length":      "CHAR_LENGTH",
	"text.replace":     "REPLACE",
}

// renderExpr renders one lowered RQ scalar expression to SQL text. anchor
// resolves a CId to its in-scope SQL reference (either a bare column name
// for the current atom's immediate input, or `alias.col` for a column
// materialised by an earlier atom).
func (g *generator) renderExpr(e rq.Expr, anchor func(rq.CId) string) string {
	switch e.Kind {
	case rq.EkColumn:
		return anchor(e.Column)
	case rq.EkColumnName:
		if e.ColumnName == "*" {
			return "*"
		}
		return g.dia.QuoteIdent(e.ColumnName)
	case rq.EkLiteral:
		return renderLiteral(e.Literal)
	case rq.EkUnary:
		operand := g.renderExpr(*e.Operand, anchor)
		switch e.UnaryOp {
		case ast.UnaryNeg:
			return "-" + operand
		case ast.UnaryNot:
			return "NOT " + operand
		default:
			return operand
		}
	case rq.EkBinary:
		return g.renderBinary(e, anchor)
	case rq.EkInterpString:
		return g.renderInterpString(e, anchor)
	case rq.EkCase:
		return g.renderCase(e, anchor)
	case rq.EkFuncCall:
		return g.renderFuncCall(e, anchor)
	}
	return "NULL"
}

func (g *generator) renderBinary(e rq.Expr, anchor func(rq.CId) string) string {
	left := g.renderExpr(*e.Left, anchor)
	right := g.renderExpr(*e.Right, anchor)
	switch e.BinaryOp {
	case ast.BinOr:
		return fmt.Sprintf("(%s OR %s)", left, right)
	case ast.BinAnd:
		return fmt.Sprintf("(%s AND %s)", left, right)
	case ast.BinCoalesce:
		return fmt.Sprintf("COALESCE(%s, %s)", left, right)
	case ast.BinEq:
		return fmt.Sprintf("%s = %s", left, right)
	case ast.BinNe:
		return fmt.Sprintf("%s <> %s", left, right)
	case ast.BinLe:
		return fmt.Sprintf("%s <= %s", left, right)
	case ast.BinGe:
		return fmt.Sprintf("%s >= %s", left, right)
	case ast.BinLt:
		return fmt.Sprintf("%s < %s", left, right)
	case ast.BinGt:
		return fmt.Sprintf("%s > %s", left, right)
	case ast.BinRegexMatch:
		return g.dia.RegexMatch(left, right, false)
	case ast.BinAdd:
		return fmt.Sprintf("(%s + %s)", left, right)
	case ast.BinSub:
		return fmt.Sprintf("(%s - %s)", left, right)
	case ast.BinMul:
		return fmt.Sprintf("(%s * %s)", left, right)
	case ast.BinDiv:
		return fmt.Sprintf("(%s / %s)", left, right)
	case ast.BinIntDiv:
		return g.dia.IntDiv(left, right)
	case ast.BinMod:
		return fmt.Sprintf("MOD(%s, %s)", left, right)
	case ast.BinPow:
		return fmt.Sprintf("POWER(%s, %s)", left, right)
	default:
		return fmt.Sprintf("(%s %s)", left, right)
	}
}

func (g *generator) renderInterpString(e rq.Expr, anchor func(rq.CId) string) string {
	if e.SQL {
		// s-string: an opaque escape hatch (§9 "controlled escape hatch");
		// splice interpolated parts directly into the literal SQL text with
		// no quoting or validation.
		var b strings.Builder
		for _, p := range e.Parts {
			if p.Literal {
				b.WriteString(p.Text)
				continue
			}
			b.WriteString(g.renderExpr(*p.Expr, anchor))
		}
		return b.String()
	}
	var pieces []string
	for _, p := range e.Parts {
		if p.Literal {
			pieces = append(pieces, g.dia.QuoteString(p.Text))
			continue
		}
		pieces = append(pieces, g.renderExpr(*p.Expr, anchor))
	}
	if len(pieces) == 1 {
		return pieces[0]
	}
	return fmt.Sprintf("CONCAT(%s)", strings.Join(pieces, ", "))
}

func (g *generator) renderCase(e rq.Expr, anchor func(rq.CId) string) string {
	var b strings.Builder
	b.WriteString("CASE")
	var defaultVal string
	hasDefault := false
	for _, arm := range e.Arms {
		if arm.Cond == nil {
			defaultVal = g.renderExpr(arm.Value, anchor)
			hasDefault = true
			continue
		}
		fmt.Fprintf(&b, " WHEN %s THEN %s", g.renderExpr(*arm.Cond, anchor), g.renderExpr(arm.Value, anchor))
	}
	if hasDefault {
		fmt.Fprintf(&b, " ELSE %s", defaultVal)
	}
	b.WriteString(" END")
	return b.String()
}

func (g *generator) renderFuncCall(e rq.Expr, anchor func(rq.CId) string) string {
	var args []string
	for _, a := range e.Args {
		args = append(args, g.renderExpr(a, anchor))
	}
	if e.FuncName == "count" && len(args) == 0 {
		return "COUNT(*)"
	}
	if like, ok := renderLikePredicate(e.FuncName, args); ok {
		return like
	}
	name, ok := scalarFuncs[e.FuncName]
	if !ok {
		name = strings.ToUpper(lastSegment(e.FuncName))
	}
	if name == "" {
		name = "NULL"
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(args, ", "))
}

// renderLikePredicate renders `text.starts_with`/`text.contains`/
// `text.ends_with` as a LIKE predicate with a CONCAT-built pattern (E3:
// `(title | text.starts_with "Black")` -> `title LIKE CONCAT('Black','%')`)
// instead of a literal STARTS_WITH/CONTAINS/ENDS_WITH call, since that's
// the portable spelling across dialects lacking those exact builtins.
// Pipeline desugaring (§4.2) appends the piped subject as the *last*
// positional argument, so args[0] is the needle and args[1] the subject.
func renderLikePredicate(funcName string, args []string) (string, bool) {
	if len(args) != 2 {
		return "", false
	}
	needle, subject := args[0], args[1]
	var pattern string
	switch funcName {
	case "text.starts_with":
		pattern = fmt.Sprintf("CONCAT(%s, '%%')", needle)
	case "text.ends_with":
		pattern = fmt.Sprintf("CONCAT('%%', %s)", needle)
	case "text.contains":
		pattern = fmt.Sprintf("CONCAT('%%', %s, '%%')", needle)
	default:
		return "", false
	}
	return fmt.Sprintf("%s LIKE %s", subject, pattern), true
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '.'); i >= 0 {
		return path[i+1:]
	}
	return path
}

func renderLiteral(lit *ast.Literal) string {
	if lit == nil {
		return "NULL"
	}
	switch lit.Kind {
	case ast.LitNull:
		return "NULL"
	case ast.LitBool:
		if lit.Bool {
			return "TRUE"
		}
		return "FALSE"
	case ast.LitInt:
		return fmt.Sprintf("%d", lit.Int)
	case ast.LitFloat:
		return lit.Decimal.String()
	case ast.LitString:
		return "'" + strings.ReplaceAll(lit.Text, "'", "''") + "'"
	case ast.LitDate, ast.LitTime, ast.LitTimestamp:
		return "'" + lit.Text + "'"
	default:
		return "NULL"
	}
}
