// Package lower implements PL→RQ lowering (§4.5): every TransformCall chain
// becomes a chain of rq.Relation nodes, and every PL scalar expression
// becomes an rq.Expr addressed by dense CIds rather than names. A relation's
// "environment" (the map from a still-bare column name to the CId that last
// produced it) is threaded explicitly through lowering rather than kept on
// the IR itself, matching RQ's id-only design (§3.7, §9).
package lower

import (
	"fmt"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/pl"
	"github.com/prqlc/prqlc-go/rq"
	"github.com/prqlc/prqlc-go/span"
)

// env maps a column's surface name to the CId that currently produces it,
// threaded through one relation's transform chain as it is lowered.
type env map[string]rq.CId

func (e env) clone() env {
	out := make(env, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Lowerer converts one pl.Program into an rq.Query.
type Lowerer struct {
	prog  *pl.Program
	query *rq.Query
	cids  rq.CIdAllocator
	diags *diagnostic.Bag
}

// New creates a Lowerer over prog.
func New(prog *pl.Program, diags *diagnostic.Bag) *Lowerer {
	return &Lowerer{prog: prog, query: &rq.Query{}, diags: diags}
}

// Lower lowers the program's result pipeline and returns the completed
// Query.
// Lower converts the resolved program into RQ. A panic escaping the walk
// (an invariant this pass assumed but the resolver didn't actually
// guarantee) is caught and reported as an internal diagnostic rather than
// crashing the host process, matching engine.go's own top-level recover
// around a single transaction's execution.
func (lw *Lowerer) Lower() (result *rq.Query) {
	result = lw.query
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			lw.diags.InternalErr(span.Span{}, "panic while lowering PL to RQ", err)
		}
	}()
	tid, _ := lw.lowerRelation(lw.prog.Root)
	lw.query.Result = tid
	return lw.query
}

// lowerRelation lowers the TransformCall chain rooted at id into a flat
// rq.Relation (one base table reference plus its transform list), returning
// the resulting TId and the output env mapping column names to CIds.
func (lw *Lowerer) lowerRelation(id pl.ExprId) (rq.TId, env) {
	node := lw.prog.Get(id)
	if node.Kind == pl.EkIdent {
		// A bare name used directly as a relation, e.g. the table argument to
		// `join`/`append`, or `from`'s argument once unwrapped by the
		// tc.Kind == pl.TrFrom branch below. If the name was bound by a
		// `let`/`into` statement (§4.3), its Target points at the bound
		// pipeline: lower that pipeline and reference it, rather than
		// treating the let-bound name as an external table.
		if node.Ident.Target != pl.NoTarget {
			refTid, _ := lw.lowerRelation(node.Ident.Target)
			tid := lw.query.Alloc(rq.Relation{Kind: rq.RkRef, Name: lw.tableName(id), Ref: refTid})
			return tid, env{}
		}
		tid := lw.query.Alloc(rq.Relation{Kind: rq.RkTable, Name: lw.tableName(id)})
		return tid, env{}
	}
	if node.Kind == pl.EkLiteral {
		tid := lw.query.Alloc(rq.Relation{Kind: rq.RkTable, Name: lw.tableName(id)})
		return tid, env{}
	}
	if node.Kind != pl.EkTransformCall {
		lw.diags.Internal(span.Span{}, "expected a relation, found PL kind %d", node.Kind)
		tid := lw.query.Alloc(rq.Relation{Kind: rq.RkTable, Name: "<error>"})
		return tid, env{}
	}
	tc := node.TransformCall

	if tc.Kind == pl.TrFrom {
		return lw.lowerRelation(tc.Input)
	}

	if tc.Kind == pl.TrFromText {
		return lw.lowerFromText(lw.tableName(tc.Input), tc.FromTextFormat)
	}

	fromTid, fromEnv := lw.lowerRelation(tc.Input)
	rel := rq.Relation{Kind: rq.RkTransform, From: fromTid}
	e := fromEnv.clone()

	switch tc.Kind {
	case pl.TrSelect:
		cols, newEnv := lw.lowerColumnList(tc.Columns, e)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkSelect, Columns: cols})
		e = newEnv
		rel.Columns = cols
	case pl.TrDerive:
		cols, newEnv := lw.lowerColumnList(tc.Columns, e)
		// derive appends to the existing column set rather than replacing it;
		// when nothing has bound the upstream row into named columns yet (a
		// bare `from` with no prior select), fall back to a `*` passthrough
		// column so the original table's columns aren't dropped.
		carried := lw.carriedColumns(e)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkSelect, Columns: append(carried, cols...)})
		e = newEnv
		rel.Columns = append(lw.carriedColumns(fromEnv), cols...)
	case pl.TrFilter:
		pred := lw.lowerExpr(tc.Predicate, e)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkFilter, Predicate: pred})
		rel.Columns = existingColumns(e)
	case pl.TrSort:
		keys := lw.lowerSortKeys(tc.SortKeys, e)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkSort, SortKeys: keys})
		rel.Columns = existingColumns(e)
	case pl.TrTake:
		frame := lowerRange(tc.Range)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkTake, Frame: frame})
		rel.Columns = existingColumns(e)
	case pl.TrJoin:
		withTid, withEnv := lw.lowerRelation(tc.JoinWith)
		merged := mergeEnvs(e, withEnv)
		cond := lw.lowerExpr(tc.JoinCond, merged)
		rel.Transforms = append(rel.Transforms, rq.Transform{
			Kind: rq.TkJoin, JoinKind: joinKindOf(tc.JoinSide), JoinWith: withTid, JoinCond: cond,
		})
		e = merged
		rel.Columns = existingColumns(merged)
	case pl.TrGroup:
		byCols, byEnv := lw.lowerColumnList(tc.By, e)
		var groupIds []rq.CId
		for _, c := range byCols {
			groupIds = append(groupIds, c.Id)
		}
		innerCols := append([]rq.Column{}, byCols...)
		if len(tc.Pipe) > 0 {
			innerCols = append(innerCols, lw.lowerPipeColumns(tc.Pipe[0], e)...)
		}
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkAggregate, Columns: innerCols, GroupBy: groupIds})
		e = byEnv
		rel.Columns = innerCols
	case pl.TrAggregate:
		cols, newEnv := lw.lowerColumnList(tc.Columns, e)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkAggregate, Columns: cols})
		e = newEnv
		rel.Columns = cols
	case pl.TrWindow:
		// window's body pipeline describes the per-partition computation;
		// its derive/aggregate columns are lifted onto this relation's
		// select list directly.
		cols := existingColumns(e)
		if len(tc.Pipe) > 0 {
			cols = mergeColumnLists(cols, lw.lowerPipeColumns(tc.Pipe[0], e))
		}
		t := rq.Transform{Kind: rq.TkSelect, Columns: cols}
		if tc.Frame != nil {
			t.Frame = rq.Frame{Rows: tc.Frame.Rows, Start: tc.Frame.Start, End: tc.Frame.End}
		}
		rel.Transforms = append(rel.Transforms, t)
		rel.Columns = cols
	case pl.TrAppend:
		otherTid, _ := lw.lowerRelation(tc.Other)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkAppend, Other: otherTid})
		rel.Columns = existingColumns(e)
	case pl.TrUnion, pl.TrIntersect, pl.TrExcept:
		otherTid, _ := lw.lowerRelation(tc.Other)
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkSetOp, Other: otherTid, SetOp: setOpOf(tc.Kind)})
		rel.Columns = existingColumns(e)
	case pl.TrLoop:
		var bodyTid rq.TId
		if len(tc.Pipe) > 0 {
			bodyTid, _ = lw.lowerRelation(tc.Pipe[0])
		}
		rel.Transforms = append(rel.Transforms, rq.Transform{Kind: rq.TkLoop, Other: bodyTid})
		rel.Columns = existingColumns(e)
	}

	tid := lw.query.Alloc(rel)
	return tid, e
}

// tableName extracts the literal/ident name a `from` argument denotes.
func (lw *Lowerer) tableName(id pl.ExprId) string {
	if int(id) >= len(lw.prog.Exprs) {
		return "<unknown>"
	}
	n := lw.prog.Get(id)
	switch n.Kind {
	case pl.EkIdent:
		return joinPath(n.Ident.Path)
	case pl.EkLiteral:
		if n.Literal.Kind == ast.LitString {
			return n.Literal.Text
		}
	}
	return "<unknown>"
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// lowerPipeColumns lowers the column list of a nested transform-call body
// (group's or window's second argument, e.g. `(aggregate {...})` or
// `(derive {...})`) directly against the enclosing relation's env e, rather
// than through lowerRelation: the resolver binds this argument as a bare
// transform call (§4.4's resolveTransform), never wiring its Input to a real
// PL relation, so treating it as an independent relation would lowerRelation
// into a dangling reference instead of reusing the surrounding row.
func (lw *Lowerer) lowerPipeColumns(id pl.ExprId, e env) []rq.Column {
	node := lw.prog.Get(id)
	if node.Kind != pl.EkTransformCall {
		return nil
	}
	switch node.TransformCall.Kind {
	case pl.TrAggregate, pl.TrSelect, pl.TrDerive:
		cols, _ := lw.lowerColumnList(node.TransformCall.Columns, e)
		return cols
	}
	return nil
}

// lowerColumnList lowers a set of PL column expressions (from select/derive/
// group's by/aggregate) into rq.Columns, each bound to a fresh CId and
// registered into a copy of e under its resolved name, if any.
func (lw *Lowerer) lowerColumnList(ids []pl.ExprId, e env) ([]rq.Column, env) {
	out := e.clone()
	var cols []rq.Column
	for _, id := range ids {
		name, expr := lw.lowerColumnExpr(id, e)
		cid := lw.cids.Next()
		cols = append(cols, rq.Column{Id: cid, Expr: expr, Alias: name})
		if name != "" {
			out[name] = cid
		}
	}
	return cols, out
}

// lowerColumnExpr lowers one select/derive/group-by item, returning its
// alias (the tuple-item name, or the bare column name being passed through,
// or "" for an unnamed computed expression) alongside its RQ expression.
func (lw *Lowerer) lowerColumnExpr(id pl.ExprId, e env) (string, rq.Expr) {
	node := lw.prog.Get(id)
	if node.Alias != "" {
		return node.Alias, lw.lowerExpr(id, e)
	}
	if node.Kind == pl.EkIdent && len(node.Ident.Path) >= 1 {
		name := node.Ident.Path[len(node.Ident.Path)-1]
		return name, lw.lowerExpr(id, e)
	}
	return "", lw.lowerExpr(id, e)
}

// lowerExpr lowers one PL scalar expression to its RQ equivalent, resolving
// bare column names against e (falling back to an EkColumnName reference
// when the name hasn't been bound to a CId by an upstream transform yet,
// i.e. it passes straight through from the base table).
func (lw *Lowerer) lowerExpr(id pl.ExprId, e env) rq.Expr {
	node := lw.prog.Get(id)
	switch node.Kind {
	case pl.EkLiteral:
		return rq.Expr{Kind: rq.EkLiteral, Literal: node.Literal}
	case pl.EkThis, pl.EkThat:
		return rq.Expr{Kind: rq.EkColumnName, ColumnName: "*"}
	case pl.EkIdent:
		name := ""
		if len(node.Ident.Path) > 0 {
			name = node.Ident.Path[len(node.Ident.Path)-1]
		}
		if cid, ok := e[name]; ok {
			return rq.Expr{Kind: rq.EkColumn, Column: cid}
		}
		return rq.Expr{Kind: rq.EkColumnName, ColumnName: name}
	case pl.EkUnary:
		operand := lw.lowerExpr(node.Unary.Operand, e)
		return rq.Expr{Kind: rq.EkUnary, UnaryOp: node.Unary.Op, Operand: &operand}
	case pl.EkBinary:
		left := lw.lowerExpr(node.Binary.Left, e)
		right := lw.lowerExpr(node.Binary.Right, e)
		return rq.Expr{Kind: rq.EkBinary, BinaryOp: node.Binary.Op, Left: &left, Right: &right}
	case pl.EkIndirection:
		// this.col / that.col: column lookup ignoring the qualifier, since
		// RQ addresses columns by CId, not by relation-qualified name.
		inner := lw.lowerExpr(node.Indirection.Base, e)
		if cid, ok := e[node.Indirection.Field]; ok {
			return rq.Expr{Kind: rq.EkColumn, Column: cid}
		}
		_ = inner
		return rq.Expr{Kind: rq.EkColumnName, ColumnName: node.Indirection.Field}
	case pl.EkInterpString:
		var parts []rq.StringPart
		for _, p := range node.InterpString.Parts {
			if p.Literal {
				parts = append(parts, rq.StringPart{Literal: true, Text: p.Text})
				continue
			}
			sub := lw.lowerExpr(p.Expr, e)
			parts = append(parts, rq.StringPart{Expr: &sub})
		}
		return rq.Expr{Kind: rq.EkInterpString, SQL: node.InterpString.SQL, Parts: parts}
	case pl.EkCase:
		var arms []rq.CaseArm
		for _, arm := range node.Case.Arms {
			cond := lw.lowerExpr(arm.Cond, e)
			val := lw.lowerExpr(arm.Value, e)
			arms = append(arms, rq.CaseArm{Cond: &cond, Value: val})
		}
		return rq.Expr{Kind: rq.EkCase, Arms: arms}
	case pl.EkFuncCall:
		name := ""
		if fn := lw.prog.Get(node.FuncCall.Func); fn.Kind == pl.EkIdent {
			name = joinPath(fn.Ident.Path)
		}
		var args []rq.Expr
		for _, a := range node.FuncCall.Args {
			args = append(args, lw.lowerExpr(a, e))
		}
		return rq.Expr{Kind: rq.EkFuncCall, FuncName: name, Args: args}
	}
	lw.diags.Internal(span.Span{}, "unhandled pl.ExprKind %d during lowering", node.Kind)
	return rq.Expr{Kind: rq.EkLiteral, Literal: &ast.Literal{Kind: ast.LitNull}}
}

func (lw *Lowerer) lowerSortKeys(keys []pl.SortKey, e env) []rq.SortKey {
	var out []rq.SortKey
	for _, k := range keys {
		expr := lw.lowerExpr(k.Column, e)
		cid, ok := columnIdOf(expr)
		if !ok {
			cid = lw.cids.Next()
		}
		out = append(out, rq.SortKey{Column: cid, Descending: k.Descending})
	}
	return out
}

func columnIdOf(e rq.Expr) (rq.CId, bool) {
	if e.Kind == rq.EkColumn {
		return e.Column, true
	}
	return 0, false
}

func lowerRange(r *ast.RangeExpr) rq.Frame {
	f := rq.Frame{}
	if r == nil {
		return f
	}
	if r.Start != nil {
		if v, ok := intLit(r.Start); ok {
			f.Start = &v
		}
	}
	if r.End != nil {
		if v, ok := intLit(r.End); ok {
			f.End = &v
		}
	}
	return f
}

func intLit(e *ast.Expr) (int, bool) {
	if e.Kind != ast.EkLiteral || e.Literal.Kind != ast.LitInt {
		return 0, false
	}
	return int(e.Literal.Int), true
}

// carriedColumns is existingColumns, except when e has bound nothing at all
// (the relation's row hasn't been projected into named columns yet), in
// which case it returns a single `*` wildcard column standing in for the
// whole untouched upstream row.
func (lw *Lowerer) carriedColumns(e env) []rq.Column {
	cols := existingColumns(e)
	if len(cols) > 0 {
		return cols
	}
	return []rq.Column{{Id: lw.cids.Next(), Expr: rq.Expr{Kind: rq.EkColumnName, ColumnName: "*"}}}
}

func existingColumns(e env) []rq.Column {
	var out []rq.Column
	for name, cid := range e {
		out = append(out, rq.Column{Id: cid, Expr: rq.Expr{Kind: rq.EkColumn, Column: cid}, Alias: name})
	}
	return out
}

func mergeColumnLists(a, b []rq.Column) []rq.Column {
	seen := map[rq.CId]bool{}
	out := make([]rq.Column, 0, len(a)+len(b))
	for _, c := range a {
		if !seen[c.Id] {
			seen[c.Id] = true
			out = append(out, c)
		}
	}
	for _, c := range b {
		if !seen[c.Id] {
			seen[c.Id] = true
			out = append(out, c)
		}
	}
	return out
}

func mergeEnvs(a, b env) env {
	out := a.clone()
	for k, v := range b {
		out[k] = v
	}
	return out
}

func joinKindOf(s pl.JoinSide) rq.JoinKind {
	switch s {
	case pl.JoinLeft:
		return rq.JoinLeft
	case pl.JoinRight:
		return rq.JoinRight
	case pl.JoinFull:
		return rq.JoinFull
	default:
		return rq.JoinInner
	}
}

func setOpOf(k pl.TransformKind) rq.SetOp {
	switch k {
	case pl.TrIntersect:
		return rq.SetIntersect
	case pl.TrExcept:
		return rq.SetExcept
	default:
		return rq.SetUnion
	}
}
