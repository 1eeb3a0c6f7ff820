package resolver

import (
	"github.com/shopspring/decimal"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/pl"
)

// foldConstant evaluates a binary operation eagerly when both operands are
// already-resolved numeric literals, so later passes (and the eventual SQL
// text) see `1 + 1` as the literal `2` rather than an expression tree. Its
// only caller is resolveBinary.
func foldConstant(prog *pl.Program, op ast.BinaryOp, left, right pl.ExprId) (pl.Expr, bool) {
	lLit := resolvedLiteral(prog, left)
	rLit := resolvedLiteral(prog, right)
	if lLit == nil || rLit == nil {
		return pl.Expr{}, false
	}
	if lLit.Kind != ast.LitInt && lLit.Kind != ast.LitFloat {
		return pl.Expr{}, false
	}
	if rLit.Kind != ast.LitInt && rLit.Kind != ast.LitFloat {
		return pl.Expr{}, false
	}
	lv, rv := lLit.Decimal, rLit.Decimal
	isFloat := lLit.Kind == ast.LitFloat || rLit.Kind == ast.LitFloat

	var result decimal.Decimal
	switch op {
	case ast.BinAdd:
		result = lv.Add(rv)
	case ast.BinSub:
		result = lv.Sub(rv)
	case ast.BinMul:
		result = lv.Mul(rv)
	case ast.BinDiv:
		if rv.IsZero() {
			return pl.Expr{}, false
		}
		result = lv.Div(rv)
		isFloat = true
	case ast.BinIntDiv:
		if rv.IsZero() {
			return pl.Expr{}, false
		}
		result = lv.Div(rv).Truncate(0)
	case ast.BinMod:
		if rv.IsZero() {
			return pl.Expr{}, false
		}
		result = lv.Mod(rv)
	default:
		return pl.Expr{}, false
	}

	lit := &ast.Literal{Decimal: result}
	typ := pl.Type{Kind: pl.TyInt}
	if isFloat {
		lit.Kind = ast.LitFloat
		f, _ := result.Float64()
		lit.Float = f
		typ = pl.Type{Kind: pl.TyFloat}
	} else {
		lit.Kind = ast.LitInt
		lit.Int = result.IntPart()
		typ = pl.Type{Kind: pl.TyInt}
	}
	return pl.Expr{Kind: pl.EkLiteral, Literal: lit, Type: typ}, true
}

// resolvedLiteral follows a chain of Ident indirections (as produced for a
// name bound by a constant `let`) to the underlying literal, or nil if id
// does not ultimately denote one. Bounded to a handful of hops so a
// self-referential or absent binding can't loop.
func resolvedLiteral(prog *pl.Program, id pl.ExprId) *ast.Literal {
	for hop := 0; hop < 8; hop++ {
		if int(id) >= len(prog.Exprs) {
			return nil
		}
		e := prog.Get(id)
		switch e.Kind {
		case pl.EkLiteral:
			return e.Literal
		case pl.EkIdent:
			if e.Ident.Target == pl.NoTarget {
				return nil
			}
			id = e.Ident.Target
		default:
			return nil
		}
	}
	return nil
}
