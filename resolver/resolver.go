// Package resolver implements AST→PL resolution (§4.4): name resolution
// against a module tree, currying/partial application, transform
// specialisation, lineage propagation, this/that disambiguation inside
// joins, and best-effort type inference. Like every other pass, it never
// aborts: on a failure it records a diagnostic and substitutes an Infer-typed
// placeholder so later stages still have a complete tree to walk (§9).
package resolver

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/module"
	"github.com/prqlc/prqlc-go/pl"
	"github.com/prqlc/prqlc-go/span"
)

// transformNames maps the stdlib relational transform names recognised by
// specialisation (§3.1, §4.4) to their TransformKind.
var transformNames = map[string]pl.TransformKind{
	"from": pl.TrFrom, "select": pl.TrSelect, "derive": pl.TrDerive,
	"filter": pl.TrFilter, "sort": pl.TrSort, "take": pl.TrTake,
	"join": pl.TrJoin, "group": pl.TrGroup, "aggregate": pl.TrAggregate,
	"window": pl.TrWindow, "append": pl.TrAppend, "loop": pl.TrLoop,
	"union": pl.TrUnion, "intersect": pl.TrIntersect, "except": pl.TrExcept,
	"from_text": pl.TrFromText,
}

// Resolver walks one ast.File, building a pl.Program and the module tree
// that backs it.
type Resolver struct {
	prog   *pl.Program
	diags  *diagnostic.Bag
	root   *module.Module
	scope  *module.LayeredModules
	inJoin bool // true while resolving a join's condition, enabling `that`
	log    *logrus.Logger

	// colCtx is true while resolving an expression in column position
	// (select/derive/filter/sort/group's by/join's condition), where a bare
	// name that isn't otherwise bound is implicitly a column of the input
	// relation rather than a resolution error — full per-relation column
	// scoping (binding exact column sets from a table's lineage) is a
	// further refinement layered lowering doesn't yet need (DESIGN.md).
	colCtx bool
}

// New creates a Resolver rooted at root (typically the stdlib prelude
// module, so unqualified transform/function names resolve there, §4.3).
func New(root *module.Module, diags *diagnostic.Bag) *Resolver {
	return &Resolver{
		prog:  &pl.Program{},
		diags: diags,
		root:  root,
		scope: module.NewLayeredModules(root),
		log:   logrus.StandardLogger(),
	}
}

// Resolve processes every statement of f, binding top-level `let`s into the
// root module and returning the resulting Program; Program.Root is the id of
// the last expression-statement's (or `into`'s) value, i.e. the query result
// (§3.6). A file with neither falls back to the last top-level `let`'s value.
func (r *Resolver) Resolve(f *ast.File) *pl.Program {
	var last, lastLet pl.ExprId
	haveLast, haveLet := false, false
	for _, stmt := range f.Stmts {
		switch stmt.Kind {
		case ast.SkLet:
			id := r.resolveExpr(stmt.Let.Value)
			r.bindExprDecl(stmt.Let.Name, id, stmt.Span)
			r.applyAnnotation(stmt.Annotation, stmt.Let.Name)
			lastLet, haveLet = id, true
		case ast.SkInto:
			id := r.resolveExpr(stmt.Into.Value)
			r.bindExprDecl(stmt.Into.Name, id, stmt.Span)
			last, haveLast = id, true
		case ast.SkExprStatement:
			id := r.resolveExpr(*stmt.Expr)
			last, haveLast = id, true
		case ast.SkModule:
			r.resolveModuleStmt(stmt.Module)
		case ast.SkType:
			id := r.resolveExpr(stmt.Type.Value)
			r.bindExprDecl(stmt.Type.Name, id, stmt.Span)
		}
	}
	if haveLast {
		r.prog.Root = last
	} else if haveLet {
		r.prog.Root = lastLet
	}
	return r.prog
}

// bindExprDecl records name -> id directly in the root module, used for
// `let`/`into`/`type` bindings (§4.3). Re-declaring a name already bound by
// an earlier `let`/`into`/`type` in this same module makes any later
// unqualified reference to name ambiguous about which binding it means,
// since Insert would otherwise silently replace the earlier Decl with no
// record of the collision (§4.4, §7); deliberately scoped to DkExpr-over-
// DkExpr collisions only, so a user `let count = ...` overriding the
// stdlib builtin of the same name (a normal, supported shadowing) doesn't
// also trip this check. module.Candidates builds the "matches %s" list
// across the whole scope stack, as the diagnostic's template wants.
func (r *Resolver) bindExprDecl(name string, id pl.ExprId, sp span.Span) {
	if dup, ok := r.root.Get(name); ok && dup.Kind == module.DkExpr {
		r.diags.Errorf(diagnostic.KindAmbiguousName, sp, "", name, joinCandidates(r.scope.Candidates(name)))
	}
	r.root.Insert(name, &module.Decl{Kind: module.DkExpr, ExprId: ast.NodeId(id)})
}

// joinCandidates renders module.LayeredModules.Candidates' match list for
// KindAmbiguousName's "matches %s" template.
func joinCandidates(candidates []string) string {
	out := ""
	for i, c := range candidates {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// applyAnnotation copies a `@{key=value, ...}` tag (§4.7's annotation
// schema, e.g. `@{sql_function="ROUND"}`, but also numeric/boolean tags
// such as `@{binding_strength=10}` for stdlib operator precedence) onto the
// Decl just bound under name, if present. Positional items are ignored:
// annotations are a metadata side-channel, not a second argument list.
func (r *Resolver) applyAnnotation(a *ast.Annotation, name string) {
	if a == nil || a.Meta == nil {
		return
	}
	decl, ok := r.root.Get(name)
	if !ok {
		return
	}
	for _, item := range a.Meta.Items {
		if item.Name == "" || item.Value.Kind != ast.EkLiteral {
			continue
		}
		s, ok := annotationValueToString(item.Value.Literal)
		if !ok {
			continue
		}
		if decl.Annotations == nil {
			decl.Annotations = map[string]string{}
		}
		decl.Annotations[item.Name] = s
	}
}

// annotationValueToString coerces any scalar literal kind an annotation
// might carry into its string spelling, using spf13/cast the way the
// teacher's dynamically-typed row values get coerced at its engine
// boundary: an annotation author writing `@{binding_strength=10}` or
// `@{inline=true}` gets the same string-keyed Decl.Annotations map as one
// writing `@{sql_function="ROUND"}`, without resolver.go special-casing
// every literal kind by hand.
func annotationValueToString(lit *ast.Literal) (string, bool) {
	if lit == nil {
		return "", false
	}
	switch lit.Kind {
	case ast.LitString:
		return lit.Text, true
	case ast.LitInt:
		return cast.ToString(lit.Int), true
	case ast.LitFloat:
		return cast.ToString(lit.Decimal.String()), true
	case ast.LitBool:
		return cast.ToString(lit.Bool), true
	default:
		return "", false
	}
}

func (r *Resolver) resolveModuleStmt(m *ast.ModuleStmt) {
	r.log.Tracef("resolver: loading module %s", m.Name)
	sub := module.NewModule(m.Name, r.root)
	parentRoot, parentScope := r.root, r.scope
	r.root, r.scope = sub, r.scope.Push(sub)
	for _, stmt := range m.Body {
		switch stmt.Kind {
		case ast.SkLet:
			id := r.resolveExpr(stmt.Let.Value)
			r.bindExprDecl(stmt.Let.Name, id, stmt.Span)
		case ast.SkModule:
			r.resolveModuleStmt(stmt.Module)
		}
	}
	r.root, r.scope = parentRoot, parentScope
	decl := &module.Decl{Kind: module.DkModule, Module: sub, Internal: false}
	parentRoot.Insert(m.Name, decl)
}

// resolveExpr dispatches on the AST node's kind, producing (and interning)
// the corresponding PL node.
func (r *Resolver) resolveExpr(e ast.Expr) pl.ExprId {
	switch e.Kind {
	case ast.EkLiteral:
		return r.intern(e, pl.Expr{Kind: pl.EkLiteral, Literal: e.Literal, Type: literalType(e.Literal)})
	case ast.EkThis:
		return r.intern(e, pl.Expr{Kind: pl.EkThis, Type: pl.Infer()})
	case ast.EkThat:
		if !r.inJoin {
			r.diags.Errorf(diagnostic.KindThatOutsideJoin, e.Span, "")
		}
		return r.intern(e, pl.Expr{Kind: pl.EkThat, Type: pl.Infer()})
	case ast.EkIdent:
		return r.resolveIdent(e)
	case ast.EkTuple:
		return r.resolveTuple(e)
	case ast.EkArray:
		items := make([]pl.ExprId, len(e.Array.Items))
		for i, it := range e.Array.Items {
			items[i] = r.resolveExpr(it)
		}
		return r.intern(e, pl.Expr{Kind: pl.EkArray, Array: items, Type: pl.Type{Kind: pl.TyArray, Elem: &pl.Type{Kind: pl.TyInfer}}})
	case ast.EkRange:
		rng := &pl.RangeExpr{}
		if e.Range.Start != nil {
			id := r.resolveExpr(*e.Range.Start)
			rng.Start = &id
		}
		if e.Range.End != nil {
			id := r.resolveExpr(*e.Range.End)
			rng.End = &id
		}
		return r.intern(e, pl.Expr{Kind: pl.EkRange, Range: rng, Type: pl.Infer()})
	case ast.EkUnary:
		operand := r.resolveExpr(e.Unary.Operand)
		return r.intern(e, pl.Expr{Kind: pl.EkUnary, Unary: &pl.UnaryExpr{Op: e.Unary.Op, Operand: operand},
			Type: r.prog.Get(operand).Type})
	case ast.EkBinary:
		return r.resolveBinary(e)
	case ast.EkIndirection:
		base := r.resolveExpr(e.Indirection.Base)
		return r.intern(e, pl.Expr{Kind: pl.EkIndirection,
			Indirection: &pl.IndirectionExpr{Base: base, Field: e.Indirection.Field}, Type: pl.Infer()})
	case ast.EkInterpString:
		is := &pl.InterpString{SQL: e.InterpString.SQL}
		for _, part := range e.InterpString.Parts {
			if part.Literal {
				is.Parts = append(is.Parts, pl.StringPart{Literal: true, Text: part.Text})
				continue
			}
			id := r.resolveExpr(part.Expr)
			is.Parts = append(is.Parts, pl.StringPart{Literal: false, Expr: id})
		}
		return r.intern(e, pl.Expr{Kind: pl.EkInterpString, InterpString: is, Type: pl.Type{Kind: pl.TyString}})
	case ast.EkFuncDef:
		return r.resolveFuncDef(e)
	case ast.EkCase:
		ce := &pl.CaseExpr{}
		for _, arm := range e.Case.Arms {
			ce.Arms = append(ce.Arms, pl.CaseArm{Cond: r.resolveExpr(arm.Cond), Value: r.resolveExpr(arm.Value)})
		}
		return r.intern(e, pl.Expr{Kind: pl.EkCase, Case: ce, Type: pl.Infer()})
	case ast.EkCall:
		return r.resolveCall(e)
	case ast.EkPipeline:
		return r.resolvePipeline(e)
	case ast.EkError:
		return r.intern(e, pl.Expr{Kind: pl.EkLiteral, Literal: &ast.Literal{Kind: ast.LitNull}, Type: pl.Infer()})
	}
	r.diags.Internal(e.Span, "unhandled ast.ExprKind %d", e.Kind)
	return r.intern(e, pl.Expr{Kind: pl.EkLiteral, Literal: &ast.Literal{Kind: ast.LitNull}, Type: pl.Infer()})
}

func (r *Resolver) intern(src ast.Expr, node pl.Expr) pl.ExprId {
	node.Node = src.Id
	return r.prog.Alloc(node)
}

func literalType(lit *ast.Literal) pl.Type {
	switch lit.Kind {
	case ast.LitInt:
		return pl.Type{Kind: pl.TyInt}
	case ast.LitFloat:
		return pl.Type{Kind: pl.TyFloat}
	case ast.LitBool:
		return pl.Type{Kind: pl.TyBool}
	case ast.LitNull:
		return pl.Type{Kind: pl.TyNull, Nullable: true}
	case ast.LitDate:
		return pl.Type{Kind: pl.TyDate}
	case ast.LitTime:
		return pl.Type{Kind: pl.TyTime}
	case ast.LitTimestamp:
		return pl.Type{Kind: pl.TyTimestamp}
	case ast.LitString:
		return pl.Type{Kind: pl.TyString}
	}
	return pl.Infer()
}

func (r *Resolver) resolveIdent(e ast.Expr) pl.ExprId {
	decl, ok := r.scope.ResolvePath(e.Ident.Path)
	if !ok {
		if r.colCtx {
			return r.intern(e, pl.Expr{Kind: pl.EkIdent,
				Ident: &pl.Ident{Path: e.Ident.Path, Target: pl.NoTarget}, Type: pl.Infer()})
		}
		r.diags.Errorf(diagnostic.KindUnknownName, e.Span, "", joinPath(e.Ident.Path))
		return r.intern(e, pl.Expr{Kind: pl.EkIdent,
			Ident: &pl.Ident{Path: e.Ident.Path, Target: pl.NoTarget}, Type: pl.Infer()})
	}
	typ := pl.Infer()
	target := pl.NoTarget
	switch decl.Kind {
	case module.DkExpr:
		target = pl.ExprId(decl.ExprId)
		if int(target) < len(r.prog.Exprs) {
			typ = r.prog.Get(target).Type
		}
	case module.DkColumn:
		typ = pl.Infer()
	case module.DkBuiltin:
		typ = pl.Type{Kind: pl.TyFunc}
	}
	return r.intern(e, pl.Expr{Kind: pl.EkIdent, Ident: &pl.Ident{Path: e.Ident.Path, Target: target}, Type: typ})
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

func (r *Resolver) resolveTuple(e ast.Expr) pl.ExprId {
	tup := &pl.TupleExpr{}
	var fields []pl.TupleField
	for _, item := range e.Tuple.Items {
		id := r.resolveExpr(item.Value)
		tup.Items = append(tup.Items, pl.TupleItem{Name: item.Name, Value: id})
		fields = append(fields, pl.TupleField{Name: item.Name, Type: r.prog.Get(id).Type})
	}
	return r.intern(e, pl.Expr{Kind: pl.EkTuple, Tuple: tup, Type: pl.Type{Kind: pl.TyTuple, Fields: fields}})
}

func (r *Resolver) resolveBinary(e ast.Expr) pl.ExprId {
	left := r.resolveExpr(e.Binary.Left)
	right := r.resolveExpr(e.Binary.Right)
	r.checkExpectedScalar(left, e.Binary.Left.Span)
	r.checkExpectedScalar(right, e.Binary.Right.Span)
	if folded, ok := foldConstant(r.prog, e.Binary.Op, left, right); ok {
		return r.intern(e, folded)
	}
	return r.intern(e, pl.Expr{Kind: pl.EkBinary,
		Binary: &pl.BinaryExpr{Op: e.Binary.Op, Left: left, Right: right}, Type: binaryResultType(e.Binary.Op, r.prog, left, right)})
}

// checkExpectedRelation raises KindExpectedRelation when id resolved to a
// bare scalar literal in a position (`from`'s or `join`'s first argument)
// that names a relation (§4.4, §7).
func (r *Resolver) checkExpectedRelation(id pl.ExprId, sp span.Span) {
	if r.prog.Get(id).Kind == pl.EkLiteral {
		r.diags.Errorf(diagnostic.KindExpectedRelation, sp, "")
	}
}

// checkExpectedScalar raises KindExpectedScalar when id resolved to a whole
// relation (a TransformCall) used where a scalar value is expected, e.g. an
// operand of a binary operator (§4.4, §7).
func (r *Resolver) checkExpectedScalar(id pl.ExprId, sp span.Span) {
	if r.prog.Get(id).Kind == pl.EkTransformCall {
		r.diags.Errorf(diagnostic.KindExpectedScalar, sp, "")
	}
}

func binaryResultType(op ast.BinaryOp, prog *pl.Program, left, right pl.ExprId) pl.Type {
	switch op {
	case ast.BinAnd, ast.BinOr, ast.BinEq, ast.BinNe, ast.BinLe, ast.BinGe, ast.BinLt, ast.BinGt, ast.BinRegexMatch:
		return pl.Type{Kind: pl.TyBool}
	}
	lt := prog.Get(left).Type
	rt := prog.Get(right).Type
	if lt.Kind == pl.TyFloat || rt.Kind == pl.TyFloat {
		return pl.Type{Kind: pl.TyFloat}
	}
	if lt.Kind == pl.TyInt && rt.Kind == pl.TyInt {
		return pl.Type{Kind: pl.TyInt}
	}
	return pl.Infer()
}

// resolveCall specialises a call into a pl.TransformCall when Func is a
// bare name matching transformNames (§4.4); otherwise it resolves as an
// ordinary (possibly partial) function call via applyCall.
func (r *Resolver) resolveCall(e ast.Expr) pl.ExprId {
	if e.Call.Func.Kind == ast.EkIdent && len(e.Call.Func.Ident.Path) == 1 {
		if kind, ok := transformNames[e.Call.Func.Ident.Path[0]]; ok {
			return r.resolveTransform(e, kind)
		}
	}
	fn := r.resolveExpr(e.Call.Func)
	var args []pl.ExprId
	for _, a := range e.Call.Args {
		args = append(args, r.resolveExpr(a))
	}
	return r.applyCall(e, fn, args, e.Call.NamedArgs)
}

// resolveFuncDef resolves a function literal into a pl.Closure (§4.4). Each
// parameter gets a synthetic placeholder Ident pushed into a fresh, innermost
// scope layer so the body resolves references to it the normal way; the
// placeholder's own ExprId is recorded in Closure.ParamSlots so applyClosure
// can later find and substitute it. Default value expressions are resolved
// in the *enclosing* scope, after the body, since a default is evaluated at
// the call site rather than closed over the function's own parameters.
func (r *Resolver) resolveFuncDef(e ast.Expr) pl.ExprId {
	params := e.FuncDef.Params
	slots := make([]pl.ExprId, len(params))
	slotModule := module.NewModule("", nil)
	parentScope := r.scope
	r.scope = r.scope.Push(slotModule)
	for i, p := range params {
		slot := r.prog.Alloc(pl.Expr{
			Node:  e.Id,
			Kind:  pl.EkIdent,
			Ident: &pl.Ident{Path: []string{p.Name}, Target: pl.NoTarget},
			Type:  pl.Infer(),
		})
		slots[i] = slot
		slotModule.Insert(p.Name, &module.Decl{Kind: module.DkExpr, ExprId: ast.NodeId(slot)})
	}
	body := r.resolveExpr(e.FuncDef.Body)
	r.scope = parentScope

	partial := make([]pl.ExprId, len(params))
	defaults := make([]pl.ExprId, len(params))
	for i, p := range params {
		partial[i] = pl.NoTarget
		if p.Default != nil {
			defaults[i] = r.resolveExpr(*p.Default)
		} else {
			defaults[i] = pl.NoTarget
		}
	}

	return r.intern(e, pl.Expr{Kind: pl.EkFuncDef, Closure: &pl.Closure{
		Params: params, Body: body,
		Partial: partial, ParamSlots: slots, ParamDefaults: defaults,
	}, Type: pl.Type{Kind: pl.TyFunc}})
}

// closureExpr follows fn through any Ident indirection (a name bound to a
// function value via `let`) looking for the underlying pl.EkFuncDef node; it
// returns nil for anything else (a stdlib builtin, an unresolved name, or a
// non-function value), since currying/defaults only apply to closures this
// resolver itself produced.
func (r *Resolver) closureExpr(id pl.ExprId) *pl.Expr {
	seen := map[pl.ExprId]bool{}
	for {
		if id == pl.NoTarget || int(id) >= len(r.prog.Exprs) || seen[id] {
			return nil
		}
		seen[id] = true
		n := r.prog.Get(id)
		if n.Kind == pl.EkFuncDef {
			return n
		}
		if n.Kind == pl.EkIdent {
			id = n.Ident.Target
			continue
		}
		return nil
	}
}

// applyCall resolves a call to fn with the given positional and named
// arguments (§4.4): a call to a resolver-owned Closure goes through
// applyClosure (arity checking, currying, named-argument binding, default
// substitution, and full-application inlining); anything else (a stdlib
// builtin, or a name that failed to resolve) falls back to the pre-currying
// behaviour of appending named arguments positionally, since there is no
// Closure.Params to match them against by name.
func (r *Resolver) applyCall(e ast.Expr, fn pl.ExprId, args []pl.ExprId, namedArgs []ast.NamedArg) pl.ExprId {
	closure := r.closureExpr(fn)
	if closure == nil {
		for _, na := range namedArgs {
			args = append(args, r.resolveExpr(na.Value))
		}
		return r.intern(e, pl.Expr{Kind: pl.EkFuncCall, FuncCall: &pl.FuncCall{Func: fn, Args: args}, Type: pl.Infer()})
	}
	return r.applyClosure(e, closure.Closure, args, namedArgs)
}

// calleeName extracts the surface name of a call's callee for diagnostics,
// e.g. "add" from `add 1 2` or a piped `add 1`; "" if the callee isn't a
// bare/dotted identifier.
func calleeName(e ast.Expr) string {
	switch {
	case e.Kind == ast.EkCall && e.Call.Func.Kind == ast.EkIdent:
		return joinPath(e.Call.Func.Ident.Path)
	case e.Kind == ast.EkIdent:
		return joinPath(e.Ident.Path)
	}
	return ""
}

// paramIndex returns the index of the parameter named name, or -1.
func paramIndex(params []ast.Param, name string) int {
	for i, p := range params {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// applyClosure binds args/namedArgs against cl.Params (§4.4): positional
// arguments fill the leftmost still-unbound parameter slots in order, named
// arguments bind directly to the same-named parameter wherever its slot
// falls, and any parameter left unbound after that is given its default
// value, if it has one. If every parameter ends up bound, the call is fully
// applied: applyClosure substitutes the bound values into a copy of the
// closure's body (the "reduce" step) and returns that substituted
// expression directly rather than emitting a pl.FuncCall, so lowering never
// has to know this function existed. If parameters remain unbound, the call
// is a curry: applyClosure returns a new, more-applied Closure value instead.
func (r *Resolver) applyClosure(e ast.Expr, cl *pl.Closure, args []pl.ExprId, namedArgs []ast.NamedArg) pl.ExprId {
	params := cl.Params
	bound := append([]pl.ExprId{}, cl.Partial...)
	have := make([]bool, len(params))
	for i, v := range bound {
		have[i] = v != pl.NoTarget
	}

	pos := 0
	for _, a := range args {
		for pos < len(params) && have[pos] {
			pos++
		}
		if pos >= len(params) {
			r.diags.Errorf(diagnostic.KindWrongArity, e.Span, "", calleeName(e), len(params), len(cl.Partial)+len(args))
			break
		}
		bound[pos] = a
		have[pos] = true
		pos++
	}
	for _, na := range namedArgs {
		idx := paramIndex(params, na.Name)
		val := r.resolveExpr(na.Value)
		if idx < 0 {
			r.diags.Errorf(diagnostic.KindUnknownName, na.Value.Span, "", na.Name)
			continue
		}
		bound[idx] = val
		have[idx] = true
	}

	allBound := true
	for i := range params {
		if have[i] {
			continue
		}
		if cl.ParamDefaults[i] != pl.NoTarget {
			bound[i] = cl.ParamDefaults[i]
			have[i] = true
			continue
		}
		allBound = false
	}

	if !allBound {
		r.log.Debugf("resolver: curry %d/%d params bound", countBound(have), len(params))
		return r.intern(e, pl.Expr{Kind: pl.EkFuncDef, Closure: &pl.Closure{
			Params: cl.Params, Body: cl.Body,
			Partial: bound, ParamSlots: cl.ParamSlots, ParamDefaults: cl.ParamDefaults,
		}, Type: pl.Type{Kind: pl.TyFunc}})
	}

	r.log.Debugf("resolver: reduce call, substituting %d params into body", len(params))
	subst := make(map[pl.ExprId]pl.ExprId, len(params))
	for i, slot := range cl.ParamSlots {
		subst[slot] = bound[i]
	}
	return r.substitute(cl.Body, subst)
}

func countBound(have []bool) int {
	n := 0
	for _, b := range have {
		if b {
			n++
		}
	}
	return n
}

// substitute clones the subtree rooted at id, replacing any reference to a
// key of subst with its mapped value, and returns id unchanged if nothing
// under it needed replacing. This is applyClosure's "inline the function
// body with substituted arguments" step (§4.4): a fully-applied user
// function call never reaches lowering as a pl.FuncCall, it's replaced by
// its own (substituted) body.
func (r *Resolver) substitute(id pl.ExprId, subst map[pl.ExprId]pl.ExprId) pl.ExprId {
	n := *r.prog.Get(id)
	// A reference to a parameter is itself an EkIdent node whose Target is
	// the placeholder slot id (set by resolveFuncDef's scope binding), keyed
	// by subst by slot id, not by this ident node's own id.
	if n.Kind == pl.EkIdent {
		if repl, ok := subst[n.Ident.Target]; ok {
			return repl
		}
		return id
	}
	changed := false
	sub := func(child pl.ExprId) pl.ExprId {
		next := r.substitute(child, subst)
		if next != child {
			changed = true
		}
		return next
	}
	switch n.Kind {
	case pl.EkUnary:
		u := *n.Unary
		u.Operand = sub(u.Operand)
		n.Unary = &u
	case pl.EkBinary:
		b := *n.Binary
		b.Left = sub(b.Left)
		b.Right = sub(b.Right)
		n.Binary = &b
	case pl.EkIndirection:
		ind := *n.Indirection
		ind.Base = sub(ind.Base)
		n.Indirection = &ind
	case pl.EkFuncCall:
		fc := *n.FuncCall
		fc.Func = sub(fc.Func)
		args := make([]pl.ExprId, len(fc.Args))
		for i, a := range fc.Args {
			args[i] = sub(a)
		}
		fc.Args = args
		n.FuncCall = &fc
	case pl.EkCase:
		c := *n.Case
		arms := make([]pl.CaseArm, len(c.Arms))
		for i, arm := range c.Arms {
			arms[i] = pl.CaseArm{Cond: sub(arm.Cond), Value: sub(arm.Value)}
		}
		c.Arms = arms
		n.Case = &c
	case pl.EkInterpString:
		is := *n.InterpString
		parts := make([]pl.StringPart, len(is.Parts))
		for i, p := range is.Parts {
			if !p.Literal {
				p.Expr = sub(p.Expr)
			}
			parts[i] = p
		}
		is.Parts = parts
		n.InterpString = &is
	case pl.EkTuple:
		t := *n.Tuple
		items := make([]pl.TupleItem, len(t.Items))
		for i, it := range t.Items {
			it.Value = sub(it.Value)
			items[i] = it
		}
		t.Items = items
		n.Tuple = &t
	case pl.EkArray:
		arr := make([]pl.ExprId, len(n.Array))
		for i, a := range n.Array {
			arr[i] = sub(a)
		}
		n.Array = arr
	case pl.EkFuncDef:
		// A nested function literal substitutes only within its own body;
		// its own ParamSlots are distinct synthetic ids, so there's no risk
		// of capturing an outer parameter of the same name.
		c := *n.Closure
		c.Body = sub(c.Body)
		n.Closure = &c
	}
	if !changed {
		return id
	}
	return r.prog.Alloc(n)
}

// resolveTransform specialises one relational transform call. The first
// positional argument not otherwise claimed is treated as the transform's
// "input" relation when resolving a pipeline (the caller, resolvePipeline,
// instead threads the previous stage in as Input and passes only the
// transform's own arguments here).
func (r *Resolver) resolveTransform(e ast.Expr, kind pl.TransformKind) pl.ExprId {
	tc := &pl.TransformCall{Kind: kind}
	args := append([]ast.Expr{}, e.Call.Args...)
	switch kind {
	case pl.TrFrom:
		if len(args) > 0 {
			// The table name need not already be declared anywhere (it names
			// an external relation, not a PRQL value), so resolve it the same
			// tolerant way as a column reference.
			was := r.colCtx
			r.colCtx = true
			tc.Input = r.resolveExpr(args[0])
			r.colCtx = was
			r.checkExpectedRelation(tc.Input, args[0].Span)
		}
	case pl.TrSelect, pl.TrDerive:
		for _, a := range args {
			tc.Columns = append(tc.Columns, r.resolveTupleColumns(a)...)
		}
	case pl.TrFilter:
		if len(args) > 0 {
			was := r.colCtx
			r.colCtx = true
			tc.Predicate = r.resolveExpr(args[0])
			r.colCtx = was
		}
	case pl.TrTake:
		if len(args) > 0 {
			tc.Range = rangeOf(args[0])
		}
	case pl.TrSort:
		for _, a := range args {
			tc.SortKeys = append(tc.SortKeys, r.resolveSortKeys(a)...)
		}
	case pl.TrJoin:
		if len(args) > 0 {
			was := r.colCtx
			r.colCtx = true
			tc.JoinWith = r.resolveExpr(args[0])
			r.colCtx = was
			r.checkExpectedRelation(tc.JoinWith, args[0].Span)
		}
		if len(args) > 1 {
			wasJoin, wasCol := r.inJoin, r.colCtx
			r.inJoin, r.colCtx = true, true
			tc.JoinCond = r.resolveExpr(args[1])
			r.inJoin, r.colCtx = wasJoin, wasCol
		}
		for _, na := range e.Call.NamedArgs {
			if na.Name == "side" && na.Value.Kind == ast.EkIdent && len(na.Value.Ident.Path) == 1 {
				tc.JoinSide = joinSideOf(na.Value.Ident.Path[0])
			}
		}
	case pl.TrGroup:
		if len(args) > 0 {
			tc.By = r.resolveTupleColumns(args[0])
		}
		if len(args) > 1 {
			tc.Pipe = append(tc.Pipe, r.resolveExpr(args[1]))
		}
	case pl.TrAggregate:
		for _, a := range args {
			tc.Columns = append(tc.Columns, r.resolveTupleColumns(a)...)
		}
	case pl.TrWindow:
		for _, a := range args {
			tc.Pipe = append(tc.Pipe, r.resolveExpr(a))
		}
		for _, na := range e.Call.NamedArgs {
			switch na.Name {
			case "rows", "range":
				tc.Frame = &pl.WindowFrame{Rows: na.Name == "rows"}
				if na.Value.Kind == ast.EkRange {
					if na.Value.Range.Start != nil {
						if s, ok := intLiteral(na.Value.Range.Start); ok {
							tc.Frame.Start = &s
						}
					}
					if na.Value.Range.End != nil {
						if en, ok := intLiteral(na.Value.Range.End); ok {
							tc.Frame.End = &en
						}
					}
				}
			}
		}
	case pl.TrAppend, pl.TrUnion, pl.TrIntersect, pl.TrExcept:
		if len(args) > 0 {
			was := r.colCtx
			r.colCtx = true
			tc.Other = r.resolveExpr(args[0])
			r.colCtx = was
		}
	case pl.TrLoop:
		if len(args) > 0 {
			tc.Pipe = append(tc.Pipe, r.resolveExpr(args[0]))
		}
	case pl.TrFromText:
		tc.FromTextFormat = "csv"
		for _, na := range e.Call.NamedArgs {
			if na.Name == "format" && na.Value.Kind == ast.EkIdent && len(na.Value.Ident.Path) == 1 {
				tc.FromTextFormat = na.Value.Ident.Path[0]
			}
		}
		if len(args) > 0 {
			tc.Input = r.resolveExpr(args[0])
		}
	}
	return r.intern(e, pl.Expr{Kind: pl.EkTransformCall, TransformCall: tc, Type: pl.Type{Kind: pl.TyRelation}})
}

// resolveTupleColumns resolves a.. which may be a tuple literal `{a, b}` or
// a single bare column expression `a` — both are valid as the sole argument
// to select/derive/aggregate (§3.1 "single item brace elision").
func (r *Resolver) resolveTupleColumns(a ast.Expr) []pl.ExprId {
	was := r.colCtx
	r.colCtx = true
	defer func() { r.colCtx = was }()
	if a.Kind == ast.EkTuple {
		var out []pl.ExprId
		seen := map[string]bool{}
		for _, item := range a.Tuple.Items {
			id := r.resolveExpr(item.Value)
			if item.Name != "" {
				r.prog.Get(id).Alias = item.Name
			}
			if name := columnOutputName(r.prog, id, item.Name); name != "" {
				if seen[name] {
					r.diags.Errorf(diagnostic.KindDuplicateColumn, item.Value.Span, "", name)
				}
				seen[name] = true
			}
			out = append(out, id)
		}
		return out
	}
	return []pl.ExprId{r.resolveExpr(a)}
}

// columnOutputName returns the name a resolved column will be projected
// under — its explicit alias, or a bare ident's own name — used to detect
// duplicate column names inside one select/derive/aggregate/group tuple
// (§4.4, §7's "forbidden duplicate column in select"). Returns "" when the
// column has neither (an unaliased non-ident expression), which this check
// can't meaningfully compare against anything else.
func columnOutputName(prog *pl.Program, id pl.ExprId, alias string) string {
	if alias != "" {
		return alias
	}
	n := prog.Get(id)
	if n.Kind == pl.EkIdent && len(n.Ident.Path) > 0 {
		return n.Ident.Path[len(n.Ident.Path)-1]
	}
	return ""
}

func (r *Resolver) resolveSortKeys(a ast.Expr) []pl.SortKey {
	was := r.colCtx
	r.colCtx = true
	defer func() { r.colCtx = was }()
	mk := func(col ast.Expr) pl.SortKey {
		desc := false
		if col.Kind == ast.EkUnary && col.Unary.Op == ast.UnaryNeg {
			desc = true
			col = col.Unary.Operand
		}
		return pl.SortKey{Column: r.resolveExpr(col), Descending: desc}
	}
	if a.Kind == ast.EkTuple {
		var out []pl.SortKey
		for _, item := range a.Tuple.Items {
			out = append(out, mk(item.Value))
		}
		return out
	}
	return []pl.SortKey{mk(a)}
}

func intLiteral(e *ast.Expr) (int, bool) {
	if e.Kind != ast.EkLiteral || e.Literal.Kind != ast.LitInt {
		return 0, false
	}
	return int(e.Literal.Int), true
}

func rangeOf(a ast.Expr) *ast.RangeExpr {
	if a.Kind == ast.EkRange {
		return a.Range
	}
	return &ast.RangeExpr{End: &a}
}

func joinSideOf(name string) pl.JoinSide {
	switch name {
	case "left":
		return pl.JoinLeft
	case "right":
		return pl.JoinRight
	case "full":
		return pl.JoinFull
	default:
		return pl.JoinInner
	}
}

// resolvePipeline threads each stage's relation through as the next
// transform's Input, producing a chain of TransformCall nodes whose Lineage
// is computed by propagateLineage (§4.4 "lineage propagation").
func (r *Resolver) resolvePipeline(e ast.Expr) pl.ExprId {
	var cur pl.ExprId
	have := false
	for _, stage := range e.Pipeline.Stages {
		if stage.Kind == ast.EkCall && stage.Call.Func.Kind == ast.EkIdent && len(stage.Call.Func.Ident.Path) == 1 {
			if kind, ok := transformNames[stage.Call.Func.Ident.Path[0]]; ok && kind != pl.TrFrom {
				id := r.resolveTransform(stage, kind)
				tc := r.prog.Get(id).TransformCall
				if have {
					tc.Input = cur
				}
				tc.Lineage = propagateLineage(r.prog, tc, cur, have)
				cur, have = id, true
				continue
			}
		}
		// A scalar stage that isn't a recognized relational transform is a
		// function application: `x | f args` desugars to `f args x`, the
		// piped value slotted in as the *last* positional argument (§4.2
		// "pipeline rules"). Point-free stages (`x | text.lower`, no
		// explicit args at all) go through the same path since a bare
		// identifier naming a stdlib scalar function is just a call with
		// zero explicit arguments.
		if have && (stage.Kind == ast.EkCall || stage.Kind == ast.EkIdent) {
			id := r.resolvePipedApply(stage, cur)
			cur, have = id, true
			continue
		}
		id := r.resolveExpr(stage)
		if have && r.prog.Get(id).Kind == pl.EkTransformCall {
			r.prog.Get(id).TransformCall.Input = cur
		}
		cur, have = id, true
	}
	return cur
}

// resolvePipedApply resolves stage as a function call with piped appended
// after its own explicit positional and named arguments, i.e. as the last
// positional slot (§4.2). stage is either a bare identifier (zero explicit
// args) or an ordinary (non-transform) call.
func (r *Resolver) resolvePipedApply(stage ast.Expr, piped pl.ExprId) pl.ExprId {
	switch stage.Kind {
	case ast.EkIdent:
		fn := r.resolveExpr(stage)
		return r.applyCall(stage, fn, []pl.ExprId{piped}, nil)
	case ast.EkCall:
		fn := r.resolveExpr(stage.Call.Func)
		var args []pl.ExprId
		for _, a := range stage.Call.Args {
			args = append(args, r.resolveExpr(a))
		}
		args = append(args, piped)
		return r.applyCall(stage, fn, args, stage.Call.NamedArgs)
	default:
		return r.resolveExpr(stage)
	}
}

// propagateLineage derives a TransformCall's output Lineage from its input's
// lineage, per transform kind (§3.6 "lineage propagation"). select/derive
// and aggregate/group reshape the column set; filter/sort/take/join/window
// pass the input's columns through unchanged (joins additionally append the
// joined relation's columns, left as a lowering concern once both sides'
// concrete schemas are known).
func propagateLineage(prog *pl.Program, tc *pl.TransformCall, input pl.ExprId, haveInput bool) pl.Lineage {
	var base pl.Lineage
	if haveInput {
		if in := prog.Get(input); in.Kind == pl.EkTransformCall {
			base = in.TransformCall.Lineage
		}
	}
	switch tc.Kind {
	case pl.TrSelect, pl.TrAggregate:
		lin := pl.Lineage{}
		for _, col := range tc.Columns {
			lin.Columns = append(lin.Columns, pl.LineageColumn{SourceId: ast.NodeId(col), Computed: true})
		}
		return lin
	case pl.TrDerive:
		lin := base
		for _, col := range tc.Columns {
			lin.Columns = append(lin.Columns, pl.LineageColumn{SourceId: ast.NodeId(col), Computed: true})
		}
		return lin
	case pl.TrGroup:
		lin := pl.Lineage{}
		for _, col := range tc.By {
			lin.Columns = append(lin.Columns, pl.LineageColumn{SourceId: ast.NodeId(col)})
		}
		return lin
	default:
		return base
	}
}
