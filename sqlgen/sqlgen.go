// Package sqlgen turns an rq.Query into a SQL string (§4.6): it anchors
// every CId to a materialisation site and atomises the pipeline into a
// chain of SELECTs, closing an atom into a CTE whenever the next transform
// can't be expressed in the same SELECT.
package sqlgen

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/prqlc/prqlc-go/dialect"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/rq"
	"github.com/prqlc/prqlc-go/span"
)

// Options controls the rendered SQL's presentation (§6.2 subset consumed by
// the backend; the rest of prql.Options governs only the header/target).
type Options struct {
	Format           bool // pretty-print with indentation; false = dense one-liner
	SignatureComment bool // append "-- Generated by prqlc-go" trailer
}

// signature is the trailer appended when Options.SignatureComment is set,
// mirroring the real compiler's versioned comment (§4.6 "Formatting").
const signature = "-- Generated by prqlc-go"

// Generate lowers an rq.Query to a SQL string targeting d. Diagnostics
// (unsupported dialect features) accumulate into diags; the caller is
// responsible for checking diags.HasErrors() before trusting the output,
// matching the public API's "empty output on error" contract (§7).
func Generate(q *rq.Query, d dialect.Dialect, opts Options, diags *diagnostic.Bag) string {
	g := &generator{q: q, dia: d, diags: diags, log: logrus.StandardLogger()}
	final := g.compileRelation(q.Result)
	stmt := g.finish(final)
	if diags.HasErrors() {
		return ""
	}
	return stmt.render(d, opts)
}

// cteEntry is one closed atom, already rendered, bound to an alias usable
// as a FROM source by later atoms.
type cteEntry struct {
	alias     string
	stmt      *statement
	recursive bool
}

// generator carries the state threaded through one compileRelation call:
// the accumulated CTE list (in topological emission order) and a counter
// for synthesizing `table_N` aliases (matching E6 / E3's `table_0`).
type generator struct {
	q     *rq.Query
	dia   dialect.Dialect
	diags *diagnostic.Bag
	log   *logrus.Logger

	ctes    []cteEntry
	seq     int
	refCTEs map[rq.TId]string // memoises RkRef materialisation, so a `let` name used twice shares one CTE
}

func (g *generator) newAlias() string {
	a := fmt.Sprintf("table_%d", g.seq)
	g.seq++
	return a
}

// materializeRef compiles and materialises the relation a `let`-bound name
// (rq.RkRef) points to, reusing the same CTE if the name is referenced more
// than once rather than emitting duplicate copies of its pipeline.
func (g *generator) materializeRef(refTid rq.TId) string {
	if g.refCTEs == nil {
		g.refCTEs = map[rq.TId]string{}
	}
	if alias, ok := g.refCTEs[refTid]; ok {
		return alias
	}
	alias := g.materialize(g.compileRelation(refTid))
	g.refCTEs[refTid] = alias
	return alias
}

// compileRelation renders the relation chain ending at tid into a single
// *statement (possibly referencing CTEs already pushed onto g.ctes), and
// returns it; the caller decides whether to inline it, alias it into a new
// CTE, or (at the top) hand it to finish.
func (g *generator) compileRelation(tid rq.TId) *statement {
	rel := g.q.Get(tid)
	if rel.Kind == rq.RkTable {
		return &statement{from: g.dia.QuoteIdent(rel.Name)}
	}
	if rel.Kind == rq.RkRef {
		return &statement{from: g.materializeRef(rel.Ref)}
	}

	base, chain := g.chain(tid)
	baseRel := g.q.Get(base)
	var atom *statement
	if baseRel.Kind == rq.RkRef {
		atom = &statement{from: g.materializeRef(baseRel.Ref)}
	} else {
		atom = &statement{from: g.dia.QuoteIdent(baseRel.Name)}
	}

	for _, tid := range chain {
		rel := g.q.Get(tid)
		if len(rel.Transforms) == 0 {
			continue
		}
		t := rel.Transforms[0]
		atom = g.mergeTransform(atom, t)
	}
	return atom
}

// flushAtom closes atom into a CTE, returning a fresh empty statement
// sourced from its alias; the caller rebinds its local atom variable to the
// result rather than mutating through the old pointer, since the old atom
// is retained by reference inside the just-pushed cteEntry.
func (g *generator) flushAtom(atom *statement) *statement {
	alias := g.newAlias()
	g.log.Tracef("sqlgen: closing atom as %s", alias)
	g.ctes = append(g.ctes, cteEntry{alias: alias, stmt: atom, recursive: atom.recursive != nil})
	// The new atom's bare column names are exactly the aliases the closed
	// atom projected, so its CId->name bindings carry forward unchanged;
	// setColumns below assigns a fresh map rather than mutating this one.
	return &statement{from: alias, aliasOf: atom.aliasOf}
}

// chain walks back from tid via From until it reaches the base table,
// returning that base's TId and the intermediate transform-relation ids in
// forward (base-to-tid) order.
func (g *generator) chain(tid rq.TId) (rq.TId, []rq.TId) {
	var ids []rq.TId
	cur := tid
	for {
		rel := g.q.Get(cur)
		if rel.Kind == rq.RkTable || rel.Kind == rq.RkRef {
			for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
				ids[i], ids[j] = ids[j], ids[i]
			}
			return cur, ids
		}
		ids = append(ids, cur)
		cur = rel.From
	}
}

// anchorFor returns a CId->SQL-reference resolver scoped to atom: a bare
// column name if the atom hasn't yet rebound that CId to an alias, else the
// alias itself (anchoring, §4.6 "Column anchoring").
func (g *generator) anchorFor(atom *statement) func(rq.CId) string {
	return func(cid rq.CId) string {
		if alias, ok := atom.aliasOf[cid]; ok {
			return g.dia.QuoteIdent(alias)
		}
		return fmt.Sprintf("<col%d>", cid)
	}
}

// mergeTransform folds one RQ transform into atom, flushing atom into a new
// CTE-sourced statement first when the transform can't share a SELECT with
// what's already accumulated (§4.6 "Atomisation"), and returns whichever
// statement subsequent merges should operate on.
func (g *generator) mergeTransform(atom *statement, t rq.Transform) *statement {
	anchor := g.anchorFor(atom)
	switch t.Kind {
	case rq.TkSelect:
		if atom.limit != nil {
			atom = g.flushAtom(atom)
			anchor = g.anchorFor(atom)
		}
		atom.setColumns(g.renderColumns(t.Columns, anchor))
	case rq.TkFilter:
		if atom.limit != nil {
			atom = g.flushAtom(atom)
			anchor = g.anchorFor(atom)
		}
		cond := g.renderExpr(t.Predicate, anchor)
		if len(atom.groupBy) > 0 {
			atom.having = append(atom.having, cond)
		} else {
			atom.where = append(atom.where, cond)
		}
	case rq.TkSort:
		if atom.limit != nil {
			atom = g.flushAtom(atom)
			anchor = g.anchorFor(atom)
		}
		atom.orderBy = g.renderSortKeys(t.SortKeys, anchor)
	case rq.TkTake:
		if atom.limit != nil {
			atom = g.flushAtom(atom)
		}
		atom.limit, atom.offset = takeBounds(t.Frame)
	case rq.TkAggregate:
		if len(atom.groupBy) > 0 || atom.limit != nil {
			atom = g.flushAtom(atom)
			anchor = g.anchorFor(atom)
		}
		atom.setColumns(g.renderColumns(t.Columns, anchor))
		for _, gid := range t.GroupBy {
			atom.groupBy = append(atom.groupBy, anchor(gid))
		}
	case rq.TkJoin:
		if atom.limit != nil || len(atom.groupBy) > 0 {
			atom = g.flushAtom(atom)
			anchor = g.anchorFor(atom)
		}
		withStmt := g.compileRelation(t.JoinWith)
		withSource := g.materialize(withStmt)
		cond := g.renderExpr(t.JoinCond, anchor)
		atom.joins = append(atom.joins, joinClause{kind: joinKeyword(t.JoinKind), source: withSource, cond: cond})
	case rq.TkAppend:
		otherStmt := g.compileRelation(t.Other)
		left := g.materialize(atom)
		right := g.materialize(otherStmt)
		atom = &statement{raw: fmt.Sprintf("SELECT * FROM %s %s SELECT * FROM %s", left, g.dia.SetOperator(dialect.SetUnionAll), right)}
	case rq.TkSetOp:
		otherStmt := g.compileRelation(t.Other)
		left := g.materialize(atom)
		right := g.materialize(otherStmt)
		atom = &statement{raw: fmt.Sprintf("SELECT * FROM %s %s SELECT * FROM %s", left, g.dia.SetOperator(setOpOf(t.SetOp)), right)}
	case rq.TkLoop:
		if !g.dia.Capabilities().RecursiveCTE {
			g.diags.Errorf(diagnostic.KindUnsupportedFeature, span.Span{}, "", g.dia.Name(), "loop (WITH RECURSIVE)")
		}
		seedAlias := g.materialize(atom)
		bodyStmt := g.compileRelation(t.Other)
		bodySQL := g.materialize(bodyStmt)
		atom = &statement{
			raw:       fmt.Sprintf("SELECT * FROM %s", seedAlias),
			recursive: &recursiveUnion{seed: seedAlias, body: bodySQL},
		}
	}
	return atom
}

func takeBounds(f rq.Frame) (*int, *int) {
	if f.Start == nil && f.End == nil {
		return nil, nil
	}
	if f.Start == nil {
		return f.End, nil
	}
	offset := *f.Start - 1
	if f.End == nil {
		return nil, &offset
	}
	limit := *f.End - *f.Start + 1
	return &limit, &offset
}

func setOpOf(op rq.SetOp) dialect.SetOp {
	switch op {
	case rq.SetUnion:
		return dialect.SetUnion
	case rq.SetIntersect:
		return dialect.SetIntersect
	case rq.SetExcept:
		return dialect.SetExcept
	default:
		return dialect.SetUnionAll
	}
}

func joinKeyword(k rq.JoinKind) string {
	switch k {
	case rq.JoinLeft:
		return "LEFT JOIN"
	case rq.JoinRight:
		return "RIGHT JOIN"
	case rq.JoinFull:
		return "FULL JOIN"
	default:
		return "JOIN"
	}
}

// materialize closes stmt into a CTE if it isn't already a bare FROM
// source, returning the name usable in a FROM/JOIN clause. The caller never
// mutates stmt afterwards (TkAppend/TkLoop rebind their local atom variable
// to a brand new statement rather than mutating the one just pushed here).
func (g *generator) materialize(stmt *statement) string {
	if stmt.isBareSource() {
		return stmt.from
	}
	alias := g.newAlias()
	g.ctes = append(g.ctes, cteEntry{alias: alias, stmt: stmt, recursive: stmt.recursive != nil})
	return alias
}

// finish wraps the top-level atom and any accumulated CTEs into the final
// renderable statement tree.
func (g *generator) finish(top *statement) *statement {
	top.ctes = g.ctes
	return top
}

func (g *generator) renderColumns(cols []rq.Column, anchor func(rq.CId) string) []selectItem {
	var out []selectItem
	for _, c := range cols {
		expr := g.renderExpr(c.Expr, anchor)
		alias := c.Alias
		if alias != "" && expr == g.dia.QuoteIdent(alias) {
			// Plain pass-through of an identically-named column: no
			// rename, so an "AS" clause would only add noise.
			alias = ""
		}
		out = append(out, selectItem{expr: expr, alias: alias, cid: c.Id, bindName: c.Alias})
	}
	return out
}

func (g *generator) renderSortKeys(keys []rq.SortKey, anchor func(rq.CId) string) []string {
	var out []string
	for _, k := range keys {
		item := anchor(k.Column)
		if k.Descending {
			item += " DESC"
		}
		out = append(out, item)
	}
	return out
}
