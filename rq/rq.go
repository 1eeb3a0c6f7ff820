// Package rq defines the relational IR consumed by the SQL backend (§3.7).
// Every expression is keyed by a dense CId (column id) and every relation by
// a TId (table id); RQ no longer has names in scope, only these ids and the
// Relation graph lowering built from PL (§4.5).
package rq

import (
	"encoding/json"

	"github.com/prqlc/prqlc-go/ast"
)

// CId is a column id, unique within one compilation (§3.7, §9).
type CId uint32

// TId is a relation (table/CTE) id, unique within one compilation.
type TId uint32

// CIdAllocator issues fresh column ids.
type CIdAllocator struct{ next CId }

// Next returns a never-before-issued CId.
func (a *CIdAllocator) Next() CId {
	id := a.next
	a.next++
	return id
}

// TIdAllocator issues fresh relation ids.
type TIdAllocator struct{ next TId }

// Next returns a never-before-issued TId.
func (a *TIdAllocator) Next() TId {
	id := a.next
	a.next++
	return id
}

// ExprKind discriminates an RQ scalar expression.
type ExprKind int

const (
	EkColumn ExprKind = iota // reference to a CId produced upstream
	EkColumnName             // reference to a base-table column known only by name (no upstream CId yet)
	EkLiteral
	EkInterpString
	EkUnary
	EkBinary
	EkFuncCall // a resolved stdlib scalar fn, e.g. std.math.abs, or an s-string splice
	EkCase
	EkParam // a compile-time parameter hole (future placeholder binding)
)

// Expr is one RQ scalar expression node.
type Expr struct {
	Kind ExprKind

	Column     CId
	ColumnName string
	Literal    *ast.Literal

	SQL     bool // true if InterpString is an s-string (raw SQL) rather than f-string
	Parts   []StringPart

	UnaryOp  ast.UnaryOp
	Operand  *Expr

	BinaryOp    ast.BinaryOp
	Left, Right *Expr

	// EkFuncCall
	FuncName string
	Args     []Expr

	// EkCase
	Arms []CaseArm
}

// StringPart mirrors pl.StringPart with the embedded expression fully
// lowered (so sqlgen can splice it directly into the rendered literal).
type StringPart struct {
	Literal bool
	Text    string
	Expr    *Expr
}

// CaseArm is one lowered case arm; a nil Cond marks the default/else arm.
type CaseArm struct {
	Cond  *Expr
	Value Expr
}

// Column is one output column of a Relation: the CId other nodes reference
// it by, plus the expression that computes it and its suggested SQL alias.
type Column struct {
	Id    CId
	Expr  Expr
	Alias string // "" lets sqlgen synthesize one if the dialect requires it
}

// RelationKind discriminates a Relation's source (§3.7).
type RelationKind int

const (
	RkTable RelationKind = iota // a base table/view, identified by Name
	RkTransform
	RkLiteral // an inline row set, from a relation literal or from_text
	RkRef     // a reference to another relation (a `let`-bound name), materialised under Name
)

// TransformKind enumerates the lowered relational operators (§3.7), a closed
// set the SQL backend's anchoring pass switches over directly.
type TransformKind int

const (
	TkSelect TransformKind = iota
	TkFilter
	TkSort
	TkTake
	TkJoin
	TkAggregate
	TkAppend
	TkLoop
	TkSetOp
)

// SetOp names which set operator a TkSetOp transform renders as; it mirrors
// dialect.SetOp without importing the dialect package from rq (§9 keeps the
// IR layers free of backend dependencies).
type SetOp int

const (
	SetUnion SetOp = iota
	SetIntersect
	SetExcept
)

// JoinKind mirrors pl.JoinSide.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
)

// Frame is a lowered window/take frame bound; both ends optional.
type Frame struct {
	Rows  bool
	Start *int
	End   *int
}

// SortKey is one lowered sort key.
type SortKey struct {
	Column     CId
	Descending bool
}

// Transform is one lowered relational operator node in a Relation's
// pipeline (§3.7); exactly the fields relevant to Kind are populated.
type Transform struct {
	Kind TransformKind

	// select/aggregate
	Columns []Column
	GroupBy []CId

	// filter
	Predicate Expr

	// sort
	SortKeys []SortKey

	// take
	Frame Frame

	// join
	JoinKind JoinKind
	JoinWith TId
	JoinCond Expr

	// append/loop/set-op
	Other TId
	SetOp SetOp // TkSetOp only

	// partition/order fields for window-like transforms; the lowering pass
	// does not set them, so they are always empty.
	PartitionBy []CId
	OrderBy     []SortKey
}

// Relation is one node of the RQ relation graph: either a base table or a
// pipeline of Transforms over an upstream relation (§3.7).
type Relation struct {
	Id   TId
	Kind RelationKind

	// RkTable
	Name string

	// RkRef: the let-bound relation this one stands in for (§4.3)
	Ref TId

	// RkTransform
	From       TId
	Transforms []Transform

	// RkLiteral: ColumnNames[i] names the i'th value of every entry in Rows.
	ColumnNames []string
	Rows        [][]Expr

	// Columns is this relation's final output column list, populated once
	// lowering finishes processing it (used by sqlgen's anchoring pass to
	// know what a SELECT needs to project, §4.6).
	Columns []Column
}

// Query is the complete lowered program: every Relation reachable from the
// query's result, keyed densely by TId, plus the id of the result relation
// (§3.7, mirrors pl.Program's arena convention).
type Query struct {
	Relations []Relation
	Result    TId
}

// Get returns the Relation stored at id.
func (q *Query) Get(id TId) *Relation { return &q.Relations[id] }

// Alloc appends rel to the arena, assigning it a fresh TId.
func (q *Query) Alloc(rel Relation) TId {
	id := TId(len(q.Relations))
	rel.Id = id
	q.Relations = append(q.Relations, rel)
	return id
}

// ToJSON serialises the query for external tooling (§6.4), mirroring
// pl.Program.ToJSON.
func (q *Query) ToJSON() ([]byte, error) {
	return json.Marshal(q)
}

// QueryFromJSON deserialises a Query previously produced by ToJSON.
func QueryFromJSON(data []byte) (*Query, error) {
	var q Query
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, err
	}
	return &q, nil
}
