// Package pl defines the resolved, typed pipelined IR produced by the
// resolver (§3.6): every name has become a fully qualified target_id, every
// node (where inference succeeded) carries a Type, and relational pipeline
// stages have been recognised as TransformCall nodes carrying a Lineage.
package pl

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/prqlc/prqlc-go/ast"
)

// TypeKind is PL's type lattice (§3.6): primitives, tuples, arrays, functions,
// relations, and the Infer placeholder used before/when inference cannot
// pin down a concrete type.
type TypeKind int

const (
	TyInfer TypeKind = iota
	TyInt
	TyFloat
	TyBool
	TyString
	TyDate
	TyTime
	TyTimestamp
	TyNull
	TyTuple
	TyArray
	TyFunc
	TyRelation
	TyAny // result of `??`, unions, or other width-losing operations
)

// Type is the recursive type representation; which child fields are
// meaningful depends on Kind (§9 flat-union convention).
type Type struct {
	Kind TypeKind

	// TyTuple
	Fields []TupleField
	// TyArray
	Elem *Type
	// TyFunc
	Params []Type
	Return *Type
	// TyRelation
	Columns []TupleField
	// Nullable marks a type that may also take the value null, orthogonal
	// to Kind (§3.6).
	Nullable bool
}

// TupleField is one named (or positional, Name=="") member of a tuple or
// relation row type.
type TupleField struct {
	Name string
	Type Type
}

// Infer is the shared "not yet known" placeholder type.
func Infer() Type { return Type{Kind: TyInfer} }

// Lineage (§3.6) tracks, per output column of a relation-producing node,
// which input column(s) it derives from — the raw material for dialect
// column-reference rewriting and star-expansion during lowering.
type Lineage struct {
	Columns   []LineageColumn
	InputName string // table alias this lineage is scoped under, if any
}

// LineageColumn is one column of a Lineage: its output name plus the set of
// NodeIds (from upstream TransformCalls or base tables) it was derived from.
type LineageColumn struct {
	Name     string
	SourceId ast.NodeId
	Computed bool // true if derived by an expression rather than a straight passthrough
}

// TransformKind enumerates PRQL's built-in relational transforms (§3.1/§3.6).
type TransformKind int

const (
	TrFrom TransformKind = iota
	TrSelect
	TrDerive
	TrFilter
	TrSort
	TrTake
	TrJoin
	TrGroup
	TrAggregate
	TrWindow
	TrAppend
	TrLoop
	TrUnion
	TrIntersect
	TrExcept
	TrFromText
)

// JoinSide mirrors §4.4's join kinds.
type JoinSide int

const (
	JoinInner JoinSide = iota
	JoinLeft
	JoinRight
	JoinFull
)

// WindowFrame is the optional rows/range bound on a window transform
// (§3.1, mirrors RQ's Frame).
type WindowFrame struct {
	Rows  bool // true for `rows:`, false for `range:`
	Start *int // nil is unbounded
	End   *int
}

// TransformCall is a resolved relational pipeline stage: the AST CallExpr
// node that invoked it, specialised to one of TransformKind with its
// arguments already bound to named roles (§4.4 "transform specialisation").
type TransformCall struct {
	Kind  TransformKind
	Input ExprId // the relation this transform consumes

	// Column-shaping transforms (select/derive/group's by-tuple/aggregate).
	Columns []ExprId

	// filter/take/sort
	Predicate ExprId // filter
	Range     *ast.RangeExpr
	SortKeys  []SortKey

	// join
	JoinSide JoinSide
	JoinWith ExprId
	JoinCond ExprId

	// group/window
	By     []ExprId
	Pipe   []ExprId // the nested pipeline applied per group/window
	Frame  *WindowFrame

	// append/loop's second relation (loop's body is re-run against Input)
	Other ExprId

	// from_text: Input holds the resolved source string literal
	FromTextFormat string // "csv" or "json"

	Lineage Lineage
}

// SortKey is one `{dir}column` entry of a sort transform's argument.
type SortKey struct {
	Column     ExprId
	Descending bool
}

// ExprId indexes into a Program's Exprs table — PL nodes reference each
// other by id rather than by Go pointer (§9 "Arena + dense integer ids").
type ExprId uint32

// NoTarget marks an Ident whose name could not be resolved to a
// declaration (§4.4 diagnostics still fire; this just gives downstream
// passes a safe non-id to check against instead of overloading 0, which is
// a valid id for the arena's first entry).
const NoTarget ExprId = ^ExprId(0)

// ExprKind discriminates the PL Expr sum type. It mirrors ast.ExprKind but
// adds TransformCall and drops the parser-only ErrorExpr.
type ExprKind int

const (
	EkLiteral ExprKind = iota
	EkInterpString
	EkIdent // fully resolved target_id reference
	EkTuple
	EkArray
	EkRange
	EkUnary
	EkBinary
	EkFuncCall // ordinary (non-transform) function call, incl. partial application
	EkFuncDef
	EkCase
	EkIndirection
	EkTransformCall
	EkThis
	EkThat
)

// Ident is a resolved name reference: Target is the ExprId of the
// declaration this name refers to (a let-bound value, a function, a column,
// or a stdlib builtin), resolved once by the resolver and never
// re-resolved by later passes (§4.4).
type Ident struct {
	Path   []string // original surface path, retained for diagnostics
	Target ExprId
}

// FuncCall is a call whose callee the resolver could not reduce to a
// Closure it controls — a stdlib builtin, an annotated user function kept
// opaque for sqlgen to render by name, or a callee that failed to resolve
// at all. A call to a plain user-defined Closure never reaches lowering as
// a FuncCall: applyClosure in the resolver substitutes the bound arguments
// into the closure's body and returns the substituted body directly (§4.4
// "currying and partial application"), so Args here is just the resolved
// argument list in call order — named arguments that reached this point
// were appended positionally because there was no Closure to match them
// against by name.
type FuncCall struct {
	Func ExprId
	Args []ExprId
}

// Closure is a resolved function value: a FuncDef together with the
// ExprIds it closed over at definition site (§4.4 "currying and partial
// application").
//
// Partial, ParamSlots and ParamDefaults are all parallel to Params (same
// length, indexed by parameter position):
//
//   - Partial[i] is the argument already bound to Params[i] by an earlier,
//     under-saturated call, or NoTarget if Params[i] is still unbound.
//   - ParamSlots[i] is the placeholder Ident node resolveFuncDef wired into
//     Body in place of Params[i].Name; applyClosure substitutes this id for
//     the call's actual argument when the closure is fully applied.
//   - ParamDefaults[i] is Params[i].Default resolved at definition time, or
//     NoTarget if the parameter has no default.
type Closure struct {
	Params        []ast.Param
	Body          ExprId
	Partial       []ExprId
	ParamSlots    []ExprId
	ParamDefaults []ExprId
}

// Expr is one PL node. Exactly one typed field is populated per Kind.
type Expr struct {
	Id   ExprId
	Node ast.NodeId // originating AST node, for diagnostics and Dump
	Kind ExprKind
	Type Type

	// Alias is the name this expression was bound to as a tuple item
	// (`name = value` inside select/derive/group/aggregate's column tuple,
	// §3.1 "named expressions"). "" when the expression wasn't resolved as
	// a named tuple item; lowering falls back to its own bare-ident heuristic.
	Alias string

	Literal       *ast.Literal
	InterpString  *InterpString
	Ident         *Ident
	Tuple         *TupleExpr
	Array         []ExprId
	Range         *RangeExpr
	Unary         *UnaryExpr
	Binary        *BinaryExpr
	FuncCall      *FuncCall
	Closure       *Closure
	Case          *CaseExpr
	Indirection   *IndirectionExpr
	TransformCall *TransformCall
}

// InterpString mirrors ast.InterpString with parts resolved to ExprIds.
type InterpString struct {
	SQL   bool
	Parts []StringPart
}

// StringPart is one segment of a resolved interpolated string.
type StringPart struct {
	Literal bool
	Text    string
	Expr    ExprId
}

// TupleExpr is a resolved tuple literal.
type TupleExpr struct {
	Items []TupleItem
}

// TupleItem is one member of a resolved tuple.
type TupleItem struct {
	Name  string
	Value ExprId
}

// RangeExpr is a resolved range literal.
type RangeExpr struct {
	Start *ExprId
	End   *ExprId
}

// UnaryExpr is a resolved prefix operator application.
type UnaryExpr struct {
	Op      ast.UnaryOp
	Operand ExprId
}

// BinaryExpr is a resolved infix operator application.
type BinaryExpr struct {
	Op          ast.BinaryOp
	Left, Right ExprId
}

// CaseArm is a resolved case arm.
type CaseArm struct {
	Cond  ExprId
	Value ExprId
}

// CaseExpr is a resolved case expression.
type CaseExpr struct {
	Arms []CaseArm
}

// IndirectionExpr is a resolved `base.field` access.
type IndirectionExpr struct {
	Base  ExprId
	Field string
}

// Program is the complete resolved output of one compilation unit: a dense
// Exprs arena plus the root module tree built while resolving it (§3.5,
// §3.6). Passes downstream (lowering) walk Program.Exprs by id rather than
// holding Go references into it.
type Program struct {
	Exprs []Expr
	Root  ExprId // the final pipeline (the query result)
}

// Get returns the Expr stored at id.
func (p *Program) Get(id ExprId) *Expr { return &p.Exprs[id] }

// Alloc appends e to the arena and returns its freshly assigned id.
func (p *Program) Alloc(e Expr) ExprId {
	id := ExprId(len(p.Exprs))
	e.Id = id
	p.Exprs = append(p.Exprs, e)
	return id
}

// ToJSON serialises the program for external tooling (a debug subcommand,
// a language server, §6.4) by marshalling the arena directly, the same
// "encoding/json over plain exported fields, no struct tags" approach the
// teacher uses for its own wire messages. Spans aren't part of pl.Expr, so
// nothing is lost in the round trip.
func (p *Program) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// ProgramFromJSON deserialises a Program previously produced by ToJSON.
func ProgramFromJSON(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// decimalLiteralValue returns a numeric literal's exact Decimal value, and
// false for any non-numeric literal. Nothing in the package calls it.
func decimalLiteralValue(lit *ast.Literal) (decimal.Decimal, bool) {
	switch lit.Kind {
	case ast.LitInt, ast.LitFloat:
		return lit.Decimal, true
	}
	return decimal.Decimal{}, false
}
