// Package ast defines the AST produced by the parser (§3.4). Every node is
// one variant of a flat sum type; nodes carry a Span and a fresh NodeId
// rather than forming a pointer-cyclic class hierarchy (§9).
package ast

import (
	"github.com/shopspring/decimal"

	"github.com/prqlc/prqlc-go/span"
)

// NodeId is a dense integer id issued by an Allocator, used to key
// side-tables (types, lineage, target declarations) instead of embedding
// that data directly on nodes (§9 "Arena + dense integer ids").
type NodeId uint32

// Allocator issues fresh NodeIds for one compilation.
type Allocator struct{ next NodeId }

// Next returns a fresh, never-before-issued NodeId.
func (a *Allocator) Next() NodeId {
	a.next++
	return a.next
}

// LiteralKind distinguishes the literal forms of §3.2/§3.4.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitBool
	LitNull
	LitDate
	LitTime
	LitTimestamp
	LitString // plain or raw; Raw flag set on the Literal
)

// Literal is a scalar constant.
type Literal struct {
	Kind    LiteralKind
	Int     int64
	Float   float64
	Decimal decimal.Decimal
	Bool    bool
	Text    string // string value (plain/raw) or raw ISO text (date/time/timestamp)
	Raw     bool   // true for r-strings
}

// StringPart is one segment of an f-string or s-string (§3.3).
type StringPart struct {
	Literal bool
	Text    string
	Expr    Expr // parsed sub-expression, when !Literal
}

// InterpString is an f-string (SQL=false) or s-string (SQL=true).
type InterpString struct {
	SQL   bool
	Parts []StringPart
}

// IdentExpr is a (possibly dotted) identifier reference, e.g. `a.b.c`.
type IdentExpr struct {
	Path []string
}

// TupleItem is either a bare item or a `name = value` assignment inside a
// tuple literal (§3.4 invariant: tuples contain items or named assignments).
type TupleItem struct {
	Name  string // "" if positional
	Value Expr
}

// TupleExpr is `{...}`.
type TupleExpr struct {
	Items []TupleItem
}

// ArrayExpr is `[...]`; arrays contain items only, no assignments (§3.4).
type ArrayExpr struct {
	Items []Expr
}

// RangeExpr is `a..b`, either bound optional.
type RangeExpr struct {
	Start *Expr // nil if unbounded
	End   *Expr // nil if unbounded
}

// UnaryOp is one of -, +, !, == (self-equality in join, §4.2 precedence 1).
type UnaryOp int

const (
	UnaryNeg UnaryOp = iota
	UnaryPos
	UnaryNot
	UnarySelfEq
)

// UnaryExpr applies a prefix operator.
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expr
}

// BinaryOp enumerates the binary operators of §4.2's precedence table.
type BinaryOp int

const (
	BinOr BinaryOp = iota
	BinAnd
	BinCoalesce
	BinEq
	BinNe
	BinLe
	BinGe
	BinLt
	BinGt
	BinRegexMatch
	BinAdd
	BinSub
	BinMul
	BinDiv
	BinIntDiv
	BinMod
	BinPow
)

// BinaryExpr applies an infix operator.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

// NamedArg is a `name:value` call argument (§4.2).
type NamedArg struct {
	Name  string
	Value Expr
}

// CallExpr is a function call: juxtaposition of a target with positional
// and named arguments (§3.4, §4.2's lowest-precedence function call).
type CallExpr struct {
	Func      Expr
	Args      []Expr
	NamedArgs []NamedArg
}

// PipelineExpr is a left-to-right chain of stages (§3.4, §4.2).
type PipelineExpr struct {
	Stages []Expr
}

// Param is a function parameter, optionally with a `name:default` default.
type Param struct {
	Name    string
	Default *Expr // nil if required
}

// FuncDefExpr is `p1 p2 ... -> body`, the value on the right of `let name =`
// when that value is a function (§4.2).
type FuncDefExpr struct {
	Params []Param
	Body   Expr
}

// CaseArm is one `cond => value` arm of a case expression (§3.4); a literal
// `true` condition is the conventional default arm.
type CaseArm struct {
	Cond  Expr
	Value Expr
}

// CaseExpr is `case [cond1 => expr1, ...]`.
type CaseExpr struct {
	Arms []CaseArm
}

// IndirectionExpr is `base.field`, the tightest-binding operator in §4.2's
// table (note: IdentExpr already represents a fully dotted path when
// every segment is a plain identifier; IndirectionExpr is used when base is
// itself a compound expression, e.g. `(a | b).field`).
type IndirectionExpr struct {
	Base  Expr
	Field string
}

// ErrorExpr is the sentinel node the parser substitutes on a structural
// parse failure so later passes can proceed (§9 "Parser error recovery").
type ErrorExpr struct{}

// ExprKind discriminates the Expr sum type.
type ExprKind int

const (
	EkLiteral ExprKind = iota
	EkInterpString
	EkIdent
	EkTuple
	EkArray
	EkRange
	EkUnary
	EkBinary
	EkCall
	EkPipeline
	EkFuncDef
	EkCase
	EkIndirection
	EkError
	EkThis
	EkThat
)

// Expr is any PRQL expression node. Exactly one of the typed fields is
// populated, selected by Kind — a flat tagged union rather than an
// interface hierarchy (§9).
type Expr struct {
	Id   NodeId
	Span span.Span
	Kind ExprKind

	Literal      *Literal
	InterpString *InterpString
	Ident        *IdentExpr
	Tuple        *TupleExpr
	Array        *ArrayExpr
	Range        *RangeExpr
	Unary        *UnaryExpr
	Binary       *BinaryExpr
	Call         *CallExpr
	Pipeline     *PipelineExpr
	FuncDef      *FuncDefExpr
	Case         *CaseExpr
	Indirection  *IndirectionExpr

	// Annotation carries the `@{...}` metadata bound to this expression's
	// enclosing statement, when any (§3.4, §4.2).
	Annotation *TupleExpr
}

// Annotation wraps an `@{...}` tuple so it can also attach to the
// statements that are not themselves expressions.
type Annotation struct {
	Meta *TupleExpr
}

// StmtKind discriminates the Stmt sum type.
type StmtKind int

const (
	SkLet StmtKind = iota
	SkInto
	SkExprStatement
	SkModule
	SkType
)

// LetStmt is `let name = value`, possibly a function definition.
type LetStmt struct {
	Name  string
	Value Expr
}

// IntoStmt is `value into name`.
type IntoStmt struct {
	Name  string
	Value Expr
}

// TypeStmt is `type name = ...`.
type TypeStmt struct {
	Name  string
	Value Expr
}

// ModuleStmt is `module name { ... }`.
type ModuleStmt struct {
	Name     string
	Internal bool
	Body     []Stmt
}

// Stmt is a top-level or module-level statement.
type Stmt struct {
	Id         NodeId
	Span       span.Span
	Kind       StmtKind
	Annotation *Annotation

	Let    *LetStmt
	Into   *IntoStmt
	Expr   *Expr
	Module *ModuleStmt
	Type   *TypeStmt
}

// Header is the optional `prql target:sql.<dialect> version:"x.y.z"`
// statement at the top of a file (§6.3).
type Header struct {
	Target  string
	Version string
	Span    span.Span
}

// File is the root of one parsed source file.
type File struct {
	Header *Header
	Stmts  []Stmt
}
