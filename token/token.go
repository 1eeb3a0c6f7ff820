// Package token defines the lexer's token alphabet (§3.2).
package token

import (
	"github.com/shopspring/decimal"

	"github.com/prqlc/prqlc-go/span"
)

// Kind discriminates the token variants listed in §3.2.
type Kind int

const (
	Invalid Kind = iota

	// Control tokens.
	Start // synthetic, emitted once at the head of the stream
	NewLine
	LineWrap
	EOF

	// Comments.
	Comment
	DocComment

	// Literals.
	Int
	Float
	Bool
	Null
	DateLit
	TimeLit
	TimestampLit
	PlainString
	RawString
	FString
	SString

	Ident
	Keyword

	// Punctuation & operators — see §4.2's precedence table.
	LParen
	RParen
	LBrace
	RBrace
	LBracket
	RBracket
	Comma
	Colon
	Dot
	DotDot  // range ..
	Pipe    // |
	At      // @ (annotation / date literal prefix)
	Arrow   // ->
	Assign  // =
	Plus
	Minus
	Star
	Slash
	DoubleSlash // //
	Percent
	DoubleStar // **
	Eq         // ==
	Ne         // !=
	Le
	Ge
	Lt
	Gt
	RegexMatch // ~=
	And        // &&
	Or         // ||
	Coalesce   // ??
	Bang       // !
	FatArrow   // =>
)

// keywords is exactly §3.2's list. Pipeline-breaking words like `from` and
// `func` that §4.2 also singles out are ordinary identifiers recognised by
// text in the parser, not lexer keywords (they are prelude names, not
// reserved words).
var keywords = map[string]bool{
	"let": true, "into": true, "case": true, "prql": true, "type": true,
	"module": true, "internal": true, "true": true, "false": true,
	"null": true, "this": true, "that": true,
}

// IsKeyword reports whether ident names a keyword recognised post-lex
// (§4.1 "Keywords are recognised post-lex").
func IsKeyword(ident string) bool {
	return keywords[ident]
}

// StringVariant distinguishes the four string flavours of §3.3.
type StringVariant int

const (
	Plain StringVariant = iota
	Raw
	Interpolated // f-string
	SQLEmbed     // s-string
)

// Segment is one piece of an interpolated string: either literal text or an
// embedded expression given as already-lexed source text (re-lexed and
// re-parsed by the parser, §3.3).
type Segment struct {
	Literal bool
	Text    string // literal text, when Literal
	Expr    string // raw expression source, when !Literal
	Span    span.Span
}

// Token is one element of the lexer's output stream.
type Token struct {
	Kind Kind
	Span span.Span
	Text string // raw source text, for identifiers/keywords/punctuation

	// Literal payloads, populated according to Kind.
	IntVal      int64
	FloatVal    float64
	Decimal     decimal.Decimal // exact literal value, shared by Int/Float
	BoolVal     bool
	StringKind  StringVariant
	Segments    []Segment // for FString/SString; len==1 literal-only for plain/raw
	DateText    string    // raw ISO text for Date/Time/Timestamp literals
	DocText     string    // for DocComment
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

var kindNames = map[Kind]string{
	Invalid: "invalid", Start: "start", NewLine: "newline", LineWrap: "linewrap",
	EOF: "eof", Comment: "comment", DocComment: "doc-comment",
	Int: "int", Float: "float", Bool: "bool", Null: "null",
	DateLit: "date", TimeLit: "time", TimestampLit: "timestamp",
	PlainString: "string", RawString: "r-string", FString: "f-string", SString: "s-string",
	Ident: "ident", Keyword: "keyword",
	LParen: "(", RParen: ")", LBrace: "{", RBrace: "}", LBracket: "[", RBracket: "]",
	Comma: ",", Colon: ":", Dot: ".", DotDot: "..", Pipe: "|", At: "@",
	Arrow: "->", Assign: "=", Plus: "+", Minus: "-", Star: "*", Slash: "/",
	DoubleSlash: "//", Percent: "%", DoubleStar: "**", Eq: "==", Ne: "!=",
	Le: "<=", Ge: ">=", Lt: "<", Gt: ">", RegexMatch: "~=", And: "&&", Or: "||",
	Coalesce: "??", Bang: "!", FatArrow: "=>",
}
