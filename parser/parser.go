// Package parser implements the PRQL recursive-descent parser (§4.2). On a
// structural failure it substitutes an ast.ErrorExpr sentinel and resumes
// at the next statement boundary rather than aborting (§9).
package parser

import (
	"strings"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/lexer"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/token"
)

// statementKeywords are the bare identifiers that start a new statement and
// therefore suppress an implicit pipe before them (§4.2).
var statementKeywords = map[string]bool{
	"from": true, "func": true,
}

type parser struct {
	toks  []token.Token
	pos   int
	diags *diagnostic.Bag
	ids   *ast.Allocator
	file  span.FileId
}

// Parse tokenizes and parses src in one step, registering it under name in
// sm, and returns the resulting File and the FileId it was registered under;
// diagnostics are recorded into diags. Parsing never aborts early (§4.2).
func Parse(sm *span.SourceMap, name, src string, diags *diagnostic.Bag) (*ast.File, span.FileId) {
	file := sm.AddSource(name, src)
	toks := lexer.Lex(sm, file, src, diags)
	toks = stripTrivia(toks)
	p := &parser{toks: toks, diags: diags, ids: &ast.Allocator{}, file: file}
	return p.parseFile(), file
}

// stripTrivia removes the synthetic leading Start token and Comment tokens
// (doc comments are threaded onto the following statement by the parser and
// so are kept).
func stripTrivia(toks []token.Token) []token.Token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.Kind == token.Comment || t.Kind == token.Start {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (p *parser) cur() token.Token {
	if p.pos >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) token.Token {
	i := p.pos + off
	if i >= len(p.toks) {
		return token.Token{Kind: token.EOF}
	}
	return p.toks[i]
}

func (p *parser) advance() token.Token {
	t := p.cur()
	if t.Kind != token.EOF {
		p.pos++
	}
	return t
}

func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) atKeyword(text string) bool {
	t := p.cur()
	return t.Kind == token.Keyword && t.Text == text
}

func (p *parser) atIdentText(text string) bool {
	t := p.cur()
	return t.Kind == token.Ident && t.Text == text
}

func (p *parser) skipNewlines() {
	for p.at(token.NewLine) || p.at(token.LineWrap) {
		p.pos++
	}
}

func (p *parser) skipTrivia() {
	for p.at(token.NewLine) || p.at(token.LineWrap) || p.at(token.DocComment) {
		p.pos++
	}
}

func (p *parser) expect(k token.Kind) (token.Token, bool) {
	if p.at(k) {
		return p.advance(), true
	}
	p.diags.Errorf(diagnostic.KindUnexpectedToken, p.cur().Span, "", p.cur().Kind.String(), k.String())
	return token.Token{}, false
}

// errorExpr builds the sentinel node used on structural failure (§9).
func (p *parser) errorExpr(sp span.Span) ast.Expr {
	return ast.Expr{Id: p.ids.Next(), Span: sp, Kind: ast.EkError}
}

// recoverToStmtBoundary skips tokens until a NewLine/EOF, used to resume
// after a malformed top-level statement (§4.2 "recovery ... resumes at the
// next top-level").
func (p *parser) recoverToStmtBoundary() {
	for !p.at(token.NewLine) && !p.at(token.EOF) {
		p.pos++
	}
}

// recoverToComma skips to the next top-level comma or closing delimiter,
// used inside containers (§4.2).
func (p *parser) recoverToComma(closing token.Kind) {
	depth := 0
	for {
		k := p.cur().Kind
		if k == token.EOF {
			return
		}
		if depth == 0 && (k == token.Comma || k == closing) {
			return
		}
		switch k {
		case token.LParen, token.LBrace, token.LBracket:
			depth++
		case token.RParen, token.RBrace, token.RBracket:
			depth--
		}
		p.pos++
	}
}

func (p *parser) parseFile() *ast.File {
	f := &ast.File{}
	p.skipTrivia()
	if p.atKeyword("prql") {
		f.Header = p.parseHeader()
		p.skipTrivia()
	}
	for !p.at(token.EOF) {
		p.skipTrivia()
		if p.at(token.EOF) {
			break
		}
		stmt := p.parseStmt()
		f.Stmts = append(f.Stmts, stmt)
		p.skipTrivia()
	}
	return f
}

func (p *parser) parseHeader() *ast.Header {
	start := p.cur().Span
	p.advance() // 'prql'
	h := &ast.Header{}
	for {
		if !p.at(token.Ident) {
			break
		}
		key := p.advance().Text
		if _, ok := p.expect(token.Colon); !ok {
			break
		}
		switch key {
		case "target":
			if p.at(token.Ident) {
				parts := []string{p.advance().Text}
				for p.at(token.Dot) && p.peekAt(1).Kind == token.Ident {
					p.advance()
					parts = append(parts, p.advance().Text)
				}
				h.Target = strings.Join(parts, ".")
			}
		case "version":
			if p.at(token.PlainString) {
				tok := p.advance()
				h.Version = stringLiteralText(tok)
			}
		default:
			// unknown header key: consume one value token and continue
			p.advance()
		}
		if !p.at(token.Ident) {
			break
		}
	}
	h.Span = start.Join(p.toks[max(p.pos-1, 0)].Span)
	return h
}

func (p *parser) parseStmt() ast.Stmt {
	start := p.cur().Span
	var annot *ast.Annotation
	if p.at(token.At) {
		annot = p.parseAnnotation()
		p.skipTrivia()
	}

	var stmt ast.Stmt
	switch {
	case p.atKeyword("let"):
		stmt = p.parseLetStmt()
	case p.atKeyword("module"):
		stmt = p.parseModuleStmt(false)
	case p.atKeyword("internal") && p.peekAt(1).Kind == token.Keyword && p.peekAt(1).Text == "module":
		p.advance()
		stmt = p.parseModuleStmt(true)
	case p.atKeyword("type"):
		stmt = p.parseTypeStmt()
	default:
		stmt = p.parseExprOrIntoStmt()
	}
	stmt.Annotation = annot
	stmt.Id = p.ids.Next()
	stmt.Span = start.Join(p.lastSpan())
	return stmt
}

func (p *parser) lastSpan() span.Span {
	if p.pos == 0 {
		return p.cur().Span
	}
	return p.toks[p.pos-1].Span
}

func (p *parser) parseAnnotation() *ast.Annotation {
	p.advance() // '@'
	if !p.at(token.LBrace) {
		p.diags.Errorf(diagnostic.KindMalformedAnnot, p.cur().Span, "", "expected { after @")
		return &ast.Annotation{Meta: &ast.TupleExpr{}}
	}
	tuple := p.parseTuple()
	return &ast.Annotation{Meta: tuple.Tuple}
}

func (p *parser) parseLetStmt() ast.Stmt {
	p.advance() // 'let'
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Text
	} else {
		p.diags.Errorf(diagnostic.KindMalformedFuncDef, p.cur().Span, "", "expected a name after let")
	}
	if _, ok := p.expect(token.Assign); !ok {
		p.recoverToStmtBoundary()
		return ast.Stmt{Kind: ast.SkLet, Let: &ast.LetStmt{Name: name, Value: p.errorExpr(p.cur().Span)}}
	}
	value := p.parseFuncDefOrExpr()
	return ast.Stmt{Kind: ast.SkLet, Let: &ast.LetStmt{Name: name, Value: value}}
}

func (p *parser) parseTypeStmt() ast.Stmt {
	p.advance() // 'type'
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Text
	}
	p.expect(token.Assign)
	value := p.parseExpr()
	return ast.Stmt{Kind: ast.SkType, Type: &ast.TypeStmt{Name: name, Value: value}}
}

func (p *parser) parseModuleStmt(internal bool) ast.Stmt {
	p.advance() // 'module'
	name := ""
	if p.at(token.Ident) {
		name = p.advance().Text
	}
	m := &ast.ModuleStmt{Name: name, Internal: internal}
	if _, ok := p.expect(token.LBrace); ok {
		p.skipTrivia()
		for !p.at(token.RBrace) && !p.at(token.EOF) {
			m.Body = append(m.Body, p.parseStmt())
			p.skipTrivia()
		}
		p.expect(token.RBrace)
	}
	return ast.Stmt{Kind: ast.SkModule, Module: m}
}

// parseExprOrIntoStmt parses a bare expression (pipeline) statement, which
// may be followed by `into name` (§3.4, §4.2).
func (p *parser) parseExprOrIntoStmt() ast.Stmt {
	e := p.parsePipeline()
	if p.atKeyword("into") {
		p.advance()
		name := ""
		if p.at(token.Ident) {
			name = p.advance().Text
		}
		return ast.Stmt{Kind: ast.SkInto, Into: &ast.IntoStmt{Name: name, Value: e}}
	}
	return ast.Stmt{Kind: ast.SkExprStatement, Expr: &e}
}

// parseFuncDefOrExpr parses the right-hand side of `let name = ...`, which
// may be `p1 p2 -> body` (§4.2).
func (p *parser) parseFuncDefOrExpr() ast.Expr {
	if p.looksLikeFuncDef() {
		return p.parseFuncDef()
	}
	return p.parsePipeline()
}

// looksLikeFuncDef scans ahead for a top-level `->` before the next
// NewLine/EOF, which distinguishes `name = p1 p2 -> body` from a plain
// expression binding.
func (p *parser) looksLikeFuncDef() bool {
	depth := 0
	for i := p.pos; i < len(p.toks); i++ {
		switch p.toks[i].Kind {
		case token.LParen, token.LBrace, token.LBracket:
			depth++
		case token.RParen, token.RBrace, token.RBracket:
			depth--
		case token.Arrow:
			if depth == 0 {
				return true
			}
		case token.NewLine:
			if depth == 0 {
				return false
			}
		case token.EOF:
			return false
		}
	}
	return false
}

func (p *parser) parseFuncDef() ast.Expr {
	start := p.cur().Span
	var params []ast.Param
	for !p.at(token.Arrow) && !p.at(token.EOF) && !p.at(token.NewLine) {
		if !p.at(token.Ident) {
			break
		}
		name := p.advance().Text
		var def ast.Expr
		hasDefault := false
		if p.at(token.Colon) {
			p.advance()
			def = p.parseUnary()
			hasDefault = true
		}
		param := ast.Param{Name: name}
		if hasDefault {
			param.Default = &def
		}
		params = append(params, param)
	}
	if _, ok := p.expect(token.Arrow); !ok {
		p.diags.Errorf(diagnostic.KindMalformedFuncDef, p.cur().Span, "", "expected -> in function definition")
	}
	body := p.parsePipeline()
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkFuncDef,
		FuncDef: &ast.FuncDefExpr{Params: params, Body: body}}
}

// parsePipeline parses a left-to-right chain of stages joined by newline or
// explicit `|` (§3.4, §4.2). A newline does NOT introduce a pipe when the
// next line closes a tuple, array or parenthesis, follows a `\`, or begins a
// new statement.
func (p *parser) parsePipeline() ast.Expr {
	start := p.cur().Span
	first := p.parseExpr()
	stages := []ast.Expr{first}
	for {
		for p.at(token.LineWrap) {
			p.advance()
		}
		if p.at(token.Pipe) {
			p.advance()
			p.skipTrivia()
			stages = append(stages, p.parseExpr())
			continue
		}
		if p.at(token.NewLine) && p.continuesPipeline() {
			p.advance()
			stages = append(stages, p.parseExpr())
			continue
		}
		break
	}
	if len(stages) == 1 {
		return stages[0]
	}
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkPipeline,
		Pipeline: &ast.PipelineExpr{Stages: stages}}
}

// continuesPipeline looks past the current NewLine to decide whether the
// next line is a pipeline continuation (§4.2).
func (p *parser) continuesPipeline() bool {
	next := p.peekAt(1)
	if next.Kind == token.EOF || next.Kind == token.NewLine {
		return false
	}
	if next.Kind == token.RBrace || next.Kind == token.RBracket || next.Kind == token.RParen {
		return false
	}
	if next.Kind == token.Keyword {
		switch next.Text {
		case "let", "module", "type":
			return false
		}
	}
	if next.Kind == token.Ident && statementKeywords[next.Text] {
		return false
	}
	return true
}

// parseExpr parses one pipeline stage at the lowest real precedence
// (function-call juxtaposition, §4.2).
func (p *parser) parseExpr() ast.Expr {
	return p.parseCallOrLower()
}

// parseCallOrLower implements precedence 10 (function call by juxtaposition)
// by first parsing one precedence-9-and-below expression, then treating any
// immediately following expressions (with no intervening operator) as
// positional/named arguments.
func (p *parser) parseCallOrLower() ast.Expr {
	start := p.cur().Span
	head := p.parseBinary(0)
	if !p.canStartArg() {
		return head
	}
	if head.Kind != ast.EkIdent && head.Kind != ast.EkIndirection {
		return head
	}
	var args []ast.Expr
	var named []ast.NamedArg
	for p.canStartArg() {
		if p.at(token.Ident) && p.peekAt(1).Kind == token.Colon && p.peekAt(2).Kind != token.Colon {
			name := p.advance().Text
			p.advance() // ':'
			val := p.parseBinary(0)
			named = append(named, ast.NamedArg{Name: name, Value: val})
			continue
		}
		if p.at(token.Ident) && p.peekAt(1).Kind == token.Assign {
			// `select low = expr`: one aliased column without braces becomes
			// a single-item tuple.
			itemStart := p.cur().Span
			name := p.advance().Text
			p.advance() // '='
			val := p.parseBinary(0)
			args = append(args, ast.Expr{Id: p.ids.Next(), Span: itemStart.Join(p.lastSpan()), Kind: ast.EkTuple,
				Tuple: &ast.TupleExpr{Items: []ast.TupleItem{{Name: name, Value: val}}}})
			continue
		}
		args = append(args, p.parseBinary(0))
	}
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkCall,
		Call: &ast.CallExpr{Func: head, Args: args, NamedArgs: named}}
}

// canStartArg reports whether the current token can begin an argument to a
// juxtaposed function call (i.e. is not an operator, delimiter, or anything
// that would end the pipeline stage).
func (p *parser) canStartArg() bool {
	switch p.cur().Kind {
	case token.Ident, token.Int, token.Float, token.PlainString, token.RawString,
		token.FString, token.SString, token.LBrace, token.LBracket, token.LParen,
		token.Minus, token.Bang, token.DateLit, token.TimeLit, token.TimestampLit, token.At, token.DotDot:
		return true
	case token.Keyword:
		switch p.cur().Text {
		case "true", "false", "null", "this", "that", "case":
			return true
		}
		return false
	default:
		return false
	}
}

// precedence table for binary operators, low to high per §4.2 (function
// call juxtaposition, handled separately, is the lowest at 10).
func binPrec(k token.Kind) (int, bool) {
	switch k {
	case token.Or:
		return 9, true
	case token.And:
		return 8, true
	case token.Coalesce:
		return 7, true
	case token.Eq, token.Ne, token.Le, token.Ge, token.Lt, token.Gt, token.RegexMatch:
		return 6, true
	case token.Plus, token.Minus:
		return 5, true
	case token.Star, token.Slash, token.DoubleSlash, token.Percent:
		return 4, true
	case token.DoubleStar:
		return 3, true
	}
	return 0, false
}

func binOpFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.Or:
		return ast.BinOr
	case token.And:
		return ast.BinAnd
	case token.Coalesce:
		return ast.BinCoalesce
	case token.Eq:
		return ast.BinEq
	case token.Ne:
		return ast.BinNe
	case token.Le:
		return ast.BinLe
	case token.Ge:
		return ast.BinGe
	case token.Lt:
		return ast.BinLt
	case token.Gt:
		return ast.BinGt
	case token.RegexMatch:
		return ast.BinRegexMatch
	case token.Plus:
		return ast.BinAdd
	case token.Minus:
		return ast.BinSub
	case token.Star:
		return ast.BinMul
	case token.Slash:
		return ast.BinDiv
	case token.DoubleSlash:
		return ast.BinIntDiv
	case token.Percent:
		return ast.BinMod
	case token.DoubleStar:
		return ast.BinPow
	}
	return ast.BinAdd
}

// parseBinary implements precedence-climbing over §4.2's table, bottoming
// out at the range operator (2) and then unary/indirection (1, 0).
func (p *parser) parseBinary(minPrec int) ast.Expr {
	left := p.parseRange()
	for {
		prec, ok := binPrec(p.cur().Kind)
		if !ok {
			return left
		}
		// binPrec ranks the loosest operator highest, so climb on the
		// inverted value: a larger strength binds tighter.
		strength := 10 - prec
		if strength < minPrec {
			return left
		}
		op := p.advance()
		// ** is right-associative; everything else is left-associative.
		nextMin := strength + 1
		if op.Kind == token.DoubleStar {
			nextMin = strength
		}
		right := p.parseBinary(nextMin)
		left = ast.Expr{Id: p.ids.Next(), Span: left.Span.Join(right.Span), Kind: ast.EkBinary,
			Binary: &ast.BinaryExpr{Op: binOpFor(op.Kind), Left: left, Right: right}}
	}
}

// parseRange handles precedence 2 (`..`).
func (p *parser) parseRange() ast.Expr {
	start := p.cur().Span
	if p.at(token.DotDot) {
		p.advance()
		end := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: start.Join(end.Span), Kind: ast.EkRange,
			Range: &ast.RangeExpr{End: &end}}
	}
	left := p.parseUnary()
	if !p.at(token.DotDot) {
		return left
	}
	p.advance()
	if p.canStartOperand() {
		right := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: left.Span.Join(right.Span), Kind: ast.EkRange,
			Range: &ast.RangeExpr{Start: &left, End: &right}}
	}
	return ast.Expr{Id: p.ids.Next(), Span: left.Span, Kind: ast.EkRange, Range: &ast.RangeExpr{Start: &left}}
}

func (p *parser) canStartOperand() bool {
	switch p.cur().Kind {
	case token.Ident, token.Int, token.Float, token.PlainString, token.RawString,
		token.FString, token.SString, token.LBrace, token.LBracket, token.LParen,
		token.Minus, token.Plus, token.Bang, token.DateLit, token.TimeLit, token.TimestampLit:
		return true
	case token.Keyword:
		switch p.cur().Text {
		case "true", "false", "null", "this", "that", "case":
			return true
		}
	}
	return false
}

// parseUnary handles precedence 1 (-, +, !, ==) then defers to indirection.
func (p *parser) parseUnary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Minus:
		p.advance()
		operand := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: start.Join(operand.Span), Kind: ast.EkUnary,
			Unary: &ast.UnaryExpr{Op: ast.UnaryNeg, Operand: operand}}
	case token.Plus:
		p.advance()
		operand := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: start.Join(operand.Span), Kind: ast.EkUnary,
			Unary: &ast.UnaryExpr{Op: ast.UnaryPos, Operand: operand}}
	case token.Bang:
		p.advance()
		operand := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: start.Join(operand.Span), Kind: ast.EkUnary,
			Unary: &ast.UnaryExpr{Op: ast.UnaryNot, Operand: operand}}
	case token.Eq:
		p.advance()
		operand := p.parseUnary()
		return ast.Expr{Id: p.ids.Next(), Span: start.Join(operand.Span), Kind: ast.EkUnary,
			Unary: &ast.UnaryExpr{Op: ast.UnarySelfEq, Operand: operand}}
	}
	return p.parseIndirection()
}

// parseIndirection handles precedence 0 (`.`) over a primary expression.
func (p *parser) parseIndirection() ast.Expr {
	base := p.parsePrimary()
	for p.at(token.Dot) && base.Kind != ast.EkIdent {
		p.advance()
		field := ""
		if p.at(token.Ident) {
			field = p.advance().Text
		}
		base = ast.Expr{Id: p.ids.Next(), Span: base.Span.Join(p.lastSpan()), Kind: ast.EkIndirection,
			Indirection: &ast.IndirectionExpr{Base: base, Field: field}}
	}
	return base
}

func (p *parser) parsePrimary() ast.Expr {
	start := p.cur().Span
	switch p.cur().Kind {
	case token.Int:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitInt, Int: t.IntVal, Decimal: t.Decimal}}
	case token.Float:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitFloat, Float: t.FloatVal, Decimal: t.Decimal}}
	case token.DateLit:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitDate, Text: t.DateText}}
	case token.TimeLit:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitTime, Text: t.DateText}}
	case token.TimestampLit:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitTimestamp, Text: t.DateText}}
	case token.PlainString, token.RawString:
		t := p.advance()
		return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkLiteral,
			Literal: &ast.Literal{Kind: ast.LitString, Text: segmentsToPlainText(t.Segments), Raw: t.Kind == token.RawString}}
	case token.FString:
		return p.parseInterpString(false)
	case token.SString:
		return p.parseInterpString(true)
	case token.LBrace:
		return p.parseTuple()
	case token.LBracket:
		return p.parseArray()
	case token.LParen:
		p.advance()
		inner := p.parsePipeline()
		p.expect(token.RParen)
		inner.Span = start.Join(p.lastSpan())
		return inner
	case token.Keyword:
		switch p.cur().Text {
		case "true":
			p.advance()
			return ast.Expr{Id: p.ids.Next(), Span: start, Kind: ast.EkLiteral, Literal: &ast.Literal{Kind: ast.LitBool, Bool: true}}
		case "false":
			p.advance()
			return ast.Expr{Id: p.ids.Next(), Span: start, Kind: ast.EkLiteral, Literal: &ast.Literal{Kind: ast.LitBool, Bool: false}}
		case "null":
			p.advance()
			return ast.Expr{Id: p.ids.Next(), Span: start, Kind: ast.EkLiteral, Literal: &ast.Literal{Kind: ast.LitNull}}
		case "this":
			p.advance()
			return ast.Expr{Id: p.ids.Next(), Span: start, Kind: ast.EkThis}
		case "that":
			p.advance()
			return ast.Expr{Id: p.ids.Next(), Span: start, Kind: ast.EkThat}
		case "case":
			return p.parseCase()
		}
	case token.Ident:
		return p.parseIdentPath()
	case token.At:
		return p.parseInlineAnnotationExpr()
	}
	p.diags.Errorf(diagnostic.KindMissingExpr, p.cur().Span, "")
	sp := p.cur().Span
	if !p.at(token.EOF) {
		p.advance()
	}
	return p.errorExpr(sp)
}

func (p *parser) parseInlineAnnotationExpr() ast.Expr {
	// A bare `@{...}` appearing in expression position is malformed: it only
	// binds to a following statement (§3.4). Report and recover.
	p.diags.Errorf(diagnostic.KindMalformedAnnot, p.cur().Span, "", "annotations bind to statements, not expressions")
	p.advance()
	if p.at(token.LBrace) {
		p.parseTuple()
	}
	return p.errorExpr(p.cur().Span)
}

func (p *parser) parseIdentPath() ast.Expr {
	start := p.cur().Span
	parts := []string{p.advance().Text}
	for p.at(token.Dot) && p.peekAt(1).Kind == token.Ident {
		p.advance()
		parts = append(parts, p.advance().Text)
	}
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkIdent, Ident: &ast.IdentExpr{Path: parts}}
}

func (p *parser) parseInterpString(sql bool) ast.Expr {
	t := p.advance()
	is := &ast.InterpString{SQL: sql}
	for _, seg := range t.Segments {
		if seg.Literal {
			is.Parts = append(is.Parts, ast.StringPart{Literal: true, Text: seg.Text})
			continue
		}
		sub := parseSubExpr(p.diags, p.ids, t.Span.File, seg.Expr, seg.Span.Start)
		is.Parts = append(is.Parts, ast.StringPart{Literal: false, Expr: sub})
	}
	return ast.Expr{Id: p.ids.Next(), Span: t.Span, Kind: ast.EkInterpString, InterpString: is}
}

// parseSubExpr re-lexes and re-parses an interpolation hole's raw source
// (§3.3 "embedded identifiers"/"embedded expressions"), preserving spans by
// offsetting every token by baseOffset.
func parseSubExpr(diags *diagnostic.Bag, ids *ast.Allocator, file span.FileId, src string, baseOffset int) ast.Expr {
	sm := span.NewSourceMap() // throwaway map purely to drive the sub-lexer
	sm.AddSource("<interp>", src)
	toks := lexer.Lex(sm, 0, src, diags)
	toks = stripTrivia(toks)
	for i := range toks {
		toks[i].Span.File = file
		toks[i].Span.Start += baseOffset
		toks[i].Span.End += baseOffset
	}
	sub := &parser{toks: toks, diags: diags, ids: ids, file: file}
	return sub.parsePipeline()
}

func (p *parser) parseTuple() ast.Expr {
	start := p.cur().Span
	p.advance() // '{'
	tuple := &ast.TupleExpr{}
	p.skipTrivia()
	for !p.at(token.RBrace) && !p.at(token.EOF) {
		item := p.parseTupleItem()
		tuple.Items = append(tuple.Items, item)
		p.skipTrivia()
		if p.at(token.Comma) {
			p.advance()
			p.skipTrivia()
			continue
		}
		if !p.at(token.RBrace) {
			p.diags.Errorf(diagnostic.KindUnexpectedToken, p.cur().Span, "", p.cur().Kind.String(), ", or }")
			p.recoverToComma(token.RBrace)
			if p.at(token.Comma) {
				p.advance()
				p.skipTrivia()
			}
		}
	}
	if _, ok := p.expect(token.RBrace); !ok {
		p.diags.Errorf(diagnostic.KindUnmatchedDelim, start, "", "{")
	}
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkTuple, Tuple: tuple}
}

func (p *parser) parseTupleItem() ast.TupleItem {
	// `!{a,b}` style exclusion set starts with `!`; a `name = value`
	// assignment is an identifier followed by an Assign token (`==` is lexed
	// as a separate Eq token, so it never matches here).
	if p.at(token.Bang) && p.peekAt(1).Kind == token.LBrace {
		p.advance()
		inner := p.parseTuple()
		neg := ast.Expr{Id: p.ids.Next(), Span: inner.Span, Kind: ast.EkUnary,
			Unary: &ast.UnaryExpr{Op: ast.UnaryNot, Operand: inner}}
		return ast.TupleItem{Value: neg}
	}
	if p.at(token.Ident) && p.peekAt(1).Kind == token.Assign {
		name := p.advance().Text
		p.advance() // '='
		val := p.parsePipeline()
		return ast.TupleItem{Name: name, Value: val}
	}
	val := p.parsePipeline()
	return ast.TupleItem{Value: val}
}

func (p *parser) parseArray() ast.Expr {
	start := p.cur().Span
	p.advance() // '['
	arr := &ast.ArrayExpr{}
	p.skipTrivia()
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		arr.Items = append(arr.Items, p.parsePipeline())
		p.skipTrivia()
		if p.at(token.Comma) {
			p.advance()
			p.skipTrivia()
			continue
		}
		if !p.at(token.RBracket) {
			p.diags.Errorf(diagnostic.KindUnexpectedToken, p.cur().Span, "", p.cur().Kind.String(), ", or ]")
			p.recoverToComma(token.RBracket)
			if p.at(token.Comma) {
				p.advance()
				p.skipTrivia()
			}
		}
	}
	if _, ok := p.expect(token.RBracket); !ok {
		p.diags.Errorf(diagnostic.KindUnmatchedDelim, start, "", "[")
	}
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkArray, Array: arr}
}

func (p *parser) parseCase() ast.Expr {
	start := p.cur().Span
	p.advance() // 'case'
	if _, ok := p.expect(token.LBracket); !ok {
		p.diags.Errorf(diagnostic.KindMalformedFuncDef, p.cur().Span, "", "expected [ after case")
		return p.errorExpr(start)
	}
	ce := &ast.CaseExpr{}
	p.skipTrivia()
	for !p.at(token.RBracket) && !p.at(token.EOF) {
		cond := p.parseBinary(0)
		if _, ok := p.expect(token.FatArrow); !ok {
			p.diags.Errorf(diagnostic.KindMalformedFuncDef, p.cur().Span, "", "expected => in case arm")
			p.recoverToComma(token.RBracket)
		} else {
			val := p.parseBinary(0)
			ce.Arms = append(ce.Arms, ast.CaseArm{Cond: cond, Value: val})
		}
		p.skipTrivia()
		if p.at(token.Comma) {
			p.advance()
			p.skipTrivia()
		}
	}
	p.expect(token.RBracket)
	return ast.Expr{Id: p.ids.Next(), Span: start.Join(p.lastSpan()), Kind: ast.EkCase, Case: ce}
}

func segmentsToPlainText(segs []token.Segment) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Literal {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

func stringLiteralText(t token.Token) string {
	return segmentsToPlainText(t.Segments)
}
