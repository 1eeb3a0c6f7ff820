// Package lexer implements the PRQL tokenizer (§4.1). It never aborts on
// the first error: it recovers locally by skipping one character and
// continues.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/golang-sql/civil"
	"golang.org/x/text/unicode/norm"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/token"
)

// Lexer scans one Source into a token stream.
type Lexer struct {
	file   span.FileId
	src    string
	pos    int
	tokens []token.Token
	diags  *diagnostic.Bag
}

// Lex tokenizes text (already registered in sm under file) and returns the
// resulting tokens; diagnostics are recorded into diags. Lexing never stops
// early.
func Lex(sm *span.SourceMap, file span.FileId, text string, diags *diagnostic.Bag) []token.Token {
	// Normalise to NFC so byte spans over non-ASCII identifiers/strings are
	// stable regardless of the input's original normalization form. Silent,
	// and a no-op for ASCII-only sources (the overwhelmingly common case).
	normalized := text
	if !norm.NFC.IsNormalString(text) {
		normalized = norm.NFC.String(text)
	}
	l := &Lexer{file: file, src: normalized, diags: diags}
	l.emit(token.Start, l.here())
	l.run()
	l.emit(token.EOF, l.here())
	return l.tokens
}

func (l *Lexer) here() span.Span {
	return span.Span{File: l.file, Start: l.pos, End: l.pos}
}

func (l *Lexer) spanFrom(start int) span.Span {
	return span.Span{File: l.file, Start: start, End: l.pos}
}

func (l *Lexer) emit(k token.Kind, sp span.Span) {
	l.tokens = append(l.tokens, token.Token{Kind: k, Span: sp, Text: l.src[sp.Start:sp.End]})
}

func (l *Lexer) eof() bool { return l.pos >= len(l.src) }

func (l *Lexer) peek() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	return c
}

func (l *Lexer) run() {
	for !l.eof() {
		c := l.peek()
		switch {
		case c == '\n':
			l.lexNewlineRun()
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			l.lexComment()
		case c == '\\' && atLineStartAfterWS(l.src, l.pos):
			l.lexLineWrap()
		case isDigit(c):
			l.lexNumber()
		case c == '"' || c == '\'':
			l.lexQuotedDelim(0)
		case isIdentStart(c):
			l.lexIdentOrPrefixedString()
		case c == '@':
			l.lexAt()
		default:
			l.lexOperator()
		}
	}
}

// atLineStartAfterWS reports whether the only characters between the start
// of the current line and pos are spaces/tabs, i.e. pos begins a line-wrap.
func atLineStartAfterWS(src string, pos int) bool {
	i := pos - 1
	for i >= 0 && (src[i] == ' ' || src[i] == '\t') {
		i--
	}
	return i < 0 || src[i] == '\n'
}

// lexNewlineRun collapses consecutive newlines (and blank/comment-only
// lines) into a single NewLine token, per §4.1.
func (l *Lexer) lexNewlineRun() {
	start := l.pos
	for !l.eof() {
		c := l.peek()
		if c == '\n' {
			l.pos++
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' {
			l.pos++
			continue
		}
		if c == '#' && l.peekAt(1) != '!' {
			// comment-only line: consume it and keep collapsing
			for !l.eof() && l.peek() != '\n' {
				l.pos++
			}
			continue
		}
		break
	}
	l.emit(token.NewLine, l.spanFrom(start))
}

// lexLineWrap consumes the leading `\` that splices the previous NewLine
// into this line (§4.1). It has no other effect: tokens after the backslash
// on this physical line are lexed normally, continuing the logical line
// that preceded it. Any further blank/comment-only lines immediately
// preceding this one were already collapsed into the one NewLine token this
// function removes.
func (l *Lexer) lexLineWrap() {
	start := l.pos
	l.pos++ // consume just the backslash
	if n := len(l.tokens); n > 0 && l.tokens[n-1].Kind == token.NewLine {
		l.tokens = l.tokens[:n-1]
	}
	l.emit(token.LineWrap, l.spanFrom(start))
}

func (l *Lexer) lexComment() {
	start := l.pos
	doc := l.peekAt(1) == '!'
	for !l.eof() && l.peek() != '\n' {
		l.pos++
	}
	if doc {
		t := token.Token{Kind: token.DocComment, Span: l.spanFrom(start)}
		t.Text = l.src[start:l.pos]
		t.DocText = strings.TrimPrefix(t.Text, "#!")
		l.tokens = append(l.tokens, t)
	} else {
		l.emit(token.Comment, l.spanFrom(start))
	}
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf }
func isIdentCont(c byte) bool  { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) lexIdentOrPrefixedString() {
	start := l.pos
	for !l.eof() && isIdentCont(l.peek()) {
		l.pos++
	}
	name := l.src[start:l.pos]
	// single-letter prefixes r/f/s immediately followed by a quote introduce
	// a prefixed string literal (§3.3).
	if len(name) == 1 && !l.eof() && (l.peek() == '"' || l.peek() == '\'') {
		switch name {
		case "r":
			l.lexQuotedDelim(token.Raw)
			return
		case "f":
			l.lexQuotedDelim(token.Interpolated)
			return
		case "s":
			l.lexQuotedDelim(token.SQLEmbed)
			return
		}
	}
	k := token.Ident
	if token.IsKeyword(name) {
		k = token.Keyword
	}
	l.emit(k, l.spanFrom(start))
}

func (l *Lexer) lexAt() {
	start := l.pos
	l.pos++ // consume '@'
	if !l.eof() && (isDigit(l.peek()) || l.peek() == '-') {
		l.lexDateTimeLiteral(start)
		return
	}
	// bare '@' introduces an annotation; the parser consumes the following
	// `{...}` itself.
	l.emit(token.At, l.spanFrom(start))
}

// lexDateTimeLiteral scans @YYYY-MM-DD[T...] forms per §4.1's ISO-8601
// handling; start points at the '@'.
func (l *Lexer) lexDateTimeLiteral(start int) {
	bodyStart := l.pos
	for !l.eof() && (isDigit(l.peek()) || strings.ContainsRune("-:+TZ.", rune(l.peek()))) {
		l.pos++
	}
	text := l.src[bodyStart:l.pos]
	kind := classifyDateTime(text)
	t := token.Token{Kind: kind, Span: l.spanFrom(start), Text: l.src[start:l.pos], DateText: text}
	if kind == token.Invalid {
		l.diags.Errorf(diagnostic.KindInvalidDateTime, l.spanFrom(start), "", text)
		t.Kind = token.Invalid
	}
	l.tokens = append(l.tokens, t)
}

func classifyDateTime(text string) token.Kind {
	if text == "" {
		return token.Invalid
	}
	if strings.Contains(text, "T") {
		return token.TimestampLit
	}
	if strings.Contains(text, ":") {
		return token.TimeLit
	}
	// plain date must be YYYY-MM-DD (optionally partial, e.g. "@2021" or "@2021-01")
	parts := strings.Split(text, "-")
	if len(parts) < 1 || len(parts[0]) != 4 {
		return token.Invalid
	}
	if len(parts) == 3 {
		if _, err := civil.ParseDate(text); err != nil {
			return token.Invalid
		}
	}
	return token.DateLit
}

// lexNumber scans integer/float literals with radix prefixes, underscore
// separators, and exponents (§4.1).
func (l *Lexer) lexNumber() {
	start := l.pos
	if l.peek() == '0' && (l.peekAt(1) == 'b' || l.peekAt(1) == 'o' || l.peekAt(1) == 'x') {
		radixChar := l.peekAt(1)
		l.pos += 2
		digitsStart := l.pos
		valid := radixDigitSet(radixChar)
		for !l.eof() && (strings.ContainsRune(valid, rune(l.peek())) || l.peek() == '_' || (l.peek() >= '0' && l.peek() <= '9')) {
			if l.peek() != '_' && !strings.ContainsRune(valid, rune(l.peek())) {
				l.diags.Errorf(diagnostic.KindInvalidDigit, l.here(), "", string(l.peek()), radixBase(radixChar))
			}
			l.pos++
		}
		if l.pos == digitsStart {
			l.diags.Errorf(diagnostic.KindInvalidDigit, l.spanFrom(start), "", "", radixBase(radixChar))
		}
		t := token.Token{Kind: token.Int, Span: l.spanFrom(start)}
		t.Text = l.src[start:l.pos]
		raw := strings.ReplaceAll(l.src[digitsStart:l.pos], "_", "")
		iv, err := strconv.ParseInt(raw, radixBase(radixChar), 64)
		if err == nil {
			t.IntVal = iv
			t.Decimal = decimalFromInt(iv)
		}
		l.tokens = append(l.tokens, t)
		return
	}

	for !l.eof() && (isDigit(l.peek()) || l.peek() == '_') {
		l.pos++
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		l.pos++
		for !l.eof() && (isDigit(l.peek()) || l.peek() == '_') {
			l.pos++
		}
	}
	if l.peek() == 'e' || l.peek() == 'E' {
		save := l.pos
		l.pos++
		if l.peek() == '+' || l.peek() == '-' {
			l.pos++
		}
		if isDigit(l.peek()) {
			isFloat = true
			for !l.eof() && isDigit(l.peek()) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	raw := strings.ReplaceAll(l.src[start:l.pos], "_", "")
	t := token.Token{Kind: token.Int, Span: l.spanFrom(start), Text: l.src[start:l.pos]}
	if isFloat {
		t.Kind = token.Float
		fv, err := strconv.ParseFloat(raw, 64)
		if err == nil {
			t.FloatVal = fv
		}
		if d, err := decimalFromString(raw); err == nil {
			t.Decimal = d
		}
	} else {
		iv, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			t.IntVal = iv
			t.Decimal = decimalFromInt(iv)
		}
	}
	l.tokens = append(l.tokens, t)
}

func radixDigitSet(c byte) string {
	switch c {
	case 'b':
		return "01"
	case 'o':
		return "01234567"
	default:
		return "0123456789abcdefABCDEF"
	}
}

func radixBase(c byte) int {
	switch c {
	case 'b':
		return 2
	case 'o':
		return 8
	default:
		return 16
	}
}

// lexQuotedDelim scans a string literal whose opening delimiter is any
// odd-length run of the same quote character (§3.3, §4.1). variant is one
// of token.Raw/Interpolated/SQLEmbed/Plain(=0) and start points just before
// the prefix letter (or the quote itself for plain strings).
func (l *Lexer) lexQuotedDelim(variant token.StringVariant) {
	start := l.pos
	if variant != token.Plain {
		start = l.pos - 1 // back up over the r/f/s prefix letter already consumed by caller context
	}
	quote := l.peek()
	delimLen := 0
	for !l.eof() && l.peek() == quote {
		delimLen++
		l.pos++
	}
	if delimLen%2 == 0 {
		// A delimiter must be an odd-length run (§3.3). An even run at the
		// head of the literal is a minimal (length-1) delimiter immediately
		// followed by its own close: "" is the empty string, not a 2-quote
		// delimiter. Un-consume the last quote so content scanning sees it
		// as the closing delimiter.
		delimLen--
		l.pos--
	}
	contentStart := l.pos
	closing := strings.Repeat(string(quote), delimLen)
	raw := variant == token.Raw
	var segs []token.Segment
	var litBuf strings.Builder
	litStart := contentStart
	flushLit := func(end int) {
		if end > litStart {
			segs = append(segs, token.Segment{Literal: true, Text: litBuf.String(), Span: l.spanFrom2(litStart, end)})
		}
		litBuf.Reset()
	}

	for {
		if l.eof() {
			l.diags.Errorf(diagnostic.KindUnterminatedString, l.spanFrom(start), "")
			break
		}
		if strings.HasPrefix(l.src[l.pos:], closing) {
			flushLit(l.pos)
			l.pos += delimLen
			break
		}
		c := l.peek()
		if !raw && c == '\\' {
			escStart := l.pos
			l.pos++
			if l.eof() {
				l.diags.Errorf(diagnostic.KindUnterminatedString, l.spanFrom(start), "")
				break
			}
			decoded, ok := l.decodeEscape()
			if !ok {
				l.diags.Errorf(diagnostic.KindInvalidEscape, l.spanFrom(escStart), "", l.src[escStart:l.pos])
			}
			litBuf.WriteString(decoded)
			continue
		}
		if (variant == token.Interpolated || variant == token.SQLEmbed) && c == '{' && l.peekAt(1) != '{' {
			flushLit(l.pos)
			l.pos++
			exprStart := l.pos
			depth := 1
			for !l.eof() && depth > 0 {
				switch l.peek() {
				case '{':
					depth++
				case '}':
					depth--
					if depth == 0 {
						break
					}
				}
				if depth > 0 {
					l.pos++
				}
			}
			exprText := l.src[exprStart:l.pos]
			if !l.eof() {
				l.pos++ // consume closing '}'
			}
			segs = append(segs, token.Segment{Literal: false, Expr: exprText, Span: l.spanFrom2(exprStart, l.pos-1)})
			litStart = l.pos
			continue
		}
		if (variant == token.Interpolated || variant == token.SQLEmbed) && c == '{' && l.peekAt(1) == '{' {
			litBuf.WriteByte('{')
			l.pos += 2
			continue
		}
		if (variant == token.Interpolated || variant == token.SQLEmbed) && c == '}' && l.peekAt(1) == '}' {
			litBuf.WriteByte('}')
			l.pos += 2
			continue
		}
		litBuf.WriteByte(c)
		l.pos++
	}

	t := token.Token{
		Span:       l.spanFrom(start),
		Text:       l.src[start:l.pos],
		StringKind: variant,
		Segments:   segs,
	}
	switch variant {
	case token.Raw:
		t.Kind = token.RawString
	case token.Interpolated:
		t.Kind = token.FString
	case token.SQLEmbed:
		t.Kind = token.SString
	default:
		t.Kind = token.PlainString
	}
	l.tokens = append(l.tokens, t)
}

func (l *Lexer) spanFrom2(start, end int) span.Span {
	return span.Span{File: l.file, Start: start, End: end}
}

// decodeEscape decodes the escape sequence starting right after the
// backslash (already consumed) and returns its expansion plus whether it
// was well-formed.
func (l *Lexer) decodeEscape() (string, bool) {
	if l.eof() {
		return "", false
	}
	c := l.advance()
	switch c {
	case 'n':
		return "\n", true
	case 't':
		return "\t", true
	case 'r':
		return "\r", true
	case '\\':
		return "\\", true
	case '"':
		return "\"", true
	case '\'':
		return "'", true
	case '0':
		return "\x00", true
	case 'x':
		if l.pos+2 <= len(l.src) {
			hex := l.src[l.pos : l.pos+2]
			if v, err := strconv.ParseUint(hex, 16, 8); err == nil {
				l.pos += 2
				return string(rune(v)), true
			}
		}
		return "", false
	case 'u':
		if !l.eof() && l.peek() == '{' {
			l.pos++
			start := l.pos
			for !l.eof() && l.peek() != '}' {
				l.pos++
			}
			hex := l.src[start:l.pos]
			if !l.eof() {
				l.pos++
			}
			if v, err := strconv.ParseUint(hex, 16, 32); err == nil {
				return string(rune(v)), true
			}
		}
		return "", false
	default:
		return string(c), false
	}
}

func (l *Lexer) lexOperator() {
	start := l.pos
	two := l.src[l.pos:min(l.pos+2, len(l.src))]
	switch two {
	case "->":
		l.pos += 2
		l.emit(token.Arrow, l.spanFrom(start))
		return
	case "=>":
		l.pos += 2
		l.emit(token.FatArrow, l.spanFrom(start))
		return
	case "==":
		l.pos += 2
		l.emit(token.Eq, l.spanFrom(start))
		return
	case "!=":
		l.pos += 2
		l.emit(token.Ne, l.spanFrom(start))
		return
	case "<=":
		l.pos += 2
		l.emit(token.Le, l.spanFrom(start))
		return
	case ">=":
		l.pos += 2
		l.emit(token.Ge, l.spanFrom(start))
		return
	case "~=":
		l.pos += 2
		l.emit(token.RegexMatch, l.spanFrom(start))
		return
	case "&&":
		l.pos += 2
		l.emit(token.And, l.spanFrom(start))
		return
	case "||":
		l.pos += 2
		l.emit(token.Or, l.spanFrom(start))
		return
	case "??":
		l.pos += 2
		l.emit(token.Coalesce, l.spanFrom(start))
		return
	case "..":
		l.pos += 2
		l.emit(token.DotDot, l.spanFrom(start))
		return
	case "//":
		l.pos += 2
		l.emit(token.DoubleSlash, l.spanFrom(start))
		return
	case "**":
		l.pos += 2
		l.emit(token.DoubleStar, l.spanFrom(start))
		return
	}
	c := l.advance()
	switch c {
	case '(':
		l.emit(token.LParen, l.spanFrom(start))
	case ')':
		l.emit(token.RParen, l.spanFrom(start))
	case '{':
		l.emit(token.LBrace, l.spanFrom(start))
	case '}':
		l.emit(token.RBrace, l.spanFrom(start))
	case '[':
		l.emit(token.LBracket, l.spanFrom(start))
	case ']':
		l.emit(token.RBracket, l.spanFrom(start))
	case ',':
		l.emit(token.Comma, l.spanFrom(start))
	case ':':
		l.emit(token.Colon, l.spanFrom(start))
	case '.':
		l.emit(token.Dot, l.spanFrom(start))
	case '|':
		l.emit(token.Pipe, l.spanFrom(start))
	case '=':
		l.emit(token.Assign, l.spanFrom(start))
	case '+':
		l.emit(token.Plus, l.spanFrom(start))
	case '-':
		l.emit(token.Minus, l.spanFrom(start))
	case '*':
		l.emit(token.Star, l.spanFrom(start))
	case '/':
		l.emit(token.Slash, l.spanFrom(start))
	case '%':
		l.emit(token.Percent, l.spanFrom(start))
	case '<':
		l.emit(token.Lt, l.spanFrom(start))
	case '>':
		l.emit(token.Gt, l.spanFrom(start))
	case '!':
		l.emit(token.Bang, l.spanFrom(start))
	default:
		// Unknown character: local recovery, skip it and let a later parse
		// error report the consequence (§4.1 "skipping one character").
		if unicode.IsSpace(rune(c)) {
			return
		}
		l.emit(token.Invalid, l.spanFrom(start))
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
