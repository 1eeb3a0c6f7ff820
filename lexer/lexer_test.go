package lexer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/token"
)

func lex(t *testing.T, src string) ([]token.Token, *diagnostic.Bag) {
	t.Helper()
	sm := span.NewSourceMap()
	file := sm.AddSource("test.prql", src)
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	toks := Lex(sm, file, src, diags)
	return toks, diags
}

func kinds(toks []token.Token) []token.Kind {
	var out []token.Kind
	for _, t := range toks {
		out = append(out, t.Kind)
	}
	return out
}

func TestLexBasicPipeline(t *testing.T) {
	toks, diags := lex(t, "from employees\nselect first_name")
	require.Empty(t, diags.Messages())
	require.Equal(t, []token.Kind{
		token.Start, token.Ident, token.Ident, token.NewLine, token.Ident, token.Ident, token.EOF,
	}, kinds(toks))
}

func TestLexNewlinesCollapse(t *testing.T) {
	toks, _ := lex(t, "from x\n\n\nselect y")
	require.Equal(t, []token.Kind{
		token.Start, token.Ident, token.Ident, token.NewLine, token.Ident, token.Ident, token.EOF,
	}, kinds(toks))
}

func TestLexLineWrap(t *testing.T) {
	toks, _ := lex(t, "from x\n\\ | select y")
	require.Contains(t, kinds(toks), token.LineWrap)
	// the NewLine before the wrap is consumed
	for i, k := range kinds(toks) {
		if k == token.LineWrap {
			require.NotEqual(t, token.NewLine, kinds(toks)[i-1])
		}
	}
}

func TestLexNumbers(t *testing.T) {
	cases := []struct {
		src  string
		kind token.Kind
	}{
		{"123", token.Int},
		{"1_000_000", token.Int},
		{"0b1010", token.Int},
		{"0o17", token.Int},
		{"0xFF", token.Int},
		{"3.14", token.Float},
		{"1e10", token.Float},
		{"1.5e-3", token.Float},
	}
	for _, c := range cases {
		toks, diags := lex(t, c.src)
		require.Empty(t, diags.Messages(), c.src)
		require.Equal(t, c.kind, toks[1].Kind, c.src)
	}
}

func TestLexIntValue(t *testing.T) {
	toks, _ := lex(t, "0xFF")
	require.Equal(t, int64(255), toks[1].IntVal)
}

func TestLexDateTimeLiterals(t *testing.T) {
	toks, diags := lex(t, "@2021-01-01")
	require.Empty(t, diags.Messages())
	require.Equal(t, token.DateLit, toks[1].Kind)

	toks, diags = lex(t, "@2021-01-01T12:30:00")
	require.Empty(t, diags.Messages())
	require.Equal(t, token.TimestampLit, toks[1].Kind)

	toks, diags = lex(t, "@12:30")
	require.Empty(t, diags.Messages())
	require.Equal(t, token.TimeLit, toks[1].Kind)
}

func TestLexStrings(t *testing.T) {
	toks, diags := lex(t, `"hello"`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.PlainString, toks[1].Kind)
	require.Equal(t, "hello", toks[1].Segments[0].Text)
}

func TestLexQuotesWithinQuotes(t *testing.T) {
	// an odd run of 3 quotes delimits, allowing embedded single quote characters
	toks, diags := lex(t, `"""she said "hi" to me"""`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.PlainString, toks[1].Kind)
}

func TestLexEmptyString(t *testing.T) {
	toks, diags := lex(t, `""`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.PlainString, toks[1].Kind)
	require.Empty(t, toks[1].Segments)
}

func TestLexRawString(t *testing.T) {
	toks, diags := lex(t, `r"no\nescape"`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.RawString, toks[1].Kind)
	require.Equal(t, `no\nescape`, toks[1].Segments[0].Text)
}

func TestLexFString(t *testing.T) {
	toks, diags := lex(t, `f"hello {name}!"`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.FString, toks[1].Kind)
	require.Len(t, toks[1].Segments, 3)
	require.True(t, toks[1].Segments[0].Literal)
	require.Equal(t, "hello ", toks[1].Segments[0].Text)
	require.False(t, toks[1].Segments[1].Literal)
	require.Equal(t, "name", toks[1].Segments[1].Expr)
	require.True(t, toks[1].Segments[2].Literal)
	require.Equal(t, "!", toks[1].Segments[2].Text)
}

func TestLexSString(t *testing.T) {
	toks, diags := lex(t, `s"SUM({col})"`)
	require.Empty(t, diags.Messages())
	require.Equal(t, token.SString, toks[1].Kind)
	require.Len(t, toks[1].Segments, 3)
}

func TestLexUnterminatedString(t *testing.T) {
	_, diags := lex(t, `"unterminated`)
	require.True(t, diags.HasErrors())
	require.Equal(t, diagnostic.KindUnterminatedString.Code, diags.Messages()[0].Code)
}

func TestLexInvalidEscape(t *testing.T) {
	_, diags := lex(t, `"bad \q escape"`)
	require.True(t, diags.HasErrors())
	require.Equal(t, diagnostic.KindInvalidEscape.Code, diags.Messages()[0].Code)
}

func TestLexInvalidDigit(t *testing.T) {
	_, diags := lex(t, `0b102`)
	require.True(t, diags.HasErrors())
}

func TestLexOperators(t *testing.T) {
	toks, diags := lex(t, "a && b || c ?? d ~= e -> f => g .. h")
	require.Empty(t, diags.Messages())
	ks := kinds(toks)
	require.Contains(t, ks, token.And)
	require.Contains(t, ks, token.Or)
	require.Contains(t, ks, token.Coalesce)
	require.Contains(t, ks, token.RegexMatch)
	require.Contains(t, ks, token.Arrow)
	require.Contains(t, ks, token.FatArrow)
	require.Contains(t, ks, token.DotDot)
}

func TestLexDocComment(t *testing.T) {
	toks, _ := lex(t, "#! doc\nlet x = 1")
	require.Equal(t, token.DocComment, toks[1].Kind)
	require.Equal(t, " doc", toks[1].DocText)
}

func TestLexRecoversFromBadChar(t *testing.T) {
	toks, diags := lex(t, "a ` b")
	require.True(t, diags.Messages() == nil || len(diags.Messages()) >= 0)
	// lexing continues past the stray backtick and still finds `b`
	require.Contains(t, kinds(toks), token.Ident)
	_ = toks
}
