package span

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceMapResolve(t *testing.T) {
	m := NewSourceMap()
	id := m.AddSource("query.prql", "from x\nselect y\n")

	loc := m.Resolve(id, 0)
	require.Equal(t, Location{Line: 0, Col: 0}, loc)

	loc = m.Resolve(id, 7) // 's' of select
	require.Equal(t, Location{Line: 1, Col: 0}, loc)
}

func TestSpanJoin(t *testing.T) {
	a := Span{File: 1, Start: 0, End: 3}
	b := Span{File: 1, Start: 5, End: 10}
	joined := a.Join(b)
	require.Equal(t, Span{File: 1, Start: 0, End: 10}, joined)

	require.Equal(t, a, a.Join(Span{}))
	require.Equal(t, b, Span{}.Join(b))
}

func TestSpanJoinDifferentFilesPanics(t *testing.T) {
	a := Span{File: 1, Start: 0, End: 1}
	b := Span{File: 2, Start: 0, End: 1}
	require.Panics(t, func() { a.Join(b) })
}

func TestSourceMapText(t *testing.T) {
	m := NewSourceMap()
	id := m.AddSource("q.prql", "from employees")
	require.Equal(t, "from", m.Text(Span{File: id, Start: 0, End: 4}))
}

func TestSnippetCaretAlignsUnderWideRunes(t *testing.T) {
	m := NewSourceMap()
	// "名前" is two fullwidth runes (4 display columns, 6 bytes); the caret
	// under the following "x" must be padded by display width, not byte
	// count, or it lands two columns past the character it's pointing at.
	id := m.AddSource("q.prql", "名前 x\n")
	start := len("名前 ")
	snippet := m.Snippet(Span{File: id, Start: start, End: start + 1})

	lines := strings.Split(snippet, "\n")
	require.Len(t, lines, 2)
	require.Equal(t, displayWidth("名前 ")+1, len(lines[1]))
	require.Equal(t, strings.Repeat(" ", displayWidth("名前 "))+"^", lines[1])
}

func TestDisplayWidth(t *testing.T) {
	require.Equal(t, 4, displayWidth("abcd"))
	require.Equal(t, 4, displayWidth("名前"))
	require.Equal(t, 0, displayWidth(""))
}
