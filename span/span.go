// Package span implements the source/span bookkeeping shared by every pass
// of the compiler. A Span is a half-open byte range into exactly one Source;
// it is the sole anchor diagnostics use to point back at user text.
package span

import (
	"strings"

	"golang.org/x/text/width"
)

// FileId identifies a Source registered with a SourceMap. The zero value is
// never issued by AddSource and can be used as a "no file" sentinel.
type FileId uint32

// Source is an immutable (file id, text) pair.
type Source struct {
	Id   FileId
	Name string
	Text string
}

// Span is a half-open byte range [Start, End) into the Source identified by
// File. Invariant: every Span a pass produces refers to a Source currently
// resident in the SourceMap it was built from.
type Span struct {
	File  FileId
	Start int
	End   int
}

// Zero reports whether s is the unset span (used by synthetic nodes that
// have no source text, e.g. stdlib declarations).
func (s Span) Zero() bool {
	return s == Span{}
}

// Join returns the smallest span covering both s and other. Both must
// belong to the same file; Join panics otherwise since merging spans across
// files is always a bug in the caller.
func (s Span) Join(other Span) Span {
	if s.Zero() {
		return other
	}
	if other.Zero() {
		return s
	}
	if s.File != other.File {
		panic("span: Join across different files")
	}
	start, end := s.Start, s.End
	if other.Start < start {
		start = other.Start
	}
	if other.End > end {
		end = other.End
	}
	return Span{File: s.File, Start: start, End: end}
}

// Location is a human-facing 0-based line/column position, as used by
// Message.location in the public API (§6.1).
type Location struct {
	Line int
	Col  int
}

// SourceMap owns every Source resident in one compilation and resolves
// spans back to line/column positions for diagnostics.
type SourceMap struct {
	sources   []Source
	lineStart [][]int // per-file byte offset of the start of each line
}

// NewSourceMap returns an empty SourceMap. FileId 0 is never issued.
func NewSourceMap() *SourceMap {
	return &SourceMap{}
}

// AddSource registers text under name and returns its FileId.
func (m *SourceMap) AddSource(name, text string) FileId {
	id := FileId(len(m.sources) + 1)
	m.sources = append(m.sources, Source{Id: id, Name: name, Text: text})
	m.lineStart = append(m.lineStart, computeLineStarts(text))
	return id
}

// Source returns the Source for id, or the zero Source and false if id is
// not resident.
func (m *SourceMap) Source(id FileId) (Source, bool) {
	if id == 0 || int(id) > len(m.sources) {
		return Source{}, false
	}
	return m.sources[id-1], true
}

// Text returns the substring of the source covered by sp, or "" if sp's
// file is not resident.
func (m *SourceMap) Text(sp Span) string {
	src, ok := m.Source(sp.File)
	if !ok {
		return ""
	}
	if sp.Start < 0 || sp.End > len(src.Text) || sp.Start > sp.End {
		return ""
	}
	return src.Text[sp.Start:sp.End]
}

// Resolve converts a byte offset within file into a 0-based Location.
func (m *SourceMap) Resolve(file FileId, offset int) Location {
	if file == 0 || int(file) > len(m.lineStart) {
		return Location{}
	}
	starts := m.lineStart[file-1]
	// binary search for the last line start <= offset
	lo, hi := 0, len(starts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if starts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return Location{Line: lo, Col: offset - starts[lo]}
}

// Snippet renders a minimal multi-line excerpt of the source covered by sp,
// annotated with a caret line under the offending range. It never includes
// ANSI color; coloring is layered on by the diagnostic package.
func (m *SourceMap) Snippet(sp Span) string {
	src, ok := m.Source(sp.File)
	if !ok {
		return ""
	}
	startLoc := m.Resolve(sp.File, sp.Start)
	endLoc := m.Resolve(sp.File, sp.End)

	lines := strings.Split(src.Text, "\n")
	var b strings.Builder
	for lineNo := startLoc.Line; lineNo <= endLoc.Line && lineNo < len(lines); lineNo++ {
		line := lines[lineNo]
		b.WriteString(line)
		b.WriteByte('\n')

		careStart, careEnd := 0, len(line)
		if lineNo == startLoc.Line {
			careStart = startLoc.Col
		}
		if lineNo == endLoc.Line {
			careEnd = endLoc.Col
		}
		if careEnd <= careStart {
			careEnd = careStart + 1
		}
		if careStart > len(line) {
			careStart = len(line)
		}
		if careEnd > len(line) {
			careEnd = len(line)
		}
		if careEnd < careStart {
			careEnd = careStart
		}
		b.WriteString(strings.Repeat(" ", displayWidth(line[:careStart])))
		caretWidth := displayWidth(line[careStart:careEnd])
		if caretWidth == 0 {
			caretWidth = 1
		}
		b.WriteString(strings.Repeat("^", caretWidth))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// displayWidth sums each rune's terminal column width, treating East Asian
// wide/fullwidth runes as 2 columns and everything else as 1 so the caret
// line in a snippet lines up under CJK source text the way it would in a
// real terminal, the same distinction aretext's rendering makes between a
// glyph's byte length and its display width.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}
