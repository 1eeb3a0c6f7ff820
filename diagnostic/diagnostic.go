// Package diagnostic defines the Message type returned across the public
// API (§6.1) and the stable, machine-readable error Kind registry every
// pass reports against. Kinds are package-level errors.NewKind values, one
// per failure mode.
package diagnostic

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	goerrors "gopkg.in/src-d/go-errors.v1"

	"github.com/prqlc/prqlc-go/span"
)

// Severity classifies a Message (§7).
type Severity string

const (
	Error   Severity = "Error"
	Warning Severity = "Warning"
	Lint    Severity = "Lint"
)

// Kind wraps a go-errors.v1 kind together with the stable machine code
// reported in Message.Code. Passes never branch on the English Reason text;
// Code is the only thing a host should match against.
type Kind struct {
	Code    string
	errKind *goerrors.Kind
}

// NewKind registers a new diagnostic kind with the given stable code and
// printf-style message template, mirroring auth.go's
// `errors.NewKind("user does not have permission: %s")`.
func NewKind(code, template string) *Kind {
	return &Kind{Code: code, errKind: goerrors.NewKind(template)}
}

// New builds an error value carrying this Kind; args are interpolated into
// the Kind's template.
func (k *Kind) New(args ...interface{}) error {
	return k.errKind.New(args...)
}

// Is reports whether err was produced by this Kind (possibly wrapped).
func (k *Kind) Is(err error) bool {
	return k.errKind.Is(err)
}

// Well-known kinds, one per failure mode in the compiler's diagnostic surface.
var (
	// Lex errors
	KindUnterminatedString = NewKind("lex/unterminated-string", "unterminated string literal")
	KindInvalidEscape      = NewKind("lex/invalid-escape", "invalid escape sequence %q")
	KindInvalidDigit       = NewKind("lex/invalid-digit", "invalid digit %q for base %d literal")
	KindInvalidDateTime    = NewKind("lex/invalid-datetime", "invalid date/time literal %q")

	// Parse errors
	KindUnexpectedToken  = NewKind("parse/unexpected-token", "unexpected token %s, expected %s")
	KindUnmatchedDelim   = NewKind("parse/unmatched-delimiter", "unmatched %q")
	KindMissingExpr      = NewKind("parse/missing-expr", "expected an expression")
	KindMalformedFuncDef = NewKind("parse/malformed-func-def", "malformed function definition: %s")
	KindMalformedAnnot   = NewKind("parse/malformed-annotation", "malformed annotation: %s")

	// Resolution errors
	KindUnknownName       = NewKind("resolve/unknown-name", "unknown name %s")
	KindAmbiguousName     = NewKind("resolve/ambiguous-name", "ambiguous name %s: matches %s")
	KindWrongArity        = NewKind("resolve/wrong-arity", "function %s expects %d arguments, got %d")
	KindTypeMismatch      = NewKind("resolve/type-mismatch", "expected type %s, found %s")
	KindDuplicateColumn   = NewKind("resolve/duplicate-column", "duplicate column %s in select")
	KindMissingColumn     = NewKind("resolve/missing-column", "no such column %s")
	KindThatOutsideJoin   = NewKind("resolve/that-outside-join", "`that` used outside of a join")
	KindCyclicModule      = NewKind("resolve/cyclic-module", "cyclic module reference: %s")
	KindExpectedRelation  = NewKind("resolve/expected-relation", "expected a relation, found a scalar expression")
	KindExpectedScalar    = NewKind("resolve/expected-scalar", "expected a scalar expression, found a relation")

	// Lowering errors (bug class)
	KindInternal = NewKind("internal", "internal compiler error: %s")

	// Backend errors
	KindUnsupportedFeature = NewKind("backend/unsupported-feature", "feature not supported by dialect %s: %s")

	// Header errors
	KindUnsupportedVersion = NewKind("header/unsupported-version", "query requires PRQL version %s, compiler implements %s")
)

// Message is the wire type returned from the public API (§6.1).
type Message struct {
	Kind     Severity `json:"kind"`
	Code     string   `json:"code,omitempty"`
	Reason   string   `json:"reason"`
	Hint     string   `json:"hint,omitempty"`
	Span     *ByteSpan `json:"span,omitempty"`
	Display  string   `json:"display,omitempty"`
	Location *Location `json:"location,omitempty"`
}

// ByteSpan is the [start,end) byte range reported in Message.Span.
type ByteSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Location is the 0-based line/col range reported in Message.Location.
type Location struct {
	StartLine int `json:"start_line"`
	StartCol  int `json:"start_col"`
	EndLine   int `json:"end_line"`
	EndCol    int `json:"end_col"`
}

// DisplayOptions controls ANSI coloring of Message.Display (§6.2).
type DisplayOptions struct {
	// Color is "auto" (default), "always", or "never". "auto" honours
	// CLICOLOR/NO_COLOR via color.NoColor, set by fatih/color at init time.
	Color string
}

// Bag accumulates diagnostics across passes; it is never used for control
// flow between passes (§9 "Diagnostics as data").
type Bag struct {
	messages []Message
	sm       *span.SourceMap
	disp     DisplayOptions

	// id correlates every diagnostic logged for one compilation with the
	// logrus trace/debug lines the resolver and module loader emit for the
	// same compile call, the way a request id threads through a server's
	// access log.
	id uuid.UUID
}

// NewBag creates a diagnostic sink bound to sm for span-to-location
// resolution and display rendering.
func NewBag(sm *span.SourceMap, disp DisplayOptions) *Bag {
	return &Bag{sm: sm, disp: disp, id: uuid.New()}
}

// CorrelationID returns this compilation's identifier, suitable for
// tagging logrus fields alongside the Bag so a host can line up log output
// with the diagnostics eventually returned.
func (b *Bag) CorrelationID() string {
	return b.id.String()
}

// Add appends a fully-formed diagnostic for the given span.
func (b *Bag) Add(sev Severity, kind *Kind, sp span.Span, hint string, err error) {
	msg := Message{
		Kind:   sev,
		Reason: err.Error(),
	}
	if kind != nil {
		msg.Code = kind.Code
	}
	if hint != "" {
		msg.Hint = hint
	}
	if !sp.Zero() {
		msg.Span = &ByteSpan{Start: sp.Start, End: sp.End}
		start := b.sm.Resolve(sp.File, sp.Start)
		end := b.sm.Resolve(sp.File, sp.End)
		msg.Location = &Location{StartLine: start.Line, StartCol: start.Col, EndLine: end.Line, EndCol: end.Col}
		msg.Display = b.render(sp)
	}
	b.messages = append(b.messages, msg)
}

// Errorf appends an Error-severity diagnostic built from kind.New(args...).
func (b *Bag) Errorf(kind *Kind, sp span.Span, hint string, args ...interface{}) {
	b.Add(Error, kind, sp, hint, kind.New(args...))
}

// Warnf appends a Warning-severity diagnostic.
func (b *Bag) Warnf(kind *Kind, sp span.Span, hint string, args ...interface{}) {
	b.Add(Warning, kind, sp, hint, kind.New(args...))
}

// Internal appends an internal-bug diagnostic (§7 "Fatal internal errors").
func (b *Bag) Internal(sp span.Span, format string, args ...interface{}) {
	b.Errorf(KindInternal, sp, "", fmt.Sprintf(format, args...))
}

// InternalErr wraps a lower-level Go error with pkg/errors before turning it
// into an internal-bug diagnostic, matching engine.go's own
// `errors.Wrap(err, "unable to ...: "+err2.Error())` idiom: the wrapped
// error's stack-trace-capable chain is what %+v would print if this ever
// escapes to a host's own error log, while Reason stays the flat message
// text the rest of the diagnostic surface expects.
func (b *Bag) InternalErr(sp span.Span, context string, err error) {
	wrapped := pkgerrors.Wrap(err, context)
	b.Add(Error, KindInternal, sp, "", wrapped)
}

// HasErrors reports whether any Error-severity message was recorded; per
// §7 a non-empty error-kind diagnostic list means `output` must be empty.
func (b *Bag) HasErrors() bool {
	for _, m := range b.messages {
		if m.Kind == Error {
			return true
		}
	}
	return false
}

// Messages returns all accumulated diagnostics in the order reported.
func (b *Bag) Messages() []Message {
	return b.messages
}

func (b *Bag) render(sp span.Span) string {
	snippet := b.sm.Snippet(sp)
	if snippet == "" {
		return ""
	}
	useColor := color.NoColor == false
	switch b.disp.Color {
	case "always":
		useColor = true
	case "never":
		useColor = false
	}
	if !useColor {
		return snippet
	}
	return color.New(color.FgRed, color.Bold).Sprint(snippet)
}
