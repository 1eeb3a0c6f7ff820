// Package prql exposes the four idempotent compiler entry points and their
// sequential composition (§6.1): prql_to_pl, pl_to_rq, rq_to_sql and
// compile. Nothing here suspends or blocks; a single Compile call is a pure
// function from source text to a CompileResult (§5 "concurrency model").
//
// Each stage has two forms: the native Go struct form (PrqlToPL/PlToRQ/
// RQToSQL, for an in-process caller already linked against pl/rq) and a
// JSON-in/JSON-out form (PrqlToPLJSON/PLJSONToRQJSON/RQJSONToSQL, §6.4) for
// a caller across an FFI or RPC boundary that only wants to pass bytes.
package prql

import (
	"strings"

	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/dialect"
	"github.com/prqlc/prqlc-go/lower"
	"github.com/prqlc/prqlc-go/parser"
	"github.com/prqlc/prqlc-go/pl"
	"github.com/prqlc/prqlc-go/resolver"
	"github.com/prqlc/prqlc-go/rq"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/sqlgen"
	"github.com/prqlc/prqlc-go/stdlib"
)

// Version is the compiler's own PRQL version, compared against a source
// file's `prql version:"x.y.z"` header (§6.3); a header requesting a newer
// version is a hard error.
const Version = "0.13.0"

// Options configures one compilation (§6.2). The zero value is not usable
// directly; call DefaultOptions to get the documented defaults.
type Options struct {
	Format           bool   // pretty-print the emitted SQL; default true
	Target           string // dialect name, e.g. "sql.postgres"; default "sql.any"
	SignatureComment bool   // append the compiler's signature trailer; default true
	Color            string // deprecated, ignored: color handling belongs to the caller

	Display diagnostic.DisplayOptions
}

// DefaultOptions returns Options with §6.2's documented defaults.
func DefaultOptions() Options {
	return Options{Format: true, Target: "sql.any", SignatureComment: true}
}

// dialectFor resolves opts.Target (stripping the "sql." prefix §6.3
// mandates) to a concrete dialect.Dialect, falling back to the generic
// ANSI baseline for an empty or unrecognised target rather than failing
// the whole compilation over a cosmetic option.
func dialectFor(target string) dialect.Dialect {
	name := strings.TrimPrefix(target, "sql.")
	if name == "" {
		name = "any"
	}
	if d, ok := dialect.Lookup(name); ok {
		return d
	}
	return dialect.NewGeneric()
}

// CompileResult is the aggregate return value of Compile (§6.1).
type CompileResult struct {
	Output   string
	Messages []diagnostic.Message
}

// ResultDestroy is a no-op provided for hosts ported from an FFI boundary
// where result values need an explicit free (§6.1's `result_destroy`); Go's
// GC already reclaims a CompileResult once it's unreferenced.
func ResultDestroy(*CompileResult) {}

// PrqlToPL parses and resolves source, returning the resolved PL program
// (prql_to_pl, §6.1). Diagnostics accumulate in the returned bag regardless
// of whether any are errors; check bag.HasErrors() before trusting prog.
func PrqlToPL(source string) (*pl.Program, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	return prqlToPL(sm, source, diagnostic.DisplayOptions{})
}

func prqlToPL(sm *span.SourceMap, source string, disp diagnostic.DisplayOptions) (*pl.Program, *diagnostic.Bag) {
	diags := diagnostic.NewBag(sm, disp)
	f, _ := parser.Parse(sm, "", source, diags)
	if f.Header != nil && verifyVersion(f.Header.Version) != nil {
		diags.Errorf(diagnostic.KindUnsupportedVersion, f.Header.Span, "", f.Header.Version, Version)
		return &pl.Program{}, diags
	}
	root := stdlib.Prelude()
	prog := resolver.New(root, diags).Resolve(f)
	return prog, diags
}

// PlToRQ lowers an already-resolved PL program to RQ (pl_to_rq, §6.1).
func PlToRQ(prog *pl.Program) (*rq.Query, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	q := lower.New(prog, diags).Lower()
	return q, diags
}

// PrqlToPLJSON is prql_to_pl's JSON-in/JSON-out form (§6.1, §6.4): it runs
// PrqlToPL and serialises the result with pl.Program.ToJSON, for a caller
// on the other side of an FFI or RPC boundary rather than linked directly
// against this package's Go types.
func PrqlToPLJSON(source string) ([]byte, *diagnostic.Bag) {
	prog, diags := PrqlToPL(source)
	data, err := prog.ToJSON()
	if err != nil {
		diags.Internal(span.Span{}, "marshalling PL to JSON: %s", err)
		return nil, diags
	}
	return data, diags
}

// PLJSONToRQJSON is pl_to_rq's JSON-in/JSON-out form (§6.1, §6.4): it
// deserialises plJSON (as produced by PrqlToPLJSON), lowers it, and
// re-serialises the RQ result.
func PLJSONToRQJSON(plJSON []byte) ([]byte, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	prog, err := pl.ProgramFromJSON(plJSON)
	if err != nil {
		diags.Internal(span.Span{}, "unmarshalling PL JSON: %s", err)
		return nil, diags
	}
	q := lower.New(prog, diags).Lower()
	data, err := q.ToJSON()
	if err != nil {
		diags.Internal(span.Span{}, "marshalling RQ to JSON: %s", err)
		return nil, diags
	}
	return data, diags
}

// RQToSQL renders RQ to a SQL string targeting opts.Target (rq_to_sql,
// §6.1). Returns "" once diags.HasErrors() (§7's "empty output on error").
func RQToSQL(q *rq.Query, opts Options) (string, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, opts.Display)
	d := dialectFor(opts.Target)
	sql := sqlgen.Generate(q, d, sqlgen.Options{Format: opts.Format, SignatureComment: opts.SignatureComment}, diags)
	return sql, diags
}

// RQJSONToSQL is rq_to_sql's JSON-in form (§6.1, §6.4): it deserialises
// rqJSON (as produced by PLJSONToRQJSON) and renders it with RQToSQL.
func RQJSONToSQL(rqJSON []byte, opts Options) (string, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, opts.Display)
	q, err := rq.QueryFromJSON(rqJSON)
	if err != nil {
		diags.Internal(span.Span{}, "unmarshalling RQ JSON: %s", err)
		return "", diags
	}
	return RQToSQL(q, opts)
}

// Compile runs the full Lexer -> Parser -> Resolver -> Lower -> SQL
// pipeline in one call without round-tripping through JSON between stages
// (compile, §6.1).
func Compile(source string, opts Options) CompileResult {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, opts.Display)

	f, fileId := parser.Parse(sm, "", source, diags)
	target := opts.Target
	if f.Header != nil {
		if err := verifyVersion(f.Header.Version); err != nil {
			diags.Errorf(diagnostic.KindUnsupportedVersion, f.Header.Span, "", f.Header.Version, Version)
			return CompileResult{Messages: diags.Messages()}
		}
		if f.Header.Target != "" {
			target = f.Header.Target
		}
	}
	_ = fileId

	root := stdlib.Prelude()
	prog := resolver.New(root, diags).Resolve(f)
	if diags.HasErrors() {
		return CompileResult{Messages: diags.Messages()}
	}

	q := lower.New(prog, diags).Lower()
	if diags.HasErrors() {
		return CompileResult{Messages: diags.Messages()}
	}

	d := dialectFor(target)
	sql := sqlgen.Generate(q, d, sqlgen.Options{Format: opts.Format, SignatureComment: opts.SignatureComment}, diags)
	if diags.HasErrors() {
		return CompileResult{Messages: diags.Messages()}
	}
	return CompileResult{Output: sql, Messages: diags.Messages()}
}
