package prql

import (
	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/lower"
	"github.com/prqlc/prqlc-go/parser"
	"github.com/prqlc/prqlc-go/pl"
	"github.com/prqlc/prqlc-go/resolver"
	"github.com/prqlc/prqlc-go/rq"
	"github.com/prqlc/prqlc-go/span"
	"github.com/prqlc/prqlc-go/stdlib"
)

// Dump runs the pipeline up to the named stage ("ast", "pl" or "rq") and
// renders its internal tree, for `--target ast|pl|rq` style debugging. It
// never produces SQL; use Compile for that.
func Dump(source string, target string) (string, *diagnostic.Bag) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})

	f, _ := parser.Parse(sm, "", source, diags)
	if target == "ast" {
		return ast.Dump(f), diags
	}

	root := stdlib.Prelude()
	prog := resolver.New(root, diags).Resolve(f)
	if target == "pl" {
		return pl.Dump(prog), diags
	}
	if diags.HasErrors() {
		return "", diags
	}

	q := lower.New(prog, diags).Lower()
	if target == "rq" {
		return rq.Dump(q), diags
	}

	diags.Internal(span.Span{}, "unknown dump target %q, expected ast, pl or rq", target)
	return "", diags
}
