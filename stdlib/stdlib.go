// Package stdlib builds the prelude module loaded ahead of any user source
// (§4.7): the relational transforms, and the math/text/date/aggregate
// scalar functions, each registered as a module.DkBuiltin declaration so a
// bare or dotted name resolves instead of falling back to the resolver's
// column-context tolerance. Every scalar and aggregate builtin (not the
// transforms) also carries a "sql_function"
// annotation recording its SQL spelling, mirroring the `@{...}` schema user
// code can attach to its own declarations (§4.7, resolver.applyAnnotation).
package stdlib

import "github.com/prqlc/prqlc-go/module"

// builtin is one prelude entry: its dotted path under the root module and
// the annotation(s) it carries.
type builtin struct {
	path        []string
	sqlFunction string
}

// transforms lists the relational pipeline stages every PRQL program can
// call without importing anything (§3.1, §3.6, §4.7). Their resolution
// doesn't actually go through these Decls (resolver.transformNames
// special-cases them directly, since a transform's calling convention
// doesn't fit the ordinary argument-currying one builtins use), but they're
// registered anyway so a bare `from`/`select`/... resolves to *something*
// when referenced outside a pipeline position, e.g. `let f = select`.
var transforms = []string{
	"from", "select", "derive", "filter", "sort", "take", "join", "group",
	"aggregate", "window", "append", "loop", "union", "intersect", "except",
}

// aggregates lists the row-to-scalar functions valid inside aggregate/group
// (§4.7); their SQL spelling is looked up by sqlgen's own scalarFuncs table
// (package sqlgen doesn't see the module tree RQ was lowered from, §9), so
// the annotation here exists for introspection and the debug Dump path
// rather than driving codegen directly.
var aggregates = []builtin{
	{path: []string{"sum"}, sqlFunction: "SUM"},
	{path: []string{"average"}, sqlFunction: "AVG"},
	{path: []string{"min"}, sqlFunction: "MIN"},
	{path: []string{"max"}, sqlFunction: "MAX"},
	{path: []string{"count"}, sqlFunction: "COUNT"},
	{path: []string{"all"}, sqlFunction: "BOOL_AND"},
	{path: []string{"any"}, sqlFunction: "BOOL_OR"},
	{path: []string{"concat_array"}, sqlFunction: "ARRAY_AGG"},
	{path: []string{"stddev"}, sqlFunction: "STDDEV"},
	{path: []string{"rank"}, sqlFunction: "RANK"},
	{path: []string{"row_number"}, sqlFunction: "ROW_NUMBER"},
}

var mathFuncs = []builtin{
	{path: []string{"math", "round"}, sqlFunction: "ROUND"},
	{path: []string{"math", "floor"}, sqlFunction: "FLOOR"},
	{path: []string{"math", "ceil"}, sqlFunction: "CEIL"},
	{path: []string{"math", "abs"}, sqlFunction: "ABS"},
	{path: []string{"math", "sqrt"}, sqlFunction: "SQRT"},
	{path: []string{"math", "pow"}, sqlFunction: "POWER"},
	{path: []string{"math", "pi"}, sqlFunction: "PI"},
	{path: []string{"math", "exp"}, sqlFunction: "EXP"},
	{path: []string{"math", "ln"}, sqlFunction: "LN"},
	{path: []string{"math", "log"}, sqlFunction: "LOG"},
	{path: []string{"math", "sin"}, sqlFunction: "SIN"},
	{path: []string{"math", "cos"}, sqlFunction: "COS"},
	{path: []string{"math", "tan"}, sqlFunction: "TAN"},
}

var textFuncs = []builtin{
	{path: []string{"text", "lower"}, sqlFunction: "LOWER"},
	{path: []string{"text", "upper"}, sqlFunction: "UPPER"},
	{path: []string{"text", "ltrim"}, sqlFunction: "LTRIM"},
	{path: []string{"text", "rtrim"}, sqlFunction: "RTRIM"},
	{path: []string{"text", "trim"}, sqlFunction: "TRIM"},
	{path: []string{"text", "length"}, sqlFunction: "CHAR_LENGTH"},
	{path: []string{"text", "extract"}, sqlFunction: "SUBSTRING"},
	{path: []string{"text", "replace"}, sqlFunction: "REPLACE"},
	{path: []string{"text", "starts_with"}, sqlFunction: "STARTS_WITH"},
	{path: []string{"text", "contains"}, sqlFunction: "CONTAINS"},
	{path: []string{"text", "ends_with"}, sqlFunction: "ENDS_WITH"},
}

var dateFuncs = []builtin{
	{path: []string{"date", "to_text"}, sqlFunction: "TO_CHAR"},
}

// Prelude builds the root module every resolver.Resolver is constructed
// against (§4.3's "root/stdlib module" outermost layer). It is built fresh
// per call; callers compiling many sources reuse one instance rather than
// mutating it, since Module.Insert isn't safe for concurrent writers.
func Prelude() *module.Module {
	root := module.NewModule("", nil)
	for _, name := range transforms {
		root.Insert(name, &module.Decl{Kind: module.DkBuiltin, Builtin: name})
	}
	for _, b := range aggregates {
		insert(root, b)
	}
	insertSubmodule(root, "math", mathFuncs)
	insertSubmodule(root, "text", textFuncs)
	insertSubmodule(root, "date", dateFuncs)
	return root
}

// insert registers b directly in m (used for root-level builtins, i.e.
// those with a one-segment path).
func insert(m *module.Module, b builtin) {
	m.Insert(b.path[len(b.path)-1], &module.Decl{
		Kind:        module.DkBuiltin,
		Builtin:     joinPath(b.path),
		Annotations: map[string]string{"sql_function": b.sqlFunction},
	})
}

// insertSubmodule creates (or reuses) a DkModule child named name under m
// and registers each of fns inside it.
func insertSubmodule(m *module.Module, name string, fns []builtin) {
	sub := module.NewModule(name, m)
	for _, b := range fns {
		sub.Insert(b.path[len(b.path)-1], &module.Decl{
			Kind:        module.DkBuiltin,
			Builtin:     joinPath(b.path),
			Annotations: map[string]string{"sql_function": b.sqlFunction},
		})
	}
	m.Insert(name, &module.Decl{Kind: module.DkModule, Module: sub})
}

func joinPath(path []string) string {
	out := path[0]
	for _, p := range path[1:] {
		out += "." + p
	}
	return out
}
