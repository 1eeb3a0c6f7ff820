// Package module implements the nested namespace tree that the resolver
// populates and looks names up in (§3.5, §4.3). A Module is a plain map of
// names to Decls; layering (the current module plus its ancestors, mirroring
// lexical scope) is resolved by LayeredModules rather than by mutating the
// tree itself.
package module

import (
	"strings"

	"github.com/prqlc/prqlc-go/ast"
)

// DeclKind discriminates the Decl sum type (§3.5).
type DeclKind int

const (
	DkModule DeclKind = iota
	DkExpr
	DkInstanceOf
	DkColumn
	DkInfer
	DkBuiltin
)

// Decl is one named entry in a Module. Exactly one of the typed fields is
// populated, selected by Kind (§9's flat-union convention).
type Decl struct {
	Kind DeclKind

	Module     *Module      // DkModule
	ExprId     ast.NodeId   // DkExpr: the PL node this name resolves to
	InstanceOf string       // DkInstanceOf: fully qualified name of the table/relation this row type instantiates
	ColumnName string       // DkColumn
	Builtin    string       // DkBuiltin: name of a stdlib primitive (e.g. "std.add")

	// Internal marks a declaration made inside an `internal` module, which
	// is visible to sibling declarations but excluded from a wildcard `*`
	// re-export to a parent (§3.5).
	Internal bool

	// Annotations holds the `@{key=value}` tags attached to this
	// declaration's statement (§4.7). The stdlib prelude uses the
	// "sql_function" key to record the per-dialect SQL spelling of a
	// builtin; user code can attach its own via `@{...}` before a `let`.
	Annotations map[string]string
}

// Module is a namespace: a name-to-Decl map plus a parent link used to
// build LayeredModules chains (§4.3).
type Module struct {
	Names  map[string]*Decl
	Parent *Module
	Name   string // last path segment, "" for the root
}

// NewModule creates an empty module named name, parented under parent (nil
// for the root module).
func NewModule(name string, parent *Module) *Module {
	return &Module{Names: map[string]*Decl{}, Parent: parent, Name: name}
}

// Insert adds or replaces decl under name.
func (m *Module) Insert(name string, decl *Decl) {
	m.Names[name] = decl
}

// Get looks up name directly in m, without consulting ancestors.
func (m *Module) Get(name string) (*Decl, bool) {
	d, ok := m.Names[name]
	return d, ok
}

// GetPath resolves a dotted path (e.g. ["a","b","c"]) by descending through
// nested DkModule decls.
func (m *Module) GetPath(path []string) (*Decl, bool) {
	if len(path) == 0 {
		return nil, false
	}
	cur := m
	for i, seg := range path {
		d, ok := cur.Get(seg)
		if !ok {
			return nil, false
		}
		if i == len(path)-1 {
			return d, true
		}
		if d.Kind != DkModule {
			return nil, false
		}
		cur = d.Module
	}
	return nil, false
}

// FullPath returns the dotted path from the root to m, e.g. "default_db.foo".
func (m *Module) FullPath() string {
	var segs []string
	for cur := m; cur != nil && cur.Name != ""; cur = cur.Parent {
		segs = append([]string{cur.Name}, segs...)
	}
	return strings.Join(segs, ".")
}

// LayeredModules is an ordered stack of modules consulted innermost-first
// when resolving a bare name, modelling PRQL's lexical scoping (§4.3): the
// current pipeline's row-tuple scope, the enclosing module chain, and
// finally the root/stdlib module.
type LayeredModules struct {
	layers []*Module
}

// NewLayeredModules builds a scope stack from innermost to outermost.
func NewLayeredModules(layers ...*Module) *LayeredModules {
	return &LayeredModules{layers: layers}
}

// Push adds a new innermost layer (e.g. entering a lambda/transform body).
func (lm *LayeredModules) Push(m *Module) *LayeredModules {
	return &LayeredModules{layers: append([]*Module{m}, lm.layers...)}
}

// Resolve looks up a single bare name across layers, innermost first.
func (lm *LayeredModules) Resolve(name string) (*Decl, *Module, bool) {
	for _, m := range lm.layers {
		if d, ok := m.Get(name); ok {
			return d, m, true
		}
	}
	return nil, nil, false
}

// ResolvePath resolves a dotted path: the first segment is resolved via
// Resolve across layers, and any remaining segments descend from there.
func (lm *LayeredModules) ResolvePath(path []string) (*Decl, bool) {
	if len(path) == 0 {
		return nil, false
	}
	head, m, ok := lm.Resolve(path[0])
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return head, true
	}
	if head.Kind != DkModule {
		return nil, false
	}
	_ = m
	return head.Module.GetPath(path[1:])
}

// Candidates returns every decl across all layers whose name matches name,
// used to build the "matches %s" list in an ambiguous-name diagnostic.
func (lm *LayeredModules) Candidates(name string) []string {
	var out []string
	for _, m := range lm.layers {
		if _, ok := m.Get(name); ok {
			full := m.FullPath()
			if full == "" {
				out = append(out, name)
			} else {
				out = append(out, full+"."+name)
			}
		}
	}
	return out
}
