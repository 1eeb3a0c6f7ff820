package module

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/ast"
	"github.com/prqlc/prqlc-go/diagnostic"
	"github.com/prqlc/prqlc-go/span"
)

func TestModuleInsertAndGet(t *testing.T) {
	m := NewModule("", nil)
	m.Insert("x", &Decl{Kind: DkExpr, ExprId: 1})
	d, ok := m.Get("x")
	require.True(t, ok)
	require.Equal(t, DkExpr, d.Kind)
}

func TestModuleGetPath(t *testing.T) {
	root := NewModule("", nil)
	sub := NewModule("sub", root)
	root.Insert("sub", &Decl{Kind: DkModule, Module: sub})
	sub.Insert("y", &Decl{Kind: DkExpr, ExprId: 2})

	d, ok := root.GetPath([]string{"sub", "y"})
	require.True(t, ok)
	require.Equal(t, ast.NodeId(2), d.ExprId)
}

func TestModuleFullPath(t *testing.T) {
	root := NewModule("", nil)
	sub := NewModule("sub", root)
	leaf := NewModule("leaf", sub)
	require.Equal(t, "sub.leaf", leaf.FullPath())
}

func TestLayeredModulesResolve(t *testing.T) {
	outer := NewModule("", nil)
	outer.Insert("x", &Decl{Kind: DkExpr, ExprId: 1})
	inner := NewModule("", nil)
	inner.Insert("x", &Decl{Kind: DkExpr, ExprId: 2})

	lm := NewLayeredModules(inner, outer)
	d, _, ok := lm.Resolve("x")
	require.True(t, ok)
	require.Equal(t, ast.NodeId(2), d.ExprId)
}

func TestLoaderDetectsCycle(t *testing.T) {
	sm := span.NewSourceMap()
	diags := diagnostic.NewBag(sm, diagnostic.DisplayOptions{})
	l := NewLoader(MapSourceProvider{"a": "let x = 1"}, sm)

	require.True(t, l.Begin("a", span.Span{}, diags))
	require.False(t, l.Begin("a", span.Span{}, diags))
	require.True(t, diags.HasErrors())
}

func TestLoaderReadCaches(t *testing.T) {
	sm := span.NewSourceMap()
	l := NewLoader(MapSourceProvider{"a": "let x = 1"}, sm)
	_, f1, ok := l.Read("a")
	require.True(t, ok)
	_, f2, ok := l.Read("a")
	require.True(t, ok)
	require.Equal(t, f1, f2)
}
