package stdlib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prqlc/prqlc-go/module"
)

func TestPreludeRegistersTransforms(t *testing.T) {
	p := Prelude()
	for _, name := range []string{"from", "select", "join", "union", "loop"} {
		decl, ok := p.Get(name)
		require.True(t, ok, name)
		require.Equal(t, module.DkBuiltin, decl.Kind)
	}
}

func TestPreludeRegistersAggregates(t *testing.T) {
	p := Prelude()
	decl, ok := p.Get("count")
	require.True(t, ok)
	require.Equal(t, "COUNT", decl.Annotations["sql_function"])
}

func TestPreludeRegistersSubmodules(t *testing.T) {
	p := Prelude()
	decl, ok := p.GetPath([]string{"math", "round"})
	require.True(t, ok)
	require.Equal(t, "ROUND", decl.Annotations["sql_function"])

	decl, ok = p.GetPath([]string{"text", "upper"})
	require.True(t, ok)
	require.Equal(t, "UPPER", decl.Annotations["sql_function"])
}

func TestPreludeIsFreshPerCall(t *testing.T) {
	a := Prelude()
	b := Prelude()
	require.NotSame(t, a, b)
}
