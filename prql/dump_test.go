package prql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumpAST(t *testing.T) {
	out, diags := Dump("from employees\nselect {first_name}", "ast")
	require.Empty(t, diags.Messages())
	require.Contains(t, out, "File")
}

func TestDumpPL(t *testing.T) {
	out, diags := Dump("from employees\nselect {first_name}", "pl")
	require.Empty(t, diags.Messages())
	require.Contains(t, out, "Program")
}

func TestDumpRQ(t *testing.T) {
	out, diags := Dump("from employees\nselect {first_name}", "rq")
	require.Empty(t, diags.Messages())
	require.Contains(t, out, "Query")
}

func TestDumpUnknownTarget(t *testing.T) {
	_, diags := Dump("from employees", "bogus")
	require.True(t, diags.HasErrors())
}
