package prql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseOptionsOverlaysDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte("target: sql.postgres\nformat: false\n"))
	require.NoError(t, err)
	require.Equal(t, "sql.postgres", opts.Target)
	require.False(t, opts.Format)
	require.True(t, opts.SignatureComment)
}

func TestParseOptionsEmptyDocumentKeepsDefaults(t *testing.T) {
	opts, err := ParseOptions([]byte(""))
	require.NoError(t, err)
	require.Equal(t, DefaultOptions(), opts)
}

func TestLoadOptionsMissingFile(t *testing.T) {
	_, err := LoadOptions("/nonexistent/prqlc.yaml")
	require.Error(t, err)
}
