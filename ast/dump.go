package ast

import "github.com/alecthomas/repr"

// Dump renders f as a human-readable tree, backing the `prql.Dump` debug
// entry point used by the `--target ast` CLI flag.
func Dump(f *File) string {
	return repr.String(f, repr.Indent("  "), repr.OmitEmpty(true))
}
