package pl

import "github.com/alecthomas/repr"

// Dump renders a resolved program as a human-readable tree, backing the
// `--target pl` debug output.
func Dump(p *Program) string {
	return repr.String(p, repr.Indent("  "), repr.OmitEmpty(true))
}
