package rq

import "github.com/alecthomas/repr"

// Dump renders a lowered query as a human-readable tree, backing the
// `--target rq` debug output.
func Dump(q *Query) string {
	return repr.String(q, repr.Indent("  "), repr.OmitEmpty(true))
}
