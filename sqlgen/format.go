package sqlgen

import (
	"fmt"
	"strings"

	"github.com/prqlc/prqlc-go/dialect"
	"github.com/prqlc/prqlc-go/rq"
)

// selectItem is one rendered column in a statement's SELECT list. alias is
// the "AS" text to print ("" to omit it); bindName is the name later atoms
// should use to reference this column regardless of whether alias was
// printed (a plain pass-through column keeps its original name in scope).
type selectItem struct {
	expr     string
	alias    string
	bindName string
	cid      rq.CId
}

// joinClause is one rendered JOIN entry in a statement's FROM clause.
type joinClause struct {
	kind   string // "JOIN", "LEFT JOIN", ...
	source string
	cond   string
}

// recursiveUnion marks a statement as the recursive term of a `WITH
// RECURSIVE` CTE built for a `loop` transform (§4.5's RQ::Loop).
type recursiveUnion struct {
	seed string
	body string
}

// statement is one atom: either a structured SELECT (the common case) or a
// pre-rendered raw SQL fragment (used for `append`'s UNION ALL and `loop`'s
// recursive term, which don't fit the column/where/groupBy shape).
type statement struct {
	from    string // base table name, a CTE alias, or "" when raw is set
	joins   []joinClause
	columns []selectItem // nil means "SELECT *"
	aliasOf map[rq.CId]string
	where   []string
	groupBy []string
	having  []string
	orderBy []string
	limit   *int
	offset  *int

	raw       string // pre-rendered SQL body, used instead of the struct above
	recursive *recursiveUnion

	ctes []cteEntry // only set on the top-level statement returned by finish
}

func (s *statement) setColumns(cols []selectItem) {
	s.columns = cols
	s.aliasOf = make(map[rq.CId]string, len(cols))
	for _, c := range cols {
		if c.bindName != "" {
			s.aliasOf[c.cid] = c.bindName
		}
	}
}

// isBareSource reports whether this statement has accumulated no clauses at
// all, meaning it's interchangeable with its `from` name (no wrapping
// subquery/CTE needed to use it as a join/append source).
func (s *statement) isBareSource() bool {
	return s.raw == "" && s.recursive == nil && len(s.joins) == 0 && s.columns == nil &&
		len(s.where) == 0 && len(s.groupBy) == 0 && len(s.having) == 0 && len(s.orderBy) == 0 &&
		s.limit == nil && s.offset == nil
}

// render produces the final SQL text, dense or pretty per opts.Format, with
// all accumulated CTEs emitted as a leading WITH clause.
func (s *statement) render(d dialect.Dialect, opts Options) string {
	var b strings.Builder
	if len(s.ctes) > 0 {
		kw := "WITH"
		for _, c := range s.ctes {
			if c.recursive {
				kw = "WITH RECURSIVE"
				break
			}
		}
		b.WriteString(kw)
		sep(&b, opts)
		for i, c := range s.ctes {
			if i > 0 {
				b.WriteString(",")
				sep(&b, opts)
			}
			fmt.Fprintf(&b, "%s AS (", c.alias)
			b.WriteString(c.stmt.body(d, opts))
			b.WriteString(")")
		}
		sep(&b, opts)
	}
	b.WriteString(s.body(d, opts))
	if opts.SignatureComment {
		b.WriteString("\n")
		b.WriteString(signature)
	}
	return b.String()
}

// body renders this statement's own SELECT (or raw fragment), without its
// CTE prelude (which only the outermost caller of render emits).
func (s *statement) body(d dialect.Dialect, opts Options) string {
	if s.recursive != nil {
		return fmt.Sprintf("%s UNION ALL %s", s.recursive.seed, s.recursive.body)
	}
	if s.raw != "" {
		return s.raw
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if s.offset == nil {
		b.WriteString(d.TopClause(s.limit))
	}
	if len(s.columns) == 0 {
		b.WriteString("*")
	} else {
		for i, c := range s.columns {
			if i > 0 {
				b.WriteString(",")
				sep(&b, opts)
			}
			b.WriteString(c.expr)
			if c.alias != "" {
				fmt.Fprintf(&b, " AS %s", c.alias)
			}
		}
	}
	sep(&b, opts)
	fmt.Fprintf(&b, "FROM %s", s.from)
	for _, j := range s.joins {
		sep(&b, opts)
		fmt.Fprintf(&b, "%s %s ON %s", j.kind, j.source, j.cond)
	}
	if len(s.where) > 0 {
		sep(&b, opts)
		fmt.Fprintf(&b, "WHERE %s", strings.Join(s.where, " AND "))
	}
	if len(s.groupBy) > 0 {
		sep(&b, opts)
		fmt.Fprintf(&b, "GROUP BY %s", strings.Join(s.groupBy, ", "))
	}
	if len(s.having) > 0 {
		sep(&b, opts)
		fmt.Fprintf(&b, "HAVING %s", strings.Join(s.having, " AND "))
	}
	if len(s.orderBy) > 0 {
		sep(&b, opts)
		fmt.Fprintf(&b, "ORDER BY %s", strings.Join(s.orderBy, ", "))
	}
	if clause := d.LimitOffset(s.limit, s.offset); clause != "" {
		sep(&b, opts)
		b.WriteString(strings.TrimSpace(clause))
	}
	return b.String()
}

func sep(b *strings.Builder, opts Options) {
	if opts.Format {
		b.WriteString("\n")
	} else {
		b.WriteString(" ")
	}
}
