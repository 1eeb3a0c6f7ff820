package dialect

import (
	"fmt"
	"strings"
)

// MySQL overrides regex matching (no `~` operator; uses REGEXP_LIKE per
// E5), integer division (`DIV` keyword) and date formatting (`DATE_FORMAT`).
type MySQL struct{ generic }

func (MySQL) Name() string { return "mysql" }

func (MySQL) Capabilities() Capabilities {
	return Capabilities{ExcludeColumns: false, DistinctOn: false, NamedWindows: false, RecursiveCTE: true}
}

func (MySQL) RegexMatch(left, right string, negate bool) string {
	if negate {
		return fmt.Sprintf("NOT REGEXP_LIKE(%s, %s)", left, right)
	}
	return fmt.Sprintf("REGEXP_LIKE(%s, %s)", left, right)
}

func (MySQL) IntDiv(left, right string) string {
	return fmt.Sprintf("(%s DIV %s)", left, right)
}

func (MySQL) DateToText(expr, format string) string {
	return fmt.Sprintf("DATE_FORMAT(%s, %s)", expr, sqlStringLit(mysqlStrftime(format)))
}

// mysqlStrftime rewrites PRQL's (strftime-derived) format tokens into
// DATE_FORMAT's own %-directives where they differ (%M minutes -> %i, %B
// month name -> %M, %A weekday name -> %W); the common ones (%Y, %m, %d,
// %H, %S) already coincide.
func mysqlStrftime(format string) string { return mysqlDirectives.Replace(format) }

var mysqlDirectives = strings.NewReplacer("%%", "%%", "%M", "%i", "%B", "%M", "%A", "%W")
