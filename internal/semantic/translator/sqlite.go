package translator

import "fmt"

// sqliteRules grounds double-quoted identifiers and SQLite's strftime-based
// truncation, since SQLite has no date_trunc.
type sqliteRules struct{}

func (sqliteRules) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (r sqliteRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

var sqliteStrftimeFormat = map[string]string{
	"second": "%Y-%m-%d %H:%M:%S",
	"minute": "%Y-%m-%d %H:%M:00",
	"hour":   "%Y-%m-%d %H:00:00",
	"day":    "%Y-%m-%d 00:00:00",
	"month":  "%Y-%m-01 00:00:00",
	"year":   "%Y-01-01 00:00:00",
}

func (sqliteRules) TruncateExpr(expr, granularity string) string {
	if granularity == "week" {
		return fmt.Sprintf("strftime('%%Y-%%m-%%d 00:00:00', %s, 'weekday 1', '-7 days')", expr)
	}
	format, ok := sqliteStrftimeFormat[granularity]
	if !ok {
		format = sqliteStrftimeFormat["day"]
	}
	return fmt.Sprintf("strftime('%s', %s)", format, expr)
}

func (sqliteRules) FormatDateLiteral(value string) string {
	return "'" + value + "'"
}

func (sqliteRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (sqliteRules) CurrentDateExpr() string { return "date('now')" }

func (sqliteRules) CurrentTimestampExpr() string { return "datetime('now')" }

// DateAddExpr uses datetime(...) rather than date(...) so it works whether
// expr came from CurrentDateExpr or CurrentTimestampExpr.
func (sqliteRules) DateAddExpr(expr string, amount int, unit string) string {
	if unit == "quarter" {
		amount *= 3
		unit = "month"
	}
	// SQLite date modifiers have no 'weeks' unit.
	if unit == "week" {
		amount *= 7
		unit = "day"
	}
	return fmt.Sprintf("datetime(%s, '%+d %ss')", expr, amount, unit)
}
