package translator

import (
	"fmt"
	"strings"
)

// mysqlRules grounds identifier quoting (backticks) and MySQL's own
// DATE_FORMAT-based truncation idiom, since MySQL lacks DATE_TRUNC.
type mysqlRules struct{}

func (mysqlRules) QuoteIdent(name string) string {
	return "`" + name + "`"
}

func (r mysqlRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

var mysqlTruncFormat = map[string]string{
	"second": "%Y-%m-%d %H:%i:%s",
	"minute": "%Y-%m-%d %H:%i:00",
	"hour":   "%Y-%m-%d %H:00:00",
	"day":    "%Y-%m-%d",
	"month":  "%Y-%m-01",
	"year":   "%Y-01-01",
}

func (mysqlRules) TruncateExpr(expr, granularity string) string {
	switch granularity {
	case "week":
		return fmt.Sprintf("DATE_SUB(DATE(%s), INTERVAL WEEKDAY(%s) DAY)", expr, expr)
	case "quarter":
		return fmt.Sprintf("MAKEDATE(YEAR(%s), 1) + INTERVAL (QUARTER(%s) - 1) QUARTER", expr, expr)
	default:
		format, ok := mysqlTruncFormat[granularity]
		if !ok {
			format = mysqlTruncFormat["day"]
		}
		return fmt.Sprintf("STR_TO_DATE(DATE_FORMAT(%s, '%s'), '%s')", expr, format, format)
	}
}

func (mysqlRules) FormatDateLiteral(value string) string {
	return "'" + value + "'"
}

func (mysqlRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (mysqlRules) CurrentDateExpr() string { return "CURDATE()" }

func (mysqlRules) CurrentTimestampExpr() string { return "NOW()" }

func (mysqlRules) DateAddExpr(expr string, amount int, unit string) string {
	// MySQL's INTERVAL accepts QUARTER natively, unlike most other dialects.
	return fmt.Sprintf("DATE_ADD(%s, INTERVAL %d %s)", expr, amount, strings.ToUpper(unit))
}
