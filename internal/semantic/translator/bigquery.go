package translator

import (
	"fmt"
	"strings"
)

// bigqueryRules grounds backtick-quoted identifiers and BigQuery's
// TIMESTAMP_TRUNC function.
type bigqueryRules struct{}

func (bigqueryRules) QuoteIdent(name string) string {
	return "`" + name + "`"
}

func (r bigqueryRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

func (bigqueryRules) TruncateExpr(expr, granularity string) string {
	return fmt.Sprintf("TIMESTAMP_TRUNC(%s, %s)", expr, bigqueryUnit(granularity))
}

func bigqueryUnit(granularity string) string {
	switch granularity {
	case "second", "minute", "hour", "day", "week", "month", "quarter", "year":
		return strings.ToUpper(granularity)
	default:
		return "DAY"
	}
}

func (bigqueryRules) FormatDateLiteral(value string) string {
	return "TIMESTAMP('" + value + "')"
}

func (bigqueryRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (bigqueryRules) CurrentDateExpr() string { return "CURRENT_DATE()" }

func (bigqueryRules) CurrentTimestampExpr() string { return "CURRENT_TIMESTAMP()" }

// DateAddExpr assumes expr is DATE-typed (as CurrentDateExpr/CurrentTimestampExpr
// both are, for this relative-range usage): BigQuery's DATE_ADD/DATE_SUB only
// accept a non-negative offset, so a negative amount switches functions.
func (bigqueryRules) DateAddExpr(expr string, amount int, unit string) string {
	if unit == "quarter" {
		amount *= 3
		unit = "month"
	}
	fn, n := "DATE_ADD", amount
	if amount < 0 {
		fn, n = "DATE_SUB", -amount
	}
	return fmt.Sprintf("%s(%s, INTERVAL %d %s)", fn, expr, n, strings.ToUpper(unit))
}
