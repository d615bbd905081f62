package translator

import (
	"fmt"
	"strings"
)

// postgresRules grounds spec §8 scenario 4's worked example:
// DATE_TRUNC('DAY', t0."created_at") AS "orders__created_at_day".
type postgresRules struct{}

func (postgresRules) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (r postgresRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

func (postgresRules) TruncateExpr(expr, granularity string) string {
	return fmt.Sprintf("DATE_TRUNC('%s', %s)", strings.ToUpper(granularity), expr)
}

func (postgresRules) FormatDateLiteral(value string) string {
	return "'" + value + "'::timestamptz"
}

func (postgresRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (postgresRules) CurrentDateExpr() string { return "CURRENT_DATE" }

func (postgresRules) CurrentTimestampExpr() string { return "CURRENT_TIMESTAMP" }

func (postgresRules) DateAddExpr(expr string, amount int, unit string) string {
	// Postgres INTERVAL literals have no 'quarter' unit.
	if unit == "quarter" {
		amount *= 3
		unit = "month"
	}
	return fmt.Sprintf("(%s + INTERVAL '%d %s')", expr, amount, unit)
}
