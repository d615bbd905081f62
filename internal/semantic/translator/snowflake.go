package translator

import "fmt"

// snowflakeRules grounds double-quoted identifiers and Snowflake's native
// DATE_TRUNC function (signature matches Postgres, but Snowflake prefers
// upper-case unquoted unit keywords).
type snowflakeRules struct{}

func (snowflakeRules) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (r snowflakeRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

func (snowflakeRules) TruncateExpr(expr, granularity string) string {
	return fmt.Sprintf("DATE_TRUNC(%s, %s)", bigqueryUnit(granularity), expr)
}

func (snowflakeRules) FormatDateLiteral(value string) string {
	return "TO_TIMESTAMP_NTZ('" + value + "')"
}

func (snowflakeRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (snowflakeRules) CurrentDateExpr() string { return "CURRENT_DATE()" }

func (snowflakeRules) CurrentTimestampExpr() string { return "CURRENT_TIMESTAMP()" }

func (snowflakeRules) DateAddExpr(expr string, amount int, unit string) string {
	// Snowflake's DATEADD supports 'quarter' natively.
	return fmt.Sprintf("DATEADD(%s, %d, %s)", unit, amount, expr)
}
