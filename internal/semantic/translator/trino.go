package translator

import "fmt"

// trinoRules grounds ANSI double-quoted identifiers and Trino's native
// date_trunc(unit, expr) function.
type trinoRules struct{}

func (trinoRules) QuoteIdent(name string) string {
	return `"` + name + `"`
}

func (r trinoRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

func (trinoRules) TruncateExpr(expr, granularity string) string {
	return fmt.Sprintf("date_trunc('%s', %s)", granularity, expr)
}

func (trinoRules) FormatDateLiteral(value string) string {
	return "TIMESTAMP '" + value + "'"
}

func (trinoRules) LimitOffset(limit, offset *int) string {
	return standardLimitOffset(limit, offset)
}

func (trinoRules) CurrentDateExpr() string { return "current_date" }

func (trinoRules) CurrentTimestampExpr() string { return "current_timestamp" }

func (trinoRules) DateAddExpr(expr string, amount int, unit string) string {
	// Trino's date_add has no 'quarter' unit.
	if unit == "quarter" {
		amount *= 3
		unit = "month"
	}
	return fmt.Sprintf("date_add('%s', %d, %s)", unit, amount, expr)
}
