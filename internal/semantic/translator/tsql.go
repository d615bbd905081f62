package translator

import (
	"fmt"
	"strings"
)

// tsqlRules grounds original_source/.../query/tsql.py's quote_identifier
// (brackets), date_trunc (DATEADD/DATEDIFF idiom — T-SQL has no DATE_TRUNC),
// and OFFSET/FETCH pagination.
type tsqlRules struct{}

func (tsqlRules) QuoteIdent(name string) string {
	return "[" + name + "]"
}

func (r tsqlRules) QuoteCompound(ref string) string {
	return quoteCompoundWith(ref, r.QuoteIdent)
}

var tsqlDatePart = map[string]string{
	"second": "second", "minute": "minute", "hour": "hour",
	"day": "day", "week": "week", "month": "month",
	"quarter": "quarter", "year": "year",
}

func (tsqlRules) TruncateExpr(expr, granularity string) string {
	part := tsqlDatePart[strings.ToLower(granularity)]
	if part == "" {
		part = "day"
	}
	return fmt.Sprintf("DATEADD(%s, DATEDIFF(%s, 0, %s), 0)", part, part, expr)
}

func (tsqlRules) FormatDateLiteral(value string) string {
	return "CONVERT(datetimeoffset, '" + value + "')"
}

func (tsqlRules) LimitOffset(limit, offset *int) string {
	if limit == nil {
		return ""
	}
	off := 0
	if offset != nil {
		off = *offset
	}
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", off, *limit)
}

// CurrentDateExpr uses CAST(GETDATE() AS DATE) since T-SQL predates a native
// CURRENT_DATE.
func (tsqlRules) CurrentDateExpr() string { return "CAST(GETDATE() AS DATE)" }

func (tsqlRules) CurrentTimestampExpr() string { return "GETDATE()" }

func (tsqlRules) DateAddExpr(expr string, amount int, unit string) string {
	if unit == "quarter" {
		amount *= 3
		unit = "month"
	}
	return fmt.Sprintf("DATEADD(%s, %d, %s)", unit, amount, expr)
}
