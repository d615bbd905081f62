package translator

import (
	"fmt"
	"strings"
)

// standardLimitOffset renders ANSI-style LIMIT/OFFSET, shared by every
// dialect except T-SQL (which predates LIMIT and uses OFFSET/FETCH).
func standardLimitOffset(limit, offset *int) string {
	if limit == nil {
		return ""
	}
	clause := fmt.Sprintf("LIMIT %d", *limit)
	if offset != nil && *offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", *offset)
	}
	return clause
}

// dialectRules supplies the handful of primitives that vary across SQL
// dialects; genericEmitter assembles the rest of the query the same way for
// every dialect. Grounded on
// original_source/.../query/tsql.py's per-dialect quote_identifier /
// quote_compound / format_literal / date_trunc functions, generalized from
// T-SQL-only to the full dialect set spec §4.2 names.
type dialectRules interface {
	// QuoteIdent quotes a single identifier segment.
	QuoteIdent(name string) string
	// QuoteCompound quotes a dotted table/column reference, segment by
	// segment, preserving the dots.
	QuoteCompound(ref string) string
	// TruncateExpr wraps expr with this dialect's date-truncation idiom for
	// granularity (day, week, month, ...).
	TruncateExpr(expr, granularity string) string
	// FormatDateLiteral renders an ISO-8601 date/time string as a dialect
	// date literal usable in a comparison expression.
	FormatDateLiteral(value string) string
	// LimitOffset renders the trailing LIMIT/OFFSET (or dialect-equivalent
	// TOP / FETCH) clause. Returns "" when limit is nil.
	LimitOffset(limit, offset *int) string
	// CurrentDateExpr renders this dialect's current-date (no time
	// component) expression, used for day-granularity relative date ranges.
	CurrentDateExpr() string
	// CurrentTimestampExpr renders this dialect's current-timestamp
	// expression, used for week/month/quarter/year relative date ranges.
	CurrentTimestampExpr() string
	// DateAddExpr adds amount units (amount may be negative) of unit
	// ("day"|"week"|"month"|"quarter"|"year") to expr in this dialect's date
	// arithmetic idiom.
	DateAddExpr(expr string, amount int, unit string) string
}

// rulesFor returns the dialectRules for d.
func rulesFor(d Dialect) (dialectRules, error) {
	switch d {
	case Postgres:
		return postgresRules{}, nil
	case TSQL:
		return tsqlRules{}, nil
	case Trino:
		return trinoRules{}, nil
	case MySQL:
		return mysqlRules{}, nil
	case BigQuery:
		return bigqueryRules{}, nil
	case Snowflake:
		return snowflakeRules{}, nil
	case SQLite:
		return sqliteRules{}, nil
	default:
		return nil, unsupportedDialect(d)
	}
}

// quoteCompoundWith quotes each '.'-separated segment of ref with quote,
// shared by every dialect's QuoteCompound.
func quoteCompoundWith(ref string, quote func(string) string) string {
	segments := strings.Split(ref, ".")
	for i, s := range segments {
		segments[i] = quote(s)
	}
	return strings.Join(segments, ".")
}
