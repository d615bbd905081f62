package translator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/semantic"
)

// buildFilters compiles query filters, segments, and time-dimension date
// ranges into WHERE/HAVING predicate lists. Dimension and time-dimension
// predicates go to WHERE; measure predicates go to HAVING, since they apply
// to the aggregated result per spec §4.2.
func (t *Translator) buildFilters(filters []semantic.FilterItem, segments []string, timeDimensions []semantic.TimeDimension, plan *semantic.JoinPlan, dialect Dialect) ([]string, []string, error) {
	rules, err := rulesFor(dialect)
	if err != nil {
		return nil, nil, err
	}

	var where, having []string

	for _, seg := range segments {
		ref, err := t.resolver.ResolveSegment(seg)
		if err != nil {
			return nil, nil, err
		}
		where = append(where, t.rewriteExpression(ref.Condition, plan.Aliases))
	}

	for _, f := range filters {
		target := f.Target()
		isMeasure := false
		var expr string

		if f.TimeDimension != "" {
			ref, err := t.resolver.ResolveDimension(target)
			if err != nil {
				return nil, nil, err
			}
			expr = qualifyColumn(plan.Aliases[ref.Table], ref.Expression, rules)
		} else if ref, err := t.resolver.ResolveDimension(target); err == nil {
			expr = qualifyColumn(plan.Aliases[ref.Table], ref.Expression, rules)
		} else if ref, err := t.resolver.ResolveMeasureOrMetric(target); err == nil {
			isMeasure = true
			if ref.IsMetric {
				expr = t.rewriteExpression(ref.Expression, plan.Aliases)
			} else {
				expr = aggregateExpression(ref.Aggregation, qualifyColumn(plan.Aliases[ref.Table], ref.Expression, rules))
			}
		} else {
			return nil, nil, apperr.Newf(apperr.KindBusinessValidation, "unknown filter target %q", target)
		}

		cond, err := compileOperator(expr, f.Operator, f.Values, rules)
		if err != nil {
			return nil, nil, err
		}
		if isMeasure {
			having = append(having, cond)
		} else {
			where = append(where, cond)
		}
	}

	for _, td := range timeDimensions {
		ref, err := t.resolver.ResolveDimension(td.Dimension)
		if err != nil {
			return nil, nil, err
		}
		expr := qualifyColumn(plan.Aliases[ref.Table], ref.Expression, rules)
		if td.DateRange != nil {
			primary, err := resolveDateRange(td.DateRange, rules)
			if err != nil {
				return nil, nil, err
			}
			cond := dateRangeCondition(expr, primary)
			if td.CompareDateRange != nil {
				compare, err := resolveDateRange(td.CompareDateRange, rules)
				if err != nil {
					return nil, nil, err
				}
				cond = fmt.Sprintf("(%s) OR (%s)", cond, dateRangeCondition(expr, compare))
			}
			where = append(where, cond)
		}
	}

	return where, having, nil
}

// compileOperator renders a single filter operator + values against expr,
// per spec §3's operator list.
func compileOperator(expr string, op semantic.FilterOperator, values []string, rules dialectRules) (string, error) {
	switch op {
	case semantic.OpEquals:
		return fmt.Sprintf("%s = %s", expr, quoteValue(values, rules)), nil
	case semantic.OpNotEquals:
		return fmt.Sprintf("%s <> %s", expr, quoteValue(values, rules)), nil
	case semantic.OpGt:
		return fmt.Sprintf("%s > %s", expr, quoteValue(values, rules)), nil
	case semantic.OpGte:
		return fmt.Sprintf("%s >= %s", expr, quoteValue(values, rules)), nil
	case semantic.OpLt:
		return fmt.Sprintf("%s < %s", expr, quoteValue(values, rules)), nil
	case semantic.OpLte:
		return fmt.Sprintf("%s <= %s", expr, quoteValue(values, rules)), nil
	case semantic.OpContains:
		return fmt.Sprintf("%s LIKE %s", expr, likePattern(values, "%%%s%%")), nil
	case semantic.OpNotContains:
		return fmt.Sprintf("%s NOT LIKE %s", expr, likePattern(values, "%%%s%%")), nil
	case semantic.OpStartsWith:
		return fmt.Sprintf("%s LIKE %s", expr, likePattern(values, "%s%%")), nil
	case semantic.OpEndsWith:
		return fmt.Sprintf("%s LIKE %s", expr, likePattern(values, "%%%s")), nil
	case semantic.OpSet:
		return fmt.Sprintf("%s IS NOT NULL", expr), nil
	case semantic.OpNotSet:
		return fmt.Sprintf("%s IS NULL", expr), nil
	case semantic.OpIn:
		return fmt.Sprintf("%s IN (%s)", expr, quoteList(values)), nil
	case semantic.OpNotIn:
		return fmt.Sprintf("%s NOT IN (%s)", expr, quoteList(values)), nil
	case semantic.OpBeforeDate:
		if len(values) != 1 {
			return "", apperr.Newf(apperr.KindBusinessValidation, "operator %q requires exactly one value", op)
		}
		return fmt.Sprintf("%s < %s", expr, rules.FormatDateLiteral(values[0])), nil
	case semantic.OpAfterDate:
		if len(values) != 1 {
			return "", apperr.Newf(apperr.KindBusinessValidation, "operator %q requires exactly one value", op)
		}
		return fmt.Sprintf("%s > %s", expr, rules.FormatDateLiteral(values[0])), nil
	case semantic.OpInDateRange, semantic.OpNotInDateRange:
		if len(values) != 2 {
			return "", apperr.Newf(apperr.KindBusinessValidation, "operator %q requires exactly two values", op)
		}
		start, err := parseInstant(values[0])
		if err != nil {
			return "", err
		}
		end, err := parseInstant(values[1])
		if err != nil {
			return "", err
		}
		// Half-open [start, end+1day): BETWEEN is inclusive on both ends and
		// would silently drop the rest of the end day when values[1] is a
		// bare date (spec §4.2's day-window widening).
		cond := fmt.Sprintf("%s >= %s AND %s < %s",
			expr, rules.FormatDateLiteral(start.Format(time.RFC3339)),
			expr, rules.FormatDateLiteral(end.AddDate(0, 0, 1).Format(time.RFC3339)))
		if op == semantic.OpNotInDateRange {
			cond = fmt.Sprintf("NOT (%s)", cond)
		}
		return cond, nil
	default:
		return "", apperr.Newf(apperr.KindBusinessValidation, "unsupported filter operator %q", op)
	}
}

func quoteValue(values []string, rules dialectRules) string {
	if len(values) == 0 {
		return "NULL"
	}
	if _, err := strconv.ParseFloat(values[0], 64); err == nil {
		return values[0]
	}
	return "'" + strings.ReplaceAll(values[0], "'", "''") + "'"
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			quoted[i] = v
		} else {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
	}
	return strings.Join(quoted, ", ")
}

func likePattern(values []string, pattern string) string {
	if len(values) == 0 {
		return "''"
	}
	escaped := strings.ReplaceAll(values[0], "'", "''")
	return "'" + fmt.Sprintf(pattern, escaped) + "'"
}

// buildOrder compiles ORDER BY entries, resolving each member reference
// against every spelling registerOrderAliases recorded for the projected
// members (alias, metric key, bare column, and table/schema/catalog
// -qualified column — spec §4.2/§8).
func (t *Translator) buildOrder(order []semantic.OrderItem, candidates map[string]string) ([]OrderClause, error) {
	var out []OrderClause
	for _, o := range order {
		alias, ok := candidates[o.Member]
		if !ok {
			return nil, apperr.Newf(apperr.KindBusinessValidation, "order references unknown member %q", o.Member)
		}
		dir := "ASC"
		if strings.EqualFold(o.Direction, "desc") {
			dir = "DESC"
		}
		out = append(out, OrderClause{Expression: alias, Direction: dir})
	}
	return out, nil
}
