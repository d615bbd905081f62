package translator

import (
	"fmt"
	"strings"
)

// genericEmitter assembles SQL text common to every dialect, delegating
// only identifier quoting, date truncation, date literals, and limit/offset
// syntax to dialectRules. Grounded on
// original_source/.../query/translator.py's SqlTranslator.translate, which
// keeps the same shape and pushes dialect variance into a separate module.
type genericEmitter struct {
	rules dialectRules
}

func (e genericEmitter) Emit(tree *SelectTree) (string, error) {
	var b strings.Builder

	b.WriteString("SELECT ")
	selectExprs := make([]string, len(tree.Selects))
	for i, item := range tree.Selects {
		selectExprs[i] = fmt.Sprintf("%s AS %s", e.projectedExpr(item), e.rules.QuoteIdent(item.Alias))
	}
	b.WriteString(strings.Join(selectExprs, ", "))

	b.WriteString(" FROM ")
	b.WriteString(e.rules.QuoteCompound(tree.From))
	if tree.FromAlias != "" {
		b.WriteString(" AS ")
		b.WriteString(e.rules.QuoteIdent(tree.FromAlias))
	}

	for _, j := range tree.Joins {
		b.WriteString(fmt.Sprintf(" %s JOIN %s AS %s ON %s", j.Type, e.rules.QuoteCompound(j.TableRef), e.rules.QuoteIdent(j.Alias), j.OnExpr))
	}

	if len(tree.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(wrapConditions(tree.Where), " AND "))
	}

	groupBy := e.groupByExprs(tree)
	if len(groupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupBy, ", "))
	}

	if len(tree.Having) > 0 {
		b.WriteString(" HAVING ")
		b.WriteString(strings.Join(wrapConditions(tree.Having), " AND "))
	}

	if len(tree.OrderBy) > 0 {
		orderExprs := make([]string, len(tree.OrderBy))
		for i, o := range tree.OrderBy {
			orderExprs[i] = fmt.Sprintf("%s %s", e.rules.QuoteIdent(o.Expression), o.Direction)
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orderExprs, ", "))
	}

	if clause := e.rules.LimitOffset(tree.Limit, tree.Offset); clause != "" {
		b.WriteString(" ")
		b.WriteString(clause)
	}

	return b.String(), nil
}

// projectedExpr renders a SelectItem's expression, applying date truncation
// for time dimensions.
func (e genericEmitter) projectedExpr(item SelectItem) string {
	if item.IsTimeDim {
		return e.rules.TruncateExpr(item.Expression, item.Granularity)
	}
	return item.Expression
}

// groupByExprs derives GROUP BY from every non-measure projected column,
// applying the same truncation as the SELECT list so the grouped expression
// matches the projected one exactly (required by strict dialects).
func (e genericEmitter) groupByExprs(tree *SelectTree) []string {
	var out []string
	for _, item := range tree.Selects {
		if item.IsMeasure {
			continue
		}
		out = append(out, e.projectedExpr(item))
	}
	return out
}

func wrapConditions(conditions []string) []string {
	out := make([]string, len(conditions))
	for i, c := range conditions {
		out[i] = "(" + c + ")"
	}
	return out
}
