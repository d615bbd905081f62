package translator

import (
	"fmt"
	"strings"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/semantic"
)

// Translator compiles a Query against a Model using a Resolver (member
// resolution and PlanJoins) into a dialect-agnostic SelectTree (C4).
type Translator struct {
	model    *semantic.Model
	resolver *semantic.Resolver
}

func New(model *semantic.Model) *Translator {
	return &Translator{model: model, resolver: semantic.NewResolver(model)}
}

// aliasedMember carries resolution + projection metadata for one SELECT
// entry, so GROUP BY / ORDER BY can look members back up by every spelling
// they might be ordered by.
type aliasedMember struct {
	ref        semantic.MemberRef
	alias      string
	expr       string // fully table-aliased SQL expression
	isMeasure  bool
	isTimeDim  bool
	granularity string
}

// Build compiles q against the translator's model, returning a
// SelectTree. dialect sets the identifier quoting of column references and
// the text of date-range predicates and their date literals (spec §4.2);
// time-dimension truncation is left to the emitter.
func (t *Translator) Build(q *semantic.Query, dialect Dialect) (*SelectTree, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	required := map[string]bool{}
	members := []aliasedMember{}
	registerTable := func(ref semantic.MemberRef) {
		if ref.Table != "" {
			required[ref.Table] = true
		}
	}

	// Dimensions, then time-dimensions, then measures, then metrics —
	// spec §4.2 SELECT list ordering.
	for _, d := range q.Dimensions {
		ref, err := t.resolver.ResolveDimension(d)
		if err != nil {
			return nil, err
		}
		registerTable(ref)
		members = append(members, aliasedMember{ref: ref, alias: deterministicAlias(ref.Table, ref.Column, "")})
	}
	for _, td := range q.TimeDimensions {
		ref, err := t.resolver.ResolveDimension(td.Dimension)
		if err != nil {
			return nil, err
		}
		registerTable(ref)
		gran := string(td.Granularity)
		members = append(members, aliasedMember{
			ref: ref, alias: deterministicAlias(ref.Table, ref.Column, gran),
			isTimeDim: true, granularity: gran,
		})
	}
	for _, m := range q.Measures {
		ref, err := t.resolver.ResolveMeasureOrMetric(m)
		if err != nil {
			return nil, err
		}
		alias := m
		if !ref.IsMetric {
			registerTable(ref)
			alias = deterministicAlias(ref.Table, ref.Column, "")
		} else {
			for table := range t.resolver.ExtractTablesFromExpression(ref.Expression) {
				required[table] = true
			}
			alias = strings.NewReplacer(".", "_", " ", "_").Replace(ref.MetricKey)
		}
		members = append(members, aliasedMember{ref: ref, alias: alias, isMeasure: true})
	}

	for _, f := range q.Filters {
		if err := t.registerFilterTarget(f, required); err != nil {
			return nil, err
		}
	}
	for _, s := range q.Segments {
		seg, err := t.resolver.ResolveSegment(s)
		if err != nil {
			return nil, err
		}
		required[seg.Table] = true
	}

	baseTable, err := t.resolver.ChooseBaseTable(q)
	if err != nil {
		return nil, err
	}
	required[baseTable] = true

	plan, err := t.resolver.PlanJoins(baseTable, required)
	if err != nil {
		return nil, err
	}

	tree := &SelectTree{
		From:      t.tableRef(baseTable),
		FromAlias: plan.Aliases[baseTable],
	}

	for _, step := range plan.Steps {
		// The newly-discovered table is always ToAlias; which relationship
		// side it corresponds to depends on traversal direction.
		tableKey := step.Relationship.To
		if step.Reversed {
			tableKey = step.Relationship.From
		}
		onExpr := t.rewriteExpression(step.Relationship.JoinOn, plan.Aliases)
		tree.Joins = append(tree.Joins, JoinClause{
			Type:     semantic.JoinType(step.Relationship.Type),
			TableRef: t.tableRef(tableKey),
			Alias:    step.ToAlias,
			OnExpr:   onExpr,
		})
	}

	rules, err := rulesFor(dialect)
	if err != nil {
		return nil, err
	}

	orderCandidates := map[string]string{}
	for i := range members {
		mem := &members[i]
		if mem.ref.IsMetric {
			mem.expr = t.rewriteExpression(mem.ref.Expression, plan.Aliases)
		} else {
			tableAlias := plan.Aliases[mem.ref.Table]
			rawExpr := qualifyColumn(tableAlias, mem.ref.Expression, rules)
			if mem.isTimeDim {
				mem.expr = rawExpr // emitter wraps with date_trunc
			} else if mem.isMeasure {
				mem.expr = aggregateExpression(mem.ref.Aggregation, rawExpr)
			} else {
				mem.expr = rawExpr
			}
		}

		item := SelectItem{Expression: mem.expr, Alias: mem.alias, IsMeasure: mem.isMeasure, IsTimeDim: mem.isTimeDim}
		if mem.isTimeDim {
			item.Granularity = mem.granularity
		}
		tree.Selects = append(tree.Selects, item)
		registerOrderAliases(orderCandidates, *mem, t.model)
	}

	where, having, err := t.buildFilters(q.Filters, q.Segments, q.TimeDimensions, plan, dialect)
	if err != nil {
		return nil, err
	}
	tree.Where = where
	tree.Having = having

	order, err := t.buildOrder(q.Order, orderCandidates)
	if err != nil {
		return nil, err
	}
	tree.OrderBy = order

	tree.Limit = q.Limit
	tree.Offset = q.Offset
	if tree.Limit == nil && tree.Offset != nil {
		zero := 0
		tree.Limit = &zero
	}
	return tree, nil
}

func aggregateExpression(agg semantic.Aggregation, expr string) string {
	switch agg {
	case semantic.AggSum:
		return fmt.Sprintf("SUM(%s)", expr)
	case semantic.AggAvg:
		return fmt.Sprintf("AVG(%s)", expr)
	case semantic.AggMin:
		return fmt.Sprintf("MIN(%s)", expr)
	case semantic.AggMax:
		return fmt.Sprintf("MAX(%s)", expr)
	case semantic.AggCount:
		return fmt.Sprintf("COUNT(%s)", expr)
	case semantic.AggCountDistinct:
		return fmt.Sprintf("COUNT(DISTINCT %s)", expr)
	default:
		return expr
	}
}

// registerOrderAliases records every spelling an ORDER BY entry might use to
// reference mem: its projected alias, its metric key (for metrics) or bare
// column name, and the table/schema-qualified forms spec §4.2/§8 require
// (<table>.<col>, <schema>.<table>.<col>, <catalog>.<schema>.<table>.<col>).
// Grounded on original_source/.../query/resolver.py's
// _build_member_candidates. First registration for a spelling wins, so an
// earlier-projected member shadows a later one with the same name.
func registerOrderAliases(candidates map[string]string, mem aliasedMember, model *semantic.Model) {
	add := func(key string) {
		if key == "" {
			return
		}
		if _, exists := candidates[key]; !exists {
			candidates[key] = mem.alias
		}
	}

	add(mem.alias)
	if mem.ref.IsMetric {
		add(mem.ref.MetricKey)
		return
	}
	add(mem.ref.Column)

	tbl, ok := model.Tables[mem.ref.Table]
	if !ok {
		return
	}
	add(tbl.Name + "." + mem.ref.Column)
	if tbl.Schema != "" {
		add(tbl.Schema + "." + tbl.Name + "." + mem.ref.Column)
	}
	if tbl.Catalog != "" {
		add(tbl.Catalog + "." + tbl.Schema + "." + tbl.Name + "." + mem.ref.Column)
	}
}

// qualifyColumn composes alias.column, quoting the column segment per spec
// §8 scenario 4 (t0."created_at") when it is a bare identifier. Custom
// member expressions (formulas, not plain column names) are left unquoted —
// quoting a fragment of an arbitrary SQL expression would corrupt it.
func qualifyColumn(alias, column string, rules dialectRules) string {
	if isSimpleIdent(column) {
		return alias + "." + rules.QuoteIdent(column)
	}
	return alias + "." + column
}

func isSimpleIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (t *Translator) tableRef(tableKey string) string {
	tbl := t.model.Tables[tableKey]
	parts := []string{tbl.Catalog, tbl.Schema, tbl.Name}
	return joinNonEmpty(parts, ".")
}

func (t *Translator) rewriteExpression(expr string, aliases map[string]string) string {
	out := expr
	for tableKey, alias := range aliases {
		out = strings.ReplaceAll(out, tableKey+".", alias+".")
	}
	return out
}

func (t *Translator) registerFilterTarget(f semantic.FilterItem, required map[string]bool) error {
	target := f.Target()
	if ref, err := t.resolver.ResolveDimension(target); err == nil {
		required[ref.Table] = true
		return nil
	}
	if ref, err := t.resolver.ResolveMeasureOrMetric(target); err == nil {
		if !ref.IsMetric {
			required[ref.Table] = true
		} else {
			for table := range t.resolver.ExtractTablesFromExpression(ref.Expression) {
				required[table] = true
			}
		}
		return nil
	}
	return apperr.Newf(apperr.KindBusinessValidation, "unknown filter target %q", target)
}
