package semantic

import (
	"fmt"
	"strings"

	"github.com/basegraph/analystcore/internal/apperr"
)

// JoinStep is one edge traversed by the join planner, carrying the
// relationship's declared type (which maps to join semantics, spec §4.1)
// and the alias assigned to the newly-reached table.
type JoinStep struct {
	Relationship Relationship
	FromAlias    string
	ToAlias      string
	Reversed     bool // traversed from To to From against declaration direction
}

// JoinPlan is the alias map plus the ordered sequence of edges needed to
// reach every required table from the base table.
type JoinPlan struct {
	BaseTable string
	Aliases   map[string]string // table key -> alias (t0, t1, ...)
	Steps     []JoinStep
}

// JoinType maps a relationship type to the SQL join keyword per spec §4.1:
// inner -> INNER, left|right|full -> as named, one_to_many|many_to_one|
// one_to_one -> LEFT.
func JoinType(t RelationshipType) string {
	switch t {
	case RelInner:
		return "INNER"
	case RelLeft:
		return "LEFT"
	case RelRight:
		return "RIGHT"
	case RelFull:
		return "FULL"
	case RelOneToMany, RelManyToOne, RelOneToOne:
		return "LEFT"
	default:
		return "LEFT"
	}
}

// ChooseBaseTable implements spec §4.1's base-table selection order: first
// table producing measures; else first metric table (scanned from metric
// expressions); else first time dimension table; else first dimension
// table; else first filter target table; else first segment table.
func (r *Resolver) ChooseBaseTable(q *Query) (string, error) {
	for _, m := range q.Measures {
		if _, ok := r.model.Metrics[m]; ok {
			continue
		}
		if ref, err := r.ResolveMeasure(m); err == nil {
			return ref.Table, nil
		}
	}
	for _, m := range q.Measures {
		if expr, ok := r.model.Metrics[m]; ok {
			best, bestPos := "", len(expr)
			for table := range r.ExtractTablesFromExpression(expr) {
				if pos := strings.Index(expr, table+"."); pos < bestPos || (pos == bestPos && table < best) {
					best, bestPos = table, pos
				}
			}
			if best != "" {
				return best, nil
			}
		}
	}
	for _, td := range q.TimeDimensions {
		if ref, err := r.ResolveDimension(td.Dimension); err == nil {
			return ref.Table, nil
		}
	}
	for _, d := range q.Dimensions {
		if ref, err := r.ResolveDimension(d); err == nil {
			return ref.Table, nil
		}
	}
	for _, f := range q.Filters {
		if ref, err := r.ResolveDimension(f.Target()); err == nil {
			return ref.Table, nil
		}
		if ref, err := r.ResolveMeasure(f.Target()); err == nil {
			return ref.Table, nil
		}
	}
	for _, s := range q.Segments {
		if seg, err := r.ResolveSegment(s); err == nil {
			return seg.Table, nil
		}
	}
	return "", apperr.New(apperr.KindBusinessValidation, fmt.Errorf("query references no tables; cannot choose a base table"))
}

// PlanJoins computes a minimal join plan: a BFS over the relationship graph
// rooted at baseTable discovers the shortest path to every table, then only
// the edges on a shortest path to some table in required are kept. A table
// reachable from baseTable but not required (and not on the path to a
// required table) contributes no JoinStep — including it would silently
// widen the result set, e.g. a one_to_many edge LEFT-joining in extra rows
// (spec §4.1: the plan is "the ordered sequence of edges traversed to reach
// every required table", not every reachable one).
func (r *Resolver) PlanJoins(baseTable string, required map[string]bool) (*JoinPlan, error) {
	plan := &JoinPlan{
		BaseTable: baseTable,
		Aliases:   map[string]string{baseTable: "t0"},
	}

	adjacency := map[string][]struct {
		rel      Relationship
		to       string
		reversed bool
	}{}
	for _, rel := range r.model.Relationships {
		adjacency[rel.From] = append(adjacency[rel.From], struct {
			rel      Relationship
			to       string
			reversed bool
		}{rel, rel.To, false})
		// Reverse traversal is allowed; the step records it in Reversed.
		adjacency[rel.To] = append(adjacency[rel.To], struct {
			rel      Relationship
			to       string
			reversed bool
		}{rel, rel.From, true})
	}

	// Full BFS from baseTable: every reachable table gets its shortest-path
	// parent edge recorded, regardless of whether it is required. This
	// determines reachability and path order; pruning to required tables
	// happens afterward.
	visited := map[string]bool{baseTable: true}
	discoveryOrder := []string{baseTable}
	queue := []string{baseTable}
	parentStep := map[string]JoinStep{}
	parentTable := map[string]string{}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range adjacency[cur] {
			if visited[edge.to] {
				continue
			}
			visited[edge.to] = true
			discoveryOrder = append(discoveryOrder, edge.to)
			parentTable[edge.to] = cur
			parentStep[edge.to] = JoinStep{
				Relationship: edge.rel,
				FromAlias:    "", // filled in once the table's alias is assigned
				ToAlias:      "",
				Reversed:     edge.reversed,
			}
			queue = append(queue, edge.to)
		}
	}

	for table := range required {
		if !visited[table] {
			return nil, apperr.Newf(apperr.KindUnreachableTable, "table %q is unreachable from base table %q", table, baseTable)
		}
	}

	// Walk each required table's parent chain back to baseTable, collecting
	// every table on the way — the union of these shortest paths is exactly
	// the set of tables this plan needs to join.
	keep := map[string]bool{}
	for table := range required {
		for t := table; t != baseTable; t = parentTable[t] {
			keep[t] = true
		}
	}

	// Assign aliases and emit steps in BFS discovery order restricted to
	// kept tables, so alias numbering stays deterministic across calls with
	// the same model/required set.
	for _, table := range discoveryOrder {
		if table == baseTable || !keep[table] {
			continue
		}
		alias := fmt.Sprintf("t%d", len(plan.Aliases))
		plan.Aliases[table] = alias
	}
	for _, table := range discoveryOrder {
		if table == baseTable || !keep[table] {
			continue
		}
		step := parentStep[table]
		step.FromAlias = plan.Aliases[parentTable[table]]
		step.ToAlias = plan.Aliases[table]
		plan.Steps = append(plan.Steps, step)
	}

	return plan, nil
}
