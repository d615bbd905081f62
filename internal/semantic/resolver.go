package semantic

import (
	"sort"
	"strings"

	"github.com/basegraph/analystcore/internal/apperr"
)

// MemberRef is a resolved member: a concrete (table, column, expression,
// data type) tuple. Grounded on
// original_source/.../query/resolver.py's DimensionRef/MeasureRef.
type MemberRef struct {
	Table       string
	Column      string
	Expression  string
	DataType    DimensionType
	Aggregation Aggregation // zero value for dimensions
	IsMetric    bool
	MetricKey   string
}

// SegmentRef is a resolved segment: a table-scoped boolean condition.
type SegmentRef struct {
	Table     string
	Key       string
	Condition string
}

// Resolver maps member references to physical columns and plans joins
// between tables (C3). Grounded on
// original_source/.../query/resolver.py's SemanticModelResolver.
type Resolver struct {
	model *Model

	dimensionsByKey  map[string]dimEntry
	measuresByKey    map[string]measureEntry
	dimensionsByName map[string][]dimEntry
	measuresByName   map[string][]measureEntry
	segmentsByKey    map[string]SegmentRef
	segmentsByName   map[string][]SegmentRef
	tablesByCompound map[string]string
}

type dimEntry struct {
	table string
	dim   Dimension
}

type measureEntry struct {
	table   string
	measure Measure
}

// NewResolver builds a Resolver, indexing every table's dimensions,
// measures and filters for O(1) exact/bare-name lookup.
func NewResolver(model *Model) *Resolver {
	r := &Resolver{
		model:            model,
		dimensionsByKey:  map[string]dimEntry{},
		measuresByKey:    map[string]measureEntry{},
		dimensionsByName: map[string][]dimEntry{},
		measuresByName:   map[string][]measureEntry{},
		segmentsByKey:    map[string]SegmentRef{},
		segmentsByName:   map[string][]SegmentRef{},
		tablesByCompound: map[string]string{},
	}
	for tableKey, t := range model.Tables {
		compound := t.Name
		if t.Schema != "" {
			compound = t.Schema + "." + t.Name
		}
		if compound != "" {
			r.tablesByCompound[compound] = tableKey
		}
		for _, d := range t.Dimensions {
			e := dimEntry{table: tableKey, dim: d}
			r.dimensionsByKey[tableKey+"."+d.Name] = e
			r.dimensionsByName[d.Name] = append(r.dimensionsByName[d.Name], e)
		}
		for _, m := range t.Measures {
			e := measureEntry{table: tableKey, measure: m}
			r.measuresByKey[tableKey+"."+m.Name] = e
			r.measuresByName[m.Name] = append(r.measuresByName[m.Name], e)
		}
		for key, condition := range t.Filters {
			seg := SegmentRef{Table: tableKey, Key: key, Condition: condition}
			r.segmentsByKey[tableKey+"."+key] = seg
			r.segmentsByName[key] = append(r.segmentsByName[key], seg)
		}
	}
	return r
}

// resolveCompound splits a <schema>.<table>.<column> member into its
// table key and column, using the compound-name index.
func (r *Resolver) resolveCompound(member string) (table, column string, ok bool) {
	parts := strings.Split(member, ".")
	if len(parts) < 3 {
		return "", "", false
	}
	compound := strings.Join(parts[:2], ".")
	col := strings.Join(parts[2:], ".")
	tableKey, found := r.tablesByCompound[compound]
	if !found || col == "" {
		return "", "", false
	}
	return tableKey, col, true
}

// ResolveDimension resolves a member reference to a dimension, applying the
// precedence rule of spec §4.1: exact <table>.<column> → compound
// schema-qualified → bare name.
func (r *Resolver) ResolveDimension(member string) (MemberRef, error) {
	table, dim, err := r.resolveDimensionEntry(member)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Table: table, Column: dim.Name, Expression: dim.ColumnExpression(), DataType: dim.Type}, nil
}

func (r *Resolver) resolveDimensionEntry(member string) (string, Dimension, error) {
	if strings.Contains(member, ".") {
		if e, ok := r.dimensionsByKey[member]; ok {
			return e.table, e.dim, nil
		}
		if tableKey, col, ok := r.resolveCompound(member); ok {
			if e, ok := r.dimensionsByKey[tableKey+"."+col]; ok {
				return e.table, e.dim, nil
			}
		}
		return "", Dimension{}, apperr.Newf(apperr.KindBusinessValidation, "unknown dimension %q", member)
	}

	matches := r.dimensionsByName[member]
	switch len(matches) {
	case 0:
		return "", Dimension{}, apperr.Newf(apperr.KindBusinessValidation, "unknown dimension %q", member)
	case 1:
		return matches[0].table, matches[0].dim, nil
	default:
		return "", Dimension{}, apperr.Newf(apperr.KindBusinessValidation, "ambiguous dimension %q (%s)", member, candidateTables(dimTables(matches)))
	}
}

// ResolveMeasure resolves a member reference to a measure using the same
// precedence rule as ResolveDimension.
func (r *Resolver) ResolveMeasure(member string) (MemberRef, error) {
	table, m, err := r.resolveMeasureEntry(member)
	if err != nil {
		return MemberRef{}, err
	}
	return MemberRef{Table: table, Column: m.Name, Expression: m.ColumnExpression(), DataType: m.Type, Aggregation: m.Aggregation}, nil
}

func (r *Resolver) resolveMeasureEntry(member string) (string, Measure, error) {
	if strings.Contains(member, ".") {
		if e, ok := r.measuresByKey[member]; ok {
			return e.table, e.measure, nil
		}
		if tableKey, col, ok := r.resolveCompound(member); ok {
			if e, ok := r.measuresByKey[tableKey+"."+col]; ok {
				return e.table, e.measure, nil
			}
		}
		return "", Measure{}, apperr.Newf(apperr.KindBusinessValidation, "unknown measure %q", member)
	}

	matches := r.measuresByName[member]
	switch len(matches) {
	case 0:
		return "", Measure{}, apperr.Newf(apperr.KindBusinessValidation, "unknown measure %q", member)
	case 1:
		return matches[0].table, matches[0].measure, nil
	default:
		return "", Measure{}, apperr.Newf(apperr.KindBusinessValidation, "ambiguous measure %q (%s)", member, candidateTables(measureTables(matches)))
	}
}

// ResolveMetric resolves a member reference in the metrics namespace only.
func (r *Resolver) ResolveMetric(member string) (MemberRef, error) {
	expr, ok := r.model.Metrics[member]
	if !ok {
		return MemberRef{}, apperr.Newf(apperr.KindBusinessValidation, "unknown metric %q", member)
	}
	return MemberRef{Expression: expr, IsMetric: true, MetricKey: member}, nil
}

// ResolveMeasureOrMetric tries the metrics namespace first, falling back to
// measures (spec §4.1: "measures fall back to metrics if not found" — the
// original resolver instead prefers an exact metric-name match and falls
// back to measure resolution; matched here for fidelity).
func (r *Resolver) ResolveMeasureOrMetric(member string) (MemberRef, error) {
	if _, ok := r.model.Metrics[member]; ok {
		return r.ResolveMetric(member)
	}
	ref, err := r.ResolveMeasure(member)
	if err != nil {
		if _, ok := r.model.Metrics[member]; ok {
			return r.ResolveMetric(member)
		}
		return MemberRef{}, err
	}
	return ref, nil
}

// ResolveSegment resolves a segment reference (<table>.<filter> or bare
// filter name) to its stored boolean condition.
func (r *Resolver) ResolveSegment(member string) (SegmentRef, error) {
	if strings.Contains(member, ".") {
		if seg, ok := r.segmentsByKey[member]; ok {
			return seg, nil
		}
		if tableKey, col, ok := r.resolveCompound(member); ok {
			if seg, ok := r.segmentsByKey[tableKey+"."+col]; ok {
				return seg, nil
			}
		}
		return SegmentRef{}, apperr.Newf(apperr.KindBusinessValidation, "unknown segment %q", member)
	}
	matches := r.segmentsByName[member]
	switch len(matches) {
	case 0:
		return SegmentRef{}, apperr.Newf(apperr.KindBusinessValidation, "unknown segment %q", member)
	case 1:
		return matches[0], nil
	default:
		tables := make([]string, 0, len(matches))
		for _, m := range matches {
			tables = append(tables, m.Table)
		}
		return SegmentRef{}, apperr.Newf(apperr.KindBusinessValidation, "ambiguous segment %q (%s)", member, candidateTables(tables))
	}
}

// ExtractTablesFromExpression returns the set of table keys referenced as
// `<table>.` in expr, used for metric base-table inference.
func (r *Resolver) ExtractTablesFromExpression(expr string) map[string]bool {
	tables := map[string]bool{}
	for tableKey := range r.model.Tables {
		if strings.Contains(expr, tableKey+".") {
			tables[tableKey] = true
		}
	}
	return tables
}

func dimTables(entries []dimEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.table
	}
	return out
}

func measureTables(entries []measureEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.table
	}
	return out
}

func candidateTables(tables []string) string {
	sorted := append([]string(nil), tables...)
	sort.Strings(sorted)
	return strings.Join(sorted, ", ")
}
