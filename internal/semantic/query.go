package semantic

import (
	"fmt"

	"github.com/basegraph/analystcore/internal/apperr"
)

var errEmptyQuery = apperr.New(apperr.KindBusinessValidation, fmt.Errorf("query must include at least one measure, dimension, or time dimension"))

func errFilterTarget(index int) error {
	return apperr.Newf(apperr.KindBusinessValidation, "filter[%d] must include member, dimension, measure, or timeDimension", index)
}

// Query is the strongly-typed semantic query AST (C2). Field layout and
// JSON aliases are grounded on
// original_source/.../query/query_model.py's SemanticQuery.
type Query struct {
	Measures      []string       `json:"measures,omitempty"`
	Dimensions    []string       `json:"dimensions,omitempty"`
	TimeDimensions []TimeDimension `json:"timeDimensions,omitempty"`
	Filters       []FilterItem   `json:"filters,omitempty"`
	Segments      []string       `json:"segments,omitempty"`
	Order         []OrderItem    `json:"order,omitempty"`
	Limit         *int           `json:"limit,omitempty"`
	Offset        *int           `json:"offset,omitempty"`
	Timezone      string         `json:"timezone,omitempty"`
}

// Granularity enumerates the supported time-truncation units.
type Granularity string

const (
	GranularitySecond  Granularity = "second"
	GranularityMinute  Granularity = "minute"
	GranularityHour    Granularity = "hour"
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularityQuarter Granularity = "quarter"
	GranularityYear    Granularity = "year"
)

// DateRange is either a two-element [start,end] pair, a named preset, or a
// single-operator form ("before:d", "after:d", "on:d").
type DateRange struct {
	Start  string // set when the range is a two-element [start,end] pair
	End    string
	Preset string // set when the range is a bare string (preset or single-operator form)
}

// IsRange reports whether this is a [start,end] pair rather than a preset
// string.
func (d DateRange) IsRange() bool {
	return d.Start != "" || d.End != ""
}

func (d DateRange) IsZero() bool {
	return d.Start == "" && d.End == "" && d.Preset == ""
}

// TimeDimension is a time-bucketed member reference, optionally filtered to
// a date range and optionally compared against a second date range.
//
// CompareDateRange supplements the distilled spec: it is present in
// original_source/.../query/query_model.py (compare_date_range /
// compareDateRange) and was dropped from spec.md's AST description. Nothing
// in the Non-goals excludes comparison periods, so it is carried here.
type TimeDimension struct {
	Dimension        string      `json:"dimension"`
	Granularity      Granularity `json:"granularity,omitempty"`
	DateRange        *DateRange  `json:"dateRange,omitempty"`
	CompareDateRange *DateRange  `json:"compareDateRange,omitempty"`
}

// FilterOperator enumerates the supported filter operators (spec §3).
type FilterOperator string

const (
	OpEquals        FilterOperator = "equals"
	OpNotEquals     FilterOperator = "notEquals"
	OpContains      FilterOperator = "contains"
	OpNotContains   FilterOperator = "notContains"
	OpStartsWith    FilterOperator = "startsWith"
	OpEndsWith      FilterOperator = "endsWith"
	OpGt            FilterOperator = "gt"
	OpGte           FilterOperator = "gte"
	OpLt            FilterOperator = "lt"
	OpLte           FilterOperator = "lte"
	OpBeforeDate    FilterOperator = "beforeDate"
	OpAfterDate     FilterOperator = "afterDate"
	OpInDateRange   FilterOperator = "inDateRange"
	OpNotInDateRange FilterOperator = "notInDateRange"
	OpSet           FilterOperator = "set"
	OpNotSet        FilterOperator = "notSet"
	OpIn            FilterOperator = "in"
	OpNotIn         FilterOperator = "notIn"
)

// FilterItem targets exactly one of Member, Dimension, Measure or
// TimeDimension; enforced by Validate, mirroring the Python model_validator
// in query_model.py.
type FilterItem struct {
	Member        string         `json:"member,omitempty"`
	Dimension     string         `json:"dimension,omitempty"`
	Measure       string         `json:"measure,omitempty"`
	TimeDimension string         `json:"timeDimension,omitempty"`
	Operator      FilterOperator `json:"operator"`
	Values        []string       `json:"values,omitempty"`
}

// Target returns the single member reference this filter applies to.
func (f FilterItem) Target() string {
	switch {
	case f.Member != "":
		return f.Member
	case f.Dimension != "":
		return f.Dimension
	case f.Measure != "":
		return f.Measure
	default:
		return f.TimeDimension
	}
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Member    string `json:"member"`
	Direction string `json:"direction,omitempty"` // "asc" | "desc", default asc
}

// Validate enforces query-level invariants independent of any model:
// at least one of measures/dimensions/time-dimensions is present, and
// every filter targets exactly one member kind.
func (q *Query) Validate() error {
	if len(q.Measures) == 0 && len(q.Dimensions) == 0 && len(q.TimeDimensions) == 0 {
		return errEmptyQuery
	}
	for i, f := range q.Filters {
		count := 0
		for _, s := range []string{f.Member, f.Dimension, f.Measure, f.TimeDimension} {
			if s != "" {
				count++
			}
		}
		if count == 0 {
			return errFilterTarget(i)
		}
	}
	return nil
}
