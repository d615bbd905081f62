// Package visual implements the Visual agent dispatched by the supervisor's
// plan executor: it infers a declarative chart specification from a
// step's tabular data_payload rather than rendering anything itself.
//
// Grounded on
// _examples/original_source/langbridge/orchestrator/agents/visual_agent.py's
// column-type heuristic (numeric/categorical counts choose a chart_type),
// adapted from pandas dtype inspection to a plain [][]any row scan since no
// dataframe library is part of the retrieved dependency set.
package visual

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Spec is the declarative visualization the agent returns; analogous to the
// reference's VisualizationSpec.to_dict().
type Spec struct {
	ChartType string         `json:"chart_type"`
	X         string         `json:"x,omitempty"`
	Y         string         `json:"y,omitempty"`
	GroupBy   string         `json:"group_by,omitempty"`
	Title     string         `json:"title,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// Agent picks a chart type from a tabular payload's column shapes; it makes
// no model calls, matching the reference agent's pure heuristic.
type Agent struct{}

func New() *Agent { return &Agent{} }

// Run satisfies orchestrator.VisualRunner. data is the {"columns": []string,
// "rows": [][]any} shape produced by extractDataPayload / a research
// result's tabular projection.
func (a *Agent) Run(_ context.Context, data map[string]any, title, _, userIntent string) (map[string]any, error) {
	columns, _ := data["columns"].([]string)
	rows, _ := data["rows"].([][]any)
	if len(columns) == 0 {
		return nil, fmt.Errorf("visual: no columns in tabular payload")
	}

	numeric, categorical := classifyColumns(columns, rows)
	spec := chooseChart(columns, rows, numeric, categorical, userIntent)

	if title != "" {
		spec.Title = title
	} else if spec.ChartType != "table" {
		spec.Title = "Automated insight"
	}
	if spec.Options == nil {
		spec.Options = map[string]any{}
	}
	spec.Options["row_count"] = len(rows)

	return specToMap(spec), nil
}

// classifyColumns scans every row's value for each column, classifying a
// column numeric only if every non-nil value it holds parses as a number
// (an empty string does not)
// (matching pandas' is_numeric_dtype on a fully-populated column).
func classifyColumns(columns []string, rows [][]any) (numeric, categorical []string) {
	for i, col := range columns {
		isNumeric := true
		sawValue := false
		for _, row := range rows {
			if i >= len(row) || row[i] == nil {
				continue
			}
			sawValue = true
			if !isNumericValue(row[i]) {
				isNumeric = false
				break
			}
		}
		if isNumeric && sawValue {
			numeric = append(numeric, col)
		} else {
			categorical = append(categorical, col)
		}
	}
	return numeric, categorical
}

func isNumericValue(v any) bool {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return true
	case string:
		_, err := strconv.ParseFloat(n, 64)
		return err == nil
	default:
		return false
	}
}

// chooseChart mirrors VisualAgent._choose_chart's branch order: scatter for
// two-plus numeric columns over a sizeable sample, bar for a numeric+
// categorical pair, line when a date/time column is present, pie for a
// small two-column result, table otherwise.
func chooseChart(columns []string, rows [][]any, numeric, categorical []string, userIntent string) Spec {
	switch {
	case len(numeric) >= 2 && len(rows) > 10:
		return Spec{ChartType: "scatter", X: numeric[0], Y: numeric[1]}

	case len(numeric) >= 1 && len(categorical) >= 1:
		spec := Spec{ChartType: "bar", X: categorical[0], Y: numeric[0]}
		if len(categorical) > 1 {
			spec.GroupBy = categorical[1]
		}
		if userIntent == "time_series_comparison" {
			if dateCol := findDateColumn(columns); dateCol != "" {
				spec.ChartType = "line"
				spec.X = dateCol
			}
		}
		return spec

	case len(numeric) == 1:
		if dateCol := findDateColumn(columns); dateCol != "" {
			return Spec{ChartType: "line", X: dateCol, Y: numeric[0]}
		}
		return Spec{ChartType: "bar", X: columns[0], Y: numeric[0]}

	case len(columns) == 2 && len(rows) <= 6:
		return Spec{ChartType: "pie", X: columns[0], Y: columns[1]}

	default:
		return Spec{ChartType: "table"}
	}
}

func findDateColumn(columns []string) string {
	for _, col := range columns {
		lower := strings.ToLower(col)
		if strings.Contains(lower, "date") || strings.Contains(lower, "time") {
			return col
		}
	}
	return ""
}

func specToMap(spec Spec) map[string]any {
	out := map[string]any{"chart_type": spec.ChartType}
	if spec.X != "" {
		out["x"] = spec.X
	}
	if spec.Y != "" {
		out["y"] = spec.Y
	}
	if spec.GroupBy != "" {
		out["group_by"] = spec.GroupBy
	}
	if spec.Title != "" {
		out["title"] = spec.Title
	}
	if len(spec.Options) > 0 {
		out["options"] = spec.Options
	}
	return out
}
