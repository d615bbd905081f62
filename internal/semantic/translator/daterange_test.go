package translator

import (
	"testing"

	"github.com/basegraph/analystcore/internal/semantic"
)

func TestResolveDateRangePresets(t *testing.T) {
	rules := postgresRules{}

	tests := []struct {
		name       string
		preset     string
		wantStart  string
		wantStartOp string
		wantEnd    string
		wantEndOp  string
	}{
		{
			name: "last 30 days widens to a 30-day half-open window",
			preset: "last 30 days",
			wantStart: "(CURRENT_DATE + INTERVAL '-29 day')", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "underscore spelling normalizes the same as spaces",
			preset: "last_30_days",
			wantStart: "(CURRENT_DATE + INTERVAL '-29 day')", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "hyphen spelling normalizes the same as spaces",
			preset: "last-7-days",
			wantStart: "(CURRENT_DATE + INTERVAL '-6 day')", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "today is a one-day window",
			preset: "today",
			wantStart: "CURRENT_DATE", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "month to date starts at the truncated month",
			preset: "month_to_date",
			wantStart: "DATE_TRUNC('MONTH', CURRENT_DATE)", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "year to date starts at the truncated year",
			preset: "year to date",
			wantStart: "DATE_TRUNC('YEAR', CURRENT_DATE)", wantStartOp: ">=",
			wantEnd: "(CURRENT_DATE + INTERVAL '1 day')", wantEndOp: "<",
		},
		{
			name: "next 2 weeks is a forward-looking window",
			preset: "next 2 weeks",
			wantStart: "CURRENT_TIMESTAMP", wantStartOp: ">=",
			wantEnd: "(CURRENT_TIMESTAMP + INTERVAL '2 week')", wantEndOp: "<",
		},
		{
			name: "last quarter is the truncated quarter before this one",
			preset: "last quarter",
			// Postgres INTERVAL has no 'quarter' unit, so DateAddExpr converts
			// 1 quarter to 3 months.
			wantStart: "(DATE_TRUNC('QUARTER', CURRENT_DATE) + INTERVAL '-3 month')", wantStartOp: ">=",
			wantEnd: "DATE_TRUNC('QUARTER', CURRENT_DATE)", wantEndOp: "<",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveDateRange(&semantic.DateRange{Preset: tc.preset}, rules)
			if err != nil {
				t.Fatalf("resolveDateRange(%q): %v", tc.preset, err)
			}
			if got.startExpr != tc.wantStart || got.startOp != tc.wantStartOp {
				t.Errorf("start = %q %q, want %q %q", got.startOp, got.startExpr, tc.wantStartOp, tc.wantStart)
			}
			if got.endExpr != tc.wantEnd || got.endOp != tc.wantEndOp {
				t.Errorf("end = %q %q, want %q %q", got.endOp, got.endExpr, tc.wantEndOp, tc.wantEnd)
			}
		})
	}
}

func TestResolveDateRangeSingleOperators(t *testing.T) {
	rules := postgresRules{}

	t.Run("after is strictly greater than, not the next day", func(t *testing.T) {
		got, err := resolveDateRange(&semantic.DateRange{Preset: "after:2026-01-15"}, rules)
		if err != nil {
			t.Fatalf("resolveDateRange: %v", err)
		}
		if got.startOp != ">" {
			t.Fatalf("startOp = %q, want strict '>'", got.startOp)
		}
		if got.startExpr != "'2026-01-15T00:00:00Z'::timestamptz" {
			t.Fatalf("startExpr = %q, did not preserve the literal date's dashes", got.startExpr)
		}
	})

	t.Run("before is strictly less than the literal", func(t *testing.T) {
		got, err := resolveDateRange(&semantic.DateRange{Preset: "before:2026-01-15"}, rules)
		if err != nil {
			t.Fatalf("resolveDateRange: %v", err)
		}
		if got.endOp != "<" {
			t.Fatalf("endOp = %q, want '<'", got.endOp)
		}
	})

	t.Run("on widens to the full day", func(t *testing.T) {
		got, err := resolveDateRange(&semantic.DateRange{Preset: "on:2026-01-15"}, rules)
		if err != nil {
			t.Fatalf("resolveDateRange: %v", err)
		}
		if got.startOp != ">=" || got.endOp != "<" {
			t.Fatalf("on: should be a half-open [day, day+1) window, got %q/%q", got.startOp, got.endOp)
		}
	})
}

func TestResolveDateRangeExplicitPairWidensEndDay(t *testing.T) {
	rules := postgresRules{}
	got, err := resolveDateRange(&semantic.DateRange{Start: "2026-01-01", End: "2026-01-31"}, rules)
	if err != nil {
		t.Fatalf("resolveDateRange: %v", err)
	}
	if got.startOp != ">=" || got.endOp != "<" {
		t.Fatalf("explicit range should compile to half-open >=/<, got %q/%q", got.startOp, got.endOp)
	}
	if got.endExpr != "'2026-02-01T00:00:00Z'::timestamptz" {
		t.Fatalf("end boundary = %q, want the day after End per the inclusive-day-window rewrite", got.endExpr)
	}
}

func TestResolveDateRangeUnknownPreset(t *testing.T) {
	if _, err := resolveDateRange(&semantic.DateRange{Preset: "fortnight"}, postgresRules{}); err == nil {
		t.Fatal("expected an error for an unrecognized preset")
	}
}

func TestDateRangeConditionOmitsUnboundedSides(t *testing.T) {
	got := dateRangeCondition("t0.created_at", resolvedRange{startExpr: "CURRENT_DATE", startOp: ">="})
	want := "t0.created_at >= CURRENT_DATE"
	if got != want {
		t.Fatalf("dateRangeCondition = %q, want %q", got, want)
	}
}
