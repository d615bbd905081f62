package orchestrator

import "testing"

func TestBuildPlanRoutes(t *testing.T) {
	tests := []struct {
		name      string
		request   PlannerRequest
		wantRoute RouteName
		wantAgent []AgentName
	}{
		{
			name: "simple analyst route",
			request: PlannerRequest{
				Question: "List total expenses for the ACME fund in 2024.",
				Constraints: PlanningConstraints{
					MaxSteps:         4,
					AllowSQLAnalyst:  true,
					AllowWebSearch:   true,
					AllowDeepResearch: true,
					PreferLowLatency: true,
				},
			},
			wantRoute: RouteSimpleAnalyst,
			wantAgent: []AgentName{AgentAnalyst},
		},
		{
			name: "analyst then visual route",
			request: PlannerRequest{
				Question:    "Show me a chart of monthly revenue by region for 2024.",
				Constraints: DefaultConstraints(),
			},
			wantRoute: RouteAnalystThenVisual,
			wantAgent: []AgentName{AgentAnalyst, AgentVisual},
		},
		{
			name: "deep research route",
			request: PlannerRequest{
				Question:    "Summarize the latest private markets outlook from PDFs and verify any performance claims.",
				Constraints: DefaultConstraints(),
			},
			wantRoute: RouteDeepResearch,
			wantAgent: []AgentName{AgentDocRetrieval},
		},
		{
			name: "clarify route for ambiguous request",
			request: PlannerRequest{
				Question:    "Show me performance.",
				Constraints: DefaultConstraints(),
			},
			wantRoute: RouteClarify,
			wantAgent: []AgentName{AgentClarify},
		},
		{
			name: "max steps constraint respected",
			request: PlannerRequest{
				Question: "Please visualise quarterly revenue by product line.",
				Constraints: PlanningConstraints{
					MaxSteps:                1,
					AllowSQLAnalyst:         true,
					AllowWebSearch:          true,
					AllowDeepResearch:       true,
					RequireVizWhenChartable: true,
				},
			},
			wantRoute: RouteSimpleAnalyst,
			wantAgent: []AgentName{AgentAnalyst},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPlan(tt.request)
			if plan.Route != tt.wantRoute {
				t.Fatalf("route = %v, want %v", plan.Route, tt.wantRoute)
			}
			if len(plan.Steps) == 0 {
				t.Fatalf("expected at least one step")
			}
			if len(tt.wantAgent) > len(plan.Steps) {
				t.Fatalf("expected at least %d steps, got %d", len(tt.wantAgent), len(plan.Steps))
			}
			for i, agent := range tt.wantAgent {
				if plan.Steps[i].Agent != agent {
					t.Errorf("step %d agent = %v, want %v", i, plan.Steps[i].Agent, agent)
				}
			}
		})
	}
}

func TestBuildPlanVisualStepReferencesAnalystStep(t *testing.T) {
	plan := BuildPlan(PlannerRequest{
		Question:    "Show me a chart of monthly revenue by region for 2024.",
		Constraints: DefaultConstraints(),
	})
	if len(plan.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(plan.Steps))
	}
	if plan.Steps[1].Input["rows_ref"] != plan.Steps[0].ID {
		t.Errorf("visual step rows_ref = %v, want %v", plan.Steps[1].Input["rows_ref"], plan.Steps[0].ID)
	}
}

func TestBuildPlanDeepResearchDisallowedByConstraints(t *testing.T) {
	constraints := DefaultConstraints()
	constraints.AllowDeepResearch = false
	plan := BuildPlan(PlannerRequest{
		Question:    "Summarize the latest market outlook reports from PDFs and emails.",
		Constraints: constraints,
	})
	if plan.Route == RouteDeepResearch {
		t.Errorf("route should not be DeepResearch when disallowed by constraints")
	}
}

func TestChooseRouteForceRouteOverride(t *testing.T) {
	constraints := DefaultConstraints()
	decision := ChooseRoute(PlannerRequest{
		Question:    "List all active clients.",
		Constraints: constraints,
		Context: map[string]any{
			"routing": map[string]any{"force_route": "WebSearch"},
		},
	})
	if decision.Route != RouteWebSearch {
		t.Fatalf("route = %v, want %v", decision.Route, RouteWebSearch)
	}
}

func TestChooseRouteAvoidRoutesExcludesPreviousRoute(t *testing.T) {
	constraints := DefaultConstraints()
	decision := ChooseRoute(PlannerRequest{
		Question:    "List total revenue by client for 2024.",
		Constraints: constraints,
		Context: map[string]any{
			"routing": map[string]any{
				"avoid_routes": []any{"SimpleAnalyst", "AnalystThenVisual"},
			},
		},
	})
	if decision.Route == RouteSimpleAnalyst || decision.Route == RouteAnalystThenVisual {
		t.Errorf("route %v should have been avoided", decision.Route)
	}
}

func TestEstimateStepCountDeepResearch(t *testing.T) {
	constraints := DefaultConstraints()
	signals := RouteSignals{HasSQLSignals: true, Chartable: true}
	if got := estimateStepCount(RouteDeepResearch, signals, constraints); got != 3 {
		t.Errorf("estimateStepCount = %d, want 3", got)
	}
}
