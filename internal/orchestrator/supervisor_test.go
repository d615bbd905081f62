package orchestrator

import (
	"context"
	"testing"

	"github.com/basegraph/analystcore/internal/analyst"
	"github.com/basegraph/analystcore/internal/connectors"
	"github.com/basegraph/analystcore/internal/research"
)

type fakeAnalyst struct {
	responses []analyst.QueryResponse
	calls     int
}

func (f *fakeAnalyst) Run(_ context.Context, _ analyst.QueryRequest) analyst.QueryResponse {
	resp := f.responses[f.calls]
	if f.calls < len(f.responses)-1 {
		f.calls++
	}
	return resp
}

type fakeVisual struct {
	called bool
}

func (f *fakeVisual) Run(_ context.Context, _ map[string]any, _ string, _ string, _ string) (map[string]any, error) {
	f.called = true
	return map[string]any{"chart_type": "line"}, nil
}

func TestSupervisorHandleSimpleAnalystStopsWhenRowsReturned(t *testing.T) {
	fa := &fakeAnalyst{responses: []analyst.QueryResponse{
		{
			SQLCanonical:  "SELECT 1",
			SQLExecutable: "SELECT 1",
			Dialect:       "postgres",
			Result: &connectors.QueryResult{
				Columns: []string{"total"},
				Rows:    [][]any{{42}},
			},
		},
	}}
	sup := NewSupervisor(fa, nil, nil, nil, NewReasoningController(4), nil)

	result, err := sup.Handle(context.Background(), HandleRequest{
		UserQuery: "List total expenses for the ACME fund in 2024.",
		Constraints: &PlanningConstraints{
			MaxSteps:          4,
			AllowSQLAnalyst:   true,
			AllowWebSearch:    true,
			AllowDeepResearch: true,
			PreferLowLatency:  true,
		},
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.Dialect != "postgres" {
		t.Errorf("Dialect = %q, want postgres", result.Dialect)
	}
	if fa.calls != 0 {
		t.Errorf("expected analyst to be called once (no retry), got %d follow-up calls", fa.calls)
	}
	rows, ok := result.Result["rows"].([][]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected 1 row in result, got %#v", result.Result["rows"])
	}
}

func TestSupervisorHandleRetriesOnAnalystErrorThenFallsBackToWebSearch(t *testing.T) {
	fa := &fakeAnalyst{responses: []analyst.QueryResponse{
		{Dialect: "postgres", Error: "syntax error near FROM"},
	}}
	fws := &fakeWebSearch{result: &research.WebSearchResult{
		Query: "List total revenue for 2024.",
		Results: []research.WebSearchResultItem{
			{Title: "Revenue report", URL: "https://example.com/r", Snippet: "text"},
		},
	}}
	sup := NewSupervisor(fa, nil, nil, fws, NewReasoningController(4), nil)

	result, err := sup.Handle(context.Background(), HandleRequest{
		UserQuery: "List total revenue for 2024.",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if fws.calls == 0 {
		t.Errorf("expected the analyst error to trigger a web search fallback")
	}
	if result.Diagnostics["error"] == "" {
		t.Errorf("expected diagnostics to still carry an error placeholder once the route fell back")
	}
}

func TestSupervisorHandleVisualStepReceivesAnalystRows(t *testing.T) {
	fa := &fakeAnalyst{responses: []analyst.QueryResponse{
		{
			Dialect: "postgres",
			Result: &connectors.QueryResult{
				Columns: []string{"month", "revenue"},
				Rows:    [][]any{{"2024-01", 100}},
			},
		},
	}}
	fv := &fakeVisual{}
	sup := NewSupervisor(fa, fv, nil, nil, NewReasoningController(4), nil)

	result, err := sup.Handle(context.Background(), HandleRequest{
		UserQuery: "Show me a chart of monthly revenue by region for 2024.",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if !fv.called {
		t.Fatalf("expected visual agent to be invoked")
	}
	if result.Visualization["chart_type"] != "line" {
		t.Errorf("Visualization = %#v, want chart_type=line", result.Visualization)
	}
}

func TestSupervisorHandleClarifyRouteStopsImmediately(t *testing.T) {
	sup := NewSupervisor(nil, nil, nil, nil, NewReasoningController(4), nil)

	result, err := sup.Handle(context.Background(), HandleRequest{
		UserQuery: "Show me performance.",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if result.Diagnostics["clarifying_question"] == nil {
		t.Errorf("expected a clarifying question in diagnostics")
	}
}

func TestSupervisorHandlePromotesWebSearchToDeepResearch(t *testing.T) {
	fws := &fakeWebSearch{result: &research.WebSearchResult{
		Query: "private markets outlook",
		Results: []research.WebSearchResultItem{
			{Title: "Outlook 2024", URL: "https://example.com/a", Snippet: "text"},
		},
	}}
	fdr := &fakeDeepResearch{result: &research.DeepResearchResult{
		Question:  "private markets outlook",
		Synthesis: "Markets are resilient.",
		Findings: []research.DeepResearchFinding{
			{Insight: "growth", Source: "web", Confidence: "medium"},
		},
	}}
	sup := NewSupervisor(nil, nil, fdr, fws, NewReasoningController(4), nil)

	_, err := sup.Handle(context.Background(), HandleRequest{
		UserQuery: "Summarize the latest private markets outlook from PDFs and verify any performance claims.",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if fdr.calls == 0 {
		t.Errorf("expected deep research agent to be invoked")
	}
}

type fakeWebSearch struct {
	result *research.WebSearchResult
	calls  int
}

func (f *fakeWebSearch) Search(_ context.Context, _ string, _ int, _, _ string, _ int) (*research.WebSearchResult, error) {
	f.calls++
	return f.result, nil
}

type fakeDeepResearch struct {
	result *research.DeepResearchResult
	calls  int
}

func (f *fakeDeepResearch) Research(_ context.Context, _ string, _ map[string]any, _ int) (*research.DeepResearchResult, error) {
	f.calls++
	return f.result, nil
}
