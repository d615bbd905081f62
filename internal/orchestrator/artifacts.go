package orchestrator

import (
	"strings"

	"github.com/basegraph/analystcore/internal/analyst"
	"github.com/basegraph/analystcore/internal/research"
)

// ToolCallRecord is one dispatched-step audit entry, appended by the
// supervisor (C8) as it executes a Plan.
type ToolCallRecord struct {
	StepID        string `json:"stepId"`
	Agent         AgentName `json:"agent"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	ResultSummary string `json:"resultSummary,omitempty"`
	DurationMs    int64  `json:"durationMs"`
	Error         string `json:"error,omitempty"`
}

// PlanExecutionArtifacts is what a single supervisor iteration collects
// across all of a plan's steps, handed to the reasoning controller (C9).
type PlanExecutionArtifacts struct {
	AnalystResult      *analyst.QueryResponse
	DataPayload        map[string]any
	Visualization      map[string]any
	ResearchResult     *research.DeepResearchResult
	WebSearchResult    *research.WebSearchResult
	ClarifyingQuestion string
	ToolCalls          []ToolCallRecord
}

func (a PlanExecutionArtifacts) hasStructuredData() bool {
	return a.AnalystResult != nil && a.AnalystResult.Result != nil
}

func (a PlanExecutionArtifacts) hasWebResults() bool {
	return a.WebSearchResult != nil && len(a.WebSearchResult.Results) > 0
}

func (a PlanExecutionArtifacts) hasResearchResults() bool {
	if a.ResearchResult == nil {
		return false
	}
	return len(a.ResearchResult.Findings) > 0 || a.ResearchResult.Synthesis != ""
}

func (a PlanExecutionArtifacts) structuredRowCount() (int, bool) {
	if a.DataPayload != nil {
		if rows, ok := a.DataPayload["rows"].([]any); ok {
			return len(rows), true
		}
	}
	if a.AnalystResult != nil && a.AnalystResult.Result != nil {
		return len(a.AnalystResult.Result.Rows), true
	}
	return 0, false
}

func isLowSignalResearch(result *research.DeepResearchResult) bool {
	if result == nil || len(result.Findings) == 0 {
		return true
	}
	allKnowledgeBase := true
	for _, f := range result.Findings {
		if f.Source != "knowledge_base" {
			allKnowledgeBase = false
			break
		}
	}
	if allKnowledgeBase {
		return true
	}
	synthesis := strings.ToLower(result.Synthesis)
	return strings.Contains(synthesis, "no documents provided") || strings.Contains(synthesis, "reviewed 0 document")
}
