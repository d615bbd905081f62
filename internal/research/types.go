// Package research implements the web search (C11a) and deep research
// (C11b) agents: multi-step evidence gathering with ranking, dedup, and
// coverage/diversity stop conditions.
//
// Grounded on original_source/.../agents/web_search/agent.py and
// .../agents/deep_research/agent.py.
package research

import "strings"

// WebSearchResultItem is a single normalized web search hit.
type WebSearchResultItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
	Rank    int    `json:"rank"`
}

// WebSearchResult is the aggregated output of a web search pass.
type WebSearchResult struct {
	Query            string                `json:"query"`
	Provider         string                `json:"provider"`
	Results          []WebSearchResultItem `json:"results"`
	Warnings         []string              `json:"warnings,omitempty"`
	Answer           string                `json:"answer,omitempty"`
	Citations        []string              `json:"citations,omitempty"`
	WeakResults      bool                  `json:"weakResults"`
	FollowUpQuestion string                `json:"followUpQuestion,omitempty"`
}

// ToDocuments converts search hits into the generic document shape the deep
// research agent consumes as seed evidence, matching
// WebSearchResult.to_documents in the reference agent.
func (r WebSearchResult) ToDocuments() []map[string]any {
	docs := make([]map[string]any, len(r.Results))
	for i, item := range r.Results {
		docs[i] = map[string]any{
			"title":   item.Title,
			"snippet": item.Snippet,
			"url":     item.URL,
			"source":  item.Source,
		}
	}
	return docs
}

// ToTabular renders search hits as a columns/rows payload, matching
// WebSearchResult.to_tabular in the reference agent.
func (r WebSearchResult) ToTabular() map[string]any {
	if len(r.Results) == 0 {
		return map[string]any{
			"columns": []string{"message"},
			"rows":    [][]any{{"No web results found for '" + r.Query + "'."}},
		}
	}
	rows := make([][]any, len(r.Results))
	for i, item := range r.Results {
		rows[i] = []any{item.Rank, item.Title, item.URL, item.Snippet, item.Source}
	}
	return map[string]any{
		"columns": []string{"rank", "title", "url", "snippet", "source"},
		"rows":    rows,
	}
}

// DeepResearchFinding is one synthesized, evidence-backed claim.
type DeepResearchFinding struct {
	ID          string   `json:"id"`
	Insight     string   `json:"insight"`
	Source      string   `json:"source"`
	Confidence  string   `json:"confidence"`
	EvidenceIDs []string `json:"evidenceIds,omitempty"`
	Citations   []string `json:"citations,omitempty"`
}

// DeepResearchResult is the aggregated output of a deep research pass.
type DeepResearchResult struct {
	Question        string                `json:"question"`
	Synthesis       string                `json:"synthesis"`
	Findings        []DeepResearchFinding `json:"findings"`
	FollowUps       []string              `json:"followUps,omitempty"`
	SourceDiversity int                   `json:"sourceDiversity"`
	ElapsedMs       int64                 `json:"elapsedMs"`
	StopReason      string                `json:"stopReason,omitempty"`
}

// ToTabular renders findings as a columns/rows payload, matching
// DeepResearchResult.to_tabular in the reference agent.
func (r DeepResearchResult) ToTabular() map[string]any {
	if len(r.Findings) == 0 {
		return map[string]any{
			"columns": []string{"insight"},
			"rows":    [][]any{{r.Synthesis}},
		}
	}
	rows := make([][]any, len(r.Findings))
	for i, f := range r.Findings {
		rows[i] = []any{f.Insight, f.Source, f.Confidence, strings.Join(f.EvidenceIDs, ", "), strings.Join(f.Citations, ", ")}
	}
	return map[string]any{
		"columns": []string{"insight", "source", "confidence", "evidence_ids", "citations"},
		"rows":    rows,
	}
}
