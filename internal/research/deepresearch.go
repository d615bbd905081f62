package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Completer generates free-form text completions; satisfied structurally by
// common/llm.AgentClient via the same adapter pattern as internal/analyst.
type Completer interface {
	Complete(ctx context.Context, prompt string, temperature float64) (string, error)
}

// Searcher runs a web search pass; satisfied by *WebSearchAgent. Kept as a
// narrow interface so DeepResearchAgent's evidence-gathering step can be
// exercised in tests without a live HTTP provider.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int, region, safeSearch string, timeboxSeconds int) (*WebSearchResult, error)
}

// DeepResearchAgent runs a bounded evidence-gather -> synthesize workflow
// over the documents already in context plus, when a web searcher is
// configured, fresh web search passes to fill coverage gaps.
//
// Grounded on
// _examples/original_source/langbridge/.../agents/deep_research/agent.py's
// DeepResearchAgent: stop conditions are step-budget, time-budget, and
// coverage+diversity (distinct source domains), condensed from its full
// plan/execute/synthesize state machine into a single gather-then-synthesize
// pass per Research call, since the supervisor already owns the
// outer plan/reason iteration loop (C8/C9) that would otherwise duplicate
// DeepResearchAgent's own re-planning.
type DeepResearchAgent struct {
	Completer          Completer
	WebSearch          Searcher
	DefaultMaxSteps    int
	MinSourceDiversity int
}

func NewDeepResearchAgent(completer Completer, webSearch Searcher) *DeepResearchAgent {
	return &DeepResearchAgent{Completer: completer, WebSearch: webSearch, DefaultMaxSteps: 4, MinSourceDiversity: 3}
}

type evidenceItem struct {
	ID      string
	Title   string
	Snippet string
	URL     string
	Source  string
}

// Research satisfies orchestrator.DeepResearcher.
func (a *DeepResearchAgent) Research(ctx context.Context, question string, docContext map[string]any, timeboxSeconds int) (*DeepResearchResult, error) {
	start := time.Now()
	if timeboxSeconds <= 0 {
		timeboxSeconds = 30
	}
	deadline := start.Add(time.Duration(timeboxSeconds) * time.Second)

	evidence := seedEvidence(docContext)
	stopReason := "completed"

	maxSteps := a.DefaultMaxSteps
	if maxSteps <= 0 {
		maxSteps = 4
	}

	for step := 0; step < maxSteps; step++ {
		if time.Now().After(deadline) {
			stopReason = "time_budget_reached"
			break
		}
		if a.WebSearch == nil {
			stopReason = "completed"
			break
		}
		if sourceDiversity(evidence) >= a.minDiversity() && len(evidence) >= 3 {
			stopReason = "coverage_and_diversity_reached"
			break
		}

		remaining := time.Until(deadline).Seconds()
		if remaining <= 1 {
			stopReason = "time_budget_reached"
			break
		}
		result, err := a.WebSearch.Search(ctx, question, 6, "", "", int(remaining))
		if err != nil {
			stopReason = "search_error"
			break
		}
		before := len(evidence)
		evidence = append(evidence, toEvidence(result.Results)...)
		if len(evidence) == before {
			stopReason = "diminishing_returns"
			break
		}
	}
	if stopReason == "completed" && len(evidence) == 0 {
		stopReason = "no_evidence"
	}

	diversity := sourceDiversity(evidence)
	weak := diversity < a.minDiversity() || len(evidence) < 3

	result, err := a.synthesize(ctx, question, evidence, weak)
	if err != nil {
		return nil, fmt.Errorf("synthesizing research report: %w", err)
	}
	result.SourceDiversity = diversity
	result.ElapsedMs = time.Since(start).Milliseconds()
	result.StopReason = stopReason
	return result, nil
}

func (a *DeepResearchAgent) minDiversity() int {
	if a.MinSourceDiversity <= 0 {
		return 3
	}
	return a.MinSourceDiversity
}

func seedEvidence(docContext map[string]any) []evidenceItem {
	documents, _ := docContext["documents"].([]map[string]any)
	items := make([]evidenceItem, 0, len(documents))
	for i, doc := range documents {
		items = append(items, evidenceItem{
			ID:      fmt.Sprintf("doc-%d", i+1),
			Title:   stringField(doc, "title"),
			Snippet: stringField(doc, "snippet"),
			URL:     stringField(doc, "url"),
			Source:  stringField(doc, "source"),
		})
	}
	return items
}

func toEvidence(items []WebSearchResultItem) []evidenceItem {
	out := make([]evidenceItem, len(items))
	for i, item := range items {
		out[i] = evidenceItem{
			ID: fmt.Sprintf("web-%d", i+1), Title: item.Title, Snippet: item.Snippet,
			URL: item.URL, Source: item.Source,
		}
	}
	return out
}

func sourceDiversity(evidence []evidenceItem) int {
	domains := map[string]bool{}
	for _, e := range evidence {
		if e.URL == "" {
			continue
		}
		if u, err := url.Parse(e.URL); err == nil && u.Hostname() != "" {
			domains[strings.TrimPrefix(u.Hostname(), "www.")] = true
		}
	}
	return len(domains)
}

type synthesisFinding struct {
	Insight     string   `json:"insight"`
	Source      string   `json:"source"`
	Confidence  string   `json:"confidence"`
	EvidenceIDs []string `json:"evidence_ids"`
}

type synthesisResponse struct {
	Synthesis string             `json:"synthesis"`
	Findings  []synthesisFinding `json:"findings"`
	FollowUps []string           `json:"follow_ups"`
}

func (a *DeepResearchAgent) synthesize(ctx context.Context, question string, evidence []evidenceItem, weak bool) (*DeepResearchResult, error) {
	if len(evidence) == 0 {
		return &DeepResearchResult{
			Question:  question,
			Synthesis: fmt.Sprintf("No supporting evidence was found for %q.", question),
		}, nil
	}

	prompt := a.buildPrompt(question, evidence)
	raw, err := a.Completer.Complete(ctx, prompt, 0.2)
	if err != nil {
		return nil, err
	}

	var parsed synthesisResponse
	if jsonErr := json.Unmarshal([]byte(extractJSON(raw)), &parsed); jsonErr != nil {
		// Degrade to a single-finding report rather than fail the whole step;
		// the raw completion still carries the model's answer.
		return &DeepResearchResult{
			Question:  question,
			Synthesis: strings.TrimSpace(raw),
			Findings: []DeepResearchFinding{{
				Insight: strings.TrimSpace(raw), Source: evidence[0].Source, Confidence: "low",
			}},
		}, nil
	}

	findings := make([]DeepResearchFinding, len(parsed.Findings))
	for i, f := range parsed.Findings {
		citations := citationsFor(f.EvidenceIDs, evidence)
		findings[i] = DeepResearchFinding{
			ID: fmt.Sprintf("finding-%d", i+1), Insight: f.Insight, Source: f.Source,
			Confidence: f.Confidence, EvidenceIDs: f.EvidenceIDs, Citations: citations,
		}
	}

	followUps := parsed.FollowUps
	if weak {
		followUps = append(followUps, fmt.Sprintf("source diversity is below target; only %d distinct domain(s) were found", sourceDiversity(evidence)))
	}

	return &DeepResearchResult{
		Question: question, Synthesis: parsed.Synthesis, Findings: findings, FollowUps: followUps,
	}, nil
}

func citationsFor(ids []string, evidence []evidenceItem) []string {
	byID := map[string]evidenceItem{}
	for _, e := range evidence {
		byID[e.ID] = e
	}
	var citations []string
	for _, id := range ids {
		if e, ok := byID[id]; ok && e.URL != "" {
			citations = append(citations, e.URL)
		}
	}
	return citations
}

func (a *DeepResearchAgent) buildPrompt(question string, evidence []evidenceItem) string {
	var b strings.Builder
	b.WriteString("You are a research analyst synthesizing evidence into a structured report.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\n", question)
	b.WriteString("Evidence:\n")
	for _, e := range evidence {
		fmt.Fprintf(&b, "- id=%s title=%q source=%q url=%q snippet=%q\n", e.ID, e.Title, e.Source, e.URL, e.Snippet)
	}
	b.WriteString("\nRespond with JSON only, matching this shape:\n")
	b.WriteString(`{"synthesis": "...", "findings": [{"insight": "...", "source": "...", "confidence": "high|medium|low", "evidence_ids": ["..."]}], "follow_ups": ["..."]}`)
	b.WriteString("\nCite only evidence ids listed above. If evidence is thin, say so in the synthesis.\n")
	return b.String()
}

func extractJSON(raw string) string {
	trimmed := strings.TrimSpace(raw)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end < start {
		return trimmed
	}
	return trimmed[start : end+1]
}
