package orchestrator

import (
	"context"
	"regexp"
	"strings"
)

// ReasoningDecision is the outcome of one reasoning-controller evaluation:
// whether the supervisor should run another planning iteration, and what
// context overrides (force_route, entity_resolution, ...) to carry into it.
type ReasoningDecision struct {
	ContinuePlanning bool
	UpdatedContext   map[string]any
	Rationale        string
}

// entityAliasMap lists the surface forms of each entity family the
// no-rows-returned heuristic looks for, grounded on _ENTITY_ALIAS_MAP.
var entityAliasMap = map[string][]string{
	"store":   {"store", "shop", "outlet", "branch", "location"},
	"client":  {"client", "customer", "account"},
	"product": {"product", "sku", "item"},
	"region":  {"region", "territory", "area", "country"},
	"fund":    {"fund", "portfolio", "strategy"},
	"team":    {"team", "desk"},
	"sector":  {"sector", "industry"},
	"channel": {"channel", "source"},
	"segment": {"segment"},
	"asset":   {"asset"},
}

const maxEntityResolutionAttempts = 1

// entityTarget is what extractEntityTarget finds: an entity family plus the
// proper-noun phrase immediately following its alias in the question.
type entityTarget struct {
	entityType   string
	entityPhrase string
}

// extractEntityTarget scans question for "<alias> <Proper Noun Phrase>",
// e.g. "store Maple Street" -> {entityType: "store", entityPhrase: "store
// Maple Street"}. Ports _extract_entity_target; alias order matters only in
// that the first matching family wins, matching the reference's dict walk.
func extractEntityTarget(question string) *entityTarget {
	if question == "" {
		return nil
	}
	for _, entityType := range entityAliasOrder {
		for _, alias := range entityAliasMap[entityType] {
			pattern := `(?i)\b` + regexp.QuoteMeta(alias) + `s?\b\s+([A-Za-z0-9&.'-]+(?:\s+[A-Za-z0-9&.'-]+){0,2})`
			re := regexp.MustCompile(pattern)
			if loc := re.FindStringIndex(question); loc != nil {
				phrase := strings.TrimSpace(question[loc[0]:loc[1]])
				return &entityTarget{entityType: entityType, entityPhrase: phrase}
			}
		}
	}
	return nil
}

var entityAliasOrder = []string{
	"store", "client", "product", "region", "fund", "team", "sector", "channel", "segment", "asset",
}

func extractEntityResolutionContext(diagnostics map[string]any) map[string]any {
	extraContext, _ := diagnostics["extra_context"].(map[string]any)
	if extraContext == nil {
		return nil
	}
	reasoning, _ := extraContext["reasoning"].(map[string]any)
	if reasoning == nil {
		return nil
	}
	resolution, _ := reasoning["entity_resolution"].(map[string]any)
	return resolution
}

// buildEntityResolution assembles the entity_resolution payload for a
// no-rows-returned retry, or nil if the question names no known entity
// family, or the attempt budget is already spent.
func buildEntityResolution(userQuery string, diagnostics map[string]any) map[string]any {
	target := extractEntityTarget(userQuery)
	if target == nil {
		return nil
	}
	existing := extractEntityResolutionContext(diagnostics)
	attempts := 0
	if existing != nil {
		if a, ok := existing["attempts"].(int); ok {
			attempts = a
		}
	}
	if attempts >= maxEntityResolutionAttempts {
		return nil
	}

	plural := pluralizeLabel(target.entityType)
	return map[string]any{
		"entity_type":       target.entityType,
		"entity_phrase":     target.entityPhrase,
		"original_question": userQuery,
		"probe_question":    "List all " + plural + " names.",
		"attempts":          attempts + 1,
	}
}

func pickFallbackRoute(currentRoute RouteName) RouteName {
	if currentRoute == RouteWebSearch {
		return RouteDeepResearch
	}
	return RouteWebSearch
}

func normalizeErrorSignature(value string) string {
	collapsed := strings.Join(strings.Fields(value), " ")
	lowered := strings.ToLower(collapsed)
	if runes := []rune(lowered); len(runes) > 240 {
		lowered = string(runes[:240])
	}
	return lowered
}

// isRepeatedAnalystError reports whether analystError matches the error the
// previous iteration already retried against, per diagnostics'
// extra_context.reasoning.retry_due_to_error, preventing infinite retry loops.
func isRepeatedAnalystError(diagnostics map[string]any, analystError string) bool {
	if analystError == "" {
		return false
	}
	extraContext, _ := diagnostics["extra_context"].(map[string]any)
	if extraContext == nil {
		return false
	}
	reasoning, _ := extraContext["reasoning"].(map[string]any)
	if reasoning == nil {
		return false
	}
	previousError, _ := reasoning["retry_due_to_error"].(string)
	if strings.TrimSpace(previousError) == "" {
		return false
	}
	current := normalizeErrorSignature(analystError)
	previous := normalizeErrorSignature(previousError)
	if current == "" || previous == "" {
		return false
	}
	return current == previous || strings.Contains(previous, current) || strings.Contains(current, previous)
}

func buildRetryDecision(plan Plan, rationale string, forceRoute RouteName, retryFlag string, detail any) ReasoningDecision {
	reasoning := map[string]any{
		"force_route":    string(forceRoute),
		"previous_route": string(plan.Route),
	}
	if detail != nil {
		reasoning[retryFlag] = detail
	} else {
		reasoning[retryFlag] = true
	}
	return ReasoningDecision{
		ContinuePlanning: true,
		UpdatedContext:   map[string]any{"reasoning": reasoning},
		Rationale:        rationale,
	}
}

// ReasoningController evaluates one supervisor iteration's artifacts and
// decides whether to continue planning (C9).
type ReasoningController struct {
	MaxIterations int
}

// NewReasoningController builds a controller bounded to maxIterations
// (matching the reference's ReasoningAgent constructor validation).
func NewReasoningController(maxIterations int) *ReasoningController {
	if maxIterations < 1 {
		maxIterations = 1
	}
	return &ReasoningController{MaxIterations: maxIterations}
}

// Evaluate runs the eight deterministic rules of spec §4.6 in order.
func (c *ReasoningController) Evaluate(
	_ context.Context,
	iteration int,
	plan Plan,
	artifacts PlanExecutionArtifacts,
	diagnostics map[string]any,
	userQuery string,
) ReasoningDecision {
	// Rule 1: a clarifying question always ends the loop — it's the user's
	// turn now.
	if artifacts.ClarifyingQuestion != "" {
		return ReasoningDecision{
			ContinuePlanning: false,
			Rationale:        "Clarification needed from user; stopping further planning.",
		}
	}

	var analystError string
	if artifacts.AnalystResult != nil {
		analystError = artifacts.AnalystResult.Error
	}

	// Rule 1b: iteration budget exhausted.
	if iteration+1 >= c.MaxIterations {
		return ReasoningDecision{
			ContinuePlanning: false,
			Rationale:        "Max reasoning iterations reached; finalising current response.",
		}
	}

	// Rule 2: the same analyst error already triggered a retry last time —
	// retrying again would only loop.
	if isRepeatedAnalystError(diagnostics, analystError) {
		return ReasoningDecision{
			ContinuePlanning: false,
			Rationale:        "Repeated analyst error detected; stopping retries.",
		}
	}

	hasStructuredData := artifacts.hasStructuredData()
	hasWebResults := artifacts.hasWebResults()
	hasResearch := artifacts.hasResearchResults()
	hasData := hasStructuredData || hasWebResults || hasResearch
	rowCount, haveRowCount := artifacts.structuredRowCount()

	// Rule 3: zero rows on an Analyst route with no error and no fallback
	// data usually means an entity-naming mismatch (e.g. "Store A" vs "Shop
	// A"); probe for the canonical name once before giving up.
	if haveRowCount && rowCount == 0 && hasStructuredData && analystError == "" &&
		!hasWebResults && !hasResearch && userQuery != "" &&
		(plan.Route == RouteSimpleAnalyst || plan.Route == RouteAnalystThenVisual) {
		if resolution := buildEntityResolution(userQuery, diagnostics); resolution != nil {
			return ReasoningDecision{
				ContinuePlanning: true,
				UpdatedContext: map[string]any{
					"reasoning": map[string]any{
						"previous_route":    string(plan.Route),
						"entity_resolution": resolution,
					},
				},
				Rationale: "No rows returned; probing entity names to resolve mismatches.",
			}
		}
	}

	// Rule 4: a hard analyst error with nothing else to fall back on
	// switches to the other retrieval route.
	if analystError != "" && !hasWebResults && !hasResearch {
		return buildRetryDecision(plan, "Retrying due to analyst error.",
			pickFallbackRoute(plan.Route), "retry_due_to_error", analystError)
	}

	// Rule 5: no data of any kind came back; try the other retrieval route.
	if !hasData {
		return buildRetryDecision(plan, "No structured or research data produced; requesting replanning.",
			pickFallbackRoute(plan.Route), "retry_due_to_empty", nil)
	}

	signals := extractSignals(userQuery)

	// Rule 6: web search found sources but no research synthesis ran over
	// them yet — hand them to deep research.
	if hasWebResults && !hasResearch {
		hasSources := artifacts.WebSearchResult != nil && len(artifacts.WebSearchResult.Results) > 0
		if hasSources && (userQuery == "" || signals.HasResearchSignals) {
			return ReasoningDecision{
				ContinuePlanning: true,
				UpdatedContext: map[string]any{
					"documents": artifacts.WebSearchResult.ToDocuments(),
					"reasoning": map[string]any{
						"force_route":            string(RouteDeepResearch),
						"previous_route":         string(plan.Route),
						"promoted_from_web_search": true,
					},
				},
				Rationale: "Web search produced sources; synthesizing with deep research.",
			}
		}
	}

	// Rule 7: research ran but had nothing to work with — broaden with a
	// web search pass.
	if hasResearch && !hasWebResults && isLowSignalResearch(artifacts.ResearchResult) {
		return ReasoningDecision{
			ContinuePlanning: true,
			UpdatedContext: map[string]any{
				"reasoning": map[string]any{
					"force_route":             string(RouteWebSearch),
					"previous_route":          string(plan.Route),
					"retry_due_to_low_sources": true,
				},
			},
			Rationale: "Research lacked source material; broadening with web search.",
		}
	}

	// Rule 8: otherwise the results are good enough to stop on.
	return ReasoningDecision{ContinuePlanning: false, Rationale: "Results look sufficient."}
}
