package orchestrator

import (
	"fmt"
	"regexp"
	"strings"
)

var sqlLiteralPattern = regexp.MustCompile(`\b(select|sql|table|column)\b`)

func extractSignals(question string) RouteSignals {
	lowered := strings.ToLower(question)
	tokens := strings.Fields(lowered)

	hasSQL := containsKeyword(lowered, sqlKeywords) || sqlLiteralPattern.MatchString(lowered)
	hasVisual := containsKeyword(lowered, visualKeywords)
	hasResearch := containsKeyword(lowered, researchKeywords)
	hasWeb := containsKeyword(lowered, webSearchKeywords)
	hasEntity := containsKeyword(lowered, entityHints)
	hasTime := containsKeyword(lowered, timeHints) || numberPattern.MatchString(lowered)
	chartable := hasVisual || (hasSQL && containsKeyword(lowered, aggregationHints))

	requiresClarification := false
	switch {
	case containsKeyword(lowered, ambiguityPhrases):
		requiresClarification = true
	case len(tokens) <= 4 && !hasResearch && !hasWeb && !strings.Contains(lowered, "?"):
		requiresClarification = true
	case strings.Contains(lowered, "performance") && !hasEntity && !hasResearch && !hasWeb:
		requiresClarification = true
	}

	return RouteSignals{
		HasSQLSignals:         hasSQL,
		HasVisualCues:         hasVisual,
		HasResearchSignals:    hasResearch,
		HasWebSearchSignals:   hasWeb,
		RequiresClarification: requiresClarification,
		Chartable:             chartable,
		HasTimeReference:      hasTime,
		HasEntityReference:    hasEntity,
	}
}

func estimateStepCount(route RouteName, signals RouteSignals, constraints PlanningConstraints) int {
	switch route {
	case RouteSimpleAnalyst:
		return 1
	case RouteAnalystThenVisual:
		return 2
	case RouteWebSearch:
		return 1
	case RouteDeepResearch:
		steps := 1 // doc retrieval mandatory
		if signals.HasSQLSignals {
			steps++
		}
		if signals.Chartable && constraints.RequireVizWhenChartable && signals.HasSQLSignals {
			steps++
		}
		return steps
	default:
		return 1
	}
}

func scoreSimpleAnalyst(signals RouteSignals) float64 {
	score := 0.0
	if signals.HasSQLSignals {
		score += 3.0
	}
	if signals.HasEntityReference {
		score += 1.0
	}
	if signals.HasTimeReference {
		score += 1.0
	}
	if signals.Chartable {
		score += 0.5
	}
	if signals.HasResearchSignals {
		score -= 1.5
	}
	return score
}

func scoreAnalystThenVisual(signals RouteSignals) float64 {
	score := scoreSimpleAnalyst(signals)
	if signals.Chartable {
		score += 2.0
	}
	if signals.HasVisualCues {
		score += 1.5
	}
	return score
}

func scoreWebSearch(signals RouteSignals, constraints PlanningConstraints) float64 {
	if !signals.HasWebSearchSignals {
		return negInf
	}
	score := 3.0
	if signals.HasResearchSignals {
		score += 1.0
	}
	if signals.HasSQLSignals {
		score -= 2.0
	}
	if constraints.PreferLowLatency {
		score += 0.5
	}
	return score
}

func scoreDeepResearch(signals RouteSignals, constraints PlanningConstraints) float64 {
	score := 0.0
	switch {
	case signals.HasResearchSignals:
		score += 3.5
	case signals.HasWebSearchSignals:
		score += 1.2
	default:
		// Do not over-trigger deep research for straightforward analytical asks.
		score -= 1.25
	}
	if !signals.HasSQLSignals {
		score += 1.0
	}
	if signals.HasSQLSignals {
		score += 0.5 // favour hybrid plans for mixed intents
	}
	if constraints.PreferLowLatency {
		score -= 2.0
	}
	switch constraints.CostSensitivity {
	case "high":
		score -= 1.0
	case "low":
		score += 0.5
	}
	return score
}

func routeIsAvailable(route RouteName, signals RouteSignals, constraints PlanningConstraints) bool {
	switch route {
	case RouteClarify:
		return true
	case RouteSimpleAnalyst:
		return constraints.AllowSQLAnalyst &&
			constraints.MaxSteps >= estimateStepCount(RouteSimpleAnalyst, signals, constraints)
	case RouteAnalystThenVisual:
		return constraints.AllowSQLAnalyst &&
			constraints.MaxSteps >= estimateStepCount(RouteAnalystThenVisual, signals, constraints)
	case RouteWebSearch:
		return constraints.AllowWebSearch &&
			constraints.MaxSteps >= estimateStepCount(RouteWebSearch, signals, constraints)
	case RouteDeepResearch:
		return constraints.AllowDeepResearch &&
			constraints.MaxSteps >= estimateStepCount(RouteDeepResearch, signals, constraints)
	default:
		return false
	}
}

func applyRoutingOverrides(scores map[RouteName]float64, overrides RoutingOverrides, constraints PlanningConstraints) {
	if overrides.PreviousRoute != "" {
		if score, ok := scores[overrides.PreviousRoute]; ok && score != negInf {
			scores[overrides.PreviousRoute] = score - 1.0
		}
	}

	for _, route := range overrides.PreferRoutes {
		if score, ok := scores[route]; ok && score != negInf {
			scores[route] = score + 1.5
		}
	}

	if overrides.RequireVisual && constraints.AllowSQLAnalyst {
		if score, ok := scores[RouteAnalystThenVisual]; ok {
			scores[RouteAnalystThenVisual] = score + 2.5
		}
	}
	if overrides.RequireWebSearch && constraints.AllowWebSearch {
		if score, ok := scores[RouteWebSearch]; ok {
			scores[RouteWebSearch] = score + 2.5
		}
	}
	if overrides.RequireDeepResearch && constraints.AllowDeepResearch {
		if score, ok := scores[RouteDeepResearch]; ok {
			scores[RouteDeepResearch] = score + 2.0
		}
	}
	if overrides.RequireSQL && constraints.AllowSQLAnalyst {
		if score, ok := scores[RouteSimpleAnalyst]; ok {
			scores[RouteSimpleAnalyst] = score + 1.5
		}
	}

	for route := range overrides.AvoidRoutes {
		if _, ok := scores[route]; ok {
			scores[route] = negInf
		}
	}
}

var routePriority = []RouteName{
	RouteSimpleAnalyst, RouteAnalystThenVisual, RouteWebSearch, RouteDeepResearch,
}

func selectBestRoute(scores map[RouteName]float64) RouteName {
	best := RouteSimpleAnalyst
	bestScore := negInf
	for _, route := range routePriority {
		score, ok := scores[route]
		if !ok {
			score = negInf
		}
		if score > bestScore {
			bestScore = score
			best = route
		}
	}
	return best
}

func buildJustification(route RouteName, signals RouteSignals) string {
	switch route {
	case RouteSimpleAnalyst:
		parts := []string{"SQL-friendly intent detected"}
		if signals.HasEntityReference {
			parts = append(parts, "entity cues present")
		}
		if signals.HasTimeReference {
			parts = append(parts, "time window specified")
		}
		if signals.Chartable && !signals.HasVisualCues {
			parts = append(parts, "charting optional; prioritising low latency")
		}
		return strings.Join(parts, "; ") + "."
	case RouteAnalystThenVisual:
		parts := []string{"SQL intent with visualization cues"}
		if signals.Chartable {
			parts = append(parts, "aggregations suitable for charting")
		}
		return strings.Join(parts, "; ") + "."
	case RouteWebSearch:
		parts := []string{"Explicit web lookup requested"}
		if signals.HasResearchSignals {
			parts = append(parts, "news or external sources referenced")
		}
		return strings.Join(parts, "; ") + "."
	case RouteDeepResearch:
		parts := []string{"Unstructured research signals dominate"}
		if signals.HasSQLSignals {
			parts = append(parts, "will validate with analytics as a follow-up")
		}
		return strings.Join(parts, "; ") + "."
	default:
		return "Question requires clarification before proceeding."
	}
}

// ChooseRoute classifies request.Question into a RouteDecision. Deterministic:
// same (question, constraints, context) always yields the same decision.
func ChooseRoute(request PlannerRequest) RouteDecision {
	constraints := request.Constraints
	signals := extractSignals(request.Question)
	overrides := extractRoutingOverrides(request.Context)
	var overrideNotes []string

	if overrides.ForceRoute != "" {
		if routeIsAvailable(overrides.ForceRoute, signals, constraints) {
			var assumptions []string
			if signals.RequiresClarification {
				assumptions = append(assumptions, "Proceeding despite ambiguity due to routing override.")
			}
			return RouteDecision{
				Route:         overrides.ForceRoute,
				Justification: fmt.Sprintf("Routing override applied: %s.", overrides.ForceRoute),
				Signals:       signals,
				Assumptions:   assumptions,
			}
		}
		overrideNotes = append(overrideNotes, fmt.Sprintf(
			"Requested route '%s' unavailable; falling back to best match.", overrides.ForceRoute))
	}

	if signals.RequiresClarification {
		var assumptions []string
		if !signals.HasEntityReference {
			assumptions = append(assumptions, "Need specific entity or scope before querying data sources.")
		}
		if !signals.HasTimeReference {
			assumptions = append(assumptions, "Need time window to avoid misaligned metrics.")
		}
		assumptions = append(assumptions, overrideNotes...)
		return RouteDecision{
			Route:         RouteClarify,
			Justification: "Ambiguous intent detected; clarification is required before safe execution.",
			Signals:       signals,
			Assumptions:   assumptions,
		}
	}

	// Hard routing rule: a chartable question always gets a visualization
	// step when the caller demands one and the budget allows it.
	if constraints.AllowSQLAnalyst && constraints.RequireVizWhenChartable &&
		signals.Chartable && constraints.MaxSteps >= 2 {
		return RouteDecision{
			Route:         RouteAnalystThenVisual,
			Justification: buildJustification(RouteAnalystThenVisual, signals),
			Signals:       signals,
		}
	}

	scores := map[RouteName]float64{}

	if constraints.AllowSQLAnalyst && constraints.MaxSteps >= estimateStepCount(RouteSimpleAnalyst, signals, constraints) {
		scores[RouteSimpleAnalyst] = scoreSimpleAnalyst(signals)
	} else {
		scores[RouteSimpleAnalyst] = negInf
	}

	if constraints.AllowSQLAnalyst && constraints.MaxSteps >= estimateStepCount(RouteAnalystThenVisual, signals, constraints) {
		scores[RouteAnalystThenVisual] = scoreAnalystThenVisual(signals)
	} else {
		scores[RouteAnalystThenVisual] = negInf
	}

	if constraints.AllowWebSearch && constraints.MaxSteps >= estimateStepCount(RouteWebSearch, signals, constraints) {
		scores[RouteWebSearch] = scoreWebSearch(signals, constraints)
	} else {
		scores[RouteWebSearch] = negInf
	}

	if constraints.AllowDeepResearch && constraints.MaxSteps >= estimateStepCount(RouteDeepResearch, signals, constraints) {
		scores[RouteDeepResearch] = scoreDeepResearch(signals, constraints)
	} else {
		scores[RouteDeepResearch] = negInf
	}

	applyRoutingOverrides(scores, overrides, constraints)

	allUnavailable := true
	for _, score := range scores {
		if score != negInf {
			allUnavailable = false
			break
		}
	}
	if allUnavailable {
		return RouteDecision{
			Route:         RouteClarify,
			Justification: "No enabled routes matched the current tool configuration.",
			Signals:       signals,
			Assumptions:   []string{"Enable at least one tool category to proceed."},
		}
	}

	selected := selectBestRoute(scores)
	justification := buildJustification(selected, signals)

	var assumptions []string
	if selected == RouteAnalystThenVisual && constraints.MaxSteps < 2 {
		assumptions = append(assumptions, "Visualization step may be skipped if latency constraints tighten further.")
	}
	if selected == RouteDeepResearch && constraints.TimeboxSeconds != nil && *constraints.TimeboxSeconds < 30 {
		assumptions = append(assumptions, "Document retrieval scoped to high-signal sources due to tight timebox.")
	}
	if overrides.RequireVisual && !constraints.AllowSQLAnalyst {
		assumptions = append(assumptions, "Visualization request ignored because SQL analyst tools are disabled.")
	}
	if overrides.RequireVisual && constraints.MaxSteps < 2 {
		assumptions = append(assumptions, "Visualization request ignored due to step limit.")
	}
	assumptions = append(assumptions, overrideNotes...)

	return RouteDecision{
		Route:         selected,
		Justification: justification,
		Signals:       signals,
		Assumptions:   assumptions,
	}
}
