package orchestrator

import (
	"fmt"
	"strings"
)

func inferVisualIntent(question string) string {
	lowered := strings.ToLower(question)
	switch {
	case strings.Contains(lowered, "trend") || strings.Contains(lowered, "over time"):
		return "time_series_comparison"
	case strings.Contains(lowered, "versus") || strings.Contains(lowered, "vs "):
		return "comparative_view"
	case strings.Contains(lowered, "distribution") || strings.Contains(lowered, "histogram"):
		return "distribution_analysis"
	case strings.Contains(lowered, "top") || strings.Contains(lowered, "rank"):
		return "ranked_highlights"
	default:
		return "insight_visualization"
	}
}

func buildClarifyingQuestion(signals RouteSignals, question string) string {
	var missing []string
	if !signals.HasEntityReference {
		missing = append(missing, "which entity or segment you want analysed")
	}
	if !signals.HasTimeReference {
		missing = append(missing, "the time period to evaluate")
	}
	if len(missing) > 0 {
		return "To move forward, please specify " + strings.Join(missing, " and ") +
			", for example 'fund performance by region for 2024 Q1'."
	}
	return "Could you provide a bit more detail so I can plan safely? " +
		"Let me know the exact metric and time window you care about."
}

func contextHasDocuments(context map[string]any) bool {
	if context == nil {
		return false
	}
	for _, key := range []string{"documents", "sources", "notes"} {
		switch v := context[key].(type) {
		case map[string]any:
			if len(v) > 0 {
				return true
			}
		case []any:
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}

func extractEntityResolution(context map[string]any) map[string]any {
	reasoning := contextDict(context, "reasoning")
	if reasoning == nil {
		return nil
	}
	resolution, ok := reasoning["entity_resolution"].(map[string]any)
	if !ok {
		return nil
	}
	return resolution
}

func pluralizeLabel(label string) string {
	cleaned := strings.TrimSpace(label)
	if cleaned == "" {
		return "items"
	}
	lower := strings.ToLower(cleaned)
	if strings.HasSuffix(lower, "y") && len(lower) > 1 {
		return cleaned[:len(cleaned)-1] + "ies"
	}
	if strings.HasSuffix(lower, "s") {
		return cleaned
	}
	return cleaned + "s"
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// stepBuilder accumulates PlanStep values, stopping silently once
// constraints.MaxSteps is reached (matching _append_step's nonlocal-counter
// behavior in the reference router).
type stepBuilder struct {
	steps      []PlanStep
	maxSteps   int
	nextID     int
}

func newStepBuilder(maxSteps int) *stepBuilder {
	return &stepBuilder{maxSteps: maxSteps, nextID: 1}
}

func (b *stepBuilder) append(agent AgentName, input, expectedOutput map[string]any) {
	if len(b.steps) >= b.maxSteps {
		return
	}
	b.steps = append(b.steps, PlanStep{
		ID:             fmt.Sprintf("step-%d", b.nextID),
		Agent:          agent,
		Input:          input,
		ExpectedOutput: expectedOutput,
	})
	b.nextID++
}

func (b *stepBuilder) lastIDOf(agent AgentName) string {
	for i := len(b.steps) - 1; i >= 0; i-- {
		if b.steps[i].Agent == agent {
			return b.steps[i].ID
		}
	}
	return ""
}

func (b *stepBuilder) lastID() string {
	if len(b.steps) == 0 {
		return ""
	}
	return b.steps[len(b.steps)-1].ID
}

var tabularExpectedOutput = map[string]any{
	"rows": "tabular_result_set", "schema": "column_metadata", "final_sql": "string",
}

var vizExpectedOutput = map[string]any{
	"viz_spec": "json_visualization_spec", "insight_summary": "string",
}

// buildEntityResolutionSteps ports _build_entity_resolution_steps: a probe
// Analyst step enumerating known entity values, then the original question
// rewritten to use the probe's results, back-referencing it.
func buildEntityResolutionSteps(resolution map[string]any, request PlannerRequest) []PlanStep {
	constraints := request.Constraints
	if constraints.MaxSteps < 2 {
		return nil
	}

	entityType := stringField(resolution, "entity_type")
	entityPhrase := stringField(resolution, "entity_phrase")
	probeQuestion := stringField(resolution, "probe_question")
	originalQuestion := stringField(resolution, "original_question")
	if originalQuestion == "" {
		originalQuestion = request.Question
	}

	if probeQuestion == "" {
		label := entityType
		if label == "" {
			label = "item"
		}
		probeQuestion = fmt.Sprintf("List all %s.", pluralizeLabel(label))
	}

	followUp := stringField(resolution, "follow_up")
	if followUp == "" && entityType != "" && entityPhrase != "" {
		followUp = fmt.Sprintf(
			"Use the list of known %s names to resolve the closest match to '%s', then answer the original question.",
			entityType, entityPhrase)
	} else if followUp == "" && entityPhrase != "" {
		followUp = fmt.Sprintf(
			"Use the list of known names to resolve the closest match to '%s', then answer the original question.",
			entityPhrase)
	}

	builder := newStepBuilder(constraints.MaxSteps)

	probeContext := map[string]any{}
	for k, v := range request.Context {
		probeContext[k] = v
	}
	if _, ok := probeContext["limit"]; !ok {
		probeContext["limit"] = 200
	}

	builder.append(AgentAnalyst, map[string]any{
		"question":    probeQuestion,
		"context":     probeContext,
		"constraints": constraints,
	}, tabularExpectedOutput)

	sourceStepID := builder.lastID()
	var followUpValue any
	if followUp != "" {
		followUpValue = followUp
	}
	builder.append(AgentAnalyst, map[string]any{
		"question":        originalQuestion,
		"context":         request.Context,
		"constraints":     constraints,
		"source_step_ref": sourceStepID,
		"follow_up":       followUpValue,
	}, tabularExpectedOutput)

	if len(builder.steps) == 0 {
		return nil
	}
	return builder.steps
}

// BuildSteps maps decision to the concrete PlanStep sequence, per spec §4.5's
// per-route construction rules. Ports build_steps in the reference router.
func BuildSteps(decision RouteDecision, request PlannerRequest) []PlanStep {
	constraints := request.Constraints
	routingOverrides := extractRoutingOverrides(request.Context)
	entityResolution := extractEntityResolution(request.Context)

	if decision.Route == RouteClarify {
		builder := newStepBuilder(constraints.MaxSteps)
		builder.append(AgentClarify, map[string]any{
			"clarifying_question": buildClarifyingQuestion(decision.Signals, request.Question),
			"original_question":   request.Question,
		}, map[string]any{"awaiting_user": true})
		return builder.steps
	}

	baseInput := map[string]any{
		"question":    request.Question,
		"context":     request.Context,
		"constraints": constraints,
	}

	switch decision.Route {
	case RouteSimpleAnalyst:
		if entityResolution != nil {
			if steps := buildEntityResolutionSteps(entityResolution, request); steps != nil {
				return steps
			}
		}
		builder := newStepBuilder(constraints.MaxSteps)
		builder.append(AgentAnalyst, baseInput, tabularExpectedOutput)
		return builder.steps

	case RouteAnalystThenVisual:
		if entityResolution != nil {
			if steps := buildEntityResolutionSteps(entityResolution, request); steps != nil {
				builder := &stepBuilder{steps: steps, maxSteps: constraints.MaxSteps, nextID: len(steps) + 1}
				if lastAnalyst := builder.lastIDOf(AgentAnalyst); lastAnalyst != "" && len(builder.steps) < constraints.MaxSteps {
					builder.append(AgentVisual, map[string]any{
						"rows_ref":   lastAnalyst,
						"schema_ref": lastAnalyst,
						"user_intent": inferVisualIntent(request.Question),
					}, vizExpectedOutput)
				}
				return builder.steps
			}
		}
		builder := newStepBuilder(constraints.MaxSteps)
		builder.append(AgentAnalyst, baseInput, tabularExpectedOutput)
		if len(builder.steps) < constraints.MaxSteps {
			firstID := builder.steps[0].ID
			builder.append(AgentVisual, map[string]any{
				"rows_ref":    firstID,
				"schema_ref":  firstID,
				"user_intent": inferVisualIntent(request.Question),
			}, vizExpectedOutput)
		}
		return builder.steps

	case RouteWebSearch:
		context := request.Context
		builder := newStepBuilder(constraints.MaxSteps)
		builder.append(AgentWebSearch, map[string]any{
			"query":           request.Question,
			"context":         context,
			"max_results":     contextOr(context, "max_results", 6),
			"region":          context["region"],
			"safe_search":     context["safe_search"],
			"timebox_seconds": constraints.TimeboxSeconds,
		}, map[string]any{"results": "web_search_results", "sources": "list_of_urls"})
		return builder.steps

	case RouteDeepResearch:
		context := request.Context
		builder := newStepBuilder(constraints.MaxSteps)

		var webSearchStepID string
		shouldUseWebSearch := constraints.AllowWebSearch &&
			!contextHasDocuments(context) &&
			(routingOverrides.RequireWebSearch || decision.Signals.HasWebSearchSignals)
		if shouldUseWebSearch && constraints.MaxSteps-len(builder.steps) >= 2 {
			builder.append(AgentWebSearch, map[string]any{
				"query":           request.Question,
				"context":         context,
				"max_results":     contextOr(context, "max_results", 6),
				"region":          context["region"],
				"safe_search":     context["safe_search"],
				"timebox_seconds": constraints.TimeboxSeconds,
			}, map[string]any{"results": "web_search_results", "sources": "list_of_urls"})
			webSearchStepID = builder.lastID()
		}

		builder.append(AgentDocRetrieval, map[string]any{
			"question":        request.Question,
			"context":         context,
			"timebox_seconds": constraints.TimeboxSeconds,
			"source_step_ref": webSearchStepID,
		}, map[string]any{"synthesis": "key_findings_with_citations", "evidence": "source_references"})
		docStepID := builder.lastID()

		if decision.Signals.HasSQLSignals && len(builder.steps) < constraints.MaxSteps {
			analystInput := map[string]any{
				"follow_up":       "Validate top qualitative claims from document synthesis.",
				"source_step_ref": docStepID,
			}
			for k, v := range baseInput {
				analystInput[k] = v
			}
			builder.append(AgentAnalyst, analystInput, map[string]any{
				"rows": "tabular_verification_results", "schema": "column_metadata", "final_sql": "string",
			})
		}

		hasAnalystStep := builder.lastIDOf(AgentAnalyst) != ""
		if decision.Signals.Chartable && constraints.RequireVizWhenChartable &&
			len(builder.steps) < constraints.MaxSteps && hasAnalystStep {
			lastAnalyst := builder.lastIDOf(AgentAnalyst)
			if lastAnalyst == "" {
				lastAnalyst = docStepID
			}
			builder.append(AgentVisual, map[string]any{
				"rows_ref":    lastAnalyst,
				"schema_ref":  lastAnalyst,
				"user_intent": inferVisualIntent(request.Question),
			}, vizExpectedOutput)
		}
		return builder.steps
	}

	return nil
}

func contextOr(context map[string]any, key string, fallback any) any {
	if context == nil {
		return fallback
	}
	if v, ok := context[key]; ok {
		return v
	}
	return fallback
}

// BuildPlan builds the full Plan for request: ChooseRoute followed by BuildSteps.
func BuildPlan(request PlannerRequest) Plan {
	decision := ChooseRoute(request)
	return Plan{
		Route:         decision.Route,
		Justification: decision.Justification,
		Steps:         BuildSteps(decision, request),
		Assumptions:   decision.Assumptions,
	}
}
