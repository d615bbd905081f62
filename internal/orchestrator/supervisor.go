package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/basegraph/analystcore/internal/analyst"
	"github.com/basegraph/analystcore/internal/research"
)

// AnalystRunner answers a natural language question against the semantic
// model; satisfied by *analyst.Tool.
type AnalystRunner interface {
	Run(ctx context.Context, req analyst.QueryRequest) analyst.QueryResponse
}

// VisualRunner turns a tabular payload into a chart specification.
type VisualRunner interface {
	Run(ctx context.Context, data map[string]any, title, question, userIntent string) (map[string]any, error)
}

// DeepResearcher synthesizes a research report from documents in context.
type DeepResearcher interface {
	Research(ctx context.Context, question string, docContext map[string]any, timeboxSeconds int) (*research.DeepResearchResult, error)
}

// WebSearcher runs a web search pass for a query.
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int, region, safeSearch string, timeboxSeconds int) (*research.WebSearchResult, error)
}

// Supervisor coordinates the planner, reasoning controller, and the four
// dispatchable agents across a bounded iteration loop (C8).
type Supervisor struct {
	Analyst      AnalystRunner
	Visual       VisualRunner
	DeepResearch DeepResearcher
	WebSearch    WebSearcher
	Reasoning    *ReasoningController
	Logger       *slog.Logger
}

// NewSupervisor builds a Supervisor; logger defaults to slog.Default() if nil.
func NewSupervisor(analystRunner AnalystRunner, visual VisualRunner, deepResearch DeepResearcher, webSearch WebSearcher, reasoning *ReasoningController, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		Analyst:      analystRunner,
		Visual:       visual,
		DeepResearch: deepResearch,
		WebSearch:    webSearch,
		Reasoning:    reasoning,
		Logger:       logger,
	}
}

// HandleRequest is the supervisor's single entry point input.
type HandleRequest struct {
	UserQuery         string
	Filters           map[string]string
	Limit             int
	Title             string
	Constraints       *PlanningConstraints
	PlanningContext   map[string]any
}

// HandleResult is what Handle returns: the compiled answer plus the full
// diagnostic trail, mirroring the reference orchestrator's response dict.
type HandleResult struct {
	SQLCanonical  string
	SQLExecutable string
	Dialect       string
	Model         string
	Result        map[string]any
	Visualization map[string]any
	Diagnostics   map[string]any
	ToolCalls     []ToolCallRecord
}

// stepOutput records what a dispatched step produced, keyed by step id, so
// later steps can resolve rows_ref/source_step_ref back-references.
type stepOutput struct {
	agent          AgentName
	analystResult  *analyst.QueryResponse
	dataPayload    map[string]any
	visualization  map[string]any
	researchResult *research.DeepResearchResult
	webSearchResult *research.WebSearchResult
	documents      []map[string]any
}

// Handle runs the plan -> execute -> reason loop until the reasoning
// controller stops it or max_iterations is reached (C8).
func (s *Supervisor) Handle(ctx context.Context, req HandleRequest) (*HandleResult, error) {
	start := time.Now()

	constraints := DefaultConstraints()
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	var (
		plan               Plan
		artifacts          PlanExecutionArtifacts
		combined           PlanExecutionArtifacts
		finalDecision      *ReasoningDecision
		havePlan           bool
	)
	extraContext := map[string]any{}
	for k, v := range req.PlanningContext {
		extraContext[k] = v
	}
	var iterationHistory []map[string]any
	iterationsCompleted := 0

	maxIterations := 1
	if s.Reasoning != nil {
		maxIterations = s.Reasoning.MaxIterations
	}

	for iteration := 0; iteration < maxIterations; iteration++ {
		plannerRequest := s.buildPlannerRequest(req, extraContext, constraints)
		plan = BuildPlan(plannerRequest)
		havePlan = true

		var err error
		artifacts, err = s.executePlan(ctx, plan, req)
		if err != nil {
			return nil, err
		}
		mergeArtifacts(&combined, artifacts)

		diagnostics := map[string]any{
			"iteration":     iteration,
			"plan_route":    string(plan.Route),
			"extra_context": extraContext,
		}
		if artifacts.ClarifyingQuestion != "" {
			diagnostics["clarifying_question"] = artifacts.ClarifyingQuestion
		}
		iterationHistory = append(iterationHistory, diagnostics)

		decision := s.Reasoning.Evaluate(ctx, iteration, plan, artifacts, diagnostics, req.UserQuery)
		finalDecision = &decision
		iterationsCompleted = iteration + 1

		if !decision.ContinuePlanning {
			break
		}
		extraContext = mergeContext(extraContext, decision.UpdatedContext)

		if iteration == maxIterations-1 {
			s.Logger.Warn("reasoning controller exhausted max iterations without convergence")
			finalDecision = &ReasoningDecision{
				ContinuePlanning: false,
				Rationale:        "Max iterations reached without convergence.",
			}
		}
	}

	if !havePlan {
		return nil, fmt.Errorf("orchestrator: planner did not produce a plan")
	}

	analystResult := artifacts.AnalystResult
	if analystResult == nil {
		errMsg := artifacts.ClarifyingQuestion
		if errMsg == "" {
			errMsg = "Planner route completed without invoking analyst agent."
		}
		analystResult = &analyst.QueryResponse{Dialect: "n/a", Error: errMsg}
	}

	dataPayload := artifacts.DataPayload
	if len(dataPayload) == 0 && artifacts.ResearchResult != nil {
		dataPayload = artifacts.ResearchResult.ToTabular()
	}
	visualization := artifacts.Visualization

	elapsedMs := time.Since(start).Milliseconds()

	diagnostics := map[string]any{
		"execution_time_ms":   analystResult.ExecutionTimeMs,
		"total_elapsed_ms":    elapsedMs,
		"sql_executable":      analystResult.SQLExecutable,
		"sql_canonical":       analystResult.SQLCanonical,
		"error":               analystResult.Error,
		"dialect":             analystResult.Dialect,
		"iterations_diagnostics": iterationHistory,
		"plan":                plan,
	}
	if artifacts.ResearchResult != nil {
		diagnostics["research"] = artifacts.ResearchResult
	}
	webSearchResult := artifacts.WebSearchResult
	if webSearchResult == nil {
		webSearchResult = combined.WebSearchResult
	}
	if webSearchResult != nil {
		diagnostics["web_search"] = webSearchResult
	}
	if artifacts.ClarifyingQuestion != "" {
		diagnostics["clarifying_question"] = artifacts.ClarifyingQuestion
	}
	rationale := ""
	if finalDecision != nil {
		rationale = finalDecision.Rationale
	}
	diagnostics["reasoning"] = map[string]any{
		"iterations":      iterationsCompleted,
		"final_rationale": rationale,
	}

	s.Logger.Info("planner route completed",
		"route", string(plan.Route), "elapsed_ms", elapsedMs, "query", req.UserQuery)

	return &HandleResult{
		SQLCanonical:  analystResult.SQLCanonical,
		SQLExecutable: analystResult.SQLExecutable,
		Dialect:       analystResult.Dialect,
		Model:         analystResult.ModelName,
		Result:        dataPayload,
		Visualization: visualization,
		Diagnostics:   diagnostics,
		ToolCalls:     combined.ToolCalls,
	}, nil
}

func (s *Supervisor) buildPlannerRequest(req HandleRequest, extraContext map[string]any, constraints PlanningConstraints) PlannerRequest {
	context := map[string]any{}
	if req.Filters != nil {
		context["filters"] = req.Filters
	}
	if req.Limit != 0 {
		context["limit"] = req.Limit
	}
	if req.Title != "" {
		context["title"] = req.Title
	}
	for k, v := range extraContext {
		context[k] = v
	}
	return PlannerRequest{
		Question:    req.UserQuery,
		Context:     context,
		Constraints: constraints,
	}
}

// executePlan dispatches each step of plan to its agent in order, recording
// a ToolCallRecord per step and stopping early on Clarify.
func (s *Supervisor) executePlan(ctx context.Context, plan Plan, req HandleRequest) (PlanExecutionArtifacts, error) {
	var artifacts PlanExecutionArtifacts
	stepOutputs := map[string]stepOutput{}

	for _, step := range plan.Steps {
		stepStart := time.Now()

		switch step.Agent {
		case AgentAnalyst:
			result, dataPayload, toolArgs, err := s.runAnalystStep(ctx, step, req, stepOutputs)
			duration := time.Since(stepStart).Milliseconds()
			record := ToolCallRecord{StepID: step.ID, Agent: AgentAnalyst, Arguments: toolArgs, DurationMs: duration}
			if err != nil {
				record.Error = err.Error()
				artifacts.ToolCalls = append(artifacts.ToolCalls, record)
				return artifacts, err
			}
			record.ResultSummary = summarizeAnalystResult(result, dataPayload)
			record.Error = result.Error
			artifacts.ToolCalls = append(artifacts.ToolCalls, record)
			artifacts.AnalystResult = result
			if len(dataPayload) > 0 {
				artifacts.DataPayload = dataPayload
			}
			stepOutputs[step.ID] = stepOutput{agent: AgentAnalyst, analystResult: result, dataPayload: dataPayload}

		case AgentVisual:
			visualization, toolArgs, err := s.runVisualStep(ctx, step, req, artifacts.DataPayload, stepOutputs)
			duration := time.Since(stepStart).Milliseconds()
			record := ToolCallRecord{StepID: step.ID, Agent: AgentVisual, Arguments: toolArgs, DurationMs: duration}
			if err != nil {
				record.Error = err.Error()
				artifacts.ToolCalls = append(artifacts.ToolCalls, record)
				return artifacts, err
			}
			artifacts.ToolCalls = append(artifacts.ToolCalls, record)
			artifacts.Visualization = visualization
			stepOutputs[step.ID] = stepOutput{agent: AgentVisual, visualization: visualization}

		case AgentDocRetrieval:
			result, toolArgs, err := s.runDocRetrievalStep(ctx, step, req, stepOutputs)
			duration := time.Since(stepStart).Milliseconds()
			record := ToolCallRecord{StepID: step.ID, Agent: AgentDocRetrieval, Arguments: toolArgs, DurationMs: duration}
			if err != nil {
				record.Error = err.Error()
				artifacts.ToolCalls = append(artifacts.ToolCalls, record)
				return artifacts, err
			}
			artifacts.ToolCalls = append(artifacts.ToolCalls, record)
			artifacts.ResearchResult = result
			stepOutputs[step.ID] = stepOutput{agent: AgentDocRetrieval, researchResult: result}
			if len(artifacts.DataPayload) == 0 && result != nil {
				artifacts.DataPayload = result.ToTabular()
			}

		case AgentWebSearch:
			result, toolArgs, err := s.runWebSearchStep(ctx, step, req)
			duration := time.Since(stepStart).Milliseconds()
			record := ToolCallRecord{StepID: step.ID, Agent: AgentWebSearch, Arguments: toolArgs, DurationMs: duration}
			if err != nil {
				record.Error = err.Error()
				artifacts.ToolCalls = append(artifacts.ToolCalls, record)
				return artifacts, err
			}
			artifacts.ToolCalls = append(artifacts.ToolCalls, record)
			artifacts.WebSearchResult = result
			var documents []map[string]any
			if result != nil {
				documents = result.ToDocuments()
			}
			stepOutputs[step.ID] = stepOutput{agent: AgentWebSearch, webSearchResult: result, documents: documents}
			if len(artifacts.DataPayload) == 0 && result != nil {
				artifacts.DataPayload = result.ToTabular()
			}

		case AgentClarify:
			artifacts.ClarifyingQuestion = stringField(step.Input, "clarifying_question")
			s.Logger.Info("planner requested clarification", "question", artifacts.ClarifyingQuestion)
			return artifacts, nil

		default:
			s.Logger.Warn("unsupported agent in plan; skipping step", "agent", step.Agent)
		}
	}

	return artifacts, nil
}

func (s *Supervisor) runAnalystStep(ctx context.Context, step PlanStep, req HandleRequest, stepOutputs map[string]stepOutput) (*analyst.QueryResponse, map[string]any, map[string]any, error) {
	if s.Analyst == nil {
		return nil, nil, nil, fmt.Errorf("orchestrator: AnalystRunner is not configured but planner requested SQL analysis")
	}
	baseQuestion := stringField(step.Input, "question")
	if baseQuestion == "" {
		baseQuestion = req.UserQuery
	}
	question := baseQuestion

	contextOverrides, _ := step.Input["context"].(map[string]any)
	filters := req.Filters
	limit := req.Limit
	conversationContext := stringField(contextOverrides, "conversation_context")

	sourceStepRef := stringField(step.Input, "source_step_ref")
	toolContext := s.buildStepContextSummary(sourceStepRef, stepOutputs)
	if toolContext != "" {
		conversationContext = mergeConversationContext(conversationContext, toolContext)
	}

	followUp := stringField(step.Input, "follow_up")
	if followUp != "" && !containsFold(question, followUp) {
		question = question + "\nFollow-up: " + followUp
	}

	result := s.Analyst.Run(ctx, analyst.QueryRequest{
		Question:            question,
		ConversationContext: conversationContext,
		Filters:             filters,
		Limit:               limit,
	})

	dataPayload := extractDataPayload(result)
	toolArgs := map[string]any{
		"step_id":  step.ID,
		"input":    step.Input,
		"question": question,
		"filters":  filters,
		"limit":    limit,
	}
	if baseQuestion != "" && baseQuestion != question {
		toolArgs["original_question"] = baseQuestion
	}
	if conversationContext != "" {
		toolArgs["conversation_context"] = conversationContext
	}
	if sourceStepRef != "" {
		toolArgs["source_step_ref"] = sourceStepRef
	}
	return &result, dataPayload, toolArgs, nil
}

func (s *Supervisor) runVisualStep(ctx context.Context, step PlanStep, req HandleRequest, fallbackPayload map[string]any, stepOutputs map[string]stepOutput) (map[string]any, map[string]any, error) {
	if s.Visual == nil {
		return nil, nil, fmt.Errorf("orchestrator: VisualRunner is not configured but planner requested a visualization")
	}
	referenceID := stringField(step.Input, "rows_ref")
	data := resolveRowsReference(referenceID, stepOutputs)
	if len(data) == 0 {
		data = fallbackPayload
	}
	if len(data) == 0 {
		data = map[string]any{"columns": []string{}, "rows": [][]any{}}
	}
	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Visualization for '%s'", req.UserQuery)
	}
	userIntent := stringField(step.Input, "user_intent")

	visualization, err := s.Visual.Run(ctx, data, title, req.UserQuery, userIntent)
	if err != nil {
		return nil, nil, err
	}

	toolArgs := map[string]any{
		"step_id":      step.ID,
		"input":        step.Input,
		"question":     req.UserQuery,
		"title":        title,
		"data_summary": summarizeTabularPayload(data),
	}
	if referenceID != "" {
		toolArgs["rows_ref"] = referenceID
	}
	if userIntent != "" {
		toolArgs["user_intent"] = userIntent
	}
	return visualization, toolArgs, nil
}

func (s *Supervisor) runDocRetrievalStep(ctx context.Context, step PlanStep, req HandleRequest, stepOutputs map[string]stepOutput) (*research.DeepResearchResult, map[string]any, error) {
	if s.DeepResearch == nil {
		return nil, nil, fmt.Errorf("orchestrator: DeepResearcher is not configured but planner requested DocRetrieval")
	}
	docContext, _ := step.Input["context"].(map[string]any)
	if docContext == nil {
		docContext = map[string]any{}
	}
	sourceStepRef := stringField(step.Input, "source_step_ref")
	if sourceStepRef != "" {
		if documents := resolveDocumentsReference(sourceStepRef, stepOutputs); len(documents) > 0 {
			docContext = mergeDocumentContext(docContext, documents)
		}
	}
	timebox := intField(step.Input, "timebox_seconds", 30)
	question := stringField(step.Input, "question")
	if question == "" {
		question = req.UserQuery
	}

	result, err := s.DeepResearch.Research(ctx, question, docContext, timebox)
	if err != nil {
		return nil, nil, err
	}
	toolArgs := map[string]any{
		"step_id":         step.ID,
		"input":           step.Input,
		"question":        question,
		"context":         docContext,
		"timebox_seconds":  timebox,
	}
	if sourceStepRef != "" {
		toolArgs["source_step_ref"] = sourceStepRef
	}
	return result, toolArgs, nil
}

func (s *Supervisor) runWebSearchStep(ctx context.Context, step PlanStep, req HandleRequest) (*research.WebSearchResult, map[string]any, error) {
	if s.WebSearch == nil {
		return nil, nil, fmt.Errorf("orchestrator: WebSearcher is not configured but planner requested WebSearch")
	}
	query := stringField(step.Input, "query")
	if query == "" {
		query = req.UserQuery
	}
	stepContext, _ := step.Input["context"].(map[string]any)
	maxResults := intField(step.Input, "max_results", 6)
	region := stringField(step.Input, "region")
	if region == "" {
		region = stringField(stepContext, "region")
	}
	safeSearch := stringField(step.Input, "safe_search")
	if safeSearch == "" {
		safeSearch = stringField(stepContext, "safe_search")
	}
	timebox := intField(step.Input, "timebox_seconds", 10)

	result, err := s.WebSearch.Search(ctx, query, maxResults, region, safeSearch, timebox)
	if err != nil {
		return nil, nil, err
	}
	toolArgs := map[string]any{
		"step_id":         step.ID,
		"input":           step.Input,
		"query":           query,
		"max_results":     maxResults,
		"region":          region,
		"safe_search":     safeSearch,
		"timebox_seconds":  timebox,
	}
	return result, toolArgs, nil
}

func (s *Supervisor) buildStepContextSummary(referenceID string, stepOutputs map[string]stepOutput) string {
	if referenceID == "" {
		return ""
	}
	referenced, ok := stepOutputs[referenceID]
	if !ok {
		return ""
	}

	var parts []string
	if referenced.researchResult != nil {
		if referenced.researchResult.Synthesis != "" {
			parts = append(parts, "Research synthesis: "+trimText(referenced.researchResult.Synthesis, 360))
		}
		if len(referenced.researchResult.Findings) > 0 {
			limit := 3
			if len(referenced.researchResult.Findings) < limit {
				limit = len(referenced.researchResult.Findings)
			}
			insights := make([]string, 0, limit)
			for _, f := range referenced.researchResult.Findings[:limit] {
				insights = append(insights, trimText(f.Insight, 160))
			}
			parts = append(parts, "Research findings: "+joinSemicolon(insights))
		}
	}

	if referenced.webSearchResult != nil && len(referenced.webSearchResult.Results) > 0 {
		limit := 3
		if len(referenced.webSearchResult.Results) < limit {
			limit = len(referenced.webSearchResult.Results)
		}
		sources := make([]string, 0, limit)
		for _, item := range referenced.webSearchResult.Results[:limit] {
			sources = append(sources, fmt.Sprintf("%s (%s)", trimText(item.Title, 100), item.URL))
		}
		parts = append(parts, "Web sources: "+joinSemicolon(sources))
	}

	if referenced.dataPayload != nil {
		if columns, ok := referenced.dataPayload["columns"].([]string); ok && len(columns) > 0 {
			limit := 8
			if len(columns) < limit {
				limit = len(columns)
			}
			parts = append(parts, "Data columns: "+trimText(joinComma(columns[:limit]), 180))
		}
		if rows, ok := referenced.dataPayload["rows"].([][]any); ok {
			parts = append(parts, fmt.Sprintf("Row count: %d", len(rows)))
			if columns, ok := referenced.dataPayload["columns"].([]string); ok {
				parts = append(parts, extractSampleValues(columns, rows)...)
			}
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return joinNewline(parts)
}

func mergeArtifacts(base *PlanExecutionArtifacts, updates PlanExecutionArtifacts) {
	if updates.AnalystResult != nil {
		base.AnalystResult = updates.AnalystResult
	}
	if len(updates.DataPayload) > 0 {
		base.DataPayload = updates.DataPayload
	}
	if len(updates.Visualization) > 0 {
		base.Visualization = updates.Visualization
	}
	if updates.ResearchResult != nil {
		base.ResearchResult = updates.ResearchResult
	}
	if updates.WebSearchResult != nil {
		base.WebSearchResult = updates.WebSearchResult
	}
	if updates.ClarifyingQuestion != "" {
		base.ClarifyingQuestion = updates.ClarifyingQuestion
	}
	if len(updates.ToolCalls) > 0 {
		base.ToolCalls = append(base.ToolCalls, updates.ToolCalls...)
	}
}

// mergeContext folds updates into base, deep-merging the "reasoning" key and
// de-duplicating-appending the "documents" list, matching _merge_context.
func mergeContext(base, updates map[string]any) map[string]any {
	merged := map[string]any{}
	for k, v := range base {
		merged[k] = v
	}
	for key, value := range updates {
		switch key {
		case "reasoning":
			if incoming, ok := value.(map[string]any); ok {
				existing, _ := merged["reasoning"].(map[string]any)
				out := map[string]any{}
				for k, v := range existing {
					out[k] = v
				}
				for k, v := range incoming {
					out[k] = v
				}
				merged["reasoning"] = out
				continue
			}
		case "documents":
			if incoming, ok := value.([]map[string]any); ok {
				existing, _ := merged["documents"].([]map[string]any)
				merged["documents"] = appendUnique(existing, incoming)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

func appendUnique(existing, incoming []map[string]any) []map[string]any {
	out := append([]map[string]any{}, existing...)
	for _, doc := range incoming {
		if !containsDoc(out, doc) {
			out = append(out, doc)
		}
	}
	return out
}

func containsDoc(docs []map[string]any, target map[string]any) bool {
	for _, d := range docs {
		if mapsEqual(d, target) {
			return true
		}
	}
	return false
}

func mapsEqual(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func mergeDocumentContext(docContext map[string]any, documents []map[string]any) map[string]any {
	merged := map[string]any{}
	for k, v := range docContext {
		merged[k] = v
	}
	if len(documents) == 0 {
		return merged
	}
	existing, _ := merged["documents"].([]map[string]any)
	merged["documents"] = appendUnique(existing, documents)
	return merged
}

func resolveRowsReference(referenceID string, stepOutputs map[string]stepOutput) map[string]any {
	if referenceID == "" {
		return nil
	}
	referenced, ok := stepOutputs[referenceID]
	if !ok {
		return nil
	}
	if referenced.dataPayload != nil {
		return referenced.dataPayload
	}
	if referenced.researchResult != nil {
		return referenced.researchResult.ToTabular()
	}
	return nil
}

func resolveDocumentsReference(referenceID string, stepOutputs map[string]stepOutput) []map[string]any {
	if referenceID == "" {
		return nil
	}
	referenced, ok := stepOutputs[referenceID]
	if !ok {
		return nil
	}
	if len(referenced.documents) > 0 {
		return referenced.documents
	}
	if referenced.webSearchResult != nil {
		return referenced.webSearchResult.ToDocuments()
	}
	return nil
}

func extractDataPayload(result analyst.QueryResponse) map[string]any {
	if result.Result == nil {
		return nil
	}
	return map[string]any{
		"columns": result.Result.Columns,
		"rows":    result.Result.Rows,
	}
}

func summarizeAnalystResult(result *analyst.QueryResponse, dataPayload map[string]any) string {
	if result == nil {
		return ""
	}
	if result.Result != nil {
		return fmt.Sprintf("%d rows in %dms", len(result.Result.Rows), result.Result.ElapsedMs)
	}
	if len(dataPayload) > 0 {
		summary := summarizeTabularPayload(dataPayload)
		if rowCount, ok := summary["row_count"]; ok {
			return fmt.Sprintf("%v rows", rowCount)
		}
	}
	return ""
}

func summarizeTabularPayload(payload map[string]any) map[string]any {
	summary := map[string]any{}
	if columns, ok := payload["columns"]; ok {
		summary["columns"] = columns
	}
	if rows, ok := payload["rows"].([][]any); ok {
		summary["row_count"] = len(rows)
	}
	return summary
}

func extractSampleValues(columns []string, rows [][]any) []string {
	if len(rows) == 0 || len(columns) == 0 {
		return nil
	}
	const maxColumns, maxRows, maxValues = 4, 6, 4
	limitCols := columns
	if len(limitCols) > maxColumns {
		limitCols = limitCols[:maxColumns]
	}
	limitRows := rows
	if len(limitRows) > maxRows {
		limitRows = limitRows[:maxRows]
	}

	var lines []string
	for colIndex, col := range limitCols {
		var seen []string
		for _, row := range limitRows {
			if colIndex >= len(row) || row[colIndex] == nil {
				continue
			}
			text := fmt.Sprintf("%v", row[colIndex])
			if text == "" || len(text) > 80 {
				continue
			}
			if !containsString(seen, text) {
				seen = append(seen, text)
			}
			if len(seen) >= maxValues {
				break
			}
		}
		if len(seen) > 0 {
			lines = append(lines, fmt.Sprintf("Sample values for %s: %s", col, joinComma(seen)))
		}
	}
	return lines
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func trimText(value string, limit int) string {
	cleaned := trimSpaceValue(value)
	if len(cleaned) <= limit {
		return cleaned
	}
	return trimSpaceValue(cleaned[:limit]) + "..."
}

func mergeConversationContext(base, extra string) string {
	baseText := trimSpaceValue(base)
	extraText := trimSpaceValue(extra)
	if extraText == "" {
		return baseText
	}
	if baseText != "" {
		return baseText + "\n\n" + extraText
	}
	return extraText
}

func trimSpaceValue(value string) string {
	return strings.TrimSpace(value)
}

func containsFold(haystack, needle string) bool {
	if strings.TrimSpace(needle) == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(strings.TrimSpace(needle)))
}

func joinSemicolon(values []string) string {
	return strings.Join(values, "; ")
}

func joinComma(values []string) string {
	return strings.Join(values, ", ")
}

func joinNewline(values []string) string {
	return strings.Join(values, "\n")
}

func intField(m map[string]any, key string, fallback int) int {
	if m == nil {
		return fallback
	}
	switch v := m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case *int:
		if v != nil {
			return *v
		}
	}
	return fallback
}
