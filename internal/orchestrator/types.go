// Package orchestrator implements the planner/router (C7), the supervisor
// orchestrator (C8), and the reasoning controller (C9).
//
// Grounded on original_source/.../agents/planner/router.py,
// .../agents/supervisor/orchestrator.py, and .../agents/reasoning/agent.py,
// with the iteration/retry control flow generalised from
// internal/brain/orchestrator.go's HandleEngagement loop.
package orchestrator

// AgentName identifies the kind of work a PlanStep dispatches to.
type AgentName string

const (
	AgentAnalyst      AgentName = "Analyst"
	AgentVisual       AgentName = "Visual"
	AgentWebSearch    AgentName = "WebSearch"
	AgentDocRetrieval AgentName = "DocRetrieval"
	AgentClarify      AgentName = "Clarify"
)

// RouteName is the planner's classification of a request into one of five
// execution strategies.
type RouteName string

const (
	RouteSimpleAnalyst     RouteName = "SimpleAnalyst"
	RouteAnalystThenVisual RouteName = "AnalystThenVisual"
	RouteWebSearch         RouteName = "WebSearch"
	RouteDeepResearch      RouteName = "DeepResearch"
	RouteClarify           RouteName = "Clarify"
)

// negInf stands in for Python's float("-inf"): a route that is unavailable
// or explicitly avoided never wins selectBestRoute's comparison.
const negInf = -1e18

// PlanningConstraints bounds what the planner is allowed to choose.
type PlanningConstraints struct {
	MaxSteps                int    `json:"maxSteps"`
	PreferLowLatency        bool   `json:"preferLowLatency"`
	RequireVizWhenChartable bool   `json:"requireVizWhenChartable"`
	AllowSQLAnalyst         bool   `json:"allowSqlAnalyst"`
	AllowWebSearch          bool   `json:"allowWebSearch"`
	AllowDeepResearch       bool   `json:"allowDeepResearch"`
	TimeboxSeconds          *int   `json:"timeboxSeconds,omitempty"`
	CostSensitivity         string `json:"costSensitivity,omitempty"`
}

// DefaultConstraints mirrors PlanningConstraints' dataclass defaults: a
// latency-neutral planner allowed up to 4 steps, with SQL analysis, web
// search and deep research enabled and a visualization required when the
// result is chartable.
func DefaultConstraints() PlanningConstraints {
	return PlanningConstraints{
		MaxSteps:                4,
		RequireVizWhenChartable: true,
		AllowSQLAnalyst:         true,
		AllowWebSearch:          true,
		AllowDeepResearch:       true,
	}
}

// PlannerRequest is the planner's sole input.
type PlannerRequest struct {
	Question    string
	Context     map[string]any
	Constraints PlanningConstraints
}

// RouteSignals are the keyword-family signals extracted from the question.
type RouteSignals struct {
	HasSQLSignals         bool
	HasVisualCues         bool
	HasResearchSignals    bool
	HasWebSearchSignals   bool
	RequiresClarification bool
	Chartable             bool
	HasTimeReference      bool
	HasEntityReference    bool
}

// RouteDecision is the outcome of choosing a route, before steps are built.
type RouteDecision struct {
	Route         RouteName
	Justification string
	Signals       RouteSignals
	Assumptions   []string
}

// PlanStep is one dispatchable unit of a Plan. Input/ExpectedOutput are
// untyped since each agent has its own payload shape (spec §4: tagged
// variant, one payload shape per agent, rather than dynamic lookups via a
// shared struct).
type PlanStep struct {
	ID             string         `json:"id"`
	Agent          AgentName      `json:"agent"`
	Input          map[string]any `json:"input"`
	ExpectedOutput map[string]any `json:"expectedOutput"`
}

// Plan is the ordered list of steps the supervisor (C8) dispatches.
type Plan struct {
	Route         RouteName
	Justification string
	Steps         []PlanStep
	Assumptions   []string
}

// RoutingOverrides is context-driven steering extracted from
// context["routing"] (or context["reasoning"] as a fallback), normally
// populated by the reasoning controller (C9) between iterations.
type RoutingOverrides struct {
	ForceRoute          RouteName
	PreferRoutes        []RouteName
	AvoidRoutes         map[RouteName]bool
	PreviousRoute       RouteName
	RequireVisual       bool
	RequireWebSearch    bool
	RequireDeepResearch bool
	RequireSQL          bool
}
