package dto

import "github.com/basegraph/analystcore/internal/orchestrator"

// PlanPreviewRequest is the POST /v1/plan/preview request body: it asks the
// planner/router (C7) what plan a question would produce without
// executing it, for client-side debugging and route inspection.
type PlanPreviewRequest struct {
	Question    string                             `json:"question" binding:"required"`
	Context     map[string]any                      `json:"context,omitempty"`
	Constraints *orchestrator.PlanningConstraints `json:"constraints,omitempty"`
}

// PlanPreviewResponse echoes the compiled Plan.
type PlanPreviewResponse struct {
	Plan orchestrator.Plan `json:"plan"`
}
