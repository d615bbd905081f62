package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/basegraph/analystcore/internal/http/dto"
	"github.com/basegraph/analystcore/internal/orchestrator"
)

// PlanHandler exposes the planner/router (C7) for inspection: it compiles
// the Plan a question would produce without dispatching any agent, useful
// for debugging route selection and step wiring before submitting a job.
type PlanHandler struct{}

func NewPlanHandler() *PlanHandler { return &PlanHandler{} }

func (h *PlanHandler) Preview(c *gin.Context) {
	var req dto.PlanPreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	constraints := orchestrator.DefaultConstraints()
	if req.Constraints != nil {
		constraints = *req.Constraints
	}

	plan := orchestrator.BuildPlan(orchestrator.PlannerRequest{
		Question:    req.Question,
		Context:     req.Context,
		Constraints: constraints,
	})

	c.JSON(http.StatusOK, dto.PlanPreviewResponse{Plan: plan})
}
