package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/orchestrator"
)

// AnalystQuestionJobType is the job_type routed to AnalystQuestionHandler —
// a natural-language question answered by the supervisor's plan/execute/
// reason loop (spec §4.8 "Workers (C10) embed the same orchestrator to
// serve async jobs").
const AnalystQuestionJobType = "analyst_question"

// analystQuestionPayload is the JobRecord.Payload shape for
// AnalystQuestionJobType, mirroring orchestrator.HandleRequest's fields.
type analystQuestionPayload struct {
	UserQuery       string                      `json:"userQuery"`
	Filters         map[string]string           `json:"filters,omitempty"`
	Limit           int                         `json:"limit,omitempty"`
	Title           string                      `json:"title,omitempty"`
	Constraints     *orchestrator.PlanningConstraints `json:"constraints,omitempty"`
	PlanningContext map[string]any              `json:"planningContext,omitempty"`
}

// AnalystQuestionHandler dispatches a claimed JobRecord to a Supervisor,
// translating Record.Payload into a HandleRequest and HandleResult back
// into Record.Result. A malformed payload is a terminal, non-retryable
// BusinessValidation failure — retrying would just fail the same way again.
type AnalystQuestionHandler struct {
	Supervisor *orchestrator.Supervisor
}

func NewAnalystQuestionHandler(supervisor *orchestrator.Supervisor) *AnalystQuestionHandler {
	return &AnalystQuestionHandler{Supervisor: supervisor}
}

func (h *AnalystQuestionHandler) Handle(ctx context.Context, job *Record, progress ProgressReporter) (json.RawMessage, error) {
	var payload analystQuestionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, apperr.Newf(apperr.KindBusinessValidation, "decoding analyst_question payload: %v", err)
	}
	if payload.UserQuery == "" {
		return nil, apperr.New(apperr.KindBusinessValidation, fmt.Errorf("userQuery is required"))
	}

	_ = progress.Progress(ctx, 5, "planning")

	result, err := h.Supervisor.Handle(ctx, orchestrator.HandleRequest{
		UserQuery:       payload.UserQuery,
		Filters:         payload.Filters,
		Limit:           payload.Limit,
		Title:           payload.Title,
		Constraints:     payload.Constraints,
		PlanningContext: payload.PlanningContext,
	})
	if err != nil {
		return nil, apperr.Newf(apperr.KindToolProviderError, "supervisor handle: %v", err)
	}

	_ = progress.Progress(ctx, 95, "compiling result")

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding handle result: %w", err)
	}
	return encoded, nil
}
