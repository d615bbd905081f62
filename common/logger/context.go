package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, enabling zero-touch logging where request
// context (job_id, request_id, etc.) is automatically included in all log statements.
type LogFields struct {
	RequestID  *string // Orchestrator request ID
	JobID      *int64  // Worker job ID
	Route      *string // Planner route chosen for the current iteration
	Iteration  *int    // Supervisor iteration index
	StepID     *string // Plan step ID currently dispatching
	Dialect    *string // SQL dialect of the current translation/execution
	Component  string  // Component name (OTel semantic convention style, e.g., "analystcore.orchestrator.supervisor")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
// Context timeouts and cancellation are preserved.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

// mergeFields merges two LogFields, preferring non-nil/non-empty values from 'new'.
func mergeFields(existing, new LogFields) LogFields {
	result := existing

	if new.RequestID != nil {
		result.RequestID = new.RequestID
	}
	if new.JobID != nil {
		result.JobID = new.JobID
	}
	if new.Route != nil {
		result.Route = new.Route
	}
	if new.Iteration != nil {
		result.Iteration = new.Iteration
	}
	if new.StepID != nil {
		result.StepID = new.StepID
	}
	if new.Dialect != nil {
		result.Dialect = new.Dialect
	}
	if new.Component != "" {
		result.Component = new.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{JobID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Useful for logging potentially long strings like queries or error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
