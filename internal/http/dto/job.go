// Package dto holds the HTTP request/response shapes for the job intake and
// plan inspection surface, mirroring the teacher's internal/http/dto
// per-endpoint request/response struct convention.
package dto

import "encoding/json"

// CreateJobRequest is the POST /v1/jobs request body.
type CreateJobRequest struct {
	OrganisationID int64             `json:"organisationId" binding:"required"`
	JobType        string            `json:"jobType" binding:"required"`
	Payload        json.RawMessage   `json:"payload" binding:"required"`
	Priority       int               `json:"priority"`
	MaxAttempts    int               `json:"maxAttempts"`
	Headers        map[string]string `json:"headers,omitempty"`
}

// CreateJobResponse is the POST /v1/jobs response body.
type CreateJobResponse struct {
	JobID  int64  `json:"jobId"`
	Status string `json:"status"`
}

// JobResponse is the GET /v1/jobs/:id response body.
type JobResponse struct {
	JobID         int64           `json:"jobId"`
	JobType       string          `json:"jobType"`
	Status        string          `json:"status"`
	Progress      int             `json:"progress"`
	StatusMessage string          `json:"statusMessage,omitempty"`
	Attempt       int             `json:"attempt"`
	MaxAttempts   int             `json:"maxAttempts"`
	Result        json.RawMessage `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
}
