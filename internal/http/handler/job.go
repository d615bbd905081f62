package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/basegraph/analystcore/internal/http/dto"
	"github.com/basegraph/analystcore/internal/jobs"
	"github.com/basegraph/analystcore/internal/queue"
)

const defaultJobMaxAttempts = 3

// JobHandler is the job intake and status-lookup surface: it persists a
// JobRecord and publishes the claim notification a worker's Consumer reads,
// mirroring the teacher's EventIngestHandler.Ingest request/persist/enqueue
// shape generalized from a single issue-event type to an arbitrary job_type.
type JobHandler struct {
	repo     *jobs.Repository
	producer queue.Producer
}

func NewJobHandler(repo *jobs.Repository, producer queue.Producer) *JobHandler {
	return &JobHandler{repo: repo, producer: producer}
}

func (h *JobHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultJobMaxAttempts
	}

	rec, err := h.repo.Create(ctx, &jobs.Record{
		OrganisationID: req.OrganisationID,
		JobType:        req.JobType,
		Payload:        req.Payload,
		Headers:        req.Headers,
		Priority:       req.Priority,
		MaxAttempts:    maxAttempts,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := h.producer.Enqueue(ctx, queue.JobMessage{JobID: rec.ID, JobType: rec.JobType}); err != nil {
		// The job row exists but nothing will claim it yet; a future
		// reconciliation sweep (not built) would re-publish orphaned queued
		// rows. Surface the failure rather than pretend intake succeeded.
		slog.ErrorContext(ctx, "failed to enqueue job", "error", err, "job_id", rec.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job created but failed to enqueue"})
		return
	}

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{JobID: rec.ID, Status: string(rec.Status)})
}

func (h *JobHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	rec, err := h.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		slog.ErrorContext(ctx, "failed to load job", "error", err, "job_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	c.JSON(http.StatusOK, dto.JobResponse{
		JobID: rec.ID, JobType: rec.JobType, Status: string(rec.Status),
		Progress: rec.Progress, StatusMessage: rec.StatusMessage,
		Attempt: rec.Attempt, MaxAttempts: rec.MaxAttempts,
		Result: rec.Result, Error: rec.Error,
	})
}
