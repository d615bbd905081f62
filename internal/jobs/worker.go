package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/basegraph/analystcore/common/logger"
	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/queue"
)

// maxClaimRetries bounds the "retry up to K times before backing off" claim
// race behavior of spec §4.8 step 1 — a handful of tight retries is enough
// to win against a sibling worker racing the same expired lease.
const maxClaimRetries = 3

var errClaimRace = errors.New("lost job claim race")

// claimWithRetry retries a lost claim race (not a claim error) a bounded
// number of times with backoff, via sethvargo/go-retry.
func (w *Worker) claimWithRetry(ctx context.Context, jobID int64) (bool, *Record, error) {
	backoff := retry.WithMaxRetries(uint64(maxClaimRetries), retry.NewConstant(25*time.Millisecond))

	var claimed bool
	var rec *Record
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, r, claimErr := w.repo.Claim(ctx, jobID, w.cfg.WorkerID, w.cfg.LeaseDuration)
		if claimErr != nil {
			return claimErr
		}
		if !c {
			return retry.RetryableError(errClaimRace)
		}
		claimed, rec = true, r
		return nil
	})
	if err != nil {
		if errors.Is(err, errClaimRace) {
			return false, nil, nil
		}
		return false, nil, err
	}
	return claimed, rec, nil
}

// Consumer abstracts the message queue for testability, matching the
// teacher's worker.Consumer shape.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// JobStore is the subset of *Repository the worker depends on, narrowed to
// an interface so tests can fake it without a database.
type JobStore interface {
	Claim(ctx context.Context, jobID int64, owner string, leaseDuration time.Duration) (bool, *Record, error)
	GetByID(ctx context.Context, jobID int64) (*Record, error)
	UpdateProgress(ctx context.Context, jobID int64, progress int, statusMessage string) error
	AppendEvent(ctx context.Context, jobID int64, eventType string, details map[string]any) error
	RenewLease(ctx context.Context, jobID int64, owner string, leaseDuration time.Duration) error
	Succeed(ctx context.Context, jobID int64, result json.RawMessage) error
	Fail(ctx context.Context, jobID int64, errMsg string, retryable bool) error
}

// ProgressReporter is handed to a Handler so it can surface progress and
// extend its lease without reaching into the repository directly (spec
// §4.8 steps 3 and 5).
type ProgressReporter interface {
	Progress(ctx context.Context, progress int, statusMessage string) error
	Event(ctx context.Context, eventType string, details map[string]any) error
	RenewLease(ctx context.Context) error
}

// Handler dispatches one claimed JobRecord's payload (spec §4.8 step 2). The
// supervisor-backed job_type handlers embed orchestrator.Supervisor per
// "Workers (C10) embed the same orchestrator to serve async jobs."
type Handler interface {
	Handle(ctx context.Context, job *Record, progress ProgressReporter) (json.RawMessage, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, job *Record, progress ProgressReporter) (json.RawMessage, error)

func (f HandlerFunc) Handle(ctx context.Context, job *Record, progress ProgressReporter) (json.RawMessage, error) {
	return f(ctx, job, progress)
}

// Config parameterizes a Worker (spec §4.8 "A worker is parameterized by
// { id, queue, handlers_by_message_type, lease_duration, max_attempts }").
type Config struct {
	WorkerID             string
	LeaseDuration        time.Duration
	MaxDeliveryAttempts  int // message-level retries before DLQ, distinct from JobRecord.MaxAttempts
}

// Worker claims, dispatches, and terminates JobRecords delivered over a
// Consumer, matching internal/worker/worker.go's run/stop/batch shape.
type Worker struct {
	consumer Consumer
	producer queue.Producer
	repo     JobStore
	handlers map[string]Handler
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, producer queue.Producer, repo JobStore, handlers map[string]Handler, cfg Config) *Worker {
	return &Worker{
		consumer:  consumer,
		producer:  producer,
		repo:      repo,
		handlers:  handlers,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "analystcore-worker started", "worker_id", w.cfg.WorkerID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "analystcore-worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"job_id", msg.JobID)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"stack", string(debug.Stack()),
				"message_id", msg.ID,
				"job_id", msg.JobID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// ProcessMessage implements the claim→dispatch→terminal-transition cycle of
// spec §4.8. Exported so a reclaimer can reuse it for reclaimed messages.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: logger.Ptr(msg.JobID)})
	slog.InfoContext(ctx, "processing job message", "message_id", msg.ID, "attempt", msg.Attempt)

	claimed, rec, err := w.claimWithRetry(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("claiming job: %w", err)
	}

	if !claimed {
		// Lost the claim race, or the job is already in a terminal state.
		// Only ACK when terminal or missing; leave pending otherwise, since
		// another worker may still be holding a live lease on it.
		current, getErr := w.repo.GetByID(ctx, msg.JobID)
		if getErr != nil && getErr != ErrNotFound {
			slog.WarnContext(ctx, "failed to check job status", "error", getErr)
			return nil
		}
		if current == nil || isTerminal(current.Status) {
			slog.InfoContext(ctx, "job already terminal, acknowledging")
			if ackErr := w.consumer.Ack(ctx, msg); ackErr != nil {
				slog.WarnContext(ctx, "failed to ACK message", "error", ackErr)
			}
		} else {
			slog.InfoContext(ctx, "job still held by another lease, leaving message pending", "status", current.Status)
		}
		return nil
	}

	handler, ok := w.handlers[rec.JobType]
	if !ok {
		bizErr := apperr.Newf(apperr.KindBusinessValidation, "no handler registered for job_type %q", rec.JobType)
		if failErr := w.repo.Fail(ctx, rec.ID, bizErr.Error(), false); failErr != nil {
			return fmt.Errorf("recording unknown job_type failure: %w", failErr)
		}
		return w.consumer.Ack(ctx, msg)
	}

	reporter := &progressReporter{repo: w.repo, jobID: rec.ID, workerID: w.cfg.WorkerID, leaseDuration: w.cfg.LeaseDuration}

	// Dispatch OUTSIDE any transaction: handlers call Completers, connectors,
	// and research agents, any of which can run for minutes. Holding a DB
	// transaction across that span would starve the pool.
	result, procErr := handler.Handle(ctx, rec, reporter)
	if procErr != nil {
		retryable := apperr.IsRetryable(procErr)
		if failErr := w.repo.Fail(ctx, rec.ID, procErr.Error(), retryable); failErr != nil {
			return fmt.Errorf("recording job failure: %w", failErr)
		}
		if retryable && rec.Attempt < rec.MaxAttempts && w.producer != nil {
			if pubErr := w.producer.Enqueue(ctx, queue.JobMessage{JobID: rec.ID, JobType: rec.JobType, Attempt: rec.Attempt + 1}); pubErr != nil {
				slog.ErrorContext(ctx, "failed to republish retryable job", "error", pubErr)
			}
		}
		slog.WarnContext(ctx, "job handler failed", "error", procErr, "retryable", retryable)
		return w.consumer.Ack(ctx, msg)
	}

	if err := w.repo.Succeed(ctx, rec.ID, result); err != nil {
		return fmt.Errorf("recording job success: %w", err)
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "job completed successfully", "job_type", rec.JobType)
	return nil
}

// handleFailedMessage handles infrastructure-level failures (claim errors,
// panics) distinct from business-level handler failures, which ProcessMessage
// already recorded on the JobRecord itself before returning nil.
func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxDeliveryAttempts {
		// Clear any half-claimed lease before DLQ so a crashed claim doesn't
		// leave the job stuck 'running' forever with no worker renewing it.
		if current, getErr := w.repo.GetByID(ctx, msg.JobID); getErr == nil && current != nil && current.Status == StatusRunning {
			if resetErr := w.repo.Fail(ctx, msg.JobID, err.Error(), false); resetErr != nil {
				slog.WarnContext(ctx, "failed to reset job before DLQ", "error", resetErr, "job_id", msg.JobID)
			}
		}

		slog.ErrorContext(ctx, "max delivery attempts reached, sending to DLQ",
			"message_id", msg.ID, "job_id", msg.JobID, "attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message", "message_id", msg.ID, "job_id", msg.JobID, "attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}

func isTerminal(status Status) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCancelled
}

type progressReporter struct {
	repo          JobStore
	jobID         int64
	workerID      string
	leaseDuration time.Duration
}

func (p *progressReporter) Progress(ctx context.Context, progress int, statusMessage string) error {
	return p.repo.UpdateProgress(ctx, p.jobID, progress, statusMessage)
}

func (p *progressReporter) Event(ctx context.Context, eventType string, details map[string]any) error {
	return p.repo.AppendEvent(ctx, p.jobID, eventType, details)
}

func (p *progressReporter) RenewLease(ctx context.Context) error {
	return p.repo.RenewLease(ctx, p.jobID, p.workerID, p.leaseDuration)
}
