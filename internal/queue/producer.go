package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/basegraph/analystcore/common/logger"
)

// JobMessage is the claim-notification payload the API/enqueue path
// publishes when a JobRecord transitions to queued.
type JobMessage struct {
	JobID   int64
	JobType string
	TraceID *string
	Attempt int
}

// Producer abstracts message publication for testability.
type Producer interface {
	Enqueue(ctx context.Context, msg JobMessage) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
}

func NewRedisProducer(client *redis.Client, stream string) Producer {
	return &redisProducer{client: client, stream: stream}
}

func (p *redisProducer) Enqueue(ctx context.Context, msg JobMessage) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:     logger.Ptr(msg.JobID),
		Component: "analystcore.queue.producer",
	})

	attempt := msg.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		"job_id":  msg.JobID,
		"attempt": attempt,
	}
	if msg.JobType != "" {
		fields["job_type"] = msg.JobType
	}

	traceIDStr := ""
	if msg.TraceID != nil && *msg.TraceID != "" {
		fields["trace_id"] = *msg.TraceID
		traceIDStr = *msg.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: p.stream, Values: fields}).Err(); err != nil {
		return fmt.Errorf("enqueue job (stream=%s): %w", p.stream, err)
	}

	slog.InfoContext(ctx, "enqueued job",
		"job_type", msg.JobType,
		"attempt", attempt,
		"trace_id", traceIDStr,
		"stream", p.stream)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
