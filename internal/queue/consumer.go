package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basegraph/analystcore/common/logger"
)

// ConsumerConfig parameterizes a worker's Redis Streams consumer group.
type ConsumerConfig struct {
	Stream       string        // Redis stream name
	Group        string        // Redis consumer group name
	Consumer     string        // Redis consumer name (this worker's identity)
	DLQStream    string        // Dead letter queue stream for exhausted retries
	BatchSize    int64         // Number of messages to read per poll
	Block        time.Duration // How long to block/poll for new messages
	MaxAttempts  int           // Maximum retry attempts before moving to DLQ
	RequeueDelay time.Duration // Delay before retrying failed messages
}

// RedisConsumer is the Consumer capability the worker depends on.
type RedisConsumer struct {
	client *redis.Client
	cfg    ConsumerConfig
}

func NewRedisConsumer(client *redis.Client, cfg ConsumerConfig) (*RedisConsumer, error) {
	consumer := &RedisConsumer{client: client, cfg: cfg}

	if err := consumer.ensureGroup(context.Background()); err != nil { //nolint:contextcheck
		return nil, err
	}

	return consumer, nil
}

func (c *RedisConsumer) ensureGroup(ctx context.Context) error {
	// Starting the group from "0" instead of "$" means a freshly (re)created
	// group still sees everything already on the stream, so a restart never
	// silently drops in-flight job claims.
	if err := c.client.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err(); err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context) ([]Message, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "analystcore.queue.consumer"})

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		// ">" = new messages not yet delivered to anyone; unacked messages
		// from a crashed consumer are handled by the reclaimer instead.
		Streams: []string{c.cfg.Stream, ">"},
		Count:   c.cfg.BatchSize,
		Block:   c.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []Message{}, nil
		}
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	var messages []Message
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			parsed, parseErr := ParseMessage(msg)
			if parseErr != nil {
				slog.ErrorContext(ctx, "failed to parse message",
					"error", parseErr,
					"raw_message_id", msg.ID,
					"stream", c.cfg.Stream)
				_ = c.Ack(ctx, Message{ID: msg.ID, Raw: msg})
				continue
			}
			messages = append(messages, parsed)
		}
	}

	if len(messages) > 0 {
		slog.DebugContext(ctx, "read messages from stream",
			"count", len(messages),
			"stream", c.cfg.Stream,
			"consumer", c.cfg.Consumer)
	}

	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, msg Message) error {
	if err := c.client.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
		return fmt.Errorf("xack (stream=%s): %w", c.cfg.Stream, err)
	}
	slog.DebugContext(ctx, "message acknowledged", "stream", c.cfg.Stream)
	return nil
}

func (c *RedisConsumer) Requeue(ctx context.Context, msg Message, errMsg string) error {
	return c.RequeueWithAttempt(ctx, msg, msg.Attempt+1, errMsg)
}

func (c *RedisConsumer) RequeueWithAttempt(ctx context.Context, msg Message, attempt int, errMsg string) error {
	if attempt <= 0 {
		attempt = msg.Attempt
		if attempt <= 0 {
			attempt = 1
		}
	}

	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for requeue: %w", err)
	}

	values := messageValues(msg, attempt)
	if errMsg != "" {
		values["last_error"] = errMsg
	}

	if c.cfg.RequeueDelay > 0 {
		time.Sleep(c.cfg.RequeueDelay)
	}

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.Stream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd requeue: %w", err)
	}

	slog.InfoContext(ctx, "message requeued for retry", "next_attempt", attempt, "reason", errMsg)
	return nil
}

func (c *RedisConsumer) SendDLQ(ctx context.Context, msg Message, errMsg string) error {
	if err := c.Ack(ctx, msg); err != nil {
		return fmt.Errorf("acking failed message for dlq: %w", err)
	}

	values := messageValues(msg, msg.Attempt)
	values["error"] = errMsg

	if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.cfg.DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("xadd dlq (stream=%s): %w", c.cfg.DLQStream, err)
	}

	slog.ErrorContext(ctx, "message sent to DLQ", "final_error", errMsg, "dlq_stream", c.cfg.DLQStream)
	return nil
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	jobID, err := parseInt64(msg.Values, "job_id")
	if err != nil {
		return Message{}, err
	}
	jobType, err := parseOptionalString(msg.Values, "job_type")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	attempt, err := parseOptionalInt(msg.Values, "attempt")
	if err != nil {
		return Message{}, err
	}
	if attempt == 0 {
		attempt = 1
	}

	return Message{
		ID:      msg.ID,
		JobID:   jobID,
		JobType: jobType,
		Attempt: attempt,
		TraceID: traceID,
		Raw:     msg,
	}, nil
}

func parseInt64(values map[string]any, key string) (int64, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	num, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, nil
	}
	num, err := strconv.Atoi(fmt.Sprint(raw))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func messageValues(msg Message, attempt int) map[string]any {
	values := map[string]any{
		"job_id":  msg.JobID,
		"attempt": attempt,
	}
	if msg.JobType != "" {
		values["job_type"] = msg.JobType
	}
	if msg.TraceID != "" {
		values["trace_id"] = msg.TraceID
	}
	return values
}
