// Package queue implements the MessageBroker (spec §4.8/§6): Redis Streams
// delivery of JobRecord claim notifications to worker processes, at-least-
// once, with a consumer group per worker pool and a dead-letter stream for
// exhausted retries.
//
// Grounded on internal/queue/{task.go,consumer.go,producer.go}, generalized
// from the teacher's single issue_event task type to an arbitrary job_type
// registry addressed by JobID.
package queue

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Message is one delivered stream entry naming a JobRecord to claim.
type Message struct {
	ID      string
	JobID   int64
	JobType string
	Attempt int
	TraceID string
	Raw     redis.XMessage
}

// MessageProcessor processes one delivered message.
type MessageProcessor func(ctx context.Context, msg Message) error
