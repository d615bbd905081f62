// Package jobs implements the worker job lifecycle (C10): claim, lease,
// dispatch, progress, terminal transitions, and lease renewal over JobRecords
// persisted in Postgres and delivered at-least-once via the message broker in
// internal/queue.
//
// Grounded on internal/worker/worker.go's claim/process/ACK/DLQ shape,
// generalized from a single "issue" entity to an arbitrary job_type registry.
package jobs

import (
	"encoding/json"
	"errors"
	"time"
)

// Status is a JobRecord's position in the queued→running→{succeeded,failed,
// cancelled} graph (spec §3).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ErrNotFound mirrors the teacher's store.ErrNotFound sentinel.
var ErrNotFound = errors.New("job not found")

// Record is a JobRecord (spec §3): the only mutable shared resource in the
// worker subsystem, guarded by the (lock_owner, locked_until) lease pair.
type Record struct {
	ID             int64
	OrganisationID int64
	JobType        string
	Payload        json.RawMessage
	Headers        map[string]string
	Status         Status
	Priority       int
	Attempt        int
	MaxAttempts    int
	LockOwner      *string
	LockedUntil    *time.Time
	Progress       int
	StatusMessage  string
	Result         json.RawMessage
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
}

// EventRecord is one append-only JobEventRecord (spec §3), ordered by
// MonotonicIndex within a job.
type EventRecord struct {
	ID             int64
	JobID          int64
	EventType      string
	Details        map[string]any
	MonotonicIndex int64
	CreatedAt      time.Time
}
