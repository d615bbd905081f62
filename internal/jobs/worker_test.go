package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/basegraph/analystcore/internal/apperr"
	"github.com/basegraph/analystcore/internal/queue"
)

type fakeStore struct {
	records  map[int64]*Record
	claimed  []int64
	succeeds []int64
	fails    []string
}

func newFakeStore(records ...*Record) *fakeStore {
	s := &fakeStore{records: map[int64]*Record{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) Claim(_ context.Context, jobID int64, owner string, lease time.Duration) (bool, *Record, error) {
	rec, ok := s.records[jobID]
	if !ok || (rec.Status != StatusQueued && rec.Status != StatusRunning) {
		return false, nil, nil
	}
	rec.Status = StatusRunning
	rec.Attempt++
	owned := owner
	until := time.Now().Add(lease)
	rec.LockOwner = &owned
	rec.LockedUntil = &until
	s.claimed = append(s.claimed, jobID)
	return true, rec, nil
}

func (s *fakeStore) GetByID(_ context.Context, jobID int64) (*Record, error) {
	rec, ok := s.records[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) UpdateProgress(_ context.Context, jobID int64, progress int, statusMessage string) error {
	if rec, ok := s.records[jobID]; ok {
		rec.Progress = progress
		rec.StatusMessage = statusMessage
	}
	return nil
}

func (s *fakeStore) AppendEvent(_ context.Context, _ int64, _ string, _ map[string]any) error {
	return nil
}

func (s *fakeStore) RenewLease(_ context.Context, _ int64, _ string, _ time.Duration) error {
	return nil
}

func (s *fakeStore) Succeed(_ context.Context, jobID int64, result json.RawMessage) error {
	if rec, ok := s.records[jobID]; ok {
		rec.Status = StatusSucceeded
		rec.Result = result
	}
	s.succeeds = append(s.succeeds, jobID)
	return nil
}

func (s *fakeStore) Fail(_ context.Context, jobID int64, errMsg string, retryable bool) error {
	if rec, ok := s.records[jobID]; ok {
		if retryable && rec.Attempt < rec.MaxAttempts {
			rec.Status = StatusQueued
		} else {
			rec.Status = StatusFailed
		}
		rec.Error = errMsg
	}
	s.fails = append(s.fails, errMsg)
	return nil
}

type fakeConsumer struct {
	acked    []string
	requeued []string
	dlqed    []string
}

func (c *fakeConsumer) Read(_ context.Context) ([]queue.Message, error) { return nil, nil }
func (c *fakeConsumer) Ack(_ context.Context, msg queue.Message) error {
	c.acked = append(c.acked, msg.ID)
	return nil
}
func (c *fakeConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	c.requeued = append(c.requeued, msg.ID)
	return nil
}
func (c *fakeConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	c.dlqed = append(c.dlqed, msg.ID)
	return nil
}

func TestWorkerProcessMessageSucceeds(t *testing.T) {
	store := newFakeStore(&Record{ID: 1, JobType: "analyst_question", Status: StatusQueued, MaxAttempts: 3})
	consumer := &fakeConsumer{}
	handler := HandlerFunc(func(_ context.Context, job *Record, progress ProgressReporter) (json.RawMessage, error) {
		_ = progress.Progress(context.Background(), 50, "running")
		return json.RawMessage(`{"rows":1}`), nil
	})
	w := New(consumer, nil, store, map[string]Handler{"analyst_question": handler}, Config{WorkerID: "w1", LeaseDuration: time.Minute, MaxDeliveryAttempts: 3})

	err := w.ProcessMessage(context.Background(), queue.Message{ID: "1-0", JobID: 1, JobType: "analyst_question", Attempt: 1})
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if store.records[1].Status != StatusSucceeded {
		t.Errorf("status = %q, want succeeded", store.records[1].Status)
	}
	if len(consumer.acked) != 1 {
		t.Errorf("expected one ACK, got %d", len(consumer.acked))
	}
}

func TestWorkerProcessMessageRetryableFailureRequeuesJob(t *testing.T) {
	store := newFakeStore(&Record{ID: 2, JobType: "analyst_question", Status: StatusQueued, MaxAttempts: 3})
	consumer := &fakeConsumer{}
	handler := HandlerFunc(func(_ context.Context, _ *Record, _ ProgressReporter) (json.RawMessage, error) {
		return nil, apperr.New(apperr.KindToolProviderError, errors.New("transient upstream error"))
	})
	w := New(consumer, nil, store, map[string]Handler{"analyst_question": handler}, Config{WorkerID: "w1", LeaseDuration: time.Minute, MaxDeliveryAttempts: 3})

	err := w.ProcessMessage(context.Background(), queue.Message{ID: "2-0", JobID: 2, JobType: "analyst_question", Attempt: 1})
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if store.records[2].Status != StatusQueued {
		t.Errorf("status = %q, want queued (retryable failure)", store.records[2].Status)
	}
	if len(consumer.acked) != 1 {
		t.Errorf("expected the delivery to still be ACKed once the JobRecord retry is recorded, got %d", len(consumer.acked))
	}
}

func TestWorkerProcessMessageUnknownJobTypeFailsTerminal(t *testing.T) {
	store := newFakeStore(&Record{ID: 3, JobType: "unregistered", Status: StatusQueued, MaxAttempts: 3})
	consumer := &fakeConsumer{}
	w := New(consumer, nil, store, map[string]Handler{}, Config{WorkerID: "w1", LeaseDuration: time.Minute, MaxDeliveryAttempts: 3})

	err := w.ProcessMessage(context.Background(), queue.Message{ID: "3-0", JobID: 3, JobType: "unregistered", Attempt: 1})
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if store.records[3].Status != StatusFailed {
		t.Errorf("status = %q, want failed", store.records[3].Status)
	}
}

func TestWorkerProcessMessageLostClaimRaceLeavesTerminalJobAcked(t *testing.T) {
	store := newFakeStore(&Record{ID: 4, JobType: "analyst_question", Status: StatusSucceeded, MaxAttempts: 3})
	consumer := &fakeConsumer{}
	w := New(consumer, nil, store, map[string]Handler{}, Config{WorkerID: "w1", LeaseDuration: time.Minute, MaxDeliveryAttempts: 3})

	err := w.ProcessMessage(context.Background(), queue.Message{ID: "4-0", JobID: 4, JobType: "analyst_question", Attempt: 1})
	if err != nil {
		t.Fatalf("ProcessMessage returned error: %v", err)
	}
	if len(consumer.acked) != 1 {
		t.Errorf("expected a re-delivered message for an already-terminal job to be ACKed, got %d", len(consumer.acked))
	}
}
