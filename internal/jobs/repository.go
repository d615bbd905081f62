package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	appdb "github.com/basegraph/analystcore/core/db"
)

// Queryer is the subset of pgx.Tx/pgxpool.Pool the repository needs. Letting
// callers pass either lets Claim/AppendEvent run standalone (pool) or as part
// of a handler's own transaction (tx), the same duck-typing the teacher's
// sqlc.Queries wrapper gave it for free.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository is the JobRepository (spec §4.8/§6): CRUD plus the claim race
// and append-only event log, hand-written against pgx because no sqlc
// package was retrieved with the teacher (see DESIGN.md).
type Repository struct {
	db Queryer
}

func NewRepository(db Queryer) *Repository {
	return &Repository{db: db}
}

// TxRunner runs fn with a Repository scoped to one database transaction,
// mirroring the teacher's worker.TxRunner/StoreProvider split.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repo *Repository) error) error
}

type poolTxRunner struct {
	database *appdb.DB
}

// NewTxRunner adapts core/db.DB's pgx.Tx-scoped WithTx into a
// Repository-scoped TxRunner for the worker.
func NewTxRunner(database *appdb.DB) TxRunner {
	return &poolTxRunner{database: database}
}

func (r *poolTxRunner) WithTx(ctx context.Context, fn func(repo *Repository) error) error {
	return r.database.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(NewRepository(tx))
	})
}

// Create inserts a new queued JobRecord.
func (r *Repository) Create(ctx context.Context, rec *Record) (*Record, error) {
	headers, err := json.Marshal(rec.Headers)
	if err != nil {
		return nil, fmt.Errorf("marshaling headers: %w", err)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO jobs (organisation_id, job_type, payload, headers, status, priority, attempt, max_attempts)
		VALUES ($1, $2, $3, $4, 'queued', $5, 0, $6)
		RETURNING id, organisation_id, job_type, payload, headers, status, priority, attempt,
			max_attempts, lock_owner, locked_until, progress, status_message, result, error,
			created_at, updated_at, started_at, finished_at
	`, rec.OrganisationID, rec.JobType, rec.Payload, headers, rec.Priority, rec.MaxAttempts)
	return scanRecord(row)
}

// GetByID loads a JobRecord by id.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Record, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, organisation_id, job_type, payload, headers, status, priority, attempt,
			max_attempts, lock_owner, locked_until, progress, status_message, result, error,
			created_at, updated_at, started_at, finished_at
		FROM jobs WHERE id = $1
	`, id)
	return scanRecord(row)
}

// Claim atomically transitions a job from queued (or an expired running
// lease) to running under owner, extending the lease to now+leaseDuration
// and incrementing attempt. Returns (false, nil, nil) on a lost claim race —
// not an error, which Worker.claimWithRetry treats as a lost race.
func (r *Repository) Claim(ctx context.Context, jobID int64, owner string, leaseDuration time.Duration) (bool, *Record, error) {
	lockedUntil := time.Now().Add(leaseDuration)
	row := r.db.QueryRow(ctx, `
		UPDATE jobs
		SET status = 'running',
			lock_owner = $2,
			locked_until = $3,
			started_at = COALESCE(started_at, now()),
			attempt = attempt + 1,
			updated_at = now()
		WHERE id = $1
			AND (status = 'queued' OR (status = 'running' AND locked_until < now()))
		RETURNING id, organisation_id, job_type, payload, headers, status, priority, attempt,
			max_attempts, lock_owner, locked_until, progress, status_message, result, error,
			created_at, updated_at, started_at, finished_at
	`, jobID, owner, lockedUntil)
	rec, err := scanRecord(row)
	if errors.Is(err, ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return true, rec, nil
}

// RenewLease extends a held lease without altering status, letting a
// long-running handler avoid losing its claim mid-processing (spec §4.8
// "Lease renewal").
func (r *Repository) RenewLease(ctx context.Context, jobID int64, owner string, leaseDuration time.Duration) error {
	lockedUntil := time.Now().Add(leaseDuration)
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET locked_until = $3, updated_at = now()
		WHERE id = $1 AND lock_owner = $2 AND status = 'running'
	`, jobID, owner, lockedUntil)
	if err != nil {
		return fmt.Errorf("renewing lease: %w", err)
	}
	return nil
}

// UpdateProgress sets progress/status_message for a running job, matching the
// "handlers emit events via a broker emitter that also updates status_message,
// progress" behavior of spec §4.8 step 3.
func (r *Repository) UpdateProgress(ctx context.Context, jobID int64, progress int, statusMessage string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs SET progress = $2, status_message = $3, updated_at = now()
		WHERE id = $1
	`, jobID, progress, statusMessage)
	if err != nil {
		return fmt.Errorf("updating progress: %w", err)
	}
	return nil
}

// AppendEvent appends a JobEventRecord at the next monotonic index for
// jobID (one past the job's current maximum, computed inside the insert).
// Because the index is always fresh, a replayed call appends a second event
// rather than being skipped; ON CONFLICT only drops an insert that collides
// on (job_id, event_type, monotonic_index) with a concurrent append.
func (r *Repository) AppendEvent(ctx context.Context, jobID int64, eventType string, details map[string]any) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshaling event details: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO job_events (job_id, event_type, details, monotonic_index)
		SELECT $1, $2, $3, COALESCE(MAX(monotonic_index), 0) + 1
		FROM job_events WHERE job_id = $1
		ON CONFLICT (job_id, event_type, monotonic_index) DO NOTHING
	`, jobID, eventType, payload)
	if err != nil {
		return fmt.Errorf("appending job event: %w", err)
	}
	return nil
}

// Succeed writes the terminal succeeded transition: result, progress=100,
// finished_at=now.
func (r *Repository) Succeed(ctx context.Context, jobID int64, result json.RawMessage) error {
	_, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'succeeded', result = $2, progress = 100,
			finished_at = now(), updated_at = now()
		WHERE id = $1
	`, jobID, result)
	if err != nil {
		return fmt.Errorf("marking job succeeded: %w", err)
	}
	return nil
}

// Fail writes the terminal (or retry) failed transition. When retryable is
// true and attempt < max_attempts, the job returns to queued with its lease
// cleared instead of terminating, per spec §4.8 step 4.
func (r *Repository) Fail(ctx context.Context, jobID int64, errMsg string, retryable bool) error {
	if retryable {
		tag, err := r.db.Exec(ctx, `
			UPDATE jobs
			SET status = 'queued', error = $2, lock_owner = NULL, locked_until = NULL,
				updated_at = now()
			WHERE id = $1 AND attempt < max_attempts
		`, jobID, errMsg)
		if err != nil {
			return fmt.Errorf("requeuing failed job: %w", err)
		}
		if tag.RowsAffected() > 0 {
			return nil
		}
	}
	_, err := r.db.Exec(ctx, `
		UPDATE jobs
		SET status = 'failed', error = $2, finished_at = now(), updated_at = now()
		WHERE id = $1
	`, jobID, errMsg)
	if err != nil {
		return fmt.Errorf("marking job failed: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var headers []byte
	err := row.Scan(
		&rec.ID, &rec.OrganisationID, &rec.JobType, &rec.Payload, &headers, &rec.Status,
		&rec.Priority, &rec.Attempt, &rec.MaxAttempts, &rec.LockOwner, &rec.LockedUntil,
		&rec.Progress, &rec.StatusMessage, &rec.Result, &rec.Error,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.StartedAt, &rec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &rec.Headers); err != nil {
			return nil, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}
	return &rec, nil
}
