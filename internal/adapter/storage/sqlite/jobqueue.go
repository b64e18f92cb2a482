package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/tribora/internal/adapter/storage/sqlite/sqlitedb"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

const defaultLease = 10 * time.Minute

type JobQueue struct {
	queries *sqlitedb.Queries
	now     func() time.Time
}

func NewJobQueue(store *Store) *JobQueue {
	return &JobQueue{
		queries: store.queries,
		now:     store.now,
	}
}

func (q *JobQueue) Enqueue(ctx context.Context, job domain.NewJob) (*domain.Job, error) {
	return insertJob(ctx, q.queries, job, q.now())
}

func (q *JobQueue) Claim(ctx context.Context, params port.ClaimParams) (*domain.Job, error) {
	lease := params.Lease
	if lease <= 0 {
		lease = defaultLease
	}
	var types sql.NullString
	if len(params.Types) > 0 {
		raw, err := json.Marshal(params.Types)
		if err != nil {
			return nil, fmt.Errorf("marshal job types: %w", err)
		}
		types = sql.NullString{String: string(raw), Valid: true}
	}

	now := q.now()
	row, err := q.queries.ClaimNextJob(ctx, sqlitedb.ClaimNextJobParams{
		LockedBy:    params.WorkerID,
		LockedUntil: toMillis(now.Add(lease)),
		Now:         toMillis(now),
		TypesJSON:   types,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoJob
		}
		return nil, err
	}
	return jobFromRow(row), nil
}

func (q *JobQueue) Complete(ctx context.Context, jobID int64) error {
	return affected(q.queries.CompleteJob(ctx, sqlitedb.CompleteJobParams{
		CompletedAt: toMillis(q.now()),
		ID:          jobID,
	}))
}

func (q *JobQueue) Fail(ctx context.Context, jobID int64, errMsg string) error {
	return affected(q.queries.FailJob(ctx, sqlitedb.FailJobParams{
		ErrorMessage: errMsg,
		CompletedAt:  toMillis(q.now()),
		ID:           jobID,
	}))
}

func (q *JobQueue) Heartbeat(ctx context.Context, jobID int64, workerID string, lease time.Duration) error {
	n, err := q.queries.ExtendJobLease(ctx, sqlitedb.ExtendJobLeaseParams{
		LockedUntil: toMillis(q.now().Add(lease)),
		ID:          jobID,
		LockedBy:    workerID,
	})
	return leaseHeld(n, err)
}

// Release hands a claimed job back to the queue without counting an attempt.
func (q *JobQueue) Release(ctx context.Context, jobID int64, workerID string) error {
	return leaseHeld(q.queries.ReleaseJob(ctx, sqlitedb.ReleaseJobParams{
		ID:       jobID,
		LockedBy: workerID,
	}))
}

// ResetStalled returns jobs whose lease expired to the pending state. The
// expired run counts as an attempt.
func (q *JobQueue) ResetStalled(ctx context.Context) (int64, error) {
	return q.queries.ResetStalledJobs(ctx, toMillis(q.now()))
}

func (q *JobQueue) Stats(ctx context.Context) (domain.JobStats, error) {
	rows, err := q.queries.CountJobsByStatus(ctx)
	if err != nil {
		return domain.JobStats{}, err
	}
	var stats domain.JobStats
	for _, r := range rows {
		switch domain.JobStatus(r.Status) {
		case domain.JobStatusPending:
			stats.Pending = r.Count
		case domain.JobStatusProcessing:
			stats.Processing = r.Count
		case domain.JobStatusCompleted:
			stats.Completed = r.Count
		case domain.JobStatusFailed:
			stats.Failed = r.Count
		}
	}
	stats.Stalled, err = q.queries.CountStalledJobs(ctx, toMillis(q.now()))
	if err != nil {
		return domain.JobStats{}, err
	}
	return stats, nil
}

func (q *JobQueue) ListByContent(ctx context.Context, contentID string) ([]*domain.Job, error) {
	rows, err := q.queries.ListJobsByContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	jobs := make([]*domain.Job, len(rows))
	for i, row := range rows {
		jobs[i] = jobFromRow(row)
	}
	return jobs, nil
}

func insertJob(ctx context.Context, q *sqlitedb.Queries, job domain.NewJob, now time.Time) (*domain.Job, error) {
	if job.Payload == nil {
		return nil, fmt.Errorf("%w: job without payload", domain.ErrValidation)
	}
	jobType := job.Type
	if jobType == "" {
		jobType = job.Payload.JobType()
	}
	if jobType != job.Payload.JobType() {
		return nil, fmt.Errorf("%w: %s job with %s payload", domain.ErrValidation, jobType, job.Payload.JobType())
	}
	payload, err := domain.EncodePayload(job.Payload)
	if err != nil {
		return nil, err
	}
	runAt := job.RunAt
	if runAt.IsZero() {
		runAt = now
	}

	row, err := q.InsertJob(ctx, sqlitedb.InsertJobParams{
		Type:      string(jobType),
		ContentID: job.ContentID,
		OrgID:     job.OrgID,
		Chain:     string(domain.ChainOf(jobType)),
		Payload:   string(payload),
		Attempt:   int64(job.Attempt),
		RunAt:     toMillis(runAt),
		CreatedAt: toMillis(now),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s for content %s", domain.ErrActiveJob, jobType, job.ContentID)
		}
		return nil, fmt.Errorf("insert %s job: %w", jobType, err)
	}
	return jobFromRow(row), nil
}

func leaseHeld(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

func jobFromRow(row sqlitedb.Job) *domain.Job {
	return &domain.Job{
		ID:           row.ID,
		Type:         domain.JobType(row.Type),
		Status:       domain.JobStatus(row.Status),
		ContentID:    row.ContentID,
		OrgID:        row.OrgID,
		Chain:        domain.Chain(row.Chain),
		Payload:      json.RawMessage(row.Payload),
		Attempt:      int(row.Attempt),
		RunAt:        fromMillis(row.RunAt),
		LockedBy:     row.LockedBy,
		LockedUntil:  fromNullMillis(row.LockedUntil),
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    fromMillis(row.CreatedAt),
		StartedAt:    fromNullMillis(row.StartedAt),
		CompletedAt:  fromNullMillis(row.CompletedAt),
	}
}

var _ port.JobQueue = (*JobQueue)(nil)
