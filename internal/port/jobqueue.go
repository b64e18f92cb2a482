package port

import (
	"context"
	"time"

	"github.com/bnema/tribora/internal/domain"
)

// ClaimParams describes one claim attempt. An empty Types list claims any
// due job.
type ClaimParams struct {
	WorkerID string
	Types    []domain.JobType
	Lease    time.Duration
}

type JobQueue interface {
	Enqueue(ctx context.Context, job domain.NewJob) (*domain.Job, error)
	// Claim returns domain.ErrNoJob when no job is due.
	Claim(ctx context.Context, params ClaimParams) (*domain.Job, error)
	Complete(ctx context.Context, jobID int64) error
	Fail(ctx context.Context, jobID int64, errMsg string) error
	Heartbeat(ctx context.Context, jobID int64, workerID string, lease time.Duration) error
	Release(ctx context.Context, jobID int64, workerID string) error
	ResetStalled(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (domain.JobStats, error)
	ListByContent(ctx context.Context, contentID string) ([]*domain.Job, error)
}
