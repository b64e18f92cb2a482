package sqlite

import (
	"context"
	"fmt"

	"github.com/bnema/tribora/internal/adapter/storage/sqlite/sqlitedb"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

// StartPipeline sets the record status, clears any previous error and
// enqueues the first job of each chain, all or nothing.
func (s *Store) StartPipeline(ctx context.Context, params port.StartParams) ([]*domain.Job, error) {
	now := s.now()
	var jobs []*domain.Job
	err := s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := affected(q.UpdateContentStatus(ctx, sqlitedb.UpdateContentStatusParams{
			Status:    string(params.Status),
			UpdatedAt: toMillis(now),
			ID:        params.ContentID,
		})); err != nil {
			return fmt.Errorf("set status %s: %w", params.Status, err)
		}
		for _, nj := range params.Jobs {
			job, err := insertJob(ctx, q, nj, now)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *Store) Advance(ctx context.Context, params port.AdvanceParams) (*domain.Job, error) {
	now := s.now()
	var next *domain.Job
	err := s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := leaseHeld(q.CompleteJob(ctx, sqlitedb.CompleteJobParams{
			CompletedAt: toMillis(now),
			ID:          params.JobID,
			LockedBy:    params.WorkerID,
		})); err != nil {
			return err
		}

		if params.Status != "" {
			n, err := q.AdvanceContentStatus(ctx, sqlitedb.AdvanceContentStatusParams{
				Status:    string(params.Status),
				UpdatedAt: toMillis(now),
				ID:        params.ContentID,
			})
			if err != nil {
				return fmt.Errorf("set status %s: %w", params.Status, err)
			}
			if n == 0 {
				// Record went terminal or was deleted meanwhile: stop the chain.
				return nil
			}
		}

		if params.Next != nil {
			job, err := insertJob(ctx, q, *params.Next, now)
			if err != nil {
				return err
			}
			next = job
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// RetryJob fails the claimed job and enqueues its next attempt.
func (s *Store) RetryJob(ctx context.Context, params port.RetryParams) (*domain.Job, error) {
	now := s.now()
	var next *domain.Job
	err := s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := leaseHeld(q.FailJob(ctx, sqlitedb.FailJobParams{
			ErrorMessage: params.ErrorMessage,
			CompletedAt:  toMillis(now),
			ID:           params.JobID,
			LockedBy:     params.WorkerID,
		})); err != nil {
			return err
		}
		job, err := insertJob(ctx, q, params.Next, now)
		if err != nil {
			return err
		}
		next = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *Store) FailPipeline(ctx context.Context, params port.FailParams) error {
	now := toMillis(s.now())
	return s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := leaseHeld(q.FailJob(ctx, sqlitedb.FailJobParams{
			ErrorMessage: params.ErrorMessage,
			CompletedAt:  now,
			ID:           params.JobID,
			LockedBy:     params.WorkerID,
		})); err != nil {
			return err
		}
		if !params.MarkContent {
			return nil
		}
		if _, err := q.FailContent(ctx, sqlitedb.FailContentParams{
			ErrorMessage: params.ErrorMessage,
			UpdatedAt:    now,
			ID:           params.ContentID,
		}); err != nil {
			return fmt.Errorf("mark content failed: %w", err)
		}
		return nil
	})
}

var _ port.PipelineStore = (*Store)(nil)
