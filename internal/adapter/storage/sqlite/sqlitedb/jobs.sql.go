package sqlitedb

import (
	"context"
	"database/sql"
)

const jobColumns = `id, type, status, content_id, org_id, chain, payload, attempt, run_at,
    locked_by, locked_until, error_message, created_at, started_at, completed_at`

func scanJob(row scanner) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.Type,
		&i.Status,
		&i.ContentID,
		&i.OrgID,
		&i.Chain,
		&i.Payload,
		&i.Attempt,
		&i.RunAt,
		&i.LockedBy,
		&i.LockedUntil,
		&i.ErrorMessage,
		&i.CreatedAt,
		&i.StartedAt,
		&i.CompletedAt,
	)
	return i, err
}

const insertJob = `INSERT INTO jobs (type, content_id, org_id, chain, payload, attempt, run_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + jobColumns

type InsertJobParams struct {
	Type      string
	ContentID string
	OrgID     string
	Chain     string
	Payload   string
	Attempt   int64
	RunAt     int64
	CreatedAt int64
}

func (q *Queries) InsertJob(ctx context.Context, arg InsertJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, insertJob,
		arg.Type,
		arg.ContentID,
		arg.OrgID,
		arg.Chain,
		arg.Payload,
		arg.Attempt,
		arg.RunAt,
		arg.CreatedAt,
	)
	return scanJob(row)
}

const getJob = `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`

func (q *Queries) GetJob(ctx context.Context, id int64) (Job, error) {
	return scanJob(q.db.QueryRowContext(ctx, getJob, id))
}

// The inner select picks the oldest due job; the outer status check makes
// the claim a no-op for any claimer that loses the race.
const claimNextJob = `UPDATE jobs
SET status = 'processing', locked_by = ?1, locked_until = ?2, started_at = ?3
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending'
      AND run_at <= ?3
      AND (?4 IS NULL OR type IN (SELECT value FROM json_each(?4)))
    ORDER BY run_at, id
    LIMIT 1
) AND status = 'pending'
RETURNING ` + jobColumns

type ClaimNextJobParams struct {
	LockedBy    string
	LockedUntil int64
	Now         int64
	TypesJSON   sql.NullString
}

func (q *Queries) ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error) {
	row := q.db.QueryRowContext(ctx, claimNextJob,
		arg.LockedBy,
		arg.LockedUntil,
		arg.Now,
		arg.TypesJSON,
	)
	return scanJob(row)
}

const completeJob = `UPDATE jobs
SET status = 'completed', completed_at = ?1, locked_until = NULL
WHERE id = ?2 AND status = 'processing' AND (?3 = '' OR locked_by = ?3)`

type CompleteJobParams struct {
	CompletedAt int64
	ID          int64
	LockedBy    string
}

func (q *Queries) CompleteJob(ctx context.Context, arg CompleteJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeJob, arg.CompletedAt, arg.ID, arg.LockedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const failJob = `UPDATE jobs
SET status = 'failed', error_message = ?1, completed_at = ?2, locked_until = NULL
WHERE id = ?3 AND status IN ('pending', 'processing') AND (?4 = '' OR locked_by = ?4)`

type FailJobParams struct {
	ErrorMessage string
	CompletedAt  int64
	ID           int64
	LockedBy     string
}

func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failJob,
		arg.ErrorMessage,
		arg.CompletedAt,
		arg.ID,
		arg.LockedBy,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const extendJobLease = `UPDATE jobs SET locked_until = ?1
WHERE id = ?2 AND status = 'processing' AND locked_by = ?3`

type ExtendJobLeaseParams struct {
	LockedUntil int64
	ID          int64
	LockedBy    string
}

func (q *Queries) ExtendJobLease(ctx context.Context, arg ExtendJobLeaseParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, extendJobLease, arg.LockedUntil, arg.ID, arg.LockedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const releaseJob = `UPDATE jobs
SET status = 'pending', locked_by = '', locked_until = NULL, started_at = NULL
WHERE id = ?1 AND status = 'processing' AND locked_by = ?2`

type ReleaseJobParams struct {
	ID       int64
	LockedBy string
}

func (q *Queries) ReleaseJob(ctx context.Context, arg ReleaseJobParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, releaseJob, arg.ID, arg.LockedBy)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const resetStalledJobs = `UPDATE jobs
SET status = 'pending', locked_by = '', locked_until = NULL, started_at = NULL,
    attempt = attempt + 1
WHERE status = 'processing' AND (locked_until IS NULL OR locked_until < ?)`

func (q *Queries) ResetStalledJobs(ctx context.Context, now int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, resetStalledJobs, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countJobsByStatus = `SELECT status, COUNT(*) FROM jobs GROUP BY status`

type CountJobsByStatusRow struct {
	Status string
	Count  int64
}

func (q *Queries) CountJobsByStatus(ctx context.Context) ([]CountJobsByStatusRow, error) {
	rows, err := q.db.QueryContext(ctx, countJobsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountJobsByStatusRow
	for rows.Next() {
		var i CountJobsByStatusRow
		if err := rows.Scan(&i.Status, &i.Count); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countStalledJobs = `SELECT COUNT(*) FROM jobs
WHERE status = 'processing' AND (locked_until IS NULL OR locked_until < ?)`

func (q *Queries) CountStalledJobs(ctx context.Context, now int64) (int64, error) {
	row := q.db.QueryRowContext(ctx, countStalledJobs, now)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listJobsByContent = `SELECT ` + jobColumns + ` FROM jobs WHERE content_id = ? ORDER BY id`

func (q *Queries) ListJobsByContent(ctx context.Context, contentID string) ([]Job, error) {
	rows, err := q.db.QueryContext(ctx, listJobsByContent, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Job
	for rows.Next() {
		i, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteJobsByContent = `DELETE FROM jobs WHERE content_id = ?`

func (q *Queries) DeleteJobsByContent(ctx context.Context, contentID string) error {
	_, err := q.db.ExecContext(ctx, deleteJobsByContent, contentID)
	return err
}
