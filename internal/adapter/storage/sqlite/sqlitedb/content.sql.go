package sqlitedb

import (
	"context"
	"database/sql"
)

const contentColumns = `id, org_id, created_by, content_type, file_type, title, description, filename,
    file_size, checksum, metadata, status, error_message, storage_path_raw, storage_path_processed,
    created_at, updated_at, deleted_at, deleted_by, delete_reason`

func scanContent(row scanner) (Content, error) {
	var i Content
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.CreatedBy,
		&i.ContentType,
		&i.FileType,
		&i.Title,
		&i.Description,
		&i.Filename,
		&i.FileSize,
		&i.Checksum,
		&i.Metadata,
		&i.Status,
		&i.ErrorMessage,
		&i.StoragePathRaw,
		&i.StoragePathProcessed,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.DeletedAt,
		&i.DeletedBy,
		&i.DeleteReason,
	)
	return i, err
}

const insertContent = `INSERT INTO content (
    id, org_id, created_by, content_type, file_type, title, description, filename,
    file_size, checksum, metadata, status, error_message, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type InsertContentParams struct {
	ID           string
	OrgID        string
	CreatedBy    string
	ContentType  string
	FileType     string
	Title        string
	Description  string
	Filename     string
	FileSize     int64
	Checksum     string
	Metadata     string
	Status       string
	ErrorMessage string
	CreatedAt    int64
	UpdatedAt    int64
}

func (q *Queries) InsertContent(ctx context.Context, arg InsertContentParams) error {
	_, err := q.db.ExecContext(ctx, insertContent,
		arg.ID,
		arg.OrgID,
		arg.CreatedBy,
		arg.ContentType,
		arg.FileType,
		arg.Title,
		arg.Description,
		arg.Filename,
		arg.FileSize,
		arg.Checksum,
		arg.Metadata,
		arg.Status,
		arg.ErrorMessage,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getContent = `SELECT ` + contentColumns + ` FROM content WHERE id = ?`

func (q *Queries) GetContent(ctx context.Context, id string) (Content, error) {
	return scanContent(q.db.QueryRowContext(ctx, getContent, id))
}

const updateContentStatus = `UPDATE content SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`

type UpdateContentStatusParams struct {
	Status       string
	ErrorMessage string
	UpdatedAt    int64
	ID           string
}

func (q *Queries) UpdateContentStatus(ctx context.Context, arg UpdateContentStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateContentStatus,
		arg.Status,
		arg.ErrorMessage,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const advanceContentStatus = `UPDATE content SET status = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL AND status NOT IN ('completed', 'error')`

type AdvanceContentStatusParams struct {
	Status    string
	UpdatedAt int64
	ID        string
}

// AdvanceContentStatus only touches live, non-terminal records.
func (q *Queries) AdvanceContentStatus(ctx context.Context, arg AdvanceContentStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, advanceContentStatus, arg.Status, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const failContent = `UPDATE content SET status = 'error', error_message = ?, updated_at = ?
WHERE id = ? AND status <> 'completed'`

type FailContentParams struct {
	ErrorMessage string
	UpdatedAt    int64
	ID           string
}

func (q *Queries) FailContent(ctx context.Context, arg FailContentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, failContent, arg.ErrorMessage, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setRawPath = `UPDATE content SET storage_path_raw = ?, updated_at = ? WHERE id = ?`

type SetStoragePathParams struct {
	Path      string
	UpdatedAt int64
	ID        string
}

func (q *Queries) SetRawPath(ctx context.Context, arg SetStoragePathParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setRawPath, arg.Path, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setProcessedPath = `UPDATE content SET storage_path_processed = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetProcessedPath(ctx context.Context, arg SetStoragePathParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setProcessedPath, arg.Path, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const setChecksum = `UPDATE content SET checksum = ?, updated_at = ? WHERE id = ?`

type SetChecksumParams struct {
	Checksum  string
	UpdatedAt int64
	ID        string
}

func (q *Queries) SetChecksum(ctx context.Context, arg SetChecksumParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, setChecksum, arg.Checksum, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const softDeleteContent = `UPDATE content SET deleted_at = ?, deleted_by = ?, delete_reason = ?, updated_at = ?
WHERE id = ? AND deleted_at IS NULL`

type SoftDeleteContentParams struct {
	DeletedAt    sql.NullInt64
	DeletedBy    string
	DeleteReason string
	UpdatedAt    int64
	ID           string
}

func (q *Queries) SoftDeleteContent(ctx context.Context, arg SoftDeleteContentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, softDeleteContent,
		arg.DeletedAt,
		arg.DeletedBy,
		arg.DeleteReason,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const restoreContent = `UPDATE content SET deleted_at = NULL, deleted_by = '', delete_reason = '', updated_at = ?
WHERE id = ? AND deleted_at IS NOT NULL`

type RestoreContentParams struct {
	UpdatedAt int64
	ID        string
}

func (q *Queries) RestoreContent(ctx context.Context, arg RestoreContentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, restoreContent, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteContent = `DELETE FROM content WHERE id = ?`

func (q *Queries) DeleteContent(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteContent, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const contentFilter = ` WHERE org_id = ?1
    AND (?2 = '' OR status = ?2)
    AND (?3 = '' OR content_type = ?3)
    AND (?4 = 1 OR deleted_at IS NULL)
    AND (?5 = 0 OR deleted_at IS NOT NULL)
    AND (?6 = '' OR instr(lower(title), lower(?6)) > 0
        OR instr(lower(description), lower(?6)) > 0
        OR instr(lower(filename), lower(?6)) > 0)`

const listContent = `SELECT ` + contentColumns + ` FROM content` + contentFilter + `
ORDER BY created_at DESC, id
LIMIT ?7 OFFSET ?8`

type ListContentParams struct {
	OrgID          string
	Status         string
	ContentType    string
	IncludeDeleted int64
	OnlyDeleted    int64
	Query          string
	Limit          int64
	Offset         int64
}

func (q *Queries) ListContent(ctx context.Context, arg ListContentParams) ([]Content, error) {
	rows, err := q.db.QueryContext(ctx, listContent,
		arg.OrgID,
		arg.Status,
		arg.ContentType,
		arg.IncludeDeleted,
		arg.OnlyDeleted,
		arg.Query,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Content
	for rows.Next() {
		i, err := scanContent(rows)
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

const countContent = `SELECT COUNT(*) FROM content` + contentFilter

type CountContentParams struct {
	OrgID          string
	Status         string
	ContentType    string
	IncludeDeleted int64
	OnlyDeleted    int64
	Query          string
}

func (q *Queries) CountContent(ctx context.Context, arg CountContentParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countContent,
		arg.OrgID,
		arg.Status,
		arg.ContentType,
		arg.IncludeDeleted,
		arg.OnlyDeleted,
		arg.Query,
	)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const countContentByStatus = `SELECT status, COUNT(*) FROM content WHERE deleted_at IS NULL GROUP BY status`

type CountContentByStatusRow struct {
	Status string
	Count  int64
}

func (q *Queries) CountContentByStatus(ctx context.Context) ([]CountContentByStatusRow, error) {
	rows, err := q.db.QueryContext(ctx, countContentByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CountContentByStatusRow
	for rows.Next() {
		var i CountContentByStatusRow
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
