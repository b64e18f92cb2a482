package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bnema/tribora/internal/adapter/storage/sqlite/sqlitedb"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (s *Store) Create(ctx context.Context, c *domain.Content) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return s.queries.InsertContent(ctx, sqlitedb.InsertContentParams{
		ID:           c.ID,
		OrgID:        c.OrgID,
		CreatedBy:    c.CreatedBy,
		ContentType:  string(c.ContentType),
		FileType:     c.FileType,
		Title:        c.Title,
		Description:  c.Description,
		Filename:     c.Filename,
		FileSize:     c.FileSize,
		Checksum:     c.Checksum,
		Metadata:     string(metadata),
		Status:       string(c.Status),
		ErrorMessage: c.ErrorMessage,
		CreatedAt:    toMillis(c.CreatedAt),
		UpdatedAt:    toMillis(c.UpdatedAt),
	})
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Content, error) {
	row, err := s.queries.GetContent(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return contentFromRow(row), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.ContentStatus, errMsg string) error {
	n, err := s.queries.UpdateContentStatus(ctx, sqlitedb.UpdateContentStatusParams{
		Status:       string(status),
		ErrorMessage: errMsg,
		UpdatedAt:    toMillis(s.now()),
		ID:           id,
	})
	return affected(n, err)
}

func (s *Store) AttachStoragePath(ctx context.Context, id string, kind domain.StorageKind, path string) error {
	arg := sqlitedb.SetStoragePathParams{Path: path, UpdatedAt: toMillis(s.now()), ID: id}
	switch kind {
	case domain.StorageRaw:
		return affected(s.queries.SetRawPath(ctx, arg))
	case domain.StorageProcessed:
		return affected(s.queries.SetProcessedPath(ctx, arg))
	}
	return fmt.Errorf("%w: unknown storage kind %q", domain.ErrValidation, kind)
}

func (s *Store) SetChecksum(ctx context.Context, id, checksum string) error {
	return affected(s.queries.SetChecksum(ctx, sqlitedb.SetChecksumParams{
		Checksum:  checksum,
		UpdatedAt: toMillis(s.now()),
		ID:        id,
	}))
}

// SoftDelete is a no-op for a record that is already deleted.
func (s *Store) SoftDelete(ctx context.Context, id, deletedBy, reason string) error {
	now := toMillis(s.now())
	n, err := s.queries.SoftDeleteContent(ctx, sqlitedb.SoftDeleteContentParams{
		DeletedAt:    sql.NullInt64{Int64: now, Valid: true},
		DeletedBy:    deletedBy,
		DeleteReason: reason,
		UpdatedAt:    now,
		ID:           id,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}

func (s *Store) Restore(ctx context.Context, id string) error {
	n, err := s.queries.RestoreContent(ctx, sqlitedb.RestoreContentParams{
		UpdatedAt: toMillis(s.now()),
		ID:        id,
	})
	if err != nil {
		return err
	}
	if n == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	return s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := q.DeleteJobsByContent(ctx, id); err != nil {
			return fmt.Errorf("delete jobs: %w", err)
		}
		return affected(q.DeleteContent(ctx, id))
	})
}

func (s *Store) List(ctx context.Context, filter port.ContentFilter) ([]*domain.Content, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(filter.Offset, 0)

	includeDeleted := boolToInt(filter.IncludeDeleted || filter.OnlyDeleted)
	onlyDeleted := boolToInt(filter.OnlyDeleted)
	query := strings.TrimSpace(filter.Query)

	rows, err := s.queries.ListContent(ctx, sqlitedb.ListContentParams{
		OrgID:          filter.OrgID,
		Status:         string(filter.Status),
		ContentType:    string(filter.ContentType),
		IncludeDeleted: includeDeleted,
		OnlyDeleted:    onlyDeleted,
		Limit:          int64(limit),
		Offset:         int64(offset),
		Query:          query,
	})
	if err != nil {
		return nil, 0, err
	}
	total, err := s.queries.CountContent(ctx, sqlitedb.CountContentParams{
		OrgID:          filter.OrgID,
		Status:         string(filter.Status),
		ContentType:    string(filter.ContentType),
		IncludeDeleted: includeDeleted,
		OnlyDeleted:    onlyDeleted,
		Query:          query,
	})
	if err != nil {
		return nil, 0, err
	}

	items := make([]*domain.Content, len(rows))
	for i, row := range rows {
		items[i] = contentFromRow(row)
	}
	return items, int(total), nil
}

func (s *Store) StatusCounts(ctx context.Context) (map[domain.ContentStatus]int64, error) {
	rows, err := s.queries.CountContentByStatus(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[domain.ContentStatus]int64, len(rows))
	for _, r := range rows {
		counts[domain.ContentStatus(r.Status)] = r.Count
	}
	return counts, nil
}

func contentFromRow(row sqlitedb.Content) *domain.Content {
	metadata := map[string]string{}
	_ = json.Unmarshal([]byte(row.Metadata), &metadata)
	return &domain.Content{
		ID:                   row.ID,
		OrgID:                row.OrgID,
		CreatedBy:            row.CreatedBy,
		ContentType:          domain.ContentType(row.ContentType),
		FileType:             row.FileType,
		Title:                row.Title,
		Description:          row.Description,
		Filename:             row.Filename,
		FileSize:             row.FileSize,
		Checksum:             row.Checksum,
		Metadata:             metadata,
		Status:               domain.ContentStatus(row.Status),
		ErrorMessage:         row.ErrorMessage,
		StoragePathRaw:       row.StoragePathRaw,
		StoragePathProcessed: row.StoragePathProcessed,
		CreatedAt:            fromMillis(row.CreatedAt),
		UpdatedAt:            fromMillis(row.UpdatedAt),
		DeletedAt:            fromNullMillis(row.DeletedAt),
		DeletedBy:            row.DeletedBy,
		DeleteReason:         row.DeleteReason,
	}
}

func affected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var _ port.ContentStore = (*Store)(nil)
