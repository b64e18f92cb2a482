package sqlitedb

import (
	"context"
)

const insertTranscript = `INSERT INTO transcripts (content_id, text, language, confidence, provider, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertTranscriptParams struct {
	ContentID  string
	Text       string
	Language   string
	Confidence float64
	Provider   string
	CreatedAt  int64
}

func (q *Queries) InsertTranscript(ctx context.Context, arg InsertTranscriptParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertTranscript,
		arg.ContentID,
		arg.Text,
		arg.Language,
		arg.Confidence,
		arg.Provider,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const latestTranscript = `SELECT id, content_id, text, language, confidence, provider, created_at
FROM transcripts WHERE content_id = ? ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestTranscript(ctx context.Context, contentID string) (Transcript, error) {
	row := q.db.QueryRowContext(ctx, latestTranscript, contentID)
	var i Transcript
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.Text,
		&i.Language,
		&i.Confidence,
		&i.Provider,
		&i.CreatedAt,
	)
	return i, err
}

const insertDocument = `INSERT INTO documents (content_id, content, format, summary, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type InsertDocumentParams struct {
	ContentID string
	Content   string
	Format    string
	Summary   string
	CreatedAt int64
}

func (q *Queries) InsertDocument(ctx context.Context, arg InsertDocumentParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertDocument,
		arg.ContentID,
		arg.Content,
		arg.Format,
		arg.Summary,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const latestDocument = `SELECT id, content_id, content, format, summary, created_at
FROM documents WHERE content_id = ? ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestDocument(ctx context.Context, contentID string) (Document, error) {
	row := q.db.QueryRowContext(ctx, latestDocument, contentID)
	var i Document
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.Content,
		&i.Format,
		&i.Summary,
		&i.CreatedAt,
	)
	return i, err
}

const frameColumns = `f.id, f.content_id, f.frame_index, f.timestamp_sec, f.storage_path, f.description,
    f.scene_type, f.elements, f.ocr_text, f.ocr_confidence, f.created_at`

func scanFrame(row scanner) (Frame, error) {
	var i Frame
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.FrameIndex,
		&i.TimestampSec,
		&i.StoragePath,
		&i.Description,
		&i.SceneType,
		&i.Elements,
		&i.OcrText,
		&i.OcrConfidence,
		&i.CreatedAt,
	)
	return i, err
}

const insertFrame = `INSERT INTO frames (content_id, frame_index, timestamp_sec, storage_path, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

type InsertFrameParams struct {
	ContentID    string
	FrameIndex   int64
	TimestampSec float64
	StoragePath  string
	CreatedAt    int64
}

func (q *Queries) InsertFrame(ctx context.Context, arg InsertFrameParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertFrame,
		arg.ContentID,
		arg.FrameIndex,
		arg.TimestampSec,
		arg.StoragePath,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const deleteFramesByContent = `DELETE FROM frames WHERE content_id = ?`

func (q *Queries) DeleteFramesByContent(ctx context.Context, contentID string) error {
	_, err := q.db.ExecContext(ctx, deleteFramesByContent, contentID)
	return err
}

const listFrames = `SELECT ` + frameColumns + ` FROM frames f WHERE f.content_id = ? ORDER BY f.frame_index`

func (q *Queries) ListFrames(ctx context.Context, contentID string) ([]Frame, error) {
	rows, err := q.db.QueryContext(ctx, listFrames, contentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Frame
	for rows.Next() {
		i, err := scanFrame(rows)
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

const updateFrameDescription = `UPDATE frames SET description = ?, scene_type = ?, elements = ? WHERE id = ?`

type UpdateFrameDescriptionParams struct {
	Description string
	SceneType   string
	Elements    string
	ID          int64
}

func (q *Queries) UpdateFrameDescription(ctx context.Context, arg UpdateFrameDescriptionParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateFrameDescription,
		arg.Description,
		arg.SceneType,
		arg.Elements,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateFrameOCR = `UPDATE frames SET ocr_text = ?, ocr_confidence = ? WHERE id = ?`

type UpdateFrameOCRParams struct {
	OcrText       string
	OcrConfidence float64
	ID            int64
}

func (q *Queries) UpdateFrameOCR(ctx context.Context, arg UpdateFrameOCRParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateFrameOCR, arg.OcrText, arg.OcrConfidence, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const searchFrames = `SELECT ` + frameColumns + ` FROM frames f
JOIN content c ON c.id = f.content_id
WHERE c.org_id = ?1 AND c.deleted_at IS NULL
  AND (instr(lower(f.description), lower(?2)) > 0 OR instr(lower(f.ocr_text), lower(?2)) > 0)
ORDER BY f.content_id, f.frame_index
LIMIT ?3`

type SearchFramesParams struct {
	OrgID string
	Query string
	Limit int64
}

func (q *Queries) SearchFrames(ctx context.Context, arg SearchFramesParams) ([]Frame, error) {
	rows, err := q.db.QueryContext(ctx, searchFrames, arg.OrgID, arg.Query, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Frame
	for rows.Next() {
		i, err := scanFrame(rows)
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

const insertEmbedding = `INSERT INTO embeddings (content_id, source, chunk_index, text, vector, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertEmbeddingParams struct {
	ContentID  string
	Source     string
	ChunkIndex int64
	Text       string
	Vector     []byte
	CreatedAt  int64
}

func (q *Queries) InsertEmbedding(ctx context.Context, arg InsertEmbeddingParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertEmbedding,
		arg.ContentID,
		arg.Source,
		arg.ChunkIndex,
		arg.Text,
		arg.Vector,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const deleteEmbeddingsBySource = `DELETE FROM embeddings WHERE content_id = ? AND source = ?`

type DeleteEmbeddingsBySourceParams struct {
	ContentID string
	Source    string
}

func (q *Queries) DeleteEmbeddingsBySource(ctx context.Context, arg DeleteEmbeddingsBySourceParams) error {
	_, err := q.db.ExecContext(ctx, deleteEmbeddingsBySource, arg.ContentID, arg.Source)
	return err
}

const embeddingColumns = `e.id, e.content_id, e.source, e.chunk_index, e.text, e.vector, e.created_at`

func scanEmbedding(row scanner) (Embedding, error) {
	var i Embedding
	err := row.Scan(
		&i.ID,
		&i.ContentID,
		&i.Source,
		&i.ChunkIndex,
		&i.Text,
		&i.Vector,
		&i.CreatedAt,
	)
	return i, err
}

const listEmbeddings = `SELECT ` + embeddingColumns + ` FROM embeddings e
WHERE e.content_id = ?
ORDER BY e.source, e.chunk_index`

func (q *Queries) ListEmbeddings(ctx context.Context, contentID string) ([]Embedding, error) {
	return q.queryEmbeddings(ctx, listEmbeddings, contentID)
}

const listOrgEmbeddings = `SELECT ` + embeddingColumns + ` FROM embeddings e
JOIN content c ON c.id = e.content_id
WHERE c.org_id = ? AND c.deleted_at IS NULL
ORDER BY e.content_id, e.source, e.chunk_index`

func (q *Queries) ListOrgEmbeddings(ctx context.Context, orgID string) ([]Embedding, error) {
	return q.queryEmbeddings(ctx, listOrgEmbeddings, orgID)
}

func (q *Queries) queryEmbeddings(ctx context.Context, query string, arg string) ([]Embedding, error) {
	rows, err := q.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Embedding
	for rows.Next() {
		i, err := scanEmbedding(rows)
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

const insertMetricsSnapshot = `INSERT INTO metrics_snapshots (
    status_counts, jobs_pending, jobs_processing, jobs_completed, jobs_failed, jobs_stalled,
    error_rate, collected_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertMetricsSnapshotParams struct {
	StatusCounts   string
	JobsPending    int64
	JobsProcessing int64
	JobsCompleted  int64
	JobsFailed     int64
	JobsStalled    int64
	ErrorRate      float64
	CollectedAt    int64
}

func (q *Queries) InsertMetricsSnapshot(ctx context.Context, arg InsertMetricsSnapshotParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertMetricsSnapshot,
		arg.StatusCounts,
		arg.JobsPending,
		arg.JobsProcessing,
		arg.JobsCompleted,
		arg.JobsFailed,
		arg.JobsStalled,
		arg.ErrorRate,
		arg.CollectedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const latestMetricsSnapshot = `SELECT id, status_counts, jobs_pending, jobs_processing, jobs_completed,
    jobs_failed, jobs_stalled, error_rate, collected_at
FROM metrics_snapshots ORDER BY id DESC LIMIT 1`

func (q *Queries) LatestMetricsSnapshot(ctx context.Context) (MetricsSnapshot, error) {
	row := q.db.QueryRowContext(ctx, latestMetricsSnapshot)
	var i MetricsSnapshot
	err := row.Scan(
		&i.ID,
		&i.StatusCounts,
		&i.JobsPending,
		&i.JobsProcessing,
		&i.JobsCompleted,
		&i.JobsFailed,
		&i.JobsStalled,
		&i.ErrorRate,
		&i.CollectedAt,
	)
	return i, err
}

const insertAlert = `INSERT INTO alerts (kind, severity, message, value, threshold, created_at)
VALUES (?, ?, ?, ?, ?, ?)
RETURNING id`

type InsertAlertParams struct {
	Kind      string
	Severity  string
	Message   string
	Value     float64
	Threshold float64
	CreatedAt int64
}

func (q *Queries) InsertAlert(ctx context.Context, arg InsertAlertParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertAlert,
		arg.Kind,
		arg.Severity,
		arg.Message,
		arg.Value,
		arg.Threshold,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const listAlerts = `SELECT id, kind, severity, message, value, threshold, created_at
FROM alerts ORDER BY id DESC LIMIT ?`

func (q *Queries) ListAlerts(ctx context.Context, limit int64) ([]Alert, error) {
	rows, err := q.db.QueryContext(ctx, listAlerts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Alert
	for rows.Next() {
		var i Alert
		if err := rows.Scan(
			&i.ID,
			&i.Kind,
			&i.Severity,
			&i.Message,
			&i.Value,
			&i.Threshold,
			&i.CreatedAt,
		); err != nil {
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
