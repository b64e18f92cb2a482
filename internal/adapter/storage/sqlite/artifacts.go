package sqlite

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/bnema/tribora/internal/adapter/storage/sqlite/sqlitedb"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

func (s *Store) SaveTranscript(ctx context.Context, t *domain.Transcript) error {
	t.CreatedAt = s.now()
	id, err := s.queries.InsertTranscript(ctx, sqlitedb.InsertTranscriptParams{
		ContentID:  t.ContentID,
		Text:       t.Text,
		Language:   t.Language,
		Confidence: t.Confidence,
		Provider:   t.Provider,
		CreatedAt:  toMillis(t.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	t.ID = id
	return nil
}

func (s *Store) LatestTranscript(ctx context.Context, contentID string) (*domain.Transcript, error) {
	row, err := s.queries.LatestTranscript(ctx, contentID)
	if err != nil {
		return nil, notFound(err)
	}
	return &domain.Transcript{
		ID:         row.ID,
		ContentID:  row.ContentID,
		Text:       row.Text,
		Language:   row.Language,
		Confidence: row.Confidence,
		Provider:   row.Provider,
		CreatedAt:  fromMillis(row.CreatedAt),
	}, nil
}

func (s *Store) SaveDocument(ctx context.Context, d *domain.Document) error {
	d.CreatedAt = s.now()
	if d.Format == "" {
		d.Format = "markdown"
	}
	id, err := s.queries.InsertDocument(ctx, sqlitedb.InsertDocumentParams{
		ContentID: d.ContentID,
		Content:   d.Content,
		Format:    d.Format,
		Summary:   d.Summary,
		CreatedAt: toMillis(d.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	d.ID = id
	return nil
}

func (s *Store) LatestDocument(ctx context.Context, contentID string) (*domain.Document, error) {
	row, err := s.queries.LatestDocument(ctx, contentID)
	if err != nil {
		return nil, notFound(err)
	}
	return &domain.Document{
		ID:        row.ID,
		ContentID: row.ContentID,
		Content:   row.Content,
		Format:    row.Format,
		Summary:   row.Summary,
		CreatedAt: fromMillis(row.CreatedAt),
	}, nil
}

// ReplaceFrames drops the frames of a previous extraction run before
// inserting the new set.
func (s *Store) ReplaceFrames(ctx context.Context, contentID string, frames []*domain.Frame) error {
	now := s.now()
	return s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := q.DeleteFramesByContent(ctx, contentID); err != nil {
			return fmt.Errorf("delete frames: %w", err)
		}
		for _, f := range frames {
			id, err := q.InsertFrame(ctx, sqlitedb.InsertFrameParams{
				ContentID:    contentID,
				FrameIndex:   int64(f.FrameIndex),
				TimestampSec: f.Timestamp,
				StoragePath:  f.StoragePath,
				CreatedAt:    toMillis(now),
			})
			if err != nil {
				return fmt.Errorf("insert frame %d: %w", f.FrameIndex, err)
			}
			f.ID = id
			f.ContentID = contentID
			f.CreatedAt = now
		}
		return nil
	})
}

func (s *Store) ListFrames(ctx context.Context, contentID string) ([]*domain.Frame, error) {
	rows, err := s.queries.ListFrames(ctx, contentID)
	if err != nil {
		return nil, err
	}
	return framesFromRows(rows), nil
}

func (s *Store) UpdateFrameDescription(ctx context.Context, frameID int64, description, sceneType string, elements []string) error {
	if elements == nil {
		elements = []string{}
	}
	raw, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("marshal elements: %w", err)
	}
	return affected(s.queries.UpdateFrameDescription(ctx, sqlitedb.UpdateFrameDescriptionParams{
		Description: description,
		SceneType:   sceneType,
		Elements:    string(raw),
		ID:          frameID,
	}))
}

func (s *Store) UpdateFrameOCR(ctx context.Context, frameID int64, text string, confidence float64) error {
	return affected(s.queries.UpdateFrameOCR(ctx, sqlitedb.UpdateFrameOCRParams{
		OcrText:       text,
		OcrConfidence: confidence,
		ID:            frameID,
	}))
}

func (s *Store) SearchFrames(ctx context.Context, orgID, query string, limit int) ([]*domain.Frame, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.queries.SearchFrames(ctx, sqlitedb.SearchFramesParams{
		OrgID: orgID,
		Query: query,
		Limit: int64(limit),
	})
	if err != nil {
		return nil, err
	}
	return framesFromRows(rows), nil
}

func (s *Store) ReplaceEmbeddings(ctx context.Context, contentID string, source domain.EmbeddingSource, embeddings []*domain.Embedding) error {
	now := s.now()
	return s.withTx(ctx, func(q *sqlitedb.Queries) error {
		if err := q.DeleteEmbeddingsBySource(ctx, sqlitedb.DeleteEmbeddingsBySourceParams{
			ContentID: contentID,
			Source:    string(source),
		}); err != nil {
			return fmt.Errorf("delete %s embeddings: %w", source, err)
		}
		for _, e := range embeddings {
			id, err := q.InsertEmbedding(ctx, sqlitedb.InsertEmbeddingParams{
				ContentID:  contentID,
				Source:     string(source),
				ChunkIndex: int64(e.ChunkIndex),
				Text:       e.Text,
				Vector:     encodeVector(e.Vector),
				CreatedAt:  toMillis(now),
			})
			if err != nil {
				return fmt.Errorf("insert embedding %d: %w", e.ChunkIndex, err)
			}
			e.ID = id
			e.ContentID = contentID
			e.Source = source
			e.CreatedAt = now
		}
		return nil
	})
}

func (s *Store) ListEmbeddings(ctx context.Context, contentID string) ([]*domain.Embedding, error) {
	rows, err := s.queries.ListEmbeddings(ctx, contentID)
	if err != nil {
		return nil, err
	}
	return embeddingsFromRows(rows), nil
}

func (s *Store) ListOrgEmbeddings(ctx context.Context, orgID string) ([]*domain.Embedding, error) {
	rows, err := s.queries.ListOrgEmbeddings(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return embeddingsFromRows(rows), nil
}

func (s *Store) SaveMetricsSnapshot(ctx context.Context, m *domain.MetricsSnapshot) error {
	counts, err := json.Marshal(m.StatusCounts)
	if err != nil {
		return fmt.Errorf("marshal status counts: %w", err)
	}
	if m.CollectedAt.IsZero() {
		m.CollectedAt = s.now()
	}
	id, err := s.queries.InsertMetricsSnapshot(ctx, sqlitedb.InsertMetricsSnapshotParams{
		StatusCounts:   string(counts),
		JobsPending:    m.Jobs.Pending,
		JobsProcessing: m.Jobs.Processing,
		JobsCompleted:  m.Jobs.Completed,
		JobsFailed:     m.Jobs.Failed,
		JobsStalled:    m.Jobs.Stalled,
		ErrorRate:      m.ErrorRate,
		CollectedAt:    toMillis(m.CollectedAt),
	})
	if err != nil {
		return fmt.Errorf("insert metrics snapshot: %w", err)
	}
	m.ID = id
	return nil
}

func (s *Store) LatestMetricsSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	row, err := s.queries.LatestMetricsSnapshot(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	counts := map[domain.ContentStatus]int64{}
	_ = json.Unmarshal([]byte(row.StatusCounts), &counts)
	return &domain.MetricsSnapshot{
		ID:           row.ID,
		StatusCounts: counts,
		Jobs: domain.JobStats{
			Pending:    row.JobsPending,
			Processing: row.JobsProcessing,
			Completed:  row.JobsCompleted,
			Failed:     row.JobsFailed,
			Stalled:    row.JobsStalled,
		},
		ErrorRate:   row.ErrorRate,
		CollectedAt: fromMillis(row.CollectedAt),
	}, nil
}

func (s *Store) SaveAlert(ctx context.Context, a *domain.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	id, err := s.queries.InsertAlert(ctx, sqlitedb.InsertAlertParams{
		Kind:      a.Kind,
		Severity:  string(a.Severity),
		Message:   a.Message,
		Value:     a.Value,
		Threshold: a.Threshold,
		CreatedAt: toMillis(a.CreatedAt),
	})
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	a.ID = id
	return nil
}

func (s *Store) ListAlerts(ctx context.Context, limit int) ([]*domain.Alert, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.queries.ListAlerts(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	alerts := make([]*domain.Alert, len(rows))
	for i, r := range rows {
		alerts[i] = &domain.Alert{
			ID:        r.ID,
			Kind:      r.Kind,
			Severity:  domain.AlertSeverity(r.Severity),
			Message:   r.Message,
			Value:     r.Value,
			Threshold: r.Threshold,
			CreatedAt: fromMillis(r.CreatedAt),
		}
	}
	return alerts, nil
}

func framesFromRows(rows []sqlitedb.Frame) []*domain.Frame {
	frames := make([]*domain.Frame, len(rows))
	for i, r := range rows {
		var elements []string
		_ = json.Unmarshal([]byte(r.Elements), &elements)
		frames[i] = &domain.Frame{
			ID:            r.ID,
			ContentID:     r.ContentID,
			FrameIndex:    int(r.FrameIndex),
			Timestamp:     r.TimestampSec,
			StoragePath:   r.StoragePath,
			Description:   r.Description,
			SceneType:     r.SceneType,
			Elements:      elements,
			OCRText:       r.OcrText,
			OCRConfidence: r.OcrConfidence,
			CreatedAt:     fromMillis(r.CreatedAt),
		}
	}
	return frames
}

func embeddingsFromRows(rows []sqlitedb.Embedding) []*domain.Embedding {
	out := make([]*domain.Embedding, len(rows))
	for i, r := range rows {
		out[i] = &domain.Embedding{
			ID:         r.ID,
			ContentID:  r.ContentID,
			Source:     domain.EmbeddingSource(r.Source),
			ChunkIndex: int(r.ChunkIndex),
			Text:       r.Text,
			Vector:     decodeVector(r.Vector),
			CreatedAt:  fromMillis(r.CreatedAt),
		}
	}
	return out
}

// Vectors are stored as little-endian float32 blobs.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

var _ port.ArtifactStore = (*Store)(nil)
