package port

import (
	"context"

	"github.com/bnema/tribora/internal/domain"
)

type ContentFilter struct {
	OrgID       string
	Status      domain.ContentStatus
	ContentType domain.ContentType
	// Query matches title, description or filename, case-insensitively.
	Query          string
	IncludeDeleted bool
	OnlyDeleted    bool
	Limit          int
	Offset         int
}

type ContentStore interface {
	Create(ctx context.Context, c *domain.Content) error
	Get(ctx context.Context, id string) (*domain.Content, error)
	UpdateStatus(ctx context.Context, id string, status domain.ContentStatus, errMsg string) error
	AttachStoragePath(ctx context.Context, id string, kind domain.StorageKind, path string) error
	SetChecksum(ctx context.Context, id, checksum string) error
	SoftDelete(ctx context.Context, id, deletedBy, reason string) error
	Restore(ctx context.Context, id string) error
	// Delete removes the row; dependent artifacts and jobs go with it.
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ContentFilter) ([]*domain.Content, int, error)
	StatusCounts(ctx context.Context) (map[domain.ContentStatus]int64, error)
}

type StartParams struct {
	ContentID string
	Status    domain.ContentStatus
	Jobs      []domain.NewJob
}

// AdvanceParams completes a claimed job. Status is written only while the
// record is non-terminal; empty Status leaves the record untouched.
type AdvanceParams struct {
	JobID     int64
	WorkerID  string
	ContentID string
	Status    domain.ContentStatus
	Next      *domain.NewJob
}

type RetryParams struct {
	JobID        int64
	WorkerID     string
	ErrorMessage string
	Next         domain.NewJob
}

type FailParams struct {
	JobID        int64
	WorkerID     string
	ContentID    string
	ErrorMessage string
	// MarkContent moves the record to error alongside the job.
	MarkContent bool
}

// PipelineStore groups the multi-row writes of the pipeline so a status
// change and the enqueue that follows it commit together.
type PipelineStore interface {
	StartPipeline(ctx context.Context, params StartParams) ([]*domain.Job, error)
	// Advance returns the enqueued next job, or nil when none was enqueued.
	Advance(ctx context.Context, params AdvanceParams) (*domain.Job, error)
	RetryJob(ctx context.Context, params RetryParams) (*domain.Job, error)
	FailPipeline(ctx context.Context, params FailParams) error
}

type ArtifactStore interface {
	SaveTranscript(ctx context.Context, t *domain.Transcript) error
	LatestTranscript(ctx context.Context, contentID string) (*domain.Transcript, error)
	SaveDocument(ctx context.Context, d *domain.Document) error
	LatestDocument(ctx context.Context, contentID string) (*domain.Document, error)

	ReplaceFrames(ctx context.Context, contentID string, frames []*domain.Frame) error
	ListFrames(ctx context.Context, contentID string) ([]*domain.Frame, error)
	UpdateFrameDescription(ctx context.Context, frameID int64, description, sceneType string, elements []string) error
	UpdateFrameOCR(ctx context.Context, frameID int64, text string, confidence float64) error
	SearchFrames(ctx context.Context, orgID, query string, limit int) ([]*domain.Frame, error)

	ReplaceEmbeddings(ctx context.Context, contentID string, source domain.EmbeddingSource, embeddings []*domain.Embedding) error
	ListEmbeddings(ctx context.Context, contentID string) ([]*domain.Embedding, error)
	ListOrgEmbeddings(ctx context.Context, orgID string) ([]*domain.Embedding, error)

	SaveMetricsSnapshot(ctx context.Context, m *domain.MetricsSnapshot) error
	LatestMetricsSnapshot(ctx context.Context) (*domain.MetricsSnapshot, error)
	SaveAlert(ctx context.Context, a *domain.Alert) error
	ListAlerts(ctx context.Context, limit int) ([]*domain.Alert, error)
}
