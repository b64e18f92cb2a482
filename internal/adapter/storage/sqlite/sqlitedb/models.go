package sqlitedb

import "database/sql"

type Content struct {
	ID                   string
	OrgID                string
	CreatedBy            string
	ContentType          string
	FileType             string
	Title                string
	Description          string
	Filename             string
	FileSize             int64
	Checksum             string
	Metadata             string
	Status               string
	ErrorMessage         string
	StoragePathRaw       string
	StoragePathProcessed string
	CreatedAt            int64
	UpdatedAt            int64
	DeletedAt            sql.NullInt64
	DeletedBy            string
	DeleteReason         string
}

type Job struct {
	ID           int64
	Type         string
	Status       string
	ContentID    string
	OrgID        string
	Chain        string
	Payload      string
	Attempt      int64
	RunAt        int64
	LockedBy     string
	LockedUntil  sql.NullInt64
	ErrorMessage string
	CreatedAt    int64
	StartedAt    sql.NullInt64
	CompletedAt  sql.NullInt64
}

type Transcript struct {
	ID         int64
	ContentID  string
	Text       string
	Language   string
	Confidence float64
	Provider   string
	CreatedAt  int64
}

type Document struct {
	ID        int64
	ContentID string
	Content   string
	Format    string
	Summary   string
	CreatedAt int64
}

type Frame struct {
	ID            int64
	ContentID     string
	FrameIndex    int64
	TimestampSec  float64
	StoragePath   string
	Description   string
	SceneType     string
	Elements      string
	OcrText       string
	OcrConfidence float64
	CreatedAt     int64
}

type Embedding struct {
	ID         int64
	ContentID  string
	Source     string
	ChunkIndex int64
	Text       string
	Vector     []byte
	CreatedAt  int64
}

type MetricsSnapshot struct {
	ID             int64
	StatusCounts   string
	JobsPending    int64
	JobsProcessing int64
	JobsCompleted  int64
	JobsFailed     int64
	JobsStalled    int64
	ErrorRate      float64
	CollectedAt    int64
}

type Alert struct {
	ID        int64
	Kind      string
	Severity  string
	Message   string
	Value     float64
	Threshold float64
	CreatedAt int64
}
