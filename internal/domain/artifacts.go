package domain

import "time"

const (
	ProviderUserInput = "user_input"

	// UserInputConfidence is used for directly authored text: there is no
	// recognition uncertainty.
	UserInputConfidence = 1.0
)

type Transcript struct {
	ID         int64
	ContentID  string
	Text       string
	Language   string
	Confidence float64
	Provider   string
	CreatedAt  time.Time
}

type Document struct {
	ID        int64
	ContentID string
	Content   string
	Format    string
	Summary   string
	CreatedAt time.Time
}

type Frame struct {
	ID            int64
	ContentID     string
	FrameIndex    int
	Timestamp     float64
	StoragePath   string
	Description   string
	SceneType     string
	Elements      []string
	OCRText       string
	OCRConfidence float64
	CreatedAt     time.Time
}

type EmbeddingSource string

const (
	EmbeddingSourceTranscript EmbeddingSource = "transcript"
	EmbeddingSourceDocument   EmbeddingSource = "document"
	EmbeddingSourceFrame      EmbeddingSource = "frame"
)

type Embedding struct {
	ID         int64
	ContentID  string
	Source     EmbeddingSource
	ChunkIndex int
	Text       string
	Vector     []float32
	CreatedAt  time.Time
}

type MetricsSnapshot struct {
	ID           int64
	StatusCounts map[ContentStatus]int64
	Jobs         JobStats
	ErrorRate    float64
	CollectedAt  time.Time
}

type AlertSeverity string

const (
	AlertWarning  AlertSeverity = "warning"
	AlertCritical AlertSeverity = "critical"
)

type Alert struct {
	ID        int64
	Kind      string
	Severity  AlertSeverity
	Message   string
	Value     float64
	Threshold float64
	CreatedAt time.Time
}
