package domain

import (
	"encoding/json"
	"time"
)

type JobType string

const (
	JobTypeExtractAudio       JobType = "extract_audio"
	JobTypeTranscribe         JobType = "transcribe"
	JobTypeExtractTextPDF     JobType = "extract_text_pdf"
	JobTypeExtractTextDOCX    JobType = "extract_text_docx"
	JobTypeProcessTextNote    JobType = "process_text_note"
	JobTypeDocGenerate        JobType = "doc_generate"
	JobTypeGenerateEmbeddings JobType = "generate_embeddings"

	JobTypeExtractFrames JobType = "extract_frames"
	JobTypeIndexFrames   JobType = "index_frames"
	JobTypeOCRFrames     JobType = "ocr_frames"
	JobTypeEmbedFrames   JobType = "embed_frames"

	JobTypeCollectMetrics JobType = "collect_metrics"
	JobTypeGenerateAlerts JobType = "generate_alerts"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Chain groups jobs that run strictly one after another for a record.
// At most one pending or processing job exists per (content, chain).
type Chain string

const (
	ChainMain   Chain = "main"
	ChainFrames Chain = "frames"
	ChainSystem Chain = "system"
)

// ChainOf returns the chain a job type belongs to.
func ChainOf(t JobType) Chain {
	switch t {
	case JobTypeExtractFrames, JobTypeIndexFrames, JobTypeOCRFrames, JobTypeEmbedFrames:
		return ChainFrames
	case JobTypeCollectMetrics, JobTypeGenerateAlerts:
		return ChainSystem
	}
	return ChainMain
}

type Job struct {
	ID           int64
	Type         JobType
	Status       JobStatus
	ContentID    string
	OrgID        string
	Chain        Chain
	Payload      json.RawMessage
	Attempt      int
	RunAt        time.Time
	LockedBy     string
	LockedUntil  *time.Time
	ErrorMessage string
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// NewJob is an enqueue request.
type NewJob struct {
	Type      JobType
	ContentID string
	OrgID     string
	Payload   Payload
	Attempt   int
	RunAt     time.Time
}

// NewJobFor builds an enqueue request for a payload, due immediately.
func NewJobFor(p Payload) NewJob {
	t := p.Ref()
	return NewJob{
		Type:      p.JobType(),
		ContentID: t.ContentID,
		OrgID:     t.OrgID,
		Payload:   p,
	}
}

type JobStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	Stalled    int64
}
