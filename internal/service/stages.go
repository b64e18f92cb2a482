package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
)

// Capabilities are the external engines the stage handlers call.
type Capabilities struct {
	Audio       port.AudioExtractor
	Frames      port.FrameExtractor
	Transcriber port.Transcriber
	Text        port.TextExtractor
	Summarizer  port.Summarizer
	Embedder    port.Embedder
	Vision      port.VisionDescriber
	OCR         port.OCR
}

type AlertThresholds struct {
	ErrorRateMax   float64
	FailedJobsMax  int64
	StalledJobsMax int64
	Window         time.Duration
}

func DefaultAlertThresholds() AlertThresholds {
	return AlertThresholds{
		ErrorRateMax:   0.2,
		FailedJobsMax:  50,
		StalledJobsMax: 0,
		Window:         15 * time.Minute,
	}
}

type StageConfig struct {
	// WorkDir holds per-job scratch directories.
	WorkDir          string
	Frames           port.FrameOptions
	FrameConcurrency int
	// OCRMinConfidence drops recognized words below it, on a 0-100 scale.
	OCRMinConfidence float64
	ChunkWords       int
	ChunkOverlap     int
	EmbedBatch       int
	Alerts           AlertThresholds
}

func DefaultStageConfig() StageConfig {
	return StageConfig{
		WorkDir:          os.TempDir(),
		Frames:           port.FrameOptions{Interval: 10 * time.Second, SceneThreshold: 0.4, MaxFrames: 120},
		FrameConcurrency: 4,
		OCRMinConfidence: 60,
		ChunkWords:       200,
		ChunkOverlap:     40,
		EmbedBatch:       64,
		Alerts:           DefaultAlertThresholds(),
	}
}

// Stages holds the dependencies of every stage handler.
type Stages struct {
	contents  port.ContentStore
	artifacts port.ArtifactStore
	queue     port.JobQueue
	blobs     port.BlobStorage
	caps      Capabilities
	cfg       StageConfig
	now       func() time.Time
}

func NewStages(
	contents port.ContentStore,
	artifacts port.ArtifactStore,
	queue port.JobQueue,
	blobs port.BlobStorage,
	caps Capabilities,
	cfg StageConfig,
) *Stages {
	if cfg.FrameConcurrency <= 0 {
		cfg.FrameConcurrency = 1
	}
	if cfg.EmbedBatch <= 0 {
		cfg.EmbedBatch = 64
	}
	return &Stages{
		contents:  contents,
		artifacts: artifacts,
		queue:     queue,
		blobs:     blobs,
		caps:      caps,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Handlers maps every job type to its handler.
func (s *Stages) Handlers() map[domain.JobType]StageHandler {
	return map[domain.JobType]StageHandler{
		domain.JobTypeExtractAudio:       StageFunc(s.extractAudio),
		domain.JobTypeTranscribe:         StageFunc(s.transcribe),
		domain.JobTypeExtractTextPDF:     StageFunc(s.extractText),
		domain.JobTypeExtractTextDOCX:    StageFunc(s.extractText),
		domain.JobTypeProcessTextNote:    StageFunc(s.processTextNote),
		domain.JobTypeDocGenerate:        StageFunc(s.docGenerate),
		domain.JobTypeGenerateEmbeddings: StageFunc(s.generateEmbeddings),
		domain.JobTypeExtractFrames:      StageFunc(s.extractFrames),
		domain.JobTypeIndexFrames:        StageFunc(s.indexFrames),
		domain.JobTypeOCRFrames:          StageFunc(s.ocrFrames),
		domain.JobTypeEmbedFrames:        StageFunc(s.embedFrames),
		domain.JobTypeCollectMetrics:     StageFunc(s.collectMetrics),
		domain.JobTypeGenerateAlerts:     StageFunc(s.generateAlerts),
	}
}

// workspace creates a scratch directory for one job and returns its
// cleanup function.
func (s *Stages) workspace(job *domain.Job) (string, func(), error) {
	if err := os.MkdirAll(s.cfg.WorkDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create work dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.cfg.WorkDir, fmt.Sprintf("job-%d-*", job.ID))
	if err != nil {
		return "", nil, fmt.Errorf("create job workspace: %w", err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// fetch copies an object from blob storage to a local file.
func (s *Stages) fetch(ctx context.Context, objectPath, localPath string) error {
	rc, err := s.blobs.Download(ctx, objectPath)
	if err != nil {
		return fmt.Errorf("download %s: %w", objectPath, err)
	}
	defer rc.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		return fmt.Errorf("download %s: %w", objectPath, err)
	}
	return f.Close()
}

// store uploads a local file to blob storage.
func (s *Stages) store(ctx context.Context, localPath, objectPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Upload(ctx, objectPath, f, info.Size(), contentType); err != nil {
		return fmt.Errorf("upload %s: %w", objectPath, err)
	}
	return nil
}
