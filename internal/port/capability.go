package port

import (
	"context"
	"time"
)

type AudioExtractor interface {
	// ExtractAudio writes a mono 16 kHz WAV track of inputPath to outputPath.
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

type FrameOptions struct {
	Interval       time.Duration
	SceneThreshold float64
	MaxFrames      int
}

type ExtractedFrame struct {
	Index     int
	Timestamp float64
	Path      string
}

type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath, outputDir string, opts FrameOptions) ([]ExtractedFrame, error)
}

type Transcription struct {
	Text       string
	Language   string
	Confidence float64
	Provider   string
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (*Transcription, error)
}

type TextExtractor interface {
	ExtractText(ctx context.Context, path, format string) (string, error)
}

type SummarizeInput struct {
	Title       string
	ContentType string
	Text        string
}

type Summary struct {
	Content string
	Summary string
}

type Summarizer interface {
	Summarize(ctx context.Context, in SummarizeInput) (*Summary, error)
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type FrameDescription struct {
	Description string
	SceneType   string
	Elements    []string
}

type VisionDescriber interface {
	DescribeFrame(ctx context.Context, imagePath string) (*FrameDescription, error)
}

// OCRWord is one recognized word; Confidence is in [0, 100].
type OCRWord struct {
	Text       string
	Confidence float64
	Block      int
	Paragraph  int
	Line       int
	Left       int
	Top        int
	Width      int
	Height     int
}

type OCR interface {
	// Recognize returns words in reading order.
	Recognize(ctx context.Context, imagePath string) ([]OCRWord, error)
}
