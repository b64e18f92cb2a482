package service

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"golang.org/x/sync/errgroup"
)

func (s *Stages) extractFrames(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.ExtractFramesPayload](task)
	if err != nil {
		return Outcome{}, err
	}
	dir, cleanup, err := s.workspace(task.Job)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	video := filepath.Join(dir, path.Base(p.VideoPath))
	if err := s.fetch(ctx, p.VideoPath, video); err != nil {
		return Outcome{}, err
	}
	extracted, err := s.caps.Frames.ExtractFrames(ctx, video, filepath.Join(dir, "frames"), s.cfg.Frames)
	if err != nil {
		return Outcome{}, err
	}

	// A retried extraction may yield fewer frames than the previous run.
	if err := s.blobs.RemovePrefix(ctx, domain.FramesPrefix(p.OrgID, p.ContentID)); err != nil {
		return Outcome{}, fmt.Errorf("remove previous frames: %w", err)
	}

	frames := make([]*domain.Frame, 0, len(extracted))
	for _, ef := range extracted {
		dest := domain.FrameObjectPath(p.OrgID, p.ContentID, ef.Index)
		if err := s.store(ctx, ef.Path, dest); err != nil {
			return Outcome{}, err
		}
		frames = append(frames, &domain.Frame{
			ContentID:   p.ContentID,
			FrameIndex:  ef.Index,
			Timestamp:   ef.Timestamp,
			StoragePath: dest,
		})
	}
	if err := s.artifacts.ReplaceFrames(ctx, p.ContentID, frames); err != nil {
		return Outcome{}, fmt.Errorf("save frames: %w", err)
	}
	logger.Info.Printf("extracted %d frames for content %s", len(frames), p.ContentID)
	return Outcome{}, nil
}

// forEachFrame runs fn over the frames of a record with bounded
// concurrency. Each call gets its own local copy of the frame image.
func (s *Stages) forEachFrame(ctx context.Context, task *Task, skip func(*domain.Frame) bool, fn func(ctx context.Context, f *domain.Frame, local string) error) error {
	frames, err := s.artifacts.ListFrames(ctx, task.Target().ContentID)
	if err != nil {
		return fmt.Errorf("list frames: %w", err)
	}
	dir, cleanup, err := s.workspace(task.Job)
	if err != nil {
		return err
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.FrameConcurrency)
	for _, f := range frames {
		if skip != nil && skip(f) {
			continue
		}
		g.Go(func() error {
			local := filepath.Join(dir, domain.FrameFileName(f.FrameIndex))
			if err := s.fetch(gctx, f.StoragePath, local); err != nil {
				return err
			}
			return fn(gctx, f, local)
		})
	}
	return g.Wait()
}

func (s *Stages) indexFrames(ctx context.Context, task *Task) (Outcome, error) {
	if _, err := payloadAs[domain.FrameStagePayload](task); err != nil {
		return Outcome{}, err
	}
	alreadyIndexed := func(f *domain.Frame) bool { return f.Description != "" }
	err := s.forEachFrame(ctx, task, alreadyIndexed, func(ctx context.Context, f *domain.Frame, local string) error {
		d, err := s.caps.Vision.DescribeFrame(ctx, local)
		if err != nil {
			return err
		}
		if err := s.artifacts.UpdateFrameDescription(ctx, f.ID, d.Description, d.SceneType, d.Elements); err != nil {
			return fmt.Errorf("save frame %d description: %w", f.FrameIndex, err)
		}
		return nil
	})
	return Outcome{}, err
}

func (s *Stages) ocrFrames(ctx context.Context, task *Task) (Outcome, error) {
	if _, err := payloadAs[domain.FrameStagePayload](task); err != nil {
		return Outcome{}, err
	}
	err := s.forEachFrame(ctx, task, nil, func(ctx context.Context, f *domain.Frame, local string) error {
		words, err := s.caps.OCR.Recognize(ctx, local)
		if err != nil {
			return err
		}
		text, confidence := JoinOCRWords(words, s.cfg.OCRMinConfidence)
		if err := s.artifacts.UpdateFrameOCR(ctx, f.ID, text, confidence); err != nil {
			return fmt.Errorf("save frame %d ocr: %w", f.FrameIndex, err)
		}
		return nil
	})
	return Outcome{}, err
}

// JoinOCRWords drops words below minConfidence and joins the rest in
// reading order, one line of text per recognized line. The returned
// confidence is the mean of the kept words, scaled to [0, 1].
func JoinOCRWords(words []port.OCRWord, minConfidence float64) (string, float64) {
	type lineKey struct{ block, paragraph, line int }

	var (
		b       strings.Builder
		prev    lineKey
		started bool
		sum     float64
		kept    int
	)
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" || w.Confidence < minConfidence {
			continue
		}
		key := lineKey{w.Block, w.Paragraph, w.Line}
		switch {
		case !started:
			started = true
		case key != prev:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
		b.WriteString(text)
		prev = key
		sum += w.Confidence
		kept++
	}
	if kept == 0 {
		return "", 0
	}
	return b.String(), sum / float64(kept) / 100
}

func (s *Stages) embedFrames(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.FrameStagePayload](task)
	if err != nil {
		return Outcome{}, err
	}
	frames, err := s.artifacts.ListFrames(ctx, p.ContentID)
	if err != nil {
		return Outcome{}, fmt.Errorf("list frames: %w", err)
	}

	var (
		texts   []string
		indexed []*domain.Frame
	)
	for _, f := range frames {
		text := strings.TrimSpace(strings.TrimSpace(f.Description) + "\n" + strings.TrimSpace(f.OCRText))
		if text == "" {
			continue
		}
		texts = append(texts, text)
		indexed = append(indexed, f)
	}

	vectors, err := s.embedBatches(ctx, domain.JobTypeEmbedFrames, texts)
	if err != nil {
		return Outcome{}, err
	}
	embeddings := make([]*domain.Embedding, len(indexed))
	for i, f := range indexed {
		embeddings[i] = &domain.Embedding{
			ContentID:  p.ContentID,
			Source:     domain.EmbeddingSourceFrame,
			ChunkIndex: f.FrameIndex,
			Text:       texts[i],
			Vector:     vectors[i],
		}
	}
	if err := s.artifacts.ReplaceEmbeddings(ctx, p.ContentID, domain.EmbeddingSourceFrame, embeddings); err != nil {
		return Outcome{}, fmt.Errorf("save frame embeddings: %w", err)
	}
	return Outcome{}, nil
}
