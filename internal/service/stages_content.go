package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
)

const (
	audioObjectName = "audio.wav"
	maxNoteBytes    = 8 << 20

	providerPDF  = "pdftotext"
	providerDOCX = "docx"
)

var errNoSpeech = errors.New("no speech detected")

func (s *Stages) extractAudio(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.ExtractAudioPayload](task)
	if err != nil {
		return Outcome{}, err
	}
	dir, cleanup, err := s.workspace(task.Job)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	in := filepath.Join(dir, path.Base(p.RawPath))
	if err := s.fetch(ctx, p.RawPath, in); err != nil {
		return Outcome{}, err
	}
	out := filepath.Join(dir, audioObjectName)
	if err := s.caps.Audio.ExtractAudio(ctx, in, out); err != nil {
		return Outcome{}, err
	}

	dest := domain.ProcessedObjectPath(p.OrgID, p.ContentID, audioObjectName)
	if err := s.store(ctx, out, dest); err != nil {
		return Outcome{}, err
	}
	if err := s.contents.AttachStoragePath(ctx, p.ContentID, domain.StorageProcessed, dest); err != nil {
		return Outcome{}, fmt.Errorf("attach processed path: %w", err)
	}
	return Outcome{Source: dest}, nil
}

func (s *Stages) transcribe(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.TranscribePayload](task)
	if err != nil {
		return Outcome{}, err
	}
	dir, cleanup, err := s.workspace(task.Job)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	local := filepath.Join(dir, path.Base(p.AudioPath))
	if err := s.fetch(ctx, p.AudioPath, local); err != nil {
		return Outcome{}, err
	}
	tr, err := s.caps.Transcriber.Transcribe(ctx, local)
	if err != nil {
		return Outcome{}, err
	}
	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return Outcome{}, domain.Permanent(domain.JobTypeTranscribe, errNoSpeech)
	}

	if err := s.artifacts.SaveTranscript(ctx, &domain.Transcript{
		ContentID:  p.ContentID,
		Text:       text,
		Language:   tr.Language,
		Confidence: tr.Confidence,
		Provider:   tr.Provider,
	}); err != nil {
		return Outcome{}, fmt.Errorf("save transcript: %w", err)
	}
	logger.Info.Printf("transcribed content %s: %d chars, language=%s", p.ContentID, len(text), tr.Language)
	return Outcome{}, nil
}

func (s *Stages) extractText(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.ExtractTextPayload](task)
	if err != nil {
		return Outcome{}, err
	}
	dir, cleanup, err := s.workspace(task.Job)
	if err != nil {
		return Outcome{}, err
	}
	defer cleanup()

	local := filepath.Join(dir, "source."+p.Format)
	if err := s.fetch(ctx, p.Path, local); err != nil {
		return Outcome{}, err
	}
	text, err := s.caps.Text.ExtractText(ctx, local, p.Format)
	if err != nil {
		return Outcome{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Outcome{}, domain.Permanent(task.Job.Type, errors.New("document contains no text"))
	}

	provider := providerPDF
	if p.Format == "docx" {
		provider = providerDOCX
	}
	if err := s.artifacts.SaveTranscript(ctx, &domain.Transcript{
		ContentID:  p.ContentID,
		Text:       text,
		Language:   task.Content.Metadata["language"],
		Confidence: 1,
		Provider:   provider,
	}); err != nil {
		return Outcome{}, fmt.Errorf("save transcript: %w", err)
	}
	return Outcome{}, nil
}

// processTextNote stores a directly authored note as the transcript.
// No capability is called.
func (s *Stages) processTextNote(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.ProcessTextNotePayload](task)
	if err != nil {
		return Outcome{}, err
	}
	rc, err := s.blobs.Download(ctx, p.Path)
	if err != nil {
		return Outcome{}, fmt.Errorf("download %s: %w", p.Path, err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(io.LimitReader(rc, maxNoteBytes+1))
	if err != nil {
		return Outcome{}, fmt.Errorf("read note: %w", err)
	}
	if len(buf) > maxNoteBytes {
		return Outcome{}, domain.Permanent(domain.JobTypeProcessTextNote, domain.ErrTooLarge)
	}

	text := strings.TrimSpace(string(buf))
	if text == "" {
		return Outcome{}, domain.Permanent(domain.JobTypeProcessTextNote, errors.New("note is empty"))
	}
	if err := s.artifacts.SaveTranscript(ctx, &domain.Transcript{
		ContentID:  p.ContentID,
		Text:       text,
		Language:   task.Content.Metadata["language"],
		Confidence: domain.UserInputConfidence,
		Provider:   domain.ProviderUserInput,
	}); err != nil {
		return Outcome{}, fmt.Errorf("save transcript: %w", err)
	}
	return Outcome{}, nil
}

func (s *Stages) docGenerate(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.DocGeneratePayload](task)
	if err != nil {
		return Outcome{}, err
	}
	tr, err := s.artifacts.LatestTranscript(ctx, p.ContentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Outcome{}, domain.Permanent(domain.JobTypeDocGenerate, errors.New("no transcript to generate from"))
		}
		return Outcome{}, fmt.Errorf("load transcript: %w", err)
	}

	title := task.Content.Title
	if title == "" {
		title = task.Content.Filename
	}
	sum, err := s.caps.Summarizer.Summarize(ctx, port.SummarizeInput{
		Title:       title,
		ContentType: string(task.Content.ContentType),
		Text:        tr.Text,
	})
	if err != nil {
		return Outcome{}, err
	}
	if err := s.artifacts.SaveDocument(ctx, &domain.Document{
		ContentID: p.ContentID,
		Content:   sum.Content,
		Format:    "markdown",
		Summary:   sum.Summary,
	}); err != nil {
		return Outcome{}, fmt.Errorf("save document: %w", err)
	}
	return Outcome{}, nil
}

func (s *Stages) generateEmbeddings(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.GenerateEmbeddingsPayload](task)
	if err != nil {
		return Outcome{}, err
	}
	tr, err := s.artifacts.LatestTranscript(ctx, p.ContentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Outcome{}, domain.Permanent(domain.JobTypeGenerateEmbeddings, errors.New("no transcript to embed"))
		}
		return Outcome{}, fmt.Errorf("load transcript: %w", err)
	}
	if err := s.embedText(ctx, p.ContentID, domain.EmbeddingSourceTranscript, tr.Text); err != nil {
		return Outcome{}, err
	}

	doc, err := s.artifacts.LatestDocument(ctx, p.ContentID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return Outcome{}, fmt.Errorf("load document: %w", err)
	default:
		text := doc.Content
		if doc.Summary != "" {
			text = doc.Summary + "\n\n" + text
		}
		if err := s.embedText(ctx, p.ContentID, domain.EmbeddingSourceDocument, text); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{}, nil
}

func (s *Stages) embedText(ctx context.Context, contentID string, source domain.EmbeddingSource, text string) error {
	chunks := ChunkText(text, s.cfg.ChunkWords, s.cfg.ChunkOverlap)
	vectors, err := s.embedBatches(ctx, domain.JobTypeGenerateEmbeddings, chunks)
	if err != nil {
		return err
	}
	embeddings := make([]*domain.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = &domain.Embedding{
			ContentID:  contentID,
			Source:     source,
			ChunkIndex: i,
			Text:       chunk,
			Vector:     vectors[i],
		}
	}
	if err := s.artifacts.ReplaceEmbeddings(ctx, contentID, source, embeddings); err != nil {
		return fmt.Errorf("save %s embeddings: %w", source, err)
	}
	return nil
}

func (s *Stages) embedBatches(ctx context.Context, stage domain.JobType, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.cfg.EmbedBatch {
		end := min(start+s.cfg.EmbedBatch, len(texts))
		vecs, err := s.caps.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-start {
			return nil, domain.Transient(stage, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vecs), end-start))
		}
		out = append(out, vecs...)
	}
	return out, nil
}
