package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestPipeline_VideoRunsEveryStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.caps.audio.EXPECT().ExtractAudio(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, in, out string) error {
			assert.FileExists(t, in)
			return os.WriteFile(out, []byte("RIFF....WAVE"), 0644)
		}).Once()
	h.caps.frames.EXPECT().ExtractFrames(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, _ string, dir string, _ port.FrameOptions) ([]port.ExtractedFrame, error) {
			require.NoError(t, os.MkdirAll(dir, 0755))
			var frames []port.ExtractedFrame
			for i, ts := range []float64{0, 10} {
				p := filepath.Join(dir, domain.FrameFileName(i))
				require.NoError(t, os.WriteFile(p, []byte{0xFF, 0xD8, 0xFF}, 0644))
				frames = append(frames, port.ExtractedFrame{Index: i, Timestamp: ts, Path: p})
			}
			return frames, nil
		}).Once()
	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, audioPath string) (*port.Transcription, error) {
			assert.Equal(t, "audio.wav", filepath.Base(audioPath))
			return &port.Transcription{Text: "we agreed to ship on friday", Language: "en", Confidence: 0.8, Provider: "openai"}, nil
		}).Once()
	h.expectSummarizer()
	h.expectEmbedder()
	h.caps.vision.EXPECT().DescribeFrame(mock.Anything, mock.Anything).
		Return(&port.FrameDescription{Description: "a slide with a roadmap", SceneType: "slide", Elements: []string{"text"}}, nil).Times(2)
	h.caps.ocr.EXPECT().Recognize(mock.Anything, mock.Anything).
		Return([]port.OCRWord{
			{Text: "Roadmap", Confidence: 95, Block: 1, Paragraph: 1, Line: 1},
			{Text: "~~", Confidence: 12, Block: 1, Paragraph: 1, Line: 1},
			{Text: "Q3", Confidence: 88, Block: 1, Paragraph: 1, Line: 2},
		}, nil).Times(2)

	c := h.upload(t, "standup.mp4", mp4Head)
	assert.Equal(t, domain.StatusTranscribing, c.Status)
	assert.NotEmpty(t, c.Checksum)
	assert.True(t, h.objectExists(c.StoragePathRaw))

	assert.Equal(t, 8, h.drain(t))

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, domain.ProcessedObjectPath("org-1", c.ID, "audio.wav"), got.StoragePathProcessed)
	assert.True(t, h.objectExists(got.StoragePathProcessed))

	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 8)
	for _, j := range jobs {
		assert.Equal(t, domain.JobStatusCompleted, j.Status, "job %s", j.Type)
	}
	assert.Equal(t, []domain.JobType{
		domain.JobTypeExtractAudio, domain.JobTypeTranscribe,
		domain.JobTypeDocGenerate, domain.JobTypeGenerateEmbeddings,
	}, jobTypes(jobs, domain.ChainMain))
	assert.Equal(t, []domain.JobType{
		domain.JobTypeExtractFrames, domain.JobTypeIndexFrames,
		domain.JobTypeOCRFrames, domain.JobTypeEmbedFrames,
	}, jobTypes(jobs, domain.ChainFrames))

	tr, err := h.store.LatestTranscript(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "we agreed to ship on friday", tr.Text)
	assert.InDelta(t, 0.8, tr.Confidence, 1e-9)

	doc, err := h.store.LatestDocument(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", doc.Summary)

	frames, err := h.store.ListFrames(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, frames, 2)
	for _, f := range frames {
		assert.Equal(t, "a slide with a roadmap", f.Description)
		assert.Equal(t, "Roadmap\nQ3", f.OCRText)
		assert.InDelta(t, 0.915, f.OCRConfidence, 1e-9)
		assert.True(t, h.objectExists(f.StoragePath))
	}

	embeddings, err := h.store.ListEmbeddings(ctx, c.ID)
	require.NoError(t, err)
	sources := map[domain.EmbeddingSource]int{}
	for _, e := range embeddings {
		sources[e.Source]++
	}
	assert.Equal(t, 1, sources[domain.EmbeddingSourceTranscript])
	assert.Equal(t, 1, sources[domain.EmbeddingSourceDocument])
	assert.Equal(t, 2, sources[domain.EmbeddingSourceFrame])
}

func TestPipeline_StatusNeverMovesBackwards(t *testing.T) {
	h := newHarness(t)
	h.expectTranscript("hello team")
	h.expectSummarizer()
	h.expectEmbedder()

	c := h.upload(t, "call.mp3", mp3Head)
	h.drain(t)

	statuses := h.events.statuses(c.ID)
	require.NotEmpty(t, statuses)
	assert.Equal(t, domain.StatusUploaded, statuses[0])
	assert.Equal(t, domain.StatusCompleted, statuses[len(statuses)-1])
	for i := 1; i < len(statuses); i++ {
		assert.GreaterOrEqual(t, statusRank(statuses[i]), statusRank(statuses[i-1]),
			"status went from %s to %s", statuses[i-1], statuses[i])
	}
	assert.Contains(t, statuses, domain.StatusDocGenerating)
	assert.Contains(t, statuses, domain.StatusEmbedding)
}

func TestPipeline_TextNote(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.expectSummarizer()
	h.expectEmbedder()

	c, err := h.content.CreateTextNote(ctx, TextNoteRequest{
		OrgID:    "org-1",
		UserID:   "user-1",
		Title:    "Retro",
		Content:  "# Retro\n\nWhat went well: the release.",
		Markdown: true,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ContentTypeText, c.ContentType)
	assert.Equal(t, "md", c.FileType)

	assert.Equal(t, 3, h.drain(t))
	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)
	assert.Equal(t, []domain.ContentStatus{
		domain.StatusUploaded,
		domain.StatusTranscribing, domain.StatusDocGenerating, domain.StatusDocGenerating, domain.StatusCompleted,
	}, h.events.statuses(c.ID))

	tr, err := h.store.LatestTranscript(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "# Retro\n\nWhat went well: the release.", tr.Text)
	assert.Equal(t, domain.ProviderUserInput, tr.Provider)
	assert.InDelta(t, domain.UserInputConfidence, tr.Confidence, 1e-9)

	assert.Equal(t, []domain.JobType{domain.JobTypeProcessTextNote, domain.JobTypeDocGenerate, domain.JobTypeGenerateEmbeddings},
		jobTypes(h.jobs(t, c.ID), domain.ChainMain))

	embeddings, err := h.store.ListEmbeddings(ctx, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, embeddings)
}

var pdfHead = []byte("%PDF-1.7\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")

func TestPipeline_DocumentKeepsTranscribingUntilDone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.caps.text.EXPECT().ExtractText(mock.Anything, mock.Anything, "pdf").Return("Quarterly report", nil).Once()
	h.expectSummarizer()
	h.expectEmbedder()

	c := h.upload(t, "report.pdf", pdfHead)

	assert.Equal(t, 3, h.drain(t))
	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)
	assert.Equal(t, []domain.ContentStatus{
		domain.StatusUploaded,
		domain.StatusTranscribing, domain.StatusTranscribing, domain.StatusTranscribing, domain.StatusCompleted,
	}, h.events.statuses(c.ID))

	tr, err := h.store.LatestTranscript(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "pdftotext", tr.Provider)
	assert.InDelta(t, 1.0, tr.Confidence, 1e-9)

	doc, err := h.store.LatestDocument(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Short summary.", doc.Summary)

	embeddings, err := h.store.ListEmbeddings(ctx, c.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, embeddings)
}

func TestContentService_RetryDocumentSummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.caps.text.EXPECT().ExtractText(mock.Anything, mock.Anything, "pdf").Return("Quarterly report", nil).Once()
	h.caps.summarizer.EXPECT().Summarize(mock.Anything, mock.Anything).
		Return(nil, domain.Permanent(domain.JobTypeDocGenerate, errors.New("invalid api key"))).Once()

	c := h.upload(t, "report.pdf", pdfHead)
	assert.Equal(t, 2, h.drain(t))
	require.Equal(t, domain.StatusError, h.get(t, c.ID).Status)

	h.expectSummarizer()
	h.expectEmbedder()
	retried, err := h.content.Retry(ctx, "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTranscribing, retried.Status)

	assert.Equal(t, 2, h.drain(t))
	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)
}

func TestPipeline_TransientFailuresAreBounded(t *testing.T) {
	h := newHarness(t)
	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		Return(nil, domain.Transient(domain.JobTypeTranscribe, errors.New("upstream 503"))).Times(4)

	c := h.upload(t, "call.mp3", mp3Head)
	assert.Equal(t, 4, h.drain(t))

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "upstream 503")

	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 4)
	for i, j := range jobs {
		assert.Equal(t, domain.JobTypeTranscribe, j.Type)
		assert.Equal(t, domain.JobStatusFailed, j.Status)
		assert.Equal(t, i, j.Attempt)
	}
}

func TestPipeline_PermanentFailureIsNotRetried(t *testing.T) {
	h := newHarness(t)
	h.expectTranscript("hello")
	h.caps.summarizer.EXPECT().Summarize(mock.Anything, mock.Anything).
		Return(nil, domain.Permanent(domain.JobTypeDocGenerate, errors.New("invalid api key"))).Once()

	c := h.upload(t, "call.mp3", mp3Head)
	assert.Equal(t, 2, h.drain(t))

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "invalid api key")

	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobStatusFailed, jobs[1].Status)
	assert.Equal(t, 0, jobs[1].Attempt)
}

func TestPipeline_EmptyTranscriptIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.expectTranscript("   ")

	c := h.upload(t, "silence.mp3", mp3Head)
	assert.Equal(t, 1, h.drain(t))

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "no speech detected")
}

func TestPipeline_TimeoutIsRetried(t *testing.T) {
	h := newHarness(t, func(c *WorkerConfig) { c.JobTimeout = 50 * time.Millisecond })
	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, _ string) (*port.Transcription, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()
	h.expectTranscript("second try")
	h.expectSummarizer()
	h.expectEmbedder()

	c := h.upload(t, "call.mp3", mp3Head)
	h.drain(t)

	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)
	jobs := h.jobs(t, c.ID)
	require.GreaterOrEqual(t, len(jobs), 2)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
	assert.Contains(t, jobs[0].ErrorMessage, "timed out")
	assert.Equal(t, 1, jobs[1].Attempt)
}

func TestPipeline_PanicIsPermanent(t *testing.T) {
	h := newHarness(t)
	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, string) (*port.Transcription, error) {
			panic("boom")
		}).Once()

	c := h.upload(t, "call.mp3", mp3Head)
	assert.Equal(t, 1, h.drain(t))
	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "handler panic")
}

func TestPipeline_SkipsDeletedRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.upload(t, "call.mp3", mp3Head)
	require.NoError(t, h.content.SoftDelete(ctx, "org-1", c.ID, "user-1", "duplicate"))

	// No capability expectations: running the handler would fail the test.
	assert.Equal(t, 1, h.drain(t))

	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusCompleted, jobs[0].Status)
	got := h.get(t, c.ID)
	assert.True(t, got.IsDeleted())
	assert.Equal(t, domain.StatusTranscribing, got.Status)
}

func TestPipeline_SkipsTerminalRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := h.upload(t, "call.mp3", mp3Head)
	require.NoError(t, h.store.UpdateStatus(ctx, c.ID, domain.StatusError, "cancelled"))

	assert.Equal(t, 1, h.drain(t))
	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Equal(t, "cancelled", got.ErrorMessage)
}

func TestPipeline_ExpiredLeasesAreBounded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	c := domain.NewContent("org-1", "user-1", domain.ContentTypeAudio, "mp3", "call.mp3", int64(len(mp3Head)), nil)
	require.NoError(t, h.store.Create(ctx, c))
	// A job whose workers kept dying: every expired lease added an attempt.
	nj := domain.NewJobFor(domain.TranscribePayload{
		Target:    domain.Target{ContentID: c.ID, OrgID: c.OrgID},
		AudioPath: domain.RawObjectPath(c.OrgID, c.ID, "mp3"),
	})
	nj.Attempt = 4
	_, err := h.store.StartPipeline(ctx, port.StartParams{
		ContentID: c.ID,
		Status:    domain.StatusTranscribing,
		Jobs:      []domain.NewJob{nj},
	})
	require.NoError(t, err)

	// No transcriber expectation: the handler must not run again.
	assert.Equal(t, 1, h.drain(t))

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusError, got.Status)
	assert.Contains(t, got.ErrorMessage, "lost its lease")

	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusFailed, jobs[0].Status)
}

func TestPipeline_FrameFailureKeepsRecordStatus(t *testing.T) {
	h := newHarness(t)
	h.caps.audio.EXPECT().ExtractAudio(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, _, out string) error {
			return os.WriteFile(out, []byte("RIFF....WAVE"), 0644)
		}).Once()
	h.caps.frames.EXPECT().ExtractFrames(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, _ string, dir string, _ port.FrameOptions) ([]port.ExtractedFrame, error) {
			require.NoError(t, os.MkdirAll(dir, 0755))
			p := filepath.Join(dir, domain.FrameFileName(0))
			require.NoError(t, os.WriteFile(p, []byte{0xFF, 0xD8}, 0644))
			return []port.ExtractedFrame{{Index: 0, Path: p}}, nil
		}).Once()
	h.caps.vision.EXPECT().DescribeFrame(mock.Anything, mock.Anything).
		Return(nil, domain.Permanent(domain.JobTypeIndexFrames, errors.New("content policy"))).Once()
	h.expectTranscript("hello")
	h.expectSummarizer()
	h.expectEmbedder()

	c := h.upload(t, "demo.mp4", mp4Head)
	h.drain(t)

	got := h.get(t, c.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Empty(t, got.ErrorMessage)

	frameJobs := map[domain.JobType]domain.JobStatus{}
	for _, j := range h.jobs(t, c.ID) {
		if j.Chain == domain.ChainFrames {
			frameJobs[j.Type] = j.Status
		}
	}
	assert.Equal(t, map[domain.JobType]domain.JobStatus{
		domain.JobTypeExtractFrames: domain.JobStatusCompleted,
		domain.JobTypeIndexFrames:   domain.JobStatusFailed,
	}, frameJobs)
}

func TestContentService_RetryRestartsFailedStage(t *testing.T) {
	h := newHarness(t, func(c *WorkerConfig) { c.Retry.MaxRetries = 0 })
	ctx := context.Background()

	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		Return(nil, domain.Transient(domain.JobTypeTranscribe, errors.New("upstream 503"))).Once()
	c := h.upload(t, "call.mp3", mp3Head)
	h.drain(t)
	require.Equal(t, domain.StatusError, h.get(t, c.ID).Status)

	h.expectTranscript("recovered")
	h.expectSummarizer()
	h.expectEmbedder()

	retried, err := h.content.Retry(ctx, "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusTranscribing, retried.Status)

	h.drain(t)
	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)

	_, err = h.content.Retry(ctx, "org-1", c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestContentService_RetryRequiresFailure(t *testing.T) {
	h := newHarness(t)
	c := h.upload(t, "call.mp3", mp3Head)

	_, err := h.content.Retry(context.Background(), "org-1", c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestContentService_UploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		body     []byte
		size     int64
		wantErr  error
	}{
		{"unknown extension", "setup.exe", []byte("MZ\x90\x00"), 4, domain.ErrUnsupportedFormat},
		{"renamed html", "notes.txt", []byte("<!DOCTYPE html><html><body>hi</body></html>"), 43, domain.ErrUnsupportedFormat},
		{"text pretending to be video", "clip.mp4", []byte("just some text"), 14, domain.ErrUnsupportedFormat},
		{"too large", "notes.txt", []byte("hello"), 2 << 20, domain.ErrTooLarge},
		{"empty", "notes.txt", nil, 0, domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()

			_, err := h.content.Upload(ctx, UploadRequest{
				OrgID:    "org-1",
				UserID:   "user-1",
				Filename: tt.filename,
				Size:     tt.size,
				Body:     strings.NewReader(string(tt.body)),
			})
			assert.ErrorIs(t, err, tt.wantErr)

			list, total, err := h.store.List(ctx, port.ContentFilter{OrgID: "org-1", IncludeDeleted: true})
			require.NoError(t, err)
			assert.Empty(t, list)
			assert.Zero(t, total)
			entries, err := os.ReadDir(h.blobRoot)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestContentService_UploadFailureCleansUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// The declared size does not match the body, so storing fails after
	// the record was created.
	_, err := h.content.Upload(ctx, UploadRequest{
		OrgID:    "org-1",
		UserID:   "user-1",
		Filename: "call.mp3",
		Size:     int64(len(mp3Head)) + 100,
		Body:     strings.NewReader(string(mp3Head)),
	})
	require.Error(t, err)

	list, _, err := h.store.List(ctx, port.ContentFilter{OrgID: "org-1", IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, list)
	leftover, _ := os.ReadDir(filepath.Join(h.blobRoot, "org-1"))
	assert.Empty(t, leftover)

	stats, err := h.queue.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Pending)
}

func TestContentService_OrgScoping(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.upload(t, "call.mp3", mp3Head)

	_, err := h.content.Get(ctx, "org-2", c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, h.content.SoftDelete(ctx, "org-2", c.ID, "user-9", ""), domain.ErrNotFound)
	assert.ErrorIs(t, h.content.Purge(ctx, "org-2", c.ID), domain.ErrNotFound)
	_, err = h.content.Jobs(ctx, "org-2", c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = h.content.List(ctx, port.ContentFilter{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	list, total, err := h.content.List(ctx, port.ContentFilter{OrgID: "org-2"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)

	got, err := h.content.Get(ctx, "org-1", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
}

func TestContentService_SoftDeleteAndRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.upload(t, "call.mp3", mp3Head)

	require.NoError(t, h.content.SoftDelete(ctx, "org-1", c.ID, "user-1", "mistake"))
	got := h.get(t, c.ID)
	require.True(t, got.IsDeleted())
	assert.Equal(t, "user-1", got.DeletedBy)
	assert.Equal(t, "mistake", got.DeleteReason)

	require.NoError(t, h.content.Restore(ctx, "org-1", c.ID))
	assert.False(t, h.get(t, c.ID).IsDeleted())
}

func TestContentService_RestoreResumesSkippedStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.upload(t, "call.mp3", mp3Head)

	require.NoError(t, h.content.SoftDelete(ctx, "org-1", c.ID, "user-1", "mistake"))
	assert.Equal(t, 1, h.drain(t))

	require.NoError(t, h.content.Restore(ctx, "org-1", c.ID))
	jobs := h.jobs(t, c.ID)
	require.Len(t, jobs, 2)
	assert.Equal(t, domain.JobTypeTranscribe, jobs[1].Type)
	assert.Equal(t, domain.JobStatusPending, jobs[1].Status)

	h.expectTranscript("budget approved")
	h.expectSummarizer()
	h.expectEmbedder()
	assert.Equal(t, 3, h.drain(t))
	assert.Equal(t, domain.StatusCompleted, h.get(t, c.ID).Status)

	require.NoError(t, h.content.Restore(ctx, "org-1", c.ID))
	assert.Len(t, h.jobs(t, c.ID), 4, "finished records are not resumed")
}

func TestContentService_Purge(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.upload(t, "call.mp3", mp3Head)
	require.True(t, h.objectExists(c.StoragePathRaw))

	require.NoError(t, h.content.Purge(ctx, "org-1", c.ID))

	_, err := h.store.Get(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.False(t, h.objectExists(c.StoragePathRaw))
	assert.Empty(t, h.jobs(t, c.ID))
}

func TestContentService_SignedURL(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.upload(t, "call.mp3", mp3Head)

	url, err := h.content.SignedURL(ctx, "org-1", c.ID, domain.StorageRaw, time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost/files/"))

	_, err = h.content.SignedURL(ctx, "org-1", c.ID, domain.StorageProcessed, time.Minute)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
