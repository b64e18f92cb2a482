package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/tribora/internal/adapter/blob/local"
	"github.com/bnema/tribora/internal/adapter/storage/sqlite"
	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
	"github.com/bnema/tribora/internal/port/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	mp4Head = append([]byte("\x00\x00\x00\x18ftypmp42"), bytes.Repeat([]byte{0}, 64)...)
	mp3Head = append([]byte("ID3\x04\x00\x00"), bytes.Repeat([]byte{0}, 64)...)
)

type recordedEvents struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordedEvents) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// statuses returns the status changes published for a record, in order.
func (r *recordedEvents) statuses(contentID string) []domain.ContentStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ContentStatus
	for _, e := range r.events {
		if e.ContentID == contentID && e.Status != "" {
			out = append(out, domain.ContentStatus(e.Status))
		}
	}
	return out
}

type mockCaps struct {
	audio       *mocks.AudioExtractorMock
	frames      *mocks.FrameExtractorMock
	transcriber *mocks.TranscriberMock
	text        *mocks.TextExtractorMock
	summarizer  *mocks.SummarizerMock
	embedder    *mocks.EmbedderMock
	vision      *mocks.VisionDescriberMock
	ocr         *mocks.OCRMock
}

type harness struct {
	store    *sqlite.Store
	queue    *sqlite.JobQueue
	blobRoot string
	blobs    *local.Storage
	events   *recordedEvents
	caps     mockCaps
	stages   *Stages
	pool     *WorkerPool
	content  *ContentService
}

func newHarness(t *testing.T, mutate ...func(*WorkerConfig)) *harness {
	t.Helper()
	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	queue := sqlite.NewJobQueue(store)

	blobRoot := t.TempDir()
	blobs, err := local.New(blobRoot, "http://localhost/files", []byte("test-secret"))
	require.NoError(t, err)

	h := &harness{
		store:    store,
		queue:    queue,
		blobRoot: blobRoot,
		blobs:    blobs,
		events:   &recordedEvents{},
		caps: mockCaps{
			audio:       mocks.NewAudioExtractorMock(t),
			frames:      mocks.NewFrameExtractorMock(t),
			transcriber: mocks.NewTranscriberMock(t),
			text:        mocks.NewTextExtractorMock(t),
			summarizer:  mocks.NewSummarizerMock(t),
			embedder:    mocks.NewEmbedderMock(t),
			vision:      mocks.NewVisionDescriberMock(t),
			ocr:         mocks.NewOCRMock(t),
		},
	}

	cfg := DefaultStageConfig()
	cfg.WorkDir = t.TempDir()
	cfg.ChunkWords = 50
	cfg.ChunkOverlap = 10
	h.stages = NewStages(store, store, queue, blobs, Capabilities{
		Audio:       h.caps.audio,
		Frames:      h.caps.frames,
		Transcriber: h.caps.transcriber,
		Text:        h.caps.text,
		Summarizer:  h.caps.summarizer,
		Embedder:    h.caps.embedder,
		Vision:      h.caps.vision,
		OCR:         h.caps.ocr,
	}, cfg)

	wcfg := WorkerConfig{
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
		Lease:        time.Minute,
		JobTimeout:   10 * time.Second,
		Retry:        domain.RetryPolicy{MaxRetries: 3, BaseDelay: time.Nanosecond, MaxDelay: time.Nanosecond},
		InstanceID:   "test",
	}
	for _, m := range mutate {
		m(&wcfg)
	}
	h.pool = NewWorkerPool(queue, store, store, h.stages.Handlers(), nil, h.events, wcfg)
	h.content = NewContentService(store, store, queue, blobs, nil, h.events, domain.DefaultLimits())
	return h
}

// drain runs jobs until the queue has nothing due.
func (h *harness) drain(t *testing.T) int {
	t.Helper()
	ctx := context.Background()
	for n := 0; n < 100; n++ {
		processed, err := h.pool.RunOnce(ctx, "test-0")
		require.NoError(t, err)
		if !processed {
			return n
		}
	}
	t.Fatal("queue did not drain")
	return 0
}

func (h *harness) upload(t *testing.T, filename string, body []byte) *domain.Content {
	t.Helper()
	c, err := h.content.Upload(context.Background(), UploadRequest{
		OrgID:    "org-1",
		UserID:   "user-1",
		Filename: filename,
		Size:     int64(len(body)),
		Body:     bytes.NewReader(body),
	})
	require.NoError(t, err)
	return c
}

func (h *harness) jobs(t *testing.T, contentID string) []*domain.Job {
	t.Helper()
	jobs, err := h.queue.ListByContent(context.Background(), contentID)
	require.NoError(t, err)
	return jobs
}

func (h *harness) get(t *testing.T, contentID string) *domain.Content {
	t.Helper()
	c, err := h.store.Get(context.Background(), contentID)
	require.NoError(t, err)
	return c
}

func (h *harness) objectExists(objectPath string) bool {
	_, err := os.Stat(filepath.Join(h.blobRoot, filepath.FromSlash(objectPath)))
	return err == nil
}

// expectEmbedder answers every call with one small vector per input.
func (h *harness) expectEmbedder() {
	h.caps.embedder.EXPECT().Embed(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{1, float32(i), 0.5}
			}
			return out, nil
		}).Maybe()
}

func (h *harness) expectSummarizer() {
	h.caps.summarizer.EXPECT().Summarize(mock.Anything, mock.Anything).
		Return(&port.Summary{Content: "# Notes\n\nDecisions were made.", Summary: "Short summary."}, nil).Maybe()
}

func (h *harness) expectTranscript(text string) {
	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		Return(&port.Transcription{Text: text, Language: "en", Confidence: 0.9, Provider: "openai"}, nil)
}

func statusRank(s domain.ContentStatus) int {
	order := []domain.ContentStatus{
		domain.StatusUploading, domain.StatusUploaded, domain.StatusTranscribing,
		domain.StatusDocGenerating, domain.StatusEmbedding, domain.StatusCompleted,
	}
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return len(order)
}

func jobTypes(jobs []*domain.Job, chain domain.Chain) []domain.JobType {
	var out []domain.JobType
	for _, j := range jobs {
		if j.Chain == chain {
			out = append(out, j.Type)
		}
	}
	return out
}
