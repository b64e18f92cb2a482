package service

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"github.com/bnema/tribora/internal/validation"
	"golang.org/x/crypto/blake2b"
)

type UploadRequest struct {
	OrgID       string
	UserID      string
	Filename    string
	Size        int64
	Body        io.Reader
	Title       string
	Description string
	Metadata    map[string]string
	// ContentType overrides detection from the extension, e.g. for
	// in-app recordings.
	ContentType domain.ContentType
}

type TextNoteRequest struct {
	OrgID    string
	UserID   string
	Title    string
	Content  string
	Markdown bool
	Metadata map[string]string
}

type ContentService struct {
	contents port.ContentStore
	pipeline port.PipelineStore
	queue    port.JobQueue
	blobs    port.BlobStorage
	notifier port.Notifier
	events   EventPublisher
	limits   domain.Limits
}

func NewContentService(
	contents port.ContentStore,
	pipeline port.PipelineStore,
	queue port.JobQueue,
	blobs port.BlobStorage,
	notifier port.Notifier,
	events EventPublisher,
	limits domain.Limits,
) *ContentService {
	return &ContentService{
		contents: contents,
		pipeline: pipeline,
		queue:    queue,
		blobs:    blobs,
		notifier: notifier,
		events:   events,
		limits:   limits,
	}
}

// Upload validates and stores an asset, then starts its pipeline. Nothing
// is persisted when validation fails; a failure after the record is
// created removes the record and any stored bytes.
func (s *ContentService) Upload(ctx context.Context, req UploadRequest) (*domain.Content, error) {
	if req.OrgID == "" || req.UserID == "" {
		return nil, fmt.Errorf("%w: org and user are required", domain.ErrValidation)
	}
	if req.Body == nil {
		return nil, fmt.Errorf("%w: missing body", domain.ErrValidation)
	}

	filename := validation.SanitizeFilename(req.Filename)
	fileType := domain.FileTypeOf(filename)
	contentType := req.ContentType
	if contentType == "" {
		ct, err := domain.DetectContentType(filename)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, filename)
		}
		contentType = ct
	}
	if err := s.limits.ValidateUpload(contentType, fileType, req.Size); err != nil {
		return nil, err
	}

	body := bufio.NewReaderSize(req.Body, validation.SniffLength)
	head, err := body.Peek(validation.SniffLength)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := validation.CheckMagicBytes(fileType, head); err != nil {
		return nil, err
	}

	c := domain.NewContent(req.OrgID, req.UserID, contentType, fileType, filename, req.Size, req.Metadata)
	c.Title = req.Title
	if c.Title == "" {
		c.Title = strings.TrimSuffix(filename, filepath.Ext(filename))
	}
	c.Description = req.Description

	if err := s.contents.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	rawPath := domain.RawObjectPath(c.OrgID, c.ID, fileType)
	if err := s.store(ctx, c, rawPath, body); err != nil {
		s.discard(ctx, c, err)
		return nil, err
	}

	logger.Info.Printf("content uploaded: id=%s, org=%s, type=%s, filename=%s, size=%s",
		c.ID, c.OrgID, c.ContentType, logger.SanitizeForLog(filename), domain.FormatSize(c.FileSize))
	return s.contents.Get(ctx, c.ID)
}

// store writes the bytes, records path and checksum and starts the pipeline.
func (s *ContentService) store(ctx context.Context, c *domain.Content, rawPath string, body io.Reader) error {
	h, err := blake2b.New256(nil)
	if err != nil {
		return fmt.Errorf("init checksum: %w", err)
	}
	contentType := mime.TypeByExtension("." + c.FileType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.blobs.Upload(ctx, rawPath, io.TeeReader(body, h), c.FileSize, contentType); err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if err := s.contents.AttachStoragePath(ctx, c.ID, domain.StorageRaw, rawPath); err != nil {
		return fmt.Errorf("attach raw path: %w", err)
	}
	if err := s.contents.SetChecksum(ctx, c.ID, hex.EncodeToString(h.Sum(nil))); err != nil {
		return fmt.Errorf("set checksum: %w", err)
	}
	if err := domain.ValidateTransition(c.Status, domain.StatusUploaded); err != nil {
		return err
	}
	if err := s.contents.UpdateStatus(ctx, c.ID, domain.StatusUploaded, ""); err != nil {
		return fmt.Errorf("mark uploaded: %w", err)
	}
	c.Status = domain.StatusUploaded
	s.publish(Event{Type: EventStatus, ContentID: c.ID, Status: string(domain.StatusUploaded)})

	return s.start(ctx, c, rawPath)
}

// start moves an uploaded record into its first stage and enqueues the
// first job of each chain in one transaction.
func (s *ContentService) start(ctx context.Context, c *domain.Content, rawPath string) error {
	plan, err := domain.PlanFor(c.ContentType, c.FileType)
	if err != nil {
		return err
	}
	first, ok := plan.First()
	if !ok {
		return fmt.Errorf("%w: empty plan for %s/%s", domain.ErrUnsupportedFormat, c.ContentType, c.FileType)
	}
	if err := domain.ValidateTransition(c.Status, first.Status); err != nil {
		return err
	}

	target := domain.Target{ContentID: c.ID, OrgID: c.OrgID}
	payload, err := domain.NewPayload(first.Job, target, rawPath)
	if err != nil {
		return err
	}
	jobs := []domain.NewJob{domain.NewJobFor(payload)}
	if domain.HasFrames(c.ContentType) {
		frames, err := domain.NewPayload(domain.JobTypeExtractFrames, target, rawPath)
		if err != nil {
			return err
		}
		jobs = append(jobs, domain.NewJobFor(frames))
	}

	if _, err := s.pipeline.StartPipeline(ctx, port.StartParams{
		ContentID: c.ID,
		Status:    first.Status,
		Jobs:      jobs,
	}); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	s.publish(Event{Type: EventStatus, ContentID: c.ID, Status: string(first.Status), Stage: string(first.Job)})
	s.notify(ctx)
	return nil
}

// discard is the compensating cleanup of a failed upload.
func (s *ContentService) discard(ctx context.Context, c *domain.Content, cause error) {
	ctx = context.WithoutCancel(ctx)
	logger.Error.Printf("upload of content %s failed, cleaning up: %v", c.ID, cause)
	if err := s.blobs.RemovePrefix(ctx, domain.ContentPrefix(c.OrgID, c.ID)); err != nil {
		logger.Error.Printf("cleanup blobs of content %s: %v", c.ID, err)
	}
	if err := s.contents.Delete(ctx, c.ID); err != nil {
		logger.Error.Printf("cleanup record of content %s: %v", c.ID, err)
	}
}

// CreateTextNote stores directly authored text and runs it through the
// text pipeline.
func (s *ContentService) CreateTextNote(ctx context.Context, req TextNoteRequest) (*domain.Content, error) {
	ext := ".txt"
	if req.Markdown {
		ext = ".md"
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Note " + time.Now().UTC().Format("2006-01-02 15:04")
	}
	return s.Upload(ctx, UploadRequest{
		OrgID:       req.OrgID,
		UserID:      req.UserID,
		Filename:    title + ext,
		Size:        int64(len(req.Content)),
		Body:        strings.NewReader(req.Content),
		Title:       title,
		Metadata:    req.Metadata,
		ContentType: domain.ContentTypeText,
	})
}

// Get returns a record of the organization. Records of other organizations
// are reported as not found.
func (s *ContentService) Get(ctx context.Context, orgID, id string) (*domain.Content, error) {
	c, err := s.contents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OrgID != orgID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (s *ContentService) List(ctx context.Context, filter port.ContentFilter) ([]*domain.Content, int, error) {
	if filter.OrgID == "" {
		return nil, 0, fmt.Errorf("%w: org is required", domain.ErrValidation)
	}
	return s.contents.List(ctx, filter)
}

func (s *ContentService) SoftDelete(ctx context.Context, orgID, id, userID, reason string) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.contents.SoftDelete(ctx, id, userID, reason); err != nil {
		return err
	}
	logger.Info.Printf("content %s deleted by %s", id, userID)
	s.publish(Event{Type: EventStatus, ContentID: id, Message: "deleted"})
	return nil
}

// Restore undeletes a record and re-enqueues any stage that was dropped
// while it was deleted, so processing picks up where it stopped.
func (s *ContentService) Restore(ctx context.Context, orgID, id string) error {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return err
	}
	if err := s.contents.Restore(ctx, id); err != nil {
		return err
	}
	s.publish(Event{Type: EventStatus, ContentID: id, Message: "restored"})
	return s.resume(ctx, id)
}

func (s *ContentService) resume(ctx context.Context, id string) error {
	c, err := s.contents.Get(ctx, id)
	if err != nil {
		return err
	}
	jobs, err := s.queue.ListByContent(ctx, id)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	stalled := domain.StalledStages(c, jobs)
	if len(stalled) == 0 {
		return nil
	}

	next := make([]domain.NewJob, 0, len(stalled))
	for _, j := range stalled {
		payload, err := domain.DecodePayload(j.Type, j.Payload)
		if err != nil {
			return err
		}
		next = append(next, domain.NewJobFor(payload))
	}
	if _, err := s.pipeline.StartPipeline(ctx, port.StartParams{
		ContentID: c.ID,
		Status:    c.Status,
		Jobs:      next,
	}); err != nil {
		return fmt.Errorf("resume pipeline: %w", err)
	}
	for _, j := range stalled {
		logger.Info.Printf("content %s resumed at stage %s", c.ID, j.Type)
		s.publish(Event{Type: EventStage, ContentID: c.ID, Stage: string(j.Type)})
	}
	s.notify(ctx)
	return nil
}

// Purge removes the stored objects of a record, then the record with its
// jobs and artifacts.
func (s *ContentService) Purge(ctx context.Context, orgID, id string) error {
	c, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if err := s.blobs.RemovePrefix(ctx, domain.ContentPrefix(c.OrgID, c.ID)); err != nil {
		return fmt.Errorf("remove objects: %w", err)
	}
	if err := s.contents.Delete(ctx, c.ID); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	logger.Info.Printf("content %s purged", c.ID)
	return nil
}

// Retry restarts a failed record at the stage that failed last.
func (s *ContentService) Retry(ctx context.Context, orgID, id string) (*domain.Content, error) {
	c, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return nil, fmt.Errorf("%w: record is deleted", domain.ErrInvalidTransition)
	}
	jobs, err := s.queue.ListByContent(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	var failed *domain.Job
	for _, j := range jobs {
		if j.Chain == domain.ChainMain && j.Status == domain.JobStatusFailed {
			failed = j
		}
	}
	if failed == nil {
		return nil, fmt.Errorf("%w: no failed stage to retry", domain.ErrInvalidTransition)
	}

	plan, err := domain.PlanFor(c.ContentType, c.FileType)
	if err != nil {
		return nil, err
	}
	status, err := domain.RetryTransition(c.Status, plan, failed.Type)
	if err != nil {
		return nil, err
	}
	payload, err := domain.DecodePayload(failed.Type, failed.Payload)
	if err != nil {
		return nil, err
	}
	if _, err := s.pipeline.StartPipeline(ctx, port.StartParams{
		ContentID: c.ID,
		Status:    status,
		Jobs:      []domain.NewJob{domain.NewJobFor(payload)},
	}); err != nil {
		return nil, fmt.Errorf("restart pipeline: %w", err)
	}

	logger.Info.Printf("content %s retried at stage %s", c.ID, failed.Type)
	s.publish(Event{Type: EventStatus, ContentID: c.ID, Status: string(status), Stage: string(failed.Type)})
	s.notify(ctx)
	return s.contents.Get(ctx, c.ID)
}

func (s *ContentService) Jobs(ctx context.Context, orgID, id string) ([]*domain.Job, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	return s.queue.ListByContent(ctx, id)
}

// SignedURL returns a time-limited link to the original or processed asset.
func (s *ContentService) SignedURL(ctx context.Context, orgID, id string, kind domain.StorageKind, ttl time.Duration) (string, error) {
	c, err := s.Get(ctx, orgID, id)
	if err != nil {
		return "", err
	}
	p := c.StoragePathRaw
	if kind == domain.StorageProcessed {
		p = c.StoragePathProcessed
	}
	if p == "" {
		return "", fmt.Errorf("%w: no %s object", domain.ErrNotFound, kind)
	}
	return s.blobs.SignedURL(ctx, p, ttl)
}

func (s *ContentService) publish(e Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

func (s *ContentService) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx); err != nil {
		logger.Warn.Printf("notify workers: %v", err)
	}
}
