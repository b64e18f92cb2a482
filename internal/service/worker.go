package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
	"github.com/google/uuid"
)

type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	Lease        time.Duration
	JobTimeout   time.Duration
	Retry        domain.RetryPolicy
	// InstanceID prefixes worker IDs so leases can be traced to a process.
	InstanceID string
}

func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:      2,
		PollInterval: 2 * time.Second,
		Lease:        5 * time.Minute,
		JobTimeout:   30 * time.Minute,
		Retry:        domain.DefaultRetryPolicy(),
	}
}

type WorkerPool struct {
	queue    port.JobQueue
	pipeline port.PipelineStore
	contents port.ContentStore
	handlers map[domain.JobType]StageHandler
	notifier port.Notifier
	events   EventPublisher
	cfg      WorkerConfig
	types    []domain.JobType
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool(
	queue port.JobQueue,
	pipeline port.PipelineStore,
	contents port.ContentStore,
	handlers map[domain.JobType]StageHandler,
	notifier port.Notifier,
	events EventPublisher,
	cfg WorkerConfig,
) *WorkerPool {
	def := DefaultWorkerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = def.Lease
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = host + "-" + uuid.NewString()[:8]
	}

	types := make([]domain.JobType, 0, len(handlers))
	for t := range handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return &WorkerPool{
		queue:    queue,
		pipeline: pipeline,
		contents: contents,
		handlers: handlers,
		notifier: notifier,
		events:   events,
		cfg:      cfg,
		types:    types,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	// Jobs left behind by a crashed process become claimable again.
	if n, err := wp.queue.ResetStalled(ctx); err != nil {
		logger.Error.Printf("failed to reset stalled jobs: %v", err)
	} else if n > 0 {
		logger.Warn.Printf("reset %d stalled jobs", n)
	}

	ctx, wp.cancel = context.WithCancel(ctx)
	for i := range wp.cfg.Workers {
		wp.wg.Add(1)
		go func() {
			defer wp.wg.Done()
			wp.runWorker(ctx, fmt.Sprintf("%s-%d", wp.cfg.InstanceID, i))
		}()
	}
	logger.Info.Printf("started %d workers (instance=%s)", wp.cfg.Workers, wp.cfg.InstanceID)
}

// Shutdown stops claiming, lets in-flight jobs release their leases and
// waits up to timeout. It reports whether every worker exited.
func (wp *WorkerPool) Shutdown(timeout time.Duration) bool {
	if wp.cancel == nil {
		return true
	}
	logger.Info.Printf("shutdown requested, stopping workers")
	wp.cancel()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info.Printf("all workers exited cleanly")
		return true
	case <-time.After(timeout):
		logger.Error.Printf("shutdown timed out after %v, some workers may still be running", timeout)
		return false
	}
}

func (wp *WorkerPool) runWorker(ctx context.Context, workerID string) {
	var wake <-chan struct{}
	if wp.notifier != nil {
		wake = wp.notifier.Wake()
	}

	for {
		if ctx.Err() != nil {
			logger.Info.Printf("worker %s shutting down", workerID)
			return
		}

		processed, err := wp.RunOnce(ctx, workerID)
		if err != nil {
			logger.Error.Printf("worker %s: %v", workerID, err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
		case <-wake:
		case <-time.After(wp.cfg.PollInterval):
		}
	}
}

// RunOnce claims and processes at most one job. It reports whether a job
// was claimed.
func (wp *WorkerPool) RunOnce(ctx context.Context, workerID string) (bool, error) {
	job, err := wp.queue.Claim(ctx, port.ClaimParams{
		WorkerID: workerID,
		Types:    wp.types,
		Lease:    wp.cfg.Lease,
	})
	if errors.Is(err, domain.ErrNoJob) {
		return false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("claim job: %w", err)
	}

	logger.Info.Printf("worker %s: processing job %d (type=%s, content=%s, attempt=%d)",
		workerID, job.ID, job.Type, job.ContentID, job.Attempt)
	wp.process(ctx, workerID, job)
	return true, nil
}

func (wp *WorkerPool) process(ctx context.Context, workerID string, job *domain.Job) {
	// Bookkeeping must reach the store even when shutdown cancels ctx.
	storeCtx := context.WithoutCancel(ctx)

	if wp.cfg.Retry.Exhausted(job.Attempt) {
		wp.fail(storeCtx, workerID, job, nil, domain.Permanent(job.Type,
			fmt.Errorf("gave up after %d attempts, the last run lost its lease", job.Attempt)))
		return
	}

	task, skip, err := wp.prepare(storeCtx, job)
	if err != nil {
		var payload domain.Payload
		if task != nil {
			payload = task.Payload
		}
		wp.fail(storeCtx, workerID, job, payload, err)
		return
	}
	if skip != "" {
		wp.skip(storeCtx, workerID, job, skip)
		return
	}

	start := wp.now()
	outcome, err := wp.execute(ctx, workerID, task)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrLeaseLost):
		logger.Warn.Printf("job %d: lease lost while running, abandoning result", job.ID)
		return
	case ctx.Err() != nil:
		if rerr := wp.queue.Release(storeCtx, job.ID, workerID); rerr != nil {
			logger.Error.Printf("job %d: release on shutdown: %v", job.ID, rerr)
		} else {
			logger.Info.Printf("job %d released on shutdown", job.ID)
		}
		return
	default:
		wp.fail(storeCtx, workerID, job, task.Payload, err)
		return
	}

	if err := wp.advance(storeCtx, workerID, task, outcome); err != nil {
		if errors.Is(err, domain.ErrLeaseLost) {
			logger.Warn.Printf("job %d: lease lost before completion", job.ID)
			return
		}
		wp.fail(storeCtx, workerID, job, task.Payload, err)
		return
	}
	logger.Info.Printf("job %d completed in %v", job.ID, wp.now().Sub(start).Round(time.Millisecond))
}

// prepare decodes the payload and loads the record. A non-empty skip
// reason means the job must complete without running its handler.
func (wp *WorkerPool) prepare(ctx context.Context, job *domain.Job) (*Task, string, error) {
	if _, ok := wp.handlers[job.Type]; !ok {
		return nil, "", domain.Permanent(job.Type, fmt.Errorf("no handler for job type %q", job.Type))
	}
	payload, err := domain.DecodePayload(job.Type, job.Payload)
	if err != nil {
		return nil, "", domain.Permanent(job.Type, err)
	}
	task := &Task{Job: job, Payload: payload}
	if job.ContentID == "" {
		return task, "", nil
	}

	content, err := wp.contents.Get(ctx, job.ContentID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, "record no longer exists", nil
	}
	if err != nil {
		return task, "", fmt.Errorf("load content %s: %w", job.ContentID, err)
	}
	if content.OrgID != job.OrgID {
		return nil, "", domain.Permanent(job.Type, fmt.Errorf("job org %s does not own content %s", job.OrgID, content.ID))
	}
	if content.IsDeleted() {
		return nil, "record is deleted", nil
	}
	switch job.Chain {
	case domain.ChainMain:
		if content.IsTerminal() {
			return nil, "record is " + string(content.Status), nil
		}
	case domain.ChainFrames:
		if content.Status == domain.StatusError {
			return nil, "record is " + string(content.Status), nil
		}
	}
	task.Content = content
	return task, "", nil
}

// execute runs the handler under the job timeout while a heartbeat keeps
// the lease alive. Panics become permanent failures.
func (wp *WorkerPool) execute(ctx context.Context, workerID string, task *Task) (outcome Outcome, err error) {
	job := task.Job
	jobCtx, cancelTimeout := context.WithTimeout(ctx, wp.cfg.JobTimeout)
	defer cancelTimeout()
	jobCtx, cancel := context.WithCancelCause(jobCtx)
	defer cancel(nil)

	hbDone := make(chan struct{})
	go func() {
		defer close(hbDone)
		wp.heartbeat(jobCtx, cancel, job, workerID)
	}()
	defer func() {
		cancel(nil)
		<-hbDone
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error.Printf("job %d: handler panic: %v\n%s", job.ID, r, debug.Stack())
			err = domain.Permanent(job.Type, fmt.Errorf("handler panic: %v", r))
		}
	}()

	outcome, err = wp.handlers[job.Type].Handle(jobCtx, task)
	if err == nil {
		return outcome, nil
	}
	if cause := context.Cause(jobCtx); errors.Is(cause, domain.ErrLeaseLost) {
		return Outcome{}, cause
	}
	if ctx.Err() == nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) {
		return Outcome{}, domain.Transient(job.Type, fmt.Errorf("job timed out after %s: %w", wp.cfg.JobTimeout, err))
	}
	return Outcome{}, err
}

func (wp *WorkerPool) heartbeat(ctx context.Context, cancel context.CancelCauseFunc, job *domain.Job, workerID string) {
	interval := max(wp.cfg.Lease/3, 10*time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := wp.queue.Heartbeat(context.WithoutCancel(ctx), job.ID, workerID, wp.cfg.Lease)
			if errors.Is(err, domain.ErrLeaseLost) {
				cancel(domain.ErrLeaseLost)
				return
			}
			if err != nil {
				logger.Warn.Printf("job %d: heartbeat failed: %v", job.ID, err)
			}
		}
	}
}

// advance completes the job and enqueues the next stage of its plan. On
// the main chain the record moves to the next stage's status, or to
// completed after the last stage.
func (wp *WorkerPool) advance(ctx context.Context, workerID string, task *Task, outcome Outcome) error {
	job := task.Job
	params := port.AdvanceParams{
		JobID:     job.ID,
		WorkerID:  workerID,
		ContentID: job.ContentID,
	}

	if task.Content != nil {
		plan, err := domain.PlanForJob(job, task.Content)
		if err != nil {
			return domain.Permanent(job.Type, err)
		}
		if !plan.Contains(job.Type) {
			return domain.Permanent(job.Type, fmt.Errorf("%s is not a stage of the %s/%s plan",
				job.Type, task.Content.ContentType, task.Content.FileType))
		}

		next, hasNext := plan.Next(job.Type)
		if hasNext {
			payload, err := domain.NewPayload(next.Job, task.Target(), outcome.Source)
			if err != nil {
				return domain.Permanent(job.Type, err)
			}
			nj := domain.NewJobFor(payload)
			params.Next = &nj
		}
		if plan.Chain == domain.ChainMain {
			status := domain.StatusCompleted
			if hasNext {
				status = next.Status
			}
			if err := domain.ValidateTransition(task.Content.Status, status); err != nil {
				return domain.Permanent(job.Type, err)
			}
			params.Status = status
		}
	}

	nextJob, err := wp.pipeline.Advance(ctx, params)
	if err != nil {
		return fmt.Errorf("advance job %d: %w", job.ID, err)
	}

	if params.Status != "" {
		wp.publish(Event{Type: EventStatus, ContentID: job.ContentID, Status: string(params.Status), Stage: string(job.Type)})
	}
	if nextJob != nil {
		wp.publish(Event{Type: EventStage, ContentID: job.ContentID, Stage: string(nextJob.Type)})
		wp.notify(ctx)
	}
	return nil
}

func (wp *WorkerPool) skip(ctx context.Context, workerID string, job *domain.Job, reason string) {
	if _, err := wp.pipeline.Advance(ctx, port.AdvanceParams{JobID: job.ID, WorkerID: workerID}); err != nil {
		logger.Error.Printf("job %d: complete skipped job: %v", job.ID, err)
		return
	}
	logger.Info.Printf("job %d skipped: %s", job.ID, reason)
}

// fail applies the retry policy. Retries keep the record status; a
// terminal failure of a main-chain job moves the record to error.
func (wp *WorkerPool) fail(ctx context.Context, workerID string, job *domain.Job, payload domain.Payload, err error) {
	msg := err.Error()
	logger.Error.Printf("job %d failed (type=%s, content=%s, attempt=%d): %s",
		job.ID, job.Type, job.ContentID, job.Attempt, logger.SanitizeForLog(msg))

	if retry, delay := wp.cfg.Retry.Decide(job.Attempt, err); retry && payload != nil {
		nj := domain.NewJobFor(payload)
		nj.Attempt = job.Attempt + 1
		nj.RunAt = wp.now().Add(delay)
		next, rerr := wp.pipeline.RetryJob(ctx, port.RetryParams{
			JobID:        job.ID,
			WorkerID:     workerID,
			ErrorMessage: msg,
			Next:         nj,
		})
		if rerr == nil {
			logger.Info.Printf("job %d: retry %d/%d scheduled as job %d in %v",
				job.ID, nj.Attempt, wp.cfg.Retry.MaxRetries, next.ID, delay.Round(time.Millisecond))
			wp.publish(Event{Type: EventStage, ContentID: job.ContentID, Stage: string(job.Type), Message: "retry scheduled"})
			return
		}
		if errors.Is(rerr, domain.ErrLeaseLost) {
			logger.Warn.Printf("job %d: lease lost before retry", job.ID)
			return
		}
		logger.Error.Printf("job %d: schedule retry: %v", job.ID, rerr)
	}

	markContent := job.Chain == domain.ChainMain && job.ContentID != ""
	if ferr := wp.pipeline.FailPipeline(ctx, port.FailParams{
		JobID:        job.ID,
		WorkerID:     workerID,
		ContentID:    job.ContentID,
		ErrorMessage: msg,
		MarkContent:  markContent,
	}); ferr != nil {
		logger.Error.Printf("job %d: record failure: %v", job.ID, ferr)
		return
	}
	if markContent {
		wp.publish(Event{Type: EventFailed, ContentID: job.ContentID, Status: string(domain.StatusError), Stage: string(job.Type), Message: msg})
	}
}

func (wp *WorkerPool) publish(e Event) {
	if wp.events != nil && e.ContentID != "" {
		wp.events.Publish(e)
	}
}

func (wp *WorkerPool) notify(ctx context.Context) {
	if wp.notifier == nil {
		return
	}
	if err := wp.notifier.Notify(ctx); err != nil {
		logger.Warn.Printf("notify workers: %v", err)
	}
}
