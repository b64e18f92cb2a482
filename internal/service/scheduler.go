package service

import (
	"context"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
	"github.com/bnema/tribora/internal/port"
)

type SchedulerConfig struct {
	MetricsInterval    time.Duration
	AlertsInterval     time.Duration
	StaleSweepInterval time.Duration
	Alerts             AlertThresholds
}

// Scheduler enqueues the periodic system jobs and sweeps expired leases.
// A zero interval disables the matching task.
type Scheduler struct {
	queue    port.JobQueue
	notifier port.Notifier
	cfg      SchedulerConfig
	now      func() time.Time
}

func NewScheduler(queue port.JobQueue, notifier port.Notifier, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{
		queue:    queue,
		notifier: notifier,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	metrics := tick(s.cfg.MetricsInterval)
	alerts := tick(s.cfg.AlertsInterval)
	sweep := tick(s.cfg.StaleSweepInterval)
	defer metrics.stop()
	defer alerts.stop()
	defer sweep.stop()

	logger.Info.Printf("scheduler started (metrics=%v, alerts=%v, sweep=%v)",
		s.cfg.MetricsInterval, s.cfg.AlertsInterval, s.cfg.StaleSweepInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-metrics.c:
			if _, err := s.EnqueueMetrics(ctx); err != nil {
				logger.Error.Printf("enqueue metrics job: %v", err)
			}
		case <-alerts.c:
			if _, err := s.EnqueueAlerts(ctx); err != nil {
				logger.Error.Printf("enqueue alerts job: %v", err)
			}
		case <-sweep.c:
			if _, err := s.Sweep(ctx); err != nil {
				logger.Error.Printf("reset stalled jobs: %v", err)
			}
		}
	}
}

func (s *Scheduler) EnqueueMetrics(ctx context.Context) (*domain.Job, error) {
	return s.enqueue(ctx, domain.MetricsPayload{TriggeredAt: s.now()})
}

func (s *Scheduler) EnqueueAlerts(ctx context.Context) (*domain.Job, error) {
	a := s.cfg.Alerts
	window := a.Window
	if window < time.Second {
		window = DefaultAlertThresholds().Window
	}
	return s.enqueue(ctx, domain.AlertsPayload{
		TriggeredAt:    s.now(),
		ErrorRateMax:   a.ErrorRateMax,
		FailedJobsMax:  a.FailedJobsMax,
		StalledJobsMax: a.StalledJobsMax,
		WindowSeconds:  int64(window / time.Second),
	})
}

// Sweep returns jobs whose lease expired to the queue.
func (s *Scheduler) Sweep(ctx context.Context) (int64, error) {
	n, err := s.queue.ResetStalled(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Warn.Printf("reset %d stalled jobs", n)
		s.notify(ctx)
	}
	return n, nil
}

func (s *Scheduler) enqueue(ctx context.Context, p domain.Payload) (*domain.Job, error) {
	job, err := s.queue.Enqueue(ctx, domain.NewJobFor(p))
	if err != nil {
		return nil, err
	}
	s.notify(ctx)
	return job, nil
}

func (s *Scheduler) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx); err != nil {
		logger.Warn.Printf("notify workers: %v", err)
	}
}

type ticker struct {
	t *time.Ticker
	c <-chan time.Time
}

func tick(d time.Duration) ticker {
	if d <= 0 {
		return ticker{}
	}
	t := time.NewTicker(d)
	return ticker{t: t, c: t.C}
}

func (t ticker) stop() {
	if t.t != nil {
		t.t.Stop()
	}
}
