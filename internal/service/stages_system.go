package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/infrastructure/logger"
)

func (s *Stages) snapshot(ctx context.Context) (*domain.MetricsSnapshot, error) {
	counts, err := s.contents.StatusCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	stats, err := s.queue.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	m := &domain.MetricsSnapshot{
		StatusCounts: counts,
		Jobs:         stats,
		CollectedAt:  s.now(),
	}
	if total > 0 {
		m.ErrorRate = float64(counts[domain.StatusError]) / float64(total)
	}
	return m, nil
}

func (s *Stages) collectMetrics(ctx context.Context, task *Task) (Outcome, error) {
	if _, err := payloadAs[domain.MetricsPayload](task); err != nil {
		return Outcome{}, err
	}
	m, err := s.snapshot(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.artifacts.SaveMetricsSnapshot(ctx, m); err != nil {
		return Outcome{}, fmt.Errorf("save metrics snapshot: %w", err)
	}
	logger.Debug.Printf("metrics: error_rate=%.3f pending=%d processing=%d failed=%d stalled=%d",
		m.ErrorRate, m.Jobs.Pending, m.Jobs.Processing, m.Jobs.Failed, m.Jobs.Stalled)
	return Outcome{}, nil
}

// generateAlerts compares the latest metrics against the thresholds of the
// payload. A snapshot older than the payload window is replaced by a fresh
// one.
func (s *Stages) generateAlerts(ctx context.Context, task *Task) (Outcome, error) {
	p, err := payloadAs[domain.AlertsPayload](task)
	if err != nil {
		return Outcome{}, err
	}

	m, err := s.artifacts.LatestMetricsSnapshot(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Outcome{}, fmt.Errorf("load metrics snapshot: %w", err)
	}
	window := s.cfg.Alerts.Window
	if p.WindowSeconds > 0 {
		window = time.Duration(p.WindowSeconds) * time.Second
	}
	if m == nil || s.now().Sub(m.CollectedAt) > window {
		if m, err = s.snapshot(ctx); err != nil {
			return Outcome{}, err
		}
	}

	for _, a := range EvaluateAlerts(m, p) {
		if err := s.artifacts.SaveAlert(ctx, a); err != nil {
			return Outcome{}, fmt.Errorf("save alert: %w", err)
		}
		logger.Warn.Printf("alert %s (%s): %s", a.Kind, a.Severity, a.Message)
	}
	return Outcome{}, nil
}

// EvaluateAlerts returns the alerts a snapshot raises. Zero thresholds in
// the payload disable the matching check, except StalledJobsMax where any
// stalled job above it alerts.
func EvaluateAlerts(m *domain.MetricsSnapshot, p domain.AlertsPayload) []*domain.Alert {
	var alerts []*domain.Alert

	if p.ErrorRateMax > 0 && m.ErrorRate > p.ErrorRateMax {
		sev := domain.AlertWarning
		if m.ErrorRate > 2*p.ErrorRateMax {
			sev = domain.AlertCritical
		}
		alerts = append(alerts, &domain.Alert{
			Kind:      "error_rate",
			Severity:  sev,
			Message:   fmt.Sprintf("%.1f%% of records are in error", m.ErrorRate*100),
			Value:     m.ErrorRate,
			Threshold: p.ErrorRateMax,
		})
	}
	if p.FailedJobsMax > 0 && m.Jobs.Failed > p.FailedJobsMax {
		alerts = append(alerts, &domain.Alert{
			Kind:      "failed_jobs",
			Severity:  domain.AlertWarning,
			Message:   fmt.Sprintf("%d failed jobs", m.Jobs.Failed),
			Value:     float64(m.Jobs.Failed),
			Threshold: float64(p.FailedJobsMax),
		})
	}
	if m.Jobs.Stalled > p.StalledJobsMax {
		alerts = append(alerts, &domain.Alert{
			Kind:      "stalled_jobs",
			Severity:  domain.AlertCritical,
			Message:   fmt.Sprintf("%d jobs hold an expired lease", m.Jobs.Stalled),
			Value:     float64(m.Jobs.Stalled),
			Threshold: float64(p.StalledJobsMax),
		})
	}
	return alerts
}
