package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bnema/tribora/internal/domain"
	"github.com/bnema/tribora/internal/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestScheduler_MetricsAndAlerts(t *testing.T) {
	h := newHarness(t, func(c *WorkerConfig) { c.Retry.MaxRetries = 0 })
	ctx := context.Background()

	h.caps.transcriber.EXPECT().Transcribe(mock.Anything, mock.Anything).
		Return(nil, domain.Permanent(domain.JobTypeTranscribe, errors.New("corrupt audio"))).Once()
	h.upload(t, "call.mp3", mp3Head)
	h.drain(t)

	notifier := NewLocalNotifier()
	sched := NewScheduler(h.queue, notifier, SchedulerConfig{
		Alerts: AlertThresholds{ErrorRateMax: 0.1, FailedJobsMax: 100, Window: time.Minute},
	})

	job, err := sched.EnqueueMetrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.JobTypeCollectMetrics, job.Type)
	assert.Equal(t, domain.ChainSystem, job.Chain)
	select {
	case <-notifier.Wake():
	default:
		t.Fatal("enqueue did not notify workers")
	}

	_, err = sched.EnqueueAlerts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.drain(t))

	m, err := h.store.LatestMetricsSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.StatusCounts[domain.StatusError])
	assert.InDelta(t, 1.0, m.ErrorRate, 1e-9)
	assert.Equal(t, int64(1), m.Jobs.Failed)

	alerts, err := h.store.ListAlerts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "error_rate", alerts[0].Kind)
	assert.Equal(t, domain.AlertCritical, alerts[0].Severity)
}

func TestScheduler_SystemJobsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sched := NewScheduler(h.queue, nil, SchedulerConfig{})

	_, err := sched.EnqueueMetrics(ctx)
	require.NoError(t, err)
	_, err = sched.EnqueueMetrics(ctx)
	require.NoError(t, err)

	stats, err := h.queue.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Pending)
}

func TestScheduler_AlertsWindowDefaultsWhenUnset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sched := NewScheduler(h.queue, nil, SchedulerConfig{})

	job, err := sched.EnqueueAlerts(ctx)
	require.NoError(t, err)

	p, err := domain.DecodePayload(job.Type, job.Payload)
	require.NoError(t, err)
	alerts := p.(domain.AlertsPayload)
	assert.Equal(t, int64(DefaultAlertThresholds().Window/time.Second), alerts.WindowSeconds)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	sched := NewScheduler(h.queue, nil, SchedulerConfig{MetricsInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		stats, err := h.queue.Stats(context.Background())
		return err == nil && stats.Pending > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestEvaluateAlerts(t *testing.T) {
	p := domain.AlertsPayload{ErrorRateMax: 0.2, FailedJobsMax: 5, StalledJobsMax: 0, WindowSeconds: 60}

	tests := []struct {
		name     string
		snapshot domain.MetricsSnapshot
		want     map[string]domain.AlertSeverity
	}{
		{"healthy", domain.MetricsSnapshot{ErrorRate: 0.1, Jobs: domain.JobStats{Failed: 2}}, map[string]domain.AlertSeverity{}},
		{"error rate warning", domain.MetricsSnapshot{ErrorRate: 0.3}, map[string]domain.AlertSeverity{"error_rate": domain.AlertWarning}},
		{"error rate critical", domain.MetricsSnapshot{ErrorRate: 0.5}, map[string]domain.AlertSeverity{"error_rate": domain.AlertCritical}},
		{"failed jobs", domain.MetricsSnapshot{Jobs: domain.JobStats{Failed: 6}}, map[string]domain.AlertSeverity{"failed_jobs": domain.AlertWarning}},
		{"stalled jobs", domain.MetricsSnapshot{Jobs: domain.JobStats{Stalled: 1}}, map[string]domain.AlertSeverity{"stalled_jobs": domain.AlertCritical}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]domain.AlertSeverity{}
			for _, a := range EvaluateAlerts(&tt.snapshot, p) {
				got[a.Kind] = a.Severity
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinOCRWords(t *testing.T) {
	words := []port.OCRWord{
		{Text: "Quarterly", Confidence: 96, Block: 1, Paragraph: 1, Line: 1},
		{Text: "results", Confidence: 90, Block: 1, Paragraph: 1, Line: 1},
		{Text: "#@!", Confidence: 20, Block: 1, Paragraph: 1, Line: 1},
		{Text: "Revenue", Confidence: 84, Block: 2, Paragraph: 1, Line: 1},
		{Text: " ", Confidence: 99, Block: 2, Paragraph: 1, Line: 1},
	}

	text, conf := JoinOCRWords(words, 60)
	assert.Equal(t, "Quarterly results\nRevenue", text)
	assert.InDelta(t, 0.9, conf, 1e-9)

	text, conf = JoinOCRWords(words, 99.5)
	assert.Empty(t, text)
	assert.Zero(t, conf)
}
