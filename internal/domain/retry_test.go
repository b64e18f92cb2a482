package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Decide(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second, MaxDelay: time.Minute}
	transient := Transient(JobTypeExtractAudio, errors.New("ffmpeg unavailable"))

	for attempt := 0; attempt < 3; attempt++ {
		retry, delay := policy.Decide(attempt, transient)
		assert.True(t, retry, "attempt %d should retry", attempt)
		assert.Greater(t, delay, time.Duration(0))
	}

	retry, _ := policy.Decide(3, transient)
	assert.False(t, retry, "fourth failure is terminal")

	retry, _ = policy.Decide(0, Permanent(JobTypeTranscribe, errors.New("unsupported codec")))
	assert.False(t, retry, "permanent errors never retry")
}

func TestRetryPolicy_Exhausted(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 2}
	assert.False(t, policy.Exhausted(0))
	assert.False(t, policy.Exhausted(2))
	assert.True(t, policy.Exhausted(3))
	assert.True(t, RetryPolicy{}.Exhausted(1))
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.Backoff(0))
	assert.Equal(t, 2*time.Second, policy.Backoff(1))
	assert.Equal(t, 4*time.Second, policy.Backoff(2))
	assert.Equal(t, 5*time.Second, policy.Backoff(3), "capped")
	assert.Equal(t, 5*time.Second, policy.Backoff(8), "capped")
}

func TestRetryPolicy_BackoffJitter(t *testing.T) {
	policy := RetryPolicy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: time.Minute, JitterPercent: 10}

	d := policy.Backoff(2)
	assert.GreaterOrEqual(t, d, 3600*time.Millisecond)
	assert.LessOrEqual(t, d, 4400*time.Millisecond)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient", Transient(JobTypeTranscribe, errors.New("503")), true},
		{"permanent", Permanent(JobTypeTranscribe, errors.New("bad input")), false},
		{"wrapped transient", fmt.Errorf("stage: %w", Transient(JobTypeTranscribe, errors.New("x"))), true},
		{"deadline", context.DeadlineExceeded, true},
		{"validation", fmt.Errorf("payload: %w", ErrValidation), false},
		{"unsupported", ErrUnsupportedFormat, false},
		{"not found", ErrNotFound, false},
		{"unclassified", errors.New("connection reset by peer"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("quota exceeded")
	err := Permanent(JobTypeDocGenerate, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "doc_generate (permanent): quota exceeded", err.Error())
}
