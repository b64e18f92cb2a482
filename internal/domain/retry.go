package domain

import (
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds automatic re-enqueueing of transient stage failures.
// MaxRetries counts re-enqueues, so a job runs at most MaxRetries+1 times.
type RetryPolicy struct {
	MaxRetries    int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	JitterPercent uint64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    5,
		BaseDelay:     5 * time.Second,
		MaxDelay:      5 * time.Minute,
		JitterPercent: 10,
	}
}

// Exhausted reports whether a claimed job already used up its runs. Only
// lease expiry pushes a job's attempt past MaxRetries, since a failed run
// that could not retry ends the job.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt > p.MaxRetries
}

// Decide reports whether a job that failed on the given attempt (0-based)
// should be retried, and after what delay.
func (p RetryPolicy) Decide(attempt int, err error) (bool, time.Duration) {
	if !IsRetryable(err) || attempt >= p.MaxRetries {
		return false, 0
	}
	return true, p.Backoff(attempt)
}

// Backoff returns the delay before retry number attempt+1.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	b := retry.NewExponential(base)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}

	var d time.Duration
	for i := 0; i <= attempt; i++ {
		next, stop := b.Next()
		if stop {
			break
		}
		d = next
	}
	return d
}
