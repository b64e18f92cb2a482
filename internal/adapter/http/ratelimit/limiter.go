package ratelimit

import (
	"sync"
	"time"
)

type record struct {
	count        int
	windowStart  time.Time
	blockedUntil time.Time
}

// Limiter admits at most max requests per key within a window. A key that
// goes over is blocked for blockDuration.
type Limiter struct {
	mu             sync.Mutex
	records        map[string]*record
	max            int
	windowDuration time.Duration
	blockDuration  time.Duration
	now            func() time.Time
	stop           chan struct{}
	stopOnce       sync.Once
}

func New(max int, windowDuration, blockDuration time.Duration) *Limiter {
	l := &Limiter{
		records:        make(map[string]*record),
		max:            max,
		windowDuration: windowDuration,
		blockDuration:  blockDuration,
		now:            time.Now,
		stop:           make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow records a request for key. When the request is refused it returns
// how long the caller should wait.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l.max <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.records[key]
	if !ok {
		rec = &record{windowStart: now}
		l.records[key] = rec
	}

	if now.Before(rec.blockedUntil) {
		return false, rec.blockedUntil.Sub(now)
	}

	if now.Sub(rec.windowStart) > l.windowDuration {
		rec.count = 0
		rec.windowStart = now
	}

	rec.count++
	if rec.count > l.max {
		rec.blockedUntil = now.Add(l.blockDuration)
		return false, l.blockDuration
	}

	return true, 0
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, key)
}

// Close stops the background cleanup.
func (l *Limiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *Limiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, rec := range l.records {
		if now.Sub(rec.windowStart) > l.windowDuration*2 && now.After(rec.blockedUntil) {
			delete(l.records, key)
		}
	}
}
