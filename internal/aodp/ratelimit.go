package aodp

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/millelog/albion-market-tools/internal/config"
)

// RateLimiter enforces two sliding-window quotas: at most ShortRequests per
// ShortWindow and at most LongRequests per LongWindow. Callers Acquire before
// a request and Commit once it has been dispatched.
type RateLimiter struct {
	shortMax    int
	shortWindow time.Duration
	longMax     int
	longWindow  time.Duration

	mu    sync.Mutex
	short []time.Time
	long  []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter creates a limiter from the configured thresholds.
func NewRateLimiter(rl config.RateLimit) *RateLimiter {
	return &RateLimiter{
		shortMax:    rl.ShortRequests,
		shortWindow: rl.ShortWindow(),
		longMax:     rl.LongRequests,
		longWindow:  rl.LongWindow(),
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// Acquire blocks until both windows admit one more request. It returns the
// context error if ctx is cancelled while waiting; the request must then not be sent.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		wait := l.nextWait()
		if wait <= 0 {
			return nil
		}
		log.Printf("[AODP] Rate limit reached, waiting %s", wait.Round(time.Millisecond))
		if err := l.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Commit records a dispatched request in both windows.
func (l *RateLimiter) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.now()
	l.short = append(l.short, t)
	l.long = append(l.long, t)
}

// nextWait evicts expired timestamps and returns how long the caller must wait
// before the next request fits in both windows. Zero means admit now.
func (l *RateLimiter) nextWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.short = evictBefore(l.short, now.Add(-l.shortWindow))
	l.long = evictBefore(l.long, now.Add(-l.longWindow))

	wait := windowWait(l.short, l.shortMax, l.shortWindow, now)
	if w := windowWait(l.long, l.longMax, l.longWindow, now); w > wait {
		wait = w
	}
	return wait
}

// evictBefore drops timestamps at or before cutoff. q is ordered oldest first.
func evictBefore(q []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(q) && !q[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return q
	}
	return append(q[:0], q[i:]...)
}

// windowWait returns the time until the window drops below max entries.
// The entry that has to leave is the max-th newest one.
func windowWait(q []time.Time, max int, window time.Duration, now time.Time) time.Duration {
	if len(q) < max {
		return 0
	}
	oldest := q[len(q)-max]
	return oldest.Add(window).Sub(now)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
