// Package ratelimit spaces outbound API requests and absorbs server backoff directives.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/match-crawler/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum spacing between two grants.
	MinInterval time.Duration
	// WindowRequests and Window describe an additional long-window budget,
	// e.g. 100 requests per 2 minutes. Zero disables it.
	WindowRequests int
	Window         time.Duration
}

// Sleeper blocks for d or until ctx ends.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper overrides how the limiter waits.
func WithSleeper(s Sleeper) Option {
	return func(l *Limiter) { l.sleep = s }
}

// Limiter grants requests one at a time, in arrival order, at least MinInterval apart.
type Limiter struct {
	// gate holds a single token. Blocked receivers on a channel are woken
	// in FIFO order, so grants follow acquisition order.
	gate chan struct{}

	mu           sync.Mutex
	last         time.Time
	backoffUntil time.Time

	interval time.Duration
	budget   *rate.Limiter
	now      func() time.Time
	sleep    Sleeper
}

// New creates a new Limiter.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		gate:     make(chan struct{}, 1),
		interval: cfg.MinInterval,
		now:      time.Now,
		sleep:    Sleep,
	}
	if cfg.WindowRequests > 0 && cfg.Window > 0 {
		every := cfg.Window / time.Duration(cfg.WindowRequests)
		l.budget = rate.NewLimiter(rate.Every(every), cfg.WindowRequests)
	}
	for _, opt := range opts {
		opt(l)
	}
	l.gate <- struct{}{}
	return l
}

// Acquire blocks until the next grant is allowed and returns the grant time.
func (l *Limiter) Acquire(ctx context.Context) (time.Time, error) {
	select {
	case <-ctx.Done():
		return time.Time{}, fmt.Errorf("rate limit wait: %w", ctx.Err())
	case <-l.gate:
	}
	defer func() { l.gate <- struct{}{} }()

	start := l.now()
	for {
		wait := l.nextGrant().Sub(l.now())
		if wait <= 0 {
			break
		}
		// Re-check after every sleep: a backoff may arrive while we wait.
		if err := l.sleep(ctx, wait); err != nil {
			return time.Time{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if l.budget != nil {
		if err := l.budget.Wait(ctx); err != nil {
			return time.Time{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	granted := l.now()
	l.mu.Lock()
	l.last = granted
	l.mu.Unlock()

	if waited := granted.Sub(start); waited > time.Millisecond {
		metrics.ObserveRateLimitWait(waited)
	}
	return granted, nil
}

// OnBackoff forces the next grant to wait at least seconds+1 from now.
func (l *Limiter) OnBackoff(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	until := l.now().Add(time.Duration(seconds+1) * time.Second)
	l.mu.Lock()
	if until.After(l.backoffUntil) {
		l.backoffUntil = until
	}
	l.mu.Unlock()
}

func (l *Limiter) nextGrant() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := time.Time{}
	if !l.last.IsZero() {
		next = l.last.Add(l.interval)
	}
	if l.backoffUntil.After(next) {
		next = l.backoffUntil
	}
	return next
}

// Sleep waits for d using a timer, returning early if ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
