package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_SpacingNeverBelowInterval(t *testing.T) {
	t.Parallel()

	clock := newFakeTime()
	l := New(Config{MinInterval: 1500 * time.Millisecond}, WithClock(clock.Now), WithSleeper(clock.Sleep))

	var grants []time.Time
	for i := 0; i < 5; i++ {
		g, err := l.Acquire(context.Background())
		require.NoError(t, err)
		grants = append(grants, g)
	}
	for i := 1; i < len(grants); i++ {
		require.GreaterOrEqual(t, grants[i].Sub(grants[i-1]), 1500*time.Millisecond)
	}
}

func TestLimiter_FirstGrantIsImmediate(t *testing.T) {
	t.Parallel()

	clock := newFakeTime()
	l := New(Config{MinInterval: time.Second}, WithClock(clock.Now), WithSleeper(clock.Sleep))

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.Empty(t, clock.Slept())
}

func TestLimiter_BackoffDelaysNextGrant(t *testing.T) {
	t.Parallel()

	clock := newFakeTime()
	l := New(Config{MinInterval: 1500 * time.Millisecond}, WithClock(clock.Now), WithSleeper(clock.Sleep))

	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	signalled := clock.Now()
	l.OnBackoff(5)

	g, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, g.Sub(signalled), 6*time.Second)

	// The override applies once; the following grant is back on the normal interval.
	next, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, next.Sub(g))
}

func TestLimiter_BackoffNeverShortensPendingBackoff(t *testing.T) {
	t.Parallel()

	clock := newFakeTime()
	l := New(Config{MinInterval: 0}, WithClock(clock.Now), WithSleeper(clock.Sleep))

	start := clock.Now()
	l.OnBackoff(30)
	l.OnBackoff(2)

	g, err := l.Acquire(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, g.Sub(start), 31*time.Second)
}

func TestLimiter_ConcurrentCallersAreSerialized(t *testing.T) {
	t.Parallel()

	l := New(Config{MinInterval: 20 * time.Millisecond})

	var (
		mu     sync.Mutex
		grants []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g, err := l.Acquire(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			grants = append(grants, g)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(grants, func(i, j int) bool { return grants[i].Before(grants[j]) })
	for i := 1; i < len(grants); i++ {
		require.GreaterOrEqual(t, grants[i].Sub(grants[i-1]), 20*time.Millisecond)
	}
}

func TestLimiter_CanceledContext(t *testing.T) {
	t.Parallel()

	l := New(Config{MinInterval: time.Hour})
	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.ErrorContains(t, err, "rate limit wait")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The gate is released after a canceled wait.
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	_, err = l.Acquire(ctx2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimiter_WindowBudget(t *testing.T) {
	t.Parallel()

	l := New(Config{WindowRequests: 2, Window: 200 * time.Millisecond})

	first, err := l.Acquire(context.Background())
	require.NoError(t, err)
	_, err = l.Acquire(context.Background())
	require.NoError(t, err)
	third, err := l.Acquire(context.Background())
	require.NoError(t, err)

	require.GreaterOrEqual(t, third.Sub(first), 80*time.Millisecond)
}

func TestSleep(t *testing.T) {
	t.Parallel()

	require.NoError(t, Sleep(context.Background(), 0))
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

// --- fakes ---

type fakeTime struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 12, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slept = append(f.slept, d)
	f.now = f.now.Add(d)
	return nil
}

func (f *fakeTime) Slept() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.slept...)
}
