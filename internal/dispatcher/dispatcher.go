// Package dispatcher rotates crawl passes across regions for continuous mode.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/worker"
)

// Runner executes one crawl pass. *worker.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req worker.RunRequest) (crawler.CrawlStats, error)
	Stop()
}

// Config controls the rotation.
type Config struct {
	Regions     []string
	PlayerLimit int
	Cooldown    time.Duration
}

// Rotator runs passes one after another, cycling through the configured regions.
type Rotator struct {
	runner Runner
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

// New creates a Rotator.
func New(runner Runner, cfg Config, logger *zap.Logger) *Rotator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		runner: runner,
		cfg:    cfg,
		logger: logger.Named("rotator"),
		done:   make(chan struct{}),
	}
}

// Run blocks until ctx is done, Stop is called or a pass fails to start. It returns the
// number of completed rotations.
func (r *Rotator) Run(ctx context.Context) (int, error) {
	if len(r.cfg.Regions) == 0 {
		return 0, errors.New("rotator: no regions configured")
	}
	rotations := 0
	for i := 0; ; i = (i + 1) % len(r.cfg.Regions) {
		if r.halted(ctx) {
			return rotations, nil
		}
		region := r.cfg.Regions[i]
		stats, err := r.runner.Run(ctx, worker.RunRequest{Region: region, PlayerLimit: r.cfg.PlayerLimit})
		if err != nil {
			return rotations, fmt.Errorf("rotation %d (%s): %w", rotations+1, region, err)
		}
		rotations++
		r.logger.Info("rotation complete",
			zap.Int("rotation", rotations),
			zap.String("region", region),
			zap.Int("matches_stored", stats.MatchesStored),
			zap.Int("players_crawled", stats.PlayersCrawled),
		)

		if r.halted(ctx) {
			return rotations, nil
		}
		timer := time.NewTimer(r.cfg.Cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return rotations, nil
		case <-r.done:
			timer.Stop()
			return rotations, nil
		case <-timer.C:
		}
	}
}

// Stop ends the rotation and the active pass. It is safe to call more than once.
func (r *Rotator) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		close(r.done)
	}
	r.mu.Unlock()
	r.runner.Stop()
}

func (r *Rotator) halted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}
