// Package worker implements the crawl pipeline execution loop. An Orchestrator seeds a
// discovery queue from the ranked ladder, walks players through their recent matches
// and batches the accepted matches into storage.
package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/clock/system"
	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/id/uuid"
	"github.com/JakeFAU/match-crawler/internal/metrics"
	"github.com/JakeFAU/match-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/match-crawler/internal/queue/memory"
	"github.com/JakeFAU/match-crawler/internal/riot"
	"github.com/JakeFAU/match-crawler/internal/version"
)

// State transition errors.
var (
	ErrAlreadyRunning = errors.New("crawler is already running")
	ErrNotRunning     = errors.New("crawler is not running")
	ErrNotPaused      = errors.New("crawler is not paused")
)

// MatchSource is the subset of the Riot client the crawl loop needs.
type MatchSource interface {
	MatchIDs(ctx context.Context, puuid, region string, count int) ([]string, riot.Outcome)
	Match(ctx context.Context, matchID, region string) (riot.MatchResponse, riot.Outcome)
	TierEntries(ctx context.Context, region string, tier riot.Tier) (riot.LeagueList, riot.Outcome)
	SummonerPUUID(ctx context.Context, region, summonerID string) (string, riot.Outcome)
}

// RequestCounter exposes the gateway's request counters.
type RequestCounter interface {
	Stats() riot.RequestStats
	ResetStats()
}

// VersionOracle resolves the current release and admits matches played on it.
type VersionOracle interface {
	Resolve(ctx context.Context) string
	IsCurrent(raw string) bool
}

// Config controls Orchestrator behavior.
type Config struct {
	BatchSize           int
	MaxMatchesPerPlayer int
	Freshness           time.Duration
	MatchFetchDelay     time.Duration
	ProgressEvery       int
	SeedCap             int
	SeedTierCap         int
	SeedConcurrency     int
	RefillSize          int
	PersistOverflow     bool
	KeepRawPayload      bool
	FlushTimeout        time.Duration
	BloomCapacity       uint
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxMatchesPerPlayer <= 0 {
		c.MaxMatchesPerPlayer = 10
	}
	if c.Freshness < 0 {
		c.Freshness = 0
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = 10
	}
	if c.SeedCap <= 0 {
		c.SeedCap = 100
	}
	if c.SeedTierCap <= 0 {
		c.SeedTierCap = 50
	}
	if c.SeedConcurrency <= 0 {
		c.SeedConcurrency = 3
	}
	if c.RefillSize <= 0 {
		c.RefillSize = 100
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = 30 * time.Second
	}
	if c.BloomCapacity == 0 {
		c.BloomCapacity = 1_000_000
	}
	return c
}

// Sleeper pauses between sequential match fetches.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock used for run timestamps.
func WithClock(c crawler.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithIDGenerator overrides run ID generation.
func WithIDGenerator(g crawler.IDGenerator) Option {
	return func(o *Orchestrator) { o.ids = g }
}

// WithSleeper overrides the pause between match fetches.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// WithQueue supplies the discovery queue, for sharing or pre-seeding.
func WithQueue(q *memory.Queue) Option {
	return func(o *Orchestrator) { o.queue = q }
}

// RunRequest describes one single-region crawl pass. Zero limits mean unlimited.
type RunRequest struct {
	Region      string
	Seeds       []string
	MatchLimit  int
	PlayerLimit int
}

// Status is a point-in-time view of the orchestrator for the control API.
type Status struct {
	State      crawler.State      `json:"state"`
	QueueDepth int                `json:"queue_depth"`
	Run        crawler.CrawlStats `json:"run"`
}

// Orchestrator drives crawl passes. The discovery queue, the match seen-set and the
// stored-match bloom filter persist across Run calls; stats and the write buffer are
// per run. Run must not be called concurrently; the state methods may be called from
// any goroutine.
type Orchestrator struct {
	source   MatchSource
	requests RequestCounter
	oracle   VersionOracle
	store    crawler.MatchStore
	queue    *memory.Queue
	clock    crawler.Clock
	ids      crawler.IDGenerator
	sleep    Sleeper
	cfg      Config
	logger   *zap.Logger

	mu    sync.Mutex
	state crawler.State
	live  crawler.CrawlStats
	wake  chan struct{}
	// stopPending holds a Stop that arrived between passes for the next Run.
	stopPending bool

	// Owned by the Run goroutine.
	seenMatches map[string]struct{}
	stored      *bloom.BloomFilter
	storedPatch string
	overflow    map[string]crawler.QueueEntry
}

// New constructs an Orchestrator. requests may be nil when no gateway stats exist.
func New(
	source MatchSource,
	requests RequestCounter,
	oracle VersionOracle,
	store crawler.MatchStore,
	cfg Config,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		source:      source,
		requests:    requests,
		oracle:      oracle,
		store:       store,
		clock:       system.New(),
		ids:         uuid.New(),
		sleep:       ratelimit.Sleep,
		cfg:         cfg.withDefaults(),
		logger:      logger,
		state:       crawler.StateIdle,
		wake:        make(chan struct{}, 1),
		seenMatches: make(map[string]struct{}),
		overflow:    make(map[string]crawler.QueueEntry),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.queue == nil {
		o.queue = memory.NewQueue(memory.DefaultCapacity)
	}
	metrics.SetState(string(crawler.StateIdle))
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() crawler.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns the state, queue depth and the latest published run stats.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	run := o.live
	run.FilteredBy = maps.Clone(o.live.FilteredBy)
	return Status{State: o.state, QueueDepth: o.queue.Len(), Run: run}
}

// Pause suspends a running crawl at the top of its next iteration.
func (o *Orchestrator) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != crawler.StateRunning {
		return ErrNotRunning
	}
	o.transition(crawler.StatePaused)
	return nil
}

// Resume continues a paused crawl.
func (o *Orchestrator) Resume() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != crawler.StatePaused {
		return ErrNotPaused
	}
	o.transition(crawler.StateRunning)
	return nil
}

// Stop ends a running or paused crawl. The final flush still runs. Between passes
// the stop is held and ends the next Run before it seeds.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == crawler.StateRunning || o.state == crawler.StatePaused {
		o.transition(crawler.StateStopped)
		return
	}
	o.stopPending = true
}

// transition requires o.mu.
func (o *Orchestrator) transition(s crawler.State) {
	o.state = s
	metrics.SetState(string(s))
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// run is the per-pass mutable state.
type run struct {
	stats  crawler.CrawlStats
	buffer []crawler.MatchRecord
	logger *zap.Logger
}

// Run executes one crawl pass over req.Region. Per-entity failures become stats; the
// returned error is non-nil only when the pass cannot start.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (stats crawler.CrawlStats, err error) {
	if req.Region == "" {
		return crawler.CrawlStats{}, errors.New("run: region is required")
	}
	runID, err := o.ids.NewID()
	if err != nil {
		return crawler.CrawlStats{}, fmt.Errorf("run: %w", err)
	}

	o.mu.Lock()
	if o.state == crawler.StateRunning || o.state == crawler.StatePaused {
		o.mu.Unlock()
		return crawler.CrawlStats{}, ErrAlreadyRunning
	}
	stopped := o.stopPending
	o.stopPending = false
	if stopped {
		o.transition(crawler.StateStopped)
	} else {
		o.transition(crawler.StateRunning)
	}
	o.mu.Unlock()

	r := &run{
		stats: crawler.CrawlStats{
			RunID:      runID,
			Region:     req.Region,
			FilteredBy: make(map[crawler.FilterReason]int),
			StartTime:  o.clock.Now(),
		},
		buffer: make([]crawler.MatchRecord, 0, o.cfg.BatchSize),
		logger: o.logger.With(zap.String("run_id", runID), zap.String("region", req.Region)),
	}
	if o.requests != nil {
		o.requests.ResetStats()
	}
	o.publish(r)
	r.logger.Info("crawl started",
		zap.Int("match_limit", req.MatchLimit),
		zap.Int("player_limit", req.PlayerLimit),
		zap.Int("carried_over", o.queue.Len()),
	)

	defer func() {
		stats = o.finish(ctx, r)
	}()
	if stopped {
		r.logger.Info("stop requested before start")
		return r.stats, nil
	}

	current := o.oracle.Resolve(ctx)
	o.warmStored(ctx, r, current)
	o.seed(ctx, r, req)
	o.loop(ctx, r, req)
	return r.stats, nil
}

func (o *Orchestrator) loop(ctx context.Context, r *run, req RunRequest) {
	for {
		if !o.runnable(ctx, r) {
			return
		}
		if req.MatchLimit > 0 && r.stats.MatchesStored+len(r.buffer) >= req.MatchLimit {
			r.logger.Info("match limit reached", zap.Int("limit", req.MatchLimit))
			return
		}
		if req.PlayerLimit > 0 && r.stats.PlayersCrawled >= req.PlayerLimit {
			r.logger.Info("player limit reached", zap.Int("limit", req.PlayerLimit))
			return
		}
		entry, ok := o.next(ctx, r, req.Region)
		if !ok {
			r.logger.Info("discovery queue exhausted")
			return
		}
		o.crawlPlayer(ctx, r, entry)
	}
}

// runnable blocks while paused and reports whether the loop may take another entry.
func (o *Orchestrator) runnable(ctx context.Context, r *run) bool {
	paused := false
	for {
		if ctx.Err() != nil {
			return false
		}
		switch o.State() {
		case crawler.StateRunning:
			if paused {
				r.logger.Info("crawler resumed")
			}
			return true
		case crawler.StatePaused:
			if !paused {
				paused = true
				o.flush(ctx, r)
				o.publish(r)
				r.logger.Info("crawler paused")
			}
			select {
			case <-o.wake:
			case <-ctx.Done():
				return false
			}
		default:
			return false
		}
	}
}

// next dequeues the next entry, refilling from the persisted queue when empty.
func (o *Orchestrator) next(ctx context.Context, r *run, region string) (crawler.QueueEntry, bool) {
	if entry, ok := o.queue.Dequeue(); ok {
		return entry, true
	}
	if !o.cfg.PersistOverflow {
		return crawler.QueueEntry{}, false
	}
	o.refill(ctx, r, region)
	return o.queue.Dequeue()
}

func (o *Orchestrator) refill(ctx context.Context, r *run, region string) {
	o.persistOverflow(ctx, r)
	for {
		entries, err := o.store.PopQueue(ctx, region, o.cfg.RefillSize)
		if err != nil {
			r.logger.Error("refill from persisted queue failed", zap.Error(err))
			r.stats.Errors++
			return
		}
		if len(entries) == 0 {
			return
		}
		added := 0
		for _, e := range entries {
			if e.Region == "" {
				e.Region = region
			}
			if o.queue.Enqueue(e) == memory.Added {
				added++
			}
		}
		if added > 0 {
			r.logger.Debug("queue refilled from storage", zap.Int("entries", added))
			return
		}
	}
}

// finish runs on every exit path: it flushes, merges request stats and stops.
func (o *Orchestrator) finish(ctx context.Context, r *run) crawler.CrawlStats {
	o.flush(ctx, r)
	if o.requests != nil {
		rs := o.requests.Stats()
		r.stats.RequestsMade = rs.Requests
		r.stats.RateLimitsHit = rs.RateLimited
		r.stats.Errors += rs.Errors
	}
	r.stats.EndTime = o.clock.Now()
	metrics.SetQueueDepth(o.queue.Len())
	o.publish(r)

	o.mu.Lock()
	o.transition(crawler.StateStopped)
	o.mu.Unlock()

	r.logger.Info("crawl finished",
		zap.Duration("duration", r.stats.Duration(r.stats.EndTime)),
		zap.Int("players_crawled", r.stats.PlayersCrawled),
		zap.Int("players_discovered", r.stats.PlayersDiscovered),
		zap.Int("players_skipped", r.stats.PlayersSkipped),
		zap.Int("matches_found", r.stats.MatchesFound),
		zap.Int("matches_stored", r.stats.MatchesStored),
		zap.Int("matches_filtered", r.stats.MatchesFiltered),
		zap.Int("duplicates", r.stats.Duplicates),
		zap.Int64("requests", r.stats.RequestsMade),
		zap.Int64("rate_limits", r.stats.RateLimitsHit),
		zap.Int64("errors", r.stats.Errors),
	)
	stats := r.stats
	stats.FilteredBy = maps.Clone(r.stats.FilteredBy)
	return stats
}

// flush commits the buffer and any pending overflow. It runs detached from ctx
// cancellation so that shutdown paths still persist buffered matches.
func (o *Orchestrator) flush(ctx context.Context, r *run) {
	ctx, cancel := o.persistContext(ctx)
	defer cancel()

	o.persistOverflow(ctx, r)
	if len(r.buffer) == 0 {
		return
	}
	batch := r.buffer
	r.buffer = make([]crawler.MatchRecord, 0, o.cfg.BatchSize)

	res, err := o.store.InsertBatch(ctx, batch)
	if err != nil {
		metrics.ObserveBatchFlush(false)
		r.stats.Errors++
		r.logger.Error("batch commit failed, dropping batch",
			zap.Int("size", len(batch)),
			zap.Error(err),
		)
		return
	}
	metrics.ObserveBatchFlush(true)
	metrics.ObserveMatches("stored", res.Inserted)
	metrics.ObserveMatches("duplicate", res.Attempted-res.Inserted)
	r.stats.MatchesStored += res.Inserted
	r.stats.Duplicates += res.Attempted - res.Inserted
	if o.stored != nil {
		for _, rec := range batch {
			o.stored.AddString(rec.MatchID)
		}
	}
	r.logger.Info("batch flushed",
		zap.Int("attempted", res.Attempted),
		zap.Int("inserted", res.Inserted),
		zap.Int("total_stored", r.stats.MatchesStored),
	)
}

func (o *Orchestrator) persistOverflow(ctx context.Context, r *run) {
	if len(o.overflow) == 0 {
		return
	}
	entries := make([]crawler.QueueEntry, 0, len(o.overflow))
	for _, e := range o.overflow {
		entries = append(entries, e)
	}
	if err := o.store.EnqueueOverflow(ctx, entries); err != nil {
		r.stats.Errors++
		r.logger.Warn("persisting queue overflow failed", zap.Int("entries", len(entries)), zap.Error(err))
		return
	}
	clear(o.overflow)
	r.logger.Debug("queue overflow persisted", zap.Int("entries", len(entries)))
}

func (o *Orchestrator) persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.FlushTimeout)
}

// warmStored loads the IDs of stored matches for the current patch into the bloom
// prefilter. It runs once per patch per process; on failure every candidate is
// checked against storage directly.
func (o *Orchestrator) warmStored(ctx context.Context, r *run, current string) {
	patch, ok := version.MajorMinor(current)
	if !ok || (o.stored != nil && o.storedPatch == patch) {
		return
	}
	filter := bloom.NewWithEstimates(o.cfg.BloomCapacity, 0.01)
	n := 0
	for id, err := range o.store.MatchIDs(ctx, patch) {
		if err != nil {
			r.logger.Warn("loading stored match ids failed", zap.Error(err))
			o.stored = nil
			return
		}
		filter.AddString(id)
		n++
	}
	o.stored = filter
	o.storedPatch = patch
	r.logger.Info("stored match filter loaded", zap.String("patch", patch), zap.Int("matches", n))
}

// publish copies the run stats for Status readers.
func (o *Orchestrator) publish(r *run) {
	o.mu.Lock()
	o.live = r.stats
	o.live.FilteredBy = maps.Clone(r.stats.FilteredBy)
	o.mu.Unlock()
}

// Close saves the queued and overflowed entries to storage so a later process can
// continue where this one stopped. It must not be called while Run is active.
func (o *Orchestrator) Close(ctx context.Context) error {
	if !o.cfg.PersistOverflow {
		return nil
	}
	entries := o.queue.Drain()
	for _, e := range o.overflow {
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return nil
	}
	if err := o.store.EnqueueOverflow(ctx, entries); err != nil {
		return fmt.Errorf("persist queue: %w", err)
	}
	clear(o.overflow)
	o.logger.Info("discovery queue persisted", zap.Int("entries", len(entries)))
	return nil
}
