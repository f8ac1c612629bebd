package worker

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/metrics"
	"github.com/JakeFAU/match-crawler/internal/queue/memory"
	"github.com/JakeFAU/match-crawler/internal/riot"
)

// crawlPlayer processes one queue entry: freshness check, match listing, sequential
// match fetches with a flush whenever the buffer fills, and the player upsert.
func (o *Orchestrator) crawlPlayer(ctx context.Context, r *run, entry crawler.QueueEntry) {
	logger := r.logger.With(zap.String("puuid", entry.PUUID))

	fresh, err := o.store.ShouldCrawl(ctx, entry.PUUID, o.cfg.Freshness)
	if err != nil {
		r.stats.Errors++
		logger.Error("freshness check failed", zap.Error(err))
		return
	}
	if !fresh {
		r.stats.PlayersSkipped++
		return
	}
	r.stats.PlayersCrawled++
	metrics.ObservePlayerCrawled()

	ids, out := o.source.MatchIDs(ctx, entry.PUUID, entry.Region, o.cfg.MaxMatchesPerPlayer)
	if out.Kind == riot.KindFailed {
		o.countFailure(r, out)
		logger.Debug("match listing failed", zap.Error(out.AsError()))
		o.recordPlayer(ctx, r, entry, 0)
		o.progress(r)
		return
	}

	accepted := 0
	for _, matchID := range ids {
		if ctx.Err() != nil {
			break
		}
		if !o.processMatch(ctx, r, entry, matchID) {
			continue
		}
		accepted++
		if len(r.buffer) >= o.cfg.BatchSize {
			o.flush(ctx, r)
		}
	}

	o.recordPlayer(ctx, r, entry, accepted)
	o.progress(r)
}

// recordPlayer upserts the player after every crawl attempt, failed listings included.
func (o *Orchestrator) recordPlayer(ctx context.Context, r *run, entry crawler.QueueEntry, accepted int) {
	pctx, cancel := o.persistContext(ctx)
	defer cancel()
	err := o.store.UpsertPlayer(pctx, crawler.PlayerRecord{
		PUUID:        entry.PUUID,
		Region:       entry.Region,
		LastCrawled:  o.clock.Now(),
		MatchesFound: accepted,
		Tier:         entry.Tier,
		Rank:         entry.Rank,
	})
	if err != nil {
		r.stats.Errors++
		r.logger.Error("player upsert failed", zap.String("puuid", entry.PUUID), zap.Error(err))
	}
}

// processMatch fetches and admits one match. It reports whether the match joined the
// write buffer.
func (o *Orchestrator) processMatch(ctx context.Context, r *run, entry crawler.QueueEntry, matchID string) bool {
	if _, seen := o.seenMatches[matchID]; seen {
		return false
	}
	if o.alreadyStored(ctx, r, matchID) {
		o.seenMatches[matchID] = struct{}{}
		r.stats.Duplicates++
		metrics.ObserveMatch("duplicate")
		return false
	}

	match, out := o.source.Match(ctx, matchID, entry.Region)
	_ = o.sleep(ctx, o.cfg.MatchFetchDelay)

	switch out.Kind {
	case riot.KindNotFound:
		o.seenMatches[matchID] = struct{}{}
		return false
	case riot.KindFailed:
		// Not marked seen: another player's listing may offer it again this pass.
		o.countFailure(r, out)
		r.logger.Debug("match fetch failed", zap.String("match_id", matchID), zap.Error(out.AsError()))
		return false
	}

	r.stats.MatchesFound++
	o.seenMatches[matchID] = struct{}{}
	rec, reason, ok := buildRecord(match, matchID, entry.Region, o.oracle.IsCurrent)
	if !ok {
		r.stats.Filtered(reason)
		metrics.ObserveMatch(string(reason))
		r.logger.Debug("match filtered",
			zap.String("match_id", matchID),
			zap.String("reason", string(reason)),
			zap.String("game_version", match.Info.GameVersion),
			zap.Int("queue_id", match.Info.QueueID),
		)
		return false
	}
	if o.cfg.KeepRawPayload {
		rec.RawData = out.Payload
	}

	o.discover(r, match.Metadata.Participants, entry.Region)
	r.buffer = append(r.buffer, rec)
	return true
}

// alreadyStored consults the bloom prefilter and confirms possible hits in storage.
func (o *Orchestrator) alreadyStored(ctx context.Context, r *run, matchID string) bool {
	if o.stored != nil && !o.stored.TestString(matchID) {
		return false
	}
	ok, err := o.store.Exists(ctx, matchID)
	if err != nil {
		r.logger.Warn("match existence check failed", zap.String("match_id", matchID), zap.Error(err))
		return false
	}
	return ok
}

// discover enqueues match participants. Entries that do not fit are kept for the
// persisted overflow queue.
func (o *Orchestrator) discover(r *run, participants []string, region string) {
	for _, puuid := range participants {
		if puuid == "" {
			continue
		}
		entry := crawler.QueueEntry{PUUID: puuid, Region: region, Priority: crawler.PriorityDiscovered}
		switch o.queue.Enqueue(entry) {
		case memory.Added:
			r.stats.PlayersDiscovered++
		case memory.Dropped:
			if o.cfg.PersistOverflow {
				o.overflow[puuid] = entry
			}
		}
	}
}

// countFailure records a failed outcome. Transport and status failures were already
// counted by the gateway; a payload that failed to decode was not.
func (o *Orchestrator) countFailure(r *run, out riot.Outcome) {
	if out.RateLimited() {
		return
	}
	if out.Status == http.StatusOK || o.requests == nil {
		r.stats.Errors++
	}
}

func (o *Orchestrator) progress(r *run) {
	if r.stats.PlayersCrawled == 0 || r.stats.PlayersCrawled%o.cfg.ProgressEvery != 0 {
		return
	}
	depth := o.queue.Len()
	metrics.SetQueueDepth(depth)
	o.publish(r)
	r.logger.Info("crawl progress",
		zap.Int("players_crawled", r.stats.PlayersCrawled),
		zap.Int("matches_stored", r.stats.MatchesStored),
		zap.Int("buffered", len(r.buffer)),
		zap.Int("queue_depth", depth),
	)
}
