package worker

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/queue/memory"
	"github.com/JakeFAU/match-crawler/internal/riot"
)

func tierPriority(t riot.Tier) int {
	switch t {
	case riot.TierChallenger:
		return crawler.PriorityChallenger
	case riot.TierGrandmaster:
		return crawler.PriorityGrandmaster
	default:
		return crawler.PriorityMaster
	}
}

// seed fills the queue with explicit seeds or, when none are given, with the top of
// the ranked ladder for the region.
func (o *Orchestrator) seed(ctx context.Context, r *run, req RunRequest) {
	var entries []crawler.QueueEntry
	source := "explicit"
	if len(req.Seeds) > 0 {
		for _, puuid := range req.Seeds {
			if puuid = strings.TrimSpace(puuid); puuid != "" {
				entries = append(entries, crawler.QueueEntry{PUUID: puuid, Region: req.Region, Priority: crawler.PrioritySeed})
			}
		}
	} else {
		source = "ladder"
		entries = o.ladderSeeds(ctx, r, req.Region)
	}

	added := 0
	for _, e := range entries {
		if o.queue.Enqueue(e) == memory.Added {
			added++
		}
	}
	r.logger.Info("queue seeded",
		zap.String("source", source),
		zap.Int("candidates", len(entries)),
		zap.Int("added", added),
		zap.Int("queue_depth", o.queue.Len()),
	)
}

// ladderSeeds looks up the three top tiers concurrently and combines them in tier
// order, capped at SeedCap. A failed tier is logged and skipped.
func (o *Orchestrator) ladderSeeds(ctx context.Context, r *run, region string) []crawler.QueueEntry {
	perTier := make([][]crawler.QueueEntry, len(riot.SeedTiers))
	outcomes := make([]riot.Outcome, len(riot.SeedTiers))

	var g errgroup.Group
	g.SetLimit(o.cfg.SeedConcurrency)
	for i, tier := range riot.SeedTiers {
		g.Go(func() error {
			perTier[i], outcomes[i] = o.tierSeeds(ctx, region, tier)
			return nil
		})
	}
	_ = g.Wait()

	var combined []crawler.QueueEntry
	for i, tier := range riot.SeedTiers {
		if out := outcomes[i]; !out.OK() {
			o.countFailure(r, out)
			r.logger.Warn("tier lookup failed",
				zap.String("tier", string(tier)),
				zap.String("outcome", out.Label()),
				zap.Error(out.AsError()),
			)
			continue
		}
		for _, e := range perTier[i] {
			if len(combined) >= o.cfg.SeedCap {
				return combined
			}
			combined = append(combined, e)
		}
	}
	return combined
}

// tierSeeds lists one tier, resolving legacy summoner-id entries to PUUIDs.
func (o *Orchestrator) tierSeeds(ctx context.Context, region string, tier riot.Tier) ([]crawler.QueueEntry, riot.Outcome) {
	list, out := o.source.TierEntries(ctx, region, tier)
	if !out.OK() {
		return nil, out
	}
	tierName := strings.ToUpper(list.Tier)
	if tierName == "" {
		tierName = strings.ToUpper(string(tier))
	}

	entries := make([]crawler.QueueEntry, 0, min(len(list.Entries), o.cfg.SeedTierCap))
	for _, e := range list.Entries {
		if len(entries) >= o.cfg.SeedTierCap {
			break
		}
		puuid := e.PUUID
		if puuid == "" && e.SummonerID != "" {
			resolved, sout := o.source.SummonerPUUID(ctx, region, e.SummonerID)
			if !sout.OK() {
				continue
			}
			puuid = resolved
		}
		if puuid == "" {
			continue
		}
		entries = append(entries, crawler.QueueEntry{
			PUUID:    puuid,
			Region:   region,
			Priority: tierPriority(tier),
			Tier:     tierName,
			Rank:     e.Rank,
		})
	}
	return entries, out
}
