// Package riot talks to the Riot Games API: a rate-limited gateway that classifies
// responses into outcomes, and a typed client for the endpoints the crawler uses.
package riot

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
)

// Tier is a top-of-ladder league.
type Tier string

// Ladder tiers used for seeding.
const (
	TierChallenger  Tier = "challenger"
	TierGrandmaster Tier = "grandmaster"
	TierMaster      Tier = "master"
)

// SeedTiers lists the ladder tiers in seeding order.
var SeedTiers = []Tier{TierChallenger, TierGrandmaster, TierMaster}

// ErrUnknownTier is returned for tiers without a league-v4 listing.
var ErrUnknownTier = errors.New("riot: unknown tier")

const rankedSoloQueue = "RANKED_SOLO_5x5"

// Fetcher issues one classified API call.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) Outcome
}

// Client wraps a Fetcher with typed endpoint calls.
type Client struct {
	fetcher    Fetcher
	endpoints  Endpoints
	matchQueue int
}

// NewClient constructs a Client. matchQueue filters match-id listings (420 = ranked solo).
func NewClient(fetcher Fetcher, endpoints Endpoints, matchQueue int) *Client {
	return &Client{fetcher: fetcher, endpoints: endpoints, matchQueue: matchQueue}
}

// MatchIDs lists up to count recent ranked match ids for a player.
func (c *Client) MatchIDs(ctx context.Context, puuid, region string, count int) ([]string, Outcome) {
	params := url.Values{}
	if c.matchQueue > 0 {
		params.Set("queue", strconv.Itoa(c.matchQueue))
	}
	params.Set("type", "ranked")
	params.Set("start", "0")
	params.Set("count", strconv.Itoa(count))

	path := "/lol/match/v5/matches/by-puuid/" + url.PathEscape(puuid) + "/ids"
	var ids []string
	out := c.fetcher.Fetch(ctx, c.endpoints.Regional(region, path), params).Decode(&ids)
	return ids, out
}

// Match fetches full match details. The outcome payload keeps the raw response body.
func (c *Client) Match(ctx context.Context, matchID, region string) (MatchResponse, Outcome) {
	path := "/lol/match/v5/matches/" + url.PathEscape(matchID)
	var match MatchResponse
	out := c.fetcher.Fetch(ctx, c.endpoints.Regional(region, path), nil).Decode(&match)
	return match, out
}

// TierEntries fetches the ranked solo ladder listing for one top tier.
func (c *Client) TierEntries(ctx context.Context, region string, tier Tier) (LeagueList, Outcome) {
	switch tier {
	case TierChallenger, TierGrandmaster, TierMaster:
	default:
		return LeagueList{}, Failed(FailureOther, 0, fmt.Errorf("%w: %q", ErrUnknownTier, tier))
	}
	path := fmt.Sprintf("/lol/league/v4/%sleagues/by-queue/%s", tier, rankedSoloQueue)
	var list LeagueList
	out := c.fetcher.Fetch(ctx, c.endpoints.Platform(region, path), nil).Decode(&list)
	return list, out
}

// SummonerPUUID resolves a legacy summoner id to a PUUID.
func (c *Client) SummonerPUUID(ctx context.Context, region, summonerID string) (string, Outcome) {
	path := "/lol/summoner/v4/summoners/" + url.PathEscape(summonerID)
	var summoner SummonerResponse
	out := c.fetcher.Fetch(ctx, c.endpoints.Platform(region, path), nil).Decode(&summoner)
	if out.OK() && summoner.PUUID == "" {
		return "", NotFound()
	}
	return summoner.PUUID, out
}
