package riot

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_MatchIDs(t *testing.T) {
	t.Parallel()

	f := &recordingFetcher{outcome: Ok([]byte(`["EUW1_1","EUW1_2"]`))}
	c := NewClient(f, NewEndpoints("", "", nil), 420)

	ids, out := c.MatchIDs(context.Background(), "puuid-1", "euw1", 10)

	require.True(t, out.OK())
	require.Equal(t, []string{"EUW1_1", "EUW1_2"}, ids)
	require.Equal(t, "https://europe.api.riotgames.com/lol/match/v5/matches/by-puuid/puuid-1/ids", f.url)
	require.Equal(t, "420", f.params.Get("queue"))
	require.Equal(t, "ranked", f.params.Get("type"))
	require.Equal(t, "0", f.params.Get("start"))
	require.Equal(t, "10", f.params.Get("count"))
}

func TestClient_MatchDecodes(t *testing.T) {
	t.Parallel()

	payload := `{"metadata":{"matchId":"KR_1","participants":["a","b"]},
		"info":{"gameVersion":"14.24.636.9802","queueId":420,"gameMode":"CLASSIC",
		"participants":[{"puuid":"a","championId":1,"teamId":100,"win":true,"item0":3089}]}}`
	f := &recordingFetcher{outcome: Ok([]byte(payload))}
	c := NewClient(f, NewEndpoints("", "", nil), 420)

	match, out := c.Match(context.Background(), "KR_1", "kr")

	require.True(t, out.OK())
	require.Equal(t, "https://asia.api.riotgames.com/lol/match/v5/matches/KR_1", f.url)
	require.Equal(t, "KR_1", match.Metadata.MatchID)
	require.Equal(t, "14.24.636.9802", match.Info.GameVersion)
	require.Equal(t, []int{3089, 0, 0, 0, 0, 0}, match.Info.Participants[0].Items())
	require.Equal(t, payload, string(out.Payload))
}

func TestClient_MatchBadPayloadFails(t *testing.T) {
	t.Parallel()

	c := NewClient(&recordingFetcher{outcome: Ok([]byte(`{`))}, NewEndpoints("", "", nil), 420)
	_, out := c.Match(context.Background(), "KR_1", "kr")

	require.Equal(t, KindFailed, out.Kind)
	require.ErrorContains(t, out.AsError(), "decode payload")
}

func TestClient_TierEntries(t *testing.T) {
	t.Parallel()

	f := &recordingFetcher{outcome: Ok([]byte(`{"tier":"CHALLENGER","entries":[{"puuid":"p1","rank":"I"}]}`))}
	c := NewClient(f, NewEndpoints("", "", nil), 420)

	list, out := c.TierEntries(context.Background(), "na1", TierChallenger)

	require.True(t, out.OK())
	require.Equal(t, "https://na1.api.riotgames.com/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5", f.url)
	require.Equal(t, "CHALLENGER", list.Tier)
	require.Len(t, list.Entries, 1)
}

func TestClient_TierEntriesUnknownTier(t *testing.T) {
	t.Parallel()

	f := &recordingFetcher{}
	c := NewClient(f, NewEndpoints("", "", nil), 420)
	_, out := c.TierEntries(context.Background(), "na1", Tier("diamond"))

	require.ErrorIs(t, out.AsError(), ErrUnknownTier)
	require.Empty(t, f.url)
}

func TestClient_SummonerPUUID(t *testing.T) {
	t.Parallel()

	f := &recordingFetcher{outcome: Ok([]byte(`{"id":"s1","puuid":"p1"}`))}
	c := NewClient(f, NewEndpoints("", "", nil), 420)

	puuid, out := c.SummonerPUUID(context.Background(), "euw1", "s1")
	require.True(t, out.OK())
	require.Equal(t, "p1", puuid)
	require.Equal(t, "https://euw1.api.riotgames.com/lol/summoner/v4/summoners/s1", f.url)

	f.outcome = Ok([]byte(`{"id":"s1"}`))
	_, out = c.SummonerPUUID(context.Background(), "euw1", "s1")
	require.Equal(t, KindNotFound, out.Kind)
}

func TestEndpoints_Routing(t *testing.T) {
	t.Parallel()

	e := NewEndpoints("", "", map[string]string{"PBE1": "americas"})
	require.Equal(t, "americas", e.RoutingFor("na1"))
	require.Equal(t, "europe", e.RoutingFor("tr1"))
	require.Equal(t, "asia", e.RoutingFor("KR"))
	require.Equal(t, "sea", e.RoutingFor("vn2"))
	require.Equal(t, "americas", e.RoutingFor("pbe1"))
	require.Equal(t, "europe", e.RoutingFor("unknown"))
	for _, region := range Regions {
		_, ok := e.Routing[region]
		require.True(t, ok, region)
	}
}

func TestEndpoints_CustomBase(t *testing.T) {
	t.Parallel()

	e := NewEndpoints("http://127.0.0.1:9000", "http://127.0.0.1:9001/{routing}", nil)
	require.Equal(t, "http://127.0.0.1:9000/x", e.Platform("euw1", "/x"))
	require.Equal(t, "http://127.0.0.1:9001/europe/x", e.Regional("euw1", "/x"))
}

func TestOutcome_Labels(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ok", Ok(nil).Label())
	require.Equal(t, "not_found", NotFound().Label())
	require.Equal(t, "rate_limited", Failed(FailureRateLimited, 429, nil).Label())
	require.Equal(t, "error", Failed(FailureOther, 500, nil).Label())
	require.NoError(t, Ok(nil).AsError())
	require.ErrorIs(t, NotFound().AsError(), ErrNotOK)
	require.ErrorContains(t, Failed(FailureOther, 500, nil).AsError(), "500")
}

// --- fakes ---

type recordingFetcher struct {
	outcome Outcome
	url     string
	params  url.Values
}

func (f *recordingFetcher) Fetch(_ context.Context, rawURL string, params url.Values) Outcome {
	f.url = rawURL
	f.params = params
	return f.outcome
}
