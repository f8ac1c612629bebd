package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/riot"
)

func currentIs(v string) func(string) bool {
	return func(got string) bool { return got == v }
}

func TestBuildRecord_Filters(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*riot.MatchResponse)
		want   crawler.FilterReason
	}{
		{
			name:   "stale version",
			mutate: func(m *riot.MatchResponse) { m.Info.GameVersion = "14.23.1" },
			want:   crawler.FilterVersion,
		},
		{
			name:   "version checked before queue",
			mutate: func(m *riot.MatchResponse) { m.Info.GameVersion = "14.23.1"; m.Info.QueueID = 450 },
			want:   crawler.FilterVersion,
		},
		{
			name:   "aram",
			mutate: func(m *riot.MatchResponse) { m.Info.QueueID = 450 },
			want:   crawler.FilterQueue,
		},
		{
			name:   "nine participants",
			mutate: func(m *riot.MatchResponse) { m.Info.Participants = m.Info.Participants[:9] },
			want:   crawler.FilterParticipants,
		},
		{
			name:   "uneven split",
			mutate: func(m *riot.MatchResponse) { m.Info.Participants[5].TeamID = crawler.TeamBlue },
			want:   crawler.FilterTeams,
		},
		{
			name:   "duplicate champion",
			mutate: func(m *riot.MatchResponse) { m.Info.Participants[7].ChampionID = m.Info.Participants[2].ChampionID },
			want:   crawler.FilterTeams,
		},
		{
			name:   "unknown team",
			mutate: func(m *riot.MatchResponse) { m.Info.Participants[9].TeamID = 300 },
			want:   crawler.FilterTeams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := validMatch("NA1_1", "14.24.448.6")
			tt.mutate(&m)
			_, reason, ok := buildRecord(m, "NA1_1", "na1", currentIs("14.24.448.6"))
			assert.False(t, ok)
			assert.Equal(t, tt.want, reason)
		})
	}
}

func TestBuildRecord_Admitted(t *testing.T) {
	t.Parallel()

	m := validMatch("EUW1_7", "14.24.448.6")
	m.Info.QueueID = crawler.QueueRankedFlex
	rec, reason, ok := buildRecord(m, "EUW1_7", "euw1", currentIs("14.24.448.6"))
	require.True(t, ok)
	assert.Empty(t, reason)

	assert.Equal(t, "EUW1_7", rec.MatchID)
	assert.Equal(t, "euw1", rec.Region)
	assert.Equal(t, crawler.QueueRankedFlex, rec.QueueID)
	assert.Equal(t, 1800, rec.GameDuration)
	assert.Equal(t, "CLASSIC", rec.GameMode)
	assert.Equal(t, int64(1733800000000), rec.GameTimestamp)
	assert.True(t, rec.BlueWin)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, rec.BlueTeam)
	assert.Equal(t, []int{6, 7, 8, 9, 10}, rec.RedTeam)
	require.Len(t, rec.BlueItems, crawler.TeamSize)
	require.Len(t, rec.RedItems, crawler.TeamSize)
	assert.Equal(t, []int{1000, 0, 0, 0, 0, 3340}, rec.BlueItems[0])
	assert.Equal(t, []int{1009, 0, 0, 0, 0, 3340}, rec.RedItems[4])
	assert.Nil(t, rec.RawData)
}

func TestBuildRecord_RedWin(t *testing.T) {
	t.Parallel()

	m := validMatch("KR_3", "14.24.1")
	for i := range m.Info.Participants {
		m.Info.Participants[i].Win = m.Info.Participants[i].TeamID == crawler.TeamRed
	}
	rec, _, ok := buildRecord(m, "KR_3", "kr", currentIs("14.24.1"))
	require.True(t, ok)
	assert.False(t, rec.BlueWin)
}
