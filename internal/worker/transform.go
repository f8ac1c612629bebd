package worker

import (
	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/riot"
)

// buildRecord applies the admission filters in order (version, queue, participant
// count, team split) and converts an admitted match into a record.
func buildRecord(
	m riot.MatchResponse,
	matchID, region string,
	isCurrent func(string) bool,
) (crawler.MatchRecord, crawler.FilterReason, bool) {
	info := m.Info
	if !isCurrent(info.GameVersion) {
		return crawler.MatchRecord{}, crawler.FilterVersion, false
	}
	if !crawler.IsRankedQueue(info.QueueID) {
		return crawler.MatchRecord{}, crawler.FilterQueue, false
	}
	if len(info.Participants) != 2*crawler.TeamSize {
		return crawler.MatchRecord{}, crawler.FilterParticipants, false
	}

	rec := crawler.MatchRecord{
		MatchID:       matchID,
		GameVersion:   info.GameVersion,
		Region:        region,
		GameDuration:  info.GameDuration,
		GameMode:      info.GameMode,
		QueueID:       info.QueueID,
		BlueTeam:      make([]int, 0, crawler.TeamSize),
		RedTeam:       make([]int, 0, crawler.TeamSize),
		BlueItems:     make([][]int, 0, crawler.TeamSize),
		RedItems:      make([][]int, 0, crawler.TeamSize),
		GameTimestamp: info.GameCreation,
	}
	champions := make(map[int]struct{}, len(info.Participants))
	for _, p := range info.Participants {
		if _, dup := champions[p.ChampionID]; dup {
			return crawler.MatchRecord{}, crawler.FilterTeams, false
		}
		champions[p.ChampionID] = struct{}{}

		switch p.TeamID {
		case crawler.TeamBlue:
			rec.BlueTeam = append(rec.BlueTeam, p.ChampionID)
			rec.BlueItems = append(rec.BlueItems, p.Items())
			if p.Win {
				rec.BlueWin = true
			}
		case crawler.TeamRed:
			rec.RedTeam = append(rec.RedTeam, p.ChampionID)
			rec.RedItems = append(rec.RedItems, p.Items())
		default:
			return crawler.MatchRecord{}, crawler.FilterTeams, false
		}
	}
	if len(rec.BlueTeam) != crawler.TeamSize || len(rec.RedTeam) != crawler.TeamSize {
		return crawler.MatchRecord{}, crawler.FilterTeams, false
	}
	return rec, "", true
}
