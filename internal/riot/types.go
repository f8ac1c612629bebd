package riot

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}.
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

// MatchMetadata carries the match id and participant PUUIDs in order.
type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"`
}

// MatchInfo is the game summary.
type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"`
	GameMode     string             `json:"gameMode"`
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
}

// MatchParticipant is one player's line in a match.
type MatchParticipant struct {
	PUUID      string `json:"puuid"`
	ChampionID int    `json:"championId"`
	TeamID     int    `json:"teamId"`
	Win        bool   `json:"win"`
	Item0      int    `json:"item0"`
	Item1      int    `json:"item1"`
	Item2      int    `json:"item2"`
	Item3      int    `json:"item3"`
	Item4      int    `json:"item4"`
	Item5      int    `json:"item5"`
}

// Items returns the six positional item slots.
func (p MatchParticipant) Items() []int {
	return []int{p.Item0, p.Item1, p.Item2, p.Item3, p.Item4, p.Item5}
}

// LeagueList represents /lol/league/v4/{tier}leagues/by-queue/{queue}.
type LeagueList struct {
	Tier    string        `json:"tier"`
	Queue   string        `json:"queue"`
	Entries []LeagueEntry `json:"entries"`
}

// LeagueEntry is one ladder entry. Older responses carry SummonerID instead of PUUID.
type LeagueEntry struct {
	PUUID        string `json:"puuid"`
	SummonerID   string `json:"summonerId"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
}

// SummonerResponse represents /lol/summoner/v4/summoners/{summonerId}.
type SummonerResponse struct {
	ID    string `json:"id"`
	PUUID string `json:"puuid"`
}
