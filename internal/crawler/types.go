package crawler

import "time"

// Queue type identifiers admitted by the crawl pipeline.
const (
	QueueRankedSolo = 420
	QueueRankedFlex = 440
)

// Team identifiers used by the match payload.
const (
	TeamBlue = 100
	TeamRed  = 200
)

// TeamSize is the number of participants per side.
const TeamSize = 5

// ItemSlots is the number of positional item slots extracted per participant.
const ItemSlots = 6

// IsRankedQueue reports whether a queue identifier is ranked solo or ranked flex.
func IsRankedQueue(queueID int) bool {
	return queueID == QueueRankedSolo || queueID == QueueRankedFlex
}

// MatchRecord is one completed, validated game ready for persistence.
type MatchRecord struct {
	MatchID       string    `json:"match_id"`
	GameVersion   string    `json:"game_version"`
	Region        string    `json:"region"`
	GameDuration  int       `json:"game_duration"`
	GameMode      string    `json:"game_mode"`
	QueueID       int       `json:"queue_id"`
	BlueWin       bool      `json:"blue_win"`
	BlueTeam      []int     `json:"blue_team"`
	RedTeam       []int     `json:"red_team"`
	BlueItems     [][]int   `json:"blue_items"`
	RedItems      [][]int   `json:"red_items"`
	GameTimestamp int64     `json:"game_timestamp"`
	RawData       []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at,omitzero"`
}

// PlayerRecord tracks a discovered player and its crawl history.
type PlayerRecord struct {
	PUUID        string    `json:"puuid"`
	Region       string    `json:"region"`
	LastCrawled  time.Time `json:"last_crawled"`
	MatchesFound int       `json:"matches_found"`
	Tier         string    `json:"tier,omitempty"`
	Rank         string    `json:"rank,omitempty"`
}

// Queue priorities. Higher values are dequeued first.
const (
	PriorityDiscovered  = 0
	PriorityMaster      = 1
	PriorityGrandmaster = 2
	PriorityChallenger  = 3
	PrioritySeed        = 3
)

// QueueEntry is a pending (player, region) work item.
type QueueEntry struct {
	PUUID    string `json:"puuid"`
	Region   string `json:"region"`
	Priority int    `json:"priority"`
	Tier     string `json:"tier,omitempty"`
	Rank     string `json:"rank,omitempty"`
}

// PatchCount is the running number of stored matches for one release version.
type PatchCount struct {
	Version    string    `json:"version"`
	MatchCount int64     `json:"match_count"`
	FirstSeen  time.Time `json:"first_seen"`
}

// Statistics summarises the stored dataset.
type Statistics struct {
	TotalMatches int64            `json:"total_matches"`
	TotalPlayers int64            `json:"total_players"`
	QueueSize    int64            `json:"queue_size"`
	Patches      []PatchCount     `json:"patches"`
	Regions      map[string]int64 `json:"regions"`
}

// BatchResult reports the outcome of a batch insert.
type BatchResult struct {
	Attempted int `json:"attempted"`
	Inserted  int `json:"inserted"`
}

// State is the lifecycle state of the crawl orchestrator.
type State string

// Orchestrator states.
const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
	StateStopped State = "stopped"
)

// FilterReason names why a fetched match was rejected before persistence.
type FilterReason string

// Filter reasons, applied in this order.
const (
	FilterVersion      FilterReason = "version"
	FilterQueue        FilterReason = "queue"
	FilterParticipants FilterReason = "participants"
	FilterTeams        FilterReason = "teams"
)

// CrawlStats accumulates per-run counters.
type CrawlStats struct {
	RunID             string               `json:"run_id"`
	Region            string               `json:"region"`
	PlayersCrawled    int                  `json:"players_crawled"`
	PlayersDiscovered int                  `json:"players_discovered"`
	PlayersSkipped    int                  `json:"players_skipped"`
	MatchesFound      int                  `json:"matches_found"`
	MatchesStored     int                  `json:"matches_stored"`
	MatchesFiltered   int                  `json:"matches_filtered"`
	FilteredBy        map[FilterReason]int `json:"filtered_by"`
	Duplicates        int                  `json:"duplicates"`
	RequestsMade      int64                `json:"requests_made"`
	RateLimitsHit     int64                `json:"rate_limits_hit"`
	Errors            int64                `json:"errors"`
	StartTime         time.Time            `json:"start_time"`
	EndTime           time.Time            `json:"end_time,omitzero"`
}

// Filtered records one rejected match.
func (s *CrawlStats) Filtered(reason FilterReason) {
	if s.FilteredBy == nil {
		s.FilteredBy = make(map[FilterReason]int)
	}
	s.MatchesFiltered++
	s.FilteredBy[reason]++
}

// Duration returns the elapsed run time, using now while the run is active.
func (s CrawlStats) Duration(now time.Time) time.Duration {
	end := s.EndTime
	if end.IsZero() {
		end = now
	}
	return end.Sub(s.StartTime)
}
