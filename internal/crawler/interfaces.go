package crawler

import (
	"context"
	"iter"
	"time"
)

// MatchStore persists crawl output and answers the dedupe and freshness questions
// the orchestrator asks while crawling.
type MatchStore interface {
	InsertBatch(ctx context.Context, records []MatchRecord) (BatchResult, error)
	Exists(ctx context.Context, matchID string) (bool, error)
	ShouldCrawl(ctx context.Context, puuid string, freshness time.Duration) (bool, error)
	UpsertPlayer(ctx context.Context, player PlayerRecord) error
	MatchIDs(ctx context.Context, version string) iter.Seq2[string, error]
	EnqueueOverflow(ctx context.Context, entries []QueueEntry) error
	PopQueue(ctx context.Context, region string, n int) ([]QueueEntry, error)
}

// MatchReader is the read surface consumed by training pipelines and the HTTP API.
type MatchReader interface {
	StreamByVersion(ctx context.Context, version string, queueID int, limit int) iter.Seq2[MatchRecord, error]
	Count(ctx context.Context, version string, queueID int) (int64, error)
	Exists(ctx context.Context, matchID string) (bool, error)
	Statistics(ctx context.Context) (Statistics, error)
	Ping(ctx context.Context) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
