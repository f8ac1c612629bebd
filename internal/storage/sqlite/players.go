package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

const upsertPlayerSQL = `INSERT INTO players (puuid, region, last_crawled, matches_found, tier, rank)
VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''))
ON CONFLICT(puuid) DO UPDATE SET
	region = excluded.region,
	last_crawled = excluded.last_crawled,
	matches_found = players.matches_found + excluded.matches_found,
	tier = COALESCE(excluded.tier, players.tier),
	rank = COALESCE(excluded.rank, players.rank)`

// ShouldCrawl reports whether puuid was never crawled or was last crawled at least
// freshness ago.
func (s *Store) ShouldCrawl(ctx context.Context, puuid string, freshness time.Duration) (bool, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT last_crawled FROM players WHERE puuid = ?`, puuid).Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("player freshness: %w", err)
	}
	return !s.clock.Now().Before(time.UnixMilli(last).Add(freshness)), nil
}

// UpsertPlayer inserts or merges a player row. MatchesFound accumulates, tier and rank
// only replace stored values when non-empty, and LastCrawled always replaces.
// A zero LastCrawled is stamped with the store clock.
func (s *Store) UpsertPlayer(ctx context.Context, p crawler.PlayerRecord) error {
	if p.PUUID == "" {
		return errors.New("upsert player: empty puuid")
	}
	last := p.LastCrawled
	if last.IsZero() {
		last = s.clock.Now()
	}
	if _, err := s.db.ExecContext(ctx, upsertPlayerSQL,
		p.PUUID, p.Region, last.UnixMilli(), p.MatchesFound, p.Tier, p.Rank,
	); err != nil {
		return fmt.Errorf("upsert player %s: %w", p.PUUID, err)
	}
	return nil
}

// Player returns one player row.
func (s *Store) Player(ctx context.Context, puuid string) (crawler.PlayerRecord, error) {
	var (
		p          crawler.PlayerRecord
		last       int64
		tier, rank sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT puuid, region, last_crawled, matches_found, tier, rank FROM players WHERE puuid = ?`,
		puuid,
	).Scan(&p.PUUID, &p.Region, &last, &p.MatchesFound, &tier, &rank)
	if err != nil {
		return crawler.PlayerRecord{}, fmt.Errorf("get player %s: %w", puuid, err)
	}
	p.LastCrawled = time.UnixMilli(last).UTC()
	p.Tier = tier.String
	p.Rank = rank.String
	return p, nil
}
