package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

// Statistics aggregates dataset counts by patch and region.
func (s *Store) Statistics(ctx context.Context) (crawler.Statistics, error) {
	stats := crawler.Statistics{Regions: make(map[string]int64)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&stats.TotalMatches); err != nil {
		return stats, fmt.Errorf("count matches: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM players`).Scan(&stats.TotalPlayers); err != nil {
		return stats, fmt.Errorf("count players: %w", err)
	}
	queueSize, err := s.QueueSize(ctx)
	if err != nil {
		return stats, err
	}
	stats.QueueSize = queueSize

	rows, err := s.db.QueryContext(ctx,
		`SELECT version, match_count, first_seen FROM patch_versions ORDER BY first_seen DESC, version DESC`)
	if err != nil {
		return stats, fmt.Errorf("list patches: %w", err)
	}
	for rows.Next() {
		var (
			p         crawler.PatchCount
			firstSeen int64
		)
		if err := rows.Scan(&p.Version, &p.MatchCount, &firstSeen); err != nil {
			_ = rows.Close()
			return stats, fmt.Errorf("scan patch: %w", err)
		}
		p.FirstSeen = time.UnixMilli(firstSeen).UTC()
		stats.Patches = append(stats.Patches, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return stats, fmt.Errorf("list patches: %w", err)
	}
	_ = rows.Close()

	rows, err = s.db.QueryContext(ctx, `SELECT region, COUNT(*) FROM matches GROUP BY region`)
	if err != nil {
		return stats, fmt.Errorf("count regions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	for rows.Next() {
		var (
			region string
			n      int64
		)
		if err := rows.Scan(&region, &n); err != nil {
			return stats, fmt.Errorf("scan region: %w", err)
		}
		stats.Regions[region] = n
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("count regions: %w", err)
	}
	return stats, nil
}
