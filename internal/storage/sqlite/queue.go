package sqlite

import (
	"context"
	"fmt"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

// EnqueueOverflow persists entries that did not fit in the in-memory queue.
// Entries already pending are left untouched.
func (s *Store) EnqueueOverflow(ctx context.Context, entries []crawler.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enqueue: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO crawl_queue (puuid, region, priority, tier, rank, added_at)
VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`)
	if err != nil {
		return fmt.Errorf("prepare enqueue: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := s.nowMillis()
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.PUUID, e.Region, e.Priority, e.Tier, e.Rank, now); err != nil {
			return fmt.Errorf("enqueue %s: %w", e.PUUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit enqueue: %w", err)
	}
	return nil
}

// PopQueue removes and returns up to n entries for region (any region when empty),
// highest priority first and oldest first within a priority.
func (s *Store) PopQueue(ctx context.Context, region string, n int) ([]crawler.QueueEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin pop: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT puuid, region, priority, COALESCE(tier, ''), COALESCE(rank, '') FROM crawl_queue`
	args := []any{}
	if region != "" {
		query += ` WHERE region = ?`
		args = append(args, region)
	}
	query += ` ORDER BY priority DESC, added_at, rowid LIMIT ?`
	args = append(args, n)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select queue: %w", err)
	}
	var entries []crawler.QueueEntry
	for rows.Next() {
		var e crawler.QueueEntry
		if err := rows.Scan(&e.PUUID, &e.Region, &e.Priority, &e.Tier, &e.Rank); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("select queue: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `DELETE FROM crawl_queue WHERE puuid = ?`, e.PUUID); err != nil {
			return nil, fmt.Errorf("delete queue entry %s: %w", e.PUUID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit pop: %w", err)
	}
	return entries, nil
}

// QueueSize returns the number of persisted queue entries.
func (s *Store) QueueSize(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawl_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}
