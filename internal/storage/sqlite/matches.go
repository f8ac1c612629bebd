package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/version"
)

const insertMatchSQL = `INSERT OR IGNORE INTO matches (
	match_id, game_version, region, game_duration, game_mode, queue_id, blue_win,
	blue_team, red_team, blue_items, red_items, game_timestamp, raw_data, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const upsertPatchSQL = `INSERT INTO patch_versions (version, match_count, first_seen)
VALUES (?, ?, ?)
ON CONFLICT(version) DO UPDATE SET match_count = match_count + excluded.match_count`

const selectMatchColumns = `match_id, game_version, region, game_duration, game_mode, queue_id,
	blue_win, blue_team, red_team, blue_items, red_items, game_timestamp, raw_data, created_at`

// InsertBatch writes records in one transaction. Existing match ids are skipped, not
// overwritten, and the per-patch counters grow by the rows actually inserted.
func (s *Store) InsertBatch(ctx context.Context, records []crawler.MatchRecord) (crawler.BatchResult, error) {
	result := crawler.BatchResult{Attempted: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("begin batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, insertMatchSQL)
	if err != nil {
		return result, fmt.Errorf("prepare insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := s.nowMillis()
	perPatch := make(map[string]int64)
	var order []string
	for _, rec := range records {
		args, err := matchArgs(rec, now)
		if err != nil {
			return result, fmt.Errorf("encode match %s: %w", rec.MatchID, err)
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return result, fmt.Errorf("insert match %s: %w", rec.MatchID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return result, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			continue
		}
		result.Inserted++
		key := patchKey(rec.GameVersion)
		if _, ok := perPatch[key]; !ok {
			order = append(order, key)
		}
		perPatch[key]++
	}

	for _, key := range order {
		if _, err := tx.ExecContext(ctx, upsertPatchSQL, key, perPatch[key], now); err != nil {
			return result, fmt.Errorf("update patch counter %s: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("commit batch: %w", err)
	}
	s.logger.Debug("batch committed",
		zap.Int("attempted", result.Attempted),
		zap.Int("inserted", result.Inserted),
	)
	return result, nil
}

// Exists reports whether a match is stored.
func (s *Store) Exists(ctx context.Context, matchID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM matches WHERE match_id = ?`, matchID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("match exists: %w", err)
	}
	return true, nil
}

// StreamByVersion yields matches of version and queueID, newest first. Rows are read
// lazily; each range over the sequence runs a fresh query. A zero queueID or empty
// version matches any; limit <= 0 means no limit.
func (s *Store) StreamByVersion(ctx context.Context, ver string, queueID int, limit int) iter.Seq2[crawler.MatchRecord, error] {
	return func(yield func(crawler.MatchRecord, error) bool) {
		where, args := matchFilter(ver, queueID)
		query := "SELECT " + selectMatchColumns + " FROM matches" + where + " ORDER BY game_timestamp DESC"
		if limit > 0 {
			query += " LIMIT ?"
			args = append(args, limit)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(crawler.MatchRecord{}, fmt.Errorf("stream matches: %w", err))
			return
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			rec, err := scanMatch(rows)
			if err != nil {
				yield(crawler.MatchRecord{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(crawler.MatchRecord{}, fmt.Errorf("stream matches: %w", err))
		}
	}
}

// MatchIDs yields the ids of stored matches for version (any when empty).
func (s *Store) MatchIDs(ctx context.Context, ver string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		where, args := matchFilter(ver, 0)
		rows, err := s.db.QueryContext(ctx, "SELECT match_id FROM matches"+where, args...)
		if err != nil {
			yield("", fmt.Errorf("list match ids: %w", err))
			return
		}
		defer func() {
			_ = rows.Close()
		}()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				yield("", fmt.Errorf("scan match id: %w", err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield("", fmt.Errorf("list match ids: %w", err))
		}
	}
}

// Count returns the number of stored matches for version and queueID.
func (s *Store) Count(ctx context.Context, ver string, queueID int) (int64, error) {
	where, args := matchFilter(ver, queueID)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM matches"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}
	return n, nil
}

// PurgeOtherVersions deletes every match whose major.minor differs from keep, drops the
// matching patch counters and vacuums the file. It returns the number of deleted matches.
func (s *Store) PurgeOtherVersions(ctx context.Context, keep string) (int64, error) {
	mm, ok := version.MajorMinor(keep)
	if !ok {
		return 0, fmt.Errorf("purge: invalid version %q", keep)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin purge: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM matches WHERE NOT (game_version = ? OR game_version LIKE ?)`,
		mm, mm+".%",
	)
	if err != nil {
		return 0, fmt.Errorf("purge matches: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM patch_versions WHERE version <> ?`, mm); err != nil {
		return 0, fmt.Errorf("purge patch counters: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}

	start := time.Now()
	if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
		return deleted, fmt.Errorf("vacuum: %w", err)
	}
	s.logger.Info("purged other versions",
		zap.String("kept", mm),
		zap.Int64("deleted", deleted),
		zap.Duration("vacuum", time.Since(start)),
	)
	return deleted, nil
}

// matchFilter builds the WHERE clause shared by streaming and counting. A version
// matches itself or any dotted extension of it, so "14.24" selects "14.24.636.9802".
func matchFilter(ver string, queueID int) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if ver != "" {
		clauses = append(clauses, `(game_version = ? OR game_version LIKE ? ESCAPE '\')`)
		args = append(args, ver, likeEscaper.Replace(ver)+".%")
	}
	if queueID > 0 {
		clauses = append(clauses, "queue_id = ?")
		args = append(args, queueID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// likeEscaper neutralises LIKE metacharacters in caller-supplied versions.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func patchKey(gameVersion string) string {
	if mm, ok := version.MajorMinor(gameVersion); ok {
		return mm
	}
	return gameVersion
}

func matchArgs(rec crawler.MatchRecord, now int64) ([]any, error) {
	blueTeam, err := json.Marshal(rec.BlueTeam)
	if err != nil {
		return nil, err
	}
	redTeam, err := json.Marshal(rec.RedTeam)
	if err != nil {
		return nil, err
	}
	blueItems, err := json.Marshal(rec.BlueItems)
	if err != nil {
		return nil, err
	}
	redItems, err := json.Marshal(rec.RedItems)
	if err != nil {
		return nil, err
	}
	var raw any
	if len(rec.RawData) > 0 {
		raw = rec.RawData
	}
	return []any{
		rec.MatchID, rec.GameVersion, rec.Region, rec.GameDuration, rec.GameMode, rec.QueueID,
		boolInt(rec.BlueWin), string(blueTeam), string(redTeam), string(blueItems), string(redItems),
		rec.GameTimestamp, raw, now,
	}, nil
}

func scanMatch(rows *sql.Rows) (crawler.MatchRecord, error) {
	var (
		rec                                    crawler.MatchRecord
		blueWin                                int
		blueTeam, redTeam, blueItems, redItems string
		raw                                    []byte
		createdAt                              int64
	)
	if err := rows.Scan(
		&rec.MatchID, &rec.GameVersion, &rec.Region, &rec.GameDuration, &rec.GameMode, &rec.QueueID,
		&blueWin, &blueTeam, &redTeam, &blueItems, &redItems, &rec.GameTimestamp, &raw, &createdAt,
	); err != nil {
		return crawler.MatchRecord{}, fmt.Errorf("scan match: %w", err)
	}
	rec.BlueWin = blueWin != 0
	rec.RawData = raw
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	for _, col := range []struct {
		src string
		dst any
	}{
		{blueTeam, &rec.BlueTeam},
		{redTeam, &rec.RedTeam},
		{blueItems, &rec.BlueItems},
		{redItems, &rec.RedItems},
	} {
		if err := json.Unmarshal([]byte(col.src), col.dst); err != nil {
			return crawler.MatchRecord{}, fmt.Errorf("decode match %s: %w", rec.MatchID, err)
		}
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
