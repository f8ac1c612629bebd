package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/app"
	"github.com/JakeFAU/match-crawler/internal/config"
	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/storage/sqlite"
)

func TestStatsCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedMatches(t, dbPath,
		record("EUW1_1", "14.24.448.6", "euw1"),
		record("EUW1_2", "14.24.448.6", "euw1"),
		record("TR1_1", "14.23.1", "tr1"),
	)

	out, err := execute(t, "stats", "--config", cfgPath)
	require.NoError(t, err)
	require.Contains(t, out, "matches  3")
	require.Contains(t, out, "14.24")
	require.Contains(t, out, "14.23")
	require.Contains(t, out, "tr1")
}

func TestCleanCommand(t *testing.T) {
	cfgPath, dbPath := writeConfig(t)
	seedMatches(t, dbPath,
		record("EUW1_1", "14.24.448.6", "euw1"),
		record("EUW1_2", "14.23.1", "euw1"),
		record("EUW1_3", "14.23.9", "euw1"),
	)

	out, err := execute(t, "clean", "--config", cfgPath, "--keep-version", "14.24")
	require.NoError(t, err)
	require.Contains(t, out, "kept 14.24, deleted 2 matches")

	s, err := sqlite.Open(context.Background(), sqlite.Config{Path: dbPath}, zap.NewNop())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	n, err := s.Count(context.Background(), "14.24", crawler.QueueRankedSolo)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestCrawlCommandRequiresAPIKey(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv(config.APIKeyEnv, "")
	t.Setenv("CRAWLER_RIOT_API_KEY", "")

	_, err := execute(t, "crawl", "--config", cfgPath, "--region", "euw1")
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestContinuousCommandRequiresAPIKey(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv(config.APIKeyEnv, "")
	t.Setenv("CRAWLER_RIOT_API_KEY", "")

	_, err := execute(t, "continuous", "--config", cfgPath)
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestFailedCommandStillClosesApp(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	t.Setenv(config.APIKeyEnv, "")
	t.Setenv("CRAWLER_RIOT_API_KEY", "")

	var built *app.App
	orig := newApp
	newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
		a, err := orig(ctx, cfg)
		built = a
		return a, err
	}
	t.Cleanup(func() { newApp = orig })

	_, err := execute(t, "crawl", "--config", cfgPath, "--region", "euw1")
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
	require.NotNil(t, built)
	require.Error(t, built.Store().Ping(context.Background()), "storage must be closed after a failed command")
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("crawler:\n  batch_size: 0\n"), 0o600))

	_, err := execute(t, "stats", "--config", path)
	require.ErrorContains(t, err, "crawler.batch_size")
}

func TestFirstHelpers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "euw1", firstNonEmpty("", "  ", "euw1", "tr1"))
	require.Empty(t, firstNonEmpty())
	require.Equal(t, 7, firstPositive(0, -1, 7, 9))
	require.Zero(t, firstPositive(0))
}

// --- fakes ---

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, shutdown := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	shutdown()
	return out.String(), err
}

func writeConfig(t *testing.T) (cfgPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "data", "matches.db")
	cfgPath = filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`logging:
  development: false
  level: error
storage:
  path: %q
riot:
  versions_url: "http://127.0.0.1:1/versions.json"
`, dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))
	return cfgPath, dbPath
}

func seedMatches(t *testing.T, dbPath string, records ...crawler.MatchRecord) {
	t.Helper()
	s, err := sqlite.Open(context.Background(), sqlite.Config{Path: dbPath}, zap.NewNop())
	require.NoError(t, err)
	_, err = s.InsertBatch(context.Background(), records)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func record(id, ver, region string) crawler.MatchRecord {
	items := make([][]int, crawler.TeamSize)
	for i := range items {
		items[i] = []int{1001 + i, 0, 0, 0, 0, 0}
	}
	return crawler.MatchRecord{
		MatchID:       id,
		GameVersion:   ver,
		Region:        region,
		GameDuration:  1500,
		GameMode:      "CLASSIC",
		QueueID:       crawler.QueueRankedSolo,
		BlueTeam:      []int{1, 2, 3, 4, 5},
		RedTeam:       []int{6, 7, 8, 9, 10},
		BlueItems:     items,
		RedItems:      items,
		GameTimestamp: 1733800000000,
	}
}
