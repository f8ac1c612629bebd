package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/app"
	"github.com/JakeFAU/match-crawler/internal/config"
	"github.com/JakeFAU/match-crawler/internal/crawler"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Crawler: config.CrawlerConfig{
			QueueCapacity:   100,
			MatchQueue:      crawler.QueueRankedSolo,
			FallbackVersion: "14.24.1",
			PersistOverflow: true,
		},
		Riot:    config.RiotConfig{MaxConcurrent: 2, TimeoutSeconds: 5},
		Storage: config.StorageConfig{Path: filepath.Join(t.TempDir(), "nested", "matches.db")},
		Logging: config.LoggingConfig{Development: true, Level: "warn"},
	}
}

func TestNew_OpensStorage(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	require.NotNil(t, a.Logger())
	require.NotNil(t, a.Store())
	require.NoError(t, a.Store().Ping(context.Background()))
	assert.Equal(t, "14.24.1", a.Config().Crawler.FallbackVersion)
}

func TestNew_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Logging.Level = "loud"
	_, err := app.New(context.Background(), cfg)
	require.ErrorContains(t, err, "init logger")
}

func TestNew_StorageFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Storage.Path = ""
	_, err := app.New(context.Background(), cfg, app.WithLogger(zap.NewNop()))
	require.ErrorContains(t, err, "init storage")
}

func TestOrchestrator_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), app.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	_, err = a.Orchestrator()
	require.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestOrchestrator_BuiltOnce(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.Riot.APIKey = "RGAPI-test"
	a, err := app.New(context.Background(), cfg, app.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	first, err := a.Orchestrator()
	require.NoError(t, err)
	second, err := a.Orchestrator()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, crawler.StateIdle, first.State())
}

func TestOracle_UsesConfiguredURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["15.1.1","14.24.1"]`))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t)
	cfg.Riot.VersionsURL = srv.URL
	a, err := app.New(context.Background(), cfg, app.WithLogger(zap.NewNop()), app.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	assert.Equal(t, "15.1.1", a.Oracle().Resolve(context.Background()))
	assert.Same(t, a.Oracle(), a.Oracle())
}

func TestClose_ReleasesStorage(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(t), app.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	require.NoError(t, a.Close(context.Background()))
	require.Error(t, a.Store().Ping(context.Background()))
}
