// Package cmd defines and implements the CLI commands for the match-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/app"
	"github.com/JakeFAU/match-crawler/internal/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// closeTimeout bounds the queue save and storage close after a command.
const closeTimeout = 30 * time.Second

// newApp is the application factory. It is a variable so tests can swap in options.
var newApp = func(ctx context.Context, cfg config.Config) (*app.App, error) {
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command. The returned shutdown
// releases the application the command built; call it once Execute returns,
// whatever the command's error.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile     string
		appInstance *app.App
	)

	cmd := &cobra.Command{
		Use:   "match-crawler",
		Short: "Crawls ranked League of Legends matches into a local SQLite dataset.",
		Long: `match-crawler discovers players from the top of the ranked ladder, follows
their recent ranked games and stores every current-patch match in a WAL-mode
SQLite database for downstream model training.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = a
			zap.ReplaceGlobals(a.Logger())

			ctx := context.WithValue(cmd.Context(), appKey, a)
			cmd.SetContext(ctx)
			return nil
		},
	}

	// PersistentPostRun is skipped when RunE fails, so the queue save and the
	// storage close happen here instead.
	shutdown := func() {
		if appInstance == nil {
			return
		}
		a := appInstance
		appInstance = nil
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := a.Close(ctx); err != nil {
			a.Logger().Warn("shutdown incomplete", zap.Error(err))
		}
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON); env CRAWLER_* overrides it")

	cmd.AddCommand(
		newCrawlCmd(),
		newContinuousCmd(),
		newStatsCmd(),
		newCleanCmd(),
		newServeCmd(),
	)
	return cmd, shutdown
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, shutdown := newRootCmd()
	err := root.ExecuteContext(ctx)
	stop()
	shutdown()
	if err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
