package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/match-crawler/internal/dispatcher"
	"github.com/JakeFAU/match-crawler/internal/worker"
)

// newContinuousCmd creates the 'continuous' subcommand, region rotation until interrupted.
func newContinuousCmd() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "continuous",
		Short: "Crawls crawler.regions in rotation until interrupted",
		Long: `Runs one crawl pass per region in crawler.regions, capped at
crawler.rotation_player_limit players, with crawler.rotation_cooldown between
passes. The discovery queue carries over from one rotation to the next.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runContinuous(cmd, serve)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also serve the HTTP API with crawler control routes")
	return cmd
}

func runContinuous(cmd *cobra.Command, serve bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	orch, err := appInstance.Orchestrator()
	if err != nil {
		return err
	}
	cfg := appInstance.Config().Crawler
	rotator := dispatcher.New(orch, dispatcher.Config{
		Regions:     cfg.Regions,
		PlayerLimit: cfg.RotationPlayerLimit,
		Cooldown:    cfg.RotationCooldown,
	}, appInstance.Logger())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// The HTTP side stops with the rotation.
		defer cancel()
		rotations, err := rotator.Run(gctx)
		appInstance.Logger().Info("rotation stopped", zap.Int("rotations", rotations))
		return err
	})
	if serve {
		g.Go(func() error {
			return serveHTTP(gctx, appInstance, rotatingControl{Orchestrator: orch, rotator: rotator})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("continuous crawl: %w", err)
	}
	return nil
}

// rotatingControl stops the whole rotation, not just the active pass.
type rotatingControl struct {
	*worker.Orchestrator
	rotator *dispatcher.Rotator
}

func (c rotatingControl) Stop() {
	c.rotator.Stop()
}
