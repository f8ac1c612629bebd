package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/match-crawler/internal/crawler"
	"github.com/JakeFAU/match-crawler/internal/worker"
)

type crawlOptions struct {
	region     string
	seeds      []string
	maxMatches int
	maxPlayers int
}

// newCrawlCmd creates the 'crawl' subcommand, a single pass over one region.
func newCrawlCmd() *cobra.Command {
	var opts crawlOptions
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl pass over a region",
		Long: `Seeds the discovery queue from the challenger, grandmaster and master ladders
(or from --seed PUUIDs), then crawls players until the queue drains or a limit
is reached. The write buffer is flushed on exit, including on Ctrl-C.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.region, "region", "", "platform region, e.g. euw1 (default crawler.region)")
	cmd.Flags().StringSliceVar(&opts.seeds, "seed", nil, "seed PUUID; repeatable, skips ladder seeding")
	cmd.Flags().IntVar(&opts.maxMatches, "max-matches", 0, "stop after this many stored matches (default crawler.max_matches)")
	cmd.Flags().IntVar(&opts.maxPlayers, "max-players", 0, "stop after this many crawled players (default crawler.max_players)")
	return cmd
}

func runCrawl(cmd *cobra.Command, opts crawlOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	cfg := appInstance.Config().Crawler

	orch, err := appInstance.Orchestrator()
	if err != nil {
		return err
	}

	req := worker.RunRequest{
		Region:      strings.ToLower(firstNonEmpty(opts.region, cfg.Region)),
		Seeds:       opts.seeds,
		MatchLimit:  firstPositive(opts.maxMatches, cfg.MaxMatches),
		PlayerLimit: firstPositive(opts.maxPlayers, cfg.MaxPlayers),
	}
	stats, err := orch.Run(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}
	printRunSummary(cmd.OutOrStdout(), stats)
	appInstance.Logger().Info("crawl command finished", zap.String("run_id", stats.RunID))
	return nil
}

func printRunSummary(w io.Writer, s crawler.CrawlStats) {
	fmt.Fprintf(w, "run %s (%s) finished in %s\n", s.RunID, s.Region, s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "  players crawled:    %d (skipped %d, discovered %d)\n", s.PlayersCrawled, s.PlayersSkipped, s.PlayersDiscovered)
	fmt.Fprintf(w, "  matches stored:     %d (found %d, duplicates %d, filtered %d)\n",
		s.MatchesStored, s.MatchesFound, s.Duplicates, s.MatchesFiltered)
	fmt.Fprintf(w, "  requests:           %d (rate limited %d, errors %d)\n", s.RequestsMade, s.RateLimitsHit, s.Errors)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
