package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/match-crawler/internal/crawler"
)

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints dataset statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			st, err := appInstance.Store().Statistics(cmd.Context())
			if err != nil {
				return fmt.Errorf("load statistics: %w", err)
			}
			return printStatistics(cmd.OutOrStdout(), st)
		},
	}
}

func printStatistics(out io.Writer, st crawler.Statistics) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "matches\t%d\n", st.TotalMatches)
	fmt.Fprintf(w, "players\t%d\n", st.TotalPlayers)
	fmt.Fprintf(w, "queued\t%d\n", st.QueueSize)

	if len(st.Patches) > 0 {
		fmt.Fprintln(w, "\nPATCH\tMATCHES\tFIRST SEEN")
		for _, p := range st.Patches {
			fmt.Fprintf(w, "%s\t%d\t%s\n", p.Version, p.MatchCount, p.FirstSeen.Format("2006-01-02 15:04"))
		}
	}
	if len(st.Regions) > 0 {
		fmt.Fprintln(w, "\nREGION\tMATCHES")
		for _, region := range slices.Sorted(maps.Keys(st.Regions)) {
			fmt.Fprintf(w, "%s\t%d\n", region, st.Regions[region])
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write statistics: %w", err)
	}
	return nil
}
