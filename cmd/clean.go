package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCleanCmd creates the 'clean' subcommand.
func newCleanCmd() *cobra.Command {
	var keep string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Deletes matches from other patches and compacts the database",
		Long: `Deletes every match whose patch (major.minor) differs from --keep-version,
then runs VACUUM. Without --keep-version the current live version is used.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if keep == "" {
				keep = appInstance.Oracle().Resolve(cmd.Context())
			}
			deleted, err := appInstance.Store().PurgeOtherVersions(cmd.Context(), keep)
			if err != nil {
				return fmt.Errorf("purge versions: %w", err)
			}
			appInstance.Logger().Info("old patches purged", zap.String("kept", keep), zap.Int64("deleted", deleted))
			fmt.Fprintf(cmd.OutOrStdout(), "kept %s, deleted %d matches\n", keep, deleted)
			return nil
		},
	}
	cmd.Flags().StringVar(&keep, "keep-version", "", "version to keep, e.g. 14.24 (default: current live version)")
	return cmd
}
