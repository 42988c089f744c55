package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/store"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the canonical store",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
			fmt.Printf("✓ Schema is current (%s)\n", s.Driver())
			return nil
		})
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
			counts, err := s.Counts(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%s\n  Store (%s)\n%s\n\n", banner, s.Driver(), banner)
			for _, table := range store.Tables() {
				fmt.Printf("  %-26s %12s\n", table, normalize.FormatIndian(counts[table]))
			}
			fmt.Println()
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd, dbStatsCmd)
}
