package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/store"
)

var reviewStatus string

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect records held back for a human decision",
	Long: `Records the resolver could not match with confidence are never merged.
They are queued for review together with the entities that came close.`,
}

var reviewListCmd = &cobra.Command{
	Use:     "list",
	Short:   "List review items",
	Example: `  tntracker review list --status resolved`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status := model.ReviewStatus(strings.ToLower(reviewStatus))
		if status != model.ReviewOpen && status != model.ReviewResolved {
			return errors.NewConfigError("review", fmt.Sprintf("invalid --status %q (open, resolved)", reviewStatus), nil)
		}
		return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
			items, err := s.ReviewItems(ctx, status)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Printf("No %s review items\n", status)
				return nil
			}
			for _, item := range items {
				fmt.Printf("#%d %s from source %d: %s [%s]\n",
					item.ID, item.EntityType, item.SourceDocumentID, item.Reason, item.CreatedAt.Format("2006-01-02 15:04"))
				fmt.Printf("    record: %s\n", item.Record)
				for _, c := range item.Candidates {
					fmt.Printf("    ~ %s #%d %q (score %.2f)\n", item.EntityType, c.EntityID, c.Name, c.Score)
				}
			}
			fmt.Printf("\n%d %s items\n", len(items), status)
			return nil
		})
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:     "resolve ID",
	Short:   "Mark a review item as resolved",
	Example: `  tntracker review resolve 12`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.NewConfigError("review", "invalid id "+args[0], err)
		}
		return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
			ok, err := s.ResolveReviewItem(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				return errors.NewNotFoundError("review item", args[0])
			}
			fmt.Printf("✓ Resolved review item #%d\n", id)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewListCmd.Flags().StringVar(&reviewStatus, "status", string(model.ReviewOpen), "open or resolved")
	reviewCmd.AddCommand(reviewListCmd, reviewResolveCmd)
}
