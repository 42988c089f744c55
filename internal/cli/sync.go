package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/pipeline"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run every configured import step in order",
	Long: `Sync runs the import steps listed under sync.steps in the configuration,
each against its configured origin. A failing step is reported and the
remaining steps still run. Steps without a configured origin are skipped.`,
	Example: `  tntracker sync
  tntracker sync --config ./tntracker.yaml -v`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(cmd, func(ctx context.Context, cfg *model.Config, o *pipeline.Orchestrator) error {
			results := o.Sync(ctx, cfg)

			var firstErr error
			failed := 0
			for _, res := range results {
				switch {
				case res.Skipped != "":
					fmt.Fprintf(os.Stderr, "· %s skipped: %s\n", res.Step, res.Skipped)
					continue
				case res.Err != nil:
					fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Step, res.Err)
					if firstErr == nil {
						firstErr = res.Err
					}
				}
				if res.Failed() {
					failed++
				}
				if len(res.Summary.Sources) > 0 {
					printRunSummary(os.Stderr, "Sync: "+res.Step, res.Summary)
				}
			}

			fmt.Fprintf(os.Stderr, "%s\n  Sync finished: %d steps, %d need attention\n%s\n", banner, len(results), failed, banner)
			return firstErr
		})
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
