package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/store"
)

// logCmd represents the log command
var logCmd = &cobra.Command{
	Use:   "log ENTITY_TYPE ID",
	Short: "Show the update history and field provenance of an entity",
	Long: `Log prints every update log entry recorded for an entity, oldest first,
followed by the source and trust tier behind each canonical field.

Entity types: candidate, constituency, party, coalition, manifesto,
promise_assessment (assessment), fulfilment_claim (claim).`,
	Example: `  tntracker log candidate 42
  tntracker log constituency 1`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := model.ParseEntityType(args[0])
		if err != nil {
			return errors.NewConfigError("log", "invalid entity type", err)
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return errors.NewConfigError("log", "invalid id "+args[1], err)
		}

		return withStore(cmd, func(ctx context.Context, cfg *model.Config, s *store.Store) error {
			entries, err := s.UpdateLog(ctx, entityType, id)
			if err != nil {
				return err
			}
			prov, err := s.Provenance(ctx, entityType, id)
			if err != nil {
				return err
			}
			if len(entries) == 0 && len(prov) == 0 {
				return errors.NewNotFoundError(string(entityType), args[1])
			}

			origins := make(map[int64]string)
			origin := func(docID int64) string {
				if o, ok := origins[docID]; ok {
					return o
				}
				o := "?"
				if doc, err := s.SourceDocument(ctx, docID); err == nil {
					o = doc.Origin
				}
				origins[docID] = o
				return o
			}

			fmt.Printf("%s\n  %s #%d\n%s\n\n", banner, entityType, id, banner)
			for _, e := range entries {
				fmt.Printf("%s  %-9s  source %d (%s)", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.SourceDocumentID, origin(e.SourceDocumentID))
				if e.RunID != "" {
					fmt.Printf("  run %s", e.RunID)
				}
				fmt.Println()
				for _, c := range e.Changes {
					fmt.Printf("    %s: %v -> %v (%s)\n", c.Field, display(c.Previous), display(c.Value), c.Reason)
				}
				for _, c := range e.Kept {
					fmt.Printf("    %s: kept %v over %v (stored tier %s)\n", c.Field, display(c.Previous), display(c.Value), c.PrevTier)
				}
				if e.Notes != "" {
					fmt.Printf("    note: %s\n", e.Notes)
				}
			}

			if len(prov) > 0 {
				fmt.Printf("\nProvenance:\n")
				for _, field := range slices.Sorted(maps.Keys(prov)) {
					p := prov[field]
					known := ""
					if !p.Known {
						known = " (reported unknown)"
					}
					fmt.Printf("  %-24s %-16s source %d (%s)%s\n", field, p.Tier, p.SourceDocumentID, origin(p.SourceDocumentID), known)
				}
			}
			fmt.Println()
			return nil
		})
	},
}

func display(v any) any {
	if v == nil {
		return "∅"
	}
	return v
}

func init() {
	rootCmd.AddCommand(logCmd)
}
