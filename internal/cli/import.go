package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/pipeline"
)

var (
	importPath      string
	importURL       string
	importPaths     []string
	importURLs      []string
	importTier      string
	importYear      int
	importSchema    string
	importSourceURL string
	importRender    bool
	importParty     string

	cohortIndexURL string
	cohortFromFile string
	cohortLimit    int
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import one kind of source into the store",
	Long: `Import fetches a source, registers it, parses it into records and merges
the records into the canonical store. Every import is idempotent: running it
again on unchanged input changes nothing.

Unreachable sources are reported as warnings. Only configuration problems
(a missing local file, a malformed local file, bad flags) fail the command.`,
}

var importBoundariesCmd = &cobra.Command{
	Use:   "boundaries",
	Short: "Import constituency boundaries from GeoJSON",
	Example: `  tntracker import boundaries --path tn_ac_2021.geojson --tier official
  tntracker import boundaries --url https://example.org/tn_ac.geojson`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Boundaries Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origin, err := singleOrigin()
			if err != nil {
				return nil, err
			}
			tier, err := parseTier()
			if err != nil {
				return nil, err
			}
			return []pipeline.SourceSpec{pipeline.BoundarySpec(origin, tier)}, nil
		})
	},
}

var importAffidavitsCmd = &cobra.Command{
	Use:   "affidavits",
	Short: "Import a candidate affidavit roster CSV",
	Example: `  tntracker import affidavits --path candidates_2026.csv --schema roster@^2
  tntracker import affidavits --path eci_affidavits.csv --schema eci-affidavit --tier official`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Affidavit Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origin, err := singleOrigin()
			if err != nil {
				return nil, err
			}
			tier, err := parseTier()
			if err != nil {
				return nil, err
			}
			return []pipeline.SourceSpec{pipeline.AffidavitSpec(origin, importSchema, importYear, tier)}, nil
		})
	},
}

var importResultsCmd = &cobra.Command{
	Use:     "results",
	Short:   "Import election results from CSV",
	Example: `  tntracker import results --path results_2021.csv --year 2021 --source-url https://results.eci.gov.in/`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Results Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origin, err := singleOrigin()
			if err != nil {
				return nil, err
			}
			return []pipeline.SourceSpec{pipeline.ResultsSpec(origin, yearOr(cfg.Sync.ResultsYear), importSourceURL)}, nil
		})
	},
}

var importResultsPDFCmd = &cobra.Command{
	Use:     "results-pdf",
	Short:   "Import Form 21E result PDFs",
	Example: `  tntracker import results-pdf --path ac001.pdf --path ac002.pdf --year 2021`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Form 21E Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origins := append(append([]string(nil), importPaths...), importURLs...)
			if len(origins) == 0 {
				return nil, errors.NewConfigError("import", "at least one --path or --url is required", nil)
			}
			if err := checkPaths(importPaths); err != nil {
				return nil, err
			}
			return pipeline.Form21ESpecs(origins, yearOr(cfg.Sync.ResultsYear)), nil
		})
	},
}

var importLegalProfileCmd = &cobra.Command{
	Use:     "legal-profile URL",
	Short:   "Import one candidate legal-history profile page",
	Example: `  tntracker import legal-profile "https://www.myneta.info/TamilNadu2021/candidate.php?candidate_id=10" --render`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Legal Profile Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			return []pipeline.SourceSpec{pipeline.ProfileSpec(args[0], yearOr(cfg.Sync.CohortYear), importRender)}, nil
		})
	},
}

var importLegalCohortCmd = &cobra.Command{
	Use:   "legal-cohort",
	Short: "Crawl a cohort index and import every candidate profile",
	Example: `  tntracker import legal-cohort --limit 50
  tntracker import legal-cohort --index-url https://www.myneta.info/TamilNadu2021/
  tntracker import legal-cohort --from-file profiles.txt`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withOrchestrator(cmd, func(ctx context.Context, cfg *model.Config, o *pipeline.Orchestrator) error {
			opts := pipeline.CohortOptions{
				IndexURL: cohortIndexURL,
				FromFile: cohortFromFile,
				Year:     yearOr(cfg.Sync.CohortYear),
				Limit:    cohortLimit,
				Render:   importRender,
			}
			if opts.IndexURL == "" {
				opts.IndexURL = cfg.Sync.CohortIndexURL
			}
			if !cmd.Flags().Changed("limit") {
				opts.Limit = cfg.Sync.CohortLimit
			}
			run, err := o.Cohort(ctx, opts)
			printRunSummary(os.Stderr, "Legal Cohort Import", run)
			return err
		})
	},
}

var importManifestosCmd = &cobra.Command{
	Use:     "manifestos",
	Short:   "Import a manifesto index JSON",
	Example: `  tntracker import manifestos --path manifestos_2026.json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Manifesto Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origin, err := singleOrigin()
			if err != nil {
				return nil, err
			}
			return []pipeline.SourceSpec{pipeline.ManifestoSpec(origin)}, nil
		})
	},
}

var importAssessmentsCmd = &cobra.Command{
	Use:     "assessments",
	Short:   "Import a promise assessment index JSON",
	Example: `  tntracker import assessments --path assessments_2021.json`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Assessment Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			origin, err := singleOrigin()
			if err != nil {
				return nil, err
			}
			return []pipeline.SourceSpec{pipeline.AssessmentSpec(origin)}, nil
		})
	},
}

var importAnnouncementsCmd = &cobra.Command{
	Use:     "announcements",
	Short:   "Import candidate announcements from the configured news sources",
	Example: `  tntracker import announcements --party "Naam Tamilar Katchi"`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, "Announcement Import", func(cfg *model.Config) ([]pipeline.SourceSpec, error) {
			specs := pipeline.AnnouncementSpecs(cfg.Announcements, importParty)
			if len(specs) == 0 {
				return nil, errors.NewConfigError("import", "no announcement sources configured for this party", nil)
			}
			return specs, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	for _, c := range []*cobra.Command{importBoundariesCmd, importAffidavitsCmd, importResultsCmd, importManifestosCmd, importAssessmentsCmd} {
		c.Flags().StringVar(&importPath, "path", "", "local file to import")
		c.Flags().StringVar(&importURL, "url", "", "URL to fetch and import")
		c.MarkFlagsMutuallyExclusive("path", "url")
		c.MarkFlagsOneRequired("path", "url")
	}

	importBoundariesCmd.Flags().StringVar(&importTier, "tier", "", "trust tier (official, secondary_civic, media, community); default from origin")
	importAffidavitsCmd.Flags().StringVar(&importTier, "tier", "", "trust tier; default from origin")
	importAffidavitsCmd.Flags().StringVar(&importSchema, "schema", "", "column schema such as roster@^2 or eci-affidavit (default: auto-detect)")
	importAffidavitsCmd.Flags().IntVar(&importYear, "year", 0, "election year (default: election.year)")

	importResultsCmd.Flags().IntVar(&importYear, "year", 0, "election year (default: sync.results_year)")
	importResultsCmd.Flags().StringVar(&importSourceURL, "source-url", "", "publication the local file was downloaded from; decides its trust tier")

	importResultsPDFCmd.Flags().StringArrayVar(&importPaths, "path", nil, "local Form 21E PDF (repeatable)")
	importResultsPDFCmd.Flags().StringArrayVar(&importURLs, "url", nil, "Form 21E PDF URL (repeatable)")
	importResultsPDFCmd.Flags().IntVar(&importYear, "year", 0, "election year (default: sync.results_year)")

	importLegalProfileCmd.Flags().BoolVar(&importRender, "render", false, "render the page in headless Chrome")
	importLegalProfileCmd.Flags().IntVar(&importYear, "year", 0, "election year (default: sync.cohort_year)")

	importLegalCohortCmd.Flags().StringVar(&cohortIndexURL, "index-url", "", "cohort index page (default: sync.cohort_index_url)")
	importLegalCohortCmd.Flags().StringVar(&cohortFromFile, "from-file", "", "file with one profile URL per line, instead of crawling")
	importLegalCohortCmd.Flags().IntVar(&cohortLimit, "limit", 0, "maximum number of profiles (default: sync.cohort_limit, 0 for all)")
	importLegalCohortCmd.Flags().IntVar(&importYear, "year", 0, "election year (default: sync.cohort_year)")
	importLegalCohortCmd.Flags().BoolVar(&importRender, "render", false, "render profile pages in headless Chrome")

	importAnnouncementsCmd.Flags().StringVar(&importParty, "party", "", "only sources announcing candidates of this party")

	importCmd.AddCommand(
		importBoundariesCmd,
		importAffidavitsCmd,
		importResultsCmd,
		importResultsPDFCmd,
		importLegalProfileCmd,
		importLegalCohortCmd,
		importManifestosCmd,
		importAssessmentsCmd,
		importAnnouncementsCmd,
	)
}

// singleOrigin returns the --path or --url value.
func singleOrigin() (string, error) {
	if importPath != "" {
		if err := checkPaths([]string{importPath}); err != nil {
			return "", err
		}
		return importPath, nil
	}
	if importURL != "" {
		return importURL, nil
	}
	return "", errors.NewConfigError("import", "one of --path or --url is required", nil)
}

func checkPaths(paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return errors.NewConfigError("import", "cannot read "+p, err)
		}
	}
	return nil
}

func parseTier() (model.TrustTier, error) {
	if importTier == "" {
		return model.TierUnknown, nil
	}
	tier, err := model.ParseTrustTier(importTier)
	if err != nil {
		return model.TierUnknown, errors.NewConfigError("import", "invalid --tier", err)
	}
	return tier, nil
}

func yearOr(fallback int) int {
	if importYear != 0 {
		return importYear
	}
	return fallback
}
