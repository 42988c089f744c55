package pipeline

import (
	"context"
	"time"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/extract/adapters"
	"github.com/ppiankov/tntracker/internal/fetch"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/worker"
)

// CohortOptions selects the candidate profiles of a legal-history cohort
type CohortOptions struct {
	IndexURL string // Index page linking constituency listings
	FromFile string // One profile URL per line, replaces the crawl
	Year     int
	Limit    int // Maximum number of profiles, 0 for all
	Render   bool
}

// Cohort crawls the index for candidate profiles and imports each one.
// Index and listing pages that cannot be read show up as failed sources.
func (o *Orchestrator) Cohort(ctx context.Context, opts CohortOptions) (model.RunSummary, error) {
	var (
		profiles  []string
		discovery []model.SourceSummary
	)
	if opts.FromFile != "" {
		origins, err := worker.ReadOriginsFromFile(opts.FromFile)
		if err != nil {
			return model.RunSummary{}, errors.NewConfigError("cohort", "cannot read "+opts.FromFile, err)
		}
		profiles = limitOrigins(origins, opts.Limit)
	} else {
		if opts.IndexURL == "" {
			return model.RunSummary{}, errors.NewConfigError("cohort", "an index URL or a file of profile URLs is required", nil)
		}
		var err error
		profiles, discovery, err = o.discoverCohort(ctx, opts)
		if err != nil {
			return model.RunSummary{}, err
		}
	}

	specs := make([]SourceSpec, 0, len(profiles))
	for _, p := range profiles {
		specs = append(specs, ProfileSpec(p, opts.Year, opts.Render))
	}
	run, err := o.Run(ctx, specs)
	run.Sources = append(discovery, run.Sources...)
	return run, err
}

// discoverCohort reads the index and its listing pages. Pages that fail are
// returned as failed source summaries.
func (o *Orchestrator) discoverCohort(ctx context.Context, opts CohortOptions) ([]string, []model.SourceSummary, error) {
	cohort := adapters.NewCohortAdapter()
	log := o.logger.With().Str("source", KindLegalCohort).Str("origin", opts.IndexURL).Logger()

	var failures []model.SourceSummary
	failed := func(origin string, start time.Time, err error) {
		sum := model.SourceSummary{Name: KindLegalCohort, Origin: origin, State: model.StateFailedSource, Err: err, Error: err.Error()}
		sum.Warn("cohort page failed: %v", err)
		sum.Duration = time.Since(start)
		failures = append(failures, sum)
		log.Warn().Err(err).Str("page", origin).Msg("cohort page failed")
	}

	start := time.Now()
	links, err := o.cohortLinks(ctx, cohort, opts.IndexURL)
	if err != nil {
		if !fetch.IsRemote(opts.IndexURL) {
			return nil, nil, errors.NewConfigError("cohort", "cannot read index "+opts.IndexURL, err)
		}
		failed(opts.IndexURL, start, err)
		return nil, failures, nil
	}

	var profiles []string
	seen := make(map[string]bool)
	for _, link := range links {
		if o.Stopping() || (opts.Limit > 0 && len(profiles) >= opts.Limit) {
			break
		}
		start := time.Now()
		page, err := o.router.Fetch(ctx, link)
		if err != nil {
			failed(link, start, err)
			continue
		}
		listing, err := cohort.Listing(page.Bytes, baseURL(page, link))
		if err != nil {
			failed(link, start, err)
			continue
		}
		log.Debug().Str("page", link).Str("constituency", listing.Constituency).
			Int("candidates", len(listing.Candidates)).Msg("cohort listing")
		for _, c := range listing.Candidates {
			if !seen[c] {
				seen[c] = true
				profiles = append(profiles, c)
			}
		}
	}
	log.Info().Int("listings", len(links)).Int("profiles", len(profiles)).Msg("cohort discovered")
	return limitOrigins(profiles, opts.Limit), failures, nil
}

func (o *Orchestrator) cohortLinks(ctx context.Context, cohort *adapters.CohortAdapter, indexURL string) ([]string, error) {
	index, err := o.router.Fetch(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	return cohort.ConstituencyLinks(index.Bytes, baseURL(index, indexURL))
}

func baseURL(c *fetch.Content, fallback string) string {
	if c.FinalURL != "" && fetch.IsRemote(c.FinalURL) {
		return c.FinalURL
	}
	return fallback
}

func limitOrigins(origins []string, limit int) []string {
	if limit > 0 && len(origins) > limit {
		return origins[:limit]
	}
	return origins
}
