package pipeline

import (
	"context"
	"strings"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// StepResult is the outcome of one sync step
type StepResult struct {
	Step    string
	Summary model.RunSummary
	Err     error  // Configuration problem that stopped the step
	Skipped string // Why the step did not run
}

// Failed reports whether the step needs attention.
func (r StepResult) Failed() bool {
	return r.Err != nil || r.Summary.HasFailures()
}

// Sync runs the configured steps in order. A failing step never stops the
// steps after it.
func (o *Orchestrator) Sync(ctx context.Context, cfg *model.Config) []StepResult {
	steps := cfg.Sync.Steps
	if len(steps) == 0 {
		steps = model.DefaultConfig().Sync.Steps
	}

	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		step = strings.ToLower(strings.TrimSpace(step))
		if o.Stopping() {
			results = append(results, StepResult{Step: step, Skipped: "stopped"})
			continue
		}
		res := o.syncStep(ctx, cfg, step)
		log := o.logger.Info()
		if res.Failed() {
			log = o.logger.Warn().AnErr("error", res.Err)
		}
		log.Str("step", step).Str("run_id", res.Summary.RunID).Str("skipped", res.Skipped).
			Int("failed_sources", len(res.Summary.FailedSources())).Msg("sync step finished")
		results = append(results, res)
	}
	return results
}

func (o *Orchestrator) syncStep(ctx context.Context, cfg *model.Config, step string) StepResult {
	sc := cfg.Sync
	res := StepResult{Step: step}

	var specs []SourceSpec
	switch step {
	case KindBoundaries:
		if sc.BoundaryOrigin != "" {
			specs = append(specs, BoundarySpec(sc.BoundaryOrigin, model.TierUnknown))
		}
	case KindResults:
		if sc.ResultsOrigin != "" {
			specs = append(specs, ResultsSpec(sc.ResultsOrigin, sc.ResultsYear, ""))
		}
	case KindAffidavits:
		if sc.AffidavitsOrigin != "" {
			specs = append(specs, AffidavitSpec(sc.AffidavitsOrigin, sc.AffidavitsSchema, cfg.Election.Year, model.TierUnknown))
		}
	case KindResultsPDF:
		specs = Form21ESpecs(sc.Form21EOrigins, sc.ResultsYear)
	case KindAnnouncements:
		specs = AnnouncementSpecs(cfg.Announcements, "")
	case KindManifestos:
		if sc.ManifestoIndex != "" {
			specs = append(specs, ManifestoSpec(sc.ManifestoIndex))
		}
	case KindAssessments:
		if sc.AssessmentIndex != "" {
			specs = append(specs, AssessmentSpec(sc.AssessmentIndex))
		}
	case KindLegalCohort:
		if sc.CohortIndexURL == "" {
			res.Skipped = "no cohort index configured"
			return res
		}
		res.Summary, res.Err = o.Cohort(ctx, CohortOptions{
			IndexURL: sc.CohortIndexURL,
			Year:     sc.CohortYear,
			Limit:    sc.CohortLimit,
		})
		return res
	default:
		res.Err = errors.NewConfigError("sync", "unknown step "+step, nil)
		return res
	}

	if len(specs) == 0 {
		res.Skipped = "no origin configured"
		return res
	}
	res.Summary, res.Err = o.Run(ctx, specs)
	return res
}
