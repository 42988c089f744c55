package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/ppiankov/tntracker/internal/archive"
	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/extract"
	"github.com/ppiankov/tntracker/internal/extract/adapters"
	"github.com/ppiankov/tntracker/internal/fetch"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/merge"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/registry"
	"github.com/ppiankov/tntracker/internal/store"
	"github.com/ppiankov/tntracker/internal/trust"
	"github.com/ppiankov/tntracker/internal/worker"
)

// SourceSpec describes one source to import
type SourceSpec struct {
	Name   string
	Origin string         // URL or local path
	Parser extract.Parser // Nil selects a page adapter from the fetched URL
	Tier   model.TrustTier
	Render bool // Fetch through the headless browser

	// TrustOrigin is classified instead of Origin when set, for local copies
	// of published documents.
	TrustOrigin string
	Title       string

	Year    int
	Schema  string
	Party   string
	Pattern string
}

// Orchestrator runs sources through fetch, parse and merge
type Orchestrator struct {
	router     *fetch.Router
	registry   *registry.Registry
	engine     *merge.Engine
	classifier *trust.Classifier
	adapters   *adapters.Registry
	election   model.ElectionConfig
	workers    int
	metrics    *metrics
	logger     zerolog.Logger
	closers    []func() error

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures an Orchestrator
type Option func(*options)

type options struct {
	router  *fetch.Router
	locker  worker.Locker
	archive archive.Archiver
	now     func() time.Time
	meters  metric.MeterProvider
}

// WithRouter replaces the fetchers built from configuration.
func WithRouter(r *fetch.Router) Option {
	return func(o *options) { o.router = r }
}

// WithLocker replaces the configured merge lock.
func WithLocker(l worker.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithArchive replaces the configured raw document archive.
func WithArchive(a archive.Archiver) Option {
	return func(o *options) { o.archive = a }
}

// WithClock replaces time.Now for merges and registrations.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMeterProvider records run metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meters = mp }
}

// New wires an orchestrator over s from configuration
func New(ctx context.Context, s *store.Store, cfg *model.Config, opts ...Option) (*Orchestrator, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ranking, err := model.NewTrustRanking(cfg.Trust.Order)
	if err != nil {
		return nil, errors.NewConfigError("trust", "invalid tier order", err)
	}

	orch := &Orchestrator{
		classifier: trust.NewClassifier(&cfg.Trust),
		adapters:   adapters.NewRegistry(),
		election:   cfg.Election,
		workers:    cfg.Concurrency.Workers,
		metrics:    newMetrics(o.meters),
		logger:     logging.Default().With().Str("component", "pipeline").Logger(),
		stopCh:     make(chan struct{}),
	}

	orch.router = o.router
	if orch.router == nil {
		router, closeBrowser := NewRouter(cfg)
		orch.router = router
		orch.closers = append(orch.closers, closeBrowser)
	}

	locker := o.locker
	if locker == nil {
		l, closeLock, err := NewLocker(ctx, cfg.Lock)
		if err != nil {
			orch.Close()
			return nil, err
		}
		locker = l
		orch.closers = append(orch.closers, closeLock)
	}

	arch := o.archive
	if arch == nil {
		if arch, err = archive.New(ctx, cfg.Archive); err != nil {
			orch.Close()
			return nil, err
		}
	}

	var regOpts []registry.Option
	regOpts = append(regOpts, registry.WithArchive(arch))
	if o.now != nil {
		regOpts = append(regOpts, registry.WithClock(o.now))
	}
	orch.registry = registry.New(s, regOpts...)
	orch.engine = merge.New(s, orch.registry, locker, merge.Config{
		Ranking:  ranking,
		Resolver: cfg.Resolver,
		Election: cfg.Election,
		Now:      o.now,
	})
	return orch, nil
}

// Registry returns the source document registry.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Stop halts enqueueing of new sources and records. Merges already running
// finish.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
}

// Stopping reports whether Stop was called.
func (o *Orchestrator) Stopping() bool {
	select {
	case <-o.stopCh:
		return true
	default:
		return false
	}
}

// Close releases the browser and lock connections.
func (o *Orchestrator) Close() {
	for _, c := range o.closers {
		if err := c(); err != nil {
			o.logger.Warn().Err(err).Msg("close")
		}
	}
	o.closers = nil
}

// sourceJob runs one source on the pool
type sourceJob struct {
	orch  *Orchestrator
	index int
	runID string
	spec  SourceSpec
}

type sourceResult struct {
	index   int
	summary model.SourceSummary
	err     error
}

func (r sourceResult) GetError() error {
	return r.err
}

func (j sourceJob) Execute(ctx context.Context) worker.Result {
	summary, err := j.orch.processSource(ctx, j.runID, j.spec)
	return sourceResult{index: j.index, summary: summary, err: err}
}

// Run imports specs on the worker pool. Source failures are recorded in the
// summary; the returned error is set only for configuration problems such
// as a missing or malformed local file.
func (o *Orchestrator) Run(ctx context.Context, specs []SourceSpec) (model.RunSummary, error) {
	run := model.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Sources:   make([]model.SourceSummary, len(specs)),
	}
	for i, spec := range specs {
		run.Sources[i] = model.SourceSummary{Name: spec.Name, Origin: spec.Origin, State: model.StatePending}
	}

	log := o.logger.With().Str("run_id", run.RunID).Logger()
	log.Info().Int("sources", len(specs)).Msg("run started")

	pool := worker.NewPool(ctx, o.workers)
	pool.Start()

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-o.stopCh:
			pool.Stop()
		case <-watchDone:
		}
	}()

	for i, spec := range specs {
		if o.Stopping() || !pool.Submit(sourceJob{orch: o, index: i, runID: run.RunID, spec: spec}) {
			break
		}
	}

	errs := make([]error, len(specs))
	for _, res := range pool.Wait() {
		sr := res.(sourceResult)
		run.Sources[sr.index] = sr.summary
		errs[sr.index] = sr.err
	}
	close(watchDone)

	var configErr error
	for _, err := range errs {
		if err != nil {
			configErr = err
			break
		}
	}

	run.Stopped = o.Stopping()
	run.FinishedAt = time.Now().UTC()

	totals := run.Totals()
	log.Info().
		Int("created", totals.Created).
		Int("updated", totals.Updated).
		Int("unchanged", totals.Unchanged).
		Int("skipped", totals.Skipped).
		Int("needs_review", totals.NeedsReview).
		Int("failed", totals.Failed).
		Int("failed_sources", len(run.FailedSources())).
		Bool("stopped", run.Stopped).
		Msg("run finished")

	return run, configErr
}

// processSource walks one source through the state machine. The error is a
// ConfigError when a local input is missing or malformed.
func (o *Orchestrator) processSource(ctx context.Context, runID string, spec SourceSpec) (sum model.SourceSummary, err error) {
	sum = model.SourceSummary{Name: spec.Name, Origin: spec.Origin, State: model.StatePending}
	start := time.Now()
	log := o.logger.With().Str("run_id", runID).Str("source", spec.Name).Str("origin", spec.Origin).Logger()
	defer func() {
		sum.Duration = time.Since(start)
		o.metrics.source(ctx, spec, sum)
	}()

	o.transition(&sum, model.StateFetching, log)
	content, err := o.router.FetchRendered(ctx, spec.Origin, spec.Render)
	if err != nil {
		err = o.fail(&sum, spec, "fetch", err, log)
		return sum, err
	}

	tierOrigin := spec.Origin
	if spec.TrustOrigin != "" {
		tierOrigin = spec.TrustOrigin
	}
	tier := spec.Tier
	if tier == model.TierUnknown {
		tier = o.classifier.Classify(tierOrigin)
	}
	doc, _, err := o.registry.Register(ctx, registry.Document{
		Origin:      spec.Origin,
		Title:       spec.Title,
		Tier:        tier,
		Notes:       notes(spec),
		Content:     content.Bytes,
		RetrievedAt: content.FetchedAt,
	})
	if err != nil {
		err = o.fail(&sum, spec, "register", err, log)
		return sum, err
	}
	sum.SourceDocumentID = doc.ID
	log = log.With().Int64("source_document_id", doc.ID).Logger()

	o.transition(&sum, model.StateParsing, log)
	parser := spec.Parser
	if parser == nil {
		parser = o.adapters.FindAdapter(content.FinalURL, content.ContentType)
	}
	origin := spec.Origin
	if content.FinalURL != "" {
		origin = content.FinalURL
	}
	records, unitErrs, fatal := extract.Collect(parser.Parse(extract.Input{
		SourceID:              doc.ID,
		Origin:                origin,
		Data:                  content.Bytes,
		Tier:                  doc.Tier,
		Year:                  o.year(spec.Year),
		Schema:                spec.Schema,
		Party:                 spec.Party,
		Pattern:               spec.Pattern,
		MaxConstituencyNumber: o.election.MaxConstituencyNumber,
	}))
	if fatal != nil {
		err = o.fail(&sum, spec, "parse", fatal, log)
		return sum, err
	}
	for _, ue := range unitErrs {
		sum.Count(model.OutcomeFailed)
		sum.Warn("%v", ue)
		log.Warn().Err(ue).Msg("record not parsed")
	}

	o.transition(&sum, model.StateResolvingMerging, log)
	src := merge.Source{Doc: doc, RunID: runID}
	for i, rec := range records {
		if o.Stopping() {
			sum.Warn("stopped with %d of %d records merged", i, len(records))
			break
		}
		meta := rec.Meta()
		for _, w := range meta.Warnings {
			sum.Warn("row %d: %s", meta.Row, w)
		}
		outcome, err := o.engine.Apply(ctx, src, rec)
		if err != nil {
			outcome = model.OutcomeSkipped
			sum.Warn("row %d skipped: %v", meta.Row, err)
			log.Warn().Err(err).Int("row", meta.Row).Msg("record skipped")
		}
		sum.Count(outcome)
		o.metrics.record(ctx, parser.Format(), outcome)
	}

	o.transition(&sum, model.StateCompleted, log)
	log.Info().
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("unchanged", sum.Unchanged).
		Int("skipped", sum.Skipped).
		Int("needs_review", sum.NeedsReview).
		Int("failed", sum.Failed).
		Msg("source completed")
	return sum, nil
}

func (o *Orchestrator) transition(sum *model.SourceSummary, state model.SourceState, log zerolog.Logger) {
	sum.State = state
	log.Debug().Str("state", string(state)).Msg("source state")
}

// fail marks the source failed. Problems with a local input are returned as
// configuration errors; everything else is only a warning.
func (o *Orchestrator) fail(sum *model.SourceSummary, spec SourceSpec, stage string, err error, log zerolog.Logger) error {
	sum.State = model.StateFailedSource
	sum.Err = err
	sum.Error = fmt.Sprintf("%s: %v", stage, err)
	sum.Warn("%s failed: %v", stage, err)
	log.Warn().Err(err).Str("stage", stage).Str("state", string(model.StateFailedSource)).Msg("source failed")

	if errors.IsConfigError(err) {
		return err
	}
	if fetch.IsRemote(spec.Origin) {
		return nil
	}
	switch stage {
	case "fetch":
		return errors.NewConfigError("import", "cannot read "+spec.Origin, err)
	case "parse":
		return errors.NewConfigError("import", "malformed input "+spec.Origin, err)
	}
	return nil
}

func (o *Orchestrator) year(y int) int {
	if y != 0 {
		return y
	}
	return o.election.Year
}

func notes(spec SourceSpec) string {
	if spec.TrustOrigin != "" && spec.TrustOrigin != spec.Origin {
		return "copy of " + spec.TrustOrigin
	}
	return ""
}
