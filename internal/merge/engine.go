package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/logging"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/resolve"
	"github.com/ppiankov/tntracker/internal/store"
	"github.com/ppiankov/tntracker/internal/worker"
)

// Source is the provenance of the records being merged
type Source struct {
	Doc   model.SourceDocument
	RunID string
}

// Registrar registers documents cited inside records, such as evidence links
type Registrar interface {
	RegisterRef(ctx context.Context, ref model.SourceRef) (model.SourceDocument, error)
}

// Config holds the merge parameters
type Config struct {
	Ranking  model.TrustRanking
	Resolver model.ResolverConfig
	Election model.ElectionConfig
	Now      func() time.Time
}

// Engine merges records into the store. It is safe for concurrent use:
// merges on the same resolution scope are serialized by the locker.
type Engine struct {
	store     *store.Store
	registrar Registrar
	locker    worker.Locker
	resolver  *resolve.Resolver
	policy    Policy
	election  model.ElectionConfig
	now       func() time.Time
	logger    zerolog.Logger
}

// New creates an engine. A nil locker falls back to an in-process one.
func New(s *store.Store, registrar Registrar, locker worker.Locker, cfg Config) *Engine {
	if cfg.Ranking == nil {
		cfg.Ranking = model.DefaultTrustRanking()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if locker == nil {
		locker = worker.NewKeyedMutex()
	}
	return &Engine{
		store:     s,
		registrar: registrar,
		locker:    locker,
		resolver:  resolve.New(cfg.Resolver, cfg.Ranking),
		policy:    Policy{Ranking: cfg.Ranking},
		election:  cfg.Election,
		now:       func() time.Time { return cfg.Now().UTC() },
		logger:    logging.Default().With().Str("component", "merge").Logger(),
	}
}

// Apply merges one parsed record.
func (e *Engine) Apply(ctx context.Context, src Source, rec model.Record) (model.Outcome, error) {
	switch r := rec.(type) {
	case *model.CandidateRecord:
		_, outcome, err := e.MergeCandidate(ctx, src, r)
		return outcome, err
	case *model.ConstituencyRecord:
		return e.MergeBoundary(ctx, src, r)
	case *model.ManifestoRecord:
		return e.MergeManifesto(ctx, src, r)
	case *model.AssessmentRecord:
		return e.MergeAssessment(ctx, src, r)
	case *model.ClaimRecord:
		return e.MergeClaim(ctx, src, r)
	default:
		return model.OutcomeSkipped, fmt.Errorf("merge: %w: record type %T", errors.ErrInvalidInput, rec)
	}
}

// lock serializes merges on key.
func (e *Engine) lock(ctx context.Context, key string) (func(), error) {
	unlock, err := e.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

func (e *Engine) year(y int) int {
	if y != 0 {
		return y
	}
	return e.election.Year
}

func (e *Engine) electionName(year int) string {
	if year == e.election.Year && e.election.Name != "" {
		return e.election.Name
	}
	name := e.election.Name
	if name == "" {
		name = "Election"
	}
	return fmt.Sprintf("%s %d", name, year)
}

// finish writes the one log entry of a merge and maps it to an outcome.
// A merge that changed nothing is logged as confirmed once per source.
func (e *Engine) finish(ctx context.Context, q *store.Queries, src Source, entityType model.EntityType, id int64,
	created bool, changes, kept []model.FieldChange, notes string) (model.Outcome, error) {
	entry := model.UpdateLogEntry{
		EntityType:       entityType,
		EntityID:         id,
		SourceDocumentID: src.Doc.ID,
		RunID:            src.RunID,
		Changes:          changes,
		Kept:             kept,
		Notes:            notes,
		CreatedAt:        e.now(),
	}
	outcome := model.OutcomeUnchanged
	switch {
	case created:
		entry.Action = model.ActionCreated
		outcome = model.OutcomeCreated
	case len(changes) > 0:
		entry.Action = model.ActionUpdated
		outcome = model.OutcomeUpdated
	default:
		seen, err := q.HasLogEntry(ctx, entityType, id, src.Doc.ID)
		if err != nil {
			return "", err
		}
		if seen {
			return model.OutcomeUnchanged, nil
		}
		entry.Action = model.ActionConfirmed
	}
	if err := q.AppendLog(ctx, &entry); err != nil {
		return "", err
	}
	if len(kept) > 0 {
		e.logger.Debug().
			Str("entity_type", string(entityType)).
			Int64("entity_id", id).
			Int64("source_id", src.Doc.ID).
			Int("kept", len(kept)).
			Msg("Kept stored values over a lower-ranked source")
	}
	return outcome, nil
}

// queueReview holds a record back for a human decision.
func (e *Engine) queueReview(ctx context.Context, q *store.Queries, src Source, entityType model.EntityType,
	rec any, key, reason string, scored []resolve.Scored) (model.Outcome, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode review record: %w", err)
	}
	item := model.ReviewItem{
		EntityType:       entityType,
		SourceDocumentID: src.Doc.ID,
		Reason:           reason,
		Record:           raw,
		CreatedAt:        e.now(),
	}
	for _, s := range scored {
		item.Candidates = append(item.Candidates, model.ReviewCandidate{EntityID: s.Ref.ID, Name: s.Ref.Name, Score: s.Score})
	}
	created, err := q.AddReviewItem(ctx, &item, key)
	if err != nil {
		return "", err
	}
	if created {
		e.logger.Info().
			Str("entity_type", string(entityType)).
			Int64("source_id", src.Doc.ID).
			Str("reason", reason).
			Msg("Queued record for review")
	}
	return model.OutcomeNeedsReview, nil
}
