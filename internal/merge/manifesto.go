package merge

import (
	"context"
	"fmt"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/resolve"
	"github.com/ppiankov/tntracker/internal/store"
)

// entrySource registers the document an index entry cites. Entries without
// their own reference stay attributed to the index.
func (e *Engine) entrySource(ctx context.Context, src Source, ref model.SourceRef) (Source, error) {
	if e.registrar == nil || ref.Origin == "" {
		return src, nil
	}
	doc, err := e.registrar.RegisterRef(ctx, ref)
	if err != nil {
		return Source{}, fmt.Errorf("register %s: %w", ref.Origin, err)
	}
	return Source{Doc: doc, RunID: src.RunID}, nil
}

func (e *Engine) ensureElection(ctx context.Context, year int) (model.Election, error) {
	return e.store.EnsureElection(ctx, year, e.electionName(year))
}

// MergeManifesto stores a manifesto entry with its documents and promises.
// Parties and coalitions named by the entry are created when missing; a
// constituency must already exist.
func (e *Engine) MergeManifesto(ctx context.Context, src Source, rec *model.ManifestoRecord) (model.Outcome, error) {
	entry, err := e.entrySource(ctx, src, rec.Source)
	if err != nil {
		return model.OutcomeSkipped, err
	}
	election, err := e.ensureElection(ctx, e.year(rec.Year))
	if err != nil {
		return model.OutcomeSkipped, err
	}

	partyID, err := e.EnsureParty(ctx, entry, rec.Party)
	if err != nil {
		return model.OutcomeSkipped, err
	}
	var coalitionID *int64
	if rec.Coalition != "" {
		var members []int64
		for _, name := range rec.Members {
			id, err := e.EnsureParty(ctx, entry, name)
			if err != nil {
				return model.OutcomeSkipped, err
			}
			if id != nil {
				members = append(members, *id)
			}
		}
		if partyID != nil {
			members = append(members, *partyID)
		}
		if coalitionID, err = e.EnsureCoalition(ctx, entry, rec.Coalition, &election.ID, members); err != nil {
			return model.OutcomeSkipped, err
		}
	}
	if partyID == nil && coalitionID == nil {
		return model.OutcomeSkipped, fmt.Errorf("manifesto: %w: no party or coalition", errors.ErrInvalidInput)
	}

	m := model.Manifesto{
		PartyID:          partyID,
		CoalitionID:      coalitionID,
		ElectionID:       &election.ID,
		SourceDocumentID: entry.Doc.ID,
		Summary:          rec.Summary,
		SummaryTa:        rec.SummaryTa,
		DocumentURL:      rec.DocumentURL,
		PublishedAt:      rec.PublishedAt,
	}
	var notes string
	if rec.Constituency != "" {
		key := fmt.Sprintf("manifesto:%d:%s", rec.Row, normalize.Name(rec.Constituency))
		cid, outcome, err := e.ensureConstituency(ctx, entry, constituencyClaim{Name: rec.Constituency}, false, rec, key)
		if err != nil || outcome == model.OutcomeNeedsReview {
			return outcome, err
		}
		m.ConstituencyID = &cid

		if rec.Candidate != "" {
			candidateID, reason, err := e.findCandidate(ctx, cid, election.Year, partyID, rec.Candidate, entry)
			if err != nil {
				return model.OutcomeSkipped, err
			}
			m.CandidateID = candidateID
			notes = reason
		}
	}

	var outcome model.Outcome
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		created, err := q.InsertManifesto(ctx, &m)
		if err != nil {
			return err
		}
		var changes []model.FieldChange
		for _, d := range rec.Documents {
			doc := model.ManifestoDocument{ManifestoID: m.ID, Language: d.Language, URL: d.URL, Title: d.Title}
			added, err := q.AddManifestoDocument(ctx, &doc)
			if err != nil {
				return err
			}
			if added {
				changes = append(changes, model.FieldChange{Field: "document", Value: d.Language + " " + d.URL, Reason: model.ReasonSnapshot})
			}
		}
		for _, p := range rec.Promises {
			promise := model.ManifestoPromise{ManifestoID: m.ID, Slug: p.Slug, Text: p.Text, TextTa: p.TextTa, Category: p.Category}
			added, err := q.AddPromise(ctx, &promise)
			if err != nil {
				return err
			}
			if added {
				changes = append(changes, model.FieldChange{Field: "promise", Value: p.Slug, Reason: model.ReasonSnapshot})
			}
		}
		outcome, err = e.finish(ctx, q, entry, model.EntityManifesto, m.ID, created, changes, nil, notes)
		return err
	})
	if err != nil {
		return model.OutcomeSkipped, err
	}
	return outcome, nil
}

// findCandidate links a manifesto to an existing candidate. An unmatched
// name leaves the manifesto unlinked and says so in the notes.
func (e *Engine) findCandidate(ctx context.Context, constituencyID int64, year int, partyID *int64, name string,
	src Source) (*int64, string, error) {
	refs, err := e.store.CandidateRefs(ctx, constituencyID, year, e.policy.Ranking)
	if err != nil {
		return nil, "", err
	}
	res := e.resolver.Resolve(resolve.Query{
		Name:           normalize.Name(name),
		ConstituencyID: &constituencyID,
		PartyID:        partyID,
		Year:           year,
		Tier:           src.Doc.Tier,
	}, refs)
	if res.Kind != resolve.Matched {
		return nil, fmt.Sprintf("candidate %q not linked: %s", name, res.Reason), nil
	}
	return &res.Ref.ID, res.Reason, nil
}

// MergeAssessment stores a promise assessment with its evidence links. The
// promise must already be imported.
func (e *Engine) MergeAssessment(ctx context.Context, src Source, rec *model.AssessmentRecord) (model.Outcome, error) {
	election, err := e.ensureElection(ctx, e.year(rec.Year))
	if err != nil {
		return model.OutcomeSkipped, err
	}

	var partyID, coalitionID *int64
	if rec.Party != "" {
		if partyID, err = e.lookupParty(ctx, rec.Party); err != nil {
			return model.OutcomeSkipped, fmt.Errorf("assessment %s: %w", rec.PromiseSlug, err)
		}
	}
	if rec.Coalition != "" {
		c, err := e.store.CoalitionByName(ctx, normalize.Name(rec.Coalition), &election.ID)
		if err != nil {
			return model.OutcomeSkipped, fmt.Errorf("assessment %s: %w", rec.PromiseSlug, err)
		}
		coalitionID = &c.ID
	}
	if partyID == nil && coalitionID == nil {
		return model.OutcomeSkipped, fmt.Errorf("assessment %s: %w: no party or coalition", rec.PromiseSlug, errors.ErrInvalidInput)
	}

	promise, err := e.store.FindPromise(ctx, rec.PromiseSlug, partyID, coalitionID, &election.ID)
	if err != nil {
		if errors.IsNotFound(err) {
			return model.OutcomeSkipped, fmt.Errorf("assessment %s: %w: promise not imported", rec.PromiseSlug, ErrUnresolved)
		}
		return model.OutcomeSkipped, err
	}

	entry, err := e.entrySource(ctx, src, rec.Source)
	if err != nil {
		return model.OutcomeSkipped, err
	}

	a := model.PromiseAssessment{
		PromiseID:        promise.ID,
		Scope:            rec.Scope,
		PartyID:          partyID,
		SourceDocumentID: entry.Doc.ID,
		AsOf:             rec.AsOf,
		Status:           rec.Status,
		Score:            fieldPtr(rec.Score),
		Summary:          rec.Summary,
		SummaryTa:        rec.SummaryTa,
	}
	if a.Scope == "" {
		a.Scope = model.ScopeState
	}
	if a.Scope == model.ScopeConstituency {
		key := fmt.Sprintf("assessment:%d:%s", rec.Row, normalize.Name(rec.Constituency))
		cid, outcome, err := e.ensureConstituency(ctx, entry, constituencyClaim{Name: rec.Constituency}, false, rec, key)
		if err != nil || outcome == model.OutcomeNeedsReview {
			return outcome, err
		}
		a.ConstituencyID = &cid
	}
	if partyID != nil {
		claim, err := e.store.LatestClaim(ctx, *partyID, &election.ID)
		switch {
		case err == nil:
			a.ClaimID = &claim.ID
		case !errors.IsNotFound(err):
			return model.OutcomeSkipped, err
		}
	}

	evidence := make([]model.PromiseEvidence, 0, len(rec.Evidence))
	for _, ev := range rec.Evidence {
		doc, err := e.entrySource(ctx, entry, ev.Source)
		if err != nil {
			return model.OutcomeSkipped, err
		}
		evidence = append(evidence, model.PromiseEvidence{
			SourceDocumentID: doc.Doc.ID,
			URL:              ev.URL,
			Quote:            ev.Quote,
			PublishedAt:      ev.PublishedAt,
		})
	}

	var outcome model.Outcome
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		created, err := q.InsertAssessment(ctx, &a)
		if err != nil {
			return err
		}
		var changes []model.FieldChange
		for i := range evidence {
			ev := &evidence[i]
			ev.AssessmentID = a.ID
			added, err := q.AddEvidence(ctx, ev)
			if err != nil {
				return err
			}
			if added {
				changes = append(changes, model.FieldChange{Field: "evidence", Value: ev.URL, Reason: model.ReasonSnapshot})
			}
		}
		outcome, err = e.finish(ctx, q, entry, model.EntityAssessment, a.ID, created, changes, nil, "")
		return err
	})
	if err != nil {
		return model.OutcomeSkipped, err
	}
	return outcome, nil
}

// MergeClaim stores a party fulfilment claim, creating the party if needed.
func (e *Engine) MergeClaim(ctx context.Context, src Source, rec *model.ClaimRecord) (model.Outcome, error) {
	entry, err := e.entrySource(ctx, src, rec.Source)
	if err != nil {
		return model.OutcomeSkipped, err
	}
	election, err := e.ensureElection(ctx, e.year(rec.Year))
	if err != nil {
		return model.OutcomeSkipped, err
	}
	partyID, err := e.EnsureParty(ctx, entry, rec.Party)
	if err != nil {
		return model.OutcomeSkipped, err
	}
	if partyID == nil {
		return model.OutcomeSkipped, fmt.Errorf("claim: %w: no party", errors.ErrInvalidInput)
	}

	c := model.PartyFulfilmentClaim{
		PartyID:          *partyID,
		ElectionID:       &election.ID,
		SourceDocumentID: entry.Doc.ID,
		AsOf:             rec.AsOf,
		ClaimedPercent:   rec.ClaimedPercent,
		ClaimedBy:        rec.ClaimedBy,
		Snippet:          rec.Snippet,
	}
	var outcome model.Outcome
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		created, err := q.InsertClaim(ctx, &c)
		if err != nil {
			return err
		}
		var changes []model.FieldChange
		if created {
			changes = append(changes, model.FieldChange{Field: "claimed_percent", Value: c.ClaimedPercent, Reason: model.ReasonSnapshot})
		}
		outcome, err = e.finish(ctx, q, entry, model.EntityClaim, c.ID, created, changes, nil, "")
		return err
	})
	if err != nil {
		return model.OutcomeSkipped, err
	}
	return outcome, nil
}
