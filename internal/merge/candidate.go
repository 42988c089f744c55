package merge

import (
	"context"
	"fmt"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/resolve"
	"github.com/ppiankov/tntracker/internal/store"
)

// MergeCandidate resolves a candidate record within its constituency and
// election year, merges its fields and appends its snapshots. The returned
// id is zero when the record was queued for review.
func (e *Engine) MergeCandidate(ctx context.Context, src Source, rec *model.CandidateRecord) (int64, model.Outcome, error) {
	if rec.NameNormalized == "" {
		return 0, model.OutcomeSkipped, fmt.Errorf("candidate: %w: empty name", errors.ErrInvalidInput)
	}
	key := fmt.Sprintf("%d:%s", rec.Row, rec.NameNormalized)

	if rec.NeedsReview {
		reason := rec.ReviewNote
		if reason == "" {
			reason = "flagged for review by source"
		}
		var outcome model.Outcome
		err := e.store.InTx(ctx, func(q *store.Queries) error {
			var err error
			outcome, err = e.queueReview(ctx, q, src, model.EntityCandidate, rec, key, reason, nil)
			return err
		})
		if err != nil {
			return 0, model.OutcomeSkipped, err
		}
		return 0, outcome, nil
	}

	year := e.year(rec.Year)
	claim := constituencyClaim{
		Name:        rec.Constituency,
		Number:      rec.ConstituencyNo,
		District:    rec.District,
		Reservation: rec.Reservation,
	}
	constituencyID, outcome, err := e.ensureConstituency(ctx, src, claim, true, rec, "constituency:"+key)
	if err != nil {
		return 0, model.OutcomeSkipped, err
	}
	if outcome == model.OutcomeNeedsReview {
		return 0, outcome, nil
	}

	partyID, err := e.EnsureParty(ctx, src, rec.Party)
	if err != nil {
		return 0, model.OutcomeSkipped, err
	}

	unlock, err := e.lock(ctx, fmt.Sprintf("candidate:%d:%d", constituencyID, year))
	if err != nil {
		return 0, model.OutcomeSkipped, err
	}
	defer unlock()

	var id int64
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		refs, err := q.CandidateRefs(ctx, constituencyID, year, e.policy.Ranking)
		if err != nil {
			return err
		}
		res := e.resolver.Resolve(resolve.Query{
			Name:           rec.NameNormalized,
			ConstituencyID: &constituencyID,
			PartyID:        partyID,
			Year:           year,
			Tier:           src.Doc.Tier,
		}, refs)

		var (
			c       *model.Candidate
			prov    map[string]model.FieldProvenance
			created bool
			notes   string
		)
		switch res.Kind {
		case resolve.NeedsReview:
			outcome, err = e.queueReview(ctx, q, src, model.EntityCandidate, rec, key, res.Reason, res.Candidates)
			return err
		case resolve.NoMatch:
			// The party filter can rule out a same-name candidate that the
			// scope's unique name would still collide with.
			if ref, ok := sameName(refs, rec.NameNormalized); ok {
				outcome, err = e.queueReview(ctx, q, src, model.EntityCandidate, rec, key, "same name, party differs",
					[]resolve.Scored{{Ref: ref, Score: 100}})
				return err
			}
			now := e.now()
			c = &model.Candidate{
				Name:           rec.Name,
				NameNormalized: rec.NameNormalized,
				ConstituencyID: constituencyID,
				ElectionYear:   year,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := q.InsertCandidate(ctx, c); err != nil {
				return err
			}
			prov = map[string]model.FieldProvenance{}
			created = true
		default:
			if c, err = q.Candidate(ctx, res.Ref.ID); err != nil {
				return err
			}
			if prov, err = q.Provenance(ctx, model.EntityCandidate, c.ID); err != nil {
				return err
			}
			notes = res.Reason
		}
		id = c.ID

		fs := newFieldSet(e.policy, src, model.EntityCandidate, c.ID, candidateValues(c), prov)
		fs.offerAll(candidateOffers(rec, partyID, src))
		if err := fs.flush(ctx, q, "candidates", e.now()); err != nil {
			return err
		}
		changes, kept := fs.changes, fs.kept

		if !rec.Affidavit.Empty() {
			ch, err := e.appendAffidavit(ctx, q, src, c.ID, rec.Affidavit)
			if err != nil {
				return err
			}
			changes = append(changes, ch...)
		}
		if rec.Result != nil {
			ch, k, err := e.mergeResult(ctx, q, src, c.ID, year, rec.Result)
			if err != nil {
				return err
			}
			changes = append(changes, ch...)
			kept = append(kept, k...)
		}

		outcome, err = e.finish(ctx, q, src, model.EntityCandidate, c.ID, created, changes, kept, notes)
		return err
	})
	if err != nil {
		return 0, model.OutcomeSkipped, err
	}
	return id, outcome, nil
}

func sameName(refs []model.EntityRef, normalized string) (model.EntityRef, bool) {
	for _, ref := range refs {
		if ref.NameNormalized == normalized {
			return ref, true
		}
	}
	return model.EntityRef{}, false
}

func candidateOffers(rec *model.CandidateRecord, partyID *int64, src Source) []Offer {
	out := []Offer{knownOffer("name", rec.Name, src)}
	if partyID != nil {
		out = append(out, knownOffer("party_id", *partyID, src))
	}
	if o, ok := offerInt("age", rec.Age, src); ok {
		out = append(out, o)
	}
	for _, f := range []struct {
		name  string
		value model.Field[string]
	}{
		{"name_ta", rec.NameTa},
		{"gender", rec.Gender},
		{"education", rec.Education},
		{"profession", rec.Profession},
		{"status", rec.Status},
		{"profile_url", rec.ProfileURL},
	} {
		if o, ok := offerString(f.name, f.value, src); ok {
			out = append(out, o)
		}
	}
	return out
}

// appendAffidavit stores the affidavit snapshot of one source. A source
// restating its own snapshot appends nothing.
func (e *Engine) appendAffidavit(ctx context.Context, q *store.Queries, src Source, candidateID int64,
	rec *model.AffidavitRecord) ([]model.FieldChange, error) {
	a := model.Affidavit{
		CandidateID:      candidateID,
		SourceDocumentID: src.Doc.ID,
		Tier:             src.Doc.Tier,
		CriminalCases:    fieldPtr(rec.CriminalCases),
		SeriousCases:     fieldPtr(rec.SeriousCases),
		Assets:           fieldPtr(rec.Assets),
		Liabilities:      fieldPtr(rec.Liabilities),
		Education:        fieldPtr(rec.Education),
		Details:          rec.Details,
		CreatedAt:        e.now(),
	}
	for _, lc := range rec.Cases {
		a.Cases = append(a.Cases, model.LegalCase{
			CaseNumber:  lc.CaseNumber,
			Court:       lc.Court,
			Sections:    lc.Sections,
			Status:      lc.Status,
			Year:        fieldPtr(lc.Year),
			Description: lc.Description,
		})
	}
	created, err := q.InsertAffidavit(ctx, &a)
	if err != nil || !created {
		return nil, err
	}
	return []model.FieldChange{{Field: "affidavit", Value: a.ID, Reason: model.ReasonSnapshot}}, nil
}

// resultView is the logged form of a result
type resultView struct {
	Votes     *int64   `json:"votes,omitempty"`
	VoteShare *float64 `json:"vote_share,omitempty"`
	Position  *int64   `json:"position,omitempty"`
	IsWinner  bool     `json:"is_winner"`
}

func (v resultView) key() string {
	return fmt.Sprintf("%s|%s|%s|%t", ptrText(v.Votes), ptrText(v.VoteShare), ptrText(v.Position), v.IsWinner)
}

// mergeResult keeps one result per candidate and election, replaced only
// by an equal-or-higher tier under the field policy.
func (e *Engine) mergeResult(ctx context.Context, q *store.Queries, src Source, candidateID int64, year int,
	rec *model.ResultRecord) (changes, kept []model.FieldChange, err error) {
	election, err := q.EnsureElection(ctx, year, e.electionName(year))
	if err != nil {
		return nil, nil, err
	}
	in := resultView{
		Votes:     fieldPtr(rec.Votes),
		VoteShare: fieldPtr(rec.VoteShare),
		Position:  fieldPtr(rec.Position),
		IsWinner:  rec.IsWinner,
	}

	var (
		stored any
		prov   *model.FieldProvenance
		prev   *resultView
	)
	existing, err := q.Result(ctx, candidateID, election.ID)
	switch {
	case errors.IsNotFound(err):
	case err != nil:
		return nil, nil, err
	default:
		prev = &resultView{
			Votes:     existing.Votes,
			VoteShare: existing.VoteShare,
			Position:  existing.Position,
			IsWinner:  existing.IsWinner,
		}
		stored = prev.key()
		prov = &model.FieldProvenance{Tier: existing.Tier, RetrievedAt: existing.RetrievedAt, Known: true}
	}

	d := e.policy.Decide(stored, prov, knownOffer("result", in.key(), src))
	var previous any
	var prevTier model.TrustTier
	if prev != nil {
		previous = *prev
		prevTier = prov.Tier
	}
	switch d.Verdict {
	case Write, Upgrade:
		r := model.CandidateResult{
			CandidateID:      candidateID,
			ElectionID:       election.ID,
			SourceDocumentID: src.Doc.ID,
			Tier:             src.Doc.Tier,
			Votes:            in.Votes,
			VoteShare:        in.VoteShare,
			Position:         in.Position,
			IsWinner:         in.IsWinner,
			RetrievedAt:      src.Doc.RetrievedAt,
		}
		if err := q.PutResult(ctx, &r); err != nil {
			return nil, nil, err
		}
		changes = append(changes, model.FieldChange{Field: "result", Previous: previous, Value: in, Reason: d.Reason, PrevTier: prevTier})
	case Keep:
		kept = append(kept, model.FieldChange{Field: "result", Previous: previous, Value: in, Reason: d.Reason, PrevTier: prevTier})
	}
	return changes, kept, nil
}

func fieldPtr[T comparable](f model.Field[T]) *T {
	if v, ok := f.Get(); ok {
		return &v
	}
	return nil
}

func ptrText[T any](p *T) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprint(*p)
}
