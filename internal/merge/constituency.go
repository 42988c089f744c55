package merge

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/resolve"
	"github.com/ppiankov/tntracker/internal/store"
)

// Constituency resolution reads the whole table, so every constituency
// merge shares one lock.
const constituencyLockKey = "constituency:pool"

// ErrUnresolved marks records whose target entity could not be found and
// may not be created.
var ErrUnresolved = errors.New("unresolved")

// constituencyClaim is what a record says about a constituency
type constituencyClaim struct {
	Name        string
	Number      model.Field[int64]
	NameTa      model.Field[string]
	District    model.Field[string]
	Reservation model.Field[string]
	Geometry    []byte
}

func (c constituencyClaim) offers(src Source) []Offer {
	var out []Offer
	if o, ok := offerInt("number", c.Number, src); ok {
		out = append(out, o)
	}
	if c.Name != "" {
		out = append(out, knownOffer("name", c.Name, src))
	}
	for _, f := range []struct {
		name  string
		value model.Field[string]
	}{
		{"name_ta", c.NameTa},
		{"district", c.District},
		{"reservation", c.Reservation},
	} {
		if o, ok := offerString(f.name, f.value, src); ok {
			out = append(out, o)
		}
	}
	return out
}

// MergeBoundary merges a boundary feature. Features without an assembly
// number must resolve to an existing constituency.
func (e *Engine) MergeBoundary(ctx context.Context, src Source, rec *model.ConstituencyRecord) (model.Outcome, error) {
	claim := constituencyClaim{
		Name:        rec.Name,
		Number:      rec.Number,
		NameTa:      rec.NameTa,
		District:    rec.District,
		Reservation: rec.Reservation,
		Geometry:    rec.Geometry,
	}
	key := fmt.Sprintf("boundary:%d:%s", rec.Row, rec.NameNormalized)
	_, outcome, err := e.ensureConstituency(ctx, src, claim, rec.Number.IsKnown(), rec, key)
	return outcome, err
}

// ensureConstituency resolves claim to a constituency and merges its fields.
// create allows a NoMatch to become a new constituency. The returned id is
// zero unless the claim was resolved.
func (e *Engine) ensureConstituency(ctx context.Context, src Source, claim constituencyClaim, create bool,
	rec any, reviewKey string) (int64, model.Outcome, error) {
	if claim.Name == "" && !claim.Number.IsKnown() {
		return 0, model.OutcomeSkipped, fmt.Errorf("constituency: %w: no name or number", errors.ErrInvalidInput)
	}
	unlock, err := e.lock(ctx, constituencyLockKey)
	if err != nil {
		return 0, "", err
	}
	defer unlock()

	var (
		id      int64
		outcome model.Outcome
	)
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		pool, err := q.Constituencies(ctx)
		if err != nil {
			return err
		}
		res := e.resolver.ResolveConstituency(claim.Number, claim.Name, pool)
		switch res.Kind {
		case resolve.NeedsReview:
			outcome, err = e.queueReview(ctx, q, src, model.EntityConstituency, rec, reviewKey, res.Reason, res.Candidates)
			return err
		case resolve.NoMatch:
			if !create {
				outcome = model.OutcomeSkipped
				return fmt.Errorf("constituency %q: %w", claim.Name, ErrUnresolved)
			}
			id, outcome, err = e.createConstituency(ctx, q, src, claim)
			return err
		}

		id = res.Ref.ID
		var current *model.Constituency
		for i := range pool {
			if pool[i].ID == id {
				current = &pool[i]
				break
			}
		}
		if current == nil {
			return errors.NewNotFoundError("constituency", fmt.Sprint(id))
		}
		outcome, err = e.updateConstituency(ctx, q, src, current, claim, res.Reason)
		return err
	})
	if err != nil {
		return 0, model.OutcomeSkipped, err
	}
	return id, outcome, nil
}

func (e *Engine) createConstituency(ctx context.Context, q *store.Queries, src Source, claim constituencyClaim) (int64, model.Outcome, error) {
	name := claim.Name
	if name == "" {
		name = fmt.Sprintf("AC %03d", claim.Number.Value)
	}
	now := e.now()
	c := model.Constituency{
		Name:           name,
		NameNormalized: normalize.Name(name),
		UpdatedAt:      now,
	}
	if err := q.InsertConstituency(ctx, &c); err != nil {
		return 0, "", err
	}

	fs := newFieldSet(e.policy, src, model.EntityConstituency, c.ID, constituencyValues(&c), map[string]model.FieldProvenance{})
	fs.offerAll(claim.offers(src))
	if err := fs.flush(ctx, q, "constituencies", now); err != nil {
		return 0, "", err
	}
	changes := fs.changes
	if len(claim.Geometry) > 0 {
		if err := q.ReplaceBoundary(ctx, c.ID, claim.Geometry, src.Doc.ID, now); err != nil {
			return 0, "", err
		}
		changes = append(changes, model.FieldChange{Field: "boundary", Value: src.Doc.ID, Reason: model.ReasonReplaced})
	}
	outcome, err := e.finish(ctx, q, src, model.EntityConstituency, c.ID, true, changes, nil, "")
	return c.ID, outcome, err
}

func (e *Engine) updateConstituency(ctx context.Context, q *store.Queries, src Source, c *model.Constituency,
	claim constituencyClaim, reason string) (model.Outcome, error) {
	prov, err := q.Provenance(ctx, model.EntityConstituency, c.ID)
	if err != nil {
		return "", err
	}
	now := e.now()
	fs := newFieldSet(e.policy, src, model.EntityConstituency, c.ID, constituencyValues(c), prov)
	fs.offerAll(claim.offers(src))
	if err := fs.flush(ctx, q, "constituencies", now); err != nil {
		return "", err
	}

	changes := fs.changes
	if len(claim.Geometry) > 0 && !bytes.Equal(c.Boundary, claim.Geometry) {
		if err := q.ReplaceBoundary(ctx, c.ID, claim.Geometry, src.Doc.ID, now); err != nil {
			return "", err
		}
		var prev any
		if c.BoundarySource != nil {
			prev = *c.BoundarySource
		}
		changes = append(changes, model.FieldChange{Field: "boundary", Previous: prev, Value: src.Doc.ID, Reason: model.ReasonReplaced})
	}
	return e.finish(ctx, q, src, model.EntityConstituency, c.ID, false, changes, fs.kept, reason)
}
