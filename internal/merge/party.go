package merge

import (
	"context"
	"strings"
	"unicode"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/resolve"
	"github.com/ppiankov/tntracker/internal/store"
)

// EnsureParty resolves a party name, creating the party when no exact,
// abbreviation or alias match exists. An empty name yields nil.
func (e *Engine) EnsureParty(ctx context.Context, src Source, name string) (*int64, error) {
	name = normalize.Display(name)
	key := resolve.PartyKey(name)
	if key == "" {
		return nil, nil
	}
	unlock, err := e.lock(ctx, "party:"+key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var id int64
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		pool, err := q.Parties(ctx)
		if err != nil {
			return err
		}
		if p, ok := resolve.ResolveParty(name, pool); ok {
			id = p.ID
			_, err = e.finish(ctx, q, src, model.EntityParty, id, false, nil, nil, "")
			return err
		}

		p := model.Party{Name: name, NameNormalized: key, UpdatedAt: e.now()}
		if isAbbreviation(name) {
			p.Abbreviation = &name
		}
		if normalize.IsTamil(name) {
			p.NameTa = &name
		}
		if err := q.InsertParty(ctx, &p); err != nil {
			return err
		}
		id = p.ID
		if err := q.PutProvenance(ctx, model.FieldProvenance{
			EntityType:       model.EntityParty,
			EntityID:         id,
			Field:            "name",
			SourceDocumentID: src.Doc.ID,
			Tier:             src.Doc.Tier,
			RetrievedAt:      src.Doc.RetrievedAt,
			Known:            true,
		}); err != nil {
			return err
		}
		changes := []model.FieldChange{{Field: "name", Value: name, Reason: model.ReasonFill}}
		_, err = e.finish(ctx, q, src, model.EntityParty, id, true, changes, nil, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// isAbbreviation reports whether name looks like "DMK" or "CPI(M)".
func isAbbreviation(name string) bool {
	letters := 0
	for _, r := range name {
		switch {
		case unicode.IsUpper(r):
			letters++
		case r == '(' || r == ')' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return letters >= 2 && letters <= 8
}

// EnsureCoalition resolves a coalition by name within an election and
// links the member parties.
func (e *Engine) EnsureCoalition(ctx context.Context, src Source, name string, electionID *int64, members []int64) (*int64, error) {
	name = normalize.Display(name)
	key := normalize.Name(name)
	if key == "" {
		return nil, nil
	}
	unlock, err := e.lock(ctx, "coalition:"+key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var id int64
	err = e.store.InTx(ctx, func(q *store.Queries) error {
		created := false
		c, err := q.CoalitionByName(ctx, key, electionID)
		switch {
		case errors.IsNotFound(err):
			c = &model.Coalition{Name: name, ElectionID: electionID}
			if err := q.InsertCoalition(ctx, c, key); err != nil {
				return err
			}
			created = true
		case err != nil:
			return err
		}
		id = c.ID

		var changes []model.FieldChange
		for _, pid := range members {
			added, err := q.AddCoalitionMember(ctx, id, pid)
			if err != nil {
				return err
			}
			if added {
				changes = append(changes, model.FieldChange{Field: "member", Value: pid, Reason: model.ReasonSnapshot})
			}
		}
		_, err = e.finish(ctx, q, src, model.EntityCoalition, id, created, changes, nil, "")
		return err
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// lookupParty finds an existing party without creating one.
func (e *Engine) lookupParty(ctx context.Context, name string) (*int64, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	pool, err := e.store.Parties(ctx)
	if err != nil {
		return nil, err
	}
	p, ok := resolve.ResolveParty(name, pool)
	if !ok {
		return nil, errors.NewNotFoundError("party", name)
	}
	return &p.ID, nil
}
