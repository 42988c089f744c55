package merge

import (
	"context"
	"time"

	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/store"
)

// fieldSet collects the writes, provenance and log lines of one entity merge
type fieldSet struct {
	policy     Policy
	src        Source
	entityType model.EntityType
	entityID   int64
	current    map[string]any
	prov       map[string]model.FieldProvenance

	cols    map[string]any
	provs   []model.FieldProvenance
	changes []model.FieldChange
	kept    []model.FieldChange
}

func newFieldSet(policy Policy, src Source, entityType model.EntityType, id int64, current map[string]any, prov map[string]model.FieldProvenance) *fieldSet {
	return &fieldSet{
		policy:     policy,
		src:        src,
		entityType: entityType,
		entityID:   id,
		current:    current,
		prov:       prov,
		cols:       make(map[string]any),
	}
}

func (fs *fieldSet) offer(o Offer) {
	var prov *model.FieldProvenance
	if p, ok := fs.prov[o.Field]; ok {
		prov = &p
	}
	stored := fs.current[o.Field]
	var prevTier model.TrustTier
	if prov != nil {
		prevTier = prov.Tier
	}

	d := fs.policy.Decide(stored, prov, o)
	switch d.Verdict {
	case Write:
		fs.cols[o.Field] = o.Value
		fs.current[o.Field] = o.Value
		fs.record(o.Field, true)
		fs.changes = append(fs.changes, model.FieldChange{Field: o.Field, Previous: stored, Value: o.Value, Reason: d.Reason, PrevTier: prevTier})
	case MarkUnknown:
		fs.record(o.Field, false)
		fs.changes = append(fs.changes, model.FieldChange{Field: o.Field, Reason: d.Reason})
	case Upgrade:
		fs.record(o.Field, true)
		fs.changes = append(fs.changes, model.FieldChange{Field: o.Field, Previous: stored, Value: stored, Reason: d.Reason, PrevTier: prevTier})
	case Keep:
		fs.kept = append(fs.kept, model.FieldChange{Field: o.Field, Previous: stored, Value: o.Value, Reason: d.Reason, PrevTier: prevTier})
	}
}

func (fs *fieldSet) offerAll(offers []Offer) {
	for _, o := range offers {
		fs.offer(o)
	}
}

func (fs *fieldSet) record(field string, known bool) {
	p := model.FieldProvenance{
		EntityType:       fs.entityType,
		EntityID:         fs.entityID,
		Field:            field,
		SourceDocumentID: fs.src.Doc.ID,
		Tier:             fs.src.Doc.Tier,
		RetrievedAt:      fs.src.Doc.RetrievedAt,
		Known:            known,
	}
	fs.prov[field] = p
	fs.provs = append(fs.provs, p)
}

// flush writes the collected columns and provenance rows.
func (fs *fieldSet) flush(ctx context.Context, q *store.Queries, table string, at time.Time) error {
	if len(fs.cols) > 0 {
		if err := q.UpdateFields(ctx, table, fs.entityID, fs.cols, at); err != nil {
			return err
		}
	}
	for _, p := range fs.provs {
		if err := q.PutProvenance(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func strVal(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intVal(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func candidateValues(c *model.Candidate) map[string]any {
	return map[string]any{
		"name":        c.Name,
		"name_ta":     strVal(c.NameTa),
		"party_id":    intVal(c.PartyID),
		"age":         intVal(c.Age),
		"gender":      strVal(c.Gender),
		"education":   strVal(c.Education),
		"profession":  strVal(c.Profession),
		"status":      strVal(c.Status),
		"profile_url": strVal(c.ProfileURL),
	}
}

func constituencyValues(c *model.Constituency) map[string]any {
	return map[string]any{
		"number":      intVal(c.Number),
		"name":        c.Name,
		"name_ta":     strVal(c.NameTa),
		"district":    strVal(c.District),
		"district_ta": strVal(c.DistrictTa),
		"reservation": strVal(c.Reservation),
	}
}
