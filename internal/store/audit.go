package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ppiankov/tntracker/internal/model"
)

// Provenance returns the provenance rows of an entity keyed by field.
func (q *Queries) Provenance(ctx context.Context, entityType model.EntityType, entityID int64) (map[string]model.FieldProvenance, error) {
	rows, err := q.query(ctx,
		`SELECT field, source_document_id, tier, retrieved_at, known FROM field_provenance
		 WHERE entity_type = ? AND entity_id = ?`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("list provenance: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.FieldProvenance)
	for rows.Next() {
		var (
			p           model.FieldProvenance
			tier, known int
			retrieved   string
		)
		if err := rows.Scan(&p.Field, &p.SourceDocumentID, &tier, &retrieved, &known); err != nil {
			return nil, fmt.Errorf("scan provenance: %w", err)
		}
		p.EntityType = entityType
		p.EntityID = entityID
		p.Tier = model.TrustTier(tier)
		p.RetrievedAt = parseTime(retrieved)
		p.Known = known != 0
		out[p.Field] = p
	}
	return out, rows.Err()
}

// PutProvenance records which source now backs a field.
func (q *Queries) PutProvenance(ctx context.Context, p model.FieldProvenance) error {
	_, err := q.exec(ctx,
		`INSERT INTO field_provenance (entity_type, entity_id, field, source_document_id, tier, retrieved_at, known)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id, field) DO UPDATE SET
			source_document_id = excluded.source_document_id,
			tier = excluded.tier,
			retrieved_at = excluded.retrieved_at,
			known = excluded.known`,
		string(p.EntityType), p.EntityID, p.Field, p.SourceDocumentID, int(p.Tier), formatTime(p.RetrievedAt), boolInt(p.Known))
	if err != nil {
		return fmt.Errorf("put provenance: %w", err)
	}
	return nil
}

// FieldStatus reports whether a field was never imported, imported as
// unknown, or known.
func (q *Queries) FieldStatus(ctx context.Context, entityType model.EntityType, entityID int64, field string) (model.FieldStatus, error) {
	prov, err := q.Provenance(ctx, entityType, entityID)
	if err != nil {
		return "", err
	}
	p, ok := prov[field]
	switch {
	case !ok:
		return model.FieldNotImported, nil
	case !p.Known:
		return model.FieldUnknown, nil
	default:
		return model.FieldKnown, nil
	}
}

// AppendLog writes one UpdateLog entry and sets its id.
func (q *Queries) AppendLog(ctx context.Context, e *model.UpdateLogEntry) error {
	changes, err := encodeChanges(e.Changes)
	if err != nil {
		return err
	}
	kept, err := encodeChanges(e.Kept)
	if err != nil {
		return err
	}
	err = q.queryRow(ctx,
		`INSERT INTO update_log (entity_type, entity_id, source_document_id, run_id, action, changes, kept, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		string(e.EntityType), e.EntityID, e.SourceDocumentID, e.RunID, string(e.Action), changes, kept, e.Notes,
		formatTime(e.CreatedAt)).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append update log: %w", err)
	}
	return nil
}

func encodeChanges(changes []model.FieldChange) (string, error) {
	if len(changes) == 0 {
		return "[]", nil
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return "", fmt.Errorf("encode changes: %w", err)
	}
	return string(raw), nil
}

// HasLogEntry reports whether any entry links the entity to the source.
func (q *Queries) HasLogEntry(ctx context.Context, entityType model.EntityType, entityID, sourceID int64) (bool, error) {
	var n int
	err := q.queryRow(ctx,
		`SELECT COUNT(*) FROM update_log WHERE entity_type = ? AND entity_id = ? AND source_document_id = ?`,
		string(entityType), entityID, sourceID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check update log: %w", err)
	}
	return n > 0, nil
}

// UpdateLog returns an entity's entries, oldest first.
func (q *Queries) UpdateLog(ctx context.Context, entityType model.EntityType, entityID int64) ([]model.UpdateLogEntry, error) {
	rows, err := q.query(ctx,
		`SELECT id, source_document_id, run_id, action, changes, kept, notes, created_at FROM update_log
		 WHERE entity_type = ? AND entity_id = ? ORDER BY id`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("list update log: %w", err)
	}
	defer rows.Close()

	var out []model.UpdateLogEntry
	for rows.Next() {
		var (
			e                     model.UpdateLogEntry
			action, changes, kept string
			created               string
		)
		if err := rows.Scan(&e.ID, &e.SourceDocumentID, &e.RunID, &action, &changes, &kept, &e.Notes, &created); err != nil {
			return nil, fmt.Errorf("scan update log: %w", err)
		}
		e.EntityType = entityType
		e.EntityID = entityID
		e.Action = model.UpdateAction(action)
		if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
			return nil, fmt.Errorf("decode changes: %w", err)
		}
		if err := json.Unmarshal([]byte(kept), &e.Kept); err != nil {
			return nil, fmt.Errorf("decode kept: %w", err)
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddReviewItem queues a record for review unless the same record from the
// same source is already queued. key identifies the record within the source.
func (q *Queries) AddReviewItem(ctx context.Context, item *model.ReviewItem, key string) (bool, error) {
	candidates := "[]"
	if len(item.Candidates) > 0 {
		raw, err := json.Marshal(item.Candidates)
		if err != nil {
			return false, fmt.Errorf("encode review candidates: %w", err)
		}
		candidates = string(raw)
	}
	if item.Status == "" {
		item.Status = model.ReviewOpen
	}
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO review_items (entity_type, source_document_id, record_key, reason, record, candidates, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, source_document_id, record_key) DO NOTHING
		 RETURNING id`,
		string(item.EntityType), item.SourceDocumentID, key, item.Reason, string(item.Record), candidates,
		string(item.Status), formatTime(item.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("add review item: %w", err)
	}
	item.ID = id
	return created, nil
}

// ReviewItems lists queued items with the given status, oldest first. An
// empty status lists everything.
func (q *Queries) ReviewItems(ctx context.Context, status model.ReviewStatus) ([]model.ReviewItem, error) {
	query := `SELECT id, entity_type, source_document_id, reason, record, candidates, status, created_at FROM review_items`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	rows, err := q.query(ctx, query+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var out []model.ReviewItem
	for rows.Next() {
		var (
			item                      model.ReviewItem
			entityType, record, cands string
			st, created               string
		)
		if err := rows.Scan(&item.ID, &entityType, &item.SourceDocumentID, &item.Reason, &record, &cands, &st, &created); err != nil {
			return nil, fmt.Errorf("scan review item: %w", err)
		}
		item.EntityType = model.EntityType(entityType)
		item.Record = json.RawMessage(record)
		if err := json.Unmarshal([]byte(cands), &item.Candidates); err != nil {
			return nil, fmt.Errorf("decode review candidates: %w", err)
		}
		item.Status = model.ReviewStatus(st)
		item.CreatedAt = parseTime(created)
		out = append(out, item)
	}
	return out, rows.Err()
}

// ResolveReviewItem closes a queued item.
func (q *Queries) ResolveReviewItem(ctx context.Context, id int64) (bool, error) {
	res, err := q.exec(ctx, `UPDATE review_items SET status = ? WHERE id = ? AND status = ?`,
		string(model.ReviewResolved), id, string(model.ReviewOpen))
	if err != nil {
		return false, fmt.Errorf("resolve review item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve review item: %w", err)
	}
	return n > 0, nil
}
