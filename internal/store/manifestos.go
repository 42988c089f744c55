package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// InsertManifesto stores a manifesto once per source document. When the
// source was already imported m receives the existing id.
func (q *Queries) InsertManifesto(ctx context.Context, m *model.Manifesto) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO manifestos (party_id, coalition_id, election_id, constituency_id, candidate_id,
			source_document_id, summary, summary_ta, document_url, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_document_id) DO NOTHING
		 RETURNING id`,
		nullInt(m.PartyID), nullInt(m.CoalitionID), nullInt(m.ElectionID), nullInt(m.ConstituencyID),
		nullInt(m.CandidateID), m.SourceDocumentID, m.Summary, m.SummaryTa, m.DocumentURL, nullTime(m.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("insert manifesto: %w", err)
	}
	if !created {
		err = q.queryRow(ctx, `SELECT id FROM manifestos WHERE source_document_id = ?`, m.SourceDocumentID).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("get manifesto: %w", err)
		}
	}
	m.ID = id
	return created, nil
}

// Manifesto returns a manifesto by id.
func (q *Queries) Manifesto(ctx context.Context, id int64) (*model.Manifesto, error) {
	var (
		m                          model.Manifesto
		party, coalition, election sql.NullInt64
		constituency, candidate    sql.NullInt64
		published                  sql.NullString
	)
	err := q.queryRow(ctx,
		`SELECT id, party_id, coalition_id, election_id, constituency_id, candidate_id, source_document_id,
			summary, summary_ta, document_url, published_at
		 FROM manifestos WHERE id = ?`, id).
		Scan(&m.ID, &party, &coalition, &election, &constituency, &candidate, &m.SourceDocumentID,
			&m.Summary, &m.SummaryTa, &m.DocumentURL, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("manifesto", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get manifesto: %w", err)
	}
	m.PartyID = intPtr(party)
	m.CoalitionID = intPtr(coalition)
	m.ElectionID = intPtr(election)
	m.ConstituencyID = intPtr(constituency)
	m.CandidateID = intPtr(candidate)
	m.PublishedAt = timePtr(published)
	return &m, nil
}

// AddManifestoDocument links a per-language document. It reports whether
// the link is new.
func (q *Queries) AddManifestoDocument(ctx context.Context, d *model.ManifestoDocument) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO manifesto_documents (manifesto_id, language, url, title) VALUES (?, ?, ?, ?)
		 ON CONFLICT (manifesto_id, language, url) DO NOTHING
		 RETURNING id`,
		d.ManifestoID, d.Language, d.URL, d.Title)
	if err != nil {
		return false, fmt.Errorf("add manifesto document: %w", err)
	}
	d.ID = id
	return created, nil
}

// AddPromise stores a promise unless the manifesto already has one with the
// same slug. p receives the id either way.
func (q *Queries) AddPromise(ctx context.Context, p *model.ManifestoPromise) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO manifesto_promises (manifesto_id, slug, text, text_ta, category) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (manifesto_id, slug) DO NOTHING
		 RETURNING id`,
		p.ManifestoID, p.Slug, p.Text, p.TextTa, p.Category)
	if err != nil {
		return false, fmt.Errorf("add promise: %w", err)
	}
	if !created {
		err = q.queryRow(ctx, `SELECT id FROM manifesto_promises WHERE manifesto_id = ? AND slug = ?`,
			p.ManifestoID, p.Slug).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("get promise: %w", err)
		}
	}
	p.ID = id
	return created, nil
}

// Promises returns a manifesto's promises in insertion order.
func (q *Queries) Promises(ctx context.Context, manifestoID int64) ([]model.ManifestoPromise, error) {
	rows, err := q.query(ctx,
		`SELECT id, manifesto_id, slug, text, text_ta, category FROM manifesto_promises
		 WHERE manifesto_id = ? ORDER BY id`, manifestoID)
	if err != nil {
		return nil, fmt.Errorf("list promises: %w", err)
	}
	defer rows.Close()

	var out []model.ManifestoPromise
	for rows.Next() {
		var p model.ManifestoPromise
		if err := rows.Scan(&p.ID, &p.ManifestoID, &p.Slug, &p.Text, &p.TextTa, &p.Category); err != nil {
			return nil, fmt.Errorf("scan promise: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindPromise looks up a promise by slug in the most recently imported
// state-wide manifesto of a party or coalition. A nil election matches any.
func (q *Queries) FindPromise(ctx context.Context, slug string, partyID, coalitionID, electionID *int64) (*model.ManifestoPromise, error) {
	if partyID == nil && coalitionID == nil {
		return nil, fmt.Errorf("find promise: %w: party or coalition required", errors.ErrInvalidInput)
	}
	query := `SELECT p.id, p.manifesto_id, p.slug, p.text, p.text_ta, p.category
		FROM manifesto_promises p JOIN manifestos m ON m.id = p.manifesto_id
		WHERE p.slug = ? AND m.constituency_id IS NULL`
	args := []any{slug}
	switch {
	case partyID != nil && coalitionID != nil:
		query += ` AND (m.party_id = ? OR m.coalition_id = ?)`
		args = append(args, *partyID, *coalitionID)
	case partyID != nil:
		query += ` AND m.party_id = ?`
		args = append(args, *partyID)
	default:
		query += ` AND m.coalition_id = ?`
		args = append(args, *coalitionID)
	}
	if electionID != nil {
		query += ` AND (m.election_id = ? OR m.election_id IS NULL)`
		args = append(args, *electionID)
	}
	query += ` ORDER BY m.id DESC LIMIT 1`

	var p model.ManifestoPromise
	err := q.queryRow(ctx, query, args...).Scan(&p.ID, &p.ManifestoID, &p.Slug, &p.Text, &p.TextTa, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("promise", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("find promise: %w", err)
	}
	return &p, nil
}

// InsertClaim stores a party fulfilment claim once per source document.
func (q *Queries) InsertClaim(ctx context.Context, c *model.PartyFulfilmentClaim) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO party_fulfilment_claims (party_id, election_id, source_document_id, as_of,
			claimed_percent, claimed_by, snippet)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_document_id) DO NOTHING
		 RETURNING id`,
		c.PartyID, nullInt(c.ElectionID), c.SourceDocumentID, nullTime(c.AsOf), c.ClaimedPercent, c.ClaimedBy, c.Snippet)
	if err != nil {
		return false, fmt.Errorf("insert claim: %w", err)
	}
	if !created {
		err = q.queryRow(ctx, `SELECT id FROM party_fulfilment_claims WHERE source_document_id = ?`,
			c.SourceDocumentID).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("get claim: %w", err)
		}
	}
	c.ID = id
	return created, nil
}

// LatestClaim returns the most recently imported claim of a party.
func (q *Queries) LatestClaim(ctx context.Context, partyID int64, electionID *int64) (*model.PartyFulfilmentClaim, error) {
	query := `SELECT id, party_id, election_id, source_document_id, as_of, claimed_percent, claimed_by, snippet
		FROM party_fulfilment_claims WHERE party_id = ?`
	args := []any{partyID}
	if electionID != nil {
		query += ` AND (election_id = ? OR election_id IS NULL)`
		args = append(args, *electionID)
	}
	var (
		c        model.PartyFulfilmentClaim
		election sql.NullInt64
		asOf     sql.NullString
	)
	err := q.queryRow(ctx, query+` ORDER BY id DESC LIMIT 1`, args...).
		Scan(&c.ID, &c.PartyID, &election, &c.SourceDocumentID, &asOf, &c.ClaimedPercent, &c.ClaimedBy, &c.Snippet)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("claim", strconv.FormatInt(partyID, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	c.ElectionID = intPtr(election)
	c.AsOf = timePtr(asOf)
	return &c, nil
}

// InsertAssessment stores an assessment once per source document.
func (q *Queries) InsertAssessment(ctx context.Context, a *model.PromiseAssessment) (bool, error) {
	if (a.Scope == model.ScopeState) == (a.ConstituencyID != nil) {
		return false, fmt.Errorf("insert assessment: %w: scope %s with constituency %v",
			errors.ErrInvalidInput, a.Scope, a.ConstituencyID != nil)
	}
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO promise_assessments (promise_id, scope, party_id, constituency_id, source_document_id,
			claim_id, as_of, status, score, summary, summary_ta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_document_id) DO NOTHING
		 RETURNING id`,
		a.PromiseID, string(a.Scope), nullInt(a.PartyID), nullInt(a.ConstituencyID), a.SourceDocumentID,
		nullInt(a.ClaimID), nullTime(a.AsOf), string(a.Status), nullFloat(a.Score), a.Summary, a.SummaryTa)
	if err != nil {
		return false, fmt.Errorf("insert assessment: %w", err)
	}
	if !created {
		err = q.queryRow(ctx, `SELECT id FROM promise_assessments WHERE source_document_id = ?`,
			a.SourceDocumentID).Scan(&id)
		if err != nil {
			return false, fmt.Errorf("get assessment: %w", err)
		}
	}
	a.ID = id
	return created, nil
}

// Assessments returns every assessment of a promise, oldest first.
func (q *Queries) Assessments(ctx context.Context, promiseID int64) ([]model.PromiseAssessment, error) {
	rows, err := q.query(ctx,
		`SELECT id, promise_id, scope, party_id, constituency_id, source_document_id, claim_id, as_of,
			status, score, summary, summary_ta
		 FROM promise_assessments WHERE promise_id = ? ORDER BY id`, promiseID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []model.PromiseAssessment
	for rows.Next() {
		var (
			a                          model.PromiseAssessment
			scope, status              string
			party, constituency, claim sql.NullInt64
			asOf                       sql.NullString
			score                      sql.NullFloat64
		)
		if err := rows.Scan(&a.ID, &a.PromiseID, &scope, &party, &constituency, &a.SourceDocumentID, &claim,
			&asOf, &status, &score, &a.Summary, &a.SummaryTa); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		a.Scope = model.Scope(scope)
		a.Status = model.AssessmentStatus(status)
		a.PartyID = intPtr(party)
		a.ConstituencyID = intPtr(constituency)
		a.ClaimID = intPtr(claim)
		a.AsOf = timePtr(asOf)
		a.Score = floatPtr(score)
		out = append(out, a)
	}
	return out, rows.Err()
}

// AddEvidence links an evidence document to an assessment.
func (q *Queries) AddEvidence(ctx context.Context, e *model.PromiseEvidence) (bool, error) {
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO promise_evidence (assessment_id, source_document_id, url, quote, published_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (assessment_id, source_document_id) DO NOTHING
		 RETURNING id`,
		e.AssessmentID, e.SourceDocumentID, e.URL, e.Quote, nullTime(e.PublishedAt))
	if err != nil {
		return false, fmt.Errorf("add evidence: %w", err)
	}
	e.ID = id
	return created, nil
}
