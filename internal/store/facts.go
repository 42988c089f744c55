package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// InsertAffidavit appends an affidavit snapshot with its legal cases. A
// snapshot already stored for the same candidate and source is left alone
// and reported as not created.
func (q *Queries) InsertAffidavit(ctx context.Context, a *model.Affidavit) (bool, error) {
	var details any
	if len(a.Details) > 0 {
		raw, err := json.Marshal(a.Details)
		if err != nil {
			return false, fmt.Errorf("encode affidavit details: %w", err)
		}
		details = string(raw)
	}
	id, created, err := q.insertReturning(ctx,
		`INSERT INTO affidavits (candidate_id, source_document_id, tier, criminal_cases, serious_cases,
			assets, liabilities, education, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (candidate_id, source_document_id) DO NOTHING
		 RETURNING id`,
		a.CandidateID, a.SourceDocumentID, int(a.Tier), nullInt(a.CriminalCases), nullInt(a.SeriousCases),
		nullInt(a.Assets), nullInt(a.Liabilities), nullString(a.Education), details, formatTime(a.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("insert affidavit: %w", err)
	}
	if !created {
		return false, nil
	}
	a.ID = id
	for i := range a.Cases {
		lc := &a.Cases[i]
		lc.AffidavitID = id
		err := q.queryRow(ctx,
			`INSERT INTO legal_cases (affidavit_id, case_number, court, sections, status, year, description)
			 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			id, lc.CaseNumber, lc.Court, lc.Sections, lc.Status, nullInt(lc.Year), lc.Description).Scan(&lc.ID)
		if err != nil {
			return false, fmt.Errorf("insert legal case: %w", err)
		}
	}
	return true, nil
}

// Affidavits returns a candidate's snapshots, oldest first, with cases.
func (q *Queries) Affidavits(ctx context.Context, candidateID int64) ([]model.Affidavit, error) {
	rows, err := q.query(ctx,
		`SELECT id, candidate_id, source_document_id, tier, criminal_cases, serious_cases, assets,
			liabilities, education, details, created_at
		 FROM affidavits WHERE candidate_id = ? ORDER BY id`, candidateID)
	if err != nil {
		return nil, fmt.Errorf("list affidavits: %w", err)
	}

	var out []model.Affidavit
	for rows.Next() {
		var (
			a                         model.Affidavit
			tier                      int
			criminal, serious, assets sql.NullInt64
			liabilities               sql.NullInt64
			education, details        sql.NullString
			created                   string
		)
		if err := rows.Scan(&a.ID, &a.CandidateID, &a.SourceDocumentID, &tier, &criminal, &serious, &assets,
			&liabilities, &education, &details, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan affidavit: %w", err)
		}
		a.Tier = model.TrustTier(tier)
		a.CriminalCases = intPtr(criminal)
		a.SeriousCases = intPtr(serious)
		a.Assets = intPtr(assets)
		a.Liabilities = intPtr(liabilities)
		a.Education = stringPtr(education)
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &a.Details); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode affidavit details: %w", err)
			}
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		cases, err := q.legalCases(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Cases = cases
	}
	return out, nil
}

func (q *Queries) legalCases(ctx context.Context, affidavitID int64) ([]model.LegalCase, error) {
	rows, err := q.query(ctx,
		`SELECT id, affidavit_id, case_number, court, sections, status, year, description
		 FROM legal_cases WHERE affidavit_id = ? ORDER BY id`, affidavitID)
	if err != nil {
		return nil, fmt.Errorf("list legal cases: %w", err)
	}
	defer rows.Close()

	var out []model.LegalCase
	for rows.Next() {
		var (
			lc   model.LegalCase
			year sql.NullInt64
		)
		if err := rows.Scan(&lc.ID, &lc.AffidavitID, &lc.CaseNumber, &lc.Court, &lc.Sections, &lc.Status,
			&year, &lc.Description); err != nil {
			return nil, fmt.Errorf("scan legal case: %w", err)
		}
		lc.Year = intPtr(year)
		out = append(out, lc)
	}
	return out, rows.Err()
}

// Result returns the stored result for a candidate in an election.
func (q *Queries) Result(ctx context.Context, candidateID, electionID int64) (*model.CandidateResult, error) {
	var (
		r            model.CandidateResult
		tier, winner int
		votes, pos   sql.NullInt64
		share        sql.NullFloat64
		retrieved    string
	)
	err := q.queryRow(ctx,
		`SELECT id, candidate_id, election_id, source_document_id, tier, votes, vote_share, position,
			is_winner, retrieved_at
		 FROM candidate_results WHERE candidate_id = ? AND election_id = ?`, candidateID, electionID).
		Scan(&r.ID, &r.CandidateID, &r.ElectionID, &r.SourceDocumentID, &tier, &votes, &share, &pos,
			&winner, &retrieved)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("result", strconv.FormatInt(candidateID, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	r.Tier = model.TrustTier(tier)
	r.Votes = intPtr(votes)
	r.VoteShare = floatPtr(share)
	r.Position = intPtr(pos)
	r.IsWinner = winner != 0
	r.RetrievedAt = parseTime(retrieved)
	return &r, nil
}

// PutResult stores r as the current result for its candidate and election,
// replacing any earlier one.
func (q *Queries) PutResult(ctx context.Context, r *model.CandidateResult) error {
	err := q.queryRow(ctx,
		`INSERT INTO candidate_results (candidate_id, election_id, source_document_id, tier, votes,
			vote_share, position, is_winner, retrieved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (candidate_id, election_id) DO UPDATE SET
			source_document_id = excluded.source_document_id,
			tier = excluded.tier,
			votes = excluded.votes,
			vote_share = excluded.vote_share,
			position = excluded.position,
			is_winner = excluded.is_winner,
			retrieved_at = excluded.retrieved_at
		 RETURNING id`,
		r.CandidateID, r.ElectionID, r.SourceDocumentID, int(r.Tier), nullInt(r.Votes), nullFloat(r.VoteShare),
		nullInt(r.Position), boolInt(r.IsWinner), formatTime(r.RetrievedAt)).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("put result: %w", err)
	}
	return nil
}
