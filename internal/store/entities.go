package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

// EnsureElection returns the election for year, creating it when needed.
func (q *Queries) EnsureElection(ctx context.Context, year int, name string) (model.Election, error) {
	if _, err := q.exec(ctx,
		`INSERT INTO elections (year, name) VALUES (?, ?) ON CONFLICT (year) DO NOTHING`, year, name); err != nil {
		return model.Election{}, fmt.Errorf("insert election: %w", err)
	}
	var e model.Election
	err := q.queryRow(ctx, `SELECT id, year, name FROM elections WHERE year = ?`, year).Scan(&e.ID, &e.Year, &e.Name)
	if err != nil {
		return model.Election{}, fmt.Errorf("get election: %w", err)
	}
	return e, nil
}

// Parties

const partyColumns = `id, name, name_normalized, name_ta, abbreviation, symbol, website, updated_at`

// Parties returns every party ordered by id.
func (q *Queries) Parties(ctx context.Context) ([]model.Party, error) {
	rows, err := q.query(ctx, `SELECT `+partyColumns+` FROM parties ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	var parties []model.Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		parties = append(parties, *p)
	}
	return parties, rows.Err()
}

// Party returns a party by id.
func (q *Queries) Party(ctx context.Context, id int64) (*model.Party, error) {
	p, err := scanParty(q.queryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("party", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get party: %w", err)
	}
	return p, nil
}

// InsertParty stores a new party and sets its id.
func (q *Queries) InsertParty(ctx context.Context, p *model.Party) error {
	err := q.queryRow(ctx,
		`INSERT INTO parties (name, name_normalized, name_ta, abbreviation, symbol, website, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		p.Name, p.NameNormalized, nullString(p.NameTa), nullString(p.Abbreviation),
		nullString(p.Symbol), nullString(p.Website), formatTime(p.UpdatedAt)).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

func scanParty(row scanner) (*model.Party, error) {
	var (
		p                    model.Party
		nameTa, abbr, symbol sql.NullString
		website              sql.NullString
		updated              string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.NameNormalized, &nameTa, &abbr, &symbol, &website, &updated); err != nil {
		return nil, err
	}
	p.NameTa = stringPtr(nameTa)
	p.Abbreviation = stringPtr(abbr)
	p.Symbol = stringPtr(symbol)
	p.Website = stringPtr(website)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// Coalitions

// CoalitionByName finds a coalition by normalized name within an election.
func (q *Queries) CoalitionByName(ctx context.Context, nameNormalized string, electionID *int64) (*model.Coalition, error) {
	query := `SELECT id, name, election_id FROM coalitions WHERE name_normalized = ? AND election_id IS NULL`
	args := []any{nameNormalized}
	if electionID != nil {
		query = `SELECT id, name, election_id FROM coalitions WHERE name_normalized = ? AND election_id = ?`
		args = append(args, *electionID)
	}
	var (
		c        model.Coalition
		election sql.NullInt64
	)
	err := q.queryRow(ctx, query+` ORDER BY id LIMIT 1`, args...).Scan(&c.ID, &c.Name, &election)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("coalition", nameNormalized)
	}
	if err != nil {
		return nil, fmt.Errorf("get coalition: %w", err)
	}
	c.ElectionID = intPtr(election)
	c.PartyIDs, err = q.CoalitionMembers(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCoalition stores a coalition without members and sets its id.
func (q *Queries) InsertCoalition(ctx context.Context, c *model.Coalition, nameNormalized string) error {
	err := q.queryRow(ctx,
		`INSERT INTO coalitions (name, name_normalized, election_id) VALUES (?, ?, ?) RETURNING id`,
		c.Name, nameNormalized, nullInt(c.ElectionID)).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert coalition: %w", err)
	}
	return nil
}

// AddCoalitionMember links a party to a coalition. It reports whether the
// link is new.
func (q *Queries) AddCoalitionMember(ctx context.Context, coalitionID, partyID int64) (bool, error) {
	res, err := q.exec(ctx,
		`INSERT INTO coalition_members (coalition_id, party_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		coalitionID, partyID)
	if err != nil {
		return false, fmt.Errorf("add coalition member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add coalition member: %w", err)
	}
	return n > 0, nil
}

// CoalitionMembers returns the party ids of a coalition.
func (q *Queries) CoalitionMembers(ctx context.Context, coalitionID int64) ([]int64, error) {
	rows, err := q.query(ctx,
		`SELECT party_id FROM coalition_members WHERE coalition_id = ? ORDER BY party_id`, coalitionID)
	if err != nil {
		return nil, fmt.Errorf("list coalition members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Constituencies

const constituencyColumns = `id, number, name, name_normalized, name_ta, district, district_ta,
	reservation, boundary, boundary_source_id, updated_at`

// Constituencies returns every constituency ordered by number, then id.
func (q *Queries) Constituencies(ctx context.Context) ([]model.Constituency, error) {
	rows, err := q.query(ctx, `SELECT `+constituencyColumns+` FROM constituencies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list constituencies: %w", err)
	}
	defer rows.Close()

	var out []model.Constituency
	for rows.Next() {
		c, err := scanConstituency(rows)
		if err != nil {
			return nil, fmt.Errorf("scan constituency: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Number, out[j].Number
		switch {
		case a != nil && b != nil:
			return *a < *b
		case a != nil:
			return true
		default:
			return false
		}
	})
	return out, nil
}

// Constituency returns a constituency by id.
func (q *Queries) Constituency(ctx context.Context, id int64) (*model.Constituency, error) {
	c, err := scanConstituency(q.queryRow(ctx, `SELECT `+constituencyColumns+` FROM constituencies WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("constituency", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get constituency: %w", err)
	}
	return c, nil
}

// InsertConstituency stores a new constituency and sets its id.
func (q *Queries) InsertConstituency(ctx context.Context, c *model.Constituency) error {
	var boundary any
	if len(c.Boundary) > 0 {
		boundary = string(c.Boundary)
	}
	err := q.queryRow(ctx,
		`INSERT INTO constituencies (number, name, name_normalized, name_ta, district, district_ta,
			reservation, boundary, boundary_source_id, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		nullInt(c.Number), c.Name, c.NameNormalized, nullString(c.NameTa), nullString(c.District),
		nullString(c.DistrictTa), nullString(c.Reservation), boundary, nullInt(c.BoundarySource),
		formatTime(c.UpdatedAt)).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert constituency: %w", err)
	}
	return nil
}

// ReplaceBoundary swaps the stored geometry for a new one.
func (q *Queries) ReplaceBoundary(ctx context.Context, id int64, geometry []byte, sourceID int64, at time.Time) error {
	_, err := q.exec(ctx,
		`UPDATE constituencies SET boundary = ?, boundary_source_id = ?, updated_at = ? WHERE id = ?`,
		string(geometry), sourceID, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("replace boundary: %w", err)
	}
	return nil
}

func scanConstituency(row scanner) (*model.Constituency, error) {
	var (
		c                            model.Constituency
		number, boundarySource       sql.NullInt64
		nameTa, district, districtTa sql.NullString
		reservation, boundary        sql.NullString
		updated                      string
	)
	if err := row.Scan(&c.ID, &number, &c.Name, &c.NameNormalized, &nameTa, &district, &districtTa,
		&reservation, &boundary, &boundarySource, &updated); err != nil {
		return nil, err
	}
	c.Number = intPtr(number)
	c.NameTa = stringPtr(nameTa)
	c.District = stringPtr(district)
	c.DistrictTa = stringPtr(districtTa)
	c.Reservation = stringPtr(reservation)
	if boundary.Valid && boundary.String != "" {
		c.Boundary = []byte(boundary.String)
	}
	c.BoundarySource = intPtr(boundarySource)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

// Candidates

const candidateColumns = `id, name, name_normalized, name_ta, party_id, constituency_id, election_year,
	age, gender, education, profession, status, profile_url, created_at, updated_at`

// Candidate returns a candidate by id.
func (q *Queries) Candidate(ctx context.Context, id int64) (*model.Candidate, error) {
	c, err := scanCandidate(q.queryRow(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotFoundError("candidate", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

// CandidatesInScope returns the candidates of one constituency and year.
func (q *Queries) CandidatesInScope(ctx context.Context, constituencyID int64, year int) ([]model.Candidate, error) {
	rows, err := q.query(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE constituency_id = ? AND election_year = ? ORDER BY id`,
		constituencyID, year)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []model.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CandidateRefs returns the resolver pool for one constituency and year.
// BestTier is the most trusted tier among the sources behind each
// candidate's fields, under ranking.
func (q *Queries) CandidateRefs(ctx context.Context, constituencyID int64, year int, ranking model.TrustRanking) ([]model.EntityRef, error) {
	candidates, err := q.CandidatesInScope(ctx, constituencyID, year)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	rows, err := q.query(ctx,
		`SELECT DISTINCT fp.entity_id, fp.tier FROM field_provenance fp
		 JOIN candidates c ON c.id = fp.entity_id
		 WHERE fp.entity_type = ? AND c.constituency_id = ? AND c.election_year = ?`,
		string(model.EntityCandidate), constituencyID, year)
	if err != nil {
		return nil, fmt.Errorf("candidate tiers: %w", err)
	}
	defer rows.Close()

	best := make(map[int64]model.TrustTier)
	for rows.Next() {
		var (
			id   int64
			tier int
		)
		if err := rows.Scan(&id, &tier); err != nil {
			return nil, err
		}
		if cur, ok := best[id]; !ok || ranking.Compare(model.TrustTier(tier), cur) > 0 {
			best[id] = model.TrustTier(tier)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]model.EntityRef, 0, len(candidates))
	for _, c := range candidates {
		cid := c.ConstituencyID
		refs = append(refs, model.EntityRef{
			Type:           model.EntityCandidate,
			ID:             c.ID,
			Name:           c.Name,
			NameNormalized: c.NameNormalized,
			ConstituencyID: &cid,
			PartyID:        c.PartyID,
			Year:           c.ElectionYear,
			BestTier:       best[c.ID],
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return refs, nil
}

// InsertCandidate stores a new candidate and sets its id.
func (q *Queries) InsertCandidate(ctx context.Context, c *model.Candidate) error {
	err := q.queryRow(ctx,
		`INSERT INTO candidates (name, name_normalized, name_ta, party_id, constituency_id, election_year,
			age, gender, education, profession, status, profile_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		c.Name, c.NameNormalized, nullString(c.NameTa), nullInt(c.PartyID), c.ConstituencyID, c.ElectionYear,
		nullInt(c.Age), nullString(c.Gender), nullString(c.Education), nullString(c.Profession),
		nullString(c.Status), nullString(c.ProfileURL), formatTime(c.CreatedAt), formatTime(c.UpdatedAt)).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func scanCandidate(row scanner) (*model.Candidate, error) {
	var (
		c                              model.Candidate
		nameTa, gender, education      sql.NullString
		profession, status, profileURL sql.NullString
		partyID, age                   sql.NullInt64
		created, updated               string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.NameNormalized, &nameTa, &partyID, &c.ConstituencyID, &c.ElectionYear,
		&age, &gender, &education, &profession, &status, &profileURL, &created, &updated); err != nil {
		return nil, err
	}
	c.NameTa = stringPtr(nameTa)
	c.PartyID = intPtr(partyID)
	c.Age = intPtr(age)
	c.Gender = stringPtr(gender)
	c.Education = stringPtr(education)
	c.Profession = stringPtr(profession)
	c.Status = stringPtr(status)
	c.ProfileURL = stringPtr(profileURL)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return &c, nil
}

// Field-merged columns per entity table.
var mergeColumns = map[string]map[string]bool{
	"candidates": {
		"name": true, "name_ta": true, "party_id": true, "age": true, "gender": true,
		"education": true, "profession": true, "status": true, "profile_url": true,
	},
	"constituencies": {
		"number": true, "name": true, "name_ta": true, "district": true, "district_ta": true, "reservation": true,
	},
	"parties": {
		"name_ta": true, "abbreviation": true, "symbol": true, "website": true,
	},
}

// UpdateFields writes merged column values and bumps updated_at. Columns are
// applied in sorted order.
func (q *Queries) UpdateFields(ctx context.Context, table string, id int64, values map[string]any, at time.Time) error {
	allowed, ok := mergeColumns[table]
	if !ok {
		return fmt.Errorf("update fields: %w: table %q", errors.ErrInvalidInput, table)
	}
	cols := make([]string, 0, len(values))
	for col := range values {
		if !allowed[col] {
			return fmt.Errorf("update fields: %w: column %s.%s", errors.ErrInvalidInput, table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)
	for _, col := range cols {
		sets = append(sets, col+" = ?")
		args = append(args, values[col])
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(at), id)

	if _, err := q.exec(ctx, `UPDATE `+table+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
		return fmt.Errorf("update %s: %w", table, err)
	}
	return nil
}
