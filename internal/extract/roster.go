package extract

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatRoster = "roster-csv"

// Roster fields
const (
	colName          = "name"
	colParty         = "party"
	colConstituency  = "constituency"
	colDistrict      = "district"
	colStatus        = "status"
	colCriminalCases = "criminal_cases"
	colSeriousCases  = "serious_cases"
	colEducation     = "education"
	colAge           = "age"
	colAssets        = "assets"
	colLiabilities   = "liabilities"
	colProfileURL    = "profile_url"
	colSittingMLA    = "sitting_mla"
	colNeedsReview   = "needs_review"
	colReviewNote    = "review_note"
)

// Column maps one roster field to the normalized headers that may carry it
type Column struct {
	Field    string
	Aliases  []string
	Required bool
}

// RosterSchema is one versioned column layout
type RosterSchema struct {
	Name        string
	Version     *semver.Version
	Columns     []Column
	DefaultYear int // Year the layout describes, 0 to use the import year
	Status      model.CandidateStatus
}

// ID returns name@version
func (s *RosterSchema) ID() string {
	return s.Name + "@" + s.Version.String()
}

func (s *RosterSchema) aliases(field string) []string {
	for _, c := range s.Columns {
		if c.Field == field {
			return c.Aliases
		}
	}
	return nil
}

// satisfied returns whether every required column is present and how many
// columns matched.
func (s *RosterSchema) satisfied(t *table) (bool, int) {
	matched := 0
	for _, c := range s.Columns {
		if t.has(c.Aliases...) {
			matched++
		} else if c.Required {
			return false, matched
		}
	}
	return true, matched
}

func (s *RosterSchema) missing(t *table) []string {
	var out []string
	for _, c := range s.Columns {
		if c.Required && !t.has(c.Aliases...) {
			out = append(out, c.Aliases[0])
		}
	}
	return out
}

// RosterSchemas are the known layouts, in no particular order
var RosterSchemas = []*RosterSchema{
	{
		Name:        "roster",
		Version:     semver.MustParse("1.0.0"),
		DefaultYear: 2021,
		Status:      model.StatusContesting,
		Columns: []Column{
			{Field: colName, Aliases: []string{"candidate"}, Required: true},
			{Field: colParty, Aliases: []string{"party"}},
			{Field: colCriminalCases, Aliases: []string{"criminal_cases"}},
			{Field: colEducation, Aliases: []string{"education"}},
			{Field: colAge, Aliases: []string{"age"}},
			{Field: colAssets, Aliases: []string{"total_assets_rs", "total_assets"}},
			{Field: colLiabilities, Aliases: []string{"liabilities_rs", "liabilities"}},
			{Field: colConstituency, Aliases: []string{"2021_constituency"}, Required: true},
			{Field: colDistrict, Aliases: []string{"2021_district"}},
			{Field: colSittingMLA, Aliases: []string{"sitting_mla"}},
			{Field: colProfileURL, Aliases: []string{"myneta_url"}},
		},
	},
	{
		Name:    "roster",
		Version: semver.MustParse("2.0.0"),
		Columns: []Column{
			{Field: colName, Aliases: []string{"candidate"}, Required: true},
			{Field: colParty, Aliases: []string{"party"}},
			{Field: colCriminalCases, Aliases: []string{"criminal_cases"}},
			{Field: colEducation, Aliases: []string{"education"}},
			{Field: colAge, Aliases: []string{"age"}},
			{Field: colConstituency, Aliases: []string{"constituency", "2026_constituency"}, Required: true},
			{Field: colProfileURL, Aliases: []string{"myneta_url"}},
			{Field: colNeedsReview, Aliases: []string{"needs_review"}},
			{Field: colReviewNote, Aliases: []string{"review_note"}},
		},
	},
	{
		Name:    "eci-affidavit",
		Version: semver.MustParse("1.0.0"),
		Columns: []Column{
			{Field: colName, Aliases: []string{"candidate_name", "name"}, Required: true},
			{Field: colConstituency, Aliases: []string{"constituency", "ac_name"}, Required: true},
			{Field: colParty, Aliases: []string{"party", "party_name"}},
			{Field: colStatus, Aliases: []string{"status", "candidate_status"}},
			{Field: colCriminalCases, Aliases: []string{"criminal_cases"}},
			{Field: colSeriousCases, Aliases: []string{"serious_criminal_cases", "serious_cases"}},
			{Field: colAssets, Aliases: []string{"total_assets", "assets_total"}},
			{Field: colLiabilities, Aliases: []string{"total_liabilities", "liabilities_total"}},
			{Field: colEducation, Aliases: []string{"education"}},
		},
	},
}

// SchemaSelector picks a roster schema by name and version constraint
type SchemaSelector struct {
	Name       string
	Constraint *semver.Constraints
}

// ParseSchemaSelector parses "name", "name@constraint" or "" (any schema).
func ParseSchemaSelector(descriptor string) (SchemaSelector, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return SchemaSelector{}, nil
	}
	name, constraint, hasVersion := strings.Cut(descriptor, "@")
	sel := SchemaSelector{Name: strings.TrimSpace(name)}

	known := false
	for _, s := range RosterSchemas {
		if s.Name == sel.Name {
			known = true
			break
		}
	}
	if !known {
		return sel, errors.NewConfigError("schema", fmt.Sprintf("unknown roster schema %q", sel.Name), nil)
	}

	if hasVersion {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return sel, errors.NewConfigError("schema", fmt.Sprintf("bad version constraint %q", constraint), err)
		}
		sel.Constraint = c
	}
	return sel, nil
}

func (sel SchemaSelector) matches(s *RosterSchema) bool {
	if sel.Name != "" && s.Name != sel.Name {
		return false
	}
	return sel.Constraint == nil || sel.Constraint.Check(s.Version)
}

func (sel SchemaSelector) String() string {
	switch {
	case sel.Name == "":
		return "any"
	case sel.Constraint == nil:
		return sel.Name
	default:
		return sel.Name + "@" + sel.Constraint.String()
	}
}

// DetectSchema returns the schema for a header row. Among the selected
// schemas whose required columns are present, the one matching the most
// columns wins, then the highest version.
func DetectSchema(t *table, sel SchemaSelector) (*RosterSchema, error) {
	type candidate struct {
		schema  *RosterSchema
		matched int
	}
	var ok []candidate
	var nearest *RosterSchema
	for _, s := range RosterSchemas {
		if !sel.matches(s) {
			continue
		}
		if nearest == nil || s.Version.GreaterThan(nearest.Version) {
			nearest = s
		}
		if sat, matched := s.satisfied(t); sat {
			ok = append(ok, candidate{s, matched})
		}
	}
	if len(ok) == 0 {
		detail := fmt.Sprintf("no roster schema (%s) matches the header", sel)
		if nearest != nil {
			detail += fmt.Sprintf("; %s needs %s", nearest.ID(), strings.Join(nearest.missing(t), ", "))
		}
		return nil, errors.NewDocumentError(formatRoster, errors.ParseHeader, detail, nil)
	}

	sort.SliceStable(ok, func(i, j int) bool {
		if ok[i].matched != ok[j].matched {
			return ok[i].matched > ok[j].matched
		}
		return ok[i].schema.Version.GreaterThan(ok[j].schema.Version)
	})
	return ok[0].schema, nil
}

// RosterParser reads candidate affidavit rosters
type RosterParser struct{}

func (RosterParser) Format() string { return formatRoster }

// Parse yields one CandidateRecord per roster row
func (p RosterParser) Parse(in Input) iter.Seq2[model.Record, error] {
	sel, err := ParseSchemaSelector(in.Schema)
	if err != nil {
		return fatal(formatRoster, errors.ParseSchema, err.Error(), err)
	}

	t, err := readTable(in.Data)
	if err != nil && t == nil {
		return fatal(formatRoster, errors.ParseHeader, "unreadable header", err)
	}
	readErr := err

	schema, err := DetectSchema(t, sel)
	if err != nil {
		return func(yield func(model.Record, error) bool) { yield(nil, err) }
	}

	return func(yield func(model.Record, error) bool) {
		for i, row := range t.rows {
			rec, err := p.row(in, schema, t, row, t.lines[i])
			if !yield(rec, err) {
				return
			}
		}
		if readErr != nil {
			yield(nil, errors.NewRowError(formatRoster, len(t.rows)+1, "unreadable row, stopped", readErr))
		}
	}
}

func (p RosterParser) row(in Input, schema *RosterSchema, t *table, row []string, line int) (model.Record, error) {
	get := func(field string) (string, bool) {
		return t.get(row, schema.aliases(field)...)
	}

	name, _ := get(colName)
	constituency, _ := get(colConstituency)
	if normalize.IsBlank(name) {
		return nil, errors.NewRowError(formatRoster, line, "missing candidate name", nil)
	}
	if normalize.IsBlank(constituency) {
		return nil, errors.NewRowError(formatRoster, line, "missing constituency", nil)
	}

	year := schema.DefaultYear
	if year == 0 {
		year = in.Year
	}

	constName, _ := normalize.Constituency(constituency)
	rec := &model.CandidateRecord{
		RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: line},
		Name:           normalize.Display(name),
		NameNormalized: normalize.Name(name),
		Constituency:   constName,
		Reservation:    normalize.Reservation(constituency),
		Year:           year,
		Party:          "Independent",
	}
	if party, _ := get(colParty); !normalize.IsBlank(party) {
		rec.Party = normalize.Display(party)
	}
	if v, present := get(colDistrict); present {
		rec.District = normalize.Text(v)
	}
	if v, present := get(colProfileURL); present {
		rec.ProfileURL = normalize.Text(v)
	}
	if v, present := get(colAge); present {
		rec.Age = countField(rec.Meta(), colAge, v)
	}

	switch {
	case schema.Status != "":
		rec.Status = model.Some(string(schema.Status))
	default:
		if v, present := get(colStatus); present {
			rec.Status = statusField(rec.Meta(), v)
		}
	}

	if v, _ := get(colNeedsReview); normalize.Truthy(v) {
		rec.NeedsReview = true
		rec.ReviewNote, _ = get(colReviewNote)
	}

	aff := &model.AffidavitRecord{}
	if v, present := get(colCriminalCases); present {
		aff.CriminalCases = countField(rec.Meta(), colCriminalCases, v)
	}
	if v, present := get(colSeriousCases); present {
		aff.SeriousCases = countField(rec.Meta(), colSeriousCases, v)
	}
	if v, present := get(colAssets); present {
		aff.Assets = moneyField(rec.Meta(), colAssets, v)
	}
	if v, present := get(colLiabilities); present {
		aff.Liabilities = moneyField(rec.Meta(), colLiabilities, v)
	}
	if v, present := get(colEducation); present {
		aff.Education = normalize.Text(v)
		rec.Education = aff.Education
	}
	if v, present := get(colSittingMLA); present && !normalize.IsBlank(v) {
		aff.Details = map[string]string{colSittingMLA: v}
	}
	if !aff.Empty() {
		rec.Affidavit = aff
	}

	return rec, nil
}

func countField(meta *model.RecordMeta, field, raw string) model.Field[int64] {
	f, err := normalize.Count(raw)
	if err != nil {
		meta.Warn(field, raw, "not a number")
	}
	return f
}

func moneyField(meta *model.RecordMeta, field, raw string) model.Field[int64] {
	f, err := normalize.Money(raw)
	if err != nil {
		meta.Warn(field, raw, "unparseable amount")
	}
	return f
}

func statusField(meta *model.RecordMeta, raw string) model.Field[string] {
	v := strings.ToLower(strings.TrimSpace(raw))
	if normalize.IsBlank(v) || v == "unknown" {
		return model.None[string]()
	}
	status, ok := model.ParseCandidateStatus(v)
	if !ok {
		meta.Warn(colStatus, raw, "unrecognized status")
		return model.None[string]()
	}
	return model.Some(string(status))
}
