package adapters

import (
	"iter"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/extract"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatProfile = "profile-html"

var (
	profileTitleRe   = regexp.MustCompile(`^(.*?)\((.*?)\):Constituency-\s*([^(]+)(?:\(([^)]*)\))?`)
	criminalCountRe  = regexp.MustCompile(`(?i)Number of Criminal Cases:\s*(\d+)`)
	caseHeaderFields = []struct {
		keyword string
		field   string
	}{
		{"case no", "case_no"},
		{"case number", "case_no"},
		{"section", "sections"},
		{"ipc", "sections"},
		{"status", "status"},
		{"court", "court"},
		{"year", "year"},
	}
	positionalCaseFields = []string{"case_no", "sections", "status", "court", "year"}
)

// ProfileAdapter reads a candidate's legal-history affidavit page as
// published by MyNeta/ADR
type ProfileAdapter struct {
	BaseAdapter
	domains []string
}

// NewProfileAdapter creates a new profile adapter
func NewProfileAdapter() *ProfileAdapter {
	return &ProfileAdapter{
		domains: []string{"myneta.info", "adrindia.org"},
	}
}

// Name returns the adapter name
func (a *ProfileAdapter) Name() string {
	return "profile"
}

// Format implements extract.Parser
func (a *ProfileAdapter) Format() string {
	return formatProfile
}

// CanHandle checks for a candidate profile URL
func (a *ProfileAdapter) CanHandle(rawURL string, contentType string) bool {
	lower := strings.ToLower(rawURL)
	if strings.Contains(lower, "candidate.php?candidate_id=") {
		return true
	}
	for _, d := range a.domains {
		if strings.Contains(lower, d) && strings.Contains(lower, "candidate") {
			return true
		}
	}
	return false
}

// Parse yields a single CandidateRecord carrying an affidavit snapshot
func (a *ProfileAdapter) Parse(in extract.Input) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		rec, err := a.parse(in)
		yield(rec, err)
	}
}

func (a *ProfileAdapter) parse(in extract.Input) (model.Record, error) {
	doc, err := a.ParseHTML(in.Data)
	if err != nil {
		return nil, errors.NewDocumentError(formatProfile, errors.ParseDocument, "unreadable HTML", err)
	}

	var name, party, constituency, district string

	titleSource := ""
	if title := a.FindFirst(doc, func(n *html.Node) bool { return a.IsElement(n, "title") }); title != nil {
		titleSource = a.ExtractText(title)
	}
	if titleSource == "" {
		if h := a.FindFirst(doc, func(n *html.Node) bool { return a.IsElement(n, "h1", "h2") }); h != nil {
			titleSource = a.ExtractText(h)
		}
	}
	if m := profileTitleRe.FindStringSubmatch(titleSource); m != nil {
		name = strings.TrimSpace(m[1])
		party = strings.TrimSpace(m[2])
		constituency = strings.TrimSpace(m[3])
		district = strings.TrimSpace(m[4])
	}

	if v := a.valueByLabel(doc, "Constituency"); v != "" {
		constituency = v
	}
	if v := a.valueByLabel(doc, "Party"); v != "" {
		party = v
	}

	if normalize.IsBlank(name) || normalize.IsBlank(constituency) {
		return nil, errors.NewDocumentError(formatProfile, errors.ParseDocument, "candidate name or constituency not found", nil)
	}
	if normalize.IsBlank(party) {
		party = "Independent"
	}

	constName, _ := normalize.Constituency(constituency)
	rec := &model.CandidateRecord{
		RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: 1},
		Name:           normalize.Display(name),
		NameNormalized: normalize.Name(name),
		Party:          normalize.Display(party),
		Constituency:   constName,
		Reservation:    normalize.Reservation(constituency),
		Year:           in.Year,
		ProfileURL:     model.Some(in.Origin),
	}
	if district != "" {
		rec.District = normalize.Text(district)
	}
	if v := a.valueByLabel(doc, "Age"); v != "" {
		rec.Age = a.count(rec.Meta(), "age", v)
	}

	aff := &model.AffidavitRecord{}
	if m := criminalCountRe.FindStringSubmatch(a.ExtractText(doc)); m != nil {
		aff.CriminalCases = a.count(rec.Meta(), "criminal_cases", m[1])
	}
	if !aff.CriminalCases.IsKnown() {
		if v := a.valueByLabel(doc, "Criminal Cases"); v != "" {
			aff.CriminalCases = a.count(rec.Meta(), "criminal_cases", v)
		}
	}
	if v := a.valueByLabel(doc, "Serious Criminal Cases"); v != "" {
		aff.SeriousCases = a.count(rec.Meta(), "serious_cases", v)
	}
	if v := a.valueByLabel(doc, "Total Assets"); v != "" {
		aff.Assets = a.money(rec.Meta(), "assets", v)
	}
	if v := a.valueByLabel(doc, "Liabilities"); v != "" {
		aff.Liabilities = a.money(rec.Meta(), "liabilities", v)
	}
	if v := a.valueByLabel(doc, "Education"); v != "" {
		aff.Education = normalize.Text(v)
		rec.Education = aff.Education
	}
	aff.Cases = a.cases(doc)

	// Fall back to the number of listed cases
	if !aff.CriminalCases.IsKnown() && len(aff.Cases) > 0 {
		aff.CriminalCases = model.Some(int64(len(aff.Cases)))
	}
	if !aff.Empty() {
		rec.Affidavit = aff
	}
	return rec, nil
}

// valueByLabel finds a td whose text names label and returns the text of
// its next td sibling. Exact labels win over partial ones.
func (a *ProfileAdapter) valueByLabel(doc *html.Node, label string) string {
	want := strings.ToLower(label)
	cells := a.FindAll(doc, func(n *html.Node) bool { return a.IsElement(n, "td") })

	var partial string
	for _, cell := range cells {
		text := strings.ToLower(strings.TrimRight(a.ExtractText(cell), ": "))
		if !strings.Contains(text, want) {
			continue
		}
		sibling := a.NextElementSibling(cell, "td")
		if sibling == nil {
			continue
		}
		value := a.ExtractText(sibling)
		if text == want {
			return value
		}
		if partial == "" && (strings.Contains(want, "serious") || !strings.Contains(text, "serious")) {
			partial = value
		}
	}
	return partial
}

// cases reads every table whose headers mention cases or sections
func (a *ProfileAdapter) cases(doc *html.Node) []model.LegalCaseRecord {
	var out []model.LegalCaseRecord
	tables := a.FindAll(doc, func(n *html.Node) bool { return a.IsElement(n, "table") })
	for _, table := range tables {
		headers := a.FindAll(table, func(n *html.Node) bool { return a.IsElement(n, "th") })
		if len(headers) == 0 {
			continue
		}
		isCaseTable := false
		columns := make([]string, len(headers))
		for i, th := range headers {
			text := a.ExtractText(th)
			if strings.Contains(text, "Case") || strings.Contains(text, "Section") {
				isCaseTable = true
			}
			lower := strings.ToLower(text)
			for _, hf := range caseHeaderFields {
				if strings.Contains(lower, hf.keyword) {
					columns[i] = hf.field
					break
				}
			}
		}
		if !isCaseTable {
			continue
		}
		if !hasField(columns, "case_no") {
			columns = positionalCaseFields
		}

		rows := a.FindAll(table, func(n *html.Node) bool { return a.IsElement(n, "tr") })
		for _, row := range rows {
			tds := a.FindAll(row, func(n *html.Node) bool { return a.IsElement(n, "td") })
			if len(tds) < 3 {
				continue
			}
			cells := make([]string, len(tds))
			for i, td := range tds {
				cells[i] = a.ExtractText(td)
			}
			out = append(out, caseFromCells(columns, cells))
		}
	}
	return out
}

func caseFromCells(columns, cells []string) model.LegalCaseRecord {
	var c model.LegalCaseRecord
	for i, cell := range cells {
		if i >= len(columns) {
			break
		}
		switch columns[i] {
		case "case_no":
			c.CaseNumber = cell
		case "sections":
			c.Sections = cell
		case "status":
			c.Status = cell
		case "court":
			c.Court = cell
		case "year":
			if y, err := normalize.Year(cell); err == nil {
				c.Year = y
			}
		}
	}
	if len(cells) > 1 {
		c.Description = strings.Join(cells[1:], " | ")
	}
	return c
}

func hasField(columns []string, field string) bool {
	for _, c := range columns {
		if c == field {
			return true
		}
	}
	return false
}

func (a *ProfileAdapter) count(meta *model.RecordMeta, field, raw string) model.Field[int64] {
	f, err := normalize.Count(raw)
	if err != nil {
		meta.Warn(field, raw, "not a number")
	}
	return f
}

func (a *ProfileAdapter) money(meta *model.RecordMeta, field, raw string) model.Field[int64] {
	f, err := normalize.Money(raw)
	if err != nil {
		meta.Warn(field, raw, "unparseable amount")
	}
	return f
}
