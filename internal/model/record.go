package model

import (
	"fmt"
	"time"
)

// Warning is a non-fatal, field-level note attached to a record
type Warning struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	if w.Value == "" {
		return fmt.Sprintf("%s: %s", w.Field, w.Reason)
	}
	return fmt.Sprintf("%s: %s (%q)", w.Field, w.Reason, w.Value)
}

// RecordMeta is embedded in every normalized record
type RecordMeta struct {
	SourceID int64     `json:"source_id"`     // SourceDocument the record came from
	Row      int       `json:"row,omitempty"` // 1-based data row or entry index
	Warnings []Warning `json:"warnings,omitempty"`
}

// Meta returns the embedded metadata.
func (m *RecordMeta) Meta() *RecordMeta {
	return m
}

// Warn appends a field warning.
func (m *RecordMeta) Warn(field, value, reason string) {
	m.Warnings = append(m.Warnings, Warning{Field: field, Value: value, Reason: reason})
}

// Record is a normalized intermediate record produced by a parser
type Record interface {
	Meta() *RecordMeta
}

// CandidateRecord describes one candidate as a single source sees them
type CandidateRecord struct {
	RecordMeta
	Name           string        `json:"name"`            // Display form, as written by the source
	NameNormalized string        `json:"name_normalized"` // Folded form used for matching
	NameTa         Field[string] `json:"name_ta"`
	Party          string        `json:"party"`
	Constituency   string        `json:"constituency"`
	ConstituencyNo Field[int64]  `json:"constituency_no"`
	District       Field[string] `json:"district"`
	Reservation    Field[string] `json:"reservation"` // Known only when the label carried a marker
	Year           int           `json:"year"`
	Age            Field[int64]  `json:"age"`
	Gender         Field[string] `json:"gender"`
	Education      Field[string] `json:"education"`
	Profession     Field[string] `json:"profession"`
	Status         Field[string] `json:"status"`
	ProfileURL     Field[string] `json:"profile_url"`
	NeedsReview    bool          `json:"needs_review,omitempty"` // Flagged upstream as an uncertain match
	ReviewNote     string        `json:"review_note,omitempty"`

	Affidavit *AffidavitRecord `json:"affidavit,omitempty"`
	Result    *ResultRecord    `json:"result,omitempty"`
}

// AffidavitRecord is the snapshot part of a candidate record
type AffidavitRecord struct {
	CriminalCases Field[int64]      `json:"criminal_cases"`
	SeriousCases  Field[int64]      `json:"serious_cases"`
	Assets        Field[int64]      `json:"assets"`
	Liabilities   Field[int64]      `json:"liabilities"`
	Education     Field[string]     `json:"education"`
	Details       map[string]string `json:"details,omitempty"`
	Cases         []LegalCaseRecord `json:"cases,omitempty"`
}

// Empty reports whether the snapshot carries nothing worth storing.
func (a *AffidavitRecord) Empty() bool {
	return a == nil || (!a.CriminalCases.IsKnown() && !a.SeriousCases.IsKnown() &&
		!a.Assets.IsKnown() && !a.Liabilities.IsKnown() && !a.Education.IsKnown() &&
		len(a.Cases) == 0 && len(a.Details) == 0)
}

// LegalCaseRecord is one case row from a legal-history table
type LegalCaseRecord struct {
	CaseNumber  string       `json:"case_number"`
	Court       string       `json:"court,omitempty"`
	Sections    string       `json:"sections,omitempty"`
	Status      string       `json:"status,omitempty"`
	Year        Field[int64] `json:"year"`
	Description string       `json:"description,omitempty"`
}

// ResultRecord is the outcome part of a candidate record
type ResultRecord struct {
	Votes     Field[int64]   `json:"votes"`
	VoteShare Field[float64] `json:"vote_share"`
	Position  Field[int64]   `json:"position"`
	IsWinner  bool           `json:"is_winner"`
}

// ConstituencyRecord describes one district, usually from a boundary feature
type ConstituencyRecord struct {
	RecordMeta
	Name           string         `json:"name"`
	NameNormalized string         `json:"name_normalized"`
	Number         Field[int64]   `json:"number"`
	NameTa         Field[string]  `json:"name_ta"`
	District       Field[string]  `json:"district"`
	Reservation    Field[string]  `json:"reservation"`
	Geometry       []byte         `json:"-"` // GeoJSON geometry, nil when absent
	BBox           [4]float64     `json:"bbox"`
	Properties     map[string]any `json:"properties,omitempty"`
}

// ManifestoRecord is one entry of a manifesto index
type ManifestoRecord struct {
	RecordMeta
	Source       SourceRef                 `json:"source"`
	Party        string                    `json:"party"`
	Coalition    string                    `json:"coalition,omitempty"`
	Members      []string                  `json:"members,omitempty"`
	Constituency string                    `json:"constituency,omitempty"`
	Candidate    string                    `json:"candidate,omitempty"`
	Year         int                       `json:"year,omitempty"`
	Summary      string                    `json:"summary,omitempty"`
	SummaryTa    string                    `json:"summary_ta,omitempty"`
	DocumentURL  string                    `json:"document_url,omitempty"`
	PublishedAt  *time.Time                `json:"published_at,omitempty"`
	Documents    []ManifestoDocumentRecord `json:"documents,omitempty"`
	Promises     []PromiseRecord           `json:"promises,omitempty"`
}

// ManifestoDocumentRecord is a per-language document reference
type ManifestoDocumentRecord struct {
	Language string `json:"language"`
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
}

// PromiseRecord is one promise line item
type PromiseRecord struct {
	Slug     string `json:"slug"`
	Text     string `json:"text"`
	TextTa   string `json:"text_ta,omitempty"`
	Category string `json:"category,omitempty"`
}

// AssessmentRecord evaluates one promise
type AssessmentRecord struct {
	RecordMeta
	Source       SourceRef        `json:"source"`
	Year         int              `json:"year,omitempty"`
	PromiseSlug  string           `json:"promise_slug"`
	Party        string           `json:"party,omitempty"`
	Coalition    string           `json:"coalition,omitempty"`
	Scope        Scope            `json:"scope"`
	Constituency string           `json:"constituency,omitempty"`
	Status       AssessmentStatus `json:"status"`
	Score        Field[float64]   `json:"score"`
	AsOf         *time.Time       `json:"as_of,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	SummaryTa    string           `json:"summary_ta,omitempty"`
	Evidence     []EvidenceRecord `json:"evidence,omitempty"`
}

// EvidenceRecord is one link supporting an assessment
type EvidenceRecord struct {
	Source      SourceRef  `json:"source"`
	URL         string     `json:"url"`
	Quote       string     `json:"quote,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// ClaimRecord is a party's self-reported fulfilment percentage
type ClaimRecord struct {
	RecordMeta
	Source         SourceRef  `json:"source"`
	Year           int        `json:"year,omitempty"`
	Party          string     `json:"party"`
	ClaimedPercent float64    `json:"claimed_percent"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	Snippet        string     `json:"snippet,omitempty"`
	AsOf           *time.Time `json:"as_of,omitempty"`
}
