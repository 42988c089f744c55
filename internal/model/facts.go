package model

import "time"

// Affidavit is a trust-tiered snapshot of a candidate's declaration
type Affidavit struct {
	ID               int64             `json:"id"`
	CandidateID      int64             `json:"candidate_id"`
	SourceDocumentID int64             `json:"source_document_id"`
	Tier             TrustTier         `json:"tier"`
	CriminalCases    *int64            `json:"criminal_cases,omitempty"`
	SeriousCases     *int64            `json:"serious_cases,omitempty"`
	Assets           *int64            `json:"assets,omitempty"` // Rupees
	Liabilities      *int64            `json:"liabilities,omitempty"`
	Education        *string           `json:"education,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
	Cases            []LegalCase       `json:"cases,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
}

// LegalCase is one case listed under an affidavit
type LegalCase struct {
	ID          int64  `json:"id"`
	AffidavitID int64  `json:"affidavit_id"`
	CaseNumber  string `json:"case_number"`
	Court       string `json:"court,omitempty"`
	Sections    string `json:"sections,omitempty"`
	Status      string `json:"status,omitempty"`
	Year        *int64 `json:"year,omitempty"`
	Description string `json:"description,omitempty"`
}

// CandidateResult is one candidate's outcome for one election
type CandidateResult struct {
	ID               int64     `json:"id"`
	CandidateID      int64     `json:"candidate_id"`
	ElectionID       int64     `json:"election_id"`
	SourceDocumentID int64     `json:"source_document_id"`
	Tier             TrustTier `json:"tier"`
	Votes            *int64    `json:"votes,omitempty"`
	VoteShare        *float64  `json:"vote_share,omitempty"` // Percent, 3 decimal places
	Position         *int64    `json:"position,omitempty"`
	IsWinner         bool      `json:"is_winner"`
	RetrievedAt      time.Time `json:"retrieved_at"`
}

// Scope says whether a manifesto or assessment is state-wide or local
type Scope string

const (
	ScopeState        Scope = "state"
	ScopeConstituency Scope = "constituency"
)

// Manifesto belongs to a party or coalition
type Manifesto struct {
	ID               int64      `json:"id"`
	PartyID          *int64     `json:"party_id,omitempty"`
	CoalitionID      *int64     `json:"coalition_id,omitempty"`
	ElectionID       *int64     `json:"election_id,omitempty"`
	ConstituencyID   *int64     `json:"constituency_id,omitempty"` // Nil for state-wide manifestos
	CandidateID      *int64     `json:"candidate_id,omitempty"`
	SourceDocumentID int64      `json:"source_document_id"`
	Summary          string     `json:"summary,omitempty"`
	SummaryTa        string     `json:"summary_ta,omitempty"`
	DocumentURL      string     `json:"document_url,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// ManifestoDocument is a per-language file reference
type ManifestoDocument struct {
	ID          int64  `json:"id"`
	ManifestoID int64  `json:"manifesto_id"`
	Language    string `json:"language"`
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
}

// ManifestoPromise is one extracted line item
type ManifestoPromise struct {
	ID          int64  `json:"id"`
	ManifestoID int64  `json:"manifesto_id"`
	Slug        string `json:"slug"`
	Text        string `json:"text"`
	TextTa      string `json:"text_ta,omitempty"`
	Category    string `json:"category,omitempty"`
}

// AssessmentStatus is how far a promise has been delivered
type AssessmentStatus string

const (
	AssessmentFulfilled          AssessmentStatus = "fulfilled"
	AssessmentPartiallyFulfilled AssessmentStatus = "partially_fulfilled"
	AssessmentInProgress         AssessmentStatus = "in_progress"
	AssessmentNotStarted         AssessmentStatus = "not_started"
	AssessmentBroken             AssessmentStatus = "broken"
	AssessmentUnknown            AssessmentStatus = "unknown"
)

// ParseAssessmentStatus maps text to a status, defaulting to unknown.
func ParseAssessmentStatus(s string) AssessmentStatus {
	switch AssessmentStatus(s) {
	case AssessmentFulfilled, AssessmentPartiallyFulfilled, AssessmentInProgress,
		AssessmentNotStarted, AssessmentBroken:
		return AssessmentStatus(s)
	}
	return AssessmentUnknown
}

// PromiseAssessment evaluates fulfilment of a promise
type PromiseAssessment struct {
	ID               int64            `json:"id"`
	PromiseID        int64            `json:"promise_id"`
	Scope            Scope            `json:"scope"`
	PartyID          *int64           `json:"party_id,omitempty"`        // Set for state scope
	ConstituencyID   *int64           `json:"constituency_id,omitempty"` // Set for constituency scope
	SourceDocumentID int64            `json:"source_document_id"`
	ClaimID          *int64           `json:"claim_id,omitempty"` // Party self-claim this assessment can contradict
	AsOf             *time.Time       `json:"as_of,omitempty"`
	Status           AssessmentStatus `json:"status"`
	Score            *float64         `json:"score,omitempty"`
	Summary          string           `json:"summary,omitempty"`
	SummaryTa        string           `json:"summary_ta,omitempty"`
}

// PromiseEvidence backs an assessment with a link
type PromiseEvidence struct {
	ID               int64      `json:"id"`
	AssessmentID     int64      `json:"assessment_id"`
	SourceDocumentID int64      `json:"source_document_id"`
	URL              string     `json:"url"`
	Quote            string     `json:"quote,omitempty"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
}

// PartyFulfilmentClaim is a party's own statement of delivery
type PartyFulfilmentClaim struct {
	ID               int64      `json:"id"`
	PartyID          int64      `json:"party_id"`
	ElectionID       *int64     `json:"election_id,omitempty"`
	SourceDocumentID int64      `json:"source_document_id"`
	AsOf             *time.Time `json:"as_of,omitempty"`
	ClaimedPercent   float64    `json:"claimed_percent"`
	ClaimedBy        string     `json:"claimed_by,omitempty"`
	Snippet          string     `json:"snippet,omitempty"`
}
