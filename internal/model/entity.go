package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EntityType names a canonical or fact table in the audit trail.
type EntityType string

const (
	EntityCandidate    EntityType = "candidate"
	EntityConstituency EntityType = "constituency"
	EntityParty        EntityType = "party"
	EntityCoalition    EntityType = "coalition"
	EntityManifesto    EntityType = "manifesto"
	EntityAssessment   EntityType = "promise_assessment"
	EntityClaim        EntityType = "fulfilment_claim"
)

// ParseEntityType accepts an entity type name or its short form.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "candidate":
		return EntityCandidate, nil
	case "constituency":
		return EntityConstituency, nil
	case "party":
		return EntityParty, nil
	case "coalition":
		return EntityCoalition, nil
	case "manifesto":
		return EntityManifesto, nil
	case "promise_assessment", "assessment":
		return EntityAssessment, nil
	case "fulfilment_claim", "claim":
		return EntityClaim, nil
	}
	return "", fmt.Errorf("unknown entity type %q", s)
}

// CandidateStatus is the lifecycle state of a candidacy
type CandidateStatus string

const (
	StatusApplied    CandidateStatus = "applied"
	StatusAccepted   CandidateStatus = "accepted"
	StatusRejected   CandidateStatus = "rejected"
	StatusWithdrawn  CandidateStatus = "withdrawn"
	StatusContesting CandidateStatus = "contesting"
	StatusAnnounced  CandidateStatus = "announced"
	StatusDeceased   CandidateStatus = "deceased"
)

// ParseCandidateStatus maps free text to a status. Unrecognized text is reported as false.
func ParseCandidateStatus(s string) (CandidateStatus, bool) {
	switch CandidateStatus(s) {
	case StatusApplied, StatusAccepted, StatusRejected, StatusWithdrawn,
		StatusContesting, StatusAnnounced, StatusDeceased:
		return CandidateStatus(s), true
	}
	return "", false
}

// Candidate is the canonical person entity for one election
type Candidate struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`            // Display form
	NameNormalized string    `json:"name_normalized"` // Resolution key
	NameTa         *string   `json:"name_ta,omitempty"`
	PartyID        *int64    `json:"party_id,omitempty"`
	ConstituencyID int64     `json:"constituency_id"`
	ElectionYear   int       `json:"election_year"`
	Age            *int64    `json:"age,omitempty"`
	Gender         *string   `json:"gender,omitempty"`
	Education      *string   `json:"education,omitempty"`
	Profession     *string   `json:"profession,omitempty"`
	Status         *string   `json:"status,omitempty"`
	ProfileURL     *string   `json:"profile_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Constituency is an electoral district
type Constituency struct {
	ID             int64           `json:"id"`
	Number         *int64          `json:"number,omitempty"` // Assembly constituency number
	Name           string          `json:"name"`
	NameNormalized string          `json:"name_normalized"`
	NameTa         *string         `json:"name_ta,omitempty"`
	District       *string         `json:"district,omitempty"`
	DistrictTa     *string         `json:"district_ta,omitempty"`
	Reservation    *string         `json:"reservation,omitempty"` // GEN, SC or ST
	Boundary       json.RawMessage `json:"boundary,omitempty"`    // GeoJSON geometry, replaced wholesale
	BoundarySource *int64          `json:"boundary_source_id,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Party is a political party
type Party struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	NameNormalized string    `json:"name_normalized"`
	NameTa         *string   `json:"name_ta,omitempty"`
	Abbreviation   *string   `json:"abbreviation,omitempty"`
	Symbol         *string   `json:"symbol,omitempty"`
	Website        *string   `json:"website,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Coalition groups parties for one election
type Coalition struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	ElectionID *int64  `json:"election_id,omitempty"`
	PartyIDs   []int64 `json:"party_ids,omitempty"`
}

// Election is one general election, keyed by year
type Election struct {
	ID   int64  `json:"id"`
	Year int    `json:"year"`
	Name string `json:"name"`
}

// EntityRef points at a canonical entity together with the facts the
// resolver needs for tie-breaking.
type EntityRef struct {
	Type           EntityType `json:"type"`
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	NameNormalized string     `json:"name_normalized"`
	ConstituencyID *int64     `json:"constituency_id,omitempty"`
	PartyID        *int64     `json:"party_id,omitempty"`
	Year           int        `json:"year,omitempty"`
	BestTier       TrustTier  `json:"best_tier"` // Highest tier among linked sources
	UpdatedAt      time.Time  `json:"updated_at"`
}
