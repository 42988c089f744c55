package model

import (
	"encoding/json"
	"time"
)

// UpdateAction classifies an UpdateLog entry
type UpdateAction string

const (
	ActionCreated   UpdateAction = "created"
	ActionUpdated   UpdateAction = "updated"
	ActionConfirmed UpdateAction = "confirmed" // Source restated existing values
)

// ChangeReason explains why a field was written or kept
type ChangeReason string

const (
	ReasonFill       ChangeReason = "fill"        // Field was unset
	ReasonHigherTier ChangeReason = "higher_tier" // Incoming source outranks the stored one
	ReasonRecency    ChangeReason = "recency"     // Same tier, newer retrieval
	ReasonKept       ChangeReason = "kept"        // Stored value outranks the incoming one
	ReasonSnapshot   ChangeReason = "snapshot"    // Appended fact
	ReasonReplaced   ChangeReason = "replaced"    // Wholesale replacement such as a boundary
)

// FieldChange records one field transition inside a merge
type FieldChange struct {
	Field    string       `json:"field"`
	Previous any          `json:"previous"`
	Value    any          `json:"value"`
	Reason   ChangeReason `json:"reason"`
	PrevTier TrustTier    `json:"previous_tier,omitempty"`
}

// UpdateLogEntry is one append-only audit record
type UpdateLogEntry struct {
	ID               int64         `json:"id"`
	EntityType       EntityType    `json:"entity_type"`
	EntityID         int64         `json:"entity_id"`
	SourceDocumentID int64         `json:"source_document_id"`
	RunID            string        `json:"run_id,omitempty"`
	Action           UpdateAction  `json:"action"`
	Changes          []FieldChange `json:"changes,omitempty"`
	Kept             []FieldChange `json:"kept,omitempty"` // Conflicts resolved in favour of stored values
	Notes            string        `json:"notes,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
}

// FieldProvenance records which source last set a canonical field
type FieldProvenance struct {
	EntityType       EntityType `json:"entity_type"`
	EntityID         int64      `json:"entity_id"`
	Field            string     `json:"field"`
	SourceDocumentID int64      `json:"source_document_id"`
	Tier             TrustTier  `json:"tier"`
	RetrievedAt      time.Time  `json:"retrieved_at"`
	Known            bool       `json:"known"` // False when the source reported the field as unknown
}

// FieldStatus separates missing imports from genuinely unknown values
type FieldStatus string

const (
	FieldNotImported FieldStatus = "not_imported"
	FieldUnknown     FieldStatus = "unknown"
	FieldKnown       FieldStatus = "known"
)

// ReviewStatus tracks a review queue item
type ReviewStatus string

const (
	ReviewOpen     ReviewStatus = "open"
	ReviewResolved ReviewStatus = "resolved"
)

// ReviewCandidate is one entity the resolver considered
type ReviewCandidate struct {
	EntityID int64   `json:"entity_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// ReviewItem is a record held back for a human decision
type ReviewItem struct {
	ID               int64             `json:"id"`
	EntityType       EntityType        `json:"entity_type"`
	SourceDocumentID int64             `json:"source_document_id"`
	Reason           string            `json:"reason"`
	Record           json.RawMessage   `json:"record"`
	Candidates       []ReviewCandidate `json:"candidates,omitempty"`
	Status           ReviewStatus      `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}
