package model

import "time"

// SourceDocument is one provenance unit. It is immutable once registered.
type SourceDocument struct {
	ID          int64      `json:"id"`
	Origin      string     `json:"origin"`                 // URL or local path
	Title       string     `json:"title,omitempty"`        // Human-readable label
	Tier        TrustTier  `json:"tier"`                   // Fixed at creation
	RetrievedAt time.Time  `json:"retrieved_at"`           // When the content was fetched
	PublishedAt *time.Time `json:"published_at,omitempty"` // Publication date if the source states one
	Checksum    string     `json:"checksum"`               // sha256 over origin and content
	Notes       string     `json:"notes,omitempty"`
}

// SourceRef describes a document that a record cites but that has not been
// registered yet, such as an evidence link inside a JSON index entry.
type SourceRef struct {
	Origin      string     `json:"origin"`
	Title       string     `json:"title,omitempty"`
	Tier        TrustTier  `json:"tier"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Content     []byte     `json:"-"` // Bytes that identify this reference for checksumming
}
