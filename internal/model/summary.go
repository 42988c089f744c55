package model

import (
	"fmt"
	"time"
)

// SourceState is a step in the per-source state machine
type SourceState string

const (
	StatePending          SourceState = "pending"
	StateFetching         SourceState = "fetching"
	StateParsing          SourceState = "parsing"
	StateResolvingMerging SourceState = "resolving_merging"
	StateCompleted        SourceState = "completed"
	StateFailedSource     SourceState = "failed_source"
)

// Outcome is what happened to a single record
type Outcome string

const (
	OutcomeCreated     Outcome = "created"
	OutcomeUpdated     Outcome = "updated"
	OutcomeUnchanged   Outcome = "unchanged"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeNeedsReview Outcome = "needs_review"
	OutcomeFailed      Outcome = "failed" // Record could not be parsed
)

// SourceSummary aggregates one source's run
type SourceSummary struct {
	Name             string        `json:"name"`
	Origin           string        `json:"origin"`
	State            SourceState   `json:"state"`
	SourceDocumentID int64         `json:"source_document_id,omitempty"`
	Created          int           `json:"created"`
	Updated          int           `json:"updated"`
	Unchanged        int           `json:"unchanged"`
	Skipped          int           `json:"skipped"`
	NeedsReview      int           `json:"needs_review"`
	Failed           int           `json:"failed"`
	Warnings         []string      `json:"warnings,omitempty"`
	Error            string        `json:"error,omitempty"`
	Err              error         `json:"-"`
	Duration         time.Duration `json:"duration"`
}

// Count increments the counter for outcome.
func (s *SourceSummary) Count(o Outcome) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeNeedsReview:
		s.NeedsReview++
	case OutcomeFailed:
		s.Failed++
	}
}

// Warn records a warning line for the operator.
func (s *SourceSummary) Warn(format string, args ...any) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

// Records returns the number of records seen.
func (s SourceSummary) Records() int {
	return s.Created + s.Updated + s.Unchanged + s.Skipped + s.NeedsReview + s.Failed
}

// RunSummary is the result of one orchestrator run
type RunSummary struct {
	RunID      string          `json:"run_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Stopped    bool            `json:"stopped,omitempty"` // Cooperative stop was requested
	Sources    []SourceSummary `json:"sources"`
}

// Totals sums the counters over every source.
func (r RunSummary) Totals() SourceSummary {
	t := SourceSummary{Name: "total"}
	for _, s := range r.Sources {
		t.Created += s.Created
		t.Updated += s.Updated
		t.Unchanged += s.Unchanged
		t.Skipped += s.Skipped
		t.NeedsReview += s.NeedsReview
		t.Failed += s.Failed
	}
	return t
}

// FailedSources returns sources that ended in failed_source.
func (r RunSummary) FailedSources() []SourceSummary {
	var failed []SourceSummary
	for _, s := range r.Sources {
		if s.State == StateFailedSource {
			failed = append(failed, s)
		}
	}
	return failed
}

// HasFailures reports whether any source failed outright.
func (r RunSummary) HasFailures() bool {
	return len(r.FailedSources()) > 0
}

// NeedsAttention reports whether an operator should look at the run.
func (r RunSummary) NeedsAttention() bool {
	t := r.Totals()
	return r.HasFailures() || t.Skipped > 0 || t.NeedsReview > 0 || t.Failed > 0
}
