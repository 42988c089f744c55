package extract

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/trust"
)

const formatAssessment = "assessment-index"

type sourceBlock struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	SourceType  string `json:"source_type"`
	PublishedAt string `json:"published_at"`
	Quote       string `json:"quote"`
	Notes       string `json:"notes"`
}

type evidenceEntry struct {
	URL         string `json:"url"`
	SourceURL   string `json:"source_url"`
	Title       string `json:"title"`
	SourceTitle string `json:"source_title"`
	Quote       string `json:"quote"`
	Snippet     string `json:"snippet"`
	PublishedAt string `json:"published_at"`
	SourceType  string `json:"source_type"`
	Notes       string `json:"notes"`
}

type assessmentEntry struct {
	ClaimedPercent *float64          `json:"claimed_percent"`
	ClaimedBy      string            `json:"claimed_by"`
	Snippet        string            `json:"snippet"`
	PromiseSlug    string            `json:"promise_slug"`
	Slug           string            `json:"slug"`
	Party          string            `json:"party"`
	Coalition      string            `json:"coalition"`
	Year           flexYear          `json:"year"`
	Scope          string            `json:"scope"`
	Constit        string            `json:"constituency"`
	Status         string            `json:"status"`
	Score          *float64          `json:"score"`
	AsOf           string            `json:"as_of"`
	Summary        string            `json:"summary"`
	SummaryTa      string            `json:"summary_ta"`
	SourceType     string            `json:"source_type"`
	SourceTitle    string            `json:"source_title"`
	SourceURL      string            `json:"source_url"`
	PublishedAt    string            `json:"published_at"`
	Source         *sourceBlock      `json:"source"`
	Evidence       []json.RawMessage `json:"evidence"`
}

// AssessmentParser reads a promise assessment index. Entries carrying
// claimed_percent are party fulfilment claims; the rest assess one promise.
type AssessmentParser struct{}

func (AssessmentParser) Format() string { return formatAssessment }

func (AssessmentParser) Parse(in Input) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for entry, err := range indexEntries(formatAssessment, in.Data, assessmentSchema) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			rec, err := assessmentRecord(in, entry)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func assessmentRecord(in Input, entry jsonEntry) (model.Record, error) {
	var e assessmentEntry
	if err := json.Unmarshal(entry.Raw, &e); err != nil {
		return nil, errors.NewRowError(formatAssessment, entry.Index, "entry does not decode", err)
	}
	src := sourceBlock{}
	if e.Source != nil {
		src = *e.Source
	}
	year := int(e.Year)
	if year == 0 {
		year = in.Year
	}

	if e.ClaimedPercent != nil {
		party := normalize.Display(e.Party)
		if party == "" {
			return nil, errors.NewRowError(formatAssessment, entry.Index, "fulfilment claim without party", nil)
		}
		rec := &model.ClaimRecord{
			RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: entry.Index},
			Year:           year,
			Party:          party,
			ClaimedPercent: *e.ClaimedPercent,
			ClaimedBy:      strings.TrimSpace(e.ClaimedBy),
			Snippet:        firstNonEmpty(src.Quote, e.Snippet),
		}
		rec.AsOf = dateField(rec.Meta(), "as_of", e.AsOf)
		published := dateField(rec.Meta(), "published_at", firstNonEmpty(src.PublishedAt, e.PublishedAt))
		rec.Source = model.SourceRef{
			Origin:      entryOrigin(in, entry.Index, src.URL, e.SourceURL),
			Title:       firstNonEmpty(src.Title, e.SourceTitle, fmt.Sprintf("Fulfilment claim: %s", party)),
			Tier:        trust.FromSourceType(firstNonEmpty(src.SourceType, e.SourceType), model.TierMedia),
			PublishedAt: published,
			Notes:       strings.TrimSpace(src.Notes),
			Content:     entry.Raw,
		}
		return rec, nil
	}

	slug := normalize.Slug(firstNonEmpty(e.PromiseSlug, e.Slug))
	if slug == "" {
		return nil, errors.NewRowError(formatAssessment, entry.Index, "entry has neither claimed_percent nor promise_slug", nil)
	}

	rec := &model.AssessmentRecord{
		RecordMeta:   model.RecordMeta{SourceID: in.SourceID, Row: entry.Index},
		Year:         year,
		PromiseSlug:  slug,
		Party:        normalize.Display(e.Party),
		Coalition:    normalize.Display(e.Coalition),
		Constituency: normalize.Display(e.Constit),
		Status:       model.ParseAssessmentStatus(strings.ToLower(strings.TrimSpace(e.Status))),
		Summary:      strings.TrimSpace(e.Summary),
		SummaryTa:    strings.TrimSpace(e.SummaryTa),
	}
	if e.Score != nil {
		rec.Score = model.Some(*e.Score)
	}
	rec.AsOf = dateField(rec.Meta(), "as_of", e.AsOf)

	switch model.Scope(strings.ToLower(strings.TrimSpace(e.Scope))) {
	case model.ScopeState:
		rec.Scope = model.ScopeState
	case model.ScopeConstituency:
		rec.Scope = model.ScopeConstituency
	default:
		rec.Warn("scope", e.Scope, "unknown scope, using state")
		rec.Scope = model.ScopeState
	}
	if rec.Scope == model.ScopeConstituency && rec.Constituency == "" {
		return nil, errors.NewRowError(formatAssessment, entry.Index, "constituency assessment without constituency", nil)
	}
	if rec.Scope == model.ScopeState {
		rec.Constituency = ""
		if rec.Party == "" && rec.Coalition == "" {
			return nil, errors.NewRowError(formatAssessment, entry.Index, "state assessment without party or coalition", nil)
		}
	}

	published := dateField(rec.Meta(), "published_at", firstNonEmpty(src.PublishedAt, e.PublishedAt))
	rec.Source = model.SourceRef{
		Origin:      entryOrigin(in, entry.Index, src.URL, e.SourceURL),
		Title:       firstNonEmpty(src.Title, e.SourceTitle, fmt.Sprintf("Assessment: %s", slug)),
		Tier:        trust.FromSourceType(firstNonEmpty(src.SourceType, e.SourceType), model.TierMedia),
		PublishedAt: published,
		Notes:       strings.TrimSpace(src.Notes),
		Content:     entry.Raw,
	}

	for i, raw := range e.Evidence {
		var ev evidenceEntry
		if err := json.Unmarshal(raw, &ev); err != nil {
			rec.Warn("evidence", fmt.Sprint(i+1), "evidence item does not decode")
			continue
		}
		url := firstNonEmpty(ev.URL, ev.SourceURL)
		if url == "" {
			rec.Warn("evidence", fmt.Sprint(i+1), "evidence without url")
			continue
		}
		evPublished := dateField(rec.Meta(), "evidence.published_at", ev.PublishedAt)
		rec.Evidence = append(rec.Evidence, model.EvidenceRecord{
			Source: model.SourceRef{
				Origin:      url,
				Title:       firstNonEmpty(ev.SourceTitle, ev.Title, fmt.Sprintf("Evidence for %s", slug)),
				Tier:        trust.FromSourceType(ev.SourceType, model.TierMedia),
				PublishedAt: evPublished,
				Notes:       strings.TrimSpace(ev.Notes),
				Content:     raw,
			},
			URL:         url,
			Quote:       firstNonEmpty(ev.Quote, ev.Snippet),
			PublishedAt: evPublished,
		})
	}
	return rec, nil
}
