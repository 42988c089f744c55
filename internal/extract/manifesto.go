package extract

import (
	"encoding/json"
	"fmt"
	"iter"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
	"github.com/ppiankov/tntracker/internal/trust"
)

const formatManifesto = "manifesto-index"

type manifestoEntry struct {
	Party       string   `json:"party"`
	Coalition   string   `json:"coalition"`
	Members     []string `json:"members"`
	Constit     string   `json:"constituency"`
	Candidate   string   `json:"candidate"`
	Year        flexYear `json:"year"`
	SourceType  string   `json:"source_type"`
	SourceTitle string   `json:"source_title"`
	SourceURL   string   `json:"source_url"`
	DocumentURL string   `json:"document_url"`
	PublishedAt string   `json:"published_at"`
	Summary     string   `json:"summary"`
	SummaryTa   string   `json:"summary_ta"`
	Documents   []struct {
		Language string `json:"language"`
		URL      string `json:"url"`
		Title    string `json:"title"`
	} `json:"documents"`
	Promises []struct {
		Slug     string `json:"slug"`
		Text     string `json:"text"`
		TextTa   string `json:"text_ta"`
		Category string `json:"category"`
	} `json:"promises"`
}

// ManifestoParser reads a manifesto index. Each entry cites its own source.
type ManifestoParser struct{}

func (ManifestoParser) Format() string { return formatManifesto }

func (ManifestoParser) Parse(in Input) iter.Seq2[model.Record, error] {
	return func(yield func(model.Record, error) bool) {
		for entry, err := range indexEntries(formatManifesto, in.Data, manifestoSchema) {
			if err != nil {
				if !yield(nil, err) {
					return
				}
				continue
			}
			rec, err := manifestoRecord(in, entry)
			if !yield(rec, err) {
				return
			}
		}
	}
}

func manifestoRecord(in Input, entry jsonEntry) (model.Record, error) {
	var e manifestoEntry
	if err := json.Unmarshal(entry.Raw, &e); err != nil {
		return nil, errors.NewRowError(formatManifesto, entry.Index, "entry does not decode", err)
	}

	rec := &model.ManifestoRecord{
		RecordMeta:   model.RecordMeta{SourceID: in.SourceID, Row: entry.Index},
		Party:        normalize.Display(e.Party),
		Coalition:    normalize.Display(e.Coalition),
		Constituency: normalize.Display(e.Constit),
		Candidate:    normalize.Display(e.Candidate),
		Year:         int(e.Year),
		Summary:      e.Summary,
		SummaryTa:    e.SummaryTa,
		DocumentURL:  e.DocumentURL,
	}
	if rec.Year == 0 {
		rec.Year = in.Year
	}
	if rec.Candidate != "" && rec.Constituency == "" {
		rec.Warn("candidate", rec.Candidate, "candidate manifesto without constituency, stored state-wide")
		rec.Candidate = ""
	}
	for _, m := range e.Members {
		if m = normalize.Display(m); m != "" {
			rec.Members = append(rec.Members, m)
		}
	}
	rec.PublishedAt = dateField(rec.Meta(), "published_at", e.PublishedAt)

	rec.Source = model.SourceRef{
		Origin:      entryOrigin(in, entry.Index, e.SourceURL, e.DocumentURL),
		Title:       firstNonEmpty(e.SourceTitle, fmt.Sprintf("Manifesto: %s", rec.Party)),
		Tier:        trust.FromSourceType(e.SourceType, model.TierOfficial),
		PublishedAt: rec.PublishedAt,
		Content:     entry.Raw,
	}

	for _, d := range e.Documents {
		rec.Documents = append(rec.Documents, model.ManifestoDocumentRecord{
			Language: normalize.Header(d.Language),
			URL:      d.URL,
			Title:    d.Title,
		})
	}

	seen := make(map[string]bool, len(e.Promises))
	for _, p := range e.Promises {
		slug := normalize.Slug(p.Slug)
		if slug == "" {
			slug = normalize.Slug(p.Text)
		}
		if seen[slug] {
			rec.Warn("promises", slug, "duplicate promise slug, first kept")
			continue
		}
		seen[slug] = true
		rec.Promises = append(rec.Promises, model.PromiseRecord{
			Slug:     slug,
			Text:     p.Text,
			TextTa:   p.TextTa,
			Category: p.Category,
		})
	}
	return rec, nil
}
