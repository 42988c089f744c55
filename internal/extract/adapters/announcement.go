package adapters

import (
	"bytes"
	"iter"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/extract"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

const formatAnnouncement = "announcement-html"

// Announcement patterns
const (
	PatternEnglish = "english"
	PatternTamil   = "tamil"
)

var (
	englishPairRe = regexp.MustCompile(`([A-Z][A-Za-z\.\s]+)\s+for\s+([A-Z][A-Za-z\s\-]+)`)
	tamilPairRe   = regexp.MustCompile(`([\x{0B80}-\x{0BFF}A-Za-z\.\s]+)-\s*([\x{0B80}-\x{0BFF}A-Za-z\s]+)தொகுதி`)
)

// Pair is one announced candidacy
type Pair struct {
	Name         string
	Constituency string
}

// AnnouncementAdapter reads news articles that list a party's candidates
type AnnouncementAdapter struct {
	BaseAdapter
}

// NewAnnouncementAdapter creates a new announcement adapter
func NewAnnouncementAdapter() *AnnouncementAdapter {
	return &AnnouncementAdapter{}
}

// Name returns the adapter name
func (a *AnnouncementAdapter) Name() string {
	return "announcement"
}

// Format implements extract.Parser
func (a *AnnouncementAdapter) Format() string {
	return formatAnnouncement
}

// CanHandle always returns true (fallback adapter)
func (a *AnnouncementAdapter) CanHandle(url string, contentType string) bool {
	return true
}

// Parse yields one announced CandidateRecord per (name, constituency) pair
func (a *AnnouncementAdapter) Parse(in extract.Input) iter.Seq2[model.Record, error] {
	text, err := a.MainText(in.Data, in.Origin)
	if err != nil {
		return func(yield func(model.Record, error) bool) {
			yield(nil, errors.NewDocumentError(formatAnnouncement, errors.ParseDocument, "unreadable article", err))
		}
	}
	if normalize.IsBlank(in.Party) {
		return func(yield func(model.Record, error) bool) {
			yield(nil, errors.NewDocumentError(formatAnnouncement, errors.ParseSchema, "announcement source has no party", nil))
		}
	}

	pairs := ExtractPairs(text, in.Pattern)
	return func(yield func(model.Record, error) bool) {
		if len(pairs) == 0 {
			yield(nil, errors.NewDocumentError(formatAnnouncement, errors.ParseDocument, "no candidates found in article", nil))
			return
		}
		for i, p := range pairs {
			constName, _ := normalize.Constituency(p.Constituency)
			rec := &model.CandidateRecord{
				RecordMeta:     model.RecordMeta{SourceID: in.SourceID, Row: i + 1},
				Name:           p.Name,
				NameNormalized: normalize.Name(p.Name),
				Party:          normalize.Display(in.Party),
				Constituency:   constName,
				Reservation:    normalize.Reservation(p.Constituency),
				Year:           in.Year,
				Status:         model.Some(string(model.StatusAnnounced)),
			}
			if normalize.IsTamil(p.Name) {
				rec.NameTa = model.Some(p.Name)
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// MainText returns the article body. Readability extraction is tried first;
// pages it cannot handle fall back to all visible text.
func (a *AnnouncementAdapter) MainText(data []byte, origin string) (string, error) {
	pageURL, _ := url.Parse(origin)
	if pageURL == nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err == nil {
		if text := strings.Join(strings.Fields(article.TextContent), " "); text != "" {
			return text, nil
		}
	}

	doc, err := a.ParseHTML(data)
	if err != nil {
		return "", err
	}
	return a.ExtractText(doc), nil
}

// ExtractPairs finds (name, constituency) pairs in text. English pairs need
// a name of at least two words.
func ExtractPairs(text, pattern string) []Pair {
	var pairs []Pair
	seen := make(map[Pair]bool)
	add := func(p Pair) {
		if p.Name == "" || p.Constituency == "" || seen[p] {
			return
		}
		seen[p] = true
		pairs = append(pairs, p)
	}

	switch strings.ToLower(pattern) {
	case PatternTamil:
		for _, m := range tamilPairRe.FindAllStringSubmatch(text, -1) {
			add(Pair{Name: collapse(m[1]), Constituency: collapse(m[2])})
		}
	default:
		for _, m := range englishPairRe.FindAllStringSubmatch(text, -1) {
			p := Pair{Name: collapse(m[1]), Constituency: collapse(m[2])}
			if len(strings.Fields(p.Name)) < 2 {
				continue
			}
			add(p)
		}
	}
	return pairs
}

func collapse(s string) string {
	return strings.Trim(strings.Join(strings.Fields(s), " "), ". ")
}
