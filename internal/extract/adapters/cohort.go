package adapters

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/ppiankov/tntracker/internal/errors"
)

const formatCohort = "cohort-html"

var listingTitleRe = regexp.MustCompile(`List of Candidates in\s*([A-Za-z\s]+)`)

// CohortListing is one constituency page of a cohort index
type CohortListing struct {
	Constituency string
	Candidates   []string // Absolute profile URLs, sorted
}

// CohortAdapter extracts links from a cohort index and its listing pages
type CohortAdapter struct {
	BaseAdapter
}

// NewCohortAdapter creates a new cohort adapter
func NewCohortAdapter() *CohortAdapter {
	return &CohortAdapter{}
}

// ConstituencyLinks returns the constituency listing pages linked from an
// index page. By-election listings are skipped.
func (a *CohortAdapter) ConstituencyLinks(data []byte, base string) ([]string, error) {
	return a.links(data, base, func(href, text string) bool {
		if !strings.Contains(href, "action=show_candidates") || !strings.Contains(href, "constituency_id=") {
			return false
		}
		return !strings.Contains(strings.ToUpper(text), "BYE ELECTION")
	})
}

// Listing parses a constituency listing page.
func (a *CohortAdapter) Listing(data []byte, base string) (CohortListing, error) {
	doc, err := a.ParseHTML(data)
	if err != nil {
		return CohortListing{}, errors.NewDocumentError(formatCohort, errors.ParseDocument, "unreadable HTML", err)
	}

	listing := CohortListing{
		Candidates: a.collect(doc, base, func(href, _ string) bool {
			return strings.Contains(href, "candidate.php?candidate_id=")
		}),
	}
	if h := a.FindFirst(doc, func(n *html.Node) bool { return a.IsElement(n, "h1", "h2", "h3") }); h != nil {
		listing.Constituency = a.ExtractText(h)
	}
	if listing.Constituency == "" {
		if m := listingTitleRe.FindStringSubmatch(a.ExtractText(doc)); m != nil {
			listing.Constituency = strings.TrimSpace(m[1])
		}
	}
	if listing.Constituency == "" {
		if _, id, ok := strings.Cut(base, "constituency_id="); ok {
			listing.Constituency = id
		}
	}
	return listing, nil
}

func (a *CohortAdapter) links(data []byte, base string, keep func(href, text string) bool) ([]string, error) {
	doc, err := a.ParseHTML(data)
	if err != nil {
		return nil, errors.NewDocumentError(formatCohort, errors.ParseDocument, "unreadable HTML", err)
	}
	return a.collect(doc, base, keep), nil
}

// collect resolves matching hrefs against base, de-duplicated and sorted
func (a *CohortAdapter) collect(doc *html.Node, base string, keep func(href, text string) bool) []string {
	baseURL, _ := url.Parse(base)

	seen := make(map[string]bool)
	anchors := a.FindAll(doc, func(n *html.Node) bool {
		return a.IsElement(n, "a") && a.GetAttribute(n, "href") != ""
	})
	for _, link := range anchors {
		href := strings.TrimSpace(a.GetAttribute(link, "href"))
		if !keep(href, a.ExtractText(link)) {
			continue
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		seen[href] = true
	}

	out := make([]string, 0, len(seen))
	for href := range seen {
		out = append(out, href)
	}
	sort.Strings(out)
	return out
}
