package pipeline

import (
	"fmt"
	"strings"

	"github.com/ppiankov/tntracker/internal/extract"
	"github.com/ppiankov/tntracker/internal/extract/adapters"
	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

// Import kinds, also the sync step names
const (
	KindBoundaries    = "boundaries"
	KindAffidavits    = "affidavits"
	KindResults       = "results"
	KindResultsPDF    = "results-pdf"
	KindLegalProfile  = "legal-profile"
	KindLegalCohort   = "legal-cohort"
	KindAnnouncements = "announcements"
	KindManifestos    = "manifestos"
	KindAssessments   = "assessments"
)

// Kinds lists every import kind in sync order.
func Kinds() []string {
	return []string{
		KindBoundaries, KindResults, KindAffidavits, KindResultsPDF,
		KindAnnouncements, KindLegalCohort, KindLegalProfile,
		KindManifestos, KindAssessments,
	}
}

// BoundarySpec imports a constituency GeoJSON FeatureCollection.
func BoundarySpec(origin string, tier model.TrustTier) SourceSpec {
	return SourceSpec{
		Name:   KindBoundaries,
		Origin: origin,
		Parser: extract.BoundaryParser{},
		Tier:   tier,
	}
}

// AffidavitSpec imports a roster CSV. An empty schema auto-detects.
func AffidavitSpec(origin, schema string, year int, tier model.TrustTier) SourceSpec {
	return SourceSpec{
		Name:   KindAffidavits,
		Origin: origin,
		Parser: extract.RosterParser{},
		Tier:   tier,
		Year:   year,
		Schema: schema,
	}
}

// ResultsSpec imports a results CSV. sourceURL names the publication a local
// copy was taken from and decides its tier.
func ResultsSpec(origin string, year int, sourceURL string) SourceSpec {
	spec := SourceSpec{
		Name:        KindResults,
		Origin:      origin,
		Parser:      extract.ResultsParser{},
		Year:        year,
		TrustOrigin: sourceURL,
	}
	if year != 0 {
		spec.Title = fmt.Sprintf("Results %d", year)
	}
	return spec
}

// Form21ESpecs imports Form 21E result PDFs, one source each.
func Form21ESpecs(origins []string, year int) []SourceSpec {
	specs := make([]SourceSpec, 0, len(origins))
	for _, origin := range origins {
		specs = append(specs, SourceSpec{
			Name:   KindResultsPDF,
			Origin: origin,
			Parser: extract.Form21EParser{},
			Year:   year,
			Title:  "Form 21E",
		})
	}
	return specs
}

// ProfileSpec imports one legal-history candidate profile page.
func ProfileSpec(origin string, year int, render bool) SourceSpec {
	return SourceSpec{
		Name:   KindLegalProfile,
		Origin: origin,
		Parser: adapters.NewProfileAdapter(),
		Year:   year,
		Render: render,
	}
}

// AnnouncementSpecs imports the configured news sources, optionally only
// those for party. Pages go through the adapter registry, which reads any
// page that is not a candidate profile as an article.
func AnnouncementSpecs(sources []model.AnnouncementSource, party string) []SourceSpec {
	want := normalize.Name(party)
	var specs []SourceSpec
	for _, src := range sources {
		if want != "" && normalize.Name(src.Party) != want {
			continue
		}
		pattern := strings.ToLower(src.Pattern)
		if pattern == "" {
			pattern = adapters.PatternEnglish
		}
		name := src.Name
		if name == "" {
			name = KindAnnouncements
		}
		specs = append(specs, SourceSpec{
			Name:    name,
			Origin:  src.URL,
			Render:  src.Render,
			Title:   src.Name,
			Year:    src.Year,
			Party:   src.Party,
			Pattern: pattern,
		})
	}
	return specs
}

// ManifestoSpec imports a manifesto index JSON.
func ManifestoSpec(origin string) SourceSpec {
	return SourceSpec{Name: KindManifestos, Origin: origin, Parser: extract.ManifestoParser{}}
}

// AssessmentSpec imports a promise assessment index JSON.
func AssessmentSpec(origin string) SourceSpec {
	return SourceSpec{Name: KindAssessments, Origin: origin, Parser: extract.AssessmentParser{}}
}
