// Package resolve matches normalized records to canonical entities.
//
// Resolution is a pure function of the record, the candidate pool, the
// thresholds and the tier ranking.
package resolve

import (
	"fmt"
	"math"
	"sort"

	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

// Default thresholds on the 0-100 similarity scale
const (
	DefaultAcceptThreshold = 90
	DefaultReviewThreshold = 75
)

// Kind is the outcome class of a resolution
type Kind int

const (
	NoMatch Kind = iota
	Matched
	NeedsReview
)

func (k Kind) String() string {
	switch k {
	case Matched:
		return "matched"
	case NeedsReview:
		return "needs_review"
	default:
		return "no_match"
	}
}

// Scored is a pool entity with its similarity to the query
type Scored struct {
	Ref   model.EntityRef
	Score float64
}

// Result is the resolver's decision
type Result struct {
	Kind       Kind
	Ref        *model.EntityRef // Set when Matched
	Confidence float64
	Reason     string
	Candidates []Scored // Entities in the review band, best first
}

// Query is what the resolver knows about an incoming record
type Query struct {
	Name           string // Normalized
	ConstituencyID *int64
	PartyID        *int64
	Year           int
	Tier           model.TrustTier
}

// Resolver holds thresholds and the tier ranking
type Resolver struct {
	accept  float64
	review  float64
	ranking model.TrustRanking
}

// New creates a resolver. Zero thresholds take the defaults.
func New(cfg model.ResolverConfig, ranking model.TrustRanking) *Resolver {
	r := &Resolver{accept: cfg.AcceptThreshold, review: cfg.ReviewThreshold, ranking: ranking}
	if r.accept <= 0 {
		r.accept = DefaultAcceptThreshold
	}
	if r.review <= 0 || r.review > r.accept {
		r.review = min(DefaultReviewThreshold, r.accept)
	}
	if r.ranking == nil {
		r.ranking = model.DefaultTrustRanking()
	}
	return r
}

// Thresholds returns the accept and review thresholds.
func (r *Resolver) Thresholds() (accept, review float64) {
	return r.accept, r.review
}

// Resolve finds the canonical entity q describes in pool.
func (r *Resolver) Resolve(q Query, pool []model.EntityRef) Result {
	var accepted, band []Scored
	for _, ref := range pool {
		if !r.passesFilters(q, ref) {
			continue
		}
		score := round2(Similarity(q.Name, ref.NameNormalized))
		switch {
		case score >= r.accept:
			accepted = append(accepted, Scored{Ref: ref, Score: score})
		case score >= r.review:
			band = append(band, Scored{Ref: ref, Score: score})
		}
	}

	switch {
	case len(accepted) == 1:
		ref := accepted[0].Ref
		return Result{
			Kind:       Matched,
			Ref:        &ref,
			Confidence: accepted[0].Score,
			Reason:     fmt.Sprintf("matched %q at %.2f", ref.Name, accepted[0].Score),
		}
	case len(accepted) > 1:
		return r.tieBreak(q, accepted)
	case len(band) > 0:
		sortScored(band)
		return Result{
			Kind:       NeedsReview,
			Confidence: band[0].Score,
			Reason:     fmt.Sprintf("%d candidate(s) between %.0f and %.0f", len(band), r.review, r.accept),
			Candidates: band,
		}
	default:
		return Result{Kind: NoMatch, Reason: "no candidate above review threshold"}
	}
}

// passesFilters applies exact-or-absent filters on constituency, party and year.
func (r *Resolver) passesFilters(q Query, ref model.EntityRef) bool {
	if q.ConstituencyID != nil && ref.ConstituencyID != nil && *q.ConstituencyID != *ref.ConstituencyID {
		return false
	}
	if q.PartyID != nil && ref.PartyID != nil && *q.PartyID != *ref.PartyID {
		return false
	}
	if q.Year != 0 && ref.Year != 0 && q.Year != ref.Year {
		return false
	}
	return true
}

// tieBreak orders accepted entities: equal-or-higher tier first, then most
// recently updated, then lowest id.
func (r *Resolver) tieBreak(q Query, accepted []Scored) Result {
	trusted := func(s Scored) bool { return r.ranking.Compare(s.Ref.BestTier, q.Tier) >= 0 }

	sort.SliceStable(accepted, func(i, j int) bool {
		a, b := accepted[i], accepted[j]
		if ta, tb := trusted(a), trusted(b); ta != tb {
			return ta
		}
		if !a.Ref.UpdatedAt.Equal(b.Ref.UpdatedAt) {
			return a.Ref.UpdatedAt.After(b.Ref.UpdatedAt)
		}
		return a.Ref.ID < b.Ref.ID
	})

	win, next := accepted[0], accepted[1]
	var by string
	switch {
	case trusted(win) != trusted(next):
		by = "tier"
	case !win.Ref.UpdatedAt.Equal(next.Ref.UpdatedAt):
		by = "recency"
	default:
		by = "lowest id"
	}

	ref := win.Ref
	return Result{
		Kind:       Matched,
		Ref:        &ref,
		Confidence: win.Score,
		Reason:     fmt.Sprintf("tie-break by %s among %d matches; chose id %d", by, len(accepted), ref.ID),
	}
}

// ResolveConstituency finds a constituency by assembly number, then exact
// normalized name, then fuzzy name.
func (r *Resolver) ResolveConstituency(number model.Field[int64], name string, pool []model.Constituency) Result {
	if n, ok := number.Get(); ok {
		for _, c := range pool {
			if c.Number != nil && *c.Number == n {
				return constituencyMatch(c, 100, fmt.Sprintf("assembly number %d", n))
			}
		}
	}

	key := normalize.Name(name)
	if key == "" {
		return Result{Kind: NoMatch, Reason: "no constituency name or number"}
	}
	var exact *model.Constituency
	for i := range pool {
		c := &pool[i]
		if c.NameNormalized == key && (exact == nil || c.ID < exact.ID) {
			exact = c
		}
	}
	if exact != nil {
		return constituencyMatch(*exact, 100, "exact name")
	}

	refs := make([]model.EntityRef, 0, len(pool))
	for _, c := range pool {
		refs = append(refs, model.EntityRef{
			Type:           model.EntityConstituency,
			ID:             c.ID,
			Name:           c.Name,
			NameNormalized: c.NameNormalized,
			UpdatedAt:      c.UpdatedAt,
		})
	}
	return r.Resolve(Query{Name: key}, refs)
}

func constituencyMatch(c model.Constituency, score float64, reason string) Result {
	return Result{
		Kind:       Matched,
		Ref:        &model.EntityRef{Type: model.EntityConstituency, ID: c.ID, Name: c.Name, NameNormalized: c.NameNormalized, UpdatedAt: c.UpdatedAt},
		Confidence: score,
		Reason:     reason,
	}
}

func sortScored(s []Scored) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].Ref.ID < s[j].Ref.ID
	})
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
