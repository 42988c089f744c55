//go:build property

package merge

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ppiankov/tntracker/internal/model"
)

func genTier() gopter.Gen {
	return gen.IntRange(0, len(model.AllTiers)-1).Map(func(i int) model.TrustTier {
		return model.AllTiers[i]
	})
}

func TestPolicyTierMonotonicity(t *testing.T) {
	properties := gopter.NewProperties(nil)
	p := Policy{Ranking: model.DefaultTrustRanking()}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("a lower tier never writes over a known value", prop.ForAll(
		func(stored, incoming model.TrustTier, storedVal, inVal int64, hours int) bool {
			prov := &model.FieldProvenance{Tier: stored, RetrievedAt: base, Known: true}
			in := Offer{Field: "age", Value: inVal, Known: true, Tier: incoming, RetrievedAt: base.Add(time.Duration(hours) * time.Hour)}
			d := p.Decide(storedVal, prov, in)
			if p.Ranking.Compare(incoming, stored) < 0 {
				return d.Verdict == Keep || d.Verdict == Skip
			}
			return true
		},
		genTier(), genTier(), gen.Int64Range(18, 25), gen.Int64Range(18, 25), gen.IntRange(-48, 48),
	))

	properties.Property("an unknown offer never replaces a known value", prop.ForAll(
		func(stored, incoming model.TrustTier, storedVal int64) bool {
			prov := &model.FieldProvenance{Tier: stored, RetrievedAt: base, Known: true}
			d := p.Decide(storedVal, prov, Offer{Field: "age", Tier: incoming, RetrievedAt: base.Add(time.Hour)})
			return d.Verdict == Skip
		},
		genTier(), genTier(), gen.Int64Range(18, 90),
	))

	properties.Property("the final writer of a sequence has the highest tier seen", prop.ForAll(
		func(tiers []model.TrustTier) bool {
			var (
				stored any
				prov   *model.FieldProvenance
				best   model.TrustTier
			)
			for i, tier := range tiers {
				in := Offer{Field: "age", Value: int64(30 + i), Known: true, Tier: tier, RetrievedAt: base.Add(time.Duration(i) * time.Hour)}
				if i == 0 || p.Ranking.Compare(tier, best) > 0 {
					best = tier
				}
				d := p.Decide(stored, prov, in)
				if d.Verdict == Write {
					stored = in.Value
					prov = &model.FieldProvenance{Tier: tier, RetrievedAt: in.RetrievedAt, Known: true}
				}
			}
			return len(tiers) == 0 || p.Ranking.Compare(prov.Tier, best) == 0
		},
		gen.SliceOfN(6, genTier()),
	))

	properties.TestingRun(t)
}
